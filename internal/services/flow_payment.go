package services

import (
	"context"
	"fmt"
	"log"

	"github.com/taptap-tz/taptap-bot/internal/models"
	"github.com/taptap-tz/taptap-bot/internal/utils"
)

const (
	msgNoOrderToPay      = "Huna oda ya kulipa."
	msgCashThanks        = "✅ Asante!\n\nTunasubiri waiter athibitishe malipo..."
	msgAskPhone          = "📱 Andika namba ya simu ya Mobile Money\nMfano: 0712345678 au 255712345678"
	msgAskNewPhone       = "Andika namba mpya ya simu:"
	msgInvalidPhone      = "❌ Namba si sahihi. Andika kama 0712345678 au 255712345678"
	msgAskTransactionID  = "Andika Transaction ID (mfano: MPESA123XYZ):"
	msgTransactionStored = "✅ Tumepokea Transaction ID.\nTunasubiri uthibitisho..."
	msgStatusFailed      = "❌ Tatizo la kupata status ya malipo. Jaribu tena."

	manualUssdCode = "*150*00#"
)

// Mobile money networks the backend can push to
var providers = []struct {
	id    string
	label string
}{
	{"mpesa", "M-Pesa"},
	{"tigopesa", "TigoPesa"},
	{"airtelmoney", "AirtelMoney"},
	{"halopesa", "HaloPesa"},
}

func knownProvider(id string) bool {
	for _, p := range providers {
		if p.id == id {
			return true
		}
	}
	return false
}

// paymentSummary shows the bill of the confirmed order
func (f *OrderingFlow) paymentSummary(s *models.Session) Turn {
	if s.ActiveOrderID == "" {
		return f.home(s, msgNoOrderToPay)
	}

	text := fmt.Sprintf("🧾*Bili yako*\n📋#%s\n💰*Jumla:%s*", s.ActiveOrderID, FormatMoney(s.OrderTotal))
	return screenTurn(ListScreen(models.StatePaymentSummary, "💳✨", text,
		Section{Title: "💳MALIPO", Options: []Option{
			opt(models.Simple(models.ActionPayMobile), "📲MobileMoney"),
			opt(models.Simple(models.ActionPayCash), "💵Cash"),
		}},
		Section{Title: "🏠NYUMBANI", Options: []Option{
			opt(models.Simple(models.ActionHome), "🔙RudiMwanzo"),
		}},
	))
}

// handlePaymentSummary picks cash or mobile money.
// Writes: nothing directly.
func (f *OrderingFlow) handlePaymentSummary(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionPayCash:
		return screenTurn(cashScreen()), nil
	case models.ActionPayMobile:
		return screenTurn(providerScreen()), nil
	case models.ActionHome:
		return f.home(s), nil
	}
	return f.paymentSummary(s), nil
}

func cashScreen() Screen {
	return ButtonScreen(models.StateCashPayment, "✨",
		"💵*Umechagua CASH*\nMpe waiter pesa mezani.\nUkishalipa, bonyeza \"NIMELIPA\".",
		opt(models.Simple(models.ActionCashPaid), "✅NIMELIPA"),
		opt(models.Simple(models.ActionTrackOrder), "📍Track"),
		opt(models.Simple(models.ActionHome), "🏠Home"),
	)
}

func postPaymentScreen() Screen {
	return ButtonScreen(models.StateHome, "✨", "✅Tumeona request yako.",
		opt(models.Simple(models.ActionGoFeedback), "💬Feedback"),
		opt(models.Simple(models.ActionTrackOrder), "📍Track"),
		opt(models.Simple(models.ActionHome), "🏠Home"),
	)
}

// handleCashPayment waits for the customer to say they paid the waiter.
// Writes: nothing directly.
func (f *OrderingFlow) handleCashPayment(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionCashPaid:
		log.Printf("💵 %s reports cash payment for order #%s", s.ConversationID, s.ActiveOrderID)
		return screenTurn(postPaymentScreen(), msgCashThanks), nil
	case models.ActionTrackOrder:
		return f.trackStatus(ctx, s), nil
	case models.ActionHome:
		return f.home(s), nil
	}
	return screenTurn(cashScreen()), nil
}

func providerScreen() Screen {
	options := make([]Option, 0, len(providers)+1)
	for _, p := range providers {
		options = append(options, opt(models.Provider(p.id), p.label))
	}
	options = append(options, opt(models.Simple(models.ActionBackPayment), "🔙Rudi"))

	return ListScreen(models.StateProviderSelect, "📲✨", "📲*MobileMoney*", Section{Title: "Mitandao", Options: options})
}

// handleProviderSelect stores the network and asks for the phone number.
// Writes: UssdProvider.
func (f *OrderingFlow) handleProviderSelect(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionProvider:
		if knownProvider(a.Arg) {
			s.UssdProvider = a.Arg
			return screenTurn(TextScreen(models.StateUssdNumber, msgAskPhone)), nil
		}
	case models.ActionBackPayment:
		return f.paymentSummary(s), nil
	case models.ActionHome:
		return f.home(s), nil
	}
	return screenTurn(providerScreen()), nil
}

// handleUssdNumber validates the phone; an invalid number leaves the
// state unchanged.
// Writes: UssdPhone.
func (f *OrderingFlow) handleUssdNumber(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionHome:
		return f.home(s), nil
	case models.ActionBackProvider:
		return screenTurn(providerScreen()), nil
	}

	phone, err := utils.NormalizeMobileNumber(a.Token())
	if err != nil {
		return screenTurn(TextScreen(models.StateUssdNumber, msgInvalidPhone)), nil
	}
	s.UssdPhone = phone
	return screenTurn(payNowScreen(s)), nil
}

func payNowScreen(s *models.Session) Screen {
	text := fmt.Sprintf("📲*Lipa Sasa*\n💰%s\n📱%s\nBonyeza \"PAY NOW\".", FormatMoney(s.OrderTotal), s.UssdPhone)
	return ButtonScreen(models.StatePayNow, "✨", text,
		opt(models.Simple(models.ActionPayNow), "✅PAY NOW"),
		opt(models.Simple(models.ActionChangeNumber), "✍️Badili"),
		opt(models.Simple(models.ActionBackProvider), "⬅️Rudi"),
	)
}

// handlePayNow pushes the payment or changes its details.
// Writes: PaymentID (via initiateUssd).
func (f *OrderingFlow) handlePayNow(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionPayNow:
		return f.initiateUssd(ctx, s), nil
	case models.ActionChangeNumber:
		return screenTurn(TextScreen(models.StateUssdNumber, msgAskNewPhone)), nil
	case models.ActionBackProvider:
		return screenTurn(providerScreen()), nil
	case models.ActionPayCash:
		return screenTurn(cashScreen()), nil
	case models.ActionHome:
		return f.home(s), nil
	}
	return screenTurn(payNowScreen(s)), nil
}

func ussdPendingScreen() Screen {
	return ButtonScreen(models.StateUssdPending, "✨",
		"📲*Ombi Limetumwa!*\nConfirm kwenye simu yako.\nUkimaliza bonyeza \"CHECK STATUS\".",
		opt(models.Simple(models.ActionCheckStatus), "🔄CHECK STATUS"),
		opt(models.Simple(models.ActionManualUssd), "📟Manual"),
		opt(models.Simple(models.ActionHome), "🏠Home"),
	)
}

// initiateUssd asks the backend to push the prompt to the phone.
// Writes: PaymentID.
func (f *OrderingFlow) initiateUssd(ctx context.Context, s *models.Session) Turn {
	if s.ActiveOrderID == "" {
		return f.home(s, msgNoOrderToPay)
	}

	paymentID, err := f.api.InitiateUssdPayment(ctx, models.UssdPaymentRequest{
		OrderID:     s.ActiveOrderID,
		PhoneNumber: s.UssdPhone,
		Amount:      float64(s.OrderTotal),
		Provider:    s.UssdProvider,
	})
	if err != nil {
		log.Printf("❌ USSD error for order #%s: %v", s.ActiveOrderID, err)
		return screenTurn(ButtonScreen(models.StatePayNow, "✨", "❌Tatizo la kutuma USSD.",
			opt(models.Simple(models.ActionPayNow), "🔁Jaribu Tena"),
			opt(models.Simple(models.ActionPayCash), "💵Cash"),
		))
	}

	s.PaymentID = paymentID
	log.Printf("📱 USSD push sent for order #%s (payment %s)", s.ActiveOrderID, paymentID)
	return screenTurn(ussdPendingScreen())
}

// handleUssdPending lets the customer poll as often as they like.
// Writes: nothing directly.
func (f *OrderingFlow) handleUssdPending(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionCheckStatus:
		return f.checkPaymentStatus(ctx, s), nil
	case models.ActionCancelPayment:
		return f.paymentSummary(s), nil
	case models.ActionManualUssd:
		return screenTurn(manualUssdScreen(s)), nil
	case models.ActionHome:
		return f.home(s), nil
	}
	return screenTurn(ussdPendingScreen()), nil
}

// checkPaymentStatus polls the order. It only reads, so repeating it never
// changes the session beyond the screen shown.
func (f *OrderingFlow) checkPaymentStatus(ctx context.Context, s *models.Session) Turn {
	status, err := f.api.GetOrderStatus(ctx, s.ActiveOrderID)
	if err != nil {
		log.Printf("❌ Payment status for order #%s failed: %v", s.ActiveOrderID, err)
		return screenTurn(waitingScreen(), msgStatusFailed)
	}

	if status.IsPaid() {
		return screenTurn(ButtonScreen(models.StateHome, "✨", "✅*Malipo Yamethibitishwa!*",
			opt(models.Simple(models.ActionGoFeedback), "💬Feedback"),
			opt(models.Simple(models.ActionHome), "🏠Home"),
		))
	}
	return screenTurn(waitingScreen())
}

func waitingScreen() Screen {
	return ButtonScreen(models.StateUssdPending, "✨", "⏳*Bado Tunasubiri...*",
		opt(models.Simple(models.ActionCheckStatus), "🔄Check Tena"),
		opt(models.Simple(models.ActionManualUssd), "📟Manual"),
		opt(models.Simple(models.ActionHome), "🏠Home"),
	)
}

func manualUssdScreen(s *models.Session) Screen {
	text := fmt.Sprintf("📟*Manual USSD*\nPiga %s\nLipa kiasi: %s\nUkimaliza bonyeza \"NIMELIPA\":", manualUssdCode, FormatMoney(s.OrderTotal))
	return ButtonScreen(models.StateManualUssd, "✨", text,
		opt(models.Simple(models.ActionManualPaid), "✅NIMELIPA"),
		opt(models.Simple(models.ActionPayCash), "💵Cash"),
		opt(models.Simple(models.ActionHome), "🏠Home"),
	)
}

// handleManualUssd takes free text as the transaction id.
// Writes: TransactionID.
func (f *OrderingFlow) handleManualUssd(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionManualPaid:
		return screenTurn(TextScreen(models.StateManualUssd, msgAskTransactionID)), nil
	case models.ActionPayCash:
		return screenTurn(cashScreen()), nil
	case models.ActionHome:
		return f.home(s), nil
	case models.ActionText:
		s.TransactionID = a.Arg
		log.Printf("🧾 %s sent transaction id %s for order #%s", s.ConversationID, a.Arg, s.ActiveOrderID)
		return screenTurn(postPaymentScreen(), msgTransactionStored), nil
	}
	return screenTurn(manualUssdScreen(s)), nil
}
