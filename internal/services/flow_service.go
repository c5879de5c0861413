package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/taptap-tz/taptap-bot/internal/models"
	"github.com/taptap-tz/taptap-bot/internal/utils"
)

const (
	msgNoActiveOrder   = "🧐 Hauuna oda inayoendelea kwa sasa kwenye meza hii."
	msgTrackFailed     = "❌ Tatizo la kupata status ya oda yako."
	msgAskComment      = "📝 Una maoni yoyote?\n\n(Andika maoni au \"skip\" kuendelea)"
	msgFeedbackThanks  = "🙏 Asante kwa maoni yako!"
	msgTipNoOrder      = "⚠️ Hauwezi kutoa tip bila kuwa na oda inayoendelea."
	msgTipThanks       = "💝 Asante kwa tip ya Tsh %s!"
	msgTipFailed       = "❌ Tatizo la kutoa tip. Jaribu tena."
	msgGoodbye         = "🎉 Asante kwa kutumia TAPTAP!\n\nKaribu tena! 👋"
	msgRequestSent     = "✅ Ombi la *%s* limetumwa! Mhudumu anakuja hivi punde."
	msgRequestFailed   = "❌ Samahani, tumeshindwa kutuma ombi kwa sasa. Jaribu tena baadae."
	msgNoWaiters       = "Samahani, hakuna wahudumu waliopo kwa sasa."
	skipCommentKeyword = "skip"
)

var tipAmounts = []int{500, 1000}

var statusLabels = map[string]string{
	"pending":   "⏳ Inasubiri",
	"confirmed": "✅ Imethibitishwa",
	"preparing": "👨‍🍳 Inapikwa",
	"ready":     "🍽️ Tayari",
	"served":    "✅ Imehudumiwa",
	"paid":      "💰 Imelipwa",
}

func statusLabel(status string) string {
	if label, ok := statusLabels[strings.ToLower(status)]; ok {
		return label
	}
	return status
}

// trackStatus shows the live order of the table. When that lookup fails
// but an order was placed from this conversation, it polls that order.
// Writes: ActiveOrderID, OrderTotal (synced from the backend).
func (f *OrderingFlow) trackStatus(ctx context.Context, s *models.Session) Turn {
	order, err := f.api.GetActiveOrder(ctx, s.RestaurantID, s.TableNumber)
	if err != nil {
		log.Printf("⚠️  Active order lookup failed for %s table %s: %v", s.RestaurantID, s.TableNumber, err)
		if s.ActiveOrderID == "" {
			return f.home(s, msgTrackFailed)
		}
		status, err := f.api.GetOrderStatus(ctx, s.ActiveOrderID)
		if err != nil {
			log.Printf("❌ Track status error for order #%s: %v", s.ActiveOrderID, err)
			return f.home(s, msgTrackFailed)
		}
		text := fmt.Sprintf("📍 *Oda #%s*\nHali: %s\n\n💰 *Jumla: Tsh %s*", s.ActiveOrderID, statusLabel(status.Status), FormatMoney(status.Total))
		return screenTurn(trackScreen(text))
	}

	if order == nil {
		return f.home(s, msgNoActiveOrder)
	}

	s.ActiveOrderID = order.ID.String()
	if order.Total > 0 {
		s.OrderTotal = order.Total
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📍 *Oda #%s*\n", order.ID)
	fmt.Fprintf(&b, "Hali: %s\n", statusLabel(order.Status))
	if order.WaiterName != "" {
		fmt.Fprintf(&b, "🙋 Mhudumu: %s\n", order.WaiterName)
	}
	b.WriteString("\n🛒 *Items:*\n")
	for _, item := range order.Items {
		fmt.Fprintf(&b, "• %s x%d\n", item.Name, item.Quantity)
	}
	fmt.Fprintf(&b, "\n💰 *Jumla: Tsh %s*", FormatMoney(order.Total))

	return screenTurn(trackScreen(b.String()))
}

func trackScreen(text string) Screen {
	return ButtonScreen(models.StateTrackStatus, "📡✨", text,
		opt(models.Simple(models.ActionRefresh), "🔄 Refresh"),
		opt(models.Simple(models.ActionGoPayment), "💳 Lipa"),
		opt(models.Simple(models.ActionHome), "🏠 Home"),
	)
}

// handleTrackStatus refreshes on demand.
// Writes: ActiveOrderID, OrderTotal (via trackStatus).
func (f *OrderingFlow) handleTrackStatus(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionGoPayment:
		return f.paymentSummary(s), nil
	case models.ActionHome:
		return f.home(s), nil
	}
	return f.trackStatus(ctx, s), nil
}

func feedbackScreenA() Screen {
	return ButtonScreen(models.StateFeedback, "⭐✨", "⭐*Rating*\nTupe maoni yako:",
		opt(models.Rate(1), "⭐1"),
		opt(models.Rate(2), "⭐⭐2"),
		opt(models.Simple(models.ActionRateMore), "➡️Zaidi"),
	)
}

func feedbackScreenB() Screen {
	return ButtonScreen(models.StateFeedbackB, "⭐✨", "⭐*Rating*\nChagua rating:",
		opt(models.Rate(3), "⭐⭐⭐3"),
		opt(models.Rate(4), "⭐⭐⭐⭐4"),
		opt(models.Rate(5), "⭐⭐⭐⭐⭐5"),
	)
}

// handleFeedback takes a 1-5 rating from either rating screen.
// Writes: Rating.
func (f *OrderingFlow) handleFeedback(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionRate:
		if n, ok := a.Int(); ok && n >= 1 && n <= 5 {
			s.Rating = n
			return screenTurn(TextScreen(models.StateFeedbackComment, msgAskComment)), nil
		}
	case models.ActionRateMore:
		return screenTurn(feedbackScreenB()), nil
	case models.ActionHome:
		return f.home(s), nil
	}

	if s.State == models.StateFeedbackB {
		return screenTurn(feedbackScreenB()), nil
	}
	return screenTurn(feedbackScreenA()), nil
}

// handleFeedbackComment submits the rating with whatever was typed.
// A failed submission is logged only; the customer is thanked either way.
// Writes: Rating.
func (f *OrderingFlow) handleFeedbackComment(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	comment := a.Token()
	if strings.EqualFold(comment, skipCommentKeyword) {
		comment = ""
	}

	err := f.api.SubmitFeedback(ctx, models.Feedback{
		RestaurantID:  s.RestaurantID,
		CustomerPhone: utils.CustomerPhone(s.ConversationID),
		Rating:        s.Rating,
		Comment:       comment,
	})
	if err != nil {
		log.Printf("⚠️  Feedback error for %s: %v", s.ConversationID, err)
	}
	s.Rating = 0

	return screenTurn(tipScreen(), msgFeedbackThanks), nil
}

func tipScreen() Screen {
	options := make([]Option, 0, len(tipAmounts)+1)
	for _, amount := range tipAmounts {
		options = append(options, opt(models.TipAmount(amount), FormatMoney(models.Money(amount))))
	}
	options = append(options, opt(models.Simple(models.ActionTipSkip), "Skip"))
	return ButtonScreen(models.StateTip, "💝✨", "💝*Tip kwa Waiter?*\nChagua kiasi:", options...)
}

// handleTip records a tip against the active order, then says goodbye.
// Writes: nothing directly.
func (f *OrderingFlow) handleTip(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionTipSkip:
		return f.home(s, msgGoodbye), nil
	case models.ActionTip:
		amount, ok := a.Int()
		if !ok || amount <= 0 {
			break
		}
		if s.ActiveOrderID == "" {
			return f.home(s, msgTipNoOrder, msgGoodbye), nil
		}

		err := f.api.SubmitTip(ctx, models.Tip{
			RestaurantID: s.RestaurantID,
			OrderID:      s.ActiveOrderID,
			Amount:       amount,
		})
		if err != nil {
			log.Printf("❌ Tip error for order #%s: %v", s.ActiveOrderID, err)
			return f.home(s, msgTipFailed, msgGoodbye), nil
		}
		return f.home(s, fmt.Sprintf(msgTipThanks, moneyPrinter.Sprintf("%d", amount)), msgGoodbye), nil
	case models.ActionHome:
		return f.home(s), nil
	}
	return screenTurn(tipScreen()), nil
}

func callWaiterScreen() Screen {
	return ButtonScreen(models.StateCallWaiter, "🙋✨", "🙋 *Unahitaji nini?*",
		opt(models.Simple(models.ActionCallOnly), "🙋 Mhudumu"),
		opt(models.Simple(models.ActionRequestBill), "🧾 Bili"),
		opt(models.Simple(models.ActionListWaiters), "👥 Orodha ya Wahudumu"),
		opt(models.Simple(models.ActionHome), "🏠 Home"),
	)
}

// handleCallWaiter raises a waiter or bill request for the table.
// Writes: nothing directly.
func (f *OrderingFlow) handleCallWaiter(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionCallOnly:
		return f.callWaiter(ctx, s, models.RequestCallWaiter, "Ita Mhudumu"), nil
	case models.ActionRequestBill:
		return f.callWaiter(ctx, s, models.RequestBill, "Omba Bili"), nil
	case models.ActionListWaiters:
		return f.waitersList(ctx, s), nil
	case models.ActionHome:
		return f.home(s), nil
	}
	return screenTurn(callWaiterScreen()), nil
}

func (f *OrderingFlow) waitersList(ctx context.Context, s *models.Session) Turn {
	waiters, err := f.api.GetWaiters(ctx, s.RestaurantID)
	if err != nil {
		log.Printf("❌ Fetch waiters error for %s: %v", s.RestaurantID, err)
		return screenTurn(callWaiterScreen())
	}
	if len(waiters) == 0 {
		return screenTurn(callWaiterScreen(), msgNoWaiters)
	}

	options := make([]Option, 0, len(waiters)+1)
	for _, w := range waiters {
		if w.Name == "" {
			continue
		}
		options = append(options, optDesc(models.CallNamedWaiter(w.Name), "🙋 "+w.Name, "Bonyeza kumuita"))
	}
	options = append(options, opt(models.Simple(models.ActionHome), "🏠 Home"))

	return screenTurn(ListScreen(models.StateWaitersList, "👥✨",
		"👥 *Wahudumu Wetu*\n\nChagua mhudumu unayetaka kumuita:",
		Section{Title: "Wahudumu", Options: options}))
}

// handleWaitersList calls a waiter by name.
// Writes: nothing directly.
func (f *OrderingFlow) handleWaitersList(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionCallNamedWaiter:
		return f.callWaiter(ctx, s, models.RequestNamedWaiter+a.Arg, "Ita "+a.Arg), nil
	case models.ActionHome:
		return f.home(s), nil
	}
	return f.waitersList(ctx, s), nil
}

// callWaiter sends the request; success and failure both land on home
func (f *OrderingFlow) callWaiter(ctx context.Context, s *models.Session, requestType, displayName string) Turn {
	err := f.api.CallWaiter(ctx, models.WaiterRequest{
		RestaurantID: s.RestaurantID,
		TableNumber:  s.TableNumber,
		RequestType:  requestType,
	})
	if err != nil {
		log.Printf("❌ Call waiter error for %s table %s: %v", s.RestaurantID, s.TableNumber, err)
		return f.home(s, msgRequestFailed)
	}

	log.Printf("🙋 %s requested %s at table %s", s.ConversationID, requestType, s.TableNumber)
	return f.home(s, fmt.Sprintf(msgRequestSent, displayName))
}
