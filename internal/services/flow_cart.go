package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/taptap-tz/taptap-bot/internal/models"
	"github.com/taptap-tz/taptap-bot/internal/utils"
)

const (
	msgCartCleared     = "🗑️ Cart imefutwa."
	msgLineRemoved     = "❌ %s imeondolewa."
	msgLineDecremented = "➖ %s x%d"
	msgOrderCancelled  = "❌ Oda imeghairiwa."
	msgOrderFailed     = "❌Tatizo la kutuma oda."
)

// cart shows the cart lines and their total
func (f *OrderingFlow) cart(s *models.Session) Turn {
	if len(s.Cart) == 0 {
		return screenTurn(ButtonScreen(models.StateCart, "✨", "🛒*Cart ni tupu*",
			opt(models.Simple(models.ActionGoMenu), "🍽️Menu"),
			opt(models.Simple(models.ActionHome), "🏠Home"),
		))
	}

	var b strings.Builder
	b.WriteString("🛒*Cart yako*\n")
	for i, line := range s.Cart {
		fmt.Fprintf(&b, "%d.%s x%d=%s\n", i+1, line.Name, line.Quantity, FormatMoney(line.Subtotal()))
	}
	fmt.Fprintf(&b, "💰*Jumla: %s*", FormatMoney(s.CartTotal()))

	return screenTurn(ListScreen(models.StateCart, "🛒✨", b.String(),
		Section{Title: "⚡HATUA", Options: []Option{
			opt(models.Simple(models.ActionConfirmOrder), "✅Thibitisha"),
			opt(models.Simple(models.ActionContinueMenu), "➕Ongeza"),
			opt(models.Simple(models.ActionEditCart), "✏️Badili"),
			opt(models.Simple(models.ActionClearCart), "🗑️Futa"),
		}},
		Section{Title: "🏠NYUMBANI", Options: []Option{
			opt(models.Simple(models.ActionHome), "🔙RudiMwanzo"),
		}},
	))
}

// handleCart covers both the cart screen and the "added" confirmation.
// Writes: Cart, OrderAttemptKey.
func (f *OrderingFlow) handleCart(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionConfirmOrder:
		if len(s.Cart) == 0 {
			return f.cart(s), nil
		}
		return screenTurn(confirmOrderScreen(s)), nil
	case models.ActionEditCart:
		if len(s.Cart) == 0 {
			return f.cart(s), nil
		}
		return screenTurn(cartEditScreen(s)), nil
	case models.ActionClearCart:
		s.ClearCart()
		s.OrderAttemptKey = ""
		return f.home(s, msgCartCleared), nil
	case models.ActionContinueMenu, models.ActionGoMenu:
		return f.menuHub(ctx, s), nil
	case models.ActionHome:
		return f.home(s), nil
	}
	return f.cart(s), nil
}

func cartEditScreen(s *models.Session) Screen {
	options := make([]Option, 0, len(s.Cart)*2)
	for _, line := range s.Cart {
		name := compact(line.Name)
		options = append(options,
			optDesc(models.DecrementLine(line.ItemID), "➖"+name, fmt.Sprintf("x%d", line.Quantity)),
			optDesc(models.RemoveLine(line.ItemID), "❌"+name, "ondoa"),
		)
	}

	return ListScreen(models.StateCartEdit, "✏️✨", "✏️*BadiliCart*",
		Section{Title: "Items", Options: options},
		Section{Options: []Option{opt(models.Simple(models.ActionBackCart), "🔙RudiCart")}},
	)
}

// handleCartEdit removes one unit or a whole line. A line never stays at
// zero units.
// Writes: Cart, OrderAttemptKey.
func (f *OrderingFlow) handleCartEdit(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionDecrementLine:
		line := s.FindCartLine(a.Arg)
		if line == nil {
			return f.cart(s), nil
		}
		name := line.Name
		s.DecrementCartLine(a.Arg)
		s.OrderAttemptKey = ""
		if remaining := s.FindCartLine(a.Arg); remaining != nil {
			return screenTurn(f.cart(s).Screen, fmt.Sprintf(msgLineDecremented, name, remaining.Quantity)), nil
		}
		return screenTurn(f.cart(s).Screen, fmt.Sprintf(msgLineRemoved, name)), nil
	case models.ActionRemoveLine:
		removed, ok := s.RemoveCartLine(a.Arg)
		if !ok {
			return f.cart(s), nil
		}
		s.OrderAttemptKey = ""
		return screenTurn(f.cart(s).Screen, fmt.Sprintf(msgLineRemoved, removed.Name)), nil
	case models.ActionBackCart:
		return f.cart(s), nil
	case models.ActionHome:
		return f.home(s), nil
	}

	if len(s.Cart) == 0 {
		return f.cart(s), nil
	}
	return screenTurn(cartEditScreen(s)), nil
}

func confirmOrderScreen(s *models.Session) Screen {
	var b strings.Builder
	b.WriteString("🧾*Thibitisha Oda*\n")
	fmt.Fprintf(&b, "📍Meza:%s\n", s.TableNumber)
	for _, line := range s.Cart {
		fmt.Fprintf(&b, "•%s x%d\n", line.Name, line.Quantity)
	}
	fmt.Fprintf(&b, "💰*Jumla:%s*", FormatMoney(s.CartTotal()))

	return ButtonScreen(models.StateConfirmOrder, "🧾✨", b.String(),
		opt(models.Simple(models.ActionConfirmYes), "✅Thibitisha"),
		opt(models.Simple(models.ActionBackCart), "🔙Rudi"),
		opt(models.Simple(models.ActionCancelOrder), "❌Ghairi"),
	)
}

// handleConfirmOrder submits, goes back or cancels.
// Writes: Cart, ActiveOrderID, OrderTotal, OrderAttemptKey (via createOrder).
func (f *OrderingFlow) handleConfirmOrder(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionConfirmYes:
		return f.createOrder(ctx, s), nil
	case models.ActionBackCart:
		return f.cart(s), nil
	case models.ActionCancelOrder:
		s.ClearCart()
		s.OrderAttemptKey = ""
		return f.home(s, msgOrderCancelled), nil
	case models.ActionHome:
		return f.home(s), nil
	}
	if len(s.Cart) == 0 {
		return f.cart(s), nil
	}
	return screenTurn(confirmOrderScreen(s)), nil
}

func orderReceivedScreen(s *models.Session) Screen {
	text := fmt.Sprintf("✅*OdaImepokelewa!*\n🧾#%s\n💰%s\nWaiter anakuja...", s.ActiveOrderID, FormatMoney(s.OrderTotal))
	return ButtonScreen(models.StateHome, "✨", text,
		opt(models.Simple(models.ActionGoPayment), "💳LipaSasa"),
		opt(models.Simple(models.ActionTrackOrder), "📍Track"),
		opt(models.Simple(models.ActionHome), "🏠Home"),
	)
}

// createOrder submits the cart once. The client total travels with the
// request; the session only takes the backend's total. The cart is kept
// on failure and the same idempotency key is reused on retry.
// Writes: Cart, ActiveOrderID, OrderTotal, OrderAttemptKey, PaymentID,
// TransactionID.
func (f *OrderingFlow) createOrder(ctx context.Context, s *models.Session) Turn {
	if len(s.Cart) == 0 {
		// Already submitted from this screen
		if s.ActiveOrderID != "" {
			return screenTurn(orderReceivedScreen(s))
		}
		return f.cart(s)
	}

	if s.OrderAttemptKey == "" {
		s.OrderAttemptKey = uuid.NewString()
	}

	req := models.NewOrderRequest(s.RestaurantID, s.TableNumber, utils.CustomerPhone(s.ConversationID), s.Cart)
	confirmation, err := f.api.CreateOrder(ctx, req, s.OrderAttemptKey)
	if err != nil {
		log.Printf("❌ Create order error for %s: %v", s.ConversationID, err)
		return screenTurn(confirmOrderScreen(s), msgOrderFailed)
	}

	s.ActiveOrderID = confirmation.OrderID.String()
	s.OrderTotal = confirmation.Total
	if s.OrderTotal == 0 {
		s.OrderTotal = models.Money(req.Total)
	}
	s.ClearCart()
	s.OrderAttemptKey = ""
	s.PaymentID = ""
	s.TransactionID = ""

	log.Printf("✅ Order #%s placed by %s at %s", s.ActiveOrderID, s.ConversationID, s.RestaurantName)
	return screenTurn(orderReceivedScreen(s))
}
