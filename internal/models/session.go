package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// State is the discrete step a conversation is currently on
type State string

const (
	StateStart            State = "START"
	StateSearchRestaurant State = "SEARCH_RESTAURANT"
	StatePickTable        State = "PICK_TABLE"
	StateTableInput       State = "TABLE_INPUT"
	StateHome             State = "HOME"
	StateMenuHub          State = "MENU_HUB"
	StateSearchFood       State = "SEARCH_FOOD"
	StateCategories       State = "CATEGORIES"
	StateItemsList        State = "ITEMS_LIST"
	StateItemDetail       State = "ITEM_DETAIL"
	StateQuantity         State = "QUANTITY"
	StateQuantityMore     State = "QUANTITY_MORE"
	StateCart             State = "CART"
	StateCartEdit         State = "CART_EDIT"
	StateConfirmOrder     State = "CONFIRM_ORDER"
	StatePaymentSummary   State = "PAYMENT_SUMMARY"
	StateCashPayment      State = "CASH_PAYMENT"
	StateProviderSelect   State = "PROVIDER_SELECT"
	StateUssdNumber       State = "USSD_NUMBER"
	StatePayNow           State = "PAY_NOW"
	StateUssdPending      State = "USSD_PENDING"
	StateManualUssd       State = "MANUAL_USSD"
	StateTrackStatus      State = "TRACK_STATUS"
	StateFeedback         State = "FEEDBACK"
	StateFeedbackB        State = "FEEDBACK_B"
	StateFeedbackComment  State = "FEEDBACK_COMMENT"
	StateTip              State = "TIP"
	StateCallWaiter       State = "CALL_WAITER"
	StateWaitersList      State = "WAITERS_LIST"
)

// AllStates lists every state a session may be in
var AllStates = []State{
	StateStart, StateSearchRestaurant, StatePickTable, StateTableInput, StateHome,
	StateMenuHub, StateSearchFood, StateCategories, StateItemsList, StateItemDetail,
	StateQuantity, StateQuantityMore, StateCart, StateCartEdit, StateConfirmOrder,
	StatePaymentSummary, StateCashPayment, StateProviderSelect, StateUssdNumber,
	StatePayNow, StateUssdPending, StateManualUssd, StateTrackStatus, StateFeedback,
	StateFeedbackB, StateFeedbackComment, StateTip, StateCallWaiter, StateWaitersList,
}

// IsValid reports whether s is one of the known states
func (s State) IsValid() bool {
	for _, known := range AllStates {
		if s == known {
			return true
		}
	}
	return false
}

// CartLine is one distinct menu item and its accumulated quantity
type CartLine struct {
	ItemID    string `json:"item_id"`
	Name      string `json:"name"`
	UnitPrice Money  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// Subtotal is unit price times quantity
func (l CartLine) Subtotal() Money {
	return l.UnitPrice * Money(l.Quantity)
}

// Session is the per-conversation ordering state.
// It is owned by the ordering flow; nothing else writes to it.
type Session struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	State          State     `json:"state"`
	CreatedAt      time.Time `json:"created_at"`
	LastActive     time.Time `json:"last_active"`

	// Dining context
	RestaurantID   string `json:"restaurant_id,omitempty"`
	RestaurantName string `json:"restaurant_name,omitempty"`
	TableNumber    string `json:"table_number,omitempty"`

	Cart []CartLine `json:"cart"`

	// Order, authoritative only after the backend confirmed it
	ActiveOrderID   string `json:"active_order_id,omitempty"`
	OrderTotal      Money  `json:"order_total"`
	OrderAttemptKey string `json:"order_attempt_key,omitempty"`

	// Browsing
	MenuCache       []Category   `json:"menu_cache,omitempty"`
	CurrentCategory string       `json:"current_category,omitempty"`
	SearchResults   []Restaurant `json:"search_results,omitempty"`

	// Quantity sub-flow
	PendingItem     string `json:"pending_item,omitempty"`
	PendingQuantity int    `json:"pending_quantity"`

	// Mobile money sub-flow
	UssdPhone     string `json:"ussd_phone,omitempty"`
	UssdProvider  string `json:"ussd_provider,omitempty"`
	PaymentID     string `json:"payment_id,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`

	// Feedback sub-flow
	Rating int `json:"rating,omitempty"`

	// MenuOptions maps the keys of the last rendered screen to action tokens
	MenuOptions map[string]string `json:"menu_options,omitempty"`
}

// NewSession creates a session in the start state with an empty cart
func NewSession(conversationID string) *Session {
	now := time.Now()
	return &Session{
		ID:              uuid.NewString(),
		ConversationID:  conversationID,
		State:           StateStart,
		CreatedAt:       now,
		LastActive:      now,
		Cart:            []CartLine{},
		PendingQuantity: 1,
		MenuOptions:     map[string]string{},
	}
}

// Reset wipes everything except the conversation identity
func (s *Session) Reset() {
	fresh := NewSession(s.ConversationID)
	fresh.ID = s.ID
	fresh.CreatedAt = s.CreatedAt
	*s = *fresh
}

// CartTotal recomputes the cart value from its lines
func (s *Session) CartTotal() Money {
	var total Money
	for _, line := range s.Cart {
		total += line.Subtotal()
	}
	return total
}

// FindCartLine returns the line holding itemID, or nil
func (s *Session) FindCartLine(itemID string) *CartLine {
	for i := range s.Cart {
		if s.Cart[i].ItemID == itemID {
			return &s.Cart[i]
		}
	}
	return nil
}

// AddToCart merges qty units of item into the cart.
// Name and price are snapshotted from the item as it is now.
func (s *Session) AddToCart(item MenuItem, qty int) *CartLine {
	if qty < 1 {
		qty = 1
	}
	if line := s.FindCartLine(item.ID.String()); line != nil {
		line.Quantity += qty
		return line
	}
	s.Cart = append(s.Cart, CartLine{
		ItemID:    item.ID.String(),
		Name:      item.Name,
		UnitPrice: item.Price,
		Quantity:  qty,
	})
	return &s.Cart[len(s.Cart)-1]
}

// DecrementCartLine removes one unit; the line goes away with its last unit.
// It returns false when the item is not in the cart.
func (s *Session) DecrementCartLine(itemID string) bool {
	for i := range s.Cart {
		if s.Cart[i].ItemID != itemID {
			continue
		}
		s.Cart[i].Quantity--
		if s.Cart[i].Quantity < 1 {
			s.Cart = append(s.Cart[:i], s.Cart[i+1:]...)
		}
		return true
	}
	return false
}

// RemoveCartLine drops the whole line and returns it
func (s *Session) RemoveCartLine(itemID string) (CartLine, bool) {
	for i := range s.Cart {
		if s.Cart[i].ItemID == itemID {
			removed := s.Cart[i]
			s.Cart = append(s.Cart[:i], s.Cart[i+1:]...)
			return removed, true
		}
	}
	return CartLine{}, false
}

// ClearCart empties the cart
func (s *Session) ClearCart() {
	s.Cart = []CartLine{}
}

// FindCategory looks a category up in the cached menu
func (s *Session) FindCategory(categoryID string) *Category {
	for i := range s.MenuCache {
		if s.MenuCache[i].ID.String() == categoryID {
			return &s.MenuCache[i]
		}
	}
	return nil
}

// FindMenuItem looks an item up across every cached category
func (s *Session) FindMenuItem(itemID string) *MenuItem {
	for i := range s.MenuCache {
		for j := range s.MenuCache[i].Items {
			if s.MenuCache[i].Items[j].ID.String() == itemID {
				return &s.MenuCache[i].Items[j]
			}
		}
	}
	return nil
}

// HasRestaurant reports whether the conversation is bound to a restaurant
func (s *Session) HasRestaurant() bool {
	return s.RestaurantID != ""
}

// ConversationSession stores a serialized Session for the database store
type ConversationSession struct {
	gorm.Model
	ConversationID string    `json:"conversation_id" gorm:"uniqueIndex"`
	State          string    `json:"state"`
	Data           string    `json:"data" gorm:"type:text"` // JSON encoded Session
	LastActive     time.Time `json:"last_active"`
}
