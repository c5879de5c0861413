package models

import (
	"strconv"
	"strings"
)

// ActionKind is what a canonical token asks the flow to do
type ActionKind int

const (
	// ActionText is free text that did not match any known token
	ActionText ActionKind = iota

	ActionHome
	ActionRestart

	// Restaurant and table
	ActionPickRestaurant
	ActionSearchAgain
	ActionPickTable
	ActionTypeTable

	// Home screen
	ActionGoMenu
	ActionSearchFood
	ActionGoCart
	ActionGoPayment
	ActionTrackOrder
	ActionGoFeedback
	ActionCallWaiter

	// Browsing
	ActionViewCategory
	ActionBackMenu
	ActionBackCategories
	ActionViewItem
	ActionBackItems
	ActionAddItem

	// Quantity
	ActionQuantity
	ActionQuantityMore
	ActionQuantityPlus
	ActionQuantityMinus
	ActionQuantityDone

	// Cart
	ActionConfirmOrder
	ActionEditCart
	ActionClearCart
	ActionContinueMenu
	ActionDecrementLine
	ActionRemoveLine
	ActionBackCart
	ActionConfirmYes
	ActionCancelOrder

	// Payment
	ActionPayCash
	ActionPayMobile
	ActionCashPaid
	ActionProvider
	ActionBackPayment
	ActionPayNow
	ActionChangeNumber
	ActionBackProvider
	ActionCheckStatus
	ActionCancelPayment
	ActionManualUssd
	ActionManualPaid
	ActionRefresh

	// Feedback, tip and service
	ActionRate
	ActionRateMore
	ActionTip
	ActionTipSkip
	ActionCallOnly
	ActionRequestBill
	ActionListWaiters
	ActionCallNamedWaiter
)

// Action is a parsed canonical token. Arg carries the payload of
// parameterised kinds (restaurant id, item id, quantity, provider...).
type Action struct {
	Kind ActionKind
	Arg  string
}

var exactTokens = map[string]ActionKind{
	"home":            ActionHome,
	"restart":         ActionRestart,
	"anza upya":       ActionRestart,
	"search_again":    ActionSearchAgain,
	"table_type":      ActionTypeTable,
	"go_menu":         ActionGoMenu,
	"search_food":     ActionSearchFood,
	"go_cart":         ActionGoCart,
	"go_payment":      ActionGoPayment,
	"track_order":     ActionTrackOrder,
	"go_feedback":     ActionGoFeedback,
	"call_waiter":     ActionCallWaiter,
	"back_menu":       ActionBackMenu,
	"back_categories": ActionBackCategories,
	"back_items":      ActionBackItems,
	"qty_more":        ActionQuantityMore,
	"qty_plus":        ActionQuantityPlus,
	"qty_minus":       ActionQuantityMinus,
	"qty_done":        ActionQuantityDone,
	"confirm_order":   ActionConfirmOrder,
	"edit_cart":       ActionEditCart,
	"clear_cart":      ActionClearCart,
	"continue_menu":   ActionContinueMenu,
	"back_cart":       ActionBackCart,
	"confirm_yes":     ActionConfirmYes,
	"cancel_order":    ActionCancelOrder,
	"pay_cash":        ActionPayCash,
	"pay_mobile":      ActionPayMobile,
	"cash_paid":       ActionCashPaid,
	"back_payment":    ActionBackPayment,
	"paynow":          ActionPayNow,
	"change_number":   ActionChangeNumber,
	"back_provider":   ActionBackProvider,
	"check_status":    ActionCheckStatus,
	"cancel_payment":  ActionCancelPayment,
	"manual_ussd":     ActionManualUssd,
	"manual_paid":     ActionManualPaid,
	"refresh":         ActionRefresh,
	"rate_next":       ActionRateMore,
	"tip_skip":        ActionTipSkip,
	"call_only":       ActionCallOnly,
	"request_bill":    ActionRequestBill,
	"list_waiters":    ActionListWaiters,
}

// Prefixed tokens; exact tokens are matched first so "call_waiter"
// never collides with "call_waiter_<name>".
var prefixTokens = []struct {
	prefix string
	kind   ActionKind
}{
	{"pick_rest_", ActionPickRestaurant},
	{"table_", ActionPickTable},
	{"cat_", ActionViewCategory},
	{"item_", ActionViewItem},
	{"add_", ActionAddItem},
	{"qty_", ActionQuantity},
	{"dec_", ActionDecrementLine},
	{"remove_", ActionRemoveLine},
	{"provider_", ActionProvider},
	{"rate_", ActionRate},
	{"tip_", ActionTip},
	{"call_waiter_", ActionCallNamedWaiter},
}

var tokenNames = func() map[ActionKind]string {
	names := make(map[ActionKind]string, len(exactTokens))
	for token, kind := range exactTokens {
		if kind == ActionRestart && token != "restart" {
			continue
		}
		names[kind] = token
	}
	return names
}()

var tokenPrefixes = func() map[ActionKind]string {
	prefixes := make(map[ActionKind]string, len(prefixTokens))
	for _, p := range prefixTokens {
		prefixes[p.kind] = p.prefix
	}
	return prefixes
}()

// ParseAction turns a canonical token into an Action. Anything that is
// not a known token, or a prefixed token with an empty payload, is text.
func ParseAction(token string) Action {
	trimmed := strings.TrimSpace(token)
	if kind, ok := exactTokens[strings.ToLower(trimmed)]; ok {
		return Action{Kind: kind}
	}
	for _, p := range prefixTokens {
		if strings.HasPrefix(trimmed, p.prefix) && len(trimmed) > len(p.prefix) {
			return Action{Kind: p.kind, Arg: trimmed[len(p.prefix):]}
		}
	}
	return Text(trimmed)
}

// Token renders the action back into its canonical string
func (a Action) Token() string {
	if prefix, ok := tokenPrefixes[a.Kind]; ok {
		return prefix + a.Arg
	}
	if name, ok := tokenNames[a.Kind]; ok {
		return name
	}
	return a.Arg
}

// Int parses the payload as a number
func (a Action) Int() (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(a.Arg))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Is reports whether the action is of the given kind
func (a Action) Is(kind ActionKind) bool {
	return a.Kind == kind
}

func (a Action) String() string {
	return a.Token()
}

// Constructors for the parameterised kinds

func Text(raw string) Action { return Action{Kind: ActionText, Arg: raw} }
func Simple(kind ActionKind) Action { return Action{Kind: kind} }
func PickRestaurant(id string) Action { return Action{Kind: ActionPickRestaurant, Arg: id} }
func PickTable(id string) Action { return Action{Kind: ActionPickTable, Arg: id} }
func ViewCategory(id string) Action { return Action{Kind: ActionViewCategory, Arg: id} }
func ViewItem(id string) Action { return Action{Kind: ActionViewItem, Arg: id} }
func AddItem(id string) Action { return Action{Kind: ActionAddItem, Arg: id} }
func Quantity(n int) Action { return Action{Kind: ActionQuantity, Arg: strconv.Itoa(n)} }
func DecrementLine(itemID string) Action { return Action{Kind: ActionDecrementLine, Arg: itemID} }
func RemoveLine(itemID string) Action { return Action{Kind: ActionRemoveLine, Arg: itemID} }
func Provider(name string) Action { return Action{Kind: ActionProvider, Arg: name} }
func Rate(n int) Action { return Action{Kind: ActionRate, Arg: strconv.Itoa(n)} }
func TipAmount(amount int) Action { return Action{Kind: ActionTip, Arg: strconv.Itoa(amount)} }
func CallNamedWaiter(name string) Action { return Action{Kind: ActionCallNamedWaiter, Arg: name} }
