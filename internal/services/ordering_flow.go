package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"time"

	"github.com/taptap-tz/taptap-bot/internal/models"
)

const (
	welcomeText = "━━━━━━━━ ✨ ━━━━━━━━\n" +
		"👋 Karibu TAPTAP!\n" +
		"📲 Oda chakula kupitia WhatsApp\n" +
		"✍️ Andika jina la restaurant unayotaka\n" +
		"au 📷 Scan QR (ipo mezani)\n" +
		"━━━━━━━━ ✅ ━━━━━━━━"

	msgUnknownState   = `Samahani, sijakuelewa. Andika "Hi" kuanza upya.`
	msgTechnicalError = "❌ Kuna tatizo la kiufundi. Jaribu tena."
)

var errNoRestaurant = errors.New("session has no restaurant")

type stateHandler func(ctx context.Context, s *models.Session, a models.Action) (Turn, error)

// OrderingFlow is the per-conversation state machine. Each inbound token
// is dispatched to the handler of the session's current state; the
// handler mutates the session and returns the screen to render next.
type OrderingFlow struct {
	api      Gateway
	renderer *Renderer
	metrics  *Metrics
	handlers map[models.State]stateHandler
}

// NewOrderingFlow wires every state to its handler
func NewOrderingFlow(api Gateway, metrics *Metrics) *OrderingFlow {
	f := &OrderingFlow{
		api:      api,
		renderer: NewRenderer(metrics),
		metrics:  metrics,
	}

	f.handlers = map[models.State]stateHandler{
		models.StateStart:            f.handleStart,
		models.StateSearchRestaurant: f.handleSearchRestaurant,
		models.StatePickTable:        f.handleTable,
		models.StateTableInput:       f.handleTable,
		models.StateHome:             f.handleHome,
		models.StateMenuHub:          f.handleMenuHub,
		models.StateSearchFood:       f.handleSearchFood,
		models.StateCategories:       f.handleCategories,
		models.StateItemsList:        f.handleItemsList,
		models.StateItemDetail:       f.handleItemDetail,
		models.StateQuantity:         f.handleQuantity,
		models.StateQuantityMore:     f.handleQuantityMore,
		models.StateCart:             f.handleCart,
		models.StateCartEdit:         f.handleCartEdit,
		models.StateConfirmOrder:     f.handleConfirmOrder,
		models.StatePaymentSummary:   f.handlePaymentSummary,
		models.StateCashPayment:      f.handleCashPayment,
		models.StateProviderSelect:   f.handleProviderSelect,
		models.StateUssdNumber:       f.handleUssdNumber,
		models.StatePayNow:           f.handlePayNow,
		models.StateUssdPending:      f.handleUssdPending,
		models.StateManualUssd:       f.handleManualUssd,
		models.StateTrackStatus:      f.handleTrackStatus,
		models.StateFeedback:         f.handleFeedback,
		models.StateFeedbackB:        f.handleFeedback,
		models.StateFeedbackComment:  f.handleFeedbackComment,
		models.StateTip:              f.handleTip,
		models.StateCallWaiter:       f.handleCallWaiter,
		models.StateWaitersList:      f.handleWaitersList,
	}

	return f
}

// Handle runs one turn: normalize, dispatch, send notices, render.
// Handler failures never escape; they become the technical error screen.
// The returned error is a transport failure on the final screen.
func (f *OrderingFlow) Handle(ctx context.Context, out Sender, session *models.Session, text string) error {
	started := time.Now()
	token := Normalize(text, session.MenuOptions)
	log.Printf("[%s] From: %s | Text: %q | Action: %q", session.State, session.ConversationID, text, token)

	turn, err := f.dispatch(ctx, session, token)
	if err != nil {
		log.Printf("❌ Handler error in %s for %s: %v", session.State, session.ConversationID, err)
		f.metrics.HandlerError()
		turn = screenTurn(TextScreen(models.StateStart, msgTechnicalError))
	}

	for _, notice := range turn.Notices {
		if err := f.renderer.Notify(ctx, out, session, notice); err != nil {
			log.Printf("⚠️  %v", err)
		}
	}

	renderErr := f.renderer.Render(ctx, out, session, turn.Screen)
	f.metrics.Turn(session.State, time.Since(started))
	return renderErr
}

func (f *OrderingFlow) dispatch(ctx context.Context, session *models.Session, token string) (turn Turn, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Panic in %s: %v\n%s", session.State, r, debug.Stack())
			err = fmt.Errorf("panic in %s: %v", session.State, r)
		}
	}()

	if IsDeepLink(token) {
		return f.handleDeepLink(ctx, session, token)
	}

	action := models.ParseAction(token)
	if action.Is(models.ActionRestart) {
		if takesFreeText(session) {
			action = models.Text(token)
		} else {
			log.Printf("🔄 Session reset for %s", session.ConversationID)
			session.Reset()
			return screenTurn(welcomeScreen()), nil
		}
	}

	handler, ok := f.handlers[session.State]
	if !ok {
		log.Printf("⚠️  Unknown state %q for %s", session.State, session.ConversationID)
		return screenTurn(TextScreen(models.StateStart, msgUnknownState)), nil
	}

	if needsRestaurant(session.State) && !session.HasRestaurant() {
		return Turn{}, fmt.Errorf("%s: %w", session.State, errNoRestaurant)
	}

	return handler(ctx, session, action)
}

// takesFreeText reports whether the current prompt stores whatever is typed,
// so "restart" there is a comment or transaction id rather than a command.
func takesFreeText(s *models.Session) bool {
	switch s.State {
	case models.StateFeedbackComment:
		return true
	case models.StateManualUssd:
		return len(s.MenuOptions) == 0
	}
	return false
}

func needsRestaurant(state models.State) bool {
	switch state {
	case models.StateStart, models.StateSearchRestaurant:
		return false
	}
	return true
}

func welcomeScreen() Screen {
	return TextScreen(models.StateSearchRestaurant, welcomeText)
}

// compact drops whitespace the way menu labels are written
func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func (f *OrderingFlow) homeScreen(s *models.Session) Screen {
	name := s.RestaurantName
	if name == "" {
		name = "Restaurant"
	}
	table := s.TableNumber
	if table == "" {
		table = "-"
	}

	return ListScreen(models.StateHome, "🐟✨",
		fmt.Sprintf("👋Karibu %s(Meza%s)", compact(name), table),
		Section{Title: "🍽️MENU", Options: []Option{
			opt(models.Simple(models.ActionGoMenu), "🍛AgizaChakula"),
			opt(models.Simple(models.ActionSearchFood), "🔎Tafuta"),
		}},
		Section{Title: "🛒ODA", Options: []Option{
			opt(models.Simple(models.ActionGoCart), fmt.Sprintf("📦OdaYangu(%d)", len(s.Cart))),
			opt(models.Simple(models.ActionGoPayment), "💳Lipa"),
		}},
		Section{Title: "🧩HUDUMA", Options: []Option{
			opt(models.Simple(models.ActionTrackOrder), "📡Fuatilia"),
			opt(models.Simple(models.ActionCallWaiter), "🙋Mhudumu"),
			opt(models.Simple(models.ActionGoFeedback), "🗣️Maoni"),
		}},
	)
}

// home renders the home screen, or the welcome screen while no restaurant
// is bound.
func (f *OrderingFlow) home(s *models.Session, notices ...string) Turn {
	if !s.HasRestaurant() {
		return screenTurn(welcomeScreen(), notices...)
	}
	return screenTurn(f.homeScreen(s), notices...)
}

// handleHome routes the home menu. Typed keywords work as well as numbers.
// Writes: nothing directly.
func (f *OrderingFlow) handleHome(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionGoMenu:
		return f.menuHub(ctx, s), nil
	case models.ActionSearchFood:
		return f.searchFoodPrompt(ctx, s), nil
	case models.ActionGoCart:
		return f.cart(s), nil
	case models.ActionGoPayment:
		return f.paymentSummary(s), nil
	case models.ActionTrackOrder:
		return f.trackStatus(ctx, s), nil
	case models.ActionGoFeedback:
		return screenTurn(feedbackScreenA()), nil
	case models.ActionCallWaiter:
		return screenTurn(callWaiterScreen()), nil
	case models.ActionText:
		return f.homeKeyword(ctx, s, strings.ToLower(a.Arg)), nil
	}
	return f.home(s), nil
}

func (f *OrderingFlow) homeKeyword(ctx context.Context, s *models.Session, text string) Turn {
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(text, w) {
				return true
			}
		}
		return false
	}

	switch {
	case has("menu", "chakula"):
		return f.menuHub(ctx, s)
	case has("cart", "oda"):
		return f.cart(s)
	case has("lipa", "malipo"):
		return f.paymentSummary(s)
	case has("track", "fuatilia"):
		return f.trackStatus(ctx, s)
	case has("feedback", "maoni"):
		return screenTurn(feedbackScreenA())
	case has("waiter", "mhudumu"):
		return screenTurn(callWaiterScreen())
	}
	return f.home(s)
}
