package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taptap-tz/taptap-bot/internal/models"
)

var errBackendDown = errors.New("backend down")

// stubGateway is an in-memory backend. Fields are read under mu so the
// conversation manager tests can share one across goroutines.
type stubGateway struct {
	mu sync.Mutex

	restaurants map[string]models.Restaurant
	search      []models.Restaurant
	searchErr   error
	menu        []models.Category
	menuErr     error
	menuCalls   int
	details     map[string]models.MenuItem
	tables      []models.Table

	failOrders    int
	orderID       string
	orderTotal    models.Money
	orderRequests []models.OrderRequest
	orderKeys     []string

	status      models.OrderStatus
	statusErr   error
	statusCalls int
	activeOrder *models.ActiveOrder
	activeErr   error

	ussdRequests []models.UssdPaymentRequest
	ussdErr      error
	feedback     []models.Feedback
	feedbackErr  error
	tips         []models.Tip
	tipErr       error
	waiterCalls  []models.WaiterRequest
	waiterErr    error
	waiters      []models.Waiter

	panicOnMenu bool
}

func available(v bool) *bool { return &v }

func newStubGateway() *stubGateway {
	return &stubGateway{
		restaurants: map[string]models.Restaurant{
			"45": {ID: "45", Name: "Samaki Grill", Location: "Masaki"},
			"46": {ID: "46", Name: "Mama Ntilie", Location: "Kariakoo"},
		},
		search: []models.Restaurant{{ID: "45", Name: "Samaki Grill", Location: "Masaki"}},
		menu: []models.Category{
			{ID: "3", Name: "Vyakula", Items: []models.MenuItem{
				{ID: "10", Name: "Pilau", Price: 6000, Available: available(true)},
				{ID: "11", Name: "Chips Mayai", Price: 4500},
				{ID: "12", Name: "Biriani", Price: 9000, Available: available(false)},
			}},
			{ID: "4", Name: "Vinywaji", Items: []models.MenuItem{
				{ID: "20", Name: "Soda", Price: 1000},
			}},
		},
		details: map[string]models.MenuItem{
			"10": {ID: "10", Name: "Pilau", Price: 6000, Description: "Pilau ya nyama", Image: "https://cdn.example.com/pilau.jpg"},
		},
		tables:  []models.Table{{ID: "1", Name: "1", Capacity: 4}, {ID: "2", Name: "2", Capacity: 2}},
		orderID: "42",
		status:  models.OrderStatus{Status: "pending", PaymentStatus: "unpaid"},
		waiters: []models.Waiter{{Name: "Asha"}, {Name: "Juma"}},
	}
}

func (g *stubGateway) VerifyRestaurant(_ context.Context, restaurantID, _ string) (*models.Restaurant, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.restaurants[restaurantID]
	if !ok {
		return nil, &GatewayError{Operation: "verify-restaurant", StatusCode: 404, Message: "not found"}
	}
	return &r, nil
}

func (g *stubGateway) SearchRestaurant(_ context.Context, _ string) ([]models.Restaurant, int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.searchErr != nil {
		return nil, 0, g.searchErr
	}
	return g.search, len(g.search), nil
}

func (g *stubGateway) GetFullMenu(_ context.Context, _ string) ([]models.Category, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.panicOnMenu {
		panic("menu exploded")
	}
	g.menuCalls++
	if g.menuErr != nil {
		return nil, g.menuErr
	}
	menu := make([]models.Category, len(g.menu))
	for i, c := range g.menu {
		menu[i] = c
		menu[i].Items = append([]models.MenuItem(nil), c.Items...)
	}
	return menu, nil
}

func (g *stubGateway) GetItemDetail(_ context.Context, itemID string) (*models.MenuItem, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	item, ok := g.details[itemID]
	if !ok {
		return nil, &GatewayError{Operation: "item-detail", StatusCode: 404}
	}
	return &item, nil
}

func (g *stubGateway) GetRestaurantTables(_ context.Context, _ string) ([]models.Table, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tables, nil
}

func (g *stubGateway) CreateOrder(_ context.Context, req models.OrderRequest, key string) (*models.OrderConfirmation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orderRequests = append(g.orderRequests, req)
	g.orderKeys = append(g.orderKeys, key)
	if g.failOrders > 0 {
		g.failOrders--
		return nil, &GatewayError{Operation: "create-order", StatusCode: 503, Message: "busy"}
	}
	total := g.orderTotal
	if total == 0 {
		total = models.Money(req.Total)
	}
	return &models.OrderConfirmation{OrderID: models.ID(g.orderID), Total: total}, nil
}

func (g *stubGateway) GetOrderStatus(_ context.Context, _ string) (*models.OrderStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	status := g.status
	return &status, nil
}

func (g *stubGateway) GetActiveOrder(_ context.Context, _, _ string) (*models.ActiveOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.activeErr != nil {
		return nil, g.activeErr
	}
	return g.activeOrder, nil
}

func (g *stubGateway) InitiateUssdPayment(_ context.Context, req models.UssdPaymentRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ussdRequests = append(g.ussdRequests, req)
	if g.ussdErr != nil {
		return "", g.ussdErr
	}
	return "pay-1", nil
}

func (g *stubGateway) SubmitFeedback(_ context.Context, feedback models.Feedback) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.feedback = append(g.feedback, feedback)
	return g.feedbackErr
}

func (g *stubGateway) SubmitTip(_ context.Context, tip models.Tip) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tips = append(g.tips, tip)
	return g.tipErr
}

func (g *stubGateway) CallWaiter(_ context.Context, req models.WaiterRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.waiterCalls = append(g.waiterCalls, req)
	return g.waiterErr
}

func (g *stubGateway) GetWaiters(_ context.Context, _ string) ([]models.Waiter, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.waiters, nil
}

// flowHarness drives one conversation through the ordering flow
type flowHarness struct {
	t       *testing.T
	api     *stubGateway
	flow    *OrderingFlow
	out     *RecordingSender
	session *models.Session
}

func newFlowHarness(t *testing.T) *flowHarness {
	api := newStubGateway()
	return &flowHarness{
		t:       t,
		api:     api,
		flow:    NewOrderingFlow(api, nil),
		out:     NewRecordingSender(),
		session: models.NewSession("whatsapp:+255712345678"),
	}
}

// send runs one turn and returns what was sent during it
func (h *flowHarness) send(text string) []OutboundMessage {
	h.t.Helper()
	h.out.Reset()
	require.NoError(h.t, h.flow.Handle(context.Background(), h.out, h.session, text))
	require.True(h.t, h.session.State.IsValid(), "invalid state %q after %q", h.session.State, text)
	msgs := h.out.Messages()
	require.NotEmpty(h.t, msgs, "nothing rendered for %q", text)
	return msgs
}

// say runs one turn and returns the final screen text
func (h *flowHarness) say(text string) string {
	h.t.Helper()
	msgs := h.send(text)
	return msgs[len(msgs)-1].Text
}

// seated binds the session to restaurant 45 table 7 through a QR scan
func (h *flowHarness) seated() {
	h.t.Helper()
	h.say("START|R=45|T=7")
	require.Equal(h.t, models.StateHome, h.session.State)
}

// addItem walks menu hub, category, item and quick quantity from HOME
func (h *flowHarness) addItem(categoryKey, itemKey, quantity string) {
	h.t.Helper()
	require.Equal(h.t, models.StateHome, h.session.State)
	h.say("1")         // menu hub
	h.say(categoryKey) // items list
	h.say(itemKey)     // item detail
	h.say("1")         // add
	h.say(quantity)    // quick quantity
	require.Equal(h.t, models.StateCart, h.session.State)
	h.say("3") // home
}
