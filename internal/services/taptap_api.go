package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/taptap-tz/taptap-bot/internal/models"
)

// Gateway is the TAPTAP bot backend as seen by the ordering flow
type Gateway interface {
	VerifyRestaurant(ctx context.Context, restaurantID, tableNumber string) (*models.Restaurant, error)
	SearchRestaurant(ctx context.Context, query string) ([]models.Restaurant, int, error)
	GetFullMenu(ctx context.Context, restaurantID string) ([]models.Category, error)
	GetItemDetail(ctx context.Context, itemID string) (*models.MenuItem, error)
	GetRestaurantTables(ctx context.Context, restaurantID string) ([]models.Table, error)
	CreateOrder(ctx context.Context, req models.OrderRequest, idempotencyKey string) (*models.OrderConfirmation, error)
	GetOrderStatus(ctx context.Context, orderID string) (*models.OrderStatus, error)
	// GetActiveOrder returns nil without error when the table has no live order
	GetActiveOrder(ctx context.Context, restaurantID, tableNumber string) (*models.ActiveOrder, error)
	InitiateUssdPayment(ctx context.Context, req models.UssdPaymentRequest) (string, error)
	SubmitFeedback(ctx context.Context, feedback models.Feedback) error
	SubmitTip(ctx context.Context, tip models.Tip) error
	CallWaiter(ctx context.Context, req models.WaiterRequest) error
	GetWaiters(ctx context.Context, restaurantID string) ([]models.Waiter, error)
}

// GatewayError is a backend refusal: success=false or a non-2xx status
type GatewayError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed with status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.Operation, e.StatusCode, e.Message)
}

// IsGatewayError reports whether err carries a backend refusal
func IsGatewayError(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr)
}

// envelope is the common shape of every bot API response
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Count   int             `json:"count"`
	Data    json.RawMessage `json:"data"`
	Order   json.RawMessage `json:"order"`
}

func (e envelope) message() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// TaptapAPI talks to the bot REST API
type TaptapAPI struct {
	baseURL string
	token   string
	timeout time.Duration
	metrics *Metrics
}

// NewTaptapAPI creates a client for baseURL authenticated with a bot token
func NewTaptapAPI(baseURL, token string, timeout time.Duration) *TaptapAPI {
	return &TaptapAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
	}
}

// WithMetrics counts failed calls per operation
func (a *TaptapAPI) WithMetrics(m *Metrics) *TaptapAPI {
	a.metrics = m
	return a
}

func (a *TaptapAPI) url(path string, segments ...string) string {
	escaped := make([]interface{}, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return a.baseURL + fmt.Sprintf(path, escaped...)
}

func (a *TaptapAPI) get(ctx context.Context, op, target string, query url.Values) ([]byte, *envelope, error) {
	agent := fiber.Get(target)
	if len(query) > 0 {
		agent.QueryString(query.Encode())
	}
	return a.do(ctx, op, agent)
}

func (a *TaptapAPI) post(ctx context.Context, op, target string, body interface{}, headers map[string]string) ([]byte, *envelope, error) {
	agent := fiber.Post(target)
	for k, v := range headers {
		agent.Set(k, v)
	}
	agent.JSON(body)
	return a.do(ctx, op, agent)
}

func (a *TaptapAPI) do(ctx context.Context, op string, agent *fiber.Agent) ([]byte, *envelope, error) {
	if err := ctx.Err(); err != nil {
		fiber.ReleaseAgent(agent)
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if a.token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+a.token)
	}

	timeout := a.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}
	if timeout > 0 {
		agent.Timeout(timeout)
	}

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		a.metrics.GatewayFailure(op)
		log.Printf("❌ API %s failed: %v", op, errs[0])
		return nil, nil, fmt.Errorf("%s: %w", op, errs[0])
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		a.metrics.GatewayFailure(op)
		if status < 200 || status >= 300 {
			return nil, nil, &GatewayError{Operation: op, StatusCode: status, Message: truncate(string(bytes.TrimSpace(body)), 200)}
		}
		return nil, nil, fmt.Errorf("%s: invalid response: %w", op, err)
	}

	if status < 200 || status >= 300 || !env.Success {
		a.metrics.GatewayFailure(op)
		log.Printf("❌ API %s refused (%d): %s", op, status, env.message())
		return nil, nil, &GatewayError{Operation: op, StatusCode: status, Message: env.message()}
	}

	return body, &env, nil
}

// decodeFlat reads fields the API puts either at the top level or under data
func decodeFlat(op string, body []byte, env *envelope, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%s: invalid response: %w", op, err)
	}
	if hasObject(env.Data) {
		if err := json.Unmarshal(env.Data, v); err != nil {
			return fmt.Errorf("%s: invalid data: %w", op, err)
		}
	}
	return nil
}

func decodeData(op string, env *envelope, v interface{}) error {
	if !hasValue(env.Data) {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%s: invalid data: %w", op, err)
	}
	return nil
}

func hasValue(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func hasObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// VerifyRestaurant checks a QR deep link
func (a *TaptapAPI) VerifyRestaurant(ctx context.Context, restaurantID, tableNumber string) (*models.Restaurant, error) {
	const op = "verify-restaurant"
	query := url.Values{"restaurant_id": {restaurantID}}
	if tableNumber != "" {
		query.Set("table_number", tableNumber)
	}

	_, env, err := a.get(ctx, op, a.url("/verify-restaurant"), query)
	if err != nil {
		return nil, err
	}

	restaurant := &models.Restaurant{ID: models.ID(restaurantID)}
	if err := decodeData(op, env, restaurant); err != nil {
		return nil, err
	}
	return restaurant, nil
}

// SearchRestaurant finds restaurants by name. The count is the backend's
// total, which may exceed the returned page.
func (a *TaptapAPI) SearchRestaurant(ctx context.Context, query string) ([]models.Restaurant, int, error) {
	const op = "search-restaurant"
	_, env, err := a.get(ctx, op, a.url("/search-restaurant"), url.Values{"query": {query}})
	if err != nil {
		return nil, 0, err
	}

	var restaurants []models.Restaurant
	if err := decodeData(op, env, &restaurants); err != nil {
		return nil, 0, err
	}
	count := env.Count
	if count < len(restaurants) {
		count = len(restaurants)
	}
	return restaurants, count, nil
}

// GetFullMenu fetches categories with their items
func (a *TaptapAPI) GetFullMenu(ctx context.Context, restaurantID string) ([]models.Category, error) {
	const op = "full-menu"
	_, env, err := a.get(ctx, op, a.url("/restaurant/%s/full-menu", restaurantID), nil)
	if err != nil {
		return nil, err
	}

	var categories []models.Category
	if err := decodeData(op, env, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// GetItemDetail fetches description and image of one item
func (a *TaptapAPI) GetItemDetail(ctx context.Context, itemID string) (*models.MenuItem, error) {
	const op = "item-detail"
	_, env, err := a.get(ctx, op, a.url("/item/%s", itemID), nil)
	if err != nil {
		return nil, err
	}

	item := &models.MenuItem{ID: models.ID(itemID)}
	if err := decodeData(op, env, item); err != nil {
		return nil, err
	}
	return item, nil
}

// GetRestaurantTables lists tables, trying both routes the backend has used
func (a *TaptapAPI) GetRestaurantTables(ctx context.Context, restaurantID string) ([]models.Table, error) {
	const op = "restaurant-tables"
	_, env, err := a.get(ctx, op, a.url("/restaurant/%s/tables", restaurantID), nil)
	if err != nil {
		log.Printf("⚠️  Tables route failed for restaurant %s, trying /tables: %v", restaurantID, err)
		_, env, err = a.get(ctx, op, a.url("/tables"), url.Values{"restaurant_id": {restaurantID}})
		if err != nil {
			return nil, err
		}
	}

	var tables []models.Table
	if err := decodeData(op, env, &tables); err != nil {
		return nil, err
	}
	return tables, nil
}

// CreateOrder submits the cart. Retries must reuse idempotencyKey.
func (a *TaptapAPI) CreateOrder(ctx context.Context, req models.OrderRequest, idempotencyKey string) (*models.OrderConfirmation, error) {
	const op = "create-order"
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}

	body, env, err := a.post(ctx, op, a.url("/order"), req, headers)
	if err != nil {
		return nil, err
	}

	var confirmation models.OrderConfirmation
	if err := decodeFlat(op, body, env, &confirmation); err != nil {
		return nil, err
	}
	if confirmation.OrderID == "" {
		return nil, &GatewayError{Operation: op, StatusCode: fiber.StatusOK, Message: "response has no order_id"}
	}

	log.Printf("✅ Order %s created, total %.0f", confirmation.OrderID, float64(confirmation.Total))
	return &confirmation, nil
}

// GetOrderStatus polls an order
func (a *TaptapAPI) GetOrderStatus(ctx context.Context, orderID string) (*models.OrderStatus, error) {
	const op = "order-status"
	body, env, err := a.get(ctx, op, a.url("/order/%s/status", orderID), nil)
	if err != nil {
		return nil, err
	}

	var status models.OrderStatus
	if err := decodeFlat(op, body, env, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetActiveOrder returns the live order of a table
func (a *TaptapAPI) GetActiveOrder(ctx context.Context, restaurantID, tableNumber string) (*models.ActiveOrder, error) {
	const op = "active-order"
	query := url.Values{"restaurant_id": {restaurantID}, "table_number": {tableNumber}}
	_, env, err := a.get(ctx, op, a.url("/active-order"), query)
	if err != nil {
		return nil, err
	}

	raw := env.Order
	if !hasValue(raw) {
		raw = env.Data
	}
	if !hasObject(raw) {
		return nil, nil
	}

	var order models.ActiveOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("%s: invalid order: %w", op, err)
	}
	return &order, nil
}

// InitiateUssdPayment pushes a mobile money prompt and returns the payment id
func (a *TaptapAPI) InitiateUssdPayment(ctx context.Context, req models.UssdPaymentRequest) (string, error) {
	const op = "ussd-payment"
	log.Printf("📱 USSD push for order %s via %s", req.OrderID, req.Provider)

	body, env, err := a.post(ctx, op, a.url("/payment/ussd"), req, nil)
	if err != nil {
		return "", err
	}

	var result struct {
		PaymentID models.ID `json:"payment_id"`
	}
	if err := decodeFlat(op, body, env, &result); err != nil {
		return "", err
	}
	return result.PaymentID.String(), nil
}

// SubmitFeedback stores a rating and comment
func (a *TaptapAPI) SubmitFeedback(ctx context.Context, feedback models.Feedback) error {
	_, _, err := a.post(ctx, "feedback", a.url("/feedback"), feedback, nil)
	return err
}

// SubmitTip records a tip for an order
func (a *TaptapAPI) SubmitTip(ctx context.Context, tip models.Tip) error {
	_, _, err := a.post(ctx, "tip", a.url("/tip"), tip, nil)
	return err
}

// CallWaiter raises a service request for a table
func (a *TaptapAPI) CallWaiter(ctx context.Context, req models.WaiterRequest) error {
	_, _, err := a.post(ctx, "call-waiter", a.url("/call-waiter"), req, nil)
	return err
}

// GetWaiters lists the staff that can be called by name
func (a *TaptapAPI) GetWaiters(ctx context.Context, restaurantID string) ([]models.Waiter, error) {
	const op = "waiters"
	_, env, err := a.get(ctx, op, a.url("/restaurant/%s/waiters", restaurantID), nil)
	if err != nil {
		return nil, err
	}

	var waiters []models.Waiter
	if err := decodeData(op, env, &waiters); err != nil {
		return nil, err
	}
	return waiters, nil
}
