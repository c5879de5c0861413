package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ID is a backend identifier. The API returns ids both as numbers and strings.
type ID string

func (id ID) String() string {
	return string(id)
}

// UnmarshalJSON accepts 45, "45" and null
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(data), err)
	}
	*id = ID(n.String())
	return nil
}

// Money is an amount in Tanzanian shillings
type Money float64

// UnmarshalJSON accepts 5000, 5000.00 and "5000.00"
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
		if raw == "" {
			*m = 0
			return nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", string(data), err)
	}
	*m = Money(v)
	return nil
}

// Shillings rounds the amount to whole shillings
func (m Money) Shillings() int64 {
	return int64(math.Round(float64(m)))
}

// Restaurant is a search or verification hit
type Restaurant struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Location    string `json:"location"`
	TableNumber string `json:"table_number,omitempty"`
}

// Category groups menu items
type Category struct {
	ID    ID         `json:"id"`
	Name  string     `json:"name"`
	Items []MenuItem `json:"menu_items"`
}

// AvailableItems filters out items the kitchen has switched off
func (c Category) AvailableItems() []MenuItem {
	items := make([]MenuItem, 0, len(c.Items))
	for _, item := range c.Items {
		if item.IsAvailable() {
			items = append(items, item)
		}
	}
	return items
}

// MenuItem is a dish or drink
type MenuItem struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Price       Money  `json:"price"`
	Available   *bool  `json:"is_available,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// IsAvailable treats a missing flag as available
func (i MenuItem) IsAvailable() bool {
	return i.Available == nil || *i.Available
}

// Table is a restaurant table
type Table struct {
	ID       ID     `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// OrderLine is an item as submitted to the backend
type OrderLine struct {
	MenuItemID string  `json:"menu_item_id"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
	Total      float64 `json:"total"`
	Subtotal   float64 `json:"subtotal"`
}

// OrderRequest is the body of a create-order call
type OrderRequest struct {
	RestaurantID  string      `json:"restaurant_id"`
	TableNumber   string      `json:"table_number"`
	CustomerPhone string      `json:"customer_phone"`
	Total         float64     `json:"total"`
	Items         []OrderLine `json:"items"`
}

// NewOrderRequest builds the request from a cart; the total is client computed
func NewOrderRequest(restaurantID, tableNumber, phone string, cart []CartLine) OrderRequest {
	req := OrderRequest{
		RestaurantID:  restaurantID,
		TableNumber:   tableNumber,
		CustomerPhone: phone,
		Items:         make([]OrderLine, 0, len(cart)),
	}
	for _, line := range cart {
		subtotal := float64(line.Subtotal())
		req.Items = append(req.Items, OrderLine{
			MenuItemID: line.ItemID,
			Quantity:   line.Quantity,
			Price:      float64(line.UnitPrice),
			Total:      subtotal,
			Subtotal:   subtotal,
		})
		req.Total += subtotal
	}
	return req
}

// OrderConfirmation is what the backend returns for a created order
type OrderConfirmation struct {
	OrderID ID     `json:"order_id"`
	Total   Money  `json:"total"`
	Message string `json:"message"`
}

// OrderStatus is a poll result
type OrderStatus struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	Total         Money  `json:"total"`
}

// IsPaid reports whether the backend has seen the payment
func (s OrderStatus) IsPaid() bool {
	return strings.EqualFold(s.PaymentStatus, "paid")
}

// ActiveOrderItem is a line of a live order
type ActiveOrderItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// ActiveOrder is the live order for a table
type ActiveOrder struct {
	ID         ID                `json:"id"`
	Status     string            `json:"status"`
	WaiterName string            `json:"waiter_name"`
	Items      []ActiveOrderItem `json:"items"`
	Total      Money             `json:"total"`
}

// UssdPaymentRequest asks the backend to push a mobile money prompt
type UssdPaymentRequest struct {
	OrderID     string  `json:"order_id"`
	PhoneNumber string  `json:"phone_number"`
	Amount      float64 `json:"amount"`
	Provider    string  `json:"provider"`
}

// Feedback is a rating with an optional comment
type Feedback struct {
	RestaurantID  string `json:"restaurant_id"`
	CustomerPhone string `json:"customer_phone"`
	Rating        int    `json:"rating"`
	Comment       string `json:"comment"`
}

// Tip is a fixed amount left for the waiter
type Tip struct {
	RestaurantID string `json:"restaurant_id"`
	OrderID      string `json:"order_id"`
	Amount       int    `json:"amount"`
}

// Waiter request types
const (
	RequestCallWaiter  = "call_waiter"
	RequestBill        = "request_bill"
	RequestNamedWaiter = "call_waiter_"
)

// WaiterRequest is a service request raised from a table
type WaiterRequest struct {
	RestaurantID string `json:"restaurant_id"`
	TableNumber  string `json:"table_number"`
	RequestType  string `json:"request_type"`
}

// Waiter is a staff member that can be called
type Waiter struct {
	Name string `json:"name"`
}
