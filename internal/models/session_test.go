package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	s := NewSession("whatsapp:+255712345678")

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, StateStart, s.State)
	assert.Empty(t, s.Cart)
	assert.NotNil(t, s.MenuOptions)
	assert.Equal(t, 1, s.PendingQuantity)
	assert.False(t, s.HasRestaurant())
}

func TestSessionReset(t *testing.T) {
	s := NewSession("c1")
	id, created := s.ID, s.CreatedAt
	s.RestaurantID = "9"
	s.State = StateCart
	s.AddToCart(MenuItem{ID: "1", Name: "Chips", Price: 3000}, 2)

	s.Reset()

	assert.Equal(t, id, s.ID)
	assert.Equal(t, created, s.CreatedAt)
	assert.Equal(t, "c1", s.ConversationID)
	assert.Equal(t, StateStart, s.State)
	assert.Empty(t, s.RestaurantID)
	assert.Empty(t, s.Cart)
}

func TestAddToCartMergesLines(t *testing.T) {
	s := NewSession("c1")
	chips := MenuItem{ID: "1", Name: "Chips", Price: 3000}
	soda := MenuItem{ID: "2", Name: "Soda", Price: 1000}

	s.AddToCart(chips, 2)
	s.AddToCart(soda, 1)
	line := s.AddToCart(chips, 3)

	require.Len(t, s.Cart, 2)
	assert.Equal(t, 5, line.Quantity)
	assert.Equal(t, Money(16000), s.CartTotal())
}

func TestAddToCartKeepsSnapshotPrice(t *testing.T) {
	s := NewSession("c1")
	s.AddToCart(MenuItem{ID: "1", Name: "Chips", Price: 3000}, 1)
	s.AddToCart(MenuItem{ID: "1", Name: "Chips Mayai", Price: 3500}, 1)

	require.Len(t, s.Cart, 1)
	assert.Equal(t, "Chips", s.Cart[0].Name)
	assert.Equal(t, Money(6000), s.CartTotal())
}

func TestAddToCartFloorsQuantity(t *testing.T) {
	s := NewSession("c1")
	line := s.AddToCart(MenuItem{ID: "1", Price: 100}, 0)
	assert.Equal(t, 1, line.Quantity)
}

func TestDecrementCartLine(t *testing.T) {
	s := NewSession("c1")
	s.AddToCart(MenuItem{ID: "1", Name: "Chips", Price: 3000}, 2)

	assert.True(t, s.DecrementCartLine("1"))
	require.Len(t, s.Cart, 1)
	assert.Equal(t, 1, s.Cart[0].Quantity)

	assert.True(t, s.DecrementCartLine("1"))
	assert.Empty(t, s.Cart)

	assert.False(t, s.DecrementCartLine("1"))
}

func TestRemoveCartLine(t *testing.T) {
	s := NewSession("c1")
	s.AddToCart(MenuItem{ID: "1", Name: "Chips", Price: 3000}, 2)
	s.AddToCart(MenuItem{ID: "2", Name: "Soda", Price: 1000}, 1)

	removed, ok := s.RemoveCartLine("1")
	assert.True(t, ok)
	assert.Equal(t, "Chips", removed.Name)
	assert.Len(t, s.Cart, 1)

	_, ok = s.RemoveCartLine("missing")
	assert.False(t, ok)
}

func TestFindMenuItem(t *testing.T) {
	s := NewSession("c1")
	s.MenuCache = []Category{
		{ID: "10", Name: "Vyakula", Items: []MenuItem{{ID: "1", Name: "Pilau"}}},
		{ID: "20", Name: "Vinywaji", Items: []MenuItem{{ID: "2", Name: "Juice"}}},
	}

	require.NotNil(t, s.FindMenuItem("2"))
	assert.Equal(t, "Juice", s.FindMenuItem("2").Name)
	assert.Nil(t, s.FindMenuItem("3"))
	assert.Equal(t, "Vinywaji", s.FindCategory("20").Name)
	assert.Nil(t, s.FindCategory("30"))
}

func TestStateIsValid(t *testing.T) {
	for _, s := range AllStates {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, State("LIMBO").IsValid())
}

func TestIDAndMoneyDecoding(t *testing.T) {
	var item MenuItem
	require.NoError(t, json.Unmarshal([]byte(`{"id":45,"name":"Pilau","price":"7,500.00","is_available":false}`), &item))

	assert.Equal(t, ID("45"), item.ID)
	assert.Equal(t, Money(7500), item.Price)
	assert.False(t, item.IsAvailable())

	require.NoError(t, json.Unmarshal([]byte(`{"id":"abc","price":1200.5}`), &item))
	assert.Equal(t, ID("abc"), item.ID)
	assert.Equal(t, int64(1201), item.Price.Shillings())

	assert.Error(t, json.Unmarshal([]byte(`{"price":"free"}`), &item))
}

func TestNewOrderRequest(t *testing.T) {
	cart := []CartLine{
		{ItemID: "1", Name: "Chips", UnitPrice: 3000, Quantity: 2},
		{ItemID: "2", Name: "Soda", UnitPrice: 1000, Quantity: 1},
	}

	req := NewOrderRequest("9", "4", "255712345678", cart)

	assert.Equal(t, 7000.0, req.Total)
	require.Len(t, req.Items, 2)
	assert.Equal(t, OrderLine{MenuItemID: "1", Quantity: 2, Price: 3000, Total: 6000, Subtotal: 6000}, req.Items[0])
}
