package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/taptap-tz/taptap-bot/internal/models"
)

const maxSearchResults = 5
const maxTables = 10

var greetings = map[string]bool{
	"hi": true, "hello": true, "mambo": true, "habari": true,
	"niaje": true, "sasa": true, "hujambo": true,
}

const (
	msgQRFailed        = "Tatizo la kusoma QR. Andika jina la restaurant kuendelea."
	msgAskRestaurant   = "Andika jina la restaurant:"
	msgSearchFailed    = "❌Tatizo la kutafuta."
	msgNoRestaurant    = "Samahani, sijaipata. Jaribu tena."
	msgAskTable        = "Tafadhali andika namba ya meza uliyokaa (mfano: 7):"
	msgTypeTable       = "Andika namba ya meza (mfano: 7):"
	msgInvalidTable    = "Tafadhali andika namba sahihi ya meza."
	msgChooseFromList  = "Tafadhali chagua namba kati ya 1 na %d."
	defaultLocationTag = "Tanzania"
)

// bindRestaurant switches the dining context. Table, cart and menu belong
// to a restaurant, so they go when it changes.
// Writes: RestaurantID, RestaurantName, TableNumber, Cart, MenuCache,
// CurrentCategory, OrderAttemptKey, SearchResults.
func bindRestaurant(s *models.Session, id, name string) {
	if s.RestaurantID != id {
		s.TableNumber = ""
		s.ClearCart()
		s.MenuCache = nil
		s.CurrentCategory = ""
		s.OrderAttemptKey = ""
	}
	s.RestaurantID = id
	if name != "" {
		s.RestaurantName = name
	}
	s.SearchResults = nil
}

// handleDeepLink binds the conversation to the restaurant and table of a
// scanned QR code. Nothing is written unless the backend verifies it.
// Writes: see bindRestaurant, TableNumber.
func (f *OrderingFlow) handleDeepLink(ctx context.Context, s *models.Session, token string) (Turn, error) {
	link, err := ParseDeepLink(token)
	if err != nil {
		log.Printf("⚠️  Bad deep link %q from %s: %v", token, s.ConversationID, err)
		return screenTurn(TextScreen(models.StateSearchRestaurant, msgQRFailed)), nil
	}

	restaurant, err := f.api.VerifyRestaurant(ctx, link.RestaurantID, link.TableNumber)
	if err != nil {
		log.Printf("❌ Verify restaurant %s failed: %v", link.RestaurantID, err)
		return screenTurn(TextScreen(models.StateSearchRestaurant, msgQRFailed)), nil
	}

	bindRestaurant(s, link.RestaurantID, restaurant.Name)
	if link.TableNumber != "" {
		s.TableNumber = link.TableNumber
	}
	log.Printf("✅ %s joined %s (table %s)", s.ConversationID, s.RestaurantName, s.TableNumber)

	if s.TableNumber == "" {
		return f.tableSelection(ctx, s), nil
	}
	return f.home(s), nil
}

// handleStart greets or treats anything else as a restaurant name.
// Writes: SearchResults (via search).
func (f *OrderingFlow) handleStart(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	if a.Is(models.ActionHome) && s.HasRestaurant() {
		return f.home(s), nil
	}
	if a.Is(models.ActionText) && greetings[strings.ToLower(a.Arg)] {
		return screenTurn(welcomeScreen()), nil
	}
	return f.searchRestaurants(ctx, s, a.Token()), nil
}

// handleSearchRestaurant picks from the numbered results or searches again.
// Writes: see bindRestaurant, SearchResults.
func (f *OrderingFlow) handleSearchRestaurant(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionPickRestaurant:
		return f.pickRestaurant(ctx, s, a.Arg), nil
	case models.ActionSearchAgain:
		s.SearchResults = nil
		return screenTurn(TextScreen(models.StateSearchRestaurant, msgAskRestaurant)), nil
	case models.ActionHome:
		if s.HasRestaurant() {
			return f.home(s), nil
		}
	case models.ActionText:
		if _, err := strconv.Atoi(a.Arg); err == nil && len(s.SearchResults) > 0 {
			// A number that the list did not map is out of range
			return screenTurn(searchResultsScreen(s.SearchResults, len(s.SearchResults)),
				fmt.Sprintf(msgChooseFromList, len(s.SearchResults))), nil
		}
		if greetings[strings.ToLower(a.Arg)] {
			return screenTurn(welcomeScreen()), nil
		}
		return f.searchRestaurants(ctx, s, a.Arg), nil
	}

	if len(s.SearchResults) > 0 {
		return screenTurn(searchResultsScreen(s.SearchResults, len(s.SearchResults))), nil
	}
	return screenTurn(TextScreen(models.StateSearchRestaurant, msgAskRestaurant)), nil
}

// searchRestaurants runs a free text search and lists the first hits.
// Writes: SearchResults.
func (f *OrderingFlow) searchRestaurants(ctx context.Context, s *models.Session, query string) Turn {
	restaurants, count, err := f.api.SearchRestaurant(ctx, query)
	if err != nil {
		log.Printf("❌ Restaurant search %q failed: %v", query, err)
		return screenTurn(TextScreen(models.StateSearchRestaurant, msgSearchFailed))
	}
	if len(restaurants) == 0 {
		return screenTurn(TextScreen(models.StateSearchRestaurant, msgNoRestaurant))
	}

	if len(restaurants) > maxSearchResults {
		restaurants = restaurants[:maxSearchResults]
	}
	s.SearchResults = restaurants
	return screenTurn(searchResultsScreen(restaurants, count))
}

func searchResultsScreen(restaurants []models.Restaurant, count int) Screen {
	options := make([]Option, 0, len(restaurants)+1)
	for _, r := range restaurants {
		location := r.Location
		if location == "" {
			location = defaultLocationTag
		}
		options = append(options, optDesc(models.PickRestaurant(r.ID.String()), "🏠 "+r.Name, "📍 "+location))
	}
	options = append(options, Option{
		Action: models.Simple(models.ActionSearchAgain),
		Label:  "🔍 Tafuta tena",
		Key:    "0",
	})

	text := fmt.Sprintf("✅ Nimeona restaurants: %d\n👇 Chagua kwa kuandika namba:", count)
	return ListScreen(models.StateSearchRestaurant, " 🔍 ", text, Section{Options: options})
}

// pickRestaurant binds a search hit, then asks for the table if unknown.
// Writes: see bindRestaurant.
func (f *OrderingFlow) pickRestaurant(ctx context.Context, s *models.Session, restaurantID string) Turn {
	name := ""
	for _, r := range s.SearchResults {
		if r.ID.String() == restaurantID {
			name = r.Name
			break
		}
	}

	if name == "" {
		restaurant, err := f.api.VerifyRestaurant(ctx, restaurantID, "")
		if err != nil {
			log.Printf("❌ Verify restaurant %s failed: %v", restaurantID, err)
			return screenTurn(TextScreen(models.StateSearchRestaurant, msgSearchFailed))
		}
		name = restaurant.Name
	}

	bindRestaurant(s, restaurantID, name)
	if s.TableNumber == "" {
		return f.tableSelection(ctx, s)
	}
	return f.home(s)
}

// tableSelection lists the restaurant's tables, or asks for the number
// when the backend has none.
func (f *OrderingFlow) tableSelection(ctx context.Context, s *models.Session) Turn {
	tables, err := f.api.GetRestaurantTables(ctx, s.RestaurantID)
	if err != nil {
		log.Printf("❌ Fetch tables for %s failed: %v", s.RestaurantID, err)
	}
	if len(tables) == 0 {
		return screenTurn(TextScreen(models.StateTableInput, msgAskTable))
	}

	if len(tables) > maxTables {
		tables = tables[:maxTables]
	}
	options := make([]Option, 0, len(tables)+1)
	for _, t := range tables {
		name := t.Name
		if name == "" {
			name = t.ID.String()
		}
		label := "Meza " + name + " 👥"
		desc := ""
		if t.Capacity > 0 {
			desc = fmt.Sprintf("Watu %d", t.Capacity)
		}
		options = append(options, optDesc(models.PickTable(t.ID.String()), label, desc))
	}
	options = append(options, Option{
		Action: models.Simple(models.ActionTypeTable),
		Label:  "✍️ Andika namba",
		Key:    "0",
	})

	return screenTurn(ListScreen(models.StatePickTable, " 🪑 ", "🧾 Chagua meza yako:", Section{Options: options}))
}

// handleTable takes a listed table or a typed positive number.
// Writes: TableNumber.
func (f *OrderingFlow) handleTable(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionPickTable:
		s.TableNumber = a.Arg
		return f.home(s), nil
	case models.ActionTypeTable:
		return screenTurn(TextScreen(models.StateTableInput, msgTypeTable)), nil
	case models.ActionHome:
		return f.home(s), nil
	case models.ActionText:
		if n, err := strconv.Atoi(a.Arg); err == nil && n > 0 {
			s.TableNumber = strconv.Itoa(n)
			return f.home(s), nil
		}
	}

	if s.State == models.StatePickTable {
		turn := f.tableSelection(ctx, s)
		turn.Notices = append([]string{msgInvalidTable}, turn.Notices...)
		return turn, nil
	}
	return screenTurn(TextScreen(models.StateTableInput, msgInvalidTable)), nil
}
