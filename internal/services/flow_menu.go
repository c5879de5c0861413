package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/taptap-tz/taptap-bot/internal/models"
)

const (
	msgMenuFailed      = "Tatizo la kupata menu. Jaribu tena baadae."
	msgMenuUnavailable = "Samahani, menu haipatikani kwa sasa."
	msgNoItems         = "Hakuna vyakula hapa."
	msgItemNotFound    = "Sijapata chakula hiki."
	msgItemUnavailable = "Samahani, chakula hiki hakipatikani kwa sasa."
	msgAskFood         = "🔎 Andika jina la chakula unachotafuta:"
	msgFoodNotFound    = "Samahani, sijapata \"%s\"."

	maxFoodResults  = 10
	quickQuantities = 5
	moreQuantity    = 3
)

// ensureMenu fetches the menu once per restaurant binding.
// Writes: MenuCache.
func (f *OrderingFlow) ensureMenu(ctx context.Context, s *models.Session) error {
	if len(s.MenuCache) > 0 {
		return nil
	}
	categories, err := f.api.GetFullMenu(ctx, s.RestaurantID)
	if err != nil {
		return err
	}
	s.MenuCache = categories
	return nil
}

// menuFailure is the fallback when the menu cannot be shown
func (f *OrderingFlow) menuFailure(s *models.Session, err error) Turn {
	if err != nil {
		log.Printf("❌ Fetch menu for %s failed: %v", s.RestaurantID, err)
		return f.home(s, msgMenuFailed)
	}
	return f.home(s, msgMenuUnavailable)
}

func (f *OrderingFlow) menuHub(ctx context.Context, s *models.Session) Turn {
	if err := f.ensureMenu(ctx, s); err != nil || len(s.MenuCache) == 0 {
		return f.menuFailure(s, err)
	}

	categories := make([]Option, 0, len(s.MenuCache))
	for _, c := range s.MenuCache {
		categories = append(categories, opt(models.ViewCategory(c.ID.String()), "📂"+compact(c.Name)))
	}

	return screenTurn(ListScreen(models.StateMenuHub, "🍽️✨", "🍽️MENU_YETU",
		Section{Title: "🔍TAFUTA", Options: []Option{
			opt(models.Simple(models.ActionSearchFood), "🔎TafutaChakula"),
		}},
		Section{Title: "🍴MAKUNDI", Options: categories},
		Section{Title: "🏠NYUMBANI", Options: []Option{
			opt(models.Simple(models.ActionHome), "🔙RudiMwanzo"),
		}},
	))
}

// handleMenuHub opens a category or goes back.
// Writes: CurrentCategory (via itemsList).
func (f *OrderingFlow) handleMenuHub(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionViewCategory:
		return f.itemsList(ctx, s, a.Arg), nil
	case models.ActionSearchFood:
		return f.searchFoodPrompt(ctx, s), nil
	case models.ActionGoCart:
		return f.cart(s), nil
	case models.ActionHome:
		return f.home(s), nil
	case models.ActionText:
		t := strings.ToLower(a.Arg)
		if strings.Contains(t, "home") || strings.Contains(t, "nyuma") {
			return f.home(s), nil
		}
	}
	return f.menuHub(ctx, s), nil
}

func (f *OrderingFlow) categories(ctx context.Context, s *models.Session) Turn {
	if err := f.ensureMenu(ctx, s); err != nil || len(s.MenuCache) == 0 {
		return f.menuFailure(s, err)
	}

	options := make([]Option, 0, len(s.MenuCache)+2)
	for _, c := range s.MenuCache {
		options = append(options, optDesc(models.ViewCategory(c.ID.String()), c.Name,
			fmt.Sprintf("%d items", len(c.AvailableItems()))))
	}
	options = append(options,
		opt(models.Simple(models.ActionBackMenu), "🔙 Menu"),
		opt(models.Simple(models.ActionHome), "🏠 Home"),
	)

	return screenTurn(ListScreen(models.StateCategories, "📂✨", "📂 *Chagua Category*",
		Section{Title: "Categories", Options: options}))
}

// handleCategories works like the hub without the search entry.
// Writes: CurrentCategory (via itemsList).
func (f *OrderingFlow) handleCategories(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionViewCategory:
		return f.itemsList(ctx, s, a.Arg), nil
	case models.ActionBackMenu:
		return f.menuHub(ctx, s), nil
	case models.ActionHome:
		return f.home(s), nil
	}
	return f.categories(ctx, s), nil
}

// itemsList shows the available items of a category.
// Writes: CurrentCategory, MenuCache.
func (f *OrderingFlow) itemsList(ctx context.Context, s *models.Session, categoryID string) Turn {
	if err := f.ensureMenu(ctx, s); err != nil {
		return f.menuFailure(s, err)
	}

	category := s.FindCategory(categoryID)
	if category == nil {
		turn := f.menuHub(ctx, s)
		turn.Notices = append([]string{msgNoItems}, turn.Notices...)
		return turn
	}
	items := category.AvailableItems()
	if len(items) == 0 {
		turn := f.menuHub(ctx, s)
		turn.Notices = append([]string{msgNoItems}, turn.Notices...)
		return turn
	}

	s.CurrentCategory = categoryID
	options := make([]Option, 0, len(items))
	for _, item := range items {
		options = append(options, optDesc(models.ViewItem(item.ID.String()), "🍲"+compact(item.Name), FormatMoney(item.Price)))
	}

	return screenTurn(ListScreen(models.StateItemsList, "✨🍴", "🍽️"+strings.ToUpper(compact(category.Name)),
		Section{Title: "📋ORODHA", Options: options},
		Section{Title: "🏠NYUMBANI", Options: []Option{
			opt(models.Simple(models.ActionBackCategories), "📂Makundi"),
			opt(models.Simple(models.ActionBackMenu), "🔙RudiMenu"),
			opt(models.Simple(models.ActionGoCart), "🛒OdaYangu"),
		}},
	))
}

// handleItemsList opens an item or navigates back.
// Writes: PendingItem, CurrentCategory (via itemDetail).
func (f *OrderingFlow) handleItemsList(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionViewItem:
		return f.itemDetail(ctx, s, a.Arg), nil
	case models.ActionBackCategories:
		return f.categories(ctx, s), nil
	case models.ActionBackMenu:
		return f.menuHub(ctx, s), nil
	case models.ActionGoCart:
		return f.cart(s), nil
	case models.ActionHome:
		return f.home(s), nil
	}
	return f.itemsList(ctx, s, s.CurrentCategory), nil
}

// itemDetail shows one item. Description and image come from the backend
// when it answers, otherwise from the cached menu.
// Writes: PendingItem, CurrentCategory.
func (f *OrderingFlow) itemDetail(ctx context.Context, s *models.Session, itemID string) Turn {
	if err := f.ensureMenu(ctx, s); err != nil {
		log.Printf("⚠️  Menu unavailable for item %s: %v", itemID, err)
	}

	var item models.MenuItem
	cached := s.FindMenuItem(itemID)
	if cached != nil {
		item = *cached
	}

	detail, err := f.api.GetItemDetail(ctx, itemID)
	if err != nil {
		log.Printf("⚠️  Item detail %s unavailable, using cached menu: %v", itemID, err)
	} else if detail != nil {
		if cached == nil {
			item = *detail
		}
		if detail.Description != "" {
			item.Description = detail.Description
		}
		if detail.Image != "" {
			item.Image = detail.Image
		}
	}

	if item.ID == "" {
		turn := f.menuHub(ctx, s)
		turn.Notices = append([]string{msgItemNotFound}, turn.Notices...)
		return turn
	}
	if !item.IsAvailable() {
		turn := f.itemsList(ctx, s, s.CurrentCategory)
		turn.Notices = append([]string{msgItemUnavailable}, turn.Notices...)
		return turn
	}

	s.PendingItem = itemID
	for _, c := range s.MenuCache {
		for _, i := range c.Items {
			if i.ID.String() == itemID {
				s.CurrentCategory = c.ID.String()
			}
		}
	}

	text := fmt.Sprintf("🍲*%s*\n💰%s", compact(item.Name), FormatMoney(item.Price))
	if item.Description != "" {
		text += "\n📝" + item.Description
	}

	screen := ButtonScreen(models.StateItemDetail, "🍲✨", text,
		opt(models.AddItem(itemID), "➕Weka"),
		opt(models.Simple(models.ActionBackItems), "🔙Rudi"),
		opt(models.Simple(models.ActionGoCart), "🛒Oda"),
	)
	if item.Image != "" {
		screen = screen.WithImage(item.Image)
	}
	return screenTurn(screen)
}

// handleItemDetail starts the quantity sub-flow.
// Writes: PendingItem, PendingQuantity.
func (f *OrderingFlow) handleItemDetail(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionAddItem:
		s.PendingItem = a.Arg
		s.PendingQuantity = 1
		return screenTurn(quantityScreen()), nil
	case models.ActionBackItems:
		if s.CurrentCategory == "" {
			return f.menuHub(ctx, s), nil
		}
		return f.itemsList(ctx, s, s.CurrentCategory), nil
	case models.ActionGoCart:
		return f.cart(s), nil
	case models.ActionHome:
		return f.home(s), nil
	}
	if s.PendingItem == "" {
		return f.menuHub(ctx, s), nil
	}
	return f.itemDetail(ctx, s, s.PendingItem), nil
}

func quantityScreen() Screen {
	quick := make([]Option, 0, quickQuantities)
	for n := 1; n <= quickQuantities; n++ {
		quick = append(quick, opt(models.Quantity(n), fmt.Sprint(n)))
	}
	return ListScreen(models.StateQuantity, "🔢✨", "🔢*Idadi?*",
		Section{Title: "⚡CHAGUA", Options: quick},
		Section{Title: "🏠NYUMBANI", Options: []Option{
			opt(models.Simple(models.ActionQuantityMore), "🔢NambaNyingine"),
			opt(models.Simple(models.ActionBackItems), "🔙Rudi"),
		}},
	)
}

func quantityMoreScreen(s *models.Session) Screen {
	return ButtonScreen(models.StateQuantityMore, "✨", fmt.Sprintf("🔢Idadi: *%d*", s.PendingQuantity),
		opt(models.Simple(models.ActionQuantityPlus), "➕+1"),
		opt(models.Simple(models.ActionQuantityMinus), "➖-1"),
		opt(models.Simple(models.ActionQuantityDone), "✅Sawa"),
	)
}

// handleQuantity commits a quick choice or opens the +/- screen.
// Writes: PendingQuantity, Cart (via addToCart).
func (f *OrderingFlow) handleQuantity(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionQuantity:
		if n, ok := a.Int(); ok && n >= 1 {
			return f.addToCart(ctx, s, n), nil
		}
	case models.ActionQuantityMore:
		s.PendingQuantity = moreQuantity
		return screenTurn(quantityMoreScreen(s)), nil
	case models.ActionBackItems:
		return f.itemsList(ctx, s, s.CurrentCategory), nil
	case models.ActionHome:
		return f.home(s), nil
	}
	return screenTurn(quantityScreen()), nil
}

// handleQuantityMore adjusts the pending quantity; it never drops below 1.
// A typed number sets it directly.
// Writes: PendingQuantity, Cart (via addToCart).
func (f *OrderingFlow) handleQuantityMore(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionQuantityPlus:
		s.PendingQuantity++
	case models.ActionQuantityMinus:
		s.PendingQuantity--
		if s.PendingQuantity < 1 {
			s.PendingQuantity = 1
		}
	case models.ActionQuantityDone:
		return f.addToCart(ctx, s, s.PendingQuantity), nil
	case models.ActionQuantity:
		if n, ok := a.Int(); ok && n >= 1 {
			return f.addToCart(ctx, s, n), nil
		}
	case models.ActionHome:
		return f.home(s), nil
	case models.ActionText:
		if n, ok := a.Int(); ok && n >= 1 {
			s.PendingQuantity = n
		}
	}
	return screenTurn(quantityMoreScreen(s)), nil
}

// addToCart merges the pending item into the cart with the price it has
// in the cached menu now.
// Writes: Cart, PendingItem, PendingQuantity, OrderAttemptKey.
func (f *OrderingFlow) addToCart(ctx context.Context, s *models.Session, qty int) Turn {
	item := s.FindMenuItem(s.PendingItem)
	if item == nil {
		turn := f.menuHub(ctx, s)
		turn.Notices = append([]string{msgItemNotFound}, turn.Notices...)
		return turn
	}

	s.AddToCart(*item, qty)
	s.PendingItem = ""
	s.PendingQuantity = 1
	s.OrderAttemptKey = ""
	log.Printf("🛒 %s added %s x%d", s.ConversationID, item.Name, qty)

	text := fmt.Sprintf("✅*Imeongezwa!*\n%s x%d\nJumla: %s", item.Name, qty, FormatMoney(s.CartTotal()))
	return screenTurn(ButtonScreen(models.StateCart, "✨", text,
		opt(models.Simple(models.ActionContinueMenu), "➕Endelea"),
		opt(models.Simple(models.ActionGoCart), "🛒NendaCart"),
		opt(models.Simple(models.ActionHome), "🏠Home"),
	))
}

// searchFoodPrompt asks for a dish name.
// Writes: MenuCache.
func (f *OrderingFlow) searchFoodPrompt(ctx context.Context, s *models.Session) Turn {
	if err := f.ensureMenu(ctx, s); err != nil || len(s.MenuCache) == 0 {
		return f.menuFailure(s, err)
	}
	return screenTurn(TextScreen(models.StateSearchFood, msgAskFood))
}

// handleSearchFood matches item names in the cached menu.
// Writes: PendingItem, CurrentCategory (via itemDetail).
func (f *OrderingFlow) handleSearchFood(ctx context.Context, s *models.Session, a models.Action) (Turn, error) {
	switch a.Kind {
	case models.ActionViewItem:
		return f.itemDetail(ctx, s, a.Arg), nil
	case models.ActionBackMenu:
		return f.menuHub(ctx, s), nil
	case models.ActionSearchFood:
		return f.searchFoodPrompt(ctx, s), nil
	case models.ActionHome:
		return f.home(s), nil
	case models.ActionText:
		return f.searchFood(ctx, s, a.Arg), nil
	}
	return f.searchFoodPrompt(ctx, s), nil
}

func (f *OrderingFlow) searchFood(ctx context.Context, s *models.Session, query string) Turn {
	if err := f.ensureMenu(ctx, s); err != nil || len(s.MenuCache) == 0 {
		return f.menuFailure(s, err)
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	var options []Option
	for _, c := range s.MenuCache {
		for _, item := range c.AvailableItems() {
			if len(options) == maxFoodResults {
				break
			}
			if strings.Contains(strings.ToLower(item.Name), needle) {
				options = append(options, optDesc(models.ViewItem(item.ID.String()), "🍲"+compact(item.Name), FormatMoney(item.Price)))
			}
		}
	}

	if len(options) == 0 {
		return screenTurn(TextScreen(models.StateSearchFood, msgAskFood), fmt.Sprintf(msgFoodNotFound, query))
	}

	return screenTurn(ListScreen(models.StateSearchFood, "🔎✨", fmt.Sprintf("🔎*Matokeo: %s*", query),
		Section{Title: "📋ORODHA", Options: options},
		Section{Title: "🏠NYUMBANI", Options: []Option{
			opt(models.Simple(models.ActionSearchFood), "🔎TafutaTena"),
			opt(models.Simple(models.ActionBackMenu), "🔙RudiMenu"),
			opt(models.Simple(models.ActionHome), "🔙RudiMwanzo"),
		}},
	))
}
