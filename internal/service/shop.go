package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"guild-economy/internal/cache"
	"guild-economy/internal/events"
	"guild-economy/internal/model"
)

// Editable shop item properties.
const (
	PropertyName        = "name"
	PropertyPrice       = "price"
	PropertyMessage     = "message"
	PropertyDescription = "description"
	PropertyMaxAmount   = "maxAmount"
	PropertyRole        = "role"
	PropertyCustom      = "custom"
)

// NewShopItem describes an item to list.
type NewShopItem struct {
	Name        string
	Price       float64
	Message     string
	Description string
	MaxAmount   int
	Role        string
	Custom      map[string]any
}

// BuyResult describes a completed purchase.
type BuyResult struct {
	Item       model.ShopItem
	Stack      model.InventoryItem
	Quantity   int
	TotalPrice float64
	// Balance is the buyer's balance after the purchase.
	Balance float64
}

// ShopService manages guild shops and purchases.
type ShopService struct {
	base
	settings *SettingsService
}

// NewShopService creates a ShopService.
func NewShopService(d Deps, settings *SettingsService) *ShopService {
	return &ShopService{base: newBase(d), settings: settings}
}

// List returns the guild's items.
func (s *ShopService) List(ctx context.Context, guildID string) ([]model.ShopItem, error) {
	id, err := guildScope("list shop", guildID)
	if err != nil {
		return nil, err
	}
	var items []model.ShopItem
	if _, err := s.load(ctx, cache.Shop, id, &items); err != nil {
		return nil, fmt.Errorf("failed to load shop: %w", err)
	}
	if items == nil {
		items = []model.ShopItem{}
	}
	return items, nil
}

// Get returns the item with the given id.
func (s *ShopService) Get(ctx context.Context, guildID string, itemID int) (model.ShopItem, bool, error) {
	items, err := s.List(ctx, guildID)
	if err != nil {
		return model.ShopItem{}, false, err
	}
	i := indexOfShopItem(items, itemID)
	if i < 0 {
		return model.ShopItem{}, false, nil
	}
	return items[i], true, nil
}

// Find returns the first item whose name matches, ignoring case.
func (s *ShopService) Find(ctx context.Context, guildID, name string) (model.ShopItem, bool, error) {
	items, err := s.List(ctx, guildID)
	if err != nil {
		return model.ShopItem{}, false, err
	}
	for _, it := range items {
		if strings.EqualFold(it.Name, name) {
			return it, true, nil
		}
	}
	return model.ShopItem{}, false, nil
}

// AddItem lists a new item and returns it with its assigned id.
func (s *ShopService) AddItem(ctx context.Context, guildID string, in NewShopItem) (model.ShopItem, error) {
	id, err := guildScope("add shop item", guildID)
	if err != nil {
		return model.ShopItem{}, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return model.ShopItem{}, fmt.Errorf("%w: name must not be empty", ErrInvalidProperty)
	}
	if math.IsNaN(in.Price) || math.IsInf(in.Price, 0) || in.Price < 0 {
		return model.ShopItem{}, ErrInvalidAmount
	}
	if in.MaxAmount < 0 {
		return model.ShopItem{}, fmt.Errorf("%w: max amount must not be negative", ErrInvalidProperty)
	}

	items, err := s.List(ctx, guildID)
	if err != nil {
		return model.ShopItem{}, err
	}
	item := model.ShopItem{
		ID:          NextID(items, func(it model.ShopItem) int { return it.ID }),
		GuildID:     guildID,
		Name:        in.Name,
		Price:       in.Price,
		Message:     in.Message,
		Description: in.Description,
		MaxAmount:   in.MaxAmount,
		Role:        in.Role,
		Date:        s.nowMs(),
		Custom:      in.Custom,
	}
	if _, err := s.DB.Push(ctx, cache.Shop.Path(id), item); err != nil {
		return model.ShopItem{}, fmt.Errorf("failed to add shop item: %w", err)
	}
	if err := s.refresh(ctx, id, cache.Shop); err != nil {
		return model.ShopItem{}, err
	}

	s.emit(events.ShopItemAdd, events.ShopEvent{Type: events.ShopItemAdd, GuildID: guildID, Item: item})
	return item, nil
}

// EditItem changes one property of an item and returns the edited item.
func (s *ShopService) EditItem(ctx context.Context, guildID string, itemID int, property string, value any) (model.ShopItem, error) {
	id, err := guildScope("edit shop item", guildID)
	if err != nil {
		return model.ShopItem{}, err
	}
	items, err := s.List(ctx, guildID)
	if err != nil {
		return model.ShopItem{}, err
	}
	i := indexOfShopItem(items, itemID)
	if i < 0 {
		return model.ShopItem{}, ErrItemNotFound
	}
	if err := applyEdit(&items[i], property, value); err != nil {
		return model.ShopItem{}, err
	}

	if err := s.DB.Set(ctx, cache.Shop.Path(id), items); err != nil {
		return model.ShopItem{}, fmt.Errorf("failed to edit shop item: %w", err)
	}
	if err := s.refresh(ctx, id, cache.Shop); err != nil {
		return model.ShopItem{}, err
	}

	s.emit(events.ShopItemEdit, events.ShopEvent{
		Type:     events.ShopItemEdit,
		GuildID:  guildID,
		Item:     items[i],
		Property: property,
		Value:    value,
	})
	return items[i], nil
}

func applyEdit(item *model.ShopItem, property string, value any) error {
	switch property {
	case PropertyName, PropertyMessage, PropertyDescription, PropertyRole:
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: %s must be a string", ErrInvalidProperty, property)
		}
		switch property {
		case PropertyName:
			if strings.TrimSpace(str) == "" {
				return fmt.Errorf("%w: name must not be empty", ErrInvalidProperty)
			}
			item.Name = str
		case PropertyMessage:
			item.Message = str
		case PropertyDescription:
			item.Description = str
		case PropertyRole:
			item.Role = str
		}
	case PropertyPrice:
		n, ok := asNumber(value)
		if !ok || math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
			return fmt.Errorf("%w: price must be a non-negative number", ErrInvalidProperty)
		}
		item.Price = n
	case PropertyMaxAmount:
		n, ok := asNumber(value)
		if !ok || n < 0 || n != math.Trunc(n) {
			return fmt.Errorf("%w: max amount must be a non-negative integer", ErrInvalidProperty)
		}
		item.MaxAmount = int(n)
	case PropertyCustom:
		m, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: custom must be an object", ErrInvalidProperty)
		}
		item.Custom = m
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProperty, property)
	}
	return nil
}

// RemoveItem delists an item and returns it.
func (s *ShopService) RemoveItem(ctx context.Context, guildID string, itemID int) (model.ShopItem, error) {
	id, err := guildScope("remove shop item", guildID)
	if err != nil {
		return model.ShopItem{}, err
	}
	items, err := s.List(ctx, guildID)
	if err != nil {
		return model.ShopItem{}, err
	}
	i := indexOfShopItem(items, itemID)
	if i < 0 {
		return model.ShopItem{}, ErrItemNotFound
	}
	if _, err := s.DB.Pop(ctx, cache.Shop.Path(id), i); err != nil {
		return model.ShopItem{}, fmt.Errorf("failed to remove shop item: %w", err)
	}
	if err := s.refresh(ctx, id, cache.Shop); err != nil {
		return model.ShopItem{}, err
	}

	s.emit(events.ShopItemRemove, events.ShopEvent{Type: events.ShopItemRemove, GuildID: guildID, Item: items[i]})
	return items[i], nil
}

// Clear delists every item. It reports false when the shop was already
// empty.
func (s *ShopService) Clear(ctx context.Context, guildID string) (bool, error) {
	id, err := guildScope("clear shop", guildID)
	if err != nil {
		return false, err
	}
	items, err := s.List(ctx, guildID)
	if err != nil || len(items) == 0 {
		return false, err
	}
	if err := s.DB.Set(ctx, cache.Shop.Path(id), []model.ShopItem{}); err != nil {
		return false, fmt.Errorf("failed to clear shop: %w", err)
	}
	if err := s.refresh(ctx, id, cache.Shop); err != nil {
		return false, err
	}

	s.emit(events.ShopClear, events.ShopEvent{Type: events.ShopClear, GuildID: guildID})
	return true, nil
}

// Buy sells quantity units of an item to a member. The member is charged
// when the guild's subtractOnBuy setting is on, and the purchase is recorded
// when savePurchasesHistory is on.
func (s *ShopService) Buy(ctx context.Context, guildID, memberID string, itemID, quantity int, reason string) (BuyResult, error) {
	id, err := memberScope("buy", guildID, memberID)
	if err != nil {
		return BuyResult{}, err
	}
	if quantity < 1 {
		return BuyResult{}, ErrInvalidQuantity
	}

	item, ok, err := s.Get(ctx, guildID, itemID)
	if err != nil {
		return BuyResult{}, err
	}
	if !ok {
		return BuyResult{}, ErrItemNotFound
	}
	total := item.Price * float64(quantity)

	charge, err := s.settings.SubtractOnBuy(ctx, guildID)
	if err != nil {
		return BuyResult{}, err
	}
	record, err := s.settings.SavePurchasesHistory(ctx, guildID)
	if err != nil {
		return BuyResult{}, err
	}

	var balance float64
	if _, err := s.load(ctx, cache.Balance, id, &balance); err != nil {
		return BuyResult{}, fmt.Errorf("failed to load balance: %w", err)
	}
	if charge && balance < total {
		return BuyResult{}, ErrInsufficientBalance
	}

	var inventory []model.InventoryItem
	if _, err := s.load(ctx, cache.Inventory, id, &inventory); err != nil {
		return BuyResult{}, fmt.Errorf("failed to load inventory: %w", err)
	}
	stackIndex := -1
	for i, it := range inventory {
		if it.ItemID == item.ID {
			stackIndex = i
			break
		}
	}
	held := 0
	if stackIndex >= 0 {
		held = inventory[stackIndex].Quantity
	}
	if item.MaxAmount > 0 && held+quantity > item.MaxAmount {
		return BuyResult{}, ErrMaxAmountReached
	}

	created, err := s.ensureUser(ctx, id)
	if err != nil {
		return BuyResult{}, err
	}
	if charge {
		if balance, err = s.DB.Subtract(ctx, cache.Balance.Path(id), total); err != nil {
			return BuyResult{}, fmt.Errorf("failed to charge buyer: %w", err)
		}
	}

	var stack model.InventoryItem
	if stackIndex >= 0 {
		inventory[stackIndex].Quantity += quantity
		stack = inventory[stackIndex]
		if err := s.DB.Set(ctx, cache.Inventory.Path(id), inventory); err != nil {
			return BuyResult{}, fmt.Errorf("failed to update inventory: %w", err)
		}
	} else {
		stack = model.InventoryItem{
			ID:          NextID(inventory, func(it model.InventoryItem) int { return it.ID }),
			ItemID:      item.ID,
			GuildID:     guildID,
			MemberID:    memberID,
			Name:        item.Name,
			Price:       item.Price,
			Message:     item.Message,
			Description: item.Description,
			Role:        item.Role,
			Quantity:    quantity,
			Date:        s.nowMs(),
			Custom:      item.Custom,
		}
		if _, err := s.DB.Push(ctx, cache.Inventory.Path(id), stack); err != nil {
			return BuyResult{}, fmt.Errorf("failed to update inventory: %w", err)
		}
	}

	slices := []cache.Slice{cache.Inventory, cache.Users}
	if charge {
		slices = append(slices, cache.Balance)
	}
	if record {
		if err := s.recordPurchase(ctx, id, item, quantity, total); err != nil {
			return BuyResult{}, err
		}
		slices = append(slices, cache.History)
	}
	if err := s.refreshMember(ctx, id, created, slices...); err != nil {
		return BuyResult{}, err
	}

	if charge {
		s.emit(events.BalanceSubtract, events.BalanceEvent{
			Type:     events.BalanceSubtract,
			GuildID:  guildID,
			MemberID: memberID,
			Amount:   total,
			Balance:  balance,
			Reason:   reason,
		})
	}
	s.emit(events.ShopItemBuy, events.ShopEvent{
		Type:     events.ShopItemBuy,
		GuildID:  guildID,
		MemberID: memberID,
		Item:     item,
		Quantity: quantity,
	})

	return BuyResult{
		Item:       item,
		Stack:      stack,
		Quantity:   quantity,
		TotalPrice: total,
		Balance:    balance,
	}, nil
}

func (s *ShopService) recordPurchase(ctx context.Context, id cache.ID, item model.ShopItem, quantity int, total float64) error {
	var history []model.HistoryItem
	if _, err := s.load(ctx, cache.History, id, &history); err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	entry := model.HistoryItem{
		ID:         NextID(history, func(h model.HistoryItem) int { return h.ID }),
		ItemID:     item.ID,
		GuildID:    id.GuildID,
		MemberID:   id.MemberID,
		Name:       item.Name,
		Price:      item.Price,
		Quantity:   quantity,
		TotalPrice: total,
		Role:       item.Role,
		Date:       s.nowMs(),
	}
	if _, err := s.DB.Push(ctx, cache.History.Path(id), entry); err != nil {
		return fmt.Errorf("failed to record purchase: %w", err)
	}
	return nil
}

func indexOfShopItem(items []model.ShopItem, itemID int) int {
	for i, it := range items {
		if it.ID == itemID {
			return i
		}
	}
	return -1
}
