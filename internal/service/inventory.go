package service

import (
	"context"
	"fmt"

	"guild-economy/internal/cache"
	"guild-economy/internal/events"
	"guild-economy/internal/model"
)

// UseResult describes a used item.
type UseResult struct {
	Item model.InventoryItem
	// Remaining is the quantity left in the stack; 0 means it was removed.
	Remaining int
	Message   string
}

// SellResult describes a sale back to the shop.
type SellResult struct {
	Item     model.InventoryItem
	Quantity int
	Earned   float64
	Balance  float64
}

// InventoryService manages member inventories.
type InventoryService struct {
	base
	settings *SettingsService
}

// NewInventoryService creates an InventoryService.
func NewInventoryService(d Deps, settings *SettingsService) *InventoryService {
	return &InventoryService{base: newBase(d), settings: settings}
}

// List returns the member's inventory.
func (s *InventoryService) List(ctx context.Context, guildID, memberID string) ([]model.InventoryItem, error) {
	id, err := memberScope("list inventory", guildID, memberID)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, id)
}

func (s *InventoryService) list(ctx context.Context, id cache.ID) ([]model.InventoryItem, error) {
	var items []model.InventoryItem
	if _, err := s.load(ctx, cache.Inventory, id, &items); err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}
	if items == nil {
		items = []model.InventoryItem{}
	}
	return items, nil
}

// Get returns the stack with the given inventory id.
func (s *InventoryService) Get(ctx context.Context, guildID, memberID string, id int) (model.InventoryItem, bool, error) {
	items, err := s.List(ctx, guildID, memberID)
	if err != nil {
		return model.InventoryItem{}, false, err
	}
	if i := indexOfInventoryItem(items, id); i >= 0 {
		return items[i], true, nil
	}
	return model.InventoryItem{}, false, nil
}

// Add puts quantity units of a shop item into the member's inventory
// without charging them, stacking onto an existing stack of the same item.
func (s *InventoryService) Add(ctx context.Context, guildID, memberID string, item model.ShopItem, quantity int) (model.InventoryItem, error) {
	id, err := memberScope("add inventory item", guildID, memberID)
	if err != nil {
		return model.InventoryItem{}, err
	}
	if quantity < 1 {
		return model.InventoryItem{}, ErrInvalidQuantity
	}
	items, err := s.list(ctx, id)
	if err != nil {
		return model.InventoryItem{}, err
	}
	created, err := s.ensureUser(ctx, id)
	if err != nil {
		return model.InventoryItem{}, err
	}

	var stack model.InventoryItem
	found := false
	for i := range items {
		if items[i].ItemID == item.ID {
			items[i].Quantity += quantity
			stack, found = items[i], true
			break
		}
	}
	if found {
		err = s.DB.Set(ctx, cache.Inventory.Path(id), items)
	} else {
		stack = model.InventoryItem{
			ID:          NextID(items, func(it model.InventoryItem) int { return it.ID }),
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
		_, err = s.DB.Push(ctx, cache.Inventory.Path(id), stack)
	}
	if err != nil {
		return model.InventoryItem{}, fmt.Errorf("failed to add inventory item: %w", err)
	}
	if err := s.refreshMember(ctx, id, created, cache.Inventory, cache.Users); err != nil {
		return model.InventoryItem{}, err
	}
	return stack, nil
}

// Remove drops a whole stack and returns it.
func (s *InventoryService) Remove(ctx context.Context, guildID, memberID string, itemID int) (model.InventoryItem, error) {
	id, err := memberScope("remove inventory item", guildID, memberID)
	if err != nil {
		return model.InventoryItem{}, err
	}
	items, err := s.list(ctx, id)
	if err != nil {
		return model.InventoryItem{}, err
	}
	i := indexOfInventoryItem(items, itemID)
	if i < 0 {
		return model.InventoryItem{}, ErrItemNotFound
	}
	if _, err := s.DB.Pop(ctx, cache.Inventory.Path(id), i); err != nil {
		return model.InventoryItem{}, fmt.Errorf("failed to remove inventory item: %w", err)
	}
	if err := s.refresh(ctx, id, cache.Inventory, cache.Users); err != nil {
		return model.InventoryItem{}, err
	}
	return items[i], nil
}

// Use consumes one unit of a stack, removing the stack when it runs out,
// and returns the item's message.
func (s *InventoryService) Use(ctx context.Context, guildID, memberID string, itemID int) (UseResult, error) {
	id, err := memberScope("use item", guildID, memberID)
	if err != nil {
		return UseResult{}, err
	}
	items, err := s.list(ctx, id)
	if err != nil {
		return UseResult{}, err
	}
	i := indexOfInventoryItem(items, itemID)
	if i < 0 {
		return UseResult{}, ErrItemNotFound
	}
	item := items[i]

	remaining, err := s.take(ctx, id, items, i, 1)
	if err != nil {
		return UseResult{}, err
	}
	if err := s.refresh(ctx, id, cache.Inventory, cache.Users); err != nil {
		return UseResult{}, err
	}

	s.emit(events.ShopItemUse, events.ShopEvent{
		Type:     events.ShopItemUse,
		GuildID:  guildID,
		MemberID: memberID,
		Item:     item,
		Quantity: 1,
	})
	return UseResult{Item: item, Remaining: remaining, Message: item.Message}, nil
}

// Sell returns quantity units of a stack to the shop, crediting the member
// with the guild's sellItemsPercent share of the price per unit.
func (s *InventoryService) Sell(ctx context.Context, guildID, memberID string, itemID, quantity int, reason string) (SellResult, error) {
	id, err := memberScope("sell item", guildID, memberID)
	if err != nil {
		return SellResult{}, err
	}
	if quantity < 1 {
		return SellResult{}, ErrInvalidQuantity
	}
	items, err := s.list(ctx, id)
	if err != nil {
		return SellResult{}, err
	}
	i := indexOfInventoryItem(items, itemID)
	if i < 0 {
		return SellResult{}, ErrItemNotFound
	}
	item := items[i]
	if item.Quantity < quantity {
		return SellResult{}, ErrNotEnoughItems
	}

	percent, err := s.settings.SellItemsPercent(ctx, guildID)
	if err != nil {
		return SellResult{}, err
	}
	earned := item.Price * percent / 100 * float64(quantity)

	if _, err := s.take(ctx, id, items, i, quantity); err != nil {
		return SellResult{}, err
	}
	balance, err := s.DB.Add(ctx, cache.Balance.Path(id), earned)
	if err != nil {
		return SellResult{}, fmt.Errorf("failed to credit seller: %w", err)
	}
	if err := s.refresh(ctx, id, cache.Inventory, cache.Balance, cache.Users); err != nil {
		return SellResult{}, err
	}

	s.emit(events.BalanceAdd, events.BalanceEvent{
		Type:     events.BalanceAdd,
		GuildID:  guildID,
		MemberID: memberID,
		Amount:   earned,
		Balance:  balance,
		Reason:   reason,
	})
	return SellResult{Item: item, Quantity: quantity, Earned: earned, Balance: balance}, nil
}

// Clear empties the member's inventory. It reports false when it was
// already empty.
func (s *InventoryService) Clear(ctx context.Context, guildID, memberID string) (bool, error) {
	id, err := memberScope("clear inventory", guildID, memberID)
	if err != nil {
		return false, err
	}
	items, err := s.list(ctx, id)
	if err != nil || len(items) == 0 {
		return false, err
	}
	if err := s.DB.Set(ctx, cache.Inventory.Path(id), []model.InventoryItem{}); err != nil {
		return false, fmt.Errorf("failed to clear inventory: %w", err)
	}
	return true, s.refresh(ctx, id, cache.Inventory, cache.Users)
}

// take removes n units from items[i] and persists the inventory. It returns
// the quantity left in the stack.
func (s *InventoryService) take(ctx context.Context, id cache.ID, items []model.InventoryItem, i, n int) (int, error) {
	left := items[i].Quantity - n
	var err error
	if left <= 0 {
		_, err = s.DB.Pop(ctx, cache.Inventory.Path(id), i)
		left = 0
	} else {
		next := append([]model.InventoryItem{}, items...)
		next[i].Quantity = left
		err = s.DB.Set(ctx, cache.Inventory.Path(id), next)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update inventory: %w", err)
	}
	return left, nil
}

func indexOfInventoryItem(items []model.InventoryItem, id int) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
