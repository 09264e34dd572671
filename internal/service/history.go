package service

import (
	"context"
	"fmt"

	"guild-economy/internal/cache"
	"guild-economy/internal/model"
)

// HistoryService manages member purchase history.
type HistoryService struct {
	base
}

// NewHistoryService creates a HistoryService.
func NewHistoryService(d Deps) *HistoryService {
	return &HistoryService{base: newBase(d)}
}

// List returns the member's history, oldest first.
func (s *HistoryService) List(ctx context.Context, guildID, memberID string) ([]model.HistoryItem, error) {
	id, err := memberScope("list history", guildID, memberID)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, id)
}

func (s *HistoryService) list(ctx context.Context, id cache.ID) ([]model.HistoryItem, error) {
	var items []model.HistoryItem
	if _, err := s.load(ctx, cache.History, id, &items); err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if items == nil {
		items = []model.HistoryItem{}
	}
	return items, nil
}

// Get returns the entry with the given id.
func (s *HistoryService) Get(ctx context.Context, guildID, memberID string, entryID int) (model.HistoryItem, bool, error) {
	items, err := s.List(ctx, guildID, memberID)
	if err != nil {
		return model.HistoryItem{}, false, err
	}
	if i := indexOfHistoryItem(items, entryID); i >= 0 {
		return items[i], true, nil
	}
	return model.HistoryItem{}, false, nil
}

// Add appends an entry. Its id, guild, member and date are assigned here.
func (s *HistoryService) Add(ctx context.Context, guildID, memberID string, entry model.HistoryItem) (model.HistoryItem, error) {
	id, err := memberScope("add history", guildID, memberID)
	if err != nil {
		return model.HistoryItem{}, err
	}
	if entry.Quantity < 1 {
		return model.HistoryItem{}, ErrInvalidQuantity
	}
	items, err := s.list(ctx, id)
	if err != nil {
		return model.HistoryItem{}, err
	}
	created, err := s.ensureUser(ctx, id)
	if err != nil {
		return model.HistoryItem{}, err
	}

	entry.ID = NextID(items, func(h model.HistoryItem) int { return h.ID })
	entry.GuildID = guildID
	entry.MemberID = memberID
	entry.Date = s.nowMs()
	if entry.TotalPrice == 0 {
		entry.TotalPrice = entry.Price * float64(entry.Quantity)
	}

	if _, err := s.DB.Push(ctx, cache.History.Path(id), entry); err != nil {
		return model.HistoryItem{}, fmt.Errorf("failed to add history: %w", err)
	}
	if err := s.refreshMember(ctx, id, created, cache.History, cache.Users); err != nil {
		return model.HistoryItem{}, err
	}
	return entry, nil
}

// Remove deletes one entry and returns it.
func (s *HistoryService) Remove(ctx context.Context, guildID, memberID string, entryID int) (model.HistoryItem, error) {
	id, err := memberScope("remove history", guildID, memberID)
	if err != nil {
		return model.HistoryItem{}, err
	}
	items, err := s.list(ctx, id)
	if err != nil {
		return model.HistoryItem{}, err
	}
	i := indexOfHistoryItem(items, entryID)
	if i < 0 {
		return model.HistoryItem{}, ErrItemNotFound
	}
	if _, err := s.DB.Pop(ctx, cache.History.Path(id), i); err != nil {
		return model.HistoryItem{}, fmt.Errorf("failed to remove history: %w", err)
	}
	if err := s.refresh(ctx, id, cache.History, cache.Users); err != nil {
		return model.HistoryItem{}, err
	}
	return items[i], nil
}

// Clear empties the member's history. It reports false when it was already
// empty.
func (s *HistoryService) Clear(ctx context.Context, guildID, memberID string) (bool, error) {
	id, err := memberScope("clear history", guildID, memberID)
	if err != nil {
		return false, err
	}
	items, err := s.list(ctx, id)
	if err != nil || len(items) == 0 {
		return false, err
	}
	if err := s.DB.Set(ctx, cache.History.Path(id), []model.HistoryItem{}); err != nil {
		return false, fmt.Errorf("failed to clear history: %w", err)
	}
	return true, s.refresh(ctx, id, cache.History, cache.Users)
}

func indexOfHistoryItem(items []model.HistoryItem, id int) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
