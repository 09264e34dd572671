package service

import (
	"context"
	"fmt"
	"strings"

	"guild-economy/internal/cache"
	"guild-economy/internal/events"
	"guild-economy/internal/model"
)

// CurrencyService manages guild-defined currencies and member balances in
// them.
type CurrencyService struct {
	base
}

// NewCurrencyService creates a CurrencyService.
func NewCurrencyService(d Deps) *CurrencyService {
	return &CurrencyService{base: newBase(d)}
}

// List returns the guild's currencies.
func (s *CurrencyService) List(ctx context.Context, guildID string) ([]model.Currency, error) {
	id, err := guildScope("list currencies", guildID)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, id)
}

func (s *CurrencyService) list(ctx context.Context, id cache.ID) ([]model.Currency, error) {
	var currencies []model.Currency
	if _, err := s.load(ctx, cache.Currencies, id, &currencies); err != nil {
		return nil, fmt.Errorf("failed to load currencies: %w", err)
	}
	if currencies == nil {
		currencies = []model.Currency{}
	}
	return currencies, nil
}

// Get returns the currency with the given id.
func (s *CurrencyService) Get(ctx context.Context, guildID string, currencyID int) (model.Currency, bool, error) {
	currencies, err := s.List(ctx, guildID)
	if err != nil {
		return model.Currency{}, false, err
	}
	if i := indexOfCurrency(currencies, currencyID); i >= 0 {
		return currencies[i], true, nil
	}
	return model.Currency{}, false, nil
}

// Find returns the currency whose name or symbol matches, ignoring case.
func (s *CurrencyService) Find(ctx context.Context, guildID, nameOrSymbol string) (model.Currency, bool, error) {
	currencies, err := s.List(ctx, guildID)
	if err != nil {
		return model.Currency{}, false, err
	}
	for _, c := range currencies {
		if strings.EqualFold(c.Name, nameOrSymbol) || (c.Symbol != "" && c.Symbol == nameOrSymbol) {
			return c, true, nil
		}
	}
	return model.Currency{}, false, nil
}

// Create adds a currency. Names are unique within a guild, ignoring case.
func (s *CurrencyService) Create(ctx context.Context, guildID, name, symbol string) (model.Currency, error) {
	id, err := guildScope("create currency", guildID)
	if err != nil {
		return model.Currency{}, err
	}
	if strings.TrimSpace(name) == "" {
		return model.Currency{}, fmt.Errorf("%w: name must not be empty", ErrInvalidProperty)
	}
	currencies, err := s.list(ctx, id)
	if err != nil {
		return model.Currency{}, err
	}
	for _, c := range currencies {
		if strings.EqualFold(c.Name, name) {
			return model.Currency{}, ErrCurrencyExists
		}
	}

	currency := model.Currency{
		ID:       NextID(currencies, func(c model.Currency) int { return c.ID }),
		GuildID:  guildID,
		Name:     name,
		Symbol:   symbol,
		Balances: map[string]float64{},
	}
	if _, err := s.DB.Push(ctx, cache.Currencies.Path(id), currency); err != nil {
		return model.Currency{}, fmt.Errorf("failed to create currency: %w", err)
	}
	if err := s.refresh(ctx, id, cache.Currencies); err != nil {
		return model.Currency{}, err
	}
	return currency, nil
}

// Delete removes a currency and every balance held in it.
func (s *CurrencyService) Delete(ctx context.Context, guildID string, currencyID int) (model.Currency, error) {
	id, err := guildScope("delete currency", guildID)
	if err != nil {
		return model.Currency{}, err
	}
	currencies, err := s.list(ctx, id)
	if err != nil {
		return model.Currency{}, err
	}
	i := indexOfCurrency(currencies, currencyID)
	if i < 0 {
		return model.Currency{}, ErrCurrencyNotFound
	}
	if _, err := s.DB.Pop(ctx, cache.Currencies.Path(id), i); err != nil {
		return model.Currency{}, fmt.Errorf("failed to delete currency: %w", err)
	}
	if err := s.refresh(ctx, id, cache.Currencies); err != nil {
		return model.Currency{}, err
	}
	return currencies[i], nil
}

// Clear removes every currency of the guild. It reports false when there
// were none.
func (s *CurrencyService) Clear(ctx context.Context, guildID string) (bool, error) {
	id, err := guildScope("clear currencies", guildID)
	if err != nil {
		return false, err
	}
	currencies, err := s.list(ctx, id)
	if err != nil || len(currencies) == 0 {
		return false, err
	}
	if err := s.DB.Set(ctx, cache.Currencies.Path(id), []model.Currency{}); err != nil {
		return false, fmt.Errorf("failed to clear currencies: %w", err)
	}
	return true, s.refresh(ctx, id, cache.Currencies)
}

// Balance returns the member's balance in a currency.
func (s *CurrencyService) Balance(ctx context.Context, guildID, memberID string, currencyID int) (float64, error) {
	if _, err := memberScope("currency balance", guildID, memberID); err != nil {
		return 0, err
	}
	c, ok, err := s.Get(ctx, guildID, currencyID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrCurrencyNotFound
	}
	return c.BalanceOf(memberID), nil
}

// SetBalance overwrites the member's balance in a currency.
func (s *CurrencyService) SetBalance(ctx context.Context, guildID, memberID string, currencyID int, amount float64, reason string) (float64, error) {
	if err := checkFinite(amount); err != nil {
		return 0, err
	}
	return s.update(ctx, guildID, memberID, currencyID, amount, reason, events.CurrencySet,
		func(float64) float64 { return amount })
}

// AddBalance increases the member's balance in a currency.
func (s *CurrencyService) AddBalance(ctx context.Context, guildID, memberID string, currencyID int, amount float64, reason string) (float64, error) {
	if err := checkPositive(amount); err != nil {
		return 0, err
	}
	return s.update(ctx, guildID, memberID, currencyID, amount, reason, events.CurrencyAdd,
		func(cur float64) float64 { return cur + amount })
}

// SubtractBalance decreases the member's balance in a currency. The result
// may be negative.
func (s *CurrencyService) SubtractBalance(ctx context.Context, guildID, memberID string, currencyID int, amount float64, reason string) (float64, error) {
	if err := checkPositive(amount); err != nil {
		return 0, err
	}
	return s.update(ctx, guildID, memberID, currencyID, amount, reason, events.CurrencySubtract,
		func(cur float64) float64 { return cur - amount })
}

func (s *CurrencyService) update(ctx context.Context, guildID, memberID string, currencyID int,
	amount float64, reason string, name events.Name, apply func(float64) float64) (float64, error) {

	if _, err := memberScope(string(name), guildID, memberID); err != nil {
		return 0, err
	}
	id := cache.GuildID(guildID)
	currencies, err := s.list(ctx, id)
	if err != nil {
		return 0, err
	}
	i := indexOfCurrency(currencies, currencyID)
	if i < 0 {
		return 0, ErrCurrencyNotFound
	}

	balances := make(map[string]float64, len(currencies[i].Balances)+1)
	for k, v := range currencies[i].Balances {
		balances[k] = v
	}
	result := apply(balances[memberID])
	balances[memberID] = result
	currencies[i].Balances = balances

	if err := s.DB.Set(ctx, cache.Currencies.Path(id), currencies); err != nil {
		return 0, fmt.Errorf("failed to update currency balance: %w", err)
	}
	if err := s.refresh(ctx, id, cache.Currencies); err != nil {
		return 0, err
	}

	s.emit(name, events.CurrencyEvent{
		Type:       name,
		GuildID:    guildID,
		MemberID:   memberID,
		CurrencyID: currencyID,
		Amount:     amount,
		Balance:    result,
		Reason:     reason,
	})
	return result, nil
}

func indexOfCurrency(currencies []model.Currency, id int) int {
	for i, c := range currencies {
		if c.ID == id {
			return i
		}
	}
	return -1
}
