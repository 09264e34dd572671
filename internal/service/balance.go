package service

import (
	"context"
	"fmt"
	"sort"

	"guild-economy/internal/cache"
	"guild-economy/internal/events"
	"guild-economy/internal/storage"
)

// wallet implements the numeric operations shared by the cash balance and
// the bank balance of a member.
type wallet struct {
	base
	field string
	slice cache.Slice

	setEvent, addEvent, subtractEvent events.Name
}

// Get returns the stored amount, 0 for a member with no record.
func (w wallet) Get(ctx context.Context, guildID, memberID string) (float64, error) {
	id, err := memberScope("get "+w.field, guildID, memberID)
	if err != nil {
		return 0, err
	}
	var amount float64
	if _, err := w.load(ctx, w.slice, id, &amount); err != nil {
		return 0, fmt.Errorf("failed to get %s: %w", w.field, err)
	}
	return amount, nil
}

// Set overwrites the stored amount and returns it.
func (w wallet) Set(ctx context.Context, guildID, memberID string, amount float64, reason string) (float64, error) {
	id, err := memberScope("set "+w.field, guildID, memberID)
	if err != nil {
		return 0, err
	}
	if err := checkFinite(amount); err != nil {
		return 0, err
	}
	created, err := w.ensureUser(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := w.DB.Set(ctx, w.slice.Path(id), amount); err != nil {
		return 0, fmt.Errorf("failed to set %s: %w", w.field, err)
	}
	if err := w.refreshMember(ctx, id, created, w.slice, cache.Users); err != nil {
		return 0, err
	}

	w.emit(w.setEvent, w.event(w.setEvent, id, amount, amount, reason))
	return amount, nil
}

// Add increases the stored amount and returns the new value.
func (w wallet) Add(ctx context.Context, guildID, memberID string, amount float64, reason string) (float64, error) {
	return w.change(ctx, guildID, memberID, amount, reason, w.addEvent)
}

// Subtract decreases the stored amount and returns the new value. The result
// may be negative.
func (w wallet) Subtract(ctx context.Context, guildID, memberID string, amount float64, reason string) (float64, error) {
	return w.change(ctx, guildID, memberID, amount, reason, w.subtractEvent)
}

func (w wallet) change(ctx context.Context, guildID, memberID string, amount float64,
	reason string, name events.Name) (float64, error) {

	id, err := memberScope(string(name), guildID, memberID)
	if err != nil {
		return 0, err
	}
	if err := checkPositive(amount); err != nil {
		return 0, err
	}
	created, err := w.ensureUser(ctx, id)
	if err != nil {
		return 0, err
	}

	var result float64
	if name == w.addEvent {
		result, err = w.DB.Add(ctx, w.slice.Path(id), amount)
	} else {
		result, err = w.DB.Subtract(ctx, w.slice.Path(id), amount)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update %s: %w", w.field, err)
	}
	if err := w.refreshMember(ctx, id, created, w.slice, cache.Users); err != nil {
		return 0, err
	}

	w.emit(name, w.event(name, id, amount, result, reason))
	return result, nil
}

func (w wallet) event(name events.Name, id cache.ID, amount, balance float64, reason string) events.BalanceEvent {
	return events.BalanceEvent{
		Type:     name,
		GuildID:  id.GuildID,
		MemberID: id.MemberID,
		Amount:   amount,
		Balance:  balance,
		Reason:   reason,
	}
}

// LeaderboardEntry is one row of a leaderboard.
type LeaderboardEntry struct {
	Rank     int
	MemberID string
	Amount   float64
}

// Leaderboard ranks the guild's members by the stored amount, highest first.
// Members with equal amounts are ordered by ID. A limit of 0 returns all.
func (w wallet) Leaderboard(ctx context.Context, guildID string, limit int) ([]LeaderboardEntry, error) {
	id, err := guildScope("leaderboard", guildID)
	if err != nil {
		return nil, err
	}
	var guild map[string]any
	if _, err := w.load(ctx, cache.Guilds, id, &guild); err != nil {
		return nil, fmt.Errorf("failed to load guild: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(guild))
	for memberID, raw := range guild {
		if storage.IsReservedGuildKey(memberID) {
			continue
		}
		record, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		amount, _ := asNumber(record[w.field])
		entries = append(entries, LeaderboardEntry{MemberID: memberID, Amount: amount})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Amount != entries[j].Amount {
			return entries[i].Amount > entries[j].Amount
		}
		return entries[i].MemberID < entries[j].MemberID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// BalanceService manages the cash balance of members.
type BalanceService struct {
	wallet
}

// NewBalanceService creates a BalanceService.
func NewBalanceService(d Deps) *BalanceService {
	return &BalanceService{wallet{
		base:          newBase(d),
		field:         "money",
		slice:         cache.Balance,
		setEvent:      events.BalanceSet,
		addEvent:      events.BalanceAdd,
		subtractEvent: events.BalanceSubtract,
	}}
}

// BankService manages the bank balance of members.
type BankService struct {
	wallet
	balance *BalanceService
}

// NewBankService creates a BankService. Deposits and withdrawals move money
// through balance.
func NewBankService(d Deps, balance *BalanceService) *BankService {
	return &BankService{
		wallet: wallet{
			base:          newBase(d),
			field:         "bank",
			slice:         cache.Bank,
			setEvent:      events.BankSet,
			addEvent:      events.BankAdd,
			subtractEvent: events.BankSubtract,
		},
		balance: balance,
	}
}

// Deposit moves amount from the member's balance into the bank.
func (s *BankService) Deposit(ctx context.Context, guildID, memberID string, amount float64, reason string) error {
	if err := checkPositive(amount); err != nil {
		return err
	}
	money, err := s.balance.Get(ctx, guildID, memberID)
	if err != nil {
		return err
	}
	if money < amount {
		return ErrInsufficientBalance
	}

	if _, err := s.balance.Subtract(ctx, guildID, memberID, amount, reason); err != nil {
		return err
	}
	if _, err := s.Add(ctx, guildID, memberID, amount, reason); err != nil {
		return err
	}
	return nil
}

// Withdraw moves amount from the bank into the member's balance.
func (s *BankService) Withdraw(ctx context.Context, guildID, memberID string, amount float64, reason string) error {
	if err := checkPositive(amount); err != nil {
		return err
	}
	bank, err := s.Get(ctx, guildID, memberID)
	if err != nil {
		return err
	}
	if bank < amount {
		return ErrInsufficientBalance
	}

	if _, err := s.Subtract(ctx, guildID, memberID, amount, reason); err != nil {
		return err
	}
	if _, err := s.balance.Add(ctx, guildID, memberID, amount, reason); err != nil {
		return err
	}
	return nil
}
