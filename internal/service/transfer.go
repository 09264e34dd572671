package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// TransferResult reports both balances after a transfer.
type TransferResult struct {
	Amount      float64
	FromBalance float64
	ToBalance   float64
}

// Transfer moves amount from one member's balance to another's in the same
// guild.
func (s *BalanceService) Transfer(ctx context.Context, guildID, fromID, toID string,
	amount float64, reason string) (TransferResult, error) {

	if err := checkPositive(amount); err != nil {
		return TransferResult{}, err
	}
	if fromID == toID {
		return TransferResult{}, ErrSelfTransfer
	}
	if _, err := memberScope("transfer", guildID, toID); err != nil {
		return TransferResult{}, err
	}

	sender, err := s.Get(ctx, guildID, fromID)
	if err != nil {
		return TransferResult{}, err
	}
	if sender < amount {
		return TransferResult{}, ErrInsufficientBalance
	}

	if reason == "" {
		reason = fmt.Sprintf("transfer from %s to %s", fromID, toID)
	}
	from, err := s.Subtract(ctx, guildID, fromID, amount, reason)
	if err != nil {
		return TransferResult{}, fmt.Errorf("failed to deduct from sender: %w", err)
	}
	to, err := s.Add(ctx, guildID, toID, amount, reason)
	if err != nil {
		if _, rbErr := s.Add(ctx, guildID, fromID, amount, "transfer rollback"); rbErr != nil {
			log.Error().Err(rbErr).
				Str("guild_id", guildID).
				Str("from", fromID).
				Float64("amount", amount).
				Msg("Failed to refund sender after transfer")
		}
		return TransferResult{}, fmt.Errorf("failed to add to receiver: %w", err)
	}

	return TransferResult{Amount: amount, FromBalance: from, ToBalance: to}, nil
}
