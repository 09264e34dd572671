package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// For any successful transfer the sender loses exactly the amount, the
// receiver gains it, and the total is unchanged. Failed transfers change
// nothing.
func TestTransferConservationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		env := newTestEnv(t, nil)
		ctx := context.Background()

		senderBalance := float64(rapid.IntRange(0, 1000).Draw(t, "senderBalance"))
		receiverBalance := float64(rapid.IntRange(0, 1000).Draw(t, "receiverBalance"))
		amount := float64(rapid.IntRange(-10, 1200).Draw(t, "amount"))
		self := rapid.Bool().Draw(t, "self")

		if _, err := env.Balance.Set(ctx, "G1", "A", senderBalance, ""); err != nil {
			t.Fatalf("seed sender: %v", err)
		}
		if _, err := env.Balance.Set(ctx, "G1", "B", receiverBalance, ""); err != nil {
			t.Fatalf("seed receiver: %v", err)
		}
		to := "B"
		if self {
			to = "A"
		}

		_, err := env.Balance.Transfer(ctx, "G1", "A", to, amount, "")

		gotA, _ := env.Balance.Get(ctx, "G1", "A")
		gotB, _ := env.Balance.Get(ctx, "G1", "B")

		switch {
		case amount <= 0:
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("amount %v: want ErrInvalidAmount, got %v", amount, err)
			}
		case self:
			if !errors.Is(err, ErrSelfTransfer) {
				t.Fatalf("want ErrSelfTransfer, got %v", err)
			}
		case senderBalance < amount:
			if !errors.Is(err, ErrInsufficientBalance) {
				t.Fatalf("want ErrInsufficientBalance, got %v", err)
			}
		default:
			if err != nil {
				t.Fatalf("transfer failed: %v", err)
			}
			if gotA != senderBalance-amount || gotB != receiverBalance+amount {
				t.Fatalf("balances %v/%v after moving %v from %v/%v", gotA, gotB, amount, senderBalance, receiverBalance)
			}
			return
		}

		if gotA != senderBalance || gotB != receiverBalance {
			t.Fatalf("failed transfer changed balances: %v/%v, want %v/%v", gotA, gotB, senderBalance, receiverBalance)
		}
	})
}

func TestTransferRefundsSenderWhenCreditFails(t *testing.T) {
	engine := newBrokenEngine()
	env := newTestEnvOn(t, engine)
	ctx := context.Background()

	_, err := env.Balance.Set(ctx, "G1", "A", 50, "")
	require.NoError(t, err)
	_, err = env.Balance.Set(ctx, "G1", "B", 0, "")
	require.NoError(t, err)

	// The debit is written, the credit is not.
	engine.failOnly(1)
	_, err = env.Balance.Transfer(ctx, "G1", "A", "B", 20, "")
	require.Error(t, err)

	from, err := env.Balance.Get(ctx, "G1", "A")
	require.NoError(t, err)
	assert.Equal(t, 50.0, from)
	to, err := env.Balance.Get(ctx, "G1", "B")
	require.NoError(t, err)
	assert.Zero(t, to)
}

func TestTransferLogsFailedRefund(t *testing.T) {
	engine := newBrokenEngine()
	env := newTestEnvOn(t, engine)
	ctx := context.Background()

	_, err := env.Balance.Set(ctx, "G1", "A", 50, "")
	require.NoError(t, err)
	_, err = env.Balance.Set(ctx, "G1", "B", 0, "")
	require.NoError(t, err)

	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	engine.failFrom(1)
	_, err = env.Balance.Transfer(ctx, "G1", "A", "B", 20, "")
	require.Error(t, err)
	assert.Contains(t, buf.String(), "Failed to refund sender after transfer")
	assert.Contains(t, buf.String(), `"from":"A"`)
}
