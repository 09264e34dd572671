// Package storage provides the whole-document persistence engines behind the
// path-based data access layer.
package storage

import (
	"context"

	"guild-economy/internal/docpath"
)

// Engine reads and writes the entire persisted document in one round trip.
type Engine interface {
	// Connect prepares the engine. It is idempotent.
	Connect(ctx context.Context) error

	// ReadAll returns the whole document. A store with no data yields an
	// empty, non-nil document.
	ReadAll(ctx context.Context) (docpath.Document, error)

	// WriteAll replaces the whole document.
	WriteAll(ctx context.Context, doc docpath.Document) error

	// Close releases engine resources.
	Close() error

	// Name identifies the engine in logs.
	Name() string
}

// Checker is implemented by engines that can verify and repair their target
// in the background. Check reports whether it had to recreate the target, in
// which case the stored document is now empty.
type Checker interface {
	Check(ctx context.Context) (bool, error)
}

// Reserved guild-level keys; every other object-valued key in a guild record
// is a member record.
const (
	KeyShop       = "shop"
	KeyCurrencies = "currencies"
	KeySettings   = "settings"
)

// IsReservedGuildKey reports whether key names guild-scoped data rather than
// a member.
func IsReservedGuildKey(key string) bool {
	switch key {
	case KeyShop, KeyCurrencies, KeySettings:
		return true
	}
	return false
}
