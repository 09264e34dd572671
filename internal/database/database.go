// Package database provides the path-based CRUD surface used by every domain
// manager. Each mutation reads the whole document from the storage engine,
// applies the change to the path, and writes the whole document back.
//
// There is no locking: two callers mutating overlapping paths at the same
// time can lose an update, since each holds its own copy of the document
// between ReadAll and WriteAll.
package database

import (
	"context"
	"fmt"
	"math"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"

	"guild-economy/internal/dberr"
	"guild-economy/internal/docpath"
	"guild-economy/internal/storage"
)

// Manager implements path-based operations on top of a storage engine.
type Manager struct {
	engine storage.Engine
}

// New creates a Manager over engine.
func New(engine storage.Engine) *Manager {
	return &Manager{engine: engine}
}

// Fetch returns the value at path, or nil when nothing is stored there.
func (m *Manager) Fetch(ctx context.Context, path string) (any, error) {
	p, err := docpath.Parse(path)
	if err != nil {
		return nil, err
	}
	doc, err := m.engine.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	v, _ := docpath.Get(doc, p)
	return v, nil
}

// FetchInto decodes the value at path into out and reports whether a value
// was found. out is left untouched when nothing is stored.
func (m *Manager) FetchInto(ctx context.Context, path string, out any) (bool, error) {
	v, err := m.Fetch(ctx, path)
	if err != nil || v == nil {
		return false, err
	}
	if err := Decode(v, out); err != nil {
		return false, dberr.Validation("fetch", path, "%v", err)
	}
	return true, nil
}

// Set stores value at path, creating intermediate objects.
func (m *Manager) Set(ctx context.Context, path string, value any) error {
	p, err := docpath.Parse(path)
	if err != nil {
		return err
	}
	if value == nil {
		return dberr.Validation("set", path, "value must not be nil; use Delete")
	}
	normalized, err := docpath.Normalize(value)
	if err != nil {
		return err
	}

	return m.mutate(ctx, "set", p, func(doc docpath.Document) (docpath.Document, error) {
		return docpath.Set(doc, p, normalized)
	})
}

// Add increments the number at path by amount. A missing value counts as 0.
// It returns the new value.
func (m *Manager) Add(ctx context.Context, path string, amount float64) (float64, error) {
	return m.addNumber(ctx, "add", path, amount)
}

// Subtract decrements the number at path by amount. The result is not
// clamped: balances may go negative.
func (m *Manager) Subtract(ctx context.Context, path string, amount float64) (float64, error) {
	return m.addNumber(ctx, "subtract", path, -amount)
}

func (m *Manager) addNumber(ctx context.Context, op, path string, delta float64) (float64, error) {
	p, err := docpath.Parse(path)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return 0, dberr.Validation(op, path, "amount must be a finite number")
	}

	var result float64
	err = m.mutate(ctx, op, p, func(doc docpath.Document) (docpath.Document, error) {
		current := 0.0
		if v, ok := docpath.Get(doc, p); ok && v != nil {
			n, ok := v.(float64)
			if !ok {
				return nil, dberr.Validation(op, path, "existing value is %s, want number", docpath.TypeName(v))
			}
			current = n
		}
		result = current + delta
		return docpath.Set(doc, p, result)
	})
	if err != nil {
		return 0, err
	}
	return result, nil
}

// Push appends value to the array at path. A missing value counts as [].
// It returns the new array length.
func (m *Manager) Push(ctx context.Context, path string, value any) (int, error) {
	p, err := docpath.Parse(path)
	if err != nil {
		return 0, err
	}
	if value == nil {
		return 0, dberr.Validation("push", path, "value must not be nil")
	}
	normalized, err := docpath.Normalize(value)
	if err != nil {
		return 0, err
	}

	var length int
	err = m.mutate(ctx, "push", p, func(doc docpath.Document) (docpath.Document, error) {
		arr, err := arrayAt(doc, p, "push")
		if err != nil {
			return nil, err
		}
		next := make([]any, len(arr), len(arr)+1)
		copy(next, arr)
		next = append(next, normalized)
		length = len(next)
		return docpath.Set(doc, p, next)
	})
	if err != nil {
		return 0, err
	}
	return length, nil
}

// Pop removes the element at index from the array at path and returns it.
func (m *Manager) Pop(ctx context.Context, path string, index int) (any, error) {
	p, err := docpath.Parse(path)
	if err != nil {
		return nil, err
	}

	var removed any
	err = m.mutate(ctx, "pop", p, func(doc docpath.Document) (docpath.Document, error) {
		arr, err := arrayAt(doc, p, "pop")
		if err != nil {
			return nil, err
		}
		if index < 0 || index >= len(arr) {
			return nil, dberr.Validation("pop", path, "index %d out of bounds for length %d", index, len(arr))
		}
		removed = arr[index]
		next := make([]any, 0, len(arr)-1)
		next = append(next, arr[:index]...)
		next = append(next, arr[index+1:]...)
		return docpath.Set(doc, p, next)
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// Delete removes the value at path. It reports false, without writing, when
// nothing was stored there.
func (m *Manager) Delete(ctx context.Context, path string) (bool, error) {
	p, err := docpath.Parse(path)
	if err != nil {
		return false, err
	}

	doc, err := m.engine.ReadAll(ctx)
	if err != nil {
		return false, err
	}
	updated, removed := docpath.Unset(doc, p)
	if !removed {
		return false, nil
	}
	if err := m.engine.WriteAll(ctx, updated); err != nil {
		return false, err
	}

	log.Debug().Str("op", "delete").Str("path", path).Msg("Database write")
	return true, nil
}

// All returns the entire document.
func (m *Manager) All(ctx context.Context) (docpath.Document, error) {
	return m.engine.ReadAll(ctx)
}

// mutate runs one read-modify-write cycle.
func (m *Manager) mutate(ctx context.Context, op string, p docpath.Path,
	apply func(docpath.Document) (docpath.Document, error)) error {

	doc, err := m.engine.ReadAll(ctx)
	if err != nil {
		return err
	}
	updated, err := apply(doc)
	if err != nil {
		return err
	}
	if key, err := storage.CheckShape(updated); err != nil {
		return dberr.Validation(op, key, "%v", err)
	}
	if err := m.engine.WriteAll(ctx, updated); err != nil {
		return err
	}

	log.Debug().Str("op", op).Str("path", p.String()).Msg("Database write")
	return nil
}

func arrayAt(doc docpath.Document, p docpath.Path, op string) ([]any, error) {
	v, ok := docpath.Get(doc, p)
	if !ok || v == nil {
		return nil, nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, dberr.Validation(op, p.String(), "existing value is %s, want array", docpath.TypeName(v))
	}
	return arr, nil
}

// Decode converts a JSON tree into a Go value using json struct tags.
func Decode(in, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return dec.Decode(in)
}
