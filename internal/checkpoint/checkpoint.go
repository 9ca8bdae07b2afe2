// Package checkpoint provides the persisted balance-anchor store used
// by the ledger reconciler.
//
// A checkpoint is an externally asserted balance for an account at a
// known date. The store is keyed "{scope}|{YYYY-MM-DD}". Looking up a
// missing key creates an empty placeholder entry so an operator can
// fill it in later; that write-on-miss side effect is part of the
// contract, not a cache.
package checkpoint

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMissing is returned when no usable checkpoint exists for the
// requested anchor. The statement cannot be reconciled this run.
var ErrMissing = errors.New("checkpoint missing")

// Store is the persistence interface injected into the reconciler.
// Implementations read the full state once, mutate in memory, and
// rewrite in full on Save. Not safe for concurrent runs.
type Store interface {
	// Lookup returns the anchor balance for (scope, date). When the key
	// is absent it records an empty placeholder and returns ErrMissing;
	// a placeholder that has not been filled in also returns ErrMissing.
	Lookup(scope string, date time.Time) (decimal.Decimal, error)

	// Set records an anchor balance.
	Set(scope string, date time.Time, balance decimal.Decimal)

	// Save persists the full state, including placeholders created by
	// Lookup misses.
	Save() error
}

// Key formats the store key for an account scope and anchor date.
func Key(scope string, date time.Time) string {
	return fmt.Sprintf("%s|%s", scope, date.Format("2006-01-02"))
}

// parseValue interprets a stored checkpoint value. Empty means an
// unfilled placeholder. "0" is an explicit zero anchor and valid.
func parseValue(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, ErrMissing
	}
	bal, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid checkpoint value %q: %w", raw, err)
	}
	return bal, nil
}

// Memory is an in-process Store for tests and dry runs.
type Memory struct {
	values map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// NewMemoryWith creates an in-memory store seeded with raw key/value
// pairs (key format "{scope}|{YYYY-MM-DD}", value a decimal string).
func NewMemoryWith(values map[string]string) *Memory {
	m := NewMemory()
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

// Lookup implements Store.
func (m *Memory) Lookup(scope string, date time.Time) (decimal.Decimal, error) {
	key := Key(scope, date)
	raw, ok := m.values[key]
	if !ok {
		m.values[key] = ""
		return decimal.Zero, ErrMissing
	}
	return parseValue(raw)
}

// Set implements Store.
func (m *Memory) Set(scope string, date time.Time, balance decimal.Decimal) {
	m.values[Key(scope, date)] = balance.String()
}

// Save implements Store. Nothing to persist in memory.
func (m *Memory) Save() error {
	return nil
}

// Placeholders returns the keys that were looked up but never filled
// in, sorted order not guaranteed.
func (m *Memory) Placeholders() []string {
	var keys []string
	for k, v := range m.values {
		if v == "" {
			keys = append(keys, k)
		}
	}
	return keys
}
