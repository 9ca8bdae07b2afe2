// Package recurring matches transactions to named recurring-charge
// patterns and grows each pattern's known-transaction set
// incrementally across runs.
package recurring

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Interval is the configured charge frequency.
type Interval string

const (
	IntervalWeekly    Interval = "weekly"
	IntervalBiweekly  Interval = "biweekly"
	IntervalMonthly   Interval = "monthly"
	IntervalQuarterly Interval = "quarterly"
	IntervalBiannual  Interval = "biannual"
	IntervalAnnual    Interval = "annual"
	IntervalIrregular Interval = "irregular"
)

// Days returns the canonical day count for the interval. Unknown
// intervals fall back to monthly, matching long-standing pattern files
// that predate strict validation.
func (i Interval) Days() int {
	switch i {
	case IntervalWeekly:
		return 7
	case IntervalBiweekly:
		return 14
	case IntervalMonthly:
		return 30
	case IntervalQuarterly:
		return 90
	case IntervalBiannual:
		return 180
	case IntervalAnnual:
		return 365
	default:
		return 30
	}
}

// Status is the operator-driven pattern lifecycle. Transitions are
// manual edits to the persisted configuration; there is no automatic
// path back from cancelled to running.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCancelled Status = "cancelled"
)

// AmountRange summarises the observed charge amounts (absolute values,
// over the unsanitised known+new set). Persisted as decimal strings.
type AmountRange struct {
	Min decimal.Decimal
	Max decimal.Decimal
	Avg decimal.Decimal
}

type amountRangeJSON struct {
	Min string `json:"min"`
	Max string `json:"max"`
	Avg string `json:"avg"`
}

// MarshalJSON persists the range as decimal strings.
func (a AmountRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(amountRangeJSON{
		Min: a.Min.String(),
		Max: a.Max.String(),
		Avg: a.Avg.String(),
	})
}

// UnmarshalJSON reads the decimal-string form.
func (a *AmountRange) UnmarshalJSON(data []byte) error {
	var aux amountRangeJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	var err error
	if a.Min, err = decimal.NewFromString(aux.Min); err != nil {
		return fmt.Errorf("invalid amount_range.min %q: %w", aux.Min, err)
	}
	if a.Max, err = decimal.NewFromString(aux.Max); err != nil {
		return fmt.Errorf("invalid amount_range.max %q: %w", aux.Max, err)
	}
	if a.Avg, err = decimal.NewFromString(aux.Avg); err != nil {
		return fmt.Errorf("invalid amount_range.avg %q: %w", aux.Avg, err)
	}
	return nil
}

// Pattern is one persisted recurring-charge configuration. The
// transaction ID set only ever grows during classification; shrinking
// or cancelling is an explicit operator edit.
type Pattern struct {
	Match            string       `json:"pattern"`
	Interval         Interval     `json:"interval"`
	TransactionIDs   []string     `json:"transaction_ids"`
	AmountRange      *AmountRange `json:"amount_range,omitempty"`
	Status           Status       `json:"status"`
	StatusChangeDate string       `json:"status_change_date,omitempty"`
	LastUpdated      time.Time    `json:"last_updated,omitempty"`
}

// normalize fills defaults for hand-edited pattern files.
func (p *Pattern) normalize() {
	if p.Status == "" {
		p.Status = StatusRunning
	}
	if p.Interval == "" {
		p.Interval = IntervalMonthly
	}
	if p.TransactionIDs == nil {
		p.TransactionIDs = []string{}
	}
}

// Store is the persistence interface for pattern state: load the full
// mapping, mutate in memory, save the full mapping. Not safe for
// concurrent runs.
type Store interface {
	Load() (map[string]*Pattern, error)
	Save(patterns map[string]*Pattern) error
}

// MemoryStore is an in-process Store for tests.
type MemoryStore struct {
	patterns map[string]*Pattern
}

// NewMemoryStore creates a store seeded with the given patterns.
func NewMemoryStore(patterns map[string]*Pattern) *MemoryStore {
	if patterns == nil {
		patterns = make(map[string]*Pattern)
	}
	return &MemoryStore{patterns: patterns}
}

// Load implements Store.
func (m *MemoryStore) Load() (map[string]*Pattern, error) {
	out := make(map[string]*Pattern, len(m.patterns))
	for k, v := range m.patterns {
		cp := *v
		cp.TransactionIDs = append([]string(nil), v.TransactionIDs...)
		out[k] = &cp
	}
	return out, nil
}

// Save implements Store.
func (m *MemoryStore) Save(patterns map[string]*Pattern) error {
	m.patterns = patterns
	return nil
}
