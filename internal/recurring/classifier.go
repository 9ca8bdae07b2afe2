package recurring

import (
	"fmt"
	"log"
	"regexp"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/finledger/internal/ledger"
)

// amountDeviation is the accepted relative deviation from the baseline
// average amount.
var amountDeviation = decimal.RequireFromString("0.2")

// intervalTolerance is the accepted fraction of the canonical interval
// day count.
const intervalTolerance = 0.2

// ChargeResult reports one pattern's classification for this run:
// the previously known transactions, the candidates accepted as new
// matches, and the recomputed statistics.
type ChargeResult struct {
	Name           string
	Interval       Interval
	Status         Status
	Known          []*ledger.Transaction
	New            []*ledger.Transaction
	AmountRange    AmountRange
	TransactionIDs []string
}

// Classifier matches the combined transaction stream against the
// persisted patterns and writes the grown pattern state back through
// its store. It exclusively owns pattern membership.
type Classifier struct {
	store Store
	now   func() time.Time
}

// NewClassifier creates a classifier over the given pattern store.
func NewClassifier(store Store) *Classifier {
	return &Classifier{store: store, now: time.Now}
}

// Classify runs every configured pattern over the full
// chronologically sorted transaction stream, persists the merged
// transaction IDs, and returns the per-pattern results keyed by
// charge name.
//
// Re-running with the same transactions and state reproduces the same
// known/new split: accepted IDs move to known on the first run and are
// found there on the next.
func (c *Classifier) Classify(all []*ledger.Transaction) (map[string]*ChargeResult, error) {
	patterns, err := c.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load recurring patterns: %w", err)
	}

	stream := make([]*ledger.Transaction, len(all))
	copy(stream, all)
	ledger.SortByDate(stream)

	results := make(map[string]*ChargeResult, len(patterns))

	// deterministic pattern order; map iteration would reorder log
	// output and LastUpdated churn between runs
	names := make([]string, 0, len(patterns))
	for name := range patterns {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := patterns[name]
		p.normalize()
		results[name] = c.classifyPattern(name, p, stream)
	}

	if err := c.store.Save(patterns); err != nil {
		return nil, fmt.Errorf("failed to save recurring patterns: %w", err)
	}
	return results, nil
}

// classifyPattern partitions the stream for one pattern, accepts
// qualifying candidates, and updates the pattern in place.
func (c *Classifier) classifyPattern(name string, p *Pattern, stream []*ledger.Transaction) *ChargeResult {
	knownIDs := make(map[string]bool, len(p.TransactionIDs))
	for _, id := range p.TransactionIDs {
		knownIDs[id] = true
	}

	// an unparseable pattern matches nothing; zero matches is the
	// contract, not an error
	var re *regexp.Regexp
	if p.Match != "" {
		compiled, err := regexp.Compile("(?i)" + p.Match)
		if err != nil {
			log.Printf("WARNING: pattern %q has invalid match expression %q: %v", name, p.Match, err)
		} else {
			re = compiled
		}
	}

	var known, candidates []*ledger.Transaction
	for _, t := range stream {
		switch {
		case knownIDs[t.ID]:
			known = append(known, t)
		case re != nil && re.MatchString(t.Description):
			candidates = append(candidates, t)
		}
	}

	var accepted []*ledger.Transaction

	// cancelled patterns keep reporting history but accept nothing new
	if p.Status == StatusRunning {
		// cancelling charge/refund pairs are removed from the baseline
		// only; they stay in the known set and the persisted IDs
		baseline := Sanitise(known)
		avg := averageAmount(baseline)

		for _, cand := range candidates {
			if !amountFits(cand.Amount, avg, baseline) {
				continue
			}
			if !fitsInterval(cand.Date, baseline, p.Interval) {
				continue
			}
			accepted = append(accepted, cand)
		}
	}

	for _, t := range accepted {
		knownIDs[t.ID] = true
	}
	merged := make([]string, 0, len(knownIDs))
	for id := range knownIDs {
		merged = append(merged, id)
	}
	sort.Strings(merged)

	// reporting statistics use the unsanitised known+new set
	full := append(append([]*ledger.Transaction{}, known...), accepted...)
	ledger.SortByDate(full)
	amountRange := computeAmountRange(full)

	p.TransactionIDs = merged
	p.AmountRange = &amountRange
	p.LastUpdated = c.now()

	return &ChargeResult{
		Name:           name,
		Interval:       p.Interval,
		Status:         p.Status,
		Known:          known,
		New:            accepted,
		AmountRange:    amountRange,
		TransactionIDs: merged,
	}
}

// averageAmount is the signed mean of the baseline amounts; zero when
// the baseline is empty.
func averageAmount(baseline []*ledger.Transaction) decimal.Decimal {
	if len(baseline) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, t := range baseline {
		sum = sum.Add(t.Amount)
	}
	return sum.Div(decimal.NewFromInt(int64(len(baseline))))
}

// amountFits accepts a candidate whose amount is within 20% relative
// deviation of the baseline average. With no baseline (or a zero
// average, where relative deviation is undefined) the check passes.
func amountFits(amount, avg decimal.Decimal, baseline []*ledger.Transaction) bool {
	if len(baseline) == 0 || avg.IsZero() {
		return true
	}
	deviation := amount.Sub(avg).Abs().Div(avg.Abs())
	return deviation.LessThan(amountDeviation)
}

// fitsInterval accepts a candidate dated within ±20% of the canonical
// interval day count, measured against the closest baseline date.
// Irregular patterns and empty baselines accept any date.
func fitsInterval(date time.Time, baseline []*ledger.Transaction, interval Interval) bool {
	if len(baseline) == 0 || interval == IntervalIrregular {
		return true
	}

	canonical := interval.Days()

	closest := daysBetween(baseline[0].Date, date)
	for _, t := range baseline[1:] {
		if d := daysBetween(t.Date, date); d < closest {
			closest = d
		}
	}

	slack := float64(canonical) * intervalTolerance
	diff := closest - canonical
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) <= slack
}

// computeAmountRange summarises absolute amounts; zero range for an
// empty set.
func computeAmountRange(txns []*ledger.Transaction) AmountRange {
	if len(txns) == 0 {
		return AmountRange{Min: decimal.Zero, Max: decimal.Zero, Avg: decimal.Zero}
	}

	min := txns[0].Amount.Abs()
	max := min
	sum := decimal.Zero
	for _, t := range txns {
		abs := t.Amount.Abs()
		if abs.LessThan(min) {
			min = abs
		}
		if abs.GreaterThan(max) {
			max = abs
		}
		sum = sum.Add(abs)
	}
	return AmountRange{
		Min: min,
		Max: max,
		Avg: sum.Div(decimal.NewFromInt(int64(len(txns)))),
	}
}
