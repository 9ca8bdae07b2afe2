package recurring

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/finledger/internal/ledger"
)

// pairAmountTolerance is how close to zero a pair's sum must be to
// count as a cancelling charge/refund pair.
var pairAmountTolerance = decimal.RequireFromString("0.01")

// pairWindowDays is the maximum date spread of a cancelling pair.
const pairWindowDays = 7

// Sanitise removes cancelling pairs from a date-sorted transaction
// list: two transactions whose amounts sum to (within 0.01 of) zero
// and whose dates are at most 7 days apart. The scan runs oldest first
// and greedily pairs each transaction with its nearest qualifying
// match; a paired transaction is excluded from further pairing.
//
// Only the returned baseline changes. The historical record, and the
// pattern's persisted transaction IDs, keep the paired transactions.
// Sanitising an already-sanitised list returns it unchanged.
func Sanitise(txns []*ledger.Transaction) []*ledger.Transaction {
	paired := make([]bool, len(txns))

	for i := range txns {
		if paired[i] {
			continue
		}
		for j := i + 1; j < len(txns); j++ {
			if paired[j] {
				continue
			}
			// list is date-sorted, so the gap only grows from here
			if daysBetween(txns[i].Date, txns[j].Date) > pairWindowDays {
				break
			}
			if txns[i].Amount.Add(txns[j].Amount).Abs().LessThanOrEqual(pairAmountTolerance) {
				paired[i] = true
				paired[j] = true
				break
			}
		}
	}

	remaining := make([]*ledger.Transaction, 0, len(txns))
	for i, t := range txns {
		if !paired[i] {
			remaining = append(remaining, t)
		}
	}
	return remaining
}

func daysBetween(a, b time.Time) int {
	d := b.Sub(a) / (24 * time.Hour)
	if d < 0 {
		d = -d
	}
	return int(d)
}
