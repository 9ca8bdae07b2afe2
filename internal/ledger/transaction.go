// Package ledger defines the core transaction and statement types shared
// by the reconciler, classifier, and grouper.
package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TxnType classifies the direction of a transaction as reported by the
// source format.
type TxnType string

const (
	TxnDebit  TxnType = "DEBIT"
	TxnCredit TxnType = "CREDIT"
	TxnOther  TxnType = "OTHER"
)

// TypeFromAmount derives a transaction type from the sign of an amount,
// for formats that do not carry an explicit debit/credit marker.
func TypeFromAmount(amount decimal.Decimal) TxnType {
	if amount.IsNegative() {
		return TxnDebit
	}
	return TxnCredit
}

// Transaction is a deduplicated ledger entry. ID is the content hash
// produced by the identity package; it is the deduplication key and the
// classifier's persistence key, so it must never change for a given
// (scope, date, amount, description) tuple.
//
// Transactions are immutable after reconciliation except for
// RunningTotal, which the reconciler attaches while walking the
// statement oldest to newest.
type Transaction struct {
	ID               string
	AccountScope     string
	Date             time.Time
	PostedDate       time.Time // zero when the format has no posted date
	Amount           decimal.Decimal
	Description      string
	Type             TxnType
	Reference        string
	MerchantCategory string

	RunningTotal decimal.Decimal
	HasRunning   bool
}

// Statement is the set of unique transactions contributed by one source
// file after cross-file deduplication, ordered oldest first.
type Statement struct {
	AccountScope   string
	Source         string // base name of the originating file
	StartDate      time.Time
	EndDate        time.Time
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
	Transactions   []*Transaction
}

// Sum returns the signed total of all transaction amounts.
func (s *Statement) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, t := range s.Transactions {
		total = total.Add(t.Amount)
	}
	return total
}

func (s *Statement) String() string {
	return fmt.Sprintf("%s %s (%s to %s, %d txns)",
		s.AccountScope, s.Source,
		s.StartDate.Format("2006-01-02"), s.EndDate.Format("2006-01-02"),
		len(s.Transactions))
}

// SortByDate orders transactions oldest first. The sort is stable so
// same-day transactions keep their file order.
func SortByDate(txns []*Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].Date.Before(txns[j].Date)
	})
}

// Day truncates a time to day precision. Identity and checkpoint keys
// operate on days only.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
