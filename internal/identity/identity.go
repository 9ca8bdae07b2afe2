// Package identity derives stable content-addressed transaction IDs.
//
// The ID is the deduplication key and the recurring-charge classifier's
// persistence key, so the hash input format is frozen: changing it would
// orphan every persisted transaction reference.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/finledger/internal/ledger"
)

// IDLength is the number of hex characters kept from the SHA-256 digest.
const IDLength = 12

// Generator builds transaction IDs scoped to one account folder.
//
// IncludeType folds the debit/credit marker into the hash. Card exports
// that report corrections as a separate type want this on so a charge
// and its same-day, same-amount reversal keep distinct identities;
// formats whose type field is unreliable leave it off.
type Generator struct {
	Scope       string
	IncludeType bool
}

// TransactionID hashes the identifying fields of a record into a short
// printable token.
//
// The amount contributes its absolute value at 2-decimal precision, the
// date contributes day precision only, and the description is used as
// cleaned. Two records from the same account with identical
// (date, |amount|, description[, type]) collapse to the same ID.
func (g Generator) TransactionID(date time.Time, amount decimal.Decimal, description string, txnType ledger.TxnType) string {
	input := fmt.Sprintf("%s|%s|%s|%s",
		g.Scope,
		date.Format("20060102"),
		amount.Abs().StringFixed(2),
		CleanDescription(description),
	)
	if g.IncludeType {
		input += "|" + string(txnType)
	}

	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:IDLength]
}

// CleanDescription collapses runs of whitespace to single spaces and
// trims the ends. Case is preserved: descriptions are user-facing and
// the hash must match what reports display.
func CleanDescription(desc string) string {
	return strings.Join(strings.Fields(desc), " ")
}
