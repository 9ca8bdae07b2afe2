// Package extract defines the raw record model and the strategy
// interface implemented by the per-format statement extractors.
//
// Extractors turn bytes into ordered field tuples and nothing else.
// Identity, deduplication, and balance reconstruction all happen
// downstream in the reconciler, so a new file format only ever needs a
// new extractor.
package extract

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/finledger/internal/ledger"
)

// RawRecord is one transaction tuple as read from a source file,
// before identity assignment. Immutable once produced.
type RawRecord struct {
	Date             time.Time
	PostedDate       time.Time // zero when the format has no posted date
	Amount           decimal.Decimal
	Description      string
	Type             ledger.TxnType
	Reference        string
	MerchantCategory string
}

// NewRawRecord validates the fields every format must supply.
// Extractors reject malformed rows here so the core can treat identity
// as a total function.
func NewRawRecord(date time.Time, amount decimal.Decimal, description string) (*RawRecord, error) {
	if date.IsZero() {
		return nil, fmt.Errorf("record date cannot be zero")
	}
	if description == "" {
		return nil, fmt.Errorf("record description cannot be empty")
	}
	return &RawRecord{
		Date:        date,
		Amount:      amount,
		Description: description,
		Type:        ledger.TypeFromAmount(amount),
	}, nil
}

// SourceStatement is the extractor output for one file: records in
// oldest-first order plus whatever statement-level metadata the format
// carries. Extractors that read newest-first files (QIF) reverse before
// returning.
type SourceStatement struct {
	AccountID string // from the file when available, else empty
	StartDate time.Time
	EndDate   time.Time
	Records   []*RawRecord
}

// Extractor is the strategy interface for all file format readers.
type Extractor interface {
	// Name returns the extractor identifier (e.g. "qif", "ofx", "csv-card").
	Name() string

	// CanExtract reports whether this extractor handles the file,
	// judged from its path and the first bytes of content.
	CanExtract(path string, header []byte) bool

	// Extract reads the file into a SourceStatement. A non-nil error
	// means the file is malformed; the caller logs and skips it.
	Extract(ctx context.Context, r io.Reader, meta Metadata) (*SourceStatement, error)
}

// Metadata carries file context the extractor cannot read from the
// bytes themselves: the account folder the file came from and when the
// scan found it.
type Metadata struct {
	FilePath     string
	AccountScope string
	DetectedAt   time.Time
}
