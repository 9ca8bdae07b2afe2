// Package csvx extracts transactions from card-issuer CSV exports
// (Virgin Money layout: one header row, named columns, DBIT/CRDT
// direction markers).
package csvx

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/finledger/internal/extract"
	"github.com/rumor-ml/finledger/internal/identity"
	"github.com/rumor-ml/finledger/internal/ledger"
)

// Extractor implements card CSV extraction with a stateless design; it
// is safe for concurrent use.
type Extractor struct{}

var instance = &Extractor{}

// New returns the shared card CSV extractor instance.
func New() *Extractor {
	return instance
}

// Name returns the extractor identifier.
func (e *Extractor) Name() string {
	return "csv-card"
}

// requiredColumns are the header fields that identify this export
// layout.
var requiredColumns = []string{"Transaction Date", "Billing Amount", "Merchant"}

// CanExtract accepts .csv files whose header row carries the card
// export columns.
func (e *Extractor) CanExtract(path string, header []byte) bool {
	if strings.ToLower(filepath.Ext(path)) != ".csv" {
		return false
	}

	r := csv.NewReader(strings.NewReader(string(header)))
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	record, err := r.Read()
	if err != nil {
		return false
	}

	cols := make(map[string]bool, len(record))
	for _, c := range record {
		cols[strings.TrimSpace(stripBOM(c))] = true
	}
	for _, want := range requiredColumns {
		if !cols[want] {
			return false
		}
	}
	return true
}

// Extract reads the CSV rows into raw records, oldest first.
func (e *Extractor) Extract(ctx context.Context, r io.Reader, meta extract.Metadata) (*extract.SourceStatement, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	csvReader := csv.NewReader(r)
	csvReader.LazyQuotes = true
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV content: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("CSV file has no transaction rows")
	}

	index := make(map[string]int, len(rows[0]))
	for i, c := range rows[0] {
		index[strings.TrimSpace(stripBOM(c))] = i
	}
	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	records := make([]*extract.RawRecord, 0, len(rows)-1)
	for n, row := range rows[1:] {
		date, err := parseDate(field(row, "Transaction Date"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+2, err)
		}

		amount, err := parseAmount(field(row, "Billing Amount"))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+2, err)
		}

		// direction marker; some exports leak the MCC code into this
		// column, in which case the sign stays as billed
		direction := strings.ToUpper(field(row, "Debit or Credit"))
		txnType := ledger.TxnOther
		switch direction {
		case "DBIT":
			amount = amount.Neg()
			txnType = ledger.TxnDebit
		case "CRDT":
			txnType = ledger.TxnCredit
		}

		rec, err := extract.NewRawRecord(date, amount, identity.CleanDescription(field(row, "Merchant")))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+2, err)
		}
		rec.Type = txnType
		rec.MerchantCategory = field(row, "SICMCC Code")
		if posted := field(row, "Posting Date"); posted != "" {
			if pd, err := parseDate(posted); err == nil {
				rec.PostedDate = pd
			}
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no transactions found in CSV file")
	}

	// row order is not guaranteed; present oldest first
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})

	return &extract.SourceStatement{
		StartDate: records[0].Date,
		EndDate:   records[len(records)-1].Date,
		Records:   records,
	}, nil
}

func stripBOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d, nil
	}
	d, err := time.Parse("02/01/2006", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable CSV date %q", s)
	}
	return d, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("£", "", ",", "").Replace(s)
	amt, err := decimal.NewFromString(strings.TrimSpace(cleaned))
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable CSV amount %q: %w", s, err)
	}
	return amt, nil
}
