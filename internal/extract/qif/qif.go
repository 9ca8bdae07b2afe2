// Package qif extracts transactions from QIF statement exports.
//
// QIF files from the card issuers this tool grew up on list
// transactions newest first, so records are reversed to oldest-first
// before returning.
package qif

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rumor-ml/finledger/internal/extract"
	"github.com/rumor-ml/finledger/internal/identity"
	"github.com/rumor-ml/finledger/internal/ledger"
)

// Extractor implements QIF parsing with a stateless design; it is safe
// for concurrent use.
type Extractor struct{}

var instance = &Extractor{}

// New returns the shared QIF extractor instance.
func New() *Extractor {
	return instance
}

// Name returns the extractor identifier.
func (e *Extractor) Name() string {
	return "qif"
}

// CanExtract accepts .qif files whose first line is a QIF type header.
func (e *Extractor) CanExtract(path string, header []byte) bool {
	if strings.ToLower(filepath.Ext(path)) != ".qif" {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(string(header)), "!Type:")
}

// Extract reads the QIF record stream. Each transaction is a block of
// single-letter field lines terminated by "^".
func (e *Extractor) Extract(ctx context.Context, r io.Reader, meta extract.Metadata) (*extract.SourceStatement, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var (
		records []*extract.RawRecord
		current qifFields
		scanner = bufio.NewScanner(r)
		lineNo  int
	)

	flush := func() error {
		if current.empty() {
			return nil
		}
		rec, err := current.toRecord()
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		records = append(records, rec)
		current = qifFields{}
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "!") {
			continue
		}

		code, value := line[0], strings.TrimSpace(line[1:])
		switch code {
		case '^':
			if err := flush(); err != nil {
				return nil, err
			}
		case 'D':
			d, err := parseDate(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			current.date = d
		case 'T':
			amt, err := parseAmount(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			// QIF card exports record charges as positive; flip so
			// negative means outflow like every other format here
			current.amount = amt.Neg()
			current.hasAmount = true
		case 'P':
			current.description = value
		case 'N':
			current.reference = value
		case 'L':
			current.category = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read QIF content: %w", err)
	}
	// file may omit the final "^"
	if err := flush(); err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no transactions found in QIF file")
	}

	// newest-first on disk; present oldest-first
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	return &extract.SourceStatement{
		StartDate: records[0].Date,
		EndDate:   records[len(records)-1].Date,
		Records:   records,
	}, nil
}

type qifFields struct {
	date        time.Time
	amount      decimal.Decimal
	hasAmount   bool
	description string
	reference   string
	category    string
}

func (f *qifFields) empty() bool {
	return f.date.IsZero() && !f.hasAmount && f.description == ""
}

func (f *qifFields) toRecord() (*extract.RawRecord, error) {
	rec, err := extract.NewRawRecord(f.date, f.amount, identity.CleanDescription(f.description))
	if err != nil {
		return nil, err
	}
	rec.Reference = f.reference
	rec.MerchantCategory = f.category
	if f.amount.IsNegative() {
		rec.Type = ledger.TxnDebit
	} else {
		rec.Type = ledger.TxnCredit
	}
	return rec, nil
}

// parseDate handles DD/MM/YYYY with MM/DD/YYYY as fallback, matching
// the exports seen from UK issuers.
func parseDate(s string) (time.Time, error) {
	if d, err := time.Parse("02/01/2006", s); err == nil {
		return d, nil
	}
	d, err := time.Parse("01/02/2006", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable QIF date %q", s)
	}
	return d, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("£", "", "$", "", ",", "").Replace(s)
	amt, err := decimal.NewFromString(strings.TrimSpace(cleaned))
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable QIF amount %q: %w", s, err)
	}
	return amt, nil
}
