// Package ofx extracts transactions from OFX/QFX statement exports
// using ofxgo. Both SGML (v1) and XML (v2) responses are handled by the
// library; this adapter only reshapes them into raw records.
package ofx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/rumor-ml/finledger/internal/extract"
	"github.com/rumor-ml/finledger/internal/identity"
	"github.com/rumor-ml/finledger/internal/ledger"
)

// Extractor implements OFX/QFX extraction with a stateless design; it
// is safe for concurrent use.
type Extractor struct{}

var instance = &Extractor{}

// New returns the shared OFX extractor instance.
func New() *Extractor {
	return instance
}

// Name returns the extractor identifier.
func (e *Extractor) Name() string {
	return "ofx"
}

// CanExtract accepts .ofx/.qfx files carrying an OFX header marker.
func (e *Extractor) CanExtract(path string, header []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".ofx" && ext != ".qfx" {
		return false
	}

	headerUpper := strings.ToUpper(string(header))
	return strings.Contains(headerUpper, "OFXHEADER") ||
		strings.Contains(headerUpper, "<?OFX") ||
		strings.Contains(headerUpper, "<OFX>")
}

// Extract reads an OFX response and flattens its first credit card or
// bank statement into raw records.
func (e *Extractor) Extract(ctx context.Context, r io.Reader, meta extract.Metadata) (*extract.SourceStatement, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX content: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	resp, err := ofxgo.ParseResponse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file (%d bytes): %w", len(content), err)
	}

	if len(resp.CreditCard) > 0 {
		ccStmt, ok := resp.CreditCard[0].(*ofxgo.CCStatementResponse)
		if !ok {
			return nil, fmt.Errorf("unexpected credit card statement type %T", resp.CreditCard[0])
		}
		return e.fromTranList(ccStmt.CCAcctFrom.AcctID.String(), ccStmt.BankTranList)
	}

	if len(resp.Bank) > 0 {
		bankStmt, ok := resp.Bank[0].(*ofxgo.StatementResponse)
		if !ok {
			return nil, fmt.Errorf("unexpected bank statement type %T", resp.Bank[0])
		}
		return e.fromTranList(bankStmt.BankAcctFrom.AcctID.String(), bankStmt.BankTranList)
	}

	return nil, fmt.Errorf("no credit card or bank statement found in OFX file")
}

func (e *Extractor) fromTranList(accountID string, tranList *ofxgo.TransactionList) (*extract.SourceStatement, error) {
	if tranList == nil {
		return nil, fmt.Errorf("missing transaction list in OFX statement")
	}

	records := make([]*extract.RawRecord, 0, len(tranList.Transactions))
	for i, txn := range tranList.Transactions {
		rec, err := extractRecord(txn)
		if err != nil {
			return nil, fmt.Errorf("failed to extract transaction at index %d: %w", i, err)
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no transactions found in OFX statement")
	}

	return &extract.SourceStatement{
		AccountID: accountID,
		StartDate: tranList.DtStart.Time,
		EndDate:   tranList.DtEnd.Time,
		Records:   records,
	}, nil
}

// issuerPrefixes matches transaction-type noise some issuers prepend to
// the payee name (Barclays short codes, generic card prefixes).
var issuerPrefixes = regexp.MustCompile(`^(BGC|BBP|CWP|TFR|DD|SO|DEB|CRD|PAYMENT|PURCHASE)\s+`)

func extractRecord(txn ofxgo.Transaction) (*extract.RawRecord, error) {
	// prefer the user (transaction) date; fall back to posted
	var date time.Time
	if txn.DtUser != nil {
		date = txn.DtUser.Time
	}
	if date.IsZero() {
		date = txn.DtPosted.Time
	}
	if date.IsZero() {
		return nil, fmt.Errorf("transaction %s missing both user date and posted date", txn.FiTID.String())
	}

	amount, err := decimal.NewFromString(txn.TrnAmt.String())
	if err != nil {
		return nil, fmt.Errorf("transaction %s has unparseable amount %q: %w", txn.FiTID.String(), txn.TrnAmt.String(), err)
	}

	description := strings.TrimSpace(txn.Name.String() + " " + txn.Memo.String())
	description = identity.CleanDescription(issuerPrefixes.ReplaceAllString(description, ""))
	if description == "" {
		return nil, fmt.Errorf("transaction %s missing both name and memo", txn.FiTID.String())
	}

	rec, err := extract.NewRawRecord(date, amount, description)
	if err != nil {
		return nil, err
	}
	rec.PostedDate = ledger.Day(txn.DtPosted.Time)
	rec.Reference = txn.FiTID.String()
	rec.Type = mapTxnType(txn)
	return rec, nil
}

func mapTxnType(txn ofxgo.Transaction) ledger.TxnType {
	switch txn.TrnType {
	case ofxgo.TrnTypeCredit, ofxgo.TrnTypeDep, ofxgo.TrnTypeInt:
		return ledger.TxnCredit
	case ofxgo.TrnTypeDebit, ofxgo.TrnTypePOS, ofxgo.TrnTypeATM, ofxgo.TrnTypeFee, ofxgo.TrnTypePayment, ofxgo.TrnTypeCheck:
		return ledger.TxnDebit
	default:
		return ledger.TxnOther
	}
}
