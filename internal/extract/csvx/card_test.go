package csvx

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rumor-ml/finledger/internal/extract"
	"github.com/rumor-ml/finledger/internal/ledger"
)

const sampleCSV = `Transaction Date,Posting Date,Billing Amount,Merchant,Merchant City,SICMCC Code,Debit or Credit
2024-01-15,2024-01-16,9.99,NETFLIX.COM,LONDON,7841,DBIT
2024-01-10,2024-01-11,25.00,TESCO STORES,LEEDS,5411,DBIT
2024-01-20,2024-01-21,15.00,REFUND ACME,LONDON,5999,CRDT
`

func TestCanExtract(t *testing.T) {
	e := New()

	header := []byte("Transaction Date,Posting Date,Billing Amount,Merchant,Debit or Credit\n")
	if !e.CanExtract("export.csv", header) {
		t.Error("expected card CSV header to be accepted")
	}
	if e.CanExtract("export.txt", header) {
		t.Error("wrong extension should be rejected")
	}
	if e.CanExtract("export.csv", []byte("Date,Amount,Payee\n")) {
		t.Error("unknown column layout should be rejected")
	}

	// BOM on the first column name must not break detection
	bom := append([]byte("\uFEFF"), header...)
	if !e.CanExtract("export.csv", bom) {
		t.Error("expected BOM-prefixed header to be accepted")
	}
}

func TestExtract(t *testing.T) {
	stmt, err := New().Extract(context.Background(), strings.NewReader(sampleCSV), extract.Metadata{})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	if len(stmt.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(stmt.Records))
	}

	// rows come back oldest first regardless of file order
	first := stmt.Records[0]
	if first.Description != "TESCO STORES" {
		t.Errorf("expected oldest record first, got %q", first.Description)
	}
	if first.Amount.StringFixed(2) != "-25.00" {
		t.Errorf("DBIT amount should be negated, got %s", first.Amount.StringFixed(2))
	}
	if first.Type != ledger.TxnDebit {
		t.Errorf("expected debit type, got %s", first.Type)
	}
	if first.MerchantCategory != "5411" {
		t.Errorf("expected MCC 5411, got %q", first.MerchantCategory)
	}
	if first.PostedDate != time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC) {
		t.Errorf("unexpected posted date %v", first.PostedDate)
	}

	last := stmt.Records[2]
	if last.Amount.StringFixed(2) != "15.00" {
		t.Errorf("CRDT amount keeps its sign, got %s", last.Amount.StringFixed(2))
	}
	if last.Type != ledger.TxnCredit {
		t.Errorf("expected credit type, got %s", last.Type)
	}

	if !stmt.StartDate.Equal(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start date %v", stmt.StartDate)
	}
	if !stmt.EndDate.Equal(time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected end date %v", stmt.EndDate)
	}
}

func TestExtract_HeaderOnly(t *testing.T) {
	_, err := New().Extract(context.Background(),
		strings.NewReader("Transaction Date,Billing Amount,Merchant\n"), extract.Metadata{})
	if err == nil {
		t.Fatal("expected error for file with no transaction rows")
	}
}

func TestExtract_BadDate(t *testing.T) {
	csv := "Transaction Date,Billing Amount,Merchant\nyesterday,5.00,SHOP\n"
	_, err := New().Extract(context.Background(), strings.NewReader(csv), extract.Metadata{})
	if err == nil {
		t.Fatal("expected error for unparseable date")
	}
	if !strings.Contains(err.Error(), "row 2") {
		t.Errorf("error should name the row, got: %v", err)
	}
}
