package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTypeFromAmount(t *testing.T) {
	if got := TypeFromAmount(decimal.RequireFromString("-5.00")); got != TxnDebit {
		t.Errorf("negative amount: got %s, want %s", got, TxnDebit)
	}
	if got := TypeFromAmount(decimal.RequireFromString("5.00")); got != TxnCredit {
		t.Errorf("positive amount: got %s, want %s", got, TxnCredit)
	}
	if got := TypeFromAmount(decimal.Zero); got != TxnCredit {
		t.Errorf("zero amount: got %s, want %s", got, TxnCredit)
	}
}

func TestStatementSum(t *testing.T) {
	stmt := &Statement{
		Transactions: []*Transaction{
			{Amount: decimal.RequireFromString("-20.00")},
			{Amount: decimal.RequireFromString("5.00")},
			{Amount: decimal.RequireFromString("-0.50")},
		},
	}
	if got := stmt.Sum().StringFixed(2); got != "-15.50" {
		t.Errorf("Sum() = %s, want -15.50", got)
	}
}

func TestSortByDate_StableForSameDay(t *testing.T) {
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	txns := []*Transaction{
		{ID: "later", Date: day.AddDate(0, 0, 1)},
		{ID: "first", Date: day},
		{ID: "second", Date: day},
	}

	SortByDate(txns)

	if txns[0].ID != "first" || txns[1].ID != "second" || txns[2].ID != "later" {
		t.Errorf("unexpected order: %s, %s, %s", txns[0].ID, txns[1].ID, txns[2].ID)
	}
}

func TestDay(t *testing.T) {
	in := time.Date(2024, 3, 7, 14, 30, 59, 123, time.FixedZone("X", 3600))
	got := Day(in)
	want := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Day() = %v, want %v", got, want)
	}
}
