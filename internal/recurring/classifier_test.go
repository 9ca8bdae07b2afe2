package recurring

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/finledger/internal/ledger"
)

func runningPattern(match string, interval Interval, ids ...string) *Pattern {
	return &Pattern{
		Match:          match,
		Interval:       interval,
		Status:         StatusRunning,
		TransactionIDs: ids,
	}
}

func named(id, desc string, date time.Time, amount string) *ledger.Transaction {
	t := txn(id, date, amount)
	t.Description = desc
	return t
}

func TestClassify_PartitionsKnownAndCandidates(t *testing.T) {
	store := NewMemoryStore(map[string]*Pattern{
		"gym": runningPattern("GYM", IntervalMonthly, "known-1"),
	})
	c := NewClassifier(store)

	results, err := c.Classify([]*ledger.Transaction{
		named("known-1", "CITY GYM LTD", day(2024, 1, 5), "-29.99"),
		named("cand-1", "CITY GYM LTD", day(2024, 2, 4), "-29.99"),
		named("other", "SUPERMARKET", day(2024, 2, 4), "-29.99"),
	})
	require.NoError(t, err)

	res := results["gym"]
	require.NotNil(t, res)
	require.Len(t, res.Known, 1)
	require.Len(t, res.New, 1)
	assert.Equal(t, "known-1", res.Known[0].ID)
	assert.Equal(t, "cand-1", res.New[0].ID)
	assert.Equal(t, []string{"cand-1", "known-1"}, res.TransactionIDs)
}

func TestClassify_MatchIsCaseInsensitive(t *testing.T) {
	store := NewMemoryStore(map[string]*Pattern{
		"stream": runningPattern("netflix", IntervalMonthly),
	})
	c := NewClassifier(store)

	results, err := c.Classify([]*ledger.Transaction{
		named("t1", "NETFLIX.COM", day(2024, 1, 1), "-9.99"),
	})
	require.NoError(t, err)
	assert.Len(t, results["stream"].New, 1)
}

func TestClassify_AmountWithin20Percent(t *testing.T) {
	// baseline avg -10.00; -11.99 is within 20%, -12.50 is not
	store := NewMemoryStore(map[string]*Pattern{
		"sub": runningPattern("SUB", IntervalMonthly, "k1", "k2"),
	})
	c := NewClassifier(store)

	results, err := c.Classify([]*ledger.Transaction{
		named("k1", "SUB SERVICE", day(2024, 1, 1), "-10.00"),
		named("k2", "SUB SERVICE", day(2024, 2, 1), "-10.00"),
		named("near", "SUB SERVICE", day(2024, 3, 2), "-11.99"),
		named("far", "SUB SERVICE", day(2024, 3, 3), "-12.50"),
	})
	require.NoError(t, err)

	res := results["sub"]
	require.Len(t, res.New, 1)
	assert.Equal(t, "near", res.New[0].ID)
}

func TestClassify_IntervalTolerance(t *testing.T) {
	// monthly canonical 30 days, slack 6: 29 days fits, 46 does not
	tests := []struct {
		name     string
		candDate time.Time
		accepted bool
	}{
		{"29 days", day(2024, 1, 30), true},
		{"exactly 30 days", day(2024, 1, 31), true},
		{"36 days (boundary)", day(2024, 2, 6), true},
		{"39 days (1.3x)", day(2024, 2, 9), false},
		{"46 days", day(2024, 2, 16), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore(map[string]*Pattern{
				"sub": runningPattern("SUB", IntervalMonthly, "k1"),
			})
			c := NewClassifier(store)

			results, err := c.Classify([]*ledger.Transaction{
				named("k1", "SUB SERVICE", day(2024, 1, 1), "-10.00"),
				named("cand", "SUB SERVICE", tt.candDate, "-10.00"),
			})
			require.NoError(t, err)

			if tt.accepted {
				assert.Len(t, results["sub"].New, 1)
			} else {
				assert.Empty(t, results["sub"].New)
			}
		})
	}
}

func TestClassify_IrregularAcceptsAnySpacing(t *testing.T) {
	store := NewMemoryStore(map[string]*Pattern{
		"topup": runningPattern("TOPUP", IntervalIrregular, "k1"),
	})
	c := NewClassifier(store)

	results, err := c.Classify([]*ledger.Transaction{
		named("k1", "PHONE TOPUP", day(2024, 1, 1), "-10.00"),
		named("cand", "PHONE TOPUP", day(2024, 1, 3), "-10.00"),
	})
	require.NoError(t, err)
	assert.Len(t, results["topup"].New, 1)
}

func TestClassify_EmptyBaselineAcceptsFirstMatch(t *testing.T) {
	store := NewMemoryStore(map[string]*Pattern{
		"new-sub": runningPattern("NEWSVC", IntervalAnnual),
	})
	c := NewClassifier(store)

	results, err := c.Classify([]*ledger.Transaction{
		named("t1", "NEWSVC RENEWAL", day(2024, 6, 1), "-99.00"),
	})
	require.NoError(t, err)
	assert.Len(t, results["new-sub"].New, 1)
}

func TestClassify_SanitisedBaselineIgnoresCancelledCharge(t *testing.T) {
	// the charge/refund pair would drag the average toward zero and the
	// closest-date anchor forward; sanitising restores both
	store := NewMemoryStore(map[string]*Pattern{
		"sub": runningPattern("SUB", IntervalMonthly, "k1", "pair-charge", "pair-refund"),
	})
	c := NewClassifier(store)

	results, err := c.Classify([]*ledger.Transaction{
		named("k1", "SUB SERVICE", day(2024, 1, 1), "-10.00"),
		named("pair-charge", "SUB SERVICE", day(2024, 1, 20), "-10.00"),
		named("pair-refund", "SUB SERVICE", day(2024, 1, 22), "10.00"),
		named("cand", "SUB SERVICE", day(2024, 2, 1), "-10.00"),
	})
	require.NoError(t, err)

	res := results["sub"]
	require.Len(t, res.New, 1, "candidate fits against the sanitised baseline")
	// paired transactions remain part of the history
	assert.Len(t, res.Known, 3)
	assert.Contains(t, res.TransactionIDs, "pair-charge")
	assert.Contains(t, res.TransactionIDs, "pair-refund")
}

func TestClassify_CancelledPatternAcceptsNothing(t *testing.T) {
	store := NewMemoryStore(map[string]*Pattern{
		"old-sub": {
			Match:          "OLDSVC",
			Interval:       IntervalMonthly,
			Status:         StatusCancelled,
			TransactionIDs: []string{"k1"},
		},
	})
	c := NewClassifier(store)

	results, err := c.Classify([]*ledger.Transaction{
		named("k1", "OLDSVC", day(2024, 1, 1), "-5.00"),
		named("cand", "OLDSVC", day(2024, 2, 1), "-5.00"),
	})
	require.NoError(t, err)

	res := results["old-sub"]
	assert.Empty(t, res.New)
	assert.Len(t, res.Known, 1, "history still reported")
	assert.Equal(t, []string{"k1"}, res.TransactionIDs)
}

func TestClassify_InvalidRegexpMatchesNothing(t *testing.T) {
	store := NewMemoryStore(map[string]*Pattern{
		"broken": runningPattern("(unclosed", IntervalMonthly, "k1"),
	})
	c := NewClassifier(store)

	results, err := c.Classify([]*ledger.Transaction{
		named("k1", "(unclosed", day(2024, 1, 1), "-5.00"),
		named("cand", "(unclosed", day(2024, 2, 1), "-5.00"),
	})
	require.NoError(t, err)
	assert.Empty(t, results["broken"].New)
	assert.Len(t, results["broken"].Known, 1, "known IDs still resolved")
}

func TestClassify_AmountRangeUsesUnsanitisedAbsolutes(t *testing.T) {
	store := NewMemoryStore(map[string]*Pattern{
		"sub": runningPattern("SUB", IntervalMonthly, "k1", "pair-charge", "pair-refund"),
	})
	c := NewClassifier(store)

	results, err := c.Classify([]*ledger.Transaction{
		named("k1", "SUB SERVICE", day(2024, 1, 1), "-10.00"),
		named("pair-charge", "SUB SERVICE", day(2024, 1, 20), "-2.00"),
		named("pair-refund", "SUB SERVICE", day(2024, 1, 22), "2.00"),
	})
	require.NoError(t, err)

	rng := results["sub"].AmountRange
	assert.Equal(t, "2.00", rng.Min.StringFixed(2))
	assert.Equal(t, "10.00", rng.Max.StringFixed(2))
}

func TestClassify_SecondRunIsStable(t *testing.T) {
	store := NewMemoryStore(map[string]*Pattern{
		"sub": runningPattern("SUB", IntervalMonthly, "k1"),
	})
	c := NewClassifier(store)

	stream := []*ledger.Transaction{
		named("k1", "SUB SERVICE", day(2024, 1, 1), "-10.00"),
		named("cand", "SUB SERVICE", day(2024, 2, 1), "-10.00"),
	}

	first, err := c.Classify(stream)
	require.NoError(t, err)
	require.Len(t, first["sub"].New, 1)

	second, err := c.Classify(stream)
	require.NoError(t, err)
	assert.Empty(t, second["sub"].New, "accepted ID is known on the next run")
	assert.Len(t, second["sub"].Known, 2)
	assert.Equal(t, first["sub"].TransactionIDs, second["sub"].TransactionIDs)
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "recurring.json")
	fs := NewFileStore(path)

	// missing file is an empty pattern set
	patterns, err := fs.Load()
	require.NoError(t, err)
	assert.Empty(t, patterns)

	patterns["gym"] = runningPattern("GYM", IntervalMonthly, "a", "b")
	require.NoError(t, fs.Save(patterns))

	loaded, err := fs.Load()
	require.NoError(t, err)
	require.Contains(t, loaded, "gym")
	assert.Equal(t, []string{"a", "b"}, loaded["gym"].TransactionIDs)
	assert.Equal(t, IntervalMonthly, loaded["gym"].Interval)
	assert.Equal(t, StatusRunning, loaded["gym"].Status)
}

func TestInterval_Days(t *testing.T) {
	tests := []struct {
		interval Interval
		days     int
	}{
		{IntervalWeekly, 7},
		{IntervalBiweekly, 14},
		{IntervalMonthly, 30},
		{IntervalQuarterly, 90},
		{IntervalBiannual, 180},
		{IntervalAnnual, 365},
		{Interval("mystery"), 30},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.days, tt.interval.Days(), string(tt.interval))
	}
}
