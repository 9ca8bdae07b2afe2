package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/finledger/internal/checkpoint"
	"github.com/rumor-ml/finledger/internal/config"
	"github.com/rumor-ml/finledger/internal/extract"
	"github.com/rumor-ml/finledger/internal/extract/csvx"
	"github.com/rumor-ml/finledger/internal/extract/ofx"
	"github.com/rumor-ml/finledger/internal/extract/qif"
	"github.com/rumor-ml/finledger/internal/recurring"
)

const mbnaQIF = `!Type:CCard
D15/01/2024
T9.99
PNETFLIX.COM
^
D10/01/2024
T25.00
PTESCO STORES
^
`

func writeStatement(t *testing.T, root, folder, name, content string) {
	t.Helper()
	dir := filepath.Join(root, folder)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func newPipeline(cps *checkpoint.Memory) (*Pipeline, *recurring.MemoryStore) {
	patterns := recurring.NewMemoryStore(map[string]*recurring.Pattern{
		"streaming": {
			Match:    "NETFLIX",
			Interval: recurring.IntervalMonthly,
			Status:   recurring.StatusRunning,
		},
	})
	return &Pipeline{
		Registry:    extract.NewRegistry(qif.New(), ofx.New(), csvx.New()),
		Checkpoints: cps,
		Patterns:    patterns,
		Config:      &config.Config{},
	}, patterns
}

func TestRun_EndToEnd(t *testing.T) {
	root := t.TempDir()
	writeStatement(t, root, "mbna", "export.qif", mbnaQIF)

	cps := checkpoint.NewMemoryWith(map[string]string{
		"mbna|2024-01-10": "100.00",
	})
	p, _ := newPipeline(cps)

	result, err := p.Run(context.Background(), root)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	require.Len(t, result.Accounts, 1)
	assert.Equal(t, "mbna", result.Accounts[0].Scope)

	require.Len(t, result.Accounts[0].Statements, 1)
	stmt := result.Accounts[0].Statements[0]
	require.Len(t, stmt.Transactions, 2)

	// QIF is newest-first on disk; the pipeline presents oldest-first
	// with running totals from the anchor
	assert.Equal(t, "TESCO STORES", stmt.Transactions[0].Description)
	assert.Equal(t, "75.00", stmt.Transactions[0].RunningTotal.StringFixed(2))
	assert.Equal(t, "65.01", stmt.Transactions[1].RunningTotal.StringFixed(2))

	// classifier picked up the Netflix charge
	require.Contains(t, result.Charges, "streaming")
	assert.Len(t, result.Charges["streaming"].New, 1)

	// grouper clustered the stream
	assert.NotEmpty(t, result.Groups)
}

func TestRun_CorruptFileIsCollectedNotFatal(t *testing.T) {
	root := t.TempDir()
	writeStatement(t, root, "mbna", "good.qif", mbnaQIF)
	writeStatement(t, root, "mbna", "bad.qif", "!Type:CCard\nDnot-a-date\nT1.00\nPX\n^\n")

	cps := checkpoint.NewMemoryWith(map[string]string{
		"mbna|2024-01-10": "100.00",
	})
	p, _ := newPipeline(cps)

	result, err := p.Run(context.Background(), root)
	require.NoError(t, err)

	require.Len(t, result.FileErrors, 1)
	assert.Contains(t, result.FileErrors[0].Path, "bad.qif")
	require.Len(t, result.Accounts, 1)
	assert.Len(t, result.Accounts[0].Statements, 1)
}

func TestRun_NoTransactionsIsFatal(t *testing.T) {
	root := t.TempDir()
	writeStatement(t, root, "mbna", "bad.qif", "!Type:CCard\nDnot-a-date\nT1.00\nPX\n^\n")

	p, _ := newPipeline(checkpoint.NewMemory())

	_, err := p.Run(context.Background(), root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no transactions")
}

func TestRun_BootstrapRunExplainsSkips(t *testing.T) {
	root := t.TempDir()
	writeStatement(t, root, "mbna", "export.qif", mbnaQIF)

	// first run ever: every file parses but no anchor exists yet, so
	// the whole run comes up empty
	cps := checkpoint.NewMemory()
	p, _ := newPipeline(cps)

	_, err := p.Run(context.Background(), root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no checkpoint for mbna|2024-01-10")

	// the placeholder is still recorded for the next run
	assert.Equal(t, []string{"mbna|2024-01-10"}, cps.Placeholders())
}

func TestRun_MissingCheckpointLeavesPlaceholder(t *testing.T) {
	root := t.TempDir()
	writeStatement(t, root, "mbna", "export.qif", mbnaQIF)
	writeStatement(t, root, "halifax", "export.qif", mbnaQIF)

	// only mbna has an anchor
	cps := checkpoint.NewMemoryWith(map[string]string{
		"mbna|2024-01-10": "100.00",
	})
	p, _ := newPipeline(cps)

	result, err := p.Run(context.Background(), root)
	require.NoError(t, err)

	var halifax AccountResult
	for _, acct := range result.Accounts {
		if acct.Scope == "halifax" {
			halifax = acct
		}
	}
	assert.Empty(t, halifax.Statements)
	require.Len(t, halifax.Skipped, 1)
	assert.Equal(t, []string{"halifax|2024-01-10"}, cps.Placeholders())
}

func TestRun_ConfiguredFormatOverridesDetection(t *testing.T) {
	root := t.TempDir()
	// a .qif payload under a scope whose config forces the qif extractor
	writeStatement(t, root, "mbna", "export.qif", mbnaQIF)

	cps := checkpoint.NewMemoryWith(map[string]string{
		"mbna|2024-01-10": "100.00",
	})
	p, _ := newPipeline(cps)
	p.Config = &config.Config{
		Accounts: map[string]config.AccountConfig{
			"mbna": {Format: "qif"},
		},
	}

	result, err := p.Run(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, result.Accounts, 1)
	assert.Len(t, result.Accounts[0].Statements, 1)
}
