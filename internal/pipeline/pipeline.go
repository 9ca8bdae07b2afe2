// Package pipeline orchestrates a full ingestion run: scan account
// folders, extract statement files, reconcile per account, then run
// the recurring-charge classifier and the category grouper over the
// combined stream.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/rumor-ml/finledger/internal/checkpoint"
	"github.com/rumor-ml/finledger/internal/config"
	"github.com/rumor-ml/finledger/internal/extract"
	"github.com/rumor-ml/finledger/internal/grouping"
	"github.com/rumor-ml/finledger/internal/identity"
	"github.com/rumor-ml/finledger/internal/ledger"
	"github.com/rumor-ml/finledger/internal/reconcile"
	"github.com/rumor-ml/finledger/internal/recurring"
	"github.com/rumor-ml/finledger/internal/scanner"
)

// FileError records one statement file that could not be extracted.
// File errors never abort the run.
type FileError struct {
	Path string
	Err  error
}

// AccountResult is the reconciliation outcome for one account folder.
type AccountResult struct {
	Scope      string
	Statements []*ledger.Statement
	Skipped    []reconcile.Skip
}

// Result is the outcome of one pipeline run.
type Result struct {
	RunID      string
	Accounts   []AccountResult
	Charges    map[string]*recurring.ChargeResult
	Groups     []*grouping.CategoryGroup
	FileErrors []FileError
}

// Transactions returns the combined date-sorted stream across all
// accounts.
func (r *Result) Transactions() []*ledger.Transaction {
	var all []*ledger.Transaction
	for _, acct := range r.Accounts {
		for _, stmt := range acct.Statements {
			all = append(all, stmt.Transactions...)
		}
	}
	ledger.SortByDate(all)
	return all
}

// Pipeline wires the stages together. Construct one per run.
type Pipeline struct {
	Registry    *extract.Registry
	Checkpoints checkpoint.Store
	Patterns    recurring.Store
	Config      *config.Config
}

// Run processes every account folder under inputDir. Per-file and
// per-statement problems are collected in the result; the only fatal
// condition is a run that produces no transactions at all.
func (p *Pipeline) Run(ctx context.Context, inputDir string) (*Result, error) {
	accounts, err := scanner.New(inputDir).Scan()
	if err != nil {
		return nil, err
	}

	result := &Result{RunID: uuid.NewString()}

	for _, acct := range accounts {
		acctCfg := p.Config.Account(acct.Scope)
		gen := identity.Generator{Scope: acct.Scope, IncludeType: acctCfg.IncludeTypeInID}

		var candidates []reconcile.Candidate
		for _, path := range acct.Files {
			records, err := p.extractFile(ctx, path, acct.Scope, acctCfg.Format)
			if err != nil {
				result.FileErrors = append(result.FileErrors, FileError{Path: path, Err: err})
				continue
			}
			candidates = append(candidates, reconcile.Candidate{
				Source:  filepath.Base(path),
				Records: records,
			})
		}

		rec := reconcile.New(p.Checkpoints).Reconcile(gen, candidates)
		result.Accounts = append(result.Accounts, AccountResult{
			Scope:      acct.Scope,
			Statements: rec.Statements,
			Skipped:    rec.Skipped,
		})
	}

	if err := p.Checkpoints.Save(); err != nil {
		return nil, fmt.Errorf("failed to save checkpoints: %w", err)
	}

	all := result.Transactions()
	if len(all) == 0 {
		return nil, emptyRunError(inputDir, result)
	}

	charges, err := recurring.NewClassifier(p.Patterns).Classify(all)
	if err != nil {
		return nil, err
	}
	result.Charges = charges
	result.Groups = grouping.Group(all, p.Config.GroupingAliases())

	return result, nil
}

// extractFile picks the extractor (configured format first, content
// detection otherwise) and reads one statement file.
func (p *Pipeline) extractFile(ctx context.Context, path, scope, format string) ([]*extract.RawRecord, error) {
	var (
		ex  extract.Extractor
		err error
	)
	if format != "" {
		ex, err = p.Registry.ByName(extractorName(format))
	} else {
		ex, err = p.Registry.Find(path)
	}
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	stmt, err := ex.Extract(ctx, f, extract.Metadata{
		FilePath:     path,
		AccountScope: scope,
	})
	if err != nil {
		return nil, fmt.Errorf("%s extraction failed for %s: %w", ex.Name(), path, err)
	}
	return stmt.Records, nil
}

// emptyRunError explains a run that produced nothing. The result is
// discarded on this path, so the per-statement skip reasons and file
// errors it carries have to travel in the error itself; on a bootstrap
// run they tell the operator which checkpoint placeholders to fill in.
func emptyRunError(inputDir string, result *Result) error {
	var notes []string
	for _, acct := range result.Accounts {
		for _, skip := range acct.Skipped {
			if skip.Err != nil {
				notes = append(notes, fmt.Sprintf("%s/%s: %v", acct.Scope, skip.Source, skip.Err))
			} else {
				notes = append(notes, fmt.Sprintf("%s/%s: %s", acct.Scope, skip.Source, skip.Reason))
			}
		}
	}
	for _, fe := range result.FileErrors {
		notes = append(notes, fmt.Sprintf("%s: %v", fe.Path, fe.Err))
	}
	if len(notes) == 0 {
		return fmt.Errorf("no transactions extracted from %s", inputDir)
	}
	return fmt.Errorf("no transactions reconciled from %s: %s", inputDir, strings.Join(notes, "; "))
}

// extractorName maps the config's format shorthand to a registered
// extractor identifier.
func extractorName(format string) string {
	if format == "csv" {
		return "csv-card"
	}
	return format
}
