// Package reconcile merges statement files belonging to one account
// into a deduplicated, chronologically consistent ledger with running
// balances anchored to persisted checkpoints.
package reconcile

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rumor-ml/finledger/internal/checkpoint"
	"github.com/rumor-ml/finledger/internal/extract"
	"github.com/rumor-ml/finledger/internal/identity"
	"github.com/rumor-ml/finledger/internal/ledger"
)

// Candidate is one source file's extracted records, oldest first, in
// the order the account folder glob presented the file.
type Candidate struct {
	Source  string // base name of the source file
	Records []*extract.RawRecord
}

// SkipReason classifies why a candidate produced no statement.
type SkipReason string

const (
	// SkipCheckpointMissing means no balance anchor exists for the
	// statement's earliest transaction date. A placeholder was written
	// for the operator to fill in.
	SkipCheckpointMissing SkipReason = "checkpoint missing"
	// SkipNoUniqueTransactions means every record in the file was
	// already presented by an earlier file this run.
	SkipNoUniqueTransactions SkipReason = "no unique transactions"
	// SkipBadCheckpoint means the stored checkpoint value could not be
	// parsed.
	SkipBadCheckpoint SkipReason = "invalid checkpoint value"
)

// Skip reports one candidate that was not reconciled. Skips are local:
// they never abort processing of sibling files.
type Skip struct {
	Source string
	Reason SkipReason
	Err    error
}

// Result is the outcome of reconciling one account folder.
type Result struct {
	Statements []*ledger.Statement
	Skipped    []Skip
}

// Reconciler owns running-total computation. It is the only component
// that writes running balances, and the only consumer of the
// checkpoint store during a run.
type Reconciler struct {
	checkpoints checkpoint.Store
}

// New creates a reconciler over the given checkpoint store.
func New(store checkpoint.Store) *Reconciler {
	return &Reconciler{checkpoints: store}
}

// Reconcile merges the candidates of one account folder.
//
// A single seen-identity set spans all candidates, so a transaction
// appearing in two overlapping exports is kept exactly once and
// attributed to whichever file presented it first. Statements whose
// records all deduplicate away are dropped. Each surviving statement
// needs a checkpoint at its earliest transaction date; a missing
// anchor skips that statement (after recording a placeholder) without
// touching its siblings.
func (r *Reconciler) Reconcile(gen identity.Generator, candidates []Candidate) *Result {
	result := &Result{}
	seen := make(map[string]bool)

	for _, cand := range candidates {
		txns := make([]*ledger.Transaction, 0, len(cand.Records))
		for _, rec := range cand.Records {
			id := gen.TransactionID(rec.Date, rec.Amount, rec.Description, rec.Type)
			if seen[id] {
				continue
			}
			seen[id] = true
			txns = append(txns, &ledger.Transaction{
				ID:               id,
				AccountScope:     gen.Scope,
				Date:             ledger.Day(rec.Date),
				PostedDate:       rec.PostedDate,
				Amount:           rec.Amount,
				Description:      rec.Description,
				Type:             rec.Type,
				Reference:        rec.Reference,
				MerchantCategory: rec.MerchantCategory,
			})
		}

		if len(txns) == 0 {
			result.Skipped = append(result.Skipped, Skip{
				Source: cand.Source,
				Reason: SkipNoUniqueTransactions,
			})
			continue
		}

		ledger.SortByDate(txns)

		stmt, skip := r.buildStatement(gen.Scope, cand.Source, txns)
		if skip != nil {
			result.Skipped = append(result.Skipped, *skip)
			continue
		}
		result.Statements = append(result.Statements, stmt)
	}

	sort.SliceStable(result.Statements, func(i, j int) bool {
		return result.Statements[i].StartDate.Before(result.Statements[j].StartDate)
	})

	return result
}

// buildStatement anchors the date-sorted transactions to a checkpoint
// and attaches running totals oldest to newest.
func (r *Reconciler) buildStatement(scope, source string, txns []*ledger.Transaction) (*ledger.Statement, *Skip) {
	anchorDate := txns[0].Date

	anchor, err := r.checkpoints.Lookup(scope, anchorDate)
	if err != nil {
		if errors.Is(err, checkpoint.ErrMissing) {
			return nil, &Skip{
				Source: source,
				Reason: SkipCheckpointMissing,
				Err:    fmt.Errorf("no checkpoint for %s: %w", checkpoint.Key(scope, anchorDate), err),
			}
		}
		return nil, &Skip{Source: source, Reason: SkipBadCheckpoint, Err: err}
	}

	running := anchor
	for _, t := range txns {
		running = running.Add(t.Amount)
		t.RunningTotal = running
		t.HasRunning = true
	}

	stmt := &ledger.Statement{
		AccountScope:   scope,
		Source:         source,
		StartDate:      txns[0].Date,
		EndDate:        txns[len(txns)-1].Date,
		ClosingBalance: running,
		Transactions:   txns,
	}
	stmt.OpeningBalance = stmt.ClosingBalance.Sub(stmt.Sum())
	return stmt, nil
}
