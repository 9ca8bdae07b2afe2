package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/rumor-ml/finledger/internal/checkpoint"
	"github.com/rumor-ml/finledger/internal/config"
	"github.com/rumor-ml/finledger/internal/extract"
	"github.com/rumor-ml/finledger/internal/extract/csvx"
	"github.com/rumor-ml/finledger/internal/extract/ofx"
	"github.com/rumor-ml/finledger/internal/extract/qif"
	"github.com/rumor-ml/finledger/internal/grouping"
	"github.com/rumor-ml/finledger/internal/pipeline"
	"github.com/rumor-ml/finledger/internal/recurring"
	"github.com/rumor-ml/finledger/internal/scanner"
	"github.com/rumor-ml/finledger/internal/store/sqlitestore"
	"github.com/rumor-ml/finledger/internal/ui"
)

const version = "0.1.0"

var (
	versionFlag = flag.Bool("version", false, "Show version")

	inputDir = flag.String("input", "", "Input directory of account folders (required)")
	dryRun   = flag.Bool("dry-run", false, "Scan and list files without processing")
	verbose  = flag.Bool("verbose", false, "Show detailed processing logs")

	checkpointsFile = flag.String("checkpoints", "checkpoints.json", "Balance checkpoint file")
	patternsFile    = flag.String("patterns", "recurring.json", "Recurring pattern file")
	configFile      = flag.String("config", "finledger.yaml", "Account and alias configuration")

	storeBackend = flag.String("store", "json", "State backend: json or sqlite")
	dataFile     = flag.String("data", "finledger.db", "SQLite state database (with -store sqlite)")

	topGroups = flag.Int("top", 15, "Number of category groups to print")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `finledger - Bank statement ingestion and reconciliation

Usage:
  finledger [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Process all account folders
  finledger -input ~/statements

  # Keep state in SQLite instead of JSON files
  finledger -input ~/statements -store sqlite -data state.db

  # See what would be processed
  finledger -input ~/statements -dry-run

`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("finledger version %s\n", version)
		os.Exit(0)
	}

	if *inputDir == "" {
		fmt.Fprintf(os.Stderr, "Error: -input flag is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(); err != nil {
		ui.Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	ui.Header("Reconciling Bank Statements")
	ui.Step(1, 4, "Scanning account folders")

	accounts, err := scanner.New(*inputDir).Scan()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return fmt.Errorf("no account folders with statement files found in %s", *inputDir)
	}

	var fileCount int
	for _, acct := range accounts {
		fileCount += len(acct.Files)
		if *verbose {
			fmt.Fprintf(os.Stderr, "  %s (%s): %d files\n", acct.Folder, acct.Scope, len(acct.Files))
		}
	}
	ui.Success(fmt.Sprintf("Found %d files across %d accounts", fileCount, len(accounts)))

	if *dryRun {
		for _, acct := range accounts {
			ui.BlueText(acct.Scope + ":")
			for _, f := range acct.Files {
				fmt.Printf("  %s\n", f)
			}
		}
		ui.YellowText(fmt.Sprintf("Dry run complete. Would process %d files.", fileCount))
		return nil
	}

	ui.Step(2, 4, "Loading state")

	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}

	var (
		checkpoints checkpoint.Store
		patterns    recurring.Store
	)
	switch *storeBackend {
	case "json":
		fileStore, err := checkpoint.OpenFile(*checkpointsFile)
		if err != nil {
			return err
		}
		checkpoints = fileStore
		patterns = recurring.NewFileStore(*patternsFile)
	case "sqlite":
		db, err := sqlitestore.Open(*dataFile)
		if err != nil {
			return err
		}
		defer db.Close()
		checkpoints = db.Checkpoints()
		patterns = db.Patterns()
	default:
		return fmt.Errorf("unknown store backend %q (want json or sqlite)", *storeBackend)
	}

	ui.Step(3, 4, "Processing statements")

	p := &pipeline.Pipeline{
		Registry:    extract.NewRegistry(qif.New(), ofx.New(), csvx.New()),
		Checkpoints: checkpoints,
		Patterns:    patterns,
		Config:      cfg,
	}

	result, err := p.Run(ctx, *inputDir)
	if err != nil {
		return err
	}

	ui.Step(4, 4, "Writing summary")
	printSummary(result)

	ui.Success(fmt.Sprintf("Run %s complete", result.RunID))
	return nil
}

func printSummary(result *pipeline.Result) {
	for _, fe := range result.FileErrors {
		ui.Warning(fmt.Sprintf("skipped %s: %v", fe.Path, fe.Err))
	}

	for _, acct := range result.Accounts {
		fmt.Printf("\n%s\n", acct.Scope)
		for _, stmt := range acct.Statements {
			fmt.Printf("  %s: %d txns  %s → %s  opening %s  closing %s\n",
				stmt.Source,
				len(stmt.Transactions),
				stmt.StartDate.Format("2006-01-02"),
				stmt.EndDate.Format("2006-01-02"),
				stmt.OpeningBalance.StringFixed(2),
				stmt.ClosingBalance.StringFixed(2))
		}
		for _, skip := range acct.Skipped {
			if skip.Err != nil {
				ui.Warning(fmt.Sprintf("  %s: %s (%v)", skip.Source, skip.Reason, skip.Err))
			} else {
				ui.Info(fmt.Sprintf("  %s: %s", skip.Source, skip.Reason))
			}
		}
	}

	if len(result.Charges) > 0 {
		fmt.Printf("\nRecurring charges\n")
		names := make([]string, 0, len(result.Charges))
		for name := range result.Charges {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			charge := result.Charges[name]
			fmt.Printf("  %-20s %-10s known %3d  new %2d  range %s-%s\n",
				name,
				charge.Interval,
				len(charge.Known),
				len(charge.New),
				charge.AmountRange.Min.StringFixed(2),
				charge.AmountRange.Max.StringFixed(2))
		}
	}

	if len(result.Groups) > 0 {
		fmt.Printf("\nTop category groups\n")
		groups := make([]*grouping.CategoryGroup, len(result.Groups))
		copy(groups, result.Groups)
		sort.SliceStable(groups, func(i, j int) bool {
			return groups[i].Total.Abs().GreaterThan(groups[j].Total.Abs())
		})
		limit := *topGroups
		if limit > len(groups) {
			limit = len(groups)
		}
		for _, g := range groups[:limit] {
			fmt.Printf("  %-30s %4d txns  total %s\n", g.Key, g.Count, g.Total.StringFixed(2))
		}
	}
}
