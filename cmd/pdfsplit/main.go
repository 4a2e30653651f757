package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/sgte/pdf-splitter/internal/common"
	"github.com/sgte/pdf-splitter/internal/core"
	"github.com/sgte/pdf-splitter/internal/export"
	repo "github.com/sgte/pdf-splitter/internal/repository"
	"github.com/sgte/pdf-splitter/internal/roster"
	"github.com/sgte/pdf-splitter/internal/utils"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		in         = flag.String("in", "", "source PDF to split (required)")
		inmem      = flag.Bool("inmem", false, "use an in-memory SQLite database")
		rosterPath = flag.String("roster", "", "XLSX roster to import before splitting")
		force      = flag.Bool("force", false, "split again even if this PDF was already processed")
		out        = flag.String("out", "", "write the outcome workbook to this XLSX path")
		jsonOut    = flag.Bool("json", false, "print the outcome as JSON on stdout")
	)
	flag.Parse()

	if *in == "" {
		printError("Error: --in is required\n")
		flag.Usage()
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if *inmem {
		cfg.Database.DSN = fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}

	logger := common.NewJSONLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, repo.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close(logger)
	if err := repo.Migrate(ctx, db, logger); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	if *rosterPath != "" {
		if err := importRoster(ctx, *rosterPath, db, logger); err != nil {
			logger.Error("roster import failed", "path", *rosterPath, "error", err)
			os.Exit(1)
		}
	}

	proc, _, err := core.Build(cfg, db, logger)
	if err != nil {
		logger.Error("failed to build processor", "error", err)
		os.Exit(1)
	}

	res, err := proc.ProcessPath(ctx, *in, *force)
	if err != nil {
		logger.Error("split failed", "path", *in, "error", err, "fatal", common.IsFatal(err))
		if errors.Is(err, common.ErrInvalidInput) {
			os.Exit(2)
		}
		os.Exit(1)
	}
	if res.Skipped {
		logger.Info("source already processed; use --force to split again", "batch_id", res.Batch.ID)
		return
	}

	if *out != "" {
		data, err := export.NewService(logger).OutcomeXLSX(res.Outcome)
		if err == nil {
			err = os.WriteFile(*out, data, 0o644)
		}
		if err != nil {
			logger.Error("failed to write outcome workbook", "path", *out, "error", err)
			os.Exit(1)
		}
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(utils.OutcomeToMap(res.Outcome)); err != nil {
			printError("Error: encode outcome: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("pages=%d groups=%d written=%d unmatched=%d failed=%d\n",
		res.Outcome.TotalPages, len(res.Outcome.Groups), res.Outcome.Written, res.Outcome.Unmatched, res.Outcome.Failed)
	for _, p := range res.Outcome.Unassigned() {
		fmt.Printf("  page %d: %s %s\n", p.Index+1, p.Reason, p.IDNumber)
	}
}

func importRoster(ctx context.Context, path string, db *repo.DB, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	report, err := roster.ImportXLSX(ctx, f, repo.NewStudentRepository(db, logger), logger)
	if err != nil {
		return err
	}
	logger.Info("roster imported", "rows", report.Rows, "imported", report.Imported, "skipped", len(report.Skipped))
	return nil
}
