package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/sgte/pdf-splitter/internal/common"
	repo "github.com/sgte/pdf-splitter/internal/repository"
	"github.com/sgte/pdf-splitter/internal/roster"
)

func main() {
	path := flag.String("file", "", "roster workbook: RUN, nombres, apellidos, carrera, modalidad (required)")
	flag.Parse()
	if *path == "" {
		fmt.Fprintln(os.Stderr, "Error: --file is required")
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	logger := common.NewJSONLogger(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := repo.Open(ctx, repo.Config{
		DSN:         cfg.Database.DSN,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		DialTimeout: cfg.Database.DialTimeout,
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

	f, err := os.Open(*path)
	if err != nil {
		logger.Error("failed to open roster", "path", *path, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	students := repo.NewStudentRepository(db, logger)
	report, err := roster.ImportXLSX(ctx, f, students, logger)
	if err != nil {
		logger.Error("roster import failed", "path", *path, "error", err)
		os.Exit(1)
	}

	total, _ := students.Count(ctx)
	fmt.Printf("sheet=%q rows=%d imported=%d skipped=%d students=%d\n",
		report.Sheet, report.Rows, report.Imported, len(report.Skipped), total)
	for _, s := range report.Skipped {
		fmt.Printf("  row %d: %s\n", s.Row, s.Message)
	}
}
