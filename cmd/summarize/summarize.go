// Package summarize wires one end-to-end summarization run: catalog in,
// ledger updated, output and report written.
package summarize

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lepinkainen/bookbrief/internal/cache"
	"github.com/lepinkainen/bookbrief/internal/catalog"
	"github.com/lepinkainen/bookbrief/internal/config"
	"github.com/lepinkainen/bookbrief/internal/openlibrary"
	"github.com/lepinkainen/bookbrief/internal/output"
	"github.com/lepinkainen/bookbrief/internal/pipeline"
	"github.com/lepinkainen/bookbrief/internal/progress"
	"github.com/lepinkainen/bookbrief/internal/report"
	"github.com/lepinkainen/bookbrief/internal/resolver"
)

// Env holds the process-level collaborators of a run. Zero fields fall
// back to the real ones.
type Env struct {
	// Stdout receives the console report.
	Stdout io.Writer
	// Terminal is checked for a TTY to decide between a progress bar and
	// progress log lines.
	Terminal *os.File
	Sleeper  openlibrary.Sleeper
	Now      func() time.Time
	NewRunID func() string
}

func (e Env) withDefaults() Env {
	if e.Stdout == nil {
		e.Stdout = os.Stdout
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	if e.NewRunID == nil {
		e.NewRunID = uuid.NewString
	}
	return e
}

// Run executes a summarization run with cfg. Missing inputs fail before
// any request is made.
func Run(ctx context.Context, cfg config.Config, env Env) (*report.Report, error) {
	env = env.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	runID := env.NewRunID()
	prev := slog.Default()
	slog.SetDefault(prev.With("run", runID))
	defer slog.SetDefault(prev)

	started := env.Now()
	slog.Info("Starting summarization run", "catalog", cfg.CatalogFile, "cache", cfg.CacheFile, "max", cfg.MaxSummaries)

	if err := catalog.CheckFiles(cfg.CatalogFile); err != nil {
		return nil, err
	}
	books, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}

	store, err := cache.Open(cfg.CacheFile)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close ledger", "error", err)
		}
	}()

	clientOpts := openlibrary.OptionsFromConfig(cfg)
	clientOpts.Sleeper = env.Sleeper
	client := openlibrary.NewClient(clientOpts)

	opts := pipeline.OptionsFromConfig(cfg)
	opts.Tracker = progress.New(env.Terminal)
	orch := pipeline.New(resolver.New(client, cfg.SearchRetries), store, opts)

	outcome, err := orch.Run(ctx, books)
	if err != nil {
		return nil, err
	}

	rows, err := output.Write(cfg.OutputFile, outcome.Rows)
	if err != nil {
		return nil, err
	}

	rep := report.New(runID, started, env.Now(), outcome.Stats, cfg.MaxSummaries)
	rep.CatalogFile = cfg.CatalogFile
	rep.CacheFile = cfg.CacheFile
	rep.OutputFile = cfg.OutputFile
	rep.OutputRows = rows

	if _, err := fmt.Fprint(env.Stdout, rep.String()); err != nil {
		return nil, fmt.Errorf("failed to print report: %w", err)
	}
	if cfg.ReportFile != "" {
		if err := rep.Save(cfg.ReportFile); err != nil {
			return nil, err
		}
		slog.Info("Report written", "file", cfg.ReportFile)
	}

	slog.Info("Summarization run finished",
		"processed", outcome.Stats.Processed,
		"resolved", outcome.Stats.Resolved,
		"ledger", outcome.Stats.LedgerSize,
		"interrupted", outcome.Stats.Interrupted,
	)
	return rep, nil
}
