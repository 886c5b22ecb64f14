package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/lepinkainen/bookbrief/internal/cache"
	"github.com/lepinkainen/bookbrief/internal/report"
	"github.com/spf13/viper"
)

// CacheCmd groups the ledger subcommands
type CacheCmd struct {
	Stats CacheStatsCmd `cmd:"" help:"Show ledger size and entries per source"`
}

// CacheStatsCmd represents the cache stats command
type CacheStatsCmd struct {
	File string `help:"Path to the summary ledger (defaults to cache.file from config)"`
}

func (c *CacheStatsCmd) Run() error {
	path := c.File
	if path == "" {
		path = viper.GetString("cache.file")
	}
	if path == "" {
		return fmt.Errorf("ledger file is required (provide via --file flag or cache.file in config)")
	}
	return printLedgerStats(os.Stdout, path)
}

func printLedgerStats(w io.Writer, path string) error {
	store, err := cache.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	entries, err := store.Load()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "%s\n%s\nEntries: %d\n", path, report.SourceTable(cache.CountBySource(entries)), len(entries))
	return err
}
