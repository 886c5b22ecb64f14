package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/lepinkainen/bookbrief/cmd/summarize"
	"github.com/lepinkainen/bookbrief/internal/config"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"
)

var runSummarize = summarize.Run

// CLI represents the complete command structure for the bookbrief application
type CLI struct {
	Verbose bool `short:"v" help:"Enable debug logging"`

	Summarize SummarizeCmd `cmd:"" help:"Fetch summaries for catalog books that do not have one yet"`
	Cache     CacheCmd     `cmd:"" help:"Inspect the summary ledger"`
}

// SummarizeCmd represents the summarize command
type SummarizeCmd struct {
	Input  string `short:"f" help:"Path to the catalog CSV file"`
	Cache  string `help:"Path to the summary ledger (.csv, .db or .sqlite)"`
	Output string `short:"o" help:"Path to the output file (.csv, .json, .parquet or .db)"`
	Max    int    `help:"Maximum number of summaries the ledger should hold"`
	Seed   uint64 `help:"Seed for batch sampling (0 = random)"`
	Flush  string `help:"When to write the ledger: batch or book"`
	Report string `help:"Write a YAML run report to this path"`
}

func (s *SummarizeCmd) Run(ctx context.Context) error {
	// Flags override config values
	setIfNotEmpty("catalog.file", s.Input)
	setIfNotEmpty("cache.file", s.Cache)
	setIfNotEmpty("output.file", s.Output)
	setIfNotEmpty("cache.flush", s.Flush)
	setIfNotEmpty("report.file", s.Report)
	if s.Max > 0 {
		viper.Set("summaries.max", s.Max)
	}
	if s.Seed > 0 {
		viper.Set("summaries.seed", s.Seed)
	}

	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	_, err = runSummarize(ctx, cfg, summarize.Env{Terminal: os.Stderr})
	return err
}

func setIfNotEmpty(key, value string) {
	if value != "" {
		viper.Set(key, value)
	}
}

// Execute parses the command line and runs the selected command
func Execute() {
	initLogging(hasVerboseFlag(os.Args[1:]))
	initConfig()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("bookbrief"),
		kong.Description("Enrich a book catalog with summaries from OpenLibrary."),
		kong.UsageOnError(),
	)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := ctx.Run(kong.BindTo(runCtx, (*context.Context)(nil)))
	if err != nil {
		slog.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// hasVerboseFlag peeks at the arguments so that logging is configured
// before config loading logs anything.
func hasVerboseFlag(args []string) bool {
	for _, a := range args {
		if a == "--verbose" || a == "-v" {
			return true
		}
	}
	return false
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	config.SetDefaults(viper.GetViper())

	viper.SetEnvPrefix("BOOKBRIEF")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("Fatal error config file", "error", err)
			os.Exit(1)
		}
		slog.Info("Config file not found, writing default config file")
		if err := viper.SafeWriteConfig(); err != nil {
			slog.Warn("Error writing config file", "error", err)
		}
	}
}

func initLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}
