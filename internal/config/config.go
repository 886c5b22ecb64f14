package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Flush modes for the summary ledger.
const (
	FlushBatch = "batch"
	FlushBook  = "book"
)

// Config holds every tunable of a summarization run. It is built once from
// viper and passed to the fetcher, resolver and orchestrator at construction.
type Config struct {
	CatalogFile string
	CacheFile   string
	OutputFile  string
	ReportFile  string
	Flush       string

	// MaxSummaries caps the size of the ledger; a run stops selecting
	// books once the ledger holds this many entries.
	MaxSummaries int
	// Seed makes batch sampling reproducible. Zero means random.
	Seed uint64
	// MaxLength is the maximum summary length in characters.
	MaxLength int

	DelayMin       time.Duration
	DelayMax       time.Duration
	RequestTimeout time.Duration
	SearchRetries  int
	SearchLimit    int

	RateLimitCooldown time.Duration
	RequestsPerSecond float64

	BaseURL   string
	UserAgent string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		CatalogFile:       "./data/books.csv",
		CacheFile:         "./data/book_summaries_cache.csv",
		OutputFile:        "./data/books_with_summaries.csv",
		Flush:             FlushBatch,
		MaxSummaries:      1000,
		MaxLength:         2000,
		DelayMin:          500 * time.Millisecond,
		DelayMax:          1500 * time.Millisecond,
		RequestTimeout:    20 * time.Second,
		SearchRetries:     3,
		SearchLimit:       3,
		RateLimitCooldown: 60 * time.Second,
		BaseURL:           "https://openlibrary.org",
		UserAgent:         "bookbrief/1.0 (+https://github.com/lepinkainen/bookbrief)",
	}
}

// SetDefaults registers the defaults with viper so that they show up in a
// freshly written config file.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("catalog.file", d.CatalogFile)
	v.SetDefault("cache.file", d.CacheFile)
	v.SetDefault("cache.flush", d.Flush)
	v.SetDefault("output.file", d.OutputFile)
	v.SetDefault("report.file", d.ReportFile)
	v.SetDefault("summaries.max", d.MaxSummaries)
	v.SetDefault("summaries.seed", d.Seed)
	v.SetDefault("summaries.max_length", d.MaxLength)
	v.SetDefault("request.delay_min", d.DelayMin.String())
	v.SetDefault("request.delay_max", d.DelayMax.String())
	v.SetDefault("request.timeout", d.RequestTimeout.String())
	v.SetDefault("search.retries", d.SearchRetries)
	v.SetDefault("search.limit", d.SearchLimit)
	v.SetDefault("ratelimit.cooldown", d.RateLimitCooldown.String())
	v.SetDefault("ratelimit.requests_per_second", d.RequestsPerSecond)
	v.SetDefault("openlibrary.base_url", d.BaseURL)
	v.SetDefault("openlibrary.user_agent", d.UserAgent)
}

// FromViper reads the configuration from v, falling back to the defaults
// for unset keys, and validates the result.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Default()

	setString(v, "catalog.file", &cfg.CatalogFile)
	setString(v, "cache.file", &cfg.CacheFile)
	setString(v, "cache.flush", &cfg.Flush)
	setString(v, "output.file", &cfg.OutputFile)
	setString(v, "report.file", &cfg.ReportFile)
	setString(v, "openlibrary.base_url", &cfg.BaseURL)
	setString(v, "openlibrary.user_agent", &cfg.UserAgent)

	if v.IsSet("summaries.max") {
		cfg.MaxSummaries = v.GetInt("summaries.max")
	}
	if v.IsSet("summaries.seed") {
		cfg.Seed = v.GetUint64("summaries.seed")
	}
	if v.IsSet("summaries.max_length") {
		cfg.MaxLength = v.GetInt("summaries.max_length")
	}
	if v.IsSet("search.retries") {
		cfg.SearchRetries = v.GetInt("search.retries")
	}
	if v.IsSet("search.limit") {
		cfg.SearchLimit = v.GetInt("search.limit")
	}
	if v.IsSet("ratelimit.requests_per_second") {
		cfg.RequestsPerSecond = v.GetFloat64("ratelimit.requests_per_second")
	}

	var errs []error
	errs = append(errs,
		setDuration(v, "request.delay_min", &cfg.DelayMin),
		setDuration(v, "request.delay_max", &cfg.DelayMax),
		setDuration(v, "request.timeout", &cfg.RequestTimeout),
		setDuration(v, "ratelimit.cooldown", &cfg.RateLimitCooldown),
	)
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that would make a run
// meaningless or unsafe.
func (c Config) Validate() error {
	var errs []error
	if c.CatalogFile == "" {
		errs = append(errs, errors.New("catalog.file is required"))
	}
	if c.CacheFile == "" {
		errs = append(errs, errors.New("cache.file is required"))
	}
	if c.Flush != FlushBatch && c.Flush != FlushBook {
		errs = append(errs, fmt.Errorf("cache.flush must be %q or %q, got %q", FlushBatch, FlushBook, c.Flush))
	}
	if c.MaxSummaries < 0 {
		errs = append(errs, fmt.Errorf("summaries.max must not be negative, got %d", c.MaxSummaries))
	}
	if c.MaxLength <= 0 {
		errs = append(errs, fmt.Errorf("summaries.max_length must be positive, got %d", c.MaxLength))
	}
	if c.DelayMin < 0 || c.DelayMax < c.DelayMin {
		errs = append(errs, fmt.Errorf("request delay interval [%s, %s] is invalid", c.DelayMin, c.DelayMax))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request.timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.SearchRetries < 1 {
		errs = append(errs, fmt.Errorf("search.retries must be at least 1, got %d", c.SearchRetries))
	}
	if c.SearchLimit < 1 {
		errs = append(errs, fmt.Errorf("search.limit must be at least 1, got %d", c.SearchLimit))
	}
	if c.RateLimitCooldown < 0 {
		errs = append(errs, fmt.Errorf("ratelimit.cooldown must not be negative, got %s", c.RateLimitCooldown))
	}
	if c.BaseURL == "" {
		errs = append(errs, errors.New("openlibrary.base_url is required"))
	}
	return errors.Join(errs...)
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func setDuration(v *viper.Viper, key string, dst *time.Duration) error {
	if !v.IsSet(key) {
		return nil
	}
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration for %s: %q: %w", key, raw, err)
	}
	*dst = d
	return nil
}
