package testutil

import (
	"testing"
	"time"

	"github.com/lepinkainen/bookbrief/internal/config"
	"github.com/spf13/viper"
)

// ResetViper resets the global viper instance now and when the test completes.
func ResetViper(t *testing.T) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)
}

// TestConfig returns a configuration rooted in env that never waits:
// delays and the rate-limit cooldown are kept but tests are expected to
// inject a Sleeper.
func TestConfig(env *TestEnv, baseURL string) config.Config {
	cfg := config.Default()
	cfg.CatalogFile = env.Path("data", "books.csv")
	cfg.CacheFile = env.Path("data", "book_summaries_cache.csv")
	cfg.OutputFile = env.Path("data", "books_with_summaries.csv")
	cfg.BaseURL = baseURL
	cfg.RequestTimeout = 5 * time.Second
	cfg.Seed = 1
	return cfg
}
