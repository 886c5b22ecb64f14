// Package report summarises a run on the console and, optionally, in a
// YAML file.
package report

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lepinkainen/bookbrief/internal/cache"
	"github.com/lepinkainen/bookbrief/internal/pipeline"
	"gopkg.in/yaml.v3"
)

var headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))

// Report describes one summarization run.
type Report struct {
	RunID       string         `yaml:"run_id"`
	StartedAt   time.Time      `yaml:"started_at"`
	FinishedAt  time.Time      `yaml:"finished_at"`
	Duration    string         `yaml:"duration"`
	CatalogFile string         `yaml:"catalog_file"`
	CacheFile   string         `yaml:"cache_file"`
	OutputFile  string         `yaml:"output_file,omitempty"`
	OutputRows  int            `yaml:"output_rows"`
	Catalog     int            `yaml:"catalog_books"`
	Cached      int            `yaml:"cached_before"`
	Selected    int            `yaml:"selected"`
	Processed   int            `yaml:"processed"`
	NewEntries  int            `yaml:"new_entries"`
	LedgerSize  int            `yaml:"ledger_size"`
	Max         int            `yaml:"max_summaries"`
	Interrupted bool           `yaml:"interrupted,omitempty"`
	BySource    map[string]int `yaml:"by_source"`

	counts map[cache.Source]int
}

// New builds a report from the run statistics.
func New(runID string, started, finished time.Time, stats pipeline.Stats, maxSummaries int) *Report {
	counts := maps.Clone(stats.BySource)
	if counts == nil {
		counts = make(map[cache.Source]int)
	}
	if _, ok := counts[pipeline.SourceNone]; !ok {
		counts[pipeline.SourceNone] = 0
	}

	bySource := make(map[string]int, len(counts))
	for s, n := range counts {
		bySource[string(s)] = n
	}
	return &Report{
		RunID:       runID,
		StartedAt:   started.UTC(),
		FinishedAt:  finished.UTC(),
		Duration:    finished.Sub(started).Round(time.Millisecond).String(),
		Catalog:     stats.Catalog,
		Cached:      stats.Cached,
		Selected:    stats.Selected,
		Processed:   stats.Processed,
		NewEntries:  stats.LedgerSize - stats.Cached,
		LedgerSize:  stats.LedgerSize,
		Max:         maxSummaries,
		Interrupted: stats.Interrupted,
		BySource:    bySource,
		counts:      counts,
	}
}

// String renders the console summary.
func (r *Report) String() string {
	var b strings.Builder
	b.WriteString(headingStyle.Render("Summary sources"))
	b.WriteString("\n")
	b.WriteString(SourceTable(r.counts))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Summaries: %d/%d (%d new, %d processed)\n", r.LedgerSize, r.Max, r.NewEntries, r.Processed)
	if r.Interrupted {
		b.WriteString("Run was interrupted; progress so far has been saved.\n")
	}
	return b.String()
}

// Save writes the report as YAML to path.
func (r *Report) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

func sortedExtra(counts map[cache.Source]int, known map[cache.Source]bool) []cache.Source {
	var extra []cache.Source
	for s := range counts {
		if !known[s] {
			extra = append(extra, s)
		}
	}
	slices.Sort(extra)
	return extra
}
