package report

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/lepinkainen/bookbrief/internal/cache"
	"github.com/lepinkainen/bookbrief/internal/pipeline"
)

// sourceOrder is the display order of source labels. Labels not listed
// here are appended after them.
var sourceOrder = []cache.Source{
	cache.SourceISBN,
	cache.SourceTitle,
	cache.SourceNotFound,
	pipeline.SourceNone,
}

// SourceTable renders counts per source label with a total row. Labels
// absent from counts are left out.
func SourceTable(counts map[cache.Source]int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Source", "Books"})

	total := 0
	seen := make(map[cache.Source]bool, len(counts))
	for _, s := range sourceOrder {
		seen[s] = true
		n, ok := counts[s]
		if !ok {
			continue
		}
		tw.AppendRow(table.Row{string(s), strconv.Itoa(n)})
		total += n
	}
	for _, s := range sortedExtra(counts, seen) {
		tw.AppendRow(table.Row{string(s), strconv.Itoa(counts[s])})
		total += counts[s]
	}
	tw.AppendFooter(table.Row{"Total", strconv.Itoa(total)})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft, AlignFooter: text.AlignRight},
	})
	return tw.Render()
}
