// Package progress reports batch progress: a progress bar on an interactive
// terminal, periodic log lines otherwise.
package progress

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// LogEvery is how many books pass between progress log lines.
const LogEvery = 10

// Tracker follows a batch of known size.
type Tracker interface {
	Start(total int)
	Step()
	Finish()
}

// New returns a bar tracker writing to out when out is a terminal and a
// log tracker otherwise.
func New(out *os.File) Tracker {
	if out != nil && isTerminal(out) {
		return &Bar{out: out}
	}
	return &Log{}
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Log emits an info line every LogEvery books.
type Log struct {
	processed int
	total     int
}

func (l *Log) Start(total int) {
	l.total = total
	l.processed = 0
}

func (l *Log) Step() {
	l.processed++
	if l.processed%LogEvery != 0 {
		return
	}

	percentage := "0%"
	if l.total > 0 {
		percentage = fmt.Sprintf("%.1f%%", float64(l.processed)/float64(l.total)*100)
	}

	slog.Info("Processing books",
		"processed", l.processed,
		"total", l.total,
		"percentage", percentage,
	)
}

func (l *Log) Finish() {}

// Bar draws a progress bar.
type Bar struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

func (b *Bar) Start(total int) {
	b.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(b.out),
		progressbar.OptionSetDescription("Summarizing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
	)
}

func (b *Bar) Step() {
	if b.bar != nil {
		_ = b.bar.Add(1)
	}
}

func (b *Bar) Finish() {
	if b.bar != nil {
		_ = b.bar.Finish()
	}
}
