package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"clipmatch/internal/pipeline"
)

// progressReporter renders pipeline progress as a terminal progress bar, or
// as plain status lines when output is not a TTY.
type progressReporter struct {
	out   *os.File
	tty   bool
	title cases.Caser

	stage string
	bar   *progressbar.ProgressBar
}

func newProgressReporter(out *os.File) *progressReporter {
	return &progressReporter{
		out:   out,
		tty:   isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()),
		title: cases.Title(language.Und),
	}
}

func (r *progressReporter) callback() pipeline.Progress {
	return func(stage string, current, total int, message string) {
		r.report(stage, current, total, message)
	}
}

func (r *progressReporter) report(stage string, current, total int, message string) {
	label := r.title.String(stage)
	if !r.tty {
		fmt.Fprintf(r.out, "%s [%d/%d] %s\n", label, current, total, message)
		return
	}

	if stage != r.stage {
		r.finishBar()
		r.stage = stage
		r.bar = progressbar.NewOptions(max(total, 1),
			progressbar.OptionSetDescription(label),
			progressbar.OptionSetWriter(r.out),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionShowCount(),
		)
	}
	if r.bar != nil {
		_ = r.bar.Set(current)
		if message != "" {
			r.bar.Describe(fmt.Sprintf("%s: %s", label, message))
		}
	}
}

// Finish clears any active bar; call once the run completes.
func (r *progressReporter) Finish() {
	r.finishBar()
	r.stage = ""
}

func (r *progressReporter) finishBar() {
	if r.bar != nil {
		_ = r.bar.Finish()
		r.bar = nil
	}
}
