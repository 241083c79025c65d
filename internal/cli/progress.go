package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hyperjump/litindex/internal/indexer"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NewProgress returns a directory-indexing progress callback writing to w.
// Interactive output draws a progress bar; otherwise one line per file is printed.
func NewProgress(w io.Writer, interactive bool) indexer.ProgressFunc {
	if !interactive {
		return func(done, total int, path string) {
			fmt.Fprintf(w, "[%d/%d] %s\n", done, total, path)
		}
	}
	var bar *progressbar.ProgressBar
	return func(done, total int, path string) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionSetDescription("Indexing"),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}
		bar.Describe(filepath.Base(path))
		_ = bar.Set(done)
		if done >= total {
			_ = bar.Finish()
		}
	}
}
