package pipeline

import (
	"fmt"
	"io"

	"github.com/electwix/rst-lint/internal/config"
	"github.com/electwix/rst-lint/internal/diagnostics"
)

// ReportOptions control how a summary is printed.
type ReportOptions struct {
	// Format is config.FormatText or config.FormatJSON.
	Format string
	// Level hides records below it.
	Level    diagnostics.Level
	Colorize bool
}

// Report writes the records of summary at or above opts.Level. Text output
// prints one line per record and a clean line for every file without
// any; JSON output is a single array over all files.
func Report(w io.Writer, summary Summary, opts ReportOptions) error {
	switch opts.Format {
	case config.FormatJSON:
		formatter := &diagnostics.JSONFormatter{}
		return formatter.Write(w, diagnostics.Filter(summary.Records(), opts.Level))
	case config.FormatText, "":
		formatter := diagnostics.NewTextFormatter(opts.Colorize)
		for _, res := range summary.Results {
			records := diagnostics.Filter(res.Records, opts.Level)
			if len(records) == 0 {
				if _, err := fmt.Fprintln(w, formatter.Clean(res.Path)); err != nil {
					return err
				}
				continue
			}
			if err := formatter.Write(w, records); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", opts.Format)
	}
}
