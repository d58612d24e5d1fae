package batch

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Config holds all configuration for batch processing.
type Config struct {
	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Output settings
	Format     string // text, json or csv
	OutputFile string

	// Stop at the first failed document instead of recording it and moving on.
	FailFast bool

	Quiet     bool
	ShowStats bool
}

// Formats lists the supported output formats.
func Formats() []string { return []string{"text", "json", "csv"} }

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Format {
	case "", "text", "json", "csv":
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (must be one of %v)", c.Format, Formats())
	}
}

// Result holds the outcome of a batch run.
type Result struct {
	Items    []Item
	Duration time.Duration
}

// Failed returns the number of documents that did not produce text.
func (r *Result) Failed() int {
	n := 0
	for _, it := range r.Items {
		if it.Err != nil {
			n++
		}
	}
	return n
}

// FormatResults formats the batch results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r.Items, format)
}

// SaveResults writes the formatted results to outputFile, or to stdout when
// outputFile is empty.
func (r *Result) SaveResults(format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(os.Stdout, "Results written to %s\n", outputFile)
		}
		return nil
	}
	_, _ = fmt.Fprint(os.Stdout, output)
	return nil
}

// PrintStats prints processing statistics to w.
func (r *Result) PrintStats(w io.Writer) {
	total := len(r.Items)
	failed := r.Failed()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total documents: %d\n", total)
	_, _ = fmt.Fprintf(w, "  Processed: %d\n", total-failed)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", failed)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	if total > 0 {
		avg := r.Duration / time.Duration(total)
		_, _ = fmt.Fprintf(w, "  Avg per document: %v\n", avg.Round(time.Millisecond))
	}
}
