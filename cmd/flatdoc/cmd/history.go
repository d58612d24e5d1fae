package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/flatdoc/internal/journal"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List processed requests from the journal",
	Long: `Print the request history recorded by "flatdoc serve --journal", newest
first.

Examples:
  flatdoc history --journal ./flatdoc.db
  flatdoc history --journal ./flatdoc.db --limit 5 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if cfg.Journal.Path == "" {
			return errors.New("no journal configured (set --journal or journal.path)")
		}
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer func() { _ = j.Close() }()

		entries, err := j.List(cmd.Context(), limit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "TIME\tREQUEST\tFILE\tSTATUS\tKIND\tPREPROCESS\tOCR")
		for _, e := range entries {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.3fs\t%.3fs\n",
				e.CreatedAt.Local().Format(time.DateTime), e.RequestID, e.Filename,
				e.Status, e.Kind, e.Preprocess, e.Recognition)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "maximum number of entries (0 for all)")
	historyCmd.Flags().Bool("json", false, "print entries as JSON")
}
