package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/flatdoc/internal/batch"
)

// batchCmd processes many documents sequentially.
var batchCmd = &cobra.Command{
	Use:   "batch <path> [path...]",
	Short: "Process all images in files or directories",
	Long: `Discover images in the given files and directories and run them through
the pipeline one after another. Failed documents are reported and the batch
continues unless --fail-fast is set.

Examples:
  flatdoc batch ./photos
  flatdoc batch ./photos --recursive --format json --output results.json
  flatdoc batch ./photos --include "scan_*" --exclude "*-done.*"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		bc := configToBatchConfig(cmd)

		d, err := newDispatcher(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = d.Close() }()

		res, err := batch.ProcessBatch(cmd.Context(), d, args, bc)
		if res != nil {
			if saveErr := res.SaveResults(bc.Format, bc.OutputFile, bc.Quiet); saveErr != nil {
				return saveErr
			}
			if bc.ShowStats && !bc.Quiet {
				res.PrintStats(cmd.OutOrStdout())
			}
		}
		if err != nil {
			return err
		}
		if n := res.Failed(); n > 0 {
			return fmt.Errorf("%d of %d documents failed", n, len(res.Items))
		}
		return nil
	},
}

func configToBatchConfig(cmd *cobra.Command) *batch.Config {
	bc := &batch.Config{}
	bc.Recursive, _ = cmd.Flags().GetBool("recursive")
	bc.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	bc.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")
	bc.Format, _ = cmd.Flags().GetString("format")
	bc.OutputFile, _ = cmd.Flags().GetString("output")
	bc.FailFast, _ = cmd.Flags().GetBool("fail-fast")
	bc.Quiet, _ = cmd.Flags().GetBool("quiet")
	bc.ShowStats, _ = cmd.Flags().GetBool("stats")
	return bc
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	batchCmd.Flags().StringSlice("include", nil, "only process files matching these glob patterns")
	batchCmd.Flags().StringSlice("exclude", nil, "skip files matching these glob patterns")
	batchCmd.Flags().StringP("format", "f", "text", "output format (text, json, csv)")
	batchCmd.Flags().StringP("output", "o", "", "write results to this file instead of stdout")
	batchCmd.Flags().Bool("fail-fast", false, "stop at the first failed document")
	batchCmd.Flags().BoolP("quiet", "q", false, "suppress informational output")
	batchCmd.Flags().Bool("stats", false, "print processing statistics")
}
