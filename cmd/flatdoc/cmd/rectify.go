package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/flatdoc/internal/pipeline"
	"github.com/MeKo-Tech/flatdoc/internal/server"
)

// rectifyCmd runs documents through the pipeline in-process.
var rectifyCmd = &cobra.Command{
	Use:     "rectify <file> [file...]",
	Aliases: []string{"process"},
	Short:   "Flatten and recognize documents without a server",
	Long: `Run one or more documents through the full pipeline in this process and
print one reply per document as JSON, exactly as the server would send it.

An argument naming an existing file is used as is; anything else is
resolved against the input directory.

Examples:
  flatdoc rectify photo.jpg
  flatdoc rectify --step-by-step --output-dir ./out a.png b.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRectify,
}

func init() {
	rootCmd.AddCommand(rectifyCmd)
	rectifyCmd.Flags().Bool("step-by-step", false, "write an image after every preprocessing stage")
	rectifyCmd.Flags().String("debug-dir", "", "write rectification comparison images to this directory")
	rectifyCmd.Flags().String("lang", "", "recognition language(s), e.g. eng+deu")
}

func runRectify(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if cmd.Flags().Changed("step-by-step") {
		cfg.Output.StepByStep, _ = cmd.Flags().GetBool("step-by-step")
	}
	if cmd.Flags().Changed("debug-dir") {
		cfg.Output.DebugDir, _ = cmd.Flags().GetString("debug-dir")
	}
	if cmd.Flags().Changed("lang") {
		cfg.OCR.Lang, _ = cmd.Flags().GetString("lang")
	}

	d, err := newDispatcher(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	enc := json.NewEncoder(cmd.OutOrStdout())
	failed := 0
	for _, arg := range args {
		req := requestFor(arg)
		res, runErr := d.Run(cmd.Context(), req)
		if res != nil {
			req.ID = res.RequestID
		}
		reply := server.NewReply(req, res, runErr)
		if reply.Status != server.StatusOK {
			failed++
		}
		if err := enc.Encode(reply); err != nil {
			return fmt.Errorf("write reply: %w", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(args))
	}
	return nil
}

// requestFor builds a request for a command line argument.
func requestFor(arg string) pipeline.Request {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return pipeline.Request{Filename: filepath.Base(arg), SourcePath: arg}
	}
	return pipeline.Request{Filename: arg}
}
