// Package cmd implements the flatdoc command line.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/flatdoc/internal/config"
	"github.com/MeKo-Tech/flatdoc/internal/models"
	"github.com/MeKo-Tech/flatdoc/internal/ocr"
	"github.com/MeKo-Tech/flatdoc/internal/pipeline"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "flatdoc",
	Short: "Flatten photographed documents and recognize their text",
	Long: `flatdoc finds the page in a photo of a document, warps it to a flat
top-down view, binarizes it and runs text recognition on the result.

Every document gets its own output directory holding the "-done" image,
optional per-stage images and a JSON file with the recognized text.

Examples:
  flatdoc rectify scan.jpg
  flatdoc batch ./photos --format csv
  flatdoc serve --port 5555
  flatdoc request scan.jpg`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is search in ., $HOME, $HOME/.config/flatdoc, /etc/flatdoc)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("input-dir", "", "directory request filenames are resolved against")
	rootCmd.PersistentFlags().String("output-dir", "", "directory receiving one subdirectory per document")
	rootCmd.PersistentFlags().String("engine", "", fmt.Sprintf("recognition engine (%s)", strings.Join(ocr.Engines(), ", ")))
	rootCmd.PersistentFlags().String("journal", "", "request history database (empty disables it)")

	bindFlag("verbose", "verbose")
	bindFlag("log_level", "log-level")
	bindFlag("path.input_dir", "input-dir")
	bindFlag("path.output_dir", "output-dir")
	bindFlag("ocr.engine", "engine")
	bindFlag("journal.path", "journal")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if globalConfig == nil {
			if err := initConfig(); err != nil {
				return err
			}
		}
		cfg := GetConfig()
		setupLogging(cfg, cmd.ErrOrStderr())
		return nil
	}
}

// bindFlag binds a persistent flag to a config key. An unset flag never
// overrides the config file, the environment or the built-in default.
func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	configLoader = config.NewLoader()

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.LoadWithoutValidation()
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	return nil
}

// GetConfig returns the effective configuration including flag overrides.
func GetConfig() *config.Config {
	if globalConfig == nil {
		if err := initConfig(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	// Flag values are only visible once cobra has parsed them.
	cfg, err := GetConfigLoader().Reload()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshaling updated configuration: %v\n", err)
		return globalConfig
	}
	return cfg
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}

func setupLogging(cfg *config.Config, w io.Writer) {
	var logLevel slog.Level
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		default:
			logLevel = slog.LevelInfo
		}
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel})))
}

// newDispatcher validates cfg and builds a dispatcher over the configured
// recognition engine.
func newDispatcher(cfg *config.Config) (*pipeline.Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	engine, err := ocr.NewEngine(cfg.OCR.Engine)
	if err != nil {
		return nil, fmt.Errorf("recognition engine %q: %w (available: %s)",
			cfg.OCR.Engine, err, strings.Join(ocr.Available(), ", "))
	}
	pc := cfg.ToPipelineConfig()
	if cfg.OCR.Engine == ocr.EngineTesseract && pc.OCR.DataDir != "" {
		if err := models.ValidateLanguages(pc.OCR.DataDir, pc.OCR.Language); err != nil {
			slog.Warn("language data check failed", "error", err)
		}
	}
	d, err := pipeline.NewDispatcher(pc, engine)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	return d, nil
}
