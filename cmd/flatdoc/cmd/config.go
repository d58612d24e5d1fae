package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/flatdoc/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
}

var configInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write the default configuration as YAML",
	Long: `Write the built-in defaults to a YAML file (flatdoc.yaml by default).
Existing files are kept unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ConfigFileName + ".yaml"
		if len(args) == 1 {
			path = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.GenerateDefaultConfigFile(path); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		data, err := config.MarshalYAML(*cfg)
		if err != nil {
			return err
		}
		if used := GetConfigLoader().GetConfigFileUsed(); used != "" {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# loaded from %s\n", used)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := GetConfig().Validate(); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}
