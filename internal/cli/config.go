package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/csvchat/csvchat/internal/config"
)

// newConfigCommand creates the config command with subcommands
func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage csvchat configuration",
		Long: `Manage csvchat configuration files and settings.

The config command provides subcommands for initializing, viewing,
validating, and locating configuration files.`,
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand())
	configCmd.AddCommand(newConfigValidateCommand())
	configCmd.AddCommand(newConfigPathCommand())

	return configCmd
}

// newConfigInitCommand creates the config init subcommand
func newConfigInitCommand() *cobra.Command {
	var (
		outputPath string
		force      bool
	)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new configuration file",
		Long:  "Write a configuration file populated with the default values.",
		Example: `  # Create a config in the current directory
  csvchat config init

  # Create at a specific path
  csvchat config init --output ~/.config/csvchat/config.yaml

  # Overwrite an existing config
  csvchat config init --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := outputPath
			if path == "" {
				path = ".csvchat.yaml"
			}
			path = config.ExpandPath(path)

			if !force && fileExists(path) {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			data, err := yaml.Marshal(config.DefaultConfig())
			if err != nil {
				return fmt.Errorf("failed to render configuration: %w", err)
			}

			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create directory: %w", err)
				}
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("failed to write configuration: %w", err)
			}

			fmt.Printf("Configuration written to %s\n", path)
			return nil
		},
	}

	initCmd.Flags().StringVar(&outputPath, "output", "", "path to write the config file")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return initCmd
}

// newConfigShowCommand creates the config show subcommand
func newConfigShowCommand() *cobra.Command {
	var format string

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the merged configuration after loading from all sources:
defaults, config files, environment variables and command-line flags.`,
		Example: `  # Show config in YAML format
  csvchat config show

  # Show config in JSON format
  csvchat config show --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := GetGlobalConfig()

			switch format {
			case "json":
				data, err := json.MarshalIndent(cfg, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to render configuration: %w", err)
				}
				fmt.Println(string(data))
			case "yaml", "":
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return fmt.Errorf("failed to render configuration: %w", err)
				}
				fmt.Print(string(data))
			default:
				return fmt.Errorf("unsupported format: %s", format)
			}
			return nil
		},
	}

	showCmd.Flags().StringVar(&format, "format", "yaml", "output format (yaml, json)")

	return showCmd
}

// newConfigValidateCommand creates the config validate subcommand
func newConfigValidateCommand() *cobra.Command {
	var configPath string

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Validate a csvchat configuration file.

Checks YAML syntax, enum values and numeric ranges.`,
		Example: `  # Validate the current config
  csvchat config validate

  # Validate a specific file
  csvchat config validate --path /path/to/config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader()
			if _, err := loader.LoadConfig(configPath); err != nil {
				fmt.Printf("Configuration validation failed:\n   %v\n", err)
				return err
			}

			fmt.Println("Configuration is valid")
			return nil
		},
	}

	validateCmd.Flags().StringVar(&configPath, "path", "", "config file to validate")

	return validateCmd
}

// newConfigPathCommand creates the config path subcommand
func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file search paths",
		Long:  "Display the paths csvchat searches for configuration files, in priority order.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Configuration file search paths (in priority order):")
			for i, path := range config.GetConfigPaths() {
				marker := "not found"
				if fileExists(config.ExpandPath(path)) {
					marker = "exists"
				}
				fmt.Printf("  %d. %s (%s)\n", i+1, path, marker)
			}

			if path, found := config.FindConfigFile(); found {
				fmt.Printf("\nActive config: %s\n", path)
			} else {
				fmt.Println("\nActive config: built-in defaults")
			}
		},
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
