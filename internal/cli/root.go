package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/csvchat/csvchat/internal/config"
)

var (
	cfgFile   string
	verbose   bool
	noColor   bool
	outputFmt string
	dataFiles []string

	globalConfig *config.Config
)

// NewRootCommand creates the root command
func NewRootCommand(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "csvchat",
		Short: "Ask questions about CSV data in plain language",
		Long: `csvchat answers natural-language questions about CSV files.

Questions are translated into small, validated query expressions and
executed locally, so the language model never sees your raw rows. A
retrieval mode is also available that embeds rows and answers from the
most similar ones.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadGlobalConfig(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "", "output format (text, json, markdown)")
	rootCmd.PersistentFlags().StringSliceVarP(&dataFiles, "file", "f", nil, "CSV file to load (repeatable)")

	// Add subcommands
	rootCmd.AddCommand(newAskCommand())
	rootCmd.AddCommand(newRetrieveCommand())
	rootCmd.AddCommand(newChatCommand())
	rootCmd.AddCommand(newIndexCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newVersionCommand(version, commit, date))

	return rootCmd
}

// loadGlobalConfig resolves the effective configuration for this run:
// defaults, config files, environment, then command-line flags.
func loadGlobalConfig(cmd *cobra.Command) error {
	loader := config.NewLoader()
	cfg, err := loader.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if verbose {
		cfg.Output.Verbose = true
	}
	if noColor {
		cfg.Output.ColorMode = "never"
	}
	if cmd.Root().PersistentFlags().Changed("output") {
		cfg.Output.DefaultFormat = outputFmt
	}
	if len(dataFiles) > 0 {
		cfg.Data.Files = append(cfg.Data.Files, dataFiles...)
	}

	globalConfig = cfg
	return nil
}

// GetGlobalConfig returns the loaded configuration, falling back to
// defaults when no command has loaded one yet (tests, mainly)
func GetGlobalConfig() *config.Config {
	if globalConfig == nil {
		return config.DefaultConfig()
	}
	return globalConfig
}

func newVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display version number, build commit, date, and runtime information",
		Run: func(cmd *cobra.Command, args []string) {
			displayVersion := version
			displayCommit := commit
			displayDate := date

			if version == "dev" || version == "" {
				displayVersion = "development"
			}
			if commit == "none" || commit == "" {
				displayCommit = "local-build"
			}
			if date == "unknown" || date == "" {
				displayDate = "local-build"
			}

			fmt.Printf("csvchat %s (%s) built on %s\n", displayVersion, displayCommit, displayDate)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// Global helpers
func isVerbose() bool {
	return verbose || GetGlobalConfig().Output.Verbose
}

func colorDisabled() bool {
	if noColor {
		return true
	}
	return GetGlobalConfig().Output.ColorMode == "never"
}

func getOutputFormat() string {
	if outputFmt != "" {
		return outputFmt
	}
	return GetGlobalConfig().Output.DefaultFormat
}
