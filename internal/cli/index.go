package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/csvchat/csvchat/internal/config"
	"github.com/csvchat/csvchat/internal/vectorstore"
)

// newIndexCommand creates the index command with subcommands
func newIndexCommand() *cobra.Command {
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the embedding index",
		Long: `Manage the embedding index used by the retrieval path.

The index is built lazily on first use and persisted to SQLite when
index.path is configured. These subcommands build it eagerly and
inspect what is stored.`,
	}

	indexCmd.AddCommand(newIndexBuildCommand())
	indexCmd.AddCommand(newIndexStatusCommand())

	return indexCmd
}

// newIndexBuildCommand creates the index build subcommand
func newIndexBuildCommand() *cobra.Command {
	var tableName string

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build the embedding index",
		Long: `Embed every row of a table and persist the index.

Building eagerly avoids the embedding cost on the first rag question.
An existing index for a different data or embedder version is replaced.`,
		Example: `  # Build the index for the default table
  csvchat -f cities.csv index build

  # Build for a named table
  csvchat -f cities.csv -f rivers.csv index build -t rivers`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession()
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			if tableName == "" {
				tableName = GetGlobalConfig().Data.DefaultTable
			}

			count, err := sess.engine.Reindex(cmd.Context(), tableName)
			if err != nil {
				return fmt.Errorf("failed to build index: %w", err)
			}

			fmt.Printf("Indexed %d documents\n", count)
			return nil
		},
	}

	buildCmd.Flags().StringVarP(&tableName, "table", "t", "", "table to index (default: first loaded)")

	return buildCmd
}

// newIndexStatusCommand creates the index status subcommand
func newIndexStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the persisted index status",
		Long:  "Display the embedding version, dimensionality, data fingerprint and document count of the persisted index.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := GetGlobalConfig()
			if cfg.Index.Path == "" {
				fmt.Println("No index path configured; the index lives in memory only.")
				return nil
			}

			path := config.ExpandPath(cfg.Index.Path)
			store, err := vectorstore.NewSQLiteStore(path)
			if err != nil {
				return fmt.Errorf("failed to open index at %s: %w", path, err)
			}
			defer func() { _ = store.Close() }()

			meta, records, err := store.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read index: %w", err)
			}

			if meta.Version == "" {
				fmt.Printf("Index at %s is empty.\n", path)
				return nil
			}

			fmt.Printf("Index: %s\n", path)
			fmt.Printf("  Embedding version: %s\n", meta.Version)
			fmt.Printf("  Dimensions:        %d\n", meta.Dimension)
			fmt.Printf("  Data fingerprint:  %s\n", meta.Fingerprint)
			fmt.Printf("  Documents:         %d\n", len(records))
			return nil
		},
	}
}
