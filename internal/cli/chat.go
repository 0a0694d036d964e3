package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/csvchat/csvchat/internal/logger"
	"github.com/csvchat/csvchat/internal/qa"
	"github.com/csvchat/csvchat/internal/table"
	"github.com/csvchat/csvchat/internal/ui"
)

// newChatCommand creates the chat command (interactive session)
func newChatCommand() *cobra.Command {
	var (
		tableName string
		retrieve  bool
	)

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive terminal session for asking questions.

Questions default to the query-generation pipeline; press Tab to
switch to retrieval mode and back. With data.watch enabled, edits to
the CSV files are picked up between questions.`,
		Example: `  # Chat about a CSV file
  csvchat -f cities.csv chat

  # Start in retrieval mode against a named table
  csvchat -f cities.csv -f rivers.csv chat -t rivers --rag`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession()
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			cfg := GetGlobalConfig()

			if tableName == "" {
				tableName = cfg.Data.DefaultTable
			}

			mode := qa.ModeGenerate
			if retrieve {
				mode = qa.ModeRetrieve
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if cfg.Data.Watch {
				go watchTables(ctx, sess)
			}

			return ui.Run(ui.ModelConfig{
				Engine:      sess.engine,
				TableName:   tableName,
				Tables:      sess.store.Names(),
				Mode:        mode,
				ShowSources: cfg.Output.ShowSources,
			})
		},
	}

	chatCmd.Flags().StringVarP(&tableName, "table", "t", "", "table to query (default: first loaded)")
	chatCmd.Flags().BoolVar(&retrieve, "rag", false, "start in retrieval mode")

	return chatCmd
}

// watchTables reloads tables on file change and drops the stale index.
// Blocks until the context is canceled.
func watchTables(ctx context.Context, sess *session) {
	log := logger.NewWithCallback("watch", isVerbose)

	err := sess.store.Watch(ctx, func(name string, rowErrors []table.RowError) {
		for _, re := range rowErrors {
			log.Warn("%s line %d: %s", name, re.Line, re.Reason)
		}
		log.InfoWithFields("table reloaded", []logger.Field{
			logger.TableName(name),
		})
		sess.engine.Invalidate()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("file watch stopped: %v", err)
	}
}
