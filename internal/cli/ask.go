package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/csvchat/csvchat/internal/formatter"
	"github.com/csvchat/csvchat/internal/qa"
)

// newAskCommand creates the ask command (query-generation path)
func newAskCommand() *cobra.Command {
	var tableName string

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question by generating and executing a query",
		Long: `Translate a natural-language question into a restricted query
expression, execute it locally against the CSV data, and compose the
computed result into an answer.

The model only ever sees the table schema and the computed result,
never the raw rows.`,
		Example: `  # Ask about the default table
  csvchat -f cities.csv ask "what is the population of Lyon?"

  # Ask about a named table
  csvchat -f cities.csv -f rivers.csv ask -t rivers "which river is longest?"

  # Machine-readable output
  csvchat -f cities.csv -o json ask "how many rows are there?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), strings.Join(args, " "), tableName, askFunc((*qa.Engine).Ask))
		},
	}

	askCmd.Flags().StringVarP(&tableName, "table", "t", "", "table to query (default: first loaded)")

	return askCmd
}

// newRetrieveCommand creates the rag command (retrieval path)
func newRetrieveCommand() *cobra.Command {
	var tableName string

	ragCmd := &cobra.Command{
		Use:   "rag [question]",
		Short: "Answer a question by retrieving similar rows",
		Long: `Embed the question, retrieve the most similar rows from the
embedding index, and compose an answer from them.

Useful for open-ended questions that do not map to a single query,
at the cost of the model seeing the retrieved rows.`,
		Example: `  # Answer from retrieved rows
  csvchat -f cities.csv rag "tell me about cities in the south"

  # Retrieval against a named table
  csvchat -f cities.csv -f rivers.csv rag -t rivers "where does the Loire flow?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), strings.Join(args, " "), tableName, askFunc((*qa.Engine).AskRetrieve))
		},
	}

	ragCmd.Flags().StringVarP(&tableName, "table", "t", "", "table to query (default: first loaded)")

	return ragCmd
}

type askFunc func(e *qa.Engine, ctx context.Context, question, tableName string) (*qa.Answer, error)

// runAsk answers a single question and writes the formatted answer
func runAsk(ctx context.Context, question, tableName string, ask askFunc) error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	if tableName == "" {
		tableName = GetGlobalConfig().Data.DefaultTable
	}

	answer, err := ask(sess.engine, ctx, question, tableName)
	if err != nil {
		return err
	}

	return writeAnswer(answer)
}

// writeAnswer formats an answer per the configured output format
func writeAnswer(answer *qa.Answer) error {
	cfg := GetGlobalConfig()

	f, err := formatter.New(getOutputFormat(), formatter.Options{
		ShowSources: cfg.Output.ShowSources,
		NoColor:     colorDisabled(),
	})
	if err != nil {
		return err
	}

	out, err := f.Format(answer)
	if err != nil {
		return fmt.Errorf("failed to format answer: %w", err)
	}

	fmt.Fprintln(os.Stdout, string(out))
	return nil
}
