package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rpattn/spanql/internal/domain"
	"github.com/rpattn/spanql/internal/query"
	"github.com/rpattn/spanql/internal/spans"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	ProjectID int64
	Col       string
	EvalName  string
	EvalAttr  string
	Dir       string
	Dialect   string
	After     string
	First     int
	JSON      bool
}

// ExplainResult is the compiled statement printed by explain.
type ExplainResult struct {
	SQL         string `json:"sql"`
	Args        []any  `json:"args"`
	DisplayName string `json:"displayName"`
	SortColumn  string `json:"sortColumn"`
	DataType    string `json:"dataType"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Print the SQL compiled for a span sort",
		Long: `Compile a span sort into the statement the server would run and print it
with its arguments. No database connection is needed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(cmd, opts)
		},
	}

	cmd.Flags().Int64Var(&opts.ProjectID, "project", 1, "project row id")
	cmd.Flags().StringVar(&opts.Col, "col", "", "span column to sort by")
	cmd.Flags().StringVar(&opts.EvalName, "eval-name", "", "evaluation name to sort by")
	cmd.Flags().StringVar(&opts.EvalAttr, "eval-attr", "score", "evaluation attribute (score|label)")
	cmd.Flags().StringVar(&opts.Dir, "dir", "desc", "sort direction (asc|desc)")
	cmd.Flags().StringVar(&opts.Dialect, "dialect", "postgres", "SQL dialect (postgres|sqlite)")
	cmd.Flags().StringVar(&opts.After, "after", "", "cursor to resume after")
	cmd.Flags().IntVar(&opts.First, "first", 50, "page size")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print JSON instead of text")

	return cmd
}

func runExplain(cmd *cobra.Command, opts *ExplainOptions) error {
	dialect, err := query.ParseDialect(opts.Dialect)
	if err != nil {
		return err
	}
	if opts.First <= 0 {
		return &domain.InvalidInputError{Field: "first", Reason: "must be positive"}
	}

	input := spans.ListSpansInput{ProjectID: opts.ProjectID, After: opts.After, First: opts.First}
	if opts.Col != "" || opts.EvalName != "" {
		evalAttr := ""
		if opts.EvalName != "" {
			evalAttr = opts.EvalAttr
		}
		sort, err := domain.ParseSpanSort(opts.Col, opts.EvalName, evalAttr, opts.Dir)
		if err != nil {
			return err
		}
		input.Sort = &sort
	}

	plan, cfg, err := spans.BuildPlan(input, opts.First)
	if err != nil {
		return err
	}
	sqlText, args := plan.SQL(dialect)

	result := ExplainResult{
		SQL:         sqlText,
		Args:        args,
		DisplayName: cfg.DisplayName,
		SortColumn:  cfg.ColumnName,
		DataType:    string(cfg.DataType),
	}

	out := cmd.OutOrStdout()
	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(out, "-- sort by %s\n", result.DisplayName)
	fmt.Fprintf(out, "-- sort column %s (%s)\n", result.SortColumn, result.DataType)
	fmt.Fprintln(out, sqlText)
	if len(args) > 0 {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = fmt.Sprintf("%d=%v", i+1, a)
		}
		fmt.Fprintf(out, "-- args: %s\n", strings.Join(parts, ", "))
	}
	return nil
}
