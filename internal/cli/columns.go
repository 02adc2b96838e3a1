package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rpattn/spanql/internal/spansort"
)

// ColumnsOptions holds flags for the columns command.
type ColumnsOptions struct {
	*RootOptions
	JSON bool
}

// ColumnInfo is one sortable span column as listed by the columns command.
type ColumnInfo struct {
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
	SortColumn  string `json:"sortColumn"`
	DataType    string `json:"dataType"`
}

// NewColumnsCommand creates the columns command.
func NewColumnsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ColumnsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "columns",
		Short:         "List the span columns a listing can be sorted by",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runColumns(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print JSON instead of a table")

	return cmd
}

func runColumns(cmd *cobra.Command, opts *ColumnsOptions) error {
	descs := spansort.Columns()
	infos := make([]ColumnInfo, len(descs))
	for i, d := range descs {
		infos[i] = ColumnInfo{
			Key:         d.Key,
			DisplayName: d.DisplayName,
			SortColumn:  d.ColumnName,
			DataType:    string(d.DataType),
		}
	}

	out := cmd.OutOrStdout()
	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME\tTYPE")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Key, info.DisplayName, info.DataType)
	}
	return tw.Flush()
}
