package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/documentpacker/internal/kind"
	"github.com/Lllllllleong/documentpacker/internal/models"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate <file>...",
	Short: "Show the detected kind and estimated packed size of files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := loadItems(cmd.Context(), args, nil)
		if err != nil {
			return err
		}
		return writeEstimates(cmd.OutOrStdout(), items)
	},
}

func writeEstimates(w io.Writer, items []*models.DocumentItem) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tSIZE\tESTIMATE")
	for _, it := range items {
		k, est := string(it.Kind), "-"
		if err := kind.Validate(it); err != nil {
			k = "invalid"
		} else if it.EstimatedSize != nil {
			est = fmt.Sprint(*it.EstimatedSize)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", it.Name, k, it.OriginalSize, est)
	}
	return tw.Flush()
}
