package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscout/internal/model"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past searches, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		records, err := st.ListSearchHistory(ctx, historyLimit)
		if err != nil {
			return eris.Wrap(err, "history")
		}

		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No searches yet.")
			return nil
		}

		formatHistory(os.Stdout, records)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "max number of searches to display")
	rootCmd.AddCommand(historyCmd)
}

// formatHistory writes a tabular search history to w.
func formatHistory(out io.Writer, records []model.SearchRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tQUERY\tLOCATION\tRADIUS\tRESULTS\tWHEN")
	_, _ = fmt.Fprintln(w, "--\t-----\t--------\t------\t-------\t----")

	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.0fkm\t%d\t%s\n",
			truncateID(r.ID),
			r.Query,
			r.Location,
			r.RadiusKm,
			r.ResultCount,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
