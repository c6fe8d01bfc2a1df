package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscout/internal/export"
)

var (
	exportOut    string
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export businesses to a CSV or XLSX file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		filter, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}
		// Exports always cover every match.
		filter.Limit = -1
		filter.Offset = 0

		businesses, _, err := st.ListBusinesses(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "export")
		}

		out := exportOut
		if out == "" {
			out = fmt.Sprintf("leads.%s", format)
		}

		f, err := os.Create(out)
		if err != nil {
			return eris.Wrap(err, "create export file")
		}
		defer f.Close() //nolint:errcheck

		if err := export.Write(f, format, businesses); err != nil {
			return err
		}

		fmt.Printf("Wrote %d businesses to %s\n", len(businesses), out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default leads.<format>)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "export format (csv or xlsx)")
	addFilterFlags(exportCmd)
	rootCmd.AddCommand(exportCmd)
}
