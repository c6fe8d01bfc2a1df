package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscout/internal/ledger"
)

var usageJSON bool

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show this month's API quota usage",
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

		snapshot, err := ledger.New(st, cfg.Search.MonthlyCallLimit).Usage(ctx)
		if err != nil {
			return eris.Wrap(err, "usage")
		}

		if usageJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snapshot)
		}

		fmt.Printf("Month:     %s\n", snapshot.Month)
		fmt.Printf("Used:      %d / %d (%d%%)\n", snapshot.CallsUsed, snapshot.CallsLimit, snapshot.PercentageUsed)
		fmt.Printf("Remaining: %d\n", snapshot.CallsRemaining)
		return nil
	},
}

func init() {
	usageCmd.Flags().BoolVar(&usageJSON, "json", false, "print as JSON")
	rootCmd.AddCommand(usageCmd)
}
