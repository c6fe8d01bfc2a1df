package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscout/internal/store"
)

var businessesCmd = &cobra.Command{
	Use:   "businesses",
	Short: "Inspect discovered businesses",
	Long:  "Commands for listing, viewing, and summarizing the stored business corpus.",
}

// -- businesses list --

var businessesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored businesses, most recently discovered first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

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

		businesses, total, err := st.ListBusinesses(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "businesses list")
		}

		if len(businesses) == 0 {
			fmt.Fprintln(os.Stderr, "No businesses found.")
			return nil
		}

		formatBusinesses(os.Stdout, businesses)
		fmt.Printf("\n%d of %d businesses\n", len(businesses), total)
		return nil
	},
}

// -- businesses show --

var businessesShowCmd = &cobra.Command{
	Use:   "show <place-id>",
	Short: "Show full details of a business",
	Args:  cobra.ExactArgs(1),
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

		b, err := st.GetBusiness(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "businesses show")
		}
		if b == nil {
			return eris.Errorf("no business with place_id %s", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	},
}

// -- businesses stats --

var businessesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate business statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		stats, err := st.SummaryStats(ctx)
		if err != nil {
			return eris.Wrap(err, "businesses stats")
		}

		fmt.Printf("Total businesses:  %d\n", stats.TotalBusinesses)
		fmt.Printf("With website:      %d\n", stats.WithWebsite)
		fmt.Printf("Without website:   %d\n", stats.WithoutWebsite)
		if stats.AverageRating != nil {
			fmt.Printf("Average rating:    %.2f\n", *stats.AverageRating)
		}
		return nil
	},
}

// filterFromFlags builds a BusinessFilter from the shared list/export flags.
func filterFromFlags(cmd *cobra.Command) (store.BusinessFilter, error) {
	searchID, _ := cmd.Flags().GetString("search-id")
	hasWebsite, _ := cmd.Flags().GetString("has-website")
	minRating, _ := cmd.Flags().GetFloat64("min-rating")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	filter := store.BusinessFilter{
		SearchID: searchID,
		Limit:    limit,
		Offset:   offset,
	}

	if hasWebsite != "" {
		v, err := strconv.ParseBool(hasWebsite)
		if err != nil {
			return filter, eris.Errorf("invalid --has-website value %q (want true or false)", hasWebsite)
		}
		filter.HasWebsite = &v
	}
	if cmd.Flags().Changed("min-rating") {
		if minRating < 0 || minRating > 5 {
			return filter, eris.Errorf("invalid --min-rating value %v (want 0 to 5)", minRating)
		}
		filter.MinRating = &minRating
	}

	return filter, nil
}

// addFilterFlags registers the shared business filter flags on a command.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("search-id", "", "only businesses from this search")
	cmd.Flags().String("has-website", "", "filter by website presence (true or false)")
	cmd.Flags().Float64("min-rating", 0, "only businesses rated at least this")
	cmd.Flags().Int("limit", 50, "max number of businesses")
	cmd.Flags().Int("offset", 0, "number of businesses to skip")
}

func init() {
	addFilterFlags(businessesListCmd)

	businessesCmd.AddCommand(businessesListCmd)
	businessesCmd.AddCommand(businessesShowCmd)
	businessesCmd.AddCommand(businessesStatsCmd)
	rootCmd.AddCommand(businessesCmd)
}
