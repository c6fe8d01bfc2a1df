package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadscout/internal/crm"
	"github.com/sells-group/leadscout/pkg/notion"
	sfpkg "github.com/sells-group/leadscout/pkg/salesforce"
)

var (
	pushMinScore int
	pushLimit    int
	pushJSON     bool
)

var pushCmd = &cobra.Command{
	Use:   "push [place-id...]",
	Short: "Push scored leads to Notion and Salesforce",
	Long:  "Upserts leads into whichever CRM targets are configured. With place IDs, pushes exactly those businesses; otherwise pushes the highest-scoring leads above --min-score.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("push"); err != nil {
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

		leads, err := selectLeads(cmd, st, args, pushMinScore, pushLimit)
		if err != nil {
			return err
		}
		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No leads matched.")
			return nil
		}

		var notionClient notion.Client
		if cfg.Notion.Token != "" && cfg.Notion.LeadDB != "" {
			notionClient = notion.NewClient(cfg.Notion.Token)
		}

		var sfClient sfpkg.Client
		if cfg.Salesforce.ClientID != "" {
			sfClient, err = initSalesforce()
			if err != nil {
				return err
			}
		}

		summary, err := crm.NewPusher(notionClient, cfg.Notion.LeadDB, sfClient).Push(ctx, leads)
		if err != nil {
			return err
		}

		if pushJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}

		fmt.Printf("Pushed %d leads\n", len(leads))
		if notionClient != nil {
			fmt.Printf("  Notion:     %d created, %d updated\n", summary.NotionCreated, summary.NotionUpdated)
		}
		if sfClient != nil {
			fmt.Printf("  Salesforce: %d created, %d updated\n", summary.SalesforceCreated, summary.SalesforceUpdated)
		}
		if len(summary.Failed) > 0 {
			fmt.Printf("  Failed:     %d (%v)\n", len(summary.Failed), summary.Failed)
		}
		return nil
	},
}

func init() {
	pushCmd.Flags().IntVar(&pushMinScore, "min-score", 35, "only leads scoring at least this")
	pushCmd.Flags().IntVar(&pushLimit, "limit", 50, "max number of leads to push")
	pushCmd.Flags().BoolVar(&pushJSON, "json", false, "print the push summary as JSON")
	rootCmd.AddCommand(pushCmd)
}
