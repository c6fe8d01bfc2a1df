package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/internal/outreach"
	"github.com/sells-group/leadscout/internal/store"
	"github.com/sells-group/leadscout/pkg/anthropic"
)

// leadSource is the subset of the store needed to resolve target leads.
type leadSource interface {
	GetBusiness(ctx context.Context, placeID string) (*model.Business, error)
	ListBusinesses(ctx context.Context, filter store.BusinessFilter) ([]model.Business, int, error)
}

var (
	outreachMinScore int
	outreachLimit    int
)

var outreachCmd = &cobra.Command{
	Use:   "outreach [place-id...]",
	Short: "Draft cold outreach emails for stored leads",
	Long:  "Generates a short outreach email per lead with Claude. With place IDs, drafts for exactly those businesses; otherwise drafts for the highest-scoring leads above --min-score.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("outreach"); err != nil {
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

		leads, err := selectLeads(cmd, st, args, outreachMinScore, outreachLimit)
		if err != nil {
			return err
		}
		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No leads matched.")
			return nil
		}

		drafter := outreach.NewDrafter(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)

		var failed int
		for _, b := range leads {
			draft, err := drafter.DraftEmail(ctx, b)
			if err != nil {
				zap.L().Warn("draft failed",
					zap.String("place_id", b.PlaceID),
					zap.Error(err),
				)
				failed++
				continue
			}

			fmt.Printf("--- %s (%s) ---\n\n%s\n\n", draft.Name, draft.PlaceID, draft.Email)
		}

		if failed > 0 {
			return eris.Errorf("%d of %d drafts failed", failed, len(leads))
		}
		return nil
	},
}

func init() {
	outreachCmd.Flags().IntVar(&outreachMinScore, "min-score", 65, "only leads scoring at least this")
	outreachCmd.Flags().IntVar(&outreachLimit, "limit", 10, "max number of drafts")
	rootCmd.AddCommand(outreachCmd)
}

// selectLeads resolves the target leads: explicit place IDs when given,
// otherwise the highest-scoring stored businesses at or above minScore.
func selectLeads(cmd *cobra.Command, st leadSource, ids []string, minScore, limit int) ([]model.Business, error) {
	ctx := cmd.Context()

	if len(ids) > 0 {
		leads := make([]model.Business, 0, len(ids))
		for _, id := range ids {
			b, err := st.GetBusiness(ctx, id)
			if err != nil {
				return nil, eris.Wrapf(err, "load business %s", id)
			}
			if b == nil {
				return nil, eris.Errorf("no business with place_id %s", id)
			}
			leads = append(leads, *b)
		}
		return leads, nil
	}

	businesses, _, err := st.ListBusinesses(ctx, store.BusinessFilter{Limit: -1})
	if err != nil {
		return nil, eris.Wrap(err, "list businesses")
	}

	// The store lists newest first; rank by score before cutting off.
	sort.SliceStable(businesses, func(i, j int) bool {
		return businesses[i].LeadScore > businesses[j].LeadScore
	})

	var leads []model.Business
	for _, b := range businesses {
		if b.LeadScore < minScore {
			break
		}
		leads = append(leads, b)
		if limit > 0 && len(leads) == limit {
			break
		}
	}
	return leads, nil
}
