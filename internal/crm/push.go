// Package crm syncs scored leads into the sales team's Notion database and
// Salesforce org.
package crm

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/pkg/notion"
	"github.com/sells-group/leadscout/pkg/salesforce"
)

// Summary tallies the outcome of one push run.
type Summary struct {
	NotionCreated     int      `json:"notion_created"`
	NotionUpdated     int      `json:"notion_updated"`
	SalesforceCreated int      `json:"salesforce_created"`
	SalesforceUpdated int      `json:"salesforce_updated"`
	Failed            []string `json:"failed,omitempty"`
}

// Pusher pushes leads to whichever targets are configured. A nil client
// disables that target.
type Pusher struct {
	notion   notion.Client
	notionDB string
	sf       salesforce.Client
}

// NewPusher creates a Pusher. Either client may be nil.
func NewPusher(notionClient notion.Client, notionDB string, sfClient salesforce.Client) *Pusher {
	return &Pusher{
		notion:   notionClient,
		notionDB: notionDB,
		sf:       sfClient,
	}
}

// Push upserts each lead into every configured target. A failure on one lead
// is recorded and the run continues; the error return is reserved for having
// no target configured at all.
func (p *Pusher) Push(ctx context.Context, businesses []model.Business) (*Summary, error) {
	if p.notion == nil && p.sf == nil {
		return nil, eris.New("crm: no push target configured")
	}

	summary := &Summary{}
	for _, b := range businesses {
		if p.notion != nil {
			created, err := notion.UpsertLead(ctx, p.notion, p.notionDB, b)
			switch {
			case err != nil:
				zap.L().Warn("notion push failed",
					zap.String("place_id", b.PlaceID),
					zap.Error(err),
				)
				summary.Failed = append(summary.Failed, b.PlaceID)
			case created:
				summary.NotionCreated++
			default:
				summary.NotionUpdated++
			}
		}

		if p.sf != nil {
			created, err := salesforce.UpsertLead(ctx, p.sf, b)
			switch {
			case err != nil:
				zap.L().Warn("salesforce push failed",
					zap.String("place_id", b.PlaceID),
					zap.Error(err),
				)
				summary.Failed = append(summary.Failed, b.PlaceID)
			case created:
				summary.SalesforceCreated++
			default:
				summary.SalesforceUpdated++
			}
		}
	}

	zap.L().Info("crm push complete",
		zap.Int("leads", len(businesses)),
		zap.Int("notion_created", summary.NotionCreated),
		zap.Int("notion_updated", summary.NotionUpdated),
		zap.Int("salesforce_created", summary.SalesforceCreated),
		zap.Int("salesforce_updated", summary.SalesforceUpdated),
		zap.Int("failed", len(summary.Failed)),
	)
	return summary, nil
}
