// Package outreach drafts cold-outreach emails for scored leads.
package outreach

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/internal/scorer"
	"github.com/sells-group/leadscout/pkg/anthropic"
)

const systemPrompt = `You write short, friendly cold-outreach emails for a
web development agency. The recipient is a small local business. Keep it
under 120 words, reference one concrete detail about the business, and end
with a soft call to action. Never invent facts not present in the brief.
Output only the email body, no subject line.`

// Draft is one generated outreach email.
type Draft struct {
	PlaceID string `json:"place_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
}

// Drafter generates outreach emails via the Anthropic API.
type Drafter struct {
	client anthropic.Client
	model  string
}

// NewDrafter creates a Drafter using the given model.
func NewDrafter(client anthropic.Client, model string) *Drafter {
	return &Drafter{client: client, model: model}
}

// DraftEmail generates one email for a business.
func (d *Drafter) DraftEmail(ctx context.Context, b model.Business) (*Draft, error) {
	resp, err := d.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     d.model,
		MaxTokens: 1024,
		System:    systemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: brief(b)},
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "outreach: draft for %s", b.PlaceID)
	}
	resp.Usage.LogUsage(d.model, "outreach_draft")

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, eris.Errorf("outreach: empty draft for %s", b.PlaceID)
	}
	return &Draft{PlaceID: b.PlaceID, Name: b.Name, Email: text}, nil
}

// brief renders the lead facts the model is allowed to use.
func brief(b model.Business) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Business: %s\n", b.Name)
	if b.Address != nil {
		fmt.Fprintf(&sb, "Location: %s\n", *b.Address)
	}
	if b.Rating != nil {
		fmt.Fprintf(&sb, "Google rating: %.1f", *b.Rating)
		if b.ReviewCount != nil {
			fmt.Fprintf(&sb, " (%d reviews)", *b.ReviewCount)
		}
		sb.WriteString("\n")
	}
	if b.HasWebsite() {
		fmt.Fprintf(&sb, "Has a website: %s\n", *b.Website)
	} else {
		sb.WriteString("Has no website. Lead with how a site would help them get found.\n")
	}
	fmt.Fprintf(&sb, "Lead band: %s\n", scorer.BandFor(b.LeadScore))
	return sb.String()
}
