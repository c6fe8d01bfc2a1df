package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/internal/scorer"
)

// Property names in the lead-tracking database. The database schema is owned
// by the sales team; these must match it exactly.
const (
	propName      = "Name"
	propPlaceID   = "Place ID"
	propAddress   = "Address"
	propPhone     = "Phone"
	propWebsite   = "Website"
	propRating    = "Rating"
	propReviews   = "Reviews"
	propLeadScore = "Lead Score"
	propBand      = "Band"
)

// FindLeadPage returns the page ID of the lead with the given place ID, or
// "" when no page exists yet.
func FindLeadPage(ctx context.Context, c Client, dbID, placeID string) (string, error) {
	resp, err := c.QueryDatabase(ctx, dbID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: propPlaceID,
			RichText: &notionapi.TextFilterCondition{Equals: placeID},
		},
		PageSize: 1,
	})
	if err != nil {
		return "", eris.Wrapf(err, "notion: find lead %s", placeID)
	}
	if len(resp.Results) == 0 {
		return "", nil
	}
	return string(resp.Results[0].ID), nil
}

// UpsertLead creates the lead page for a business, or refreshes the existing
// one when the place has been pushed before. Returns whether a page was
// created.
func UpsertLead(ctx context.Context, c Client, dbID string, b model.Business) (bool, error) {
	pageID, err := FindLeadPage(ctx, c, dbID, b.PlaceID)
	if err != nil {
		return false, err
	}

	props := leadProperties(b)
	if pageID != "" {
		_, err := c.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{Properties: props})
		return false, eris.Wrapf(err, "notion: refresh lead %s", b.PlaceID)
	}

	_, err = c.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent:     notionapi.Parent{Type: notionapi.ParentTypeDatabaseID, DatabaseID: notionapi.DatabaseID(dbID)},
		Properties: props,
	})
	return err == nil, eris.Wrapf(err, "notion: create lead %s", b.PlaceID)
}

func leadProperties(b model.Business) notionapi.Properties {
	props := notionapi.Properties{
		propName: notionapi.TitleProperty{
			Title: []notionapi.RichText{{Text: &notionapi.Text{Content: b.Name}}},
		},
		propPlaceID:   richText(b.PlaceID),
		propLeadScore: notionapi.NumberProperty{Number: float64(b.LeadScore)},
		propBand: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(scorer.BandFor(b.LeadScore))},
		},
	}

	if b.Address != nil {
		props[propAddress] = richText(*b.Address)
	}
	if b.Phone != nil {
		props[propPhone] = notionapi.PhoneNumberProperty{PhoneNumber: *b.Phone}
	}
	if b.Website != nil {
		props[propWebsite] = notionapi.URLProperty{URL: *b.Website}
	}
	if b.Rating != nil {
		props[propRating] = notionapi.NumberProperty{Number: *b.Rating}
	}
	if b.ReviewCount != nil {
		props[propReviews] = notionapi.NumberProperty{Number: float64(*b.ReviewCount)}
	}
	return props
}

func richText(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: s}}},
	}
}
