package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/internal/scorer"
)

// leadSource tags records created by this tool so the sales team can tell
// them apart from manually entered leads.
const leadSource = "Places Search"

// Lead mirrors the Salesforce Lead fields this tool reads back.
type Lead struct {
	ID        string `json:"Id" salesforce:"Id"`
	Company   string `json:"Company" salesforce:"Company"`
	Phone     string `json:"Phone" salesforce:"Phone"`
	Website   string `json:"Website" salesforce:"Website"`
	PlaceID   string `json:"Place_ID__c" salesforce:"Place_ID__c"`
	LeadScore int    `json:"Lead_Score__c" salesforce:"Lead_Score__c"`
}

var leadFields = []string{
	"Id", "Company", "Phone", "Website", "Place_ID__c", "Lead_Score__c",
}

// FindLeadByPlaceID returns the existing Lead for a place, or nil.
func FindLeadByPlaceID(ctx context.Context, c Client, placeID string) (*Lead, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Lead WHERE Place_ID__c = '%s' LIMIT 1",
		strings.Join(leadFields, ", "),
		escapeSoql(placeID),
	)

	var leads []Lead
	if err := c.Query(ctx, soql, &leads); err != nil {
		return nil, eris.Wrapf(err, "sf: find lead by place id %s", placeID)
	}
	if len(leads) == 0 {
		return nil, nil
	}
	return &leads[0], nil
}

// LeadRecord maps a scored business onto Salesforce Lead fields. The Lead
// object requires LastName and Company; businesses have no contact person, so
// LastName carries a placeholder the sales team fills in after qualification.
func LeadRecord(b model.Business) map[string]any {
	record := map[string]any{
		"Company":       b.Name,
		"LastName":      "Unknown",
		"LeadSource":    leadSource,
		"Place_ID__c":   b.PlaceID,
		"Lead_Score__c": b.LeadScore,
		"Rating":        sfRating(b.LeadScore),
	}
	if b.Phone != nil {
		record["Phone"] = *b.Phone
	}
	if b.Website != nil {
		record["Website"] = *b.Website
	}
	if b.Address != nil {
		record["Street"] = *b.Address
	}
	return record
}

// UpsertLead creates the Lead for a business, or refreshes the score on the
// existing one. Returns whether a record was created.
func UpsertLead(ctx context.Context, c Client, b model.Business) (bool, error) {
	existing, err := FindLeadByPlaceID(ctx, c, b.PlaceID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		err := c.UpdateOne(ctx, "Lead", existing.ID, map[string]any{
			"Lead_Score__c": b.LeadScore,
			"Rating":        sfRating(b.LeadScore),
		})
		return false, eris.Wrapf(err, "sf: refresh lead %s", b.PlaceID)
	}

	_, err = c.InsertOne(ctx, "Lead", LeadRecord(b))
	if err != nil {
		return false, eris.Wrapf(err, "sf: create lead %s", b.PlaceID)
	}
	return true, nil
}

// BulkCreateLeads inserts leads in batches of 200 (the Collections API
// limit). Existing leads are not checked; use UpsertLead when the place may
// already be in Salesforce.
func BulkCreateLeads(ctx context.Context, c Client, businesses []model.Business) ([]CollectionResult, error) {
	if len(businesses) == 0 {
		return nil, nil
	}

	var allResults []CollectionResult
	for start := 0; start < len(businesses); start += maxBatchSize {
		end := min(start+maxBatchSize, len(businesses))

		records := make([]map[string]any, 0, end-start)
		for _, b := range businesses[start:end] {
			records = append(records, LeadRecord(b))
		}

		results, err := c.InsertCollection(ctx, "Lead", records)
		if err != nil {
			return allResults, eris.Wrapf(err, "sf: bulk create leads batch %d-%d", start, end)
		}
		allResults = append(allResults, results...)
	}
	return allResults, nil
}

// sfRating maps the numeric score onto the Lead Rating picklist.
func sfRating(score int) string {
	switch scorer.BandFor(score) {
	case scorer.BandHot:
		return "Hot"
	case scorer.BandWarm:
		return "Warm"
	default:
		return "Cold"
	}
}

// escapeSoql escapes single quotes in SOQL string literals.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
