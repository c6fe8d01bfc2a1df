// Package model defines the core domain types shared across leadscout.
package model

import "time"

// Business is a normalized place discovered by a search. Optional fields are
// pointers so that "provider sent nothing" serializes as null rather than a
// zero value.
type Business struct {
	PlaceID     string   `json:"place_id"`
	Name        string   `json:"name"`
	Address     *string  `json:"address,omitempty"`
	Phone       *string  `json:"phone,omitempty"`
	Website     *string  `json:"website,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	ReviewCount *int     `json:"review_count,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Types       []string `json:"types,omitempty"`

	LeadScore int       `json:"lead_score"`
	SearchID  string    `json:"search_id"`
	CreatedAt time.Time `json:"created_at"`
}

// HasWebsite reports whether the business has a non-empty website URL.
func (b Business) HasWebsite() bool {
	return b.Website != nil && *b.Website != ""
}

// SearchRecord is one orchestrated search. Immutable once written.
type SearchRecord struct {
	ID          string    `json:"search_id"`
	Query       string    `json:"query"`
	Location    string    `json:"location"`
	RadiusKm    float64   `json:"radius_km"`
	MaxResults  int       `json:"max_results"`
	ResultCount int       `json:"result_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// UsageSnapshot is a read-only view of the current month's API quota.
type UsageSnapshot struct {
	Month          string `json:"month"`
	CallsUsed      int    `json:"calls_used"`
	CallsLimit     int    `json:"calls_limit"`
	CallsRemaining int    `json:"calls_remaining"`
	PercentageUsed int    `json:"percentage_used"`
}

// SummaryStats aggregates the stored business corpus.
type SummaryStats struct {
	TotalBusinesses int      `json:"total_businesses"`
	WithWebsite     int      `json:"with_website"`
	WithoutWebsite  int      `json:"without_website"`
	AverageRating   *float64 `json:"average_rating,omitempty"`
}
