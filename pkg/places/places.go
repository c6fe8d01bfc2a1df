// Package places adapts the Google Places Text Search API (v1) into
// normalized business records.
//
// One Search call is one logical provider call for quota accounting, no
// matter how many places come back. The free-text location is geocoded
// internally when a geocoder is configured; that sub-step is not billed as a
// separate unit in the simplified accounting model.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscout/internal/resilience"
	"github.com/sells-group/leadscout/pkg/geocode"
)

const (
	defaultBaseURL = "https://places.googleapis.com/v1"

	// ProviderMaxResults is the provider's native page size; results are
	// never paginated beyond it.
	ProviderMaxResults = 20
)

// fieldMask limits the response to the fields the normalizer consumes.
const fieldMask = "places.id,places.displayName,places.formattedAddress," +
	"places.nationalPhoneNumber,places.websiteUri,places.rating," +
	"places.userRatingCount,places.location,places.types"

// Place is a normalized provider record. Optional fields are nil when the
// provider omitted them, never zero values.
type Place struct {
	PlaceID     string
	Name        string
	Address     *string
	Phone       *string
	Website     *string
	Rating      *float64
	ReviewCount *int
	Latitude    *float64
	Longitude   *float64
	Types       []string
}

// Client performs place searches against the provider.
type Client interface {
	// Search issues one logical text search. Over-delivery beyond
	// maxResults is truncated, not an error.
	Search(ctx context.Context, query, location string, radiusKm float64, maxResults int) ([]Place, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithGeocoder enables location biasing: the free-text location is resolved
// to coordinates and sent as a circular bias with the search radius.
func WithGeocoder(g geocode.Client) Option {
	return func(c *httpClient) {
		c.geocoder = g
	}
}

// WithRetryPolicy overrides the retry policy for transient failures.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

type httpClient struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	geocoder geocode.Client
	retry    resilience.Policy
}

// NewClient creates a Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		retry:   resilience.DefaultPolicy(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type textSearchRequest struct {
	TextQuery      string        `json:"textQuery"`
	MaxResultCount int           `json:"maxResultCount,omitempty"`
	LocationBias   *locationBias `json:"locationBias,omitempty"`
}

type locationBias struct {
	Circle circle `json:"circle"`
}

type circle struct {
	Center latLng  `json:"center"`
	Radius float64 `json:"radius"` // meters
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type textSearchResponse struct {
	Places []rawPlace `json:"places"`
}

// rawPlace mirrors the provider's wire shape. Optional numeric fields are
// pointers so "field absent" survives decoding.
type rawPlace struct {
	ID          string `json:"id"`
	DisplayName struct {
		Text string `json:"text"`
	} `json:"displayName"`
	FormattedAddress    string   `json:"formattedAddress"`
	NationalPhoneNumber string   `json:"nationalPhoneNumber"`
	WebsiteURI          string   `json:"websiteUri"`
	Rating              *float64 `json:"rating"`
	UserRatingCount     *int     `json:"userRatingCount"`
	Location            *latLng  `json:"location"`
	Types               []string `json:"types"`
}

func (c *httpClient) Search(ctx context.Context, query, location string, radiusKm float64, maxResults int) ([]Place, error) {
	req := textSearchRequest{
		TextQuery: query + " in " + location,
	}
	if maxResults > 0 && maxResults <= ProviderMaxResults {
		req.MaxResultCount = maxResults
	}

	if c.geocoder != nil {
		geo, err := c.geocoder.Geocode(ctx, location)
		if err != nil {
			return nil, classify(err)
		}
		if geo.Matched {
			req.LocationBias = &locationBias{Circle: circle{
				Center: latLng{Latitude: geo.Latitude, Longitude: geo.Longitude},
				Radius: radiusKm * 1000,
			}}
		}
	}

	p := c.retry
	if p.ShouldRetry == nil {
		p.ShouldRetry = retryable
	}
	if p.OnRetry == nil {
		p.OnRetry = resilience.LogRetries("places", "text_search")
	}

	raw, err := resilience.Retry(ctx, p, func(ctx context.Context) ([]rawPlace, error) {
		return c.textSearch(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	if maxResults > 0 && len(raw) > maxResults {
		raw = raw[:maxResults]
	}

	places := make([]Place, 0, len(raw))
	for _, r := range raw {
		places = append(places, normalize(r))
	}
	return places, nil
}

func (c *httpClient) textSearch(ctx context.Context, searchReq textSearchRequest) ([]rawPlace, error) {
	body, err := json.Marshal(searchReq)
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ProviderError{Kind: ErrNetwork, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Kind: ErrNetwork, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &ProviderError{Kind: ErrAuthorization, Err: eris.Errorf("status %d: %s", resp.StatusCode, respBody)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &ProviderError{Kind: ErrRateLimited, Err: eris.Errorf("status %d: %s", resp.StatusCode, respBody)}
	case resilience.IsTransientStatus(resp.StatusCode):
		return nil, &ProviderError{Kind: ErrNetwork, Err: eris.Errorf("status %d: %s", resp.StatusCode, respBody)}
	default:
		return nil, &ProviderError{Kind: ErrMalformedResponse, Err: eris.Errorf("unexpected status %d: %s", resp.StatusCode, respBody)}
	}

	var decoded textSearchResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, &ProviderError{Kind: ErrMalformedResponse, Err: err}
	}
	return decoded.Places, nil
}

// normalize converts a raw provider record into the internal shape, leaving
// optional fields absent when the provider omitted them.
func normalize(r rawPlace) Place {
	p := Place{
		PlaceID: r.ID,
		Name:    r.DisplayName.Text,
		Types:   r.Types,
	}
	if r.FormattedAddress != "" {
		p.Address = &r.FormattedAddress
	}
	if r.NationalPhoneNumber != "" {
		p.Phone = &r.NationalPhoneNumber
	}
	if r.WebsiteURI != "" {
		p.Website = &r.WebsiteURI
	}
	p.Rating = r.Rating
	p.ReviewCount = r.UserRatingCount
	if r.Location != nil {
		p.Latitude = &r.Location.Latitude
		p.Longitude = &r.Location.Longitude
	}
	return p
}

// classify wraps geocoding failures in the provider taxonomy: geocoding is
// part of the one logical search call.
func classify(err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Kind: ErrNetwork, Err: err}
}

func retryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return resilience.IsTransient(err)
}
