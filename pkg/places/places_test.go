package places

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscout/internal/resilience"
	"github.com/sells-group/leadscout/pkg/geocode"
)

func noRetry() Option {
	return WithRetryPolicy(resilience.Policy{MaxAttempts: 1})
}

type fakeGeocoder struct {
	result *geocode.Result
	err    error
	calls  int
}

func (f *fakeGeocoder) Geocode(_ context.Context, _ string) (*geocode.Result, error) {
	f.calls++
	return f.result, f.err
}

func samplePlacesBody() map[string]any {
	return map[string]any{
		"places": []map[string]any{
			{
				"id":                  "place-1",
				"displayName":         map[string]any{"text": "Mario's Plumbing"},
				"formattedAddress":    "100 Main St, Austin, TX",
				"nationalPhoneNumber": "(512) 555-0100",
				"rating":              4.6,
				"userRatingCount":     120,
				"location":            map[string]any{"latitude": 30.27, "longitude": -97.74},
				"types":               []string{"plumber"},
			},
			{
				"id":          "place-2",
				"displayName": map[string]any{"text": "Austin Drain Co"},
				"websiteUri":  "https://austindrain.example.com",
			},
		},
	}
}

func TestSearch_NormalizesResults(t *testing.T) {
	var gotPath, gotKey, gotMask string
	var gotBody textSearchRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Goog-Api-Key")
		gotMask = r.Header.Get("X-Goog-FieldMask")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		require.NoError(t, json.NewEncoder(w).Encode(samplePlacesBody()))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), noRetry())
	got, err := c.Search(context.Background(), "plumber", "Austin, TX", 10, 20)
	require.NoError(t, err)

	assert.Equal(t, "/places:searchText", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Contains(t, gotMask, "places.websiteUri")
	assert.Equal(t, "plumber in Austin, TX", gotBody.TextQuery)
	assert.Equal(t, 20, gotBody.MaxResultCount)
	assert.Nil(t, gotBody.LocationBias)

	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, "place-1", first.PlaceID)
	assert.Equal(t, "Mario's Plumbing", first.Name)
	require.NotNil(t, first.Address)
	assert.Equal(t, "100 Main St, Austin, TX", *first.Address)
	require.NotNil(t, first.Phone)
	require.NotNil(t, first.Rating)
	assert.InDelta(t, 4.6, *first.Rating, 0.001)
	require.NotNil(t, first.ReviewCount)
	assert.Equal(t, 120, *first.ReviewCount)
	require.NotNil(t, first.Latitude)
	assert.Nil(t, first.Website)
	assert.Equal(t, []string{"plumber"}, first.Types)

	second := got[1]
	assert.Nil(t, second.Address)
	assert.Nil(t, second.Phone)
	assert.Nil(t, second.Rating)
	assert.Nil(t, second.ReviewCount)
	assert.Nil(t, second.Latitude)
	require.NotNil(t, second.Website)
	assert.Equal(t, "https://austindrain.example.com", *second.Website)
}

func TestSearch_SendsLocationBiasWhenGeocoded(t *testing.T) {
	var gotBody textSearchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"places": []any{}}))
	}))
	defer srv.Close()

	geo := &fakeGeocoder{result: &geocode.Result{Latitude: 30.27, Longitude: -97.74, Matched: true}}
	c := NewClient("k", WithBaseURL(srv.URL), WithGeocoder(geo), noRetry())

	_, err := c.Search(context.Background(), "plumber", "Austin, TX", 25, 10)
	require.NoError(t, err)

	assert.Equal(t, 1, geo.calls)
	require.NotNil(t, gotBody.LocationBias)
	assert.InDelta(t, 30.27, gotBody.LocationBias.Circle.Center.Latitude, 0.001)
	assert.InDelta(t, 25000, gotBody.LocationBias.Circle.Radius, 0.001)
}

func TestSearch_SkipsBiasWhenUnmatched(t *testing.T) {
	var gotBody textSearchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"places": []any{}}))
	}))
	defer srv.Close()

	geo := &fakeGeocoder{result: &geocode.Result{Matched: false}}
	c := NewClient("k", WithBaseURL(srv.URL), WithGeocoder(geo), noRetry())

	got, err := c.Search(context.Background(), "plumber", "Nowhereville ZZZ", 10, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Nil(t, gotBody.LocationBias)
}

func TestSearch_TruncatesOverDelivery(t *testing.T) {
	body := map[string]any{"places": []map[string]any{}}
	for i := 0; i < 8; i++ {
		body["places"] = append(body["places"].([]map[string]any), map[string]any{
			"id":          string(rune('a' + i)),
			"displayName": map[string]any{"text": "b"},
		})
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(body))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL), noRetry())
	got, err := c.Search(context.Background(), "plumber", "Austin, TX", 10, 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSearch_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, ErrAuthorization},
		{"forbidden", http.StatusForbidden, ErrAuthorization},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"server error", http.StatusInternalServerError, ErrNetwork},
		{"unexpected client error", http.StatusNotFound, ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := NewClient("k", WithBaseURL(srv.URL), noRetry())
			_, err := c.Search(context.Background(), "plumber", "Austin, TX", 10, 10)
			require.Error(t, err)

			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.kind, pe.Kind)
		})
	}
}

func TestSearch_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL), noRetry())
	_, err := c.Search(context.Background(), "plumber", "Austin, TX", 10, 10)
	require.Error(t, err)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrMalformedResponse, pe.Kind)
	assert.False(t, pe.Retryable())
}

func TestSearch_RetriesTransientFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"places": []any{}}))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL), WithRetryPolicy(resilience.Policy{
		MaxAttempts:    3,
		InitialBackoff: 1,
		MaxBackoff:     1,
	}))
	_, err := c.Search(context.Background(), "plumber", "Austin, TX", 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestSearch_DoesNotRetryAuthorization(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL), WithRetryPolicy(resilience.Policy{
		MaxAttempts:    3,
		InitialBackoff: 1,
	}))
	_, err := c.Search(context.Background(), "plumber", "Austin, TX", 10, 10)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestSearch_GeocoderFailureWrapped(t *testing.T) {
	geo := &fakeGeocoder{err: assert.AnError}
	c := NewClient("k", WithGeocoder(geo), noRetry())

	_, err := c.Search(context.Background(), "plumber", "Austin, TX", 10, 10)
	require.Error(t, err)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrNetwork, pe.Kind)
}
