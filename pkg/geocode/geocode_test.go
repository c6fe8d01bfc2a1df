package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeocode_Match(t *testing.T) {
	var gotAddress, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAddress = r.URL.Query().Get("address")
		gotKey = r.URL.Query().Get("key")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"status": "OK",
			"results": []map[string]any{{
				"formatted_address": "Austin, TX, USA",
				"geometry": map[string]any{
					"location": map[string]any{"lat": 30.2672, "lng": -97.7431},
				},
			}},
		}))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	res, err := c.Geocode(context.Background(), "Austin, TX")
	require.NoError(t, err)

	assert.Equal(t, "Austin, TX", gotAddress)
	assert.Equal(t, "test-key", gotKey)
	assert.True(t, res.Matched)
	assert.InDelta(t, 30.2672, res.Latitude, 0.0001)
	assert.InDelta(t, -97.7431, res.Longitude, 0.0001)
	assert.Equal(t, "Austin, TX, USA", res.FormattedAddress)
}

func TestGeocode_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"status":  "ZERO_RESULTS",
			"results": []any{},
		}))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	res, err := c.Geocode(context.Background(), "xzzqy")
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestGeocode_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.Geocode(context.Background(), "Austin, TX")
	assert.Error(t, err)
}

func TestGeocode_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.Geocode(context.Background(), "Austin, TX")
	assert.Error(t, err)
}
