package search

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscout/internal/ledger"
	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/pkg/places"
)

type stubProvider struct {
	mu     sync.Mutex
	calls  int
	result []places.Place
	err    error
}

func (s *stubProvider) Search(_ context.Context, _, _ string, _ float64, _ int) ([]places.Place, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.result, s.err
}

type memCounter struct {
	mu    sync.Mutex
	used  map[string]int
	limit int
}

func newMemCounter() *memCounter {
	return &memCounter{used: map[string]int{}}
}

func (m *memCounter) ReserveCalls(_ context.Context, month string, n, limit int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.used[month]+n > limit {
		return m.used[month], false, nil
	}
	m.used[month] += n
	return m.used[month], true, nil
}

func (m *memCounter) GetUsage(_ context.Context, month string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used[month], nil
}

type memRepo struct {
	mu       sync.Mutex
	searches []model.SearchRecord
	saved    [][]model.Business
	err      error
}

func (m *memRepo) SaveSearch(_ context.Context, rec model.SearchRecord, businesses []model.Business) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches = append(m.searches, rec)
	m.saved = append(m.saved, businesses)
	return rec.ID, nil
}

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }
func intPtr(i int) *int         { return &i }

func validRequest() Request {
	return Request{Query: "plumber", Location: "Austin, TX", RadiusKm: 10, MaxResults: 5}
}

func newTestOrchestrator(p places.Client, repo Repository, limit, used int) (*Orchestrator, *memCounter) {
	counter := newMemCounter()
	ldg := ledger.New(counter, limit)
	counter.used[ldg.Period()] = used
	return New(p, ldg, repo), counter
}

func TestExecute_Validation(t *testing.T) {
	tests := []struct {
		name  string
		alter func(*Request)
		field string
	}{
		{"empty query", func(r *Request) { r.Query = "  " }, "query"},
		{"empty location", func(r *Request) { r.Location = "" }, "location"},
		{"zero radius", func(r *Request) { r.RadiusKm = 0 }, "radius_km"},
		{"negative radius", func(r *Request) { r.RadiusKm = -1 }, "radius_km"},
		{"radius over cap", func(r *Request) { r.RadiusKm = 51 }, "radius_km"},
		{"zero max results", func(r *Request) { r.MaxResults = 0 }, "max_results"},
		{"max results over provider cap", func(r *Request) { r.MaxResults = 21 }, "max_results"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &stubProvider{}
			o, counter := newTestOrchestrator(provider, &memRepo{}, 500, 0)

			req := validRequest()
			tt.alter(&req)
			_, err := o.Execute(context.Background(), req)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, 0, provider.calls, "rejected input must not reach the provider")

			used, _ := counter.GetUsage(context.Background(), "any")
			assert.Equal(t, 0, used, "rejected input must not be charged")
		})
	}
}

func TestExecute_ValidationDetailsCarryLimits(t *testing.T) {
	o, _ := newTestOrchestrator(&stubProvider{}, &memRepo{}, 500, 0)

	req := validRequest()
	req.RadiusKm = MaxRadiusKm + 1
	_, err := o.Execute(context.Background(), req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, fmt.Sprintf("must be at most %d", MaxRadiusKm), verr.Detail)

	req = validRequest()
	req.MaxResults = places.ProviderMaxResults + 1
	_, err = o.Execute(context.Background(), req)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, fmt.Sprintf("must be between 1 and %d", places.ProviderMaxResults), verr.Detail)
}

func TestExecute_QuotaExhausted(t *testing.T) {
	provider := &stubProvider{result: []places.Place{{PlaceID: "p1", Name: "A"}}}
	o, _ := newTestOrchestrator(provider, &memRepo{}, 500, 500)

	_, err := o.Execute(context.Background(), validRequest())

	var qerr *QuotaExceededError
	require.ErrorAs(t, err, &qerr)
	assert.False(t, qerr.Decision.Allowed)
	assert.Equal(t, 0, qerr.Decision.CallsRemaining)
	assert.Equal(t, 0, provider.calls, "exhausted quota must issue zero provider calls")
}

func TestExecute_ProviderFailureStillCharged(t *testing.T) {
	provider := &stubProvider{err: &places.ProviderError{Kind: places.ErrNetwork, Err: eris.New("down")}}
	repo := &memRepo{}
	o, counter := newTestOrchestrator(provider, repo, 500, 0)
	ldg := ledger.New(counter, 500)

	_, err := o.Execute(context.Background(), validRequest())

	var perr *places.ProviderError
	require.ErrorAs(t, err, &perr)

	used, uerr := counter.GetUsage(context.Background(), ldg.Period())
	require.NoError(t, uerr)
	assert.Equal(t, 1, used, "a permitted call is spent even when the provider fails")
	assert.Empty(t, repo.searches)
}

func TestExecute_PersistenceFailureReportsCharge(t *testing.T) {
	provider := &stubProvider{result: []places.Place{{PlaceID: "p1", Name: "A"}}}
	repo := &memRepo{err: eris.New("disk full")}
	o, _ := newTestOrchestrator(provider, repo, 500, 0)

	_, err := o.Execute(context.Background(), validRequest())

	var serr *PersistenceError
	require.ErrorAs(t, err, &serr)
	assert.True(t, serr.Charged)
	assert.Contains(t, serr.Error(), "charged against quota")
}

func TestExecute_Deduplicates(t *testing.T) {
	provider := &stubProvider{result: []places.Place{
		{PlaceID: "dup", Name: "First Seen"},
		{PlaceID: "other", Name: "Other"},
		{PlaceID: "dup", Name: "Second Seen"},
	}}
	o, _ := newTestOrchestrator(provider, &memRepo{}, 500, 0)

	res, err := o.Execute(context.Background(), validRequest())
	require.NoError(t, err)

	require.Len(t, res.Businesses, 2)
	names := map[string]string{}
	for _, b := range res.Businesses {
		names[b.PlaceID] = b.Name
	}
	assert.Equal(t, "First Seen", names["dup"], "dedup keeps the first occurrence")
}

func TestExecute_Ordering(t *testing.T) {
	// Scores work out to 10, 90, 90 with review counts 5, 100, 50.
	provider := &stubProvider{result: []places.Place{
		{
			PlaceID:     "low",
			Name:        "Low",
			Website:     strPtr("https://low.example.com"),
			Rating:      f64Ptr(3.0),
			ReviewCount: intPtr(5),
		},
		{
			PlaceID:     "high-reviews",
			Name:        "High Reviews",
			Rating:      f64Ptr(4.9),
			ReviewCount: intPtr(100),
			Phone:       strPtr("555-0100"),
		},
		{
			PlaceID:     "high-fewer-reviews",
			Name:        "High Fewer Reviews",
			Rating:      f64Ptr(4.2),
			ReviewCount: intPtr(50),
			Phone:       strPtr("555-0101"),
			Address:     strPtr("1 Elm St"),
		},
	}}
	o, _ := newTestOrchestrator(provider, &memRepo{}, 500, 0)

	res, err := o.Execute(context.Background(), validRequest())
	require.NoError(t, err)
	require.Len(t, res.Businesses, 3)

	assert.Equal(t, []int{90, 90, 10}, []int{
		res.Businesses[0].LeadScore, res.Businesses[1].LeadScore, res.Businesses[2].LeadScore,
	})
	assert.Equal(t, "high-reviews", res.Businesses[0].PlaceID)
	assert.Equal(t, "high-fewer-reviews", res.Businesses[1].PlaceID)
	assert.Equal(t, "low", res.Businesses[2].PlaceID)
}

func TestExecute_EndToEnd(t *testing.T) {
	provider := &stubProvider{result: []places.Place{
		{
			PlaceID:     "a",
			Name:        "Ace Plumbing",
			Address:     strPtr("1 Main St"),
			Phone:       strPtr("555-0100"),
			Rating:      f64Ptr(5.0),
			ReviewCount: intPtr(200),
		},
		{
			PlaceID:     "b",
			Name:        "B Plumbing",
			Rating:      f64Ptr(4.8),
			ReviewCount: intPtr(10),
		},
		{
			PlaceID:     "c",
			Name:        "C Plumbing",
			Website:     strPtr("https://c.example.com"),
			Rating:      f64Ptr(3.0),
			ReviewCount: intPtr(0),
		},
		{
			PlaceID:     "d",
			Name:        "D Plumbing",
			Website:     strPtr("https://d.example.com"),
			Rating:      f64Ptr(2.0),
			ReviewCount: intPtr(5),
		},
		{
			PlaceID: "e",
			Name:    "E Plumbing",
			Website: strPtr("https://e.example.com"),
		},
	}}
	repo := &memRepo{}
	counter := newMemCounter()
	ldg := ledger.New(counter, 500)
	o := New(provider, ldg, repo)

	res, err := o.Execute(context.Background(), validRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, res.SearchID)
	assert.Equal(t, 5, res.Count)
	assert.Equal(t, 1, provider.calls)

	used, err := counter.GetUsage(context.Background(), ldg.Period())
	require.NoError(t, err)
	assert.Equal(t, 1, used)

	require.Len(t, repo.searches, 1)
	rec := repo.searches[0]
	assert.Equal(t, res.SearchID, rec.ID)
	assert.Equal(t, "plumber", rec.Query)
	assert.Equal(t, 5, rec.ResultCount)
	require.Len(t, repo.saved, 1)
	assert.Len(t, repo.saved[0], 5)

	top := res.Businesses[0]
	assert.Equal(t, "a", top.PlaceID)
	assert.Equal(t, 100, top.LeadScore)
	assert.Equal(t, res.SearchID, top.SearchID)

	for _, b := range res.Businesses {
		assert.GreaterOrEqual(t, b.LeadScore, 0)
		assert.LessOrEqual(t, b.LeadScore, 100)
		assert.Equal(t, res.SearchID, b.SearchID)
	}
}

func TestExecuteMany(t *testing.T) {
	provider := &stubProvider{result: []places.Place{{PlaceID: "p1", Name: "A"}}}
	repo := &memRepo{}
	o, counter := newTestOrchestrator(provider, repo, 500, 0)
	ldg := ledger.New(counter, 500)

	reqs := []Request{
		{Query: "plumber", Location: "Austin, TX", RadiusKm: 10, MaxResults: 5},
		{Query: "electrician", Location: "Dallas, TX", RadiusKm: 10, MaxResults: 5},
		{Query: "roofer", Location: "Houston, TX", RadiusKm: 10, MaxResults: 5},
	}
	results, err := o.ExecuteMany(context.Background(), reqs, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		require.NotNil(t, r)
		assert.NotEmpty(t, r.SearchID)
	}

	assert.Equal(t, 3, provider.calls)
	used, err := counter.GetUsage(context.Background(), ldg.Period())
	require.NoError(t, err)
	assert.Equal(t, 3, used)
}

func TestExecuteMany_StopsAtQuota(t *testing.T) {
	provider := &stubProvider{result: []places.Place{{PlaceID: "p1", Name: "A"}}}
	o, _ := newTestOrchestrator(provider, &memRepo{}, 2, 0)

	reqs := []Request{
		{Query: "a", Location: "x", RadiusKm: 1, MaxResults: 1},
		{Query: "b", Location: "x", RadiusKm: 1, MaxResults: 1},
		{Query: "c", Location: "x", RadiusKm: 1, MaxResults: 1},
	}
	_, err := o.ExecuteMany(context.Background(), reqs, 1)

	var qerr *QuotaExceededError
	require.ErrorAs(t, err, &qerr)
	assert.LessOrEqual(t, provider.calls, 2)
}
