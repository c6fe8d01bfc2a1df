package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscout/internal/ledger"
	"github.com/sells-group/leadscout/internal/search"
	"github.com/sells-group/leadscout/internal/store"
	"github.com/sells-group/leadscout/pkg/geocode"
	"github.com/sells-group/leadscout/pkg/places"
	sfpkg "github.com/sells-group/leadscout/pkg/salesforce"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "leadscout.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// searchEnv bundles the store, quota ledger, and orchestrator shared by the
// search-facing commands.
type searchEnv struct {
	st   store.Store
	ldg  *ledger.Ledger
	orch *search.Orchestrator
}

func (e *searchEnv) Close() {
	_ = e.st.Close()
}

func initSearchEnv(ctx context.Context) (*searchEnv, error) {
	if err := cfg.Validate("search"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	ldg := ledger.New(st, cfg.Search.MonthlyCallLimit)

	geocoder := geocode.NewClient(cfg.Google.APIKey, geocode.WithRateLimit(cfg.Search.GeocodeRPS))
	provider := places.NewClient(cfg.Google.APIKey, places.WithGeocoder(geocoder))

	return &searchEnv{
		st:   st,
		ldg:  ldg,
		orch: search.New(provider, ldg, st),
	}, nil
}

func initSalesforce() (sfpkg.Client, error) {
	return sfpkg.Connect(
		cfg.Salesforce.LoginURL,
		cfg.Salesforce.ClientID,
		cfg.Salesforce.Username,
		cfg.Salesforce.KeyPath,
	)
}
