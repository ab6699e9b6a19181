package ops

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisis/placesguard/internal/budget"
	"github.com/thisis/placesguard/internal/clock"
	"github.com/thisis/placesguard/internal/config"
	"github.com/thisis/placesguard/internal/db"
	"github.com/thisis/placesguard/internal/errors"
	"github.com/thisis/placesguard/internal/nearby"
	"github.com/thisis/placesguard/internal/place"
	"github.com/thisis/placesguard/internal/visual"
)

// providerStub answers the three provider endpoints the service uses.
func providerStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/places:autocomplete", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"suggestions":[{"placePrediction":{"placeId":"p1","text":{"text":"Cafe Roma"}}}]}`))
	})
	mux.HandleFunc("POST /v1/places:searchNearby", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"places":[{"id":"abc","displayName":{"text":"Tartine"},"types":["bakery"]}]}`))
	})
	mux.HandleFunc("GET /v1/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/media") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"photoUri":"https://lh3.img.test/` + strings.TrimSuffix(r.URL.Path, "/media") + `"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(exportDir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{exportDir}
	cfg.DailyLimits["photos"] = 2
	return cfg
}

func newTestService(t *testing.T) (*Service, *clock.Fake, string) {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	srv := providerStub(t)
	exportDir := t.TempDir()
	cfg := testConfig(exportDir)
	cfg.PlacesBaseURL = srv.URL + "/v1"

	clk := clock.NewFake(time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local))
	svc := New(database, cfg, WithClock(clk), WithHTTPClient(srv.Client()))
	return svc, clk, exportDir
}

func TestBudgetStatus(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	out, err := svc.BudgetStatus(ctx, BudgetStatusInput{})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", out.Date)
	require.Len(t, out.Kinds, len(budget.Kinds))
	assert.Equal(t, budget.Photos, out.Kinds[0].Kind)
	assert.Equal(t, 2, out.Kinds[0].Limit)
	assert.Equal(t, 2, out.Kinds[0].Remaining)

	one, err := svc.BudgetStatus(ctx, BudgetStatusInput{Kind: "Nearby"})
	require.NoError(t, err)
	require.Len(t, one.Kinds, 1)
	assert.Equal(t, 100, one.Kinds[0].Limit)

	_, err = svc.BudgetStatus(ctx, BudgetStatusInput{Kind: "maps"})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestBudgetRecordAndEvents(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	rec, err := svc.BudgetRecord(ctx, BudgetRecordInput{Kind: "details"})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Usage.Used)
	assert.Equal(t, 49, rec.Usage.Remaining)

	_, err = svc.BudgetRecord(ctx, BudgetRecordInput{Kind: ""})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	events, err := svc.UsageEvents(ctx, UsageEventsInput{})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", events.Day)
	require.Len(t, events.Events, 1)
	assert.Equal(t, "details", events.Events[0].Kind)

	none, err := svc.UsageEvents(ctx, UsageEventsInput{Kind: "photos"})
	require.NoError(t, err)
	assert.Empty(t, none.Events)
	assert.NotNil(t, none.Events)

	_, err = svc.UsageEvents(ctx, UsageEventsInput{Day: "03/01/2026"})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestKillSwitchLifecycle(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	status, err := svc.KillSwitchStatus(ctx)
	require.NoError(t, err)
	assert.False(t, status.Active)
	assert.True(t, status.Flags.PlacesEnabled)

	_, err = svc.KillSwitchActivate(ctx, KillSwitchActivateInput{Reason: "  "})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	on, err := svc.KillSwitchActivate(ctx, KillSwitchActivateInput{Reason: "invoice spike"})
	require.NoError(t, err)
	assert.True(t, on.Active)
	assert.Equal(t, "invoice spike", on.Flags.Reason)

	off, err := svc.KillSwitchDeactivate(ctx)
	require.NoError(t, err)
	assert.False(t, off.Active)
	assert.Empty(t, off.Flags.Reason)

	disabled, err := svc.SetPlaces(ctx, SetPlacesInput{Enabled: false})
	require.NoError(t, err)
	assert.True(t, disabled.Active)
	_, err = svc.KillSwitchActivate(ctx, KillSwitchActivateInput{Reason: "drill"})
	require.NoError(t, err)
	still, err := svc.KillSwitchDeactivate(ctx)
	require.NoError(t, err)
	assert.True(t, still.Active, "deactivate does not re-enable places")
	assert.False(t, still.Flags.PlacesEnabled)

	enabled, err := svc.SetPlaces(ctx, SetPlacesInput{Enabled: true})
	require.NoError(t, err)
	assert.False(t, enabled.Active)
}

func TestVisualResolve(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	in := VisualResolveInput{Category: "cafe", PhotoName: "places/abc/photos/1", Attributions: []string{"Ana"}}

	plain := svc.VisualResolve(ctx, in)
	assert.Equal(t, visual.TierPoster, plain.Resolution.Tier)
	assert.Empty(t, plain.Outcome)

	in.Upgrade = true
	up := svc.VisualResolve(ctx, in)
	assert.Equal(t, visual.Upgraded, up.Outcome)
	assert.Equal(t, visual.TierRemote, up.Resolution.Tier)
	assert.Equal(t, visual.TierPoster, up.Initial.Tier)
	assert.Contains(t, up.Resolution.Attribution, "Ana")
	assert.Equal(t, "https://lh3.img.test/v1/places/abc/photos/1", up.Resolution.URL)

	u, err := svc.Counter().Usage(ctx, budget.Photos)
	require.NoError(t, err)
	assert.Equal(t, 1, u.Used)

	_, err = svc.KillSwitchActivate(ctx, KillSwitchActivateInput{Reason: "stop"})
	require.NoError(t, err)
	off := svc.VisualResolve(ctx, in)
	assert.Equal(t, visual.KillSwitchActive, off.Outcome)
	assert.Equal(t, visual.TierPoster, off.Resolution.Tier)
}

func TestReason(t *testing.T) {
	out := Reason(ReasonInput{PlaceTypes: []string{"bakery"}, UserTags: []string{"bakery"}})
	require.NotNil(t, out.Reason)
	assert.Equal(t, "Because you like bakery", out.Reason.Text)

	assert.Nil(t, Reason(ReasonInput{PlaceTypes: []string{"bakery"}}).Reason)
}

func TestCell(t *testing.T) {
	out, err := Cell(place.Bounds{North: 37.8099, South: 37.7001, East: -122.349, West: -122.531})
	require.NoError(t, err)
	assert.Equal(t, "37.81:37.70:-122.35:-122.53", out.Cell)

	_, err = Cell(place.Bounds{North: 0, South: 10})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestNearbySearch(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	b := place.Bounds{North: 37.8099, South: 37.7001, East: -122.349, West: -122.531}

	first, err := svc.NearbySearch(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, nearby.SourceProvider, first.Source)
	require.Len(t, first.Places, 1)
	assert.Equal(t, place.Cafe, first.Places[0].Category)

	second, err := svc.NearbySearch(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, nearby.SourceCache, second.Source)

	u, err := svc.Counter().Usage(ctx, budget.Nearby)
	require.NoError(t, err)
	assert.Equal(t, 1, u.Used)
}

func TestAutocompleteSession(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	assert.Empty(t, svc.Predict(ctx, PredictInput{Query: "cafe"}).Predictions)
	assert.False(t, svc.EndSession().Ended)

	sess := svc.BeginSession()
	assert.Len(t, sess.Token, 36)

	out := svc.Predict(ctx, PredictInput{Query: "cafe"})
	assert.Equal(t, []string{"Cafe Roma"}, out.Predictions)
	assert.Equal(t, sess.Token, out.Session)

	short := svc.Predict(ctx, PredictInput{Query: "ca"})
	assert.Empty(t, short.Predictions)
	assert.NotNil(t, short.Predictions)

	assert.True(t, svc.EndSession().Ended)
	assert.False(t, svc.EndSession().Ended)
}

func TestNew_WithoutDatabase(t *testing.T) {
	svc := New(nil, config.DefaultConfig())
	out, err := svc.BudgetStatus(context.Background(), BudgetStatusInput{})
	require.NoError(t, err)
	assert.Len(t, out.Kinds, 4)

	_, err = svc.UsageEvents(context.Background(), UsageEventsInput{})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}
