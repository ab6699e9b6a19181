package visual

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisis/placesguard/internal/budget"
	"github.com/thisis/placesguard/internal/clock"
	"github.com/thisis/placesguard/internal/config"
	"github.com/thisis/placesguard/internal/docstore"
	"github.com/thisis/placesguard/internal/gate"
	"github.com/thisis/placesguard/internal/killswitch"
	"github.com/thisis/placesguard/internal/place"
	"github.com/thisis/placesguard/internal/places"
)

type fakePhotos struct {
	mu      sync.Mutex
	loads   int
	err     error
	block   bool
	started chan struct{}
	loaded  func() // runs after a successful request, before it returns
}

func (f *fakePhotos) PhotoURI(ctx context.Context, h place.PhotoHandle, maxWidth int) (string, error) {
	f.mu.Lock()
	f.loads++
	block, err, started, loaded := f.block, f.err, f.started, f.loaded
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}
	if loaded != nil {
		loaded()
	}
	return fmt.Sprintf("https://img.test/%s?w=%d", h.Name, maxWidth), nil
}

func (f *fakePhotos) Loads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

type fixture struct {
	resolver *Resolver
	gate     *gate.Gate
	photos   *fakePhotos
	clk      *clock.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DailyLimits["photos"] = 2
	store := docstore.NewMemory()
	clk := clock.NewFake(time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local))
	g := gate.New(
		killswitch.New(store, cfg, killswitch.WithClock(clk)),
		budget.New(store, cfg, budget.WithClock(clk)),
		nil,
	)
	photos := &fakePhotos{}
	return &fixture{
		resolver: New(g, photos, cfg, nil),
		gate:     g,
		photos:   photos,
		clk:      clk,
	}
}

func (f *fixture) used(t *testing.T) int {
	t.Helper()
	u, err := f.gate.Counter().Usage(context.Background(), budget.Photos)
	require.NoError(t, err)
	return u.Used
}

var remoteReq = Request{
	Category: place.Cafe,
	Photo:    &place.PhotoHandle{Name: "places/abc/photos/1", Attributions: []string{"Ana"}},
}

func TestInitial(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  Request
		want Resolution
	}{
		{
			name: "user photo wins",
			req:  Request{Category: place.Park, UserPhotos: []string{"https://u.test/1.jpg", "https://u.test/2.jpg"}, Photo: remoteReq.Photo},
			want: Resolution{Tier: TierUserPhoto, URL: "https://u.test/1.jpg"},
		},
		{
			name: "poster fallback",
			req:  Request{Category: place.Museum, Photo: remoteReq.Photo},
			want: Resolution{Tier: TierPoster, URL: "/posters/museum.jpg"},
		},
		{
			name: "unknown category",
			req:  Request{Category: "aquarium"},
			want: Resolution{Tier: TierPoster, URL: "/posters/other.jpg"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.resolver.Initial(tt.req))
		})
	}
}

func TestUpgrade_Success(t *testing.T) {
	f := newFixture(t)

	res, outcome := f.resolver.Upgrade(context.Background(), remoteReq)
	assert.Equal(t, Upgraded, outcome)
	assert.Equal(t, TierRemote, res.Tier)
	assert.Equal(t, "https://img.test/places/abc/photos/1?w=800", res.URL)
	assert.Equal(t, "Photo: Ana / Google", res.Attribution)
	assert.Equal(t, 1, f.photos.Loads())
	assert.Equal(t, 1, f.used(t), "exactly one unit per successful load")
}

func TestUpgrade_UserPhotosNeverGoRemote(t *testing.T) {
	f := newFixture(t)
	req := remoteReq
	req.UserPhotos = []string{"https://u.test/1.jpg"}

	res, outcome := f.resolver.Upgrade(context.Background(), req)
	assert.Equal(t, Ineligible, outcome)
	assert.Equal(t, TierUserPhoto, res.Tier)
	assert.Equal(t, 0, f.photos.Loads())
	assert.Equal(t, 0, f.used(t))
}

func TestUpgrade_NoHandle(t *testing.T) {
	f := newFixture(t)

	res, outcome := f.resolver.Upgrade(context.Background(), Request{Category: place.Bar})
	assert.Equal(t, Ineligible, outcome)
	assert.Equal(t, TierPoster, res.Tier)
}

func TestUpgrade_KillSwitchActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.gate.Switch().Activate(ctx, "billing alert"))

	res, outcome := f.resolver.Upgrade(ctx, remoteReq)
	assert.Equal(t, KillSwitchActive, outcome)
	assert.Equal(t, Resolution{Tier: TierPoster, URL: "/posters/cafe.jpg"}, res)
	assert.Equal(t, 0, f.photos.Loads(), "no request while switched off")
	assert.Equal(t, 0, f.used(t))
}

func TestUpgrade_BudgetExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, outcome := f.resolver.Upgrade(ctx, remoteReq)
		require.Equal(t, Upgraded, outcome)
	}

	res, outcome := f.resolver.Upgrade(ctx, remoteReq)
	assert.Equal(t, BudgetExceeded, outcome)
	assert.Equal(t, TierPoster, res.Tier)
	assert.Equal(t, 2, f.photos.Loads())
	assert.Equal(t, 2, f.used(t))
}

func TestUpgrade_NetworkFailureRecordsNothing(t *testing.T) {
	f := newFixture(t)
	f.photos.err = fmt.Errorf("connection reset")

	res, outcome := f.resolver.Upgrade(context.Background(), remoteReq)
	assert.Equal(t, NetworkFailure, outcome)
	assert.Equal(t, TierPoster, res.Tier)
	assert.Equal(t, 1, f.photos.Loads(), "no automatic retry")
	assert.Equal(t, 0, f.used(t))
}

func TestUpgrade_CancelledBeforeStart(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, outcome := f.resolver.Upgrade(ctx, remoteReq)
	assert.Equal(t, Cancelled, outcome)
	assert.Equal(t, 0, f.photos.Loads())
	assert.Equal(t, 0, f.used(t))
}

func TestAttribution_NeverEmpty(t *testing.T) {
	assert.Equal(t, "Photo: Google", Attribution(nil))
	assert.Equal(t, "Photo: Google", Attribution(&place.PhotoHandle{Attributions: []string{" "}}))
	assert.Equal(t, "Photo: Ana, Ben / Google", Attribution(&place.PhotoHandle{Attributions: []string{"Ana", "Ben"}}))
}

func TestUpgrade_ProviderPhotoBilledOnce(t *testing.T) {
	var mediaHits, imageHits atomic.Int32
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	mux.HandleFunc("GET /v1/places/abc/photos/1/media", func(w http.ResponseWriter, r *http.Request) {
		mediaHits.Add(1)
		_, _ = w.Write([]byte(`{"photoUri":"` + srv.URL + `/img/abc-1.jpg"}`))
	})
	mux.HandleFunc("GET /img/abc-1.jpg", func(w http.ResponseWriter, r *http.Request) {
		imageHits.Add(1)
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xff, 0xd8})
	})

	f := newFixture(t)
	cfg := config.DefaultConfig()
	cfg.PlacesBaseURL = srv.URL + "/v1"
	cfg.PlacesAPIKey = "SECRET"
	resolver := New(f.gate, places.New(cfg, places.WithHTTPClient(srv.Client())), cfg, nil)

	res, outcome := resolver.Upgrade(context.Background(), remoteReq)
	require.Equal(t, Upgraded, outcome)
	assert.Equal(t, srv.URL+"/img/abc-1.jpg", res.URL)
	assert.NotContains(t, res.URL, "SECRET")

	// The UI renders the resolution.
	resp, err := srv.Client().Get(res.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(1), mediaHits.Load(), "one paid media request per displayed photo")
	assert.Equal(t, int32(1), imageHits.Load())
	assert.Equal(t, 1, f.used(t))
}
