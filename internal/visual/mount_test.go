package visual

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thisis/placesguard/internal/dwell"
	"github.com/thisis/placesguard/internal/place"
)

type changes struct {
	mu  sync.Mutex
	got []Resolution
}

func (c *changes) add(r Resolution) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, r)
}

func (c *changes) list() []Resolution {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Resolution(nil), c.got...)
}

func waitDone(t *testing.T, m *Mount) {
	t.Helper()
	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("mount did not settle")
	}
}

func TestMount_UpgradesAfterDwell(t *testing.T) {
	f := newFixture(t)
	trigger := dwell.New(dwell.DefaultConfig(), f.clk, nil)
	var ch changes

	m := f.resolver.Mount(context.Background(), remoteReq, trigger, ch.add)
	require.Len(t, ch.list(), 1)
	assert.Equal(t, TierPoster, ch.list()[0].Tier)

	trigger.Observe(0.9)
	f.clk.Advance(200 * time.Millisecond)
	assert.Equal(t, 0, f.photos.Loads(), "no request before dwell completes")

	f.clk.Advance(200 * time.Millisecond)
	waitDone(t, m)

	got := ch.list()
	require.Len(t, got, 2)
	assert.Equal(t, TierRemote, got[1].Tier)
	assert.NotEmpty(t, got[1].Attribution)
	assert.Equal(t, Upgraded, m.Outcome())
	assert.Equal(t, got[1], m.Current())
	assert.Equal(t, 1, f.used(t))
}

func TestMount_ScrollPastNeverLoads(t *testing.T) {
	f := newFixture(t)
	trigger := dwell.New(dwell.DefaultConfig(), f.clk, nil)
	var ch changes

	m := f.resolver.Mount(context.Background(), remoteReq, trigger, ch.add)

	trigger.Observe(1)
	f.clk.Advance(300 * time.Millisecond)
	trigger.Observe(0)
	f.clk.Advance(time.Second)

	m.Close()
	waitDone(t, m)

	assert.Len(t, ch.list(), 1)
	assert.Equal(t, 0, f.photos.Loads())
	assert.Equal(t, 0, f.used(t))
	assert.Equal(t, Cancelled, m.Outcome())
}

func TestMount_CloseDuringLoad(t *testing.T) {
	f := newFixture(t)
	f.photos.block = true
	f.photos.started = make(chan struct{})
	trigger := dwell.New(dwell.DefaultConfig(), f.clk, nil)
	var ch changes

	m := f.resolver.Mount(context.Background(), remoteReq, trigger, ch.add)
	trigger.Observe(1)
	f.clk.Advance(400 * time.Millisecond)

	select {
	case <-f.photos.started:
	case <-time.After(2 * time.Second):
		t.Fatal("load never started")
	}

	m.Close()
	waitDone(t, m)

	assert.Len(t, ch.list(), 1, "no change delivered after unmount")
	assert.Equal(t, 0, f.used(t), "cancelled load is not billed")
	assert.Equal(t, Cancelled, m.Outcome())
}

func TestMount_CloseAfterLoadStillBills(t *testing.T) {
	f := newFixture(t)
	trigger := dwell.New(dwell.DefaultConfig(), f.clk, nil)
	var ch changes

	var m *Mount
	f.photos.loaded = func() { m.Close() }
	m = f.resolver.Mount(context.Background(), remoteReq, trigger, ch.add)
	trigger.Observe(1)
	f.clk.Advance(400 * time.Millisecond)
	waitDone(t, m)

	assert.Len(t, ch.list(), 1, "the remote photo is never shown")
	assert.Equal(t, Cancelled, m.Outcome())
	assert.Equal(t, 1, f.used(t), "the paid request is billed")
}

func TestMount_UserPhotoSettlesImmediately(t *testing.T) {
	f := newFixture(t)
	trigger := dwell.New(dwell.DefaultConfig(), f.clk, nil)
	var ch changes

	req := Request{Category: place.Park, UserPhotos: []string{"https://u.test/1.jpg"}, Photo: remoteReq.Photo}
	m := f.resolver.Mount(context.Background(), req, trigger, ch.add)
	waitDone(t, m)

	trigger.Observe(1)
	f.clk.Advance(time.Second)

	assert.Equal(t, []Resolution{{Tier: TierUserPhoto, URL: "https://u.test/1.jpg"}}, ch.list())
	assert.Equal(t, Ineligible, m.Outcome())
	assert.Equal(t, 0, f.photos.Loads())
}
