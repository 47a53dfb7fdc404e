package predictions

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/prefs"
	"github.com/tphakala/birdtarifa/internal/testutil/fakeapi"
)

var april = func() time.Time { return time.Date(2025, time.April, 12, 7, 0, 0, 0, time.UTC) }

var testZones = []api.Zone{
	{ID: "geo", Name: "Tarifa (zona general)", Kind: api.ZoneKindGeo},
	{ID: "L123", Name: "Los Lances", Kind: api.ZoneKindHotspot},
	{ID: "L456", Name: "Bolonia", Kind: api.ZoneKindHotspot},
}

// newTestForm wires a form to a fake backend.
func newTestForm(t *testing.T, store prefs.Store) (*Form, *fakeapi.Server) {
	t.Helper()
	server := fakeapi.New(t)
	server.SetZones(testZones...)
	client := server.Client(t)
	form := NewForm(client, NewSearch(client, nil), store, FormConfig{Now: april}, nil)
	return form, server
}

// blockingFetcher holds each lookup until released.
type blockingFetcher struct {
	mu       sync.Mutex
	started  chan string
	releases map[string]chan struct{}
	infos    map[string]*api.BirdInfo
	calls    int
}

func newBlockingFetcher() *blockingFetcher {
	return &blockingFetcher{
		started:  make(chan string, 8),
		releases: make(map[string]chan struct{}),
		infos:    make(map[string]*api.BirdInfo),
	}
}

func (b *blockingFetcher) add(species string) chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan struct{})
	b.releases[species] = ch
	b.infos[species] = &api.BirdInfo{Species: species, Title: species, Source: "wikipedia"}
	return ch
}

func (b *blockingFetcher) GetBirdInfo(ctx context.Context, species string) (*api.BirdInfo, error) {
	b.mu.Lock()
	b.calls++
	release := b.releases[species]
	info := b.infos[species]
	b.mu.Unlock()

	b.started <- species
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			// Deliver anyway so the generation check is what drops it.
		}
	}
	return info, nil
}

func (b *blockingFetcher) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type stubSeeder struct {
	inserted int
	err      error
}

func (s *stubSeeder) SeedPredictionRules(context.Context) (int, error) {
	return s.inserted, s.err
}
