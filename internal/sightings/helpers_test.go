package sightings

import (
	"context"
	"io/fs"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/logger"
	"github.com/tphakala/birdtarifa/internal/prefs"
	"github.com/tphakala/birdtarifa/internal/testutil/fakeapi"
)

var (
	jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, make([]byte, 64)...)
	pngBytes  = append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 64)...)
)

func photoFS() fstest.MapFS {
	return fstest.MapFS{
		"heron.jpg":    {Data: jpegBytes},
		"stork.png":    {Data: pngBytes},
		"notes.txt":    {Data: []byte("just some text, not an image")},
		"album":        {Mode: fs.ModeDir | 0o755},
		"huge.jpg":     {Data: make([]byte, MaxPhotoBytes+1)},
		"dir/kite.jpg": {Data: jpegBytes},
	}
}

type composerFixture struct {
	server   *fakeapi.Server
	store    *prefs.MemoryStore
	composer *Composer
	states   *stateRecorder
}

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func newComposerFixture(t *testing.T, publishers ...Publisher) *composerFixture {
	t.Helper()
	server := fakeapi.New(t)
	store := prefs.NewMemoryStore(nil)
	states := &stateRecorder{}
	composer := NewComposer(server.Client(t), NewSelection(photoFS()), store, ComposerConfig{
		OnStateChange: states.record,
	}, logger.NewDiscard(), publishers...)
	t.Cleanup(composer.Close)
	return &composerFixture{server: server, store: store, composer: composer, states: states}
}

// stubBackend lets a test control each backend call.
type stubBackend struct {
	mu      sync.Mutex
	calls   []string
	upload  func(ctx context.Context, f api.File) (*api.PhotoUpload, error)
	remove  func(ctx context.Context, key string) (bool, error)
	create  func(ctx context.Context, in *api.SightingCreate) (*api.Sighting, error)
	deleted []string
}

func (s *stubBackend) note(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *stubBackend) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *stubBackend) UploadPhoto(ctx context.Context, f api.File) (*api.PhotoUpload, error) {
	s.note("upload")
	if s.upload != nil {
		return s.upload(ctx, f)
	}
	return &api.PhotoUpload{PhotoURL: "https://x/a.jpg", Key: "k1", ContentType: f.ContentType}, nil
}

func (s *stubBackend) DeletePhoto(ctx context.Context, key string) (bool, error) {
	s.note("delete")
	s.mu.Lock()
	s.deleted = append(s.deleted, key)
	s.mu.Unlock()
	if s.remove != nil {
		return s.remove(ctx, key)
	}
	return true, nil
}

func (s *stubBackend) CreateSighting(ctx context.Context, in *api.SightingCreate) (*api.Sighting, error) {
	s.note("create")
	if s.create != nil {
		return s.create(ctx, in)
	}
	return &api.Sighting{ID: 1, Zone: in.Zone, PhotoURL: in.PhotoURL}, nil
}

type stubLister struct {
	list []api.Sighting
	err  error
}

func (s *stubLister) ListSightings(context.Context, int) ([]api.Sighting, error) {
	return s.list, s.err
}
