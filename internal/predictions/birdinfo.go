package predictions

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/errors"
	"github.com/tphakala/birdtarifa/internal/logger"
)

// DefaultInfoCacheTTL is how long a species lookup is reused.
const DefaultInfoCacheTTL = time.Hour

// InfoFetcher looks up reference information for a species.
type InfoFetcher interface {
	GetBirdInfo(ctx context.Context, species string) (*api.BirdInfo, error)
}

// PanelState is a snapshot of the info panel.
type PanelState struct {
	Open     bool
	Species  string
	Loading  bool
	Info     *api.BirdInfo
	Err      string
	NotFound bool
}

// InfoPanel shows species details. Every Open or Close starts a new
// generation; a fetch result is applied only while its generation is
// current, so a closed or re-targeted panel never shows stale data.
type InfoPanel struct {
	backend InfoFetcher
	cache   *cache.Cache
	log     logger.Logger

	mu         sync.Mutex
	generation uint64
	state      PanelState
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewInfoPanel creates a panel. A ttl of 0 uses DefaultInfoCacheTTL.
func NewInfoPanel(backend InfoFetcher, ttl time.Duration, log logger.Logger) *InfoPanel {
	if ttl <= 0 {
		ttl = DefaultInfoCacheTTL
	}
	return &InfoPanel{
		backend: backend,
		cache:   cache.New(ttl, ttl*2),
		log:     logger.OrDiscard(log).Module("predictions").Module("birdinfo"),
	}
}

// Open shows species and starts its lookup in the background. It returns
// the generation of this request.
func (p *InfoPanel) Open(ctx context.Context, species string) uint64 {
	species = strings.TrimSpace(species)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.generation++
	gen := p.generation
	p.state = PanelState{Open: true, Species: species}

	if species == "" {
		p.state.Err = errors.NewFieldError("species", "Species is required.").Error()
		return gen
	}

	key := cacheKey(species)
	if cached, found := p.cache.Get(key); found {
		if info, ok := cached.(*api.BirdInfo); ok {
			p.state.Info = info
			p.log.Debug("Bird info served from cache", logger.String("species", species))
			return gen
		}
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.state.Loading = true

	go func() {
		defer close(done)
		defer cancel()
		info, err := p.backend.GetBirdInfo(fetchCtx, species)
		p.apply(gen, key, info, err)
	}()
	return gen
}

func (p *InfoPanel) apply(gen uint64, key string, info *api.BirdInfo, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.generation {
		p.log.Debug("Discarding stale bird info",
			logger.String("key", key),
			logger.Any("generation", gen))
		return
	}

	p.state.Loading = false
	if err != nil {
		p.state.Err = api.Message(err)
		p.state.NotFound = errors.IsNotFound(err)
		p.log.Debug("Bird info lookup failed",
			logger.String("species", p.state.Species),
			logger.Error(err))
		return
	}
	p.state.Info = info
	p.cache.Set(key, info, cache.DefaultExpiration)
}

// Close hides the panel and invalidates any pending lookup.
func (p *InfoPanel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.generation++
	p.state = PanelState{}
}

// stopLocked cancels the pending fetch; its goroutine still exits on its own.
func (p *InfoPanel) stopLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Wait blocks until the latest lookup has settled or ctx is done.
func (p *InfoPanel) Wait(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns a snapshot of the panel.
func (p *InfoPanel) State() PanelState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Generation returns the current generation.
func (p *InfoPanel) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

func cacheKey(species string) string {
	return strings.ToLower(species)
}
