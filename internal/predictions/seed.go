package predictions

import (
	"context"
	"fmt"
	"sync"

	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/logger"
)

// RuleSeeder loads the backend's demo prediction rules.
type RuleSeeder interface {
	SeedPredictionRules(ctx context.Context) (int, error)
}

// Seeder triggers demo rule seeding. Its message and error are kept apart
// from the search results.
type Seeder struct {
	backend RuleSeeder
	log     logger.Logger

	mu      sync.RWMutex
	busy    bool
	message string
	err     string
}

// NewSeeder creates a seeder.
func NewSeeder(backend RuleSeeder, log logger.Logger) *Seeder {
	return &Seeder{
		backend: backend,
		log:     logger.OrDiscard(log).Module("predictions").Module("seed"),
	}
}

// Seed loads the demo rules and returns the number inserted.
func (s *Seeder) Seed(ctx context.Context) (int, error) {
	s.mu.Lock()
	s.busy = true
	s.message = ""
	s.err = ""
	s.mu.Unlock()

	inserted, err := s.backend.SeedPredictionRules(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if err != nil {
		s.err = api.Message(err)
		s.log.Warn("Seeding demo rules failed", logger.Error(err))
		return 0, err
	}

	s.message = SeedMessage(inserted)
	s.log.Info("Demo rules seeded", logger.Int("inserted", inserted))
	return inserted, nil
}

// SeedMessage formats the transient success message.
func SeedMessage(inserted int) string {
	return fmt.Sprintf("Demo rules loaded: %d inserted.", inserted)
}

// Busy reports whether seeding is in flight.
func (s *Seeder) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

// Message returns the last success message, or "".
func (s *Seeder) Message() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.message
}

// Err returns the last failure message, or "".
func (s *Seeder) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}
