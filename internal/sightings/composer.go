// Package sightings implements the sighting workflows: photo upload with
// compensating delete, photo selection, the sighting composer and the
// recent-sightings history.
package sightings

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/errors"
	"github.com/tphakala/birdtarifa/internal/logger"
	"github.com/tphakala/birdtarifa/internal/prefs"
)

// Field bounds accepted by the backend.
const (
	MinZoneLength    = 2
	MaxZoneLength    = 120
	MaxSpeciesLength = 120
	MaxNotesLength   = 2000

	// DefaultZone seeds the composer when no zone has been used before.
	DefaultZone = "Tarifa Centro"

	// SuccessMessage is shown after a sighting is created.
	SuccessMessage = "Sighting saved."
)

// ErrBusy is returned when a submission is already in flight.
var ErrBusy = errors.NewStd("a submission is already in progress")

// observedLayouts are the accepted local timestamp inputs besides RFC3339.
var observedLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// State is the composer's position in a submission.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateUploadingPhoto
	StateCreatingRecord
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateUploadingPhoto:
		return "uploading_photo"
	case StateCreatingRecord:
		return "creating_record"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Backend is what the composer needs from the API client.
type Backend interface {
	PhotoBackend
	CreateSighting(ctx context.Context, in *api.SightingCreate) (*api.Sighting, error)
}

// Publisher is notified after a sighting has been durably created.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, s *api.Sighting) error
}

// Draft is the composer's form state.
type Draft struct {
	Zone         string
	SpeciesGuess string
	Notes        string
	ObservedAt   string
	Photo        *Preview
}

// Result describes a successful submission.
type Result struct {
	Sighting *api.Sighting
	Message  string
	// Warnings lists inputs that were dropped instead of sent.
	Warnings []string
}

// ComposerConfig holds composer defaults.
type ComposerConfig struct {
	DefaultZone string
	// Location interprets observed timestamps without an offset; nil means time.Local.
	Location *time.Location
	// OnStateChange, if set, is called on every state transition.
	OnStateChange func(State)
}

// Composer drives one sighting form: validate, upload the photo if any,
// create the record, and delete the upload again if creation fails.
type Composer struct {
	backend    Backend
	photos     *PhotoUploader
	selection  *Selection
	prefs      prefs.Store
	publishers []Publisher
	loc        *time.Location
	onState    func(State)
	log        logger.Logger

	busy atomic.Bool

	mu         sync.RWMutex
	state      State
	draft      Draft
	err        string
	cleanupErr string
	message    string
}

// NewComposer creates a composer. The zone starts from the stored sticky zone.
func NewComposer(backend Backend, selection *Selection, store prefs.Store, cfg ComposerConfig, log logger.Logger, publishers ...Publisher) *Composer {
	log = logger.OrDiscard(log).Module("sightings")

	defaultZone := cfg.DefaultZone
	if defaultZone == "" {
		defaultZone = DefaultZone
	}
	if store == nil {
		store = prefs.NewMemoryStore(nil)
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	return &Composer{
		backend:    backend,
		photos:     NewPhotoUploader(backend, log),
		selection:  selection,
		prefs:      store,
		publishers: publishers,
		loc:        loc,
		onState:    cfg.OnStateChange,
		log:        log.Module("composer"),
		draft:      Draft{Zone: prefs.GetOr(store, prefs.KeyZone, defaultZone)},
	}
}

// Photos exposes the upload workflow, e.g. for its busy flag.
func (c *Composer) Photos() *PhotoUploader {
	return c.photos
}

// SetZone updates the zone and persists it as the sticky default.
func (c *Composer) SetZone(zone string) {
	c.mu.Lock()
	c.draft.Zone = zone
	c.mu.Unlock()
	c.persistZone(zone)
}

// SetSpeciesGuess updates the species guess.
func (c *Composer) SetSpeciesGuess(species string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.SpeciesGuess = species
}

// SetNotes updates the notes.
func (c *Composer) SetNotes(notes string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.Notes = notes
}

// SetObservedAt updates the observation time input.
func (c *Composer) SetObservedAt(observedAt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.ObservedAt = observedAt
}

// SelectPhoto selects a photo for the next submission, releasing the previous one.
func (c *Composer) SelectPhoto(name string) (*Preview, error) {
	if c.Busy() {
		return nil, ErrBusy
	}
	if c.selection == nil {
		return nil, errors.Newf("photo selection is not available").
			Component("sightings").
			Category(errors.CategoryState).
			Build()
	}
	return c.selection.Select(name)
}

// ClearPhoto drops the selected photo.
func (c *Composer) ClearPhoto() {
	if c.selection != nil {
		c.selection.Release()
	}
}

// Close releases the selected photo.
func (c *Composer) Close() {
	c.ClearPhoto()
}

// Draft returns a snapshot of the form state.
func (c *Composer) Draft() Draft {
	c.mu.RLock()
	d := c.draft
	c.mu.RUnlock()
	if c.selection != nil {
		d.Photo = c.selection.Current()
	}
	return d
}

// State returns the current submission state.
func (c *Composer) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Busy reports whether a submission or photo operation is in flight.
func (c *Composer) Busy() bool {
	return c.busy.Load() || c.photos.Busy()
}

// Err returns the message of the last failed submission.
func (c *Composer) Err() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// CleanupErr returns the message of a failed compensating delete, if any.
func (c *Composer) CleanupErr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cleanupErr
}

// Message returns the last success message.
func (c *Composer) Message() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.message
}

// Submit runs one submission. The create call is only issued after the photo
// upload has settled, and a failed create deletes the uploaded photo.
func (c *Composer) Submit(ctx context.Context) (*Result, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer c.busy.Store(false)

	c.mu.Lock()
	c.err, c.cleanupErr, c.message = "", "", ""
	c.mu.Unlock()
	c.photos.ClearErr()
	c.setState(StateValidating)

	draft := c.Draft()
	payload, warnings, err := c.buildPayload(draft)
	if err != nil {
		return nil, c.fail(err)
	}

	var upload *api.PhotoUpload
	if draft.Photo != nil {
		c.setState(StateUploadingPhoto)
		file, err := draft.Photo.File()
		if err != nil {
			return nil, c.fail(err)
		}
		if upload, err = c.photos.Upload(ctx, file); err != nil {
			return nil, c.fail(err)
		}
		payload.PhotoURL = &upload.PhotoURL
	}

	c.setState(StateCreatingRecord)
	created, err := c.backend.CreateSighting(ctx, payload)
	if err != nil {
		if upload != nil {
			c.photos.Remove(ctx, upload.Key)
			if msg := c.photos.Err(); msg != "" {
				c.mu.Lock()
				c.cleanupErr = msg
				c.mu.Unlock()
			}
		}
		return nil, c.fail(err)
	}

	c.mu.Lock()
	c.draft.SpeciesGuess = ""
	c.draft.Notes = ""
	c.draft.ObservedAt = ""
	c.message = SuccessMessage
	c.mu.Unlock()
	c.ClearPhoto()
	c.persistZone(payload.Zone)
	c.setState(StateSucceeded)

	c.log.Info("Sighting created",
		logger.Int64("id", created.ID),
		logger.String("zone", created.Zone),
		logger.Time("observed_at", created.ObservedAt.Time),
		logger.Bool("has_photo", upload != nil))

	c.publish(ctx, created)

	return &Result{Sighting: created, Message: SuccessMessage, Warnings: warnings}, nil
}

// buildPayload validates and normalizes the draft.
func (c *Composer) buildPayload(d Draft) (*api.SightingCreate, []string, error) {
	zone := normalizeText(d.Zone)
	switch n := utf8.RuneCountInString(zone); {
	case n == 0:
		return nil, nil, errors.NewFieldError("zone", "Zone is required.")
	case n < MinZoneLength:
		return nil, nil, errors.NewFieldError("zone", fmt.Sprintf("Zone must be at least %d characters.", MinZoneLength))
	case n > MaxZoneLength:
		return nil, nil, errors.NewFieldError("zone", fmt.Sprintf("Zone must be at most %d characters.", MaxZoneLength))
	}

	payload := &api.SightingCreate{Zone: zone}

	if species := normalizeText(d.SpeciesGuess); species != "" {
		if utf8.RuneCountInString(species) > MaxSpeciesLength {
			return nil, nil, errors.NewFieldError("species_guess",
				fmt.Sprintf("Species guess must be at most %d characters.", MaxSpeciesLength))
		}
		payload.SpeciesGuess = &species
	}

	if notes := normalizeText(d.Notes); notes != "" {
		if utf8.RuneCountInString(notes) > MaxNotesLength {
			return nil, nil, errors.NewFieldError("notes",
				fmt.Sprintf("Notes must be at most %d characters.", MaxNotesLength))
		}
		payload.Notes = &notes
	}

	var warnings []string
	if raw := strings.TrimSpace(d.ObservedAt); raw != "" {
		if observed, ok := parseObservedAt(raw, c.loc); ok {
			payload.ObservedAt = &observed
		} else {
			warnings = append(warnings, fmt.Sprintf("Ignored invalid observation time %q.", raw))
			c.log.Warn("Dropping malformed observation time", logger.String("input", raw))
		}
	}

	return payload, warnings, nil
}

func (c *Composer) fail(err error) error {
	c.mu.Lock()
	c.err = api.Message(err)
	c.mu.Unlock()
	c.setState(StateFailed)

	if errors.IsCategory(err, errors.CategoryValidation) {
		c.log.Debug("Submission rejected", logger.Error(err))
	} else {
		c.log.Warn("Submission failed", logger.Error(err))
	}
	return err
}

func (c *Composer) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	if c.onState != nil {
		c.onState(s)
	}
}

func (c *Composer) persistZone(zone string) {
	if err := c.prefs.Set(prefs.KeyZone, zone); err != nil {
		c.log.Warn("Failed to persist zone", logger.Error(err))
	}
}

func (c *Composer) publish(ctx context.Context, s *api.Sighting) {
	for _, p := range c.publishers {
		if err := p.Publish(ctx, s); err != nil {
			c.log.Warn("Publisher failed",
				logger.String("publisher", p.Name()),
				logger.Int64("id", s.ID),
				logger.Error(err))
		}
	}
}

// normalizeText trims s and converts it to NFC.
func normalizeText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// parseObservedAt accepts RFC3339 or a local date-time in loc.
func parseObservedAt(raw string, loc *time.Location) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	for _, layout := range observedLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
