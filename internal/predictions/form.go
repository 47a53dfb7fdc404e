// Package predictions implements the prediction workflows: the query form with
// persisted zone selection, the search itself, ranking display, demo rule
// seeding and the species info panel.
package predictions

import (
	"context"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/errors"
	"github.com/tphakala/birdtarifa/internal/logger"
	"github.com/tphakala/birdtarifa/internal/prefs"
)

// MaxCustomZoneLength bounds free-typed zone text.
const MaxCustomZoneLength = 120

// ZoneLister fetches selectable zones.
type ZoneLister interface {
	ListZones(ctx context.Context) ([]api.Zone, error)
}

// FormConfig holds form defaults.
type FormConfig struct {
	// Limit is the number of results requested; 0 means api.DefaultPredictionLimit.
	Limit int
	// Now supplies the default month; nil means time.Now.
	Now func() time.Time
}

// Form holds the prediction query inputs. The zone selection and custom
// text are written to the preference store on every change.
type Form struct {
	zoneLister ZoneLister
	search     *Search
	prefs      prefs.Store
	limit      int
	log        logger.Logger

	mu           sync.RWMutex
	zones        []api.Zone
	zonesLoading bool
	zonesErr     string
	selection    string
	custom       string
	month        string
	localErr     string
}

// NewForm creates a form, restoring the last selection from store.
func NewForm(zones ZoneLister, search *Search, store prefs.Store, cfg FormConfig, log logger.Logger) *Form {
	if store == nil {
		store = prefs.NewMemoryStore(nil)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = api.DefaultPredictionLimit
	}

	return &Form{
		zoneLister: zones,
		search:     search,
		prefs:      store,
		limit:      limit,
		log:        logger.OrDiscard(log).Module("predictions").Module("form"),
		selection:  initialSelection(store),
		custom:     initialCustomZone(store),
		month:      strconv.Itoa(int(now().Month())),
	}
}

// initialSelection restores the stored selection. Without one, a legacy
// sticky zone from the sightings composer selects custom mode.
func initialSelection(store prefs.Store) string {
	if v, ok := store.Get(prefs.KeyZoneValue); ok && v != "" {
		return v
	}
	if legacy, ok := store.Get(prefs.KeyZone); ok && strings.TrimSpace(legacy) != "" {
		return CustomZoneValue
	}
	return GeoZoneID
}

func initialCustomZone(store prefs.Store) string {
	if v, ok := store.Get(prefs.KeyZoneCustom); ok && v != "" {
		return v
	}
	legacy, _ := store.Get(prefs.KeyZone)
	return strings.TrimSpace(legacy)
}

// LoadZones fetches the zone list. A stored curated id missing from the
// fresh list falls back to the geographic zone. On failure the list becomes
// the single fallback zone, selection stays usable and the error is returned
// for display.
func (f *Form) LoadZones(ctx context.Context) error {
	f.mu.Lock()
	f.zonesLoading = true
	f.zonesErr = ""
	f.mu.Unlock()

	zones, err := f.zoneLister.ListZones(ctx)

	f.mu.Lock()
	f.zonesLoading = false
	if err != nil {
		f.zonesErr = api.Message(err)
		f.zones = []api.Zone{FallbackZone}
		if f.selection != CustomZoneValue {
			f.selection = GeoZoneID
		}
		selection := f.selection
		f.mu.Unlock()

		f.log.Warn("Failed to load zones, using fallback", logger.Error(err))
		f.persist(prefs.KeyZoneValue, selection)
		return err
	}

	f.zones = slices.Clone(zones)
	if f.selection != CustomZoneValue {
		if _, ok := findZone(f.zones, f.selection); !ok {
			f.log.Info("Stored zone no longer offered, falling back",
				logger.String("zone_id", f.selection))
			f.selection = GeoZoneID
		}
	}
	selection := f.selection
	f.mu.Unlock()

	f.persist(prefs.KeyZoneValue, selection)
	f.log.Debug("Zones loaded", logger.Int("count", len(zones)))
	return nil
}

// SelectZone selects a zone id from the loaded list or CustomZoneValue.
func (f *Form) SelectZone(value string) error {
	value = strings.TrimSpace(value)

	f.mu.Lock()
	if value != CustomZoneValue && value != GeoZoneID {
		if _, ok := findZone(f.zones, value); !ok {
			f.mu.Unlock()
			return errors.NewFieldError("zone", "Unknown zone "+strconv.Quote(value)+".")
		}
	}
	f.selection = value
	f.mu.Unlock()

	f.persist(prefs.KeyZoneValue, value)
	return nil
}

// SetCustomZone sets the free-typed zone text.
func (f *Form) SetCustomZone(text string) {
	f.mu.Lock()
	f.custom = text
	f.mu.Unlock()
	f.persist(prefs.KeyZoneCustom, text)
}

// SetMonth sets the raw month input.
func (f *Form) SetMonth(input string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.month = input
}

// Query validates the inputs and resolves the effective zone. Month is
// checked first, then the zone.
func (f *Form) Query() (api.PredictionQuery, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	month, err := ParseMonth(f.month)
	if err != nil {
		return api.PredictionQuery{}, err
	}

	q := api.PredictionQuery{Month: month, Limit: f.limit}
	switch f.selection {
	case CustomZoneValue:
		q.Zone = strings.TrimSpace(norm.NFC.String(f.custom))
		if len([]rune(q.Zone)) > MaxCustomZoneLength {
			return api.PredictionQuery{}, errors.NewFieldError("zone", "Zone must be at most 120 characters.")
		}
	default:
		zone, ok := findZone(f.zones, f.selection)
		if !ok && f.selection == GeoZoneID {
			zone, ok = FallbackZone, true
		}
		if ok {
			q.Zone = strings.TrimSpace(zone.Name)
			q.ZoneID = zone.ID
		}
	}

	if q.Zone == "" {
		return api.PredictionQuery{}, errors.NewFieldError("zone", "Zone is required.")
	}
	return q, nil
}

// Submit validates locally and runs the search. Validation failures never
// reach the network and are reported through LocalErr.
func (f *Form) Submit(ctx context.Context) ([]api.Prediction, error) {
	f.setLocalErr("")

	q, err := f.Query()
	if err != nil {
		f.setLocalErr(api.Message(err))
		return nil, err
	}
	return f.search.Search(ctx, q)
}

// Zones returns the loaded zones.
func (f *Form) Zones() []api.Zone {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.zones)
}

// Groups returns the zones grouped for display.
func (f *Form) Groups() []ZoneGroup {
	return GroupZones(f.Zones())
}

// Selection returns the selected zone id or CustomZoneValue.
func (f *Form) Selection() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.selection
}

// CustomZone returns the free-typed zone text.
func (f *Form) CustomZone() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.custom
}

// Month returns the raw month input.
func (f *Form) Month() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.month
}

// ZonesLoading reports whether the zone list is being fetched.
func (f *Form) ZonesLoading() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.zonesLoading
}

// ZonesErr returns the zone fetch failure, shown as information only.
func (f *Form) ZonesErr() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.zonesErr
}

// LocalErr returns the last local validation failure.
func (f *Form) LocalErr() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.localErr
}

// Search returns the search workflow the form submits to.
func (f *Form) Search() *Search {
	return f.search
}

func (f *Form) setLocalErr(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.localErr = msg
}

func (f *Form) persist(key, value string) {
	if err := f.prefs.Set(key, value); err != nil {
		f.log.Warn("Failed to persist preference", logger.String("key", key), logger.Error(err))
	}
}

// ParseMonth accepts an integer 1..12, optionally written with a zero
// fraction ("4.0"). Anything else is a validation error.
func ParseMonth(input string) (int, error) {
	invalid := errors.NewFieldError("month", "Month must be a number between 1 and 12.")

	s := strings.TrimSpace(input)
	if s == "" {
		return 0, invalid
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, invalid
	}
	if v < 1 || v > 12 {
		return 0, invalid
	}
	return int(v), nil
}
