package predictions

import (
	"github.com/tphakala/birdtarifa/internal/api"
)

// Zone selection values that are not backend zone ids.
const (
	// GeoZoneID is the general geographic area, also used as the fallback selection.
	GeoZoneID = "geo"
	// CustomZoneValue selects free-typed zone text.
	CustomZoneValue = "custom"
)

// FallbackZone is offered when the zone list cannot be fetched.
var FallbackZone = api.Zone{ID: GeoZoneID, Name: "Tarifa (zona general)", Kind: api.ZoneKindGeo}

// ZoneGroup is one labelled block of selectable options.
type ZoneGroup struct {
	Label string
	Zones []api.Zone
}

// Group labels, in display order.
const (
	GroupGeo      = "General area"
	GroupHotspots = "eBird hotspots"
	GroupManual   = "Manual"
)

// customOption is the manual entry appended after the backend zones.
var customOption = api.Zone{ID: CustomZoneValue, Name: "Other zone..."}

// GroupZones orders zones for display: geographic areas, hotspots, then the
// manual option. Empty groups are skipped except for the manual one.
func GroupZones(zones []api.Zone) []ZoneGroup {
	var geo, hotspots []api.Zone
	for _, z := range zones {
		switch z.Kind {
		case api.ZoneKindGeo:
			geo = append(geo, z)
		case api.ZoneKindHotspot:
			hotspots = append(hotspots, z)
		}
	}

	groups := make([]ZoneGroup, 0, 3)
	if len(geo) > 0 {
		groups = append(groups, ZoneGroup{Label: GroupGeo, Zones: geo})
	}
	if len(hotspots) > 0 {
		groups = append(groups, ZoneGroup{Label: GroupHotspots, Zones: hotspots})
	}
	return append(groups, ZoneGroup{Label: GroupManual, Zones: []api.Zone{customOption}})
}

func findZone(zones []api.Zone, id string) (api.Zone, bool) {
	for _, z := range zones {
		if z.ID == id {
			return z, true
		}
	}
	return api.Zone{}, false
}
