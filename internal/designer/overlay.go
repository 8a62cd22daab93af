package designer

import "github.com/woozymasta/sprinkler/internal/geo"

// Overlay kinds carried in the "kind" feature property.
const (
	OverlayBoundary  = "boundary"
	OverlaySprinkler = "sprinkler"
)

// Overlay renders the complete overlay set for s: at most one boundary
// polygon followed by one point per sprinkler in placement order. The map
// page replaces its layers with this collection on every update.
func Overlay(s State) geo.GeoJSONFeatureCollection {
	fc := geo.NewFeatureCollection(len(s.Sprinklers) + 1)

	if len(s.Boundary) > 0 {
		fc.Features = append(fc.Features, geo.PolygonFeature(s.Boundary, map[string]any{
			"kind": OverlayBoundary,
		}))
	}

	for i, sp := range s.Sprinklers {
		t, ok := Lookup(sp.Type)
		if !ok {
			continue
		}

		fc.Features = append(fc.Features, geo.PointFeature(sp.Position, map[string]any{
			"kind":     OverlaySprinkler,
			"id":       sp.ID,
			"index":    i + 1,
			"type":     t.Key,
			"name":     t.Name,
			"radius_m": t.RadiusMeters(),
			"inside":   geo.Contains(s.Boundary, sp.Position),
		}))
	}

	return fc
}
