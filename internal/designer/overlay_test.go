package designer

import (
	"testing"

	"github.com/matryer/is"
	"github.com/woozymasta/sprinkler/internal/geo"
)

func TestOverlayOfInitialStateIsEmpty(t *testing.T) {
	is := is.New(t)

	fc := Overlay(NewState().Snapshot())
	is.Equal(fc.Type, geo.TypeFeatureCollection)
	is.Equal(len(fc.Features), 0)
}

func TestOverlayHasBoundaryThenSprinklers(t *testing.T) {
	is := is.New(t)
	s := NewState()
	s.CompleteBoundary(square)
	is.NoErr(s.SelectType(Rotor))
	s.HandleMapClick(geo.GeoPoint{Lat: 40.005, Lng: -74.995})
	is.NoErr(s.SelectType(Spray))
	s.HandleMapClick(geo.GeoPoint{Lat: 41, Lng: -74.995})

	fc := Overlay(s.Snapshot())
	is.Equal(len(fc.Features), 3)

	is.Equal(fc.Features[0].Geometry.Type, geo.TypePolygon)
	is.Equal(fc.Features[0].Properties["kind"], OverlayBoundary)

	rotor := fc.Features[1]
	is.Equal(rotor.Geometry.Type, geo.TypePoint)
	is.Equal(rotor.Geometry.Coordinates, []float64{-74.995, 40.005})
	is.Equal(rotor.Properties["index"], 1)
	is.Equal(rotor.Properties["radius_m"], mustLookup(t, Rotor).RadiusMeters())
	is.Equal(rotor.Properties["inside"], true)

	spray := fc.Features[2]
	is.Equal(spray.Properties["index"], 2)
	is.Equal(spray.Properties["name"], "Spray")
	is.Equal(spray.Properties["radius_m"], mustLookup(t, Spray).RadiusMeters())
	is.Equal(spray.Properties["inside"], false)
}

func TestOverlayIsDeterministic(t *testing.T) {
	is := is.New(t)
	s := NewState()
	s.CompleteBoundary(square)
	is.NoErr(s.SelectType(Rotor))
	s.HandleMapClick(square[0])

	a := Overlay(s.Snapshot())
	b := Overlay(s.Snapshot())
	is.Equal(len(a.Features), len(b.Features))

	s.ClearSprinklers()
	is.Equal(len(Overlay(s.Snapshot()).Features), 1)
}

func mustLookup(t *testing.T, key string) SprinklerType {
	t.Helper()
	st, ok := Lookup(key)
	if !ok {
		t.Fatalf("catalog has no %q", key)
	}
	return st
}
