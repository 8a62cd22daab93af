// Package geo handles geographic data structures and coordinate math.
package geo

// GeoJSON type names used by the overlay set.
const (
	TypeFeatureCollection = "FeatureCollection"
	TypeFeature           = "Feature"
	TypePoint             = "Point"
	TypePolygon           = "Polygon"
)

// GeoJSONFeatureCollection represents a collection of geographic features.
// It follows the standard GeoJSON structure.
type GeoJSONFeatureCollection struct {
	Type     string           `json:"type"`
	Features []GeoJSONFeature `json:"features"`
}

// GeoJSONFeature represents a single geographic feature with geometry and properties.
type GeoJSONFeature struct {
	Properties map[string]any  `json:"properties"`
	Type       string          `json:"type"`
	Geometry   GeoJSONGeometry `json:"geometry"`
}

// GeoJSONGeometry represents the geometry of a feature.
// Coordinates is [lng, lat] for a Point and [][][lng, lat] for a Polygon.
type GeoJSONGeometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// NewFeatureCollection returns an empty collection that encodes features as [] rather than null.
func NewFeatureCollection(capacity int) GeoJSONFeatureCollection {
	return GeoJSONFeatureCollection{
		Type:     TypeFeatureCollection,
		Features: make([]GeoJSONFeature, 0, capacity),
	}
}

// PointFeature builds a Point feature at p.
func PointFeature(p GeoPoint, props map[string]any) GeoJSONFeature {
	return GeoJSONFeature{
		Type: TypeFeature,
		Geometry: GeoJSONGeometry{
			Type:        TypePoint,
			Coordinates: []float64{p.Lng, p.Lat},
		},
		Properties: props,
	}
}

// PolygonFeature builds a single-ring Polygon feature from the vertex path.
// The ring is closed by repeating the first vertex when needed.
func PolygonFeature(path []GeoPoint, props map[string]any) GeoJSONFeature {
	ring := make([][]float64, 0, len(path)+1)
	for _, p := range path {
		ring = append(ring, []float64{p.Lng, p.Lat})
	}
	if len(path) > 0 && path[0] != path[len(path)-1] {
		ring = append(ring, []float64{path[0].Lng, path[0].Lat})
	}

	return GeoJSONFeature{
		Type: TypeFeature,
		Geometry: GeoJSONGeometry{
			Type:        TypePolygon,
			Coordinates: [][][]float64{ring},
		},
		Properties: props,
	}
}
