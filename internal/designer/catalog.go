// Package designer holds the sprinkler layout state and its transitions.
package designer

import "errors"

// FeetToMeters is the international foot in meters.
const FeetToMeters = 0.3048

// Catalog keys.
const (
	Rotor = "rotor"
	Spray = "spray"
)

// ErrUnknownType is returned when a key does not resolve in the catalog.
var ErrUnknownType = errors.New("unknown sprinkler type")

// SprinklerType is a read-only catalog entry.
type SprinklerType struct {
	Key        string  `json:"key"`
	Name       string  `json:"name"`
	RadiusFeet float64 `json:"radius_ft"`
}

// RadiusMeters converts the coverage radius to map units.
func (t SprinklerType) RadiusMeters() float64 {
	return t.RadiusFeet * FeetToMeters
}

// catalog is kept in display order.
var catalog = [...]SprinklerType{
	{Key: Rotor, Name: "Rotor", RadiusFeet: 30},
	{Key: Spray, Name: "Spray", RadiusFeet: 15},
}

// Catalog returns a copy of the sprinkler types in display order.
func Catalog() []SprinklerType {
	out := make([]SprinklerType, len(catalog))
	copy(out, catalog[:])
	return out
}

// Lookup resolves a catalog key.
func Lookup(key string) (SprinklerType, bool) {
	for _, t := range catalog {
		if t.Key == key {
			return t, true
		}
	}
	return SprinklerType{}, false
}
