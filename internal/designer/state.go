package designer

import (
	"fmt"
	"slices"

	"github.com/woozymasta/sprinkler/internal/geo"
)

// Sprinkler is a placed sprinkler. Type always resolves in the catalog.
type Sprinkler struct {
	ID       uint64       `json:"id"`
	Type     string       `json:"type"`
	Position geo.GeoPoint `json:"position"`
}

// State is the whole design: boundary, placed sprinklers and UI mode.
// Selected is empty when no type is selected.
type State struct {
	Boundary    []geo.GeoPoint `json:"boundary"`
	Sprinklers  []Sprinkler    `json:"sprinklers"`
	Selected    string         `json:"selected"`
	DrawingMode bool           `json:"drawing_mode"`

	lastID uint64
}

// NewState returns the initial state, identical to the reset state.
func NewState() *State {
	s := &State{}
	s.ResetProperty()
	return s
}

// CompleteBoundary replaces the boundary and leaves drawing mode.
func (s *State) CompleteBoundary(points []geo.GeoPoint) {
	s.Boundary = slices.Clone(points)
	if s.Boundary == nil {
		s.Boundary = []geo.GeoPoint{}
	}
	s.DrawingMode = false
}

// ResetProperty discards the boundary and every sprinkler and returns to drawing mode.
// The id counter is not rewound.
func (s *State) ResetProperty() {
	s.Boundary = []geo.GeoPoint{}
	s.Sprinklers = []Sprinkler{}
	s.Selected = ""
	s.DrawingMode = true
}

// ClearSprinklers removes all placed sprinklers.
func (s *State) ClearSprinklers() {
	s.Sprinklers = []Sprinkler{}
}

// DeleteSprinkler removes the sprinkler with the given id, if present.
// It reports whether anything was removed.
func (s *State) DeleteSprinkler(id uint64) bool {
	n := len(s.Sprinklers)
	s.Sprinklers = slices.DeleteFunc(s.Sprinklers, func(sp Sprinkler) bool {
		return sp.ID == id
	})
	return len(s.Sprinklers) != n
}

// SelectType sets the type used for placement. An empty key leaves placement mode.
func (s *State) SelectType(key string) error {
	if key != "" {
		if _, ok := Lookup(key); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownType, key)
		}
	}
	s.Selected = key
	return nil
}

// HandleMapClick places a sprinkler of the selected type at p.
// Nothing happens without a selected type or a boundary.
func (s *State) HandleMapClick(p geo.GeoPoint) (Sprinkler, bool) {
	if s.Selected == "" || len(s.Boundary) == 0 {
		return Sprinkler{}, false
	}

	s.lastID++
	sp := Sprinkler{ID: s.lastID, Type: s.Selected, Position: p}
	s.Sprinklers = append(s.Sprinklers, sp)

	return sp, true
}

// Snapshot returns a deep copy of the state.
func (s *State) Snapshot() State {
	return State{
		Boundary:    slices.Clone(s.Boundary),
		Sprinklers:  slices.Clone(s.Sprinklers),
		Selected:    s.Selected,
		DrawingMode: s.DrawingMode,
		lastID:      s.lastID,
	}
}
