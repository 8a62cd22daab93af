package designer

import (
	"fmt"

	"github.com/woozymasta/sprinkler/internal/geo"
)

// Kind names a transition.
type Kind string

// Transition kinds.
const (
	KindCompleteBoundary Kind = "complete_boundary"
	KindResetProperty    Kind = "reset_property"
	KindClearSprinklers  Kind = "clear_sprinklers"
	KindDeleteSprinkler  Kind = "delete_sprinkler"
	KindSelectType       Kind = "select_type"
	KindMapClick         Kind = "map_click"
)

// Command is a user gesture reported by the map page.
// Only the fields relevant to Kind are read.
type Command struct {
	Kind   Kind
	Points []geo.GeoPoint
	Point  geo.GeoPoint
	Type   string
	ID     uint64
}

// Event describes an applied command.
// Changed is false when the command was accepted but was a no-op.
type Event struct {
	Kind    Kind
	Changed bool
	Placed  *Sprinkler
}

// CompleteBoundaryCmd builds a boundary completion command.
func CompleteBoundaryCmd(points []geo.GeoPoint) Command {
	return Command{Kind: KindCompleteBoundary, Points: points}
}

// ResetPropertyCmd builds a "Redraw Property" command.
func ResetPropertyCmd() Command { return Command{Kind: KindResetProperty} }

// ClearSprinklersCmd builds a "Clear All" command.
func ClearSprinklersCmd() Command { return Command{Kind: KindClearSprinklers} }

// DeleteSprinklerCmd builds a delete command.
func DeleteSprinklerCmd(id uint64) Command { return Command{Kind: KindDeleteSprinkler, ID: id} }

// SelectTypeCmd builds a selection command; an empty key is "Done".
func SelectTypeCmd(key string) Command { return Command{Kind: KindSelectType, Type: key} }

// MapClickCmd builds a map click command.
func MapClickCmd(p geo.GeoPoint) Command { return Command{Kind: KindMapClick, Point: p} }

// Apply runs cmd against s. The only failure is a command that breaks its
// precondition, in which case s is left untouched.
func Apply(s *State, cmd Command) (Event, error) {
	ev := Event{Kind: cmd.Kind, Changed: true}

	switch cmd.Kind {
	case KindCompleteBoundary:
		s.CompleteBoundary(cmd.Points)

	case KindResetProperty:
		s.ResetProperty()

	case KindClearSprinklers:
		ev.Changed = len(s.Sprinklers) > 0
		s.ClearSprinklers()

	case KindDeleteSprinkler:
		ev.Changed = s.DeleteSprinkler(cmd.ID)

	case KindSelectType:
		if err := s.SelectType(cmd.Type); err != nil {
			return Event{Kind: cmd.Kind}, err
		}

	case KindMapClick:
		sp, ok := s.HandleMapClick(cmd.Point)
		ev.Changed = ok
		if ok {
			ev.Placed = &sp
		}

	default:
		return Event{Kind: cmd.Kind}, fmt.Errorf("unknown command kind %q", cmd.Kind)
	}

	return ev, nil
}
