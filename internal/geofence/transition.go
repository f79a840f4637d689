package geofence

import (
	"time"

	"github.com/smukkama/geofence-server/internal/database"
	"github.com/smukkama/geofence-server/internal/geometry"
)

// TransitionKind classifies the change between two containment results
type TransitionKind string

const (
	TransitionEntered   TransitionKind = "ENTERED"
	TransitionExited    TransitionKind = "EXITED"
	TransitionUnchanged TransitionKind = "UNCHANGED"
)

// Detect compares the stored containment state with the freshly computed one.
// This one-line kernel is what every notification and event downstream hangs
// off, so it lives alone where it can be tested exhaustively.
func Detect(wasInside, isInside bool) TransitionKind {
	switch {
	case !wasInside && isInside:
		return TransitionEntered
	case wasInside && !isInside:
		return TransitionExited
	default:
		return TransitionUnchanged
	}
}

// Transition records one detected state change for one geofence
type Transition struct {
	Geofence   *database.Geofence
	Kind       TransitionKind
	Coordinate geometry.Coordinate
	OccurredAt time.Time
}
