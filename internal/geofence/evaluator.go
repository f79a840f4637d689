package geofence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/smukkama/geofence-server/internal/database"
	"github.com/smukkama/geofence-server/internal/geometry"
	"github.com/smukkama/geofence-server/internal/protocol"
)

// DeviceDirectory resolves external device identifiers
type DeviceDirectory interface {
	GetDeviceByDeviceID(ctx context.Context, deviceID string) (*database.Device, error)
}

// AssociationStore loads and persists per-pair containment state
type AssociationStore interface {
	ListActiveAssociations(ctx context.Context, deviceID int64) ([]database.Association, error)
	UpsertDeviceGeofenceState(ctx context.Context, deviceID, geofenceID int64, isInside bool, enteredAt, exitedAt *time.Time) error
}

// ShapeError records a geofence whose geometry could not be evaluated.
// The pair's stored state is left untouched.
type ShapeError struct {
	GeofenceID int64
	Err        error
}

// CommitError records a (device, geofence) pair whose state write failed.
// Its transition, event and intents are withheld from the result so a retry
// of the same sample regenerates them without duplicating anything already
// committed.
type CommitError struct {
	GeofenceID int64
	Err        error
}

// Result is the outcome of evaluating one location sample
type Result struct {
	Device       *database.Device
	Coordinate   geometry.Coordinate
	OccurredAt   time.Time
	Evaluated    int
	Transitions  []Transition
	Events       []protocol.IntegrationEvent
	Intents      []protocol.NotificationIntent
	ShapeErrors  []ShapeError
	FailedStates []CommitError
}

// Evaluator runs the containment and transition pipeline for one location
// sample at a time, serialized per device.
type Evaluator struct {
	devices        DeviceDirectory
	store          AssociationStore
	guard          SampleGuard
	locks          *deviceLocks
	persistTimeout time.Duration
}

// NewEvaluator creates an evaluator. guard may be nil, in which case samples
// are never rejected as stale. persistTimeout bounds the state-commit phase;
// zero means no deadline.
func NewEvaluator(devices DeviceDirectory, store AssociationStore, guard SampleGuard, persistTimeout time.Duration) *Evaluator {
	return &Evaluator{
		devices:        devices,
		store:          store,
		guard:          guard,
		locks:          newDeviceLocks(),
		persistTimeout: persistTimeout,
	}
}

// Evaluate checks one location sample against every active geofence linked to
// the device. State writes are committed per pair before the pair's outputs
// are added to the result, so the result only ever describes durable
// transitions.
func (e *Evaluator) Evaluate(ctx context.Context, deviceID string, coord geometry.Coordinate, occurredAt time.Time) (*Result, error) {
	if err := coord.Validate(); err != nil {
		return nil, fmt.Errorf("invalid coordinate: %w", err)
	}

	release := e.locks.acquire(deviceID)
	defer release()

	if e.guard != nil {
		admitted, err := e.guard.Admit(ctx, deviceID, occurredAt)
		if err != nil {
			// The guard is advisory. Losing it must not stop evaluation.
			log.Printf("sample guard unavailable for device %s: %v", deviceID, err)
		} else if !admitted {
			return nil, ErrStaleSample
		}
	}

	device, err := e.devices.GetDeviceByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}
	if device == nil {
		return nil, ErrDeviceNotFound
	}

	associations, err := e.store.ListActiveAssociations(ctx, device.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}

	result := &Result{
		Device:     device,
		Coordinate: coord,
		OccurredAt: occurredAt,
	}

	type staged struct {
		transition Transition
		isInside   bool
		enteredAt  *time.Time
		exitedAt   *time.Time
		event      *protocol.IntegrationEvent
		intents    []protocol.NotificationIntent
	}
	var pending []staged

	for i := range associations {
		assoc := &associations[i]
		gf := &assoc.Geofence

		if gf.Status != database.GeofenceStatusActive {
			continue
		}

		shape, err := gf.Shape()
		if err != nil {
			result.ShapeErrors = append(result.ShapeErrors, ShapeError{GeofenceID: gf.ID, Err: err})
			continue
		}
		isInside, err := geometry.Contains(shape, coord)
		if err != nil {
			result.ShapeErrors = append(result.ShapeErrors, ShapeError{GeofenceID: gf.ID, Err: err})
			continue
		}
		result.Evaluated++

		kind := Detect(assoc.IsInside, isInside)
		if kind == TransitionUnchanged {
			continue
		}

		st := staged{
			transition: Transition{
				Geofence:   gf,
				Kind:       kind,
				Coordinate: coord,
				OccurredAt: occurredAt,
			},
			isInside: isInside,
		}

		eventType := protocol.EventGeofenceEnter
		if kind == TransitionEntered {
			ts := occurredAt
			st.enteredAt = &ts
		} else {
			ts := occurredAt
			st.exitedAt = &ts
			eventType = protocol.EventGeofenceExit
		}

		st.event = &protocol.IntegrationEvent{
			EventID:    uuid.NewString(),
			Type:       eventType,
			DeviceID:   device.DeviceID,
			GeofenceID: gf.ID,
			Latitude:   coord.Lat,
			Longitude:  coord.Lon,
			OccurredAt: occurredAt,
		}

		if (kind == TransitionEntered && gf.NotifyOnEnter) ||
			(kind == TransitionExited && gf.NotifyOnExit) {
			st.intents = BuildIntents(&st.transition, device)
		}

		pending = append(pending, st)
	}

	persistCtx := ctx
	if e.persistTimeout > 0 {
		var cancel context.CancelFunc
		persistCtx, cancel = context.WithTimeout(ctx, e.persistTimeout)
		defer cancel()
	}
	for _, st := range pending {
		gf := st.transition.Geofence
		err := e.store.UpsertDeviceGeofenceState(persistCtx, device.ID, gf.ID, st.isInside, st.enteredAt, st.exitedAt)
		if err != nil {
			result.FailedStates = append(result.FailedStates, CommitError{GeofenceID: gf.ID, Err: err})
			continue
		}
		result.Transitions = append(result.Transitions, st.transition)
		result.Events = append(result.Events, *st.event)
		result.Intents = append(result.Intents, st.intents...)
	}

	// The guard timestamp only advances once every pair committed. A sample
	// with failed state writes must stay admissible so its redelivery can
	// regenerate the withheld pairs.
	if e.guard != nil && len(result.FailedStates) == 0 {
		if err := e.guard.Commit(ctx, deviceID, occurredAt); err != nil {
			log.Printf("failed to record sample timestamp for device %s: %v", deviceID, err)
		}
	}

	return result, nil
}

// IsTerminal reports whether an Evaluate error means the sample cannot be
// processed at all, as opposed to a partial result with per-pair failures
func IsTerminal(err error) bool {
	return errors.Is(err, ErrDeviceNotFound) ||
		errors.Is(err, ErrStaleSample) ||
		errors.Is(err, ErrRepositoryUnavailable)
}
