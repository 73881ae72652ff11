// Package actuator issues state-change commands for resolved controls and
// enforces the switch-only policy on the name-based path.
package actuator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dokzlo13/loxd/internal/catalog"
)

// Resolution failures of the name-based path. They are detected before any
// request is made.
var (
	ErrControlNotFound = errors.New("control not found in structure definition")
	ErrNotASwitch      = errors.New("control is not a switch")
)

// StateSetter performs the actual state-change request. It is implemented by
// loxone.Client; tests supply fakes.
type StateSetter interface {
	SetState(ctx context.Context, actionID, newState string) error
}

// Actuator changes control states through a StateSetter.
type Actuator struct {
	setter StateSetter
	logger zerolog.Logger
}

// New creates an actuator.
func New(setter StateSetter, logger zerolog.Logger) *Actuator {
	return &Actuator{
		setter: setter,
		logger: logger.With().Str("component", "actuator").Logger(),
	}
}

// SetState issues one state-change request for actionID. Transport failures
// and rejected requests are logged and returned; there is no retry.
func (a *Actuator) SetState(ctx context.Context, actionID, newState string) error {
	a.logger.Debug().
		Str("action_id", actionID).
		Str("state", newState).
		Msg("Changing control state")

	if err := a.setter.SetState(ctx, actionID, newState); err != nil {
		a.logger.Error().Err(err).
			Str("action_id", actionID).
			Str("state", newState).
			Msg("State change failed")
		return err
	}
	return nil
}

// SetStateByName resolves name through the catalog and changes the state of
// the matching control. Only switch-like controls are actuated this way; a
// name that resolves to anything else fails with ErrNotASwitch without
// touching the transport.
func (a *Actuator) SetStateByName(ctx context.Context, cat *catalog.Catalog, name, newState string) error {
	actionID, ok := cat.ResolveIDByName(name)
	if !ok {
		a.logger.Debug().Str("name", name).Msg("Name not found in structure definition")
		return fmt.Errorf("%w: %q", ErrControlNotFound, name)
	}

	controlType, _ := cat.ResolveTypeByID(actionID)
	if !catalog.IsSwitchType(controlType) {
		a.logger.Debug().Str("name", name).Str("type", controlType).Msg("Name is not a switch")
		return fmt.Errorf("%w: %q", ErrNotASwitch, name)
	}

	return a.SetState(ctx, actionID, newState)
}
