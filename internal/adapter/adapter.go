// Package adapter turns a host-supplied parameter bag into a single miniserver
// operation and a result record for the host's reporting sink.
//
// Errors live in two tiers. Missing parameters and a failed structure
// definition load are fatal: Run returns an error and nothing is reported.
// Everything downstream of validated parameters (unresolved names, rejected
// requests, unimplemented branches) degrades to a status code inside the
// reported result.
package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dokzlo13/loxd/internal/catalog"
)

// Actions the host may request.
const (
	ActionChange = "change"
	ActionList   = "list"
)

// Result status codes.
const (
	// StatusIncomplete: a parameter combination no handler covers.
	StatusIncomplete = "IncompleteRequest"
	// StatusComplete: the state change was issued successfully.
	StatusComplete = "Complete"
	// StatusStateChangeError: the control was not found or the change failed.
	StatusStateChangeError = "StateChangeError"
	// StatusList: the summary field holds the requested listing.
	StatusList = "List"
	// StatusError: the listing could not be produced.
	StatusError = "Error"
)

// ErrMissingParameter is the fatal validation tier: the request cannot even
// be attempted.
var ErrMissingParameter = errors.New("missing parameter")

// Params is the parameter bag the host constructs the invocation with.
type Params struct {
	Host     string // miniserver host or host:port
	User     string
	Password string

	// Catalog is an optional pre-built structure catalog. When nil the
	// structure definition is fetched from the miniserver.
	Catalog *catalog.Catalog

	Action      string
	ControlName string
	ControlRoom string
	ControlType string // category kind, e.g. "lights" or "room"
	NewState    string
}

// Result is the record reported back to the host.
type Result struct {
	StatusCode      string `json:"status_code"`
	ControlName     string `json:"control_name,omitempty"`
	ControlNewState string `json:"control_newstate,omitempty"`
	ControlRoom     string `json:"control_room,omitempty"`
	Summary         string `json:"summary,omitempty"`
	InvocationID    string `json:"invocation_id"`
}

// Reporter is the host's result sink.
type Reporter interface {
	Report(result Result)
}

// StateChanger is the actuation capability the dispatcher needs. Implemented
// by actuator.Actuator.
type StateChanger interface {
	SetStateByName(ctx context.Context, cat *catalog.Catalog, name, newState string) error
}

// Adapter dispatches one validated request.
type Adapter struct {
	loader   func(ctx context.Context) (*catalog.Catalog, error)
	changer  StateChanger
	reporter Reporter
	logger   zerolog.Logger
}

// New creates an adapter. loader is invoked only when a request carries no
// pre-built catalog.
func New(loader func(ctx context.Context) (*catalog.Catalog, error), changer StateChanger, reporter Reporter, logger zerolog.Logger) *Adapter {
	return &Adapter{
		loader:   loader,
		changer:  changer,
		reporter: reporter,
		logger:   logger,
	}
}

// Run validates params, dispatches the requested action and reports the
// result. A validation failure returns an error and reports nothing; every
// later failure is captured in the reported status code instead.
func (a *Adapter) Run(ctx context.Context, params Params) error {
	invocationID := uuid.NewString()
	logger := a.logger.With().Str("invocation", invocationID).Logger()

	cat, err := a.validate(ctx, params, logger)
	if err != nil {
		return err
	}

	result := Result{
		ControlName:     params.ControlName,
		ControlNewState: params.NewState,
		ControlRoom:     params.ControlRoom,
		InvocationID:    invocationID,
	}

	switch params.Action {
	case ActionChange:
		a.actionChange(ctx, cat, params, &result, logger)
	case ActionList:
		a.actionList(cat, params, &result, logger)
	}

	if result.StatusCode == "" {
		logger.Debug().Str("action", params.Action).Msg("No handler covered the request")
		result.StatusCode = StatusIncomplete
	}

	a.reporter.Report(result)
	return nil
}

// validate is the fatal tier: it checks the parameter bag and produces the
// catalog the handlers operate on.
func (a *Adapter) validate(ctx context.Context, params Params, logger zerolog.Logger) (*catalog.Catalog, error) {
	if params.Host == "" {
		return nil, fmt.Errorf("%w: miniserver host", ErrMissingParameter)
	}
	if params.User == "" {
		return nil, fmt.Errorf("%w: miniserver user", ErrMissingParameter)
	}
	if params.Password == "" {
		return nil, fmt.Errorf("%w: miniserver password", ErrMissingParameter)
	}
	if params.Action == "" {
		return nil, fmt.Errorf("%w: action", ErrMissingParameter)
	}

	cat := params.Catalog
	if cat == nil {
		loaded, err := a.loader(ctx)
		if err != nil {
			return nil, fmt.Errorf("can't load miniserver structure definition: %w", err)
		}
		cat = loaded
		cat.DebugDump()
	}

	if params.ControlName == "" && params.ControlRoom == "" && params.ControlType == "" {
		return nil, fmt.Errorf("%w: nothing to do, need a control name, room or type", ErrMissingParameter)
	}

	return cat, nil
}

// actionChange changes the state of a single control addressed by name. The
// room/category scoped bulk change is declared but not implemented: it only
// registers a StateChangeError status, issuing no request.
func (a *Adapter) actionChange(ctx context.Context, cat *catalog.Catalog, params Params, result *Result, logger zerolog.Logger) {
	if params.ControlName != "" && params.NewState != "" {
		if err := a.changer.SetStateByName(ctx, cat, params.ControlName, params.NewState); err != nil {
			logger.Debug().Err(err).
				Str("name", params.ControlName).
				Msg("State not changed")
			result.StatusCode = StatusStateChangeError
			return
		}
		logger.Debug().
			Str("name", params.ControlName).
			Str("state", params.NewState).
			Msg("State changed")
		result.StatusCode = StatusComplete
		return
	}

	if params.ControlType == catalog.KindLights && params.ControlRoom != "" && params.NewState != "" {
		// TODO: change every light in a room; needs a room-scoped control
		// lookup in the catalog first.
		logger.Debug().Str("room", params.ControlRoom).Msg("Room-scoped change not implemented")
		result.StatusCode = StatusStateChangeError
	}
}

// actionList lists known elements. Only the room listing is implemented;
// every other category kind falls through without a status.
func (a *Adapter) actionList(cat *catalog.Catalog, params Params, result *Result, logger zerolog.Logger) {
	if params.ControlType != catalog.KindRoom {
		return
	}

	summary, ok := cat.ListRoomNames()
	if !ok {
		result.StatusCode = StatusError
		return
	}
	logger.Debug().Str("rooms", summary).Msg("Listing rooms")
	result.Summary = summary
	result.StatusCode = StatusList
}
