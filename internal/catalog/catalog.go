// Package catalog builds the in-memory lookup tables for a Loxone structure
// definition: rooms, categories and the actionable controls inside them.
//
// The catalog is built once from a fetched document and is immutable
// afterwards; reloading means discarding it and building a new one. Lookups
// preserve the document order of the definition, so "first match" is always
// the first match in the document.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dokzlo13/loxd/internal/loxone"
)

// Category kinds as declared by the miniserver, plus the synthetic room kind
// used only for identifier-type queries.
const (
	KindLights    = "lights"
	KindShading   = "shading"
	KindUndefined = "undefined"
	KindRoom      = "room"
)

// ErrMalformedDocument is returned when the structure definition misses a
// required block or field. The catalog is all-or-nothing: no partially
// populated catalog is ever returned.
var ErrMalformedDocument = errors.New("malformed structure definition")

// StructureSource retrieves the structure definition document. It is
// implemented by loxone.Client; tests supply fakes.
type StructureSource interface {
	FetchStructure(ctx context.Context) (*loxone.StructureFile, error)
}

// Info is the descriptive metadata of a structure definition, kept for
// diagnostics only.
type Info struct {
	Language  string
	Location  string
	RoomTitle string
}

// Room is a named room. The id is the document key of the rooms block.
type Room struct {
	ID   string
	Name string
}

// Category is a named control group holding the actionable controls whose
// declared category is this one.
type Category struct {
	ID   string
	Name string
	Kind string

	controlOrder []string
	controls     map[string]Control
}

// Control is an individually actuatable element. ActionID is the identifier
// used for state changes; it differs from ID for controls surfaced through a
// light controller, which keep their own key but inherit the parent's room.
type Control struct {
	ID       string
	Name     string
	ActionID string
	RoomID   string
	Type     string
}

// Catalog is the aggregate of the three lookup tables.
type Catalog struct {
	info Info

	roomOrder []string
	rooms     map[string]Room

	catOrder []string
	cats     map[string]*Category

	logger zerolog.Logger
}

// IsSwitchType reports whether a declared control type may be actuated as a
// switch.
func IsSwitchType(controlType string) bool {
	return controlType == loxone.TypeSwitch || controlType == loxone.TypeTimedSwitch
}

// Load fetches the structure definition through src and parses it into a
// catalog. Fetch failures are returned wrapped; a document missing any of its
// required blocks or fields returns ErrMalformedDocument. Load never retries;
// the caller may simply call it again.
func Load(ctx context.Context, src StructureSource, logger zerolog.Logger) (*Catalog, error) {
	structure, err := src.FetchStructure(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Structure definition request failed")
		return nil, fmt.Errorf("loading structure definition: %w", err)
	}

	cat, err := New(structure, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Structure definition cannot be parsed")
		return nil, err
	}
	return cat, nil
}

// New parses an already fetched structure definition into a catalog.
func New(structure *loxone.StructureFile, logger zerolog.Logger) (*Catalog, error) {
	if structure == nil || structure.MSInfo == nil || structure.Rooms == nil ||
		structure.Cats == nil || structure.Controls == nil {
		return nil, fmt.Errorf("%w: missing msInfo, rooms, cats or controls", ErrMalformedDocument)
	}

	c := &Catalog{
		info: Info{
			Language:  structure.MSInfo.LanguageCode,
			Location:  structure.MSInfo.Location,
			RoomTitle: structure.MSInfo.RoomTitle,
		},
		rooms:  make(map[string]Room),
		cats:   make(map[string]*Category),
		logger: logger.With().Str("component", "catalog").Logger(),
	}

	// The document key is the canonical id for rooms and categories; the
	// embedded uuid field is not used for resolution.
	for _, id := range structure.Rooms.Keys() {
		entry, _ := structure.Rooms.Get(id)
		c.roomOrder = append(c.roomOrder, id)
		c.rooms[id] = Room{ID: id, Name: entry.Name}
	}

	for _, id := range structure.Cats.Keys() {
		entry, _ := structure.Cats.Get(id)
		c.catOrder = append(c.catOrder, id)
		c.cats[id] = &Category{
			ID:       id,
			Name:     entry.Name,
			Kind:     entry.Type,
			controls: make(map[string]Control),
		}
	}

	if err := c.extractControls(structure.Controls); err != nil {
		return nil, err
	}

	return c, nil
}

// extractControls populates the category control tables from the raw controls
// block. Only switch-like, jalousie and light-controller entries are modeled;
// every other declared type (sensors, room controllers, ...) is filtered out
// on purpose. Non-switch subcontrols of a light controller are skipped the
// same way.
func (c *Catalog) extractControls(raw *loxone.OrderedMap[loxone.ControlEntry]) error {
	for _, id := range raw.Keys() {
		entry, _ := raw.Get(id)

		switch entry.Type {
		case loxone.TypeSwitch, loxone.TypeTimedSwitch, loxone.TypeJalousie:
			if err := c.insertControl(id, entry.Name, entry.UUIDAction, entry.Room, entry.Type, entry.Cat); err != nil {
				return err
			}

		case loxone.TypeLightController:
			if entry.SubControls == nil {
				return fmt.Errorf("%w: light controller %q has no subControls", ErrMalformedDocument, id)
			}
			for _, subID := range entry.SubControls.Keys() {
				sub, _ := entry.SubControls.Get(subID)
				if sub.Type != loxone.TypeSwitch {
					continue
				}
				// Subcontrols keep their own key and action id but
				// inherit the parent's room and category.
				if err := c.insertControl(subID, sub.Name, sub.UUIDAction, entry.Room, sub.Type, entry.Cat); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (c *Catalog) insertControl(id, name, actionID, roomID, controlType, catID string) error {
	if actionID == "" {
		return fmt.Errorf("%w: control %q has no uuidAction", ErrMalformedDocument, id)
	}
	group, ok := c.cats[catID]
	if !ok {
		return fmt.Errorf("%w: control %q references unknown category %q", ErrMalformedDocument, id, catID)
	}

	if _, exists := group.controls[id]; !exists {
		group.controlOrder = append(group.controlOrder, id)
	}
	group.controls[id] = Control{
		ID:       id,
		Name:     name,
		ActionID: actionID,
		RoomID:   roomID,
		Type:     controlType,
	}
	return nil
}

// Info returns the descriptive metadata of the loaded definition.
func (c *Catalog) Info() Info {
	return c.info
}

// ResolveTypeByID returns the type tag for an identifier. Ids share one
// namespace on the miniserver, so the lookup uses a fixed priority:
// categories first, then controls, then rooms (which answer KindRoom).
func (c *Catalog) ResolveTypeByID(id string) (string, bool) {
	if group, ok := c.cats[id]; ok {
		return group.Kind, true
	}
	for _, catID := range c.catOrder {
		if control, ok := c.cats[catID].controls[id]; ok {
			return control.Type, true
		}
	}
	if _, ok := c.rooms[id]; ok {
		return KindRoom, true
	}
	return "", false
}

// ResolveNameByID returns the display name for an identifier, using the same
// priority order as ResolveTypeByID.
func (c *Catalog) ResolveNameByID(id string) (string, bool) {
	if group, ok := c.cats[id]; ok {
		return group.Name, true
	}
	for _, catID := range c.catOrder {
		if control, ok := c.cats[catID].controls[id]; ok {
			return control.Name, true
		}
	}
	if room, ok := c.rooms[id]; ok {
		return room.Name, true
	}
	return "", false
}

// ResolveIDByName returns the action id of the first control whose name
// equals name exactly, scanning categories and their controls in document
// order. Names are not unique, so the first match wins. Room and category
// names never resolve to an id here.
func (c *Catalog) ResolveIDByName(name string) (string, bool) {
	for _, catID := range c.catOrder {
		group := c.cats[catID]
		for _, controlID := range group.controlOrder {
			if control := group.controls[controlID]; control.Name == name {
				return control.ActionID, true
			}
		}
	}
	return "", false
}

// ListRoomNames returns all room names joined by ", " in document order, or
// false if the definition has no rooms.
func (c *Catalog) ListRoomNames() (string, bool) {
	if len(c.roomOrder) == 0 {
		return "", false
	}
	names := make([]string, 0, len(c.roomOrder))
	for _, id := range c.roomOrder {
		names = append(names, c.rooms[id].Name)
	}
	return strings.Join(names, ", "), true
}

// DebugDump logs a summary of the loaded definition: metadata, rooms,
// categories and every modeled control with its category and room.
func (c *Catalog) DebugDump() {
	c.logger.Debug().
		Str("location", c.info.Location).
		Str("language", c.info.Language).
		Int("rooms", len(c.roomOrder)).
		Int("categories", len(c.catOrder)).
		Msg("Structure definition loaded")

	for _, id := range c.roomOrder {
		c.logger.Debug().Str("room", c.rooms[id].Name).Str("id", id).Msg("Room")
	}

	total := 0
	for _, catID := range c.catOrder {
		group := c.cats[catID]
		total += len(group.controlOrder)
		for _, controlID := range group.controlOrder {
			control := group.controls[controlID]
			roomName := control.RoomID
			if room, ok := c.rooms[control.RoomID]; ok {
				roomName = room.Name
			}
			c.logger.Debug().
				Str("control", control.Name).
				Str("type", control.Type).
				Str("category", group.Name).
				Str("room", roomName).
				Msg("Control")
		}
	}
	c.logger.Debug().Int("controls", total).Msg("Modeled controls (the definition may declare more, unsupported types are skipped)")
}
