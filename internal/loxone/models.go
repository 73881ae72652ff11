package loxone

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Control types exposed by the miniserver that this adapter can actuate.
const (
	TypeSwitch          = "Switch"
	TypeTimedSwitch     = "TimedSwitch"
	TypeJalousie        = "Jalousie"
	TypeLightController = "LightController"
)

// MSInfo carries descriptive metadata from the structure definition.
// It is used for diagnostics only, never for resolution.
type MSInfo struct {
	LanguageCode string `json:"languageCode"`
	Location     string `json:"location"`
	RoomTitle    string `json:"roomTitle"`
}

// RoomEntry is a raw room from the "rooms" block. The canonical room id is
// the document key, not the embedded uuid.
type RoomEntry struct {
	Name string `json:"name"`
	UUID string `json:"uuid"`
}

// CategoryEntry is a raw category from the "cats" block.
type CategoryEntry struct {
	Name string `json:"name"`
	UUID string `json:"uuid"`
	Type string `json:"type"`
}

// ControlEntry is a raw control from the "controls" block. Which fields are
// populated depends on the declared type; composite controls nest their
// children under subControls.
type ControlEntry struct {
	Name        string                    `json:"name"`
	Type        string                    `json:"type"`
	Cat         string                    `json:"cat"`
	Room        string                    `json:"room"`
	UUIDAction  string                    `json:"uuidAction"`
	SubControls *OrderedMap[ControlEntry] `json:"subControls"`
}

// StructureFile is the decoded Loxapp3.json document. Pointer fields
// distinguish an absent top-level block from an empty one.
type StructureFile struct {
	MSInfo   *MSInfo                    `json:"msInfo"`
	Rooms    *OrderedMap[RoomEntry]     `json:"rooms"`
	Cats     *OrderedMap[CategoryEntry] `json:"cats"`
	Controls *OrderedMap[ControlEntry]  `json:"controls"`
}

// OrderedMap is a JSON object decoded with its key order preserved. The
// structure definition's lookup semantics are defined in document order, which
// a plain map would lose.
type OrderedMap[T any] struct {
	keys  []string
	items map[string]T
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *OrderedMap[T]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	m.keys = nil
	m.items = make(map[string]T)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var value T
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decoding entry %q: %w", key, err)
		}
		if _, dup := m.items[key]; !dup {
			m.keys = append(m.keys, key)
		}
		m.items[key] = value
	}

	// consume the closing brace
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// MarshalJSON implements json.Marshaler, writing entries in document order.
func (m *OrderedMap[T]) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, key := range m.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(m.items[key])
		if err != nil {
			return nil, err
		}
		buf = append(buf, k...)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	return append(buf, '}'), nil
}

// Keys returns the keys in document order. The returned slice is shared, not
// a copy.
func (m *OrderedMap[T]) Keys() []string {
	if m == nil {
		return nil
	}
	return m.keys
}

// Get returns the entry for key.
func (m *OrderedMap[T]) Get(key string) (T, bool) {
	if m == nil {
		var zero T
		return zero, false
	}
	v, ok := m.items[key]
	return v, ok
}

// Len returns the number of entries.
func (m *OrderedMap[T]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}
