package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ShapeRecord is one canvas shape. Fields are whatever the editor put
// there; the only structural requirement is a stable "shape_id".
type ShapeRecord map[string]any

// ShapeID returns the shape's id, or "" if missing/not a string.
func (s ShapeRecord) ShapeID() string {
	id, _ := s["shape_id"].(string)
	return id
}

// CanvasData holds a diagram's shapes keyed by shape id. The wire format
// accepts either a JSON array of shape objects or an object keyed by
// shape id; both normalize to the map. Marshaling always emits the array
// form sorted by shape id, so stored snapshots are byte-stable.
type CanvasData map[string]ShapeRecord

func (c *CanvasData) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = nil
		return nil
	}

	var arr []ShapeRecord
	if err := json.Unmarshal(data, &arr); err == nil {
		out := make(CanvasData, len(arr))
		for i, shape := range arr {
			id := shape.ShapeID()
			if id == "" {
				return fmt.Errorf("canvas_data[%d]: missing shape_id", i)
			}
			if _, dup := out[id]; dup {
				return fmt.Errorf("canvas_data: duplicate shape_id %q", id)
			}
			out[id] = shape
		}
		*c = out
		return nil
	}

	var obj map[string]ShapeRecord
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("canvas_data: expected array or object of shapes")
	}
	out := make(CanvasData, len(obj))
	for id, shape := range obj {
		if id == "" {
			return fmt.Errorf("canvas_data: empty shape id key")
		}
		if shape == nil {
			shape = ShapeRecord{}
		}
		if got := shape.ShapeID(); got == "" {
			shape["shape_id"] = id
		} else if got != id {
			return fmt.Errorf("canvas_data: key %q does not match shape_id %q", id, got)
		}
		out[id] = shape
	}
	*c = out
	return nil
}

func (c CanvasData) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	shapes := make([]ShapeRecord, 0, len(ids))
	for _, id := range ids {
		shapes = append(shapes, c[id])
	}
	return json.Marshal(shapes)
}

// Clone returns a deep copy so callers can mutate snapshots freely.
func (c CanvasData) Clone() CanvasData {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil
	}
	var out CanvasData
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// ValidateContent enforces the kind/content union: canvas diagrams carry
// shapes only, note diagrams carry text only, mixed diagrams may carry
// both.
func ValidateContent(kind Kind, canvas CanvasData, note string) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrValidation, kind)
	}
	switch kind {
	case KindCanvas:
		if note != "" {
			return fmt.Errorf("%w: canvas diagram cannot carry note content", ErrValidation)
		}
	case KindNote:
		if len(canvas) != 0 {
			return fmt.Errorf("%w: note diagram cannot carry canvas data", ErrValidation)
		}
	}
	return nil
}

// ContentSize reports the stored size of a snapshot: serialized canvas
// bytes plus note bytes. Recomputed on every accepted update.
func ContentSize(canvas CanvasData, note string) int64 {
	size := int64(len(note))
	if len(canvas) > 0 {
		if raw, err := json.Marshal(canvas); err == nil {
			size += int64(len(raw))
		}
	}
	return size
}
