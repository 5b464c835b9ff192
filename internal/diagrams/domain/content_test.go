package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanvasDataUnmarshal(t *testing.T) {
	t.Run("accepts array of shapes", func(t *testing.T) {
		var c CanvasData
		err := json.Unmarshal([]byte(`[{"shape_id":"s1","type":"rect"},{"shape_id":"s2","type":"arrow"}]`), &c)
		require.NoError(t, err)
		require.Len(t, c, 2)
		assert.Equal(t, "rect", c["s1"]["type"])
		assert.Equal(t, "arrow", c["s2"]["type"])
	})

	t.Run("accepts object keyed by shape id", func(t *testing.T) {
		var c CanvasData
		err := json.Unmarshal([]byte(`{"s1":{"type":"rect"},"s2":{"shape_id":"s2","type":"arrow"}}`), &c)
		require.NoError(t, err)
		require.Len(t, c, 2)
		assert.Equal(t, "s1", c["s1"].ShapeID())
		assert.Equal(t, "s2", c["s2"].ShapeID())
	})

	t.Run("rejects missing shape_id in array form", func(t *testing.T) {
		var c CanvasData
		err := json.Unmarshal([]byte(`[{"type":"rect"}]`), &c)
		assert.Error(t, err)
	})

	t.Run("rejects duplicate shape_id", func(t *testing.T) {
		var c CanvasData
		err := json.Unmarshal([]byte(`[{"shape_id":"s1"},{"shape_id":"s1"}]`), &c)
		assert.Error(t, err)
	})

	t.Run("rejects mismatched key and shape_id", func(t *testing.T) {
		var c CanvasData
		err := json.Unmarshal([]byte(`{"s1":{"shape_id":"s2"}}`), &c)
		assert.Error(t, err)
	})
}

func TestCanvasDataMarshalIsByteStable(t *testing.T) {
	var a, b CanvasData
	require.NoError(t, json.Unmarshal([]byte(`[{"shape_id":"s2","x":1},{"shape_id":"s1","x":2}]`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"s1":{"shape_id":"s1","x":2},"s2":{"shape_id":"s2","x":1}}`), &b))

	rawA, err := json.Marshal(a)
	require.NoError(t, err)
	rawB, err := json.Marshal(b)
	require.NoError(t, err)

	// Same shapes, regardless of wire form or insertion order, always
	// serialize to the same bytes: the array form sorted by shape id.
	assert.Equal(t, string(rawA), string(rawB))
	assert.JSONEq(t, `[{"shape_id":"s1","x":2},{"shape_id":"s2","x":1}]`, string(rawA))
}

func TestValidateContent(t *testing.T) {
	shapes := CanvasData{"s1": ShapeRecord{"shape_id": "s1"}}

	tests := []struct {
		name    string
		kind    Kind
		canvas  CanvasData
		note    string
		wantErr bool
	}{
		{"canvas with shapes", KindCanvas, shapes, "", false},
		{"canvas with note", KindCanvas, shapes, "text", true},
		{"note with text", KindNote, nil, "text", false},
		{"note with shapes", KindNote, shapes, "", true},
		{"mixed with both", KindMixed, shapes, "text", false},
		{"unknown kind", Kind("sketch"), nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateContent(tt.kind, tt.canvas, tt.note)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestContentSize(t *testing.T) {
	assert.Equal(t, int64(4), ContentSize(nil, "note"))

	c := CanvasData{"s1": ShapeRecord{"shape_id": "s1"}}
	raw, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, int64(len(raw))+4, ContentSize(c, "note"))
}
