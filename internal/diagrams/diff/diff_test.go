package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nirmalarya/autograph-sub003/internal/diagrams/domain"
)

func version(n int, shapes domain.CanvasData, note string) *domain.Version {
	return &domain.Version{
		DiagramID:     "d1",
		VersionNumber: n,
		CanvasData:    shapes,
		NoteContent:   note,
	}
}

func shape(id string, fields map[string]any) domain.ShapeRecord {
	s := domain.ShapeRecord{"shape_id": id}
	for k, v := range fields {
		s[k] = v
	}
	return s
}

func TestCompareIdentity(t *testing.T) {
	v := version(3, domain.CanvasData{
		"s1": shape("s1", map[string]any{"type": "rect", "x": 1.0}),
		"s2": shape("s2", map[string]any{"type": "arrow"}),
	}, "hello")

	cmp := Compare(v, v)
	assert.Zero(t, cmp.Summary.TotalChanges)
	assert.Empty(t, cmp.Additions)
	assert.Empty(t, cmp.Deletions)
	assert.Empty(t, cmp.Modifications)
	assert.False(t, cmp.NoteChanged)
}

func TestCompareSymmetry(t *testing.T) {
	v1 := version(1, domain.CanvasData{
		"s1": shape("s1", map[string]any{"type": "rect"}),
		"s2": shape("s2", map[string]any{"type": "arrow"}),
	}, "")
	v2 := version(2, domain.CanvasData{
		"s2": shape("s2", map[string]any{"type": "arrow"}),
		"s3": shape("s3", map[string]any{"type": "text"}),
	}, "")

	forward := Compare(v1, v2)
	backward := Compare(v2, v1)

	ids := func(entries []ShapeEntry) []string {
		out := make([]string, len(entries))
		for i, e := range entries {
			out[i] = e.ShapeID
		}
		return out
	}

	assert.Equal(t, ids(forward.Additions), ids(backward.Deletions))
	assert.Equal(t, ids(forward.Deletions), ids(backward.Additions))
	assert.Equal(t, []string{"s3"}, ids(forward.Additions))
	assert.Equal(t, []string{"s1"}, ids(forward.Deletions))
}

func TestCompareModifications(t *testing.T) {
	v1 := version(1, domain.CanvasData{
		"s1": shape("s1", map[string]any{"type": "rect", "x": 1.0, "color": "red"}),
	}, "before")
	v2 := version(2, domain.CanvasData{
		"s1": shape("s1", map[string]any{"type": "rect", "x": 2.0, "label": "box"}),
	}, "after")

	cmp := Compare(v1, v2)
	require.Len(t, cmp.Modifications, 1)

	mod := cmp.Modifications[0]
	assert.Equal(t, "s1", mod.ShapeID)
	// Sorted union of differing fields: color removed, label added, x changed.
	assert.Equal(t, []string{"color", "label", "x"}, mod.ChangedFields)
	assert.Equal(t, 1.0, mod.Before["x"])
	assert.Equal(t, 2.0, mod.After["x"])

	assert.True(t, cmp.NoteChanged)
	assert.Equal(t, Summary{TotalChanges: 1, ModifiedCount: 1}, cmp.Summary)
}

func TestCompareIgnoresVolatileFields(t *testing.T) {
	v1 := version(1, domain.CanvasData{
		"s1": shape("s1", map[string]any{"type": "rect", "updated_at": "2026-01-01T00:00:00Z"}),
	}, "")
	v2 := version(2, domain.CanvasData{
		"s1": shape("s1", map[string]any{"type": "rect", "updated_at": "2026-02-02T00:00:00Z", "edited_at": "now"}),
	}, "")

	cmp := Compare(v1, v2)
	assert.Zero(t, cmp.Summary.TotalChanges)
}

func TestCompareNoteOnly(t *testing.T) {
	v1 := version(1, nil, "a")
	v2 := version(2, nil, "a ") // whitespace-sensitive

	cmp := Compare(v1, v2)
	assert.True(t, cmp.NoteChanged)
	assert.Zero(t, cmp.Summary.TotalChanges)
}

func TestCompareDeterministicOrder(t *testing.T) {
	big := domain.CanvasData{}
	for _, id := range []string{"z9", "a1", "m5", "b2"} {
		big[id] = shape(id, map[string]any{"type": "rect"})
	}
	cmp := Compare(version(1, nil, ""), version(2, big, ""))

	require.Len(t, cmp.Additions, 4)
	assert.Equal(t, "a1", cmp.Additions[0].ShapeID)
	assert.Equal(t, "b2", cmp.Additions[1].ShapeID)
	assert.Equal(t, "m5", cmp.Additions[2].ShapeID)
	assert.Equal(t, "z9", cmp.Additions[3].ShapeID)
}
