// Package diff computes structural differences between two version
// snapshots. It is pure: no storage, no ordering dependence on input.
package diff

import (
	"reflect"
	"sort"

	"github.com/nirmalarya/autograph-sub003/internal/diagrams/domain"
)

// volatileFields are per-client touch timestamps some editors stamp onto
// shapes. They never count as a change.
var volatileFields = map[string]bool{
	"updated_at": true,
	"edited_at":  true,
}

type ShapeEntry struct {
	ShapeID string             `json:"shape_id"`
	Shape   domain.ShapeRecord `json:"shape"`
}

type Modification struct {
	ShapeID       string             `json:"shape_id"`
	ChangedFields []string           `json:"changed_fields"`
	Before        domain.ShapeRecord `json:"before"`
	After         domain.ShapeRecord `json:"after"`
}

type Summary struct {
	TotalChanges  int `json:"total_changes"`
	AddedCount    int `json:"added_count"`
	DeletedCount  int `json:"deleted_count"`
	ModifiedCount int `json:"modified_count"`
}

// Comparison is derived, never persisted.
type Comparison struct {
	Version1      int            `json:"version1"`
	Version2      int            `json:"version2"`
	Additions     []ShapeEntry   `json:"additions"`
	Deletions     []ShapeEntry   `json:"deletions"`
	Modifications []Modification `json:"modifications"`
	NoteChanged   bool           `json:"note_changed"`
	Summary       Summary        `json:"summary"`
}

// Compare diffs two snapshots of the same diagram. Output lists are
// sorted by shape id so the result is deterministic regardless of map
// iteration order.
func Compare(v1, v2 *domain.Version) Comparison {
	cmp := Comparison{
		Version1:      v1.VersionNumber,
		Version2:      v2.VersionNumber,
		Additions:     []ShapeEntry{},
		Deletions:     []ShapeEntry{},
		Modifications: []Modification{},
		NoteChanged:   v1.NoteContent != v2.NoteContent,
	}

	for _, id := range sortedIDs(v2.CanvasData) {
		if _, ok := v1.CanvasData[id]; !ok {
			cmp.Additions = append(cmp.Additions, ShapeEntry{ShapeID: id, Shape: v2.CanvasData[id]})
		}
	}

	for _, id := range sortedIDs(v1.CanvasData) {
		before := v1.CanvasData[id]
		after, ok := v2.CanvasData[id]
		if !ok {
			cmp.Deletions = append(cmp.Deletions, ShapeEntry{ShapeID: id, Shape: before})
			continue
		}
		if changed := changedFields(before, after); len(changed) > 0 {
			cmp.Modifications = append(cmp.Modifications, Modification{
				ShapeID:       id,
				ChangedFields: changed,
				Before:        before,
				After:         after,
			})
		}
	}

	cmp.Summary = Summary{
		AddedCount:    len(cmp.Additions),
		DeletedCount:  len(cmp.Deletions),
		ModifiedCount: len(cmp.Modifications),
	}
	cmp.Summary.TotalChanges = cmp.Summary.AddedCount + cmp.Summary.DeletedCount + cmp.Summary.ModifiedCount
	return cmp
}

// changedFields deep-compares two shapes field by field, skipping
// volatile fields. The result is sorted.
func changedFields(before, after domain.ShapeRecord) []string {
	seen := map[string]bool{}
	changed := []string{}

	for field := range before {
		seen[field] = true
		if volatileFields[field] {
			continue
		}
		bv, av := before[field], after[field]
		if _, ok := after[field]; !ok || !reflect.DeepEqual(bv, av) {
			changed = append(changed, field)
		}
	}
	for field := range after {
		if seen[field] || volatileFields[field] {
			continue
		}
		changed = append(changed, field)
	}

	sort.Strings(changed)
	return changed
}

func sortedIDs(c domain.CanvasData) []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
