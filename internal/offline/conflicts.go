package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Conflict records an edit the server rejected with a version conflict.
// The edit is evicted from the active queue (server wins, never
// retried) but kept here for manual resolution instead of vanishing.
type Conflict struct {
	ID         string          `json:"id"`
	EditID     string          `json:"edit_id"`
	DiagramID  string          `json:"diagram_id"`
	Type       EditType        `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Detail     string          `json:"detail"`
	DetectedAt time.Time       `json:"detected_at"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
}

func (s *Store) RecordConflict(ctx context.Context, edit PendingEdit, detail string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sync_conflicts (id, edit_id, diagram_id, edit_type, payload, detail, detected_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, uuid.New().String(), edit.ID, edit.DiagramID, string(edit.Type), string(edit.Payload),
		detail, time.Now().UTC().UnixNano())
	return err
}

// ListConflicts returns unresolved conflicts, oldest first.
func (s *Store) ListConflicts(ctx context.Context) ([]Conflict, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, edit_id, diagram_id, edit_type, payload, detail, detected_at, resolved_at
FROM sync_conflicts
WHERE resolved_at IS NULL
ORDER BY detected_at ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Conflict{}
	for rows.Next() {
		var c Conflict
		var editType, payload string
		var detectedAt int64
		var resolvedAt sql.NullInt64
		if err := rows.Scan(&c.ID, &c.EditID, &c.DiagramID, &editType, &payload,
			&c.Detail, &detectedAt, &resolvedAt); err != nil {
			return nil, err
		}
		c.Type = EditType(editType)
		c.Payload = json.RawMessage(payload)
		c.DetectedAt = time.Unix(0, detectedAt).UTC()
		if resolvedAt.Valid {
			t := time.Unix(0, resolvedAt.Int64).UTC()
			c.ResolvedAt = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ResolveConflict marks a ledger entry as handled by the user.
func (s *Store) ResolveConflict(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE sync_conflicts SET resolved_at = ? WHERE id = ? AND resolved_at IS NULL
`, time.Now().UTC().UnixNano(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoEdit
	}
	return nil
}
