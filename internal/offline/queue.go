package offline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotCached = errors.New("diagram not in cache")
	ErrNoEdit    = errors.New("pending edit not found")
)

type EditType string

const (
	EditCreate EditType = "create"
	EditUpdate EditType = "update"
	EditDelete EditType = "delete"
)

// PendingEdit is one queued mutation made while disconnected. The queue
// is append-only; edits are drained in ascending QueuedAt across the
// whole queue and owned by the sync coordinator once a pass starts.
type PendingEdit struct {
	ID         string          `json:"id"`
	DiagramID  string          `json:"diagram_id"`
	Type       EditType        `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	QueuedAt   time.Time       `json:"queued_at"`
	RetryCount int             `json:"retry_count"`
}

// Enqueue appends an edit. A missing id or timestamp is filled in;
// existing queued edits for the same diagram are never overwritten.
func (s *Store) Enqueue(ctx context.Context, e PendingEdit) (*PendingEdit, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.QueuedAt.IsZero() {
		e.QueuedAt = time.Now().UTC()
	}
	e.RetryCount = 0

	_, err := s.db.ExecContext(ctx, `
INSERT INTO pending_edits (id, diagram_id, edit_type, payload, queued_at, retry_count)
VALUES (?, ?, ?, ?, ?, 0)
`, e.ID, e.DiagramID, string(e.Type), string(e.Payload), e.QueuedAt.UnixNano())
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Pending returns the whole queue in drain order.
func (s *Store) Pending(ctx context.Context) ([]PendingEdit, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, diagram_id, edit_type, payload, queued_at, retry_count
FROM pending_edits
ORDER BY queued_at ASC, id ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []PendingEdit{}
	for rows.Next() {
		var e PendingEdit
		var editType, payload string
		var queuedAt int64
		if err := rows.Scan(&e.ID, &e.DiagramID, &editType, &payload, &queuedAt, &e.RetryCount); err != nil {
			return nil, err
		}
		e.Type = EditType(editType)
		e.Payload = json.RawMessage(payload)
		e.QueuedAt = time.Unix(0, queuedAt).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Remove deletes a drained edit. Reserved for the sync coordinator.
func (s *Store) Remove(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_edits WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoEdit
	}
	return nil
}

// SetRetryCount records a failed attempt. Reserved for the sync
// coordinator.
func (s *Store) SetRetryCount(ctx context.Context, id string, n int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE pending_edits SET retry_count = ? WHERE id = ?`, n, id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNoEdit
	}
	return nil
}
