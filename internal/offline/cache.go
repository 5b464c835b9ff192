package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// CachedDiagram is a point-in-time mirror of a server diagram, kept for
// reads while disconnected.
type CachedDiagram struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"owner_id"`
	Kind           string          `json:"kind"`
	Title          string          `json:"title"`
	CanvasData     json.RawMessage `json:"canvas_data,omitempty"`
	NoteContent    string          `json:"note_content,omitempty"`
	CurrentVersion int             `json:"current_version"`
	UpdatedAt      time.Time       `json:"updated_at"`
	CachedAt       time.Time       `json:"cached_at"`
}

// SaveDiagram upserts the cache row, but keeps the existing row when the
// incoming updated_at is older than what is already cached.
func (s *Store) SaveDiagram(ctx context.Context, d CachedDiagram) error {
	if d.CachedAt.IsZero() {
		d.CachedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cached_diagrams (id, owner_id, kind, title, canvas_data, note_content, current_version, updated_at, cached_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	owner_id        = excluded.owner_id,
	kind            = excluded.kind,
	title           = excluded.title,
	canvas_data     = excluded.canvas_data,
	note_content    = excluded.note_content,
	current_version = excluded.current_version,
	updated_at      = excluded.updated_at,
	cached_at       = excluded.cached_at
WHERE excluded.updated_at >= cached_diagrams.updated_at
`, d.ID, d.OwnerID, d.Kind, d.Title, nullableText(d.CanvasData), d.NoteContent,
		d.CurrentVersion, d.UpdatedAt.UnixNano(), d.CachedAt.UnixNano())
	return err
}

// GetDiagram is the read-through lookup used when a live fetch is
// unavailable.
func (s *Store) GetDiagram(ctx context.Context, id string) (*CachedDiagram, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, owner_id, kind, title, COALESCE(canvas_data, ''), note_content, current_version, updated_at, cached_at
FROM cached_diagrams WHERE id = ?
`, id)
	return scanCached(row)
}

func (s *Store) ListDiagrams(ctx context.Context) ([]CachedDiagram, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, owner_id, kind, title, COALESCE(canvas_data, ''), note_content, current_version, updated_at, cached_at
FROM cached_diagrams ORDER BY updated_at DESC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []CachedDiagram{}
	for rows.Next() {
		d, err := scanCached(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *Store) DeleteDiagram(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cached_diagrams WHERE id = ?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCached(row rowScanner) (*CachedDiagram, error) {
	var d CachedDiagram
	var canvas string
	var updatedAt, cachedAt int64
	err := row.Scan(&d.ID, &d.OwnerID, &d.Kind, &d.Title, &canvas, &d.NoteContent,
		&d.CurrentVersion, &updatedAt, &cachedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, err
	}
	if canvas != "" {
		d.CanvasData = json.RawMessage(canvas)
	}
	d.UpdatedAt = time.Unix(0, updatedAt).UTC()
	d.CachedAt = time.Unix(0, cachedAt).UTC()
	return &d, nil
}

func nullableText(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
