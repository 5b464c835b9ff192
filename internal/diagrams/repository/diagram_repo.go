package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nirmalarya/autograph-sub003/internal/diagrams/domain"
)

// DiagramRepo is the sole writer of diagram and version rows. Every
// accepted mutation runs inside one transaction that locks the diagram
// row, derives the next version number from the locked value, inserts
// the snapshot and advances the head pointer. Concurrent writers
// serialize on the row lock whether or not they supplied an expected
// version.
type DiagramRepo struct {
	db *pgxpool.Pool
}

func NewDiagramRepo(db *pgxpool.Pool) *DiagramRepo {
	return &DiagramRepo{db: db}
}

func (r *DiagramRepo) Create(ctx context.Context, actor string, in domain.CreateInput) (*domain.Diagram, error) {
	if err := domain.ValidateContent(in.Kind, in.CanvasData, in.NoteContent); err != nil {
		return nil, err
	}

	d := &domain.Diagram{
		ID:             domain.NewDiagramID(),
		OwnerID:        actor,
		Kind:           in.Kind,
		Title:          in.Title,
		CanvasData:     in.CanvasData,
		NoteContent:    in.NoteContent,
		CurrentVersion: 1,
		SizeBytes:      domain.ContentSize(in.CanvasData, in.NoteContent),
	}

	canvasText, err := canvasToText(in.CanvasData)
	if err != nil {
		return nil, err
	}
	verID, err := domain.NewVersionID()
	if err != nil {
		return nil, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
insert into diagrams (id, owner_id, kind, title, canvas_data, note_content, current_version, size_bytes)
values ($1, $2, $3, $4, nullif($5,'')::jsonb, $6, 1, $7)
returning created_at, updated_at
`, d.ID, d.OwnerID, string(d.Kind), d.Title, canvasText, d.NoteContent, d.SizeBytes).
		Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert diagram: %w", err)
	}

	_, err = tx.Exec(ctx, `
insert into diagram_versions (id, diagram_id, version_number, canvas_data, note_content, description, created_by)
values ($1, $2, 1, nullif($3,'')::jsonb, $4, 'Initial version', $5)
`, verID, d.ID, canvasText, d.NoteContent, actor)
	if err != nil {
		return nil, fmt.Errorf("insert initial version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return d, nil
}

func (r *DiagramRepo) Get(ctx context.Context, actor, id string) (*domain.Diagram, error) {
	var d domain.Diagram
	var canvasText string
	err := r.db.QueryRow(ctx, `
select id, owner_id, kind, title, coalesce(canvas_data::text,''), note_content,
       current_version, size_bytes, created_at, updated_at
from diagrams
where id = $1 and deleted_at is null
`, id).Scan(&d.ID, &d.OwnerID, &d.Kind, &d.Title, &canvasText, &d.NoteContent,
		&d.CurrentVersion, &d.SizeBytes, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get diagram: %w", err)
	}
	if d.OwnerID != actor {
		return nil, domain.ErrForbidden
	}
	if d.CanvasData, err = canvasFromText(canvasText); err != nil {
		return nil, err
	}
	return &d, nil
}

// List returns the actor's diagrams, newest first, content omitted.
func (r *DiagramRepo) List(ctx context.Context, actor string) ([]domain.Diagram, error) {
	rows, err := r.db.Query(ctx, `
select id, owner_id, kind, title, current_version, size_bytes, created_at, updated_at
from diagrams
where owner_id = $1 and deleted_at is null
order by updated_at desc
`, actor)
	if err != nil {
		return nil, fmt.Errorf("list diagrams: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Diagram, 0, 16)
	for rows.Next() {
		var d domain.Diagram
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Kind, &d.Title,
			&d.CurrentVersion, &d.SizeBytes, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Update applies the patch under the internal compare-and-swap. A race
// detected during commit (serialization abort or a duplicate version
// number) retries the whole read-patch-write cycle once before
// surfacing ErrTransient.
func (r *DiagramRepo) Update(ctx context.Context, actor, id string, patch domain.UpdatePatch) (*domain.Diagram, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		d, err := r.updateOnce(ctx, actor, id, patch)
		if err == nil {
			return d, nil
		}
		if !isCommitRace(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrTransient, lastErr)
}

func (r *DiagramRepo) updateOnce(ctx context.Context, actor, id string, patch domain.UpdatePatch) (*domain.Diagram, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var d domain.Diagram
	var canvasText string
	err = tx.QueryRow(ctx, `
select id, owner_id, kind, title, coalesce(canvas_data::text,''), note_content,
       current_version, created_at
from diagrams
where id = $1 and deleted_at is null
for update
`, id).Scan(&d.ID, &d.OwnerID, &d.Kind, &d.Title, &canvasText, &d.NoteContent,
		&d.CurrentVersion, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("lock diagram: %w", err)
	}
	if d.OwnerID != actor {
		return nil, domain.ErrForbidden
	}
	if patch.ExpectedVersion != nil && *patch.ExpectedVersion != d.CurrentVersion {
		return nil, &domain.VersionConflictError{Expected: *patch.ExpectedVersion, Current: d.CurrentVersion}
	}

	if d.CanvasData, err = canvasFromText(canvasText); err != nil {
		return nil, err
	}
	if patch.Title != nil {
		d.Title = *patch.Title
	}
	if patch.CanvasData != nil {
		d.CanvasData = *patch.CanvasData
	}
	if patch.NoteContent != nil {
		d.NoteContent = *patch.NoteContent
	}
	if err := domain.ValidateContent(d.Kind, d.CanvasData, d.NoteContent); err != nil {
		return nil, err
	}

	newCanvasText, err := canvasToText(d.CanvasData)
	if err != nil {
		return nil, err
	}
	d.CurrentVersion++
	d.SizeBytes = domain.ContentSize(d.CanvasData, d.NoteContent)

	verID, err := domain.NewVersionID()
	if err != nil {
		return nil, err
	}
	description := ""
	if patch.Description != nil {
		description = *patch.Description
	}

	_, err = tx.Exec(ctx, `
insert into diagram_versions (id, diagram_id, version_number, canvas_data, note_content, description, created_by)
values ($1, $2, $3, nullif($4,'')::jsonb, $5, $6, $7)
`, verID, d.ID, d.CurrentVersion, newCanvasText, d.NoteContent, description, actor)
	if err != nil {
		return nil, fmt.Errorf("insert version: %w", err)
	}

	err = tx.QueryRow(ctx, `
update diagrams
set title = $2,
    canvas_data = nullif($3,'')::jsonb,
    note_content = $4,
    current_version = $5,
    size_bytes = $6,
    updated_at = now()
where id = $1
returning updated_at
`, d.ID, d.Title, newCanvasText, d.NoteContent, d.CurrentVersion, d.SizeBytes).Scan(&d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("advance head: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &d, nil
}

// SoftDelete marks the diagram deleted; the retention worker purges it
// later. Deleted diagrams behave as NotFound everywhere.
func (r *DiagramRepo) SoftDelete(ctx context.Context, actor, id string) error {
	var owner string
	err := r.db.QueryRow(ctx, `
select owner_id from diagrams where id = $1 and deleted_at is null
`, id).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get diagram: %w", err)
	}
	if owner != actor {
		return domain.ErrForbidden
	}

	ct, err := r.db.Exec(ctx, `
update diagrams
set deleted_at = now(), updated_at = now()
where id = $1 and deleted_at is null
`, id)
	if err != nil {
		return fmt.Errorf("soft delete: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListVersions returns version metadata ascending by version_number.
// Snapshots are omitted from the listing.
func (r *DiagramRepo) ListVersions(ctx context.Context, actor, id string) ([]domain.Version, error) {
	if _, err := r.Get(ctx, actor, id); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
select id, diagram_id, version_number, description, label, created_by, thumbnail_url, created_at
from diagram_versions
where diagram_id = $1
order by version_number asc
`, id)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Version, 0, 16)
	for rows.Next() {
		var v domain.Version
		if err := rows.Scan(&v.ID, &v.DiagramID, &v.VersionNumber, &v.Description,
			&v.Label, &v.CreatedBy, &v.ThumbnailURL, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *DiagramRepo) GetVersion(ctx context.Context, actor, id, versionID string) (*domain.Version, error) {
	if _, err := r.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return r.GetVersionByID(ctx, id, versionID)
}

func (r *DiagramRepo) GetVersionByNumber(ctx context.Context, actor, id string, number int) (*domain.Version, error) {
	if _, err := r.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return r.scanVersion(ctx, `
select id, diagram_id, version_number, coalesce(canvas_data::text,''), note_content,
       description, label, created_by, thumbnail_url, created_at
from diagram_versions
where diagram_id = $1 and version_number = $2
`, id, number)
}

// GetVersionByID reads a full version snapshot without an ownership
// check. Used by the share resolver; every authenticated path goes
// through GetVersion.
func (r *DiagramRepo) GetVersionByID(ctx context.Context, diagramID, versionID string) (*domain.Version, error) {
	return r.scanVersion(ctx, `
select id, diagram_id, version_number, coalesce(canvas_data::text,''), note_content,
       description, label, created_by, thumbnail_url, created_at
from diagram_versions
where diagram_id = $1 and id = $2
`, diagramID, versionID)
}

func (r *DiagramRepo) scanVersion(ctx context.Context, query string, args ...any) (*domain.Version, error) {
	var v domain.Version
	var canvasText string
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&v.ID, &v.DiagramID, &v.VersionNumber, &canvasText, &v.NoteContent,
		&v.Description, &v.Label, &v.CreatedBy, &v.ThumbnailURL, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get version: %w", err)
	}
	if v.CanvasData, err = canvasFromText(canvasText); err != nil {
		return nil, err
	}
	return &v, nil
}

// EditVersionMeta updates label/description only. The snapshot and
// version_number never change here.
func (r *DiagramRepo) EditVersionMeta(ctx context.Context, actor, id, versionID string, patch domain.VersionMetaPatch) (*domain.Version, error) {
	if patch.Label == nil && patch.Description == nil {
		return nil, fmt.Errorf("%w: empty version meta patch", domain.ErrValidation)
	}
	if _, err := r.Get(ctx, actor, id); err != nil {
		return nil, err
	}

	return r.scanVersion(ctx, `
update diagram_versions
set label = coalesce($3, label),
    description = coalesce($4, description)
where diagram_id = $1 and id = $2
returning id, diagram_id, version_number, coalesce(canvas_data::text,''), note_content,
          description, label, created_by, thumbnail_url, created_at
`, id, versionID, patch.Label, patch.Description)
}

// isCommitRace reports whether the error is a serialization abort
// (40001) or a duplicate (diagram_id, version_number) insert (23505),
// i.e. another writer won the race between our read and commit.
func isCommitRace(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "23505"
	}
	return false
}

func canvasToText(c domain.CanvasData) (string, error) {
	if len(c) == 0 {
		return "", nil
	}
	raw, err := c.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal canvas: %w", err)
	}
	return string(raw), nil
}

func canvasFromText(text string) (domain.CanvasData, error) {
	if text == "" {
		return nil, nil
	}
	var c domain.CanvasData
	if err := c.UnmarshalJSON([]byte(text)); err != nil {
		return nil, fmt.Errorf("unmarshal canvas: %w", err)
	}
	return c, nil
}
