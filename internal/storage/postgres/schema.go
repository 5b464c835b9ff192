package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is the versioning engine's DDL. Statements are idempotent and
// applied inside a single transaction.
var schema = []string{
	`create table if not exists diagrams (
		id              text primary key,
		owner_id        text not null,
		kind            text not null,
		title           text not null default '',
		canvas_data     jsonb,
		note_content    text not null default '',
		current_version int not null default 1,
		size_bytes      bigint not null default 0,
		created_at      timestamptz not null default now(),
		updated_at      timestamptz not null default now(),
		deleted_at      timestamptz
	);`,
	`create index if not exists idx_diagrams_owner
		on diagrams (owner_id, updated_at desc);`,
	`create table if not exists diagram_versions (
		id             text primary key,
		diagram_id     text not null references diagrams(id) on delete cascade,
		version_number int not null,
		canvas_data    jsonb,
		note_content   text not null default '',
		description    text not null default '',
		label          text not null default '',
		created_by     text not null,
		thumbnail_url  text not null default '',
		created_at     timestamptz not null default now(),
		unique (diagram_id, version_number)
	);`,
}

// ApplySchema creates the tables if they do not exist yet. Safe to run
// on every boot.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("schema begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, stmt := range schema {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema apply: %w", err)
		}
	}
	return tx.Commit(ctx)
}
