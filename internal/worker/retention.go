// Package worker holds the scheduled maintenance jobs.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Retention permanently deletes soft-deleted diagrams once they have
// been in the trash longer than the configured window. Version rows go
// with the diagram through the FK cascade. History of live diagrams is
// never trimmed.
type Retention struct {
	db     *pgxpool.Pool
	window time.Duration
}

func NewRetention(db *pgxpool.Pool, window time.Duration) *Retention {
	return &Retention{db: db, window: window}
}

// Sweep purges everything whose deleted_at is older than the window and
// reports the purge count.
func (r *Retention) Sweep(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-r.window)
	ct, err := r.db.Exec(ctx, `
delete from diagrams
where deleted_at is not null and deleted_at < $1
`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention sweep: %w", err)
	}
	return ct.RowsAffected(), nil
}
