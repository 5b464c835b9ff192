package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/nirmalarya/autograph-sub003/internal/offline"
)

// State of the coordinator's task.
type State int32

const (
	StateIdle State = iota
	StateSyncing
	StateBackoff
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSyncing:
		return "syncing"
	case StateBackoff:
		return "backoff"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

var ErrSyncInProgress = errors.New("sync pass already running")

const maxAttempts = 3

// SyncError is an advisory entry in the bounded error journal. The
// embedding UI polls it; sync never aborts the daemon.
type SyncError struct {
	EditID    string    `json:"edit_id,omitempty"`
	DiagramID string    `json:"diagram_id,omitempty"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

const errorJournalCap = 64

type Config struct {
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	RatePerSec     float64
}

// Coordinator drains the pending-edit queue strictly FIFO. At most one
// pass runs at a time; overlapping triggers are rejected, not queued.
type Coordinator struct {
	store   *offline.Store
	client  *Client
	limiter *rate.Limiter

	backoffInitial time.Duration
	backoffMax     time.Duration

	state atomic.Int32

	mu      sync.Mutex
	backoff time.Duration
	timer   *time.Timer
	errs    []SyncError
	cache   []offline.CachedDiagram
}

func NewCoordinator(store *offline.Store, client *Client, cfg Config) *Coordinator {
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 30 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 8
	}
	return &Coordinator{
		store:          store,
		client:         client,
		limiter:        rate.NewLimiter(rate.Limit(cfg.RatePerSec), int(cfg.RatePerSec)),
		backoffInitial: cfg.BackoffInitial,
		backoffMax:     cfg.BackoffMax,
	}
}

func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Errors returns a copy of the error journal.
func (c *Coordinator) Errors() []SyncError {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SyncError, len(c.errs))
	copy(out, c.errs)
	return out
}

// Cached returns the in-memory snapshot refreshed after each pass.
func (c *Coordinator) Cached() []offline.CachedDiagram {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]offline.CachedDiagram, len(c.cache))
	copy(out, c.cache)
	return out
}

// Close stops the owned backoff timer. An in-flight pass is not
// cancelled; callers cancel via the context they passed to TriggerSync.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// TriggerSync runs one synchronous pass. It returns ErrSyncInProgress
// when another pass holds the guard; every other outcome is reflected
// in State and the error journal.
func (c *Coordinator) TriggerSync(ctx context.Context) error {
	for {
		cur := c.state.Load()
		if State(cur) == StateSyncing {
			return ErrSyncInProgress
		}
		if c.state.CompareAndSwap(cur, int32(StateSyncing)) {
			break
		}
	}
	c.stopTimer()

	next := c.runPass(ctx)
	c.state.Store(int32(next))

	switch next {
	case StateBackoff:
		c.armBackoff()
	case StateIdle:
		c.resetBackoff()
	}
	return nil
}

// runPass drains the queue in ascending queued_at order. A transient
// failure stops the pass so later edits never overtake the failed one;
// eviction outcomes (conflict, permanent rejection, retry cap) keep the
// pass going.
func (c *Coordinator) runPass(ctx context.Context) State {
	edits, err := c.store.Pending(ctx)
	if err != nil {
		c.record(SyncError{Message: fmt.Sprintf("read queue: %v", err), At: time.Now().UTC()})
		return StateFailed
	}

	next := StateIdle
	for _, edit := range edits {
		if err := c.limiter.Wait(ctx); err != nil {
			next = StateBackoff
			break
		}

		err := c.submit(ctx, edit)
		if err == nil {
			if err := c.store.Remove(ctx, edit.ID); err != nil && !errors.Is(err, offline.ErrNoEdit) {
				c.record(SyncError{EditID: edit.ID, Message: fmt.Sprintf("dequeue: %v", err), At: time.Now().UTC()})
				return StateFailed
			}
			continue
		}

		var conflict *ConflictError
		var request *RequestError
		switch {
		case errors.As(err, &conflict):
			// Server wins: evict, but keep the edit in the ledger for
			// manual resolution.
			if lerr := c.store.RecordConflict(ctx, edit, conflict.Detail); lerr != nil {
				c.record(SyncError{EditID: edit.ID, Message: fmt.Sprintf("record conflict: %v", lerr), At: time.Now().UTC()})
				return StateFailed
			}
			if lerr := c.store.Remove(ctx, edit.ID); lerr != nil && !errors.Is(lerr, offline.ErrNoEdit) {
				return StateFailed
			}
			c.record(SyncError{EditID: edit.ID, DiagramID: edit.DiagramID, Message: conflict.Detail, At: time.Now().UTC()})

		case errors.As(err, &request):
			if lerr := c.store.Remove(ctx, edit.ID); lerr != nil && !errors.Is(lerr, offline.ErrNoEdit) {
				return StateFailed
			}
			c.record(SyncError{EditID: edit.ID, DiagramID: edit.DiagramID, Message: err.Error(), At: time.Now().UTC()})

		case IsTransient(err):
			attempts := edit.RetryCount + 1
			if attempts >= maxAttempts {
				if lerr := c.store.Remove(ctx, edit.ID); lerr != nil && !errors.Is(lerr, offline.ErrNoEdit) {
					return StateFailed
				}
				c.record(SyncError{EditID: edit.ID, DiagramID: edit.DiagramID,
					Message: fmt.Sprintf("dropped after %d failed attempts: %v", attempts, err), At: time.Now().UTC()})
				continue
			}
			if lerr := c.store.SetRetryCount(ctx, edit.ID, attempts); lerr != nil {
				return StateFailed
			}
			c.record(SyncError{EditID: edit.ID, DiagramID: edit.DiagramID, Message: err.Error(), At: time.Now().UTC()})
			next = StateBackoff

		default:
			if lerr := c.store.Remove(ctx, edit.ID); lerr != nil && !errors.Is(lerr, offline.ErrNoEdit) {
				return StateFailed
			}
			c.record(SyncError{EditID: edit.ID, DiagramID: edit.DiagramID, Message: err.Error(), At: time.Now().UTC()})
		}

		if next == StateBackoff {
			break
		}
	}

	c.refreshCache(ctx)
	return next
}

func (c *Coordinator) submit(ctx context.Context, edit offline.PendingEdit) error {
	switch edit.Type {
	case offline.EditCreate:
		d, err := c.client.CreateDiagram(ctx, edit.Payload)
		if err != nil {
			return err
		}
		return c.cacheServerCopy(ctx, d)
	case offline.EditUpdate:
		d, err := c.client.UpdateDiagram(ctx, edit.DiagramID, edit.Payload)
		if err != nil {
			return err
		}
		return c.cacheServerCopy(ctx, d)
	case offline.EditDelete:
		if err := c.client.DeleteDiagram(ctx, edit.DiagramID); err != nil {
			return err
		}
		return c.store.DeleteDiagram(ctx, edit.DiagramID)
	default:
		return &RequestError{StatusCode: 0, Body: fmt.Sprintf("unknown edit type %q", edit.Type)}
	}
}

func (c *Coordinator) cacheServerCopy(ctx context.Context, d *Diagram) error {
	if d == nil {
		return nil
	}
	return c.store.SaveDiagram(ctx, offline.CachedDiagram{
		ID:             d.ID,
		OwnerID:        d.OwnerID,
		Kind:           d.Kind,
		Title:          d.Title,
		CanvasData:     d.CanvasData,
		NoteContent:    d.NoteContent,
		CurrentVersion: d.CurrentVersion,
		UpdatedAt:      d.UpdatedAt,
	})
}

func (c *Coordinator) refreshCache(ctx context.Context) {
	diagrams, err := c.store.ListDiagrams(ctx)
	if err != nil {
		c.record(SyncError{Message: fmt.Sprintf("refresh cache: %v", err), At: time.Now().UTC()})
		return
	}
	c.mu.Lock()
	c.cache = diagrams
	c.mu.Unlock()
}

func (c *Coordinator) record(e SyncError) {
	log.Printf("[warn] operation=sync edit_id=%s diagram_id=%s message=%q", e.EditID, e.DiagramID, e.Message)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, e)
	if len(c.errs) > errorJournalCap {
		c.errs = c.errs[len(c.errs)-errorJournalCap:]
	}
}

// armBackoff schedules the next automatic pass on the single owned
// timer, doubling the delay up to the cap.
func (c *Coordinator) armBackoff() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backoff == 0 {
		c.backoff = c.backoffInitial
	}
	delay := c.backoff
	c.backoff *= 2
	if c.backoff > c.backoffMax {
		c.backoff = c.backoffMax
	}
	c.timer = time.AfterFunc(delay, func() {
		_ = c.TriggerSync(context.Background())
	})
}

func (c *Coordinator) resetBackoff() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backoff = 0
}

func (c *Coordinator) stopTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
