package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nirmalarya/autograph-sub003/internal/diagrams/diff"
	"github.com/nirmalarya/autograph-sub003/internal/diagrams/domain"
)

// Store is the persistence contract the service orchestrates. The
// Postgres repository implements it in production; tests use the
// in-memory store from the diagramstest package.
type Store interface {
	Create(ctx context.Context, actor string, in domain.CreateInput) (*domain.Diagram, error)
	Get(ctx context.Context, actor, id string) (*domain.Diagram, error)
	List(ctx context.Context, actor string) ([]domain.Diagram, error)
	Update(ctx context.Context, actor, id string, patch domain.UpdatePatch) (*domain.Diagram, error)
	SoftDelete(ctx context.Context, actor, id string) error
	ListVersions(ctx context.Context, actor, id string) ([]domain.Version, error)
	GetVersion(ctx context.Context, actor, id, versionID string) (*domain.Version, error)
	GetVersionByNumber(ctx context.Context, actor, id string, number int) (*domain.Version, error)
	GetVersionByID(ctx context.Context, diagramID, versionID string) (*domain.Version, error)
	EditVersionMeta(ctx context.Context, actor, id, versionID string, patch domain.VersionMetaPatch) (*domain.Version, error)
}

// ShareStore persists share tokens with an expiry.
type ShareStore interface {
	Save(ctx context.Context, link domain.ShareLink) error
	Get(ctx context.Context, token string) (*domain.ShareLink, error)
}

type Service struct {
	store        Store
	shares       ShareStore
	shareBaseURL string
}

func New(store Store, shares ShareStore, shareBaseURL string) *Service {
	return &Service{store: store, shares: shares, shareBaseURL: shareBaseURL}
}

func (s *Service) Create(ctx context.Context, actor string, in domain.CreateInput) (*domain.Diagram, error) {
	if actor == "" {
		return nil, domain.ErrUnauthenticated
	}
	d, err := s.store.Create(ctx, actor, in)
	if err != nil {
		return nil, err
	}
	NewLogger(ctx).Infof("create_diagram", "diagram_id=%s kind=%s", d.ID, d.Kind)
	return d, nil
}

func (s *Service) Get(ctx context.Context, actor, id string) (*domain.Diagram, error) {
	if actor == "" {
		return nil, domain.ErrUnauthenticated
	}
	return s.store.Get(ctx, actor, id)
}

func (s *Service) List(ctx context.Context, actor string) ([]domain.Diagram, error) {
	if actor == "" {
		return nil, domain.ErrUnauthenticated
	}
	return s.store.List(ctx, actor)
}

// Update applies a partial patch as a new version. The caller's
// ExpectedVersion is a courtesy conflict signal; the store serializes
// concurrent writers regardless.
func (s *Service) Update(ctx context.Context, actor, id string, patch domain.UpdatePatch) (*domain.Diagram, error) {
	if actor == "" {
		return nil, domain.ErrUnauthenticated
	}
	if patch.ExpectedVersion != nil && *patch.ExpectedVersion < 1 {
		return nil, fmt.Errorf("%w: expected_version must be >= 1", domain.ErrValidation)
	}

	d, err := s.store.Update(ctx, actor, id, patch)
	if err != nil {
		return nil, err
	}
	NewLogger(ctx).Infof("update_diagram", "diagram_id=%s version=%d", d.ID, d.CurrentVersion)
	return d, nil
}

func (s *Service) Delete(ctx context.Context, actor, id string) error {
	if actor == "" {
		return domain.ErrUnauthenticated
	}
	if err := s.store.SoftDelete(ctx, actor, id); err != nil {
		return err
	}
	NewLogger(ctx).Infof("delete_diagram", "diagram_id=%s", id)
	return nil
}

func (s *Service) ListVersions(ctx context.Context, actor, id string) ([]domain.Version, error) {
	if actor == "" {
		return nil, domain.ErrUnauthenticated
	}
	return s.store.ListVersions(ctx, actor, id)
}

func (s *Service) GetVersion(ctx context.Context, actor, id, versionID string) (*domain.Version, error) {
	if actor == "" {
		return nil, domain.ErrUnauthenticated
	}
	return s.store.GetVersion(ctx, actor, id, versionID)
}

func (s *Service) EditVersionMeta(ctx context.Context, actor, id, versionID string, patch domain.VersionMetaPatch) (*domain.Version, error) {
	if actor == "" {
		return nil, domain.ErrUnauthenticated
	}
	return s.store.EditVersionMeta(ctx, actor, id, versionID, patch)
}

// Compare diffs two versions of one diagram, addressed by version
// number the way the history sidebar asks for them.
func (s *Service) Compare(ctx context.Context, actor, id string, v1, v2 int) (*diff.Comparison, error) {
	if actor == "" {
		return nil, domain.ErrUnauthenticated
	}
	from, err := s.store.GetVersionByNumber(ctx, actor, id, v1)
	if err != nil {
		return nil, err
	}
	to, err := s.store.GetVersionByNumber(ctx, actor, id, v2)
	if err != nil {
		return nil, err
	}
	cmp := diff.Compare(from, to)
	return &cmp, nil
}

// Restore reverts the diagram to a target version without destroying
// history: the current state is snapshotted as a backup version, then
// the target's content is applied as a second version. Both go through
// the same update path as any other write.
func (s *Service) Restore(ctx context.Context, actor, id, versionID string) (*domain.RestoreResult, error) {
	if actor == "" {
		return nil, domain.ErrUnauthenticated
	}

	target, err := s.store.GetVersion(ctx, actor, id, versionID)
	if err != nil {
		return nil, err
	}
	current, err := s.store.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	backupDesc := fmt.Sprintf("Backup before restoring to version %d", target.VersionNumber)
	backupCanvas := current.CanvasData.Clone()
	backupNote := current.NoteContent
	backup, err := s.store.Update(ctx, actor, id, domain.UpdatePatch{
		CanvasData:  &backupCanvas,
		NoteContent: &backupNote,
		Description: &backupDesc,
	})
	if err != nil {
		return nil, fmt.Errorf("backup version: %w", err)
	}

	restoreDesc := fmt.Sprintf("Restored from version %d", target.VersionNumber)
	targetCanvas := target.CanvasData.Clone()
	targetNote := target.NoteContent
	restored, err := s.store.Update(ctx, actor, id, domain.UpdatePatch{
		CanvasData:  &targetCanvas,
		NoteContent: &targetNote,
		Description: &restoreDesc,
	})
	if err != nil {
		return nil, fmt.Errorf("restore version: %w", err)
	}

	NewLogger(ctx).Infof("restore_diagram", "diagram_id=%s target=%d backup=%d current=%d",
		id, target.VersionNumber, backup.CurrentVersion, restored.CurrentVersion)

	return &domain.RestoreResult{
		RestoredToVersion: target.VersionNumber,
		BackupVersion:     backup.CurrentVersion,
		NewCurrentVersion: restored.CurrentVersion,
	}, nil
}

// Share mints a token granting unauthenticated read access to one
// version snapshot until the token expires.
func (s *Service) Share(ctx context.Context, actor, id, versionID string) (string, error) {
	if actor == "" {
		return "", domain.ErrUnauthenticated
	}
	v, err := s.store.GetVersion(ctx, actor, id, versionID)
	if err != nil {
		return "", err
	}

	link := domain.ShareLink{
		Token:         uuid.New().String(),
		DiagramID:     id,
		VersionID:     v.ID,
		VersionNumber: v.VersionNumber,
		CreatedBy:     actor,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.shares.Save(ctx, link); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/shared/%s", s.shareBaseURL, link.Token), nil
}

// ResolveShare returns the snapshot a share token points at. The only
// read that takes no actor.
func (s *Service) ResolveShare(ctx context.Context, token string) (*domain.Version, error) {
	link, err := s.shares.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.store.GetVersionByID(ctx, link.DiagramID, link.VersionID)
}
