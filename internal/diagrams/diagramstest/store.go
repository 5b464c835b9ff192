// Package diagramstest provides an in-memory Store with the same
// semantics as the Postgres repository. Shared by the service, http and
// syncer tests.
package diagramstest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nirmalarya/autograph-sub003/internal/diagrams/domain"
)

type Store struct {
	mu       sync.Mutex
	diagrams map[string]*domain.Diagram
	versions map[string][]domain.Version // diagram id -> ascending version rows
	deleted  map[string]bool
	seq      int
}

func NewStore() *Store {
	return &Store{
		diagrams: map[string]*domain.Diagram{},
		versions: map[string][]domain.Version{},
		deleted:  map[string]bool{},
	}
}

func (s *Store) Create(ctx context.Context, actor string, in domain.CreateInput) (*domain.Diagram, error) {
	if err := domain.ValidateContent(in.Kind, in.CanvasData, in.NoteContent); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	d := &domain.Diagram{
		ID:             domain.NewDiagramID(),
		OwnerID:        actor,
		Kind:           in.Kind,
		Title:          in.Title,
		CanvasData:     in.CanvasData.Clone(),
		NoteContent:    in.NoteContent,
		CurrentVersion: 1,
		SizeBytes:      domain.ContentSize(in.CanvasData, in.NoteContent),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.diagrams[d.ID] = d
	s.versions[d.ID] = []domain.Version{{
		ID:            s.nextVersionID(),
		DiagramID:     d.ID,
		VersionNumber: 1,
		CanvasData:    in.CanvasData.Clone(),
		NoteContent:   in.NoteContent,
		Description:   "Initial version",
		CreatedBy:     actor,
		CreatedAt:     now,
	}}
	return copyDiagram(d), nil
}

func (s *Store) Get(ctx context.Context, actor, id string) (*domain.Diagram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.lookup(actor, id)
	if err != nil {
		return nil, err
	}
	return copyDiagram(d), nil
}

func (s *Store) List(ctx context.Context, actor string) ([]domain.Diagram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.Diagram{}
	for id, d := range s.diagrams {
		if s.deleted[id] || d.OwnerID != actor {
			continue
		}
		c := *d
		c.CanvasData = nil
		c.NoteContent = ""
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *Store) Update(ctx context.Context, actor, id string, patch domain.UpdatePatch) (*domain.Diagram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.lookup(actor, id)
	if err != nil {
		return nil, err
	}
	if patch.ExpectedVersion != nil && *patch.ExpectedVersion != d.CurrentVersion {
		return nil, &domain.VersionConflictError{Expected: *patch.ExpectedVersion, Current: d.CurrentVersion}
	}

	title, canvas, note := d.Title, d.CanvasData, d.NoteContent
	if patch.Title != nil {
		title = *patch.Title
	}
	if patch.CanvasData != nil {
		canvas = patch.CanvasData.Clone()
	}
	if patch.NoteContent != nil {
		note = *patch.NoteContent
	}
	if err := domain.ValidateContent(d.Kind, canvas, note); err != nil {
		return nil, err
	}

	description := ""
	if patch.Description != nil {
		description = *patch.Description
	}

	now := time.Now().UTC()
	d.Title, d.CanvasData, d.NoteContent = title, canvas, note
	d.CurrentVersion++
	d.SizeBytes = domain.ContentSize(canvas, note)
	d.UpdatedAt = now

	s.versions[id] = append(s.versions[id], domain.Version{
		ID:            s.nextVersionID(),
		DiagramID:     id,
		VersionNumber: d.CurrentVersion,
		CanvasData:    canvas.Clone(),
		NoteContent:   note,
		Description:   description,
		CreatedBy:     actor,
		CreatedAt:     now,
	})
	return copyDiagram(d), nil
}

func (s *Store) SoftDelete(ctx context.Context, actor, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookup(actor, id); err != nil {
		return err
	}
	s.deleted[id] = true
	return nil
}

func (s *Store) ListVersions(ctx context.Context, actor, id string) ([]domain.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookup(actor, id); err != nil {
		return nil, err
	}

	out := make([]domain.Version, 0, len(s.versions[id]))
	for _, v := range s.versions[id] {
		v.CanvasData = nil
		v.NoteContent = ""
		out = append(out, v)
	}
	return out, nil
}

func (s *Store) GetVersion(ctx context.Context, actor, id, versionID string) (*domain.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookup(actor, id); err != nil {
		return nil, err
	}
	return s.findVersion(id, func(v domain.Version) bool { return v.ID == versionID })
}

func (s *Store) GetVersionByNumber(ctx context.Context, actor, id string, number int) (*domain.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookup(actor, id); err != nil {
		return nil, err
	}
	return s.findVersion(id, func(v domain.Version) bool { return v.VersionNumber == number })
}

func (s *Store) GetVersionByID(ctx context.Context, diagramID, versionID string) (*domain.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findVersion(diagramID, func(v domain.Version) bool { return v.ID == versionID })
}

func (s *Store) EditVersionMeta(ctx context.Context, actor, id, versionID string, patch domain.VersionMetaPatch) (*domain.Version, error) {
	if patch.Label == nil && patch.Description == nil {
		return nil, fmt.Errorf("%w: empty version meta patch", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookup(actor, id); err != nil {
		return nil, err
	}
	for i := range s.versions[id] {
		if s.versions[id][i].ID != versionID {
			continue
		}
		if patch.Label != nil {
			s.versions[id][i].Label = *patch.Label
		}
		if patch.Description != nil {
			s.versions[id][i].Description = *patch.Description
		}
		v := s.versions[id][i]
		v.CanvasData = v.CanvasData.Clone()
		return &v, nil
	}
	return nil, domain.ErrNotFound
}

func (s *Store) lookup(actor, id string) (*domain.Diagram, error) {
	d, ok := s.diagrams[id]
	if !ok || s.deleted[id] {
		return nil, domain.ErrNotFound
	}
	if d.OwnerID != actor {
		return nil, domain.ErrForbidden
	}
	return d, nil
}

func (s *Store) findVersion(diagramID string, match func(domain.Version) bool) (*domain.Version, error) {
	if _, ok := s.diagrams[diagramID]; !ok || s.deleted[diagramID] {
		return nil, domain.ErrNotFound
	}
	for _, v := range s.versions[diagramID] {
		if match(v) {
			v.CanvasData = v.CanvasData.Clone()
			return &v, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) nextVersionID() string {
	s.seq++
	return fmt.Sprintf("dver-test-%04d", s.seq)
}

func copyDiagram(d *domain.Diagram) *domain.Diagram {
	c := *d
	c.CanvasData = d.CanvasData.Clone()
	return &c
}
