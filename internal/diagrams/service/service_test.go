package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nirmalarya/autograph-sub003/internal/diagrams/diagramstest"
	"github.com/nirmalarya/autograph-sub003/internal/diagrams/domain"
)

type fakeShareStore struct {
	mu    sync.Mutex
	links map[string]domain.ShareLink
}

func newFakeShareStore() *fakeShareStore {
	return &fakeShareStore{links: map[string]domain.ShareLink{}}
}

func (f *fakeShareStore) Save(ctx context.Context, link domain.ShareLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[link.Token] = link
	return nil
}

func (f *fakeShareStore) Get(ctx context.Context, token string) (*domain.ShareLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.links[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &link, nil
}

func newTestService() *Service {
	return New(diagramstest.NewStore(), newFakeShareStore(), "http://localhost:8080")
}

func shapes(ids ...string) domain.CanvasData {
	c := domain.CanvasData{}
	for _, id := range ids {
		c[id] = domain.ShapeRecord{"shape_id": id, "type": "rect"}
	}
	return c
}

func intp(n int) *int { return &n }

func strp(s string) *string { return &s }

func canvasp(c domain.CanvasData) *domain.CanvasData { return &c }

func TestCreateStartsAtVersionOne(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	d, err := svc.Create(ctx, "alice", domain.CreateInput{Kind: domain.KindCanvas, Title: "arch"})
	require.NoError(t, err)
	assert.Equal(t, 1, d.CurrentVersion)

	versions, err := svc.ListVersions(ctx, "alice", d.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].VersionNumber)
	assert.Equal(t, "Initial version", versions[0].Description)
}

func TestCreateRejectsInvalidContentUnion(t *testing.T) {
	svc := newTestService()
	_, err := svc.Create(context.Background(), "alice", domain.CreateInput{
		Kind:        domain.KindCanvas,
		NoteContent: "notes do not belong here",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpdateVersionsAreMonotonic(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	d, err := svc.Create(ctx, "alice", domain.CreateInput{Kind: domain.KindNote, NoteContent: "v1"})
	require.NoError(t, err)

	const updates = 5
	for i := 0; i < updates; i++ {
		_, err := svc.Update(ctx, "alice", d.ID, domain.UpdatePatch{NoteContent: strp("edit")})
		require.NoError(t, err)
	}

	versions, err := svc.ListVersions(ctx, "alice", d.ID)
	require.NoError(t, err)
	require.Len(t, versions, updates+1)
	for i, v := range versions {
		assert.Equal(t, i+1, v.VersionNumber, "no gaps or duplicates")
	}
}

func TestUpdateConcurrentWritersSerialize(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	d, err := svc.Create(ctx, "alice", domain.CreateInput{Kind: domain.KindNote, NoteContent: "v1"})
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Update(ctx, "alice", d.ID, domain.UpdatePatch{NoteContent: strp("concurrent")})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	versions, err := svc.ListVersions(ctx, "alice", d.ID)
	require.NoError(t, err)
	require.Len(t, versions, writers+1)
	for i, v := range versions {
		assert.Equal(t, i+1, v.VersionNumber)
	}
}

func TestUpdateConflictNeverMutates(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	d, err := svc.Create(ctx, "alice", domain.CreateInput{
		Kind: domain.KindMixed, CanvasData: shapes("s1"), NoteContent: "original",
	})
	require.NoError(t, err)

	_, err = svc.Update(ctx, "alice", d.ID, domain.UpdatePatch{
		NoteContent:     strp("clobbered"),
		ExpectedVersion: intp(7),
	})
	require.Error(t, err)

	var conflict *domain.VersionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 7, conflict.Expected)
	assert.Equal(t, 1, conflict.Current)

	after, err := svc.Get(ctx, "alice", d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.CurrentVersion)
	assert.Equal(t, "original", after.NoteContent)

	wantCanvas, _ := json.Marshal(d.CanvasData)
	gotCanvas, _ := json.Marshal(after.CanvasData)
	assert.Equal(t, string(wantCanvas), string(gotCanvas))
}

func TestUpdateValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	d, err := svc.Create(ctx, "alice", domain.CreateInput{Kind: domain.KindNote})
	require.NoError(t, err)

	t.Run("expected_version below one", func(t *testing.T) {
		_, err := svc.Update(ctx, "alice", d.ID, domain.UpdatePatch{
			NoteContent: strp("x"), ExpectedVersion: intp(0),
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("patch breaking the content union", func(t *testing.T) {
		_, err := svc.Update(ctx, "alice", d.ID, domain.UpdatePatch{CanvasData: canvasp(shapes("s1"))})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("missing actor", func(t *testing.T) {
		_, err := svc.Update(ctx, "", d.ID, domain.UpdatePatch{NoteContent: strp("x")})
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	})

	t.Run("wrong owner", func(t *testing.T) {
		_, err := svc.Update(ctx, "mallory", d.ID, domain.UpdatePatch{NoteContent: strp("x")})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}

// The optimistic-locking walkthrough: two clients read v2, one wins,
// the loser refetches and succeeds against the advanced version.
func TestOptimisticLockingScenario(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	d, err := svc.Create(ctx, "alice", domain.CreateInput{Kind: domain.KindCanvas, Title: "D"})
	require.NoError(t, err)
	assert.Equal(t, 1, d.CurrentVersion)

	d, err = svc.Update(ctx, "alice", d.ID, domain.UpdatePatch{CanvasData: canvasp(shapes("S1"))})
	require.NoError(t, err)
	assert.Equal(t, 2, d.CurrentVersion)

	versions, err := svc.ListVersions(ctx, "alice", d.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 2)

	// Both clients observed v2; A commits first.
	_, err = svc.Update(ctx, "alice", d.ID, domain.UpdatePatch{
		CanvasData: canvasp(shapes("S1", "S2")), ExpectedVersion: intp(2),
	})
	require.NoError(t, err)

	// B's write against the stale version is rejected without mutation.
	_, err = svc.Update(ctx, "alice", d.ID, domain.UpdatePatch{
		CanvasData: canvasp(shapes("S1", "S3")), ExpectedVersion: intp(2),
	})
	var conflict *domain.VersionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Contains(t, conflict.Detail(), "Expected version 2, but current version is 3")

	// B refetches and retries.
	fresh, err := svc.Get(ctx, "alice", d.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, fresh.CurrentVersion)

	final, err := svc.Update(ctx, "alice", d.ID, domain.UpdatePatch{
		CanvasData: canvasp(shapes("S1", "S2", "S3")), ExpectedVersion: intp(3),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, final.CurrentVersion)
}

func TestRestoreFidelity(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	d, err := svc.Create(ctx, "alice", domain.CreateInput{
		Kind: domain.KindMixed, CanvasData: shapes("s1"), NoteContent: "first",
	})
	require.NoError(t, err)

	d, err = svc.Update(ctx, "alice", d.ID, domain.UpdatePatch{
		CanvasData: canvasp(shapes("s1", "s2")), NoteContent: strp("second"),
	})
	require.NoError(t, err)
	preRestore := d.CurrentVersion

	versions, err := svc.ListVersions(ctx, "alice", d.ID)
	require.NoError(t, err)
	targetMeta := versions[0] // version 1

	res, err := svc.Restore(ctx, "alice", d.ID, targetMeta.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RestoredToVersion)
	assert.Equal(t, preRestore+1, res.BackupVersion)
	assert.Equal(t, preRestore+2, res.NewCurrentVersion)

	// Live content now equals the target snapshot exactly.
	after, err := svc.Get(ctx, "alice", d.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", after.NoteContent)

	target, err := svc.GetVersion(ctx, "alice", d.ID, targetMeta.ID)
	require.NoError(t, err)
	wantCanvas, _ := json.Marshal(target.CanvasData)
	gotCanvas, _ := json.Marshal(after.CanvasData)
	assert.Equal(t, string(wantCanvas), string(gotCanvas))

	// The backup version preserved the pre-restore content.
	backup, err := svc.Compare(ctx, "alice", d.ID, preRestore, res.BackupVersion)
	require.NoError(t, err)
	assert.Zero(t, backup.Summary.TotalChanges)
	assert.False(t, backup.NoteChanged)
}

func TestRestoreRejectsForeignVersion(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	d1, err := svc.Create(ctx, "alice", domain.CreateInput{Kind: domain.KindNote, NoteContent: "a"})
	require.NoError(t, err)
	d2, err := svc.Create(ctx, "alice", domain.CreateInput{Kind: domain.KindNote, NoteContent: "b"})
	require.NoError(t, err)

	otherVersions, err := svc.ListVersions(ctx, "alice", d2.ID)
	require.NoError(t, err)

	_, err = svc.Restore(ctx, "alice", d1.ID, otherVersions[0].ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCompareThroughService(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	d, err := svc.Create(ctx, "alice", domain.CreateInput{Kind: domain.KindCanvas, CanvasData: shapes("s1")})
	require.NoError(t, err)
	_, err = svc.Update(ctx, "alice", d.ID, domain.UpdatePatch{CanvasData: canvasp(shapes("s1", "s2"))})
	require.NoError(t, err)

	cmp, err := svc.Compare(ctx, "alice", d.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, cmp.Additions, 1)
	assert.Equal(t, "s2", cmp.Additions[0].ShapeID)
	assert.Equal(t, 1, cmp.Summary.TotalChanges)

	_, err = svc.Compare(ctx, "alice", d.ID, 1, 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEditVersionMetaLeavesSnapshotAlone(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	d, err := svc.Create(ctx, "alice", domain.CreateInput{Kind: domain.KindNote, NoteContent: "keep me"})
	require.NoError(t, err)
	versions, err := svc.ListVersions(ctx, "alice", d.ID)
	require.NoError(t, err)

	v, err := svc.EditVersionMeta(ctx, "alice", d.ID, versions[0].ID, domain.VersionMetaPatch{
		Label: strp("milestone"),
	})
	require.NoError(t, err)
	assert.Equal(t, "milestone", v.Label)
	assert.Equal(t, 1, v.VersionNumber)

	full, err := svc.GetVersion(ctx, "alice", d.ID, versions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "keep me", full.NoteContent)

	_, err = svc.EditVersionMeta(ctx, "alice", d.ID, versions[0].ID, domain.VersionMetaPatch{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDeleteHidesDiagram(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	d, err := svc.Create(ctx, "alice", domain.CreateInput{Kind: domain.KindNote, NoteContent: "bye"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "alice", d.ID))

	_, err = svc.Get(ctx, "alice", d.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.ListVersions(ctx, "alice", d.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestShareRoundTrip(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	d, err := svc.Create(ctx, "alice", domain.CreateInput{Kind: domain.KindNote, NoteContent: "shared"})
	require.NoError(t, err)
	versions, err := svc.ListVersions(ctx, "alice", d.ID)
	require.NoError(t, err)

	url, err := svc.Share(ctx, "alice", d.ID, versions[0].ID)
	require.NoError(t, err)
	assert.Contains(t, url, "http://localhost:8080/shared/")

	token := url[len("http://localhost:8080/shared/"):]
	v, err := svc.ResolveShare(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "shared", v.NoteContent)

	_, err = svc.ResolveShare(ctx, "no-such-token")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestListOmitsContent(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first, err := svc.Create(ctx, "alice", domain.CreateInput{Kind: domain.KindNote, NoteContent: "a"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := svc.Create(ctx, "alice", domain.CreateInput{Kind: domain.KindNote, NoteContent: "b"})
	require.NoError(t, err)

	items, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID, "newest first")
	assert.Equal(t, first.ID, items[1].ID)
	for _, d := range items {
		assert.Empty(t, d.NoteContent)
		assert.Nil(t, d.CanvasData)
	}
}
