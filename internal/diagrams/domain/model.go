package domain

import "time"

// Kind tags what a diagram is made of. The content union is enforced at
// the store boundary: canvas diagrams carry shapes only, note diagrams
// carry text only, mixed diagrams may carry both.
type Kind string

const (
	KindCanvas Kind = "canvas"
	KindNote   Kind = "note"
	KindMixed  Kind = "mixed"
)

func (k Kind) Valid() bool {
	switch k {
	case KindCanvas, KindNote, KindMixed:
		return true
	}
	return false
}

// Diagram is the mutable head of a document. CurrentVersion always
// matches the version_number of the newest accepted Version row.
type Diagram struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"owner_id"`
	Kind           Kind       `json:"kind"`
	Title          string     `json:"title"`
	CanvasData     CanvasData `json:"canvas_data,omitempty"`
	NoteContent    string     `json:"note_content,omitempty"`
	CurrentVersion int        `json:"current_version"`
	SizeBytes      int64      `json:"size_bytes"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Version is an immutable snapshot of a diagram's content at one
// accepted mutation. Only Label and Description may change afterwards.
type Version struct {
	ID            string     `json:"id"`
	DiagramID     string     `json:"diagram_id"`
	VersionNumber int        `json:"version_number"`
	CanvasData    CanvasData `json:"canvas_data,omitempty"`
	NoteContent   string     `json:"note_content,omitempty"`
	Description   string     `json:"description,omitempty"`
	Label         string     `json:"label,omitempty"`
	CreatedBy     string     `json:"created_by"`
	ThumbnailURL  string     `json:"thumbnail_url,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// CreateInput carries the fields of a new diagram. Content may be empty;
// it still has to satisfy the kind's content union.
type CreateInput struct {
	Kind        Kind
	Title       string
	CanvasData  CanvasData
	NoteContent string
}

// UpdatePatch is a partial update. Nil fields are left untouched; the
// Description, when set, is stored on the Version row this update
// produces. ExpectedVersion, when set, is the caller's optimistic lock.
type UpdatePatch struct {
	Title           *string
	CanvasData      *CanvasData
	NoteContent     *string
	Description     *string
	ExpectedVersion *int
}

// Empty reports whether the patch changes no content field.
func (p UpdatePatch) Empty() bool {
	return p.Title == nil && p.CanvasData == nil && p.NoteContent == nil
}

// VersionMetaPatch edits version metadata without touching the snapshot.
type VersionMetaPatch struct {
	Label       *string
	Description *string
}

// ShareLink is a token-addressed read grant for one version snapshot.
type ShareLink struct {
	Token         string    `json:"token"`
	DiagramID     string    `json:"diagram_id"`
	VersionID     string    `json:"version_id"`
	VersionNumber int       `json:"version_number"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// RestoreResult reports the two versions a restore produced.
type RestoreResult struct {
	RestoredToVersion int `json:"restored_to_version"`
	BackupVersion     int `json:"backup_version"`
	NewCurrentVersion int `json:"new_current_version"`
}
