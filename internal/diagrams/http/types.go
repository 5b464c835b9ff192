package http

import "github.com/nirmalarya/autograph-sub003/internal/diagrams/domain"

type createReq struct {
	Kind        domain.Kind        `json:"kind"`
	Title       string             `json:"title"`
	CanvasData  *domain.CanvasData `json:"canvas_data,omitempty"`
	NoteContent *string            `json:"note_content,omitempty"`
}

type updateReq struct {
	Title           *string            `json:"title,omitempty"`
	CanvasData      *domain.CanvasData `json:"canvas_data,omitempty"`
	NoteContent     *string            `json:"note_content,omitempty"`
	Description     *string            `json:"description,omitempty"`
	ExpectedVersion *int               `json:"expected_version,omitempty"`
}

type versionMetaReq struct {
	Label       *string `json:"label,omitempty"`
	Description *string `json:"description,omitempty"`
}

type restoreResp struct {
	BackupVersion   int `json:"backup_version"`
	RestoredVersion int `json:"restored_version"`
}

type shareResp struct {
	ShareURL string `json:"share_url"`
}
