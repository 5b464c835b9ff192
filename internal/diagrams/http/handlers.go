package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nirmalarya/autograph-sub003/internal/auth"
	"github.com/nirmalarya/autograph-sub003/internal/diagrams/domain"
	"github.com/nirmalarya/autograph-sub003/internal/diagrams/service"
)

type handler struct {
	svc *service.Service
}

func (h *handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	in := domain.CreateInput{
		Kind:  req.Kind,
		Title: strings.TrimSpace(req.Title),
	}
	if req.CanvasData != nil {
		in.CanvasData = *req.CanvasData
	}
	if req.NoteContent != nil {
		in.NoteContent = *req.NoteContent
	}

	d, err := h.svc.Create(c.Request.Context(), auth.ActorID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *handler) list(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), auth.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *handler) get(c *gin.Context) {
	d, err := h.svc.Get(c.Request.Context(), auth.ActorID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *handler) update(c *gin.Context) {
	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	d, err := h.svc.Update(c.Request.Context(), auth.ActorID(c), c.Param("id"), domain.UpdatePatch{
		Title:           req.Title,
		CanvasData:      req.CanvasData,
		NoteContent:     req.NoteContent,
		Description:     req.Description,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), auth.ActorID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handler) listVersions(c *gin.Context) {
	versions, err := h.svc.ListVersions(c.Request.Context(), auth.ActorID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

func (h *handler) getVersion(c *gin.Context) {
	v, err := h.svc.GetVersion(c.Request.Context(), auth.ActorID(c), c.Param("id"), c.Param("version_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *handler) compare(c *gin.Context) {
	v1, err1 := strconv.Atoi(c.Query("v1"))
	v2, err2 := strconv.Atoi(c.Query("v2"))
	if err1 != nil || err2 != nil || v1 < 1 || v2 < 1 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"ok": false, "error": "v1 and v2 must be positive version numbers"})
		return
	}

	cmp, err := h.svc.Compare(c.Request.Context(), auth.ActorID(c), c.Param("id"), v1, v2)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cmp)
}

func (h *handler) editVersionMeta(c *gin.Context) {
	var req versionMetaReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	v, err := h.svc.EditVersionMeta(c.Request.Context(), auth.ActorID(c), c.Param("id"), c.Param("version_id"),
		domain.VersionMetaPatch{Label: req.Label, Description: req.Description})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *handler) restore(c *gin.Context) {
	res, err := h.svc.Restore(c.Request.Context(), auth.ActorID(c), c.Param("id"), c.Param("version_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, restoreResp{
		BackupVersion:   res.BackupVersion,
		RestoredVersion: res.NewCurrentVersion,
	})
}

func (h *handler) share(c *gin.Context) {
	url, err := h.svc.Share(c.Request.Context(), auth.ActorID(c), c.Param("id"), c.Param("version_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shareResp{ShareURL: url})
}

func (h *handler) resolveShare(c *gin.Context) {
	v, err := h.svc.ResolveShare(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// respondError maps domain errors to the contract's status codes. The
// 409 body carries only the user-facing detail string.
func respondError(c *gin.Context, err error) {
	var conflict *domain.VersionConflictError
	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"detail": conflict.Detail()})
	case errors.Is(err, domain.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "missing actor"})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": "not the diagram owner"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "diagram not found"})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, domain.ErrTransient):
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "temporary failure, retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
	}
}
