// Package http exposes the versioning engine over the diagram API
// contract.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/nirmalarya/autograph-sub003/internal/diagrams/service"
)

// Register mounts the authenticated diagram routes on rg. The rg is
// expected to carry the actor middleware.
func Register(rg *gin.RouterGroup, svc *service.Service) {
	h := &handler{svc: svc}

	rg.POST("", h.create)
	rg.GET("", h.list)
	rg.GET("/:id", h.get)
	rg.PUT("/:id", h.update)
	rg.DELETE("/:id", h.delete)

	rg.GET("/:id/versions", h.listVersions)
	// "compare" must be matched before the :version_id param route.
	rg.GET("/:id/versions/compare", h.compare)
	rg.GET("/:id/versions/:version_id", h.getVersion)
	rg.PATCH("/:id/versions/:version_id", h.editVersionMeta)
	rg.POST("/:id/versions/:version_id/restore", h.restore)
	rg.POST("/:id/versions/:version_id/share", h.share)
}

// RegisterShared mounts the unauthenticated share resolver on the root
// router.
func RegisterShared(r gin.IRouter, svc *service.Service) {
	h := &handler{svc: svc}
	r.GET("/shared/:token", h.resolveShare)
}
