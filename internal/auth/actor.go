// Package auth trusts the opaque actor id an upstream collaborator puts
// on every request. Credential verification happens before traffic
// reaches this service.
package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxActorID = "actor_id"

// WithActor requires the X-User-ID header and stashes it in the gin
// context. Requests without it are rejected with 401.
func WithActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader("X-User-ID"))
		if actor == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "missing actor"})
			c.Abort()
			return
		}
		c.Set(ctxActorID, actor)
		c.Next()
	}
}

// ActorID returns the actor set by WithActor, or "".
func ActorID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(ctxActorID))
}
