package bootstrap

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	httpapi "github.com/nirmalarya/autograph-sub003/internal/api/http"
	"github.com/nirmalarya/autograph-sub003/internal/api/http/middleware"
	"github.com/nirmalarya/autograph-sub003/internal/auth"
	diagramshttp "github.com/nirmalarya/autograph-sub003/internal/diagrams/http"
	"github.com/nirmalarya/autograph-sub003/internal/diagrams/service"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	DB          *pgxpool.Pool
	Redis       *redis.Client
	Diagrams    *service.Service
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "X-User-ID", "X-Request-Id")
	r.Use(cors.New(corsCfg))

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB, dep.Redis)
	healthHandler.RegisterRoutes(r)

	diagramshttp.RegisterShared(r, dep.Diagrams)

	api := r.Group("/api/v1")
	api.Use(auth.WithActor())
	diagramshttp.Register(api.Group("/diagrams"), dep.Diagrams)

	return r
}
