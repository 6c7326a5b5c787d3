package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"intraportal/internal/handler"
	"intraportal/internal/validation"
	"intraportal/pkg/auth"
	"intraportal/pkg/otel"
	"intraportal/pkg/rbac"
)

// Pinger 就绪检查，store.Store 满足该接口
type Pinger interface {
	Ping(ctx context.Context) error
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	projectHandler *handler.ProjectHandler,
	taskHandler *handler.TaskHandler,
	validator *auth.Validator,
	db Pinger,
	logger *zap.Logger,
) *Router {
	validation.RegisterGin()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(otel.GinMiddleware())
	r.Use(RequestLogger(logger))

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected
	api := r.Group("/")
	api.Use(AuthMiddleware(validator))
	{
		api.POST("/projects/import-xml", RequirePermission(rbac.PermissionImportProject), projectHandler.ImportXML)
		api.GET("/projects", RequirePermission(rbac.PermissionReadProject), projectHandler.List)
		api.GET("/projects/:id", RequirePermission(rbac.PermissionReadProject), projectHandler.Get)
		api.DELETE("/projects/:id", RequirePermission(rbac.PermissionDeleteProject), projectHandler.Delete)
		api.POST("/projects/:id/recompute", RequirePermission(rbac.PermissionUpdateTask), projectHandler.Recompute)

		api.GET("/tasks/:id", RequirePermission(rbac.PermissionReadTask), taskHandler.Get)
		api.PUT("/tasks/:id", RequirePermission(rbac.PermissionUpdateTask), taskHandler.Update)
		api.DELETE("/tasks/:id", RequirePermission(rbac.PermissionDeleteTask), taskHandler.Delete)

		api.GET("/employees", RequirePermission(rbac.PermissionReadProject), projectHandler.ListEmployees)
	}

	return &Router{Engine: r}
}
