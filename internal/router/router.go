package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "planextract/internal/docs" // registers the OpenAPI document
	"planextract/internal/handler"
	"planextract/internal/metrics"
	"planextract/internal/middleware"
	"planextract/internal/port"
)

// Options configures cross-cutting concerns of the engine.
type Options struct {
	// Verifier enables bearer-token auth on /v1 when non-nil.
	Verifier       port.IdentityVerifier
	AllowedDomain  string
	AllowedOrigins []string
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	processH *handler.ProcessHandler,
	jobH *handler.JobHandler,
	healthH *handler.HealthHandler,
	opts Options,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(opts.AllowedOrigins))

	// Health checks and ops
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// API docs
	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusTemporaryRedirect, "/docs/index.html") })
	r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/v1")
	if opts.Verifier != nil {
		v1.Use(middleware.AuthMiddleware(opts.Verifier, opts.AllowedDomain))
	}
	v1.POST("/process", processH.Process)
	v1.POST("/process_async", processH.ProcessAsync)
	v1.GET("/jobs/:id", jobH.Get)
	v1.GET("/jobs/:id/export", jobH.Export)

	return r
}
