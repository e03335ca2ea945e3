package router

import (
	"github.com/gin-gonic/gin"

	"signet/internal/config"
	"signet/internal/domain"
	"signet/internal/handler"
	"signet/internal/middleware"
	"signet/internal/service"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	cfg *config.Config,
	authSvc service.AuthService,
	authH *handler.AuthHandler,
	issuanceH *handler.IssuanceHandler,
	bulkH *handler.BulkHandler,
	verifyH *handler.VerifyHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")

	// Public auth routes
	auth := v1.Group("/auth")
	auth.POST("/token", authH.Token)
	auth.POST("/refresh", authH.RefreshToken)

	// Public verification target for the QR url format
	v1.GET("/verify", verifyH.Verify)

	// Protected routes - require valid JWT
	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(authSvc))

	protected.POST("/issue", issuanceH.Issue)
	protected.GET("/sequences/status", issuanceH.SequenceStatus)

	bulk := protected.Group("/bulk")
	bulk.POST("", bulkH.Submit)
	bulk.GET("/:id", bulkH.Status)
	bulk.POST("/:id/cancel", bulkH.Cancel)
	bulk.GET("/:id/export", middleware.RequireRole(domain.RoleIssuer, domain.RoleAdmin), bulkH.Export)

	return r
}
