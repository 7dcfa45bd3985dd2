package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/paperdesk/paperdesk-backend/internal/config"
	"github.com/paperdesk/paperdesk-backend/internal/handler"
	"github.com/paperdesk/paperdesk-backend/internal/middleware"
	"github.com/paperdesk/paperdesk-backend/internal/response"
	"github.com/paperdesk/paperdesk-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Portal  *handler.CandidatePortalHandler
	Paper   *handler.PaperHandler
	Grading *handler.GradingHandler
	Admin   *handler.AdminHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/candidate/login", handlers.Auth.CandidateLogin)
		auth.POST("/instructor/login", handlers.Auth.InstructorLogin)

		// Authenticated profile routes
		auth.POST("/candidate/logout", middleware.RequireCandidateJWT(authService), handlers.Auth.CandidateLogout)
		auth.GET("/candidate/me", middleware.RequireCandidateJWT(authService), handlers.Auth.CandidateProfile)
	}

	// ─── 2. Candidate Portal (JWT + Single Device) ─────────────────────
	portalAPI := router.Group("/api/v1/portal")
	portalAPI.Use(
		middleware.RequireCandidateJWT(authService),
		middleware.CheckSingleDeviceLogin(authService),
	)
	{
		portalAPI.GET("/lobby", handlers.Portal.GetLobby)
		portalAPI.GET("/results", handlers.Portal.GetResults)
		portalAPI.POST("/papers/:code/attempt", handlers.Portal.BeginAttempt)
		portalAPI.GET("/papers/:code/attempt", handlers.Portal.GetAttemptState)
		portalAPI.PUT("/papers/:code/attempt/answer", handlers.Portal.RecordAnswer)
		portalAPI.POST("/papers/:code/attempt/submit", handlers.Portal.SubmitAttempt)
	}

	// ─── 3. WebSocket Group (Candidate WS Auth) ────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireCandidateWSAuth(authService))
	{
		ws.GET("/portal/papers/:code/stream", handlers.WS.AttemptStream)
	}

	// ─── 4. Staff Group (Instructor JWT) ───────────────────────────────
	staffAPI := router.Group("/api/v1/staff")
	staffAPI.Use(middleware.RequireInstructorJWT(authService))
	{
		// Paper authoring
		staffAPI.GET("/papers", handlers.Paper.ListPapers)
		staffAPI.POST("/papers", handlers.Paper.CreatePaper)
		staffAPI.GET("/papers/:code", handlers.Paper.GetPaper)
		staffAPI.PUT("/papers/:code", handlers.Paper.UpdatePaper)
		staffAPI.DELETE("/papers/:code", handlers.Paper.DeletePaper)
		staffAPI.PUT("/papers/:code/questions", handlers.Paper.ReplaceQuestions)
		staffAPI.POST("/papers/:code/publish", handlers.Paper.PublishPaper)

		// Review and publication
		staffAPI.GET("/papers/:code/sheets", handlers.Grading.ListSheets)
		staffAPI.GET("/papers/:code/sheets/:candidate_id", handlers.Grading.GetSheet)
		staffAPI.PUT("/papers/:code/sheets/:candidate_id/verdict", handlers.Grading.StageVerdict)
		staffAPI.POST("/papers/:code/sheets/:candidate_id/publish", handlers.Grading.PublishResult)
	}

	// ─── 5. Admin Group (Instructor JWT + Admin Flag) ──────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(
		middleware.RequireInstructorJWT(authService),
		middleware.RequireAdmin(),
	)
	{
		adminAPI.POST("/candidates", handlers.Admin.CreateCandidate)
		adminAPI.POST("/instructors", handlers.Admin.CreateInstructor)
		adminAPI.DELETE("/candidates/:id/login", handlers.Admin.ResetCandidateLogin)
	}

	return router
}
