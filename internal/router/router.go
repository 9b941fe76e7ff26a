package router

import (
	"time"

	"github.com/eptportal/ept-backend/internal/config"
	"github.com/eptportal/ept-backend/internal/handler"
	"github.com/eptportal/ept-backend/internal/middleware"
	"github.com/eptportal/ept-backend/internal/response"
	"github.com/eptportal/ept-backend/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	Registration  *handler.RegistrationHandler
	StudentPortal *handler.StudentPortalHandler
	WS            *handler.WSHandler
	System        *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	loginLimiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// Empty AllowedOrigins means allow all, for local development.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)

	// ─── 0. Public Group (No Auth) ─────────────────────────────────────
	publicAPI := router.Group("/api/v1/public")
	publicAPI.Use(middleware.CacheControl(60))
	{
		publicAPI.GET("/test-dates", handlers.Registration.ListTestDates)
	}

	registration := router.Group("/api/v1")
	registration.Use(loginLimiter.Middleware())
	{
		registration.POST("/registration/check", handlers.Registration.CheckRegistration)
		registration.POST("/bookings", handlers.Registration.CreateBooking)
	}

	// ─── 1. Auth Group (Rate Limited) ──────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", loginLimiter.Middleware(), handlers.Auth.StudentLogin)
		auth.GET("/me", middleware.RequireStudentJWT(authService), middleware.NoStore(), handlers.Auth.GetStudentProfile)
		auth.POST("/logout", middleware.RequireStudentJWT(authService), handlers.Auth.StudentLogout)
	}

	// ─── 2. Student Group (JWT, current session only) ──────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.NoStore(),
	)
	{
		studentAPI.GET("/availability", handlers.StudentPortal.GetAvailability)
		studentAPI.GET("/test-delivery", handlers.StudentPortal.GetTestDelivery)
		studentAPI.POST("/submit-test", handlers.StudentPortal.SubmitTest)
		studentAPI.GET("/test-results", handlers.StudentPortal.GetTestResults)
	}

	// ─── 3. WebSocket Group (token in query) ───────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/exam", handlers.WS.ExamStream)
	}

	return router
}
