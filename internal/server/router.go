package server

import (
	"net/http"
	"time"

	"minrisk/internal/config"
	"minrisk/internal/database"
	"minrisk/internal/engine"
	"minrisk/internal/handlers"
	"minrisk/internal/middleware"
	"minrisk/internal/models"
	"minrisk/internal/notify"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// webhookTimeout is the HTTP client backstop for escalation posts; the
// engine additionally bounds each delivery attempt with its own deadline.
const webhookTimeout = 5 * time.Second

func NewRouter(cfg *config.Config) *gin.Engine {
	r := gin.Default()

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	r.Use(sessions.Sessions("minrisk_session", store))

	r.Use(middleware.InjectUser())

	handlers.RegisterValidations()
	handlers.Init(engine.New(
		database.DB,
		notify.NewWebhook(cfg.EscalationWebhook, webhookTimeout),
	))

	// AUTH
	r.POST("/login", handlers.Login)
	r.POST("/logout", handlers.Logout)

	api := r.Group("/api")
	api.Use(middleware.RequireAuth())

	// APPETITE CATEGORIES
	api.GET("/categories", handlers.ListCategories)
	api.POST("/categories",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOfficer),
		handlers.CreateCategory,
	)
	api.PUT("/categories/:id",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOfficer),
		handlers.UpdateCategory,
	)

	// RISKS
	api.GET("/risks", handlers.ListRisks)
	api.POST("/risks",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOfficer, models.RoleAnalyst),
		handlers.CreateRisk,
	)
	api.GET("/risks/:id", handlers.GetRisk)
	api.PUT("/risks/:id",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOfficer, models.RoleAnalyst),
		handlers.UpdateRisk,
	)
	api.DELETE("/risks/:id",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOfficer),
		handlers.DeleteRisk,
	)

	// risk <-> control links drive residual scoring
	api.POST("/risks/:id/controls",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOfficer, models.RoleAnalyst),
		handlers.LinkControl,
	)
	api.DELETE("/risks/:id/controls/:control_id",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOfficer, models.RoleAnalyst),
		handlers.UnlinkControl,
	)

	// CONTROLS
	api.GET("/controls", handlers.ListControls)
	api.POST("/controls",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOfficer, models.RoleAnalyst),
		handlers.CreateControl,
	)
	api.GET("/controls/:id", handlers.GetControl)
	api.PUT("/controls/:id",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOfficer, models.RoleAnalyst),
		handlers.UpdateControl,
	)

	// INDICATORS & OBSERVATIONS
	api.GET("/indicators", handlers.ListIndicators)
	api.POST("/indicators",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOfficer, models.RoleAnalyst),
		handlers.CreateIndicator,
	)
	api.POST("/indicators/:id/observations",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOfficer, models.RoleAnalyst),
		handlers.RecordObservation,
	)

	// TOLERANCE METRICS
	api.GET("/tolerances", handlers.ListTolerances)
	api.POST("/tolerances",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOfficer),
		handlers.CreateTolerance,
	)
	api.GET("/tolerances/:id", handlers.GetTolerance)
	api.PUT("/tolerances/:id/thresholds",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOfficer),
		handlers.UpdateThresholds,
	)

	// binding a metric to a live feed changes how it is governed, so admin only
	api.POST("/tolerances/:id/feed",
		middleware.RequireRole(models.RoleAdmin),
		handlers.LinkFeed,
	)
	api.DELETE("/tolerances/:id/feed",
		middleware.RequireRole(models.RoleAdmin),
		handlers.UnlinkFeed,
	)

	// COVERAGE
	api.GET("/tolerances/:id/coverage", handlers.GetCoverage)
	api.POST("/tolerances/:id/coverage",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOfficer, models.RoleAnalyst),
		handlers.AddCoverageLink,
	)
	api.DELETE("/tolerances/:id/coverage/:link_id",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOfficer, models.RoleAnalyst),
		handlers.RemoveCoverageLink,
	)

	// BREACH WORKFLOW
	api.GET("/breaches", handlers.ListBreaches)
	api.GET("/breaches/:id", handlers.GetBreach)
	api.POST("/breaches/:id/acknowledge",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOfficer),
		handlers.AcknowledgeBreach,
	)
	api.POST("/breaches/:id/progress",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOfficer),
		handlers.ProgressBreach,
	)
	api.POST("/breaches/:id/resolve",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOfficer),
		handlers.ResolveBreach,
	)

	// BOARD EXCEPTIONS
	api.POST("/breaches/:id/exception",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOfficer),
		handlers.RequestException,
	)
	api.POST("/exceptions/:id/approve",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOfficer),
		handlers.ApproveException,
	)
	api.POST("/exceptions/:id/reject",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOfficer),
		handlers.RejectException,
	)

	// GOVERNANCE
	api.GET("/dashboard/status", handlers.DashboardStatus)
	api.POST("/recalculate",
		middleware.RequireRole(models.RoleAdmin, models.RoleRiskOfficer),
		handlers.Recalculate,
	)

	// AUDIT
	api.GET("/audit",
		middleware.RequireRole(models.RoleAdmin, models.RoleViewer),
		handlers.ListAuditLogs,
	)

	// OPS
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
