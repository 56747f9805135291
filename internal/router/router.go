package router

import (
	"context"
	"fmt"
	"time"

	"moneycase/internal/config"
	"moneycase/internal/handler"
	"moneycase/internal/infra"
	"moneycase/internal/middleware"
	"moneycase/internal/reconcile"
	"moneycase/internal/repository"
	"moneycase/internal/service"
	"moneycase/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Services is the application layer behind the HTTP routes and the worker pool.
type Services struct {
	Sessions  service.SessionService
	Summaries service.SummaryService
	Reports   service.ReportService
}

// NewServices wires repositories, the sales source and the services.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis/HTTP.
// rdb may be nil, which disables the Z-report cache and job dispatch.
func NewServices(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*Services, error) {
	fallback, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_TIMEZONE: %w", err)
	}

	// ── Repositories ─────────────────────────────────────────────────────────
	sessionRepo := repository.NewSessionRepository(db)
	branchRepo := repository.NewBranchRepository(db)
	directory := service.NewBranchDirectory(branchRepo, fallback)

	var sales service.SalesSource
	switch cfg.SalesSource {
	case "http":
		cb := infra.NewCircuitBreaker(infra.DefaultCBConfig("sales"))
		sales = infra.NewSalesClient(cfg.SalesServiceURL, time.Duration(cfg.SalesTimeoutSeconds)*time.Second, cb)
	case "db", "":
		sales = repository.NewSalesRepository(db)
	default:
		return nil, fmt.Errorf("SALES_SOURCE: unknown source %q", cfg.SalesSource)
	}

	// ── Async / cache ────────────────────────────────────────────────────────
	var (
		dispatcher service.ReportDispatcher
		cache      service.SnapshotCache
	)
	if rdb != nil {
		dispatcher = worker.NewDispatcher(rdb)
		cache = infra.NewSnapshotCache(rdb, time.Duration(cfg.ZReportCacheTTLHours)*time.Hour)
	}

	// ── Services ─────────────────────────────────────────────────────────────
	thresholds := reconcile.Thresholds{
		Warning:  decimal.NewFromFloat(cfg.DiscrepancyWarningPct),
		Critical: decimal.NewFromFloat(cfg.DiscrepancyCriticalPct),
	}
	return &Services{
		Sessions: service.NewSessionService(sessionRepo, sales, directory, dispatcher, service.SessionConfig{
			Thresholds:             thresholds,
			RequireNotesOnCritical: cfg.RequireNotesOnCritical,
		}, time.Now),
		Summaries: service.NewSummaryService(sessionRepo, sales, directory, time.Now),
		Reports:   service.NewReportService(sessionRepo, cache),
	}, nil
}

// New returns a configured Gin engine. health is mounted at /health; background
// housekeeping stops when ctx is cancelled.
func New(ctx context.Context, cfg *config.Config, svc *Services, health gin.HandlerFunc) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	limiter.StartPurge(ctx.Done())

	// ── Handlers ─────────────────────────────────────────────────────────────
	sessionsH := handler.NewSessionHandler(svc.Sessions)
	summariesH := handler.NewSummaryHandler(svc.Summaries)
	reportsH := handler.NewReportHandler(svc.Reports)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	if health != nil {
		r.GET("/health", health)
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	anyRole := middleware.RequireRole(middleware.RoleCashier, middleware.RoleManager, middleware.RoleAdmin)
	backOffice := middleware.RequireRole(middleware.RoleManager, middleware.RoleAdmin)

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret), limiter.Handler())
	{
		branches := v1.Group("/branches/:branch_id", middleware.RequireBranchAccess(), anyRole)
		{
			branches.POST("/sessions", sessionsH.Open)
			branches.POST("/sessions/close", sessionsH.Close)
			branches.GET("/sessions/active", sessionsH.Active)
			branches.GET("/summary", summariesH.Quick)
		}

		v1.GET("/sessions", backOffice, sessionsH.History)
		v1.GET("/sessions/:id", anyRole, sessionsH.Get)
		v1.GET("/sessions/:id/zreport", anyRole, reportsH.ZReport)
		v1.GET("/sessions/:id/zreport/pdf", anyRole, reportsH.ZReportPDF)

		v1.GET("/summary/period", backOffice, summariesH.Period)
	}

	// Swagger UI, only outside production
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
