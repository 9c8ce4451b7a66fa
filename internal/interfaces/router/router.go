package router

import (
	"context"
	"net/http"
	"time"

	"ghg-workflow-backend/internal/application/audit"
	authsvc "ghg-workflow-backend/internal/application/auth"
	emailsvc "ghg-workflow-backend/internal/application/emails"
	"ghg-workflow-backend/internal/application/evidence"
	"ghg-workflow-backend/internal/application/factors"
	healthsvc "ghg-workflow-backend/internal/application/health"
	"ghg-workflow-backend/internal/application/lifecycle"
	"ghg-workflow-backend/internal/application/notifications"
	projectsvc "ghg-workflow-backend/internal/application/projects"
	"ghg-workflow-backend/internal/application/reporting"
	"ghg-workflow-backend/internal/application/scheduler"
	usersvc "ghg-workflow-backend/internal/application/user"
	"ghg-workflow-backend/internal/application/workflow"
	"ghg-workflow-backend/internal/config"
	"ghg-workflow-backend/internal/infrastructure/database"
	authhandler "ghg-workflow-backend/internal/interfaces/handlers/auth"
	cataloghandler "ghg-workflow-backend/internal/interfaces/handlers/catalog"
	healthhandler "ghg-workflow-backend/internal/interfaces/handlers/health"
	projecthandler "ghg-workflow-backend/internal/interfaces/handlers/projects"
	reporthandler "ghg-workflow-backend/internal/interfaces/handlers/reporting"
	userhandler "ghg-workflow-backend/internal/interfaces/handlers/user"
	wfhandler "ghg-workflow-backend/internal/interfaces/handlers/workflow"
	"ghg-workflow-backend/internal/middleware"
	"ghg-workflow-backend/internal/pkg/constants"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// App is the wired HTTP application with the resources it owns.
type App struct {
	Fiber   *fiber.App
	DB      *gorm.DB
	Rdb     *redis.Client
	Machine *workflow.Machine
	Sweeper *scheduler.TotalsSweeper
}

// Shutdown stops the sweeper, drains in-flight notifications and closes connections.
func (a *App) Shutdown(ctx context.Context) error {
	if err := a.Fiber.ShutdownWithContext(ctx); err != nil {
		log.Warn().Err(err).Msg("fiber shutdown")
	}
	if a.Sweeper != nil {
		a.Sweeper.Stop()
	}
	if a.Machine != nil {
		a.Machine.Wait()
	}
	if a.Rdb != nil {
		_ = a.Rdb.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			return sqlDB.Close()
		}
	}
	return nil
}

func CreateApp(cfg *config.Config) (*App, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))

	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.IsProduction(),
	}
	sessionHandler, rdb, err := middleware.Session(sessionCfg)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}

	var tokens *authsvc.TokenIssuer
	if cfg.JWTSecret != "" {
		tokens = &authsvc.TokenIssuer{Secret: []byte(cfg.JWTSecret), TTL: cfg.JWTTTL}
	}

	app.Use(sessionHandler)
	if tokens != nil {
		app.Use(middleware.Bearer(tokens))
	}
	app.Use(middleware.HealthMarker(rdb))

	// Workflow core
	notifiers := notifications.Fanout{notifications.LogNotifier{}}
	if cfg.SendinblueAPIKey != "" {
		notifiers = append(notifiers, &notifications.EmailNotifier{
			DB:      db,
			Sender:  &emailsvc.BrevoClient{APIKey: cfg.SendinblueAPIKey, MailFrom: cfg.MailFrom},
			BaseURL: cfg.AppBaseURL,
		})
	}
	if cfg.NotifyChannel != "" {
		notifiers = append(notifiers, &notifications.RedisPublisher{Rdb: rdb, Channel: cfg.NotifyChannel})
	}
	machine, err := workflow.New(workflow.Config{
		DB:            db,
		Notifier:      notifiers,
		NotifyTimeout: cfg.NotifyTimeout,
	})
	if err != nil {
		return nil, err
	}
	reports := &reporting.Service{DB: db, Cache: rdb, TTL: cfg.DashboardCacheTTL, Graph: machine.Graph()}
	orchestrator, err := lifecycle.New(lifecycle.Config{
		DB:        db,
		Machine:   machine,
		Tolerance: cfg.CalcToleranceKg,
		Cache:     reports,
	})
	if err != nil {
		return nil, err
	}
	var storage evidence.StorageClient
	if cfg.SupabaseURL != "" {
		storage = &evidence.SupabaseClient{BaseURL: cfg.SupabaseURL, SecretKey: cfg.SupabaseSecretKey, Client: &http.Client{Timeout: 15 * time.Second}}
	}
	evidenceSvc := &evidence.Service{DB: db, Storage: storage, StorageURL: cfg.SupabaseURL, Bucket: cfg.EvidenceBucket, Cache: reports}
	auditSvc := &audit.Service{DB: db}

	var sweeper *scheduler.TotalsSweeper
	if cfg.TotalsSweepCron != "" {
		sweeper, err = scheduler.NewTotalsSweeper(scheduler.SweeperConfig{DB: db, Recomputer: orchestrator, Spec: cfg.TotalsSweepCron})
		if err != nil {
			return nil, err
		}
	}

	// Health
	hh := &healthhandler.Handlers{
		Rdb:            rdb,
		Collector:      &healthsvc.Collector{Rdb: rdb, Pinger: &healthsvc.GormPinger{DB: db}, DB: db},
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)

	// Auth
	ah := &authhandler.Handlers{
		UserFinder: &authsvc.GormUserFinder{DB: db},
		Tokens:     tokens,
		Rdb:        rdb,
		Config:     sessionCfg,
	}
	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/login", ah.Login)
	authGroup.Post("/token", ah.Token)
	authGroup.Get("/me", ah.Me)
	authGroup.Delete("/logout", ah.Logout)

	api := app.Group("/api/v1", middleware.RequireAuth())
	perm := middleware.AuthorizePermission

	// Users
	uh := &userhandler.Handlers{Service: &usersvc.Service{DB: db, Rdb: rdb}}
	ug := api.Group("/users")
	ug.Post("/", uh.CreateUser)
	ug.Get("/", perm(constants.ManageUsers), uh.ListUsers)
	ug.Get("/:id", perm(constants.ManageUsers), uh.ViewUser)
	ug.Patch("/:id/role", uh.UpdateRole)
	ug.Delete("/:id", uh.Deactivate)

	// Projects
	ph := &projecthandler.Handlers{Service: &projectsvc.Service{DB: db}, Reporting: reports, Audit: auditSvc}
	pg := api.Group("/projects")
	pg.Post("/", ph.Create)
	pg.Get("/", perm(constants.ViewData), ph.List)
	pg.Get("/:id", perm(constants.ViewData), ph.Get)
	pg.Patch("/:id", ph.Update)
	pg.Delete("/:id", ph.Delete)
	pg.Get("/:id/status", perm(constants.ViewData), ph.Status)
	pg.Get("/:id/transitions", perm(constants.ViewData), ph.Transitions)

	// Workflow lanes
	wh := &wfhandler.Handlers{Orchestrator: orchestrator, Evidence: evidenceSvc, Reporting: reports}
	cg := api.Group("/workflow/collection/:id")
	cg.Post("/collect", wh.Collect)
	cg.Get("/records", perm(constants.ViewData), wh.Records)
	cg.Patch("/records/:recordId", wh.UpdateRecord)
	cg.Delete("/records/:recordId", wh.DeleteRecord)
	cg.Get("/aggregate", perm(constants.ViewData), wh.Aggregate)
	cg.Post("/quality-check", perm(constants.CollectData), wh.QualityCheck)
	cg.Post("/evidence", wh.RequestEvidence)
	cg.Get("/evidence", perm(constants.ViewData), wh.ListEvidence)
	cg.Post("/submit", wh.Submit)

	tg := api.Group("/workflow/transformation/:id")
	tg.Post("/return", wh.Return)
	tg.Post("/map", wh.Map)
	tg.Post("/transform", wh.Transform)
	tg.Get("/calculations", perm(constants.ViewData), wh.Calculations)
	tg.Post("/validate", perm(constants.TransformData), wh.Validate)
	tg.Post("/update-totals", perm(constants.RecomputeTotals), wh.UpdateTotals)
	tg.Post("/submit-review", wh.SubmitReview)

	vg := api.Group("/workflow/verification/:id")
	vg.Get("/verify", perm(constants.VerifyData), wh.Verify)
	vg.Get("/compliance", perm(constants.VerifyData), wh.Compliance)
	vg.Post("/approve", wh.Approve)
	vg.Post("/reject", wh.Reject)
	vg.Get("/report", perm(constants.VerifyData), wh.Report)

	fg := api.Group("/workflow/final-review/:id")
	fg.Get("/review", perm(constants.FinalApproval), wh.Review)
	fg.Post("/approve", wh.FinalApprove)
	fg.Get("/approval-docs", perm(constants.FinalApproval), wh.ApprovalDocs)
	fg.Post("/archive", perm(constants.FinalApproval), wh.Archive)

	// Reporting
	rh := &reporthandler.Handlers{Service: reports, Audit: auditSvc}
	rg := api.Group("/reporting/:id")
	rg.Get("/dashboard", perm(constants.ViewData), rh.Dashboard)
	rg.Get("/ghg-report", perm(constants.ViewReports), rh.GHGReport)
	rg.Get("/compliance-status", perm(constants.ViewReports), rh.ComplianceStatus)
	rg.Get("/audit-trail", perm(constants.ViewAuditTrail), rh.AuditTrail)

	// Catalog
	ch := &cataloghandler.Handlers{Factors: &factors.Service{DB: db}}
	api.Get("/factors", perm(constants.ViewData), ch.SearchFactors)
	api.Get("/factors/:id", perm(constants.ViewData), ch.GetFactor)
	api.Get("/reason-codes", perm(constants.ViewData), ch.ReasonCodes)
	api.Get("/criteria", perm(constants.ViewData), ch.ListCriteria)

	return &App{Fiber: app, DB: db, Rdb: rdb, Machine: machine, Sweeper: sweeper}, nil
}
