package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skillmatch/audit"
	"skillmatch/config"
	"skillmatch/database"
	"skillmatch/handlers"
	"skillmatch/handlers/admin"
	"skillmatch/middleware"
	"skillmatch/models"
	"skillmatch/notify"
	"skillmatch/repository"
	"skillmatch/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

// server holds everything the routes need.
type server struct {
	cfg           *config.Config
	invitations   *services.InvitationService
	projects      *services.ProjectService
	teams         *services.TeamCoordinator
	auditReader   admin.AuditReader
	generalLimit  middleware.Limiter
	acceptLimit   middleware.Limiter
	localLimiters []*middleware.RateLimiter
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	for _, w := range cfg.Warnings() {
		log.Println("WARNING:", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := database.InitRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Printf("[redis] disabled: %v", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	srv, err := buildServer(cfg, rdb)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	defer database.CloseDB()

	for _, rl := range srv.localLimiters {
		rl.StartCleanup(ctx, 10*time.Minute)
	}

	app := newApp(srv)

	go func() {
		<-ctx.Done()
		log.Println("Shutting down HTTP server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("🚀 HTTP server starting on port %s", cfg.Port)
	log.Printf("📊 Environment: %s, store: %s", cfg.AppEnv, cfg.StoreDriver)
	log.Printf("📨 Invitation notifications: %s", notificationMode(rdb))

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start HTTP server:", err)
	}
}

// buildServer assembles the store, side effects and services for cfg.
// rdb may be nil.
func buildServer(cfg *config.Config, rdb *redis.Client) (*server, error) {
	var (
		store  repository.Store
		sink   services.AuditSink
		reader admin.AuditReader
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		store = repository.NewMemoryStore()
		sink = audit.NewLogSink(log.Default())
	default:
		db, err := database.InitDB(cfg)
		if err != nil {
			return nil, err
		}
		store = repository.NewGormStore(db)
		gormSink := audit.NewGormSink(db)
		sink, reader = gormSink, gormSink
	}

	var notifier services.Notifier = notify.NewLogNotifier(log.Default())
	if rdb != nil {
		notifier = notify.NewRedisNotifier(rdb, cfg.NotificationStream)
	}

	teams := services.NewTeamCoordinator(store, sink)
	srv := &server{
		cfg:         cfg,
		invitations: services.NewInvitationService(store, services.NewTokenIssuer(cfg.InviteExpiry()), teams, notifier, sink, cfg.FrontendURL),
		projects:    services.NewProjectService(store, sink),
		teams:       teams,
		auditReader: reader,
	}

	if rdb != nil {
		srv.generalLimit = middleware.NewRedisLimiter(rdb, "ratelimit:", cfg.RateLimitMaxRequests, cfg.RateLimitWindow)
		srv.acceptLimit = middleware.NewRedisLimiter(rdb, "ratelimit:", cfg.AcceptRateLimitMax, cfg.AcceptRateLimitWindow)
	} else {
		general := middleware.NewRateLimiter(cfg.RateLimitMaxRequests, cfg.RateLimitWindow)
		accept := middleware.NewRateLimiter(cfg.AcceptRateLimitMax, cfg.AcceptRateLimitWindow)
		srv.generalLimit, srv.acceptLimit = general, accept
		srv.localLimiters = []*middleware.RateLimiter{general, accept}
	}
	return srv, nil
}

func newApp(srv *server) *fiber.App {
	cfg := srv.cfg
	handlers.SetProductionMode(cfg.IsProduction())
	handlers.InitProjectHandlers(srv.projects)
	handlers.InitAssignmentHandlers(srv.invitations)
	handlers.InitTeamHandlers(srv.teams)
	admin.InitAdminHandlers(srv.invitations, srv.teams, srv.auditReader)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler(cfg.IsProduction()),
		BodyLimit:    1 * 1024 * 1024,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))
	app.Use(middleware.FiberRateLimitMiddleware(srv.generalLimit, cfg.RateLimitEnabled))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
			"store":     cfg.StoreDriver,
		})
	})

	api := app.Group("/api")
	auth := middleware.AuthMiddleware(cfg.JWTSecret)

	// Business owner routes
	business := api.Group("/business/projects", auth, middleware.RequireRole(models.RoleBusiness, models.RoleAdmin))
	business.Post("/", handlers.CreateProject)
	business.Get("/", handlers.ListProjects)
	business.Delete("/assignments/:id/cancel", handlers.CancelAssignment)
	business.Delete("/assignments/:id", handlers.DeleteAssignment)
	business.Post("/assignments/:id/complete", handlers.CompleteAssignment)
	business.Get("/:id", handlers.GetProject)
	business.Put("/:id/status", handlers.UpdateProjectStatus)
	business.Get("/:id/assignments", handlers.ListProjectAssignments)
	business.Post("/:id/assignments", handlers.InviteCandidates)

	// Student routes
	student := api.Group("/student/projects/assignments", auth, middleware.RequireRole(models.RoleStudent))
	acceptLimit := middleware.AcceptRateLimitMiddleware(srv.acceptLimit, cfg.RateLimitEnabled)
	student.Get("/", handlers.ListMyAssignments)
	student.Post("/:id/accept", acceptLimit, handlers.AcceptAssignment)
	student.Post("/:id/accept-direct", acceptLimit, handlers.AcceptAssignmentDirect)
	student.Post("/:id/decline", handlers.DeclineAssignment)
	student.Post("/:id/feedback", handlers.SubmitStudentFeedback)

	// Shared reads
	api.Get("/assignments/:id", auth, handlers.GetAssignment)
	api.Get("/teams/:id", auth, handlers.GetTeam)

	// Admin routes
	adminGroup := api.Group("/admin", auth, middleware.RequireRole(models.RoleAdmin))
	adminGroup.Get("/projects/:id/assignments", admin.GetProjectAssignments)
	adminGroup.Post("/teams/:id/archive", admin.ArchiveTeam)
	adminGroup.Post("/teams/:id/recompute", admin.RecomputeTeam)
	adminGroup.Get("/audit", admin.GetAuditEvents)

	return app
}

func customErrorHandler(production bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
			message = e.Message
		}

		if production && code == fiber.StatusInternalServerError {
			message = "An error occurred. Please try again later."
		}

		return c.Status(code).JSON(fiber.Map{
			"success": false,
			"error":   message,
		})
	}
}

func notificationMode(rdb *redis.Client) string {
	if rdb == nil {
		return "log"
	}
	return "redis stream"
}
