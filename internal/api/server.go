package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/tagreview/internal/api/auth"
	"github.com/tagreview/internal/api/users"
	"github.com/tagreview/internal/config"
	"github.com/tagreview/internal/conversation"
	"github.com/tagreview/internal/database"
	"github.com/tagreview/internal/fam"
	"github.com/tagreview/internal/identity"
	"github.com/tagreview/internal/jobqueue"
	"github.com/tagreview/internal/metrics"
	"github.com/tagreview/internal/review"
	"github.com/tagreview/internal/tagdata"
)

// Server represents the API server
type Server struct {
	echo         *echo.Echo
	cfg          *config.Config
	db           *sql.DB
	tokenService *auth.TokenService
	jobQueue     *jobqueue.JobQueue
}

// NewServer creates a new API server wired against the given configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.NewDB(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(metrics.Middleware())

	server := &Server{
		echo: e,
		cfg:  cfg,
		db:   db,
	}

	if err := server.setupRoutes(); err != nil {
		return nil, err
	}

	return server, nil
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() error {
	cfg := s.cfg
	db := s.db

	s.tokenService = auth.NewTokenService(db, cfg.Auth.SecretKey)
	am := auth.NewAuthMiddleware(s.tokenService, db)
	requireAuth := auth.RequireAuth(s.tokenService)

	// Username resolution. The Redis cache and the directory service are
	// both optional; the resolver falls back to the local users table.
	var cache identity.NameCache
	if cfg.Redis.URL != "" {
		rc, err := identity.NewRedisCache(cfg.Redis.URL, cfg.IdentityCacheTTL())
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		cache = rc
	}
	identityStore := identity.NewStore(db)
	var resolver *identity.Resolver
	if cfg.Directory.BaseURL != "" {
		directory := identity.NewDirectoryClient(cfg.Directory.BaseURL, cfg.Directory.Token)
		resolver = identity.NewResolver(identityStore, cache, directory)
	} else {
		resolver = identity.NewResolver(identityStore, cache, nil)
	}

	tagStore := tagdata.NewStore(db)
	tagHandlers := tagdata.NewHandlers(tagdata.NewService(tagStore))
	reviewHandlers := review.NewHandlers(review.NewService(review.NewStore(db)))
	convHandlers := conversation.NewHandlers(conversation.NewService(conversation.NewStore(db), resolver))

	famStore := fam.NewStore(db)
	ingestor := fam.NewIngestor(tagStore, famStore)
	famHandlers := fam.NewHandlers(ingestor, famStore, tagStore)

	// Background FAM sync runs only when a FAM endpoint is configured.
	// Sheet uploads and import run queries work either way.
	if cfg.FAM.BaseURL != "" {
		client := fam.NewClient(cfg.FAM.BaseURL, cfg.FAM.Token)
		syncer := fam.NewSyncer(client, ingestor, famStore)
		jq, err := jobqueue.NewJobQueue(cfg.Database.URL, syncer, cfg.FAMSyncInterval())
		if err != nil {
			return fmt.Errorf("failed to create job queue: %w", err)
		}
		s.jobQueue = jq
	}

	userService := users.NewUserService(db)
	userHandlers := users.NewUserHandlers(userService, db)
	profileHandlers := users.NewProfileHandlers(users.NewProfileService(db))
	authHandlers := auth.NewAuthHandlers(s.tokenService, db)

	// Health check endpoint
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})
	s.echo.GET("/metrics", metrics.Handler())

	// API v1 group
	v1 := s.echo.Group("/api/v1")

	authHandlers.Register(v1, requireAuth)

	// Tag data, revision containers, reviews, conversations and imports.
	protected := v1.Group("", requireAuth)
	tagHandlers.Register(protected)
	reviewHandlers.Register(protected)
	convHandlers.Register(protected)
	famHandlers.Register(protected)

	// Project-scoped user management. The project comes from the
	// X-Project-Context header; access and role are validated per request.
	userGroup := v1.Group("/users",
		am.RequireAuth(),
		am.BuildProjectContextFromHeader(),
		am.ValidateProjectAccess(),
		am.BuildPermissionContext(),
	)
	userGroup.POST("", userHandlers.CreateUser)
	userGroup.GET("", userHandlers.ListUsers)
	userGroup.GET("/:user_id", userHandlers.GetUser)
	userGroup.PUT("/:user_id", userHandlers.UpdateUser)
	userGroup.DELETE("/:user_id", userHandlers.DeactivateUser)
	userGroup.PUT("/:user_id/role", userHandlers.ChangeUserRole)
	userGroup.POST("/:user_id/assign", userHandlers.AssignUser)
	userGroup.DELETE("/:user_id/assignment", userHandlers.RemoveUser)
	userGroup.POST("/:user_id/password-reset", userHandlers.ForcePasswordReset)
	userGroup.GET("/:user_id/audit", userHandlers.GetUserAuditLog)

	// Own profile, any authenticated user.
	profileGroup := v1.Group("/profile", requireAuth)
	profileGroup.GET("", profileHandlers.GetProfile)
	profileGroup.PUT("", profileHandlers.UpdateProfile)
	profileGroup.POST("/change-password", profileHandlers.ChangePassword)

	// Cross-project administration.
	adminGroup := v1.Group("/admin",
		am.RequireAuth(),
		am.BuildGlobalPermissionContext(),
		am.RequireAdmin(),
	)
	adminGroup.GET("/users", userHandlers.ListAllUsers)
	adminGroup.POST("/sync/fam", s.triggerFAMSync)

	return nil
}

// triggerFAMSync queues an immediate synchronization run.
func (s *Server) triggerFAMSync(c echo.Context) error {
	if s.jobQueue == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "FAM synchronization is not configured")
	}
	if err := s.jobQueue.QueueFAMSyncJob(c.Request().Context()); err != nil {
		log.Error().Err(err).Msg("failed to queue FAM sync")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to queue synchronization")
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "queued"})
}

// Start begins the API server and the background workers, then blocks until
// an interrupt arrives.
func (s *Server) Start() error {
	s.tokenService.StartCleanupScheduler()

	if s.jobQueue != nil {
		if err := s.jobQueue.Start(context.Background()); err != nil {
			return fmt.Errorf("failed to start job queue: %w", err)
		}
	}

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.jobQueue != nil {
		if err := s.jobQueue.Stop(ctx); err != nil {
			log.Error().Err(err).Msg("failed to stop job queue")
		}
	}

	return s.echo.Shutdown(ctx)
}
