package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"admin-console/internal/api_client"
	"admin-console/internal/cache"
	"admin-console/internal/config"
	"admin-console/internal/handler"
	"admin-console/internal/middleware"
	"admin-console/internal/resources"
	"admin-console/internal/session"
	"admin-console/internal/telegram_bot"
	"admin-console/internal/web"
)

type Server struct {
	router   *gin.Engine
	cfg      *config.Config
	registry *session.Registry
	client   *api_client.Client
	set      *resources.Set
	cache    cache.Cache
	bot      *telegram_bot.Bot
	logger   *zap.Logger
}

func NewServer(cfg *config.Config, registry *session.Registry, client *api_client.Client, set *resources.Set, c cache.Cache, bot *telegram_bot.Bot, logger *zap.Logger) *Server {
	router := gin.New()
	router.Use(middleware.Recovery(logger), middleware.RequestLogger(logger))
	router.SetHTMLTemplate(web.Templates())

	s := &Server{
		router:   router,
		cfg:      cfg,
		registry: registry,
		client:   client,
		set:      set,
		cache:    c,
		bot:      bot,
		logger:   logger,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	guard := middleware.Guard{LoginPath: s.cfg.Server.LoginPath, LandingPath: s.cfg.Server.LandingPath}

	authHandler := handler.NewAuthHandler(s.client, s.set.Staff, s.cache, guard, s.bot, s.logger)
	announcementHandler := handler.NewAnnouncementHandler(s.set.Announcements, guard, s.logger)
	userHandler := handler.NewUserHandler(s.set.Users, guard, s.bot, s.logger)
	staffHandler := handler.NewStaffHandler(s.set.Staff, guard, s.bot, s.logger)
	districtHandler := handler.NewDistrictHandler(s.set.Districts, guard, s.bot, s.logger)
	notificationHandler := handler.NewNotificationHandler(s.set.Notifications, guard, s.bot, s.logger)
	settingsHandler := handler.NewSettingsHandler(s.set.Settings, guard, s.bot, s.logger)
	exportHandler := handler.NewExportHandler(s.set, guard, s.bot, s.logger)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	console := s.router.Group("/")
	console.Use(middleware.Session(s.registry, middleware.SessionOptions{
		CookieName: s.cfg.Server.CookieName,
		Secure:     s.cfg.Server.SecureCookie,
		MaxAge:     s.cfg.Server.SessionIdleTTL,
	}, s.logger))

	console.GET(guard.LoginPath, authHandler.LoginPage)
	console.POST(guard.LoginPath, authHandler.Login)
	console.POST("/logout", authHandler.Logout)

	authRequired := console.Group("/")
	authRequired.Use(guard.RequireAuth())
	{
		authRequired.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusFound, guard.LandingPath)
		})
		authRequired.GET("/profile/password", authHandler.PasswordPage)
		authRequired.POST("/profile/password", authHandler.ChangeOwnPassword)

		authRequired.GET("/announcements", announcementHandler.List)
		authRequired.GET("/announcements/:id", announcementHandler.Detail)

		authRequired.GET("/users", userHandler.List)
		authRequired.GET("/users/:id", userHandler.Detail)
		authRequired.POST("/users/:id/toggle-active", userHandler.ToggleActive)

		authRequired.GET("/districts", districtHandler.List)
		authRequired.GET("/districts/new", districtHandler.NewPage)
		authRequired.POST("/districts/new", districtHandler.Create)
		authRequired.GET("/districts/:id/edit", districtHandler.EditPage)
		authRequired.POST("/districts/:id/edit", districtHandler.Update)
		authRequired.POST("/districts/:id/delete", districtHandler.Delete)

		authRequired.GET("/notifications", notificationHandler.List)
		authRequired.POST("/notifications/:id/read", notificationHandler.MarkRead)

		authRequired.GET("/settings/app", settingsHandler.Get)
		authRequired.POST("/settings/app", settingsHandler.Update)

		authRequired.GET("/export/:resource", exportHandler.Export)
	}

	staffOnly := console.Group("/")
	staffOnly.Use(guard.RequireAuth(handler.StaffRoles...))
	{
		staffOnly.GET("/staff", staffHandler.List)
		staffOnly.POST("/staff/:id/toggle-active", staffHandler.ToggleActive)
		staffOnly.POST("/staff/:id/delete", staffHandler.Delete)
		staffOnly.GET("/create-staff", staffHandler.CreatePage)
		staffOnly.POST("/create-staff", staffHandler.Create)
		staffOnly.GET("/edit-staff/:id", staffHandler.EditPage)
		staffOnly.POST("/edit-staff/:id", staffHandler.Update)
		staffOnly.GET("/edit-staff/:id/password", staffHandler.PasswordPage)
		staffOnly.POST("/edit-staff/:id/password", staffHandler.ChangePassword)
	}

	s.router.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		c.Redirect(http.StatusFound, guard.LandingPath)
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Server.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
