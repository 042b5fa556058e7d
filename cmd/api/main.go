package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"complaintdesk/internal/config"
	"complaintdesk/internal/cron"
	"complaintdesk/internal/database"
	"complaintdesk/internal/handlers"
	"complaintdesk/internal/logging"
	"complaintdesk/internal/middleware"
	"complaintdesk/internal/obs"
	"complaintdesk/internal/remote"
	"complaintdesk/internal/roles"
	"complaintdesk/internal/routing"
	"complaintdesk/internal/session"
	"complaintdesk/internal/storage"
)

func main() {
	// 1. Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(cfg.Env, cfg.LogLevel)
	obs.Init(nil)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 2. Session store
	backend, db, closeBackend := openSessionBackend(ctx, cfg, logger)
	defer closeBackend()

	sessions := session.NewManager(backend, session.Options{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}, logger)

	// 3. Remote complaint API
	api := remote.New(remote.Options{
		BaseURL: cfg.RemoteURL,
		Timeout: cfg.RemoteTimeout,
	}, logger)

	// 4. Attachment storage (R2 when configured, local disk otherwise)
	var fileStore storage.Store
	if cfg.Upload.UseR2() {
		fileStore, err = storage.NewR2Store(ctx, storage.R2Options{
			AccountID: cfg.Upload.R2Account,
			AccessKey: cfg.Upload.R2Key,
			SecretKey: cfg.Upload.R2Secret,
			Bucket:    cfg.Upload.R2Bucket,
			PublicURL: cfg.Upload.R2Public,
		})
	} else {
		fileStore, err = storage.NewLocalStore(cfg.Upload.Dir, cfg.Upload.BaseURL)
	}
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize file storage")
	}

	// 5. Router with global middleware
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(logging.Requests(logger))
	r.Use(chimw.Recoverer)
	r.Use(obs.Instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 6. Handlers
	deps := handlers.Deps{
		Sessions:      sessions,
		Remote:        api,
		Logger:        logger,
		SecureCookies: cfg.SecureCookies,
	}
	authHandler := handlers.NewAuthHandler(deps)
	navHandler := handlers.NewNavigationHandler()
	dashboardHandler := handlers.NewDashboardHandler(deps)
	complaintHandler := handlers.NewComplaintHandler(deps, fileStore, cfg.Upload.MaxBytes)
	orgHandler := handlers.NewOrgHandler(deps)
	licenseHandler := handlers.NewLicenseHandler(deps)
	uploadHandler := handlers.NewUploadHandler(fileStore, cfg.Upload.MaxBytes, logger)
	healthHandler := handlers.NewHealthHandler(db, api)

	// Background session sweep
	sweepDone := cron.StartSweeper(ctx, sessions, cfg.SweepInterval, logger)

	// 7. Public routes
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Complaint Desk gateway"))
	})
	r.Get("/api/health", healthHandler.Check)
	r.Handle("/metrics", obs.Handler())

	limiterDone := make(chan struct{})
	r.With(middleware.RateLimit(cfg.LoginRate, cfg.LoginBurst, limiterDone, logger)).
		Post("/api/auth/login", authHandler.Login)
	r.Post("/api/auth/refresh", authHandler.Refresh)

	r.Get("/api/files/*", uploadHandler.ServeFile)

	// Routes that work with or without a session
	r.Group(func(r chi.Router) {
		r.Use(middleware.LoadSession(sessions))

		r.Post("/api/auth/logout", authHandler.Logout)
		r.Get("/api/navigation/decide", navHandler.Decide)
		r.Get("/api/navigation/home", navHandler.Home)
		r.Get("/api/navigation/notice", navHandler.Notice)
	})

	// 8. Page routes, every one checked by the navigation guard
	r.Group(func(r chi.Router) {
		r.Use(middleware.LoadSession(sessions))
		r.Use(middleware.Guard(logger, cfg.SecureCookies))

		for _, page := range []string{
			routing.AdminHome,
			routing.AdminPrefix,
			routing.EmployerPending,
			routing.EmployerHome,
			routing.SubAdminHome,
			routing.SupervisorHome,
			routing.AgentHome,
			routing.CitizenHome,
			routing.OfficerMasterHome,
		} {
			r.Get(page, dashboardHandler.View)
			r.Get(page+"/*", dashboardHandler.View)
		}
	})

	// 9. API routes (require a live session)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(sessions, cfg.SecureCookies))

		r.Get("/api/auth/me", authHandler.Me)
		r.Post("/api/upload", uploadHandler.Upload)

		// Complaints: scope and lifecycle checks happen in the handler
		r.Get("/api/complaints", complaintHandler.List)
		r.With(middleware.RequireRole(roles.Citizen)).Post("/api/complaints", complaintHandler.File)
		r.Route("/api/complaints/{id}", func(r chi.Router) {
			r.Get("/", complaintHandler.Get)
			r.Get("/actions", complaintHandler.Actions)
			r.Post("/{action}", complaintHandler.Act)
		})

		// Organisation management is licensed per company
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(roles.Employer, roles.Admin, roles.SAdmin))
			r.Use(middleware.RequireApproved)

			r.Get("/api/licenses", licenseHandler.Get)
			r.Route("/api/org/{kind}", func(r chi.Router) {
				r.Get("/", orgHandler.List)
				r.Post("/", orgHandler.Create)
				r.Put("/{id}", orgHandler.Update)
				r.Delete("/{id}", orgHandler.Delete)
			})
		})
	})

	// 10. Start server with graceful shutdown
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.WithFields(logrus.Fields{
			"port":    cfg.Port,
			"env":     cfg.Env,
			"backend": cfg.SessionBackend,
		}).Info("server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server failed to start")
		}
	}()

	<-done
	logger.Info("server stopping")

	stop()
	close(limiterDone)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}
	<-sweepDone

	logger.Info("server exited properly")
}

// openSessionBackend connects the configured session store. db is non-nil
// only for the postgres backend so health checks can report on it.
func openSessionBackend(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (session.Backend, database.Service, func()) {
	switch cfg.SessionBackend {
	case config.BackendPostgres:
		db, err := database.New(ctx, &cfg.DB, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to postgres")
		}
		if err := database.EnsureSchema(ctx, db.GetPool()); err != nil {
			db.Close()
			logger.WithError(err).Fatal("failed to prepare session schema")
		}
		return session.NewPostgresBackend(db.GetPool()), db, db.Close

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.WithError(err).Fatal("failed to connect to redis")
		}
		logger.WithField("addr", cfg.RedisAddr).Info("connected to redis")
		return session.NewRedisBackend(client), nil, func() { client.Close() }
	}

	logger.Warn("sessions are kept in memory and will not survive a restart")
	return session.NewMemoryBackend(), nil, func() {}
}
