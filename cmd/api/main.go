package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/generyand/sinag-sub010/internal/config"
	"github.com/generyand/sinag-sub010/internal/cron"
	"github.com/generyand/sinag-sub010/internal/ctxkeys"
	"github.com/generyand/sinag-sub010/internal/database"
	"github.com/generyand/sinag-sub010/internal/handlers"
	"github.com/generyand/sinag-sub010/internal/logging"
	"github.com/generyand/sinag-sub010/internal/metrics"
	"github.com/generyand/sinag-sub010/internal/middleware"
	"github.com/generyand/sinag-sub010/internal/storage"
	"github.com/generyand/sinag-sub010/internal/template"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sinag-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Configuration and logging
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. PostgreSQL, schema and seed data
	db, err := database.New(ctx, &cfg.DB)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db.GetPool()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := seedIndicators(ctx, db, cfg.TemplatesDir); err != nil {
		return err
	}
	if cfg.AdminEmail != "" {
		created, err := handlers.EnsureSuperAdmin(ctx, db, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return err
		}
		if created {
			logger.Info("created bootstrap super_admin", zap.String("email", cfg.AdminEmail))
		}
	}

	// 3. MOV file storage
	fileStore, err := newStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize file storage: %w", err)
	}

	// 4. Router with global middleware
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(metrics.HTTP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 5. Handlers
	authHandler := handlers.NewAuthHandler(db, cfg.JWTSecret)
	userHandler := handlers.NewUserManagementHandler(db)
	barangayHandler := handlers.NewBarangayHandler(db)
	indicatorHandler := handlers.NewIndicatorHandler(db)
	assessmentHandler := handlers.NewAssessmentHandler(db)
	bbiHandler := handlers.NewBBIHandler(db)
	movHandler := handlers.NewMOVFileHandler(db, fileStore)
	fileHandler := handlers.NewFileHandler(db, fileStore)
	dashboardHandler := handlers.NewDashboardHandler(db)
	activityHandler := handlers.NewActivityHandler(db)

	cron.StartSweeper(ctx, db, cfg.SweepInterval)

	// 6. Public routes
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("SINAG assessment API"))
	})
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(db.Health())
	})
	r.Handle("/metrics", metrics.Handler())

	r.With(middleware.RateLimit(rate.Every(12*time.Second), 5)).Post("/api/auth/register", authHandler.Register)
	r.With(middleware.RateLimit(rate.Every(12*time.Second), 5)).Post("/api/auth/login", authHandler.Login)

	// 7. Authenticated routes. BLGU users are pinned to their barangay.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.InjectBarangayScope(db.GetPool()))

		r.Get("/api/auth/me", authHandler.GetMe)

		r.Get("/api/barangays", barangayHandler.List)
		r.Get("/api/indicators", indicatorHandler.List)
		r.Get("/api/indicators/{id}", indicatorHandler.Get)
		r.Get("/api/bbis", bbiHandler.List)
		r.Get("/api/bbi-statuses", bbiHandler.ListStatuses)

		// Assessments. Workflow actions check the caller's role themselves.
		r.Get("/api/assessments", assessmentHandler.List)
		r.Get("/api/assessments/{id}", assessmentHandler.Get)
		r.Post("/api/assessments/{id}/actions/{action}", assessmentHandler.Action)
		r.Get("/api/assessments/{id}/files", movHandler.List)
		r.Get("/api/files/*", fileHandler.ServeFile)

		r.With(middleware.RequireRoles(ctxkeys.RoleBLGU, ctxkeys.RoleMLGOO, ctxkeys.RoleSuperAdmin)).
			Post("/api/assessments", assessmentHandler.Create)

		// BLGU data entry
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRoles(ctxkeys.RoleBLGU, ctxkeys.RoleSuperAdmin))
			r.Put("/api/assessments/{id}/responses/{indicatorId}", assessmentHandler.SaveResponse)
			r.Post("/api/assessments/{id}/indicators/{indicatorId}/files", movHandler.Upload)
			r.Delete("/api/mov-files/{fileId}", movHandler.Delete)
		})

		// Reviewers and above
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireMinRole(ctxkeys.RoleAssessor))
			r.Get("/api/dashboard/analytics", dashboardHandler.GetAnalytics)
			r.Get("/api/activity", activityHandler.List)
		})

		// MLGOO administration
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireMinRole(ctxkeys.RoleMLGOO))

			r.Get("/api/users", userHandler.List)
			r.Patch("/api/users/{id}/role", userHandler.UpdateRole)
			r.Patch("/api/users/{id}/barangay", userHandler.AssignBarangay)
			r.Delete("/api/users/{id}", userHandler.Delete)

			r.Post("/api/barangays", barangayHandler.Create)
			r.Put("/api/barangays/{id}", barangayHandler.Update)
			r.Delete("/api/barangays/{id}", barangayHandler.Delete)

			r.Post("/api/indicators", indicatorHandler.Create)
			r.Post("/api/indicators/validate-checklist", indicatorHandler.ValidateChecklist)
			r.Post("/api/indicators/validate-calculation", indicatorHandler.ValidateCalculation)
			r.Put("/api/indicators/{id}", indicatorHandler.Update)
			r.Delete("/api/indicators/{id}", indicatorHandler.Delete)
			r.Post("/api/indicators/{id}/preview", indicatorHandler.Preview)

			r.Put("/api/bbis/{id}/status", bbiHandler.SetStatus)

			r.Post("/api/assessments/{id}/unlock", assessmentHandler.Unlock)
		})
	})

	// 8. Serve until SIGINT/SIGTERM, then drain
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited properly")
	return nil
}

// seedIndicators loads the bundled templates, or the ones in dir when set,
// and inserts any indicator codes the database does not have yet.
func seedIndicators(ctx context.Context, db database.Service, dir string) error {
	var inds []template.Indicator
	var err error
	if dir != "" {
		inds, err = template.LoadDir(dir)
	} else {
		inds, err = template.LoadDefaults()
	}
	if err != nil {
		return fmt.Errorf("load indicator templates: %w", err)
	}

	n, err := template.Seed(ctx, db.GetPool(), inds)
	if err != nil {
		return err
	}
	zap.L().Info("indicator templates seeded", zap.Int("templates", len(inds)), zap.Int("inserted", n))
	return nil
}

func newStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.Upload.Driver == "r2" {
		return storage.NewR2Store(ctx, cfg.R2.AccountID, cfg.R2.AccessKey, cfg.R2.SecretKey, cfg.R2.Bucket, cfg.R2.PublicURL)
	}
	return storage.NewLocalStore(cfg.Upload.Dir, cfg.Upload.BaseURL)
}
