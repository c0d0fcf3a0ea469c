package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agt_platform/internal/api"
	"agt_platform/internal/app/grader"
	"agt_platform/internal/app/service"
	"agt_platform/internal/app/worker"
	"agt_platform/internal/common/security"
	"agt_platform/internal/domain/repository"
	"agt_platform/internal/identity"
	"agt_platform/internal/platform/config"
	"agt_platform/internal/platform/database"
	"agt_platform/internal/platform/logger"
	"agt_platform/internal/platform/queue"
	"agt_platform/internal/platform/storage"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg); err != nil {
		logger.Get().Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

// run owns every resource it opens, so deferred closes complete before main exits.
func run(cfg *config.Config) error {
	log := logger.Get()

	if cfg.IdentityWebhookSecret == "" {
		return errors.New("IDENTITY_WEBHOOK_SECRET is required")
	}
	verifier, err := security.NewWebhookVerifier(cfg.IdentityWebhookSecret)
	if err != nil {
		return fmt.Errorf("identity webhook secret: %w", err)
	}
	if cfg.GradingCallbackSecret == "" {
		log.Warn().Msg("GRADING_CALLBACK_SECRET not set, the grading callback will reject every request")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.Close(db)
	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	gdb, err := database.OpenGorm(db)
	if err != nil {
		return fmt.Errorf("open gorm session: %w", err)
	}

	rdb, err := queue.ConnectRedis(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer queue.CloseRedis(rdb)

	store, err := storage.New(cfg)
	if err != nil {
		return fmt.Errorf("initialise object storage: %w", err)
	}

	tokens := security.NewTokenIssuer(cfg.JWTKey, cfg.JWTExp)

	// Repositories
	assignmentRepo := repository.NewPgAssignmentRepository(db)
	userRepo := repository.NewGormUserRepository(gdb)
	courseRepo := repository.NewGormCourseRepository(gdb)
	auditRepo := repository.NewGormAuditRepository(gdb)

	// Services
	provider := identity.NewProvider(cfg)
	auditService := service.NewAuditService(auditRepo)
	jobs := service.NewGradingJobService(rdb, cfg.GradingQueueName)
	assignmentService := service.NewAssignmentService(assignmentRepo, store, jobs, auditService, cfg.AssignmentListMaxLimit)
	deliveries := queue.NewDeduper(rdb, "identity_delivery:", cfg.IdentityDedupeTTL)
	svc := api.Services{
		Auth:        service.NewAuthService(userRepo, tokens, provider, auditService),
		Assignments: assignmentService,
		Identity:    service.NewIdentityService(userRepo, provider, deliveries, auditService),
		Courses:     service.NewCourseService(courseRepo, auditService),
		Reports:     service.NewReportService(assignmentRepo),
		Audit:       auditService,
		Jobs:        jobs,
	}

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      api.NewRouter(cfg, tokens, verifier, svc),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.APIPort).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	locker := queue.NewLocker(rdb, cfg.GradingLockPrefix, cfg.GradingLockTTL())
	heuristic := grader.NewHeuristicGrader()
	for i := 1; i <= cfg.GradingWorkerCount; i++ {
		w := worker.NewGradingWorker(fmt.Sprintf("grader-%d", i), jobs, locker, assignmentService, heuristic, cfg.GradingTimeout)
		g.Go(func() error { return w.Start(gctx) })
	}

	sweeper := worker.NewSweeper(assignmentService, cfg.GradingTimeout, cfg.GradingSweepInterval)
	g.Go(func() error { return sweeper.Start(gctx) })

	log.Info().Int("workers", cfg.GradingWorkerCount).Msg("Grading workers started")

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server and workers stopped gracefully")
	return nil
}
