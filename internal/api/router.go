package api

import (
	"net/http"
	"time"

	"agt_platform/internal/api/handler"
	"agt_platform/internal/api/middleware"
	"agt_platform/internal/app/service"
	"agt_platform/internal/common/security"
	"agt_platform/internal/platform/config"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Auth        *service.AuthService
	Assignments *service.AssignmentService
	Identity    *service.IdentityService
	Courses     *service.CourseService
	Reports     *service.ReportService
	Audit       *service.AuditService
	Jobs        *service.GradingJobService
}

func NewRouter(
	cfg *config.Config,
	tokens *security.TokenIssuer,
	verifier *security.WebhookVerifier,
	svc Services,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Parses "Authorization: Bearer T" when present. Handlers decide whether it is required.
	r.Use(jwtauth.Verifier(tokens.JWTAuth()))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(api chi.Router) {
		handler.NewAuthHandler(svc.Auth).RegisterRoutes(api)

		handler.NewWebhookHandler(svc.Identity, verifier, svc.Assignments, cfg.GradingCallbackSecret).
			RegisterRoutes(api)

		assignmentHandler := handler.NewAssignmentHandler(svc.Assignments, cfg.MaxUploadBytes)
		api.Route("/assignments", func(ar chi.Router) {
			ar.Use(middleware.OptionalAuthenticator(svc.Auth))
			assignmentHandler.RegisterRoutes(ar)
		})

		courseHandler := handler.NewCourseHandler(svc.Courses, svc.Auth)
		api.Route("/courses", courseHandler.RegisterRoutes)

		adminHandler := handler.NewAdminHandler(svc.Auth, svc.Reports, svc.Audit, svc.Jobs)
		api.Route("/admin", adminHandler.RegisterRoutes)
	})

	return r
}
