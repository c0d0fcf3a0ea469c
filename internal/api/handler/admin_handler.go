package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"agt_platform/internal/api/middleware"
	"agt_platform/internal/app/service"
	"agt_platform/internal/common"

	"github.com/go-chi/chi/v5"
)

type AdminHandler struct {
	authService   *service.AuthService
	reportService *service.ReportService
	auditService  *service.AuditService
	jobs          *service.GradingJobService
	now           func() time.Time
}

func NewAdminHandler(
	as *service.AuthService,
	rs *service.ReportService,
	audit *service.AuditService,
	jobs *service.GradingJobService,
) *AdminHandler {
	return &AdminHandler{authService: as, reportService: rs, auditService: audit, jobs: jobs, now: time.Now}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator(h.authService))

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.AdminOnly)
		admin.Get("/users", h.listUsers)                 // GET /api/admin/users?limit=50&offset=0
		admin.Put("/users/{userID}/role", h.setUserRole) // PUT /api/admin/users/{id}/role
	})

	r.Group(func(staff chi.Router) {
		staff.Use(middleware.StaffOnly)
		staff.Get("/assignments/export", h.exportGrades)
		staff.Get("/grading/queue", h.queueDepth)
		staff.Get("/audit/{targetType}/{targetID}", h.auditHistory)
	})
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset")
	if !ok {
		return
	}

	page, err := h.authService.ListUsers(r.Context(), limit, offset)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, page)
}

func (h *AdminHandler) setUserRole(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.GetUserIDFromContext(r.Context())

	var req service.SetRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.authService.SetRole(r.Context(), actorID, chi.URLParam(r, "userID"), req.Role)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}

// exportGrades buffers the workbook so a failed export can still answer with a JSON error.
func (h *AdminHandler) exportGrades(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.reportService.ExportGrades(r.Context(), &buf); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", service.XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", service.ExportFilename(h.now())))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func (h *AdminHandler) auditHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.auditService.History(r.Context(), chi.URLParam(r, "targetType"), chi.URLParam(r, "targetID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, entries)
}

func (h *AdminHandler) queueDepth(w http.ResponseWriter, r *http.Request) {
	depth, err := h.jobs.Depth(r.Context())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]int64{"pending": depth})
}
