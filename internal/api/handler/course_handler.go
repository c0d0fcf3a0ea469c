package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"agt_platform/internal/api/middleware"
	"agt_platform/internal/app/service"
	"agt_platform/internal/common"

	"github.com/go-chi/chi/v5"
)

type CourseHandler struct {
	courseService *service.CourseService
	users         middleware.UserResolver
}

func NewCourseHandler(cs *service.CourseService, users middleware.UserResolver) *CourseHandler {
	return &CourseHandler{courseService: cs, users: users}
}

func (h *CourseHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(public chi.Router) {
		public.Use(middleware.OptionalAuthenticator(h.users))
		public.Get("/", h.listCourses)      // GET /api/courses
		public.Get("/{slug}", h.getCourse) // GET /api/courses/intro-to-go
	})

	r.Group(func(member chi.Router) {
		member.Use(middleware.Authenticator(h.users))
		member.Get("/{courseID}/progress", h.progress)
		member.Post("/lessons/{lessonID}/complete", h.completeLesson)
	})

	r.Group(func(staff chi.Router) {
		staff.Use(middleware.Authenticator(h.users))
		staff.Use(middleware.StaffOnly)
		staff.Post("/", h.createCourse)
		staff.Post("/{courseID}/sections", h.addSection)
		staff.Post("/{courseID}/lessons", h.addLesson)
		staff.Post("/{courseID}/access", h.grantAccess)
		staff.Delete("/{courseID}/access/{userID}", h.revokeAccess)
	})
}

// decodeJSON writes the 400 itself and reports whether the handler may continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return false
	}
	return true
}

// queryInt reads an optional integer query parameter, answering 400 when it is malformed.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, name+" must be an integer")
		return 0, false
	}
	return n, true
}

func (h *CourseHandler) listCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.courseService.ListCourses(r.Context())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, courses)
}

func (h *CourseHandler) getCourse(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context()) // empty for anonymous visitors
	role, _ := middleware.GetUserRoleFromContext(r.Context())

	course, err := h.courseService.GetCourse(r.Context(), chi.URLParam(r, "slug"), userID, role)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, course)
}

func (h *CourseHandler) createCourse(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	var req service.CreateCourseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	course, err := h.courseService.CreateCourse(r.Context(), userID, req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, course)
}

func (h *CourseHandler) addSection(w http.ResponseWriter, r *http.Request) {
	var req service.CreateSectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	section, err := h.courseService.AddSection(r.Context(), chi.URLParam(r, "courseID"), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, section)
}

func (h *CourseHandler) addLesson(w http.ResponseWriter, r *http.Request) {
	var req service.CreateLessonRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	lesson, err := h.courseService.AddLesson(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, lesson)
}

func (h *CourseHandler) grantAccess(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.GetUserIDFromContext(r.Context())

	var req service.GrantAccessRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.courseService.GrantAccess(r.Context(), actorID, chi.URLParam(r, "courseID"), req); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CourseHandler) revokeAccess(w http.ResponseWriter, r *http.Request) {
	err := h.courseService.RevokeAccess(r.Context(), chi.URLParam(r, "courseID"), chi.URLParam(r, "userID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CourseHandler) completeLesson(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	if err := h.courseService.CompleteLesson(r.Context(), userID, chi.URLParam(r, "lessonID")); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CourseHandler) progress(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	p, err := h.courseService.Progress(r.Context(), userID, chi.URLParam(r, "courseID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, p)
}
