package handler

import (
	"errors"
	"net/http"

	"agt_platform/internal/api/middleware"
	"agt_platform/internal/app/service"
	"agt_platform/internal/common"
	"agt_platform/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type AssignmentHandler struct {
	assignments    *service.AssignmentService
	maxUploadBytes int64
}

func NewAssignmentHandler(as *service.AssignmentService, maxUploadBytes int64) *AssignmentHandler {
	return &AssignmentHandler{assignments: as, maxUploadBytes: maxUploadBytes}
}

func (h *AssignmentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.upload)
	r.Get("/", h.list)
	r.Get("/{assignmentID}", h.get)
	r.Post("/{assignmentID}/grade", h.startGrading)
}

func (h *AssignmentHandler) upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		if r.ContentLength > h.maxUploadBytes {
			common.RespondWithError(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.RespondWithError(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
			return
		}
		common.RespondWithError(w, http.StatusBadRequest, "expected multipart/form-data body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "missing file field 'file' in form-data")
		return
	}
	defer file.Close()

	req := service.CreateAssignmentRequest{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     file,
	}
	if userID, ok := middleware.GetUserIDFromContext(r.Context()); ok {
		req.UploadedBy = &userID
	}

	a, err := h.assignments.Create(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, map[string]string{"id": a.ID})
}

func (h *AssignmentHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	items, err := h.assignments.List(r.Context(), limit)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, items)
}

func (h *AssignmentHandler) get(w http.ResponseWriter, r *http.Request) {
	a, err := h.assignments.Get(r.Context(), chi.URLParam(r, "assignmentID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, a)
}

type startGradingResponse struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
}

func (h *AssignmentHandler) startGrading(w http.ResponseWriter, r *http.Request) {
	var actor *string
	if userID, ok := middleware.GetUserIDFromContext(r.Context()); ok {
		actor = &userID
	}
	if _, err := h.assignments.StartGrading(r.Context(), chi.URLParam(r, "assignmentID"), actor); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	// The worker may already have resolved it; the caller polls for the outcome.
	common.RespondWithJSON(w, http.StatusAccepted, startGradingResponse{OK: true, Status: string(model.StatusGrading)})
}
