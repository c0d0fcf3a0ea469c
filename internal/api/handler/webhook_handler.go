package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"agt_platform/internal/app/service"
	"agt_platform/internal/common"
	"agt_platform/internal/common/security"
	"agt_platform/internal/domain/model"
	"agt_platform/internal/identity"
	"agt_platform/internal/platform/logger"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	HeaderGradingSecret = "X-Grading-Secret"
	maxWebhookBytes     = 1 << 20
)

type WebhookHandler struct {
	identity      *service.IdentityService
	verifier      *security.WebhookVerifier
	assignments   *service.AssignmentService
	gradingSecret string
	log           zerolog.Logger
}

func NewWebhookHandler(
	is *service.IdentityService,
	verifier *security.WebhookVerifier,
	as *service.AssignmentService,
	gradingSecret string,
) *WebhookHandler {
	return &WebhookHandler{
		identity:      is,
		verifier:      verifier,
		assignments:   as,
		gradingSecret: gradingSecret,
		log:           logger.Component("webhooks"),
	}
}

func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/identity", h.handleIdentityEvent)
	r.Post("/grading/callback", h.handleGradingResult)
}

// handleIdentityEvent answers 400 only for authentication failures. Once a delivery is
// verified it is acknowledged, so the provider does not redeliver on our own errors.
func (h *WebhookHandler) handleIdentityEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Error occurred -- could not read body")
		return
	}

	deliveryID, err := h.verifier.Verify(body, r.Header)
	if err != nil {
		h.log.Warn().Err(err).Msg("Rejected identity webhook")
		if errors.Is(err, security.ErrMissingSignatureHeaders) {
			common.RespondWithError(w, http.StatusBadRequest, "Error occurred -- no svix headers")
			return
		}
		common.RespondWithError(w, http.StatusBadRequest, "Error occurred")
		return
	}

	ev, err := identity.ParseEvent(body)
	if err != nil {
		h.log.Error().Err(err).Str("delivery_id", deliveryID).Msg("Verified identity webhook has a malformed body")
		common.RespondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}

	if err := h.identity.HandleEvent(r.Context(), deliveryID, ev); err != nil {
		h.log.Error().Err(err).Str("delivery_id", deliveryID).Str("type", ev.Type).Msg("Failed to apply identity event")
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *WebhookHandler) handleGradingResult(w http.ResponseWriter, r *http.Request) {
	if !security.SecretsEqual(h.gradingSecret, r.Header.Get(HeaderGradingSecret)) {
		common.RespondWithError(w, http.StatusUnauthorized, "Invalid grading secret")
		return
	}

	var payload model.GradingResultPayload
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBytes)).Decode(&payload); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid grading payload")
		return
	}
	if payload.AssignmentID == "" {
		common.RespondWithError(w, http.StatusBadRequest, "assignment_id is required")
		return
	}

	a, err := h.assignments.RecordResult(r.Context(), payload.AssignmentID, payload.GradingOutcome)
	if err != nil {
		h.log.Warn().Err(err).Str("assignment_id", payload.AssignmentID).Msg("Grading callback rejected")
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, a)
}
