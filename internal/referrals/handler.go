package referrals

import (
	"encoding/json"
	"errors"
	"net/http"

	httpmiddleware "github.com/wolfman30/parcelis-referrals/internal/http/middleware"
	"github.com/wolfman30/parcelis-referrals/internal/observability/metrics"
	"github.com/wolfman30/parcelis-referrals/pkg/logging"
)

const maxBodyBytes = 64 << 10

// Messages returned to callers. They never carry internal detail.
const (
	msgInvalidBody  = "Invalid request body"
	msgValidation   = "Please correct the highlighted fields."
	msgCaptcha      = MsgCaptchaFailed
	msgRateLimited  = "Too many requests. Please try again later."
	msgSubmitFailed = "Failed to submit referral. Please try again."
	msgUnexpected   = "An unexpected error occurred. Please try again."
)

// Handler handles HTTP requests for referrals
type Handler struct {
	gateway *Gateway
	metrics *metrics.ReferralMetrics
	logger  *logging.Logger
}

// NewHandler creates a new referrals handler
func NewHandler(gateway *Gateway, m *metrics.ReferralMetrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		gateway: gateway,
		metrics: m,
		logger:  logger,
	}
}

// Submit handles POST /api/referrals requests
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	callerKey := httpmiddleware.ClientKey(r)
	if err := h.gateway.Admit(r.Context(), callerKey); err != nil {
		h.writeError(w, err)
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.Info("failed to decode referral request", "error", err, "caller_key", callerKey)
		h.metrics.ObserveSubmission(metrics.OutcomeValidation)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msgInvalidBody})
		return
	}

	ref, err := h.gateway.Submit(r.Context(), callerKey, req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.metrics.ObserveSubmission(metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, SubmitResponse{Success: true, ReferralID: ref.ID})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		h.metrics.ObserveSubmission(metrics.OutcomeValidation)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msgValidation, Fields: verr.Fields})
	case errors.Is(err, ErrCaptcha):
		h.metrics.ObserveSubmission(metrics.OutcomeCaptcha)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msgCaptcha})
	case errors.Is(err, ErrRateLimited):
		h.metrics.ObserveSubmission(metrics.OutcomeRateLimited)
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: msgRateLimited})
	case errors.Is(err, ErrPersistence):
		h.metrics.ObserveSubmission(metrics.OutcomePersistence)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: msgSubmitFailed})
	default:
		h.logger.Error("unexpected referral error", "error", err)
		h.metrics.ObserveSubmission(metrics.OutcomeInternal)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: msgUnexpected})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
