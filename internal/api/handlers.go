package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zeus-insurance/zeus-agent/internal/agent"
	"github.com/zeus-insurance/zeus-agent/internal/apperr"
	"github.com/zeus-insurance/zeus-agent/internal/model"
	"github.com/zeus-insurance/zeus-agent/internal/quote"
)

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if h.deps.Health != nil {
		if err := h.deps.Health.Ping(r.Context()); err != nil {
			zap.L().Warn("api: health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "zeus-agent"})
}

func (h *handler) chat(w http.ResponseWriter, r *http.Request) {
	var req agent.TurnRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := h.deps.Chat.Turn(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type historyResponse struct {
	SessionID string       `json:"session_id"`
	Turns     []model.Turn `json:"turns"`
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	turns, err := h.deps.History.Load(r.Context(), sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{SessionID: sessionID, Turns: turns})
}

func (h *handler) getQuotation(w http.ResponseWriter, r *http.Request) {
	q, err := h.deps.Quotes.GetQuotation(r.Context(), chi.URLParam(r, "quotationID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	v, err := h.deps.Quotes.GetOrderStatus(r.Context(), chi.URLParam(r, "orderNumber"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type paymentRequest struct {
	PaymentStatus model.PaymentStatus `json:"payment_status"`
	PaymentDate   *time.Time          `json:"payment_date,omitempty"`
}

func (h *handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	o, err := h.deps.Quotes.UpdateOrderPayment(r.Context(), quote.PaymentInput{
		OrderID:     chi.URLParam(r, "orderID"),
		Status:      req.PaymentStatus,
		PaymentDate: req.PaymentDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// decodeBody reads a JSON body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large", Kind: apperr.KindValidation})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body", Kind: apperr.KindValidation})
		return false
	}
	return true
}

type errorBody struct {
	Error string      `json:"error"`
	Kind  apperr.Kind `json:"kind"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindExpired:
		return http.StatusGone
	case apperr.KindInvalidTransition, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Upstream and internal failures get a generic
// message; their details only go to the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	body := errorBody{Error: apperr.Message(err), Kind: kind}

	fields := []zap.Field{
		zap.String("path", r.URL.Path),
		zap.String("kind", string(kind)),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	}
	switch {
	case kind == apperr.KindUpstream:
		body.Error = "a backing service is temporarily unavailable, please try again"
		zap.L().Error("api: upstream failure", fields...)
	case status == http.StatusInternalServerError:
		body = errorBody{Error: "internal error", Kind: apperr.KindInternal}
		zap.L().Error("api: internal error", fields...)
	default:
		zap.L().Info("api: request rejected", fields...)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}
