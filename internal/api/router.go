// Package api exposes the assistant and the quotation records over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/zeus-insurance/zeus-agent/internal/agent"
	"github.com/zeus-insurance/zeus-agent/internal/config"
	"github.com/zeus-insurance/zeus-agent/internal/model"
	"github.com/zeus-insurance/zeus-agent/internal/quote"
)

// maxBodyBytes bounds request bodies; chat turns may carry a base64 image.
const maxBodyBytes = 10 << 20

// Chatter answers chat turns.
type Chatter interface {
	Turn(ctx context.Context, req agent.TurnRequest) (*agent.TurnResponse, error)
}

// HistoryReader loads a session transcript.
type HistoryReader interface {
	Load(ctx context.Context, sessionID string) ([]model.Turn, error)
}

// Quotes reads quotations and orders and records payments.
type Quotes interface {
	GetQuotation(ctx context.Context, id string) (*model.Quotation, error)
	GetOrderStatus(ctx context.Context, orderNumber string) (*model.OrderView, error)
	UpdateOrderPayment(ctx context.Context, in quote.PaymentInput) (*model.Order, error)
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the components the handlers call.
type Deps struct {
	Chat    Chatter
	History HistoryReader
	Quotes  Quotes
	Health  Pinger
}

type handler struct {
	deps Deps
}

// NewRouter builds the HTTP handler.
func NewRouter(deps Deps, cfg config.ServerConfig) http.Handler {
	h := &handler{deps: deps}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		MaxAge:         300,
	}))
	if timeout := cfg.RequestTimeout(); timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}

	r.Get("/health", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.chat)
		r.Get("/sessions/{sessionID}/history", h.history)
		r.Get("/quotations/{quotationID}", h.getQuotation)
		r.Get("/orders/{orderNumber}", h.getOrder)
		r.Post("/orders/{orderID}/payment", h.updatePayment)
	})
	return r
}

// requestLogger logs one line per request with the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			zap.L().Info("api: request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
