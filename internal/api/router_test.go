package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zeus-insurance/zeus-agent/internal/agent"
	"github.com/zeus-insurance/zeus-agent/internal/apperr"
	"github.com/zeus-insurance/zeus-agent/internal/config"
	"github.com/zeus-insurance/zeus-agent/internal/model"
	"github.com/zeus-insurance/zeus-agent/internal/quote"
	"github.com/zeus-insurance/zeus-agent/internal/store"
	"github.com/zeus-insurance/zeus-agent/internal/store/storetest"
	"github.com/zeus-insurance/zeus-agent/internal/transcript"
)

type mockChatter struct {
	mock.Mock
}

func (m *mockChatter) Turn(ctx context.Context, req agent.TurnRequest) (*agent.TurnResponse, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*agent.TurnResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type fixture struct {
	handler http.Handler
	chat    *mockChatter
	quotes  *quote.Service
	store   store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := storetest.NewSeeded(t)
	svc := quote.NewService(st, config.QuoteConfig{
		ValidityDays: 30, Timezone: "Asia/Bangkok", SuffixLen: 6, MaxNumberAttempts: 5,
	}, config.PaymentConfig{Currency: "THB", PromptPayID: "0123456789"})
	chat := &mockChatter{}
	h := NewRouter(Deps{
		Chat:    chat,
		History: transcript.NewHistory(st, 20),
		Quotes:  svc,
		Health:  st,
	}, config.ServerConfig{AllowedOrigins: []string{"https://zeus.example"}, RequestTimeoutSecs: 5})
	return &fixture{handler: h, chat: chat, quotes: svc, store: st}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (f *fixture) order(t *testing.T) *quote.OrderResult {
	t.Helper()
	ctx := context.Background()
	q, err := f.quotes.CreateQuotation(ctx, quote.CreateQuotationInput{
		SessionID: "s-1", VehicleID: storetest.CivicHEVRS2024, PlanID: storetest.ComprehensivePlus,
	})
	require.NoError(t, err)
	res, err := f.quotes.CreateOrder(ctx, q.ID, model.PaymentMethodBankTransfer)
	require.NoError(t, err)
	return res
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestHealth_StoreDown(t *testing.T) {
	h := NewRouter(Deps{Health: pingFunc(func(context.Context) error { return errors.New("down") })}, config.ServerConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestChat(t *testing.T) {
	f := newFixture(t)
	f.chat.On("Turn", mock.Anything, agent.TurnRequest{SessionID: "s-9", Message: "สวัสดี"}).
		Return(&agent.TurnResponse{SessionID: "s-9", Reply: "สวัสดีครับ", Model: "m", ToolCalls: []agent.ToolCall{}, Iterations: 1}, nil)

	rec := f.do(t, http.MethodPost, "/api/chat", `{"session_id":"s-9","message":"สวัสดี"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, "s-9", out["session_id"])
	assert.Equal(t, "สวัสดีครับ", out["reply"])
	f.chat.AssertExpectations(t)
}

func TestChat_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		kind    string
		message string
	}{
		{"validation", apperr.Validation("message is required"), http.StatusBadRequest, "validation", "message is required"},
		{"busy session", apperr.Conflict("session s-1 is busy with another message"), http.StatusConflict, "conflict", "session s-1 is busy with another message"},
		{"upstream", apperr.Upstream(errors.New("anthropic: 529 overloaded"), "assistant unavailable"), http.StatusBadGateway, "upstream", "a backing service is temporarily unavailable, please try again"},
		{"internal", errors.New("nil pointer somewhere"), http.StatusInternalServerError, "internal", "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.chat.On("Turn", mock.Anything, mock.Anything).Return(nil, tt.err)

			rec := f.do(t, http.MethodPost, "/api/chat", `{"message":"hi"}`)
			assert.Equal(t, tt.status, rec.Code)
			out := decode(t, rec)
			assert.Equal(t, tt.kind, out["kind"])
			assert.Equal(t, tt.message, out["error"])
			assert.NotContains(t, rec.Body.String(), "529")
		})
	}
}

func TestChat_BadBody(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/chat", `{"message":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.chat.AssertNotCalled(t, "Turn", mock.Anything, mock.Anything)
}

func TestChat_BodyTooLarge(t *testing.T) {
	f := newFixture(t)

	body := `{"message":"hi","image_base64":"` + strings.Repeat("A", maxBodyBytes) + `"}`
	rec := f.do(t, http.MethodPost, "/api/chat", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, transcript.NewHistory(f.store, 20).Record(context.Background(), "s-2", "hello", "hi there"))

	rec := f.do(t, http.MethodGet, "/api/sessions/s-2/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	turns := out["turns"].([]any)
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].(map[string]any)["role"])
	assert.Equal(t, "hi there", turns[1].(map[string]any)["message"])

	rec = f.do(t, http.MethodGet, "/api/sessions/unknown/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["turns"])
}

func TestGetQuotation(t *testing.T) {
	f := newFixture(t)
	res := f.order(t)

	rec := f.do(t, http.MethodGet, "/api/quotations/"+res.Order.QuotationID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "accepted", out["status"])
	total, err := decimal.NewFromString(out["total_premium"].(string))
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(25000)), total.String())

	rec = f.do(t, http.MethodGet, "/api/quotations/00000000-0000-0000-0000-000000000000", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec)["kind"])
}

func TestGetOrder(t *testing.T) {
	f := newFixture(t)
	res := f.order(t)

	rec := f.do(t, http.MethodGet, "/api/orders/"+res.Order.Number, "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	order := out["order"].(map[string]any)
	assert.Equal(t, "pending", order["payment_status"])
	assert.Equal(t, "bank_transfer", order["payment_method"])

	rec = f.do(t, http.MethodGet, "/api/orders/ORD-20250101-000000", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdatePayment(t *testing.T) {
	f := newFixture(t)
	res := f.order(t)
	path := "/api/orders/" + res.Order.ID + "/payment"

	rec := f.do(t, http.MethodPost, path, `{"payment_status":"paid"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, "paid", out["payment_status"])
	assert.Equal(t, "active", out["policy_status"])
	assert.NotEmpty(t, out["payment_date"])

	rec = f.do(t, http.MethodPost, path, `{"payment_status":"failed"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decode(t, rec)["kind"])

	rec = f.do(t, http.MethodPost, path, `{"payment_status":"refunded"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decode(t, rec)["policy_status"])
}

func TestCORS(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://zeus.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://zeus.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
