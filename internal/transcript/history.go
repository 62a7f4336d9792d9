// Package transcript stores and replays chat session turns and serialises
// concurrent turns for the same session.
package transcript

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/zeus-insurance/zeus-agent/internal/apperr"
	"github.com/zeus-insurance/zeus-agent/internal/model"
	"github.com/zeus-insurance/zeus-agent/internal/store"
)

// DefaultWindow is the number of most recent turns replayed per request.
const DefaultWindow = 20

// History reads and appends session transcripts.
type History struct {
	store  store.Store
	window int
	now    func() time.Time
}

// NewHistory creates a History that replays at most window turns.
func NewHistory(st store.Store, window int) *History {
	if window <= 0 {
		window = DefaultWindow
	}
	return &History{
		store:  st,
		window: window,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Window returns the configured replay window.
func (h *History) Window() int { return h.window }

// Load returns the most recent turns of a session in chronological order.
// An unknown session has an empty history.
func (h *History) Load(ctx context.Context, sessionID string) ([]model.Turn, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, apperr.Validation("session_id is required")
	}
	turns, err := h.store.RecentTurns(ctx, sessionID, h.window)
	if err != nil {
		return nil, apperr.Upstream(eris.Wrap(err, "transcript: load"), "database unavailable")
	}
	if turns == nil {
		turns = []model.Turn{}
	}
	return turns, nil
}

// Record appends one exchange: the user's message followed by the
// assistant's reply.
func (h *History) Record(ctx context.Context, sessionID, user, assistant string) error {
	if strings.TrimSpace(sessionID) == "" {
		return apperr.Validation("session_id is required")
	}
	now := h.now()
	err := h.store.AppendTurns(ctx,
		model.Turn{SessionID: sessionID, Role: model.RoleUser, Message: user, CreatedAt: now},
		model.Turn{SessionID: sessionID, Role: model.RoleAssistant, Message: assistant, CreatedAt: now},
	)
	if err != nil {
		return apperr.Upstream(eris.Wrap(err, "transcript: record"), "database unavailable")
	}
	zap.L().Debug("transcript: exchange recorded", zap.String("session_id", sessionID))
	return nil
}
