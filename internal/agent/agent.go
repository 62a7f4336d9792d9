// Package agent runs chat turns: it replays the session transcript, lets the
// model call the quotation tools, and records the exchange.
package agent

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zeus-insurance/zeus-agent/internal/apperr"
	"github.com/zeus-insurance/zeus-agent/internal/cost"
	"github.com/zeus-insurance/zeus-agent/internal/model"
	"github.com/zeus-insurance/zeus-agent/internal/transcript"
	"github.com/zeus-insurance/zeus-agent/pkg/anthropic"
)

const (
	// DefaultImagePrompt stands in for the message text of an image-only turn.
	DefaultImagePrompt = "Please analyze this image and help me with an insurance quotation."

	// FallbackReply is returned when the model stops without an answer.
	FallbackReply = "Sorry, I could not finish working on that. Could you rephrase your request or add more details?"

	defaultMaxIterations = 8
	defaultLockWait      = 30 * time.Second
	maxParallelTools     = 4
)

var imageMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Executor runs one decoded tool request for a session.
type Executor interface {
	Dispatch(ctx context.Context, sessionID string, req Request) (Result, error)
}

// Config tunes the turn loop.
type Config struct {
	Model               string
	MaxTokens           int64
	Temperature         float64
	MaxIterations       int
	AllowPaymentUpdates bool
	LockWait            time.Duration
	Location            *time.Location
}

// Agent answers chat turns.
type Agent struct {
	llm     anthropic.Client
	exec    Executor
	history *transcript.History
	locker  transcript.Locker
	costs   *cost.Calculator
	cfg     Config
	now     func() time.Time
}

// New creates an Agent.
func New(llm anthropic.Client, exec Executor, history *transcript.History, locker transcript.Locker, costs *cost.Calculator, cfg Config) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = defaultLockWait
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Agent{
		llm:     llm,
		exec:    exec,
		history: history,
		locker:  locker,
		costs:   costs,
		cfg:     cfg,
		now:     time.Now,
	}
}

// TurnRequest is one user message. SessionID may be empty to start a new
// session. Model overrides the configured model for this turn only.
type TurnRequest struct {
	SessionID      string `json:"session_id"`
	Message        string `json:"message"`
	ImageBase64    string `json:"image_base64,omitempty"`
	ImageMediaType string `json:"image_media_type,omitempty"`
	Model          string `json:"model,omitempty"`
}

// ToolCall summarises one tool invocation made during a turn.
type ToolCall struct {
	Tool      ToolName    `json:"tool"`
	Success   bool        `json:"success"`
	ErrorKind apperr.Kind `json:"error_kind,omitempty"`
}

// TurnResponse is the assistant's answer to a TurnRequest.
type TurnResponse struct {
	SessionID  string               `json:"session_id"`
	Reply      string               `json:"reply"`
	Model      string               `json:"model"`
	ToolCalls  []ToolCall           `json:"tool_calls"`
	Iterations int                  `json:"iterations"`
	Usage      anthropic.TokenUsage `json:"-"`
	CostUSD    float64              `json:"cost_usd"`
}

// Turn handles one user message end to end. Turns for the same session are
// serialised; a turn that cannot get the session lock in time fails with a
// conflict.
func (a *Agent) Turn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	text, image, err := userContent(req)
	if err != nil {
		return nil, err
	}
	modelName := strings.TrimSpace(req.Model)
	if modelName == "" {
		modelName = a.cfg.Model
	}

	lockCtx, cancel := context.WithTimeout(ctx, a.cfg.LockWait)
	unlock, err := a.locker.Lock(lockCtx, sessionID)
	cancel()
	if err != nil {
		return nil, err
	}
	defer unlock()

	turns, err := a.history.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	messages := historyMessages(turns)
	userBlocks := []anthropic.ContentBlock{}
	if image != nil {
		userBlocks = append(userBlocks, *image)
	}
	userBlocks = append(userBlocks, anthropic.TextBlock(text))
	messages = append(messages, anthropic.Message{Role: anthropic.RoleUser, Content: userBlocks})

	log := zap.L().With(zap.String("session_id", sessionID), zap.String("model", modelName))
	log.Info("agent: turn started", zap.Int("history_turns", len(turns)), zap.Bool("image", image != nil))

	temperature := a.cfg.Temperature
	base := anthropic.MessageRequest{
		Model:       modelName,
		MaxTokens:   a.cfg.MaxTokens,
		System:      anthropic.CachedSystem(SystemPrompt(a.now(), a.cfg.Location, a.cfg.AllowPaymentUpdates)),
		Tools:       Tools(a.cfg.AllowPaymentUpdates),
		Temperature: &temperature,
	}

	resp := &TurnResponse{SessionID: sessionID, Model: modelName, ToolCalls: []ToolCall{}}
	for resp.Iterations < a.cfg.MaxIterations {
		resp.Iterations++
		call := base
		call.Messages = messages
		out, err := a.llm.CreateMessage(ctx, call)
		if err != nil {
			return nil, apperr.Upstream(eris.Wrap(err, "agent: create message"), "assistant unavailable")
		}
		resp.Usage = resp.Usage.Add(out.Usage)

		uses := out.ToolUses()
		if out.StopReason != anthropic.StopToolUse || len(uses) == 0 {
			resp.Reply = strings.TrimSpace(out.Text())
			break
		}

		messages = append(messages, anthropic.Message{Role: anthropic.RoleAssistant, Content: out.Content})
		results, calls, err := a.runTools(ctx, sessionID, uses)
		if err != nil {
			return nil, err
		}
		resp.ToolCalls = append(resp.ToolCalls, calls...)
		messages = append(messages, anthropic.Message{Role: anthropic.RoleUser, Content: results})
	}
	if resp.Reply == "" {
		log.Warn("agent: no reply from model", zap.Int("iterations", resp.Iterations))
		resp.Reply = FallbackReply
	}

	if err := a.history.Record(ctx, sessionID, text, resp.Reply); err != nil {
		return nil, err
	}

	if a.costs != nil {
		resp.CostUSD = a.costs.Claude(modelName, resp.Usage)
	}
	resp.Usage.LogCost(modelName, "chat_turn", resp.CostUSD)
	log.Info("agent: turn finished",
		zap.Int("iterations", resp.Iterations),
		zap.Int("tool_calls", len(resp.ToolCalls)),
	)
	return resp, nil
}

// runTools executes one model step's tool calls concurrently. Results keep
// the order of uses. Input the model got wrong is reported back to it as an
// error result; only upstream or internal failures abort the turn.
func (a *Agent) runTools(ctx context.Context, sessionID string, uses []anthropic.ContentBlock) ([]anthropic.ContentBlock, []ToolCall, error) {
	results := make([]anthropic.ContentBlock, len(uses))
	calls := make([]ToolCall, len(uses))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelTools)
	for i, use := range uses {
		g.Go(func() error {
			res, err := a.runTool(gctx, sessionID, use)
			if err != nil {
				return err
			}
			results[i] = anthropic.ToolResultBlock(use.ID, res.JSON(), !res.Success)
			calls[i] = ToolCall{Tool: res.Tool, Success: res.Success, ErrorKind: res.ErrorKind}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return results, calls, nil
}

func (a *Agent) runTool(ctx context.Context, sessionID string, use anthropic.ContentBlock) (Result, error) {
	name := ToolName(use.Name)
	if name == ToolUpdatePayment && !a.cfg.AllowPaymentUpdates {
		return Failure(name, apperr.Validation("payment updates are not available in chat")), nil
	}
	req, err := Decode(use.Name, use.Input)
	if err != nil {
		zap.L().Info("agent: rejected tool input", zap.String("tool", use.Name), zap.Error(err))
		return Failure(name, err), nil
	}
	return a.exec.Dispatch(ctx, sessionID, req)
}

// historyMessages replays stored turns as alternating text messages. A
// window that opens on an assistant turn is trimmed to start with the user.
func historyMessages(turns []model.Turn) []anthropic.Message {
	for len(turns) > 0 && turns[0].Role != model.RoleUser {
		turns = turns[1:]
	}
	out := make([]anthropic.Message, 0, len(turns)+1)
	for _, t := range turns {
		out = append(out, anthropic.TextMessage(string(t.Role), t.Message))
	}
	return out
}

// userContent validates the message text and optional image attachment.
func userContent(req TurnRequest) (string, *anthropic.ContentBlock, error) {
	text := strings.TrimSpace(req.Message)
	data := strings.TrimSpace(req.ImageBase64)
	if data == "" {
		if text == "" {
			return "", nil, apperr.Validation("message is required")
		}
		return text, nil, nil
	}

	mediaType := strings.ToLower(strings.TrimSpace(req.ImageMediaType))
	if rest, ok := strings.CutPrefix(data, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found {
			return "", nil, apperr.Validation("image data URL has no payload")
		}
		if mediaType == "" {
			mediaType, _, _ = strings.Cut(header, ";")
		}
		data = payload
	}
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	if !imageMediaTypes[mediaType] {
		return "", nil, apperr.Validation("unsupported image type %q", mediaType)
	}
	if _, err := base64.StdEncoding.DecodeString(data); err != nil {
		return "", nil, apperr.Validation("image is not valid base64")
	}

	if text == "" {
		text = DefaultImagePrompt
	}
	img := anthropic.ImageBlock(mediaType, data)
	return text, &img, nil
}
