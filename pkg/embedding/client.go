// Package embedding provides a client for the Gemini text embedding API.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/zeus-insurance/zeus-agent/internal/resilience"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-embedding-001"
)

// Task types understood by the API.
const (
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

// Client embeds text for semantic policy search.
type Client interface {
	// EmbedQuery embeds a search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// EmbedDocuments embeds document texts in one batch request. The result
	// has one vector per input, in input order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithModel sets the embedding model, e.g. "gemini-embedding-001".
func WithModel(model string) Option {
	return func(c *httpClient) {
		c.model = strings.TrimPrefix(model, "models/")
	}
}

// WithDimension requests vectors of the given width via outputDimensionality.
func WithDimension(dim int) Option {
	return func(c *httpClient) {
		c.dimension = dim
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithBreaker overrides the circuit breaker.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *httpClient) {
		c.breaker = cb
	}
}

type httpClient struct {
	apiKey    string
	baseURL   string
	model     string
	dimension int
	http      *http.Client
	retry     resilience.RetryConfig
	breaker   *resilience.CircuitBreaker
}

// NewClient creates a Gemini embedding client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	c.retry.OnRetry = resilience.RetryLogger("embedding", c.model)
	if c.breaker == nil {
		c.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:       "embedding",
			ShouldTrip: resilience.IsTransient,
		})
	}
	return c
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type embedRequest struct {
	Model                string  `json:"model"`
	Content              content `json:"content"`
	TaskType             string  `json:"taskType,omitempty"`
	OutputDimensionality int     `json:"outputDimensionality,omitempty"`
}

type values struct {
	Values []float32 `json:"values"`
}

type embedResponse struct {
	Embedding values `json:"embedding"`
}

type batchRequest struct {
	Requests []embedRequest `json:"requests"`
}

type batchResponse struct {
	Embeddings []values `json:"embeddings"`
}

func (c *httpClient) request(text, task string) embedRequest {
	return embedRequest{
		Model:                "models/" + c.model,
		Content:              content{Parts: []part{{Text: text}}},
		TaskType:             task,
		OutputDimensionality: c.dimension,
	}
}

func (c *httpClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	if err := c.post(ctx, ":embedContent", c.request(text, TaskRetrievalQuery), &resp); err != nil {
		return nil, eris.Wrap(err, "embedding: embed query")
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, eris.New("embedding: empty vector in response")
	}
	return resp.Embedding.Values, nil
}

func (c *httpClient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	req := batchRequest{Requests: make([]embedRequest, len(texts))}
	for i, text := range texts {
		req.Requests[i] = c.request(text, TaskRetrievalDocument)
	}

	var resp batchResponse
	if err := c.post(ctx, ":batchEmbedContents", req, &resp); err != nil {
		return nil, eris.Wrap(err, "embedding: embed documents")
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, eris.Errorf("embedding: got %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if len(e.Values) == 0 {
			return nil, eris.Errorf("embedding: empty vector for text %d", i)
		}
		out[i] = e.Values
	}
	return out, nil
}

// post sends one JSON request through the breaker, retrying transient
// failures.
func (c *httpClient) post(ctx context.Context, method string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}
	url := c.baseURL + "/models/" + c.model + method

	respBody, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
			return c.send(ctx, url, body)
		})
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	return nil
}

func (c *httpClient) send(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read response")
	}
	zap.L().Debug("embedding: response",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(respBody, 512))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}
	return respBody, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
