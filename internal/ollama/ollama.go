// Package ollama wraps the Ollama REST API for embedding generation and
// text generation.
//
// Responses are decoded into explicit types with required-field validation
// at the boundary: a missing embedding or an empty completion becomes a
// typed failure immediately instead of propagating a partial value inward.
// The client performs no retries and no caching; every call is one
// outbound request under a bounded timeout.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spark-health/sparkai/internal/log"
)

const (
	embedPath    = "/api/embeddings"
	generatePath = "/api/generate"

	// Timeouts bound every outbound call; the same policy applies to the
	// query path and the ingestion path.
	embedTimeout    = 30 * time.Second
	generateTimeout = 120 * time.Second

	// maxErrorBody bounds how much of a provider error body is retained.
	maxErrorBody = 2048
)

var (
	// ErrEmptyInput indicates the caller passed empty text; provider
	// behavior on empty input is undefined, so it is rejected up front.
	ErrEmptyInput = errors.New("empty input text")

	// ErrNoEmbedding indicates the provider response carried no embedding.
	ErrNoEmbedding = errors.New("no embedding in provider response")

	// ErrEmptyCompletion indicates the provider returned an empty or
	// whitespace-only completion.
	ErrEmptyCompletion = errors.New("empty completion from provider")
)

// ProviderError reports a non-success response from the provider.
type ProviderError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("ollama %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Options are the generation sampling parameters. They are supplied from
// configuration, not hardcoded per call.
type Options struct {
	Temperature float32 `json:"temperature"`
	TopP        float32 `json:"top_p"`
	TopK        int     `json:"top_k"`
	NumPredict  int     `json:"num_predict"`
}

// GenerateRequest describes one text-generation call.
type GenerateRequest struct {
	BaseURL string
	Model   string
	Prompt  string
	Options Options
}

// Client talks to an Ollama server. The base URL is passed per call so a
// runtime configuration change takes effect for subsequent requests
// without rebuilding the client.
type Client struct {
	httpClient *http.Client
	logger     log.Logger
}

// NewClient creates a Client. A nil httpClient gets a default with the
// generation timeout as its overall bound.
func NewClient(httpClient *http.Client, logger log.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: generateTimeout}
	}
	return &Client{httpClient: httpClient, logger: logger}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed turns text into an embedding vector with one provider call.
func (c *Client) Embed(ctx context.Context, baseURL, model, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	ctx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	var resp embedResponse
	if err := c.post(ctx, baseURL, embedPath, embedRequest{Model: model, Prompt: text}, &resp); err != nil {
		return nil, err
	}

	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("%w (model %q)", ErrNoEmbedding, model)
	}

	c.logger.Debug("embedding generated", "model", model, "dimension", len(resp.Embedding))
	return resp.Embedding, nil
}

type generateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Options Options `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate produces a completion for the request's prompt. The returned
// text is not trimmed; the caller owns presentation.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", ErrEmptyInput
	}

	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	var resp generateResponse
	err := c.post(ctx, req.BaseURL, generatePath, generateRequest{
		Model:   req.Model,
		Prompt:  req.Prompt,
		Stream:  false,
		Options: req.Options,
	}, &resp)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(resp.Response) == "" {
		return "", fmt.Errorf("%w (model %q)", ErrEmptyCompletion, req.Model)
	}

	return resp.Response, nil
}

// post sends one JSON request and decodes the JSON response into out.
func (c *Client) post(ctx context.Context, baseURL, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(baseURL, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling ollama %s: %w", path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &ProviderError{
			Endpoint:   path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(detail)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding ollama %s response: %w", path, err)
	}
	return nil
}
