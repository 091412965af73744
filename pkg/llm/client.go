// Package llm wraps the OpenAI-compatible API client used by saga-code.
package llm

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultMaxRetries bounds automatic retries of 429 and 5xx responses.
const DefaultMaxRetries = 3

// ClientConfig holds the transport settings for a Client.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	CABundle   string
	MaxRetries int
	Verbose    bool
}

// Client is a thin wrapper over the OpenAI SDK client with the retry budget,
// timeout, and optional CA bundle already applied.
type Client struct {
	api     openai.Client
	baseURL string
	verbose bool
}

// NewClient builds a Client. Retryable statuses (429, 5xx) are retried up to
// MaxRetries times with backoff by the underlying SDK; other error classes
// surface immediately.
func NewClient(cfg ClientConfig) (*Client, error) {
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}
	baseURL := NormalizeBaseURL(cfg.BaseURL)

	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(retries),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.CABundle != "" {
		httpClient, err := httpClientWithCABundle(cfg.CABundle)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &Client{
		api:     openai.NewClient(opts...),
		baseURL: baseURL,
		verbose: cfg.Verbose,
	}, nil
}

// NormalizeBaseURL ensures the configured server URL ends in /v1/ so relative
// endpoint paths resolve to the OpenAI-compatible surface.
func NormalizeBaseURL(raw string) string {
	url := strings.TrimRight(strings.TrimSpace(raw), "/")
	if url == "" {
		url = "https://api.openai.com"
	}
	if !strings.HasSuffix(url, "/v1") {
		url += "/v1"
	}
	return url + "/"
}

// StatusCode extracts the HTTP status from an API error, if err is one.
func StatusCode(err error) (int, bool) {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}

// ListModels queries the models endpoint and returns the listed identifiers.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	if c.verbose {
		log.Printf("[verbose] listing models from %s", c.baseURL)
	}
	ids := []string{}
	iter := c.api.Models.ListAutoPaging(ctx)
	for iter.Next() {
		ids = append(ids, iter.Current().ID)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Probe issues a minimal one-token completion for the candidate model. A 400,
// 403, or 404 means the model is unavailable; any 2xx means available; other
// errors propagate.
func (c *Client) Probe(ctx context.Context, model string) (bool, error) {
	if c.verbose {
		log.Printf("[verbose] probing model %s", model)
	}
	_, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(model),
		Messages:  []openai.ChatCompletionMessageParamUnion{openai.UserMessage("ping")},
		MaxTokens: openai.Int(1),
	})
	if err != nil {
		if status, ok := StatusCode(err); ok && (status == http.StatusBadRequest || status == http.StatusForbidden || status == http.StatusNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CompletionRequest describes one chat completion call.
type CompletionRequest struct {
	Model       string
	Messages    []openai.ChatCompletionMessageParamUnion
	Temperature float64
	MaxTokens   int
}

// Completion is the assistant reply plus metadata some gateways attach.
type Completion struct {
	Content          string
	ReasoningContent string
	Model            string
	Raw              string
}

// Complete sends a non-streaming chat completion request.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	if c.verbose {
		log.Printf("[verbose] chat completion: model=%s messages=%d", req.Model, len(req.Messages))
	}
	completion, err := c.api.Chat.Completions.New(ctx, c.completionParams(req))
	if err != nil {
		return nil, err
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("empty completion choices")
	}
	message := completion.Choices[0].Message
	result := &Completion{
		Content:          message.Content,
		ReasoningContent: extraStringField(message.JSON.ExtraFields["reasoning_content"].Raw()),
		Model:            req.Model,
		Raw:              completion.RawJSON(),
	}
	if completion.Model != "" {
		result.Model = completion.Model
	}
	return result, nil
}

// CompleteStreaming streams assistant deltas to out and returns the
// accumulated reply. The second result reports whether any delta was written.
func (c *Client) CompleteStreaming(ctx context.Context, req CompletionRequest, out io.Writer) (*Completion, bool, error) {
	if c.verbose {
		log.Printf("[verbose] streaming chat completion: model=%s messages=%d", req.Model, len(req.Messages))
	}
	stream := c.api.Chat.Completions.NewStreaming(ctx, c.completionParams(req))
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	streamed := false
	for stream.Next() {
		chunk := stream.Current()
		if !acc.AddChunk(chunk) {
			return nil, streamed, errors.New("failed to accumulate stream")
		}
		if len(chunk.Choices) > 0 {
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				_, _ = io.WriteString(out, delta)
				streamed = true
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, streamed, err
	}
	if len(acc.Choices) == 0 {
		return nil, streamed, errors.New("empty streamed completion choices")
	}
	message := acc.Choices[0].Message
	result := &Completion{
		Content: message.Content,
		Model:   req.Model,
	}
	if acc.Model != "" {
		result.Model = acc.Model
	}
	return result, streamed, nil
}

func (c *Client) completionParams(req CompletionRequest) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    req.Messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

// httpClientWithCABundle returns an HTTP client trusting the system roots
// plus the PEM certificates at path.
func httpClientWithCABundle(path string) (*http.Client, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA bundle %s: %w", path, err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("CA bundle %s contains no PEM certificates", path)
	}
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool},
		},
	}, nil
}

// extraStringField decodes a raw JSON string value from an extra field; other
// kinds and absent fields yield "".
func extraStringField(raw string) string {
	if raw == "" || raw == "null" {
		return ""
	}
	var value string
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return ""
	}
	return value
}
