// Client tests run against a local fake OpenAI-compatible server.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openai/openai-go"
)

func chatMessages(text string) []openai.ChatCompletionMessageParamUnion {
	return []openai.ChatCompletionMessageParamUnion{openai.UserMessage(text)}
}

// newTestClient builds a Client pointed at a fake server.
func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		BaseURL: serverURL,
		APIKey:  "test-key",
		Timeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

// writeModelsList responds with a models listing for the given ids.
func writeModelsList(w http.ResponseWriter, ids ...string) {
	data := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		data = append(data, map[string]any{"id": id, "object": "model", "created": 0, "owned_by": "test"})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
}

// writeCompletion responds with a single-choice chat completion.
func writeCompletion(w http.ResponseWriter, model, content string, extra map[string]any) {
	message := map[string]any{"role": "assistant", "content": content}
	for key, value := range extra {
		message[key] = value
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "cmpl-test",
		"object":  "chat.completion",
		"created": 0,
		"model":   model,
		"choices": []map[string]any{
			{"index": 0, "message": message, "finish_reason": "stop"},
		},
	})
}

// writeAPIError responds with an OpenAI-style error body. Retry-After is set
// to zero so retried tests do not sleep.
func writeAPIError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "0")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message, "type": "invalid_request_error"},
	})
}

// requestModel decodes the model field from a chat completion request body.
func requestModel(t *testing.T, r *http.Request) string {
	t.Helper()
	var body struct {
		Model string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	return body.Model
}

func TestNormalizeBaseURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://api.openai.com", "https://api.openai.com/v1/"},
		{"https://api.openai.com/", "https://api.openai.com/v1/"},
		{"https://gw.example/v1", "https://gw.example/v1/"},
		{"https://gw.example/v1/", "https://gw.example/v1/"},
		{"  https://gw.example  ", "https://gw.example/v1/"},
		{"", "https://api.openai.com/v1/"},
	}
	for _, tc := range cases {
		if got := NormalizeBaseURL(tc.in); got != tc.want {
			t.Errorf("NormalizeBaseURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeModelsList(w, "m-one", "m-two")
	}))
	defer server.Close()

	ids, err := newTestClient(t, server.URL).ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(ids) != 2 || ids[0] != "m-one" || ids[1] != "m-two" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestListModelsRetriesTransientErrors(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 3 {
			writeAPIError(w, http.StatusServiceUnavailable, "warming up")
			return
		}
		writeModelsList(w, "m-one")
	}))
	defer server.Close()

	ids, err := newTestClient(t, server.URL).ListModels(context.Background())
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if len(ids) != 1 || ids[0] != "m-one" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if got := requests.Load(); got != 4 {
		t.Fatalf("expected 4 requests (1 + 3 retries), got %d", got)
	}
}

func TestListModelsGivesUpAfterRetryBudget(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		writeAPIError(w, http.StatusServiceUnavailable, "still down")
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).ListModels(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if status, ok := StatusCode(err); !ok || status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 status, got %v (ok=%v)", status, ok)
	}
	if got := requests.Load(); got != 4 {
		t.Fatalf("expected 4 requests, got %d", got)
	}
}

func TestProbeStatuses(t *testing.T) {
	var status atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := int(status.Load())
		if code == http.StatusOK {
			writeCompletion(w, requestModel(t, r), "pong", nil)
			return
		}
		writeAPIError(w, code, "probe error")
	}))
	defer server.Close()
	client := newTestClient(t, server.URL)

	for _, code := range []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound} {
		status.Store(int32(code))
		available, err := client.Probe(context.Background(), "m-test")
		if err != nil {
			t.Fatalf("status %d: unexpected error %v", code, err)
		}
		if available {
			t.Fatalf("status %d: expected unavailable", code)
		}
	}

	status.Store(http.StatusOK)
	available, err := client.Probe(context.Background(), "m-test")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if !available {
		t.Fatal("expected available")
	}

	status.Store(http.StatusUnauthorized)
	if _, err := client.Probe(context.Background(), "m-test"); err == nil {
		t.Fatal("expected 401 to propagate")
	}
}

func TestCompleteParsesReasoningContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := requestModel(t, r); got != "m-reason" {
			t.Errorf("unexpected model %q", got)
		}
		writeCompletion(w, "m-reason-v2", "the answer", map[string]any{
			"reasoning_content": "thinking out loud",
		})
	}))
	defer server.Close()

	completion, err := newTestClient(t, server.URL).Complete(context.Background(), CompletionRequest{
		Model:    "m-reason",
		Messages: chatMessages("hello"),
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completion.Content != "the answer" {
		t.Fatalf("unexpected content %q", completion.Content)
	}
	if completion.ReasoningContent != "thinking out loud" {
		t.Fatalf("unexpected reasoning %q", completion.ReasoningContent)
	}
	if completion.Model != "m-reason-v2" {
		t.Fatalf("expected server-reported model, got %q", completion.Model)
	}
	if !strings.Contains(completion.Raw, "chat.completion") {
		t.Fatalf("expected raw payload, got %q", completion.Raw)
	}
}

func TestCompleteWithoutReasoningContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w, "m-plain", "plain reply", nil)
	}))
	defer server.Close()

	completion, err := newTestClient(t, server.URL).Complete(context.Background(), CompletionRequest{
		Model:    "m-plain",
		Messages: chatMessages("hello"),
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completion.ReasoningContent != "" {
		t.Fatalf("expected empty reasoning, got %q", completion.ReasoningContent)
	}
}

func TestCompleteStreamingWritesDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range []string{"Hel", "lo"} {
			chunk := map[string]any{
				"id":      "cmpl-test",
				"object":  "chat.completion.chunk",
				"created": 0,
				"model":   "m-stream",
				"choices": []map[string]any{
					{"index": 0, "delta": map[string]any{"content": delta}},
				},
			}
			payload, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	var out strings.Builder
	completion, streamed, err := newTestClient(t, server.URL).CompleteStreaming(context.Background(), CompletionRequest{
		Model:    "m-stream",
		Messages: chatMessages("hello"),
	}, &out)
	if err != nil {
		t.Fatalf("CompleteStreaming: %v", err)
	}
	if !streamed {
		t.Fatal("expected deltas to be written")
	}
	if out.String() != "Hello" {
		t.Fatalf("unexpected streamed output %q", out.String())
	}
	if completion.Content != "Hello" {
		t.Fatalf("unexpected accumulated content %q", completion.Content)
	}
}

func TestStatusCodeNonAPIError(t *testing.T) {
	if _, ok := StatusCode(fmt.Errorf("dial tcp: connection refused")); ok {
		t.Fatal("plain errors must not report a status")
	}
}
