// Model discovery: models endpoint listing with probe fallback.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// PreferEndpoint selects the discovery strategy.
type PreferEndpoint string

const (
	// PreferAuto lists models first and falls back to probing when the
	// listing endpoint is missing, forbidden, or unreachable.
	PreferAuto PreferEndpoint = "auto"
	// PreferModels uses only the models endpoint.
	PreferModels PreferEndpoint = "models"
	// PreferProbe skips the listing and probes candidates directly.
	PreferProbe PreferEndpoint = "probe"
)

// ParsePreferEndpoint validates a --prefer-endpoint flag value.
func ParsePreferEndpoint(raw string) (PreferEndpoint, error) {
	switch PreferEndpoint(strings.ToLower(strings.TrimSpace(raw))) {
	case PreferAuto:
		return PreferAuto, nil
	case PreferModels:
		return PreferModels, nil
	case PreferProbe:
		return PreferProbe, nil
	}
	return "", fmt.Errorf("invalid prefer-endpoint %q: expected models, probe, or auto", raw)
}

// Discovery method and status values reported per model.
const (
	MethodModelsEndpoint = "models_endpoint"
	MethodProbe          = "probe"

	StatusAvailable   = "available"
	StatusUnavailable = "unavailable"
	StatusError       = "error"
)

// ModelResult describes the discovery outcome for one model.
type ModelResult struct {
	ModelID         string `json:"model_id"`
	DiscoveryMethod string `json:"discovery_method"`
	Status          string `json:"status"`
	Details         string `json:"details"`
}

// Discover finds available models. With PreferAuto, a 403/404 from the
// listing endpoint or a network failure triggers the probe fallback; other
// API errors propagate. PreferModels never probes and PreferProbe never
// lists.
func Discover(ctx context.Context, client *Client, prefer PreferEndpoint, candidates []string) ([]ModelResult, error) {
	if prefer != PreferProbe {
		ids, err := client.ListModels(ctx)
		if err == nil {
			results := make([]ModelResult, 0, len(ids))
			for _, id := range ids {
				results = append(results, ModelResult{
					ModelID:         id,
					DiscoveryMethod: MethodModelsEndpoint,
					Status:          StatusAvailable,
					Details:         "listed",
				})
			}
			return results, nil
		}
		if prefer == PreferModels {
			return nil, err
		}
		if status, ok := StatusCode(err); ok && status != http.StatusForbidden && status != http.StatusNotFound {
			return nil, err
		}
		// 403/404 or a transport failure: fall back to probing.
	}
	return probeCandidates(ctx, client, candidates), nil
}

// probeCandidates records one result per candidate; probe failures become
// per-model error entries rather than aborting discovery.
func probeCandidates(ctx context.Context, client *Client, candidates []string) []ModelResult {
	results := make([]ModelResult, 0, len(candidates))
	for _, modelID := range candidates {
		available, err := client.Probe(ctx, modelID)
		switch {
		case err != nil:
			details := err.Error()
			if status, ok := StatusCode(err); ok {
				details = fmt.Sprintf("HTTP %d", status)
			}
			results = append(results, ModelResult{
				ModelID:         modelID,
				DiscoveryMethod: MethodProbe,
				Status:          StatusError,
				Details:         details,
			})
		case available:
			results = append(results, ModelResult{
				ModelID:         modelID,
				DiscoveryMethod: MethodProbe,
				Status:          StatusAvailable,
				Details:         "probe succeeded",
			})
		default:
			results = append(results, ModelResult{
				ModelID:         modelID,
				DiscoveryMethod: MethodProbe,
				Status:          StatusUnavailable,
				Details:         "probe rejected",
			})
		}
	}
	return results
}

// FirstAvailable returns the first available model id, if any.
func FirstAvailable(results []ModelResult) (string, bool) {
	for _, result := range results {
		if result.Status == StatusAvailable {
			return result.ModelID, true
		}
	}
	return "", false
}

// ResolveDefaultModel discovers a usable model, falling back to the given
// default when discovery fails or finds nothing.
func ResolveDefaultModel(ctx context.Context, client *Client, candidates []string, fallback string) string {
	results, err := Discover(ctx, client, PreferAuto, candidates)
	if err != nil {
		return fallback
	}
	if id, ok := FirstAvailable(results); ok {
		return id
	}
	return fallback
}
