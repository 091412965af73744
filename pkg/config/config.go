// Configuration loading and persistence for the saga-code CLI.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// DefaultBaseURL is used when no server URL is configured anywhere.
	DefaultBaseURL = "https://api.openai.com"

	// DefaultTimeout is the request timeout in seconds.
	DefaultTimeout = 30

	// Environment variables consulted on load.
	EnvBaseURL         = "OPENAI_BASE_URL"
	EnvAPIKey          = "OPENAI_API_KEY"
	EnvTimeout         = "SAGA_CODE_TIMEOUT"
	EnvCABundle        = "SAGA_CODE_CA_BUNDLE"
	EnvCandidateModels = "SAGA_CODE_CANDIDATE_MODELS"
	EnvPromptsDir      = "SAGA_CODE_PROMPTS_DIR"
)

// DefaultCandidates are probed when the models endpoint is unavailable and no
// other candidates were supplied.
var DefaultCandidates = []string{"gpt-oss-120b"}

// Config is the fully resolved runtime configuration.
type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      int
	CABundle     string
	DefaultModel string
	Candidates   []string
	PromptsDir   string
}

// HasAPIKey reports whether an API key is configured.
func (c Config) HasAPIKey() bool {
	return c.APIKey != ""
}

// Overrides carries explicit values from command-line flags. Zero values mean
// "not set".
type Overrides struct {
	BaseURL    string
	APIKey     string
	Timeout    int
	CABundle   string
	Candidates []string
	PromptsDir string
}

// Load resolves configuration with flag > environment > config file > default
// precedence. A missing config file is not an error; a malformed one is.
func Load(o Overrides) (Config, error) {
	// Pick up a local .env if present, without overriding the real environment.
	_ = godotenv.Load()

	file, err := LoadFile()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		BaseURL:    DefaultBaseURL,
		Timeout:    DefaultTimeout,
		PromptsDir: "prompts",
	}

	if file != nil {
		if file.BaseURL != "" {
			cfg.BaseURL = file.BaseURL
		}
		cfg.APIKey = file.APIKey
		cfg.CABundle = file.CABundle
		cfg.DefaultModel = file.Model
	}

	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		cfg.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCABundle)); v != "" {
		cfg.CABundle = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPromptsDir)); v != "" {
		cfg.PromptsDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTimeout)); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid %s value %q: expected a positive integer", EnvTimeout, v)
		}
		cfg.Timeout = seconds
	}

	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
	}
	if o.APIKey != "" {
		cfg.APIKey = o.APIKey
	}
	if o.CABundle != "" {
		cfg.CABundle = o.CABundle
	}
	if o.Timeout > 0 {
		cfg.Timeout = o.Timeout
	}
	if o.PromptsDir != "" {
		cfg.PromptsDir = o.PromptsDir
	}

	cfg.Candidates = resolveCandidates(o.Candidates)

	return cfg, nil
}

// resolveCandidates combines built-in defaults, the environment list, and
// explicit flag values, deduplicated in first-seen order.
func resolveCandidates(flagCandidates []string) []string {
	combined := make([]string, 0, len(DefaultCandidates)+len(flagCandidates))
	combined = append(combined, DefaultCandidates...)
	combined = append(combined, SplitCandidates(os.Getenv(EnvCandidateModels))...)
	combined = append(combined, flagCandidates...)

	seen := make(map[string]bool, len(combined))
	result := make([]string, 0, len(combined))
	for _, candidate := range combined {
		if candidate == "" || seen[candidate] {
			continue
		}
		seen[candidate] = true
		result = append(result, candidate)
	}
	return result
}

// SplitCandidates parses a comma-separated model list, dropping empty items.
func SplitCandidates(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
