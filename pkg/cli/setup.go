// First-run interactive configuration.
package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/saga-labs/saga-code/pkg/config"
	"github.com/saga-labs/saga-code/pkg/llm"
	"github.com/saga-labs/saga-code/pkg/render"
)

// ensurePersistentConfig returns the persisted config, prompting the user for
// server URL, token, optional PEM bundle, and default model on first use.
func ensurePersistentConfig(ctx context.Context) (*config.FileConfig, error) {
	file, err := config.LoadFile()
	if err != nil {
		return nil, err
	}
	if file.Complete() {
		return file, nil
	}
	if file == nil {
		file = &config.FileConfig{}
	}

	baseURLDefault := file.BaseURL
	if baseURLDefault == "" {
		baseURLDefault = config.DefaultBaseURL
	}
	baseURL, err := askLine("Server URL", baseURLDefault)
	if err != nil {
		return nil, err
	}

	apiKey := file.APIKey
	for apiKey == "" {
		apiKey, err = askSecret("Access token")
		if err != nil {
			return nil, err
		}
	}

	caBundle, err := askLine("PEM bundle file location (optional)", file.CABundle)
	if err != nil {
		return nil, err
	}

	client, err := llm.NewClient(llm.ClientConfig{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		Timeout:  time.Duration(config.DefaultTimeout) * time.Second,
		CABundle: caBundle,
	})
	if err != nil {
		return nil, err
	}
	model := promptForModel(ctx, client, config.DefaultCandidates)

	file.BaseURL = baseURL
	file.APIKey = apiKey
	file.CABundle = caBundle
	file.Model = model
	if err := config.SaveFile(file); err != nil {
		return nil, err
	}
	return file, nil
}

// promptForModel discovers models and asks the user to pick one. Discovery
// failures fall back to the first default candidate.
func promptForModel(ctx context.Context, client *llm.Client, candidates []string) string {
	fallback := config.DefaultCandidates[0]

	fmt.Println("Discovering models...")
	results, err := llm.Discover(ctx, client, llm.PreferAuto, candidates)
	if err != nil {
		render.PrintErrorPanel(err.Error())
		return fallback
	}
	if len(results) == 0 {
		fmt.Printf("No models discovered; falling back to %s.\n", fallback)
		return fallback
	}

	var choices []string
	for _, result := range results {
		if result.Status == llm.StatusAvailable {
			choices = append(choices, result.ModelID)
		}
	}
	if len(choices) == 0 {
		for _, result := range results {
			choices = append(choices, result.ModelID)
		}
	}

	fmt.Println("Available models:")
	for index, modelID := range choices {
		fmt.Printf("  %d. %s\n", index+1, modelID)
	}
	for {
		answer, err := askLine(fmt.Sprintf("Select model [1-%d]", len(choices)), "1")
		if err != nil {
			return choices[0]
		}
		index, err := strconv.Atoi(strings.TrimSpace(answer))
		if err == nil && index >= 1 && index <= len(choices) {
			return choices[index-1]
		}
	}
}

// askLine reads one line with line editing, returning def on empty input.
func askLine(promptText, def string) (string, error) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	label := promptText + ": "
	if def != "" {
		label = fmt.Sprintf("%s [%s]: ", promptText, def)
	}
	input, err := line.Prompt(label)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	if trimmed := strings.TrimSpace(input); trimmed != "" {
		return trimmed, nil
	}
	return def, nil
}

// askSecret reads a value without echoing it.
func askSecret(promptText string) (string, error) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	input, err := line.PasswordPrompt(promptText + ": ")
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(input), nil
}
