// The chat command: interactive session against the configured server.
package cli

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/saga-labs/saga-code/pkg/chat"
	"github.com/saga-labs/saga-code/pkg/config"
	"github.com/saga-labs/saga-code/pkg/llm"
	"github.com/saga-labs/saga-code/pkg/prompt"
)

const defaultChatMaxTokens = 2048

func init() {
	flags := &connectionFlags{}
	var (
		modelOverride string
		systemPrompt  string
		promptsDir    string
		temperature   float64
		maxTokens     int
		noHistory     bool
		asJSON        bool
		showReasoning bool
		stream        bool
		verbose       bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			persistent, err := ensurePersistentConfig(ctx)
			if err != nil {
				return err
			}

			overrides := flags.overrides()
			overrides.PromptsDir = promptsDir
			cfg, err := config.Load(overrides)
			if err != nil {
				return err
			}
			client, err := newClient(cfg, verbose)
			if err != nil {
				return err
			}

			model := modelOverride
			if model == "" {
				model = cfg.DefaultModel
			}
			if model == "" {
				model = llm.ResolveDefaultModel(ctx, client, cfg.Candidates, config.DefaultCandidates[0])
			}

			manager := prompt.NewManager(cfg.PromptsDir)
			stack, err := manager.ReadActiveStack()
			if err != nil {
				return err
			}
			runtimePrepend := ""
			if trimmed := strings.TrimSpace(systemPrompt); trimmed != "" {
				runtimePrepend = trimmed + "\n"
			}
			systemMessage, err := manager.RenderWithPrepend(stack, "chat", "system", runtimePrepend, nil)
			if err != nil {
				return err
			}

			configPath, err := config.Path()
			if err != nil {
				return err
			}

			tokens := maxTokens
			if tokens <= 0 {
				tokens = defaultChatMaxTokens
			}

			session := &chat.Session{
				Client:        client,
				Model:         model,
				SystemPrompt:  systemMessage,
				Temperature:   temperature,
				MaxTokens:     tokens,
				NoHistory:     noHistory,
				JSONOutput:    asJSON,
				ShowReasoning: showReasoning,
				Stream:        stream,
				Verbose:       verbose,
				HistoryFile:   filepath.Join(filepath.Dir(configPath), "chat_history"),
			}
			session.Commands = sessionCommands(ctx, cfg, persistent, session)
			return session.Run(ctx)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&modelOverride, "model", "", "Model ID to use for chat")
	cmd.Flags().StringVar(&systemPrompt, "system", "", "Optional system prompt prepended to the rendered template")
	cmd.Flags().StringVar(&promptsDir, "prompts-dir", "", "Prompts directory (default ./prompts)")
	cmd.Flags().Float64Var(&temperature, "temperature", 0.0, "Sampling temperature")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Maximum completion tokens (default 2048)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Disable conversation history")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON responses")
	cmd.Flags().BoolVar(&showReasoning, "show-reasoning", false, "Show assistant reasoning when present")
	cmd.Flags().BoolVar(&stream, "stream", false, "Stream assistant output")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose request logging")
	rootCmd.AddCommand(cmd)
}

// sessionCommands handles /server, /token, and /model: each updates the
// persisted config and rebuilds the client so the change takes effect
// immediately.
func sessionCommands(ctx context.Context, cfg config.Config, persistent *config.FileConfig, session *chat.Session) chat.CommandHandler {
	rebuild := func() (*llm.Client, error) {
		return llm.NewClient(llm.ClientConfig{
			BaseURL:  persistent.BaseURL,
			APIKey:   persistent.APIKey,
			Timeout:  time.Duration(cfg.Timeout) * time.Second,
			CABundle: persistent.CABundle,
			Verbose:  session.Verbose,
		})
	}

	return func(command string) (chat.CommandResult, error) {
		parts := strings.Fields(command)
		switch parts[0] {
		case "/server":
			if len(parts) >= 2 {
				persistent.BaseURL = parts[1]
				if len(parts) > 2 {
					persistent.CABundle = parts[2]
				}
			} else {
				baseURL, err := askLine("Server URL", persistent.BaseURL)
				if err != nil {
					return chat.CommandResult{}, err
				}
				caBundle, err := askLine("PEM bundle file location (optional)", persistent.CABundle)
				if err != nil {
					return chat.CommandResult{}, err
				}
				persistent.BaseURL = baseURL
				persistent.CABundle = caBundle
			}
			if err := config.SaveFile(persistent); err != nil {
				return chat.CommandResult{}, err
			}
			client, err := rebuild()
			if err != nil {
				return chat.CommandResult{}, err
			}
			return chat.CommandResult{Handled: true, Client: client}, nil

		case "/token":
			token := ""
			if len(parts) > 1 {
				token = parts[1]
			}
			for token == "" {
				var err error
				token, err = askSecret("Access token")
				if err != nil {
					return chat.CommandResult{}, err
				}
			}
			persistent.APIKey = token
			if err := config.SaveFile(persistent); err != nil {
				return chat.CommandResult{}, err
			}
			client, err := rebuild()
			if err != nil {
				return chat.CommandResult{}, err
			}
			return chat.CommandResult{Handled: true, Client: client}, nil

		case "/model":
			model := ""
			if len(parts) > 1 {
				model = parts[1]
			} else {
				model = promptForModel(ctx, session.Client, cfg.Candidates)
			}
			persistent.Model = model
			if err := config.SaveFile(persistent); err != nil {
				return chat.CommandResult{}, err
			}
			return chat.CommandResult{Handled: true, Model: model}, nil
		}
		return chat.CommandResult{}, nil
	}
}
