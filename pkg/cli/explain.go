// The explain-cpp command: summarize C/C++ sources through the explain_cpp
// prompt bundle.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/spf13/cobra"

	"github.com/saga-labs/saga-code/pkg/config"
	"github.com/saga-labs/saga-code/pkg/explain"
	"github.com/saga-labs/saga-code/pkg/llm"
	"github.com/saga-labs/saga-code/pkg/prompt"
	"github.com/saga-labs/saga-code/pkg/render"
)

func init() {
	flags := &connectionFlags{}
	var (
		modelOverride string
		systemPrompt  string
		promptsDir    string
		maxFiles      int
		maxBytes      int
		maxTokens     int
		asJSON        bool
		showReasoning bool
		verbose       bool
	)
	cmd := &cobra.Command{
		Use:   "explain-cpp <paths...>",
		Short: "Explain C/C++ source files or directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

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

			allFiles := explain.DiscoverSourceFiles(args, explain.CPPExtensions)
			if len(allFiles) == 0 {
				return errors.New("no C/C++ source files found")
			}
			limited := allFiles
			var skipped []explain.SkipInfo
			if len(allFiles) > maxFiles {
				limited = allFiles[:maxFiles]
				for _, path := range allFiles[maxFiles:] {
					skipped = append(skipped, explain.SkipInfo{Path: path, Reason: "max-files"})
				}
			}
			blobs, budgetSkipped := explain.ReadFilesWithBudget(limited, maxBytes)
			skipped = append(skipped, budgetSkipped...)
			if len(blobs) == 0 {
				return errors.New("no files remaining after applying limits")
			}

			manager := prompt.NewManager(cfg.PromptsDir)
			stack, err := manager.ReadActiveStack()
			if err != nil {
				return err
			}
			runtimePrepend := ""
			if trimmed := strings.TrimSpace(systemPrompt); trimmed != "" {
				runtimePrepend = "\n\n" + trimmed
			}
			systemMessage, err := manager.RenderWithPrepend(stack, "explain_cpp", "system", runtimePrepend, nil)
			if err != nil {
				return err
			}
			userMessage, err := manager.Render(stack, "explain_cpp", "user", map[string]any{
				"files_block": explain.BuildFilesBlock(blobs),
				"json_mode":   asJSON,
			})
			if err != nil {
				return err
			}

			printSkipWarning(skipped, asJSON)

			messages := []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(systemMessage),
				openai.UserMessage(userMessage),
			}
			if !asJSON {
				fmt.Println("Waiting for response...")
			}
			completion, finalText, err := explain.CallModel(ctx, client, model, messages, maxTokens, asJSON)
			if err != nil {
				return err
			}
			if finalText == "" {
				return fmt.Errorf(
					"model returned no usable final content after retry (content present: %v, reasoning present: %v)",
					completion != nil && completion.Content != "",
					completion != nil && completion.ReasoningContent != "")
			}

			if showReasoning && !asJSON && completion.ReasoningContent != "" {
				render.PrintDimPanel("Assistant Reasoning (debug)", render.Markdown(completion.ReasoningContent))
			}

			if asJSON {
				payload := explain.ParseJSONResponse(finalText)
				if payload == nil {
					return errors.New("failed to parse JSON response after retry")
				}
				return render.PrintJSON(payload)
			}

			sections := explain.ParseSections(finalText)
			for _, key := range explain.SectionKeys {
				render.PrintPanel(explain.SectionTitles[key], render.Markdown(sections[key]))
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&modelOverride, "model", "", "Model ID to use for analysis")
	cmd.Flags().StringVar(&systemPrompt, "system", "", "Optional system prompt override")
	cmd.Flags().StringVar(&promptsDir, "prompts-dir", "", "Prompts directory (default ./prompts)")
	cmd.Flags().IntVar(&maxFiles, "max-files", 20, "Maximum number of files to read")
	cmd.Flags().IntVar(&maxBytes, "max-bytes", 200000, "Cumulative byte budget across files")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 1500, "Maximum completion tokens")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output machine-readable JSON only")
	cmd.Flags().BoolVar(&showReasoning, "show-reasoning", false, "Show assistant reasoning when present")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose request logging")
	rootCmd.AddCommand(cmd)
}

// printSkipWarning lists budget-skipped files; in JSON mode the warning moves
// to stderr so stdout stays machine-readable.
func printSkipWarning(skipped []explain.SkipInfo, asJSON bool) {
	if len(skipped) == 0 {
		return
	}
	lines := make([]string, 0, len(skipped))
	for _, item := range skipped {
		lines = append(lines, fmt.Sprintf("- %s (%s)", item.Path, item.Reason))
	}
	stream := os.Stdout
	if asJSON {
		stream = os.Stderr
	}
	render.PrintWarningPanel(stream, strings.Join(lines, "\n"))
}
