// Package chat implements the interactive chat session loop.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/peterh/liner"

	"github.com/saga-labs/saga-code/pkg/llm"
	"github.com/saga-labs/saga-code/pkg/render"
)

// CommandResult tells the session what a handled slash command changed.
type CommandResult struct {
	Handled      bool
	Client       *llm.Client
	Model        string
	ResetHistory bool
}

// CommandHandler processes session commands the loop does not handle itself
// (/server, /token, /model).
type CommandHandler func(command string) (CommandResult, error)

// Session holds the state of one interactive chat.
type Session struct {
	Client        *llm.Client
	Model         string
	SystemPrompt  string
	Temperature   float64
	MaxTokens     int
	NoHistory     bool
	JSONOutput    bool
	ShowReasoning bool
	Stream        bool
	Verbose       bool
	HistoryFile   string
	Commands      CommandHandler
}

// Run reads user input until /quit, /exit, Ctrl-C, or EOF.
func (s *Session) Run(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if s.HistoryFile != "" {
		if f, err := os.Open(s.HistoryFile); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}
	defer s.writeHistory(line)

	printWelcome(s.Model)

	history := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(s.SystemPrompt),
	}

	for {
		input, err := line.Prompt("You> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println()
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		stripped := strings.TrimSpace(input)
		if stripped == "" {
			continue
		}
		line.AppendHistory(stripped)

		if stripped == "/quit" || stripped == "/exit" {
			return nil
		}
		if strings.HasPrefix(stripped, "/") {
			if s.handleCommand(stripped, &history) {
				continue
			}
		}

		if s.Verbose {
			log.Printf("[verbose] input received: bytes=%d messages=%d", len(input), len(history))
		}

		messages := history
		if s.NoHistory {
			messages = history[:1]
		}
		messages = append(append([]openai.ChatCompletionMessageParamUnion(nil), messages...), openai.UserMessage(input))

		completion, streamed, err := s.complete(ctx, messages)
		if err != nil {
			render.PrintErrorPanel(err.Error())
			continue
		}

		s.display(completion, streamed)

		if !s.NoHistory {
			assistantText := completion.Content
			if assistantText == "" {
				assistantText = completion.ReasoningContent
			}
			history = append(history, openai.UserMessage(input), openai.AssistantMessage(assistantText))
		}
	}
}

// complete runs one round trip, streaming to stdout when enabled.
func (s *Session) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (*llm.Completion, bool, error) {
	req := llm.CompletionRequest{
		Model:       s.Model,
		Messages:    messages,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
	}
	if s.Stream && !s.JSONOutput {
		return s.Client.CompleteStreaming(ctx, req, os.Stdout)
	}
	completion, err := s.Client.Complete(ctx, req)
	return completion, false, err
}

// display prints the assistant reply in the configured mode.
func (s *Session) display(completion *llm.Completion, streamed bool) {
	if streamed {
		fmt.Println()
		return
	}
	if s.JSONOutput {
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(completion.Raw), "", "  "); err == nil {
			fmt.Println(buf.String())
		} else {
			fmt.Println(completion.Raw)
		}
		return
	}
	if completion.Content == "" {
		render.PrintWarningPanel(os.Stdout, "Model did not produce a final answer; showing reasoning only.")
	}
	if s.ShowReasoning && completion.ReasoningContent != "" {
		render.PrintDimPanel("Assistant Reasoning (debug)", render.Markdown(completion.ReasoningContent))
	}
	if completion.Content != "" {
		body := render.Markdown(fmt.Sprintf("**Model:** %s\n\n%s", completion.Model, completion.Content))
		render.PrintPanel("Assistant", body)
	}
	fmt.Println()
}

// handleCommand dispatches a slash command. Returns true when the loop should
// continue reading input.
func (s *Session) handleCommand(command string, history *[]openai.ChatCompletionMessageParamUnion) bool {
	switch strings.Fields(command)[0] {
	case "/help", "/h":
		printHelp()
		return true
	case "/clear", "/c":
		*history = []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(s.SystemPrompt),
		}
		fmt.Println("Conversation history cleared.")
		return true
	}
	if s.Commands != nil {
		result, err := s.Commands(command)
		if err != nil {
			render.PrintErrorPanel(err.Error())
			return true
		}
		if result.Handled {
			if result.Client != nil {
				s.Client = result.Client
			}
			if result.Model != "" {
				s.Model = result.Model
			}
			if result.ResetHistory {
				*history = []openai.ChatCompletionMessageParamUnion{
					openai.SystemMessage(s.SystemPrompt),
				}
			}
			return true
		}
	}
	fmt.Printf("Unknown command: %s. Type /help for available commands.\n", command)
	return true
}

func (s *Session) writeHistory(line *liner.State) {
	if s.HistoryFile == "" {
		return
	}
	f, err := os.Create(s.HistoryFile)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = line.WriteHistory(f)
}

func printWelcome(model string) {
	fmt.Printf("Chat session started (model: %s).\n", model)
	fmt.Println("Type a message, or /help for commands. /quit exits.")
	fmt.Println()
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /help            Show this help message")
	fmt.Println("  /clear           Clear conversation history")
	fmt.Println("  /server [url] [pem]  Update server URL and optional PEM bundle")
	fmt.Println("  /token [token]   Update the access token")
	fmt.Println("  /model [id]      Switch model")
	fmt.Println("  /quit, /exit     Exit the session")
	fmt.Println()
}
