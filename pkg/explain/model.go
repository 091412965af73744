// Model call protocol for explanations: the reply must carry a FINAL: marker
// and, in JSON mode, a strictly shaped payload; one corrective retry is
// allowed per failure mode.
package explain

import (
	"context"
	"strings"

	"github.com/openai/openai-go"

	"github.com/saga-labs/saga-code/pkg/llm"
)

const maxModelAttempts = 3

// CallModel runs the explanation request, nudging the model once per failure
// mode when it omits a final answer, the FINAL: prefix (JSON mode), or valid
// JSON. It returns the last completion and the selected final text; an empty
// final text after retries means the model never produced usable output.
func CallModel(ctx context.Context, client *llm.Client, model string, messages []openai.ChatCompletionMessageParamUnion, maxTokens int, jsonMode bool) (*llm.Completion, string, error) {
	var last *llm.Completion
	retried := make(map[string]bool, 3)
	for attempt := 0; attempt < maxModelAttempts; attempt++ {
		completion, err := client.Complete(ctx, llm.CompletionRequest{
			Model:       model,
			Messages:    messages,
			Temperature: 0.0,
			MaxTokens:   maxTokens,
		})
		if err != nil {
			return nil, "", err
		}
		last = completion

		text := SelectFinalText(completion)
		if text == "" {
			if !retried["no_final"] {
				retried["no_final"] = true
				messages = append(messages, openai.UserMessage(retryPrompt(jsonMode)))
				continue
			}
			return completion, "", nil
		}

		if jsonMode {
			if !HasFinalPrefix(text) {
				if !retried["no_prefix"] {
					retried["no_prefix"] = true
					messages = append(messages, openai.UserMessage(
						"Your response did not include the required FINAL: prefix. "+
							"Reply again with FINAL: followed immediately by the JSON object only."))
					continue
				}
				return completion, text, nil
			}
			if ParseJSONResponse(text) == nil {
				if !retried["bad_json"] {
					retried["bad_json"] = true
					messages = append(messages, openai.UserMessage(
						"Your response was not valid JSON. "+
							"Reply again with FINAL: followed immediately by the JSON object only."))
					continue
				}
				return completion, text, nil
			}
		}

		return completion, text, nil
	}
	return last, "", nil
}

// SelectFinalText picks the usable reply text: the content when present,
// otherwise a FINAL:-marked tail of the reasoning.
func SelectFinalText(completion *llm.Completion) string {
	if completion.Content != "" {
		return completion.Content
	}
	if reasoning := completion.ReasoningContent; reasoning != "" {
		if index := strings.LastIndex(reasoning, finalPrefix); index >= 0 {
			return finalPrefix + strings.TrimLeft(reasoning[index+len(finalPrefix):], " \t\r\n")
		}
	}
	return ""
}

func retryPrompt(jsonMode bool) string {
	if jsonMode {
		return "You did not provide a final answer. Reply again with FINAL: followed by the requested output only."
	}
	return "You did not provide a final answer. Reply again with the requested Markdown output only."
}
