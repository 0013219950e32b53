package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI is an Analyzer backed by the OpenAI chat completions API. Each
// task identifier maps to an instruction template supplied at construction;
// the assembled context is sent as the user message. No assistant threads
// or server-side memory are used.
type OpenAI struct {
	client  *openai.Client
	model   string
	prompts map[string]string
}

// NewOpenAI creates an OpenAI analyzer. prompts maps task identifiers to
// their (opaque) instruction text; a task without an entry is sent with the
// context alone.
func NewOpenAI(apiKey, model string, prompts map[string]string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("analysis: api key is required")
	}
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAI{
		client:  openai.NewClient(apiKey),
		model:   model,
		prompts: prompts,
	}, nil
}

func (o *OpenAI) Invoke(ctx context.Context, taskID, contextText string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if prompt, ok := o.prompts[taskID]; ok && prompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: prompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: contextText,
	})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
	})
	if err != nil {
		return "", classifyAPIError(taskID, err)
	}
	if len(resp.Choices) == 0 {
		return "", PermanentError(taskID, fmt.Errorf("empty completion response"))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// classifyAPIError maps provider failures onto the transient/permanent
// taxonomy: 429 and 5xx are transient, 4xx are permanent, transport-level
// failures and deadline expiry are transient.
func classifyAPIError(taskID string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500 {
			return TransientError(taskID, err)
		}
		return PermanentError(taskID, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return TransientError(taskID, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TransientError(taskID, err)
	}
	return TransientError(taskID, err)
}
