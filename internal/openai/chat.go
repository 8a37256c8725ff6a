package openai

import (
	"context"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultChatModel answers questions over retrieved document context.
const DefaultChatModel = "gpt-4.1-nano"

// ErrNoCompletion is returned when the response carries no choices.
var ErrNoCompletion = errors.New("no completion returned")

// ChatAPI defines the interface for a single chat completion call.
type ChatAPI interface {
	CreateCompletion(ctx context.Context, prompt string) (string, error)
}

// ChatAdapter implements ChatAPI against the chat completions endpoint.
type ChatAdapter struct {
	client *openai.Client
	model  string
}

func NewChatAdapter(apiKey, baseURL, model string) *ChatAdapter {
	if model == "" {
		model = DefaultChatModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &ChatAdapter{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (a *ChatAdapter) CreateCompletion(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatClient wraps a ChatAPI with a request timeout.
type ChatClient struct {
	api     ChatAPI
	timeout time.Duration
}

func NewChatClient(apiKey, baseURL, model string, timeout time.Duration) *ChatClient {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &ChatClient{
		api:     NewChatAdapter(apiKey, baseURL, model),
		timeout: timeout,
	}
}

// Complete issues one chat completion for the prompt.
func (c *ChatClient) Complete(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.api.CreateCompletion(callCtx, prompt)
}
