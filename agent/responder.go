package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/acn-rai/rai-memory/config"
	"github.com/acn-rai/rai-memory/errors"
)

// DefaultSystemPrompt is used when no system prompt is configured.
const DefaultSystemPrompt = `You are a responsible AI assistant with an evolving memory.
Answer concisely. Use the relevant memories below when they help, and say so when they do not.`

// Request is what a Responder is asked to answer.
type Request struct {
	OwnerID  string
	Message  string
	Recalled string // formatted memories, may be empty
}

// Responder produces the text of an agent's answer.
type Responder interface {
	Respond(ctx context.Context, req Request) (string, error)
}

// EchoResponder answers by echoing the message. It needs no network access.
type EchoResponder struct{}

func (EchoResponder) Respond(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "echo: " + req.Message, nil
}

// AnthropicResponder answers with the Claude Messages API.
type AnthropicResponder struct {
	client       anthropic.Client
	model        string
	maxTokens    int64
	systemPrompt string
}

// NewAnthropicResponder creates a responder from agent configuration. Extra
// request options are passed to the client, e.g. option.WithBaseURL in tests.
func NewAnthropicResponder(cfg config.AgentConfig, opts ...option.RequestOption) *AnthropicResponder {
	opts = append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)

	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &AnthropicResponder{
		client:       anthropic.NewClient(opts...),
		model:        cfg.Model,
		maxTokens:    cfg.MaxTokens,
		systemPrompt: systemPrompt,
	}
}

func (r *AnthropicResponder) Respond(ctx context.Context, req Request) (string, error) {
	system := r.systemPrompt
	if req.Recalled != "" {
		system += "\n\n" + req.Recalled
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: r.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Message)),
		},
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
	}

	resp, err := r.client.Messages.New(ctx, params)
	if err != nil {
		return "", errors.ExternalService("anthropic").WithCause(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.ExternalService("anthropic").WithCause(fmt.Errorf("no text in response %s", resp.ID))
	}
	return text.String(), nil
}

// NewResponder picks the Anthropic responder when an API key is configured
// and the echo responder otherwise.
func NewResponder(cfg config.AgentConfig) Responder {
	if cfg.APIKey == "" {
		return EchoResponder{}
	}
	return NewAnthropicResponder(cfg)
}
