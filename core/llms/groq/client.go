// Package groq is an LLM adapter for the Groq OpenAI-compatible
// chat-completions API.
package groq

import (
	"github.com/voxa-labs/voxa-core/core/llms"
)

const (
	url = "https://api.groq.com/openai/v1/chat/completions"

	defaultModel = "llama-3.3-70b-versatile"
)

type Client struct {
	tokenSource llms.TokenSource
	model       string
}

type ClientOption func(*Client)

// WithModel overrides the default completion model.
func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

// WithTokenSource replaces the default environment-variable credential lookup.
func WithTokenSource(source llms.TokenSource) ClientOption {
	return func(c *Client) { c.tokenSource = source }
}

func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		tokenSource: llms.EnvTokenSource("GROQ_API_KEY"),
		model:       defaultModel,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type message struct {
	Role    messageRole `json:"role"`
	Content string      `json:"content"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
)

func toMessages(systemPrompt string, history []llms.Message) []message {
	messages := []message{}
	if systemPrompt != "" {
		messages = append(messages, message{
			Role:    messageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, entry := range history {
		role := messageRoleUser
		if entry.Role == llms.RoleAgent {
			role = messageRoleAssistant
		}
		messages = append(messages, message{Role: role, Content: entry.Content})
	}
	return messages
}
