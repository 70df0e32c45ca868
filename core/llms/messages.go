// Package llms holds the provider-agnostic conversation model shared by the
// engine and the LLM adapters.
package llms

// Role describes who a conversation message is from.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Message is a single entry in the conversation history.
type Message struct {
	Role    Role
	Content string
}

// Request is one completion call. Messages carries the bounded recent history
// in order; the new user message is the last entry.
type Request struct {
	SystemPrompt string
	Messages     []Message
	Model        string

	EnableThinking bool
	// ThinkingBudget caps reasoning tokens when thinking is enabled; zero
	// means provider default.
	ThinkingBudget int
}

// Response is the completed model output.
type Response struct {
	Content string
}
