package llms

type PromptOptions struct {
	SystemPrompt string
	History      []Message

	EnableThinking bool
	ThinkingBudget int
}

type PromptOption func(*PromptOptions)

func WithSystemPrompt(systemPrompt string) PromptOption {
	return func(o *PromptOptions) {
		o.SystemPrompt = systemPrompt
	}
}

func WithHistory(history ...Message) PromptOption {
	return func(o *PromptOptions) {
		o.History = history
	}
}

func WithThinking(budget int) PromptOption {
	return func(o *PromptOptions) {
		o.EnableThinking = true
		o.ThinkingBudget = budget
	}
}
