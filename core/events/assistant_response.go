package events

const (
	// KindAssistantResponseStarted identifies response generation start.
	KindAssistantResponseStarted Kind = "assistant_response.started"
	// KindAssistantResponseFinal identifies the completed assistant response text.
	KindAssistantResponseFinal Kind = "assistant_response.final"
	// KindAssistantResponseFailed identifies response generation failure.
	KindAssistantResponseFailed Kind = "assistant_response.failed"
)

// AssistantResponseStarted marks the start of response generation.
type AssistantResponseStarted struct {
	Base
	Prompt string
}

// NewAssistantResponseStarted creates an assistant response started event.
func NewAssistantResponseStarted(prompt string) AssistantResponseStarted {
	return AssistantResponseStarted{Base: NewBase(KindAssistantResponseStarted), Prompt: prompt}
}

// AssistantResponseFinal carries the completed assistant response text.
type AssistantResponseFinal struct {
	Base
	Response string
}

// NewAssistantResponseFinal creates an assistant response final event.
func NewAssistantResponseFinal(response string) AssistantResponseFinal {
	return AssistantResponseFinal{Base: NewBase(KindAssistantResponseFinal), Response: response}
}

// AssistantResponseFailed marks response generation failure.
type AssistantResponseFailed struct {
	Base
	Err error
}

// NewAssistantResponseFailed creates an assistant response failed event.
func NewAssistantResponseFailed(err error) AssistantResponseFailed {
	return AssistantResponseFailed{Base: NewBase(KindAssistantResponseFailed), Err: err}
}
