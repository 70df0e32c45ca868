package llm

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/voxa-labs/voxa-core/core/llms"
)

type structuredPromptStub struct {
	response string
	err      error

	prompt  string
	options llms.PromptOptions
}

func (s *structuredPromptStub) PromptWithStructure(_ context.Context, prompt string, output any, opts ...llms.PromptOption) error {
	s.prompt = prompt
	for _, opt := range opts {
		opt(&s.options)
	}
	if s.err != nil {
		return s.err
	}
	return json.Unmarshal([]byte(s.response), output)
}

func TestValidateEcho(t *testing.T) {
	stub := &structuredPromptStub{response: `{"type":"echo"}`}
	validator := NewValidator(stub)

	verdict, err := validator.Validate(context.Background(), "happy to help", "I'm happy to help you", nil)
	if err != nil {
		t.Fatalf("expected validation to succeed, got %v", err)
	}
	if !verdict.IsEcho || verdict.ValidTurnStart {
		t.Fatalf("expected echo verdict, got %+v", verdict)
	}
}

func TestValidateInterruption(t *testing.T) {
	stub := &structuredPromptStub{response: `{"type":"interruption"}`}
	validator := NewValidator(stub)

	verdict, err := validator.Validate(context.Background(), "wait stop", "Let me walk you through", nil)
	if err != nil {
		t.Fatalf("expected validation to succeed, got %v", err)
	}
	if verdict.IsEcho || !verdict.ValidTurnStart {
		t.Fatalf("expected interruption verdict, got %+v", verdict)
	}
}

func TestValidateNoiseIsNeither(t *testing.T) {
	stub := &structuredPromptStub{response: `{"type":"noise"}`}
	validator := NewValidator(stub)

	verdict, err := validator.Validate(context.Background(), "hm", "Let me walk you through", nil)
	if err != nil {
		t.Fatalf("expected validation to succeed, got %v", err)
	}
	if verdict.IsEcho || verdict.ValidTurnStart {
		t.Fatalf("expected neither echo nor valid turn, got %+v", verdict)
	}
}

func TestValidateInjectsUtteranceAndHistory(t *testing.T) {
	stub := &structuredPromptStub{response: `{"type":"noise"}`}
	validator := NewValidator(stub)

	history := []llms.Message{{Role: llms.RoleUser, Content: "book a table"}}
	_, err := validator.Validate(context.Background(), "table for two", "Booking a table for two now", history)
	if err != nil {
		t.Fatalf("expected validation to succeed, got %v", err)
	}

	if stub.prompt != "table for two" {
		t.Fatalf("expected transcript as prompt, got %q", stub.prompt)
	}
	if len(stub.options.History) != 1 || stub.options.History[0].Content != "book a table" {
		t.Fatalf("expected history to be forwarded, got %+v", stub.options.History)
	}
	if want := "Booking a table for two now"; !strings.Contains(stub.options.SystemPrompt, want) {
		t.Fatalf("expected system prompt to embed the agent utterance %q", want)
	}
}

func TestValidateUnknownType(t *testing.T) {
	stub := &structuredPromptStub{response: `{"type":"gibberish"}`}
	validator := NewValidator(stub)

	if _, err := validator.Validate(context.Background(), "x", "y", nil); err == nil {
		t.Fatalf("expected error for unknown classification type")
	}
}
