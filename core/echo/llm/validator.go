// Package llm validates ambiguous barge-in candidates with a model call when
// the text-similarity heuristics in [echo.Detector] cannot decide.
package llm

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/voxa-labs/voxa-core/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:embed validatorInstr.tmpl
var validatorSystemPrompt string

// Classification is the structured verdict the model is asked for.
type Classification struct {
	Type string `json:"type" jsonschema:"title=Type,description=What the overheard transcript is,enum=echo,enum=interruption,enum=noise"`
}

// Verdict is the validator's decision about a candidate transcript.
type Verdict struct {
	// IsEcho reports that the transcript is the agent's own speech.
	IsEcho bool
	// ValidTurnStart reports that the transcript should start a user turn.
	ValidTurnStart bool
}

type LLMWithStructuredPrompt interface {
	PromptWithStructure(ctx context.Context, prompt string, output any, opts ...llms.PromptOption) error
}

type Validator struct {
	llm LLMWithStructuredPrompt
}

func NewValidator(client LLMWithStructuredPrompt) *Validator {
	return &Validator{llm: client}
}

// Validate classifies the candidate transcript against the agent's current
// utterance and the recent conversation history.
func (v *Validator) Validate(ctx context.Context, transcript, agentUtterance string, history []llms.Message) (*Verdict, error) {
	ctx, span := tracer.Start(ctx, "validate barge-in candidate")
	defer span.End()

	systemPrompt := strings.ReplaceAll(validatorSystemPrompt, "{{AGENT_UTTERANCE}}", agentUtterance)

	var classification Classification
	if err := v.llm.PromptWithStructure(ctx, transcript,
		&classification,
		llms.WithSystemPrompt(systemPrompt),
		llms.WithHistory(history...),
	); err != nil {
		err = fmt.Errorf("failed to prompt echo validator: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("validation.type", classification.Type))

	switch classification.Type {
	case "echo":
		return &Verdict{IsEcho: true}, nil
	case "interruption":
		return &Verdict{ValidTurnStart: true}, nil
	case "noise":
		return &Verdict{}, nil
	default:
		return nil, fmt.Errorf("unknown validation type: %s", classification.Type)
	}
}
