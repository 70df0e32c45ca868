package groq

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/voxa-labs/voxa-core/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string            `json:"name"`
	Schema jsonschema.Schema `json:"schema"`
	Strict bool              `json:"strict"`
}

// PromptWithStructure asks the model for a reply conforming to output's JSON
// schema and unmarshals the reply into output.
func (c *Client) PromptWithStructure(ctx context.Context, prompt string, output any, opts ...llms.PromptOption) error {
	ctx, span := tracer.Start(ctx, "prompt llm structured")
	defer span.End()

	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	messages := toMessages(options.SystemPrompt, options.History)
	messages = append(messages, message{Role: messageRoleUser, Content: prompt})

	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	reflector := jsonschema.Reflector{DoNotReference: true}
	outputType := reflect.TypeOf(output)
	for outputType.Kind() == reflect.Ptr {
		outputType = outputType.Elem()
	}
	schema := reflector.ReflectFromType(outputType)

	reqBody := requestBody{
		Model:    c.model,
		Messages: messages,
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchema{
				Name:   outputType.Name(),
				Schema: *schema,
				Strict: true,
			},
		},
	}
	if options.EnableThinking {
		reqBody.ReasoningEffort = "default"
		reqBody.MaxCompletionTokens = options.ThinkingBudget
	}

	span.SetAttributes(attribute.String("request.model", c.model))

	body, err := c.send(ctx, token, reqBody)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	var parsed responseBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		err = fmt.Errorf("failed to unmarshal completion response: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if len(parsed.Choices) == 0 {
		err := fmt.Errorf("completion returned no choices")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), output); err != nil {
		return fmt.Errorf("failed to unmarshal structured response: %w", err)
	}
	return nil
}
