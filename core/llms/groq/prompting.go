package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/voxa-labs/voxa-core/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type requestBody struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`

	ReasoningEffort string `json:"reasoning_effort,omitempty"`
	// MaxCompletionTokens is the closest server-side cap to a thinking
	// budget the API exposes.
	MaxCompletionTokens int `json:"max_completion_tokens,omitempty"`

	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseBody struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete runs one completion call. The credential fetch happens first and
// its failure is reported as [llms.ErrTokenFetch] so callers can distinguish
// it from a completion failure. Cancelling ctx aborts the in-flight request.
func (c *Client) Complete(ctx context.Context, request llms.Request) (*llms.Response, error) {
	ctx, span := tracer.Start(ctx, "prompt llm")
	defer span.End()

	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	model := request.Model
	if model == "" {
		model = c.model
	}

	reqBody := requestBody{
		Model:    model,
		Messages: toMessages(request.SystemPrompt, request.Messages),
	}
	if request.EnableThinking {
		reqBody.ReasoningEffort = "default"
		reqBody.MaxCompletionTokens = request.ThinkingBudget
	}

	span.SetAttributes(attribute.String("request.model", model))

	body, err := c.send(ctx, token, reqBody)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var parsed responseBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		err = fmt.Errorf("failed to unmarshal completion response: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if len(parsed.Choices) == 0 {
		err := fmt.Errorf("completion returned no choices")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return &llms.Response{Content: parsed.Choices[0].Message.Content}, nil
}

func (c *Client) send(ctx context.Context, token string, reqBody requestBody) ([]byte, error) {
	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
			return "groq chat completion"
		}))}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("non-OK HTTP status %s: %s", resp.Status, string(errorBody))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	return body, nil
}
