package llm

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	requests  []openai.ChatCompletionRequest
	responses []string
	errs      []error
}

func (s *stubCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.requests = append(s.requests, req)
	i := len(s.requests) - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return openai.ChatCompletionResponse{}, s.errs[i]
	}
	content := ""
	if i < len(s.responses) {
		content = s.responses[i]
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: content}}},
	}, nil
}

func respond(content string) *stubCompleter {
	return &stubCompleter{responses: []string{content, content, content}}
}

var testSchema = map[string]any{
	"type":       "object",
	"properties": map[string]any{"a": map[string]any{"type": "string"}},
}

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		baseURL string
		want    Provider
	}{
		{"https://api.openai.com/v1", ProviderOpenAI},
		{"https://api.groq.com/openai/v1", ProviderGroq},
		{"https://api.anthropic.com/v1", ProviderAnthropic},
		{"https://chat-ai.academiccloud.de/v1", ProviderAcademicCloud},
		{"http://localhost:8000/vllm/v1", ProviderAcademicCloud},
		{"", ProviderUnknown},
		{"not a url", ProviderUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, detectProvider(tt.baseURL), tt.baseURL)
	}
}

func TestQueryStructured_SchemaCapableModelUsesJSONSchema(t *testing.T) {
	stub := respond(`{"a":"b"}`)
	c := NewWithAPI(stub, "https://api.openai.com/v1", "gpt-4o-mini")

	out, err := c.QueryStructured(context.Background(), []Message{{Role: "system", Content: "sys"}}, testSchema, 0.2)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"b"}`, out)

	require.Len(t, stub.requests, 1)
	req := stub.requests[0]
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONSchema, req.ResponseFormat.Type)
	assert.Equal(t, float32(0.2), req.Temperature)
	assert.Equal(t, tokenLimits[ProviderOpenAI], req.MaxTokens)
}

func TestQueryStructured_UnknownModelUsesJSONObjectWithInlineSchema(t *testing.T) {
	stub := respond(`{"a":"b"}`)
	c := NewWithAPI(stub, "", "some-local-model")

	out, err := c.QueryStructured(context.Background(), []Message{{Role: "system", Content: "sys"}}, testSchema, 0)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"b"}`, out)

	require.Len(t, stub.requests, 1)
	req := stub.requests[0]
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)
	// Zero temperature falls back to the provider default.
	assert.Equal(t, defaultTemperatures[ProviderUnknown], req.Temperature)
	// The schema is spelled out in the system message.
	require.NotEmpty(t, req.Messages)
	assert.Contains(t, req.Messages[0].Content, "matching this schema")
}

func TestQueryStructured_DegradesToPlainCompletion(t *testing.T) {
	stub := &stubCompleter{
		errs:      []error{errors.New("json_object unsupported"), nil},
		responses: []string{"", `{"a":"b"}`},
	}
	c := NewWithAPI(stub, "", "some-local-model")

	out, err := c.QueryStructured(context.Background(), []Message{{Role: "user", Content: "hi"}}, testSchema, 0.3)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"b"}`, out)

	require.Len(t, stub.requests, 2)
	assert.Nil(t, stub.requests[1].ResponseFormat)
}

func TestQueryStructured_AllModesFail(t *testing.T) {
	boom := errors.New("boom")
	stub := &stubCompleter{errs: []error{boom, boom, boom}}
	c := NewWithAPI(stub, "", "some-local-model")

	_, err := c.QueryStructured(context.Background(), []Message{{Role: "user", Content: "hi"}}, testSchema, 0.3)
	assert.ErrorContains(t, err, "all request modes failed")
}

func TestQueryStructured_NoTransport(t *testing.T) {
	c := &Client{model: "m", provider: ProviderUnknown}
	_, err := c.QueryStructured(context.Background(), nil, testSchema, 0.3)
	assert.Error(t, err)
}

func TestWithSchemaInstruction_PrependsSystemWhenMissing(t *testing.T) {
	out := withSchemaInstruction([]Message{{Role: "user", Content: "hi"}}, testSchema)
	require.Len(t, out, 2)
	assert.Equal(t, "system", out[0].Role)
	assert.Contains(t, out[0].Content, "schema")
	assert.Equal(t, "hi", out[1].Content)
}
