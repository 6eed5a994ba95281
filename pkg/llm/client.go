// Package llm wraps an OpenAI-compatible chat-completions endpoint with
// provider detection and structured-output handling.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Provider identifies the upstream serving the OpenAI-compatible API.
type Provider string

const (
	ProviderOpenAI        Provider = "openai"
	ProviderGroq          Provider = "groq"
	ProviderAnthropic     Provider = "anthropic"
	ProviderAcademicCloud Provider = "academic_cloud"
	ProviderUnknown       Provider = "unknown"
)

// Per-provider response token limits.
var tokenLimits = map[Provider]int{
	ProviderOpenAI:        4096,
	ProviderGroq:          32768,
	ProviderAnthropic:     4096,
	ProviderAcademicCloud: 1500,
	ProviderUnknown:       1024,
}

// Per-provider default temperatures, used when the caller passes none.
var defaultTemperatures = map[Provider]float32{
	ProviderOpenAI:        0.5,
	ProviderGroq:          0.4,
	ProviderAnthropic:     0.5,
	ProviderAcademicCloud: 0.5,
	ProviderUnknown:       0.3,
}

// Models known to accept a full json_schema response format.
var schemaCapableModels = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4-turbo",
	"openai/gpt-oss-20b",
	"openai/gpt-oss-120b",
	"moonshotai/kimi-k2-instruct-0905",
	"meta-llama/llama-4-maverick-17b-128e-instruct",
	"meta-llama/llama-4-scout-17b-16e-instruct",
}

// ChatCompleter is the subset of the go-openai client used here.
// *openai.Client satisfies it; tests substitute a stub.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Message is one turn of chat context.
type Message struct {
	Role    string
	Content string
}

// Client issues structured-output requests with provider-specific parameter
// shaping and a degradation chain for providers that reject schema modes.
type Client struct {
	api      ChatCompleter
	model    string
	provider Provider
}

// New creates a client for the given OpenAI-compatible endpoint.
func New(baseURL, apiKey, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	c := &Client{
		api:      openai.NewClientWithConfig(cfg),
		model:    model,
		provider: detectProvider(baseURL),
	}
	slog.Info("LLM client initialized", "provider", c.provider, "model", model)
	return c
}

// NewWithAPI creates a client over a caller-supplied transport.
func NewWithAPI(api ChatCompleter, baseURL, model string) *Client {
	return &Client{api: api, model: model, provider: detectProvider(baseURL)}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Provider returns the detected provider.
func (c *Client) Provider() Provider { return c.provider }

func detectProvider(baseURL string) Provider {
	u, err := url.Parse(strings.ToLower(baseURL))
	if err != nil || u.Host == "" {
		return ProviderUnknown
	}
	host := u.Hostname()
	switch {
	case strings.Contains(host, "openai.com"):
		return ProviderOpenAI
	case strings.Contains(host, "anthropic.com"):
		return ProviderAnthropic
	case strings.Contains(host, "groq.com"):
		return ProviderGroq
	case strings.Contains(host, "academiccloud.de"), strings.Contains(baseURL, "vllm"):
		return ProviderAcademicCloud
	}
	return ProviderUnknown
}

func (c *Client) supportsJSONSchema() bool {
	m := strings.ToLower(c.model)
	for _, known := range schemaCapableModels {
		if strings.Contains(m, known) {
			return true
		}
	}
	return false
}

// QueryStructured requests a JSON response matching schema. Degradation
// order: native json_schema, then json_object mode with the schema spelled
// out in the prompt, then a plain completion. Returns the raw model text.
func (c *Client) QueryStructured(ctx context.Context, messages []Message, schema map[string]any, temperature float32) (string, error) {
	if c.api == nil {
		return "", fmt.Errorf("llm: no transport configured")
	}
	if temperature <= 0 {
		temperature = defaultTemperatures[c.provider]
	}

	base := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
		MaxTokens:   tokenLimits[c.provider],
	}

	if c.supportsJSONSchema() {
		req := base
		req.Messages = toOpenAI(messages)
		raw, _ := json.Marshal(schema)
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "structured_output",
				Schema: json.RawMessage(raw),
			},
		}
		content, err := c.complete(ctx, req)
		if err == nil {
			return content, nil
		}
		slog.Warn("json_schema request failed, falling back to json_object", "error", err)
	}

	req := base
	req.Messages = toOpenAI(withSchemaInstruction(messages, schema))
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	}
	content, err := c.complete(ctx, req)
	if err == nil {
		return content, nil
	}
	slog.Warn("json_object request failed, falling back to plain completion", "error", err)

	req = base
	req.Messages = toOpenAI(withSchemaInstruction(messages, schema))
	content, plainErr := c.complete(ctx, req)
	if plainErr != nil {
		return "", fmt.Errorf("llm: all request modes failed: %w", err)
	}
	return content, nil
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func toOpenAI(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// withSchemaInstruction appends the expected schema to the system message so
// providers without schema validation still see the target shape.
func withSchemaInstruction(messages []Message, schema map[string]any) []Message {
	raw, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return messages
	}
	instruction := "Respond with a valid JSON object matching this schema exactly:\n```json\n" + string(raw) + "\n```"

	out := append([]Message(nil), messages...)
	for i, m := range out {
		if m.Role == "system" {
			out[i].Content = m.Content + "\n\n" + instruction
			return out
		}
	}
	return append([]Message{{Role: "system", Content: instruction}}, out...)
}
