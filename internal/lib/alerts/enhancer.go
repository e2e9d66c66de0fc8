package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
)

// System prompt for the display-board summary model
const systemPrompt = `You are a bus operations assistant. Convert raw traffic disruption reports into a single short line suitable for a control-room display board.

Instructions:
- Focus on WHAT happened and its impact on buses, not exact timestamps.
- Remove jargon and abbreviations (e.g., "n/b" becomes "northbound").
- Mention the road and direction if known, keep place names short.
- Maximum 120 characters. Plain text only, no quotes, no markdown.

Good examples:
- A1 northbound blocked at J65 Birtley, collision, expect long delays
- Coast Road roadworks, lane closed westbound, minor delays
- Tyne Bridge congestion southbound, slow moving traffic`

// enhancer implements the Enhancer interface using OpenAI
type enhancer struct {
	client *openai.Client
	model  string
}

// NewEnhancer creates a new Enhancer backed by the OpenAI API
func NewEnhancer(apiKey, model string) Enhancer {
	if apiKey == "" {
		return &enhancer{client: nil, model: model}
	}

	return &enhancer{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Enhance produces a condensed one-line summary for the alert
func (e *enhancer) Enhance(ctx context.Context, alert Alert) (string, error) {
	if e.client == nil {
		return "", errors.New("OpenAI client not initialized - missing API key")
	}

	userPrompt := fmt.Sprintf("Title: %s\nDescription: %s\nLocation: %s\nSeverity: %s",
		alert.Title, alert.Description, alert.Location, alert.EffectiveSeverity())

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.3,
		MaxTokens:   100,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI API")
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return "", errors.New("empty summary from OpenAI API")
	}
	return truncateSummary(summary, 150), nil
}

// truncateSummary shortens a summary to at most limit bytes without
// splitting a rune, appending an ellipsis when it cuts.
func truncateSummary(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// HealthCheck verifies OpenAI API connectivity
func (e *enhancer) HealthCheck(ctx context.Context) error {
	if e.client == nil {
		return errors.New("OpenAI client not initialized")
	}

	_, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "Test"},
		},
		MaxTokens: 1,
	})
	if err != nil {
		return fmt.Errorf("OpenAI API health check failed: %w", err)
	}

	return nil
}
