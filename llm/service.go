package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Service wraps chat and embedding providers with the billing and safety
// concerns every pipeline call shares: model validation, per-call cost
// accounting, context-budget truncation, and structured-output decoding.
type Service struct {
	chat       Provider
	embed      Provider
	embedModel string
}

// NewService creates a Service over the given providers. embedModel names
// the embedding model for pricing purposes; it must be in the pricing table.
func NewService(chat, embed Provider, embedModel string) (*Service, error) {
	if !KnownModel(embedModel) {
		return nil, fmt.Errorf("unknown embedding model: %s", embedModel)
	}
	return &Service{chat: chat, embed: embed, embedModel: embedModel}, nil
}

// Generate sends one chat completion and returns the text plus dollar cost.
// The user prompt is truncated to the model's context budget before sending.
func (s *Service) Generate(ctx context.Context, system, user, model string, temperature float64) (string, float64, error) {
	resp, err := s.complete(ctx, system, user, model, temperature, "")
	if err != nil {
		return "", 0, err
	}
	cost, err := ModelCost(model, resp.PromptTokens, resp.CompletionTokens)
	if err != nil {
		return "", 0, err
	}
	return resp.Content, cost, nil
}

// GenerateStructured sends one chat completion in JSON mode and decodes the
// response into out. Decoding happens here, at the single boundary where
// model output enters the core, so downstream code sees typed values only.
func (s *Service) GenerateStructured(ctx context.Context, system, user, model string, temperature float64, out any) (float64, error) {
	resp, err := s.complete(ctx, system, user, model, temperature, "json_object")
	if err != nil {
		return 0, err
	}
	cost, err := ModelCost(model, resp.PromptTokens, resp.CompletionTokens)
	if err != nil {
		return 0, err
	}
	if err := json.Unmarshal([]byte(stripFences(resp.Content)), out); err != nil {
		return cost, fmt.Errorf("decoding structured response: %w", err)
	}
	return cost, nil
}

// Embedding generates one embedding vector and its dollar cost.
func (s *Service) Embedding(ctx context.Context, text string) ([]float32, float64, error) {
	resp, err := s.embed.Embed(ctx, text)
	if err != nil {
		return nil, 0, err
	}
	cost, err := EmbeddingCost(s.embedModel, resp.TotalTokens)
	if err != nil {
		return nil, 0, err
	}
	return resp.Embedding, cost, nil
}

func (s *Service) complete(ctx context.Context, system, user, model string, temperature float64, format string) (*ChatResponse, error) {
	if !KnownModel(model) {
		return nil, fmt.Errorf("unknown model: %s", model)
	}
	if temperature < 0 || temperature > 2 {
		return nil, fmt.Errorf("temperature %.2f out of range [0, 2]", temperature)
	}

	truncated, didTruncate := truncateForModel(user, model)
	if didTruncate {
		slog.Warn("llm: prompt truncated to context budget",
			"model", model, "original_chars", len(user), "sent_chars", len(truncated))
	}

	return s.chat.Chat(ctx, ChatRequest{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: truncated},
		},
		Temperature:    temperature,
		ResponseFormat: format,
	})
}

// stripFences removes a markdown code fence wrapper if the model added one
// around its JSON output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
