package llm

import (
	"fmt"
	"strings"
)

// ModelInfo describes a known model: pricing in dollars per 1k tokens and
// the context window in tokens. Embedding models are billed on total tokens;
// chat models on input/output separately. Local models carry zero pricing.
type ModelInfo struct {
	InputPer1K    float64
	OutputPer1K   float64
	EmbedPer1K    float64
	ContextTokens int
	Embedding     bool
}

// modelInfo lists every model the pipeline is allowed to call. Calls with a
// model outside this table are rejected before any request is sent.
var modelInfo = map[string]ModelInfo{
	// Hosted chat models (pricing April 2025, per 1k tokens).
	"gpt-4-turbo":   {InputPer1K: 0.01, OutputPer1K: 0.03, ContextTokens: 128000},
	"gpt-4.1":       {InputPer1K: 0.002, OutputPer1K: 0.008, ContextTokens: 1047576},
	"gpt-4.1-nano":  {InputPer1K: 0.0001, OutputPer1K: 0.0004, ContextTokens: 1047576},
	"gpt-3.5-turbo": {InputPer1K: 0.0005, OutputPer1K: 0.0015, ContextTokens: 16385},

	// Hosted embedding models.
	"text-embedding-3-small": {EmbedPer1K: 0.00002, ContextTokens: 8191, Embedding: true},
	"text-embedding-3-large": {EmbedPer1K: 0.00013, ContextTokens: 8191, Embedding: true},

	// Local models, free to call.
	"llama3.1:8b":      {ContextTokens: 131072},
	"nomic-embed-text": {ContextTokens: 8192, Embedding: true},
}

// KnownModel reports whether the model appears in the pricing table.
func KnownModel(model string) bool {
	_, ok := modelInfo[model]
	return ok
}

// ModelCost computes the dollar cost of a chat completion.
// The model must be a known chat model.
func ModelCost(model string, inputTokens, outputTokens int) (float64, error) {
	info, ok := modelInfo[model]
	if !ok {
		return 0, fmt.Errorf("unknown model pricing for: %s", model)
	}
	if info.Embedding {
		return 0, fmt.Errorf("model %s is an embedding model, not a chat model", model)
	}
	return float64(inputTokens)/1000*info.InputPer1K +
		float64(outputTokens)/1000*info.OutputPer1K, nil
}

// EmbeddingCost computes the dollar cost of an embedding request.
// The model must be a known embedding model.
func EmbeddingCost(model string, totalTokens int) (float64, error) {
	info, ok := modelInfo[model]
	if !ok {
		return 0, fmt.Errorf("unknown model pricing for: %s", model)
	}
	if !info.Embedding {
		return 0, fmt.Errorf("model %s is not an embedding model", model)
	}
	return float64(totalTokens) / 1000 * info.EmbedPer1K, nil
}

// approxCharsPerToken is the char-to-token ratio used to bound prompt sizes
// without shipping a tokenizer. Conservative for English and code-like text.
const approxCharsPerToken = 4

// completionReserve is the slice of the context window kept free for the
// model's own output when truncating prompts.
const completionReserve = 2048

// TruncateTokens cuts text down to approximately maxTokens, breaking on a
// word boundary. Returns the (possibly shortened) text and whether any
// truncation happened.
func TruncateTokens(text string, maxTokens int) (string, bool) {
	maxChars := maxTokens * approxCharsPerToken
	if len(text) <= maxChars {
		return text, false
	}
	cut := strings.LastIndex(text[:maxChars], " ")
	if cut <= 0 {
		cut = maxChars
	}
	return text[:cut], true
}

// truncateForModel bounds a prompt to the model's context window, leaving
// room for the completion.
func truncateForModel(text, model string) (string, bool) {
	info, ok := modelInfo[model]
	if !ok {
		return text, false
	}
	budget := info.ContextTokens - completionReserve
	if budget <= 0 {
		budget = info.ContextTokens
	}
	return TruncateTokens(text, budget)
}
