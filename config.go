package graphqa

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/avilagarcia/graphqa/ground"
	"github.com/avilagarcia/graphqa/llm"
	"github.com/avilagarcia/graphqa/store"
	"github.com/avilagarcia/graphqa/tasks"
)

// Duration is a time.Duration that decodes from "1h30m" style YAML strings.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds all configuration for the question-answering pipeline.
type Config struct {
	// Neo4j is the graph store connection.
	Neo4j store.Config `json:"neo4j" yaml:"neo4j"`

	// Chat and Embedding configure the language-model endpoints.
	Chat      llm.Config `json:"chat" yaml:"chat"`
	Embedding llm.Config `json:"embedding" yaml:"embedding"`

	// Models assigns a model to each pipeline task.
	Models tasks.Models `json:"models" yaml:"models"`

	// Similarity tunes the nearest-neighbor grounding search.
	Similarity SimilarityConfig `json:"similarity" yaml:"similarity"`

	// CacheSize and CacheTTL bound the answer memoization cache.
	CacheSize int      `json:"cache_size" yaml:"cache_size"`
	CacheTTL  Duration `json:"cache_ttl" yaml:"cache_ttl"`

	// AuditDir is where the structured JSONL logs are written.
	AuditDir string `json:"audit_dir" yaml:"audit_dir"`

	// EmbedCachePath is the SQLite file for the persistent embedding cache.
	// Empty disables the cache.
	EmbedCachePath string `json:"embed_cache_path" yaml:"embed_cache_path"`
}

// SimilarityConfig tunes the grounding search. Zero values fall back to the
// package defaults (0.6 floor, 3 results).
type SimilarityConfig struct {
	Threshold float64 `json:"threshold" yaml:"threshold"`
	TopK      int     `json:"top_k" yaml:"top_k"`
}

// DefaultConfig returns a Config with production defaults. Credentials and
// endpoints still need to be filled in.
func DefaultConfig() Config {
	return Config{
		Neo4j: store.Config{
			URI:      "neo4j://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		Chat: llm.Config{
			Provider: "openai",
			Model:    "gpt-4.1",
		},
		Embedding: llm.Config{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		Models: tasks.DefaultModels(),
		Similarity: SimilarityConfig{
			Threshold: ground.DefaultThreshold,
			TopK:      ground.DefaultTopK,
		},
		CacheSize: 1024,
		CacheTTL:  Duration(time.Hour),
		AuditDir:  "logs",
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Neo4j.URI == "" {
		return fmt.Errorf("%w: neo4j uri is required", ErrInvalidConfig)
	}
	if c.Chat.Provider == "" || c.Embedding.Provider == "" {
		return fmt.Errorf("%w: chat and embedding providers are required", ErrInvalidConfig)
	}
	if c.CacheSize <= 0 || c.CacheTTL <= 0 {
		return fmt.Errorf("%w: cache size and ttl must be positive", ErrInvalidConfig)
	}
	return nil
}
