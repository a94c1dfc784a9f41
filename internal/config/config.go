// Package config provides configuration loading and structs for the kotae server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Guardrail  GuardrailConfig  `yaml:"guardrail"`
	Answer     AnswerConfig     `yaml:"answer"`
	Harness    HarnessConfig    `yaml:"harness"`
	Storage    StorageConfig    `yaml:"storage"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// RateLimit is the sustained answer requests per second; Burst the bucket size.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// CorpusConfig declares where source documents live. FAQPath wins when it exists.
type CorpusConfig struct {
	FAQPath    string   `yaml:"faq_path"`
	DocsDir    string   `yaml:"docs_dir"`
	Extensions []string `yaml:"extensions"`
	Watch      bool     `yaml:"watch"`
}

// ChunkingConfig sets chunk and overlap sizes in words. An explicit overlap of 0 is kept.
type ChunkingConfig struct {
	Size    int  `yaml:"size"`
	Overlap *int `yaml:"overlap"`
}

// OverlapWords returns the configured overlap, or 0 when unset.
func (c ChunkingConfig) OverlapWords() int {
	if c.Overlap != nil {
		return *c.Overlap
	}
	return 0
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // hash, ollama, openai, onnx
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	BatchSize  int    `yaml:"batch_size"` // inputs per request for openai
	ModelPath  string `yaml:"model_path"`
}

// APIKey returns the key from the configured environment variable.
func (e EmbeddingConfig) APIKey() string {
	if e.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(e.APIKeyEnv)
}

// GenerationConfig selects and configures the answer generation provider.
type GenerationConfig struct {
	Provider    string  `yaml:"provider"` // extractive, ollama, openai
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// APIKey returns the key from the configured environment variable.
func (g GenerationConfig) APIKey() string {
	if g.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(g.APIKeyEnv)
}

// RetrievalConfig holds retrieval cut-offs.
type RetrievalConfig struct {
	TopK          int     `yaml:"top_k"`
	MinSimilarity float64 `yaml:"min_similarity"`
}

// GuardrailConfig holds scope classification settings. MinSimilarity must be at least
// Retrieval.MinSimilarity.
type GuardrailConfig struct {
	MinSimilarity float64             `yaml:"min_similarity"`
	Fuzzy         *bool               `yaml:"fuzzy"`
	Topics        map[string][]string `yaml:"topics"`
}

// FuzzyOrDefault returns whether misspelled markers match; defaults to true when unset.
func (g *GuardrailConfig) FuzzyOrDefault() bool {
	if g.Fuzzy != nil {
		return *g.Fuzzy
	}
	return true
}

// AnswerConfig holds grounding verification settings.
type AnswerConfig struct {
	MinSupport float64 `yaml:"min_support"`
}

// HarnessConfig holds the scripted accuracy checks.
type HarnessConfig struct {
	OutOfScope         []string   `yaml:"out_of_scope"`
	Grounding          []string   `yaml:"grounding"`
	Consistency        [][]string `yaml:"consistency"`
	Misleading         []string   `yaml:"misleading"`
	ConsistencyRepeats int        `yaml:"consistency_repeats"`
	MinCitationOverlap float64    `yaml:"min_citation_overlap"`
	RequireAnswer      *bool      `yaml:"require_answer"`
}

// RequireAnswerOrDefault returns whether grounding cases must be answered; defaults to true.
func (h *HarnessConfig) RequireAnswerOrDefault() bool {
	if h.RequireAnswer != nil {
		return *h.RequireAnswer
	}
	return true
}

// StorageConfig holds the catalog database and index cache locations.
type StorageConfig struct {
	Driver         string `yaml:"driver"` // sqlite, postgres
	DatabasePath   string `yaml:"database_path"`
	PostgresDSN    string `yaml:"postgres_dsn"`
	IndexCachePath string `yaml:"index_cache_path"`
}

// Load reads and parses the config file at path, expands paths, applies defaults and validates.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Corpus.FAQPath = expandPath(cfg.Corpus.FAQPath, configDir)
	cfg.Corpus.DocsDir = expandPath(cfg.Corpus.DocsDir, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.IndexCachePath = expandPath(cfg.Storage.IndexCachePath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// LoadEnv loads provider secrets from a .env file. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Validate checks cross-field constraints. Violations wrap models.ErrInvalidConfig.
func (c *Config) Validate() error {
	var problems []string
	if c.Chunking.Size <= 0 {
		problems = append(problems, "chunking.size must be positive")
	}
	if o := c.Chunking.OverlapWords(); o < 0 || o >= c.Chunking.Size {
		problems = append(problems, "chunking.overlap must be in [0, size)")
	}
	if c.Retrieval.TopK <= 0 {
		problems = append(problems, "retrieval.top_k must be positive")
	}
	if c.Retrieval.MinSimilarity < -1 || c.Retrieval.MinSimilarity > 1 {
		problems = append(problems, "retrieval.min_similarity must be in [-1, 1]")
	}
	if c.Guardrail.MinSimilarity < c.Retrieval.MinSimilarity {
		problems = append(problems, "guardrail.min_similarity must not be below retrieval.min_similarity")
	}
	if c.Answer.MinSupport < 0 || c.Answer.MinSupport > 1 {
		problems = append(problems, "answer.min_support must be in [0, 1]")
	}
	if c.Harness.MinCitationOverlap < 0 || c.Harness.MinCitationOverlap > 1 {
		problems = append(problems, "harness.min_citation_overlap must be in [0, 1]")
	}
	if c.Harness.ConsistencyRepeats <= 0 {
		problems = append(problems, "harness.consistency_repeats must be positive")
	}
	switch c.Embedding.Provider {
	case "hash", "ollama", "openai", "onnx":
	default:
		problems = append(problems, fmt.Sprintf("unknown embedding.provider %q", c.Embedding.Provider))
	}
	switch c.Generation.Provider {
	case "extractive", "ollama", "openai":
	default:
		problems = append(problems, fmt.Sprintf("unknown generation.provider %q", c.Generation.Provider))
	}
	switch c.Storage.Driver {
	case "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			problems = append(problems, "storage.postgres_dsn is required for the postgres driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage.driver %q", c.Storage.Driver))
	}
	if c.Corpus.FAQPath == "" && c.Corpus.DocsDir == "" {
		problems = append(problems, "corpus.faq_path or corpus.docs_dir is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", models.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
