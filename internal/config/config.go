package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
	DefaultTopK         = 3

	DefaultProvider  = "googleai"
	DefaultModel     = "gemini-2.0-flash"
	DefaultAPIKeyEnv = "GOOGLE_API_KEY"
)

type Config struct {
	LLM    LLMConfig    `yaml:"llm"`
	RAG    RAGConfig    `yaml:"rag"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// LLMConfig selects the hosted model. Key is never read from the file, only
// from the environment variable named by APIKeyEnv.
type LLMConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	Key         string `yaml:"-"`
}

type RAGConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	TopK         int `yaml:"top_k"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  DefaultProvider,
			Model:     DefaultModel,
			APIKeyEnv: DefaultAPIKeyEnv,
		},
		RAG: RAGConfig{
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
			TopK:         DefaultTopK,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MaxUploadMB: 32,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults. A missing file is
// not an error. The API key is resolved from the environment afterwards, with
// a .env file in the working directory loaded first if present.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	_ = godotenv.Load()
	cfg.LLM.Key = os.Getenv(cfg.LLM.APIKeyEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.RAG.Validate(); err != nil {
		return err
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "googleai", "openai", "ollama":
	default:
		return fmt.Errorf("%w: unknown llm provider %q", ErrInvalidConfig, c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("%w: llm.model is required", ErrInvalidConfig)
	}
	if c.LLM.TimeoutSecs < 0 {
		return fmt.Errorf("%w: llm.timeout_secs must not be negative", ErrInvalidConfig)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("%w: server.max_upload_mb must be positive", ErrInvalidConfig)
	}
	return nil
}

// Validate rejects chunk settings that would stop the sliding window from
// advancing.
func (r RAGConfig) Validate() error {
	if r.ChunkSize <= 0 {
		return fmt.Errorf("%w: rag.chunk_size must be positive, got %d", ErrInvalidConfig, r.ChunkSize)
	}
	if r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize {
		return fmt.Errorf("%w: rag.chunk_overlap must be in [0, %d), got %d", ErrInvalidConfig, r.ChunkSize, r.ChunkOverlap)
	}
	if r.TopK <= 0 {
		return fmt.Errorf("%w: rag.top_k must be positive, got %d", ErrInvalidConfig, r.TopK)
	}
	return nil
}
