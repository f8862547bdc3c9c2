// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// GroqBaseURL is the OpenAI-compatible endpoint used when only a Groq key is set.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// GroqDefaultModel is the model used against Groq when none is configured.
const GroqDefaultModel = "llama3-8b-8192"

type Config struct {
	App    AppConfig
	Server ServerConfig
	Client ClientConfig
	LLM    LLMConfig
}

type AppConfig struct {
	Env        string `envconfig:"APP_ENV" default:"development"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	OTelStdout bool   `envconfig:"OTEL_STDOUT" default:"false"`
	// OTelSampleRatio is the fraction of new traces kept.
	OTelSampleRatio float64 `envconfig:"OTEL_SAMPLE_RATIO" default:"1"`
}

type ServerConfig struct {
	Addr            string        `envconfig:"TOOLWIRE_ADDR" default:":8000"`
	RequestTimeout  time.Duration `envconfig:"TOOLWIRE_REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"TOOLWIRE_SHUTDOWN_TIMEOUT" default:"5s"`
	LegacySubstract bool          `envconfig:"TOOLWIRE_LEGACY_SUBSTRACT" default:"false"`
	MCPBridge       bool          `envconfig:"TOOLWIRE_MCP_BRIDGE" default:"true"`
	GeometryTools   bool          `envconfig:"TOOLWIRE_GEOMETRY_TOOLS" default:"false"`
	// DatabaseURL enables the invocation journal when set.
	DatabaseURL string `envconfig:"DATABASE_URL"`
}

type ClientConfig struct {
	BaseURL            string        `envconfig:"BASE_API_URL" default:"http://localhost:8000"`
	DiscoveryTimeout   time.Duration `envconfig:"TOOLWIRE_DISCOVERY_TIMEOUT" default:"10s"`
	DecisionTimeout    time.Duration `envconfig:"TOOLWIRE_DECISION_TIMEOUT" default:"60s"`
	InvocationTimeout  time.Duration `envconfig:"TOOLWIRE_INVOCATION_TIMEOUT" default:"10s"`
	DecisionsPerMinute int           `envconfig:"TOOLWIRE_DECISIONS_PER_MINUTE" default:"30"`
	PromptTemplate     string        `envconfig:"TOOLWIRE_PROMPT_TEMPLATE"`
	// ShortlistMax caps the tools offered per question; 0 offers the whole catalog.
	ShortlistMax      int    `envconfig:"TOOLWIRE_SHORTLIST_MAX" default:"0"`
	EmbeddingProvider string `envconfig:"TOOLWIRE_EMBEDDING_PROVIDER" default:"hashed"`
	EmbeddingModel    string `envconfig:"TOOLWIRE_EMBEDDING_MODEL"`
	// EmbeddingDim is the requested vector size; 0 keeps the provider default.
	EmbeddingDim int `envconfig:"TOOLWIRE_EMBEDDING_DIM" default:"0"`
}

type LLMConfig struct {
	Provider  string `envconfig:"TOOLWIRE_PROVIDER" default:"openai"`
	Model     string `envconfig:"TOOLWIRE_MODEL"`
	BaseURL   string `envconfig:"TOOLWIRE_LLM_BASE_URL"`
	GroqKey   string `envconfig:"GROQ_API_KEY"`
	OpenAIKey string `envconfig:"OPENAI_API_KEY"`
	GoogleKey string `envconfig:"GOOGLE_API_KEY"`
}

// Provider is the resolved decision-maker connection.
type Provider struct {
	Name    string
	Model   string
	BaseURL string
	APIKey  string
}

// Resolve picks the credentials for the configured provider. For "openai",
// an OpenAI key wins; otherwise a Groq key selects the Groq endpoint and
// its default model.
func (c LLMConfig) Resolve() (Provider, error) {
	p := Provider{Name: c.Provider, Model: c.Model, BaseURL: c.BaseURL}
	switch c.Provider {
	case "gemini":
		p.APIKey = c.GoogleKey
		if p.Model == "" {
			p.Model = "gemini-2.0-flash"
		}
	case "openai":
		switch {
		case c.OpenAIKey != "":
			p.APIKey = c.OpenAIKey
			if p.Model == "" {
				p.Model = "gpt-4o-mini"
			}
		case c.GroqKey != "":
			p.APIKey = c.GroqKey
			if p.BaseURL == "" {
				p.BaseURL = GroqBaseURL
			}
			if p.Model == "" {
				p.Model = GroqDefaultModel
			}
		}
	case "scripted":
		return p, nil
	default:
		return Provider{}, fmt.Errorf("unknown provider %q", c.Provider)
	}
	if p.APIKey == "" {
		return Provider{}, fmt.Errorf("no API key configured for provider %q", c.Provider)
	}
	return p, nil
}

// EmbeddingKey returns the API key the named embedding provider uses.
func (c LLMConfig) EmbeddingKey(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIKey
	case "gemini":
		return c.GoogleKey
	}
	return ""
}

// Load reads .env.local (overriding the environment) and .env (not
// overriding), then processes the environment into a Config.
func Load() (*Config, error) {
	if err := loadDotenv(".env.local", ".env"); err != nil {
		return nil, err
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	return &cfg, nil
}

func loadDotenv(local, shared string) error {
	if err := godotenv.Overload(local); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", local, err)
	}
	if err := godotenv.Load(shared); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", shared, err)
	}
	return nil
}
