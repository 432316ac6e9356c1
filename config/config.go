// Package config loads and validates parley's configuration.
//
// Configuration is layered: DefaultConfig, then a YAML file (with ${VAR} and
// ${VAR:-default} expansion), then PARLEY_* environment variables.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	LLM            LLMConfig            `yaml:"llm"`
	Prompts        PromptsConfig        `yaml:"prompts"`
	Processing     ProcessingConfig     `yaml:"processing"`
	Logging        LoggingConfig        `yaml:"logging"`
	Routes         []RouteConfig        `yaml:"routes"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	Queue          QueueConfig          `yaml:"queue"`
	Tracing        TracingConfig        `yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Port is the HTTP server port
	Port int `yaml:"port" env:"PARLEY_PORT"`

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will read parsing the request header
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout is applied by the "timeout" route middleware
	RequestTimeout time.Duration `yaml:"request_timeout" env:"PARLEY_REQUEST_TIMEOUT"`
}

// LLMConfig holds the chat client settings.
type LLMConfig struct {
	// Provider is the gollm provider name (e.g., "openai", "anthropic", "ollama")
	Provider string `yaml:"provider" env:"PARLEY_LLM_PROVIDER"`

	// Model is the name of the model to use
	Model string `yaml:"model" env:"PARLEY_LLM_MODEL"`

	// APIKey is the authentication key for the provider.
	// Usually set through ${VAR} expansion or PARLEY_LLM_API_KEY.
	APIKey string `yaml:"api_key" env:"PARLEY_LLM_API_KEY"`

	// Endpoint overrides the provider endpoint (ollama only)
	Endpoint string `yaml:"endpoint" env:"PARLEY_LLM_ENDPOINT"`

	// MaxContextTokens rejects prompts above this many tokens; 0 disables the check
	MaxContextTokens int `yaml:"max_context_tokens"`

	// Options are passed to the client with SetOption (temperature, max_tokens...)
	Options map[string]interface{} `yaml:"options"`
}

// PromptsConfig locates prompt assets.
type PromptsConfig struct {
	// Dir overrides the bundled prompts with files from disk
	Dir string `yaml:"dir" env:"PARLEY_PROMPTS_DIR"`

	// TweetSystemMessage is the asset used as system message for tweet generation
	TweetSystemMessage string `yaml:"tweet_system_message"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error")
	Level string `yaml:"level" env:"PARLEY_LOG_LEVEL"`

	// Format is the log output format ("json" or "text")
	Format string `yaml:"format" env:"PARLEY_LOG_FORMAT"`
}

// RouteConfig binds a path to a named handler.
type RouteConfig struct {
	// Path is the URL path to match
	Path string `yaml:"path"`

	// Handler is the name of a registered handler
	Handler string `yaml:"handler"`

	// Methods lists the HTTP methods the route accepts
	Methods []string `yaml:"methods"`

	// Middleware lists route-specific middleware ("ratelimit", "timeout", "queue")
	Middleware []string `yaml:"middleware,omitempty"`
}

// CircuitBreakerConfig configures fail-fast behaviour towards the provider.
type CircuitBreakerConfig struct {
	Enabled bool `yaml:"enabled"`

	// MaxRequests is the number of requests allowed through when half-open
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval is the cyclic period in which failure counts are cleared while closed
	Interval time.Duration `yaml:"interval"`

	// Timeout is how long the breaker stays open before probing again
	Timeout time.Duration `yaml:"timeout"`

	// FailureThreshold is the number of consecutive failures that opens the breaker
	FailureThreshold uint32 `yaml:"failure_threshold"`
}

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained rate per client
	RequestsPerMinute int `yaml:"requests_per_minute" env:"PARLEY_RATE_LIMIT_RPM"`

	// Burst is the bucket size
	Burst int `yaml:"burst"`
}

// QueueConfig configures the admission queue.
type QueueConfig struct {
	// MaxSize is the number of requests admitted at once
	MaxSize int64 `yaml:"max_size"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	// ServiceName is reported on every span
	ServiceName string `yaml:"service_name"`

	// OTLPEndpoint is the collector address; empty disables export
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"PARLEY_OTLP_ENDPOINT"`

	// Insecure disables TLS to the collector
	Insecure bool `yaml:"insecure"`

	// SampleRate is the fraction of traces kept (0..1)
	SampleRate float64 `yaml:"sample_rate"`
}

// DefaultConfig returns a configuration that serves every endpoint with a
// local ollama model.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    90 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  60 * time.Second,
		},

		LLM: LLMConfig{
			Provider:         "ollama",
			Model:            "llama3",
			MaxContextTokens: 8192,
		},

		Prompts: PromptsConfig{
			TweetSystemMessage: "prompts/tweet-system-message.st",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},

		Routes: DefaultRoutes(),

		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      1,
			Interval:         60 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		},

		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			Burst:             10,
		},

		Queue: QueueConfig{
			MaxSize: 100,
		},

		Tracing: TracingConfig{
			ServiceName: "parley",
			SampleRate:  1.0,
		},
	}
}

// DefaultRoutes returns the built-in route table.
func DefaultRoutes() []RouteConfig {
	modelRoute := func(path, handler, method string) RouteConfig {
		return RouteConfig{
			Path:       path,
			Handler:    handler,
			Methods:    []string{method},
			Middleware: []string{"ratelimit", "queue", "timeout"},
		}
	}
	return []RouteConfig{
		modelRoute("/api/ai", "echo", "GET"),
		modelRoute("/api/ai/generate-tweet", "generate_tweet", "POST"),
		modelRoute("/api/ai/suggest-title", "suggest_title", "POST"),
		modelRoute("/api/ai/suggest-title-structured", "suggest_title_structured", "POST"),
		modelRoute("/api/ai/langs", "langs", "GET"),
		modelRoute("/api/ai/tweet", "tweet", "POST"),
		{Path: "/health", Handler: "health", Methods: []string{"GET"}},
		{Path: "/metrics", Handler: "metrics", Methods: []string{"GET"}},
	}
}

// LoadFile loads configuration from a YAML file
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// expandEnvVars resolves ${VAR} and ${VAR:-default} references.
// Unset variables without a default expand to the empty string.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		if i := strings.Index(key, ":-"); i >= 0 {
			if val := os.Getenv(key[:i]); val != "" {
				return val
			}
			return key[i+2:]
		}
		return os.Getenv(key)
	})
}

// Load reads YAML from r on top of DefaultConfig, applies PARLEY_*
// environment overrides and validates the result.
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	config := DefaultConfig()

	expanded := expandEnvVars(string(data))
	if strings.TrimSpace(expanded) != "" {
		dec := yaml.NewDecoder(strings.NewReader(expanded))
		dec.KnownFields(true)
		if err := dec.Decode(config); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// FromEnv returns DefaultConfig with environment overrides applied.
// Used when no config file is given.
func FromEnv() (*Config, error) {
	return Load(strings.NewReader(""))
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("negative read timeout: %v", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("negative write timeout: %v", c.Server.WriteTimeout)
	}
	if c.Server.MaxHeaderBytes < 0 {
		return fmt.Errorf("negative max header bytes: %d", c.Server.MaxHeaderBytes)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("negative shutdown timeout: %v", c.Server.ShutdownTimeout)
	}
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("negative request timeout: %v", c.Server.RequestTimeout)
	}

	if c.LLM.Provider == "" {
		return fmt.Errorf("empty LLM provider")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("empty LLM model")
	}
	if c.LLM.MaxContextTokens < 0 {
		return fmt.Errorf("negative max context tokens: %d", c.LLM.MaxContextTokens)
	}

	if c.Prompts.TweetSystemMessage == "" {
		return fmt.Errorf("empty tweet system message path")
	}

	if c.Processing.ResponseFormatting.MaxLength < 0 {
		return fmt.Errorf("negative max response length: %d", c.Processing.ResponseFormatting.MaxLength)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	seen := make(map[string]bool, len(c.Routes))
	for i, route := range c.Routes {
		if route.Path == "" {
			return fmt.Errorf("empty path for route %d", i)
		}
		if route.Handler == "" {
			return fmt.Errorf("empty handler for route %s", route.Path)
		}
		if seen[route.Path] {
			return fmt.Errorf("duplicate route path: %s", route.Path)
		}
		seen[route.Path] = true
		for _, mw := range route.Middleware {
			switch mw {
			case "ratelimit", "timeout", "queue":
			default:
				return fmt.Errorf("unknown middleware %q for route %s", mw, route.Path)
			}
		}
	}

	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureThreshold == 0 {
			return fmt.Errorf("circuit breaker failure threshold must be positive")
		}
		if c.CircuitBreaker.Timeout <= 0 {
			return fmt.Errorf("circuit breaker timeout must be positive")
		}
	}

	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("invalid rate limit: %d/min burst %d", c.RateLimit.RequestsPerMinute, c.RateLimit.Burst)
	}

	if c.Queue.MaxSize < 0 {
		return fmt.Errorf("negative queue size: %d", c.Queue.MaxSize)
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing sample rate must be between 0 and 1: %v", c.Tracing.SampleRate)
	}

	return nil
}
