// manifold/internal/config/config.go

package config

// Config is the root configuration for the GraphRAG service.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	LogPath  string `yaml:"log_path"`
	LogLevel string `yaml:"log_level"`

	Obs ObsConfig `yaml:"observability"`

	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Query     QueryDefaults   `yaml:"query"`
}

// ObsConfig configures OpenTelemetry tracing/metrics export.
type ObsConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Environment    string `yaml:"environment"`
	OTLP           string `yaml:"otlp_endpoint"`
}

// StoreConfig groups the vector and graph adapter configurations (C4, C5).
type StoreConfig struct {
	Vector VectorConfig `yaml:"vector"`
	Graph  GraphConfig  `yaml:"graph"`
}

// VectorConfig configures the C4 Vector Index Adapter.
type VectorConfig struct {
	Backend    string `yaml:"backend"` // "", "memory", "qdrant", "postgres"
	DSN        string `yaml:"dsn"`
	Collection string `yaml:"collection"`
	Dimensions int    `yaml:"dimensions"`
	Metric     string `yaml:"metric"` // cosine|l2|ip
}

// GraphConfig configures the C5 Graph Repository Adapter.
type GraphConfig struct {
	Backend string `yaml:"backend"` // "", "memory", "postgres"
	DSN     string `yaml:"dsn"`
}

// EmbeddingConfig configures the C6 Embedding Service Adapter and its
// resilience layer.
type EmbeddingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BaseURL    string `yaml:"base_url"`
	Path       string `yaml:"path"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	APIHeader  string `yaml:"api_header"`
	Dimensions int    `yaml:"dimensions"`

	MaxCachedItems  int `yaml:"max_cached_items"`
	ExpirationHours int `yaml:"expiration_hours"`

	MaxRetryAttempts  int     `yaml:"max_retry_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	UseJitter         bool    `yaml:"use_jitter"`

	CircuitFailureRatio  float64 `yaml:"circuit_failure_ratio"`
	CircuitMinThroughput int     `yaml:"circuit_min_throughput"`
	CircuitSamplingSec   int     `yaml:"circuit_sampling_sec"`
	CircuitBreakSec      int     `yaml:"circuit_break_sec"`

	TimeoutSec int `yaml:"timeout_sec"`
}

// WithDefaults returns a copy of c with the embedding resilience defaults
// applied to any zero-valued field.
func (c EmbeddingConfig) WithDefaults() EmbeddingConfig {
	if c.MaxRetryAttempts == 0 {
		c.MaxRetryAttempts = 3
	}
	if c.InitialDelayMs == 0 {
		c.InitialDelayMs = 200
	}
	if c.MaxDelayMs == 0 {
		c.MaxDelayMs = 5000
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = 2.0
	}
	if c.CircuitFailureRatio == 0 {
		c.CircuitFailureRatio = 0.5
	}
	if c.CircuitMinThroughput == 0 {
		c.CircuitMinThroughput = 10
	}
	if c.CircuitSamplingSec == 0 {
		c.CircuitSamplingSec = 30
	}
	if c.CircuitBreakSec == 0 {
		c.CircuitBreakSec = 30
	}
	if c.TimeoutSec == 0 {
		c.TimeoutSec = 60
	}
	return c
}

// LLMConfig configures the generative endpoint's tier routing
// (tier ∈ {small, mid, large}).
type LLMConfig struct {
	Anthropic AnthropicConfig `yaml:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai"`

	// Tiers maps "small"/"mid"/"large" to a provider ("anthropic"|"openai")
	// and model name. A tier with no entry has no binding in the router;
	// requests for it fail.
	Tiers map[string]TierConfig `yaml:"tiers"`
}

// TierConfig names the provider and model backing one generative tier.
type TierConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// AnthropicConfig configures the Anthropic LLM provider.
type AnthropicConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// OpenAIConfig configures the OpenAI-compatible LLM provider.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// QueryDefaults seed GraphRagOptions fields left unset by the caller.
type QueryDefaults struct {
	MaxChunks         int     `yaml:"max_chunks"`
	MaxTraversalSteps int     `yaml:"max_traversal_steps"`
	MinRelevanceScore float64 `yaml:"min_relevance_score"`
	UseCrossRepoLinks bool    `yaml:"use_cross_repo_links"`
}

// WithDefaults applies the query-option defaults to zero-valued fields.
func (q QueryDefaults) WithDefaults() QueryDefaults {
	if q.MaxChunks == 0 {
		q.MaxChunks = 10
	}
	if q.MaxTraversalSteps == 0 {
		q.MaxTraversalSteps = 5
	}
	if q.MinRelevanceScore == 0 {
		q.MinRelevanceScore = 0.7
	}
	return q
}
