package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	yaml "gopkg.in/yaml.v3"
)

// Load reads configuration from environment variables (optionally from a
// .env file, which overrides existing OS environment variables so local
// development config is deterministic).
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{}

	cfg.Host = strings.TrimSpace(os.Getenv("HOST"))
	cfg.Port = intFromEnv("PORT", 0)
	cfg.LogPath = strings.TrimSpace(os.Getenv("LOG_PATH"))
	cfg.LogLevel = strings.TrimSpace(os.Getenv("LOG_LEVEL"))

	cfg.Obs.ServiceName = firstNonEmpty(strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME")), "graphrag")
	cfg.Obs.ServiceVersion = strings.TrimSpace(os.Getenv("SERVICE_VERSION"))
	cfg.Obs.Environment = strings.TrimSpace(os.Getenv("ENVIRONMENT"))
	cfg.Obs.OTLP = strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))

	cfg.Store.Vector.Backend = strings.TrimSpace(os.Getenv("VECTOR_BACKEND"))
	cfg.Store.Vector.DSN = firstNonEmpty(strings.TrimSpace(os.Getenv("VECTOR_DSN")), strings.TrimSpace(os.Getenv("DATABASE_URL")))
	cfg.Store.Vector.Collection = strings.TrimSpace(os.Getenv("VECTOR_COLLECTION"))
	cfg.Store.Vector.Dimensions = intFromEnv("VECTOR_DIMENSIONS", 0)
	cfg.Store.Vector.Metric = strings.TrimSpace(os.Getenv("VECTOR_METRIC"))

	cfg.Store.Graph.Backend = strings.TrimSpace(os.Getenv("GRAPH_BACKEND"))
	cfg.Store.Graph.DSN = firstNonEmpty(strings.TrimSpace(os.Getenv("GRAPH_DSN")), strings.TrimSpace(os.Getenv("DATABASE_URL")))

	if v := strings.TrimSpace(os.Getenv("EMBEDDING_ENABLED")); v != "" {
		cfg.Embedding.Enabled = isTruthy(v)
	} else {
		cfg.Embedding.Enabled = true
	}
	cfg.Embedding.BaseURL = strings.TrimSpace(os.Getenv("EMBED_BASE_URL"))
	cfg.Embedding.Path = strings.TrimSpace(os.Getenv("EMBED_PATH"))
	cfg.Embedding.Model = strings.TrimSpace(os.Getenv("EMBED_MODEL"))
	cfg.Embedding.APIKey = strings.TrimSpace(os.Getenv("EMBED_API_KEY"))
	cfg.Embedding.APIHeader = strings.TrimSpace(os.Getenv("EMBED_API_HEADER"))
	cfg.Embedding.Dimensions = intFromEnv("EMBED_DIMENSIONS", 0)
	cfg.Embedding.MaxCachedItems = intFromEnv("EMBED_MAX_CACHED_ITEMS", 0)
	cfg.Embedding.ExpirationHours = intFromEnv("EMBED_EXPIRATION_HOURS", 0)
	cfg.Embedding.MaxRetryAttempts = intFromEnv("EMBED_MAX_RETRY_ATTEMPTS", 0)
	cfg.Embedding.InitialDelayMs = intFromEnv("EMBED_INITIAL_DELAY_MS", 0)
	cfg.Embedding.MaxDelayMs = intFromEnv("EMBED_MAX_DELAY_MS", 0)
	if v := strings.TrimSpace(os.Getenv("EMBED_BACKOFF_MULTIPLIER")); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.Embedding.BackoffMultiplier = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("EMBED_USE_JITTER")); v != "" {
		cfg.Embedding.UseJitter = isTruthy(v)
	} else {
		cfg.Embedding.UseJitter = true
	}
	if v := strings.TrimSpace(os.Getenv("EMBED_CIRCUIT_FAILURE_RATIO")); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.Embedding.CircuitFailureRatio = f
		}
	}
	cfg.Embedding.CircuitMinThroughput = intFromEnv("EMBED_CIRCUIT_MIN_THROUGHPUT", 0)
	cfg.Embedding.CircuitSamplingSec = intFromEnv("EMBED_CIRCUIT_SAMPLING_SEC", 0)
	cfg.Embedding.CircuitBreakSec = intFromEnv("EMBED_CIRCUIT_BREAK_SEC", 0)
	cfg.Embedding.TimeoutSec = intFromEnv("EMBED_TIMEOUT_SEC", 0)
	cfg.Embedding = cfg.Embedding.WithDefaults()

	cfg.LLM.Anthropic.APIKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	cfg.LLM.Anthropic.BaseURL = strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL"))
	cfg.LLM.Anthropic.Model = strings.TrimSpace(os.Getenv("ANTHROPIC_MODEL"))
	cfg.LLM.OpenAI.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	cfg.LLM.OpenAI.BaseURL = firstNonEmpty(strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")), strings.TrimSpace(os.Getenv("OPENAI_API_BASE_URL")))
	cfg.LLM.OpenAI.Model = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	cfg.LLM.Tiers = map[string]TierConfig{
		"small": {Provider: firstNonEmpty(strings.TrimSpace(os.Getenv("LLM_SMALL_PROVIDER")), "anthropic"), Model: strings.TrimSpace(os.Getenv("LLM_SMALL_MODEL"))},
		"mid":   {Provider: firstNonEmpty(strings.TrimSpace(os.Getenv("LLM_MID_PROVIDER")), "anthropic"), Model: strings.TrimSpace(os.Getenv("LLM_MID_MODEL"))},
		"large": {Provider: firstNonEmpty(strings.TrimSpace(os.Getenv("LLM_LARGE_PROVIDER")), "anthropic"), Model: strings.TrimSpace(os.Getenv("LLM_LARGE_MODEL"))},
	}

	cfg.Query.MaxChunks = intFromEnv("QUERY_MAX_CHUNKS", 0)
	cfg.Query.MaxTraversalSteps = intFromEnv("QUERY_MAX_TRAVERSAL_STEPS", 0)
	if v := strings.TrimSpace(os.Getenv("QUERY_MIN_RELEVANCE_SCORE")); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.Query.MinRelevanceScore = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("QUERY_USE_CROSS_REPO_LINKS")); v != "" {
		cfg.Query.UseCrossRepoLinks = isTruthy(v)
	} else {
		cfg.Query.UseCrossRepoLinks = true
	}
	cfg.Query = cfg.Query.WithDefaults()

	return cfg, nil
}

// LoadConfig reads configuration from a YAML file. Zero-valued embedding and
// query fields are filled with their documented defaults after unmarshaling.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		log.Error().Err(err).Str("path", filename).Msg("config_read_failed")
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Error().Err(err).Str("path", filename).Msg("config_unmarshal_failed")
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Embedding = cfg.Embedding.WithDefaults()
	cfg.Query = cfg.Query.WithDefaults()

	log.Info().Str("path", filename).Msg("config_loaded")
	return &cfg, nil
}

func isTruthy(v string) bool {
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func intFromEnv(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := parseInt(v); err == nil {
			return n
		}
	}
	return def
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
