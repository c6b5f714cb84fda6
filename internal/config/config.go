package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration loaded from environment variables.
// It is immutable after Load() returns.
type Config struct {
	Port             int
	Environment      string
	DatabaseURL      string
	DatabaseMaxConns int
	FrontendURL      string

	GCPProject       string
	GCPRegion        string
	GCSBucketName    string
	DocAIProcessorID string
	DocAILocation    string
	FirebaseProject  string

	EmbeddingBackend    string // "vertex" or "openai"
	EmbeddingModel      string
	EmbeddingDimensions int
	EmbeddingBatchSize  int
	EmbeddingLocation   string
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string

	LLMBackend string // "vertex", "openai", or "off"
	LLMModel   string
	LLMAPIKey  string
	LLMBaseURL string

	RerankerProvider string // "dedicated", "llm", or "off"
	RerankAPIKey     string
	RerankBaseURL    string
	RerankModel      string

	TavilyAPIKey string
	BraveAPIKey  string

	RedisURL           string
	InternalAuthSecret string

	ChunkTargetTokens  int
	ChunkMaxTokens     int
	RequestTimeoutSecs int
	FanoutLimit        int
	WebSearchMaxQueries int
}

// Load reads configuration from environment variables.
// DATABASE_URL is always required; GOOGLE_CLOUD_PROJECT is required when
// any of the vertex/docai/gcs backends is selected.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("config.Load: DATABASE_URL is required")
	}

	cfg := &Config{
		Port:             envInt("PORT", 8080),
		Environment:      envStr("ENVIRONMENT", "development"),
		DatabaseURL:      dbURL,
		DatabaseMaxConns: envInt("DATABASE_MAX_CONNS", 25),
		FrontendURL:      envStr("FRONTEND_URL", "http://localhost:3000"),

		GCPProject:       os.Getenv("GOOGLE_CLOUD_PROJECT"),
		GCPRegion:        envStr("GCP_REGION", "us-east4"),
		GCSBucketName:    envStr("GCS_BUCKET_NAME", ""),
		DocAIProcessorID: envStr("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocAILocation:    envStr("DOCUMENT_AI_LOCATION", "us"),
		FirebaseProject:  envStr("FIREBASE_PROJECT_ID", ""),

		EmbeddingBackend:    envStr("EMBEDDING_BACKEND", "vertex"),
		EmbeddingModel:      envStr("EMBEDDING_MODEL", "text-embedding-004"),
		EmbeddingDimensions: envInt("EMBEDDING_DIMENSIONS", 768),
		EmbeddingBatchSize:  envInt("EMBEDDING_BATCH_SIZE", 100),
		EmbeddingLocation:   envStr("EMBEDDING_LOCATION", envStr("GCP_REGION", "us-east4")),
		EmbeddingAPIKey:     envStr("EMBEDDING_API_KEY", ""),
		EmbeddingBaseURL:    envStr("EMBEDDING_BASE_URL", ""),

		LLMBackend: envStr("LLM_BACKEND", "vertex"),
		LLMModel:   envStr("LLM_MODEL", "gemini-3-pro-preview"),
		LLMAPIKey:  envStr("LLM_API_KEY", ""),
		LLMBaseURL: envStr("LLM_BASE_URL", ""),

		RerankerProvider: envStr("RERANKER_PROVIDER", "off"),
		RerankAPIKey:     envStr("RERANK_API_KEY", ""),
		RerankBaseURL:    envStr("RERANK_BASE_URL", ""),
		RerankModel:      envStr("RERANK_MODEL", "rerank-v3.5"),

		TavilyAPIKey: envStr("TAVILY_API_KEY", ""),
		BraveAPIKey:  envStr("BRAVE_API_KEY", ""),

		RedisURL:           envStr("REDIS_URL", ""),
		InternalAuthSecret: envStr("INTERNAL_AUTH_SECRET", ""),

		ChunkTargetTokens:   envInt("CHUNK_TARGET_TOKENS", 650),
		ChunkMaxTokens:      envInt("CHUNK_MAX_TOKENS", 1200),
		RequestTimeoutSecs:  envInt("REQUEST_TIMEOUT_SECONDS", 60),
		FanoutLimit:         envInt("FANOUT_LIMIT", 8),
		WebSearchMaxQueries: envInt("WEB_SEARCH_MAX_QUERIES", 3),
	}

	if cfg.needsGCP() && cfg.GCPProject == "" {
		return nil, fmt.Errorf("config.Load: GOOGLE_CLOUD_PROJECT is required when a vertex backend or GCS is configured")
	}

	// Internal auth secret is required in non-development environments
	if cfg.Environment != "development" && cfg.InternalAuthSecret == "" {
		return nil, fmt.Errorf("config.Load: INTERNAL_AUTH_SECRET is required in %s environment", cfg.Environment)
	}

	return cfg, nil
}

func (c *Config) needsGCP() bool {
	return c.EmbeddingBackend == "vertex" || c.LLMBackend == "vertex" ||
		c.GCSBucketName != "" || c.DocAIProcessorID != ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
