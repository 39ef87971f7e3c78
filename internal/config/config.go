package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Index     IndexConfig     `mapstructure:"index"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MiddlewareTimeout time.Duration `mapstructure:"middleware_timeout"`
}

// StorageConfig selects the persistence backend: postgres, sqlite or mongo
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	SSLMode       string `mapstructure:"ssl_mode"`
	MaxConns      int32  `mapstructure:"max_conns"`
	MinConns      int32  `mapstructure:"min_conns"`
	MigrationsURL string `mapstructure:"migrations_url"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type LLMConfig struct {
	DefaultProvider string          `mapstructure:"default_provider"`
	SummaryProvider string          `mapstructure:"summary_provider"`
	SummaryModel    string          `mapstructure:"summary_model"`
	Persona         string          `mapstructure:"persona"`
	OpenAI          OpenAIConfig    `mapstructure:"openai"`
	Anthropic       AnthropicConfig `mapstructure:"anthropic"`
	Ollama          OllamaConfig    `mapstructure:"ollama"`
	DeepSeek        DeepSeekConfig  `mapstructure:"deepseek"`
	Gemini          GeminiConfig    `mapstructure:"gemini"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OllamaConfig struct {
	Host         string `mapstructure:"host"`
	DefaultModel string `mapstructure:"default_model"`
}

type DeepSeekConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// MemoryConfig holds the rolling summary and context budget knobs.
// Enabled is derived from the raw flag string, see FlagEnabled.
type MemoryConfig struct {
	Enabled               bool          `mapstructure:"-"`
	Locale                string        `mapstructure:"locale"`
	SummaryUpdateInterval int           `mapstructure:"summary_update_interval"`
	HistoryWindow         int           `mapstructure:"history_window"`
	MinHistoryMessages    int           `mapstructure:"min_history_messages"`
	CharsPerToken         int           `mapstructure:"chars_per_token"`
	MaxContextTokens      int           `mapstructure:"max_context_tokens"`
	MinSummaryTokens      int           `mapstructure:"min_summary_tokens"`
	RetryAttempts         int           `mapstructure:"retry_attempts"`
	RetryBaseDelay        time.Duration `mapstructure:"retry_base_delay"`
	SummaryTimeout        time.Duration `mapstructure:"summary_timeout"`
	LockTTL               time.Duration `mapstructure:"lock_ttl"`
}

// RetrievalConfig holds the precision guardrail knobs
type RetrievalConfig struct {
	SearchK                 int           `mapstructure:"search_k"`
	TopK                    int           `mapstructure:"top_k"`
	DynamicThresholdTrigger float64       `mapstructure:"dynamic_threshold_trigger"`
	DynamicThresholdFloor   float64       `mapstructure:"dynamic_threshold_floor"`
	RerankSkipTrigger       float64       `mapstructure:"rerank_skip_trigger"`
	DiversityMaxPerSource   int           `mapstructure:"diversity_max_per_source"`
	DiversityMaxPerType     int           `mapstructure:"diversity_max_per_type"`
	RerankSimilarityWeight  float64       `mapstructure:"rerank_similarity_weight"`
	RerankScoreWeight       float64       `mapstructure:"rerank_score_weight"`
	CacheTTL                time.Duration `mapstructure:"cache_ttl"`
}

// IndexConfig configures the chromem-go similarity index
type IndexConfig struct {
	PersistPath       string `mapstructure:"persist_path"`
	EmbeddingProvider string `mapstructure:"embedding_provider"`
	EmbeddingModel    string `mapstructure:"embedding_model"`
}

type SecurityConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level        string        `mapstructure:"level"`
	Format       string        `mapstructure:"format"`
	File         string        `mapstructure:"file"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time"`
}

// FlagEnabled reports whether a feature flag value turns a subsystem on.
// Only the exact string "true" does; "TRUE", "1" and "" all leave it off.
func FlagEnabled(raw string) bool {
	return raw == "true"
}

// DefaultMemoryConfig returns the memory knobs with their calibrated defaults
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Enabled:               false,
		Locale:                "en",
		SummaryUpdateInterval: 6,
		HistoryWindow:         12,
		MinHistoryMessages:    4,
		CharsPerToken:         4,
		MaxContextTokens:      12000,
		MinSummaryTokens:      200,
		RetryAttempts:         2,
		RetryBaseDelay:        500 * time.Millisecond,
		SummaryTimeout:        30 * time.Second,
		LockTTL:               time.Minute,
	}
}

// DefaultRetrievalConfig returns the guardrail knobs with their calibrated defaults
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		SearchK:                 20,
		TopK:                    5,
		DynamicThresholdTrigger: 0.8,
		DynamicThresholdFloor:   0.5,
		RerankSkipTrigger:       0.85,
		DiversityMaxPerSource:   2,
		DiversityMaxPerType:     3,
		RerankSimilarityWeight:  0.4,
		RerankScoreWeight:       0.6,
		CacheTTL:                5 * time.Minute,
	}
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set config file path
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Memory.Enabled = FlagEnabled(v.GetString("memory.enabled"))

	if err := cfg.Memory.Validate(); err != nil {
		return nil, fmt.Errorf("invalid memory config: %w", err)
	}
	if err := cfg.Retrieval.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retrieval config: %w", err)
	}

	return &cfg, nil
}

// Validate rejects knob values the trimmer and summary manager cannot work with
func (c MemoryConfig) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"summary_update_interval", c.SummaryUpdateInterval},
		{"history_window", c.HistoryWindow},
		{"min_history_messages", c.MinHistoryMessages},
		{"chars_per_token", c.CharsPerToken},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}

	if c.MaxContextTokens < 0 {
		return fmt.Errorf("max_context_tokens must not be negative, got %d", c.MaxContextTokens)
	}
	if c.MinSummaryTokens < 0 {
		return fmt.Errorf("min_summary_tokens must not be negative, got %d", c.MinSummaryTokens)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts must not be negative, got %d", c.RetryAttempts)
	}
	return nil
}

// Validate rejects guardrail knobs that would silently drop every candidate
func (c RetrievalConfig) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"search_k", c.SearchK},
		{"top_k", c.TopK},
		{"diversity_max_per_source", c.DiversityMaxPerSource},
		{"diversity_max_per_type", c.DiversityMaxPerType},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}

	unit := []struct {
		name  string
		value float64
	}{
		{"dynamic_threshold_trigger", c.DynamicThresholdTrigger},
		{"dynamic_threshold_floor", c.DynamicThresholdFloor},
		{"rerank_skip_trigger", c.RerankSkipTrigger},
	}
	for _, u := range unit {
		if u.value < 0 || u.value > 1 {
			return fmt.Errorf("%s must be within [0,1], got %g", u.name, u.value)
		}
	}

	if c.RerankSimilarityWeight < 0 || c.RerankScoreWeight < 0 {
		return fmt.Errorf("rerank weights must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.middleware_timeout", "60s")

	// Storage
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("sqlite.path", "./data/chat-memory.db")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "chatmemory")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "chatmemory")
	v.SetDefault("database.database", "chatmemory")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.migrations_url", "file://migrations")

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Auth
	v.SetDefault("auth.access_token_ttl", "15m")

	// LLM
	v.SetDefault("llm.default_provider", "ollama")
	v.SetDefault("llm.ollama.host", "http://localhost:11434")
	v.SetDefault("llm.ollama.default_model", "llama3")
	v.SetDefault("llm.deepseek.base_url", "https://api.deepseek.com/v1")

	// Memory
	mem := DefaultMemoryConfig()
	v.SetDefault("memory.enabled", "false")
	v.SetDefault("memory.locale", mem.Locale)
	v.SetDefault("memory.summary_update_interval", mem.SummaryUpdateInterval)
	v.SetDefault("memory.history_window", mem.HistoryWindow)
	v.SetDefault("memory.min_history_messages", mem.MinHistoryMessages)
	v.SetDefault("memory.chars_per_token", mem.CharsPerToken)
	v.SetDefault("memory.max_context_tokens", mem.MaxContextTokens)
	v.SetDefault("memory.min_summary_tokens", mem.MinSummaryTokens)
	v.SetDefault("memory.retry_attempts", mem.RetryAttempts)
	v.SetDefault("memory.retry_base_delay", mem.RetryBaseDelay.String())
	v.SetDefault("memory.summary_timeout", mem.SummaryTimeout.String())
	v.SetDefault("memory.lock_ttl", mem.LockTTL.String())

	// Retrieval
	ret := DefaultRetrievalConfig()
	v.SetDefault("retrieval.search_k", ret.SearchK)
	v.SetDefault("retrieval.top_k", ret.TopK)
	v.SetDefault("retrieval.dynamic_threshold_trigger", ret.DynamicThresholdTrigger)
	v.SetDefault("retrieval.dynamic_threshold_floor", ret.DynamicThresholdFloor)
	v.SetDefault("retrieval.rerank_skip_trigger", ret.RerankSkipTrigger)
	v.SetDefault("retrieval.diversity_max_per_source", ret.DiversityMaxPerSource)
	v.SetDefault("retrieval.diversity_max_per_type", ret.DiversityMaxPerType)
	v.SetDefault("retrieval.rerank_similarity_weight", ret.RerankSimilarityWeight)
	v.SetDefault("retrieval.rerank_score_weight", ret.RerankScoreWeight)
	v.SetDefault("retrieval.cache_ttl", ret.CacheTTL.String())

	// Index
	v.SetDefault("index.embedding_provider", "ollama")
	v.SetDefault("index.embedding_model", "nomic-embed-text")

	// Security
	v.SetDefault("security.rate_limit.requests_per_minute", 60)
	v.SetDefault("security.rate_limit.burst", 10)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_age", "168h")
	v.SetDefault("logging.rotation_time", "24h")
}

func bindEnvVars(v *viper.Viper) {
	// Storage
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("sqlite.path", "SQLITE_PATH")
	v.BindEnv("mongo.uri", "MONGO_URI")

	// Database
	v.BindEnv("database.host", "POSTGRES_HOST")
	v.BindEnv("database.password", "POSTGRES_PASSWORD")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Auth
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")

	// Memory feature flag
	v.BindEnv("memory.enabled", "MEMORY_V2_ENABLED")

	// LLM API Keys
	v.BindEnv("llm.openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("llm.anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("llm.deepseek.api_key", "DEEPSEEK_API_KEY")
	v.BindEnv("llm.gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("llm.ollama.host", "OLLAMA_HOST")
}
