package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Cognito       CognitoConfig
	Dynamo        DynamoConfig
	Blob          BlobConfig
	VectorDB      *DatabaseConfig // Optional: RAG vector store. When nil, RAG endpoints are disabled.
	Redis         RedisConfig
	Providers     ProvidersConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// CognitoConfig holds AWS Cognito authentication configuration
type CognitoConfig struct {
	Region     string
	UserPoolID string
	ClientID   string
}

// DynamoConfig holds the scene table configuration.
// The table name is stage-qualified (audio-scene-table-dev / audio-scene-table-prod)
// unless DYNAMO_TABLE_NAME overrides it.
type DynamoConfig struct {
	Region    string
	TableName string
}

// BlobConfig holds S3 bucket and CloudFront configuration for audio files
type BlobConfig struct {
	Region           string
	Bucket           string
	CloudFrontDomain string
	UploadTTL        time.Duration
}

// DatabaseConfig holds PostgreSQL configuration for the RAG vector store.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// RedisConfig holds the optional group-membership cache configuration.
// An empty Addr disables caching entirely.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// ProvidersConfig holds LLM provider configurations
type ProvidersConfig struct {
	OpenAI     ProviderConfig
	OpenRouter ProviderConfig
	// EmbeddingModel is the OpenAI model used for RAG embeddings
	EmbeddingModel string
}

// ProviderConfig holds a single OpenAI-compatible provider configuration
type ProviderConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	// RequestsPerSecond bounds outbound calls to the provider (0 = unlimited)
	RequestsPerSecond float64
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env if present (no-op in containers where env is injected)
	_ = godotenv.Load(".env")

	region := getEnv("AWS_REGION", "us-east-1")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "dev"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Cognito: CognitoConfig{
			Region:     region,
			UserPoolID: getEnv("USER_POOL_ID", ""),
			ClientID:   getEnv("USER_POOL_CLIENT_ID", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			CacheTTL: getEnvAsDuration("GROUP_CACHE_TTL", time.Minute),
		},
		Blob: BlobConfig{
			Region:           region,
			Bucket:           getEnv("AUDIO_BUCKET_NAME", ""),
			CloudFrontDomain: getEnv("CLOUDFRONT_DOMAIN", ""),
			UploadTTL:        getEnvAsDuration("UPLOAD_URL_TTL", time.Hour),
		},
		VectorDB: loadVectorDBConfig(),
		Providers: ProvidersConfig{
			OpenAI: ProviderConfig{
				APIKey:            getEnv("OPENAI_API_KEY", ""),
				BaseURL:           getEnv("OPENAI_API_URL", "https://api.openai.com/v1"),
				Model:             getEnv("OPENAI_MODEL", "gpt-4o-mini"),
				Timeout:           getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
				MaxRetries:        getEnvAsInt("OPENAI_MAX_RETRIES", 3),
				RequestsPerSecond: getEnvAsFloat("OPENAI_RPS", 0),
			},
			OpenRouter: ProviderConfig{
				APIKey:            getEnv("OPENROUTER_API_KEY", ""),
				BaseURL:           getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
				Model:             getEnv("OPENROUTER_MODEL", "meta-llama/llama-3.1-8b-instruct"),
				Timeout:           getEnvAsDuration("OPENROUTER_TIMEOUT", 60*time.Second),
				MaxRetries:        getEnvAsInt("OPENROUTER_MAX_RETRIES", 3),
				RequestsPerSecond: getEnvAsFloat("OPENROUTER_RPS", 0),
			},
			EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	cfg.Dynamo = DynamoConfig{
		Region:    region,
		TableName: getEnv("DYNAMO_TABLE_NAME", fmt.Sprintf("audio-scene-table-%s", cfg.Stage())),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
// Missing required values fail here, at startup, never at first use.
func (c *Config) Validate() error {
	if c.Cognito.UserPoolID == "" {
		return fmt.Errorf("USER_POOL_ID is required")
	}
	if c.Cognito.ClientID == "" {
		return fmt.Errorf("USER_POOL_CLIENT_ID is required")
	}
	if c.Dynamo.TableName == "" {
		return fmt.Errorf("scene table name is required")
	}
	if c.Blob.Bucket == "" {
		return fmt.Errorf("AUDIO_BUCKET_NAME is required")
	}
	if c.Blob.CloudFrontDomain == "" {
		return fmt.Errorf("CLOUDFRONT_DOMAIN is required")
	}
	if c.IsProduction() {
		if c.Providers.OpenAI.APIKey == "" && c.Providers.OpenRouter.APIKey == "" {
			return fmt.Errorf("at least one LLM provider must be configured in production")
		}
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// Stage returns the deployment stage used to qualify resource names
func (c *Config) Stage() string {
	if c.IsProduction() {
		return "prod"
	}
	return "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadVectorDBConfig loads the RAG vector store config from DATABASE_URL or DB_* env vars.
// Returns nil when neither is set (RAG endpoints disabled).
func loadVectorDBConfig() *DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return &DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	if getEnv("DB_HOST", "") == "" {
		return nil
	}
	return &DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", ""),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", ""),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
