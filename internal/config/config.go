// Package config loads application configuration from environment variables,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the application configuration. Every field can be overridden
// via an environment variable of the matching name.
type Config struct {
	// Application identity
	AppName     string
	Version     string
	Environment string
	Debug       bool

	// Server
	Host string
	Port int

	// CORS
	AllowedOrigins []string

	// Graph database
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	// Redis
	RedisURL string

	// OpenAI
	OpenAIAPIKey         string
	OpenAIBaseURL        string
	OpenAIModel          string
	OpenAIEmbeddingModel string
	OpenAIMaxTokens      int
	OpenAITemperature    float64

	// Knowledge engine
	WorkingDir     string
	EngineModel    string
	EngineMaxAsync int

	// Document processing
	ChunkSize        int
	ChunkOverlap     int
	MaxUploadSize    int64
	AllowedFileTypes []string
	UploadDir        string

	// Engine call deadlines; zero disables the deadline.
	InsertTimeout int
	QueryTimeout  int

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string

	// Security
	SecretKey          string
	AccessTokenExpires int

	// Rate limiting (thresholds only; enforcement is out of scope)
	RateLimitRequests int
	RateLimitWindow   int

	// WebSocket
	WSMaxConnections    int
	WSHeartbeatInterval int

	// Vector store
	VectorStoreType string
	VectorStorePath string

	// Graph visualization
	EnableGraphVisualization bool
	MaxGraphNodes            int

	// Query cache
	CacheTTL         int
	EnableQueryCache bool

	// Background broker (unused placeholders, kept for parity with deployments)
	BrokerURL     string
	ResultBackend string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	// Missing .env is fine; explicit environment always wins.
	_ = godotenv.Load()

	cfg := &Config{
		AppName:     getEnv("APP_NAME", "knograph"),
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		Debug:       getEnvBool("DEBUG", true),

		Host: getEnv("HOST", "0.0.0.0"),
		Port: getEnvInt("PORT", 8000),

		AllowedOrigins: getEnvList("ALLOWED_ORIGINS",
			[]string{"http://localhost:3000", "http://127.0.0.1:3000", "http://localhost:8000"}),

		Neo4jURI:      getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:     getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword: getEnv("NEO4J_PASSWORD", "password"),
		Neo4jDatabase: getEnv("NEO4J_DATABASE", "neo4j"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:        os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIEmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		OpenAIMaxTokens:      getEnvInt("OPENAI_MAX_TOKENS", 4096),
		OpenAITemperature:    getEnvFloat("OPENAI_TEMPERATURE", 0.7),

		WorkingDir:     getEnv("ENGINE_WORKING_DIR", "./engine_data"),
		EngineModel:    getEnv("ENGINE_MODEL", "gpt-4o-mini"),
		EngineMaxAsync: getEnvInt("ENGINE_MAX_ASYNC", 4),

		ChunkSize:        getEnvInt("CHUNK_SIZE", 512),
		ChunkOverlap:     getEnvInt("CHUNK_OVERLAP", 50),
		MaxUploadSize:    int64(getEnvInt("MAX_UPLOAD_SIZE", 10*1024*1024)),
		AllowedFileTypes: getEnvList("ALLOWED_FILE_TYPES", []string{".pdf", ".docx", ".txt", ".md"}),
		UploadDir:        getEnv("UPLOAD_DIR", "./uploads"),

		InsertTimeout: getEnvInt("INSERT_TIMEOUT_SECONDS", 0),
		QueryTimeout:  getEnvInt("QUERY_TIMEOUT_SECONDS", 0),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "2006/01/02 15:04"),
		LogFile:   getEnv("LOG_FILE", "logs/app.log"),

		SecretKey:          getEnv("SECRET_KEY", "change-me-in-production"),
		AccessTokenExpires: getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   getEnvInt("RATE_LIMIT_WINDOW", 60),

		WSMaxConnections:    getEnvInt("WS_MAX_CONNECTIONS", 100),
		WSHeartbeatInterval: getEnvInt("WS_HEARTBEAT_INTERVAL", 30),

		VectorStoreType: getEnv("VECTOR_STORE_TYPE", "memory"),
		VectorStorePath: getEnv("VECTOR_STORE_PATH", "./vector_data"),

		EnableGraphVisualization: getEnvBool("ENABLE_GRAPH_VISUALIZATION", true),
		MaxGraphNodes:            getEnvInt("MAX_GRAPH_NODES", 1000),

		CacheTTL:         getEnvInt("CACHE_TTL", 3600),
		EnableQueryCache: getEnvBool("ENABLE_QUERY_CACHE", true),

		BrokerURL:     os.Getenv("BROKER_URL"),
		ResultBackend: os.Getenv("RESULT_BACKEND"),
	}

	if err := cfg.ensureDirectories(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Addr returns the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ensureDirectories creates every directory named by the configuration.
func (c *Config) ensureDirectories() error {
	dirs := []string{c.UploadDir, c.WorkingDir, c.VectorStorePath}
	if c.LogFile != "" {
		if logDir := filepath.Dir(c.LogFile); logDir != "." {
			dirs = append(dirs, logDir)
		}
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
