package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI string
	DBName   string
	Port     string
	GinMode  string

	JWTSecret    string
	JWTExpiresIn string
	CORSOrigins  []string

	// Gemini / embeddings
	GeminiAPIKey    string
	GenerationModel string
	EmbeddingsModel string
	GeminiTier      string

	// Chunking
	MaxChunkSize int
	ChunkOverlap int

	// Retrieval defaults
	DefaultTopK      int
	DefaultThreshold float64
	MaxQueryLength   int

	// Vector index
	VectorCollection    string
	VectorIndexName     string
	VectorDimensions    int
	AtlasVectorEnabled  bool
	VectorSearchTimeout int

	// Documents above this byte count are indexed through the queue
	// instead of inline on the request.
	SyncProcessingLimit int64

	// Embedding cache
	EmbeddingCacheEnabled bool
	EmbeddingCacheTTL     int

	// Orphan reaper
	ReaperCron string

	// Per-IP request limiting (backed by Redis, fails open)
	RateLimitReqs   int
	RateLimitWindow int

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/knowledge_base"),
		DBName:   getEnv("DB_NAME", "knowledge_base"),
		Port:     getEnv("PORT", "8080"),
		GinMode:  getEnv("GIN_MODE", "debug"),

		JWTSecret:    getEnv("JWT_SECRET", ""),
		JWTExpiresIn: getEnv("JWT_EXPIRES_IN", "24h"),
		CORSOrigins:  strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GenerationModel: getEnv("GENERATION_MODEL", "gemini-2.0-flash"),
		EmbeddingsModel: getEnv("EMBEDDINGS_MODEL", "text-embedding-004"),
		GeminiTier:      getEnv("GEMINI_TIER", "free"),

		MaxChunkSize: getEnvInt("MAX_CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),

		DefaultTopK:      getEnvInt("DEFAULT_TOP_K", 5),
		DefaultThreshold: getEnvFloat64("DEFAULT_SCORE_THRESHOLD", 0.5),
		MaxQueryLength:   getEnvInt("MAX_QUERY_LENGTH", 5000),

		VectorCollection:    getEnv("VECTOR_COLLECTION", "knowledge_vectors"),
		VectorIndexName:     getEnv("VECTOR_INDEX_NAME", "knowledge_vectors_index"),
		VectorDimensions:    getEnvInt("VECTOR_DIM", 768),
		AtlasVectorEnabled:  getEnvBool("ATLAS_VECTOR_ENABLED", false),
		VectorSearchTimeout: getEnvInt("VECTOR_SEARCH_TIMEOUT", 15),

		SyncProcessingLimit: getEnvInt64("SYNC_PROCESSING_LIMIT", 32768), // 32KB inline, larger goes to the queue

		EmbeddingCacheEnabled: getEnvBool("EMBEDDING_CACHE_ENABLED", true),
		EmbeddingCacheTTL:     getEnvInt("EMBEDDING_CACHE_TTL", 86400),

		ReaperCron: getEnv("REAPER_CRON", "0 */6 * * *"),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required - set it in .env file")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.ChunkOverlap >= cfg.MaxChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than MAX_CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.MaxChunkSize)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
