package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Qdrant   QdrantConfig
	Gemini   GeminiConfig
	Matching MatchingConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Port  string
	Env   string
	Debug bool
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
}

type GeminiConfig struct {
	APIKey     string
	Model      string
	EmbedModel string
	// Dimension of the embedding model output. All stored vectors share it.
	EmbeddingDimension int
	// Optional NLP-assisted skill extraction (strategy B). Pattern matching
	// stays authoritative when disabled.
	SkillExtractionEnabled bool
}

type MatchingConfig struct {
	SimilarityWeight    float64
	SkillWeight         float64
	MaxConcurrentPairs  int64
	EligibleResumeLimit int
	EmbeddingCacheTTL   time.Duration
	FallbackCacheTTL    time.Duration
	MatchCacheTTL       time.Duration
	ExplanationCacheTTL time.Duration
	MaxConcurrentExpl   int64
}

type WorkerConfig struct {
	Concurrency  int
	PollInterval time.Duration
	BatchSize    int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using default values.")
	}

	return &Config{
		Server: ServerConfig{
			Port:  getEnv("PORT", "3000"),
			Env:   getEnv("ENV", "development"),
			Debug: getEnvAsBool("DEBUG", false),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "resume_matcher"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Qdrant: QdrantConfig{
			URL:        getEnv("QDRANT_URL", "http://localhost:6333"),
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			Collection: getEnv("QDRANT_COLLECTION", "resume_matcher_vectors"),
		},
		Gemini: GeminiConfig{
			APIKey:                 getEnv("GEMINI_API_KEY", ""),
			Model:                  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			EmbedModel:             getEnv("GEMINI_EMBED_MODEL", "text-embedding-004"),
			EmbeddingDimension:     getEnvAsInt("EMBEDDING_DIMENSION", 768),
			SkillExtractionEnabled: getEnvAsBool("SKILL_NLP_EXTRACTION", false),
		},
		Matching: MatchingConfig{
			SimilarityWeight:    getEnvAsFloat("MATCH_SIMILARITY_WEIGHT", 0.7),
			SkillWeight:         getEnvAsFloat("MATCH_SKILL_WEIGHT", 0.3),
			MaxConcurrentPairs:  int64(getEnvAsInt("MATCH_CONCURRENCY", 10)),
			EligibleResumeLimit: getEnvAsInt("MATCH_RESUME_LIMIT", 1000),
			EmbeddingCacheTTL:   getEnvAsDuration("EMBEDDING_CACHE_TTL", "24h"),
			FallbackCacheTTL:    getEnvAsDuration("FALLBACK_CACHE_TTL", "1h"),
			MatchCacheTTL:       getEnvAsDuration("MATCH_CACHE_TTL", "6h"),
			ExplanationCacheTTL: getEnvAsDuration("EXPLANATION_CACHE_TTL", "1h"),
			MaxConcurrentExpl:   int64(getEnvAsInt("EXPLANATION_CONCURRENCY", 5)),
		},
		Worker: WorkerConfig{
			Concurrency:  getEnvAsInt("WORKER_CONCURRENCY", 3),
			PollInterval: getEnvAsDuration("WORKER_POLL_INTERVAL", "30s"),
			BatchSize:    getEnvAsInt("WORKER_BATCH_SIZE", 20),
		},
	}
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
