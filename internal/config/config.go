package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr          string
	DatabasePath  string
	JWTSecret     string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	MigrationsDir string
	PostReposDir  string
	CORSOrigin    string
	PublicBaseURL string
	// Meilisearch
	MeiliURL       string
	MeiliMasterKey string
	// SMTP Configuration
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	// Redis Configuration
	RedisURL string
	// MinIO object storage for generated images
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	// Ollama
	OllamaURL     string
	OllamaModel   string
	OllamaTimeout time.Duration
}

func Load() Config {
	return Config{
		Addr:          getenv("API_ADDR", ":8788"),
		DatabasePath:  getenv("SOULFRA_DB_PATH", "./data/soulfra.db"),
		JWTSecret:     getenv("SOULFRA_JWT_SECRET", "soulfra-dev-secret"),
		AccessTTL:     time.Duration(getenvInt("SOULFRA_ACCESS_TTL_SECONDS", 900)) * time.Second,
		RefreshTTL:    time.Duration(getenvInt("SOULFRA_REFRESH_TTL_SECONDS", 2592000)) * time.Second,
		MigrationsDir: getenv("SOULFRA_MIGRATIONS_DIR", "./db/migrations"),
		PostReposDir:  getenv("SOULFRA_POST_REPOS_DIR", "./data/post-repos"),
		CORSOrigin:    getenv("SOULFRA_CORS_ORIGIN", "*"),
		PublicBaseURL: getenv("SOULFRA_PUBLIC_BASE_URL", "http://localhost:8788"),
		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),
		// SMTP - empty by default, email disabled if not configured
		SMTPHost:     getenv("SMTP_HOST", ""),
		SMTPPort:     getenv("SMTP_PORT", "587"),
		SMTPUsername: getenv("SMTP_USERNAME", ""),
		SMTPPassword: getenv("SMTP_PASSWORD", ""),
		SMTPFrom:     getenv("SMTP_FROM", ""),
		SMTPFromName: getenv("SMTP_FROM_NAME", "Soulfra"),
		// Redis - optional, refresh tokens fall back to SQLite when empty
		RedisURL: getenv("REDIS_URL", ""),
		// MinIO - optional, images fall back to on-the-fly rendering when empty
		MinioEndpoint:  getenv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "soulfra-media"),
		MinioUseSSL:    getenvBool("MINIO_USE_SSL", false),
		// Ollama - local by default, persona replies disabled if unreachable
		OllamaURL:     getenv("OLLAMA_URL", "http://localhost:11434/v1"),
		OllamaModel:   getenv("OLLAMA_MODEL", "llama3.2"),
		OllamaTimeout: time.Duration(getenvInt("OLLAMA_TIMEOUT_SECONDS", 60)) * time.Second,
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
