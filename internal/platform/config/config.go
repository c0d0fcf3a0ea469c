package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	StorageModeLocal = "local"
	StorageModeS3    = "s3"
)

// Config is built once at process start and handed to every component that needs it.
type Config struct {
	APIPort string
	JWTKey  []byte
	JWTExp  time.Duration

	LogLevel  string
	LogFormat string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	GradingQueueName       string
	GradingLockPrefix      string
	GradingLockTTLSeconds  int
	GradingWorkerCount     int
	GradingTimeout         time.Duration
	GradingSweepInterval   time.Duration
	GradingCallbackSecret  string
	MaxUploadBytes         int64
	AssignmentListMaxLimit int

	StorageMode string
	UploadRoot  string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Region    string
	S3UseSSL    bool

	IdentityWebhookSecret  string
	IdentityAPIURL         string
	IdentityAPIKey         string
	IdentitySyncRetries    int
	IdentitySyncRetryDelay time.Duration
	IdentityDedupeTTL      time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		APIPort:   getEnv("API_PORT", "8080"),
		JWTKey:    []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:    time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 72)) * time.Hour,
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "user"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "agt_platform"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		GradingQueueName:       getEnv("GRADING_QUEUE_NAME", "grading_jobs_queue"),
		GradingLockPrefix:      getEnv("GRADING_LOCK_PREFIX", "grading_lock:"),
		GradingLockTTLSeconds:  getEnvAsInt("GRADING_LOCK_TTL_SECONDS", 300),
		GradingWorkerCount:     getEnvAsInt("GRADING_WORKER_COUNT", 2),
		GradingTimeout:         getEnvAsDuration("GRADING_TIMEOUT", 15*time.Minute),
		GradingSweepInterval:   getEnvAsDuration("GRADING_SWEEP_INTERVAL", time.Minute),
		GradingCallbackSecret:  getEnv("GRADING_CALLBACK_SECRET", ""),
		MaxUploadBytes:         int64(getEnvAsInt("MAX_UPLOAD_BYTES", 50<<20)),
		AssignmentListMaxLimit: getEnvAsInt("ASSIGNMENT_LIST_MAX_LIMIT", 100),

		StorageMode: strings.ToLower(getEnv("STORAGE_MODE", StorageModeLocal)),
		UploadRoot:  getEnv("UPLOAD_ROOT", "./uploads"),
		S3Endpoint:  getEnv("S3_ENDPOINT", "localhost:9000"),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3Bucket:    getEnv("S3_BUCKET", "assignments"),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3UseSSL:    getEnvAsBool("S3_USE_SSL", false),

		IdentityWebhookSecret:  getEnv("IDENTITY_WEBHOOK_SECRET", ""),
		IdentityAPIURL:         getEnv("IDENTITY_API_URL", ""),
		IdentityAPIKey:         getEnv("IDENTITY_API_KEY", ""),
		IdentitySyncRetries:    getEnvAsInt("IDENTITY_SYNC_RETRIES", 3),
		IdentitySyncRetryDelay: getEnvAsDuration("IDENTITY_SYNC_RETRY_DELAY", 2*time.Second),
		IdentityDedupeTTL:      getEnvAsDuration("IDENTITY_DEDUPE_TTL", 24*time.Hour),
	}

	cfg.DBConnStr = "host=" + cfg.DBHost +
		" port=" + cfg.DBPort +
		" user=" + cfg.DBUser +
		" password=" + cfg.DBPassword +
		" dbname=" + cfg.DBName +
		" sslmode=" + cfg.DBSslMode

	return cfg
}

// GradingLockTTL is the lifetime of the per-assignment worker lock.
func (c *Config) GradingLockTTL() time.Duration {
	return time.Duration(c.GradingLockTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

// Accepts Go durations ("90s", "15m").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
