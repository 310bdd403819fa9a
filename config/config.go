package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
// It is built once by Load and handed to every component explicitly.
type Config struct {
	ServerAddr string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO 镜像配置，MinioMirror 为 false 时不会连接
	MinioMirror    bool
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	UploadDir          string // Base directory for all uploads
	SongUploadDir      string // UploadDir/songs
	CoverUploadDir     string // UploadDir/covers (album covers)
	SongCoverUploadDir string // UploadDir/song_covers
	UserImageDir       string // UploadDir/users
	WatchUploads       bool

	FFprobePath  string
	ProbeTimeout time.Duration
	MaxAudioSize int64 // bytes
	MaxImageSize int64 // bytes

	JWTSecret string
	TokenTTL  time.Duration

	LogLevel      string
	LogFile       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
	LogCompress   bool
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	cfg := &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // no hardcoded default for the password
		DBName:     getEnv("DB_NAME", "sonora"),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", true),
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioMirror:    getEnvBool("MINIO_MIRROR", false),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "sonora"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		WatchUploads: getEnvBool("WATCH_UPLOADS", true),

		FFprobePath:  getEnv("FFPROBE_PATH", "ffprobe"),
		ProbeTimeout: time.Duration(getEnvInt("PROBE_TIMEOUT_SECONDS", 15)) * time.Second,
		MaxAudioSize: int64(getEnvInt("MAX_AUDIO_SIZE_MB", 50)) << 20,
		MaxImageSize: int64(getEnvInt("MAX_IMAGE_SIZE_MB", 5)) << 20,

		JWTSecret: getEnv("JWT_SECRET", "change-me-in-production"),
		TokenTTL:  time.Duration(getEnvInt("TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSize:    getEnvInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAge:     getEnvInt("LOG_MAX_AGE_DAYS", 30),
		LogCompress:   getEnvBool("LOG_COMPRESS", true),
	}
	cfg.SetUploadDir(getEnv("UPLOAD_DIR", "uploads"))

	if cfg.JWTSecret == "change-me-in-production" {
		log.Println("WARNING: JWT_SECRET is not set, using an insecure development secret.")
	}
	return cfg
}

// SetUploadDir points the upload root at dir and derives the per-kind subdirectories.
func (c *Config) SetUploadDir(dir string) {
	c.UploadDir = dir
	c.SongUploadDir = filepath.Join(dir, "songs")
	c.CoverUploadDir = filepath.Join(dir, "covers")
	c.SongCoverUploadDir = filepath.Join(dir, "song_covers")
	c.UserImageDir = filepath.Join(dir, "users")
}

// UploadDirs returns every directory media files are written to.
func (c *Config) UploadDirs() []string {
	return []string{c.SongUploadDir, c.CoverUploadDir, c.SongCoverUploadDir, c.UserImageDir}
}
