package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server      ServerConfig
	Log         LogConfig
	StreamCache StreamCacheConfig
	Extractor   ExtractorConfig
	FFmpeg      FFmpegConfig
	Download    DownloadConfig
	Redis       RedisConfig
	MinIO       MinIOConfig
}

type ServerConfig struct {
	Port            int           `envconfig:"API_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"10m"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"10s"`
}

type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

// SlogLevel parses Level as a slog level name (debug, info, warn, error).
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.Level, err)
	}
	return level, nil
}

type StreamCacheConfig struct {
	TTL        time.Duration `envconfig:"STREAM_CACHE_TTL" default:"300s"`
	MaxEntries int           `envconfig:"STREAM_CACHE_MAX_ENTRIES" default:"50"`
}

type ExtractorConfig struct {
	Path    string        `envconfig:"YTDLP_PATH" default:"yt-dlp"`
	Timeout time.Duration `envconfig:"YTDLP_TIMEOUT" default:"2m"`
	// Cookies is raw Netscape cookie-file content.
	Cookies     string `envconfig:"YTDLP_COOKIES"`
	CookiesFile string `envconfig:"YTDLP_COOKIES_FILE"`
}

type FFmpegConfig struct {
	Path         string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	AudioBitrate string `envconfig:"FFMPEG_AUDIO_BITRATE" default:"192k"`
}

type DownloadConfig struct {
	TempDir string `envconfig:"DOWNLOAD_TEMP_DIR" default:"/tmp"`
}

type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	InfoTTL  time.Duration `envconfig:"REDIS_INFO_TTL" default:"10m"`
}

// Enabled reports whether the Redis info cache is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type MinIOConfig struct {
	Endpoint       string        `envconfig:"MINIO_ENDPOINT"`
	PublicEndpoint string        `envconfig:"MINIO_PUBLIC_ENDPOINT"`
	AccessKey      string        `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	SecretKey      string        `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	Bucket         string        `envconfig:"MINIO_BUCKET" default:"media"`
	UseSSL         bool          `envconfig:"MINIO_USE_SSL" default:"false"`
	PresignExpiry  time.Duration `envconfig:"MINIO_PRESIGN_EXPIRY" default:"1h"`
}

// Enabled reports whether downloads should be archived to MinIO.
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != ""
}

// Load reads configuration from the environment.
// A .env file in the working directory is loaded first if present;
// variables already set in the environment take precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.StreamCache.TTL <= 0 {
		return fmt.Errorf("STREAM_CACHE_TTL must be positive, got %s", c.StreamCache.TTL)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}
