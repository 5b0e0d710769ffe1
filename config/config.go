package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	Port string

	MusicDir  string // Media files (uploaded and imported audio)
	ImagesDir string // Artist images and album covers
	DataDir   string // JSON documents (artists, albums, index)

	FFmpegPath   string
	YtdlpPath    string // Path to the yt-dlp binary, empty means "yt-dlp" on PATH
	AudioBitrate string // e.g., "192k"

	JWTSecret         string
	AdminPassword     string // Plaintext fallback for local setups
	AdminPasswordHash string // bcrypt hash, takes precedence when set
	TokenTTLHours     int

	LogLevel string
	LogFile  string
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

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		Port: getEnv("PORT", "8080"),

		MusicDir:  getEnv("MUSIC_DIR", "music"),
		ImagesDir: getEnv("IMAGES_DIR", "images"),
		DataDir:   getEnv("DATA_DIR", "data"),

		FFmpegPath:   getEnv("FFMPEG_PATH", "ffmpeg"),
		YtdlpPath:    getEnv("YTDLP_PATH", ""),
		AudioBitrate: getEnv("AUDIO_BITRATE", "192k"),

		JWTSecret:         getEnv("JWT_SECRET", "discbox-dev-secret"),
		AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		TokenTTLHours:     getEnvInt("TOKEN_TTL_HOURS", 72),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", filepath.Join("logs", "discbox.log")),
	}
}
