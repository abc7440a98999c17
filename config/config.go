package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Stream   StreamConfig
	Detector DetectorConfig
}

// ServerConfig holds settings for the HTTP report API.
type ServerConfig struct {
	Port               int // 0 = probe for a free port starting at PortScanBase
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	PortScanBase       int
	PortScanAttempts   int
}

// StreamConfig holds settings for the WebSocket frame intake server.
type StreamConfig struct {
	Port            int   // 0 = probe starting at the resolved HTTP port + 1
	MaxMessageBytes int64 // read limit per websocket message
	PingIntervalSec int
	PongWaitSec     int
}

// DetectorConfig holds face detection settings.
type DetectorConfig struct {
	CascadePath string // Haar cascade XML; empty or missing file disables detection
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnvInt("HTTP_PORT", 0),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			PortScanBase:       getEnvInt("PORT_SCAN_BASE", 8000),
			PortScanAttempts:   getEnvInt("PORT_SCAN_ATTEMPTS", 50),
		},
		Stream: StreamConfig{
			Port:            getEnvInt("WS_PORT", 0),
			MaxMessageBytes: int64(getEnvInt("WS_MAX_MESSAGE_BYTES", 10*1024*1024)),
			PingIntervalSec: getEnvInt("WS_PING_INTERVAL_SEC", 20),
			PongWaitSec:     getEnvInt("WS_PONG_WAIT_SEC", 50),
		},
		Detector: DetectorConfig{
			CascadePath: getEnv("CASCADE_PATH", "haarcascade_frontalface_default.xml"),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
