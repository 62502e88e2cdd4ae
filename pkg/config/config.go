// ==============================================================================
// CONFIG PACKAGE - pkg/config/config.go
// ==============================================================================
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Backend Backend
	Flow    Flow
	Resume  Resume
	Sim     Sim
}

type Backend struct {
	BaseURL     string
	AuthToken   string
	HTTPTimeout time.Duration
}

type Flow struct {
	PollInterval  time.Duration
	CameraWidth   int
	CameraHeight  int
	CameraFacing  string
	CaptureSource string
}

type Resume struct {
	Enabled       bool
	RedisURL      string
	RedisPassword string
	RedisDB       int
	SnapshotTTL   time.Duration
}

type Sim struct {
	Host         string
	Port         string
	JWTSecret    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func Load() *Config {
	return &Config{
		Backend: Backend{
			BaseURL:     getEnv("KYC_BACKEND_URL", "http://localhost:5000"),
			AuthToken:   getEnv("KYC_AUTH_TOKEN", ""),
			HTTPTimeout: getDurationEnv("KYC_HTTP_TIMEOUT", 30*time.Second),
		},
		Flow: Flow{
			PollInterval:  getDurationEnv("KYC_POLL_INTERVAL", 30*time.Second),
			CameraWidth:   getIntEnv("KYC_CAMERA_WIDTH", 1280),
			CameraHeight:  getIntEnv("KYC_CAMERA_HEIGHT", 720),
			CameraFacing:  getEnv("KYC_CAMERA_FACING", "user"),
			CaptureSource: getEnv("KYC_CAPTURE_SOURCE", ""),
		},
		Resume: Resume{
			Enabled:       getBoolEnv("KYC_RESUME_ENABLED", false),
			RedisURL:      normalizeRedisURL(getEnv("REDIS_URL", "localhost:6379")),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getIntEnv("REDIS_DB", 0),
			SnapshotTTL:   getDurationEnv("KYC_RESUME_TTL", 24*time.Hour),
		},
		Sim: Sim{
			Host:         getEnv("SIM_HOST", "0.0.0.0"),
			Port:         getEnv("SIM_PORT", "5000"),
			JWTSecret:    getEnv("SIM_JWT_SECRET", ""),
			ReadTimeout:  getDurationEnv("SIM_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SIM_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDurationEnv("SIM_IDLE_TIMEOUT", 120*time.Second),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func normalizeRedisURL(url string) string {
	// Strip redis:// or redis+tls:// scheme if present
	if strings.HasPrefix(url, "redis+tls://") {
		return url[len("redis+tls://"):]
	}
	if strings.HasPrefix(url, "redis://") {
		return url[len("redis://"):]
	}
	return url
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return defaultValue
}
