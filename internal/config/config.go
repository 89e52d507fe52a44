package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       int
	ModelPath  string
	UploadDir  string
	OutputDir  string
	PreviewDir string
	StaticDir  string
	LogDir     string
	DBPath     string

	SkipFrames     int     // Detection runs on every (SkipFrames+1)-th frame
	ProcessScale   float64 // Downsample factor applied before detection
	NominalFPS     float64 // Frame rate assumed by the speed estimate
	MetersPerPixel float64
	EntryLineRatio float64 // Entry line x position as a fraction of frame width

	PreviewInterval    time.Duration
	DetectionThreshold float64
	NMSThreshold       float64
	IOUThreshold       float64
	MaxLost            int

	OutputCodec string
	MaxUploadMB int64
	DeleteInput bool
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
	}

	return &Config{
		Port:       getEnvAsInt("PORT", 5000),
		ModelPath:  getEnv("MODEL_PATH", filepath.Join(".", "models", "yolov8n.onnx")),
		UploadDir:  getEnv("UPLOAD_DIR", filepath.Join(".", "uploads")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(".", "outputs")),
		PreviewDir: getEnv("PREVIEW_DIR", filepath.Join(".", "static", "previews")),
		StaticDir:  getEnv("STATIC_DIR", filepath.Join(".", "static")),
		LogDir:     getEnv("LOG_DIR", filepath.Join(".", "logs")),
		DBPath:     getEnv("DB_PATH", filepath.Join(".", "data", "jobs.db")),

		SkipFrames:     getEnvAsInt("SKIP_FRAMES", 3),
		ProcessScale:   getEnvAsFloat("PROCESS_SCALE", 0.5),
		NominalFPS:     getEnvAsFloat("NOMINAL_FPS", 30),
		MetersPerPixel: getEnvAsFloat("METERS_PER_PIXEL", 0.026),
		EntryLineRatio: getEnvAsFloat("ENTRY_LINE_RATIO", 0.3),

		PreviewInterval:    getEnvAsDuration("PREVIEW_INTERVAL", time.Second),
		DetectionThreshold: getEnvAsFloat("DETECTION_THRESHOLD", 0.5),
		NMSThreshold:       getEnvAsFloat("NMS_THRESHOLD", 0.45),
		IOUThreshold:       getEnvAsFloat("IOU_THRESHOLD", 0.3),
		MaxLost:            getEnvAsInt("MAX_LOST", 1),

		OutputCodec: getEnv("OUTPUT_CODEC", "mp4v"),
		MaxUploadMB: getEnvAsInt64("MAX_UPLOAD_MB", 1024),
		DeleteInput: getEnvAsBool("DELETE_INPUT", true),
	}, nil
}

// Validate reports the first setting that would make the pipeline misbehave.
func (c *Config) Validate() error {
	switch {
	case c.Port <= 0:
		return fmt.Errorf("invalid port: %d", c.Port)
	case c.SkipFrames < 0:
		return fmt.Errorf("skip frames must not be negative, got %d", c.SkipFrames)
	case c.ProcessScale <= 0 || c.ProcessScale > 1:
		return fmt.Errorf("process scale must be in (0,1], got %v", c.ProcessScale)
	case c.NominalFPS <= 0:
		return fmt.Errorf("nominal fps must be positive, got %v", c.NominalFPS)
	case c.MetersPerPixel <= 0:
		return fmt.Errorf("meters per pixel must be positive, got %v", c.MetersPerPixel)
	case c.EntryLineRatio <= 0 || c.EntryLineRatio >= 1:
		return fmt.Errorf("entry line ratio must be in (0,1), got %v", c.EntryLineRatio)
	case c.PreviewInterval < 0:
		return fmt.Errorf("preview interval must not be negative, got %v", c.PreviewInterval)
	case c.MaxLost < 0:
		return fmt.Errorf("max lost must not be negative, got %d", c.MaxLost)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
