package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Paths    PathsConfig
	OCR      OCRConfig
	Pipeline PipelineConfig
	LogLevel string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// PathsConfig holds filesystem locations
type PathsConfig struct {
	ExpedientesRoot string
	InboxDir        string
	ReportsDir      string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract     string
	TesseractLang string
	TessdataDir   string
	Pdftoppm      string
	Pdftotext     string
	DPI           int
	PSM           int
	PageTimeout   time.Duration
}

// PipelineConfig holds splitter behavior flags
type PipelineConfig struct {
	OCRWorkers      int
	WriteWorkers    int
	UseTextLayer    bool
	MaxUploadMB     int
	ClassifierRules string
}

// LoadConfig loads configuration from environment variables.
// A .env file in the working directory is read first when present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", "file:./data/sgte.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
		Paths: PathsConfig{
			ExpedientesRoot: getEnv("EXPEDIENTES_ROOT", "./data/expedientes"),
			InboxDir:        getEnv("INBOX_DIR", ""),
			ReportsDir:      getEnv("REPORTS_DIR", "./data/reportes"),
		},
		OCR: OCRConfig{
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "spa"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Pdftotext:     getEnv("PDFTOTEXT_BIN", "pdftotext"),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			PSM:           getEnvAsInt("OCR_PSM", 0),
			PageTimeout:   getEnvAsDuration("OCR_PAGE_TIMEOUT", 30*time.Second),
		},
		Pipeline: PipelineConfig{
			OCRWorkers:      getEnvAsInt("OCR_WORKERS", 4),
			WriteWorkers:    getEnvAsInt("WRITE_WORKERS", 2),
			UseTextLayer:    getEnvAsBool("USE_TEXT_LAYER", true),
			MaxUploadMB:     getEnvAsInt("MAX_UPLOAD_MB", 200),
			ClassifierRules: getEnv("CLASSIFIER_RULES", ""),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError(CodeConfig, "DB_URL is required", ErrInvalidInput)
	}
	if strings.TrimSpace(c.Paths.ExpedientesRoot) == "" {
		return NewAppError(CodeConfig, "EXPEDIENTES_ROOT is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError(CodeConfig, "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.OCR.DPI < 72 || c.OCR.DPI > 1200 {
		return NewAppError(CodeConfig, "OCR_DPI must be between 72 and 1200", ErrInvalidInput)
	}
	if c.Pipeline.OCRWorkers < 1 || c.Pipeline.OCRWorkers > 64 {
		return NewAppError(CodeConfig, "OCR_WORKERS must be between 1 and 64", ErrInvalidInput)
	}
	if c.Pipeline.WriteWorkers < 1 || c.Pipeline.WriteWorkers > 64 {
		return NewAppError(CodeConfig, "WRITE_WORKERS must be between 1 and 64", ErrInvalidInput)
	}
	if c.Pipeline.MaxUploadMB <= 0 {
		return NewAppError(CodeConfig, "MAX_UPLOAD_MB must be positive", ErrInvalidInput)
	}
	return nil
}
