package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Env       string
	Port      string
	JWTSecret string

	Database DatabaseConfig
	Email    EmailConfig
	Workflow WorkflowConfig
	Uploads  UploadConfig
	Backup   BackupConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// EmailConfig holds SendGrid configuration. An empty APIKey disables
// outbound email; the notifier logs instead of sending.
type EmailConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// WorkflowConfig holds workflow policy knobs.
type WorkflowConfig struct {
	// AllowReopen permits the generic staff status update to move an
	// application out of a terminal state (validee/rejetee/cloture).
	// Off by default: terminal states stay terminal.
	AllowReopen bool
}

// UploadConfig holds file storage configuration
type UploadConfig struct {
	Dir         string
	MaxSizeByte int64
}

// BackupConfig holds database backup configuration
type BackupConfig struct {
	Dir      string
	Interval string // e.g. "24h"; empty disables the scheduled job
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	maxUpload := int64(16 * 1024 * 1024)
	if v := os.Getenv("UPLOAD_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			maxUpload = n
		}
	}

	return &Config{
		Env:       getEnv("APP_ENV", "development"),
		Port:      getEnv("PORT", "3001"),
		JWTSecret: jwtSecret,
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "econsulaire"),
		},
		Email: EmailConfig{
			APIKey:    os.Getenv("SENDGRID_API_KEY"),
			FromEmail: getEnv("MAIL_FROM_EMAIL", "noreply@econsulaire-rdc.com"),
			FromName:  getEnv("MAIL_FROM_NAME", "e-Consulaire RDC"),
		},
		Workflow: WorkflowConfig{
			AllowReopen: getEnv("WORKFLOW_ALLOW_REOPEN", "false") == "true",
		},
		Uploads: UploadConfig{
			Dir:         getEnv("UPLOAD_DIR", "./uploads"),
			MaxSizeByte: maxUpload,
		},
		Backup: BackupConfig{
			Dir:      getEnv("BACKUP_DIR", "./backups"),
			Interval: os.Getenv("BACKUP_INTERVAL"),
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
