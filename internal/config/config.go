package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

// Bot transport modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Remote backends for the workbook copy.
const (
	BackendDrive = "drive"
	BackendS3    = "s3"
	BackendNone  = "none"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Telegram  TelegramConfig
	Inventory InventoryConfig
	Remote    RemoteConfig
	Google    GoogleConfig
	S3        S3Config
	Sheets    SheetsConfig
	MongoDB   MongoDBConfig
	Session   SessionConfig
	Sync      SyncConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// TelegramConfig contains the bot credentials and delivery options.
type TelegramConfig struct {
	Token         string
	BaseURL       string
	Mode          string
	WebhookURL    string
	WebhookSecret string
	// RateLimit is the number of outbound calls per second.
	RateLimit float64
}

// InventoryConfig locates the local workbook and image files.
type InventoryConfig struct {
	FilePath  string
	ImagesDir string
	PageSize  int
	// SequenceFile holds the highest number ever issued; empty means
	// FilePath + ".seq".
	SequenceFile string
}

// RemoteConfig describes where the remote copy of the workbook lives.
type RemoteConfig struct {
	Backend      string
	FileID       string
	FileName     string
	IDFile       string
	ImagesFolder string
}

// GoogleConfig holds service account credentials shared by Drive and Sheets.
type GoogleConfig struct {
	CredentialsPath string
	CredentialsJSON string
}

// S3Config configures the S3 backend.
type S3Config struct {
	Bucket   string
	Region   string
	Prefix   string
	Endpoint string
}

// SheetsConfig contains configuration required to mirror the table to Google Sheets.
type SheetsConfig struct {
	SpreadsheetID string
	Range         string
}

// MongoDBConfig holds settings for the change journal.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// SessionConfig holds conversation lifecycle settings.
type SessionConfig struct {
	IdleTimeout time.Duration
}

// SyncConfig holds the pending-sync retry schedule.
type SyncConfig struct {
	RetrySchedule string
}

// LogConfig holds logger options.
type LogConfig struct {
	Level string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a validated Config for the bot server.
func Load(envFile string) (*Config, error) {
	cfg, err := Read(envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read materializes a Config without validating it, for tools that need
// only part of it.
func Read(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	pageSize, err := getenvInt("PAGE_SIZE", 5)
	if err != nil {
		return nil, err
	}
	rate, err := getenvFloat("TELEGRAM_RATE_LIMIT", 25)
	if err != nil {
		return nil, err
	}
	idle, err := getenvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("PORT", "8000"),
		},
		Telegram: TelegramConfig{
			Token:         os.Getenv("TELEGRAM_BOT_TOKEN"),
			BaseURL:       getenvWithDefault("TELEGRAM_API_URL", "https://api.telegram.org"),
			Mode:          strings.ToLower(getenvWithDefault("BOT_MODE", ModePolling)),
			WebhookURL:    os.Getenv("TELEGRAM_WEBHOOK_URL"),
			WebhookSecret: os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
			RateLimit:     rate,
		},
		Inventory: InventoryConfig{
			FilePath:  getenvWithDefault("INVENTORY_FILE", "Инструменты.xlsx"),
			ImagesDir: getenvWithDefault("IMAGES_DIR", "."),
			PageSize:  pageSize,

			SequenceFile: os.Getenv("INVENTORY_SEQUENCE_FILE"),
		},
		Remote: RemoteConfig{
			Backend:      strings.ToLower(getenvWithDefault("REMOTE_BACKEND", BackendDrive)),
			FileID:       os.Getenv("REMOTE_FILE_ID"),
			FileName:     getenvWithDefault("REMOTE_FILE_NAME", "Инструменты.xlsx"),
			IDFile:       getenvWithDefault("REMOTE_ID_FILE", "google_sheet_id.txt"),
			ImagesFolder: os.Getenv("REMOTE_IMAGES_FOLDER"),
		},
		Google: GoogleConfig{
			CredentialsPath: getenvWithDefault("GOOGLE_CREDENTIALS_PATH", "credentials.json"),
			CredentialsJSON: os.Getenv("GOOGLE_CREDENTIALS_JSON"),
		},
		S3: S3Config{
			Bucket:   os.Getenv("S3_BUCKET"),
			Region:   getenvWithDefault("S3_REGION", "us-east-1"),
			Prefix:   os.Getenv("S3_PREFIX"),
			Endpoint: os.Getenv("S3_ENDPOINT"),
		},
		Sheets: SheetsConfig{
			SpreadsheetID: os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
			Range:         getenvWithDefault("GOOGLE_SHEET_RANGE", "Inventory!A1"),
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "toolstock"),
		},
		Session: SessionConfig{
			IdleTimeout: idle,
		},
		Sync: SyncConfig{
			RetrySchedule: getenvWithDefault("SYNC_RETRY_SCHEDULE", "*/5 * * * *"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("PORT must be provided")
	}

	if c.Telegram.Token == "" {
		return errors.New("TELEGRAM_BOT_TOKEN must be provided")
	}

	if c.Telegram.BaseURL == "" {
		return errors.New("TELEGRAM_API_URL must not be empty")
	}

	switch c.Telegram.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.Telegram.WebhookURL == "" {
			return errors.New("TELEGRAM_WEBHOOK_URL must be provided in webhook mode")
		}
	default:
		return fmt.Errorf("BOT_MODE %q is not supported", c.Telegram.Mode)
	}

	if c.Telegram.RateLimit <= 0 {
		return errors.New("TELEGRAM_RATE_LIMIT must be positive")
	}

	if c.Session.IdleTimeout <= 0 {
		return errors.New("SESSION_IDLE_TIMEOUT must be positive")
	}

	if c.Sync.RetrySchedule == "" {
		return errors.New("SYNC_RETRY_SCHEDULE must be provided")
	}

	return c.ValidateStorage()
}

// ValidateStorage checks the settings of the inventory file and its backends.
func (c *Config) ValidateStorage() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Inventory.FilePath == "" {
		return errors.New("INVENTORY_FILE must not be empty")
	}

	if c.Inventory.PageSize <= 0 {
		return errors.New("PAGE_SIZE must be positive")
	}

	switch c.Remote.Backend {
	case BackendNone:
	case BackendDrive:
		if c.Remote.FileName == "" && c.Remote.FileID == "" {
			return errors.New("REMOTE_FILE_NAME or REMOTE_FILE_ID must be provided")
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return errors.New("S3_BUCKET must be provided for the s3 backend")
		}
		if c.Remote.FileName == "" && c.Remote.FileID == "" {
			return errors.New("REMOTE_FILE_NAME or REMOTE_FILE_ID must be provided")
		}
	default:
		return fmt.Errorf("REMOTE_BACKEND %q is not supported", c.Remote.Backend)
	}

	return nil
}

// ClientOption returns the Google API credential option, preferring inline JSON.
func (g GoogleConfig) ClientOption() option.ClientOption {
	if g.CredentialsJSON != "" {
		return option.WithCredentialsJSON([]byte(g.CredentialsJSON))
	}
	return option.WithCredentialsFile(g.CredentialsPath)
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func getenvFloat(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return v, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return v, nil
}
