package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server  ServerConfig
	Fleet   FleetConfig
	MongoDB MongoDBConfig
	ERP     ERPConfig
	Sheets  SheetsConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// FleetConfig holds production loop settings.
type FleetConfig struct {
	// TickInterval is the cadence of the production-advance loop.
	TickInterval time.Duration
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// ERPConfig contains credentials and options for the ERPNext feed. The feed
// is optional; it is disabled when no base URL is configured.
type ERPConfig struct {
	BaseURL      string
	APIKey       string
	APISecret    string
	SyncInterval time.Duration
}

// Enabled reports whether the ERP feed is configured.
func (c ERPConfig) Enabled() bool {
	return c.BaseURL != "" && c.APIKey != "" && c.APISecret != ""
}

// SheetsConfig contains configuration for the Google Sheets production log.
// The log is optional; it is disabled when no spreadsheet is configured.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// Enabled reports whether the production log is configured.
func (c SheetsConfig) Enabled() bool {
	return c.CredentialsPath != "" && c.SpreadsheetID != ""
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
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

	tickInterval, err := parseDurationEnv("TICK_INTERVAL", time.Second)
	if err != nil {
		return nil, err
	}

	erpSyncInterval, err := parseDurationEnv("ERP_SYNC_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Fleet: FleetConfig{
			TickInterval: tickInterval,
		},
		MongoDB: MongoDBConfig{
			URI:    getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "prodlive"),
		},
		ERP: ERPConfig{
			BaseURL:      os.Getenv("ERP_URL"),
			APIKey:       os.Getenv("ERP_API_KEY"),
			APISecret:    os.Getenv("ERP_API_SECRET"),
			SyncInterval: erpSyncInterval,
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_PRODUCTION_LOG_ID"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.Fleet.TickInterval <= 0 {
		return errors.New("TICK_INTERVAL must be positive")
	}

	switch {
	case c.MongoDB.URI == "":
		return errors.New("MONGODB_URI must be provided")
	case c.MongoDB.DBName == "":
		return errors.New("MONGODB_DB_NAME must be provided")
	}

	if c.ERP.Enabled() && c.ERP.SyncInterval <= 0 {
		return errors.New("ERP_SYNC_INTERVAL must be positive")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
