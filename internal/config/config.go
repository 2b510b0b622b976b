package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendYida   = "yida"
	BackendMemory = "memory"
)

// Config represents the full application configuration surface.
type Config struct {
	Server  ServerConfig
	Log     LogConfig
	Ledger  LedgerConfig
	Yida    YidaConfig
	Redis   RedisConfig
	Lock    LockConfig
	MongoDB MongoDBConfig
	Sheets  SheetsConfig
	Audit   AuditConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port         string
	WebhookToken string
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string
}

// LedgerConfig selects the ledger store implementation.
type LedgerConfig struct {
	Backend string
}

// YidaConfig contains credentials and form identifiers for the DingTalk Yida API.
type YidaConfig struct {
	BaseURL       string
	AppKey        string
	AppSecret     string
	AppType       string
	SystemToken   string
	UserID        string
	InventoryForm string
	CostForm      string
	TotalsForm    string
	// InvoiceStatForm is optional; empty disables 发票统计 rows.
	InvoiceStatForm string
	PageSize        int
	Timeout         time.Duration
}

// RedisConfig enables the shared lock and token cache when Address is set.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// LockConfig tunes the per-product lock.
type LockConfig struct {
	TTL  time.Duration
	Wait time.Duration
}

// MongoDBConfig enables the line journal and audit history when URI is set.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// SheetsConfig enables the audit sheet export when both fields are set.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// AuditConfig holds scheduler-related settings.
type AuditConfig struct {
	CronSchedule string
	Timezone     string
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
		// Missing .env files are fine when configuration comes from the environment.
		_ = godotenv.Load()
	}

	pageSize, err := getenvInt("YIDA_PAGE_SIZE", 100)
	if err != nil {
		return nil, err
	}
	redisDB, err := getenvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	yidaTimeout, err := getenvDuration("YIDA_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	lockTTL, err := getenvDuration("PRODUCT_LOCK_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	lockWait, err := getenvDuration("PRODUCT_LOCK_WAIT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getenvWithDefault("APP_PORT", "8080"),
			WebhookToken: os.Getenv("WEBHOOK_TOKEN"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
		Ledger: LedgerConfig{
			Backend: getenvWithDefault("LEDGER_BACKEND", BackendYida),
		},
		Yida: YidaConfig{
			BaseURL:         getenvWithDefault("DINGTALK_BASE_URL", "https://api.dingtalk.com"),
			AppKey:          os.Getenv("DINGTALK_APP_KEY"),
			AppSecret:       os.Getenv("DINGTALK_APP_SECRET"),
			AppType:         os.Getenv("YIDA_APP_TYPE"),
			SystemToken:     os.Getenv("YIDA_SYSTEM_TOKEN"),
			UserID:          os.Getenv("YIDA_USER_ID"),
			InventoryForm:   os.Getenv("YIDA_INVENTORY_FORM"),
			CostForm:        os.Getenv("YIDA_COST_FORM"),
			TotalsForm:      os.Getenv("YIDA_TOTALS_FORM"),
			InvoiceStatForm: os.Getenv("YIDA_INVOICE_STAT_FORM"),
			PageSize:        pageSize,
			Timeout:         yidaTimeout,
		},
		Redis: RedisConfig{
			Address:  os.Getenv("REDIS_ADDRESS"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Lock: LockConfig{
			TTL:  lockTTL,
			Wait: lockWait,
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "invoice_ledger"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
		},
		Audit: AuditConfig{
			CronSchedule: getenvWithDefault("AUDIT_CRON_SCHEDULE", "0 2 * * *"),
			Timezone:     getenvWithDefault("TIMEZONE", "Asia/Shanghai"),
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

	switch c.Ledger.Backend {
	case BackendMemory:
	case BackendYida:
		if err := c.Yida.validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("LEDGER_BACKEND must be %q or %q, got %q", BackendYida, BackendMemory, c.Ledger.Backend)
	}

	if c.Lock.TTL <= 0 {
		return errors.New("PRODUCT_LOCK_TTL must be positive")
	}
	if c.Lock.Wait < 0 {
		return errors.New("PRODUCT_LOCK_WAIT must not be negative")
	}

	if (c.Sheets.CredentialsPath == "") != (c.Sheets.SpreadsheetID == "") {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH and GOOGLE_SHEET_DATABASE_ID must be provided together")
	}

	if c.Audit.CronSchedule == "" {
		return errors.New("AUDIT_CRON_SCHEDULE must be provided")
	}
	if _, err := time.LoadLocation(c.Audit.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE is invalid: %w", err)
	}

	return nil
}

func (y YidaConfig) validate() error {
	switch {
	case y.BaseURL == "":
		return errors.New("DINGTALK_BASE_URL must not be empty")
	case y.AppKey == "":
		return errors.New("DINGTALK_APP_KEY must be provided")
	case y.AppSecret == "":
		return errors.New("DINGTALK_APP_SECRET must be provided")
	case y.AppType == "":
		return errors.New("YIDA_APP_TYPE must be provided")
	case y.SystemToken == "":
		return errors.New("YIDA_SYSTEM_TOKEN must be provided")
	case y.UserID == "":
		return errors.New("YIDA_USER_ID must be provided")
	case y.InventoryForm == "":
		return errors.New("YIDA_INVENTORY_FORM must be provided")
	case y.CostForm == "":
		return errors.New("YIDA_COST_FORM must be provided")
	case y.TotalsForm == "":
		return errors.New("YIDA_TOTALS_FORM must be provided")
	}
	if y.PageSize <= 0 {
		return errors.New("YIDA_PAGE_SIZE must be positive")
	}
	return nil
}

// WebhookAuthEnabled reports whether callbacks must carry X-Webhook-Token.
func (c *Config) WebhookAuthEnabled() bool {
	return c.Server.WebhookToken != ""
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
