package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Channel  ChannelConfig
	Dispatch DispatchConfig
	Phone    PhoneConfig
}

type ServerConfig struct {
	Address         string
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type DatabaseConfig struct {
	Driver string
	URL    string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

const (
	ProviderMeta    = "meta"
	ProviderWebhook = "webhook"
)

type ChannelConfig struct {
	Provider      string
	MetaAPIBase   string
	PhoneNumberID string
	AccessToken   string
	WebhookURL    string
	Timeout       time.Duration
	RatePerSecond int
}

// Configured reports whether the selected provider has the credentials it
// needs. An unconfigured channel is not a load error.
func (c ChannelConfig) Configured() bool {
	switch c.Provider {
	case ProviderMeta:
		return c.PhoneNumberID != "" && c.AccessToken != ""
	case ProviderWebhook:
		return c.WebhookURL != ""
	}
	return false
}

type DispatchConfig struct {
	DelayMin        time.Duration
	DelayMax        time.Duration
	ContentMax      int
	MaxAttempts     int
	BackoffBase     int
	BackoffUnit     time.Duration
	ContactedStatus string
	PersistTimeout  time.Duration
}

type PhoneConfig struct {
	CountryCode    string
	NationalLength int
}

// LoadAll reads the configuration from the environment and reports every
// missing or malformed variable at once.
func LoadAll() (*Config, error) {
	var errs []error
	intVar := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	dbURL := getEnv("DATABASE_URL", os.Getenv("POSTGRES_URL"))
	if dbURL == "" {
		_, err := requireEnv("DATABASE_URL")
		errs = append(errs, err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Address:         getEnv("SERVER_ADDRESS", ":8080"),
			ShutdownTimeout: time.Duration(intVar("SHUTDOWN_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DB_DRIVER", "pgx")),
			URL:    dbURL,
		},
		Channel: ChannelConfig{
			Provider:      strings.ToLower(getEnv("CHANNEL_PROVIDER", ProviderMeta)),
			MetaAPIBase:   getEnv("META_API_BASE", "https://graph.facebook.com/v18.0"),
			PhoneNumberID: os.Getenv("META_PHONE_NUMBER_ID"),
			AccessToken:   os.Getenv("META_ACCESS_TOKEN"),
			WebhookURL:    os.Getenv("WEBHOOK_URL"),
			Timeout:       time.Duration(intVar("CHANNEL_TIMEOUT_SECONDS", 30)) * time.Second,
			RatePerSecond: intVar("CHANNEL_RATE_PER_SECOND", 0),
		},
		Dispatch: DispatchConfig{
			DelayMin:        time.Duration(intVar("DELAY_MIN_SECONDS", 30)) * time.Second,
			DelayMax:        time.Duration(intVar("DELAY_MAX_SECONDS", 60)) * time.Second,
			ContentMax:      intVar("CONTENT_MAX", 4096),
			MaxAttempts:     intVar("MAX_ATTEMPTS", 3),
			BackoffBase:     intVar("BACKOFF_BASE", 4),
			BackoffUnit:     time.Duration(intVar("BACKOFF_UNIT_MS", 1000)) * time.Millisecond,
			ContactedStatus: getEnv("LEAD_CONTACTED_STATUS", "em_contato"),
			PersistTimeout:  time.Duration(intVar("PERSIST_TIMEOUT_SECONDS", 5)) * time.Second,
		},
		Phone: PhoneConfig{
			CountryCode:    getEnv("PHONE_COUNTRY_CODE", "55"),
			NationalLength: intVar("PHONE_NATIONAL_LENGTH", 11),
		},
	}

	redisCfg, redisErrs := loadRedisConfig()
	cfg.Redis = redisCfg
	errs = append(errs, redisErrs...)

	errs = append(errs, validate(cfg)...)

	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRedisConfig() (RedisConfig, []error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	var errs []error
	db, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		errs = append(errs, err)
	}
	ttl, err := getEnvInt("REDIS_TTL_SECONDS", 86400)
	if err != nil {
		errs = append(errs, err)
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		TTL:      time.Duration(ttl) * time.Second,
	}, errs
}

func validate(cfg *Config) []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch cfg.Database.Driver {
	case "pgx", "postgres", "postgresql", "sqlite", "sqlite3":
	default:
		fail("DB_DRIVER must be pgx or sqlite, got %q", cfg.Database.Driver)
	}
	switch cfg.Channel.Provider {
	case ProviderMeta, ProviderWebhook:
	default:
		fail("CHANNEL_PROVIDER must be %q or %q, got %q", ProviderMeta, ProviderWebhook, cfg.Channel.Provider)
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		fail("LOG_LEVEL must be debug, info, warn or error, got %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		fail("LOG_FORMAT must be json or text, got %q", cfg.Log.Format)
	}

	d := cfg.Dispatch
	if d.DelayMin < 0 {
		fail("DELAY_MIN_SECONDS must be >= 0")
	}
	if d.DelayMax < d.DelayMin {
		fail("DELAY_MAX_SECONDS must be >= DELAY_MIN_SECONDS")
	}
	if d.ContentMax <= 0 {
		fail("CONTENT_MAX must be > 0")
	}
	if d.MaxAttempts <= 0 {
		fail("MAX_ATTEMPTS must be > 0")
	}
	if d.BackoffBase <= 0 {
		fail("BACKOFF_BASE must be > 0")
	}
	if d.BackoffUnit < 0 {
		fail("BACKOFF_UNIT_MS must be >= 0")
	}
	if d.PersistTimeout <= 0 {
		fail("PERSIST_TIMEOUT_SECONDS must be > 0")
	}
	if cfg.Channel.Timeout <= 0 {
		fail("CHANNEL_TIMEOUT_SECONDS must be > 0")
	}
	if cfg.Channel.RatePerSecond < 0 {
		fail("CHANNEL_RATE_PER_SECOND must be >= 0")
	}
	if cfg.Phone.NationalLength <= 0 {
		fail("PHONE_NATIONAL_LENGTH must be > 0")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		fail("SHUTDOWN_TIMEOUT_SECONDS must be > 0")
	}
	return errs
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("invalid int for env %s: %q", key, v)
	}
	return i, nil
}

func joinErrors(errs []error) error {
	var merr *multierror.Error
	for _, err := range errs {
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}
