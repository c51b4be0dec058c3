package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	ProviderCloud  = "cloud"
	ProviderTwilio = "twilio"
)

// Config holds everything the bot reads from the environment.
type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"production"`
	Debug       bool   `env:"DEBUG" envDefault:"false"`

	// Bearer token for /admin. Admin routes are not mounted when empty.
	AdminToken string `env:"ADMIN_TOKEN"`

	WhatsApp struct {
		Provider      string `env:"WHATSAPP_PROVIDER" envDefault:"cloud"`
		AccessToken   string `env:"WHATSAPP_ACCESS_TOKEN"`
		PhoneNumberID string `env:"WHATSAPP_PHONE_NUMBER_ID"`
		AppSecret     string `env:"WHATSAPP_APP_SECRET"`
		VerifyToken   string `env:"WHATSAPP_VERIFY_TOKEN"`
		APIVersion    string `env:"WHATSAPP_API_VERSION" envDefault:"v21.0"`
		APIBaseURL    string `env:"WHATSAPP_API_BASE_URL" envDefault:"https://graph.facebook.com"`

		// Development only. Validate refuses it in production.
		DisableSignatureValidation bool `env:"DISABLE_WEBHOOK_VALIDATION" envDefault:"false"`
	}

	Twilio struct {
		AccountSID string `env:"TWILIO_ACCOUNT_SID"`
		AuthToken  string `env:"TWILIO_AUTH_TOKEN"`
		From       string `env:"TWILIO_WHATSAPP_FROM"` // whatsapp:+14155238886
	}

	Database struct {
		UseMemoryStore bool   `env:"USE_MEMORY_STORE" envDefault:"false"`
		DSN            string `env:"DATABASE_URL" envDefault:"host=localhost user=postgres dbname=astrobot port=5432 sslmode=disable"`
		AutoMigrate    bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`
	}

	Redis struct {
		Addr     string `env:"REDIS_ADDR"`
		Password string `env:"REDIS_PASSWORD"`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Session struct {
		TTL           time.Duration `env:"SESSION_TTL" envDefault:"24h"`
		SweepSchedule string        `env:"SESSION_SWEEP_SCHEDULE" envDefault:"@every 15m"`
		ExpiryNotice  bool          `env:"SESSION_EXPIRY_NOTICE" envDefault:"false"`
	}

	Menu struct {
		MaxUsers int           `env:"MENU_CACHE_MAX_USERS" envDefault:"10000"`
		TTL      time.Duration `env:"MENU_CACHE_TTL" envDefault:"1h"`
	}

	Retry struct {
		MaxAttempts int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"3"`
		BaseDelay   time.Duration `env:"RETRY_BASE_DELAY" envDefault:"500ms"`
		MaxDelay    time.Duration `env:"RETRY_MAX_DELAY" envDefault:"5s"`
	}

	Webhook struct {
		Async    bool          `env:"WEBHOOK_ASYNC" envDefault:"true"`
		Dedup    bool          `env:"WEBHOOK_DEDUP" envDefault:"true"`
		DedupTTL time.Duration `env:"WEBHOOK_DEDUP_TTL" envDefault:"24h"`

		// Upper bound for processing one webhook call in the background.
		ProcessTimeout time.Duration `env:"WEBHOOK_PROCESS_TIMEOUT" envDefault:"2m"`
	}
}

// Load reads a local .env file when present and parses the environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load(".env")

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the bot runs with production safeguards.
func (c *Config) IsProduction() bool {
	return c.Environment != EnvDevelopment
}

// SignatureValidation reports whether inbound webhooks must carry a valid signature.
func (c *Config) SignatureValidation() bool {
	return !(c.WhatsApp.DisableSignatureValidation && !c.IsProduction())
}

// Validate checks combinations of settings that cannot work together.
func (c *Config) Validate() error {
	var errs []error

	if c.WhatsApp.DisableSignatureValidation && c.IsProduction() {
		errs = append(errs, errors.New("DISABLE_WEBHOOK_VALIDATION is not allowed in production"))
	}
	if c.SignatureValidation() && c.WhatsApp.AppSecret == "" {
		errs = append(errs, errors.New("WHATSAPP_APP_SECRET is required when signature validation is enabled"))
	}
	if c.WhatsApp.VerifyToken == "" {
		errs = append(errs, errors.New("WHATSAPP_VERIFY_TOKEN is required"))
	}

	switch c.WhatsApp.Provider {
	case ProviderCloud:
		if c.WhatsApp.AccessToken == "" || c.WhatsApp.PhoneNumberID == "" {
			errs = append(errs, errors.New("WHATSAPP_ACCESS_TOKEN and WHATSAPP_PHONE_NUMBER_ID are required for the cloud provider"))
		}
	case ProviderTwilio:
		if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" || c.Twilio.From == "" {
			errs = append(errs, errors.New("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_WHATSAPP_FROM are required for the twilio provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown WHATSAPP_PROVIDER %q", c.WhatsApp.Provider))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("RETRY_MAX_ATTEMPTS must be at least 1"))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}

	return errors.Join(errs...)
}
