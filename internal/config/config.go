package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	AuthMode     string `mapstructure:"AUTH_MODE"`
	AuthIssuer   string `mapstructure:"AUTH_ISSUER"`
	AuthAudience string `mapstructure:"AUTH_AUDIENCE"`
	AuthSecret   string `mapstructure:"AUTH_SECRET"`

	ResendAPIKey string `mapstructure:"RESEND_API_KEY"`
	EmailFrom    string `mapstructure:"EMAIL_FROM"`

	NotifyURL   string `mapstructure:"NOTIFY_URL"`
	NotifyToken string `mapstructure:"NOTIFY_TOKEN"`

	AssistantURL    string `mapstructure:"ASSISTANT_URL"`
	AssistantAPIKey string `mapstructure:"ASSISTANT_API_KEY"`

	ReminderInterval        time.Duration `mapstructure:"REMINDER_INTERVAL"`
	ReminderResendGap       time.Duration `mapstructure:"REMINDER_RESEND_GAP"`
	OverdueAfter            time.Duration `mapstructure:"OVERDUE_AFTER"`
	EscalationMaxRecipients int           `mapstructure:"ESCALATION_MAX_RECIPIENTS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // auto-detect: "" -> inferred from ENV
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("EMAIL_FROM", "Reconcile C.A.R.E. <care@reconcile-care.example>")
	v.SetDefault("REMINDER_INTERVAL", "5m")
	v.SetDefault("REMINDER_RESEND_GAP", "60m")
	v.SetDefault("OVERDUE_AFTER", "120m")
	v.SetDefault("ESCALATION_MAX_RECIPIENTS", 5)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("AUTH_MODE")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("AUTH_SECRET")
	v.BindEnv("RESEND_API_KEY")
	v.BindEnv("EMAIL_FROM")
	v.BindEnv("NOTIFY_URL")
	v.BindEnv("NOTIFY_TOKEN")
	v.BindEnv("ASSISTANT_URL")
	v.BindEnv("ASSISTANT_API_KEY")
	v.BindEnv("REMINDER_INTERVAL")
	v.BindEnv("REMINDER_RESEND_GAP")
	v.BindEnv("OVERDUE_AFTER")
	v.BindEnv("ESCALATION_MAX_RECIPIENTS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active; all requests act as a dev RN.")
		log.Println("WARNING: Set ENV=production and configure AUTH_SECRET for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns the effective auth mode. If AUTH_MODE is explicitly
// set, it is returned. Otherwise: ENV=development -> "development" (no auth,
// fixed dev actor), anything else -> "jwt".
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "jwt"
}

// Validate checks that the configuration is safe to run. Outside development
// a signing secret must be configured so actor identity on the pipeline
// endpoints is real, and the scheduler windows must be sane.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	if mode != "development" && mode != "jwt" {
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"jwt\", got %q", mode)
	}
	if mode == "jwt" && c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required when AUTH_MODE is \"jwt\" (current ENV=%q). "+
			"Refusing to start without authentication configuration", c.Env)
	}

	if c.ReminderResendGap <= 0 {
		return fmt.Errorf("REMINDER_RESEND_GAP must be positive, got %s", c.ReminderResendGap)
	}
	if c.OverdueAfter <= 0 {
		return fmt.Errorf("OVERDUE_AFTER must be positive, got %s", c.OverdueAfter)
	}
	if c.EscalationMaxRecipients < 1 {
		return fmt.Errorf("ESCALATION_MAX_RECIPIENTS must be at least 1, got %d", c.EscalationMaxRecipients)
	}

	if c.IsProduction() && c.ResendAPIKey == "" {
		return fmt.Errorf("RESEND_API_KEY is required in production (reminder and escalation emails)")
	}

	return nil
}
