package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port                 string   `mapstructure:"PORT"`
	Env                  string   `mapstructure:"ENV"`
	DatabaseURL          string   `mapstructure:"DATABASE_URL"`
	DBMaxConns           int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns           int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL             string   `mapstructure:"REDIS_URL"`
	JWTSecret            string   `mapstructure:"JWT_SECRET"`
	JWTAlgorithm         string   `mapstructure:"JWT_ALGORITHM"`
	AccessTokenMinutes   int      `mapstructure:"ACCESS_TOKEN_EXPIRE_MINUTES"`
	CORSOrigins          []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS         float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst       int      `mapstructure:"RATE_LIMIT_BURST"`
	AuthRateLimitRPS     float64  `mapstructure:"AUTH_RATE_LIMIT_RPS"`
	AuthRateLimitBurst   int      `mapstructure:"AUTH_RATE_LIMIT_BURST"`
	UploadsDir           string   `mapstructure:"UPLOADS_DIR"`
	MaxUploadSize        string   `mapstructure:"MAX_UPLOAD_SIZE"`
	BodyLimit            string   `mapstructure:"BODY_LIMIT"`
	RequestTimeoutSecs   int      `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
	BackendURL           string   `mapstructure:"BACKEND_API_URL"`
	FrontendURL          string   `mapstructure:"FRONTEND_URL"`
	ReminderWebhookURL   string   `mapstructure:"REMINDER_WEBHOOK_URL"`
	ReminderWebhookToken string   `mapstructure:"REMINDER_WEBHOOK_SECRET"`
	TLSEnabled           bool     `mapstructure:"TLS_ENABLED"`
	TLSCertFile          string   `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile           string   `mapstructure:"TLS_KEY_FILE"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"JWT_SECRET", "JWT_ALGORITHM", "ACCESS_TOKEN_EXPIRE_MINUTES", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "AUTH_RATE_LIMIT_RPS", "AUTH_RATE_LIMIT_BURST",
	"UPLOADS_DIR", "MAX_UPLOAD_SIZE", "BODY_LIMIT", "REQUEST_TIMEOUT_SECONDS", "BACKEND_API_URL", "FRONTEND_URL",
	"REMINDER_WEBHOOK_URL", "REMINDER_WEBHOOK_SECRET",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

// devSecret signs tokens when ENV=development and JWT_SECRET is unset.
const devSecret = "development-only-secret-change-me"

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("JWT_ALGORITHM", "HS256")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("AUTH_RATE_LIMIT_RPS", 5)
	v.SetDefault("AUTH_RATE_LIMIT_BURST", 10)
	v.SetDefault("UPLOADS_DIR", "./uploads")
	v.SetDefault("MAX_UPLOAD_SIZE", "10M")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 30)
	v.SetDefault("BACKEND_API_URL", "http://localhost:8000")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" && cfg.IsDev() {
		cfg.JWTSecret = devSecret
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// PublicFileURL is the absolute URL under which a stored blob is served.
func (c *Config) PublicFileURL(name string) string {
	return strings.TrimRight(c.BackendURL, "/") + "/files/" + name
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
	}
	if c.IsProduction() && c.JWTSecret == devSecret {
		return fmt.Errorf("JWT_SECRET must not use the development default in production")
	}
	if c.JWTAlgorithm != "HS256" && c.JWTAlgorithm != "HS384" && c.JWTAlgorithm != "HS512" {
		return fmt.Errorf("JWT_ALGORITHM must be one of HS256, HS384, HS512, got %q", c.JWTAlgorithm)
	}
	if c.AccessTokenMinutes <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive, got %d", c.AccessTokenMinutes)
	}
	if c.RequestTimeoutSecs <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be positive, got %d", c.RequestTimeoutSecs)
	}
	if c.UploadsDir == "" {
		return fmt.Errorf("UPLOADS_DIR is required")
	}

	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
