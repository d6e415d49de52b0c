package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string   `mapstructure:"PORT"`
	Env           string   `mapstructure:"ENV"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32    `mapstructure:"DB_MIN_CONNS"`
	AuthIssuer    string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL   string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience  string   `mapstructure:"AUTH_AUDIENCE"`
	AuthDevSecret string   `mapstructure:"AUTH_DEV_SECRET"`
	DefaultTenant string   `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	// Groq LLM classifier used by the triage engine. An empty API key is
	// valid: the engine then runs entirely on the rule-based fallback.
	GroqAPIKey      string  `mapstructure:"GROQ_API_KEY"`
	GroqBaseURL     string  `mapstructure:"GROQ_BASE_URL"`
	GroqModel       string  `mapstructure:"GROQ_MODEL"`
	GroqVisionModel string  `mapstructure:"GROQ_VISION_MODEL"`
	GroqMaxTokens   int     `mapstructure:"GROQ_MAX_TOKENS"`
	GroqTemperature float64 `mapstructure:"GROQ_TEMPERATURE"`
	GroqTimeoutSecs int     `mapstructure:"GROQ_TIMEOUT_SECONDS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1")
	v.SetDefault("GROQ_MODEL", "llama-3.3-70b-versatile")
	v.SetDefault("GROQ_VISION_MODEL", "llama-3.2-90b-vision-preview")
	v.SetDefault("GROQ_MAX_TOKENS", 1024)
	v.SetDefault("GROQ_TEMPERATURE", 0.3)
	v.SetDefault("GROQ_TIMEOUT_SECONDS", 30)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("AUTH_DEV_SECRET")
	v.BindEnv("DEFAULT_TENANT")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("GROQ_API_KEY")
	v.BindEnv("GROQ_BASE_URL")
	v.BindEnv("GROQ_MODEL")
	v.BindEnv("GROQ_VISION_MODEL")
	v.BindEnv("GROQ_MAX_TOKENS")
	v.BindEnv("GROQ_TEMPERATURE")
	v.BindEnv("GROQ_TIMEOUT_SECONDS")

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
		log.Println("WARNING: DevAuthMiddleware is active — all requests get admin access.")
		log.Println("WARNING: Set ENV=production and configure AUTH_ISSUER for production.")
		log.Println("WARNING: ============================================================")
	}

	if cfg.GroqAPIKey == "" {
		log.Println("GROQ_API_KEY not set: AI triage will use the rule-based fallback classifier only.")
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

// GroqTimeout returns the bounded timeout applied to every classifier call.
// Triage must never block a clinical write indefinitely.
func (c *Config) GroqTimeout() time.Duration {
	if c.GroqTimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.GroqTimeoutSecs) * time.Second
}

// Validate checks that the configuration is safe to run. Outside development,
// either AUTH_ISSUER (external IdP) or AUTH_DEV_SECRET (HMAC tokens, staging
// only) must be configured so real JWT authentication is enforced.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthIssuer == "" && c.AuthDevSecret == "" {
		return fmt.Errorf(
			"AUTH_ISSUER must be set when ENV=%q. "+
				"Refusing to start without authentication configuration", c.Env)
	}
	if c.IsProduction() && c.AuthDevSecret != "" && c.AuthIssuer == "" {
		return fmt.Errorf("AUTH_DEV_SECRET alone is not permitted in production; configure AUTH_ISSUER")
	}
	if c.GroqTemperature < 0 || c.GroqTemperature > 2 {
		return fmt.Errorf("GROQ_TEMPERATURE must be in [0, 2], got %v", c.GroqTemperature)
	}
	return nil
}
