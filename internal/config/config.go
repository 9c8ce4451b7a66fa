package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	LogLevel            string
	SessionSecret       string
	DatabaseURL         string // postgres URL, or sqlite:<path> for local runs
	RedisURL            string
	JWTSecret           string
	JWTTTL              time.Duration
	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
	HealthAdminKey      string
	SendinblueAPIKey    string // Brevo key for transition emails; empty disables sending
	MailFrom            string
	AppBaseURL          string // base of project links in emails
	SupabaseURL         string // storage host for evidence uploads
	SupabaseSecretKey   string // service_role key, not anon key
	EvidenceBucket      string
	NotifyTimeout       time.Duration
	NotifyChannel       string
	CalcToleranceKg     decimal.Decimal
	DashboardCacheTTL   time.Duration
	TotalsSweepCron     string // empty disables the sweep
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_URL", "sqlite:ghg.db")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("JWT_TTL", "12h")
	v.SetDefault("MAIL_FROM", "noreply@example.com")
	v.SetDefault("APP_BASE_URL", "http://localhost:3000")
	v.SetDefault("EVIDENCE_BUCKET", "evidence")
	v.SetDefault("NOTIFY_TIMEOUT", "5s")
	v.SetDefault("NOTIFY_CHANNEL", "ghg:workflow:transitions")
	v.SetDefault("CALC_TOLERANCE_KG", "0.01")
	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")
	v.SetDefault("TOTALS_SWEEP_CRON", "0 */15 * * * *")
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	tolerance, err := decimal.NewFromString(v.GetString("CALC_TOLERANCE_KG"))
	if err != nil || !tolerance.IsPositive() {
		return nil, fmt.Errorf("CALC_TOLERANCE_KG must be a positive decimal, got %q", v.GetString("CALC_TOLERANCE_KG"))
	}
	durations := map[string]time.Duration{}
	for _, key := range []string{"JWT_TTL", "NOTIFY_TIMEOUT", "DASHBOARD_CACHE_TTL"} {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration, got %q", key, v.GetString(key))
		}
		durations[key] = d
	}
	cfg := &Config{
		Env:                 v.GetString("APP_ENV"),
		Port:                v.GetString("PORT"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		SessionSecret:       v.GetString("SESSION_SECRET"),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		RedisURL:            v.GetString("REDIS_URL"),
		JWTSecret:           v.GetString("JWT_SECRET"),
		JWTTTL:              durations["JWT_TTL"],
		FrontendURLEndsWith: v.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         v.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:   strings.EqualFold(v.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
		HealthAdminKey:      v.GetString("HEALTH_ADMIN_KEY"),
		SendinblueAPIKey:    v.GetString("SENDINBLUE_API_KEY"),
		MailFrom:            v.GetString("MAIL_FROM"),
		AppBaseURL:          strings.TrimRight(v.GetString("APP_BASE_URL"), "/"),
		SupabaseURL:         v.GetString("SUPABASE_URL"),
		SupabaseSecretKey:   v.GetString("SUPABASE_SECRET_KEY"),
		EvidenceBucket:      v.GetString("EVIDENCE_BUCKET"),
		NotifyTimeout:       durations["NOTIFY_TIMEOUT"],
		NotifyChannel:       v.GetString("NOTIFY_CHANNEL"),
		CalcToleranceKg:     tolerance,
		DashboardCacheTTL:   durations["DASHBOARD_CACHE_TTL"],
		TotalsSweepCron:     strings.TrimSpace(v.GetString("TOTALS_SWEEP_CRON")),
	}
	if cfg.IsProduction() && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}
	return cfg, nil
}
