// Package config loads process-wide settings from the environment and an
// optional config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

const (
	ProviderTogether = "together"
	ProviderGemini   = "gemini"
)

type Config struct {
	AppName  string
	AppEnv   string
	HTTPAddr string

	JWTSecret          string
	JWTExpiresIn       time.Duration
	JWTCookieExpiresIn int // days

	RedisURL string
	NATSURL  string

	PushEnabled       bool
	PushSubjectPrefix string

	Nudge Nudge

	LLMProvider     string
	TogetherAPIKey  string
	TogetherBaseURL string
	TogetherModel   string
	GeminiAPIKey    string
	GeminiModel     string
	LLMTimeout      time.Duration

	OTPBaseURL string
	OTPAPIKey  string

	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3PublicBaseURL string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	SecurityAlertsEnabled bool
	IPAPIBaseURL          string
}

// Nudge groups the re-engagement job knobs.
type Nudge struct {
	Enabled          bool
	SchedulerEnabled bool
	Interval         time.Duration
	MinInactiveHours int
	MaxPerDay        int
	BatchLimit       int
	LockTTL          time.Duration
	SkipProbability  float64
	JitterMin        time.Duration
	JitterMax        time.Duration
}

var defaults = map[string]any{
	"APP_NAME":                 "Clyra AI",
	"APP_ENV":                  "development",
	"HTTP_ADDR":                "0.0.0.0:8431",
	"JWT_EXPIRES_IN":           "2160h",
	"JWT_COOKIE_EXPIRES_IN":    90,
	"REDIS_URL":                "",
	"NATS_URL":                 "",
	"PUSH_ENABLED":             false,
	"PUSH_SUBJECT_PREFIX":      "push",
	"NUDGE_ENABLED":            false,
	"NUDGE_SCHEDULER_ENABLED":  false,
	"NUDGE_INTERVAL":           "1m",
	"NUDGE_MIN_INACTIVE_HOURS": 24,
	"NUDGE_MAX_PER_DAY":        1,
	"NUDGE_BATCH_LIMIT":        25,
	"NUDGE_LOCK_TTL":           "55s",
	"NUDGE_SKIP_PROBABILITY":   0.4,
	"NUDGE_JITTER_MIN":         "100ms",
	"NUDGE_JITTER_MAX":         "400ms",
	"LLM_PROVIDER":             ProviderTogether,
	"TOGETHER_BASE_URL":        "https://api.together.xyz/v1",
	"TOGETHER_MODEL":           "meta-llama/Llama-3.3-70B-Instruct-Turbo",
	"GEMINI_MODEL":             "gemini-2.0-flash",
	"LLM_TIMEOUT":              "20s",
	"OTP_BASE_URL":             "https://otp.orincore.com",
	"S3_REGION":                "us-east-1",
	"SMTP_PORT":                587,
	"SECURITY_ALERTS_ENABLED":  false,
	"IPAPI_BASE_URL":           "https://ipapi.co",
}

// Load reads configuration from v. Every key is bound to the environment
// variable of the same name; CONFIG_FILE optionally points at a file in any
// format viper understands. A missing file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	cfg := &Config{
		AppName:            v.GetString("APP_NAME"),
		AppEnv:             v.GetString("APP_ENV"),
		HTTPAddr:           v.GetString("HTTP_ADDR"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		JWTExpiresIn:       v.GetDuration("JWT_EXPIRES_IN"),
		JWTCookieExpiresIn: v.GetInt("JWT_COOKIE_EXPIRES_IN"),
		RedisURL:           v.GetString("REDIS_URL"),
		NATSURL:            v.GetString("NATS_URL"),
		PushEnabled:        v.GetBool("PUSH_ENABLED"),
		PushSubjectPrefix:  v.GetString("PUSH_SUBJECT_PREFIX"),
		Nudge: Nudge{
			Enabled:          v.GetBool("NUDGE_ENABLED"),
			SchedulerEnabled: v.GetBool("NUDGE_SCHEDULER_ENABLED"),
			Interval:         v.GetDuration("NUDGE_INTERVAL"),
			MinInactiveHours: v.GetInt("NUDGE_MIN_INACTIVE_HOURS"),
			MaxPerDay:        v.GetInt("NUDGE_MAX_PER_DAY"),
			BatchLimit:       v.GetInt("NUDGE_BATCH_LIMIT"),
			LockTTL:          v.GetDuration("NUDGE_LOCK_TTL"),
			SkipProbability:  v.GetFloat64("NUDGE_SKIP_PROBABILITY"),
			JitterMin:        v.GetDuration("NUDGE_JITTER_MIN"),
			JitterMax:        v.GetDuration("NUDGE_JITTER_MAX"),
		},
		LLMProvider:           v.GetString("LLM_PROVIDER"),
		TogetherAPIKey:        v.GetString("TOGETHER_API_KEY"),
		TogetherBaseURL:       v.GetString("TOGETHER_BASE_URL"),
		TogetherModel:         v.GetString("TOGETHER_MODEL"),
		GeminiAPIKey:          v.GetString("GEMINI_API_KEY"),
		GeminiModel:           v.GetString("GEMINI_MODEL"),
		LLMTimeout:            v.GetDuration("LLM_TIMEOUT"),
		OTPBaseURL:            v.GetString("OTP_BASE_URL"),
		OTPAPIKey:             v.GetString("OTP_API_KEY"),
		S3Bucket:              v.GetString("S3_BUCKET"),
		S3Region:              v.GetString("S3_REGION"),
		S3Endpoint:            v.GetString("S3_ENDPOINT"),
		S3PublicBaseURL:       v.GetString("S3_PUBLIC_BASE_URL"),
		SMTPHost:              v.GetString("SMTP_HOST"),
		SMTPPort:              v.GetInt("SMTP_PORT"),
		SMTPUser:              v.GetString("SMTP_USER"),
		SMTPPass:              v.GetString("SMTP_PASS"),
		SMTPFrom:              v.GetString("SMTP_FROM"),
		SecurityAlertsEnabled: v.GetBool("SECURITY_ALERTS_ENABLED"),
		IPAPIBaseURL:          v.GetString("IPAPI_BASE_URL"),
	}
	if cfg.Nudge.JitterMax < cfg.Nudge.JitterMin {
		cfg.Nudge.JitterMax = cfg.Nudge.JitterMin
	}
	return cfg, nil
}

// Validate reports settings the HTTP server cannot start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.LLMProvider {
	case ProviderTogether, ProviderGemini:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	if c.Nudge.SkipProbability < 0 || c.Nudge.SkipProbability > 1 {
		return fmt.Errorf("NUDGE_SKIP_PROBABILITY must be within [0,1], got %v", c.Nudge.SkipProbability)
	}
	if c.Nudge.LockTTL <= 0 {
		return fmt.Errorf("NUDGE_LOCK_TTL must be positive, got %v", c.Nudge.LockTTL)
	}
	if c.Nudge.BatchLimit <= 0 {
		return fmt.Errorf("NUDGE_BATCH_LIMIT must be positive, got %d", c.Nudge.BatchLimit)
	}
	if c.Nudge.MinInactiveHours <= 0 {
		return fmt.Errorf("NUDGE_MIN_INACTIVE_HOURS must be positive, got %d", c.Nudge.MinInactiveHours)
	}
	return nil
}

// Production reports whether cookies should be marked Secure.
func (c *Config) Production() bool { return c.AppEnv == "production" }
