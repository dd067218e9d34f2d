package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	Provider ProviderConfig
	Poll     PollConfig
	Auth     AuthConfig
	Upload   UploadConfig
	Redis    RedisConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// ProviderConfig covers the voice-AI calling provider.
type ProviderConfig struct {
	// BaseURL overrides the provider endpoint; empty means the provider
	// default. Useful for tests and proxies.
	BaseURL string

	APIKey      string
	AssistantID string

	// AgentNumber is the outbound caller number owned by the provider
	// account, in E.164. Resolved to a provider phone-number id at startup.
	AgentNumber string

	VoiceID string
	Timeout time.Duration
}

// PollConfig controls how the server watches in-flight calls.
type PollConfig struct {
	Interval time.Duration
	Backoff  time.Duration
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

type UploadConfig struct {
	// Dir is where screenshot attachments are written.
	Dir string
}

// RedisConfig is optional; when Host is empty the concurrent-call cap is
// disabled and the server runs fully in-process.
type RedisConfig struct {
	Host string
	Port int

	// MaxActiveCalls caps simultaneously active provider calls.
	MaxActiveCalls int
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.Provider.BaseURL = strings.TrimSpace(os.Getenv("VAPI_BASE_URL"))
	c.Provider.APIKey = os.Getenv("VAPI_API_KEY")
	c.Provider.AssistantID = strings.TrimSpace(os.Getenv("VAPI_ASSISTANT_ID"))
	c.Provider.AgentNumber = strings.TrimSpace(os.Getenv("AGENT_PHONE_NUMBER"))
	c.Provider.VoiceID = strings.TrimSpace(os.Getenv("VAPI_VOICE_ID"))
	{
		d, err := optionalDuration("VAPI_TIMEOUT")
		d, parseErrs = appendDurationErr(parseErrs, d, err)
		c.Provider.Timeout = d
	}

	{
		d, err := optionalDuration("POLL_INTERVAL")
		d, parseErrs = appendDurationErr(parseErrs, d, err)
		c.Poll.Interval = d
	}
	{
		d, err := optionalDuration("POLL_BACKOFF")
		d, parseErrs = appendDurationErr(parseErrs, d, err)
		c.Poll.Backoff = d
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied downstream.
	{
		d, err := optionalDuration("JWT_ACCESS_TTL")
		d, parseErrs = appendDurationErr(parseErrs, d, err)
		c.Auth.AccessTokenTTL = d
	}

	c.Upload.Dir = strings.TrimSpace(os.Getenv("UPLOAD_DIR"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if c.Redis.Host != "" {
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}
	if v := strings.TrimSpace(os.Getenv("MAX_ACTIVE_CALLS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("MAX_ACTIVE_CALLS must be an integer, got %q", v))
		}
		c.Redis.MaxActiveCalls = n
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.Provider.APIKey == "" {
		errs = append(errs, errors.New("VAPI_API_KEY is required"))
	}
	if c.Provider.AssistantID == "" {
		errs = append(errs, errors.New("VAPI_ASSISTANT_ID is required"))
	}
	if c.Provider.AgentNumber == "" {
		errs = append(errs, errors.New("AGENT_PHONE_NUMBER is required"))
	} else if !strings.HasPrefix(c.Provider.AgentNumber, "+") {
		errs = append(errs, fmt.Errorf("AGENT_PHONE_NUMBER must be E.164, got %q", c.Provider.AgentNumber))
	}
	if c.Provider.Timeout < 0 {
		errs = append(errs, errors.New("VAPI_TIMEOUT must not be negative"))
	}

	if c.Poll.Interval < 0 || c.Poll.Backoff < 0 {
		errs = append(errs, errors.New("POLL_INTERVAL and POLL_BACKOFF must not be negative"))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	if c.Redis.Host != "" {
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
		if c.Redis.MaxActiveCalls < 0 {
			errs = append(errs, errors.New("MAX_ACTIVE_CALLS must not be negative"))
		}
	}

	return joinErrors(errs)
}

// Defaults for optional knobs, applied after Validate.

func (c ProviderConfig) EffectiveVoiceID() string {
	if c.VoiceID == "" {
		return "jennifer"
	}
	return c.VoiceID
}

func (c UploadConfig) EffectiveDir() string {
	if c.Dir == "" {
		return "uploads"
	}
	return c.Dir
}

func (c RedisConfig) Enabled() bool { return c.Host != "" }

func (c RedisConfig) EffectiveMaxActiveCalls() int {
	if c.MaxActiveCalls <= 0 {
		return 3
	}
	return c.MaxActiveCalls
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

// optionalDuration reads a duration env var; unset is fine, malformed is not.
func optionalDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. 2s), got %q", key, v)
	}
	return d, nil
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func appendDurationErr(errs []error, d time.Duration, err error) (time.Duration, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return d, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
