package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the broker process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App    AppConfig
	DB     DBConfig
	Redis  RedisConfig
	Twilio TwilioConfig
	Push   PushConfig
	Call   CallConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for AWS-ready posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string

	// FromNumber is the default caller id (E.164) for outbound calls.
	FromNumber string

	// CallbackBaseURL is the public base URL Twilio uses to reach our webhooks.
	CallbackBaseURL string

	// VoiceURL is the TwiML document executed when an outbound callee answers.
	// Defaults to our own answer webhook.
	VoiceURL string
}

type PushConfig struct {
	// FCMEndpoint is overridable for tests; default applied in Validate().
	FCMEndpoint  string
	FCMServerKey string
}

type CallConfig struct {
	// NoAnswerTimeout is how long an inbound call may ring before the broker
	// marks it no-answer unilaterally.
	NoAnswerTimeout time.Duration

	// PlacementTimeout bounds the outbound call-placement request to the provider.
	PlacementTimeout time.Duration

	// MaxActivePerUser caps concurrent outbound calls per user (0 disables the cap).
	MaxActivePerUser int
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

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.FromNumber = strings.TrimSpace(os.Getenv("TWILIO_FROM_NUMBER"))
	c.Twilio.CallbackBaseURL = strings.TrimSpace(os.Getenv("TWILIO_CALLBACK_BASE_URL"))
	c.Twilio.VoiceURL = strings.TrimSpace(os.Getenv("TWILIO_VOICE_URL"))

	c.Push.FCMEndpoint = strings.TrimSpace(os.Getenv("FCM_ENDPOINT"))
	c.Push.FCMServerKey = os.Getenv("FCM_SERVER_KEY")

	// Duration env vars are optional; defaults applied in Validate().
	{
		d, err := optionalDuration("CALL_NO_ANSWER_TIMEOUT")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Call.NoAnswerTimeout = d
	}
	{
		d, err := optionalDuration("CALL_PLACEMENT_TIMEOUT")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Call.PlacementTimeout = d
	}
	{
		v := strings.TrimSpace(os.Getenv("CALL_MAX_ACTIVE_PER_USER"))
		if v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				parseErrs = append(parseErrs, fmt.Errorf("CALL_MAX_ACTIVE_PER_USER must be an integer, got %q", v))
			}
			c.Call.MaxActivePerUser = n
		}
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Twilio.AccountSID == "" {
		errs = append(errs, errors.New("TWILIO_ACCOUNT_SID is required"))
	}
	if c.Twilio.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required"))
	}
	if c.Twilio.FromNumber == "" {
		errs = append(errs, errors.New("TWILIO_FROM_NUMBER is required"))
	}
	if c.Twilio.CallbackBaseURL == "" {
		errs = append(errs, errors.New("TWILIO_CALLBACK_BASE_URL is required"))
	} else if !strings.HasPrefix(c.Twilio.CallbackBaseURL, "http://") && !strings.HasPrefix(c.Twilio.CallbackBaseURL, "https://") {
		errs = append(errs, fmt.Errorf("TWILIO_CALLBACK_BASE_URL must be an http(s) URL, got %q", c.Twilio.CallbackBaseURL))
	}

	if c.Twilio.VoiceURL == "" && c.Twilio.CallbackBaseURL != "" {
		c.Twilio.VoiceURL = strings.TrimRight(c.Twilio.CallbackBaseURL, "/") + "/webhooks/twilio/answer"
	}

	// Push is optional outside production: the broker degrades to live-connection
	// delivery only when FCM is not configured.
	if c.IsProduction() && c.Push.FCMServerKey == "" {
		errs = append(errs, errors.New("FCM_SERVER_KEY is required in production"))
	}
	if c.Push.FCMEndpoint == "" {
		c.Push.FCMEndpoint = "https://fcm.googleapis.com/fcm/send"
	}

	if c.Call.NoAnswerTimeout <= 0 {
		c.Call.NoAnswerTimeout = 20 * time.Second
	}
	if c.Call.PlacementTimeout <= 0 {
		c.Call.PlacementTimeout = 15 * time.Second
	}
	if c.Call.MaxActivePerUser < 0 {
		errs = append(errs, fmt.Errorf("CALL_MAX_ACTIVE_PER_USER must be >= 0, got %d", c.Call.MaxActivePerUser))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// StatusCallbackURL is where Twilio posts call status updates.
func (c Config) StatusCallbackURL() string {
	return strings.TrimRight(c.Twilio.CallbackBaseURL, "/") + "/webhooks/twilio/status"
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

func optionalDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 20s, got %q", key, v)
	}
	return d, nil
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
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
