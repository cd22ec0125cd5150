package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Mongo     MongoSettings     `mapstructure:"mongo"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	Auth      AuthSettings      `mapstructure:"auth"`
	Cookie    CookieSettings    `mapstructure:"cookie"`
	SMTP      SMTPSettings      `mapstructure:"smtp"`
	Frontend  FrontendSettings  `mapstructure:"frontend"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
	Password  PasswordSettings  `mapstructure:"password"`
}

type AppSettings struct {
	Name         string   `mapstructure:"name"`
	Env          string   `mapstructure:"env"`
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	DeviceHeader string   `mapstructure:"device_header"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	AutoMigrate       bool          `mapstructure:"auto_migrate"`
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// KafkaSettings configures the Kafka producer. With Enabled false events are only logged.
type KafkaSettings struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	// ClientID defaults to app.name.
	ClientID string `mapstructure:"client_id"`
	// RequiredAcks is one of "all", "local" or "none".
	RequiredAcks string `mapstructure:"required_acks"`
	// Idempotent enables exactly-once delivery per partition and forces acks=all.
	Idempotent bool `mapstructure:"idempotent"`
	MaxRetries int  `mapstructure:"max_retries"`
}

// MongoSettings configures the chat user directory.
type MongoSettings struct {
	Enabled         bool          `mapstructure:"enabled"`
	URI             string        `mapstructure:"uri"`
	Database        string        `mapstructure:"database"`
	UsersCollection string        `mapstructure:"users_collection"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

type JWTSettings struct {
	Algorithm       string        `mapstructure:"algorithm"`
	Secret          string        `mapstructure:"secret"`
	KeyDirectory    string        `mapstructure:"key_directory"`
	Issuer          string        `mapstructure:"issuer"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// AuthSettings carries the verification policy windows.
type AuthSettings struct {
	CodeTTL     time.Duration `mapstructure:"code_ttl"`
	TrustWindow time.Duration `mapstructure:"trust_window"`
	CodeLength  int           `mapstructure:"code_length"`
}

// SiteCookieSettings names the cookie pair used by one front-end.
type SiteCookieSettings struct {
	Access  string `mapstructure:"access"`
	Refresh string `mapstructure:"refresh"`
}

type CookieSettings struct {
	Secure        bool                          `mapstructure:"secure"`
	Domain        string                        `mapstructure:"domain"`
	SameSite      string                        `mapstructure:"same_site"`
	AccessMaxAge  time.Duration                 `mapstructure:"access_max_age"`
	RefreshMaxAge time.Duration                 `mapstructure:"refresh_max_age"`
	Default       SiteCookieSettings            `mapstructure:"default"`
	Sites         map[string]SiteCookieSettings `mapstructure:"sites"`
}

type SMTPSettings struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	MailFrom string        `mapstructure:"mail_from"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// FrontendSettings holds the page base URLs used in reset links.
type FrontendSettings struct {
	UserPage  string `mapstructure:"user_page"`
	AdminPage string `mapstructure:"admin_page"`
}

type TelemetrySettings struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// RateLimitSettings configures rate limiting windows and max attempts per endpoint
type RateLimitSettings struct {
	WindowDuration           time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts         int           `mapstructure:"login_max_attempts"`
	RegisterMaxAttempts      int           `mapstructure:"register_max_attempts"`
	RefreshMaxAttempts       int           `mapstructure:"refresh_max_attempts"`
	PasswordResetMaxAttempts int           `mapstructure:"password_reset_max_attempts"`
	TwoFactorMaxAttempts     int           `mapstructure:"two_factor_max_attempts"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type PasswordSettings struct {
	MinLength        int `mapstructure:"min_length"`
	MinStrengthScore int `mapstructure:"min_strength_score"`
}

var envKeys = []string{
	"app.name",
	"app.env",
	"app.host",
	"app.port",
	"app.device_header",
	"app.cors_origins",
	"postgres.host",
	"postgres.port",
	"postgres.user",
	"postgres.password",
	"postgres.database",
	"postgres.ssl_mode",
	"postgres.max_conns",
	"postgres.min_conns",
	"postgres.max_conn_lifetime",
	"postgres.max_conn_idle_time",
	"postgres.health_check_period",
	"postgres.auto_migrate",
	"redis.host",
	"redis.port",
	"redis.db",
	"redis.password",
	"redis.tls_enabled",
	"redis.key_prefix",
	"kafka.enabled",
	"kafka.brokers",
	"kafka.topic_prefix",
	"kafka.client_id",
	"kafka.required_acks",
	"kafka.idempotent",
	"kafka.max_retries",
	"mongo.enabled",
	"mongo.uri",
	"mongo.database",
	"mongo.users_collection",
	"mongo.connect_timeout",
	"jwt.algorithm",
	"jwt.secret",
	"jwt.key_directory",
	"jwt.issuer",
	"jwt.access_token_ttl",
	"jwt.refresh_token_ttl",
	"auth.code_ttl",
	"auth.trust_window",
	"auth.code_length",
	"cookie.secure",
	"cookie.domain",
	"cookie.same_site",
	"cookie.access_max_age",
	"cookie.refresh_max_age",
	"smtp.enabled",
	"smtp.host",
	"smtp.port",
	"smtp.username",
	"smtp.password",
	"smtp.mail_from",
	"smtp.timeout",
	"frontend.user_page",
	"frontend.admin_page",
	"telemetry.tracing_enabled",
	"telemetry.otlp_endpoint",
	"telemetry.service_name",
	"telemetry.sampling_rate",
	"rate_limit.window_duration",
	"rate_limit.login_max_attempts",
	"rate_limit.register_max_attempts",
	"rate_limit.refresh_max_attempts",
	"rate_limit.password_reset_max_attempts",
	"rate_limit.two_factor_max_attempts",
	"argon2.memory",
	"argon2.iterations",
	"argon2.parallelism",
	"argon2.salt_length",
	"argon2.key_length",
	"password.min_length",
	"password.min_strength_score",
}

// Load reads configuration from defaults, an optional config.yaml and the environment.
func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("ACCOUNT")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := bindEnvs(v, envKeys); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *AppConfig) Validate() error {
	if strings.EqualFold(c.JWT.Algorithm, "HS256") && len(c.JWT.Secret) < 32 {
		return errors.New("config: jwt.secret must be at least 32 bytes for HS256")
	}
	if c.Auth.CodeLength < 4 || c.Auth.CodeLength > 10 {
		return fmt.Errorf("config: auth.code_length must be between 4 and 10, got %d", c.Auth.CodeLength)
	}
	if c.Auth.CodeTTL <= 0 || c.Auth.TrustWindow <= 0 {
		return errors.New("config: auth.code_ttl and auth.trust_window must be positive")
	}
	switch strings.ToLower(c.Kafka.RequiredAcks) {
	case "", "all", "local", "none":
	default:
		return fmt.Errorf("config: kafka.required_acks must be all, local or none, got %q", c.Kafka.RequiredAcks)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "chat-account-api")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.device_header", "User-Agent")
	v.SetDefault("app.cors_origins", []string{"http://localhost:3000", "http://localhost:3001"})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "chat")
	v.SetDefault("postgres.password", "chat_password")
	v.SetDefault("postgres.database", "chat")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")
	v.SetDefault("postgres.auto_migrate", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.key_prefix", "account")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "account")
	v.SetDefault("kafka.client_id", "")
	v.SetDefault("kafka.required_acks", "all")
	v.SetDefault("kafka.idempotent", true)
	v.SetDefault("kafka.max_retries", 5)

	v.SetDefault("mongo.enabled", false)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "chat")
	v.SetDefault("mongo.users_collection", "users")
	v.SetDefault("mongo.connect_timeout", "10s")

	v.SetDefault("jwt.algorithm", "HS256")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.key_directory", "./secrets")
	v.SetDefault("jwt.issuer", "chat-account-api")
	v.SetDefault("jwt.access_token_ttl", "15m")
	v.SetDefault("jwt.refresh_token_ttl", "168h")

	v.SetDefault("auth.code_ttl", "2m")
	v.SetDefault("auth.trust_window", "168h")
	v.SetDefault("auth.code_length", 6)

	v.SetDefault("cookie.secure", false)
	v.SetDefault("cookie.domain", "")
	v.SetDefault("cookie.same_site", "lax")
	v.SetDefault("cookie.access_max_age", "10m")
	v.SetDefault("cookie.refresh_max_age", "168h")
	v.SetDefault("cookie.default.access", "accessToken")
	v.SetDefault("cookie.default.refresh", "refreshToken")
	v.SetDefault("cookie.sites", map[string]any{
		"user":  map[string]any{"access": "access-token-user", "refresh": "refresh-token-user"},
		"admin": map[string]any{"access": "access-token-admin", "refresh": "refresh-token-admin"},
	})

	v.SetDefault("smtp.enabled", false)
	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.mail_from", "no-reply@mail.work")
	v.SetDefault("smtp.timeout", "15s")

	v.SetDefault("frontend.user_page", "http://localhost:3001")
	v.SetDefault("frontend.admin_page", "http://localhost:3000")

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "chat-account-api")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 5)
	v.SetDefault("rate_limit.register_max_attempts", 3)
	v.SetDefault("rate_limit.refresh_max_attempts", 10)
	v.SetDefault("rate_limit.password_reset_max_attempts", 3)
	v.SetDefault("rate_limit.two_factor_max_attempts", 5)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("password.min_length", 6)
	v.SetDefault("password.min_strength_score", 0)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "ACCOUNT_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
