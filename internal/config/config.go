// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"reflect"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/gitlab"

	"taiga-telemetry/internal/scheduler"
)

// DefaultRudderWriteKey is the write key of the public Taiga telemetry source.
const DefaultRudderWriteKey = "1kmTTxJoSmaZNRpU1uORpyZ8mqv"

// Config holds application configuration loaded from the environment.
type Config struct {
	// DatabaseURL is a full Postgres DSN. When set it wins over the POSTGRES_* parts.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// PostgresDB is the database name of the Taiga schema.
	PostgresDB string `mapstructure:"POSTGRES_DB"`
	// PostgresUser is the database role used for the read-only aggregates and the instance row.
	PostgresUser string `mapstructure:"POSTGRES_USER"`
	// PostgresPassword may be empty (e.g. trust or peer auth).
	PostgresPassword string `mapstructure:"POSTGRES_PASSWORD"`
	// PostgresHost is the database host (docker service name in the stock compose file).
	PostgresHost string `mapstructure:"POSTGRES_HOST"`
	PostgresPort int    `mapstructure:"POSTGRES_PORT"`
	// PostgresSSLMode is passed as sslmode in the DSN (default disable).
	PostgresSSLMode string `mapstructure:"POSTGRES_SSLMODE"`

	// SecretKey is the application secret; only checked for presence here.
	SecretKey string `mapstructure:"TAIGA_SECRET_KEY"`
	// SitesScheme is http or https.
	SitesScheme string `mapstructure:"TAIGA_SITES_SCHEME"`
	// SitesDomain is the public host (and optional port) of the installation.
	SitesDomain string `mapstructure:"TAIGA_SITES_DOMAIN"`

	EnableEmail       bool   `mapstructure:"ENABLE_EMAIL"`
	DefaultFromEmail  string `mapstructure:"DEFAULT_FROM_EMAIL"`
	EmailUseTLS       bool   `mapstructure:"EMAIL_USE_TLS"`
	EmailUseSSL       bool   `mapstructure:"EMAIL_USE_SSL"`
	EmailHost         string `mapstructure:"EMAIL_HOST"`
	EmailPort         int    `mapstructure:"EMAIL_PORT"`
	EmailHostUser     string `mapstructure:"EMAIL_HOST_USER"`
	EmailHostPassword string `mapstructure:"EMAIL_HOST_PASSWORD"`

	// RabbitMQ credentials shared by the events and async brokers.
	RabbitMQUser       string `mapstructure:"RABBITMQ_USER"`
	RabbitMQPass       string `mapstructure:"RABBITMQ_PASS"`
	RabbitMQVHost      string `mapstructure:"RABBITMQ_VHOST"`
	EventsRabbitMQHost string `mapstructure:"EVENTS_RABBITMQ_HOST"`
	AsyncRabbitMQHost  string `mapstructure:"ASYNC_RABBITMQ_HOST"`

	GitHubClientID     string `mapstructure:"GITHUB_API_CLIENT_ID"`
	GitHubClientSecret string `mapstructure:"GITHUB_API_CLIENT_SECRET"`
	GitLabClientID     string `mapstructure:"GITLAB_API_CLIENT_ID"`
	GitLabClientSecret string `mapstructure:"GITLAB_API_CLIENT_SECRET"`
	// GitLabURL is the base URL of a self-hosted GitLab; empty means gitlab.com.
	GitLabURL string `mapstructure:"GITLAB_URL"`

	// EnableTelemetry turns the daily report on or off (default true).
	EnableTelemetry bool `mapstructure:"ENABLE_TELEMETRY"`
	// RudderWriteKey authenticates against the RudderStack data plane.
	RudderWriteKey string `mapstructure:"RUDDER_WRITE_KEY"`
	// RudderDataPlaneURL is the base URL of the RudderStack data plane.
	RudderDataPlaneURL string `mapstructure:"RUDDER_DATA_PLANE_URL"`
	// TelemetrySchedule is a cron expression or descriptor (e.g. "@daily", "0 3 * * *").
	TelemetrySchedule string `mapstructure:"TELEMETRY_SCHEDULE"`
	// TelemetryTimezone is the IANA zone used for the schedule and for "today" metrics.
	TelemetryTimezone string `mapstructure:"TELEMETRY_TIMEZONE"`

	// Optional mirrors. When Kafka brokers are set, each report is also written to TelemetryKafkaTopic.
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	TelemetryKafkaTopic   string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group of the relay that forwards the Kafka mirror to Loki.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL, when set, receives each report as a log line (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`

	// OTLPEndpoint is the OTLP gRPC collector; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// HealthAddr is the listen address of the gRPC health endpoint; empty disables it.
	HealthAddr string `mapstructure:"HEALTH_ADDR"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	location *time.Location
}

// Site describes one public site of the installation (api or front).
type Site struct {
	Domain string `json:"domain"`
	Scheme string `json:"scheme"`
	Name   string `json:"name"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are missing or invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	// Unmarshal only sees keys viper knows about, so every key gets a default.
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("POSTGRES_DB", "")
	v.SetDefault("POSTGRES_USER", "")
	v.SetDefault("POSTGRES_PASSWORD", "")
	v.SetDefault("POSTGRES_HOST", "")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("TAIGA_SECRET_KEY", "")
	v.SetDefault("TAIGA_SITES_SCHEME", "http")
	v.SetDefault("TAIGA_SITES_DOMAIN", "")
	v.SetDefault("ENABLE_EMAIL", false)
	v.SetDefault("DEFAULT_FROM_EMAIL", "system@taiga.io")
	v.SetDefault("EMAIL_USE_TLS", false)
	v.SetDefault("EMAIL_USE_SSL", false)
	v.SetDefault("EMAIL_HOST", "localhost")
	v.SetDefault("EMAIL_PORT", 587)
	v.SetDefault("EMAIL_HOST_USER", "user")
	v.SetDefault("EMAIL_HOST_PASSWORD", "password")
	v.SetDefault("RABBITMQ_USER", "")
	v.SetDefault("RABBITMQ_PASS", "")
	v.SetDefault("RABBITMQ_VHOST", "taiga")
	v.SetDefault("EVENTS_RABBITMQ_HOST", "taiga-events-rabbitmq")
	v.SetDefault("ASYNC_RABBITMQ_HOST", "taiga-async-rabbitmq")
	v.SetDefault("GITHUB_API_CLIENT_ID", "")
	v.SetDefault("GITHUB_API_CLIENT_SECRET", "")
	v.SetDefault("GITLAB_API_CLIENT_ID", "")
	v.SetDefault("GITLAB_API_CLIENT_SECRET", "")
	v.SetDefault("GITLAB_URL", "")
	v.SetDefault("ENABLE_TELEMETRY", true)
	v.SetDefault("RUDDER_WRITE_KEY", DefaultRudderWriteKey)
	v.SetDefault("RUDDER_DATA_PLANE_URL", "https://hosted.rudderlabs.com")
	v.SetDefault("TELEMETRY_SCHEDULE", "@daily")
	v.SetDefault("TELEMETRY_TIMEZONE", "Europe/Madrid")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "taiga-telemetry")
	v.SetDefault("KAFKA_GROUP_ID", "taiga-telemetry-relay")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("HEALTH_ADDR", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	var cfg Config
	decode := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		stringToFlagHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decode); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseFlag reports whether an env flag is on. Only "true" in any case counts;
// every other value, including "1", "yes" and "on", turns the flag off.
func ParseFlag(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}

// stringToFlagHookFunc decodes string values into bool fields with ParseFlag,
// so an unexpected value disables a feature instead of failing Load.
func stringToFlagHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Bool {
			return data, nil
		}
		return ParseFlag(reflect.ValueOf(data).String()), nil
	}
}

func (c *Config) validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		if c.PostgresDB == "" {
			missing = append(missing, "POSTGRES_DB")
		}
		if c.PostgresUser == "" {
			missing = append(missing, "POSTGRES_USER")
		}
		if c.PostgresHost == "" {
			missing = append(missing, "POSTGRES_HOST")
		}
	}
	if c.SecretKey == "" {
		missing = append(missing, "TAIGA_SECRET_KEY")
	}
	if c.SitesDomain == "" {
		missing = append(missing, "TAIGA_SITES_DOMAIN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: %s must be set", strings.Join(missing, ", "))
	}

	if c.SitesScheme != "http" && c.SitesScheme != "https" {
		return fmt.Errorf("config: TAIGA_SITES_SCHEME must be http or https, got %q", c.SitesScheme)
	}
	if c.PostgresPort <= 0 || c.PostgresPort > 65535 {
		return errors.New("config: POSTGRES_PORT must be between 1 and 65535")
	}

	loc, err := time.LoadLocation(c.TelemetryTimezone)
	if err != nil {
		return fmt.Errorf("config: TELEMETRY_TIMEZONE: %w", err)
	}
	c.location = loc

	if err := scheduler.Validate(c.TelemetrySchedule); err != nil {
		return fmt.Errorf("config: TELEMETRY_SCHEDULE: %w", err)
	}

	if c.EnableTelemetry {
		if c.RudderWriteKey == "" {
			return errors.New("config: RUDDER_WRITE_KEY must be set when ENABLE_TELEMETRY is true")
		}
		if _, err := url.ParseRequestURI(c.RudderDataPlaneURL); err != nil {
			return fmt.Errorf("config: RUDDER_DATA_PLANE_URL: %w", err)
		}
	}
	return nil
}

// DSN returns the Postgres connection string. DATABASE_URL wins when set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.PostgresHost, fmt.Sprint(c.PostgresPort)),
		Path:   "/" + c.PostgresDB,
	}
	if c.PostgresPassword != "" {
		u.User = url.UserPassword(c.PostgresUser, c.PostgresPassword)
	} else {
		u.User = url.User(c.PostgresUser)
	}
	q := url.Values{}
	q.Set("sslmode", c.PostgresSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// TaigaURL is the public base URL, e.g. https://taiga.example.com.
func (c *Config) TaigaURL() string {
	return fmt.Sprintf("%s://%s", c.SitesScheme, c.SitesDomain)
}

func (c *Config) MediaURL() string  { return c.TaigaURL() + "/media/" }
func (c *Config) StaticURL() string { return c.TaigaURL() + "/static/" }

// Sites returns the api and front site records; both share the same domain and scheme.
func (c *Config) Sites() map[string]Site {
	return map[string]Site{
		"api":   {Domain: c.SitesDomain, Scheme: c.SitesScheme, Name: "api"},
		"front": {Domain: c.SitesDomain, Scheme: c.SitesScheme, Name: "front"},
	}
}

// EmailBackend is "smtp" when ENABLE_EMAIL is true and "console" otherwise.
func (c *Config) EmailBackend() string {
	if c.EnableEmail {
		return "smtp"
	}
	return "console"
}

// EventsBrokerURL is the amqp URL of the events push broker.
func (c *Config) EventsBrokerURL() string {
	return c.amqpURL(c.EventsRabbitMQHost)
}

// CeleryBrokerURL is the amqp URL of the async task broker.
func (c *Config) CeleryBrokerURL() string {
	return c.amqpURL(c.AsyncRabbitMQHost)
}

func (c *Config) amqpURL(host string) string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.RabbitMQUser, c.RabbitMQPass),
		Host:   net.JoinHostPort(host, "5672"),
		Path:   "/" + c.RabbitMQVHost,
	}
	return u.String()
}

// GitHubOAuth returns the OAuth2 client config for GitHub login, or nil when no client id is configured.
func (c *Config) GitHubOAuth() *oauth2.Config {
	if c.GitHubClientID == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     c.GitHubClientID,
		ClientSecret: c.GitHubClientSecret,
		Endpoint:     github.Endpoint,
		Scopes:       []string{"user:email"},
	}
}

// GitLabOAuth returns the OAuth2 client config for GitLab login, or nil when no client id is configured.
// Endpoints point at GITLAB_URL when set and at gitlab.com otherwise.
func (c *Config) GitLabOAuth() *oauth2.Config {
	if c.GitLabClientID == "" {
		return nil
	}
	endpoint := gitlab.Endpoint
	if base := strings.TrimSuffix(strings.TrimSpace(c.GitLabURL), "/"); base != "" {
		endpoint = oauth2.Endpoint{
			AuthURL:  base + "/oauth/authorize",
			TokenURL: base + "/oauth/token",
		}
	}
	return &oauth2.Config{
		ClientID:     c.GitLabClientID,
		ClientSecret: c.GitLabClientSecret,
		Endpoint:     endpoint,
		Scopes:       []string{"read_user"},
	}
}

// Location returns the parsed TELEMETRY_TIMEZONE. Falls back to UTC on a Config not built by Load.
func (c *Config) Location() *time.Location {
	if c == nil || c.location == nil {
		return time.UTC
	}
	return c.location
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list disables the Kafka mirror.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

const redacted = "********"

// Redacted returns the resolved settings with secrets masked, for display.
func (c *Config) Redacted() map[string]any {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return redacted
	}
	dsn := c.DSN()
	if u, err := url.Parse(dsn); err == nil {
		dsn = u.Redacted()
	}
	return map[string]any{
		"database": map[string]any{
			"dsn": dsn,
		},
		"sites":      c.Sites(),
		"taiga_url":  c.TaigaURL(),
		"media_url":  c.MediaURL(),
		"static_url": c.StaticURL(),
		"secret_key": mask(c.SecretKey),
		"email": map[string]any{
			"backend":  c.EmailBackend(),
			"from":     c.DefaultFromEmail,
			"host":     c.EmailHost,
			"port":     c.EmailPort,
			"use_tls":  c.EmailUseTLS,
			"use_ssl":  c.EmailUseSSL,
			"user":     c.EmailHostUser,
			"password": mask(c.EmailHostPassword),
		},
		"brokers": map[string]any{
			"events": redactURL(c.EventsBrokerURL()),
			"celery": redactURL(c.CeleryBrokerURL()),
		},
		"oauth": map[string]any{
			"github_enabled": c.GitHubOAuth() != nil,
			"gitlab_enabled": c.GitLabOAuth() != nil,
			"gitlab_url":     c.GitLabURL,
		},
		"telemetry": map[string]any{
			"enabled":        c.EnableTelemetry,
			"data_plane_url": c.RudderDataPlaneURL,
			"write_key":      mask(c.RudderWriteKey),
			"schedule":       c.TelemetrySchedule,
			"timezone":       c.TelemetryTimezone,
			"kafka_brokers":  c.KafkaBrokersList(),
			"kafka_topic":    c.TelemetryKafkaTopic,
			"kafka_group_id": c.KafkaGroupID,
			"loki_url":       c.LokiURL,
		},
	}
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return redacted
	}
	return u.Redacted()
}
