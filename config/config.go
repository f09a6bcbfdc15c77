// Package config holds the Bookshelf service configuration, loaded from the
// process environment and validated before the service starts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/bookshelf/errors"
)

// envPrefix is the prefix for all Bookshelf environment variables
const envPrefix = "BOOKSHELF_"

// Config is the top-level service configuration
type Config struct {
	Server ServerConfig `json:"server"`
	Mongo  MongoConfig  `json:"mongo"`
	NATS   NATSConfig   `json:"nats"`
	Auth   AuthConfig   `json:"auth"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	// BindAddress is the HTTP bind address (default: ":8080")
	BindAddress string `json:"bind_address"`

	// Path is the GraphQL endpoint path (default: "/graphql")
	Path string `json:"path"`

	// EnablePlayground enables GraphQL Playground UI (default: true)
	EnablePlayground bool `json:"enable_playground"`

	// EnableCORS enables CORS headers (default: true)
	EnableCORS bool `json:"enable_cors"`

	// CORSOrigins lists allowed CORS origins (default: ["*"])
	CORSOrigins []string `json:"cors_origins,omitempty"`

	// TimeoutStr is the request timeout (default: "30s")
	TimeoutStr string `json:"timeout,omitempty"`

	// MaxQueryDepth limits GraphQL query nesting depth (default: 10)
	MaxQueryDepth int `json:"max_query_depth,omitempty"`

	// timeout is the parsed duration (internal use)
	timeout time.Duration
}

// MongoConfig holds document store configuration
type MongoConfig struct {
	// URI is the MongoDB connection string (required)
	URI string `json:"uri"`

	// Database is the database name (default: "bookshelf")
	Database string `json:"database"`

	// ConnectTimeoutStr bounds the startup connection attempt (default: "10s")
	ConnectTimeoutStr string `json:"connect_timeout,omitempty"`

	connectTimeout time.Duration
}

// NATSConfig holds notification channel configuration
type NATSConfig struct {
	// URL is the NATS server URL (default: nats.DefaultURL)
	URL string `json:"url"`

	// Subject is the subject book-added events are published on
	// (default: "bookshelf.events.book.added")
	Subject string `json:"subject"`
}

// AuthConfig holds token signing and login configuration
type AuthConfig struct {
	// Secret is the token signing secret (required)
	Secret string `json:"secret"`

	// TokenTTLStr is the signed token lifetime; empty means non-expiring
	TokenTTLStr string `json:"token_ttl,omitempty"`

	// LoginPassword is the fixed password every login is compared against.
	// The reference system ships without password hashing; this stays a
	// single shared constant on purpose. Default: "secret".
	LoginPassword string `json:"login_password"`

	// BootstrapUser, when set, is seeded into an empty users collection at
	// startup so the first authenticated caller exists.
	BootstrapUser string `json:"bootstrap_user,omitempty"`

	// BootstrapFavoriteGenre is the favorite genre of the seeded user
	BootstrapFavoriteGenre string `json:"bootstrap_favorite_genre,omitempty"`

	tokenTTL time.Duration
}

// FromEnv builds a Config from BOOKSHELF_* environment variables,
// starting from defaults. Validate must still be called.
func FromEnv() Config {
	cfg := DefaultConfig()

	setString(&cfg.Server.BindAddress, "BIND_ADDRESS")
	setString(&cfg.Server.Path, "GRAPHQL_PATH")
	setBool(&cfg.Server.EnablePlayground, "ENABLE_PLAYGROUND")
	setBool(&cfg.Server.EnableCORS, "ENABLE_CORS")
	setString(&cfg.Server.TimeoutStr, "TIMEOUT")
	setInt(&cfg.Server.MaxQueryDepth, "MAX_QUERY_DEPTH")
	if v := lookup("CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitAndTrim(v)
	}

	setString(&cfg.Mongo.URI, "MONGODB_URI")
	setString(&cfg.Mongo.Database, "MONGODB_DATABASE")
	setString(&cfg.Mongo.ConnectTimeoutStr, "MONGODB_CONNECT_TIMEOUT")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Subject, "NATS_SUBJECT")

	setString(&cfg.Auth.Secret, "JWT_SECRET")
	setString(&cfg.Auth.TokenTTLStr, "TOKEN_TTL")
	setString(&cfg.Auth.LoginPassword, "LOGIN_PASSWORD")
	setString(&cfg.Auth.BootstrapUser, "BOOTSTRAP_USER")
	setString(&cfg.Auth.BootstrapFavoriteGenre, "BOOTSTRAP_FAVORITE_GENRE")

	return cfg
}

// Validate ensures the configuration is valid, applying defaults for
// unset optional fields.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "server section")
	}
	if err := c.Mongo.Validate(); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "mongo section")
	}
	if err := c.NATS.Validate(); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "nats section")
	}
	if err := c.Auth.Validate(); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "auth section")
	}
	return nil
}

// Validate ensures the server configuration is valid
func (s *ServerConfig) Validate() error {
	if s.BindAddress == "" {
		s.BindAddress = ":8080"
	}

	if s.Path == "" {
		s.Path = "/graphql"
	}
	if s.Path[0] != '/' {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "ServerConfig", "Validate",
			"path must start with /")
	}

	if s.TimeoutStr == "" {
		s.timeout = 30 * time.Second
	} else {
		timeout, err := time.ParseDuration(s.TimeoutStr)
		if err != nil {
			return errors.WrapInvalid(err, "ServerConfig", "Validate",
				fmt.Sprintf("invalid timeout format: %s", s.TimeoutStr))
		}
		if timeout < 100*time.Millisecond || timeout > 5*time.Minute {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "ServerConfig", "Validate",
				"timeout must be between 100ms and 5m")
		}
		s.timeout = timeout
	}

	if s.MaxQueryDepth == 0 {
		s.MaxQueryDepth = 10
	}
	if s.MaxQueryDepth < 1 || s.MaxQueryDepth > 50 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "ServerConfig", "Validate",
			"max_query_depth must be between 1 and 50")
	}

	if s.EnableCORS && len(s.CORSOrigins) == 0 {
		s.CORSOrigins = []string{"*"}
	}

	return nil
}

// Timeout returns the parsed request timeout
func (s *ServerConfig) Timeout() time.Duration {
	return s.timeout
}

// Validate ensures the mongo configuration is valid
func (m *MongoConfig) Validate() error {
	if m.URI == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "MongoConfig", "Validate",
			"mongodb uri is required")
	}
	if m.Database == "" {
		m.Database = "bookshelf"
	}

	if m.ConnectTimeoutStr == "" {
		m.connectTimeout = 10 * time.Second
	} else {
		d, err := time.ParseDuration(m.ConnectTimeoutStr)
		if err != nil || d <= 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "MongoConfig", "Validate",
				fmt.Sprintf("invalid connect timeout: %s", m.ConnectTimeoutStr))
		}
		m.connectTimeout = d
	}

	return nil
}

// ConnectTimeout returns the parsed startup connection timeout
func (m *MongoConfig) ConnectTimeout() time.Duration {
	return m.connectTimeout
}

// Validate ensures the NATS configuration is valid
func (n *NATSConfig) Validate() error {
	if n.URL == "" {
		n.URL = nats.DefaultURL
	}
	if n.Subject == "" {
		n.Subject = "bookshelf.events.book.added"
	}
	if strings.ContainsAny(n.Subject, " \t") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "NATSConfig", "Validate",
			"subject must not contain whitespace")
	}
	return nil
}

// Validate ensures the auth configuration is valid
func (a *AuthConfig) Validate() error {
	if a.Secret == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "AuthConfig", "Validate",
			"jwt secret is required")
	}
	if a.LoginPassword == "" {
		a.LoginPassword = "secret"
	}

	if a.TokenTTLStr != "" {
		d, err := time.ParseDuration(a.TokenTTLStr)
		if err != nil || d <= 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "AuthConfig", "Validate",
				fmt.Sprintf("invalid token ttl: %s", a.TokenTTLStr))
		}
		a.tokenTTL = d
	}

	return nil
}

// TokenTTL returns the parsed token lifetime; zero means non-expiring
func (a *AuthConfig) TokenTTL() time.Duration {
	return a.tokenTTL
}

// DefaultConfig returns the default service configuration.
// Mongo URI and auth secret have no defaults and must be supplied.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			BindAddress:      ":8080",
			Path:             "/graphql",
			EnablePlayground: true,
			EnableCORS:       true,
			CORSOrigins:      []string{"*"},
			TimeoutStr:       "30s",
			MaxQueryDepth:    10,
		},
		Mongo: MongoConfig{
			Database:          "bookshelf",
			ConnectTimeoutStr: "10s",
		},
		NATS: NATSConfig{
			URL:     nats.DefaultURL,
			Subject: "bookshelf.events.book.added",
		},
		Auth: AuthConfig{
			LoginPassword: "secret",
		},
	}
}

func lookup(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func setString(dst *string, key string) {
	if v := lookup(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := lookup(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setInt(dst *int, key string) {
	if v := lookup(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
