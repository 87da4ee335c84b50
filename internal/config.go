package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/marginalia/internal/api"
	"github.com/starford/marginalia/internal/linking"
	"github.com/starford/marginalia/internal/openai"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	OpenAI  OpenAIConfig      `yaml:"openai"`
	Linking LinkingConfig     `yaml:"linking"`
	Search  SearchConfig      `yaml:"search"`
	Inbox   InboxConfig       `yaml:"inbox"`
	Metrics MetricsConfig     `yaml:"metrics"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.SQLite, &c.Auth, &c.OpenAI, &c.Linking, &c.Inbox,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if c.Inbox.Enabled() && c.ownerOf(c.Inbox.UserID) == "" {
		return errors.New("inbox: user_id or auth.default_user is required")
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// TokenConfig maps one bearer token to the user it authenticates.
type TokenConfig struct {
	Token  string `yaml:"token"`
	UserID string `yaml:"user_id"`
}

// Validate validates the token entry.
func (c TokenConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Token, validation.Required),
		validation.Field(&c.UserID, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how users are resolved:
//   - "disabled" (default): the X-User-ID header, or DefaultUser when absent.
//   - "token": Bearer tokens from Tokens, each bound to one user.
//
// DefaultUser also owns inbox imports and MCP tool calls unless those
// sections name a user.
type AuthConfig struct {
	Mode        string        `yaml:"mode"`
	Tokens      []TokenConfig `yaml:"tokens"`
	DefaultUser string        `yaml:"default_user"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
		validation.Field(&c.Tokens),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && len(c.Tokens) == 0 {
		return fmt.Errorf("auth: mode is %q but no tokens are configured", AuthModeToken)
	}
	seen := make(map[string]struct{}, len(c.Tokens))
	for _, t := range c.Tokens {
		if _, dup := seen[t.Token]; dup {
			return errors.New("auth: duplicate token")
		}
		seen[t.Token] = struct{}{}
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// API converts the section into router settings.
func (c *AuthConfig) API() api.Auth {
	tokens := make(map[string]string, len(c.Tokens))
	for _, t := range c.Tokens {
		tokens[t.Token] = t.UserID
	}
	return api.Auth{
		Enabled:     c.AuthEnabled(),
		Tokens:      tokens,
		DefaultUser: c.DefaultUser,
	}
}

// OpenAIConfig holds the embeddings and chat API settings.
type OpenAIConfig struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	EmbeddingModel    string        `yaml:"embedding_model"`
	ChatModel         string        `yaml:"chat_model"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// Validate validates the OpenAI configuration.
func (c *OpenAIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.APIKey, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.RequestsPerSecond, validation.Min(0.0)),
		validation.Field(&c.Burst, validation.Min(0)),
	)
}

// Client converts the section into client settings.
func (c *OpenAIConfig) Client() openai.Config {
	return openai.Config{
		APIKey:            c.APIKey,
		BaseURL:           c.BaseURL,
		EmbeddingModel:    c.EmbeddingModel,
		ChatModel:         c.ChatModel,
		Timeout:           c.Timeout,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
	}
}

// LinkingConfig tunes automatic linking and the related-notes view.
type LinkingConfig struct {
	MatchCount       int     `yaml:"match_count"`
	Threshold        float64 `yaml:"threshold"`
	RelatedLimit     int     `yaml:"related_limit"`
	EdgeScanLimit    int     `yaml:"edge_scan_limit"`
	ConceptCacheSize int     `yaml:"concept_cache_size"`
}

// Validate validates the linking configuration.
func (c *LinkingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MatchCount, validation.Min(0), validation.Max(50)),
		validation.Field(&c.Threshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.RelatedLimit, validation.Min(0)),
		validation.Field(&c.EdgeScanLimit, validation.Min(0)),
		validation.Field(&c.ConceptCacheSize, validation.Min(0)),
	)
}

// Linker converts the section into linking settings.
func (c *LinkingConfig) Linker() linking.Config {
	return linking.Config{
		MatchCount:    c.MatchCount,
		Threshold:     c.Threshold,
		RelatedLimit:  c.RelatedLimit,
		EdgeScanLimit: c.EdgeScanLimit,
	}
}

// SearchConfig holds vector search settings.
//
// CollectionFilter reports whether the vector store can restrict a query
// to one book. When false, same-book linking falls back to unrestricted
// queries.
type SearchConfig struct {
	CollectionFilter bool `yaml:"collection_filter"`
}

// InboxConfig holds the Markdown inbox settings. An empty Path disables
// the inbox.
type InboxConfig struct {
	Path      string `yaml:"path"`
	UserID    string `yaml:"user_id"`
	BookTitle string `yaml:"book_title"`
}

// Enabled reports whether the inbox is configured.
func (c *InboxConfig) Enabled() bool {
	return c.Path != ""
}

// Validate validates the inbox configuration.
func (c *InboxConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.BookTitle, validation.Required, validation.RuneLength(1, 300)),
	)
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./marginalia.db",
		},
		Auth: AuthConfig{
			Mode:        AuthModeDisabled,
			DefaultUser: "local",
		},
		OpenAI: OpenAIConfig{
			BaseURL:        openai.DefaultBaseURL,
			EmbeddingModel: openai.DefaultEmbeddingModel,
			ChatModel:      openai.DefaultChatModel,
			Timeout:        openai.DefaultTimeout,
		},
		Linking: LinkingConfig{
			MatchCount:       linking.DefaultMatchCount,
			Threshold:        linking.DefaultThreshold,
			RelatedLimit:     linking.DefaultRelatedLimit,
			EdgeScanLimit:    linking.DefaultEdgeScanLimit,
			ConceptCacheSize: 1024,
		},
		Search: SearchConfig{
			CollectionFilter: true,
		},
		Inbox: InboxConfig{
			BookTitle: "Inbox",
		},
	}
}

// ownerOf returns id, or the default user when id is empty.
func (c *Config) ownerOf(id string) string {
	if id != "" {
		return id
	}
	return c.Auth.DefaultUser
}
