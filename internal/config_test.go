package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/marginalia/pkg/config"
)

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.OpenAI.APIKey = "sk-test"
	return cfg
}

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Tokens: []TokenConfig{{Token: "mysecret", UserID: "alice"}}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
	a := cfg.API()
	if !a.Enabled || a.Tokens["mysecret"] != "alice" {
		t.Errorf("api auth = %+v", a)
	}
}

func TestAuthConfig_TokenModeNoTokens(t *testing.T) {
	cfg := AuthConfig{Mode: "token"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode without tokens should fail")
	}
	if !strings.Contains(err.Error(), "no tokens") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_TokenWithoutUser(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Tokens: []TokenConfig{{Token: "x"}}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("token without user_id should fail")
	}
}

func TestAuthConfig_DuplicateToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Tokens: []TokenConfig{
		{Token: "x", UserID: "a"},
		{Token: "x", UserID: "b"},
	}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("duplicate tokens should fail")
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_Defaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("defaults with api key should pass: %v", err)
	}
}

func TestFullConfig_RequiresAPIKey(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err == nil {
		t.Fatal("missing openai api key should fail")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Mode = "token"
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestLinkingConfig_ThresholdRange(t *testing.T) {
	cfg := validConfig()
	cfg.Linking.Threshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("threshold above 1 should fail")
	}
}

func TestInboxConfig(t *testing.T) {
	cfg := validConfig()
	if cfg.Inbox.Enabled() {
		t.Fatal("inbox should be disabled by default")
	}

	cfg.Inbox.Path = "./inbox"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("inbox with default user should pass: %v", err)
	}
	if got := cfg.ownerOf(cfg.Inbox.UserID); got != "local" {
		t.Errorf("inbox owner = %q, want local", got)
	}

	cfg.Auth.DefaultUser = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("inbox without any user should fail")
	}
	cfg.Inbox.UserID = "reader"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("inbox with user_id should pass: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("MARGINALIA_TEST_KEY", "sk-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `app:
  log_level: debug
  http:
    port: 9000
sqlite:
  path: /tmp/notes.db
auth:
  mode: token
  tokens:
    - token: abc
      user_id: alice
openai:
  api_key: ${MARGINALIA_TEST_KEY}
  timeout: 15s
  requests_per_second: 3
linking:
  threshold: 0.5
search:
  collection_filter: false
inbox:
  path: ./inbox
  user_id: alice
metrics:
  enabled: true
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTP.Port != 9000 || cfg.OpenAI.APIKey != "sk-env" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.OpenAI.Timeout != 15*time.Second {
		t.Errorf("timeout = %v", cfg.OpenAI.Timeout)
	}
	if cfg.OpenAI.ChatModel != "gpt-4o-mini" {
		t.Errorf("chat model default lost: %q", cfg.OpenAI.ChatModel)
	}
	if cfg.Linking.Threshold != 0.5 || cfg.Linking.MatchCount != 5 {
		t.Errorf("linking = %+v", cfg.Linking)
	}
	if cfg.Search.CollectionFilter || !cfg.Metrics.Enabled {
		t.Errorf("search/metrics = %+v %+v", cfg.Search, cfg.Metrics)
	}
	if cfg.Inbox.BookTitle != "Inbox" {
		t.Errorf("inbox book title = %q", cfg.Inbox.BookTitle)
	}
}
