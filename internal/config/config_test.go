package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gauthierbraillon/storyarchive/internal/archive"
)

const sampleYAML = `
account:
  username: archivist
  password: hunter2
targets:
  - id: 100
    name: alice
  - id: 200
    name: bob
storage:
  dir: /srv/stories
interval: 6h
telegram:
  token: "123:ABC"
  chat_id: -1001
  announce_empty: false
history:
  path: ""
logging:
  level: debug
  format: json
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ReadsYAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "storyarchive.yaml", sampleYAML), "")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Account.Username != "archivist" || cfg.Account.Password != "hunter2" {
		t.Errorf("unexpected account: %+v", cfg.Account)
	}
	if len(cfg.Targets) != 2 || cfg.Targets[0].ID != 100 || cfg.Targets[1].Name != "bob" {
		t.Errorf("targets should keep file order, got %+v", cfg.Targets)
	}
	if cfg.Interval != 6*time.Hour {
		t.Errorf("expected 6h interval, got %v", cfg.Interval)
	}
	if cfg.Telegram.ChatID != "-1001" {
		t.Errorf("numeric chat id should load as a string, got %q", cfg.Telegram.ChatID)
	}
	if cfg.Telegram.AnnounceEmpty {
		t.Error("announce_empty should be read from the file")
	}
	if cfg.History.Path != "" {
		t.Errorf("empty history path should disable history, got %q", cfg.History.Path)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.File == "" {
		t.Error("File should name the config that was read")
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "storyarchive.yaml", "account:\n  username: a\n"), "")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Interval != 12*time.Hour {
		t.Errorf("default interval should be 12h, got %v", cfg.Interval)
	}
	if !cfg.Telegram.AnnounceEmpty {
		t.Error("empty batches should be announced by default")
	}
	if cfg.Telegram.RateLimit != time.Second {
		t.Errorf("default rate limit should be 1s, got %v", cfg.Telegram.RateLimit)
	}
	if cfg.Storage.Dir != "./stories" || cfg.Logging.Level != "info" {
		t.Errorf("unexpected defaults: storage=%q level=%q", cfg.Storage.Dir, cfg.Logging.Level)
	}
	if cfg.Instagram.BaseURL != "https://i.instagram.com" || cfg.Telegram.BaseURL != "https://api.telegram.org" {
		t.Errorf("unexpected default base URLs: %q %q", cfg.Instagram.BaseURL, cfg.Telegram.BaseURL)
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	t.Setenv("STORYARCHIVE_ACCOUNT_PASSWORD", "from-env")
	t.Setenv("STORYARCHIVE_INTERVAL", "30m")
	t.Setenv("STORYARCHIVE_TELEGRAM_CHAT_ID", "-2002")

	cfg, err := Load(writeFile(t, "storyarchive.yaml", sampleYAML), "")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Account.Password != "from-env" {
		t.Errorf("env should override password, got %q", cfg.Account.Password)
	}
	if cfg.Interval != 30*time.Minute {
		t.Errorf("env should override interval, got %v", cfg.Interval)
	}
	if cfg.Telegram.ChatID != "-2002" {
		t.Errorf("env should override chat id, got %q", cfg.Telegram.ChatID)
	}
}

func TestLoad_EnvFileSuppliesSecrets(t *testing.T) {
	t.Cleanup(func() { os.Unsetenv("STORYARCHIVE_TELEGRAM_TOKEN") })
	envFile := writeFile(t, ".env", "STORYARCHIVE_TELEGRAM_TOKEN=999:XYZ\n")

	cfg, err := Load(writeFile(t, "storyarchive.yaml", "account:\n  username: a\n"), envFile)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Telegram.Token != "999:XYZ" {
		t.Errorf("token should come from the env file, got %q", cfg.Telegram.Token)
	}
}

func TestLoad_MissingFiles(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "absent.yaml"), ""); err == nil {
		t.Error("an explicit config path that does not exist should fail")
	}
	if _, err := Load(writeFile(t, "storyarchive.yaml", sampleYAML), filepath.Join(dir, "absent.env")); err == nil {
		t.Error("an explicit env file that does not exist should fail")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeFile(t, "storyarchive.yaml", "targets: [\n"), ""); err == nil {
		t.Error("malformed YAML should fail")
	}
}

func TestLoad_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(writeFile(t, "storyarchive.yaml", "storage:\n  dir: ~/stories\n"), "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Dir != filepath.Join(home, "stories") {
		t.Errorf("~ should expand to the home directory, got %q", cfg.Storage.Dir)
	}
}

func validConfig() *Config {
	return &Config{
		Account:  AccountConfig{Username: "a", Password: "b"},
		Targets:  []archive.Target{{ID: 100, Name: "alice"}},
		Storage:  StorageConfig{Dir: "/srv/stories"},
		Interval: time.Hour,
		Telegram: TelegramConfig{Token: "t", ChatID: "c"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		deliver bool
		wantErr string
	}{
		{"valid", func(*Config) {}, true, ""},
		{"missing username", func(c *Config) { c.Account.Username = "" }, false, "account.username"},
		{"missing password", func(c *Config) { c.Account.Password = "" }, false, "account.password"},
		{"no targets", func(c *Config) { c.Targets = nil }, false, "at least one target"},
		{"zero interval", func(c *Config) { c.Interval = 0 }, false, "interval"},
		{"duplicate target", func(c *Config) { c.Targets = append(c.Targets, c.Targets[0]) }, false, "duplicate id 100"},
		{"unnamed target", func(c *Config) { c.Targets[0].Name = "" }, false, "name is required"},
		{"missing token when delivering", func(c *Config) { c.Telegram.Token = "" }, true, "telegram.token"},
		{"missing token without delivery", func(c *Config) { c.Telegram.Token = "" }, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate(tt.deliver)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	err := (&Config{}).Validate(true)
	if err == nil {
		t.Fatal("empty config should be invalid")
	}
	for _, want := range []string{"account.username", "account.password", "storage.dir", "interval", "target", "telegram.token", "telegram.chat_id"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got:\n%v", want, err)
		}
	}
}

func TestYAML_RedactsSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Account.Password = "hunter2"
	cfg.Telegram.Token = "123:ABC"

	out, err := cfg.YAML()
	if err != nil {
		t.Fatal(err)
	}

	if strings.Contains(out, "hunter2") || strings.Contains(out, "123:ABC") {
		t.Errorf("secrets should be redacted:\n%s", out)
	}
	if !strings.Contains(out, "alice") || !strings.Contains(out, "interval: 1h0m0s") {
		t.Errorf("non-secret values should be shown:\n%s", out)
	}
	if cfg.Account.Password != "hunter2" {
		t.Error("redaction must not modify the original config")
	}
}
