package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./songmig.db" {
			t.Errorf("expected database path ./songmig.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Credentials.YouTube.ProxyURL != "http://127.0.0.1:8080" {
			t.Errorf("expected youtube proxy URL http://127.0.0.1:8080, got %s", config.Credentials.YouTube.ProxyURL)
		}

		if config.Credentials.Spotify.SecretName != "Spotify" {
			t.Errorf("expected spotify secret name Spotify, got %s", config.Credentials.Spotify.SecretName)
		}

		if len(config.Credentials.Spotify.Scopes) != 3 {
			t.Errorf("expected 3 spotify scopes, got %v", config.Credentials.Spotify.Scopes)
		}

		if config.Transfer.BatchSize != 50 {
			t.Errorf("expected batch size 50, got %d", config.Transfer.BatchSize)
		}

		if config.Transfer.TrackDelay() != 500*time.Millisecond {
			t.Errorf("expected track delay 500ms, got %v", config.Transfer.TrackDelay())
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig keeps defaults for omitted sections", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		data := []byte("[bus]\ndriver = \"redis\"\nredis_addr = \"cache:6379\"\n")
		if err := os.WriteFile(configPath, data, 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Bus.Driver != "redis" || config.Bus.RedisAddr != "cache:6379" {
			t.Errorf("bus section not applied: %+v", config.Bus)
		}
		if config.Bus.Topic != "playlist-transfer" {
			t.Errorf("expected default topic, got %s", config.Bus.Topic)
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv("DATABASE_PATH", "/tmp/env.db")
		t.Setenv("PLAYLIST_TRANSFER_TOPIC", "transfers-prod")
		t.Setenv("ACCESS_CONTROL_ALLOW_ORIGIN", "https://app.example.com")
		t.Setenv("PORT", "8081")

		config := DefaultConfig()
		config.ApplyEnv()

		if config.Database.Path != "/tmp/env.db" {
			t.Errorf("expected env database path, got %s", config.Database.Path)
		}
		if config.Bus.Topic != "transfers-prod" {
			t.Errorf("expected env topic, got %s", config.Bus.Topic)
		}
		if config.Server.AllowedOrigin != "https://app.example.com" {
			t.Errorf("expected env origin, got %s", config.Server.AllowedOrigin)
		}
		if config.Server.Port != 8081 {
			t.Errorf("expected env port 8081, got %d", config.Server.Port)
		}
	})

	t.Run("LoadEnv", func(t *testing.T) {
		envPath := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(envPath, []byte("SONGMIG_TEST_VALUE=from-dotenv\n"), 0644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Cleanup(func() { os.Unsetenv("SONGMIG_TEST_VALUE") })

		if err := LoadEnv(envPath); err != nil {
			t.Fatalf("LoadEnv failed: %v", err)
		}
		if got := os.Getenv("SONGMIG_TEST_VALUE"); got != "from-dotenv" {
			t.Errorf("expected from-dotenv, got %q", got)
		}

		if err := LoadEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
			t.Errorf("missing env file should be ignored, got %v", err)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name   string
			mutate func(*Config)
		}{
			{name: "unknown bus driver", mutate: func(c *Config) { c.Bus.Driver = "kafka" }},
			{name: "sns without topic arn", mutate: func(c *Config) { c.Bus.Driver = "sns" }},
			{name: "unknown secrets provider", mutate: func(c *Config) { c.Secrets.Provider = "vault" }},
			{name: "zero batch size", mutate: func(c *Config) { c.Transfer.BatchSize = 0 }},
			{name: "negative delay", mutate: func(c *Config) { c.Transfer.TrackDelayMS = -1 }},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)
				if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})
}
