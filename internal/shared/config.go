package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Secrets     SecretsConfig     `toml:"secrets"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Bus         BusConfig         `toml:"bus"`
	Transfer    TransferConfig    `toml:"transfer"`
	Reports     ReportsConfig     `toml:"reports"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	YouTube YouTubeConfig `toml:"youtube"`
}

// SpotifyConfig contains Spotify API credentials.
//
// ClientID and ClientSecret are used as-is by the static secrets provider;
// the aws provider looks the pair up under SecretName instead.
type SpotifyConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	RedirectURI  string   `toml:"redirect_uri"`
	Scopes       []string `toml:"scopes"`
	SecretName   string   `toml:"secret_name"`
}

// YouTubeConfig contains YouTube Music OAuth client credentials and the catalog proxy location.
type YouTubeConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	ProxyURL     string `toml:"proxy_url"`
	SecretName   string `toml:"secret_name"`
}

// SecretsConfig selects where provider client credentials come from.
type SecretsConfig struct {
	Provider string `toml:"provider"` // "static" or "aws"
	Region   string `toml:"region"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	AllowedOrigin string `toml:"allowed_origin"`
	JWTSecret     string `toml:"jwt_secret"`
}

// Addr returns host:port for [net/http.Server].
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BusConfig selects the message bus used between transfer dispatch and execution.
type BusConfig struct {
	Driver        string `toml:"driver"` // "memory", "redis" or "sns"
	Topic         string `toml:"topic"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	SNSTopicARN   string `toml:"sns_topic_arn"`
}

// TransferConfig tunes the execution phase.
type TransferConfig struct {
	BatchSize         int     `toml:"batch_size"`
	TrackDelayMS      int     `toml:"track_delay_ms"`
	Checkpoint        bool    `toml:"checkpoint"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// TrackDelay is the courtesy pause between tracks.
func (t TransferConfig) TrackDelay() time.Duration {
	return time.Duration(t.TrackDelayMS) * time.Millisecond
}

// ReportsConfig points at the S3 bucket transfer reports are archived to.
type ReportsConfig struct {
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"` // static keys for S3-compatible stores; empty uses the default chain
	SecretKey string `toml:"secret_key"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, ErrInvalidConfig)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv reads the given dotenv files (".env" when none are given) into the
// process environment. Missing files are not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}

	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// ApplyEnv overrides config values from the process environment.
func (c *Config) ApplyEnv() {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	setString("DATABASE_PATH", &c.Database.Path)
	setString("ACCESS_CONTROL_ALLOW_ORIGIN", &c.Server.AllowedOrigin)
	setString("PLAYLIST_TRANSFER_TOPIC", &c.Bus.Topic)
	setString("SPOTIFY_REDIRECT_URI", &c.Credentials.Spotify.RedirectURI)
	setString("REDIS_ADDR", &c.Bus.RedisAddr)
	setString("JWT_SECRET", &c.Server.JWTSecret)
	setString("AWS_REGION", &c.Secrets.Region)
	setString("LOG_LEVEL", &c.Log.Level)

	if v, ok := os.LookupEnv("PORT"); ok {
		if port, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.Server.Port = port
		}
	}
}

// Validate reports configuration that cannot work at runtime.
func (c *Config) Validate() error {
	switch c.Bus.Driver {
	case "memory", "redis":
	case "sns":
		if c.Bus.SNSTopicARN == "" {
			return fmt.Errorf("%w: bus.sns_topic_arn is required for the sns driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown bus driver %q", ErrInvalidConfig, c.Bus.Driver)
	}

	switch c.Secrets.Provider {
	case "static", "aws":
	default:
		return fmt.Errorf("%w: unknown secrets provider %q", ErrInvalidConfig, c.Secrets.Provider)
	}

	if c.Transfer.BatchSize <= 0 {
		return fmt.Errorf("%w: transfer.batch_size must be positive", ErrInvalidConfig)
	}
	if c.Transfer.TrackDelayMS < 0 {
		return fmt.Errorf("%w: transfer.track_delay_ms must not be negative", ErrInvalidConfig)
	}
	return nil
}
