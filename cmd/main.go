package main

import (
	"context"
	"database/sql"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/song-migrations/internal/auth"
	"github.com/desertthunder/song-migrations/internal/bus"
	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/repositories"
	"github.com/desertthunder/song-migrations/internal/secrets"
	"github.com/desertthunder/song-migrations/internal/services"
	"github.com/desertthunder/song-migrations/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)
	ctx := context.Background()

	if err := shared.LoadEnv(); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	configPath := os.Getenv("SONGMIG_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}
	config.ApplyEnv()
	shared.ApplyLogLevel(logger, config.Log.Level)

	if err := config.Validate(); err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}

	opts, cleanup := wire(ctx, config, logger)
	opts.ConfigPath = configPath
	runner := NewRunner(opts)

	app := &cli.Command{
		Name:     "songmig",
		Usage:    "Transfer playlists from Spotify to YouTube Music",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	err := app.Run(ctx, os.Args)
	cleanup()
	if err != nil {
		logger.Error("application error", "error", err)
		os.Exit(1)
	}
}

// wire builds every runner dependency it can from config. A dependency that
// cannot be built is logged and left nil; commands needing it report that.
func wire(ctx context.Context, config *shared.Config, logger *log.Logger) (RunnerOpts, func()) {
	opts := RunnerOpts{Config: config, Logger: logger}
	var closers []io.Closer
	cleanup := func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Warn("close failed", "error", err)
			}
		}
	}

	db, err := openDatabase(ctx, config)
	if err != nil {
		logger.Warn("database unavailable", "path", config.Database.Path, "error", err)
	} else {
		closers = append(closers, db)
	}

	var vault secrets.Provider = secrets.NewStaticProvider(config)
	if config.Secrets.Provider == "aws" {
		vault = secrets.NewAWSProvider(logger)
	}

	var spotifyProvider, ytmusicProvider services.OAuthProvider
	if creds, err := secrets.SpotifyCredentials(ctx, vault, config); err != nil {
		logger.Warn("spotify credentials unavailable", "error", err)
	} else if svc, err := services.NewSpotifyService(creds); err != nil {
		logger.Warn("failed to create spotify service", "error", err)
	} else {
		spotifyProvider = svc
		opts.Source = svc
	}

	if creds, err := secrets.YouTubeCredentials(ctx, vault, config); err != nil {
		logger.Warn("youtube music credentials unavailable", "error", err)
	} else if svc, err := services.NewYouTubeService(creds, config.Credentials.YouTube.ProxyURL, config.Transfer.RequestsPerSecond); err != nil {
		logger.Warn("failed to create youtube music service", "error", err)
	} else {
		ytmusicProvider = svc
		opts.Dest = svc
	}

	if db != nil {
		tokens := repositories.NewTokenRepository(db, logger)
		validator := auth.NewValidator(tokens, logger)
		opts.Spotify = auth.NewSession(models.ServiceSpotify, spotifyProvider, tokens, validator, logger)
		opts.YTMusic = auth.NewSession(models.ServiceYTMusic, ytmusicProvider, tokens, validator, logger)
		opts.Transfers = repositories.NewTransferRepository(db)
		opts.Users = repositories.NewUserRepository(db)
	}

	pub, consumer, err := bus.Open(ctx, bus.Options{
		Driver:        config.Bus.Driver,
		RedisAddr:     config.Bus.RedisAddr,
		RedisPassword: config.Bus.RedisPassword,
		RedisDB:       config.Bus.RedisDB,
		SNSTopicARN:   config.Bus.SNSTopicARN,
		Region:        config.Secrets.Region,
	}, logger)
	if err != nil {
		logger.Warn("message bus unavailable", "driver", config.Bus.Driver, "error", err)
	} else {
		opts.Publisher = pub
		if consumer != nil {
			opts.Consumer = consumer
		}
		if c, ok := pub.(io.Closer); ok {
			closers = append(closers, c)
		}
	}

	return opts, cleanup
}

func openDatabase(ctx context.Context, config *shared.Config) (*sql.DB, error) {
	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, config.Database.Path, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := shared.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
