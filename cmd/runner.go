package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/song-migrations/internal/bus"
	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/server"
	"github.com/desertthunder/song-migrations/internal/services"
	"github.com/desertthunder/song-migrations/internal/shared"
	"github.com/desertthunder/song-migrations/internal/tasks"
	"github.com/urfave/cli/v3"
)

// TransferStore is the transfer persistence the CLI reads and writes.
type TransferStore interface {
	tasks.TransferStore
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.TransferRecord, error)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	spotify    server.LoginSession
	ytmusic    server.LoginSession
	source     services.SourceCatalog
	dest       services.DestinationCatalog
	transfers  TransferStore
	users      server.UserStore
	publisher  bus.Publisher
	consumer   bus.Consumer
	logger     *log.Logger
	output     io.Writer
	dispatcher *tasks.Dispatcher
	executor   *tasks.Executor
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Any dependency may be nil; commands that need a missing one fail with
// [shared.ErrServiceUnavailable].
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Spotify    server.LoginSession
	YTMusic    server.LoginSession
	Source     services.SourceCatalog
	Dest       services.DestinationCatalog
	Transfers  TransferStore
	Users      server.UserStore
	Publisher  bus.Publisher
	Consumer   bus.Consumer
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		spotify:    opts.Spotify,
		ytmusic:    opts.YTMusic,
		source:     opts.Source,
		dest:       opts.Dest,
		transfers:  opts.Transfers,
		users:      opts.Users,
		publisher:  opts.Publisher,
		consumer:   opts.Consumer,
		logger:     opts.Logger,
		output:     opts.Output,
	}

	if r.transfers != nil && r.spotify != nil && r.source != nil && r.publisher != nil {
		r.dispatcher = r.newDispatcher(r.publisher)
	}
	if r.transfers != nil && r.ytmusic != nil && r.dest != nil {
		matcher := tasks.NewMatcher(r.dest, r.logger).
			WithBatchSize(r.config.Transfer.BatchSize).
			WithDelay(r.config.Transfer.TrackDelay())
		r.executor = tasks.NewExecutor(r.transfers, r.ytmusic, r.dest, matcher, r.logger).
			WithCheckpoint(r.config.Transfer.Checkpoint)
	}
	return r
}

func (r *Runner) newDispatcher(pub bus.Publisher) *tasks.Dispatcher {
	return tasks.NewDispatcher(r.transfers, r.spotify, r.source, pub, r.config.Bus.Topic, r.logger)
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, spotifyCommand, transferCommand, serveCommand, workerCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// session resolves a --service value to its login session.
func (r *Runner) session(service string) (server.LoginSession, error) {
	var s server.LoginSession
	switch service {
	case models.ServiceSpotify:
		s = r.spotify
	case models.ServiceYTMusic, "youtube":
		s = r.ytmusic
	default:
		return nil, fmt.Errorf("%w: invalid service '%s' (must be 'spotify' or 'ytmusic')", shared.ErrInvalidArgument, service)
	}
	if s == nil {
		return nil, fmt.Errorf("%w: %s session not initialized", shared.ErrServiceUnavailable, service)
	}
	return s, nil
}

func (r *Runner) requireTransfers() error {
	if r.transfers == nil {
		return fmt.Errorf("%w: transfer store not initialized", shared.ErrServiceUnavailable)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
