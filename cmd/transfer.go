package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/desertthunder/song-migrations/internal/bus"
	"github.com/desertthunder/song-migrations/internal/formatter"
	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/shared"
	"github.com/desertthunder/song-migrations/internal/tasks"
	"github.com/desertthunder/song-migrations/internal/ui"
	"github.com/urfave/cli/v3"
)

// TransferStart dispatches a transfer onto the configured bus and prints its id.
// The bus must outlive the process, since no consumer runs here.
func (r *Runner) TransferStart(ctx context.Context, cmd *cli.Command) error {
	if r.dispatcher == nil {
		return fmt.Errorf("%w: transfer dispatch needs a Spotify session, catalog, store and bus", shared.ErrServiceUnavailable)
	}
	if !bus.Durable(r.publisher) {
		return fmt.Errorf("%w: bus driver %q keeps jobs in this process only; use `songmig transfer run`, "+
			"or set [bus] driver to redis or sns and run `songmig worker`", shared.ErrInvalidConfig, r.config.Bus.Driver)
	}

	transferID, err := r.dispatcher.Dispatch(ctx, cmd.String("user"), cmd.StringSlice("playlist"))
	if err != nil {
		return err
	}

	r.writePlain("✓ Transfer started\n")
	return r.writePlain("Transfer ID: %s\n", transferID)
}

// TransferRun dispatches onto an in-process bus and executes the job immediately,
// streaming progress updates.
func (r *Runner) TransferRun(ctx context.Context, cmd *cli.Command) error {
	if r.executor == nil || r.transfers == nil || r.spotify == nil || r.source == nil {
		return fmt.Errorf("%w: transfer run needs both sessions, both catalogs and a store", shared.ErrServiceUnavailable)
	}

	local := bus.NewMemoryBus(r.logger)
	dispatcher := r.newDispatcher(local)

	r.writePlain("Starting playlist transfer...\n")
	transferID, err := dispatcher.Dispatch(ctx, cmd.String("user"), cmd.StringSlice("playlist"))
	if err != nil {
		return err
	}
	r.writePlain("Transfer ID: %s\n\n", transferID)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progressCh {
			r.writePlain("%s\n", ui.RenderProgress(update))
		}
	}()

	var runErr error
	local.Drain(ctx, dispatcher.Topic(), func(ctx context.Context, payload []byte) error {
		var job models.TransferJob
		if err := json.Unmarshal(payload, &job); err != nil {
			runErr = fmt.Errorf("%w: malformed transfer job: %v", shared.ErrInvalidArgument, err)
			return runErr
		}
		_, runErr = r.executor.Execute(ctx, job, progressCh)
		return runErr
	})
	close(progressCh)
	wg.Wait()

	rec, err := tasks.Status(ctx, r.transfers, transferID)
	if err != nil {
		return err
	}
	r.writePlainln("%s", ui.RenderSummary(rec))
	return runErr
}

// TransferStatus prints a transfer record.
func (r *Runner) TransferStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireTransfers(); err != nil {
		return err
	}

	rec, err := tasks.Status(ctx, r.transfers, cmd.String("id"))
	if err != nil {
		return err
	}

	format := cmd.String("format")
	if format == formatter.FormatText {
		return r.writePlain("%s", ui.RenderSummary(rec))
	}

	data, _, err := formatter.RenderReport(rec, format)
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", data)
}

// TransferReport writes a transfer report to disk, or to S3 with --upload.
func (r *Runner) TransferReport(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireTransfers(); err != nil {
		return err
	}

	rec, err := tasks.Status(ctx, r.transfers, cmd.String("id"))
	if err != nil {
		return err
	}
	format := cmd.String("format")

	if cmd.Bool("upload") {
		reports := r.config.Reports
		archiver, err := formatter.NewS3Archiver(ctx, formatter.ArchiveOptions{
			Bucket:    reports.Bucket,
			Region:    reports.Region,
			Endpoint:  reports.Endpoint,
			AccessKey: reports.AccessKey,
			SecretKey: reports.SecretKey,
		})
		if err != nil {
			return err
		}

		uri, err := archiver.Upload(ctx, rec, format)
		if err != nil {
			return err
		}
		r.logger.Info("report uploaded", "transfer_id", rec.TransferID, "uri", uri)
		return r.writePlain("✓ Report uploaded to %s\n", uri)
	}

	path, err := formatter.WriteReport(rec, format, cmd.String("output"))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Report written to %s\n", path)
}

// TransferList prints a user's transfers, newest first.
func (r *Runner) TransferList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireTransfers(); err != nil {
		return err
	}

	userID := cmd.String("user")
	records, err := r.transfers.ListByUser(ctx, userID, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if len(records) == 0 {
		return r.writePlain("No transfers for %s\n", userID)
	}

	for _, rec := range records {
		r.writePlain("%s  %s  playlists %d/%d  tracks %d/%d\n",
			rec.TransferID, ui.StatusText(rec.Status),
			rec.CompletedPlaylists, rec.TotalPlaylists, rec.CompletedTracks, rec.TotalTracks)
	}
	return nil
}
