package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/song-migrations/internal/formatter"
	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/shared"
	"github.com/urfave/cli/v3"
)

// SpotifyPlaylists lists a user's Spotify playlists with optional limit.
func (r *Runner) SpotifyPlaylists(ctx context.Context, cmd *cli.Command) error {
	session, err := r.session(models.ServiceSpotify)
	if err != nil {
		return err
	}
	if r.source == nil {
		return fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	userID := cmd.String("user")
	limit := int(cmd.Int("limit"))

	token, err := session.AccessToken(ctx, userID)
	if err != nil {
		return err
	}

	r.logger.Info("listing spotify playlists", "user_id", userID, "limit", limit)
	playlists, err := r.source.ListPlaylists(ctx, token)
	if err != nil {
		return err
	}

	if limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	switch cmd.String("format") {
	case formatter.FormatJSON:
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	case formatter.FormatCSV:
		data, err := formatter.PlaylistsToCSV(playlists)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	}

	if len(playlists) == 0 {
		return r.writePlain("No playlists found\n")
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		if p.Description != "" {
			r.writePlain("   Description: %s\n", p.Description)
		}
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Tracks: %d\n", p.TrackCount)
		if p.Public {
			r.writePlain("   Visibility: Public\n")
		} else {
			r.writePlain("   Visibility: Private\n")
		}
		r.writePlain("\n")
	}

	return nil
}
