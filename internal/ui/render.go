package ui

import (
	"fmt"
	"strings"

	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/tasks"
)

// RenderProgress formats one progress update as a single styled line.
func RenderProgress(u tasks.ProgressUpdate) string {
	switch u.Phase {
	case tasks.Failed:
		return styles.err.Render(u.Message)
	case tasks.Complete:
		return styles.ok.Render(u.Message)
	case tasks.MatchingTracks:
		return "  " + Muted(u.Message)
	case tasks.CreatingPlaylist:
		if info, ok := u.Data.(models.PlaylistTransferInfo); ok {
			return styles.Status(info.Status).Render(u.Message)
		}
		return Title(u.Message)
	default:
		return u.Message
	}
}

// RenderSummary formats the final state of a transfer record.
func RenderSummary(rec *models.TransferRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", Title("Transfer "+rec.TransferID), StatusText(rec.Status))
	fmt.Fprintf(&b, "Playlists: %d/%d completed, %d failed\n",
		rec.CompletedPlaylists, rec.TotalPlaylists, rec.FailedPlaylists)
	fmt.Fprintf(&b, "Tracks: %d/%d matched, %d failed, %d not found\n",
		rec.CompletedTracks, rec.TotalTracks, rec.FailedTracks, rec.NotFoundTracks)
	if rec.ErrorDetails != "" {
		b.WriteString(styles.err.Render("Error: "+rec.ErrorDetails) + "\n")
	}

	for _, p := range rec.Playlists {
		line := fmt.Sprintf("  • %s [%s] %d/%d", p.PlaylistName, StatusText(p.Status), p.CompletedTracks, p.TotalTracks)
		if p.NotFoundTracks > 0 {
			line += Warn(fmt.Sprintf(" (%d not found)", p.NotFoundTracks))
		}
		if p.ErrorDetails != "" {
			line += " " + Muted(p.ErrorDetails)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
