package tasks

import (
	"fmt"

	"github.com/desertthunder/song-migrations/internal/models"
)

// ProgressUpdate represents a progress event during a transfer.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Transfer phase enumeration
type Phase int

const (
	Loading Phase = iota
	ValidatingToken
	CreatingPlaylist
	MatchingTracks
	Complete
	Failed
)

func (p Phase) String() string {
	switch p {
	case Loading:
		return "loading"
	case ValidatingToken:
		return "validating_token"
	case CreatingPlaylist:
		return "creating_playlist"
	case MatchingTracks:
		return "matching_tracks"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func loadingUpdate(job models.TransferJob) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Loading,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loading transfer %s (%d playlists, %d tracks)...", job.TransferID, len(job.PlaylistsData), job.TotalTracks()),
	}
}

func validatingTokenUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   ValidatingToken,
		Step:    1,
		Total:   1,
		Message: "Validating YouTube Music token...",
	}
}

func creatingPlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatingPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Creating playlist: %s", step, total, name),
	}
}

func matchingTrackUpdate(step, total int, track models.TrackDescriptor) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MatchingTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, track.SearchQuery()),
	}
}

func playlistDoneUpdate(step, total int, info models.PlaylistTransferInfo) ProgressUpdate {
	mark := "✓"
	if info.Status == models.StatusFailed {
		mark = "✗"
	}
	return ProgressUpdate{
		Phase: CreatingPlaylist,
		Step:  step,
		Total: total,
		Message: fmt.Sprintf("[%d/%d] %s %s (%d/%d tracks)",
			step, total, mark, info.PlaylistName, info.CompletedTracks, info.TotalTracks),
		Data: info,
	}
}

func completeUpdate(rec *models.TransferRecord) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Transfer complete: %d/%d playlists", rec.CompletedPlaylists, rec.TotalPlaylists),
		Data:    rec,
	}
}

func failedUpdate(reason string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Failed,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Transfer failed: %s", reason),
	}
}
