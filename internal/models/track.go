package models

import "strings"

// TrackDescriptor is a source track as captured during enumeration.
type TrackDescriptor struct {
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	DurationMS int      `json:"duration_ms"`
}

// SearchQuery builds the destination search string: the name followed by every artist, space separated.
func (t TrackDescriptor) SearchQuery() string {
	parts := make([]string, 0, len(t.Artists)+1)
	parts = append(parts, t.Name)
	parts = append(parts, t.Artists...)
	return strings.TrimSpace(strings.Join(parts, " "))
}

// Playlist is source playlist metadata as listed for a user.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
	Owner       string `json:"owner,omitempty"`
}

// PlaylistData is one playlist's payload inside a [TransferJob].
type PlaylistData struct {
	PlaylistID   string            `json:"playlist_id"`
	PlaylistName string            `json:"playlist_name"`
	Tracks       []TrackDescriptor `json:"tracks"`
}

// TransferJob is the message handed from dispatch to execution.
type TransferJob struct {
	TransferID    string         `json:"transfer_id"`
	UserID        string         `json:"user_id"`
	PlaylistsData []PlaylistData `json:"playlists_data"`
}

// TotalTracks sums the track counts of every playlist in the job.
func (j TransferJob) TotalTracks() int {
	total := 0
	for _, p := range j.PlaylistsData {
		total += len(p.Tracks)
	}
	return total
}

// SearchResult is a single destination catalog hit.
type SearchResult struct {
	VideoID string   `json:"videoId"`
	Title   string   `json:"title"`
	Artists []string `json:"artists"`
}
