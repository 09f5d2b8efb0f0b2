// package formatter renders transfer reports and playlist listings (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/shared"
)

// Supported output formats.
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

var reportHeaders = []string{
	"Source Playlist ID", "Destination Playlist ID", "Name", "Status",
	"Total", "Completed", "Failed", "Not Found", "Error",
}

// ReportToCSV writes one row per playlist entry of rec.
func ReportToCSV(rec *models.TransferRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(reportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, p := range rec.Playlists {
		row := []string{
			p.SourcePlaylistID,
			p.DestinationPlaylistID,
			p.PlaylistName,
			string(p.Status),
			strconv.Itoa(p.TotalTracks),
			strconv.Itoa(p.CompletedTracks),
			strconv.Itoa(p.FailedTracks),
			strconv.Itoa(p.NotFoundTracks),
			p.ErrorDetails,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ReportToMarkdown renders rec as a summary followed by a playlist table.
func ReportToMarkdown(rec *models.TransferRecord) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Transfer %s\n\n", rec.TransferID)
	fmt.Fprintf(&buf, "**Status**: %s\n", rec.Status)
	fmt.Fprintf(&buf, "**User**: %s\n", rec.UserID)
	fmt.Fprintf(&buf, "**Started**: %s\n", formatUnix(rec.TimestampStarted))
	if rec.LastUpdated > 0 {
		fmt.Fprintf(&buf, "**Updated**: %s\n", formatUnix(rec.LastUpdated))
	}
	fmt.Fprintf(&buf, "**Playlists**: %d/%d completed, %d failed\n",
		rec.CompletedPlaylists, rec.TotalPlaylists, rec.FailedPlaylists)
	fmt.Fprintf(&buf, "**Tracks**: %d/%d matched (%s), %d failed, %d not found\n",
		rec.CompletedTracks, rec.TotalTracks, percent(rec.CompletedTracks, rec.TotalTracks),
		rec.FailedTracks, rec.NotFoundTracks)
	if rec.ErrorDetails != "" {
		fmt.Fprintf(&buf, "**Error**: %s\n", rec.ErrorDetails)
	}

	if len(rec.Playlists) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("\n## Playlists\n\n")
	buf.WriteString("| Playlist | Status | Matched | Failed | Not Found |\n")
	buf.WriteString("| --- | --- | --- | --- | --- |\n")
	for _, p := range rec.Playlists {
		fmt.Fprintf(&buf, "| %s | %s | %d/%d | %d | %d |\n",
			escapeCell(p.PlaylistName), p.Status, p.CompletedTracks, p.TotalTracks, p.FailedTracks, p.NotFoundTracks)
	}

	for _, p := range rec.Playlists {
		if p.ErrorDetails != "" {
			fmt.Fprintf(&buf, "\n- **%s**: %s", p.PlaylistName, p.ErrorDetails)
		}
	}
	return buf.Bytes(), nil
}

// ReportToText renders rec for a terminal.
func ReportToText(rec *models.TransferRecord) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Transfer: %s\n", rec.TransferID)
	fmt.Fprintf(&buf, "Status: %s\n", rec.Status)
	fmt.Fprintf(&buf, "Playlists: %d/%d completed, %d failed\n",
		rec.CompletedPlaylists, rec.TotalPlaylists, rec.FailedPlaylists)
	fmt.Fprintf(&buf, "Tracks: %d/%d matched, %d failed, %d not found\n",
		rec.CompletedTracks, rec.TotalTracks, rec.FailedTracks, rec.NotFoundTracks)
	if rec.ErrorDetails != "" {
		fmt.Fprintf(&buf, "Error: %s\n", rec.ErrorDetails)
	}

	if len(rec.Playlists) > 0 {
		buf.WriteString("\n")
	}
	for i, p := range rec.Playlists {
		fmt.Fprintf(&buf, "%d. %s [%s] %d/%d\n", i+1, p.PlaylistName, p.Status, p.CompletedTracks, p.TotalTracks)
	}
	return buf.Bytes(), nil
}

// RenderReport renders rec in format and returns the bytes with their MIME type.
func RenderReport(rec *models.TransferRecord, format string) ([]byte, string, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		data, err := ReportToCSV(rec)
		return data, "text/csv", err
	case FormatMarkdown, "md":
		data, err := ReportToMarkdown(rec)
		return data, "text/markdown", err
	case FormatText, "txt":
		data, err := ReportToText(rec)
		return data, "text/plain", err
	case FormatJSON, "":
		data, err := shared.MarshalJSON(rec, true)
		return data, "application/json", err
	default:
		return nil, "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// Extension returns the file extension used for format.
func Extension(format string) string {
	switch strings.ToLower(format) {
	case FormatCSV:
		return ".csv"
	case FormatMarkdown, "md":
		return ".md"
	case FormatText, "txt":
		return ".txt"
	default:
		return ".json"
	}
}

// WriteReport writes rec to path in format.
//
// Defaults to transfer_{id}{ext} as the filename.
func WriteReport(rec *models.TransferRecord, format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("transfer_%s%s", rec.TransferID, Extension(format))
	}

	data, _, err := RenderReport(rec, format)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}

// PlaylistsToCSV converts a playlist listing to CSV with columns: ID, Name, Tracks, Public, Owner
func PlaylistsToCSV(playlists []models.Playlist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"ID", "Name", "Tracks", "Public", "Owner"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, p := range playlists {
		row := []string{p.ID, p.Name, strconv.Itoa(p.TrackCount), strconv.FormatBool(p.Public), p.Owner}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

func percent(n, total int) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.0f%%", float64(n)/float64(total)*100)
}

func formatUnix(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
