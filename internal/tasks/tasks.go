package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/song-migrations/internal/models"
	"github.com/desertthunder/song-migrations/internal/shared"
)

// DefaultTopic is the bus topic jobs are published to when none is configured.
const DefaultTopic = "playlist-transfer"

// TransferStore persists transfer records.
//
// Get returns (nil, nil) for an unknown id.
type TransferStore interface {
	Save(ctx context.Context, rec *models.TransferRecord) error
	Get(ctx context.Context, transferID string) (*models.TransferRecord, error)
}

// TokenSource yields a usable access token for a user, refreshing when needed.
// It fails with [shared.ErrNotAuthenticated] when the user is not logged in.
type TokenSource interface {
	AccessToken(ctx context.Context, userID string) (string, error)
}

// Status returns the stored record for transferID or [shared.ErrTransferNotFound].
func Status(ctx context.Context, store TransferStore, transferID string) (*models.TransferRecord, error) {
	if transferID == "" {
		return nil, fmt.Errorf("%w: transfer id", shared.ErrMissingArgument)
	}

	rec, err := store.Get(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrTransferNotFound, transferID)
	}
	return rec, nil
}
