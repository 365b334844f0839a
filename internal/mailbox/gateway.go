package mailbox

import (
	"context"
	"errors"

	"jobtrack-engine/internal/domain"
)

// ErrNotConnected is returned when no mailbox credentials are configured.
var ErrNotConnected = errors.New("mailbox not connected")

// Gateway reads application mail from one mailbox.
type Gateway interface {
	// Search returns every message id matching query; an empty query uses the
	// default application search.
	Search(ctx context.Context, query string) ([]string, error)
	// Fetch returns one full message.
	Fetch(ctx context.Context, id string) (domain.Message, error)
	// HistorySince lists ids added after checkpoint. An empty result means
	// the checkpoint is no longer usable.
	HistorySince(ctx context.Context, checkpoint string) ([]string, error)
	// Profile reports the mailbox address and its current checkpoint.
	Profile(ctx context.Context) (Profile, error)
}

type Profile struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    string `json:"historyId"`
}
