package httpapi

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"jobtrack-engine/internal/config"
	"jobtrack-engine/internal/domain"
	"jobtrack-engine/internal/events"
	"jobtrack-engine/internal/ingest"
	"jobtrack-engine/internal/mailbox"
	"jobtrack-engine/internal/review"
)

type Syncer interface {
	RunSync(ctx context.Context, fullSync bool) (domain.SyncResult, error)
	Status(ctx context.Context) (ingest.Status, error)
}

type Reviewer interface {
	List(ctx context.Context) ([]domain.PendingReview, error)
	Approve(ctx context.Context, key string, ov *review.Overrides) (string, error)
	Dismiss(ctx context.Context, key string) error
}

type Store interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	Disconnect(ctx context.Context, keys []string) error
	ListApplications(ctx context.Context, limit int) ([]domain.Application, error)
	GetApplication(ctx context.Context, id string) (domain.Application, error)
}

type Deps struct {
	Log   *zap.Logger
	Hub   *events.Hub
	Store Store

	Sync    Syncer
	Reviews Reviewer

	// Gateway opens the configured mailbox; used to look up the account
	// address on connect. Optional.
	Gateway func(ctx context.Context) (mailbox.Gateway, error)

	CfgVal      *atomic.Value // stores config.Config
	UserCfgPath string
	LoadCfg     func() (config.Config, error)
	// OnConfig is called after a new config has been saved and loaded.
	OnConfig func(config.Config)
}
