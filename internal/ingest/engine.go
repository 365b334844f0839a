package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"jobtrack-engine/internal/domain"
	"jobtrack-engine/internal/events"
	"jobtrack-engine/internal/mailbox"
)

var ErrSyncInProgress = errors.New("sync already in progress")

const DefaultAutoImportThreshold = 0.6

const EventSyncCompleted = "sync_completed"

// Store is the persistence the engine needs.
type Store interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	CountSettings(ctx context.Context, prefix string) (int, error)
	ApplicationExistsForMessage(ctx context.Context, messageID string) (bool, error)
	CreateApplication(ctx context.Context, app domain.Application, notes string) (string, error)
	GetSyncState(ctx context.Context) (domain.SyncState, error)
	TryBeginSync(ctx context.Context) (bool, error)
	FinishSync(ctx context.Context, at time.Time, checkpoint *string, imported int) error
	EndSync(ctx context.Context) error
}

type Parser interface {
	Parse(m domain.Message) (domain.ParseOutcome, bool)
}

// GatewayFunc returns the mailbox to read for one run.
type GatewayFunc func(ctx context.Context) (mailbox.Gateway, error)

type Publisher interface {
	Publish(evt string)
}

type Options struct {
	// Threshold is the initial minimum confidence for auto-import. Zero
	// means DefaultAutoImportThreshold.
	Threshold float64
	// LockPath, when set, is a file locked for the duration of a run.
	LockPath string
	Events   Publisher
	Now      func() time.Time
}

type Engine struct {
	store   Store
	gateway GatewayFunc
	parser  Parser
	log     *zap.Logger
	opts    Options

	threshold atomic.Uint64 // math.Float64bits
}

func New(store Store, gateway GatewayFunc, parser Parser, log *zap.Logger, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{store: store, gateway: gateway, parser: parser, log: log.Named("ingest"), opts: opts}
	e.SetThreshold(opts.Threshold)
	return e
}

// SetThreshold changes the auto-import confidence for subsequent messages.
// Values outside (0, 1] fall back to DefaultAutoImportThreshold.
func (e *Engine) SetThreshold(t float64) {
	if t <= 0 || t > 1 {
		t = DefaultAutoImportThreshold
	}
	e.threshold.Store(math.Float64bits(t))
}

func (e *Engine) Threshold() float64 {
	return math.Float64frombits(e.threshold.Load())
}

// RunSync performs one synchronization run. Only one run may be active at a
// time; a concurrent call fails with ErrSyncInProgress.
func (e *Engine) RunSync(ctx context.Context, fullSync bool) (res domain.SyncResult, err error) {
	if e.opts.LockPath != "" {
		fl := flock.New(e.opts.LockPath)
		locked, lerr := fl.TryLock()
		if lerr != nil {
			return res, fmt.Errorf("lock %s: %w", e.opts.LockPath, lerr)
		}
		if !locked {
			return res, ErrSyncInProgress
		}
		defer func() { _ = fl.Unlock() }()
	}

	state, err := e.store.GetSyncState(ctx)
	if err != nil {
		return res, fmt.Errorf("load sync state: %w", err)
	}
	won, err := e.store.TryBeginSync(ctx)
	if err != nil {
		return res, fmt.Errorf("begin sync: %w", err)
	}
	if !won {
		return res, ErrSyncInProgress
	}

	finished := false
	defer func() {
		if finished {
			return
		}
		// the run context may already be done
		if cerr := e.store.EndSync(context.WithoutCancel(ctx)); cerr != nil {
			e.log.Error("clear sync flag", zap.Error(cerr))
		}
	}()

	start := e.opts.Now()
	gw, err := e.gateway(ctx)
	if err != nil {
		return res, err
	}

	ids, err := e.candidates(ctx, gw, fullSync, state.LastHistoryID)
	if err != nil {
		return res, fmt.Errorf("list candidates: %w", err)
	}

	checkpoint := state.LastHistoryID
	var best *big.Int
	if checkpoint != nil {
		best, _ = new(big.Int).SetString(*checkpoint, 10)
	}

	for _, id := range ids {
		hid, err := e.processOne(ctx, gw, id, &res)
		if err != nil {
			res.Errors++
			e.log.Warn("message failed", zap.String("message_id", id), zap.Error(err))
		}
		if n, ok := new(big.Int).SetString(hid, 10); ok && (best == nil || n.Cmp(best) > 0) {
			best = n
			s := hid
			checkpoint = &s
		}
	}

	if err := e.store.FinishSync(ctx, e.opts.Now(), checkpoint, res.AutoImported); err != nil {
		return res, fmt.Errorf("finish sync: %w", err)
	}
	finished = true

	e.log.Info("sync completed",
		zap.Bool("full", fullSync),
		zap.Int("candidates", len(ids)),
		zap.Int("processed", res.TotalProcessed),
		zap.Int("auto_imported", res.AutoImported),
		zap.Int("pending_review", res.PendingReview),
		zap.Int("skipped", res.SkippedDuplicates),
		zap.Int("errors", res.Errors),
		zap.Duration("took", e.opts.Now().Sub(start)),
	)
	if e.opts.Events != nil {
		e.opts.Events.Publish(events.MakeEvent("", EventSyncCompleted, 1, res))
	}
	return res, nil
}

func (e *Engine) candidates(ctx context.Context, gw mailbox.Gateway, fullSync bool, checkpoint *string) ([]string, error) {
	if !fullSync && checkpoint != nil && *checkpoint != "" {
		ids, err := gw.HistorySince(ctx, *checkpoint)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			return ids, nil
		}
		e.log.Info("checkpoint unusable, falling back to search", zap.String("checkpoint", *checkpoint))
	}
	return gw.Search(ctx, "")
}

// processOne handles one candidate and returns the fetched message's history
// id, which is empty if nothing was fetched.
func (e *Engine) processOne(ctx context.Context, gw mailbox.Gateway, id string, res *domain.SyncResult) (string, error) {
	exists, err := e.store.ApplicationExistsForMessage(ctx, id)
	if err != nil {
		return "", err
	}
	if exists {
		res.SkippedDuplicates++
		return "", nil
	}

	key := domain.PendingReviewKey(id)
	if _, ok, err := e.store.GetSetting(ctx, key); err != nil {
		return "", err
	} else if ok {
		res.SkippedDuplicates++
		return "", nil
	}

	msg, err := gw.Fetch(ctx, id)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	res.TotalProcessed++

	out, ok := e.parser.Parse(msg)
	if !ok {
		e.log.Debug("not an application", zap.String("message_id", id))
		return msg.HistoryID, nil
	}

	if out.Confidence >= e.Threshold() {
		app := NewApplication(out.Parsed, id)
		note := fmt.Sprintf("Auto-imported from Gmail (%s parser, confidence: %d%%)", out.ParserName, Percent(out.Confidence))
		if _, err := e.store.CreateApplication(ctx, app, note); err != nil {
			return msg.HistoryID, fmt.Errorf("create application: %w", err)
		}
		res.AutoImported++
		return msg.HistoryID, nil
	}

	pr := domain.PendingReview{
		Key:        key,
		MessageID:  id,
		Subject:    msg.Subject,
		From:       msg.From,
		ReceivedAt: msg.ReceivedAt().UTC().Format(domain.ReceivedAtLayout),
		Parsed:     out.Parsed,
		Confidence: out.Confidence,
		ParserName: out.ParserName,
	}
	b, err := json.Marshal(pr)
	if err != nil {
		return msg.HistoryID, err
	}
	if err := e.store.SetSetting(ctx, key, string(b)); err != nil {
		return msg.HistoryID, fmt.Errorf("save review: %w", err)
	}
	res.PendingReview++
	return msg.HistoryID, nil
}

// NewApplication builds the record persisted for a parsed message.
func NewApplication(p domain.ExtractedApplication, messageID string) domain.Application {
	mid := messageID
	return domain.Application{
		CompanyName:     p.CompanyName,
		PositionTitle:   p.PositionTitle,
		Status:          p.Status,
		Platform:        p.Platform,
		ApplicationDate: p.ApplicationDate,
		URL:             p.URL,
		ContactEmail:    p.ContactEmail,
		Source:          domain.SourceGmailSync,
		EmailMessageID:  &mid,
	}
}

// Percent renders a confidence as a whole percentage.
func Percent(c float64) int {
	return int(math.Round(c * 100))
}

type Status struct {
	LastSyncAt         *time.Time `json:"lastSyncAt"`
	SyncInProgress     bool       `json:"syncInProgress"`
	TotalSynced        int64      `json:"totalSynced"`
	PendingReviewCount int        `json:"pendingReviewCount"`
	LastHistoryID      *string    `json:"lastHistoryId"`
}

func (e *Engine) Status(ctx context.Context) (Status, error) {
	st, err := e.store.GetSyncState(ctx)
	if err != nil {
		return Status{}, err
	}
	n, err := e.store.CountSettings(ctx, domain.PendingReviewPrefix)
	if err != nil {
		return Status{}, err
	}
	return Status{
		LastSyncAt:         st.LastSyncAt,
		SyncInProgress:     st.SyncInProgress,
		TotalSynced:        st.TotalSynced,
		PendingReviewCount: n,
		LastHistoryID:      st.LastHistoryID,
	}, nil
}
