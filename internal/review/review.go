package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"jobtrack-engine/internal/domain"
	"jobtrack-engine/internal/events"
	"jobtrack-engine/internal/ingest"
	"jobtrack-engine/internal/store"
)

var (
	ErrNotFound        = errors.New("review not found")
	ErrInvalidOverride = errors.New("invalid override")
)

const EventReviewResolved = "review_resolved"

type Store interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	DeleteSetting(ctx context.Context, key string) (bool, error)
	ListSettings(ctx context.Context, prefix string) ([]store.Setting, error)
	PromoteReview(ctx context.Context, key string, app domain.Application, notes string) (string, error)
}

// Overrides replace fields of the stored parse on approval. Empty fields
// keep the parsed value.
type Overrides struct {
	CompanyName   string          `json:"companyName,omitempty"`
	PositionTitle string          `json:"positionTitle,omitempty"`
	Platform      domain.Platform `json:"platform,omitempty"`
}

type Service struct {
	store  Store
	log    *zap.Logger
	events ingest.Publisher
}

func NewService(s Store, log *zap.Logger, pub ingest.Publisher) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: s, log: log.Named("review"), events: pub}
}

// List returns every pending review, most recently received first.
// Records that fail to decode are logged and skipped.
func (s *Service) List(ctx context.Context) ([]domain.PendingReview, error) {
	rows, err := s.store.ListSettings(ctx, domain.PendingReviewPrefix)
	if err != nil {
		return nil, err
	}

	out := make([]domain.PendingReview, 0, len(rows))
	for _, row := range rows {
		var r domain.PendingReview
		if err := json.Unmarshal([]byte(row.Value), &r); err != nil {
			s.log.Warn("skip malformed review", zap.String("key", row.Key), zap.Error(err))
			continue
		}
		if r.Key == "" {
			r.Key = row.Key
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReceivedTime().After(out[j].ReceivedTime())
	})
	return out, nil
}

func (s *Service) Get(ctx context.Context, key string) (domain.PendingReview, error) {
	key = domain.NormalizeReviewKey(key)
	raw, ok, err := s.store.GetSetting(ctx, key)
	if err != nil {
		return domain.PendingReview{}, err
	}
	if !ok {
		return domain.PendingReview{}, ErrNotFound
	}
	var r domain.PendingReview
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return domain.PendingReview{}, fmt.Errorf("decode review %s: %w", key, err)
	}
	return r, nil
}

// Approve imports the review under key as an application and removes the
// review. It returns the new application id.
func (s *Service) Approve(ctx context.Context, key string, ov *Overrides) (string, error) {
	key = domain.NormalizeReviewKey(key)
	r, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}

	parsed := r.Parsed
	if ov != nil {
		if v := strings.TrimSpace(ov.CompanyName); v != "" {
			parsed.CompanyName = v
		}
		if v := strings.TrimSpace(ov.PositionTitle); v != "" {
			parsed.PositionTitle = v
		}
		if ov.Platform != "" {
			if !ov.Platform.Valid() {
				return "", fmt.Errorf("%w: platform %q", ErrInvalidOverride, ov.Platform)
			}
			parsed.Platform = ov.Platform
		}
	}
	if parsed.Status == "" {
		parsed.Status = domain.StatusApplied
	}

	messageID := r.MessageID
	if messageID == "" {
		messageID = strings.TrimPrefix(key, domain.PendingReviewPrefix)
	}
	note := fmt.Sprintf("Imported from Gmail review (%s parser, confidence: %d%%)", r.ParserName, ingest.Percent(r.Confidence))

	id, err := s.store.PromoteReview(ctx, key, ingest.NewApplication(parsed, messageID), note)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("approve %s: %w", key, err)
	}

	s.log.Info("review approved", zap.String("key", key), zap.String("application_id", id))
	s.publish("approved", key, id)
	return id, nil
}

func (s *Service) Dismiss(ctx context.Context, key string) error {
	key = domain.NormalizeReviewKey(key)
	removed, err := s.store.DeleteSetting(ctx, key)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotFound
	}
	s.log.Info("review dismissed", zap.String("key", key))
	s.publish("dismissed", key, "")
	return nil
}

func (s *Service) publish(action, key, appID string) {
	if s.events == nil {
		return
	}
	s.events.Publish(events.MakeEvent("", EventReviewResolved, 1, map[string]string{
		"action":        action,
		"key":           key,
		"applicationId": appID,
	}))
}
