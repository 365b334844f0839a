package domain

import (
	"strings"
	"time"
)

// PendingReviewPrefix namespaces review records in the settings store.
const PendingReviewPrefix = "pending_review_"

// ReceivedAtLayout matches the millisecond ISO-8601 form stored in review
// records.
const ReceivedAtLayout = "2006-01-02T15:04:05.000Z07:00"

// PendingReview is a low-confidence parse awaiting a human decision. It is
// stored as JSON under Key.
type PendingReview struct {
	Key        string               `json:"key"`
	MessageID  string               `json:"messageId"`
	Subject    string               `json:"subject"`
	From       string               `json:"from"`
	ReceivedAt string               `json:"receivedAt"`
	Parsed     ExtractedApplication `json:"parsed"`
	Confidence float64              `json:"confidence"`
	ParserName string               `json:"parserName"`
}

// ReceivedTime parses ReceivedAt; malformed values sort as the zero time.
func (r PendingReview) ReceivedTime() time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.ReceivedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

func PendingReviewKey(messageID string) string {
	return PendingReviewPrefix + messageID
}

// NormalizeReviewKey accepts either a bare message id or a full review key.
func NormalizeReviewKey(s string) string {
	if strings.HasPrefix(s, PendingReviewPrefix) {
		return s
	}
	return PendingReviewKey(s)
}
