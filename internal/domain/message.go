package domain

import (
	"strconv"
	"time"
)

// Message is one mailbox entry as handed to the parsers. It is built once per
// fetch by a mailbox gateway and never mutated afterwards.
type Message struct {
	ID       string
	ThreadID string
	// HistoryID is the gateway checkpoint at which this message was seen.
	// Compared as an arbitrary-precision integer.
	HistoryID string
	// InternalDate is the receipt time in epoch milliseconds.
	InternalDate string
	Subject      string
	From         string
	To           string
	Body         string
	HTMLBody     string
}

// ReceivedAt converts InternalDate to a UTC time. An unparseable value yields
// the zero time.
func (m Message) ReceivedAt() time.Time {
	ms, err := strconv.ParseInt(m.InternalDate, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
