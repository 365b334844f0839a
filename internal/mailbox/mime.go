package mailbox

import (
	"bytes"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"

	"jobtrack-engine/internal/domain"
)

// ParseRaw decodes an RFC 822 message into a domain.Message. id doubles as
// the checkpoint for mailboxes whose ids are monotonic (IMAP UIDs).
func ParseRaw(id string, raw []byte, received time.Time) (domain.Message, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return domain.Message{}, fmt.Errorf("parse message %s: %w", id, err)
	}

	if received.IsZero() {
		if d, err := mail.ParseDate(env.GetHeader("Date")); err == nil {
			received = d
		}
	}

	m := domain.Message{
		ID:        id,
		ThreadID:  threadID(env),
		HistoryID: id,
		Subject:   env.GetHeader("Subject"),
		From:      env.GetHeader("From"),
		To:        env.GetHeader("To"),
		Body:      strings.TrimSpace(env.Text),
		HTMLBody:  env.HTML,
	}
	if !received.IsZero() {
		m.InternalDate = strconv.FormatInt(received.UnixMilli(), 10)
	}
	return m, nil
}

// threadID picks the root of the reference chain, falling back to the
// message's own id.
func threadID(env *enmime.Envelope) string {
	if refs := strings.Fields(env.GetHeader("References")); len(refs) > 0 {
		return strings.Trim(refs[0], "<>")
	}
	if irt := strings.TrimSpace(env.GetHeader("In-Reply-To")); irt != "" {
		return strings.Trim(irt, "<>")
	}
	return strings.Trim(strings.TrimSpace(env.GetHeader("Message-Id")), "<>")
}
