package mailbox

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"jobtrack-engine/internal/domain"
)

const (
	gmailUser     = "me"
	gmailPageSize = 100
)

// Gmail reads the authenticated user's mailbox through the Gmail API.
type Gmail struct {
	svc   *gmail.Service
	query string
	log   *zap.Logger
}

// NewGmail builds a gateway on an authorized HTTP client.
func NewGmail(ctx context.Context, httpClient *http.Client, query string, log *zap.Logger, opts ...option.ClientOption) (*Gmail, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	if query == "" {
		query = GmailQuery(DefaultLookbackDays)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gmail{svc: svc, query: query, log: log}, nil
}

func (g *Gmail) Search(ctx context.Context, query string) ([]string, error) {
	if query == "" {
		query = g.query
	}
	var ids []string
	call := g.svc.Users.Messages.List(gmailUser).Q(query).MaxResults(gmailPageSize)
	err := call.Pages(ctx, func(page *gmail.ListMessagesResponse) error {
		for _, m := range page.Messages {
			if m.Id != "" {
				ids = append(ids, m.Id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gmail list messages: %w", err)
	}
	g.log.Debug("gmail search", zap.Int("ids", len(ids)))
	return ids, nil
}

func (g *Gmail) Fetch(ctx context.Context, id string) (domain.Message, error) {
	res, err := g.svc.Users.Messages.Get(gmailUser, id).Format("full").Context(ctx).Do()
	if err != nil {
		return domain.Message{}, fmt.Errorf("gmail get message %s: %w", id, err)
	}

	m := domain.Message{
		ID:       res.Id,
		ThreadID: res.ThreadId,
	}
	if m.ID == "" {
		m.ID = id
	}
	if res.HistoryId != 0 {
		m.HistoryID = strconv.FormatUint(res.HistoryId, 10)
	}
	if res.InternalDate != 0 {
		m.InternalDate = strconv.FormatInt(res.InternalDate, 10)
	}
	if res.Payload != nil {
		m.Subject = header(res.Payload.Headers, "Subject")
		m.From = header(res.Payload.Headers, "From")
		m.To = header(res.Payload.Headers, "To")
		m.Body = partBody(res.Payload, "text/plain")
		m.HTMLBody = partBody(res.Payload, "text/html")
	}
	return m, nil
}

func (g *Gmail) HistorySince(ctx context.Context, checkpoint string) ([]string, error) {
	start, err := strconv.ParseUint(checkpoint, 10, 64)
	if err != nil {
		// Not a Gmail history id; treat as expired.
		return nil, nil
	}

	var ids []string
	call := g.svc.Users.History.List(gmailUser).StartHistoryId(start).HistoryTypes("messageAdded")
	err = call.Pages(ctx, func(page *gmail.ListHistoryResponse) error {
		for _, h := range page.History {
			for _, added := range h.MessagesAdded {
				if added.Message != nil && added.Message.Id != "" {
					ids = append(ids, added.Message.Id)
				}
			}
		}
		return nil
	})
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			g.log.Info("gmail history expired", zap.String("start_history_id", checkpoint))
			return nil, nil
		}
		return nil, fmt.Errorf("gmail list history: %w", err)
	}
	return ids, nil
}

func (g *Gmail) Profile(ctx context.Context) (Profile, error) {
	p, err := g.svc.Users.GetProfile(gmailUser).Context(ctx).Do()
	if err != nil {
		return Profile{}, fmt.Errorf("gmail get profile: %w", err)
	}
	out := Profile{EmailAddress: p.EmailAddress}
	if p.HistoryId != 0 {
		out.HistoryID = strconv.FormatUint(p.HistoryId, 10)
	}
	return out, nil
}

func header(hs []*gmail.MessagePartHeader, name string) string {
	for _, h := range hs {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// partBody returns the first part of mimeType in a depth-first walk.
func partBody(p *gmail.MessagePart, mimeType string) string {
	if p == nil {
		return ""
	}
	if p.MimeType == mimeType && p.Body != nil && p.Body.Data != "" {
		if b, err := decodeBase64URL(p.Body.Data); err == nil {
			return string(b)
		}
	}
	for _, part := range p.Parts {
		if s := partBody(part, mimeType); s != "" {
			return s
		}
	}
	return ""
}

func decodeBase64URL(s string) ([]byte, error) {
	if b, err := base64.URLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
