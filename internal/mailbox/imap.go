package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"jobtrack-engine/internal/domain"
)

type IMAPConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	Folder       string
	LookbackDays int
	TLS          *tls.Config
}

// IMAP reads one folder over IMAPS. Message ids are UIDs, which also serve as
// checkpoints. The connection is opened lazily and reused until an error.
type IMAP struct {
	cfg IMAPConfig
	log *zap.Logger

	mu sync.Mutex
	c  *imapclient.Client
}

func NewIMAP(cfg IMAPConfig, log *zap.Logger) (*IMAP, error) {
	if cfg.Host == "" {
		return nil, errors.New("imap host is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, ErrNotConnected
	}
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = DefaultLookbackDays
	}
	if cfg.TLS == nil {
		cfg.TLS = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: cfg.Host}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &IMAP{cfg: cfg, log: log}, nil
}

func (g *IMAP) client() (*imapclient.Client, error) {
	if g.c != nil {
		return g.c, nil
	}
	addr := net.JoinHostPort(g.cfg.Host, strconv.Itoa(g.cfg.Port))
	c, err := imapclient.DialTLS(addr, &imapclient.Options{TLSConfig: g.cfg.TLS})
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}
	if err := c.Login(g.cfg.Username, g.cfg.Password).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select(g.cfg.Folder, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("imap select %s: %w", g.cfg.Folder, err)
	}
	g.c = c
	return c, nil
}

// drop discards a connection after a failed command so the next call redials.
func (g *IMAP) drop() {
	if g.c != nil {
		_ = g.c.Close()
		g.c = nil
	}
}

// do runs fn with the shared client, honouring ctx cancellation.
func (g *IMAP) do(ctx context.Context, fn func(c *imapclient.Client) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	c, err := g.client()
	if err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-done:
		}
	}()

	if err := fn(c); err != nil {
		g.drop()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (g *IMAP) Search(ctx context.Context, query string) ([]string, error) {
	criteria := defaultCriteria(time.Now().AddDate(0, 0, -g.cfg.LookbackDays))
	if query != "" {
		criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{Key: "Subject", Value: query})
	}

	var uids []imap.UID
	err := g.do(ctx, func(c *imapclient.Client) error {
		data, err := c.UIDSearch(criteria, nil).Wait()
		if err != nil {
			return fmt.Errorf("imap uid search: %w", err)
		}
		uids = data.AllUIDs()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return uidStrings(uids, 0), nil
}

func (g *IMAP) HistorySince(ctx context.Context, checkpoint string) ([]string, error) {
	last, err := strconv.ParseUint(checkpoint, 10, 32)
	if err != nil {
		return nil, nil
	}

	var uids []imap.UID
	err = g.do(ctx, func(c *imapclient.Client) error {
		set := imap.UIDSet{imap.UIDRange{Start: imap.UID(last + 1), Stop: 0}}
		data, err := c.UIDSearch(&imap.SearchCriteria{UID: []imap.UIDSet{set}}, nil).Wait()
		if err != nil {
			return fmt.Errorf("imap uid search since %d: %w", last, err)
		}
		uids = data.AllUIDs()
		return nil
	})
	if err != nil {
		return nil, err
	}
	// "N:*" always includes the highest UID, even when it is below N.
	return uidStrings(uids, imap.UID(last)), nil
}

func (g *IMAP) Fetch(ctx context.Context, id string) (domain.Message, error) {
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return domain.Message{}, fmt.Errorf("imap: invalid uid %q", id)
	}

	section := &imap.FetchItemBodySection{Specifier: imap.PartSpecifierNone, Peek: true}
	var (
		raw      []byte
		received time.Time
	)
	err = g.do(ctx, func(c *imapclient.Client) error {
		cmd := c.Fetch(imap.UIDSetNum(imap.UID(n)), &imap.FetchOptions{
			UID:          true,
			InternalDate: true,
			BodySection:  []*imap.FetchItemBodySection{section},
		})
		defer func() { _ = cmd.Close() }()

		for {
			msg := cmd.Next()
			if msg == nil {
				break
			}
			buf, err := msg.Collect()
			if err != nil {
				return fmt.Errorf("imap fetch collect: %w", err)
			}
			received = buf.InternalDate
			raw = append([]byte(nil), buf.FindBodySection(section)...)
		}
		return cmd.Close()
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("imap fetch %s: %w", id, err)
	}
	if raw == nil {
		return domain.Message{}, fmt.Errorf("imap fetch %s: message not found", id)
	}
	return ParseRaw(id, raw, received)
}

func (g *IMAP) Profile(ctx context.Context) (Profile, error) {
	p := Profile{EmailAddress: g.cfg.Username}
	err := g.do(ctx, func(c *imapclient.Client) error {
		data, err := c.Status(g.cfg.Folder, &imap.StatusOptions{UIDNext: true}).Wait()
		if err != nil {
			return fmt.Errorf("imap status: %w", err)
		}
		if data.UIDNext > 0 {
			p.HistoryID = strconv.FormatUint(uint64(data.UIDNext)-1, 10)
		}
		return nil
	})
	return p, err
}

// Close logs out and closes the connection, if any.
func (g *IMAP) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.c == nil {
		return nil
	}
	if err := g.c.Logout().Wait(); err != nil {
		g.log.Debug("imap logout", zap.Error(err))
	}
	err := g.c.Close()
	g.c = nil
	return err
}

func defaultCriteria(since time.Time) *imap.SearchCriteria {
	subject := func(w string) imap.SearchCriteria {
		return imap.SearchCriteria{Header: []imap.SearchCriteriaHeaderField{{Key: "Subject", Value: w}}}
	}

	var subjects []imap.SearchCriteria
	for _, w := range SubjectKeywords {
		subjects = append(subjects, subject(w))
	}
	c := anyOf(subjects)
	c.Since = since
	for _, w := range ExcludedSubjectWords {
		c.Not = append(c.Not, subject(w))
	}
	return &c
}

// anyOf folds criteria into nested ORs.
func anyOf(cs []imap.SearchCriteria) imap.SearchCriteria {
	if len(cs) == 1 {
		return cs[0]
	}
	return imap.SearchCriteria{Or: [][2]imap.SearchCriteria{{cs[0], anyOf(cs[1:])}}}
}

func uidStrings(uids []imap.UID, after imap.UID) []string {
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	out := make([]string, 0, len(uids))
	for _, u := range uids {
		if u > after {
			out = append(out, strconv.FormatUint(uint64(u), 10))
		}
	}
	return out
}
