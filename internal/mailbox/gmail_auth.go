package mailbox

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// Settings keys holding the Google OAuth credentials.
const (
	KeyAccessToken  = "google_access_token"
	KeyRefreshToken = "google_refresh_token"
	KeyTokenExpiry  = "google_token_expiry"
	KeyEmail        = "google_email"
)

// CredentialKeys are removed on disconnect.
var CredentialKeys = []string{KeyAccessToken, KeyRefreshToken, KeyTokenExpiry, KeyEmail}

// TokenStore is the settings subset used to persist OAuth tokens.
type TokenStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// OAuthConfig builds the Google OAuth client config for read-only Gmail.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}
}

// LoadToken reads the stored token. ErrNotConnected means no usable
// credentials are stored.
func LoadToken(ctx context.Context, s TokenStore) (*oauth2.Token, error) {
	access, okA, err := s.GetSetting(ctx, KeyAccessToken)
	if err != nil {
		return nil, err
	}
	refresh, okR, err := s.GetSetting(ctx, KeyRefreshToken)
	if err != nil {
		return nil, err
	}
	if !okA || !okR || access == "" || refresh == "" {
		return nil, ErrNotConnected
	}
	tok := &oauth2.Token{AccessToken: access, RefreshToken: refresh, TokenType: "Bearer"}
	if exp, ok, err := s.GetSetting(ctx, KeyTokenExpiry); err == nil && ok {
		if secs, err := strconv.ParseInt(exp, 10, 64); err == nil {
			tok.Expiry = time.Unix(secs, 0)
		}
	}
	return tok, nil
}

// SaveToken stores the non-empty fields of tok.
func SaveToken(ctx context.Context, s TokenStore, tok *oauth2.Token) error {
	if tok.AccessToken != "" {
		if err := s.SetSetting(ctx, KeyAccessToken, tok.AccessToken); err != nil {
			return err
		}
	}
	if tok.RefreshToken != "" {
		if err := s.SetSetting(ctx, KeyRefreshToken, tok.RefreshToken); err != nil {
			return err
		}
	}
	if !tok.Expiry.IsZero() {
		if err := s.SetSetting(ctx, KeyTokenExpiry, strconv.FormatInt(tok.Expiry.Unix(), 10)); err != nil {
			return err
		}
	}
	return nil
}

// persistingSource writes refreshed tokens back to the store.
type persistingSource struct {
	ctx   context.Context
	base  oauth2.TokenSource
	store TokenStore
	log   *zap.Logger

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		if err := SaveToken(p.ctx, p.store, tok); err != nil {
			p.log.Warn("persist refreshed token", zap.Error(err))
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}

// GmailHTTPClient returns an HTTP client authorized with the stored token,
// refreshing and persisting it as needed.
func GmailHTTPClient(ctx context.Context, cfg *oauth2.Config, s TokenStore, log *zap.Logger) (*http.Client, error) {
	tok, err := LoadToken(ctx, s)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	bg := context.WithoutCancel(ctx)
	src := &persistingSource{
		ctx:   bg,
		base:  cfg.TokenSource(bg, tok),
		store: s,
		log:   log,
		last:  tok.AccessToken,
	}
	return oauth2.NewClient(bg, oauth2.ReuseTokenSource(tok, src)), nil
}

// ConnectGmail loads credentials and returns a ready Gmail gateway.
func ConnectGmail(ctx context.Context, cfg *oauth2.Config, s TokenStore, query string, log *zap.Logger) (*Gmail, error) {
	hc, err := GmailHTTPClient(ctx, cfg, s, log)
	if err != nil {
		return nil, err
	}
	g, err := NewGmail(ctx, hc, query, log)
	if err != nil {
		return nil, fmt.Errorf("connect gmail: %w", err)
	}
	return g, nil
}
