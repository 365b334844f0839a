package main

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"jobtrack-engine/internal/config"
	"jobtrack-engine/internal/mailbox"
	"jobtrack-engine/internal/secrets"
)

// gateways builds the mailbox gateway for each sync run from the current
// config. The IMAP connection is kept between runs until its settings change.
type gateways struct {
	cfgVal *atomic.Value // stores config.Config
	tokens mailbox.TokenStore
	log    *zap.Logger

	mu      sync.Mutex
	imap    *mailbox.IMAP
	imapKey mailbox.IMAPConfig
}

func (g *gateways) forRun(ctx context.Context) (mailbox.Gateway, error) {
	cfg := g.cfgVal.Load().(config.Config)
	mc := cfg.Mailbox

	var (
		gw  mailbox.Gateway
		err error
	)
	switch mc.Provider {
	case config.ProviderIMAP:
		gw, err = g.imapGateway(cfg)
	case config.ProviderGmail, "":
		query := mc.SearchQuery
		if query == "" {
			query = mailbox.GmailQuery(mc.LookbackDays)
		}
		oc := mailbox.OAuthConfig(mc.Gmail.ClientID, mc.Gmail.ClientSecret, mc.Gmail.RedirectURL)
		gw, err = mailbox.ConnectGmail(ctx, oc, g.tokens, query, g.log)
	default:
		return nil, errors.New("unknown mailbox provider " + mc.Provider)
	}
	if err != nil {
		return nil, err
	}
	return mailbox.NewThrottled(gw, mc.RequestsPerSecond, mc.Burst), nil
}

func (g *gateways) imapGateway(cfg config.Config) (mailbox.Gateway, error) {
	pw, err := secrets.GetIMAPPassword(secrets.IMAPKeyringAccount(cfg))
	if errors.Is(err, secrets.ErrNoPassword) {
		return nil, mailbox.ErrNotConnected
	}
	if err != nil {
		return nil, err
	}

	want := mailbox.IMAPConfig{
		Host:         cfg.Mailbox.IMAP.Host,
		Port:         cfg.Mailbox.IMAP.Port,
		Username:     cfg.Mailbox.IMAP.Username,
		Password:     pw,
		Folder:       cfg.Mailbox.IMAP.Folder,
		LookbackDays: cfg.Mailbox.LookbackDays,
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.imap != nil && g.imapKey == want {
		return g.imap, nil
	}
	if g.imap != nil {
		_ = g.imap.Close()
		g.imap = nil
	}
	c, err := mailbox.NewIMAP(want, g.log)
	if err != nil {
		return nil, err
	}
	g.imap, g.imapKey = c, want
	return c, nil
}

func (g *gateways) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.imap == nil {
		return nil
	}
	err := g.imap.Close()
	g.imap = nil
	return err
}
