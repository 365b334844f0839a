package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"jobtrack-engine/internal/config"
	"jobtrack-engine/internal/mailbox"
	"jobtrack-engine/internal/secrets"
)

type ConnectionHandler struct {
	Store   Store
	CfgVal  *atomic.Value // stores config.Config
	Gateway func(ctx context.Context) (mailbox.Gateway, error)
	Log     *zap.Logger
}

type connectionResp struct {
	Provider  string `json:"provider"`
	Connected bool   `json:"connected"`
	Email     string `json:"email,omitempty"`
}

type connectReq struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	Expiry       time.Time `json:"expiry"`
	Email        string    `json:"email"`
}

func (h ConnectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg := h.CfgVal.Load().(config.Config)
	resp := connectionResp{Provider: cfg.Mailbox.Provider}

	switch cfg.Mailbox.Provider {
	case config.ProviderIMAP:
		acct := secrets.IMAPKeyringAccount(cfg)
		if _, err := secrets.GetIMAPPassword(acct); err == nil {
			resp.Connected = true
			resp.Email = cfg.Mailbox.IMAP.Username
		}
	default:
		_, err := mailbox.LoadToken(r.Context(), h.Store)
		if err != nil && !errors.Is(err, mailbox.ErrNotConnected) {
			WriteError(w, r, http.StatusInternalServerError, "connection_failed", err.Error())
			return
		}
		resp.Connected = err == nil
		if resp.Connected {
			resp.Email, _, _ = h.Store.GetSetting(r.Context(), mailbox.KeyEmail)
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Put stores Gmail credentials obtained from the consent flow.
func (h ConnectionHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req connectReq
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON: "+err.Error())
		return
	}
	req.AccessToken = strings.TrimSpace(req.AccessToken)
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.AccessToken == "" || req.RefreshToken == "" {
		WriteError(w, r, http.StatusBadRequest, "invalid_token", "accessToken and refreshToken are required")
		return
	}

	tok := &oauth2.Token{AccessToken: req.AccessToken, RefreshToken: req.RefreshToken, Expiry: req.Expiry}
	if err := mailbox.SaveToken(r.Context(), h.Store, tok); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "save_failed", err.Error())
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = h.profileEmail(r.Context())
	}
	if email != "" {
		if err := h.Store.SetSetting(r.Context(), mailbox.KeyEmail, email); err != nil {
			WriteError(w, r, http.StatusInternalServerError, "save_failed", err.Error())
			return
		}
	}
	h.Get(w, r)
}

// profileEmail asks the mailbox for its address. Failures are logged and
// leave the address unset.
func (h ConnectionHandler) profileEmail(ctx context.Context) string {
	if h.Gateway == nil {
		return ""
	}
	gw, err := h.Gateway(ctx)
	if err != nil {
		h.Log.Warn("open mailbox for profile", zap.Error(err))
		return ""
	}
	p, err := gw.Profile(ctx)
	if err != nil {
		h.Log.Warn("mailbox profile", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(p.EmailAddress)
}

// Delete forgets all mailbox credentials and resets the sync checkpoint.
// The cumulative synced count is kept.
func (h ConnectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Disconnect(r.Context(), mailbox.CredentialKeys); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "disconnect_failed", err.Error())
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	if err := secrets.DeleteIMAPPassword(secrets.IMAPKeyringAccount(cfg)); err != nil {
		h.Log.Warn("delete imap password", zap.Error(err))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}
