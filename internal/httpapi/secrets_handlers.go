package httpapi

import (
	"net/http"
	"sync/atomic"

	"jobtrack-engine/internal/config"
	"jobtrack-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

type setIMAPPasswordReq struct {
	Password string `json:"password"`
}

func (h SecretsHandler) SetIMAPPassword(w http.ResponseWriter, r *http.Request) {
	var req setIMAPPasswordReq
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON")
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	acct := secrets.IMAPKeyringAccount(cfg)
	if acct == "" {
		WriteError(w, r, http.StatusBadRequest, "imap_not_configured", "set mailbox.imap.host and username first")
		return
	}
	if err := secrets.SetIMAPPassword(acct, req.Password); err != nil {
		WriteError(w, r, http.StatusBadRequest, "store_failed", "failed to store password: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
