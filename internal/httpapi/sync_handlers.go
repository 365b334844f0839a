package httpapi

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"jobtrack-engine/internal/ingest"
	"jobtrack-engine/internal/mailbox"
)

type SyncHandler struct {
	Sync Syncer
	Log  *zap.Logger
}

type syncReq struct {
	FullSync bool `json:"fullSync"`
}

func (h SyncHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req syncReq
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON: "+err.Error())
		return
	}

	// a run is not abandoned when the client goes away
	res, err := h.Sync.RunSync(context.WithoutCancel(r.Context()), req.FullSync)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, res)
	case errors.Is(err, ingest.ErrSyncInProgress):
		WriteError(w, r, http.StatusConflict, "sync_in_progress", err.Error())
	case errors.Is(err, mailbox.ErrNotConnected):
		WriteError(w, r, http.StatusBadRequest, "not_connected", err.Error())
	default:
		h.Log.Error("sync failed", zap.String("request_id", RequestIDFrom(r.Context())), zap.Error(err))
		WriteError(w, r, http.StatusInternalServerError, "sync_failed", err.Error())
	}
}

func (h SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.Sync.Status(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "status_failed", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, st)
}
