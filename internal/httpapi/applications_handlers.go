package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"jobtrack-engine/internal/domain"
	"jobtrack-engine/internal/store"
)

type ApplicationsHandler struct {
	Store Store
}

// List returns applications newest first. ?limit=N caps the result.
func (h ApplicationsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			WriteError(w, r, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	apps, err := h.Store.ListApplications(r.Context(), limit)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	if apps == nil {
		apps = []domain.Application{}
	}
	WriteJSON(w, http.StatusOK, apps)
}

func (h ApplicationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	app, err := h.Store.GetApplication(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, r, http.StatusNotFound, "not_found", "application not found")
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "get_failed", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, app)
}
