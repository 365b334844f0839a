package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"jobtrack-engine/internal/review"
)

type ReviewsHandler struct {
	Reviews Reviewer
}

type reviewActionReq struct {
	Action    string            `json:"action"`
	Overrides *review.Overrides `json:"overrides,omitempty"`
}

type reviewActionResp struct {
	Success       bool   `json:"success"`
	Action        string `json:"action"`
	ApplicationID string `json:"applicationId,omitempty"`
}

func (h ReviewsHandler) List(w http.ResponseWriter, r *http.Request) {
	rs, err := h.Reviews.List(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, rs)
}

// Act approves or dismisses the review for {id}, which may be a message id
// or a full review key.
func (h ReviewsHandler) Act(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "id")

	var req reviewActionReq
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON: "+err.Error())
		return
	}

	switch req.Action {
	case "approve":
		id, err := h.Reviews.Approve(r.Context(), key, req.Overrides)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, reviewActionResp{Success: true, Action: "approved", ApplicationID: id})
	case "dismiss":
		if err := h.Reviews.Dismiss(r.Context(), key); err != nil {
			h.fail(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, reviewActionResp{Success: true, Action: "dismissed"})
	default:
		WriteError(w, r, http.StatusBadRequest, "invalid_action", "Invalid action. Use 'approve' or 'dismiss'")
	}
}

func (h ReviewsHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, review.ErrNotFound):
		WriteError(w, r, http.StatusNotFound, "not_found", "Review not found")
	case errors.Is(err, review.ErrInvalidOverride):
		WriteError(w, r, http.StatusBadRequest, "invalid_override", err.Error())
	default:
		WriteError(w, r, http.StatusInternalServerError, "review_failed", err.Error())
	}
}
