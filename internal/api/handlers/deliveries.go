package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"eventmail/internal/core"
	"eventmail/internal/types"
)

const defaultDeliveryListLimit = 20

// DeliveryLister reads the delivery log. Implemented by
// *db.DeliveryRepository.
type DeliveryLister interface {
	ListByRecipient(ctx context.Context, email string, limit int) ([]types.DeliveryRecord, error)
}

// DeliveryHandler serves the delivery log.
type DeliveryHandler struct {
	repo DeliveryLister
}

// NewDeliveryHandler creates a DeliveryHandler.
func NewDeliveryHandler(repo DeliveryLister) *DeliveryHandler {
	return &DeliveryHandler{repo: repo}
}

// RegisterRoutes mounts the delivery routes on r.
func (h *DeliveryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/deliveries", h.List)
}

// List handles GET /v1/deliveries?email=&limit=.
func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	email := q.Get("email")
	if email == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "email query parameter is required", nil))
		return
	}

	limit := defaultDeliveryListLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidBody,
				"limit must be a positive integer", err, map[string]any{"field": "limit"}))
			return
		}
		limit = n
	}

	records, err := h.repo.ListByRecipient(r.Context(), email, limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: records})
}
