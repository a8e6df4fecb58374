package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/go_laundry/internal/domain"
	"github.com/fjod/go_laundry/internal/service"
	"github.com/go-chi/chi/v5"
)

type AddItemRequestDTO struct {
	ServiceID   string             `json:"service_id"`
	GarmentType domain.GarmentType `json:"garment_type"`
}

type UpdateItemRequestDTO struct {
	ServiceID   string             `json:"service_id"`
	GarmentType domain.GarmentType `json:"garment_type"`
	Quantity    *int               `json:"quantity,omitempty"`
	IsExpress   *bool              `json:"is_express,omitempty"`
	Notes       *string            `json:"notes,omitempty"`
}

type ScheduleRequestDTO struct {
	PickupDate        string          `json:"pickup_date"`
	PickupTimeSlot    domain.TimeSlot `json:"pickup_time_slot"`
	PickupAddressID   string          `json:"pickup_address_id"`
	DeliveryAddressID string          `json:"delivery_address_id"`
	Notes             string          `json:"notes"`
}

func contextWithTimeout(r *http.Request, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), timeout)
}

func (h *Handler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	d, err := h.orders.CreateDraft(ctx, principal(r).UserID)
	if err != nil {
		respondAppError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	view, err := h.orders.ViewDraft(ctx, chi.URLParam(r, "draft_id"), principal(r).UserID)
	if err != nil {
		respondAppError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handler) DiscardDraft(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	if err := h.orders.DiscardDraft(ctx, chi.URLParam(r, "draft_id"), principal(r).UserID); err != nil {
		respondAppError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	// Parse request body
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if !validPair(w, req.ServiceID, req.GarmentType) {
		return
	}

	view, err := h.orders.AddItem(ctx, chi.URLParam(r, "draft_id"), principal(r).UserID, req.ServiceID, req.GarmentType)
	if err != nil {
		respondAppError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	var req UpdateItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if !validPair(w, req.ServiceID, req.GarmentType) {
		return
	}

	view, err := h.orders.UpdateItem(ctx, chi.URLParam(r, "draft_id"), principal(r).UserID, service.ItemUpdate{
		ServiceID:   req.ServiceID,
		GarmentType: req.GarmentType,
		Quantity:    req.Quantity,
		IsExpress:   req.IsExpress,
		Notes:       req.Notes,
	})
	if err != nil {
		respondAppError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	serviceID := r.URL.Query().Get("service_id")
	garment := domain.GarmentType(r.URL.Query().Get("garment_type"))
	if !validPair(w, serviceID, garment) {
		return
	}

	view, err := h.orders.RemoveItem(ctx, chi.URLParam(r, "draft_id"), principal(r).UserID, serviceID, garment)
	if err != nil {
		respondAppError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handler) SetSchedule(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	var req ScheduleRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	view, err := h.orders.SetSchedule(ctx, chi.URLParam(r, "draft_id"), principal(r).UserID, service.Schedule{
		PickupDate:        req.PickupDate,
		PickupTimeSlot:    req.PickupTimeSlot,
		PickupAddressID:   req.PickupAddressID,
		DeliveryAddressID: req.DeliveryAddressID,
		Notes:             req.Notes,
	})
	if err != nil {
		respondAppError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	order, err := h.orders.Submit(ctx, chi.URLParam(r, "draft_id"), principal(r).UserID)
	if err != nil {
		respondAppError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

func validPair(w http.ResponseWriter, serviceID string, garment domain.GarmentType) bool {
	if serviceID == "" {
		respondError(w, http.StatusBadRequest, "invalid_service_id", "service_id is required")
		return false
	}
	if !garment.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_garment_type", "garment_type is not recognized")
		return false
	}
	return true
}
