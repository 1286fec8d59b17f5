package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BowlPulp/HodlSync/internal/application/services"
	"github.com/BowlPulp/HodlSync/internal/domain/entities"
	"github.com/BowlPulp/HodlSync/internal/presentation/middleware"
)

// AddressHandler handles the tracked-address registry endpoints on the
// account & registry service
type AddressHandler struct {
	service *services.RegistryService
	logger  *zap.Logger
}

// NewAddressHandler creates a new address handler
func NewAddressHandler(service *services.RegistryService, logger *zap.Logger) *AddressHandler {
	return &AddressHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the address routes behind the auth middleware
func (h *AddressHandler) RegisterRoutes(r chi.Router) {
	r.Get("/fetch-addresses", h.FetchAddresses)
	r.Patch("/add-address", h.AddAddress)
	r.Patch("/remove-address", h.RemoveAddress)
}

// addressRequest is the wire shape of the add/remove endpoints
type addressRequest struct {
	Address string `json:"address"`
}

// FetchAddresses handles GET /api/users/fetch-addresses
func (h *AddressHandler) FetchAddresses(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	addresses, err := h.service.FetchAddresses(r.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, entities.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "User not found.")
			return
		}
		h.logger.Error("Failed to fetch addresses", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Server error while fetching the user.")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"addresses": addresses,
	})
}

// AddAddress handles PATCH /api/users/add-address
func (h *AddressHandler) AddAddress(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req addressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	addresses, err := h.service.AddAddress(r.Context(), session.UserID, req.Address)
	if err != nil {
		switch {
		case errors.Is(err, entities.ErrValidation):
			h.respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, entities.ErrNotFound):
			h.respondError(w, http.StatusNotFound, "User not found.")
		default:
			h.logger.Error("Failed to add address", zap.Error(err))
			h.respondError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":          "Address added successfully",
		"addressesToTrack": addresses,
	})
}

// RemoveAddress handles PATCH /api/users/remove-address. Removing an
// address that is not tracked returns 404.
func (h *AddressHandler) RemoveAddress(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req addressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	addresses, err := h.service.RemoveAddress(r.Context(), session.UserID, req.Address)
	if err != nil {
		switch {
		case errors.Is(err, entities.ErrValidation):
			h.respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, entities.ErrNotFound):
			h.respondError(w, http.StatusNotFound, "Address not found in tracked list")
		default:
			h.logger.Error("Failed to remove address", zap.Error(err))
			h.respondError(w, http.StatusInternalServerError, "Server error")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":          "Address deleted successfully",
		"addressesToTrack": addresses,
	})
}

func (h *AddressHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *AddressHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
