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

// PortfolioHandler exposes the aggregated portfolio on the dashboard
// gateway, plus the address mutations that invalidate it
type PortfolioHandler struct {
	service *services.AggregatorService
	logger  *zap.Logger
}

// NewPortfolioHandler creates a new portfolio handler
func NewPortfolioHandler(service *services.AggregatorService, logger *zap.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the portfolio routes behind the auth middleware
func (h *PortfolioHandler) RegisterRoutes(r chi.Router) {
	r.Get("/portfolio", h.GetPortfolio)
	r.Post("/portfolio/refresh", h.RefreshPortfolio)
	r.Patch("/addresses/add", h.AddAddress)
	r.Patch("/addresses/remove", h.RemoveAddress)
}

// GetPortfolio handles GET /api/v1/portfolio
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	view, err := h.service.GetPortfolio(r.Context(), session)
	if err != nil {
		h.respondServiceError(w, err, "Failed to get portfolio")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"data": view})
}

// RefreshPortfolio handles POST /api/v1/portfolio/refresh, the explicit
// user-triggered refresh that bypasses committed state
func (h *PortfolioHandler) RefreshPortfolio(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := h.service.Invalidate(r.Context(), session); err != nil {
		h.logger.Warn("Invalidation before refresh failed", zap.Error(err))
	}

	view, err := h.service.Refresh(r.Context(), session)
	if err != nil {
		h.respondServiceError(w, err, "Failed to refresh portfolio")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"data": view})
}

// addressMutationRequest is the wire shape of the add/remove passthroughs
type addressMutationRequest struct {
	Address string `json:"address"`
}

// AddAddress handles PATCH /api/v1/addresses/add
func (h *PortfolioHandler) AddAddress(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req addressMutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	addresses, err := h.service.AddAddress(r.Context(), session, req.Address)
	if err != nil {
		h.respondServiceError(w, err, "Failed to add address")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"addresses": addresses})
}

// RemoveAddress handles PATCH /api/v1/addresses/remove
func (h *PortfolioHandler) RemoveAddress(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req addressMutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	addresses, err := h.service.RemoveAddress(r.Context(), session, req.Address)
	if err != nil {
		h.respondServiceError(w, err, "Failed to remove address")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"addresses": addresses})
}

// respondServiceError maps domain errors onto HTTP status codes
func (h *PortfolioHandler) respondServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, entities.ErrUnauthorized):
		h.respondError(w, http.StatusUnauthorized, "Session expired, please log in again")
	case errors.Is(err, entities.ErrValidation):
		h.respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(fallback, zap.Error(err))
		h.respondError(w, http.StatusBadGateway, fallback)
	}
}

func (h *PortfolioHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *PortfolioHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
