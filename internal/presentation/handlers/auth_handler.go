package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BowlPulp/HodlSync/internal/application/services"
	"github.com/BowlPulp/HodlSync/internal/domain/entities"
	"github.com/BowlPulp/HodlSync/internal/presentation/middleware"
)

// AuthHandler handles signup, login, logout and the dashboard session check
type AuthHandler struct {
	service      *services.AccountService
	cookieName   string
	cookieSecure bool
	logger       *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service *services.AccountService, cookieName string, cookieSecure bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service:      service,
		cookieName:   cookieName,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

// RegisterPublicRoutes registers the unauthenticated auth routes
func (h *AuthHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
}

// RegisterProtectedRoutes registers routes behind the auth middleware
func (h *AuthHandler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/dashboard", h.Dashboard)
}

// signupRequest is the wire shape of POST /signup
type signupRequest struct {
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	DOB       string   `json:"dob"`
	Password  string   `json:"password"`
	Addresses []string `json:"addressesToTrack"`
}

// loginRequest is the wire shape of POST /login
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles POST /api/users/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	dob, err := time.Parse("2006-01-02", req.DOB)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid date of birth")
		return
	}

	user, err := h.service.Signup(r.Context(), services.SignupRequest{
		Username:  req.Username,
		Email:     req.Email,
		DOB:       dob,
		Password:  req.Password,
		Addresses: req.Addresses,
	})
	if err != nil {
		switch {
		case errors.Is(err, entities.ErrEmailTaken):
			h.respondError(w, http.StatusBadRequest, "Email already in use.")
		case errors.Is(err, entities.ErrValidation):
			h.respondError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("Signup failed", zap.Error(err))
			h.respondError(w, http.StatusInternalServerError, "Server error while creating user.")
		}
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"data":    user,
		"message": "User created successfully!",
	})
}

// Login handles POST /api/users/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	_, token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, entities.ErrUnauthorized) {
			h.respondError(w, http.StatusUnauthorized, "Invalid email or password.")
			return
		}
		h.logger.Error("Login failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Server error while logging in.")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteNoneMode,
	})

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"token":   token,
		"message": "Login successful!",
	})
}

// Logout handles POST /api/users/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
	})

	h.respondJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out successfully",
	})
}

// Dashboard handles GET /api/users/dashboard, the session validity check
func (h *AuthHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Welcome to your dashboard!",
		"user": map[string]interface{}{
			"id":       session.UserID,
			"username": session.Username,
			"email":    session.Email,
		},
	})
}

func (h *AuthHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *AuthHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
