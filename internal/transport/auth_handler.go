package transport

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the signed session token
type LoginResponse struct {
	Token string `json:"token"`
}

// UserProfile is the public view of a user
type UserProfile struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func newUserProfile(u *domain.User) UserProfile {
	return UserProfile{ID: u.ID, Name: u.Name, Email: u.Email}
}

// AuthHandler handles registration, login and user listing
type AuthHandler struct {
	handlerBase
	auth service.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(auth service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{handlerBase: handlerBase{logger: logger}, auth: auth}
}

// RegisterRoutes registers the auth routes. rateLimit guards the credential endpoints.
func (h *AuthHandler) RegisterRoutes(r chi.Router, authMiddleware, rateLimit func(http.Handler) http.Handler) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/", h.ListUsers)

		r.Group(func(r chi.Router) {
			r.Use(rateLimit)
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Get("/me", h.Me)
		})
	})
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Registration validation failed", zap.Error(err))
		middleware.RespondWithRequestError(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("User registered", zap.Int64("user_id", user.ID))
	middleware.RespondWithJSON(w, http.StatusCreated, MessageResponse{Message: "User registered successfully"})
}

// Login handles user authentication
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Login validation failed", zap.Error(err))
		middleware.RespondWithRequestError(w, err)
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Debug("Login failed", zap.Error(err))
		h.fail(w, r, err)
		return
	}

	h.logger.Info("User logged in", zap.Int64("user_id", user.ID))
	middleware.RespondWithJSON(w, http.StatusOK, LoginResponse{Token: token})
}

// ListUsers returns every user without password hashes
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.auth.ListUsers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	profiles := make([]UserProfile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, newUserProfile(u))
	}
	middleware.RespondWithJSON(w, http.StatusOK, profiles)
}

// Me returns the profile of the authenticated caller
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.auth.GetUser(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newUserProfile(user))
}
