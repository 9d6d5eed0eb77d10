package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/solite/internal/services"
	"github.com/charlesng35/solite/pkg/response"
)

// AuthHandler exposes sign-up, sign-in and the current user.
type AuthHandler struct {
	users *services.UserService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(users *services.UserService) (*AuthHandler, error) {
	if users == nil {
		return nil, errors.New("auth handler: user service is required")
	}
	return &AuthHandler{users: users}, nil
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,notblank"`
}

// Signup registers a new user.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req credentialsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Register(requestContext(c), services.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusCreated, "User registered successfully.", services.UserSummary{
		ID:    user.ID,
		Email: user.Email,
	})
}

// Signin checks credentials and returns an access token.
func (h *AuthHandler) Signin(c *gin.Context) {
	var req credentialsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	token, user, err := h.users.Authenticate(requestContext(c), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"user":  services.UserSummary{ID: user.ID, Email: user.Email},
	})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	user, err := h.users.GetByID(requestContext(c), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, services.UserSummary{ID: user.ID, Email: user.Email})
}
