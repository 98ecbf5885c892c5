package controllers

import (
	"errors"
	"net/http"

	"github.com/gigconnect/gigconnect-api/config"
	"github.com/gigconnect/gigconnect-api/middleware"
	"github.com/gigconnect/gigconnect-api/services"
	"github.com/gin-gonic/gin"
)

// CreateUserRequest holds signup fields. Name and email are only read when
// Auth0 userinfo is unavailable (shared-secret tokens).
type CreateUserRequest struct {
	Name   string   `json:"name"`
	Email  string   `json:"email" binding:"omitempty,email"`
	Role   string   `json:"role" binding:"omitempty,oneof=client worker"`
	Skills []string `json:"skills"`
}

// UpdateUserRequest represents the request body for updating a user profile.
// avatar_ref is a key returned by the image upload endpoint.
type UpdateUserRequest struct {
	Name      *string  `json:"name" binding:"omitempty"`
	Email     *string  `json:"email" binding:"omitempty,email"`
	Skills    []string `json:"skills"`
	Phone     *string  `json:"phone"`
	Bio       *string  `json:"bio"`
	Location  *string  `json:"location"`
	AvatarRef *string  `json:"avatar_ref"`
}

// CreateUser handles POST /api/v1/users - creates the caller's profile.
// Name and email come from Auth0's /userinfo endpoint when an Auth0 tenant
// is configured. The role comes from the token's role claim, falling back
// to the request body and then to client.
func CreateUser(c *gin.Context) {
	auth0ID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req CreateUserRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondInvalidRequest(c, err)
			return
		}
	}

	input := services.NewUserInput{
		Auth0ID: auth0ID,
		Name:    req.Name,
		Email:   req.Email,
		Role:    req.Role,
		Skills:  req.Skills,
	}
	if role := middleware.GetRole(c); role != "" {
		input.Role = role
	}

	cfg := config.GetConfig()
	if cfg != nil && !cfg.UsesSharedSecret() {
		accessToken, err := middleware.GetAccessToken(c)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "MISSING_TOKEN", "Access token not found")
			return
		}

		userInfo, err := services.NewAuth0Service(cfg).GetUserInfo(c.Request.Context(), accessToken, auth0ID)
		switch {
		case errors.Is(err, services.ErrUserInfoRejected), errors.Is(err, services.ErrSubjectMismatch):
			_ = c.Error(err)
			respondError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Auth0 did not accept the access token")
			return
		case err != nil:
			_ = c.Error(err)
			respondError(c, http.StatusBadGateway, "AUTH0_ERROR", "Failed to fetch user information from Auth0")
			return
		}
		if userInfo.Email == "" {
			respondError(c, http.StatusBadRequest, "MISSING_EMAIL", "Email not provided by Auth0")
			return
		}
		if userInfo.Name == "" {
			respondError(c, http.StatusBadRequest, "MISSING_NAME", "Name not provided by Auth0")
			return
		}
		input.Name, input.Email = userInfo.Name, userInfo.Email
	}

	user, err := services.GetUserService().Register(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, user)
}

// GetMyProfile handles GET /api/v1/users/me - gets current user's profile
func GetMyProfile(c *gin.Context) {
	auth0ID, ok := requireUserID(c)
	if !ok {
		return
	}

	user, err := services.GetUserService().Profile(c.Request.Context(), auth0ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	resolveAvatar(c, user)
	respondOK(c, http.StatusOK, user)
}

// UpdateMyProfile handles PUT /api/v1/users/me - updates current user's profile
func UpdateMyProfile(c *gin.Context) {
	auth0ID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidRequest(c, err)
		return
	}

	user, err := services.GetUserService().UpdateProfile(c.Request.Context(), auth0ID, services.ProfileUpdate{
		Name:      req.Name,
		Email:     req.Email,
		Skills:    req.Skills,
		Phone:     req.Phone,
		Bio:       req.Bio,
		Location:  req.Location,
		AvatarRef: req.AvatarRef,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	resolveAvatar(c, user)
	respondOK(c, http.StatusOK, user)
}
