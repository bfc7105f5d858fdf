package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"geotasks/api/internal/middleware"
	"geotasks/api/internal/model"
	"geotasks/api/internal/service"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login handles user login
// @Summary Login
// @Description Exchange email and password for an access token. Accepts form or JSON; username carries the email.
// @Tags Auth
// @Accept x-www-form-urlencoded,json
// @Produce json
// @Param username formData string true "Email"
// @Param password formData string true "Password"
// @Success 200 {object} model.LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RegisterAndLogin creates an account and logs it in
// @Summary Register and login
// @Tags Auth
// @Accept json
// @Produce json
// @Param user body model.UserCreate true "New account"
// @Success 201 {object} model.LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /auth/register_and_login [post]
func (h *AuthHandler) RegisterAndLogin(c *gin.Context) {
	var req model.UserCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.authService.RegisterAndLogin(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// RefreshToken issues a new token for the current user
// @Summary Refresh token
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.Token
// @Failure 401 {object} ErrorResponse
// @Router /auth/refresh_token [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	tok, err := h.authService.Refresh(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, tok)
}

// AuthMiddleware resolves the bearer token into the current user
func (h *AuthHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Detail: "Not authenticated"})
			return
		}

		user, err := h.authService.ResolveIdentity(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			writeError(c, err)
			return
		}

		c.Set(middleware.CurrentUserKey, user)
		c.Set("user_id", user.ID)
		c.Next()
	}
}

// currentUser returns the user set by AuthMiddleware
func currentUser(c *gin.Context) *model.User {
	user, _ := c.MustGet(middleware.CurrentUserKey).(*model.User)
	return user
}
