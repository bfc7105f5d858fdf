package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"geotasks/api/internal/model"
	"geotasks/api/internal/service"
)

// pageQuery is the offset/limit pair shared by list endpoints
type pageQuery struct {
	Offset int `form:"offset,default=0" binding:"min=0"`
	Limit  int `form:"limit,default=100" binding:"min=1,max=100"`
}

func bindPage(c *gin.Context) (model.Page, bool) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		validationFailed(c, err.Error())
		return model.Page{}, false
	}
	return model.NewPage(q.Offset, q.Limit), true
}

// UserHandler handles user requests
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Create registers a new user
// @Summary Register user
// @Tags Users
// @Accept json
// @Produce json
// @Param user body model.UserCreate true "New account"
// @Success 201 {object} model.UserPublic
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /users/ [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req model.UserCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user.Public())
}

// List returns active users
// @Summary List users
// @Tags Users
// @Produce json
// @Param offset query int false "Offset" default(0)
// @Param limit query int false "Limit" default(100)
// @Success 200 {object} model.UserList
// @Failure 422 {object} ErrorResponse
// @Router /users/ [get]
func (h *UserHandler) List(c *gin.Context) {
	page, ok := bindPage(c)
	if !ok {
		return
	}

	users, err := h.userService.List(c.Request.Context(), page)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := model.UserList{Users: make([]model.UserPublic, 0, len(users))}
	for i := range users {
		resp.Users = append(resp.Users, users[i].Public())
	}
	c.JSON(http.StatusOK, resp)
}

// Get returns an active user's profile
// @Summary Get user
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} model.UserPublic
// @Failure 404 {object} ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	user, err := h.userService.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, user.Public())
}

// Update replaces the caller's username, email and password
// @Summary Update user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param user body model.UserCreate true "Replacement profile"
// @Success 200 {object} model.UserPublic
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req model.UserCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.userService.Update(c.Request.Context(), currentUser(c), id, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, user.Public())
}

// Patch applies the provided profile fields
// @Summary Patch user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param user body model.UserPatch true "Fields to change"
// @Success 200 {object} model.UserPublic
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /users/{id} [patch]
func (h *UserHandler) Patch(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req model.UserPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.userService.Patch(c.Request.Context(), currentUser(c), id, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, user.Public())
}

// Deactivate hides the caller's account
// @Summary Deactivate user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} model.UserPublic
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /users/{id}/deactivate [patch]
func (h *UserHandler) Deactivate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	user, err := h.userService.Deactivate(c.Request.Context(), currentUser(c), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, user.Public())
}

// Activate restores a deactivated account
// @Summary Activate user
// @Description Open by default; requires an admin token when REACTIVATION_POLICY=admin.
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} model.UserPublic
// @Failure 404 {object} ErrorResponse
// @Router /users/{id}/activate [patch]
func (h *UserHandler) Activate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	user, err := h.userService.Activate(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, user.Public())
}

// Delete removes the caller's account with its tasks and location
// @Summary Delete user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} model.Message
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.userService.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Message{Message: "User deleted successfully"})
}
