package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"geotasks/api/internal/model"
	"geotasks/api/internal/service"
)

// LocationHandler handles user and task location requests
type LocationHandler struct {
	locationService *service.LocationService
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(locationService *service.LocationService) *LocationHandler {
	return &LocationHandler{locationService: locationService}
}

// targetUser is the :user_id parameter, or the caller when absent
func targetUser(c *gin.Context) (uint, bool) {
	if c.Param("user_id") == "" {
		return currentUser(c).ID, true
	}
	return parseID(c, "user_id")
}

func bindLocation(c *gin.Context) (model.LocationInput, bool) {
	var in model.LocationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return in, false
	}
	return in, true
}

// CreateForUser attaches a location to the caller
// @Summary Create user location
// @Tags Locations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param location body model.LocationInput true "Place"
// @Success 201 {object} model.Location
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /locations/user [post]
func (h *LocationHandler) CreateForUser(c *gin.Context) {
	userID, ok := targetUser(c)
	if !ok {
		return
	}
	in, ok := bindLocation(c)
	if !ok {
		return
	}

	loc, err := h.locationService.CreateForUser(c.Request.Context(), currentUser(c), userID, in)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, loc)
}

// GetForUser returns the caller's location
// @Summary Get user location
// @Tags Locations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.Location
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /locations/user [get]
func (h *LocationHandler) GetForUser(c *gin.Context) {
	userID, ok := targetUser(c)
	if !ok {
		return
	}

	loc, err := h.locationService.GetForUser(c.Request.Context(), currentUser(c), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, loc)
}

// UpdateForUser moves the caller's location
// @Summary Update user location
// @Tags Locations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param location body model.LocationInput true "Place"
// @Success 200 {object} model.Location
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /locations/user [put]
func (h *LocationHandler) UpdateForUser(c *gin.Context) {
	userID, ok := targetUser(c)
	if !ok {
		return
	}
	in, ok := bindLocation(c)
	if !ok {
		return
	}

	loc, err := h.locationService.UpdateForUser(c.Request.Context(), currentUser(c), userID, in)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, loc)
}

// DeleteForUser removes the caller's location
// @Summary Delete user location
// @Tags Locations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.Message
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /locations/user [delete]
func (h *LocationHandler) DeleteForUser(c *gin.Context) {
	userID, ok := targetUser(c)
	if !ok {
		return
	}

	if err := h.locationService.DeleteForUser(c.Request.Context(), currentUser(c), userID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Message{Message: "Location deleted successfully"})
}

// CreateForTask attaches a location to one of the caller's tasks
// @Summary Create task location
// @Tags Locations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param task_id path int true "Task ID"
// @Param location body model.LocationInput true "Place"
// @Success 201 {object} model.Location
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /locations/task/{task_id} [post]
func (h *LocationHandler) CreateForTask(c *gin.Context) {
	taskID, ok := parseID(c, "task_id")
	if !ok {
		return
	}
	in, ok := bindLocation(c)
	if !ok {
		return
	}

	loc, err := h.locationService.CreateForTask(c.Request.Context(), currentUser(c), taskID, in)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, loc)
}

// GetForTask returns a task's location
// @Summary Get task location
// @Tags Locations
// @Produce json
// @Security BearerAuth
// @Param task_id path int true "Task ID"
// @Success 200 {object} model.Location
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /locations/task/{task_id} [get]
func (h *LocationHandler) GetForTask(c *gin.Context) {
	taskID, ok := parseID(c, "task_id")
	if !ok {
		return
	}

	loc, err := h.locationService.GetForTask(c.Request.Context(), currentUser(c), taskID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, loc)
}

// UpdateForTask moves a task's location
// @Summary Update task location
// @Tags Locations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param task_id path int true "Task ID"
// @Param location body model.LocationInput true "Place"
// @Success 200 {object} model.Location
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /locations/task/{task_id} [put]
func (h *LocationHandler) UpdateForTask(c *gin.Context) {
	taskID, ok := parseID(c, "task_id")
	if !ok {
		return
	}
	in, ok := bindLocation(c)
	if !ok {
		return
	}

	loc, err := h.locationService.UpdateForTask(c.Request.Context(), currentUser(c), taskID, in)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, loc)
}

// DeleteForTask removes a task's location
// @Summary Delete task location
// @Tags Locations
// @Produce json
// @Security BearerAuth
// @Param task_id path int true "Task ID"
// @Success 200 {object} model.Message
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /locations/task/{task_id} [delete]
func (h *LocationHandler) DeleteForTask(c *gin.Context) {
	taskID, ok := parseID(c, "task_id")
	if !ok {
		return
	}

	if err := h.locationService.DeleteForTask(c.Request.Context(), currentUser(c), taskID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Message{Message: "Location deleted successfully"})
}
