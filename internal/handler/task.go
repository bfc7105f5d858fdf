package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"geotasks/api/internal/model"
	"geotasks/api/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// TaskHandler handles task requests
type TaskHandler struct {
	taskService *service.TaskService
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService *service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// bindFilter reads the optional priority and done query parameters
func bindFilter(c *gin.Context) (model.TaskFilter, bool) {
	var filter model.TaskFilter
	if raw, ok := c.GetQuery("priority"); ok {
		p, err := model.ParsePriority(raw)
		if err != nil {
			validationFailed(c, err.Error())
			return filter, false
		}
		filter.Priority = &p
	}
	if raw, ok := c.GetQuery("done"); ok {
		done, err := strconv.ParseBool(raw)
		if err != nil {
			validationFailed(c, fmt.Sprintf("invalid done %q", raw))
			return filter, false
		}
		filter.Done = &done
	}
	return filter, true
}

// Create creates a task for the caller
// @Summary Create task
// @Tags Tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param task body model.TaskCreate true "Task data"
// @Success 201 {object} model.Task
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /tasks/ [post]
func (h *TaskHandler) Create(c *gin.Context) {
	var req model.TaskCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), currentUser(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, task)
}

// List returns the caller's active tasks
// @Summary List tasks
// @Tags Tasks
// @Produce json
// @Security BearerAuth
// @Param priority query string false "high, medium or low"
// @Param done query bool false "Completion state"
// @Param offset query int false "Offset" default(0)
// @Param limit query int false "Limit" default(100)
// @Success 200 {object} model.TaskList
// @Failure 401 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /tasks/ [get]
func (h *TaskHandler) List(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}
	page, ok := bindPage(c)
	if !ok {
		return
	}

	tasks, err := h.taskService.List(c.Request.Context(), currentUser(c), filter, page)
	if err != nil {
		writeError(c, err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}

	c.JSON(http.StatusOK, model.TaskList{Tasks: tasks})
}

// Export downloads the caller's active tasks as a spreadsheet
// @Summary Export tasks
// @Tags Tasks
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param priority query string false "high, medium or low"
// @Param done query bool false "Completion state"
// @Success 200 {file} file
// @Failure 401 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /tasks/export [get]
func (h *TaskHandler) Export(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}

	buf, err := h.taskService.Export(c.Request.Context(), currentUser(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	filename := fmt.Sprintf("tasks_%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// Get returns one of the caller's tasks
// @Summary Get task
// @Tags Tasks
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Success 200 {object} model.Task
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /tasks/{id} [get]
func (h *TaskHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	task, err := h.taskService.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// Patch applies the provided task fields
// @Summary Patch task
// @Tags Tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Param task body model.TaskPatch true "Fields to change"
// @Success 200 {object} model.Task
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /tasks/{id} [patch]
func (h *TaskHandler) Patch(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req model.TaskPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	task, err := h.taskService.Patch(c.Request.Context(), currentUser(c), id, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// ToggleDone flips a task's completion state
// @Summary Toggle task done
// @Tags Tasks
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Success 200 {object} model.Task
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /tasks/done/{id} [patch]
func (h *TaskHandler) ToggleDone(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	task, err := h.taskService.ToggleDone(c.Request.Context(), currentUser(c), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// Deactivate hides one of the caller's tasks
// @Summary Deactivate task
// @Tags Tasks
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Success 200 {object} model.Task
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /tasks/deactivate/{id} [patch]
func (h *TaskHandler) Deactivate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	task, err := h.taskService.Deactivate(c.Request.Context(), currentUser(c), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// Activate restores a deactivated task
// @Summary Activate task
// @Description Open by default; requires an admin token when REACTIVATION_POLICY=admin.
// @Tags Tasks
// @Produce json
// @Param id path int true "Task ID"
// @Success 200 {object} model.Task
// @Failure 404 {object} ErrorResponse
// @Router /tasks/activate/{id} [patch]
func (h *TaskHandler) Activate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	task, err := h.taskService.Activate(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// Delete removes one of the caller's tasks and its location
// @Summary Delete task
// @Tags Tasks
// @Produce json
// @Security BearerAuth
// @Param id path int true "Task ID"
// @Success 200 {object} model.Message
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.taskService.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.Message{Message: "Task deleted successfully"})
}
