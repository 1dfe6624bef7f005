package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/scrum-board/internal/dto"
	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/services"
)

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// taskAction resolves the task and caller shared by every task endpoint.
func taskAction(c *gin.Context) (taskID, userID uint64, ok bool) {
	task, ok := contextTask(c)
	if !ok {
		return 0, 0, false
	}
	userID, ok = currentUserID(c)
	if !ok {
		return 0, 0, false
	}
	return task.ID, userID, true
}

// GetTask returns the current state of a task
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, ok := contextTask(c)
	if !ok {
		return
	}

	current, err := h.taskService.GetTask(task.ID)
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, current)
}

// AssignTask assigns the task to a project member
func (h *TaskHandler) AssignTask(c *gin.Context) {
	taskID, userID, ok := taskAction(c)
	if !ok {
		return
	}

	type AssignTaskRequest struct {
		UserID uint64 `json:"user_id" binding:"required"`
	}

	var req AssignTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.AssignTask(taskID, userID, req.UserID)
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// UnassignTask releases an assigned task. It shares its rules with
// RejectTask.
func (h *TaskHandler) UnassignTask(c *gin.Context) {
	h.RejectTask(c)
}

// RejectTask returns the task to UNASSIGNED, discarding any running work
// session
func (h *TaskHandler) RejectTask(c *gin.Context) {
	taskID, userID, ok := taskAction(c)
	if !ok {
		return
	}

	task, err := h.taskService.RejectTask(taskID, userID)
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// StartTask accepts the task and moves it to IN_PROGRESS
func (h *TaskHandler) StartTask(c *gin.Context) {
	taskID, userID, ok := taskAction(c)
	if !ok {
		return
	}

	task, err := h.taskService.StartTask(taskID, userID)
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// StopTask ends a working interval, optionally logging hours
func (h *TaskHandler) StopTask(c *gin.Context) {
	taskID, userID, ok := taskAction(c)
	if !ok {
		return
	}

	type StopTaskRequest struct {
		HoursSpent  *float64 `json:"hours_spent"`
		Description string   `json:"description"`
		Date        *string  `json:"date"`
	}

	var req StopTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	input := services.StopTaskInput{
		Hours:       req.HoursSpent,
		Description: req.Description,
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			apierrors.BadRequest(c, "Invalid date")
			return
		}
		input.Date = &date
	}

	task, entry, err := h.taskService.StopTask(taskID, userID, input)
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.StopTaskResponse{Task: *task, Entry: entry})
}

// StartSession opens a timed work session on the task
func (h *TaskHandler) StartSession(c *gin.Context) {
	taskID, userID, ok := taskAction(c)
	if !ok {
		return
	}

	ws, err := h.taskService.StartSession(taskID, userID)
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.StartSessionResponse{Session: *ws})
}

// StopSession closes the running work session and logs its duration
func (h *TaskHandler) StopSession(c *gin.Context) {
	taskID, userID, ok := taskAction(c)
	if !ok {
		return
	}

	res, err := h.taskService.StopSession(taskID, userID)
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.StopSessionResponse{
		HoursLogged: res.HoursLogged,
		Task:        *res.Task,
		Entry:       res.Entry,
	})
}

// CompleteTask marks the task as completed
func (h *TaskHandler) CompleteTask(c *gin.Context) {
	taskID, userID, ok := taskAction(c)
	if !ok {
		return
	}

	task, err := h.taskService.CompleteTask(taskID, userID)
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// DeleteTask deletes a task nobody has started
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	taskID, userID, ok := taskAction(c)
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(taskID, userID); err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task deleted successfully",
	})
}

// ListLogs returns the task's time log
func (h *TaskHandler) ListLogs(c *gin.Context) {
	task, ok := contextTask(c)
	if !ok {
		return
	}

	logs, err := h.taskService.ListLogs(task.ID)
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTimeLogResponse(logs))
}
