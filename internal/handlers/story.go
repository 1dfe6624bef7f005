package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/scrum-board/internal/dto"
	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/models"
	"github.com/yukikurage/scrum-board/internal/repository"
	"github.com/yukikurage/scrum-board/internal/services"
	"github.com/yukikurage/scrum-board/internal/utils"
)

type StoryHandler struct {
	storyService *services.StoryService
	taskService  *services.TaskService
}

func NewStoryHandler(storyService *services.StoryService, taskService *services.TaskService) *StoryHandler {
	return &StoryHandler{
		storyService: storyService,
		taskService:  taskService,
	}
}

// CreateStory adds a story to the project's product backlog
func (h *StoryHandler) CreateStory(c *gin.Context) {
	project, ok := contextProject(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	type CreateStoryRequest struct {
		Name               string          `json:"name" binding:"required"`
		Description        string          `json:"description"`
		AcceptanceCriteria string          `json:"acceptance_criteria"`
		Priority           models.Priority `json:"priority" binding:"required"`
		BusinessValue      int             `json:"business_value"`
		StoryPoints        *int            `json:"story_points"`
	}

	var req CreateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequestWithDetails(c, "Invalid request body", err.Error())
		return
	}

	story, err := h.storyService.CreateStory(services.CreateStoryInput{
		ProjectID:          project.ID,
		ActorID:            userID,
		Name:               req.Name,
		Description:        req.Description,
		AcceptanceCriteria: req.AcceptanceCriteria,
		Priority:           req.Priority,
		BusinessValue:      req.BusinessValue,
		StoryPoints:        req.StoryPoints,
	})
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, story)
}

// ListStories lists the project's stories
// Can filter by sprint_id and status
func (h *StoryHandler) ListStories(c *gin.Context) {
	project, ok := contextProject(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	filter := repository.StoryFilter{
		ProjectID: project.ID,
		Page:      params.Page,
		PageSize:  params.Limit,
	}

	if raw := c.Query("sprint_id"); raw != "" {
		sprintID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid sprint_id")
			return
		}
		filter.SprintID = &sprintID
	}
	if raw := c.Query("status"); raw != "" {
		status := models.StoryStatus(raw)
		if !status.Valid() {
			apierrors.BadRequest(c, "Invalid status")
			return
		}
		filter.Status = &status
	}

	stories, total, err := h.storyService.ListStories(filter)
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToStoryListResponse(stories, params, total))
}

// Board returns the project's stories split into finished, unrealized in a
// sprint, unrealized in the backlog and future releases
func (h *StoryHandler) Board(c *gin.Context) {
	project, ok := contextProject(c)
	if !ok {
		return
	}

	view, err := h.storyService.Board(project.ID)
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetStory returns a story
func (h *StoryHandler) GetStory(c *gin.Context) {
	story, ok := contextStory(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, story)
}

// UpdateStory edits a story or changes its status
func (h *StoryHandler) UpdateStory(c *gin.Context) {
	story, ok := contextStory(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	type UpdateStoryRequest struct {
		Name               *string             `json:"name"`
		Description        *string             `json:"description"`
		AcceptanceCriteria *string             `json:"acceptance_criteria"`
		Priority           *models.Priority    `json:"priority"`
		BusinessValue      *int                `json:"business_value"`
		StoryPoints        *int                `json:"story_points"`
		Status             *models.StoryStatus `json:"status"`
	}

	var req UpdateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	updated, err := h.storyService.UpdateStory(story.ProjectID, story.ID, userID, services.UpdateStoryInput{
		Name:               req.Name,
		Description:        req.Description,
		AcceptanceCriteria: req.AcceptanceCriteria,
		Priority:           req.Priority,
		BusinessValue:      req.BusinessValue,
		StoryPoints:        req.StoryPoints,
		Status:             req.Status,
	})
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// RemoveFromSprint returns the story to the product backlog
func (h *StoryHandler) RemoveFromSprint(c *gin.Context) {
	story, ok := contextStory(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	updated, err := h.storyService.RemoveFromSprint(story.ProjectID, story.ID, userID)
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DeleteStory soft deletes a story
func (h *StoryHandler) DeleteStory(c *gin.Context) {
	story, ok := contextStory(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.storyService.DeleteStory(story.ProjectID, story.ID, userID); err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Story deleted successfully",
	})
}

// SuggestTasks proposes a task breakdown for the story
func (h *StoryHandler) SuggestTasks(c *gin.Context) {
	story, ok := contextStory(c)
	if !ok {
		return
	}

	tasks, err := h.storyService.SuggestTasks(c.Request.Context(), story.ProjectID, story.ID)
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// ListTasks lists the story's tasks
func (h *StoryHandler) ListTasks(c *gin.Context) {
	story, ok := contextStory(c)
	if !ok {
		return
	}

	tasks, err := h.taskService.ListTasks(story.ID)
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskListResponse(tasks))
}

// CreateTask adds a task to the story
func (h *StoryHandler) CreateTask(c *gin.Context) {
	story, ok := contextStory(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	type CreateTaskRequest struct {
		Title          string  `json:"title" binding:"required"`
		Description    string  `json:"description"`
		EstimatedHours float64 `json:"estimated_hours"`
		AssignTo       *uint64 `json:"assign_to"`
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.CreateTask(services.CreateTaskInput{
		StoryID:        story.ID,
		ActorID:        userID,
		Title:          req.Title,
		Description:    req.Description,
		EstimatedHours: req.EstimatedHours,
		AssignTo:       req.AssignTo,
	})
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, task)
}
