package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/scrum-board/internal/dto"
	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/services"
)

type SprintHandler struct {
	sprintService *services.SprintService
}

func NewSprintHandler(sprintService *services.SprintService) *SprintHandler {
	return &SprintHandler{
		sprintService: sprintService,
	}
}

// parseDate accepts YYYY-MM-DD or RFC 3339.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// CreateSprint creates a sprint in the project
func (h *SprintHandler) CreateSprint(c *gin.Context) {
	project, ok := contextProject(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	type CreateSprintRequest struct {
		StartDate string `json:"start_date" binding:"required"`
		EndDate   string `json:"end_date" binding:"required"`
		Velocity  int    `json:"velocity" binding:"required"`
	}

	var req CreateSprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequestWithDetails(c, "Invalid request body", err.Error())
		return
	}

	start, err := parseDate(req.StartDate)
	if err != nil {
		apierrors.BadRequest(c, "Invalid start_date")
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		apierrors.BadRequest(c, "Invalid end_date")
		return
	}

	sprint, err := h.sprintService.CreateSprint(services.CreateSprintInput{
		ProjectID: project.ID,
		ActorID:   userID,
		StartDate: start,
		EndDate:   end,
		Velocity:  req.Velocity,
	})
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sprint)
}

// ListSprints lists the project's sprints
func (h *SprintHandler) ListSprints(c *gin.Context) {
	project, ok := contextProject(c)
	if !ok {
		return
	}

	sprints, err := h.sprintService.ListSprints(project.ID)
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToSprintListResponse(sprints))
}

// GetSprint returns a sprint with its stories
func (h *SprintHandler) GetSprint(c *gin.Context) {
	project, ok := contextProject(c)
	if !ok {
		return
	}
	sprintID, ok := parseIDParam(c, "sprintId")
	if !ok {
		return
	}

	sprint, err := h.sprintService.GetSprint(project.ID, sprintID)
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, sprint)
}

// UpdateSprint edits a sprint's dates or velocity
func (h *SprintHandler) UpdateSprint(c *gin.Context) {
	project, ok := contextProject(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	sprintID, ok := parseIDParam(c, "sprintId")
	if !ok {
		return
	}

	type UpdateSprintRequest struct {
		StartDate *string `json:"start_date"`
		EndDate   *string `json:"end_date"`
		Velocity  *int    `json:"velocity"`
	}

	var req UpdateSprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	var input services.UpdateSprintInput
	if req.StartDate != nil {
		start, err := parseDate(*req.StartDate)
		if err != nil {
			apierrors.BadRequest(c, "Invalid start_date")
			return
		}
		input.StartDate = &start
	}
	if req.EndDate != nil {
		end, err := parseDate(*req.EndDate)
		if err != nil {
			apierrors.BadRequest(c, "Invalid end_date")
			return
		}
		input.EndDate = &end
	}
	input.Velocity = req.Velocity

	sprint, err := h.sprintService.UpdateSprint(project.ID, sprintID, userID, input)
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, sprint)
}

// DeleteSprint deletes a sprint that has not started
func (h *SprintHandler) DeleteSprint(c *gin.Context) {
	project, ok := contextProject(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	sprintID, ok := parseIDParam(c, "sprintId")
	if !ok {
		return
	}

	if err := h.sprintService.DeleteSprint(project.ID, sprintID, userID); err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Sprint deleted successfully",
	})
}

type storySelection struct {
	StoryIDs []uint64 `json:"story_ids" binding:"required"`
}

// EvaluateStories reports whether the selected stories fit the sprint
func (h *SprintHandler) EvaluateStories(c *gin.Context) {
	project, ok := contextProject(c)
	if !ok {
		return
	}
	sprintID, ok := parseIDParam(c, "sprintId")
	if !ok {
		return
	}

	var req storySelection
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	res, err := h.sprintService.EvaluateStories(project.ID, sprintID, req.StoryIDs)
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AddStoriesResponse{Capacity: res})
}

// AddStories adds the selected stories to the sprint, all or nothing
func (h *SprintHandler) AddStories(c *gin.Context) {
	project, ok := contextProject(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	sprintID, ok := parseIDParam(c, "sprintId")
	if !ok {
		return
	}

	var req storySelection
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	res, err := h.sprintService.AddStories(project.ID, sprintID, userID, req.StoryIDs)
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AddStoriesResponse{Capacity: res})
}

// ReturnToBacklog moves the unfinished stories of an ended sprint back to
// the product backlog
func (h *SprintHandler) ReturnToBacklog(c *gin.Context) {
	project, ok := contextProject(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	sprintID, ok := parseIDParam(c, "sprintId")
	if !ok {
		return
	}

	returned, err := h.sprintService.ReturnToBacklog(project.ID, sprintID, userID)
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ReturnToBacklogResponse{Returned: returned})
}
