package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/scrum-board/internal/constants"
	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/middleware"
	"github.com/yukikurage/scrum-board/internal/models"
)

// parseIDParam reads a numeric path parameter, answering 400 when it is not
// one.
func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// currentUserID answers 401 when the request carries no user.
func currentUserID(c *gin.Context) (uint64, bool) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return 0, false
	}
	return userID, true
}

// contextTask returns the task loaded by RequireTaskAccess.
func contextTask(c *gin.Context) (models.Task, bool) {
	v, exists := c.Get(constants.ContextKeyTask)
	if !exists {
		apierrors.InternalError(c, "Task not found in context")
		return models.Task{}, false
	}
	task, ok := v.(models.Task)
	if !ok {
		apierrors.InternalError(c, "Invalid task data")
		return models.Task{}, false
	}
	return task, true
}

// contextStory returns the story loaded by RequireStoryAccess.
func contextStory(c *gin.Context) (models.UserStory, bool) {
	story, ok := middleware.GetStory(c)
	if !ok {
		apierrors.InternalError(c, "Story not found in context")
		return models.UserStory{}, false
	}
	return story, true
}

// contextProject returns the project loaded by RequireProjectAccess.
func contextProject(c *gin.Context) (models.Project, bool) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return models.Project{}, false
	}
	return project, true
}
