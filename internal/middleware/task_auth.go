package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/scrum-board/internal/constants"
	"github.com/yukikurage/scrum-board/internal/database"
	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/models"
)

// RequireTaskAccess checks if the user has access to a task
// User must be a member of the project owning the task's story
func RequireTaskAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid task ID")
			c.Abort()
			return
		}

		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		var task models.Task
		if err := database.GetDB().First(&task, taskID).Error; err != nil {
			apierrors.NotFound(c, "Task not found")
			c.Abort()
			return
		}

		story, member, ok := loadStoryMembership(task.StoryID, userID)
		if !ok {
			// Return 404 instead of 403 to avoid leaking task existence
			apierrors.NotFound(c, "Task not found")
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyTask, task)
		c.Set(constants.ContextKeyStory, story)
		c.Set(constants.ContextKeyProjectMember, member)
		c.Next()
	}
}

// RequireStoryAccess checks if the user is a member of the story's project
func RequireStoryAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		storyID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid story ID")
			c.Abort()
			return
		}

		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		story, member, ok := loadStoryMembership(storyID, userID)
		if !ok {
			apierrors.NotFound(c, "User story not found")
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyStory, story)
		c.Set(constants.ContextKeyProjectMember, member)
		c.Next()
	}
}

// GetStory retrieves the story stored by RequireStoryAccess or
// RequireTaskAccess
func GetStory(c *gin.Context) (models.UserStory, bool) {
	v, exists := c.Get(constants.ContextKeyStory)
	if !exists {
		return models.UserStory{}, false
	}
	story, ok := v.(models.UserStory)
	return story, ok
}

func loadStoryMembership(storyID, userID uint64) (models.UserStory, models.ProjectMember, bool) {
	var story models.UserStory
	if err := database.GetDB().First(&story, storyID).Error; err != nil {
		return models.UserStory{}, models.ProjectMember{}, false
	}

	var member models.ProjectMember
	if err := database.GetDB().
		Where("project_id = ? AND user_id = ?", story.ProjectID, userID).
		First(&member).Error; err != nil {
		return models.UserStory{}, models.ProjectMember{}, false
	}
	return story, member, true
}
