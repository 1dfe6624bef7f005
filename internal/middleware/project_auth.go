package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/scrum-board/internal/constants"
	"github.com/yukikurage/scrum-board/internal/database"
	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/models"
)

// RequireProjectAccess checks if the user is a member of the project
func RequireProjectAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid project ID")
			c.Abort()
			return
		}

		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		var project models.Project
		if err := database.GetDB().First(&project, projectID).Error; err != nil {
			apierrors.NotFound(c, "Project not found")
			c.Abort()
			return
		}

		var member models.ProjectMember
		err = database.GetDB().Where("project_id = ? AND user_id = ?", projectID, userID).First(&member).Error
		if err != nil {
			// Return 404 instead of 403 to avoid leaking project existence
			apierrors.NotFound(c, "Project not found")
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyProject, project)
		c.Set(constants.ContextKeyProjectMember, member)
		c.Next()
	}
}

// RequireProjectRole allows the request only for members holding one of
// roles. It must run after a middleware that sets the project member.
func RequireProjectRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		member, ok := GetProjectMember(c)
		if !ok {
			apierrors.Forbidden(c, "Project access required")
			c.Abort()
			return
		}

		for _, r := range roles {
			if member.Role == r {
				c.Next()
				return
			}
		}

		apierrors.Forbidden(c, "Your project role does not allow this action")
		c.Abort()
	}
}

// GetProject retrieves the project stored by RequireProjectAccess
func GetProject(c *gin.Context) (models.Project, bool) {
	v, exists := c.Get(constants.ContextKeyProject)
	if !exists {
		return models.Project{}, false
	}
	project, ok := v.(models.Project)
	return project, ok
}

// GetProjectMember retrieves the caller's membership stored by an access
// middleware
func GetProjectMember(c *gin.Context) (models.ProjectMember, bool) {
	v, exists := c.Get(constants.ContextKeyProjectMember)
	if !exists {
		return models.ProjectMember{}, false
	}
	member, ok := v.(models.ProjectMember)
	return member, ok
}
