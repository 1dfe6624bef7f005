package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/scrum-board/internal/constants"
	"github.com/yukikurage/scrum-board/internal/dto"
	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/services"
)

// AuthHandler serves signup, login and the logged in user's memberships.
type AuthHandler struct {
	authService    *services.AuthService
	projectService *services.ProjectService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, projectService *services.ProjectService) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		projectService: projectService,
	}
}

// Signup registers a user. Project membership comes later, from a scrum
// master adding them or from creating a project.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required,min=3,max=50"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequestWithDetails(c, "Invalid request body", err.Error())
		return
	}

	user, err := h.authService.Signup(services.SignupInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToUserDTO(*user))
}

// Login checks credentials and starts a fresh session for the user.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.authService.Login(services.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	// Nothing from an earlier login on this cookie survives.
	session := sessions.Default(c)
	session.Clear()
	session.Set(constants.ContextKeyUserID, user.ID)
	if err := session.Save(); err != nil {
		apierrors.InternalError(c, "Failed to save session")
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}

// Logout ends the session and expires its cookie. Work sessions on the
// server stay open; they belong to the user, not the login.
func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		apierrors.InternalError(c, "Failed to logout")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}

// GetCurrentUser returns the logged in user and their role in each project.
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := h.authService.GetUser(userID)
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}
	memberships, err := h.projectService.ListProjectsForUser(userID)
	if err != nil {
		apierrors.RespondDomainError(c, err)
		return
	}

	res := dto.MeResponse{
		UserDTO:  dto.ToUserDTO(*user),
		Projects: make([]dto.ProjectWithRoleDTO, len(memberships)),
	}
	for i, m := range memberships {
		res.Projects[i] = dto.ToProjectWithRoleDTO(m)
	}
	c.JSON(http.StatusOK, res)
}
