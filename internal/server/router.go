// Package server wires repositories, services and handlers into the gin
// router served by cmd/server.
package server

import (
	"log/slog"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/scrum-board/internal/constants"
	"github.com/yukikurage/scrum-board/internal/handlers"
	"github.com/yukikurage/scrum-board/internal/middleware"
	"github.com/yukikurage/scrum-board/internal/models"
	"github.com/yukikurage/scrum-board/internal/repository"
	"github.com/yukikurage/scrum-board/internal/services"
	"gorm.io/gorm"
)

// Options customise the router. Zero values are valid.
type Options struct {
	Logger    *slog.Logger
	Suggester services.TaskSuggester
	Clock     services.Clock
}

// Services are the business services behind the router.
type Services struct {
	Auth    *services.AuthService
	Project *services.ProjectService
	Sprint  *services.SprintService
	Story   *services.StoryService
	Task    *services.TaskService
}

// NewServices builds every service on db.
func NewServices(db *gorm.DB, opts Options) Services {
	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	sprintRepo := repository.NewSprintRepository(db)
	storyRepo := repository.NewStoryRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	svc := Services{
		Auth:    services.NewAuthService(userRepo),
		Project: services.NewProjectService(projectRepo, userRepo),
		Sprint:  services.NewSprintService(sprintRepo, storyRepo, projectRepo),
		Story:   services.NewStoryService(storyRepo, sprintRepo, projectRepo, opts.Suggester),
		Task:    services.NewTaskService(taskRepo, storyRepo, sprintRepo, projectRepo),
	}
	if opts.Clock != nil {
		svc.Sprint.WithClock(opts.Clock)
		svc.Story.WithClock(opts.Clock)
		svc.Task.WithClock(opts.Clock)
	}
	return svc
}

// NewRouter builds the API router. The middleware resolves projects, stories
// and tasks through database.GetDB, so db must also be installed there.
func NewRouter(svc Services, store sessions.Store, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	authHandler := handlers.NewAuthHandler(svc.Auth, svc.Project)
	projectHandler := handlers.NewProjectHandler(svc.Project)
	sprintHandler := handlers.NewSprintHandler(svc.Sprint)
	storyHandler := handlers.NewStoryHandler(svc.Story, svc.Task)
	taskHandler := handlers.NewTaskHandler(svc.Task)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Scrum board API is running",
		})
	})

	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(), authHandler.GetCurrentUser)
		}

		scrumMaster := middleware.RequireProjectRole(models.RoleScrumMaster)

		// Project routes (protected)
		projects := api.Group("/projects")
		projects.Use(middleware.RequireAuth())
		{
			projects.POST("", projectHandler.CreateProject)
			projects.GET("", projectHandler.ListProjects)

			project := projects.Group("/:id")
			project.Use(middleware.RequireProjectAccess())
			{
				project.GET("", projectHandler.GetProject)
				project.PUT("", scrumMaster, projectHandler.UpdateProject)
				project.POST("/members", scrumMaster, projectHandler.AddMember)
				project.PUT("/members/:user_id", scrumMaster, projectHandler.UpdateMember)
				project.DELETE("/members/:user_id", scrumMaster, projectHandler.RemoveMember)

				project.GET("/board", storyHandler.Board)
				project.GET("/user-stories", storyHandler.ListStories)
				project.POST("/user-stories", storyHandler.CreateStory)

				project.GET("/sprints", sprintHandler.ListSprints)
				project.POST("/sprints", sprintHandler.CreateSprint)
				project.GET("/sprints/:sprintId", sprintHandler.GetSprint)
				project.PUT("/sprints/:sprintId", sprintHandler.UpdateSprint)
				project.DELETE("/sprints/:sprintId", sprintHandler.DeleteSprint)
				project.POST("/sprints/:sprintId/capacity", sprintHandler.EvaluateStories)
				project.POST("/sprints/:sprintId/stories", sprintHandler.AddStories)
				project.POST("/sprints/:sprintId/return-to-backlog", sprintHandler.ReturnToBacklog)
			}
		}

		// User story routes (protected)
		stories := api.Group("/user-stories/:id")
		stories.Use(middleware.RequireAuth(), middleware.RequireStoryAccess())
		{
			stories.GET("", storyHandler.GetStory)
			stories.PUT("", storyHandler.UpdateStory)
			stories.DELETE("", storyHandler.DeleteStory)
			stories.POST("/remove-from-sprint", storyHandler.RemoveFromSprint)
			stories.POST("/suggest-tasks", storyHandler.SuggestTasks)
			stories.GET("/tasks", storyHandler.ListTasks)
			stories.POST("/tasks", storyHandler.CreateTask)
		}

		// Task routes (protected)
		tasks := api.Group("/tasks/:id")
		tasks.Use(middleware.RequireAuth(), middleware.RequireTaskAccess())
		{
			tasks.GET("", taskHandler.GetTask)
			tasks.DELETE("", taskHandler.DeleteTask)
			tasks.POST("/assign", taskHandler.AssignTask)
			tasks.POST("/unassign", taskHandler.UnassignTask)
			tasks.POST("/start", taskHandler.StartTask)
			tasks.POST("/stop", taskHandler.StopTask)
			tasks.POST("/start-session", taskHandler.StartSession)
			tasks.POST("/stop-session", taskHandler.StopSession)
			tasks.POST("/complete", taskHandler.CompleteTask)
			tasks.POST("/reject", taskHandler.RejectTask)
			tasks.GET("/logs", taskHandler.ListLogs)
		}
	}

	return r
}

// requestLogger writes one structured access log line per request.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
		}
		if userID, ok := middleware.GetUserID(c); ok {
			attrs = append(attrs, "user_id", userID)
		}
		if c.Writer.Status() >= 500 {
			logger.Error("request failed", attrs...)
			return
		}
		logger.Debug("request", attrs...)
	}
}
