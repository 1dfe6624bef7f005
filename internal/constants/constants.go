package constants

const (
	// Session
	SessionCookieName = "scrum_session"
	ContextKeyUserID  = "user_id"

	// Context keys set by access middleware
	ContextKeyProject       = "project"
	ContextKeyProjectMember = "project_member"
	ContextKeyTask          = "task"
	ContextKeyStory         = "story"

	// Auth
	MinPasswordLength = 8

	// Pagination
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100

	// Tasks
	MinEstimatedHours = 1
	MaxEstimatedHours = 100

	// Sprints
	MaxSprintDays = 28
	MaxVelocity   = 100

	// AI
	MaxAIGeneratedTasks = 20

	// Client-local session keys: task_session_{taskId}_{userId}
	TaskSessionKeyPrefix = "task_session_"
)
