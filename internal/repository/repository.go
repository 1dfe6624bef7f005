package repository

import (
	"time"

	"github.com/yukikurage/scrum-board/internal/models"
)

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create creates a new task
	Create(task *models.Task) error

	// FindByID finds a task by ID with optional preloading
	FindByID(id uint64, preload ...string) (*models.Task, error)

	// ListByStory lists the tasks of a story
	ListByStory(storyID uint64) ([]models.Task, error)

	// Update updates a task
	Update(task *models.Task) error

	// Delete hard deletes a task together with its time log
	Delete(id uint64) error

	// Reject saves a task returned to UNASSIGNED and drops its open work
	// sessions without logging them
	Reject(task *models.Task) error

	// AppendLog stores a time log entry and adds its hours to the task
	AppendLog(entry *models.TimeLogEntry) error

	// ListLogs lists a task's time log ordered by date
	ListLogs(taskID uint64) ([]models.TimeLogEntry, error)

	// FindOpenSession finds the open work session for a task and user
	FindOpenSession(taskID, userID uint64) (*models.WorkSession, error)

	// CreateSession opens a work session
	CreateSession(ws *models.WorkSession) error

	// CloseSession stops a work session and, when entry is not nil, logs it
	CloseSession(ws *models.WorkSession, entry *models.TimeLogEntry) error
}

// StoryFilter holds filtering options for listing stories
type StoryFilter struct {
	ProjectID uint64
	SprintID  *uint64
	Status    *models.StoryStatus
	Page      int
	PageSize  int
}

// StoryRepository defines the interface for user story data access
type StoryRepository interface {
	// Create creates a new story
	Create(story *models.UserStory) error

	// FindByID finds a story by ID
	FindByID(id uint64) (*models.UserStory, error)

	// FindByIDs finds stories of a project by ID
	FindByIDs(projectID uint64, ids []uint64) ([]models.UserStory, error)

	// FindByName finds a story by its name within a project
	FindByName(projectID uint64, name string) (*models.UserStory, error)

	// List retrieves stories with filtering and pagination
	List(filter StoryFilter) ([]models.UserStory, int64, error)

	// Update updates a story
	Update(story *models.UserStory) error

	// Delete soft deletes a story
	Delete(id uint64) error

	// CountOpenTasks counts the story's tasks that are not completed
	CountOpenTasks(storyID uint64) (int64, error)
}

// SprintRepository defines the interface for sprint data access
type SprintRepository interface {
	// Create creates a new sprint
	Create(sprint *models.Sprint) error

	// FindByID finds a sprint by ID
	FindByID(id uint64) (*models.Sprint, error)

	// ListByProject lists a project's sprints ordered by start date
	ListByProject(projectID uint64) ([]models.Sprint, error)

	// ListEndedWithOpenStories lists sprints that ended before day and still
	// hold stories that are not accepted
	ListEndedWithOpenStories(day time.Time) ([]models.Sprint, error)

	// Update updates a sprint
	Update(sprint *models.Sprint) error

	// Delete releases the sprint's stories and deletes the sprint in one
	// transaction
	Delete(id uint64) error

	// AssignStories puts every story into the sprint in one transaction
	AssignStories(sprintID uint64, storyIDs []uint64) error

	// ClearStories removes the sprint reference from the given stories
	ClearStories(storyIDs []uint64) error
}

// ProjectRepository defines the interface for project data access
type ProjectRepository interface {
	// CreateWithOwner creates a project and its first member atomically
	CreateWithOwner(project *models.Project, member *models.ProjectMember) error

	// FindByID finds a project by ID
	FindByID(id uint64) (*models.Project, error)

	// FindByName finds a project by name
	FindByName(name string) (*models.Project, error)

	// Update updates a project
	Update(project *models.Project) error

	// AddMember adds a member to a project
	AddMember(member *models.ProjectMember) error

	// UpdateMember changes a member's role
	UpdateMember(member *models.ProjectMember) error

	// RemoveMember removes a member from a project
	RemoveMember(projectID, userID uint64) error

	// FindMember finds a specific project member
	FindMember(projectID, userID uint64) (*models.ProjectMember, error)

	// ListMembersByUserID lists all projects a user is a member of
	ListMembersByUserID(userID uint64) ([]models.ProjectMember, error)

	// ListMembers lists all members of a project
	ListMembers(projectID uint64) ([]models.ProjectMember, error)
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(user *models.User) error

	// FindByID finds a user by ID
	FindByID(id uint64) (*models.User, error)

	// FindByUsername finds a user by username
	FindByUsername(username string) (*models.User, error)
}
