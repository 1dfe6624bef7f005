package services

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/yukikurage/scrum-board/internal/constants"
	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/lifecycle"
	"github.com/yukikurage/scrum-board/internal/models"
	"github.com/yukikurage/scrum-board/internal/repository"
	"github.com/yukikurage/scrum-board/internal/sprintrules"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound          = apierrors.NewAPIError(apierrors.ErrCodeNotFound, "task not found")
	ErrTitleRequired         = apierrors.NewAPIError(apierrors.ErrCodeMissingField, "title is required")
	ErrInvalidEstimate       = apierrors.NewAPIError(apierrors.ErrCodeInvalidInput, fmt.Sprintf("estimated hours must be between %d and %d", constants.MinEstimatedHours, constants.MaxEstimatedHours))
	ErrInvalidHours          = apierrors.NewAPIError(apierrors.ErrCodeInvalidInput, fmt.Sprintf("hours must be greater than 0 and at most %d", constants.MaxEstimatedHours))
	ErrInvalidTaskAssignee   = apierrors.NewAPIError(apierrors.ErrCodeInvalidInput, "assignee must be a developer or scrum master of the project")
	ErrTaskLocked            = apierrors.NewAPIError(apierrors.ErrCodeInvalidOperation, "task is not open for time logging")
	ErrStoryClosedForTasks   = apierrors.NewAPIError(apierrors.ErrCodeInvalidOperation, "tasks cannot be added to a closed story")
	ErrSessionStillOpen      = apierrors.NewAPIError(apierrors.ErrCodeSessionConflict, "stop the running work session first")
	ErrNotTaskAssignee       = apierrors.NewAPIError(apierrors.ErrCodeForbidden, "only the assignee can work on this task")
	ErrProductOwnerCannotAct = apierrors.NewAPIError(apierrors.ErrCodeForbidden, "the product owner cannot change tasks")
)

// TaskService handles task business logic
type TaskService struct {
	taskRepo    repository.TaskRepository
	storyRepo   repository.StoryRepository
	sprintRepo  repository.SprintRepository
	projectRepo repository.ProjectRepository
	now         Clock
}

// NewTaskService creates a new TaskService
func NewTaskService(
	taskRepo repository.TaskRepository,
	storyRepo repository.StoryRepository,
	sprintRepo repository.SprintRepository,
	projectRepo repository.ProjectRepository,
) *TaskService {
	return &TaskService{
		taskRepo:    taskRepo,
		storyRepo:   storyRepo,
		sprintRepo:  sprintRepo,
		projectRepo: projectRepo,
		now:         time.Now,
	}
}

// WithClock replaces the service clock.
func (s *TaskService) WithClock(now Clock) *TaskService {
	s.now = now
	return s
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	StoryID        uint64
	ActorID        uint64
	Title          string
	Description    string
	EstimatedHours float64
	AssignTo       *uint64
}

// CreateTask adds a task to a story, optionally assigning it straight away.
func (s *TaskService) CreateTask(input CreateTaskInput) (*models.Task, error) {
	story, err := s.findStory(input.StoryID)
	if err != nil {
		return nil, err
	}

	actor, err := resolveActor(s.projectRepo, story.ProjectID, input.ActorID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleProductOwner {
		return nil, ErrProductOwnerCannotAct
	}
	if story.Status.Terminal() {
		return nil, ErrStoryClosedForTasks
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if input.EstimatedHours < constants.MinEstimatedHours || input.EstimatedHours > constants.MaxEstimatedHours {
		return nil, ErrInvalidEstimate
	}

	task := &models.Task{
		StoryID:        story.ID,
		Title:          title,
		Description:    input.Description,
		EstimatedHours: input.EstimatedHours,
		Status:         models.TaskStatusUnassigned,
	}

	if input.AssignTo != nil {
		if err := s.checkAssignee(story.ProjectID, *input.AssignTo); err != nil {
			return nil, err
		}
		res, err := lifecycle.RequestTransition(*task, lifecycle.TaskRequest{
			Target:   models.TaskStatusAssigned,
			Actor:    actor,
			Assignee: *input.AssignTo,
		})
		if err != nil {
			return nil, err
		}
		task = &res.Task
	}

	if err := s.taskRepo.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if err := s.decorate(task, story); err != nil {
		return nil, err
	}
	return task, nil
}

// GetTask returns a task with LoggingUnlocked computed.
func (s *TaskService) GetTask(taskID uint64) (*models.Task, error) {
	task, story, err := s.load(taskID)
	if err != nil {
		return nil, err
	}
	if err := s.decorate(task, story); err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks lists the tasks of a story.
func (s *TaskService) ListTasks(storyID uint64) ([]models.Task, error) {
	story, err := s.findStory(storyID)
	if err != nil {
		return nil, err
	}

	tasks, err := s.taskRepo.ListByStory(storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	sprint, status, err := s.sprintOf(story)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].LoggingUnlocked = lifecycle.LoggingUnlocked(tasks[i], *story, sprint, status)
	}
	return tasks, nil
}

// AssignTask assigns or reassigns a task to assigneeID.
func (s *TaskService) AssignTask(taskID, actorID, assigneeID uint64) (*models.Task, error) {
	task, story, actor, err := s.loadForActor(taskID, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAssignee(story.ProjectID, assigneeID); err != nil {
		return nil, err
	}

	res, err := lifecycle.RequestTransition(*task, lifecycle.TaskRequest{
		Target:   models.TaskStatusAssigned,
		Actor:    actor,
		Assignee: assigneeID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.taskRepo.Update(&res.Task); err != nil {
		return nil, fmt.Errorf("failed to assign task: %w", err)
	}
	return s.finish(&res.Task, story)
}

// RejectTask returns an assigned or in-progress task to UNASSIGNED. Open
// work sessions are dropped without logging.
func (s *TaskService) RejectTask(taskID, actorID uint64) (*models.Task, error) {
	task, story, actor, err := s.loadForActor(taskID, actorID)
	if err != nil {
		return nil, err
	}

	res, err := lifecycle.RequestTransition(*task, lifecycle.TaskRequest{
		Target: models.TaskStatusUnassigned,
		Actor:  actor,
	})
	if err != nil {
		return nil, err
	}

	if err := s.taskRepo.Reject(&res.Task); err != nil {
		return nil, fmt.Errorf("failed to reject task: %w", err)
	}
	return s.finish(&res.Task, story)
}

// StartTask accepts an assigned task. Starting a task that is already in
// progress is a no-op for its assignee. The story moves to IN_PROGRESS with
// its first started task.
func (s *TaskService) StartTask(taskID, actorID uint64) (*models.Task, error) {
	task, story, actor, err := s.loadForActor(taskID, actorID)
	if err != nil {
		return nil, err
	}

	if task.Status == models.TaskStatusInProgress && task.IsAssignedTo(actorID) {
		return s.finish(task, story)
	}

	res, err := lifecycle.RequestTransition(*task, lifecycle.TaskRequest{
		Target: models.TaskStatusInProgress,
		Actor:  actor,
	})
	if err != nil {
		return nil, err
	}

	sprint, status, err := s.sprintOf(story)
	if err != nil {
		return nil, err
	}
	if !lifecycle.LoggingUnlocked(res.Task, *story, sprint, status) {
		return nil, ErrTaskLocked
	}

	if err := s.taskRepo.Update(&res.Task); err != nil {
		return nil, fmt.Errorf("failed to start task: %w", err)
	}

	if story.Status == models.StoryStatusNotStarted {
		story.Status = models.StoryStatusInProgress
		if err := s.storyRepo.Update(story); err != nil {
			return nil, fmt.Errorf("failed to start story: %w", err)
		}
	}

	return s.finish(&res.Task, story)
}

// StopTaskInput holds an optional manual time entry recorded when work
// stops.
type StopTaskInput struct {
	Hours       *float64
	Description string
	Date        *time.Time
}

// StopTask ends a working interval on an in-progress task. When hours are
// given they are appended to the time log. The task stays IN_PROGRESS.
func (s *TaskService) StopTask(taskID, actorID uint64, input StopTaskInput) (*models.Task, *models.TimeLogEntry, error) {
	task, _, err := s.loadWorkable(taskID, actorID)
	if err != nil {
		return nil, nil, err
	}

	var entry *models.TimeLogEntry
	if input.Hours != nil {
		if err := validateHours(*input.Hours); err != nil {
			return nil, nil, err
		}
		date := s.now()
		if input.Date != nil {
			date = *input.Date
		}
		entry = &models.TimeLogEntry{
			TaskID:      task.ID,
			UserID:      actorID,
			Date:        sprintrules.Day(date),
			Hours:       *input.Hours,
			Description: input.Description,
		}
		if err := s.taskRepo.AppendLog(entry); err != nil {
			return nil, nil, fmt.Errorf("failed to log time: %w", err)
		}
	}

	refreshed, err := s.GetTask(task.ID)
	if err != nil {
		return nil, nil, err
	}
	return refreshed, entry, nil
}

// StartSession opens a server-side work session. A second open session for
// the same task and user is refused.
func (s *TaskService) StartSession(taskID, actorID uint64) (*models.WorkSession, error) {
	task, _, err := s.loadWorkable(taskID, actorID)
	if err != nil {
		return nil, err
	}

	if open, err := s.taskRepo.FindOpenSession(task.ID, actorID); err == nil {
		return nil, fmt.Errorf("%w: started at %s", apierrors.ErrSessionConflict, open.StartedAt.UTC().Format(time.RFC3339))
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check work session: %w", err)
	}

	ws := &models.WorkSession{
		TaskID:    task.ID,
		UserID:    actorID,
		StartedAt: s.now(),
	}
	if err := s.taskRepo.CreateSession(ws); err != nil {
		return nil, fmt.Errorf("failed to start work session: %w", err)
	}
	return ws, nil
}

// StopSessionResult is the outcome of closing a work session.
type StopSessionResult struct {
	HoursLogged float64
	Task        *models.Task
	Entry       *models.TimeLogEntry
}

// StopSession closes the open work session and logs its duration, rounded to
// hundredths of an hour. A session too short to round above zero is closed
// without an entry.
func (s *TaskService) StopSession(taskID, actorID uint64) (*StopSessionResult, error) {
	task, story, _, err := s.loadForActor(taskID, actorID)
	if err != nil {
		return nil, err
	}

	ws, err := s.taskRepo.FindOpenSession(task.ID, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w for task %d", apierrors.ErrNoActiveSession, task.ID)
		}
		return nil, fmt.Errorf("failed to find work session: %w", err)
	}

	if err := s.decorate(task, story); err != nil {
		return nil, err
	}
	if !task.IsAssignedTo(actorID) || !task.LoggingUnlocked {
		// The task moved on underneath the session; close it unlogged.
		stopped := s.now()
		ws.StoppedAt = &stopped
		if err := s.taskRepo.CloseSession(ws, nil); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to stop work session: %w", err)
		}
		return nil, fmt.Errorf("%w: task %d is %s", ErrTaskLocked, task.ID, task.Status)
	}

	now := s.now()
	hours := RoundHours(now.Sub(ws.StartedAt))
	ws.StoppedAt = &now

	var entry *models.TimeLogEntry
	if hours > 0 {
		entry = &models.TimeLogEntry{
			TaskID:      task.ID,
			UserID:      actorID,
			Date:        sprintrules.Day(ws.StartedAt),
			Hours:       hours,
			Description: "Work session",
		}
	}

	if err := s.taskRepo.CloseSession(ws, entry); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w for task %d", apierrors.ErrNoActiveSession, task.ID)
		}
		return nil, fmt.Errorf("failed to stop work session: %w", err)
	}

	refreshed, err := s.GetTask(task.ID)
	if err != nil {
		return nil, err
	}
	return &StopSessionResult{HoursLogged: hours, Task: refreshed, Entry: entry}, nil
}

// CompleteTask marks an in-progress task as done. The assignee must have
// stopped any running work session first.
func (s *TaskService) CompleteTask(taskID, actorID uint64) (*models.Task, error) {
	task, story, actor, err := s.loadForActor(taskID, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.decorate(task, story); err != nil {
		return nil, err
	}

	if _, err := s.taskRepo.FindOpenSession(task.ID, actorID); err == nil {
		return nil, ErrSessionStillOpen
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check work session: %w", err)
	}

	res, err := lifecycle.RequestTransition(*task, lifecycle.TaskRequest{
		Target: models.TaskStatusCompleted,
		Actor:  actor,
	})
	if err != nil {
		return nil, err
	}

	if err := s.taskRepo.Update(&res.Task); err != nil {
		return nil, fmt.Errorf("failed to complete task: %w", err)
	}
	return s.finish(&res.Task, story)
}

// DeleteTask hard deletes a task that nobody has started.
func (s *TaskService) DeleteTask(taskID, actorID uint64) error {
	task, _, actor, err := s.loadForActor(taskID, actorID)
	if err != nil {
		return err
	}
	if task.Status == models.TaskStatusAssigned && !task.IsAssignedTo(actorID) && actor.Role != models.RoleScrumMaster {
		return fmt.Errorf("%w: only the assignee or a scrum master can delete task %d", apierrors.ErrForbidden, task.ID)
	}
	if err := lifecycle.CanDelete(*task); err != nil {
		return err
	}

	if err := s.taskRepo.Delete(task.ID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// ListLogs returns a task's time log.
func (s *TaskService) ListLogs(taskID uint64) ([]models.TimeLogEntry, error) {
	if _, err := s.findTask(taskID); err != nil {
		return nil, err
	}
	logs, err := s.taskRepo.ListLogs(taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list time log: %w", err)
	}
	return logs, nil
}

// RoundHours converts a duration to hours rounded to two decimals.
func RoundHours(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return math.Round(d.Hours()*100) / 100
}

func validateHours(h float64) error {
	if h <= 0 || h > constants.MaxEstimatedHours || math.IsNaN(h) {
		return ErrInvalidHours
	}
	return nil
}

// loadWorkable loads a task the actor is about to log time on.
func (s *TaskService) loadWorkable(taskID, actorID uint64) (*models.Task, *models.UserStory, error) {
	task, story, _, err := s.loadForActor(taskID, actorID)
	if err != nil {
		return nil, nil, err
	}
	if !task.IsAssignedTo(actorID) {
		return nil, nil, ErrNotTaskAssignee
	}
	if err := s.decorate(task, story); err != nil {
		return nil, nil, err
	}
	if !task.LoggingUnlocked {
		return nil, nil, fmt.Errorf("%w: task %d is %s", ErrTaskLocked, task.ID, task.Status)
	}
	return task, story, nil
}

func (s *TaskService) loadForActor(taskID, actorID uint64) (*models.Task, *models.UserStory, lifecycle.Actor, error) {
	task, story, err := s.load(taskID)
	if err != nil {
		return nil, nil, lifecycle.Actor{}, err
	}
	actor, err := resolveActor(s.projectRepo, story.ProjectID, actorID)
	if err != nil {
		return nil, nil, lifecycle.Actor{}, err
	}
	if actor.Role == models.RoleProductOwner {
		return nil, nil, lifecycle.Actor{}, ErrProductOwnerCannotAct
	}
	return task, story, actor, nil
}

func (s *TaskService) load(taskID uint64) (*models.Task, *models.UserStory, error) {
	task, err := s.findTask(taskID)
	if err != nil {
		return nil, nil, err
	}
	story, err := s.findStory(task.StoryID)
	if err != nil {
		return nil, nil, err
	}
	return task, story, nil
}

func (s *TaskService) findTask(taskID uint64) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

func (s *TaskService) findStory(storyID uint64) (*models.UserStory, error) {
	story, err := s.storyRepo.FindByID(storyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStoryNotFound
		}
		return nil, fmt.Errorf("failed to find story: %w", err)
	}
	return story, nil
}

func (s *TaskService) sprintOf(story *models.UserStory) (*models.Sprint, models.SprintStatus, error) {
	if story.SprintID == nil {
		return nil, "", nil
	}
	sprint, err := s.sprintRepo.FindByID(*story.SprintID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to find sprint: %w", err)
	}
	return sprint, sprintrules.StatusAt(*sprint, s.now()), nil
}

func (s *TaskService) decorate(task *models.Task, story *models.UserStory) error {
	sprint, status, err := s.sprintOf(story)
	if err != nil {
		return err
	}
	task.LoggingUnlocked = lifecycle.LoggingUnlocked(*task, *story, sprint, status)
	return nil
}

func (s *TaskService) finish(task *models.Task, story *models.UserStory) (*models.Task, error) {
	if err := s.decorate(task, story); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) checkAssignee(projectID, userID uint64) error {
	member, err := s.projectRepo.FindMember(projectID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidTaskAssignee
		}
		return fmt.Errorf("failed to verify assignee: %w", err)
	}
	if member.Role == models.RoleProductOwner {
		return ErrInvalidTaskAssignee
	}
	return nil
}
