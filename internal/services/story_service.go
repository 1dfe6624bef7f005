package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yukikurage/scrum-board/internal/backlog"
	"github.com/yukikurage/scrum-board/internal/capacity"
	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/lifecycle"
	"github.com/yukikurage/scrum-board/internal/models"
	"github.com/yukikurage/scrum-board/internal/repository"
	"github.com/yukikurage/scrum-board/internal/sprintrules"
	"gorm.io/gorm"
)

var (
	ErrStoryNotFound         = apierrors.NewAPIError(apierrors.ErrCodeNotFound, "user story not found")
	ErrStoryNameRequired     = apierrors.NewAPIError(apierrors.ErrCodeMissingField, "story name cannot be empty")
	ErrStoryNameTaken        = apierrors.NewAPIError(apierrors.ErrCodeAlreadyExists, "a story with this name already exists in the project")
	ErrInvalidPriority       = apierrors.NewAPIError(apierrors.ErrCodeInvalidInput, "priority must be MUST_HAVE, SHOULD_HAVE, COULD_HAVE or WONT_HAVE")
	ErrInvalidBusinessValue  = apierrors.NewAPIError(apierrors.ErrCodeInvalidInput, "business value must be a positive number")
	ErrInvalidStoryPoints    = apierrors.NewAPIError(apierrors.ErrCodeInvalidInput, "story points must be a positive number")
	ErrInvalidStoryStatus    = apierrors.NewAPIError(apierrors.ErrCodeInvalidInput, "unknown story status")
	ErrStoryFinished         = apierrors.NewAPIError(apierrors.ErrCodeInvalidOperation, "story is closed and can no longer be changed")
	ErrStoryNotInSprint      = apierrors.NewAPIError(apierrors.ErrCodeInvalidOperation, "story is not in a sprint")
	ErrStoryInActiveSprint   = apierrors.NewAPIError(apierrors.ErrCodeInvalidOperation, "story belongs to the active sprint")
	ErrSuggestionUnavailable = apierrors.NewAPIError(apierrors.ErrCodeServiceUnavailable, "task suggestions are not configured")
	ErrSuggestionFailed      = apierrors.NewAPIError(apierrors.ErrCodeServiceUnavailable, "task suggestion failed")
)

// StoryService provides business logic for user story operations.
type StoryService struct {
	storyRepo   repository.StoryRepository
	sprintRepo  repository.SprintRepository
	projectRepo repository.ProjectRepository
	suggester   TaskSuggester
	now         Clock
}

// NewStoryService creates a new StoryService. suggester may be nil.
func NewStoryService(
	storyRepo repository.StoryRepository,
	sprintRepo repository.SprintRepository,
	projectRepo repository.ProjectRepository,
	suggester TaskSuggester,
) *StoryService {
	return &StoryService{
		storyRepo:   storyRepo,
		sprintRepo:  sprintRepo,
		projectRepo: projectRepo,
		suggester:   suggester,
		now:         time.Now,
	}
}

// WithClock replaces the service clock.
func (s *StoryService) WithClock(now Clock) *StoryService {
	s.now = now
	return s
}

// CreateStoryInput represents parameters to create a new user story.
type CreateStoryInput struct {
	ProjectID          uint64
	ActorID            uint64
	Name               string
	Description        string
	AcceptanceCriteria string
	Priority           models.Priority
	BusinessValue      int
	StoryPoints        *int
}

// CreateStory adds a story to the product backlog.
func (s *StoryService) CreateStory(input CreateStoryInput) (*models.UserStory, error) {
	actor, err := resolveActor(s.projectRepo, input.ProjectID, input.ActorID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(actor, models.RoleProductOwner, models.RoleScrumMaster); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrStoryNameRequired
	}
	if !input.Priority.Valid() {
		return nil, ErrInvalidPriority
	}
	if input.BusinessValue <= 0 {
		return nil, ErrInvalidBusinessValue
	}
	if input.StoryPoints != nil && *input.StoryPoints <= 0 {
		return nil, ErrInvalidStoryPoints
	}
	if err := s.ensureNameFree(input.ProjectID, name, 0); err != nil {
		return nil, err
	}

	story := &models.UserStory{
		ProjectID:          input.ProjectID,
		Name:               name,
		Description:        input.Description,
		AcceptanceCriteria: input.AcceptanceCriteria,
		Priority:           input.Priority,
		BusinessValue:      input.BusinessValue,
		Status:             models.StoryStatusNotStarted,
		StoryPoints:        input.StoryPoints,
	}

	if err := s.storyRepo.Create(story); err != nil {
		return nil, fmt.Errorf("failed to create story: %w", err)
	}

	return story, nil
}

// GetStory returns a story of the project.
func (s *StoryService) GetStory(projectID, storyID uint64) (*models.UserStory, error) {
	story, err := s.storyRepo.FindByID(storyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStoryNotFound
		}
		return nil, fmt.Errorf("failed to find story: %w", err)
	}
	if story.ProjectID != projectID {
		return nil, ErrStoryNotFound
	}
	return story, nil
}

// ListStories lists a project's stories with filtering and pagination.
func (s *StoryService) ListStories(filter repository.StoryFilter) ([]models.UserStory, int64, error) {
	stories, total, err := s.storyRepo.List(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list stories: %w", err)
	}
	return stories, total, nil
}

// Board partitions every story of the project for display.
func (s *StoryService) Board(projectID uint64) (backlog.View, error) {
	stories, _, err := s.storyRepo.List(repository.StoryFilter{ProjectID: projectID})
	if err != nil {
		return backlog.View{}, fmt.Errorf("failed to list stories: %w", err)
	}
	return backlog.NewBoard(stories).View(), nil
}

// UpdateStoryInput represents the editable fields of a story. A nil field is
// left unchanged.
type UpdateStoryInput struct {
	Name               *string
	Description        *string
	AcceptanceCriteria *string
	Priority           *models.Priority
	BusinessValue      *int
	StoryPoints        *int
	Status             *models.StoryStatus
}

// UpdateStory edits a story's content, re-estimates it or moves its status.
// Content edits are for the product owner and scrum master; status changes
// follow the story lifecycle.
func (s *StoryService) UpdateStory(projectID, storyID, actorID uint64, input UpdateStoryInput) (*models.UserStory, error) {
	actor, err := resolveActor(s.projectRepo, projectID, actorID)
	if err != nil {
		return nil, err
	}

	story, err := s.GetStory(projectID, storyID)
	if err != nil {
		return nil, err
	}
	updated := *story

	contentEdit := input.Name != nil || input.Description != nil || input.AcceptanceCriteria != nil ||
		input.Priority != nil || input.BusinessValue != nil
	if contentEdit || input.StoryPoints != nil {
		if err := requireRole(actor, models.RoleProductOwner, models.RoleScrumMaster); err != nil {
			return nil, err
		}
		if story.Status.Terminal() {
			return nil, ErrStoryFinished
		}
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrStoryNameRequired
		}
		if !strings.EqualFold(name, story.Name) {
			if err := s.ensureNameFree(projectID, name, story.ID); err != nil {
				return nil, err
			}
		}
		updated.Name = name
	}
	if input.Description != nil {
		updated.Description = *input.Description
	}
	if input.AcceptanceCriteria != nil {
		updated.AcceptanceCriteria = *input.AcceptanceCriteria
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			return nil, ErrInvalidPriority
		}
		updated.Priority = *input.Priority
	}
	if input.BusinessValue != nil {
		if *input.BusinessValue <= 0 {
			return nil, ErrInvalidBusinessValue
		}
		updated.BusinessValue = *input.BusinessValue
	}
	if input.StoryPoints != nil {
		if err := s.reestimate(story, *input.StoryPoints); err != nil {
			return nil, err
		}
		points := *input.StoryPoints
		updated.StoryPoints = &points
	}

	if input.Status != nil && *input.Status != story.Status {
		if !input.Status.Valid() {
			return nil, ErrInvalidStoryStatus
		}
		open, err := s.storyRepo.CountOpenTasks(story.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count open tasks: %w", err)
		}
		moved, err := lifecycle.RequestStoryTransition(updated, lifecycle.StoryRequest{
			Target:    *input.Status,
			Actor:     actor,
			OpenTasks: int(open),
		})
		if err != nil {
			return nil, err
		}
		updated = moved
	}

	if err := s.storyRepo.Update(&updated); err != nil {
		return nil, fmt.Errorf("failed to update story: %w", err)
	}

	return &updated, nil
}

// reestimate checks a new point value. Stories in an active sprint keep
// their estimate; in a sprint that has not started the new total must still
// fit the velocity.
func (s *StoryService) reestimate(story *models.UserStory, points int) error {
	if points <= 0 {
		return ErrInvalidStoryPoints
	}
	sprint, status, err := s.storySprint(story)
	if err != nil || sprint == nil {
		return err
	}

	switch status {
	case models.SprintStatusActive:
		return ErrStoryInActiveSprint
	case models.SprintStatusFuture:
		stories, _, err := s.storyRepo.List(repository.StoryFilter{ProjectID: story.ProjectID, SprintID: story.SprintID})
		if err != nil {
			return fmt.Errorf("failed to list sprint stories: %w", err)
		}
		load := capacity.Load(stories) - story.Points() + points
		if load > sprint.Velocity {
			return fmt.Errorf("%w: %d of %d points", apierrors.ErrCapacityExceeded, load, sprint.Velocity)
		}
	}
	return nil
}

// storySprint loads the sprint a story sits in, if any.
func (s *StoryService) storySprint(story *models.UserStory) (*models.Sprint, models.SprintStatus, error) {
	if story.SprintID == nil {
		return nil, "", nil
	}
	sprint, err := s.sprintRepo.FindByID(*story.SprintID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to find sprint: %w", err)
	}
	return sprint, sprintrules.StatusAt(*sprint, s.now()), nil
}

// RemoveFromSprint returns a single unfinished story to the backlog.
func (s *StoryService) RemoveFromSprint(projectID, storyID, actorID uint64) (*models.UserStory, error) {
	actor, err := resolveActor(s.projectRepo, projectID, actorID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(actor, models.RoleProductOwner, models.RoleScrumMaster); err != nil {
		return nil, err
	}

	story, err := s.GetStory(projectID, storyID)
	if err != nil {
		return nil, err
	}
	if story.SprintID == nil {
		return nil, ErrStoryNotInSprint
	}
	if backlog.Categorize(*story) == backlog.Finished {
		return nil, ErrStoryFinished
	}

	if err := s.sprintRepo.ClearStories([]uint64{story.ID}); err != nil {
		return nil, fmt.Errorf("failed to remove story from sprint: %w", err)
	}

	story.SprintID = nil
	return story, nil
}

// DeleteStory soft deletes a backlog story.
func (s *StoryService) DeleteStory(projectID, storyID, actorID uint64) error {
	actor, err := resolveActor(s.projectRepo, projectID, actorID)
	if err != nil {
		return err
	}
	if err := requireRole(actor, models.RoleProductOwner, models.RoleScrumMaster); err != nil {
		return err
	}

	story, err := s.GetStory(projectID, storyID)
	if err != nil {
		return err
	}
	if story.Status == models.StoryStatusAccepted {
		return ErrStoryFinished
	}
	if _, status, err := s.storySprint(story); err != nil {
		return err
	} else if status == models.SprintStatusActive {
		return ErrStoryInActiveSprint
	}

	if err := s.storyRepo.Delete(story.ID); err != nil {
		return fmt.Errorf("failed to delete story: %w", err)
	}
	return nil
}

// SuggestTasks proposes a task breakdown for a story.
func (s *StoryService) SuggestTasks(ctx context.Context, projectID, storyID uint64) ([]SuggestedTask, error) {
	if s.suggester == nil {
		return nil, ErrSuggestionUnavailable
	}

	story, err := s.GetStory(projectID, storyID)
	if err != nil {
		return nil, err
	}
	if story.Status.Terminal() {
		return nil, ErrStoryFinished
	}

	tasks, err := s.suggester.SuggestTasks(ctx, *story)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSuggestionFailed, err)
	}
	return tasks, nil
}

func (s *StoryService) ensureNameFree(projectID uint64, name string, exceptID uint64) error {
	existing, err := s.storyRepo.FindByName(projectID, name)
	if err == nil {
		if existing.ID != exceptID {
			return ErrStoryNameTaken
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check story name: %w", err)
	}
	return nil
}
