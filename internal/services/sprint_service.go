package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/yukikurage/scrum-board/internal/backlog"
	"github.com/yukikurage/scrum-board/internal/capacity"
	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/models"
	"github.com/yukikurage/scrum-board/internal/repository"
	"github.com/yukikurage/scrum-board/internal/sprintrules"
	"gorm.io/gorm"
)

var (
	ErrSprintNotFound     = apierrors.NewAPIError(apierrors.ErrCodeNotFound, "sprint not found")
	ErrStoryNotInProject  = apierrors.NewAPIError(apierrors.ErrCodeNotFound, "one or more stories were not found in the project")
	ErrBacklogChanged     = apierrors.NewAPIError(apierrors.ErrCodeConflict, "the backlog changed while adding stories; reload and try again")
	ErrSprintNotEnded     = apierrors.NewAPIError(apierrors.ErrCodeInvalidOperation, "sprint has not ended yet")
	ErrSprintNotFuture    = apierrors.NewAPIError(apierrors.ErrCodeInvalidOperation, "only sprints that have not started can be deleted")
	ErrSprintEnded        = apierrors.NewAPIError(apierrors.ErrCodeInvalidOperation, "stories cannot be added to a sprint that has ended")
	ErrVelocityBelowLoad  = apierrors.NewAPIError(apierrors.ErrCodeCapacityExceeded, "velocity cannot be lower than the points already in the sprint")
	ErrSprintDateRequired = apierrors.NewAPIError(apierrors.ErrCodeMissingField, "start and end dates are required")
)

// SprintService provides business logic for sprint operations.
type SprintService struct {
	sprintRepo  repository.SprintRepository
	storyRepo   repository.StoryRepository
	projectRepo repository.ProjectRepository
	now         Clock
}

// NewSprintService creates a new SprintService.
func NewSprintService(
	sprintRepo repository.SprintRepository,
	storyRepo repository.StoryRepository,
	projectRepo repository.ProjectRepository,
) *SprintService {
	return &SprintService{
		sprintRepo:  sprintRepo,
		storyRepo:   storyRepo,
		projectRepo: projectRepo,
		now:         time.Now,
	}
}

// WithClock replaces the service clock.
func (s *SprintService) WithClock(now Clock) *SprintService {
	s.now = now
	return s
}

// CreateSprintInput represents parameters to create a new sprint.
type CreateSprintInput struct {
	ProjectID uint64
	ActorID   uint64
	StartDate time.Time
	EndDate   time.Time
	Velocity  int
}

// CreateSprint validates and stores a new sprint.
func (s *SprintService) CreateSprint(input CreateSprintInput) (*models.Sprint, error) {
	actor, err := resolveActor(s.projectRepo, input.ProjectID, input.ActorID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(actor, models.RoleScrumMaster); err != nil {
		return nil, err
	}
	if input.StartDate.IsZero() || input.EndDate.IsZero() {
		return nil, ErrSprintDateRequired
	}

	existing, err := s.sprintRepo.ListByProject(input.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sprints: %w", err)
	}

	sprint := &models.Sprint{
		ProjectID: input.ProjectID,
		StartDate: sprintrules.Day(input.StartDate),
		EndDate:   sprintrules.Day(input.EndDate),
		Velocity:  input.Velocity,
	}

	now := s.now()
	if err := sprintrules.ValidateNew(*sprint, existing, now); err != nil {
		return nil, err
	}

	if err := s.sprintRepo.Create(sprint); err != nil {
		return nil, fmt.Errorf("failed to create sprint: %w", err)
	}

	sprint.Status = sprintrules.StatusAt(*sprint, now)
	return sprint, nil
}

// ListSprints lists a project's sprints with their current status.
func (s *SprintService) ListSprints(projectID uint64) ([]models.Sprint, error) {
	sprints, err := s.sprintRepo.ListByProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sprints: %w", err)
	}

	now := s.now()
	for i := range sprints {
		sprints[i].Status = sprintrules.StatusAt(sprints[i], now)
	}
	return sprints, nil
}

// GetSprint returns a sprint of the project with its stories.
func (s *SprintService) GetSprint(projectID, sprintID uint64) (*models.Sprint, error) {
	sprint, err := s.findSprint(projectID, sprintID)
	if err != nil {
		return nil, err
	}

	stories, err := s.sprintStories(sprint)
	if err != nil {
		return nil, err
	}
	sprint.Stories = stories
	return sprint, nil
}

// UpdateSprintInput represents the editable fields of a sprint.
type UpdateSprintInput struct {
	StartDate *time.Time
	EndDate   *time.Time
	Velocity  *int
}

// UpdateSprint edits a sprint. Active sprints can only change velocity and
// never below the points they already hold.
func (s *SprintService) UpdateSprint(projectID, sprintID, actorID uint64, input UpdateSprintInput) (*models.Sprint, error) {
	actor, err := resolveActor(s.projectRepo, projectID, actorID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(actor, models.RoleScrumMaster); err != nil {
		return nil, err
	}

	current, err := s.findSprint(projectID, sprintID)
	if err != nil {
		return nil, err
	}

	updated := *current
	if input.StartDate != nil {
		updated.StartDate = sprintrules.Day(*input.StartDate)
	}
	if input.EndDate != nil {
		updated.EndDate = sprintrules.Day(*input.EndDate)
	}
	if input.Velocity != nil {
		updated.Velocity = *input.Velocity
	}

	existing, err := s.sprintRepo.ListByProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sprints: %w", err)
	}

	now := s.now()
	if err := sprintrules.ValidateUpdate(*current, updated, existing, now); err != nil {
		return nil, err
	}

	if updated.Velocity < current.Velocity {
		stories, err := s.sprintStories(current)
		if err != nil {
			return nil, err
		}
		if load := capacity.Load(stories); updated.Velocity < load {
			return nil, fmt.Errorf("%w: %d points already planned", ErrVelocityBelowLoad, load)
		}
	}

	if err := s.sprintRepo.Update(&updated); err != nil {
		return nil, fmt.Errorf("failed to update sprint: %w", err)
	}

	updated.Status = sprintrules.StatusAt(updated, now)
	return &updated, nil
}

// DeleteSprint deletes a sprint that has not started. Its stories go back to
// the backlog.
func (s *SprintService) DeleteSprint(projectID, sprintID, actorID uint64) error {
	actor, err := resolveActor(s.projectRepo, projectID, actorID)
	if err != nil {
		return err
	}
	if err := requireRole(actor, models.RoleScrumMaster); err != nil {
		return err
	}

	sprint, err := s.findSprint(projectID, sprintID)
	if err != nil {
		return err
	}
	if sprint.Status != models.SprintStatusFuture {
		return ErrSprintNotFuture
	}

	if err := s.sprintRepo.Delete(sprint.ID); err != nil {
		return fmt.Errorf("failed to delete sprint: %w", err)
	}
	return nil
}

// EvaluateStories reports whether storyIDs would fit into the sprint without
// changing anything.
func (s *SprintService) EvaluateStories(projectID, sprintID uint64, ids []uint64) (capacity.Result, error) {
	sprint, candidates, inSprint, err := s.planningState(projectID, sprintID, ids)
	if err != nil {
		return capacity.Result{}, err
	}
	return capacity.CanAdd(candidates, *sprint, inSprint)
}

// AddStories moves backlog stories into a sprint. Either every story fits
// and is added, or nothing changes.
func (s *SprintService) AddStories(projectID, sprintID, actorID uint64, ids []uint64) (capacity.Result, error) {
	actor, err := resolveActor(s.projectRepo, projectID, actorID)
	if err != nil {
		return capacity.Result{}, err
	}
	if err := requireRole(actor, models.RoleScrumMaster); err != nil {
		return capacity.Result{}, err
	}

	sprint, candidates, inSprint, err := s.planningState(projectID, sprintID, ids)
	if err != nil {
		return capacity.Result{}, err
	}
	if sprint.Status == models.SprintStatusPast {
		return capacity.Result{}, ErrSprintEnded
	}

	res, err := capacity.Enforce(candidates, *sprint, inSprint)
	if err != nil {
		return res, err
	}

	if err := s.sprintRepo.AssignStories(sprint.ID, ids); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return capacity.Result{}, ErrBacklogChanged
		}
		return capacity.Result{}, fmt.Errorf("failed to add stories to sprint: %w", err)
	}

	return res, nil
}

// ReturnToBacklog moves every unaccepted story of an ended sprint back to the
// product backlog and returns the moved stories.
func (s *SprintService) ReturnToBacklog(projectID, sprintID, actorID uint64) ([]models.UserStory, error) {
	actor, err := resolveActor(s.projectRepo, projectID, actorID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(actor, models.RoleScrumMaster, models.RoleProductOwner); err != nil {
		return nil, err
	}

	sprint, err := s.findSprint(projectID, sprintID)
	if err != nil {
		return nil, err
	}
	if sprint.Status != models.SprintStatusPast {
		return nil, ErrSprintNotEnded
	}

	return s.returnUnfinished(sprint)
}

// SweepEndedSprints returns the unfinished stories of every ended sprint to
// the backlog. It reports how many stories moved.
func (s *SprintService) SweepEndedSprints() (int, error) {
	sprints, err := s.sprintRepo.ListEndedWithOpenStories(sprintrules.Day(s.now()))
	if err != nil {
		return 0, fmt.Errorf("failed to list ended sprints: %w", err)
	}

	moved := 0
	for i := range sprints {
		stories, err := s.returnUnfinished(&sprints[i])
		if err != nil {
			return moved, err
		}
		moved += len(stories)
	}
	return moved, nil
}

func (s *SprintService) returnUnfinished(sprint *models.Sprint) ([]models.UserStory, error) {
	stories, err := s.sprintStories(sprint)
	if err != nil {
		return nil, err
	}

	unfinished := backlog.Unfinished(stories, sprint.ID)
	if err := s.sprintRepo.ClearStories(storyIDs(unfinished)); err != nil {
		return nil, fmt.Errorf("failed to return stories to backlog: %w", err)
	}

	for i := range unfinished {
		unfinished[i].SprintID = nil
	}
	if unfinished == nil {
		unfinished = []models.UserStory{}
	}
	return unfinished, nil
}

func (s *SprintService) planningState(projectID, sprintID uint64, ids []uint64) (*models.Sprint, []models.UserStory, []models.UserStory, error) {
	sprint, err := s.findSprint(projectID, sprintID)
	if err != nil {
		return nil, nil, nil, err
	}

	candidates, err := s.storyRepo.FindByIDs(projectID, ids)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load stories: %w", err)
	}
	if len(candidates) != len(uniqueIDs(ids)) {
		return nil, nil, nil, ErrStoryNotInProject
	}
	// FindByIDs collapses duplicates; expand them again so they are reported.
	if len(candidates) != len(ids) {
		byID := make(map[uint64]models.UserStory, len(candidates))
		for _, c := range candidates {
			byID[c.ID] = c
		}
		candidates = candidates[:0]
		for _, id := range ids {
			candidates = append(candidates, byID[id])
		}
	}

	inSprint, err := s.sprintStories(sprint)
	if err != nil {
		return nil, nil, nil, err
	}

	return sprint, candidates, inSprint, nil
}

func (s *SprintService) findSprint(projectID, sprintID uint64) (*models.Sprint, error) {
	sprint, err := s.sprintRepo.FindByID(sprintID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSprintNotFound
		}
		return nil, fmt.Errorf("failed to find sprint: %w", err)
	}
	if sprint.ProjectID != projectID {
		return nil, ErrSprintNotFound
	}
	sprint.Status = sprintrules.StatusAt(*sprint, s.now())
	return sprint, nil
}

func (s *SprintService) sprintStories(sprint *models.Sprint) ([]models.UserStory, error) {
	id := sprint.ID
	stories, _, err := s.storyRepo.List(repository.StoryFilter{
		ProjectID: sprint.ProjectID,
		SprintID:  &id,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sprint stories: %w", err)
	}
	return stories, nil
}

func storyIDs(stories []models.UserStory) []uint64 {
	ids := make([]uint64, 0, len(stories))
	for _, s := range stories {
		ids = append(ids, s.ID)
	}
	return ids
}

func uniqueIDs(ids []uint64) map[uint64]struct{} {
	set := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
