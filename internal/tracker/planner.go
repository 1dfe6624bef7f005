package tracker

import (
	"context"
	"log/slog"

	"github.com/yukikurage/scrum-board/internal/backlog"
	"github.com/yukikurage/scrum-board/internal/cache"
	"github.com/yukikurage/scrum-board/internal/capacity"
	"github.com/yukikurage/scrum-board/internal/models"
)

// PlanningAPI is the part of the server API sprint planning uses.
type PlanningAPI interface {
	Board(ctx context.Context, projectID uint64) (*backlog.View, error)
	GetSprint(ctx context.Context, projectID, sprintID uint64) (*models.Sprint, error)
	GetStory(ctx context.Context, storyID uint64) (*models.UserStory, error)
	AddStories(ctx context.Context, projectID, sprintID uint64, storyIDs []uint64) (capacity.Result, error)
	SetStoryStatus(ctx context.Context, storyID uint64, status models.StoryStatus) (*models.UserStory, error)
	RemoveFromSprint(ctx context.Context, storyID uint64) (*models.UserStory, error)
	DeleteStory(ctx context.Context, storyID uint64) error
	ReturnToBacklog(ctx context.Context, projectID, sprintID uint64) ([]models.UserStory, error)
}

// AddStoriesToSprint checks the selection against the sprint's velocity and
// only then asks the server to add it. The server checks again.
func AddStoriesToSprint(ctx context.Context, api PlanningAPI, projectID, sprintID uint64, storyIDs []uint64) (capacity.Result, error) {
	sprint, err := api.GetSprint(ctx, projectID, sprintID)
	if err != nil {
		return capacity.Result{}, err
	}

	candidates := make([]models.UserStory, 0, len(storyIDs))
	for _, id := range storyIDs {
		story, err := api.GetStory(ctx, id)
		if err != nil {
			return capacity.Result{}, err
		}
		candidates = append(candidates, *story)
	}

	if res, err := capacity.Enforce(candidates, *sprint, sprint.Stories); err != nil {
		return res, err
	}

	return api.AddStories(ctx, projectID, sprintID, storyIDs)
}

// Planner applies story and sprint changes on the server and files the
// results on the cached backlog board. A changed story is re-filed on its
// own; the board is never reloaded for a single change.
type Planner struct {
	api    PlanningAPI
	cache  *cache.Cache
	logger *slog.Logger
}

// NewPlanner creates a planner writing into c.
func NewPlanner(api PlanningAPI, c *cache.Cache, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{api: api, cache: c, logger: logger}
}

// LoadBoard fetches a project's stories and returns the cached view.
func (p *Planner) LoadBoard(ctx context.Context, projectID uint64) (backlog.View, error) {
	view, err := p.api.Board(ctx, projectID)
	if err != nil {
		return backlog.View{}, err
	}
	p.cache.LoadBoard(projectID, *view)
	return p.cache.View(projectID), nil
}

// AddStories moves stories into a sprint when they fit and re-files each
// of them.
func (p *Planner) AddStories(ctx context.Context, projectID, sprintID uint64, storyIDs []uint64) (capacity.Result, error) {
	res, err := AddStoriesToSprint(ctx, p.api, projectID, sprintID, storyIDs)
	if err != nil {
		return res, err
	}
	for _, id := range storyIDs {
		story, err := p.api.GetStory(ctx, id)
		if err != nil {
			return res, err
		}
		p.cache.PutStory(*story)
	}
	return res, nil
}

// SetStoryStatus requests a status change and re-files the story.
func (p *Planner) SetStoryStatus(ctx context.Context, storyID uint64, status models.StoryStatus) (*models.UserStory, error) {
	story, err := p.api.SetStoryStatus(ctx, storyID, status)
	if err != nil {
		return nil, err
	}
	p.cache.PutStory(*story)
	return story, nil
}

// RemoveFromSprint sends one story back to the backlog.
func (p *Planner) RemoveFromSprint(ctx context.Context, storyID uint64) (*models.UserStory, error) {
	story, err := p.api.RemoveFromSprint(ctx, storyID)
	if err != nil {
		return nil, err
	}
	p.cache.PutStory(*story)
	return story, nil
}

// DeleteStory soft deletes a story and drops it from the board.
func (p *Planner) DeleteStory(ctx context.Context, storyID uint64) error {
	if err := p.api.DeleteStory(ctx, storyID); err != nil {
		return err
	}
	p.cache.RemoveStory(storyID)
	return nil
}

// ReturnToBacklog has the server release an ended sprint's unfinished
// stories, mirrors the move on the cached board, then files the server's
// copies over the local ones.
func (p *Planner) ReturnToBacklog(ctx context.Context, projectID, sprintID uint64) ([]models.UserStory, error) {
	returned, err := p.api.ReturnToBacklog(ctx, projectID, sprintID)
	if err != nil {
		return nil, err
	}

	moved := p.cache.ReturnToBacklog(projectID, sprintID)
	if len(moved) != len(returned) {
		p.logger.Debug("cached board was out of date", "sprint_id", sprintID,
			"moved_locally", len(moved), "returned", len(returned))
	}
	for _, s := range returned {
		p.cache.PutStory(s)
	}
	return returned, nil
}
