package tracker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukikurage/scrum-board/internal/backlog"
	"github.com/yukikurage/scrum-board/internal/cache"
	"github.com/yukikurage/scrum-board/internal/capacity"
	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/models"
)

// fakePlanningAPI plays the server for one project with one sprint.
type fakePlanningAPI struct {
	sprint  models.Sprint
	stories map[uint64]models.UserStory
	added   []uint64
	calls   []string
}

func (f *fakePlanningAPI) Board(context.Context, uint64) (*backlog.View, error) {
	f.calls = append(f.calls, "Board")
	all := make([]models.UserStory, 0, len(f.stories))
	for id := uint64(1); id <= uint64(len(f.stories)); id++ {
		if s, ok := f.stories[id]; ok {
			all = append(all, s)
		}
	}
	view := backlog.NewBoard(all).View()
	return &view, nil
}

func (f *fakePlanningAPI) GetSprint(context.Context, uint64, uint64) (*models.Sprint, error) {
	s := f.sprint
	return &s, nil
}

func (f *fakePlanningAPI) GetStory(_ context.Context, id uint64) (*models.UserStory, error) {
	s, ok := f.stories[id]
	if !ok {
		return nil, apierrors.ErrNotFound
	}
	return &s, nil
}

func (f *fakePlanningAPI) AddStories(_ context.Context, _, sprintID uint64, ids []uint64) (capacity.Result, error) {
	f.added = append(f.added, ids...)
	for _, id := range ids {
		s := f.stories[id]
		s.SprintID = &sprintID
		f.stories[id] = s
	}
	return capacity.Result{Allowed: true, Velocity: f.sprint.Velocity}, nil
}

func (f *fakePlanningAPI) SetStoryStatus(_ context.Context, id uint64, status models.StoryStatus) (*models.UserStory, error) {
	f.calls = append(f.calls, "SetStoryStatus")
	s := f.stories[id]
	s.Status = status
	f.stories[id] = s
	return &s, nil
}

func (f *fakePlanningAPI) RemoveFromSprint(_ context.Context, id uint64) (*models.UserStory, error) {
	f.calls = append(f.calls, "RemoveFromSprint")
	s := f.stories[id]
	s.SprintID = nil
	f.stories[id] = s
	return &s, nil
}

func (f *fakePlanningAPI) DeleteStory(_ context.Context, id uint64) error {
	f.calls = append(f.calls, "DeleteStory")
	delete(f.stories, id)
	return nil
}

func (f *fakePlanningAPI) ReturnToBacklog(_ context.Context, _, sprintID uint64) ([]models.UserStory, error) {
	f.calls = append(f.calls, "ReturnToBacklog")
	var returned []models.UserStory
	for id, s := range f.stories {
		if s.SprintID != nil && *s.SprintID == sprintID && s.Status != models.StoryStatusAccepted {
			s.SprintID = nil
			f.stories[id] = s
			returned = append(returned, s)
		}
	}
	return returned, nil
}

func points(p int) *int { return &p }

func newPlanningAPI() *fakePlanningAPI {
	sprintID := uint64(1)
	return &fakePlanningAPI{
		sprint: models.Sprint{
			ID:       sprintID,
			Velocity: 10,
			Stories:  []models.UserStory{{ID: 1, StoryPoints: points(6), SprintID: &sprintID}},
		},
		stories: map[uint64]models.UserStory{
			1: {ID: 1, ProjectID: 1, Name: "sprinting", StoryPoints: points(6), SprintID: &sprintID, Status: models.StoryStatusInProgress},
			2: {ID: 2, ProjectID: 1, Name: "small", StoryPoints: points(3), Status: models.StoryStatusNotStarted},
			3: {ID: 3, ProjectID: 1, Name: "large", StoryPoints: points(5), Status: models.StoryStatusNotStarted},
		},
	}
}

func ids(stories []models.UserStory) []uint64 {
	out := make([]uint64, 0, len(stories))
	for _, s := range stories {
		out = append(out, s.ID)
	}
	return out
}

func TestAddStoriesToSprint_Fits(t *testing.T) {
	api := newPlanningAPI()

	_, err := AddStoriesToSprint(context.Background(), api, 1, 1, []uint64{2})
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, api.added)
}

func TestAddStoriesToSprint_OverCapacityNeverReachesServer(t *testing.T) {
	api := newPlanningAPI()

	res, err := AddStoriesToSprint(context.Background(), api, 1, 1, []uint64{2, 3})
	assert.ErrorIs(t, err, apierrors.ErrCapacityExceeded)
	assert.Equal(t, 14, res.ProjectedLoad)
	assert.Empty(t, api.added)
}

func TestPlanner_AddStoriesRefilesStories(t *testing.T) {
	api := newPlanningAPI()
	c := cache.New()
	p := NewPlanner(api, c, nil)
	ctx := context.Background()

	_, err := p.LoadBoard(ctx, 1)
	require.NoError(t, err)

	_, err = p.AddStories(ctx, 1, 1, []uint64{2})
	require.NoError(t, err)

	view := c.View(1)
	assert.ElementsMatch(t, []uint64{1, 2}, ids(view.UnrealizedActive))
	assert.Equal(t, []uint64{3}, ids(view.UnrealizedUnactive))
}

func TestPlanner_SingleStoryChangesRefileWithoutReload(t *testing.T) {
	api := newPlanningAPI()
	c := cache.New()
	p := NewPlanner(api, c, nil)
	ctx := context.Background()

	_, err := p.LoadBoard(ctx, 1)
	require.NoError(t, err)

	var events []cache.Event
	c.Subscribe(func(ev cache.Event) { events = append(events, ev) })

	_, err = p.SetStoryStatus(ctx, 3, models.StoryStatusAccepted)
	require.NoError(t, err)
	_, err = p.RemoveFromSprint(ctx, 1)
	require.NoError(t, err)

	view := c.View(1)
	assert.Equal(t, []uint64{3}, ids(view.Finished))
	assert.Empty(t, view.UnrealizedActive)
	assert.Equal(t, []uint64{2, 1}, ids(view.UnrealizedUnactive), "a re-filed story goes to the end of its partition")
	assert.Equal(t, []string{"Board", "SetStoryStatus", "RemoveFromSprint"}, api.calls)
	assert.Len(t, events, 2)

	require.NoError(t, p.DeleteStory(ctx, 2))
	_, ok := c.Story(2)
	assert.False(t, ok)
	assert.Equal(t, []uint64{1}, ids(c.View(1).UnrealizedUnactive))
}

func TestPlanner_ReturnToBacklogLeavesFinishedStories(t *testing.T) {
	api := newPlanningAPI()
	sprintID := uint64(1)
	api.stories[2] = models.UserStory{ID: 2, ProjectID: 1, Name: "shipped", SprintID: &sprintID, Status: models.StoryStatusAccepted}
	c := cache.New()
	p := NewPlanner(api, c, nil)
	ctx := context.Background()

	_, err := p.LoadBoard(ctx, 1)
	require.NoError(t, err)

	returned, err := p.ReturnToBacklog(ctx, 1, sprintID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, ids(returned))

	view := c.View(1)
	assert.Equal(t, []uint64{2}, ids(view.Finished))
	assert.Empty(t, view.UnrealizedActive)
	assert.ElementsMatch(t, []uint64{1, 3}, ids(view.UnrealizedUnactive))

	finished, ok := c.Story(2)
	require.True(t, ok)
	require.NotNil(t, finished.SprintID, "finished stories keep their sprint")
}

func TestPlanner_ReturnToBacklogWithoutLoadedBoard(t *testing.T) {
	api := newPlanningAPI()
	c := cache.New()
	p := NewPlanner(api, c, nil)

	returned, err := p.ReturnToBacklog(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, returned, 1)

	story, ok := c.Story(1)
	require.True(t, ok, "the server's copy is cached")
	assert.Nil(t, story.SprintID)
}
