package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukikurage/scrum-board/internal/backlog"
	"github.com/yukikurage/scrum-board/internal/models"
)

func TestCache_PutTaskNotifies(t *testing.T) {
	c := New()
	var events []Event
	unsubscribe := c.Subscribe(func(ev Event) { events = append(events, ev) })

	c.PutTask(models.Task{ID: 1, Status: models.TaskStatusAssigned})
	c.PutTask(models.Task{ID: 1, Status: models.TaskStatusInProgress})

	got, ok := c.Task(1)
	require.True(t, ok)
	assert.Equal(t, models.TaskStatusInProgress, got.Status, "the newer copy replaces the older one")
	assert.Equal(t, []Event{{Kind: KindTask, ID: 1}, {Kind: KindTask, ID: 1}}, events)

	unsubscribe()
	c.RemoveTask(1)
	assert.Len(t, events, 2)
	_, ok = c.Task(1)
	assert.False(t, ok)
}

func TestCache_RemoveMissingIsSilent(t *testing.T) {
	c := New()
	calls := 0
	c.Subscribe(func(Event) { calls++ })

	c.RemoveTask(9)
	c.RemoveStory(9)
	assert.Zero(t, calls)
}

func TestCache_StoriesFollowTheirBoard(t *testing.T) {
	c := New()
	sprintID := uint64(3)

	c.PutStory(models.UserStory{ID: 1, ProjectID: 10, Priority: models.PriorityMustHave})
	c.PutStory(models.UserStory{ID: 2, ProjectID: 10, Priority: models.PriorityMustHave, SprintID: &sprintID})
	c.PutStory(models.UserStory{ID: 3, ProjectID: 20, Priority: models.PriorityMustHave})

	v := c.View(10)
	assert.Len(t, v.UnrealizedUnactive, 1)
	assert.Len(t, v.UnrealizedActive, 1)
	assert.Len(t, c.View(20).UnrealizedUnactive, 1)

	c.PutStory(models.UserStory{ID: 2, ProjectID: 10, Priority: models.PriorityMustHave, Status: models.StoryStatusAccepted, SprintID: &sprintID})
	v = c.View(10)
	assert.Empty(t, v.UnrealizedActive)
	assert.Len(t, v.Finished, 1)

	c.RemoveStory(1)
	assert.Empty(t, c.View(10).UnrealizedUnactive)
}

func TestCache_LoadBoardReplacesProject(t *testing.T) {
	c := New()
	c.PutStory(models.UserStory{ID: 1, ProjectID: 10})

	c.LoadBoard(10, backlog.View{
		UnrealizedUnactive: []models.UserStory{{ID: 2, ProjectID: 10}},
		FutureReleases:     []models.UserStory{{ID: 3, ProjectID: 10, Priority: models.PriorityWontHave}},
	})

	_, ok := c.Story(1)
	assert.False(t, ok, "stories missing from the fetched board are dropped")
	_, ok = c.Story(3)
	assert.True(t, ok)
	assert.Len(t, c.View(10).FutureReleases, 1)
}

func TestCache_ReturnToBacklog(t *testing.T) {
	c := New()
	sprintID := uint64(3)
	c.PutStory(models.UserStory{ID: 1, ProjectID: 10, SprintID: &sprintID, Status: models.StoryStatusInProgress})
	c.PutStory(models.UserStory{ID: 2, ProjectID: 10, SprintID: &sprintID, Status: models.StoryStatusAccepted})

	var changed []uint64
	c.Subscribe(func(ev Event) { changed = append(changed, ev.ID) })

	moved := c.ReturnToBacklog(10, sprintID)
	require.Len(t, moved, 1)
	assert.Equal(t, []uint64{1}, changed)

	s, ok := c.Story(1)
	require.True(t, ok)
	assert.Nil(t, s.SprintID)
}
