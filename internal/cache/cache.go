// Package cache is the client's normalized view of server entities. Tasks
// and stories are stored once by id; each project's stories are also kept
// partitioned on a backlog board. Subscribers hear about every change.
package cache

import (
	"sync"

	"github.com/yukikurage/scrum-board/internal/backlog"
	"github.com/yukikurage/scrum-board/internal/models"
)

// Kind names the entity type of an Event.
type Kind string

const (
	KindTask  Kind = "task"
	KindStory Kind = "story"
)

// Event reports that an entity changed or was removed.
type Event struct {
	Kind    Kind
	ID      uint64
	Removed bool
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	tasks   map[uint64]models.Task
	stories map[uint64]models.UserStory
	boards  map[uint64]*backlog.Board

	subMu  sync.Mutex
	subs   map[int]func(Event)
	nextID int
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		tasks:   map[uint64]models.Task{},
		stories: map[uint64]models.UserStory{},
		boards:  map[uint64]*backlog.Board{},
		subs:    map[int]func(Event){},
	}
}

// Subscribe registers fn for change events and returns a function that
// removes it. fn runs on the goroutine that made the change.
func (c *Cache) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Cache) publish(ev Event) {
	c.subMu.Lock()
	fns := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// PutTask stores the server's copy of a task, replacing any older one.
func (c *Cache) PutTask(t models.Task) {
	c.mu.Lock()
	c.tasks[t.ID] = t
	c.mu.Unlock()
	c.publish(Event{Kind: KindTask, ID: t.ID})
}

// Task returns a cached task.
func (c *Cache) Task(id uint64) (models.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tasks[id]
	return t, ok
}

// RemoveTask drops a task.
func (c *Cache) RemoveTask(id uint64) {
	c.mu.Lock()
	_, ok := c.tasks[id]
	delete(c.tasks, id)
	c.mu.Unlock()
	if ok {
		c.publish(Event{Kind: KindTask, ID: id, Removed: true})
	}
}

// PutStory stores a story and re-files it on its project's board.
func (c *Cache) PutStory(s models.UserStory) {
	c.mu.Lock()
	c.stories[s.ID] = s
	c.board(s.ProjectID).Upsert(s)
	c.mu.Unlock()
	c.publish(Event{Kind: KindStory, ID: s.ID})
}

// Story returns a cached story.
func (c *Cache) Story(id uint64) (models.UserStory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.stories[id]
	return s, ok
}

// RemoveStory drops a story from the cache and its board.
func (c *Cache) RemoveStory(id uint64) {
	c.mu.Lock()
	s, ok := c.stories[id]
	if ok {
		delete(c.stories, id)
		c.board(s.ProjectID).Remove(id)
	}
	c.mu.Unlock()
	if ok {
		c.publish(Event{Kind: KindStory, ID: id, Removed: true})
	}
}

// LoadBoard replaces a project's stories with view, as fetched from the
// server.
func (c *Cache) LoadBoard(projectID uint64, view backlog.View) {
	var all []models.UserStory
	all = append(all, view.Finished...)
	all = append(all, view.UnrealizedActive...)
	all = append(all, view.UnrealizedUnactive...)
	all = append(all, view.FutureReleases...)

	c.mu.Lock()
	if old, ok := c.boards[projectID]; ok {
		for _, cat := range []backlog.Category{backlog.Finished, backlog.UnrealizedActive, backlog.UnrealizedUnactive} {
			for _, s := range old.Stories(cat) {
				delete(c.stories, s.ID)
			}
		}
	}
	c.boards[projectID] = backlog.NewBoard(all)
	for _, s := range all {
		c.stories[s.ID] = s
	}
	c.mu.Unlock()

	for _, s := range all {
		c.publish(Event{Kind: KindStory, ID: s.ID})
	}
}

// ReturnToBacklog mirrors the server moving a sprint's unfinished stories
// back to the backlog and returns the stories that moved.
func (c *Cache) ReturnToBacklog(projectID, sprintID uint64) []models.UserStory {
	c.mu.Lock()
	moved := c.board(projectID).ReturnToBacklog(sprintID)
	for _, s := range moved {
		c.stories[s.ID] = s
	}
	c.mu.Unlock()

	for _, s := range moved {
		c.publish(Event{Kind: KindStory, ID: s.ID})
	}
	return moved
}

// View returns the display split of a project's cached stories.
func (c *Cache) View(projectID uint64) backlog.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.board(projectID).View()
}

// board returns the project's board, creating it on first use. The caller
// holds c.mu for writing.
func (c *Cache) board(projectID uint64) *backlog.Board {
	b, ok := c.boards[projectID]
	if !ok {
		b = backlog.NewBoard(nil)
		c.boards[projectID] = b
	}
	return b
}
