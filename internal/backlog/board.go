// Package backlog keeps a project's stories partitioned into finished,
// unrealized stories that sit in a sprint, and unrealized stories that do not.
package backlog

import "github.com/yukikurage/scrum-board/internal/models"

// Category is the partition a story belongs to.
type Category string

const (
	Finished           Category = "finished"
	UnrealizedActive   Category = "unrealized_active"
	UnrealizedUnactive Category = "unrealized_unactive"
)

// Categorize applies the partition rule to one story. Only ACCEPTED stories
// are finished; a finished story stays finished even if it still carries a
// sprint reference.
func Categorize(s models.UserStory) Category {
	switch {
	case s.Status == models.StoryStatusAccepted:
		return Finished
	case s.SprintID != nil:
		return UnrealizedActive
	default:
		return UnrealizedUnactive
	}
}

// Board holds the three partitions in insertion order. It is not safe for
// concurrent use.
type Board struct {
	buckets map[Category][]models.UserStory
	index   map[uint64]Category
}

// NewBoard partitions stories.
func NewBoard(stories []models.UserStory) *Board {
	b := &Board{
		buckets: map[Category][]models.UserStory{},
		index:   make(map[uint64]Category, len(stories)),
	}
	for _, s := range stories {
		b.Upsert(s)
	}
	return b
}

// Upsert removes the story from whichever partition holds it and reinserts it
// according to its current status and sprint reference.
func (b *Board) Upsert(s models.UserStory) Category {
	b.Remove(s.ID)
	cat := Categorize(s)
	b.buckets[cat] = append(b.buckets[cat], s)
	b.index[s.ID] = cat
	return cat
}

// Remove drops a story from the board. It reports whether it was present.
func (b *Board) Remove(id uint64) bool {
	cat, ok := b.index[id]
	if !ok {
		return false
	}
	bucket := b.buckets[cat]
	for i := range bucket {
		if bucket[i].ID == id {
			b.buckets[cat] = append(bucket[:i:i], bucket[i+1:]...)
			break
		}
	}
	delete(b.index, id)
	return true
}

// CategoryOf returns the partition holding id.
func (b *Board) CategoryOf(id uint64) (Category, bool) {
	cat, ok := b.index[id]
	return cat, ok
}

// Story returns the board's copy of a story.
func (b *Board) Story(id uint64) (models.UserStory, bool) {
	cat, ok := b.index[id]
	if !ok {
		return models.UserStory{}, false
	}
	for _, s := range b.buckets[cat] {
		if s.ID == id {
			return s, true
		}
	}
	return models.UserStory{}, false
}

// ReturnToBacklog clears the sprint reference of every unfinished story in
// sprintID and moves it to the unactive partition. Finished stories are left
// as they are. It returns the moved stories.
func (b *Board) ReturnToBacklog(sprintID uint64) []models.UserStory {
	var moved []models.UserStory
	for _, s := range b.Stories(UnrealizedActive) {
		if s.SprintID == nil || *s.SprintID != sprintID {
			continue
		}
		s.SprintID = nil
		b.Upsert(s)
		moved = append(moved, s)
	}
	return moved
}

// Stories returns a copy of one partition.
func (b *Board) Stories(cat Category) []models.UserStory {
	src := b.buckets[cat]
	out := make([]models.UserStory, len(src))
	copy(out, src)
	return out
}

// Len is the number of stories on the board.
func (b *Board) Len() int {
	return len(b.index)
}

// View is the display split of a board. WONT_HAVE stories are carved out
// into FutureReleases whatever their partition.
type View struct {
	Finished           []models.UserStory `json:"finished"`
	UnrealizedActive   []models.UserStory `json:"unrealized_active"`
	UnrealizedUnactive []models.UserStory `json:"unrealized_unactive"`
	FutureReleases     []models.UserStory `json:"future_releases"`
}

// View builds the display split.
func (b *Board) View() View {
	v := View{
		Finished:           []models.UserStory{},
		UnrealizedActive:   []models.UserStory{},
		UnrealizedUnactive: []models.UserStory{},
		FutureReleases:     []models.UserStory{},
	}
	for _, cat := range []Category{Finished, UnrealizedActive, UnrealizedUnactive} {
		for _, s := range b.buckets[cat] {
			if s.Priority == models.PriorityWontHave {
				v.FutureReleases = append(v.FutureReleases, s)
				continue
			}
			switch cat {
			case Finished:
				v.Finished = append(v.Finished, s)
			case UnrealizedActive:
				v.UnrealizedActive = append(v.UnrealizedActive, s)
			case UnrealizedUnactive:
				v.UnrealizedUnactive = append(v.UnrealizedUnactive, s)
			}
		}
	}
	return v
}

// Unfinished returns the stories of sprintID that ReturnToBacklog would move,
// without modifying anything. The server uses it to decide which rows to
// update.
func Unfinished(stories []models.UserStory, sprintID uint64) []models.UserStory {
	var out []models.UserStory
	for _, s := range stories {
		if s.SprintID != nil && *s.SprintID == sprintID && Categorize(s) != Finished {
			out = append(out, s)
		}
	}
	return out
}
