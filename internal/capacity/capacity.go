// Package capacity decides whether a set of backlog stories fits into a
// sprint's velocity.
package capacity

import (
	"fmt"

	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/models"
)

// Result is the outcome of a capacity check.
type Result struct {
	Allowed       bool `json:"allowed"`
	CurrentLoad   int  `json:"current_load"`
	ProjectedLoad int  `json:"projected_load"`
	// Remaining is velocity minus the projected load; negative when over.
	Remaining int `json:"remaining"`
	Velocity  int `json:"velocity"`
}

// Load sums the points of stories already in a sprint.
func Load(stories []models.UserStory) int {
	total := 0
	for _, s := range stories {
		total += s.Points()
	}
	return total
}

// CanAdd evaluates adding candidates to sprint, which already holds inSprint.
// A candidate that is unestimated, finished, already placed in a sprint or
// listed twice is an input error rather than being skipped; the whole
// candidate set is judged as one unit.
func CanAdd(candidates []models.UserStory, sprint models.Sprint, inSprint []models.UserStory) (Result, error) {
	if len(candidates) == 0 {
		return Result{}, fmt.Errorf("%w: no stories selected", apierrors.ErrInvalidInput)
	}

	seen := make(map[uint64]struct{}, len(candidates))
	added := 0
	for _, s := range candidates {
		if _, dup := seen[s.ID]; dup {
			return Result{}, fmt.Errorf("%w: story %q selected twice", apierrors.ErrInvalidInput, s.Name)
		}
		seen[s.ID] = struct{}{}

		if s.StoryPoints == nil || *s.StoryPoints <= 0 {
			return Result{}, fmt.Errorf("%w: story %q must be estimated before it can be added to a sprint", apierrors.ErrInvalidInput, s.Name)
		}
		if s.Status == models.StoryStatusAccepted {
			return Result{}, fmt.Errorf("%w: story %q is already finished", apierrors.ErrInvalidInput, s.Name)
		}
		if s.SprintID != nil {
			return Result{}, fmt.Errorf("%w: story %q is already in sprint %d", apierrors.ErrInvalidInput, s.Name, *s.SprintID)
		}
		added += *s.StoryPoints
	}

	current := Load(inSprint)
	projected := current + added
	return Result{
		Allowed:       projected <= sprint.Velocity,
		CurrentLoad:   current,
		ProjectedLoad: projected,
		Remaining:     sprint.Velocity - projected,
		Velocity:      sprint.Velocity,
	}, nil
}

// Enforce is CanAdd that turns a disallowed result into ErrCapacityExceeded.
func Enforce(candidates []models.UserStory, sprint models.Sprint, inSprint []models.UserStory) (Result, error) {
	res, err := CanAdd(candidates, sprint, inSprint)
	if err != nil {
		return res, err
	}
	if !res.Allowed {
		return res, fmt.Errorf("%w: %d of %d points", apierrors.ErrCapacityExceeded, res.ProjectedLoad, res.Velocity)
	}
	return res, nil
}
