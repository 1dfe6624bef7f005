package sprintrules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/models"
)

// Monday 2026-03-02.
var monday = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func sprint(id uint64, start time.Time, days, velocity int) models.Sprint {
	return models.Sprint{ID: id, ProjectID: 1, StartDate: start, EndDate: start.AddDate(0, 0, days), Velocity: velocity}
}

func TestStatusAt(t *testing.T) {
	s := sprint(1, monday, 13, 20)

	assert.Equal(t, models.SprintStatusFuture, StatusAt(s, monday.AddDate(0, 0, -1)))
	assert.Equal(t, models.SprintStatusActive, StatusAt(s, monday))
	assert.Equal(t, models.SprintStatusActive, StatusAt(s, Day(s.EndDate).Add(23*time.Hour)), "end date is inclusive")
	assert.Equal(t, models.SprintStatusPast, StatusAt(s, s.EndDate.AddDate(0, 0, 1)))
}

func TestOverlaps(t *testing.T) {
	a := sprint(1, monday, 13, 20)
	touching := sprint(2, a.EndDate, 7, 20)
	after := sprint(3, a.EndDate.AddDate(0, 0, 1), 7, 20)

	assert.True(t, Overlaps(a, touching), "sharing the last day is an overlap")
	assert.False(t, Overlaps(a, after))
}

func TestValidateNew(t *testing.T) {
	now := monday

	assert.NoError(t, ValidateNew(sprint(1, monday, 13, 20), nil, now), "starting today is allowed")
	assert.ErrorIs(t, ValidateNew(sprint(1, monday.AddDate(0, 0, -7), 13, 20), nil, now), apierrors.ErrInvalidInput)
	assert.ErrorIs(t, ValidateNew(sprint(1, monday.AddDate(0, 0, 5), 10, 20), nil, now), apierrors.ErrInvalidInput, "saturday start")
	assert.ErrorIs(t, ValidateNew(sprint(1, monday, 0, 20), nil, now), apierrors.ErrInvalidInput)
	assert.ErrorIs(t, ValidateNew(sprint(1, monday, 29, 20), nil, now), apierrors.ErrInvalidInput)
	assert.ErrorIs(t, ValidateNew(sprint(1, monday, 13, 0), nil, now), apierrors.ErrInvalidInput)
	assert.ErrorIs(t, ValidateNew(sprint(1, monday, 13, 101), nil, now), apierrors.ErrInvalidInput)

	existing := []models.Sprint{sprint(7, monday.AddDate(0, 0, 7), 13, 20)}
	assert.ErrorIs(t, ValidateNew(sprint(0, monday, 13, 20), existing, now), apierrors.ErrConflict)
}

func TestValidateUpdate(t *testing.T) {
	active := sprint(1, monday, 13, 20)
	now := monday.AddDate(0, 0, 2)

	raised := active
	raised.Velocity = 30
	assert.NoError(t, ValidateUpdate(active, raised, nil, now))

	moved := active
	moved.EndDate = active.EndDate.AddDate(0, 0, 1)
	assert.ErrorIs(t, ValidateUpdate(active, moved, nil, now), apierrors.ErrInvalidOperation)

	past := now.AddDate(0, 0, 30)
	assert.ErrorIs(t, ValidateUpdate(active, raised, nil, past), apierrors.ErrInvalidOperation)

	future := sprint(2, monday.AddDate(0, 0, 14), 11, 20)
	shifted := future
	shifted.StartDate = future.StartDate.AddDate(0, 0, 1)
	assert.NoError(t, ValidateUpdate(future, shifted, []models.Sprint{active, future}, now), "a sprint does not overlap itself")
}

func TestDay(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	got := Day(time.Date(2026, 3, 3, 5, 0, 0, 0, tokyo))
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), got)
}
