// Package sprintrules validates sprint dates and velocity and derives a
// sprint's status from the clock.
package sprintrules

import (
	"fmt"
	"time"

	"github.com/yukikurage/scrum-board/internal/constants"
	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/models"
)

const day = 24 * time.Hour

// Day truncates t to midnight UTC. Sprint dates are whole days and the end
// date is inclusive.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StatusAt derives the sprint status at now.
func StatusAt(s models.Sprint, now time.Time) models.SprintStatus {
	today := Day(now)
	switch {
	case today.Before(Day(s.StartDate)):
		return models.SprintStatusFuture
	case today.After(Day(s.EndDate)):
		return models.SprintStatusPast
	default:
		return models.SprintStatusActive
	}
}

// Overlaps reports whether two sprints share at least one day.
func Overlaps(a, b models.Sprint) bool {
	return !Day(a.EndDate).Before(Day(b.StartDate)) && !Day(b.EndDate).Before(Day(a.StartDate))
}

// ValidateNew checks a sprint about to be created against the project's
// existing sprints.
func ValidateNew(s models.Sprint, existing []models.Sprint, now time.Time) error {
	if Day(s.StartDate).Before(Day(now)) {
		return fmt.Errorf("%w: start date must not be in the past", apierrors.ErrInvalidInput)
	}
	if err := validateShape(s); err != nil {
		return err
	}
	return checkOverlap(s, existing)
}

// ValidateUpdate checks an edit of current into updated. Future sprints may
// change anything, active sprints only their velocity and past sprints
// nothing.
func ValidateUpdate(current, updated models.Sprint, existing []models.Sprint, now time.Time) error {
	switch StatusAt(current, now) {
	case models.SprintStatusPast:
		return fmt.Errorf("%w: sprint %d has ended and can no longer be edited", apierrors.ErrInvalidOperation, current.ID)
	case models.SprintStatusActive:
		if !Day(current.StartDate).Equal(Day(updated.StartDate)) || !Day(current.EndDate).Equal(Day(updated.EndDate)) {
			return fmt.Errorf("%w: only the velocity of an active sprint can change", apierrors.ErrInvalidOperation)
		}
		return validateVelocity(updated.Velocity)
	default:
		return ValidateNew(updated, existing, now)
	}
}

func validateShape(s models.Sprint) error {
	start, end := Day(s.StartDate), Day(s.EndDate)
	if wd := start.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return fmt.Errorf("%w: sprint cannot start on a %s", apierrors.ErrInvalidInput, wd)
	}
	if !end.After(start) {
		return fmt.Errorf("%w: end date must be after start date", apierrors.ErrInvalidInput)
	}
	if end.Sub(start) > constants.MaxSprintDays*day {
		return fmt.Errorf("%w: sprint cannot be longer than %d days", apierrors.ErrInvalidInput, constants.MaxSprintDays)
	}
	return validateVelocity(s.Velocity)
}

func validateVelocity(v int) error {
	if v <= 0 || v > constants.MaxVelocity {
		return fmt.Errorf("%w: velocity must be between 1 and %d", apierrors.ErrInvalidInput, constants.MaxVelocity)
	}
	return nil
}

func checkOverlap(s models.Sprint, existing []models.Sprint) error {
	for _, other := range existing {
		if other.ID == s.ID || other.ProjectID != s.ProjectID {
			continue
		}
		if Overlaps(s, other) {
			return fmt.Errorf("%w: sprint overlaps sprint %d (%s to %s)", apierrors.ErrConflict, other.ID,
				other.StartDate.Format(time.DateOnly), other.EndDate.Format(time.DateOnly))
		}
	}
	return nil
}
