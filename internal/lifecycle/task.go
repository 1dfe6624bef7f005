// Package lifecycle holds the status machines for tasks and user stories.
// Both the API server and the client run every transition through here
// before touching storage or the network.
package lifecycle

import (
	"fmt"

	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/models"
)

// Actor is the user requesting a change, with their role in the task's project.
type Actor struct {
	UserID uint64
	Role   models.Role
}

// TaskRequest describes a requested task status change.
type TaskRequest struct {
	Target models.TaskStatus
	Actor  Actor
	// Assignee is required when Target is ASSIGNED.
	Assignee uint64
}

// TaskResult is the task after a permitted transition.
type TaskResult struct {
	Task models.Task
	// Rejected is set when the transition returned an assigned or in-progress
	// task to UNASSIGNED. Any open work session for the task must then be
	// discarded without logging its time.
	Rejected bool
}

// RequestTransition validates req against task and returns the updated copy.
// The edge is checked before the actor, so an impossible edge always yields
// ErrInvalidTransition regardless of who asked.
func RequestTransition(task models.Task, req TaskRequest) (TaskResult, error) {
	from, to := task.Status, req.Target
	if !allowedTaskEdge(from, to) {
		return TaskResult{}, fmt.Errorf("%w: task %d cannot move from %s to %s", apierrors.ErrInvalidTransition, task.ID, from, to)
	}

	actor := req.Actor
	isAssignee := task.IsAssignedTo(actor.UserID)

	switch to {
	case models.TaskStatusAssigned:
		if req.Assignee == 0 {
			return TaskResult{}, fmt.Errorf("%w: assignee is required", apierrors.ErrInvalidInput)
		}
		// Self-assignment is open to any member; assigning someone else is a
		// scrum master's call. Reassigning requires the current assignee or
		// a scrum master.
		if from == models.TaskStatusAssigned && !isAssignee && actor.Role != models.RoleScrumMaster {
			return TaskResult{}, fmt.Errorf("%w: only the assignee or a scrum master can reassign task %d", apierrors.ErrForbidden, task.ID)
		}
		if req.Assignee != actor.UserID && actor.Role != models.RoleScrumMaster {
			return TaskResult{}, fmt.Errorf("%w: only a scrum master can assign task %d to another user", apierrors.ErrForbidden, task.ID)
		}
		assignee := req.Assignee
		task.AssignedTo = &assignee

	case models.TaskStatusUnassigned:
		switch from {
		case models.TaskStatusAssigned:
			if !isAssignee && actor.Role != models.RoleScrumMaster {
				return TaskResult{}, fmt.Errorf("%w: only the assignee or a scrum master can unassign task %d", apierrors.ErrForbidden, task.ID)
			}
		case models.TaskStatusInProgress:
			if !isAssignee {
				return TaskResult{}, fmt.Errorf("%w: only the assignee can reject task %d", apierrors.ErrForbidden, task.ID)
			}
		}
		task.AssignedTo = nil

	case models.TaskStatusInProgress:
		if !isAssignee {
			return TaskResult{}, fmt.Errorf("%w: only the assignee can accept task %d", apierrors.ErrForbidden, task.ID)
		}

	case models.TaskStatusCompleted:
		if !isAssignee {
			return TaskResult{}, fmt.Errorf("%w: only the assignee can complete task %d", apierrors.ErrForbidden, task.ID)
		}
		if !task.LoggingUnlocked {
			return TaskResult{}, fmt.Errorf("%w: task %d is locked for logging", apierrors.ErrInvalidTransition, task.ID)
		}
	}

	task.Status = to
	return TaskResult{Task: task, Rejected: to == models.TaskStatusUnassigned}, nil
}

// allowedTaskEdge is the task state machine. ASSIGNED→ASSIGNED is a
// reassignment.
func allowedTaskEdge(from, to models.TaskStatus) bool {
	switch from {
	case models.TaskStatusUnassigned:
		return to == models.TaskStatusAssigned
	case models.TaskStatusAssigned:
		switch to {
		case models.TaskStatusAssigned, models.TaskStatusUnassigned, models.TaskStatusInProgress:
			return true
		}
		return false
	case models.TaskStatusInProgress:
		switch to {
		case models.TaskStatusUnassigned, models.TaskStatusCompleted:
			return true
		}
		return false
	case models.TaskStatusCompleted:
		return false
	default:
		return false
	}
}

// CanDelete reports whether a task may be hard-deleted.
func CanDelete(task models.Task) error {
	switch task.Status {
	case models.TaskStatusUnassigned, models.TaskStatusAssigned:
		return nil
	default:
		return fmt.Errorf("%w: task %d is %s and cannot be deleted", apierrors.ErrInvalidOperation, task.ID, task.Status)
	}
}

// CheckInvariant verifies that assigned_to is set exactly when the status
// requires an owner.
func CheckInvariant(task models.Task) error {
	needsOwner := task.Status == models.TaskStatusAssigned ||
		task.Status == models.TaskStatusInProgress ||
		task.Status == models.TaskStatusCompleted
	if needsOwner != (task.AssignedTo != nil) {
		return fmt.Errorf("task %d: status %s with assigned_to=%v", task.ID, task.Status, task.AssignedTo)
	}
	return nil
}

// LoggingUnlocked computes whether time may be logged against task. sprint is
// nil when the story is not in a sprint.
func LoggingUnlocked(task models.Task, story models.UserStory, sprint *models.Sprint, sprintStatus models.SprintStatus) bool {
	if task.Status != models.TaskStatusInProgress || story.Status.Terminal() {
		return false
	}
	if sprint == nil {
		return true
	}
	return sprintStatus == models.SprintStatusActive
}
