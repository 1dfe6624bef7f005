package lifecycle

import (
	"fmt"

	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/models"
)

// StoryRequest describes a requested story status change.
type StoryRequest struct {
	Target models.StoryStatus
	Actor  Actor
	// OpenTasks is the number of the story's tasks that are not COMPLETED.
	OpenTasks int
}

// RequestStoryTransition validates a story status change and returns the
// updated copy. The chain is NOT_STARTED → IN_PROGRESS → DONE →
// {ACCEPTED | REJECTED}; nothing leaves a terminal status.
func RequestStoryTransition(story models.UserStory, req StoryRequest) (models.UserStory, error) {
	from, to := story.Status, req.Target
	if !allowedStoryEdge(from, to) {
		return models.UserStory{}, fmt.Errorf("%w: story %d cannot move from %s to %s", apierrors.ErrInvalidTransition, story.ID, from, to)
	}

	switch to {
	case models.StoryStatusAccepted, models.StoryStatusRejected:
		if req.Actor.Role != models.RoleProductOwner {
			return models.UserStory{}, fmt.Errorf("%w: only the product owner can set %s", apierrors.ErrForbidden, to)
		}
	case models.StoryStatusInProgress, models.StoryStatusDone:
		if req.Actor.Role == models.RoleProductOwner {
			return models.UserStory{}, fmt.Errorf("%w: the product owner cannot set %s", apierrors.ErrForbidden, to)
		}
		if to == models.StoryStatusDone && req.OpenTasks > 0 {
			return models.UserStory{}, fmt.Errorf("%w: story %d still has %d unfinished tasks", apierrors.ErrInvalidTransition, story.ID, req.OpenTasks)
		}
	}

	story.Status = to
	return story, nil
}

func allowedStoryEdge(from, to models.StoryStatus) bool {
	switch from {
	case models.StoryStatusNotStarted:
		return to == models.StoryStatusInProgress
	case models.StoryStatusInProgress:
		return to == models.StoryStatusDone
	case models.StoryStatusDone:
		return to == models.StoryStatusAccepted || to == models.StoryStatusRejected
	case models.StoryStatusAccepted, models.StoryStatusRejected:
		return false
	default:
		return false
	}
}
