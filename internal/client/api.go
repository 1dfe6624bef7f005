package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/yukikurage/scrum-board/internal/backlog"
	"github.com/yukikurage/scrum-board/internal/capacity"
	"github.com/yukikurage/scrum-board/internal/dto"
	"github.com/yukikurage/scrum-board/internal/models"
)

// StopTaskRequest is the optional manual log sent when work stops.
type StopTaskRequest struct {
	HoursSpent  *float64 `json:"hours_spent,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Signup registers a user.
func (c *Client) Signup(ctx context.Context, username, password string) (*dto.UserDTO, error) {
	var user dto.UserDTO
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login opens a session; its cookie is kept for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (*dto.UserDTO, error) {
	var user dto.UserDTO
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Me returns the logged in user with their project roles.
func (c *Client) Me(ctx context.Context) (*dto.MeResponse, error) {
	var me dto.MeResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// GetTask fetches the current task.
func (c *Client) GetTask(ctx context.Context, taskID uint64) (*models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/tasks/%d", taskID), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// StartTask moves an assigned task to IN_PROGRESS.
func (c *Client) StartTask(ctx context.Context, taskID uint64) (*models.Task, error) {
	return c.taskAction(ctx, taskID, "start")
}

// CompleteTask marks a task COMPLETED.
func (c *Client) CompleteTask(ctx context.Context, taskID uint64) (*models.Task, error) {
	return c.taskAction(ctx, taskID, "complete")
}

// RejectTask returns a task to UNASSIGNED.
func (c *Client) RejectTask(ctx context.Context, taskID uint64) (*models.Task, error) {
	return c.taskAction(ctx, taskID, "reject")
}

// AssignTask assigns a task to userID.
func (c *Client) AssignTask(ctx context.Context, taskID, userID uint64) (*models.Task, error) {
	var task models.Task
	err := c.mutate("task", taskID, func() error {
		body := map[string]uint64{"user_id": userID}
		return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/tasks/%d/assign", taskID), body, &task)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask deletes a task nobody has started.
func (c *Client) DeleteTask(ctx context.Context, taskID uint64) error {
	return c.mutate("task", taskID, func() error {
		return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", taskID), nil, nil)
	})
}

func (c *Client) taskAction(ctx context.Context, taskID uint64, action string) (*models.Task, error) {
	var task models.Task
	err := c.mutate("task", taskID, func() error {
		return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/tasks/%d/%s", taskID, action), struct{}{}, &task)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// StopTask ends a working interval, logging req.HoursSpent when set.
func (c *Client) StopTask(ctx context.Context, taskID uint64, req StopTaskRequest) (*dto.StopTaskResponse, error) {
	var res dto.StopTaskResponse
	err := c.mutate("task", taskID, func() error {
		return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/tasks/%d/stop", taskID), req, &res)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// StartSession opens the server-side work session.
func (c *Client) StartSession(ctx context.Context, taskID uint64) (*models.WorkSession, error) {
	var res dto.StartSessionResponse
	err := c.mutate("task", taskID, func() error {
		return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/tasks/%d/start-session", taskID), struct{}{}, &res)
	})
	if err != nil {
		return nil, err
	}
	return &res.Session, nil
}

// StopSession closes the server-side work session.
func (c *Client) StopSession(ctx context.Context, taskID uint64) (*dto.StopSessionResponse, error) {
	var res dto.StopSessionResponse
	err := c.mutate("task", taskID, func() error {
		return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/tasks/%d/stop-session", taskID), struct{}{}, &res)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListLogs fetches a task's time log.
func (c *Client) ListLogs(ctx context.Context, taskID uint64) ([]models.TimeLogEntry, error) {
	var res dto.TimeLogResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/tasks/%d/logs", taskID), nil, &res); err != nil {
		return nil, err
	}
	return res.Logs, nil
}

// GetStory fetches a story.
func (c *Client) GetStory(ctx context.Context, storyID uint64) (*models.UserStory, error) {
	var story models.UserStory
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/user-stories/%d", storyID), nil, &story); err != nil {
		return nil, err
	}
	return &story, nil
}

// SetStoryStatus requests a story status change.
func (c *Client) SetStoryStatus(ctx context.Context, storyID uint64, status models.StoryStatus) (*models.UserStory, error) {
	var story models.UserStory
	err := c.mutate("story", storyID, func() error {
		body := map[string]models.StoryStatus{"status": status}
		return c.do(ctx, http.MethodPut, fmt.Sprintf("/api/user-stories/%d", storyID), body, &story)
	})
	if err != nil {
		return nil, err
	}
	return &story, nil
}

// RemoveFromSprint returns a story to the product backlog.
func (c *Client) RemoveFromSprint(ctx context.Context, storyID uint64) (*models.UserStory, error) {
	var story models.UserStory
	err := c.mutate("story", storyID, func() error {
		return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/user-stories/%d/remove-from-sprint", storyID), struct{}{}, &story)
	})
	if err != nil {
		return nil, err
	}
	return &story, nil
}

// DeleteStory soft deletes a story.
func (c *Client) DeleteStory(ctx context.Context, storyID uint64) error {
	return c.mutate("story", storyID, func() error {
		return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/user-stories/%d", storyID), nil, nil)
	})
}

// Board fetches the partitioned story view of a project.
func (c *Client) Board(ctx context.Context, projectID uint64) (*backlog.View, error) {
	var view backlog.View
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/projects/%d/board", projectID), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// GetSprint fetches a sprint with its stories.
func (c *Client) GetSprint(ctx context.Context, projectID, sprintID uint64) (*models.Sprint, error) {
	var sprint models.Sprint
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/projects/%d/sprints/%d", projectID, sprintID), nil, &sprint); err != nil {
		return nil, err
	}
	return &sprint, nil
}

// AddStories moves stories into a sprint, all or nothing.
func (c *Client) AddStories(ctx context.Context, projectID, sprintID uint64, storyIDs []uint64) (capacity.Result, error) {
	var res dto.AddStoriesResponse
	err := c.mutate("sprint", sprintID, func() error {
		body := map[string][]uint64{"story_ids": storyIDs}
		return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/projects/%d/sprints/%d/stories", projectID, sprintID), body, &res)
	})
	return res.Capacity, err
}

// ReturnToBacklog moves the unfinished stories of an ended sprint back to
// the backlog.
func (c *Client) ReturnToBacklog(ctx context.Context, projectID, sprintID uint64) ([]models.UserStory, error) {
	var res dto.ReturnToBacklogResponse
	err := c.mutate("sprint", sprintID, func() error {
		return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/projects/%d/sprints/%d/return-to-backlog", projectID, sprintID), struct{}{}, &res)
	})
	if err != nil {
		return nil, err
	}
	return res.Returned, nil
}
