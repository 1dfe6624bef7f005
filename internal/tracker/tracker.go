// Package tracker runs the client side of time tracking. It checks every
// request locally before calling the server, keeps the local work session in
// step with the server's verdict, and refreshes only the task it touched.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/yukikurage/scrum-board/internal/cache"
	"github.com/yukikurage/scrum-board/internal/client"
	"github.com/yukikurage/scrum-board/internal/dto"
	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/lifecycle"
	"github.com/yukikurage/scrum-board/internal/models"
	"github.com/yukikurage/scrum-board/internal/session"
)

// API is the part of the server API the tracker uses.
type API interface {
	GetTask(ctx context.Context, taskID uint64) (*models.Task, error)
	StartTask(ctx context.Context, taskID uint64) (*models.Task, error)
	StopTask(ctx context.Context, taskID uint64, req client.StopTaskRequest) (*dto.StopTaskResponse, error)
	StartSession(ctx context.Context, taskID uint64) (*models.WorkSession, error)
	StopSession(ctx context.Context, taskID uint64) (*dto.StopSessionResponse, error)
	CompleteTask(ctx context.Context, taskID uint64) (*models.Task, error)
	RejectTask(ctx context.Context, taskID uint64) (*models.Task, error)
	AssignTask(ctx context.Context, taskID, userID uint64) (*models.Task, error)
	DeleteTask(ctx context.Context, taskID uint64) error
	ListLogs(ctx context.Context, taskID uint64) ([]models.TimeLogEntry, error)
}

// Tracker acts for one logged in user.
type Tracker struct {
	api      API
	sessions *session.Manager
	cache    *cache.Cache
	logger   *slog.Logger
	userID   uint64
}

// New creates a tracker for userID.
func New(api API, sessions *session.Manager, c *cache.Cache, logger *slog.Logger, userID uint64) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		api:      api,
		sessions: sessions,
		cache:    c,
		logger:   logger,
		userID:   userID,
	}
}

// LoadTask fetches the task, drops local sessions the server no longer
// backs, and caches the result.
func (t *Tracker) LoadTask(ctx context.Context, taskID uint64) (*models.Task, error) {
	task, err := t.api.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := t.reconcile(ctx, *task); err != nil {
		return nil, err
	}
	t.cache.PutTask(*task)
	return task, nil
}

// LogTime records hours of manual work on a task. The task is started first
// when it is still only assigned. After the entry is stored the task alone is
// re-fetched.
func (t *Tracker) LogTime(ctx context.Context, taskID uint64, hours float64, description string) (*models.TimeLogEntry, error) {
	if hours <= 0 || math.IsNaN(hours) || math.IsInf(hours, 0) {
		return nil, fmt.Errorf("%w: hours must be greater than 0", apierrors.ErrInvalidInput)
	}

	task, err := t.task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.IsAssignedTo(t.userID) {
		return nil, fmt.Errorf("%w: only the assignee can log time on task %d", apierrors.ErrForbidden, taskID)
	}

	if task.Status == models.TaskStatusAssigned {
		if _, err := t.api.StartTask(ctx, taskID); err != nil {
			return nil, err
		}
	} else if task.Status != models.TaskStatusInProgress {
		return nil, fmt.Errorf("%w: task %d is %s", apierrors.ErrInvalidTransition, taskID, task.Status)
	}

	res, err := t.api.StopTask(ctx, taskID, client.StopTaskRequest{
		HoursSpent:  &hours,
		Description: description,
	})
	if err != nil {
		return nil, err
	}
	if res.Entry == nil {
		return nil, fmt.Errorf("server did not record a time entry for task %d", taskID)
	}

	if _, err := t.refresh(ctx, taskID); err != nil {
		return res.Entry, err
	}
	t.logger.Info("time logged", "task_id", taskID, "hours", hours)
	return res.Entry, nil
}

// StartWork accepts the task if needed and opens a work session both locally
// and on the server. When the server refuses the session the local one is
// discarded so exactly one client keeps timing.
func (t *Tracker) StartWork(ctx context.Context, taskID uint64) (*session.Session, error) {
	task, err := t.task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.IsAssignedTo(t.userID) {
		return nil, fmt.Errorf("%w: only the assignee can work on task %d", apierrors.ErrForbidden, taskID)
	}

	existing, err := t.sessions.Active(ctx, taskID, t.userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: task %d", apierrors.ErrSessionConflict, taskID)
	}

	if task.Status == models.TaskStatusAssigned {
		if _, err := t.api.StartTask(ctx, taskID); err != nil {
			return nil, err
		}
	}

	s, err := t.sessions.Start(ctx, taskID, t.userID)
	if err != nil {
		return nil, err
	}
	if _, err := t.api.StartSession(ctx, taskID); err != nil {
		if derr := t.sessions.Discard(ctx, taskID, t.userID); derr != nil {
			t.logger.Warn("failed to discard local session", "task_id", taskID, "error", derr)
		}
		return nil, err
	}

	if _, err := t.refresh(ctx, taskID); err != nil {
		return s, err
	}
	t.logger.Info("work started", "task_id", taskID)
	return s, nil
}

// StopWork closes the work session and returns the hours the server logged.
// The server is asked even when no local session exists, so a session left
// open by a lost local store can still be closed. The local session is
// cleared when the server reports there is nothing it will log; any other
// failure, including an expired login, keeps it so the stop can be retried.
func (t *Tracker) StopWork(ctx context.Context, taskID uint64) (float64, error) {
	s, err := t.sessions.Active(ctx, taskID, t.userID)
	if err != nil {
		return 0, err
	}

	res, err := t.api.StopSession(ctx, taskID)
	if err != nil {
		if s != nil && staleSession(err) {
			if derr := t.sessions.Discard(ctx, taskID, t.userID); derr != nil {
				t.logger.Warn("failed to discard stale session", "task_id", taskID, "error", derr)
			}
			t.logger.Info("discarded stale session", "task_id", taskID, "reason", err.Error())
		}
		return 0, err
	}

	if s != nil {
		if err := t.sessions.Discard(ctx, taskID, t.userID); err != nil {
			return res.HoursLogged, err
		}
		t.logger.Info("work stopped", "task_id", taskID, "hours_logged", res.HoursLogged,
			"local_elapsed", t.sessions.Elapsed(s).String())
	} else {
		t.logger.Info("closed server session with no local session", "task_id", taskID, "hours_logged", res.HoursLogged)
	}
	t.cache.PutTask(res.Task)
	return res.HoursLogged, nil
}

// staleSession reports whether a stop-session rejection means the server
// holds no session this user can still log: none is open, the task is
// locked, or it was handed to someone else.
func staleSession(err error) bool {
	return errors.Is(err, apierrors.ErrNoActiveSession) ||
		errors.Is(err, apierrors.ErrInvalidOperation) ||
		errors.Is(err, apierrors.ErrForbidden)
}

// Accept moves an assigned task to IN_PROGRESS without opening a session.
func (t *Tracker) Accept(ctx context.Context, taskID uint64) (*models.Task, error) {
	task, err := t.task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.IsAssignedTo(t.userID) {
		return nil, fmt.Errorf("%w: only the assignee can accept task %d", apierrors.ErrForbidden, taskID)
	}

	started, err := t.api.StartTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	t.cache.PutTask(*started)
	return started, nil
}

// Complete marks the task done. A running local session must be stopped
// first.
func (t *Tracker) Complete(ctx context.Context, taskID uint64) (*models.Task, error) {
	task, err := t.task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.IsAssignedTo(t.userID) {
		return nil, fmt.Errorf("%w: only the assignee can complete task %d", apierrors.ErrForbidden, taskID)
	}
	if task.Status != models.TaskStatusInProgress {
		return nil, fmt.Errorf("%w: task %d is %s", apierrors.ErrInvalidTransition, taskID, task.Status)
	}
	if s, err := t.sessions.Active(ctx, taskID, t.userID); err != nil {
		return nil, err
	} else if s != nil {
		return nil, fmt.Errorf("%w: stop the running session on task %d first", apierrors.ErrSessionConflict, taskID)
	}

	done, err := t.api.CompleteTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	t.cache.PutTask(*done)
	return done, nil
}

// Reject hands the task back. Any local session is discarded unlogged.
func (t *Tracker) Reject(ctx context.Context, taskID uint64) (*models.Task, error) {
	rejected, err := t.api.RejectTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := t.sessions.Discard(ctx, taskID, t.userID); err != nil {
		return rejected, err
	}
	t.cache.PutTask(*rejected)
	return rejected, nil
}

// Assign hands the task to assigneeID. Only the scrum master may assign
// someone other than themselves; the server decides.
func (t *Tracker) Assign(ctx context.Context, taskID, assigneeID uint64) (*models.Task, error) {
	assigned, err := t.api.AssignTask(ctx, taskID, assigneeID)
	if err != nil {
		return nil, err
	}
	t.cache.PutTask(*assigned)
	return assigned, nil
}

// Delete removes a task that nobody has started.
func (t *Tracker) Delete(ctx context.Context, taskID uint64) error {
	task, err := t.task(ctx, taskID)
	if err != nil {
		return err
	}
	if err := lifecycle.CanDelete(*task); err != nil {
		return err
	}
	if err := t.api.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	t.cache.RemoveTask(taskID)
	return nil
}

// Logs returns the task's time log.
func (t *Tracker) Logs(ctx context.Context, taskID uint64) ([]models.TimeLogEntry, error) {
	return t.api.ListLogs(ctx, taskID)
}

// Session returns the user's local session on a task, if any.
func (t *Tracker) Session(ctx context.Context, taskID uint64) (*session.Session, error) {
	return t.sessions.Active(ctx, taskID, t.userID)
}

// task returns the cached task or fetches it.
func (t *Tracker) task(ctx context.Context, taskID uint64) (*models.Task, error) {
	if task, ok := t.cache.Task(taskID); ok {
		return &task, nil
	}
	return t.LoadTask(ctx, taskID)
}

// refresh re-fetches one task. Stories and sprints are left alone.
func (t *Tracker) refresh(ctx context.Context, taskID uint64) (*models.Task, error) {
	task, err := t.api.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := t.reconcile(ctx, *task); err != nil {
		return nil, err
	}
	t.cache.PutTask(*task)
	return task, nil
}

func (t *Tracker) reconcile(ctx context.Context, task models.Task) error {
	dropped, err := t.sessions.Reconcile(ctx, task)
	if err != nil {
		return err
	}
	for _, owner := range dropped {
		t.logger.Info("discarded session the server no longer backs", "task_id", task.ID, "user_id", owner)
	}
	return nil
}
