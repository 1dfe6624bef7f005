// Package session tracks client-local work sessions: the moment a user
// started working on a task, persisted so it survives restarts, until the
// work is stopped and logged.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yukikurage/scrum-board/internal/constants"
	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/models"
)

// Session is an in-progress, not yet logged work interval.
type Session struct {
	TaskID    uint64
	UserID    uint64
	StartTime time.Time
}

// payload is the stored value: {"startTime": "<ISO-8601>"}.
type payload struct {
	StartTime time.Time `json:"startTime"`
}

// Key returns the storage key for a task and user.
func Key(taskID, userID uint64) string {
	return fmt.Sprintf("%s%d_%d", constants.TaskSessionKeyPrefix, taskID, userID)
}

func taskPrefix(taskID uint64) string {
	return fmt.Sprintf("%s%d_", constants.TaskSessionKeyPrefix, taskID)
}

// Manager enforces one session per task and user on top of a Store.
type Manager struct {
	store Store
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager on store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{store: store, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Now is the manager's clock.
func (m *Manager) Now() time.Time {
	return m.now()
}

// Start opens a session. An existing session for the same key is left
// untouched and ErrSessionConflict is returned. Two processes racing on the
// same key can both succeed; Reconcile against the server settles it.
func (m *Manager) Start(ctx context.Context, taskID, userID uint64) (*Session, error) {
	existing, err := m.Active(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: task %d already has a session started at %s",
			apierrors.ErrSessionConflict, taskID, existing.StartTime.Format(time.RFC3339))
	}

	s := &Session{TaskID: taskID, UserID: userID, StartTime: m.now().UTC()}
	raw, err := json.Marshal(payload{StartTime: s.StartTime})
	if err != nil {
		return nil, err
	}
	if err := m.store.Set(ctx, Key(taskID, userID), raw); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	return s, nil
}

// Stop closes the session and returns the elapsed wall-clock hours for the
// caller to log.
func (m *Manager) Stop(ctx context.Context, taskID, userID uint64) (float64, error) {
	s, err := m.Active(ctx, taskID, userID)
	if err != nil {
		return 0, err
	}
	if s == nil {
		return 0, fmt.Errorf("%w: task %d", apierrors.ErrNoActiveSession, taskID)
	}
	if err := m.store.Delete(ctx, Key(taskID, userID)); err != nil {
		return 0, fmt.Errorf("failed to clear session: %w", err)
	}
	return m.Elapsed(s).Hours(), nil
}

// Elapsed is the time since s started, never negative.
func (m *Manager) Elapsed(s *Session) time.Duration {
	d := m.now().Sub(s.StartTime)
	if d < 0 {
		return 0
	}
	return d
}

// Active returns the open session, or nil if there is none. A corrupt entry
// is treated as absent and removed.
func (m *Manager) Active(ctx context.Context, taskID, userID uint64) (*Session, error) {
	raw, err := m.store.Get(ctx, Key(taskID, userID))
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil || p.StartTime.IsZero() {
		return nil, m.store.Delete(ctx, Key(taskID, userID))
	}
	return &Session{TaskID: taskID, UserID: userID, StartTime: p.StartTime}, nil
}

// Discard drops a session without producing elapsed time. It is used when a
// task is rejected and when the server reports the session as stale.
func (m *Manager) Discard(ctx context.Context, taskID, userID uint64) error {
	return m.store.Delete(ctx, Key(taskID, userID))
}

// Reconcile discards every local session for task whose owner is no longer
// the assignee of an IN_PROGRESS task. The server record always wins. It
// returns the owners whose sessions were dropped.
func (m *Manager) Reconcile(ctx context.Context, task models.Task) ([]uint64, error) {
	keys, err := m.store.Keys(ctx, taskPrefix(task.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var dropped []uint64
	for _, key := range keys {
		owner, err := strconv.ParseUint(strings.TrimPrefix(key, taskPrefix(task.ID)), 10, 64)
		if err != nil {
			continue
		}
		if task.Status == models.TaskStatusInProgress && task.IsAssignedTo(owner) {
			continue
		}
		if err := m.store.Delete(ctx, key); err != nil {
			return dropped, fmt.Errorf("failed to discard stale session: %w", err)
		}
		dropped = append(dropped, owner)
	}
	return dropped, nil
}
