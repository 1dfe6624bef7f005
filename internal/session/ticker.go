package session

import (
	"context"
	"fmt"
	"time"

	apierrors "github.com/yukikurage/scrum-board/internal/errors"
)

// Watch calls fn with the elapsed time of the session every interval until
// ctx is cancelled or the session disappears. It returns nil on
// cancellation and ErrNoActiveSession when the session is gone. interval
// must be positive.
func (m *Manager) Watch(ctx context.Context, taskID, userID uint64, interval time.Duration, fn func(time.Duration)) error {
	if interval <= 0 {
		return fmt.Errorf("%w: watch interval must be positive, got %s", apierrors.ErrInvalidInput, interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s, err := m.Active(ctx, taskID, userID)
		if err != nil {
			return err
		}
		if s == nil {
			return fmt.Errorf("%w: task %d", apierrors.ErrNoActiveSession, taskID)
		}
		fn(m.Elapsed(s))

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
