package tracker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yukikurage/scrum-board/internal/cache"
	"github.com/yukikurage/scrum-board/internal/client"
	"github.com/yukikurage/scrum-board/internal/database"
	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/models"
	"github.com/yukikurage/scrum-board/internal/server"
	"github.com/yukikurage/scrum-board/internal/session"
)

// swappableAPI lets a test change which login the tracker's calls carry.
type swappableAPI struct {
	*client.Client
}

func TestTracker_StopAfterExpiredLoginAgainstServer(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(database.Models()...))
	database.SetDB(db)

	var now atomic.Int64
	now.Store(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC).UnixNano())
	opts := server.Options{Clock: func() time.Time { return time.Unix(0, now.Load()).UTC() }}
	store := cookie.NewStore([]byte("test-secret"))
	store.Options(sessions.Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	srv := httptest.NewServer(server.NewRouter(server.NewServices(db, opts), store, opts))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	loggedIn, err := client.New(srv.URL)
	require.NoError(t, err)
	_, err = loggedIn.Signup(ctx, "alice", "supersecret")
	require.NoError(t, err)
	user, err := loggedIn.Login(ctx, "alice", "supersecret")
	require.NoError(t, err)

	project := &models.Project{Name: "Board"}
	require.NoError(t, db.Create(project).Error)
	require.NoError(t, db.Create(&models.ProjectMember{
		ProjectID: project.ID, UserID: user.ID, Role: models.RoleDeveloper, JoinedAt: time.Now(),
	}).Error)
	sprint := &models.Sprint{
		ProjectID: project.ID,
		StartDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC),
		Velocity:  10,
	}
	require.NoError(t, db.Create(sprint).Error)
	story := &models.UserStory{
		ProjectID: project.ID, Name: "Login", Priority: models.PriorityMustHave,
		BusinessValue: 8, Status: models.StoryStatusNotStarted, StoryPoints: points(3), SprintID: &sprint.ID,
	}
	require.NoError(t, db.Create(story).Error)
	task := &models.Task{
		StoryID: story.ID, Title: "Form", EstimatedHours: 4,
		Status: models.TaskStatusAssigned, AssignedTo: &user.ID,
	}
	require.NoError(t, db.Create(task).Error)

	api := &swappableAPI{Client: loggedIn}
	manager := session.NewManager(session.NewMemoryStore())
	tr := New(api, manager, cache.New(), nil, user.ID)

	_, err = tr.StartWork(ctx, task.ID)
	require.NoError(t, err)

	expired, err := client.New(srv.URL)
	require.NoError(t, err)
	api.Client = expired
	_, err = tr.StopWork(ctx, task.ID)
	assert.ErrorIs(t, err, apierrors.ErrUnauthorized)

	local, err := manager.Active(ctx, task.ID, user.ID)
	require.NoError(t, err)
	require.NotNil(t, local, "an expired login does not end the work session")

	api.Client = loggedIn
	now.Store(time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC).UnixNano())
	hours, err := tr.StopWork(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.5, hours)

	done, err := tr.Complete(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, done.Status)
}

func TestTracker_StopClosesServerSessionAfterLocalStoreLoss(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(database.Models()...))
	database.SetDB(db)

	var now atomic.Int64
	now.Store(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC).UnixNano())
	opts := server.Options{Clock: func() time.Time { return time.Unix(0, now.Load()).UTC() }}
	store := cookie.NewStore([]byte("test-secret"))
	store.Options(sessions.Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	srv := httptest.NewServer(server.NewRouter(server.NewServices(db, opts), store, opts))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	c, err := client.New(srv.URL)
	require.NoError(t, err)
	_, err = c.Signup(ctx, "bob", "supersecret")
	require.NoError(t, err)
	user, err := c.Login(ctx, "bob", "supersecret")
	require.NoError(t, err)

	project := &models.Project{Name: "Board"}
	require.NoError(t, db.Create(project).Error)
	require.NoError(t, db.Create(&models.ProjectMember{
		ProjectID: project.ID, UserID: user.ID, Role: models.RoleDeveloper, JoinedAt: time.Now(),
	}).Error)
	story := &models.UserStory{
		ProjectID: project.ID, Name: "Export", Priority: models.PriorityShouldHave,
		BusinessValue: 3, Status: models.StoryStatusNotStarted,
	}
	require.NoError(t, db.Create(story).Error)
	task := &models.Task{
		StoryID: story.ID, Title: "CSV", EstimatedHours: 2,
		Status: models.TaskStatusAssigned, AssignedTo: &user.ID,
	}
	require.NoError(t, db.Create(task).Error)

	first := New(c, session.NewManager(session.NewMemoryStore()), cache.New(), nil, user.ID)
	_, err = first.StartWork(ctx, task.ID)
	require.NoError(t, err)

	// A second tracker with an empty store stands in for a wiped local store.
	fresh := New(c, session.NewManager(session.NewMemoryStore()), cache.New(), nil, user.ID)
	now.Store(time.Date(2026, 3, 2, 10, 45, 0, 0, time.UTC).UnixNano())
	hours, err := fresh.StopWork(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.75, hours)

	_, err = fresh.StartWork(ctx, task.ID)
	require.NoError(t, err, "the server session is closed, so work can start again")
}
