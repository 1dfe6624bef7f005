package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/scrum-board/internal/constants"
	"github.com/yukikurage/scrum-board/internal/database"
	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/models"
	"github.com/yukikurage/scrum-board/internal/repository"
	"github.com/yukikurage/scrum-board/internal/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// handlerSuite holds an in-memory database, the services on top of it and a
// movable clock. Monday 2026-03-02 10:00 UTC is "now" unless a test moves it.
type handlerSuite struct {
	suite.Suite
	db  *gorm.DB
	now time.Time

	projects *services.ProjectService
	sprints  *services.SprintService
	stories  *services.StoryService
	tasks    *services.TaskService
}

func (suite *handlerSuite) SetupTest() {
	var err error

	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	suite.Require().NoError(err)

	// Every connection to :memory: is a new database.
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	suite.Require().NoError(suite.db.AutoMigrate(database.Models()...))
	database.SetDB(suite.db)

	suite.now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return suite.now }

	userRepo := repository.NewUserRepository(suite.db)
	projectRepo := repository.NewProjectRepository(suite.db)
	sprintRepo := repository.NewSprintRepository(suite.db)
	storyRepo := repository.NewStoryRepository(suite.db)
	taskRepo := repository.NewTaskRepository(suite.db)

	suite.projects = services.NewProjectService(projectRepo, userRepo)
	suite.sprints = services.NewSprintService(sprintRepo, storyRepo, projectRepo).WithClock(clock)
	suite.stories = services.NewStoryService(storyRepo, sprintRepo, projectRepo, nil).WithClock(clock)
	suite.tasks = services.NewTaskService(taskRepo, storyRepo, sprintRepo, projectRepo).WithClock(clock)

	gin.SetMode(gin.TestMode)
}

func (suite *handlerSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

func (suite *handlerSuite) createUser(username string) *models.User {
	user := &models.User{Username: username, PasswordHash: "hashedpassword"}
	suite.Require().NoError(suite.db.Create(user).Error)
	return user
}

func (suite *handlerSuite) createProject(name string, members map[uint64]models.Role) *models.Project {
	project := &models.Project{Name: name}
	suite.Require().NoError(suite.db.Create(project).Error)
	for userID, role := range members {
		member := &models.ProjectMember{ProjectID: project.ID, UserID: userID, Role: role, JoinedAt: suite.now}
		suite.Require().NoError(suite.db.Create(member).Error)
	}
	return project
}

// createSprint inserts a sprint directly, bypassing date validation.
func (suite *handlerSuite) createSprint(projectID uint64, start time.Time, days, velocity int) *models.Sprint {
	sprint := &models.Sprint{
		ProjectID: projectID,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, days),
		Velocity:  velocity,
	}
	suite.Require().NoError(suite.db.Create(sprint).Error)
	return sprint
}

func (suite *handlerSuite) createStory(projectID uint64, name string, points int, sprintID *uint64) *models.UserStory {
	story := &models.UserStory{
		ProjectID:     projectID,
		Name:          name,
		Priority:      models.PriorityMustHave,
		BusinessValue: 10,
		Status:        models.StoryStatusNotStarted,
		StoryPoints:   &points,
		SprintID:      sprintID,
	}
	suite.Require().NoError(suite.db.Create(story).Error)
	return story
}

func (suite *handlerSuite) createTask(storyID uint64, status models.TaskStatus, assignee *uint64) *models.Task {
	task := &models.Task{
		StoryID:        storyID,
		Title:          "Write the migration",
		EstimatedHours: 4,
		Status:         status,
		AssignedTo:     assignee,
	}
	suite.Require().NoError(suite.db.Create(task).Error)
	return task
}

func (suite *handlerSuite) reloadTask(id uint64) models.Task {
	var task models.Task
	suite.Require().NoError(suite.db.First(&task, id).Error)
	return task
}

// context builds a handler context for userID, the way the auth and access
// middleware would leave it. values are extra context keys.
func (suite *handlerSuite) context(method, url string, body any, userID uint64, values map[string]any) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		suite.Require().NoError(err)
		req = httptest.NewRequest(method, url, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, url, nil)
	}

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set(constants.ContextKeyUserID, userID)
	for k, v := range values {
		c.Set(k, v)
	}
	return c, w
}

func (suite *handlerSuite) decode(w *httptest.ResponseRecorder, out any) {
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), out))
}

func (suite *handlerSuite) errorCode(w *httptest.ResponseRecorder) string {
	var apiErr apierrors.APIError
	suite.decode(w, &apiErr)
	return apiErr.Code
}

func uint64Ptr(v uint64) *uint64 { return &v }
