package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/scrum-board/internal/constants"
	"github.com/yukikurage/scrum-board/internal/dto"
	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/models"
)

// TaskHandlerTestSuite defines the test suite for TaskHandler
type TaskHandlerTestSuite struct {
	handlerSuite
	handler *TaskHandler

	dev, other, sm, po *models.User
	project            *models.Project
	sprint             *models.Sprint
	story              *models.UserStory
}

// SetupTest runs before each test
func (suite *TaskHandlerTestSuite) SetupTest() {
	suite.handlerSuite.SetupTest()
	suite.handler = NewTaskHandler(suite.tasks)

	suite.dev = suite.createUser("dev")
	suite.other = suite.createUser("other")
	suite.sm = suite.createUser("scrum-master")
	suite.po = suite.createUser("product-owner")
	suite.project = suite.createProject("Apollo", map[uint64]models.Role{
		suite.dev.ID:   models.RoleDeveloper,
		suite.other.ID: models.RoleDeveloper,
		suite.sm.ID:    models.RoleScrumMaster,
		suite.po.ID:    models.RoleProductOwner,
	})
	suite.sprint = suite.createSprint(suite.project.ID, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), 11, 20)
	suite.story = suite.createStory(suite.project.ID, "Checkout", 5, &suite.sprint.ID)
}

func (suite *TaskHandlerTestSuite) call(fn gin.HandlerFunc, method, url string, body any, userID uint64, task *models.Task) (int, []byte) {
	c, w := suite.context(method, url, body, userID, map[string]any{constants.ContextKeyTask: *task})
	fn(c)
	return w.Code, w.Body.Bytes()
}

func (suite *TaskHandlerTestSuite) TestAssignTask_Self() {
	task := suite.createTask(suite.story.ID, models.TaskStatusUnassigned, nil)

	c, w := suite.context(http.MethodPost, "/api/tasks/1/assign", map[string]uint64{"user_id": suite.dev.ID}, suite.dev.ID,
		map[string]any{constants.ContextKeyTask: *task})
	suite.handler.AssignTask(c)

	suite.Equal(http.StatusOK, w.Code)
	var got models.Task
	suite.decode(w, &got)
	suite.Equal(models.TaskStatusAssigned, got.Status)
	suite.True(got.IsAssignedTo(suite.dev.ID))
}

func (suite *TaskHandlerTestSuite) TestAssignTask_OtherRequiresScrumMaster() {
	task := suite.createTask(suite.story.ID, models.TaskStatusUnassigned, nil)
	ctx := map[string]any{constants.ContextKeyTask: *task}

	c, w := suite.context(http.MethodPost, "/api/tasks/1/assign", map[string]uint64{"user_id": suite.other.ID}, suite.dev.ID, ctx)
	suite.handler.AssignTask(c)
	suite.Equal(http.StatusForbidden, w.Code)

	c, w = suite.context(http.MethodPost, "/api/tasks/1/assign", map[string]uint64{"user_id": suite.other.ID}, suite.sm.ID, ctx)
	suite.handler.AssignTask(c)
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *TaskHandlerTestSuite) TestAssignTask_ProductOwnerIsNotAnAssignee() {
	task := suite.createTask(suite.story.ID, models.TaskStatusUnassigned, nil)

	c, w := suite.context(http.MethodPost, "/api/tasks/1/assign", map[string]uint64{"user_id": suite.po.ID}, suite.sm.ID,
		map[string]any{constants.ContextKeyTask: *task})
	suite.handler.AssignTask(c)

	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal(apierrors.ErrCodeInvalidInput, suite.errorCode(w))
}

func (suite *TaskHandlerTestSuite) TestAssignTask_ProductOwnerCannotAct() {
	task := suite.createTask(suite.story.ID, models.TaskStatusUnassigned, nil)

	c, w := suite.context(http.MethodPost, "/api/tasks/1/assign", map[string]uint64{"user_id": suite.po.ID}, suite.po.ID,
		map[string]any{constants.ContextKeyTask: *task})
	suite.handler.AssignTask(c)

	suite.Equal(http.StatusForbidden, w.Code)
}

func (suite *TaskHandlerTestSuite) TestStartTask_UnlocksLoggingAndStartsStory() {
	task := suite.createTask(suite.story.ID, models.TaskStatusAssigned, &suite.dev.ID)

	code, body := suite.call(suite.handler.StartTask, http.MethodPost, "/api/tasks/1/start", nil, suite.dev.ID, task)
	suite.Require().Equal(http.StatusOK, code, string(body))

	got := suite.reloadTask(task.ID)
	suite.Equal(models.TaskStatusInProgress, got.Status)

	var story models.UserStory
	suite.Require().NoError(suite.db.First(&story, suite.story.ID).Error)
	suite.Equal(models.StoryStatusInProgress, story.Status)

	code, _ = suite.call(suite.handler.StartTask, http.MethodPost, "/api/tasks/1/start", nil, suite.dev.ID, task)
	suite.Equal(http.StatusOK, code, "starting twice is harmless for the assignee")
}

func (suite *TaskHandlerTestSuite) TestStartTask_FutureSprintIsLocked() {
	future := suite.createSprint(suite.project.ID, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), 11, 20)
	story := suite.createStory(suite.project.ID, "Later", 3, &future.ID)
	task := suite.createTask(story.ID, models.TaskStatusAssigned, &suite.dev.ID)

	c, w := suite.context(http.MethodPost, "/api/tasks/1/start", nil, suite.dev.ID, map[string]any{constants.ContextKeyTask: *task})
	suite.handler.StartTask(c)

	suite.Equal(http.StatusUnprocessableEntity, w.Code)
	suite.Equal(models.TaskStatusAssigned, suite.reloadTask(task.ID).Status)
}

func (suite *TaskHandlerTestSuite) TestStopTask_LogsHours() {
	task := suite.createTask(suite.story.ID, models.TaskStatusInProgress, &suite.dev.ID)

	c, w := suite.context(http.MethodPost, "/api/tasks/1/stop",
		map[string]any{"hours_spent": 2.5, "description": "schema"}, suite.dev.ID,
		map[string]any{constants.ContextKeyTask: *task})
	suite.handler.StopTask(c)

	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var res dto.StopTaskResponse
	suite.decode(w, &res)
	suite.Require().NotNil(res.Entry)
	suite.Equal(2.5, res.Entry.Hours)
	suite.Equal(2.5, res.Task.HoursSpent)
	suite.Equal(models.TaskStatusInProgress, res.Task.Status, "stopping keeps the task in progress")
	suite.True(res.Task.LoggingUnlocked)
}

func (suite *TaskHandlerTestSuite) TestStopTask_WithoutHoursLogsNothing() {
	task := suite.createTask(suite.story.ID, models.TaskStatusInProgress, &suite.dev.ID)

	code, body := suite.call(suite.handler.StopTask, http.MethodPost, "/api/tasks/1/stop", nil, suite.dev.ID, task)
	suite.Require().Equal(http.StatusOK, code, string(body))

	var count int64
	suite.db.Model(&models.TimeLogEntry{}).Count(&count)
	suite.Zero(count)
}

func (suite *TaskHandlerTestSuite) TestStopTask_RejectsBadHours() {
	task := suite.createTask(suite.story.ID, models.TaskStatusInProgress, &suite.dev.ID)

	for _, hours := range []float64{0, -2, 101} {
		code, _ := suite.call(suite.handler.StopTask, http.MethodPost, "/api/tasks/1/stop",
			map[string]any{"hours_spent": hours}, suite.dev.ID, task)
		suite.Equal(http.StatusBadRequest, code, "hours %v", hours)
	}
	suite.Zero(suite.reloadTask(task.ID).HoursSpent)
}

func (suite *TaskHandlerTestSuite) TestStopTask_OnlyAssignee() {
	task := suite.createTask(suite.story.ID, models.TaskStatusInProgress, &suite.dev.ID)

	code, _ := suite.call(suite.handler.StopTask, http.MethodPost, "/api/tasks/1/stop",
		map[string]any{"hours_spent": 1}, suite.other.ID, task)
	suite.Equal(http.StatusForbidden, code)
}

func (suite *TaskHandlerTestSuite) TestWorkSession_LogsElapsedTime() {
	task := suite.createTask(suite.story.ID, models.TaskStatusInProgress, &suite.dev.ID)

	code, body := suite.call(suite.handler.StartSession, http.MethodPost, "/api/tasks/1/start-session", nil, suite.dev.ID, task)
	suite.Require().Equal(http.StatusCreated, code, string(body))

	code, _ = suite.call(suite.handler.StartSession, http.MethodPost, "/api/tasks/1/start-session", nil, suite.dev.ID, task)
	suite.Equal(http.StatusConflict, code, "a second session on the same task is refused")

	suite.now = suite.now.Add(90 * time.Minute)

	c, w := suite.context(http.MethodPost, "/api/tasks/1/stop-session", nil, suite.dev.ID, map[string]any{constants.ContextKeyTask: *task})
	suite.handler.StopSession(c)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var res dto.StopSessionResponse
	suite.decode(w, &res)
	suite.Equal(1.5, res.HoursLogged)
	suite.Require().NotNil(res.Entry)
	suite.Equal("Work session", res.Entry.Description)
	suite.Equal(1.5, res.Task.HoursSpent)

	code, _ = suite.call(suite.handler.StopSession, http.MethodPost, "/api/tasks/1/stop-session", nil, suite.dev.ID, task)
	suite.Equal(http.StatusConflict, code, "nothing left to stop")
}

func (suite *TaskHandlerTestSuite) TestStopSession_AfterSprintEndsClosesUnlogged() {
	task := suite.createTask(suite.story.ID, models.TaskStatusInProgress, &suite.dev.ID)

	code, _ := suite.call(suite.handler.StartSession, http.MethodPost, "/api/tasks/1/start-session", nil, suite.dev.ID, task)
	suite.Require().Equal(http.StatusCreated, code)

	suite.now = suite.now.AddDate(0, 0, 20)

	code, _ = suite.call(suite.handler.StopSession, http.MethodPost, "/api/tasks/1/stop-session", nil, suite.dev.ID, task)
	suite.Equal(http.StatusUnprocessableEntity, code)

	var open int64
	suite.db.Model(&models.WorkSession{}).Where("stopped_at IS NULL").Count(&open)
	suite.Zero(open)
	suite.Zero(suite.reloadTask(task.ID).HoursSpent)
}

func (suite *TaskHandlerTestSuite) TestCompleteTask_RequiresStoppedSession() {
	task := suite.createTask(suite.story.ID, models.TaskStatusInProgress, &suite.dev.ID)

	code, _ := suite.call(suite.handler.StartSession, http.MethodPost, "/api/tasks/1/start-session", nil, suite.dev.ID, task)
	suite.Require().Equal(http.StatusCreated, code)

	c, w := suite.context(http.MethodPost, "/api/tasks/1/complete", nil, suite.dev.ID, map[string]any{constants.ContextKeyTask: *task})
	suite.handler.CompleteTask(c)
	suite.Equal(http.StatusConflict, w.Code)
	suite.Equal(apierrors.ErrCodeSessionConflict, suite.errorCode(w))

	code, _ = suite.call(suite.handler.StopSession, http.MethodPost, "/api/tasks/1/stop-session", nil, suite.dev.ID, task)
	suite.Require().Equal(http.StatusOK, code)

	code, _ = suite.call(suite.handler.CompleteTask, http.MethodPost, "/api/tasks/1/complete", nil, suite.dev.ID, task)
	suite.Equal(http.StatusOK, code)
	suite.Equal(models.TaskStatusCompleted, suite.reloadTask(task.ID).Status)
}

func (suite *TaskHandlerTestSuite) TestRejectTask_DropsSession() {
	task := suite.createTask(suite.story.ID, models.TaskStatusInProgress, &suite.dev.ID)

	code, _ := suite.call(suite.handler.StartSession, http.MethodPost, "/api/tasks/1/start-session", nil, suite.dev.ID, task)
	suite.Require().Equal(http.StatusCreated, code)

	code, body := suite.call(suite.handler.RejectTask, http.MethodPost, "/api/tasks/1/reject", nil, suite.dev.ID, task)
	suite.Require().Equal(http.StatusOK, code, string(body))

	got := suite.reloadTask(task.ID)
	suite.Equal(models.TaskStatusUnassigned, got.Status)
	suite.Nil(got.AssignedTo)

	var sessions int64
	suite.db.Model(&models.WorkSession{}).Count(&sessions)
	suite.Zero(sessions)
}

func (suite *TaskHandlerTestSuite) TestUnassignTask_ByScrumMaster() {
	task := suite.createTask(suite.story.ID, models.TaskStatusAssigned, &suite.dev.ID)

	code, _ := suite.call(suite.handler.UnassignTask, http.MethodPost, "/api/tasks/1/unassign", nil, suite.other.ID, task)
	suite.Equal(http.StatusForbidden, code)

	code, _ = suite.call(suite.handler.UnassignTask, http.MethodPost, "/api/tasks/1/unassign", nil, suite.sm.ID, task)
	suite.Equal(http.StatusOK, code)
}

func (suite *TaskHandlerTestSuite) TestDeleteTask() {
	started := suite.createTask(suite.story.ID, models.TaskStatusInProgress, &suite.dev.ID)
	code, _ := suite.call(suite.handler.DeleteTask, http.MethodDelete, "/api/tasks/1", nil, suite.dev.ID, started)
	suite.Equal(http.StatusUnprocessableEntity, code)

	assigned := suite.createTask(suite.story.ID, models.TaskStatusAssigned, &suite.dev.ID)
	code, _ = suite.call(suite.handler.DeleteTask, http.MethodDelete, "/api/tasks/2", nil, suite.other.ID, assigned)
	suite.Equal(http.StatusForbidden, code)
	code, _ = suite.call(suite.handler.DeleteTask, http.MethodDelete, "/api/tasks/2", nil, suite.dev.ID, assigned)
	suite.Equal(http.StatusOK, code)

	var count int64
	suite.db.Model(&models.Task{}).Where("id = ?", assigned.ID).Count(&count)
	suite.Zero(count)
}

func (suite *TaskHandlerTestSuite) TestListLogs() {
	task := suite.createTask(suite.story.ID, models.TaskStatusInProgress, &suite.dev.ID)
	for _, h := range []float64{1, 2.25} {
		code, _ := suite.call(suite.handler.StopTask, http.MethodPost, "/api/tasks/1/stop",
			map[string]any{"hours_spent": h}, suite.dev.ID, task)
		suite.Require().Equal(http.StatusOK, code)
	}

	c, w := suite.context(http.MethodGet, "/api/tasks/1/logs", nil, suite.po.ID, map[string]any{constants.ContextKeyTask: *task})
	suite.handler.ListLogs(c)

	suite.Require().Equal(http.StatusOK, w.Code)
	var res dto.TimeLogResponse
	suite.decode(w, &res)
	suite.Len(res.Logs, 2)
	suite.Equal(3.25, suite.reloadTask(task.ID).HoursSpent)
}

func (suite *TaskHandlerTestSuite) TestMissingTaskContext() {
	c, w := suite.context(http.MethodGet, "/api/tasks/1", nil, suite.dev.ID, nil)
	suite.handler.GetTask(c)
	suite.Equal(http.StatusInternalServerError, w.Code)
}

func TestTaskHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(TaskHandlerTestSuite))
}
