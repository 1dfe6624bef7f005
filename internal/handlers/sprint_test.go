package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/scrum-board/internal/backlog"
	"github.com/yukikurage/scrum-board/internal/constants"
	"github.com/yukikurage/scrum-board/internal/dto"
	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/models"
)

// PlanningHandlerTestSuite covers the sprint and story handlers.
type PlanningHandlerTestSuite struct {
	handlerSuite
	sprintHandler *SprintHandler
	storyHandler  *StoryHandler

	sm, dev, po *models.User
	project     *models.Project
}

func (suite *PlanningHandlerTestSuite) SetupTest() {
	suite.handlerSuite.SetupTest()
	suite.sprintHandler = NewSprintHandler(suite.sprints)
	suite.storyHandler = NewStoryHandler(suite.stories, suite.tasks)

	suite.sm = suite.createUser("sm")
	suite.dev = suite.createUser("dev")
	suite.po = suite.createUser("po")
	suite.project = suite.createProject("Board", map[uint64]models.Role{
		suite.sm.ID:  models.RoleScrumMaster,
		suite.dev.ID: models.RoleDeveloper,
		suite.po.ID:  models.RoleProductOwner,
	})
}

func TestPlanningHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(PlanningHandlerTestSuite))
}

func (suite *PlanningHandlerTestSuite) inProject(method, url string, body any, userID uint64, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	var member models.ProjectMember
	suite.Require().NoError(suite.db.Where("project_id = ? AND user_id = ?", suite.project.ID, userID).First(&member).Error)
	c, w := suite.context(method, url, body, userID, map[string]any{
		constants.ContextKeyProject:       *suite.project,
		constants.ContextKeyProjectMember: member,
	})
	c.Params = params
	return c, w
}

func (suite *PlanningHandlerTestSuite) onStory(method string, body any, userID uint64, story *models.UserStory) (*gin.Context, *httptest.ResponseRecorder) {
	var current models.UserStory
	suite.Require().NoError(suite.db.First(&current, story.ID).Error)
	return suite.context(method, fmt.Sprintf("/api/user-stories/%d", story.ID), body, userID, map[string]any{
		constants.ContextKeyStory: current,
	})
}

func sprintParam(id uint64) gin.Param {
	return gin.Param{Key: "sprintId", Value: strconv.FormatUint(id, 10)}
}

func (suite *PlanningHandlerTestSuite) TestCreateSprint() {
	body := map[string]any{"start_date": "2026-03-02", "end_date": "2026-03-13", "velocity": 20}
	c, w := suite.inProject(http.MethodPost, "/sprints", body, suite.sm.ID)
	suite.sprintHandler.CreateSprint(c)
	suite.Require().Equal(http.StatusCreated, w.Code)

	var sprint models.Sprint
	suite.decode(w, &sprint)
	suite.Equal(models.SprintStatusActive, sprint.Status)
	suite.Equal(20, sprint.Velocity)

	c, w = suite.inProject(http.MethodPost, "/sprints", body, suite.sm.ID)
	suite.sprintHandler.CreateSprint(c)
	suite.Equal(http.StatusConflict, w.Code, "overlapping sprint")

	c, w = suite.inProject(http.MethodPost, "/sprints", map[string]any{"start_date": "2026-04-06", "end_date": "2026-04-17", "velocity": 20}, suite.dev.ID)
	suite.sprintHandler.CreateSprint(c)
	suite.Equal(http.StatusForbidden, w.Code)

	c, w = suite.inProject(http.MethodPost, "/sprints", map[string]any{"start_date": "next monday", "end_date": "2026-04-17", "velocity": 20}, suite.sm.ID)
	suite.sprintHandler.CreateSprint(c)
	suite.Equal(http.StatusBadRequest, w.Code)

	c, w = suite.inProject(http.MethodPost, "/sprints", map[string]any{"start_date": "2026-04-11", "end_date": "2026-04-17", "velocity": 20}, suite.sm.ID)
	suite.sprintHandler.CreateSprint(c)
	suite.Equal(http.StatusBadRequest, w.Code, "saturday start")
	suite.Equal(apierrors.ErrCodeInvalidInput, suite.errorCode(w))
}

func (suite *PlanningHandlerTestSuite) TestAddStoriesOverCapacity() {
	sprint := suite.createSprint(suite.project.ID, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), 11, 10)
	a := suite.createStory(suite.project.ID, "A", 6, nil)
	b := suite.createStory(suite.project.ID, "B", 5, nil)
	selection := map[string]any{"story_ids": []uint64{a.ID, b.ID}}

	c, w := suite.inProject(http.MethodPost, "/capacity", selection, suite.sm.ID, sprintParam(sprint.ID))
	suite.sprintHandler.EvaluateStories(c)
	suite.Require().Equal(http.StatusOK, w.Code)
	var eval dto.AddStoriesResponse
	suite.decode(w, &eval)
	suite.False(eval.Capacity.Allowed)
	suite.Equal(11, eval.Capacity.ProjectedLoad)

	c, w = suite.inProject(http.MethodPost, "/stories", selection, suite.sm.ID, sprintParam(sprint.ID))
	suite.sprintHandler.AddStories(c)
	suite.Equal(http.StatusUnprocessableEntity, w.Code)
	suite.Equal(apierrors.ErrCodeCapacityExceeded, suite.errorCode(w))

	c, w = suite.inProject(http.MethodPost, "/stories", map[string]any{"story_ids": []uint64{a.ID}}, suite.sm.ID, sprintParam(sprint.ID))
	suite.sprintHandler.AddStories(c)
	suite.Require().Equal(http.StatusOK, w.Code)

	c, w = suite.inProject(http.MethodGet, "/sprint", nil, suite.dev.ID, sprintParam(sprint.ID))
	suite.sprintHandler.GetSprint(c)
	suite.Require().Equal(http.StatusOK, w.Code)
	var got models.Sprint
	suite.decode(w, &got)
	suite.Len(got.Stories, 1)
}

func (suite *PlanningHandlerTestSuite) TestReturnToBacklog() {
	sprint := suite.createSprint(suite.project.ID, time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC), 11, 10)
	story := suite.createStory(suite.project.ID, "Leftover", 3, &sprint.ID)

	c, w := suite.inProject(http.MethodPost, "/return-to-backlog", nil, suite.po.ID, sprintParam(sprint.ID))
	suite.sprintHandler.ReturnToBacklog(c)
	suite.Require().Equal(http.StatusOK, w.Code)

	var res dto.ReturnToBacklogResponse
	suite.decode(w, &res)
	suite.Require().Len(res.Returned, 1)
	suite.Equal(story.ID, res.Returned[0].ID)
}

func (suite *PlanningHandlerTestSuite) TestCreateStoryAndBoard() {
	body := map[string]any{"name": "Login", "priority": models.PriorityMustHave, "business_value": 8, "story_points": 3}
	c, w := suite.inProject(http.MethodPost, "/user-stories", body, suite.po.ID)
	suite.storyHandler.CreateStory(c)
	suite.Require().Equal(http.StatusCreated, w.Code)

	c, w = suite.inProject(http.MethodPost, "/user-stories", body, suite.po.ID)
	suite.storyHandler.CreateStory(c)
	suite.Equal(http.StatusConflict, w.Code)

	c, w = suite.inProject(http.MethodPost, "/user-stories", map[string]any{"name": "Later", "priority": models.PriorityWontHave, "business_value": 1}, suite.sm.ID)
	suite.storyHandler.CreateStory(c)
	suite.Require().Equal(http.StatusCreated, w.Code)

	c, w = suite.inProject(http.MethodPost, "/user-stories", map[string]any{"name": "Dev idea", "priority": models.PriorityCouldHave, "business_value": 1}, suite.dev.ID)
	suite.storyHandler.CreateStory(c)
	suite.Equal(http.StatusForbidden, w.Code)

	c, w = suite.inProject(http.MethodGet, "/board", nil, suite.dev.ID)
	suite.storyHandler.Board(c)
	suite.Require().Equal(http.StatusOK, w.Code)
	var view backlog.View
	suite.decode(w, &view)
	suite.Len(view.UnrealizedUnactive, 1)
	suite.Len(view.FutureReleases, 1)
	suite.Empty(view.Finished)

	c, w = suite.inProject(http.MethodGet, "/user-stories?page=1&limit=1", nil, suite.dev.ID)
	suite.storyHandler.ListStories(c)
	suite.Require().Equal(http.StatusOK, w.Code)
	var list dto.StoryListResponse
	suite.decode(w, &list)
	suite.Len(list.Stories, 1)
	suite.Equal(int64(2), list.Pagination.Total)

	c, w = suite.inProject(http.MethodGet, "/user-stories?status=SHIPPED", nil, suite.dev.ID)
	suite.storyHandler.ListStories(c)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *PlanningHandlerTestSuite) TestUpdateStoryStatusAndTasks() {
	story := suite.createStory(suite.project.ID, "Login", 3, nil)

	c, w := suite.onStory(http.MethodPut, map[string]any{"status": models.StoryStatusInProgress}, suite.dev.ID, story)
	suite.storyHandler.UpdateStory(c)
	suite.Require().Equal(http.StatusOK, w.Code)

	c, w = suite.onStory(http.MethodPost, map[string]any{"title": "Form", "estimated_hours": 3}, suite.dev.ID, story)
	suite.storyHandler.CreateTask(c)
	suite.Require().Equal(http.StatusCreated, w.Code)

	c, w = suite.onStory(http.MethodPut, map[string]any{"status": models.StoryStatusDone}, suite.dev.ID, story)
	suite.storyHandler.UpdateStory(c)
	suite.Equal(http.StatusUnprocessableEntity, w.Code, "an open task blocks DONE")
	suite.Equal(apierrors.ErrCodeInvalidTransition, suite.errorCode(w))

	c, w = suite.onStory(http.MethodGet, nil, suite.dev.ID, story)
	suite.storyHandler.ListTasks(c)
	suite.Require().Equal(http.StatusOK, w.Code)
	var tasks dto.TaskListResponse
	suite.decode(w, &tasks)
	suite.Len(tasks.Tasks, 1)

	c, w = suite.onStory(http.MethodPost, nil, suite.dev.ID, story)
	suite.storyHandler.SuggestTasks(c)
	suite.Equal(http.StatusServiceUnavailable, w.Code, "no suggester configured")
}
