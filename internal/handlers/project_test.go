package handlers

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/scrum-board/internal/constants"
	"github.com/yukikurage/scrum-board/internal/dto"
	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/models"
)

type ProjectHandlerTestSuite struct {
	handlerSuite
	handler *ProjectHandler
	sm, dev *models.User
}

func (suite *ProjectHandlerTestSuite) SetupTest() {
	suite.handlerSuite.SetupTest()
	suite.handler = NewProjectHandler(suite.projects)
	suite.sm = suite.createUser("sm")
	suite.dev = suite.createUser("dev")
}

func TestProjectHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(ProjectHandlerTestSuite))
}

// projectContext is a request as RequireProjectAccess leaves it.
func (suite *ProjectHandlerTestSuite) projectContext(method string, body any, userID uint64, project *models.Project) (*gin.Context, *httptest.ResponseRecorder) {
	var member models.ProjectMember
	suite.Require().NoError(suite.db.Where("project_id = ? AND user_id = ?", project.ID, userID).First(&member).Error)
	return suite.context(method, "/api/projects/"+strconv.FormatUint(project.ID, 10), body, userID, map[string]any{
		constants.ContextKeyProject:       *project,
		constants.ContextKeyProjectMember: member,
	})
}

func (suite *ProjectHandlerTestSuite) TestCreateProject() {
	c, w := suite.context(http.MethodPost, "/api/projects", map[string]string{"name": "Apollo"}, suite.sm.ID, nil)
	suite.handler.CreateProject(c)
	suite.Require().Equal(http.StatusCreated, w.Code)

	var project dto.ProjectDTO
	suite.decode(w, &project)
	suite.Equal("Apollo", project.Name)

	c, w = suite.context(http.MethodPost, "/api/projects", map[string]string{"name": "Apollo"}, suite.dev.ID, nil)
	suite.handler.CreateProject(c)
	suite.Equal(http.StatusConflict, w.Code)
	suite.Equal(apierrors.ErrCodeAlreadyExists, suite.errorCode(w))

	c, w = suite.context(http.MethodPost, "/api/projects", map[string]string{}, suite.sm.ID, nil)
	suite.handler.CreateProject(c)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *ProjectHandlerTestSuite) TestListAndGetProject() {
	project := suite.createProject("Apollo", map[uint64]models.Role{
		suite.sm.ID:  models.RoleScrumMaster,
		suite.dev.ID: models.RoleDeveloper,
	})

	c, w := suite.context(http.MethodGet, "/api/projects", nil, suite.dev.ID, nil)
	suite.handler.ListProjects(c)
	suite.Require().Equal(http.StatusOK, w.Code)

	var list struct {
		Projects []dto.ProjectWithRoleDTO `json:"projects"`
	}
	suite.decode(w, &list)
	suite.Require().Len(list.Projects, 1)
	suite.Equal(models.RoleDeveloper, list.Projects[0].Role)

	c, w = suite.projectContext(http.MethodGet, nil, suite.dev.ID, project)
	suite.handler.GetProject(c)
	suite.Require().Equal(http.StatusOK, w.Code)

	var detail dto.ProjectDetailDTO
	suite.decode(w, &detail)
	suite.Len(detail.Members, 2)
	suite.Equal(models.RoleDeveloper, detail.YourRole)
}

func (suite *ProjectHandlerTestSuite) TestMembers() {
	po := suite.createUser("po")
	other := suite.createUser("other")
	project := suite.createProject("Apollo", map[uint64]models.Role{
		suite.sm.ID: models.RoleScrumMaster,
		po.ID:       models.RoleProductOwner,
	})

	c, w := suite.projectContext(http.MethodPost, map[string]any{"user_id": other.ID, "role": models.RoleProductOwner}, suite.sm.ID, project)
	suite.handler.AddMember(c)
	suite.Equal(http.StatusConflict, w.Code, "a project has one product owner")

	c, w = suite.projectContext(http.MethodPost, map[string]any{"user_id": other.ID, "role": models.RoleDeveloper}, suite.sm.ID, project)
	suite.handler.AddMember(c)
	suite.Require().Equal(http.StatusCreated, w.Code)

	c, w = suite.projectContext(http.MethodPut, map[string]any{"role": models.RoleDeveloper}, suite.sm.ID, project)
	c.Params = gin.Params{{Key: "user_id", Value: strconv.FormatUint(suite.sm.ID, 10)}}
	suite.handler.UpdateMember(c)
	suite.Equal(http.StatusUnprocessableEntity, w.Code, "members cannot change their own role")

	c, w = suite.projectContext(http.MethodPut, map[string]any{"role": models.RoleScrumMaster}, suite.sm.ID, project)
	c.Params = gin.Params{{Key: "user_id", Value: strconv.FormatUint(other.ID, 10)}}
	suite.handler.UpdateMember(c)
	suite.Require().Equal(http.StatusOK, w.Code)

	c, w = suite.projectContext(http.MethodDelete, nil, suite.sm.ID, project)
	c.Params = gin.Params{{Key: "user_id", Value: strconv.FormatUint(suite.sm.ID, 10)}}
	suite.handler.RemoveMember(c)
	suite.Equal(http.StatusUnprocessableEntity, w.Code)

	c, w = suite.projectContext(http.MethodDelete, nil, suite.sm.ID, project)
	c.Params = gin.Params{{Key: "user_id", Value: strconv.FormatUint(po.ID, 10)}}
	suite.handler.RemoveMember(c)
	suite.Equal(http.StatusOK, w.Code)

	c, w = suite.projectContext(http.MethodDelete, nil, suite.sm.ID, project)
	c.Params = gin.Params{{Key: "user_id", Value: "abc"}}
	suite.handler.RemoveMember(c)
	suite.Equal(http.StatusBadRequest, w.Code)
}
