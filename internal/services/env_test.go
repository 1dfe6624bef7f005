package services

import (
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/scrum-board/internal/database"
	"github.com/yukikurage/scrum-board/internal/models"
	"github.com/yukikurage/scrum-board/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// serviceSuite wires the services to an in-memory database. The clock reads
// suite.now, which starts on Monday 2026-03-02 at 10:00 UTC.
type serviceSuite struct {
	suite.Suite
	db  *gorm.DB
	now time.Time

	projects *ProjectService
	sprints  *SprintService
	stories  *StoryService
	tasks    *TaskService
}

func (suite *serviceSuite) SetupTest() {
	var err error

	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	suite.Require().NoError(err)

	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	suite.Require().NoError(suite.db.AutoMigrate(database.Models()...))

	suite.now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return suite.now }

	userRepo := repository.NewUserRepository(suite.db)
	projectRepo := repository.NewProjectRepository(suite.db)
	sprintRepo := repository.NewSprintRepository(suite.db)
	storyRepo := repository.NewStoryRepository(suite.db)
	taskRepo := repository.NewTaskRepository(suite.db)

	suite.projects = NewProjectService(projectRepo, userRepo)
	suite.sprints = NewSprintService(sprintRepo, storyRepo, projectRepo).WithClock(clock)
	suite.stories = NewStoryService(storyRepo, sprintRepo, projectRepo, nil).WithClock(clock)
	suite.tasks = NewTaskService(taskRepo, storyRepo, sprintRepo, projectRepo).WithClock(clock)
}

func (suite *serviceSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

func (suite *serviceSuite) createUser(username string) *models.User {
	user := &models.User{Username: username, PasswordHash: "hashedpassword"}
	suite.Require().NoError(suite.db.Create(user).Error)
	return user
}

func (suite *serviceSuite) createProject(name string, members map[uint64]models.Role) *models.Project {
	project := &models.Project{Name: name}
	suite.Require().NoError(suite.db.Create(project).Error)
	for userID, role := range members {
		member := &models.ProjectMember{ProjectID: project.ID, UserID: userID, Role: role, JoinedAt: suite.now}
		suite.Require().NoError(suite.db.Create(member).Error)
	}
	return project
}

// createSprint inserts a sprint directly so past sprints can exist.
func (suite *serviceSuite) createSprint(projectID uint64, start time.Time, days, velocity int) *models.Sprint {
	sprint := &models.Sprint{
		ProjectID: projectID,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, days),
		Velocity:  velocity,
	}
	suite.Require().NoError(suite.db.Create(sprint).Error)
	return sprint
}

func (suite *serviceSuite) createStory(projectID uint64, name string, points int, sprintID *uint64) *models.UserStory {
	story := &models.UserStory{
		ProjectID:     projectID,
		Name:          name,
		Priority:      models.PriorityShouldHave,
		BusinessValue: 5,
		Status:        models.StoryStatusNotStarted,
		StoryPoints:   &points,
		SprintID:      sprintID,
	}
	suite.Require().NoError(suite.db.Create(story).Error)
	return story
}

func (suite *serviceSuite) reloadStory(id uint64) models.UserStory {
	var story models.UserStory
	suite.Require().NoError(suite.db.First(&story, id).Error)
	return story
}

func intPtr(v int) *int { return &v }
