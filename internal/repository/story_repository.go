package repository

import (
	"github.com/yukikurage/scrum-board/internal/database"
	"github.com/yukikurage/scrum-board/internal/models"
	"github.com/yukikurage/scrum-board/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStoryRepository is a GORM implementation of StoryRepository
type GormStoryRepository struct {
	db *gorm.DB
}

// NewStoryRepository creates a new StoryRepository
func NewStoryRepository(db *gorm.DB) StoryRepository {
	return &GormStoryRepository{db: db}
}

// Create creates a new story
func (r *GormStoryRepository) Create(story *models.UserStory) error {
	return r.db.Create(story).Error
}

// FindByID finds a story by ID
func (r *GormStoryRepository) FindByID(id uint64) (*models.UserStory, error) {
	var story models.UserStory
	if err := r.db.First(&story, id).Error; err != nil {
		return nil, err
	}
	return &story, nil
}

// FindByIDs finds stories of a project by ID
func (r *GormStoryRepository) FindByIDs(projectID uint64, ids []uint64) ([]models.UserStory, error) {
	var stories []models.UserStory
	if len(ids) == 0 {
		return stories, nil
	}
	if err := r.db.Where("project_id = ? AND id IN ?", projectID, ids).
		Order("id ASC").
		Find(&stories).Error; err != nil {
		return nil, err
	}
	return stories, nil
}

// FindByName finds a story by its name within a project
func (r *GormStoryRepository) FindByName(projectID uint64, name string) (*models.UserStory, error) {
	var story models.UserStory
	if err := r.db.Where("project_id = ? AND LOWER(name) = LOWER(?)", projectID, name).
		First(&story).Error; err != nil {
		return nil, err
	}
	return &story, nil
}

// List retrieves stories with filtering and pagination
func (r *GormStoryRepository) List(filter StoryFilter) ([]models.UserStory, int64, error) {
	var stories []models.UserStory

	query := r.db.Model(&models.UserStory{}).Where("project_id = ?", filter.ProjectID)
	if filter.SprintID != nil {
		query = query.Where("sprint_id = ?", *filter.SprintID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Order("id ASC")
	if filter.Page > 0 && filter.PageSize > 0 {
		listQuery = listQuery.Scopes(database.Paginate(utils.PaginationParams{
			Page:   filter.Page,
			Limit:  filter.PageSize,
			Offset: (filter.Page - 1) * filter.PageSize,
		}))
	}

	if err := listQuery.Find(&stories).Error; err != nil {
		return nil, 0, err
	}

	return stories, total, nil
}

// Update updates a story
func (r *GormStoryRepository) Update(story *models.UserStory) error {
	return r.db.Omit(clause.Associations).Save(story).Error
}

// Delete soft deletes a story
func (r *GormStoryRepository) Delete(id uint64) error {
	return r.db.Delete(&models.UserStory{}, id).Error
}

// CountOpenTasks counts the story's tasks that are not completed
func (r *GormStoryRepository) CountOpenTasks(storyID uint64) (int64, error) {
	var count int64
	err := r.db.Model(&models.Task{}).
		Where("story_id = ? AND status <> ?", storyID, models.TaskStatusCompleted).
		Count(&count).Error
	return count, err
}
