package repository

import (
	"time"

	"github.com/yukikurage/scrum-board/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSprintRepository is a GORM implementation of SprintRepository
type GormSprintRepository struct {
	db *gorm.DB
}

// NewSprintRepository creates a new SprintRepository
func NewSprintRepository(db *gorm.DB) SprintRepository {
	return &GormSprintRepository{db: db}
}

// Create creates a new sprint
func (r *GormSprintRepository) Create(sprint *models.Sprint) error {
	return r.db.Create(sprint).Error
}

// FindByID finds a sprint by ID
func (r *GormSprintRepository) FindByID(id uint64) (*models.Sprint, error) {
	var sprint models.Sprint
	if err := r.db.First(&sprint, id).Error; err != nil {
		return nil, err
	}
	return &sprint, nil
}

// ListByProject lists a project's sprints ordered by start date
func (r *GormSprintRepository) ListByProject(projectID uint64) ([]models.Sprint, error) {
	var sprints []models.Sprint
	if err := r.db.Where("project_id = ?", projectID).
		Order("start_date ASC").
		Find(&sprints).Error; err != nil {
		return nil, err
	}
	return sprints, nil
}

// ListEndedWithOpenStories lists sprints that ended before day and still
// hold stories that are not accepted
func (r *GormSprintRepository) ListEndedWithOpenStories(day time.Time) ([]models.Sprint, error) {
	var sprints []models.Sprint
	if err := r.db.Where("end_date < ?", day).
		Where("EXISTS (SELECT 1 FROM user_stories WHERE user_stories.sprint_id = sprints.id AND user_stories.deleted_at IS NULL AND user_stories.status <> ?)", models.StoryStatusAccepted).
		Order("end_date ASC").
		Find(&sprints).Error; err != nil {
		return nil, err
	}
	return sprints, nil
}

// Update updates a sprint
func (r *GormSprintRepository) Update(sprint *models.Sprint) error {
	return r.db.Omit(clause.Associations).Save(sprint).Error
}

// Delete releases every story of the sprint, soft deleted ones included,
// and deletes the sprint in one transaction
func (r *GormSprintRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Model(&models.UserStory{}).
			Where("sprint_id = ?", id).
			Update("sprint_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Sprint{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// AssignStories puts every story into the sprint in one transaction
func (r *GormSprintRepository) AssignStories(sprintID uint64, storyIDs []uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// Only stories still outside any sprint are taken; anything else means
		// the backlog changed underneath us and the whole add is abandoned.
		res := tx.Model(&models.UserStory{}).
			Where("id IN ? AND sprint_id IS NULL", storyIDs).
			Update("sprint_id", sprintID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(storyIDs)) {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ClearStories removes the sprint reference from the given stories
func (r *GormSprintRepository) ClearStories(storyIDs []uint64) error {
	if len(storyIDs) == 0 {
		return nil
	}
	return r.db.Model(&models.UserStory{}).
		Where("id IN ?", storyIDs).
		Update("sprint_id", nil).Error
}
