package repository

import (
	"time"

	"github.com/yukikurage/scrum-board/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create creates a new task
func (r *GormTaskRepository) Create(task *models.Task) error {
	return r.db.Create(task).Error
}

// FindByID finds a task by ID with optional preloading
func (r *GormTaskRepository) FindByID(id uint64, preload ...string) (*models.Task, error) {
	var task models.Task
	query := r.db

	// Apply preloading if specified
	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&task, id).Error; err != nil {
		return nil, err
	}

	return &task, nil
}

// ListByStory lists the tasks of a story
func (r *GormTaskRepository) ListByStory(storyID uint64) ([]models.Task, error) {
	var tasks []models.Task
	if err := r.db.Preload("Assignee").
		Where("story_id = ?", storyID).
		Order("id ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update updates a task
func (r *GormTaskRepository) Update(task *models.Task) error {
	return r.db.Omit(clause.Associations).Save(task).Error
}

// Delete hard deletes a task together with its time log
func (r *GormTaskRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&models.WorkSession{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", id).Delete(&models.TimeLogEntry{}).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Task{}, id).Error
	})
}

// Reject saves a task returned to UNASSIGNED and drops its open work sessions
func (r *GormTaskRepository) Reject(task *models.Task) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ? AND stopped_at IS NULL", task.ID).
			Delete(&models.WorkSession{}).Error; err != nil {
			return err
		}

		return tx.Omit(clause.Associations).Save(task).Error
	})
}

// AppendLog stores a time log entry and adds its hours to the task
func (r *GormTaskRepository) AppendLog(entry *models.TimeLogEntry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return appendLog(tx, entry)
	})
}

func appendLog(tx *gorm.DB, entry *models.TimeLogEntry) error {
	if err := tx.Create(entry).Error; err != nil {
		return err
	}

	return tx.Model(&models.Task{}).
		Where("id = ?", entry.TaskID).
		Update("hours_spent", gorm.Expr("hours_spent + ?", entry.Hours)).Error
}

// ListLogs lists a task's time log ordered by date
func (r *GormTaskRepository) ListLogs(taskID uint64) ([]models.TimeLogEntry, error) {
	var logs []models.TimeLogEntry
	if err := r.db.Where("task_id = ?", taskID).
		Order("date ASC, id ASC").
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// FindOpenSession finds the open work session for a task and user
func (r *GormTaskRepository) FindOpenSession(taskID, userID uint64) (*models.WorkSession, error) {
	var ws models.WorkSession
	if err := r.db.Where("task_id = ? AND user_id = ? AND stopped_at IS NULL", taskID, userID).
		First(&ws).Error; err != nil {
		return nil, err
	}
	return &ws, nil
}

// CreateSession opens a work session
func (r *GormTaskRepository) CreateSession(ws *models.WorkSession) error {
	return r.db.Create(ws).Error
}

// CloseSession stops a work session and, when entry is not nil, logs it
func (r *GormTaskRepository) CloseSession(ws *models.WorkSession, entry *models.TimeLogEntry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		stoppedAt := time.Now()
		if ws.StoppedAt != nil {
			stoppedAt = *ws.StoppedAt
		}
		// Guard on stopped_at so a concurrent stop cannot log the interval twice.
		res := tx.Model(&models.WorkSession{}).
			Where("id = ? AND stopped_at IS NULL", ws.ID).
			Update("stopped_at", stoppedAt)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		ws.StoppedAt = &stoppedAt

		if entry == nil {
			return nil
		}
		return appendLog(tx, entry)
	})
}
