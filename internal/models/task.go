package models

import "time"

type TaskStatus string

const (
	TaskStatusUnassigned TaskStatus = "UNASSIGNED"
	TaskStatusAssigned   TaskStatus = "ASSIGNED"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusUnassigned, TaskStatusAssigned, TaskStatusInProgress, TaskStatusCompleted:
		return true
	default:
		return false
	}
}

type Task struct {
	ID             uint64     `gorm:"primarykey" json:"id"`
	StoryID        uint64     `gorm:"not null;index" json:"story_id"`
	Title          string     `gorm:"type:varchar(255);not null" json:"title"`
	Description    string     `gorm:"type:text" json:"description"`
	EstimatedHours float64    `gorm:"not null" json:"estimated_hours"`
	Status         TaskStatus `gorm:"type:varchar(20);not null;default:'UNASSIGNED'" json:"status"`
	AssignedTo     *uint64    `gorm:"index" json:"assigned_to"`
	HoursSpent     float64    `gorm:"not null;default:0" json:"hours_spent"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// LoggingUnlocked is computed by the authority from the owning story and
	// sprint: true while the task is IN_PROGRESS, the story is not terminal
	// and the story's sprint, if any, is active.
	LoggingUnlocked bool `gorm:"-" json:"logging_unlocked"`

	// Relations
	Story    UserStory      `gorm:"foreignKey:StoryID" json:"-"`
	Assignee *User          `gorm:"foreignKey:AssignedTo" json:"assignee,omitempty"`
	Logs     []TimeLogEntry `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsAssignedTo reports whether userID is the task's current assignee.
func (t Task) IsAssignedTo(userID uint64) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}
