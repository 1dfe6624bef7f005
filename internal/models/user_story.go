package models

import (
	"time"

	"gorm.io/gorm"
)

type Priority string

const (
	PriorityMustHave   Priority = "MUST_HAVE"
	PriorityShouldHave Priority = "SHOULD_HAVE"
	PriorityCouldHave  Priority = "COULD_HAVE"
	PriorityWontHave   Priority = "WONT_HAVE"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityMustHave, PriorityShouldHave, PriorityCouldHave, PriorityWontHave:
		return true
	default:
		return false
	}
}

type StoryStatus string

const (
	StoryStatusNotStarted StoryStatus = "NOT_STARTED"
	StoryStatusInProgress StoryStatus = "IN_PROGRESS"
	StoryStatusDone       StoryStatus = "DONE"
	StoryStatusAccepted   StoryStatus = "ACCEPTED"
	StoryStatusRejected   StoryStatus = "REJECTED"
)

func (s StoryStatus) Valid() bool {
	switch s {
	case StoryStatusNotStarted, StoryStatusInProgress, StoryStatusDone, StoryStatusAccepted, StoryStatusRejected:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further status change is possible.
func (s StoryStatus) Terminal() bool {
	return s == StoryStatusAccepted || s == StoryStatusRejected
}

type UserStory struct {
	ID                 uint64         `gorm:"primarykey" json:"id"`
	ProjectID          uint64         `gorm:"not null;index:idx_user_stories_project_name" json:"project_id"`
	Name               string         `gorm:"type:varchar(255);not null;index:idx_user_stories_project_name" json:"name"`
	Description        string         `gorm:"type:text" json:"description"`
	AcceptanceCriteria string         `gorm:"type:text" json:"acceptance_criteria"`
	Priority           Priority       `gorm:"type:varchar(20);not null" json:"priority"`
	BusinessValue      int            `gorm:"not null" json:"business_value"`
	Status             StoryStatus    `gorm:"type:varchar(20);not null;default:'NOT_STARTED'" json:"status"`
	StoryPoints        *int           `json:"story_points"`
	SprintID           *uint64        `gorm:"index" json:"sprint_id"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Tasks []Task `gorm:"foreignKey:StoryID" json:"tasks,omitempty"`
}

// Points returns the estimate, or zero when the story is unestimated.
func (s UserStory) Points() int {
	if s.StoryPoints == nil {
		return 0
	}
	return *s.StoryPoints
}
