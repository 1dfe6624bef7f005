package models

import "time"

// SprintStatus is derived from the clock and never stored.
type SprintStatus string

const (
	SprintStatusFuture SprintStatus = "future"
	SprintStatusActive SprintStatus = "active"
	SprintStatusPast   SprintStatus = "past"
)

type Sprint struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	ProjectID uint64    `gorm:"not null;index" json:"project_id"`
	StartDate time.Time `gorm:"not null" json:"start_date"`
	EndDate   time.Time `gorm:"not null" json:"end_date"`
	Velocity  int       `gorm:"not null" json:"velocity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Status is filled in by the service before the sprint leaves the API.
	Status SprintStatus `gorm:"-" json:"status,omitempty"`

	// Relations
	Stories []UserStory `gorm:"foreignKey:SprintID" json:"stories,omitempty"`
}
