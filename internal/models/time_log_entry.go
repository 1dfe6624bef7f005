package models

import "time"

// TimeLogEntry is immutable once created.
type TimeLogEntry struct {
	ID          uint64    `gorm:"primarykey" json:"id"`
	TaskID      uint64    `gorm:"not null;index" json:"task_id"`
	UserID      uint64    `gorm:"not null;index" json:"user_id"`
	Date        time.Time `gorm:"not null" json:"date"`
	Hours       float64   `gorm:"not null" json:"hours"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
