package models

import "time"

// WorkSession is the authority's record of a timed work interval. At most one
// open session (StoppedAt == nil) exists per task and user.
type WorkSession struct {
	ID        uint64     `gorm:"primarykey" json:"id"`
	TaskID    uint64     `gorm:"not null;index:idx_work_sessions_task_user" json:"task_id"`
	UserID    uint64     `gorm:"not null;index:idx_work_sessions_task_user" json:"user_id"`
	StartedAt time.Time  `gorm:"not null" json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at"`
}
