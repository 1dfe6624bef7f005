package database

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

type index struct {
	table   string
	name    string
	columns string
}

// pgIndexes are composite indexes the struct tags do not express.
var pgIndexes = []index{
	// Board and sprint planning queries
	{"user_stories", "idx_user_stories_project_sprint", "project_id, sprint_id"},
	{"user_stories", "idx_user_stories_project_status", "project_id, status"},

	// Sprint overlap checks and the backlog sweep
	{"sprints", "idx_sprints_project_dates", "project_id, start_date, end_date"},
	{"sprints", "idx_sprints_end_date", "end_date"},

	// Task lookups by story and status
	{"tasks", "idx_tasks_story_status", "story_id, status"},

	// Time log ordering
	{"time_log_entries", "idx_time_log_entries_task_date", "task_id, date"},

	// Open work session lookups
	{"work_sessions", "idx_work_sessions_open", "task_id, user_id, stopped_at"},
}

// AddIndexes adds performance-critical indexes on PostgreSQL
func AddIndexes(db *gorm.DB) error {
	for _, idx := range pgIndexes {
		// Check if index already exists
		var count int64
		err := db.Raw(`
			SELECT COUNT(*)
			FROM pg_indexes
			WHERE tablename = ? AND indexname = ?
		`, idx.table, idx.name).Count(&count).Error

		if err != nil {
			return fmt.Errorf("failed to check index %s: %w", idx.name, err)
		}

		if count > 0 {
			slog.Debug("index already exists, skipping", "index", idx.name)
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		slog.Info("created index", "index", idx.name, "table", idx.table, "columns", idx.columns)
	}

	return nil
}

// MigrateDatabase runs the migrations AutoMigrate cannot express. Only the
// PostgreSQL dialect needs any.
func MigrateDatabase(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}

	if err := AddIndexes(db); err != nil {
		return fmt.Errorf("failed to add indexes: %w", err)
	}

	return nil
}
