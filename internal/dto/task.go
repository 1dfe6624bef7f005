package dto

import (
	"github.com/yukikurage/scrum-board/internal/models"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
}

// TaskListResponse lists the tasks of a story
type TaskListResponse struct {
	Tasks []models.Task `json:"tasks"`
}

// StopTaskResponse is returned when work on a task stops. Entry is set when
// hours were logged.
type StopTaskResponse struct {
	Task  models.Task          `json:"task"`
	Entry *models.TimeLogEntry `json:"entry,omitempty"`
}

// StartSessionResponse is returned when a work session opens
type StartSessionResponse struct {
	Session models.WorkSession `json:"session"`
}

// StopSessionResponse is returned when a work session closes
type StopSessionResponse struct {
	HoursLogged float64              `json:"hours_logged"`
	Task        models.Task          `json:"task"`
	Entry       *models.TimeLogEntry `json:"entry,omitempty"`
}

// TimeLogResponse lists a task's time log
type TimeLogResponse struct {
	Logs []models.TimeLogEntry `json:"logs"`
}

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:       user.ID,
		Username: user.Username,
	}
}

// ToTaskListResponse wraps tasks, never returning a null list
func ToTaskListResponse(tasks []models.Task) TaskListResponse {
	if tasks == nil {
		tasks = []models.Task{}
	}
	return TaskListResponse{Tasks: tasks}
}

// ToTimeLogResponse wraps a time log, never returning a null list
func ToTimeLogResponse(logs []models.TimeLogEntry) TimeLogResponse {
	if logs == nil {
		logs = []models.TimeLogEntry{}
	}
	return TimeLogResponse{Logs: logs}
}
