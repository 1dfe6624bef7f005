package dto

import (
	"github.com/yukikurage/scrum-board/internal/capacity"
	"github.com/yukikurage/scrum-board/internal/models"
	"github.com/yukikurage/scrum-board/internal/utils"
)

// StoryListResponse represents a paginated list of stories
type StoryListResponse struct {
	Stories    []models.UserStory       `json:"stories"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// SprintListResponse lists a project's sprints
type SprintListResponse struct {
	Sprints []models.Sprint `json:"sprints"`
}

// AddStoriesResponse reports the sprint load after stories were added
type AddStoriesResponse struct {
	Capacity capacity.Result `json:"capacity"`
}

// ReturnToBacklogResponse lists the stories moved back to the backlog
type ReturnToBacklogResponse struct {
	Returned []models.UserStory `json:"returned"`
}

// ToStoryListResponse converts stories and pagination data to a response
func ToStoryListResponse(stories []models.UserStory, params utils.PaginationParams, total int64) StoryListResponse {
	if stories == nil {
		stories = []models.UserStory{}
	}
	return StoryListResponse{
		Stories: stories,
		Pagination: utils.PaginationResponse{
			Page:  params.Page,
			Limit: params.Limit,
			Total: total,
		},
	}
}

// ToSprintListResponse wraps sprints, never returning a null list
func ToSprintListResponse(sprints []models.Sprint) SprintListResponse {
	if sprints == nil {
		sprints = []models.Sprint{}
	}
	return SprintListResponse{Sprints: sprints}
}
