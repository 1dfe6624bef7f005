package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/yukikurage/scrum-board/internal/constants"
	"github.com/yukikurage/scrum-board/internal/models"
)

// TaskSuggester proposes a task breakdown for a user story.
type TaskSuggester interface {
	SuggestTasks(ctx context.Context, story models.UserStory) ([]SuggestedTask, error)
}

type AIService struct {
	client *openai.Client
}

// SuggestedTask is a task proposed for a story. Nothing is stored until the
// team creates it.
type SuggestedTask struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	EstimatedHours float64 `json:"estimated_hours"`
}

func NewAIService(apiKey string) *AIService {
	return &AIService{
		client: openai.NewClient(apiKey),
	}
}

// SuggestTasks asks the model to split a story into development tasks.
func (s *AIService) SuggestTasks(ctx context.Context, story models.UserStory) ([]SuggestedTask, error) {
	if s.client == nil {
		return nil, fmt.Errorf("OpenAI client not initialized")
	}

	prompt := fmt.Sprintf(`You are helping a Scrum team plan a sprint. Split the following user story into development tasks.

Story: %s
Description:
%s
Acceptance criteria:
%s

Return a JSON array of at most %d tasks:
[
  {
    "title": "short task title",
    "description": "what has to be done",
    "estimated_hours": 4
  }
]

Rules:
- estimated_hours is a number between %d and %d
- return [] if the story needs no further breakdown
- return only JSON, no explanation`,
		story.Name, story.Description, story.AcceptanceCriteria,
		constants.MaxAIGeneratedTasks, constants.MinEstimatedHours, constants.MaxEstimatedHours)

	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: openai.GPT4o,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: 0.3,
		},
	)

	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	return parseSuggestions(resp.Choices[0].Message.Content)
}

// parseSuggestions decodes the model output, tolerating a markdown code
// fence, and drops entries that could not be created as tasks.
func parseSuggestions(content string) ([]SuggestedTask, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var tasks []SuggestedTask
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &tasks); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w (response: %s)", err, content)
	}

	valid := make([]SuggestedTask, 0, len(tasks))
	for _, t := range tasks {
		t.Title = strings.TrimSpace(t.Title)
		if t.Title == "" {
			continue
		}
		if t.EstimatedHours < constants.MinEstimatedHours {
			t.EstimatedHours = constants.MinEstimatedHours
		}
		if t.EstimatedHours > constants.MaxEstimatedHours {
			t.EstimatedHours = constants.MaxEstimatedHours
		}
		valid = append(valid, t)
		if len(valid) == constants.MaxAIGeneratedTasks {
			break
		}
	}
	return valid, nil
}
