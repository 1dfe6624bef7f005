package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	apierrors "github.com/yukikurage/scrum-board/internal/errors"
	"github.com/yukikurage/scrum-board/internal/lifecycle"
	"github.com/yukikurage/scrum-board/internal/models"
	"github.com/yukikurage/scrum-board/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrProjectNotFound       = apierrors.NewAPIError(apierrors.ErrCodeNotFound, "project not found")
	ErrInvalidProjectName    = apierrors.NewAPIError(apierrors.ErrCodeInvalidInput, "project name cannot be empty")
	ErrProjectNameTaken      = apierrors.NewAPIError(apierrors.ErrCodeAlreadyExists, "a project with this name already exists")
	ErrNotProjectMember      = apierrors.NewAPIError(apierrors.ErrCodeForbidden, "user is not a member of the project")
	ErrInsufficientRole      = apierrors.NewAPIError(apierrors.ErrCodeForbidden, "your project role does not allow this action")
	ErrInvalidRole           = apierrors.NewAPIError(apierrors.ErrCodeInvalidInput, "role must be DEVELOPER, SCRUM_MASTER or PRODUCT_OWNER")
	ErrAlreadyProjectMember  = apierrors.NewAPIError(apierrors.ErrCodeAlreadyExists, "user is already a member of this project")
	ErrProjectMemberNotFound = apierrors.NewAPIError(apierrors.ErrCodeNotFound, "project member not found")
	ErrCannotRemoveYourself  = apierrors.NewAPIError(apierrors.ErrCodeInvalidOperation, "cannot remove yourself from the project")
	ErrCannotChangeOwnRole   = apierrors.NewAPIError(apierrors.ErrCodeInvalidOperation, "cannot change your own role")
	ErrMemberUserNotFound    = apierrors.NewAPIError(apierrors.ErrCodeNotFound, "user not found")
	ErrProductOwnerExists    = apierrors.NewAPIError(apierrors.ErrCodeConflict, "the project already has a product owner")
)

// Clock returns the current time. Services take one so tests can pin dates.
type Clock func() time.Time

// ProjectService provides business logic for project and membership operations.
type ProjectService struct {
	projectRepo repository.ProjectRepository
	userRepo    repository.UserRepository
}

// NewProjectService creates a new ProjectService.
func NewProjectService(projectRepo repository.ProjectRepository, userRepo repository.UserRepository) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		userRepo:    userRepo,
	}
}

// CreateProjectInput represents parameters to create a new project.
type CreateProjectInput struct {
	Name        string
	Description string
	CreatorID   uint64
}

// CreateProject creates a new project with the creator as scrum master.
func (s *ProjectService) CreateProject(input CreateProjectInput) (*models.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrInvalidProjectName
	}

	if _, err := s.projectRepo.FindByName(name); err == nil {
		return nil, ErrProjectNameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check project name: %w", err)
	}

	project := &models.Project{
		Name:        name,
		Description: input.Description,
	}
	member := &models.ProjectMember{
		UserID:   input.CreatorID,
		Role:     models.RoleScrumMaster,
		JoinedAt: time.Now(),
	}

	if err := s.projectRepo.CreateWithOwner(project, member); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return project, nil
}

// ListProjectsForUser returns the memberships of a user, with projects loaded.
func (s *ProjectService) ListProjectsForUser(userID uint64) ([]models.ProjectMember, error) {
	memberships, err := s.projectRepo.ListMembersByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return memberships, nil
}

// GetProjectWithMembers returns a project and all of its members.
func (s *ProjectService) GetProjectWithMembers(projectID uint64) (*models.Project, []models.ProjectMember, error) {
	project, err := s.projectRepo.FindByID(projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrProjectNotFound
		}
		return nil, nil, fmt.Errorf("failed to find project: %w", err)
	}

	members, err := s.projectRepo.ListMembers(projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list project members: %w", err)
	}

	return project, members, nil
}

// UpdateProjectInput represents the editable fields of a project.
type UpdateProjectInput struct {
	Name        *string
	Description *string
}

// UpdateProject updates a project's name and description.
func (s *ProjectService) UpdateProject(projectID uint64, input UpdateProjectInput) (*models.Project, error) {
	project, err := s.projectRepo.FindByID(projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrInvalidProjectName
		}
		if name != project.Name {
			if _, err := s.projectRepo.FindByName(name); err == nil {
				return nil, ErrProjectNameTaken
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("failed to check project name: %w", err)
			}
		}
		project.Name = name
	}
	if input.Description != nil {
		project.Description = *input.Description
	}

	if err := s.projectRepo.Update(project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	return project, nil
}

// AddMember adds a user to a project with a role.
func (s *ProjectService) AddMember(projectID, userID uint64, role models.Role) (*models.ProjectMember, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	if _, err := s.userRepo.FindByID(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if _, err := s.projectRepo.FindMember(projectID, userID); err == nil {
		return nil, ErrAlreadyProjectMember
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to verify membership: %w", err)
	}

	if role == models.RoleProductOwner {
		if err := s.ensureNoProductOwner(projectID, userID); err != nil {
			return nil, err
		}
	}

	member := &models.ProjectMember{
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		JoinedAt:  time.Now(),
	}

	if err := s.projectRepo.AddMember(member); err != nil {
		return nil, fmt.Errorf("failed to add member to project: %w", err)
	}

	return member, nil
}

// UpdateMemberRole changes the role of an existing member.
func (s *ProjectService) UpdateMemberRole(projectID, actorID, targetID uint64, role models.Role) (*models.ProjectMember, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if targetID == actorID {
		return nil, ErrCannotChangeOwnRole
	}

	member, err := s.projectRepo.FindMember(projectID, targetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectMemberNotFound
		}
		return nil, fmt.Errorf("failed to find project member: %w", err)
	}

	if role == models.RoleProductOwner && member.Role != models.RoleProductOwner {
		if err := s.ensureNoProductOwner(projectID, targetID); err != nil {
			return nil, err
		}
	}

	member.Role = role
	if err := s.projectRepo.UpdateMember(member); err != nil {
		return nil, fmt.Errorf("failed to update member: %w", err)
	}

	return member, nil
}

// RemoveMember removes a member from the project.
func (s *ProjectService) RemoveMember(projectID, actorID, targetID uint64) error {
	if targetID == actorID {
		return ErrCannotRemoveYourself
	}

	if _, err := s.projectRepo.FindMember(projectID, targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectMemberNotFound
		}
		return fmt.Errorf("failed to find project member: %w", err)
	}

	if err := s.projectRepo.RemoveMember(projectID, targetID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	return nil
}

func (s *ProjectService) ensureNoProductOwner(projectID, exceptUserID uint64) error {
	members, err := s.projectRepo.ListMembers(projectID)
	if err != nil {
		return fmt.Errorf("failed to list project members: %w", err)
	}
	for _, m := range members {
		if m.Role == models.RoleProductOwner && m.UserID != exceptUserID {
			return ErrProductOwnerExists
		}
	}
	return nil
}

// resolveActor looks up userID's role in projectID.
func resolveActor(projectRepo repository.ProjectRepository, projectID, userID uint64) (lifecycle.Actor, error) {
	member, err := projectRepo.FindMember(projectID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return lifecycle.Actor{}, ErrNotProjectMember
		}
		return lifecycle.Actor{}, fmt.Errorf("failed to verify project membership: %w", err)
	}
	return lifecycle.Actor{UserID: userID, Role: member.Role}, nil
}

// requireRole fails with ErrInsufficientRole unless actor holds one of roles.
func requireRole(actor lifecycle.Actor, roles ...models.Role) error {
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return ErrInsufficientRole
}
