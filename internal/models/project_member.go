package models

import "time"

// Role is the part a user plays inside one project.
type Role string

const (
	RoleDeveloper    Role = "DEVELOPER"
	RoleScrumMaster  Role = "SCRUM_MASTER"
	RoleProductOwner Role = "PRODUCT_OWNER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleDeveloper, RoleScrumMaster, RoleProductOwner:
		return true
	default:
		return false
	}
}

type ProjectMember struct {
	ProjectID uint64    `gorm:"primarykey" json:"project_id"`
	UserID    uint64    `gorm:"primarykey" json:"user_id"`
	Role      Role      `gorm:"type:varchar(20);not null" json:"role"`
	JoinedAt  time.Time `json:"joined_at"`

	// Relations
	Project Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	User    User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
