package models

// Role grants capabilities to a user.
type Role string

const (
	RoleSubmitter Role = "submitter"
	RoleApprover  Role = "approver"
)

// User represents an authenticated caller of the registry.
type User struct {
	Base
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	Name     string `json:"name"`
	Role     Role   `gorm:"not null;default:submitter" json:"role"`
	IsActive bool   `gorm:"default:true" json:"is_active"`
}

// CanApprove reports whether the user holds the approver capability.
func (u *User) CanApprove() bool {
	return u.Role == RoleApprover
}
