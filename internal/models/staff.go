package models

import "time"

const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
)

// Staff is a console operator account. The current-user profile is a Staff row
// fetched by the id carried in the access token.
type Staff struct {
	ID          int64      `json:"id,omitempty"`
	Username    string     `json:"username"`
	FullName    string     `json:"full_name"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"is_active"`
	IsSuperuser bool       `json:"is_superuser"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

type StaffCreate struct {
	Username string `json:"username" form:"username" binding:"required,max=150"`
	FullName string `json:"full_name" form:"full_name" binding:"required"`
	Role     string `json:"role" form:"role" binding:"required,oneof=admin moderator"`
	Password string `json:"password" form:"password" binding:"required,min=8"`
	IsActive *bool  `json:"is_active,omitempty" form:"is_active"`
}

// StaffUpdate is sent with PATCH, so unset fields are left untouched.
type StaffUpdate struct {
	Username string `json:"username,omitempty" form:"username" binding:"omitempty,max=150"`
	FullName string `json:"full_name,omitempty" form:"full_name"`
	Role     string `json:"role,omitempty" form:"role" binding:"omitempty,oneof=admin moderator"`
	IsActive *bool  `json:"is_active,omitempty" form:"is_active"`
}

type ChangePassword struct {
	NewPassword string `json:"new_password" form:"new_password" binding:"required,min=8"`
}

// TokenPair is what the backend login endpoint hands out.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}
