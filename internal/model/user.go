package model

import "time"

// UserRole represents the role of a user in the organization
type UserRole string

const (
	UserRoleMember     UserRole = "member"     // Default role
	UserRoleGroupAdmin UserRole = "groupadmin" // Manages a group and its occasions
	UserRoleAdmin      UserRole = "admin"      // Creates and removes occasions
	UserRoleSuperAdmin UserRole = "superadmin" // Full access
)

// IsValid reports whether r is a known role
func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleMember, UserRoleGroupAdmin, UserRoleAdmin, UserRoleSuperAdmin:
		return true
	}
	return false
}

// User represents a member of the organization
type User struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userid"` // Organization-issued member number, used to log in
	FullName  string    `json:"fullname"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Title     string    `json:"title,omitempty"`
	Grade     string    `json:"grade,omitempty"`
	BelongsTo string    `json:"belongsto,omitempty"` // Group name
	Role      UserRole  `json:"role"`
	Hash      string    `json:"-"` // Never expose password hash
	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

// IsAdmin returns true if the user can create and remove occasions
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin || u.Role == UserRoleSuperAdmin
}

// CanManageGroup returns true if the user can update occasions and members
func (u *User) CanManageGroup() bool {
	return u.IsAdmin() || u.Role == UserRoleGroupAdmin
}

// CreateUserRequest represents a request to add a member
type CreateUserRequest struct {
	UserID    string   `json:"userid"`
	Password  string   `json:"password"`
	FullName  string   `json:"fullname"`
	Email     string   `json:"email,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Address   string   `json:"address,omitempty"`
	Title     string   `json:"title,omitempty"`
	Grade     string   `json:"grade,omitempty"`
	BelongsTo string   `json:"belongsto,omitempty"`
	Role      UserRole `json:"role,omitempty"`
}

// UpdateUserRequest changes member details. The userid and group are fixed
// here; group membership changes go through the group endpoints.
type UpdateUserRequest struct {
	FullName *string   `json:"fullname,omitempty"`
	Email    *string   `json:"email,omitempty"`
	Phone    *string   `json:"phone,omitempty"`
	Address  *string   `json:"address,omitempty"`
	Title    *string   `json:"title,omitempty"`
	Grade    *string   `json:"grade,omitempty"`
	Role     *UserRole `json:"role,omitempty"`
	Password *string   `json:"password,omitempty"`
}
