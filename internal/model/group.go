package model

import "time"

// Group is a named set of members with at most one group admin. Members
// also carry the group name in User.BelongsTo.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Admin     string    `json:"admin,omitempty"` // user record ID
	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

// GroupData is a group with its members
type GroupData struct {
	Group   Group   `json:"group"`
	Members []*User `json:"members"`
}

// MaxGroupNameLength bounds group names
const MaxGroupNameLength = 100

// CreateGroupRequest creates a group around an existing user (AdminID) or a
// new one (User). Exactly one must be set.
type CreateGroupRequest struct {
	Name    string             `json:"name"`
	AdminID string             `json:"admin_id,omitempty"`
	User    *CreateUserRequest `json:"user,omitempty"`
}

// UpdateGroupRequest renames a group
type UpdateGroupRequest struct {
	Name *string `json:"name,omitempty"`
}

// TransferGroupAdminRequest hands the group admin role to another user
type TransferGroupAdminRequest struct {
	NewAdminID string `json:"new_admin_id"`
}

// GroupMemberRequest names a user to add to a group
type GroupMemberRequest struct {
	UserID string `json:"user_id"`
}

// TransferGroupMemberRequest moves a member to another group
type TransferGroupMemberRequest struct {
	NewGroupID string `json:"new_group_id"`
}
