package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/forgo/occasions/api/internal/database"
	"github.com/forgo/occasions/api/internal/model"
)

// GroupRepository defines the interface for group storage
type GroupRepository interface {
	Create(ctx context.Context, group *model.Group) error
	GetByID(ctx context.Context, id string) (*model.Group, error)
	GetByName(ctx context.Context, name string) (*model.Group, error)
	List(ctx context.Context) ([]*model.Group, error)
	Update(ctx context.Context, group *model.Group) error
	Delete(ctx context.Context, id string) error
	AddMember(ctx context.Context, userID, groupID string) error
	RemoveMember(ctx context.Context, userID, groupID string) error
	IsMember(ctx context.Context, userID, groupID string) (bool, error)
	CountMembers(ctx context.Context, groupID string) (int, error)
	GetMembers(ctx context.Context, groupID string) ([]*model.User, error)
}

// GroupUserRepository is the slice of user storage groups need
type GroupUserRepository interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) (*model.User, error)
	ReassignGroup(ctx context.Context, from, to string) (int, error)
}

// UserCreator registers new members
type UserCreator interface {
	Create(ctx context.Context, req *model.CreateUserRequest) (*model.User, error)
}

// GroupNotification is the payload of group created and updated events
type GroupNotification struct {
	Group *model.Group `json:"group"`
}

// GroupDeletedNotification is the payload of the group deleted event
type GroupDeletedNotification struct {
	GroupID string `json:"group_id"`
}

// GroupMemberNotification is the payload of the membership event
type GroupMemberNotification struct {
	GroupID string `json:"group_id"`
	UserID  string `json:"user_id"`
	Change  string `json:"change"` // added, removed
}

// GroupService handles groups, their admin and their members
type GroupService struct {
	repo     GroupRepository
	users    GroupUserRepository
	creator  UserCreator
	notifier Notifier
}

// GroupServiceConfig holds configuration for the group service
type GroupServiceConfig struct {
	GroupRepo GroupRepository
	UserRepo  GroupUserRepository
	// Creator registers the admin when a group is created with user details
	Creator  UserCreator
	Notifier Notifier
}

// NewGroupService creates a new group service
func NewGroupService(cfg GroupServiceConfig) *GroupService {
	return &GroupService{
		repo:     cfg.GroupRepo,
		users:    cfg.UserRepo,
		creator:  cfg.Creator,
		notifier: cfg.Notifier,
	}
}

// List returns every group
func (s *GroupService) List(ctx context.Context) ([]*model.Group, error) {
	groups, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

// Get returns a group with its members
func (s *GroupService) Get(ctx context.Context, id string) (*model.GroupData, error) {
	group, err := s.getGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withMembers(ctx, group)
}

// CountMembers returns the number of members of a group
func (s *GroupService) CountMembers(ctx context.Context, id string) (int, error) {
	if _, err := s.getGroup(ctx, id); err != nil {
		return 0, err
	}
	n, err := s.repo.CountMembers(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return n, nil
}

// Create makes a group administered by an existing user (AdminID) or by a
// user registered from req.User. The admin becomes the first member.
func (s *GroupService) Create(ctx context.Context, req *model.CreateGroupRequest) (*model.GroupData, error) {
	name, err := validateGroupName(req.Name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, name); err != nil {
		return nil, err
	}

	var admin *model.User
	switch {
	case req.AdminID != "":
		admin, err = s.users.GetByID(ctx, req.AdminID)
		if err != nil {
			return nil, fmt.Errorf("failed to get admin: %w", err)
		}
		if admin == nil {
			return nil, ErrInvalidGroupAdmin
		}
	case req.User != nil:
		details := *req.User
		details.BelongsTo = name
		details.Role = model.UserRoleGroupAdmin
		admin, err = s.creator.Create(ctx, &details)
		if err != nil {
			return nil, err
		}
	default:
		return nil, ErrGroupAdminRequired
	}

	group := &model.Group{Name: name, Admin: admin.ID}
	if err := s.repo.Create(ctx, group); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrGroupNameExists
		}
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	if err := s.repo.AddMember(ctx, admin.ID, group.ID); err != nil {
		return nil, fmt.Errorf("failed to add admin: %w", err)
	}
	if err := s.joinGroup(ctx, admin, group.Name, true); err != nil {
		return nil, err
	}

	s.publish(EventGroupCreated, GroupNotification{Group: group})
	return s.withMembers(ctx, group)
}

// Update renames a group. Members follow the new name.
func (s *GroupService) Update(ctx context.Context, id string, req *model.UpdateGroupRequest) (*model.Group, error) {
	group, err := s.getGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name == nil {
		return group, nil
	}

	name, err := validateGroupName(*req.Name)
	if err != nil {
		return nil, err
	}
	if name == group.Name {
		return group, nil
	}
	if err := s.ensureNameFree(ctx, name); err != nil {
		return nil, err
	}

	oldName := group.Name
	group.Name = name
	if err := s.save(ctx, group); err != nil {
		return nil, err
	}
	if _, err := s.users.ReassignGroup(ctx, oldName, name); err != nil {
		return nil, fmt.Errorf("failed to rename members' group: %w", err)
	}

	s.publish(EventGroupUpdated, GroupNotification{Group: group})
	return group, nil
}

// Delete removes a group. Its members no longer belong to any group.
func (s *GroupService) Delete(ctx context.Context, id string) error {
	group, err := s.getGroup(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, group.ID); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if _, err := s.users.ReassignGroup(ctx, group.Name, ""); err != nil {
		return fmt.Errorf("failed to clear members' group: %w", err)
	}

	s.publish(EventGroupDeleted, GroupDeletedNotification{GroupID: group.ID})
	return nil
}

// TransferAdmin makes newAdminID the group admin. A plain member is promoted
// to groupadmin and the previous group admin is demoted to member.
func (s *GroupService) TransferAdmin(ctx context.Context, id, newAdminID string) (*model.Group, error) {
	group, err := s.getGroup(ctx, id)
	if err != nil {
		return nil, err
	}

	newAdmin, err := s.users.GetByID(ctx, newAdminID)
	if err != nil {
		return nil, fmt.Errorf("failed to get new admin: %w", err)
	}
	if newAdmin == nil {
		return nil, ErrInvalidGroupAdmin
	}
	if newAdmin.ID == group.Admin {
		return group, nil
	}

	if newAdmin.Role == model.UserRoleMember {
		if err := s.setRole(ctx, newAdmin.ID, model.UserRoleGroupAdmin); err != nil {
			return nil, err
		}
	}

	if group.Admin != "" {
		previous, err := s.users.GetByID(ctx, group.Admin)
		if err != nil {
			return nil, fmt.Errorf("failed to get previous admin: %w", err)
		}
		// org-wide admins keep their role
		if previous != nil && previous.Role == model.UserRoleGroupAdmin {
			if err := s.setRole(ctx, previous.ID, model.UserRoleMember); err != nil {
				return nil, err
			}
		}
	}

	group.Admin = newAdmin.ID
	if err := s.save(ctx, group); err != nil {
		return nil, err
	}

	s.publish(EventGroupUpdated, GroupNotification{Group: group})
	return group, nil
}

// AddMember adds an existing user to a group
func (s *GroupService) AddMember(ctx context.Context, id, userID string) (*model.GroupData, error) {
	group, err := s.getGroup(ctx, id)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || user.Role == model.UserRoleSuperAdmin {
		return nil, ErrInvalidGroupMember
	}

	member, err := s.repo.IsMember(ctx, user.ID, group.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if member {
		return nil, ErrAlreadyGroupMember
	}
	if group.Admin != "" && user.Role == model.UserRoleGroupAdmin {
		return nil, ErrGroupHasAdmin
	}

	if err := s.repo.AddMember(ctx, user.ID, group.ID); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrAlreadyGroupMember
		}
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	if err := s.joinGroup(ctx, user, group.Name, false); err != nil {
		return nil, err
	}

	s.publish(EventGroupMembersChanged, GroupMemberNotification{GroupID: group.ID, UserID: user.ID, Change: "added"})
	return s.withMembers(ctx, group)
}

// TransferMember moves a member of one group into another
func (s *GroupService) TransferMember(ctx context.Context, id, userID, newGroupID string) (*model.GroupData, error) {
	from, err := s.getGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	to, err := s.getGroup(ctx, newGroupID)
	if err != nil {
		return nil, err
	}

	user, err := s.requireMember(ctx, userID, from)
	if err != nil {
		return nil, err
	}

	if err := s.repo.RemoveMember(ctx, user.ID, from.ID); err != nil {
		return nil, fmt.Errorf("failed to remove member: %w", err)
	}
	if err := s.dropAdmin(ctx, from, user.ID); err != nil {
		return nil, err
	}

	already, err := s.repo.IsMember(ctx, user.ID, to.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !already {
		if err := s.repo.AddMember(ctx, user.ID, to.ID); err != nil {
			return nil, fmt.Errorf("failed to add member: %w", err)
		}
	}
	if err := s.joinGroup(ctx, user, to.Name, false); err != nil {
		return nil, err
	}

	s.publish(EventGroupMembersChanged, GroupMemberNotification{GroupID: from.ID, UserID: user.ID, Change: "removed"})
	s.publish(EventGroupMembersChanged, GroupMemberNotification{GroupID: to.ID, UserID: user.ID, Change: "added"})
	return s.withMembers(ctx, to)
}

// RemoveMember removes a member from a group. A removed group admin leaves
// the group without one.
func (s *GroupService) RemoveMember(ctx context.Context, id, userID string) error {
	group, err := s.getGroup(ctx, id)
	if err != nil {
		return err
	}
	user, err := s.requireMember(ctx, userID, group)
	if err != nil {
		return err
	}

	if err := s.repo.RemoveMember(ctx, user.ID, group.ID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if err := s.dropAdmin(ctx, group, user.ID); err != nil {
		return err
	}
	if _, err := s.users.Update(ctx, user.ID, map[string]interface{}{"belongsto": ""}); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	s.publish(EventGroupMembersChanged, GroupMemberNotification{GroupID: group.ID, UserID: user.ID, Change: "removed"})
	return nil
}

func (s *GroupService) getGroup(ctx context.Context, id string) (*model.Group, error) {
	group, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	return group, nil
}

func (s *GroupService) withMembers(ctx context.Context, group *model.Group) (*model.GroupData, error) {
	members, err := s.repo.GetMembers(ctx, group.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	return &model.GroupData{Group: *group, Members: members}, nil
}

func (s *GroupService) ensureNameFree(ctx context.Context, name string) error {
	existing, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check group name: %w", err)
	}
	if existing != nil {
		return ErrGroupNameExists
	}
	return nil
}

func (s *GroupService) save(ctx context.Context, group *model.Group) error {
	if err := s.repo.Update(ctx, group); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return ErrGroupNameExists
		}
		return fmt.Errorf("failed to update group: %w", err)
	}
	return nil
}

func (s *GroupService) requireMember(ctx context.Context, userID string, group *model.Group) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrNotGroupMember
	}
	member, err := s.repo.IsMember(ctx, user.ID, group.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !member {
		return nil, ErrNotGroupMember
	}
	return user, nil
}

// joinGroup records the group name on the user. asAdmin promotes a plain
// member to groupadmin.
func (s *GroupService) joinGroup(ctx context.Context, user *model.User, name string, asAdmin bool) error {
	updates := map[string]interface{}{}
	if user.BelongsTo != name {
		updates["belongsto"] = name
	}
	if asAdmin && user.Role == model.UserRoleMember {
		updates["role"] = string(model.UserRoleGroupAdmin)
	}
	if len(updates) == 0 {
		return nil
	}
	if _, err := s.users.Update(ctx, user.ID, updates); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (s *GroupService) dropAdmin(ctx context.Context, group *model.Group, userID string) error {
	if group.Admin != userID {
		return nil
	}
	group.Admin = ""
	return s.save(ctx, group)
}

func (s *GroupService) setRole(ctx context.Context, userID string, role model.UserRole) error {
	if _, err := s.users.Update(ctx, userID, map[string]interface{}{"role": string(role)}); err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	return nil
}

func (s *GroupService) publish(name string, payload any) {
	if s.notifier != nil {
		s.notifier.Publish(name, payload)
	}
}

func validateGroupName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrGroupNameRequired
	}
	if utf8.RuneCountInString(name) > model.MaxGroupNameLength {
		return "", ErrGroupNameTooLong
	}
	return name, nil
}
