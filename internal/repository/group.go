package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/forgo/occasions/api/internal/database"
	"github.com/forgo/occasions/api/internal/model"
)

const (
	groupTable = "user_group"
	userTable  = "user"
)

// GroupRepository handles group data access. Membership is a member_of
// relation from user to group.
type GroupRepository struct {
	db database.Database
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(db database.Database) *GroupRepository {
	return &GroupRepository{db: db}
}

// Create creates a new group
func (r *GroupRepository) Create(ctx context.Context, group *model.Group) error {
	query := `
		CREATE user_group CONTENT {
			name: $name,
			admin: $admin,
			created_on: time::now(),
			updated_on: time::now()
		}
	`
	vars := map[string]interface{}{
		"name":  group.Name,
		"admin": group.Admin,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: group name already exists", database.ErrDuplicate)
		}
		return err
	}

	record, err := database.FirstRecord(result)
	if err != nil {
		return err
	}
	created, err := parseGroupResult(record)
	if err != nil {
		return err
	}

	*group = *created
	return nil
}

// GetByID retrieves a group by ID. Returns nil, nil when absent.
func (r *GroupRepository) GetByID(ctx context.Context, id string) (*model.Group, error) {
	key, ok := recordKey(groupTable, id)
	if !ok {
		return nil, nil
	}
	query := `SELECT * FROM type::thing($tb, $id)`
	vars := map[string]interface{}{"tb": groupTable, "id": key}

	return r.queryGroup(ctx, query, vars)
}

// GetByName retrieves a group by its unique name. Returns nil, nil when absent.
func (r *GroupRepository) GetByName(ctx context.Context, name string) (*model.Group, error) {
	query := `SELECT * FROM user_group WHERE name = $name LIMIT 1`
	vars := map[string]interface{}{"name": name}

	return r.queryGroup(ctx, query, vars)
}

// List retrieves all groups by name
func (r *GroupRepository) List(ctx context.Context) ([]*model.Group, error) {
	result, err := r.db.Query(ctx, `SELECT * FROM user_group ORDER BY name`, nil)
	if err != nil {
		return nil, err
	}

	records := database.Records(result)
	groups := make([]*model.Group, 0, len(records))
	for _, rec := range records {
		group, err := parseGroupResult(rec)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// Update writes the group's name and admin
func (r *GroupRepository) Update(ctx context.Context, group *model.Group) error {
	key, ok := recordKey(groupTable, group.ID)
	if !ok {
		return fmt.Errorf("%w: %s", database.ErrNotFound, group.ID)
	}
	query := `
		UPDATE type::thing($tb, $id) SET
			name = $name,
			admin = $admin,
			updated_on = time::now()
	`
	vars := map[string]interface{}{
		"tb":    groupTable,
		"id":    key,
		"name":  group.Name,
		"admin": group.Admin,
	}

	if err := r.db.Execute(ctx, query, vars); err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: group name already exists", database.ErrDuplicate)
		}
		return err
	}
	return nil
}

// Delete removes a group and its membership edges
func (r *GroupRepository) Delete(ctx context.Context, id string) error {
	key, ok := recordKey(groupTable, id)
	if !ok {
		return fmt.Errorf("%w: %s", database.ErrNotFound, id)
	}
	vars := map[string]interface{}{"tb": groupTable, "id": key}

	// Remove all member relationships first
	if err := r.db.Execute(ctx, `DELETE member_of WHERE out = type::thing($tb, $id)`, vars); err != nil {
		return err
	}
	return r.db.Execute(ctx, `DELETE type::thing($tb, $id)`, vars)
}

// AddMember relates a user to a group
func (r *GroupRepository) AddMember(ctx context.Context, userID, groupID string) error {
	vars, err := memberVars(userID, groupID)
	if err != nil {
		return err
	}
	query := `RELATE (SELECT * FROM type::thing($user_tb, $user))->member_of->(SELECT * FROM type::thing($group_tb, $group)) SET joined_on = time::now()`

	if err := r.db.Execute(ctx, query, vars); err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: already a member", database.ErrDuplicate)
		}
		return err
	}
	return nil
}

// RemoveMember removes a user from a group
func (r *GroupRepository) RemoveMember(ctx context.Context, userID, groupID string) error {
	vars, err := memberVars(userID, groupID)
	if err != nil {
		return err
	}
	query := `DELETE member_of WHERE in = type::thing($user_tb, $user) AND out = type::thing($group_tb, $group)`
	return r.db.Execute(ctx, query, vars)
}

// RemoveUserFromAll drops every membership edge of a user
func (r *GroupRepository) RemoveUserFromAll(ctx context.Context, userID string) error {
	key, ok := recordKey(userTable, userID)
	if !ok {
		return fmt.Errorf("%w: %s", database.ErrNotFound, userID)
	}
	query := `DELETE member_of WHERE in = type::thing($tb, $id)`
	return r.db.Execute(ctx, query, map[string]interface{}{"tb": userTable, "id": key})
}

// IsMember checks if a user is a member of a group
func (r *GroupRepository) IsMember(ctx context.Context, userID, groupID string) (bool, error) {
	vars, err := memberVars(userID, groupID)
	if err != nil {
		return false, nil
	}
	query := `SELECT count() AS count FROM member_of WHERE in = type::thing($user_tb, $user) AND out = type::thing($group_tb, $group) GROUP ALL`

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return extractCount(result) > 0, nil
}

// CountMembers counts members in a group
func (r *GroupRepository) CountMembers(ctx context.Context, groupID string) (int, error) {
	key, ok := recordKey(groupTable, groupID)
	if !ok {
		return 0, nil
	}
	query := `SELECT count() AS count FROM member_of WHERE out = type::thing($tb, $id) GROUP ALL`

	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"tb": groupTable, "id": key})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return extractCount(result), nil
}

// GetMembers retrieves all members of a group
func (r *GroupRepository) GetMembers(ctx context.Context, groupID string) ([]*model.User, error) {
	key, ok := recordKey(groupTable, groupID)
	if !ok {
		return []*model.User{}, nil
	}
	query := `SELECT in.* AS member FROM member_of WHERE out = type::thing($tb, $id) ORDER BY joined_on`

	result, err := r.db.Query(ctx, query, map[string]interface{}{"tb": groupTable, "id": key})
	if err != nil {
		return nil, err
	}

	records := database.Records(result)
	members := make([]*model.User, 0, len(records))
	for _, rec := range records {
		row, ok := rec.(map[string]interface{})
		if !ok {
			continue
		}
		data, ok := row["member"].(map[string]interface{})
		if !ok {
			continue // edge to a deleted user
		}
		user, err := parseUserResult(data)
		if err != nil {
			return nil, err
		}
		members = append(members, user)
	}
	return members, nil
}

func (r *GroupRepository) queryGroup(ctx context.Context, query string, vars map[string]interface{}) (*model.Group, error) {
	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	group, err := parseGroupResult(result)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return group, nil
}

func memberVars(userID, groupID string) (map[string]interface{}, error) {
	user, ok := recordKey(userTable, userID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", database.ErrNotFound, userID)
	}
	group, ok := recordKey(groupTable, groupID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", database.ErrNotFound, groupID)
	}
	return map[string]interface{}{
		"user_tb":  userTable,
		"user":     user,
		"group_tb": groupTable,
		"group":    group,
	}, nil
}

func parseGroupResult(result interface{}) (*model.Group, error) {
	data, err := unwrapRecord(result)
	if err != nil {
		return nil, err
	}

	var group model.Group
	if err := decodeRecord(data, &group); err != nil {
		return nil, fmt.Errorf("decode group: %w", err)
	}
	return &group, nil
}
