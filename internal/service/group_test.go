package service

import (
	"context"
	"testing"

	"github.com/forgo/occasions/api/internal/database"
	"github.com/forgo/occasions/api/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// In-memory group and user stores
// ============================================================================

type memGroupRepo struct {
	groups  map[string]*model.Group
	members map[string][]string // group ID -> user IDs in join order
	next    int
}

func newMemGroupRepo() *memGroupRepo {
	return &memGroupRepo{groups: map[string]*model.Group{}, members: map[string][]string{}}
}

func (m *memGroupRepo) Create(ctx context.Context, group *model.Group) error {
	for _, g := range m.groups {
		if g.Name == group.Name {
			return database.ErrDuplicate
		}
	}
	m.next++
	group.ID = "user_group:g" + string(rune('0'+m.next))
	stored := *group
	m.groups[group.ID] = &stored
	return nil
}

func (m *memGroupRepo) GetByID(ctx context.Context, id string) (*model.Group, error) {
	g, ok := m.groups[id]
	if !ok {
		return nil, nil
	}
	out := *g
	return &out, nil
}

func (m *memGroupRepo) GetByName(ctx context.Context, name string) (*model.Group, error) {
	for _, g := range m.groups {
		if g.Name == name {
			out := *g
			return &out, nil
		}
	}
	return nil, nil
}

func (m *memGroupRepo) List(ctx context.Context) ([]*model.Group, error) {
	out := make([]*model.Group, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, g)
	}
	return out, nil
}

func (m *memGroupRepo) Update(ctx context.Context, group *model.Group) error {
	stored := *group
	m.groups[group.ID] = &stored
	return nil
}

func (m *memGroupRepo) Delete(ctx context.Context, id string) error {
	delete(m.groups, id)
	delete(m.members, id)
	return nil
}

func (m *memGroupRepo) AddMember(ctx context.Context, userID, groupID string) error {
	m.members[groupID] = append(m.members[groupID], userID)
	return nil
}

func (m *memGroupRepo) RemoveMember(ctx context.Context, userID, groupID string) error {
	kept := m.members[groupID][:0]
	for _, id := range m.members[groupID] {
		if id != userID {
			kept = append(kept, id)
		}
	}
	m.members[groupID] = kept
	return nil
}

func (m *memGroupRepo) IsMember(ctx context.Context, userID, groupID string) (bool, error) {
	for _, id := range m.members[groupID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memGroupRepo) CountMembers(ctx context.Context, groupID string) (int, error) {
	return len(m.members[groupID]), nil
}

func (m *memGroupRepo) GetMembers(ctx context.Context, groupID string) ([]*model.User, error) {
	out := make([]*model.User, 0, len(m.members[groupID]))
	for _, id := range m.members[groupID] {
		out = append(out, &model.User{ID: id})
	}
	return out, nil
}

type memUsers struct {
	users    map[string]*model.User
	reassign [][2]string
	created  *model.CreateUserRequest
}

func newMemUsers(users ...*model.User) *memUsers {
	m := &memUsers{users: map[string]*model.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

func (m *memUsers) Update(ctx context.Context, id string, updates map[string]interface{}) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	if v, ok := updates["belongsto"].(string); ok {
		u.BelongsTo = v
	}
	if v, ok := updates["role"].(string); ok {
		u.Role = model.UserRole(v)
	}
	out := *u
	return &out, nil
}

func (m *memUsers) ReassignGroup(ctx context.Context, from, to string) (int, error) {
	m.reassign = append(m.reassign, [2]string{from, to})
	return 0, nil
}

func (m *memUsers) Create(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	m.created = req
	u := &model.User{ID: "user:new", UserID: req.UserID, BelongsTo: req.BelongsTo, Role: req.Role}
	m.users[u.ID] = u
	return u, nil
}

type groupFixture struct {
	svc      *GroupService
	groups   *memGroupRepo
	users    *memUsers
	notifier *recordingNotifier
}

func newGroupFixture(users ...*model.User) *groupFixture {
	f := &groupFixture{
		groups:   newMemGroupRepo(),
		users:    newMemUsers(users...),
		notifier: &recordingNotifier{},
	}
	f.svc = NewGroupService(GroupServiceConfig{
		GroupRepo: f.groups,
		UserRepo:  f.users,
		Creator:   f.users,
		Notifier:  f.notifier,
	})
	return f
}

// seed stores a group with the given admin and members
func (f *groupFixture) seed(name, admin string, members ...string) *model.Group {
	g := &model.Group{Name: name, Admin: admin}
	_ = f.groups.Create(context.Background(), g)
	for _, id := range members {
		_ = f.groups.AddMember(context.Background(), id, g.ID)
		if u, ok := f.users.users[id]; ok {
			u.BelongsTo = name
		}
	}
	return g
}

func member(id string) *model.User {
	return &model.User{ID: id, Role: model.UserRoleMember}
}

// ============================================================================
// Create / Update / Delete
// ============================================================================

func TestGroupCreate_WithExistingAdmin(t *testing.T) {
	f := newGroupFixture(member("user:amina"))

	data, err := f.svc.Create(context.Background(), &model.CreateGroupRequest{
		Name:    "  North  ",
		AdminID: "user:amina",
	})

	require.NoError(t, err)
	assert.Equal(t, "North", data.Group.Name)
	assert.Equal(t, "user:amina", data.Group.Admin)
	require.Len(t, data.Members, 1)
	assert.Equal(t, "user:amina", data.Members[0].ID)

	amina := f.users.users["user:amina"]
	assert.Equal(t, model.UserRoleGroupAdmin, amina.Role)
	assert.Equal(t, "North", amina.BelongsTo)
	assert.Equal(t, []string{EventGroupCreated}, f.notifier.names())
}

func TestGroupCreate_RegistersNewAdmin(t *testing.T) {
	f := newGroupFixture()

	data, err := f.svc.Create(context.Background(), &model.CreateGroupRequest{
		Name: "South",
		User: &model.CreateUserRequest{UserID: "30401", FullName: "Bola", Role: model.UserRoleAdmin},
	})

	require.NoError(t, err)
	require.NotNil(t, f.users.created)
	assert.Equal(t, "South", f.users.created.BelongsTo)
	assert.Equal(t, model.UserRoleGroupAdmin, f.users.created.Role)
	assert.Equal(t, "user:new", data.Group.Admin)
}

func TestGroupCreate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		req     model.CreateGroupRequest
		wantErr error
	}{
		{"blank name", model.CreateGroupRequest{Name: " ", AdminID: "user:amina"}, ErrGroupNameRequired},
		{"name taken", model.CreateGroupRequest{Name: "North", AdminID: "user:amina"}, ErrGroupNameExists},
		{"no admin", model.CreateGroupRequest{Name: "East"}, ErrGroupAdminRequired},
		{"unknown admin", model.CreateGroupRequest{Name: "East", AdminID: "user:ghost"}, ErrInvalidGroupAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGroupFixture(member("user:amina"))
			f.seed("North", "")

			_, err := f.svc.Create(context.Background(), &tt.req)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Len(t, f.groups.groups, 1)
		})
	}
}

func TestGroupUpdate_RenameMovesMembers(t *testing.T) {
	f := newGroupFixture()
	g := f.seed("North", "")

	updated, err := f.svc.Update(context.Background(), g.ID, &model.UpdateGroupRequest{Name: strPtr("Northwest")})

	require.NoError(t, err)
	assert.Equal(t, "Northwest", updated.Name)
	assert.Equal(t, [][2]string{{"North", "Northwest"}}, f.users.reassign)
	assert.Equal(t, []string{EventGroupUpdated}, f.notifier.names())
}

func TestGroupUpdate_SameNameIsNoop(t *testing.T) {
	f := newGroupFixture()
	g := f.seed("North", "")

	_, err := f.svc.Update(context.Background(), g.ID, &model.UpdateGroupRequest{Name: strPtr("North")})

	require.NoError(t, err)
	assert.Empty(t, f.users.reassign)
	assert.Empty(t, f.notifier.names())
}

func TestGroupUpdate_NameTaken(t *testing.T) {
	f := newGroupFixture()
	g := f.seed("North", "")
	f.seed("South", "")

	_, err := f.svc.Update(context.Background(), g.ID, &model.UpdateGroupRequest{Name: strPtr("South")})

	assert.ErrorIs(t, err, ErrGroupNameExists)
}

func TestGroupDelete_ClearsMembersGroup(t *testing.T) {
	f := newGroupFixture()
	g := f.seed("North", "")

	require.NoError(t, f.svc.Delete(context.Background(), g.ID))

	assert.Empty(t, f.groups.groups)
	assert.Equal(t, [][2]string{{"North", ""}}, f.users.reassign)
	assert.Equal(t, []string{EventGroupDeleted}, f.notifier.names())
}

func TestGroupDelete_NotFound(t *testing.T) {
	f := newGroupFixture()

	err := f.svc.Delete(context.Background(), "user_group:missing")

	assert.ErrorIs(t, err, ErrGroupNotFound)
}

// ============================================================================
// Admin and members
// ============================================================================

func TestGroupTransferAdmin_PromotesAndDemotes(t *testing.T) {
	lead := &model.User{ID: "user:lead", Role: model.UserRoleGroupAdmin}
	f := newGroupFixture(lead, member("user:next"))
	g := f.seed("North", "user:lead", "user:lead", "user:next")

	updated, err := f.svc.TransferAdmin(context.Background(), g.ID, "user:next")

	require.NoError(t, err)
	assert.Equal(t, "user:next", updated.Admin)
	assert.Equal(t, model.UserRoleGroupAdmin, f.users.users["user:next"].Role)
	assert.Equal(t, model.UserRoleMember, f.users.users["user:lead"].Role)
	assert.Equal(t, "user:next", f.groups.groups[g.ID].Admin)
}

func TestGroupTransferAdmin_KeepsOrgAdminRole(t *testing.T) {
	boss := &model.User{ID: "user:boss", Role: model.UserRoleAdmin}
	f := newGroupFixture(boss, member("user:next"))
	g := f.seed("North", "user:boss", "user:boss", "user:next")

	_, err := f.svc.TransferAdmin(context.Background(), g.ID, "user:next")

	require.NoError(t, err)
	assert.Equal(t, model.UserRoleAdmin, f.users.users["user:boss"].Role)
}

func TestGroupTransferAdmin_UnknownUser(t *testing.T) {
	f := newGroupFixture()
	g := f.seed("North", "")

	_, err := f.svc.TransferAdmin(context.Background(), g.ID, "user:ghost")

	assert.ErrorIs(t, err, ErrInvalidGroupAdmin)
}

func TestGroupAddMember(t *testing.T) {
	f := newGroupFixture(member("user:amina"))
	g := f.seed("North", "")

	data, err := f.svc.AddMember(context.Background(), g.ID, "user:amina")

	require.NoError(t, err)
	require.Len(t, data.Members, 1)
	assert.Equal(t, "North", f.users.users["user:amina"].BelongsTo)
	assert.Equal(t, model.UserRoleMember, f.users.users["user:amina"].Role)
	assert.Equal(t, []string{EventGroupMembersChanged}, f.notifier.names())
}

func TestGroupAddMember_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		wantErr error
	}{
		{"unknown user", "user:ghost", ErrInvalidGroupMember},
		{"superadmin", "user:root", ErrInvalidGroupMember},
		{"already member", "user:in", ErrAlreadyGroupMember},
		{"second group admin", "user:other-lead", ErrGroupHasAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGroupFixture(
				&model.User{ID: "user:root", Role: model.UserRoleSuperAdmin},
				member("user:in"),
				&model.User{ID: "user:lead", Role: model.UserRoleGroupAdmin},
				&model.User{ID: "user:other-lead", Role: model.UserRoleGroupAdmin},
			)
			g := f.seed("North", "user:lead", "user:lead", "user:in")

			_, err := f.svc.AddMember(context.Background(), g.ID, tt.userID)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Len(t, f.groups.members[g.ID], 2)
		})
	}
}

func TestGroupTransferMember_MovesAdminOut(t *testing.T) {
	lead := &model.User{ID: "user:lead", Role: model.UserRoleGroupAdmin}
	f := newGroupFixture(lead)
	from := f.seed("North", "user:lead", "user:lead")
	to := f.seed("South", "")

	data, err := f.svc.TransferMember(context.Background(), from.ID, "user:lead", to.ID)

	require.NoError(t, err)
	assert.Equal(t, "South", data.Group.Name)
	assert.Empty(t, f.groups.members[from.ID])
	assert.Equal(t, []string{"user:lead"}, f.groups.members[to.ID])
	assert.Empty(t, f.groups.groups[from.ID].Admin)
	assert.Equal(t, "South", f.users.users["user:lead"].BelongsTo)
	assert.Equal(t, []string{EventGroupMembersChanged, EventGroupMembersChanged}, f.notifier.names())
}

func TestGroupTransferMember_RequiresMembership(t *testing.T) {
	f := newGroupFixture(member("user:amina"))
	from := f.seed("North", "")
	to := f.seed("South", "")

	_, err := f.svc.TransferMember(context.Background(), from.ID, "user:amina", to.ID)

	assert.ErrorIs(t, err, ErrNotGroupMember)
}

func TestGroupTransferMember_UnknownTarget(t *testing.T) {
	f := newGroupFixture(member("user:amina"))
	from := f.seed("North", "", "user:amina")

	_, err := f.svc.TransferMember(context.Background(), from.ID, "user:amina", "user_group:missing")

	assert.ErrorIs(t, err, ErrGroupNotFound)
	assert.Equal(t, []string{"user:amina"}, f.groups.members[from.ID])
}

func TestGroupRemoveMember_ClearsAdminAndGroup(t *testing.T) {
	lead := &model.User{ID: "user:lead", Role: model.UserRoleGroupAdmin}
	f := newGroupFixture(lead)
	g := f.seed("North", "user:lead", "user:lead")

	require.NoError(t, f.svc.RemoveMember(context.Background(), g.ID, "user:lead"))

	assert.Empty(t, f.groups.members[g.ID])
	assert.Empty(t, f.groups.groups[g.ID].Admin)
	assert.Empty(t, f.users.users["user:lead"].BelongsTo)
}

func TestGroupCountMembers(t *testing.T) {
	f := newGroupFixture(member("user:a"), member("user:b"))
	g := f.seed("North", "", "user:a", "user:b")

	n, err := f.svc.CountMembers(context.Background(), g.ID)

	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = f.svc.CountMembers(context.Background(), "user_group:missing")
	assert.ErrorIs(t, err, ErrGroupNotFound)
}
