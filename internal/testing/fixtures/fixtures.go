package fixtures

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/forgo/occasions/api/internal/database"
	"github.com/forgo/occasions/api/internal/model"
	"github.com/forgo/occasions/api/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// DefaultPassword is the plaintext password of every fixture user
const DefaultPassword = "testpass123"

// Factory creates test entities in the database
type Factory struct {
	users       *repository.UserRepository
	occasions   *repository.OccasionRepository
	attendances *repository.AttendanceRepository
	groups      *repository.GroupRepository
}

// New creates a new fixture factory
func New(db database.Database) *Factory {
	return &Factory{
		users:       repository.NewUserRepository(db),
		occasions:   repository.NewOccasionRepository(db),
		attendances: repository.NewAttendanceRepository(db),
		groups:      repository.NewGroupRepository(db),
	}
}

// randomID generates a random hex ID
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return c
}

// UserOpts customizes user creation
type UserOpts struct {
	UserID   string
	FullName string
	Password string
	Role     model.UserRole
}

// CreateUser creates a member with a random member number
func (f *Factory) CreateUser(t *testing.T, opts ...func(*UserOpts)) *model.User {
	t.Helper()

	o := &UserOpts{
		UserID:   fmt.Sprintf("m_%s", randomID()),
		FullName: "Test Member",
		Password: DefaultPassword,
		Role:     model.UserRoleMember,
	}
	for _, fn := range opts {
		fn(o)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(o.Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("fixtures: failed to hash password: %v", err)
	}

	user := &model.User{
		UserID:   o.UserID,
		FullName: o.FullName,
		Role:     o.Role,
		Hash:     string(hash),
	}
	if err := f.users.Create(ctx(t), user); err != nil {
		t.Fatalf("fixtures: failed to create user: %v", err)
	}
	user.Hash = ""
	return user
}

// CreateAdmin creates an admin member
func (f *Factory) CreateAdmin(t *testing.T) *model.User {
	return f.CreateUser(t, func(o *UserOpts) {
		o.Role = model.UserRoleAdmin
	})
}

// CreateGroup creates a group administered by admin, who becomes its first
// member
func (f *Factory) CreateGroup(t *testing.T, admin *model.User) *model.Group {
	t.Helper()

	group := &model.Group{Name: fmt.Sprintf("Group %s", randomID()), Admin: admin.ID}
	if err := f.groups.Create(ctx(t), group); err != nil {
		t.Fatalf("fixtures: failed to create group: %v", err)
	}
	if err := f.groups.AddMember(ctx(t), admin.ID, group.ID); err != nil {
		t.Fatalf("fixtures: failed to add group admin: %v", err)
	}
	return group
}

// OccasionOpts customizes occasion creation
type OccasionOpts struct {
	Name    string
	Status  model.OccasionStatus
	StartAt time.Time
	EndsAt  time.Time
	Events  []model.OccasionEvent
}

// WithWindow sets the occasion to start at start and run the standard length
func WithWindow(start time.Time) func(*OccasionOpts) {
	return func(o *OccasionOpts) {
		o.StartAt = start
		o.EndsAt = start.Add(model.OccasionDuration)
	}
}

// WithStatus overrides the initial status
func WithStatus(s model.OccasionStatus) func(*OccasionOpts) {
	return func(o *OccasionOpts) {
		o.Status = s
	}
}

// CreateOccasion stores an occasion created by creator. It defaults to a
// pending occasion starting one day from now. The store is written
// directly, so overlap checks do not apply.
func (f *Factory) CreateOccasion(t *testing.T, creator *model.User, opts ...func(*OccasionOpts)) *model.Occasion {
	t.Helper()

	start := time.Now().Add(24 * time.Hour).Truncate(time.Minute)
	o := &OccasionOpts{
		Name:    fmt.Sprintf("Occasion %s", randomID()),
		Status:  model.OccasionStatusPending,
		StartAt: start,
		EndsAt:  start.Add(model.OccasionDuration),
	}
	for _, fn := range opts {
		fn(o)
	}

	occasion := &model.Occasion{
		Name:      o.Name,
		CreatedBy: creator.ID,
		Status:    o.Status,
		StartAt:   o.StartAt,
		EndsAt:    o.EndsAt,
		Events:    o.Events,
	}
	if err := f.occasions.Create(ctx(t), occasion); err != nil {
		t.Fatalf("fixtures: failed to create occasion: %v", err)
	}
	return occasion
}

// MarkAttendance records status for user at occasion
func (f *Factory) MarkAttendance(t *testing.T, occasion *model.Occasion, user *model.User, status model.AttendanceStatus) *model.Attendance {
	t.Helper()

	now := time.Now().UTC()
	a := &model.Attendance{
		OccasionID:  occasion.ID,
		UserID:      user.ID,
		Status:      status,
		CheckedInAt: &now,
	}
	if err := f.attendances.Upsert(ctx(t), a); err != nil {
		t.Fatalf("fixtures: failed to mark attendance: %v", err)
	}
	return a
}
