package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/forgo/occasions/api/internal/database"
	"github.com/forgo/occasions/api/internal/model"
	"golang.org/x/crypto/bcrypt"
)

const (
	// bcrypt cost factor (10-14 recommended for production)
	bcryptCost = 12

	// Password constraints
	minPasswordLength = 8
	maxPasswordLength = 72 // bcrypt limit
)

// UserRepository defines the interface for user storage
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUserID(ctx context.Context, userID string) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)
	Count(ctx context.Context) (int, error)
	CountByGroup(ctx context.Context, group string) (int, error)
	FindContactConflict(ctx context.Context, excludeUserID, fullName, email, phone string) (*model.User, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) (*model.User, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// UserGroupRepository is the slice of group storage user removal needs
type UserGroupRepository interface {
	GetByName(ctx context.Context, name string) (*model.Group, error)
	Update(ctx context.Context, group *model.Group) error
}

// UserService handles member accounts
type UserService struct {
	repo   UserRepository
	groups UserGroupRepository
	cost   int
}

// UserServiceConfig holds configuration for the user service
type UserServiceConfig struct {
	UserRepo UserRepository
	// Groups lets Delete hand a removed group admin's role on. Optional.
	Groups UserGroupRepository
	// BcryptCost overrides the hashing cost. Zero uses the default.
	BcryptCost int
}

// NewUserService creates a new user service
func NewUserService(cfg UserServiceConfig) *UserService {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcryptCost
	}
	return &UserService{
		repo:   cfg.UserRepo,
		groups: cfg.Groups,
		cost:   cost,
	}
}

// Create registers a member with a hashed password
func (s *UserService) Create(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	userID := strings.TrimSpace(req.UserID)
	fullName := strings.TrimSpace(req.FullName)

	if userID == "" {
		return nil, ErrUserIDRequired
	}
	if fullName == "" {
		return nil, ErrFullNameRequired
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = model.UserRoleMember
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	existing, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check userid: %w", err)
	}
	if existing != nil {
		return nil, ErrUserIDAlreadyExists
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		UserID:    userID,
		FullName:  fullName,
		Email:     strings.TrimSpace(strings.ToLower(req.Email)),
		Phone:     req.Phone,
		Address:   req.Address,
		Title:     req.Title,
		Grade:     req.Grade,
		BelongsTo: req.BelongsTo,
		Role:      role,
		Hash:      hash,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrUserIDAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByUserID retrieves a member by their organization-issued ID
func (s *UserService) GetByUserID(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// List returns every member
func (s *UserService) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Count returns the number of members
func (s *UserService) Count(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// CountByGroup returns the number of members whose belongsto is group
func (s *UserService) CountByGroup(ctx context.Context, group string) (int, error) {
	n, err := s.repo.CountByGroup(ctx, group)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// Update changes a member's details. fullname, email and phone must stay
// unique across members.
func (s *UserService) Update(ctx context.Context, userID string, req *model.UpdateUserRequest) (*model.User, error) {
	user, err := s.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	var fullName, email, phone string
	if req.FullName != nil {
		fullName = strings.TrimSpace(*req.FullName)
		if fullName == "" {
			return nil, ErrFullNameRequired
		}
		updates["fullname"] = fullName
	}
	if req.Email != nil {
		email = strings.TrimSpace(strings.ToLower(*req.Email))
		updates["email"] = email
	}
	if req.Phone != nil {
		phone = strings.TrimSpace(*req.Phone)
		updates["phone"] = phone
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Grade != nil {
		updates["grade"] = *req.Grade
	}
	if req.Role != nil {
		if !req.Role.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRole, *req.Role)
		}
		updates["role"] = string(*req.Role)
	}
	if req.Password != nil {
		if err := validatePassword(*req.Password); err != nil {
			return nil, err
		}
		hash, err := s.hashPassword(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		updates["hash"] = hash
	}
	if len(updates) == 0 {
		return user, nil
	}

	conflict, err := s.repo.FindContactConflict(ctx, user.UserID, fullName, email, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to check user details: %w", err)
	}
	if conflict != nil {
		return nil, ErrUserDetailsTaken
	}

	updated, err := s.repo.Update(ctx, user.ID, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if updated == nil {
		return nil, ErrUserNotFound
	}
	return updated, nil
}

// Delete removes a member and their group memberships. When the member is
// their group's admin, replacementID (a user record ID, optional) takes the
// role; otherwise the group is left without an admin.
func (s *UserService) Delete(ctx context.Context, userID, replacementID string) error {
	user, err := s.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}

	var replacement *model.User
	if replacementID != "" {
		replacement, err = s.repo.GetByID(ctx, replacementID)
		if err != nil {
			return fmt.Errorf("failed to get replacement admin: %w", err)
		}
		if replacement == nil || replacement.ID == user.ID {
			return ErrInvalidReplacement
		}
	}

	if err := s.handOverGroup(ctx, user, replacement); err != nil {
		return err
	}

	existed, err := s.repo.Delete(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if !existed {
		return ErrUserNotFound
	}
	return nil
}

func (s *UserService) handOverGroup(ctx context.Context, user, replacement *model.User) error {
	if s.groups == nil || user.BelongsTo == "" {
		return nil
	}
	group, err := s.groups.GetByName(ctx, user.BelongsTo)
	if err != nil {
		return fmt.Errorf("failed to get group: %w", err)
	}
	if group == nil || group.Admin != user.ID {
		return nil
	}

	group.Admin = ""
	if replacement != nil {
		if replacement.Role == model.UserRoleMember {
			if _, err := s.repo.Update(ctx, replacement.ID, map[string]interface{}{"role": string(model.UserRoleGroupAdmin)}); err != nil {
				return fmt.Errorf("failed to promote replacement admin: %w", err)
			}
		}
		group.Admin = replacement.ID
	}
	if err := s.groups.Update(ctx, group); err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	return nil
}

// Authenticate checks a userid and password pair
func (s *UserService) Authenticate(ctx context.Context, userID, password string) (*model.User, error) {
	user, err := s.repo.GetByUserID(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || user.Hash == "" {
		return nil, ErrInvalidCredentials
	}
	if !checkPassword(password, user.Hash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func validatePassword(password string) error {
	switch {
	case password == "":
		return ErrPasswordRequired
	case len(password) < minPasswordLength:
		return ErrPasswordTooShort
	case len(password) > maxPasswordLength:
		return ErrPasswordTooLong
	}
	return nil
}

func (s *UserService) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
