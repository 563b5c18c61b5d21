package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/forgo/occasions/api/internal/database"
	"github.com/forgo/occasions/api/internal/model"
)

// UserRepository handles user data access
type UserRepository struct {
	db database.Database
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.Database) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	// Default to member role if not specified
	role := user.Role
	if role == "" {
		role = model.UserRoleMember
	}

	query := `
		CREATE user CONTENT {
			userid: $userid,
			fullname: $fullname,
			email: $email,
			phone: $phone,
			address: $address,
			title: $title,
			grade: $grade,
			belongsto: $belongsto,
			role: $role,
			hash: $hash,
			created_on: time::now(),
			updated_on: time::now()
		}
	`

	vars := map[string]interface{}{
		"userid":    user.UserID,
		"fullname":  user.FullName,
		"email":     user.Email,
		"phone":     user.Phone,
		"address":   user.Address,
		"title":     user.Title,
		"grade":     user.Grade,
		"belongsto": user.BelongsTo,
		"role":      string(role),
		"hash":      user.Hash,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: userid already exists", database.ErrDuplicate)
		}
		return err
	}

	record, err := database.FirstRecord(result)
	if err != nil {
		return err
	}
	created, err := parseUserResult(record)
	if err != nil {
		return err
	}

	user.ID = created.ID
	user.Role = role
	user.CreatedOn = created.CreatedOn
	user.UpdatedOn = created.UpdatedOn
	return nil
}

// GetByUserID retrieves a user by member number. Returns nil, nil when absent.
func (r *UserRepository) GetByUserID(ctx context.Context, userID string) (*model.User, error) {
	query := `SELECT * FROM user WHERE userid = $userid LIMIT 1`
	vars := map[string]interface{}{"userid": userID}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	user, err := parseUserResult(result)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// GetByID retrieves a user by record ID. Returns nil, nil when absent or
// when id names a record in another table.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	key, ok := recordKey(userTable, id)
	if !ok {
		return nil, nil
	}
	query := `SELECT * FROM type::thing($tb, $id)`
	vars := map[string]interface{}{"tb": userTable, "id": key}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	user, err := parseUserResult(result)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// List retrieves all users ordered by member number
func (r *UserRepository) List(ctx context.Context) ([]*model.User, error) {
	result, err := r.db.Query(ctx, `SELECT * FROM user ORDER BY userid`, nil)
	if err != nil {
		return nil, err
	}
	return parseUsersResult(result)
}

// Count counts all users
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT count() AS count FROM user GROUP ALL`, nil)
}

// CountByGroup counts users whose belongsto is group
func (r *UserRepository) CountByGroup(ctx context.Context, group string) (int, error) {
	query := `SELECT count() AS count FROM user WHERE belongsto = $group GROUP ALL`
	return r.count(ctx, query, map[string]interface{}{"group": group})
}

// FindContactConflict returns another user (userid != excludeUserID) that
// already uses any of the non-empty fullname, email or phone values.
func (r *UserRepository) FindContactConflict(ctx context.Context, excludeUserID, fullName, email, phone string) (*model.User, error) {
	var clauses []string
	vars := map[string]interface{}{"userid": excludeUserID}
	if fullName != "" {
		clauses = append(clauses, "fullname = $fullname")
		vars["fullname"] = fullName
	}
	if email != "" {
		clauses = append(clauses, "email = $email")
		vars["email"] = email
	}
	if phone != "" {
		clauses = append(clauses, "phone = $phone")
		vars["phone"] = phone
	}
	if len(clauses) == 0 {
		return nil, nil
	}

	query := `SELECT * FROM user WHERE userid != $userid AND (` + strings.Join(clauses, " OR ") + `) LIMIT 1`
	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return parseUserResult(result)
}

// Update applies field updates and returns the updated user, or nil when
// the user does not exist.
func (r *UserRepository) Update(ctx context.Context, id string, updates map[string]interface{}) (*model.User, error) {
	key, ok := recordKey(userTable, id)
	if !ok {
		return nil, nil
	}
	query := `UPDATE user SET updated_on = time::now()`
	vars := map[string]interface{}{"tb": userTable, "user_id": key}
	for _, k := range sortedKeys(updates) {
		query += ", " + k + " = $" + k
		vars[k] = updates[k]
	}
	query += ` WHERE id = type::thing($tb, $user_id) RETURN AFTER`

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return parseUserResult(result)
}

// ReassignGroup moves every user whose belongsto is from to to. An empty
// to clears it. Returns the number of users changed.
func (r *UserRepository) ReassignGroup(ctx context.Context, from, to string) (int, error) {
	query := `UPDATE user SET belongsto = $to, updated_on = time::now() WHERE belongsto = $from RETURN AFTER`
	vars := map[string]interface{}{"from": from, "to": to}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return 0, err
	}
	return len(database.Records(result)), nil
}

// Delete deletes a user and its group memberships. Returns false when it
// did not exist.
func (r *UserRepository) Delete(ctx context.Context, id string) (bool, error) {
	key, ok := recordKey(userTable, id)
	if !ok {
		return false, nil
	}
	vars := map[string]interface{}{"tb": userTable, "id": key}

	if err := r.db.Execute(ctx, `DELETE member_of WHERE in = type::thing($tb, $id)`, vars); err != nil {
		return false, err
	}
	result, err := r.db.Query(ctx, `DELETE type::thing($tb, $id) RETURN BEFORE`, vars)
	if err != nil {
		return false, err
	}
	return len(database.Records(result)) > 0, nil
}

func (r *UserRepository) count(ctx context.Context, query string, vars map[string]interface{}) (int, error) {
	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return extractCount(result), nil
}

func parseUsersResult(result []interface{}) ([]*model.User, error) {
	records := database.Records(result)
	users := make([]*model.User, 0, len(records))
	for _, rec := range records {
		user, err := parseUserResult(rec)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func parseUserResult(result interface{}) (*model.User, error) {
	data, err := unwrapRecord(result)
	if err != nil {
		return nil, err
	}

	// Hash is skipped by json:"-"
	hash := getString(data, "hash")

	var user model.User
	if err := decodeRecord(data, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	user.Hash = hash
	return &user, nil
}
