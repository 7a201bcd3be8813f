package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/shulehub/shule/core"
	"github.com/shulehub/shule/core/user"
)

const userCols = "id, name, email, role, school_id, profile_image, password_hash, last_login, created_at, updated_at"

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

func (repo userRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

func (repo userRepository) scanUser(row rowScanner) (user.User, error) {
	var usr user.User
	var lastLogin sql.NullTime
	err := row.Scan(
		&usr.ID, &usr.Name, &usr.Email, &usr.Role, &usr.SchoolID, &usr.ProfileImage,
		&usr.PasswordHash, &lastLogin, &usr.CreatedAt, &usr.UpdatedAt,
	)
	if err != nil {
		return user.User{}, err
	}
	if lastLogin.Valid {
		usr.LastLogin = lastLogin.Time
	}
	return usr, nil
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if isNoRows(err) {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	query := "SELECT EXISTS (SELECT 1 FROM app_user WHERE email = ?"
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		query += " AND id NOT IN (?)"
		args = append(args, ids)
	}
	query += ")"

	query, args, err := expandIn(query, args...)
	if err != nil {
		return err
	}

	var exists bool
	if err = repo.getExec(exec).QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	query := rebind(`
		INSERT INTO app_user (id, name, email, role, school_id, profile_image, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + userCols)
	row := repo.getExec(exec).QueryRowContext(ctx, query,
		usr.ID, usr.Name, usr.Email, usr.Role, usr.SchoolID, usr.ProfileImage,
		usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt,
	)
	created, err := repo.scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return created, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var query string
	var arg interface{}

	if filter.ID != "" {
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		query = "SELECT " + userCols + " FROM app_user WHERE id = ?"
		arg = filter.ID
	} else {
		query = "SELECT " + userCols + " FROM app_user WHERE email = ?"
		arg = filter.Email
	}

	usr, err := repo.scanUser(repo.getExec(exec).QueryRowContext(ctx, rebind(query), arg))
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return usr, nil
}

// userSortable whitelists the app_user columns a caller may sort on.
var userSortable = map[string]string{
	"name":       "name",
	"email":      "email",
	"role":       "role",
	"created_at": "created_at",
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	query := "SELECT " + userCols + " FROM app_user"
	var where []string
	var args []interface{}

	if filter != nil {
		if filter.Search != "" {
			where = append(where, "(name ILIKE ? OR email ILIKE ?)")
			val := "%" + filter.Search + "%"
			args = append(args, val, val)
		}
		if filter.Role != "" {
			where = append(where, "role = ?")
			args = append(args, filter.Role)
		}
		if filter.SchoolID != "" {
			where = append(where, "school_id = ?")
			args = append(args, filter.SchoolID)
		}
		if len(filter.IDs) > 0 {
			ids := make([]string, 0, len(filter.IDs))
			for _, id := range filter.IDs {
				// malformed ids simply never match
				if _, err := uuid.Parse(id); err == nil {
					ids = append(ids, id)
				}
			}
			if len(ids) == 0 {
				return []user.User{}, nil
			}
			where = append(where, "id IN (?)")
			args = append(args, ids)
		}
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	query += orderByClause(ordering, userSortable)

	query, args, err := expandIn(query, args...)
	if err != nil {
		return nil, err
	}

	rows, err := repo.getExec(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	defer func() { _ = rows.Close() }()

	users := make([]user.User, 0)
	for rows.Next() {
		usr, err := repo.scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning user")
		}
		users = append(users, usr)
	}
	return users, errors.Wrap(rows.Err(), "querying users")
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	// zero fields are left untouched; services pass partially-filled users
	set := []string{"updated_at = ?"}
	args := []interface{}{usr.UpdatedAt}

	if usr.Name != "" {
		set = append(set, "name = ?")
		args = append(args, usr.Name)
	}
	if usr.Email != "" {
		set = append(set, "email = ?")
		args = append(args, usr.Email)
	}
	if usr.Role != "" {
		set = append(set, "role = ?")
		args = append(args, usr.Role)
	}
	if usr.SchoolID.Valid {
		set = append(set, "school_id = ?")
		args = append(args, usr.SchoolID)
	}
	if usr.ProfileImage.Valid {
		set = append(set, "profile_image = ?")
		args = append(args, usr.ProfileImage)
	}
	if len(usr.PasswordHash) > 0 {
		set = append(set, "password_hash = ?")
		args = append(args, usr.PasswordHash)
	}
	if !usr.LastLogin.IsZero() {
		set = append(set, "last_login = ?")
		args = append(args, usr.LastLogin)
	}
	args = append(args, usr.ID)

	query := rebind("UPDATE app_user SET " + strings.Join(set, ", ") + " WHERE id = ? RETURNING " + userCols)
	updated, err := repo.scanUser(repo.getExec(exec).QueryRowContext(ctx, query, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, repo.trapNoRowsErr(err, "updating user")
	}
	return updated, nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := expandIn("DELETE FROM app_user WHERE id IN (?)", ids)
	if err != nil {
		return 0, err
	}
	res, err := repo.getExec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	cnt, err := res.RowsAffected()
	return int(cnt), errors.Wrap(err, "deleting users")
}
