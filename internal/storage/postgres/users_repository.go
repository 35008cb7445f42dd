package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Togather-Foundation/checkin/internal/domain/users"
	"github.com/Togather-Foundation/checkin/internal/metrics"
	"github.com/Togather-Foundation/checkin/internal/storage"
)

const userColumns = `id, username, email, password_hash, role, created_on`

type UserRepository struct {
	conn
}

func (r *UserRepository) BeginTx(ctx context.Context) (users.Repository, storage.TxCommitter, error) {
	txConn, committer, err := r.begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	return &UserRepository{conn: txConn}, committer, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (user *users.User, err error) {
	defer recordUserQuery("users_get_by_id", time.Now(), &err)

	row := r.queryer().QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUserRow(row)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (user *users.User, err error) {
	defer recordUserQuery("users_get_by_email", time.Now(), &err)
	row := r.queryer().QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUserRow(row)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (user *users.User, err error) {
	defer recordUserQuery("users_get_by_username", time.Now(), &err)
	row := r.queryer().QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUserRow(row)
}

func (r *UserRepository) List(ctx context.Context) (list []users.User, err error) {
	defer recordUserQuery("users_list", time.Now(), &err)

	rows, err := r.queryer().Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	list = []users.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		list = append(list, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return list, nil
}

func (r *UserRepository) Create(ctx context.Context, params users.CreateParams) (user *users.User, err error) {
	defer recordUserQuery("users_insert", time.Now(), &err)

	row := r.queryer().QueryRow(ctx, `
INSERT INTO users (username, email, password_hash, role, created_on)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+userColumns,
		params.Username, params.Email, params.PasswordHash, string(params.Role), params.CreatedOn,
	)
	user, err = scanUser(row)
	if err != nil {
		return nil, mapUserWriteError("create user", err)
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, id int64, params users.UpdateParams) (user *users.User, err error) {
	defer recordUserQuery("users_update", time.Now(), &err)

	row := r.queryer().QueryRow(ctx, `
UPDATE users
   SET username = $2, email = $3, password_hash = $4, role = $5
 WHERE id = $1
RETURNING `+userColumns,
		id, params.Username, params.Email, params.PasswordHash, string(params.Role),
	)
	user, err = scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrUserNotFound
		}
		return nil, mapUserWriteError("update user", err)
	}
	return user, nil
}

// Delete removes the user; the checkins foreign key cascades.
func (r *UserRepository) Delete(ctx context.Context, id int64) (user *users.User, err error) {
	defer recordUserQuery("users_delete", time.Now(), &err)

	row := r.queryer().QueryRow(ctx, `DELETE FROM users WHERE id = $1 RETURNING `+userColumns, id)
	return scanUserRow(row)
}

func scanUserRow(row pgx.Row) (*users.User, error) {
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

func mapUserWriteError(op string, err error) error {
	if code, constraint := pgErrorCode(err); code == pgUniqueViolation {
		return fmt.Errorf("%s: %w (%s)", op, users.ErrDuplicateUser, constraint)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// recordUserQuery times a users query. A missing or duplicate user is a
// domain outcome, not a database error.
func recordUserQuery(op string, start time.Time, errp *error) {
	err := *errp
	if errors.Is(err, users.ErrUserNotFound) || errors.Is(err, users.ErrDuplicateUser) {
		err = nil
	}
	metrics.RecordQuery(op, start, err)
}
