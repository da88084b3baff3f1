package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/xid"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

var userColumns = []string{
	"id", "email", "name", "password_hash",
	"is_active", "is_staff", "is_superuser",
	"created_at", "updated_at",
}

// CreateUser inserts user, filling in ID and timestamps.
// A taken email (compared case-insensitively) returns repository.ErrDuplicate.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := exec(ctx, db.conn, db.sb.Insert("users").
		Columns(userColumns...).
		Values(
			user.ID, user.Email, user.Name, user.PasswordHash,
			user.IsActive, user.IsStaff, user.IsSuperuser,
			user.CreatedAt, user.UpdatedAt,
		))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sqldb: inserting user %q: %w", user.Email, repository.ErrDuplicate)
		}
		return fmt.Errorf("sqldb: inserting user %q: %w", user.Email, err)
	}

	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, sq.Eq{"id": id}, id)
}

// GetUserByEmail matches the address case-insensitively.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, sq.Expr("lower(email) = lower(?)", email), email)
}

func (db *DB) getUser(ctx context.Context, where sq.Sqlizer, key string) (*model.User, error) {
	row, err := queryRow(ctx, db.conn, db.sb.Select(userColumns...).From("users").Where(where))
	if err != nil {
		return nil, fmt.Errorf("sqldb: getting user %s: %w", key, err)
	}

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("sqldb: getting user %s: %w", key, err)
	}

	return u, nil
}

// UpdateUser writes every mutable column of user and bumps UpdatedAt.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	result, err := exec(ctx, db.conn, db.sb.Update("users").
		Set("email", user.Email).
		Set("name", user.Name).
		Set("password_hash", user.PasswordHash).
		Set("is_active", user.IsActive).
		Set("is_staff", user.IsStaff).
		Set("is_superuser", user.IsSuperuser).
		Set("updated_at", user.UpdatedAt).
		Where(sq.Eq{"id": user.ID}))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sqldb: updating user %s: %w", user.ID, repository.ErrDuplicate)
		}
		return fmt.Errorf("sqldb: updating user %s: %w", user.ID, err)
	}

	return requireAffected(result, "user", user.ID)
}

// ListUsers returns users ordered by email.
func (db *DB) ListUsers(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	b := db.sb.Select(userColumns...).From("users").OrderBy("email ASC")
	// SQLite rejects OFFSET without LIMIT.
	if opts.Limit > 0 {
		b = b.Limit(uint64(opts.Limit))
		if opts.Offset > 0 {
			b = b.Offset(uint64(opts.Offset))
		}
	}

	rows, err := query(ctx, db.conn, b)
	if err != nil {
		return nil, fmt.Errorf("sqldb: listing users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqldb: scanning user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqldb: iterating users: %w", err)
	}

	return users, nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*model.User, error) {
	var u model.User
	err := s.Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash,
		&u.IsActive, &u.IsStaff, &u.IsSuperuser,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// requireAffected turns "zero rows changed" into a NotFound for resource/id.
func requireAffected(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqldb: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
