package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/campushub/campushub/internal/auth"
	"github.com/campushub/campushub/internal/model"
	"github.com/campushub/campushub/internal/utils"
)

// UserRepo reads and writes the users table. It backs both the
// authenticator's directory lookup and the login credential check.
type UserRepo struct {
	DB         *sql.DB
	bcryptCost int
}

func NewUserRepo(db *sql.DB, bcryptCost int) *UserRepo {
	return &UserRepo{DB: db, bcryptCost: bcryptCost}
}

const userColumns = "id,email,role,suspended,created_at"

// FindByID loads the identity snapshot for one user.
func (r *UserRepo) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	if errors.Is(err, auth.ErrUserNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("select user %d: %w", id, err)
	}
	return u, nil
}

// GetByEmail fetches a user by normalized email together with the stored
// password hash. The hash never travels further than the caller's
// bcrypt comparison.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var (
		u    model.User
		role string
		hash string
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,role,suspended,created_at FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Email, &hash, &role, &u.Suspended, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", auth.ErrUserNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("select user by email: %w", err)
	}
	u.Role = model.Role(role)
	return &u, hash, nil
}

// Create inserts a user with a bcrypt-hashed password and returns the
// stored row.
func (r *UserRepo) Create(ctx context.Context, email, password string, role model.Role) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, r.bcryptCost)
	if err != nil {
		return nil, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role) VALUES (?,?,?)",
		email, hash, string(role))
	if err != nil {
		// 1062 = duplicate entry on the unique email index
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, uint64(id))
}

// SetSuspended flips the suspended flag. Cache invalidation is the
// caller's job.
func (r *UserRepo) SetSuspended(ctx context.Context, id uint64, suspended bool) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET suspended=? WHERE id=?", suspended, id)
	if err != nil {
		return fmt.Errorf("update user %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// a same-value update also reports zero rows, so probe for existence
		_, err := r.FindByID(ctx, id)
		return err
	}
	return nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &role, &u.Suspended, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}
