package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"taskboard/internal/models"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// Users persists user records in Postgres. Users are created on
// registration and read on login; they are never updated or deleted here.
type Users struct {
	DB *sql.DB
}

func NewUsers(db *sql.DB) *Users {
	return &Users{DB: db}
}

func (r *Users) Create(ctx context.Context, name, email, passwordHash, role string) (models.User, error) {
	var user models.User
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO users (name, email, password, role) VALUES ($1, $2, $3, $4)
		 RETURNING id, name, email, password, role, created_at, updated_at`,
		name, email, passwordHash, role,
	).Scan(&user.ID, &user.Name, &user.Email, &user.Password, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return user, nil
}

func (r *Users) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, name, email, password, role, created_at, updated_at FROM users WHERE email = $1`,
		email,
	).Scan(&user.ID, &user.Name, &user.Email, &user.Password, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}
