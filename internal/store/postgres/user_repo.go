package postgres

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/store"
)

type UserRepo struct {
	db *bun.DB
}

func NewUserRepo(db *bun.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	m := domain.User{
		ID:           user.ID,
		Name:         user.Name,
		Email:        strings.ToLower(user.Email),
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
	}

	_, err := r.db.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		if code, ok := pgErrorCode(err); ok && code == pgUniqueViolation {
			return domain.User{}, store.ErrConflict
		}
		return domain.User{}, persistence(err)
	}
	return m, nil
}

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var m domain.User
	err := r.db.NewSelect().
		Model(&m).
		Where("email = ?", strings.ToLower(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return m, nil
}

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	var m domain.User
	err := r.db.NewSelect().
		Model(&m).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return m, nil
}
