package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/identity"
	"slotbook/backend/internal/store"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72 // bcrypt ignores bytes past 72
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) (bool, error)
}

type TokenIssuer interface {
	Issue(userID uuid.UUID, role domain.Role) (string, identity.Claims, error)
}

type Service struct {
	users       store.UserRepository
	hasher      PasswordHasher
	tokens      TokenIssuer
	revocations store.RevocationStore
}

func NewService(users store.UserRepository, hasher PasswordHasher, tokens TokenIssuer, revocations store.RevocationStore) *Service {
	return &Service{users: users, hasher: hasher, tokens: tokens, revocations: revocations}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.User{}, domain.NewValidationError("name is required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return domain.User{}, err
	}
	if len(in.Password) < minPasswordLength {
		return domain.User{}, domain.NewValidationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if len(in.Password) > maxPasswordLength {
		return domain.User{}, domain.NewValidationError(fmt.Sprintf("password must be at most %d bytes", maxPasswordLength))
	}
	if !in.Role.Valid() {
		return domain.User{}, domain.NewValidationError("role must be USER or SERVICE_PROVIDER")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.CreateUser(ctx, domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, translate(err)
	}
	return u, nil
}

type Session struct {
	Token  string
	User   domain.User
	Claims identity.Claims
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return Session{}, domain.ErrInvalidCredentials
	}

	u, err := s.users.GetUserByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, domain.ErrInvalidCredentials
		}
		return Session{}, translate(err)
	}

	ok, err := s.hasher.Compare(u.PasswordHash, password)
	if err != nil {
		return Session{}, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return Session{}, domain.ErrInvalidCredentials
	}

	token, claims, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	u.PasswordHash = ""
	return Session{Token: token, User: u, Claims: claims}, nil
}

// Logout revokes the presented token until it would have expired.
func (s *Service) Logout(ctx context.Context, claims identity.Claims) error {
	if claims.TokenID == "" {
		return domain.NewValidationError("token id is required")
	}
	if err := s.revocations.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return translate(err)
	}
	return nil
}

func (s *Service) Me(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, domain.ErrInvalidCredentials
		}
		return domain.User{}, translate(err)
	}
	u.PasswordHash = ""
	return u, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.NewValidationError("email is invalid")
	}
	return email, nil
}

func translate(err error) error {
	if errors.Is(err, domain.ErrPersistence) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
}
