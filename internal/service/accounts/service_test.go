package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/identity"
	"slotbook/backend/internal/store"
)

type fakeUserRepo struct {
	createUserFn     func(ctx context.Context, user domain.User) (domain.User, error)
	getUserByEmailFn func(ctx context.Context, email string) (domain.User, error)
	getUserByIDFn    func(ctx context.Context, id uuid.UUID) (domain.User, error)
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	if f.createUserFn == nil {
		panic("unexpected CreateUser")
	}
	return f.createUserFn(ctx, user)
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	if f.getUserByEmailFn == nil {
		panic("unexpected GetUserByEmail")
	}
	return f.getUserByEmailFn(ctx, email)
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	if f.getUserByIDFn == nil {
		panic("unexpected GetUserByID")
	}
	return f.getUserByIDFn(ctx, id)
}

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (plainHasher) Compare(hash, password string) (bool, error) {
	return hash == "hashed:"+password, nil
}

type fakeIssuer struct {
	issueFn func(userID uuid.UUID, role domain.Role) (string, identity.Claims, error)
}

func (f *fakeIssuer) Issue(userID uuid.UUID, role domain.Role) (string, identity.Claims, error) {
	if f.issueFn == nil {
		panic("unexpected Issue")
	}
	return f.issueFn(userID, role)
}

type fakeRevocations struct {
	revokeFn func(ctx context.Context, tokenID string, expiresAt time.Time) error
}

func (f *fakeRevocations) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if f.revokeFn == nil {
		panic("unexpected Revoke")
	}
	return f.revokeFn(ctx, tokenID, expiresAt)
}

func (f *fakeRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	panic("not used")
}

func TestRegister_Validation(t *testing.T) {
	svc := NewService(&fakeUserRepo{}, plainHasher{}, &fakeIssuer{}, &fakeRevocations{})

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{name: "missing name", in: RegisterInput{Email: "a@b.co", Password: "longenough", Role: domain.RoleUser}},
		{name: "bad email", in: RegisterInput{Name: "A", Email: "nope", Password: "longenough", Role: domain.RoleUser}},
		{name: "display name email", in: RegisterInput{Name: "A", Email: "A <a@b.co>", Password: "longenough", Role: domain.RoleUser}},
		{name: "short password", in: RegisterInput{Name: "A", Email: "a@b.co", Password: "short", Role: domain.RoleUser}},
		{name: "unknown role", in: RegisterInput{Name: "A", Email: "a@b.co", Password: "longenough", Role: "ADMIN"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.in)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}
}

func TestRegister_HashesAndNormalizes(t *testing.T) {
	repo := &fakeUserRepo{
		createUserFn: func(ctx context.Context, user domain.User) (domain.User, error) {
			if user.Email != "ada@example.com" {
				t.Fatalf("email = %q", user.Email)
			}
			if user.PasswordHash != "hashed:correct horse" {
				t.Fatalf("hash = %q", user.PasswordHash)
			}
			user.ID = uuid.MustParse("00000000-0000-0000-0000-000000000501")
			return user, nil
		},
	}
	svc := NewService(repo, plainHasher{}, &fakeIssuer{}, &fakeRevocations{})

	u, err := svc.Register(context.Background(), RegisterInput{
		Name:     " Ada ",
		Email:    " Ada@Example.com ",
		Password: "correct horse",
		Role:     domain.RoleProvider,
	})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if u.Name != "Ada" || u.Role != domain.RoleProvider {
		t.Fatalf("user = %+v", u)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := &fakeUserRepo{
		createUserFn: func(ctx context.Context, user domain.User) (domain.User, error) {
			return domain.User{}, store.ErrConflict
		},
	}
	svc := NewService(repo, plainHasher{}, &fakeIssuer{}, &fakeRevocations{})

	_, err := svc.Register(context.Background(), RegisterInput{Name: "A", Email: "a@b.co", Password: "longenough", Role: domain.RoleUser})
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("err = %v, want %v", err, domain.ErrEmailTaken)
	}
}

func TestLogin(t *testing.T) {
	userID := uuid.MustParse("00000000-0000-0000-0000-000000000502")
	stored := domain.User{ID: userID, Email: "a@b.co", PasswordHash: "hashed:longenough", Role: domain.RoleUser}
	repo := &fakeUserRepo{
		getUserByEmailFn: func(ctx context.Context, email string) (domain.User, error) {
			if email != stored.Email {
				return domain.User{}, store.ErrNotFound
			}
			return stored, nil
		},
	}
	issuer := &fakeIssuer{
		issueFn: func(id uuid.UUID, role domain.Role) (string, identity.Claims, error) {
			return "signed", identity.Claims{UserID: id, Role: role, TokenID: "jti"}, nil
		},
	}
	svc := NewService(repo, plainHasher{}, issuer, &fakeRevocations{})

	sess, err := svc.Login(context.Background(), "A@B.co", "longenough")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if sess.Token != "signed" || sess.Claims.UserID != userID {
		t.Fatalf("session = %+v", sess)
	}
	if sess.User.PasswordHash != "" {
		t.Fatalf("password hash leaked into session")
	}

	for _, c := range []struct{ email, password string }{
		{"a@b.co", "wrong-password"},
		{"nobody@b.co", "longenough"},
		{"not-an-email", "longenough"},
	} {
		if _, err := svc.Login(context.Background(), c.email, c.password); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("Login(%q) err = %v, want %v", c.email, err, domain.ErrInvalidCredentials)
		}
	}
}

func TestLogin_StorageFailureIsPersistence(t *testing.T) {
	repo := &fakeUserRepo{
		getUserByEmailFn: func(ctx context.Context, email string) (domain.User, error) {
			return domain.User{}, errors.New("dial tcp: refused")
		},
	}
	svc := NewService(repo, plainHasher{}, &fakeIssuer{}, &fakeRevocations{})

	if _, err := svc.Login(context.Background(), "a@b.co", "longenough"); !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("err = %v, want %v", err, domain.ErrPersistence)
	}
}

func TestLogout_RevokesUntilExpiry(t *testing.T) {
	exp := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	var gotID string
	var gotExp time.Time
	rev := &fakeRevocations{
		revokeFn: func(ctx context.Context, tokenID string, expiresAt time.Time) error {
			gotID, gotExp = tokenID, expiresAt
			return nil
		},
	}
	svc := NewService(&fakeUserRepo{}, plainHasher{}, &fakeIssuer{}, rev)

	if err := svc.Logout(context.Background(), identity.Claims{TokenID: "jti-1", ExpiresAt: exp}); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	if gotID != "jti-1" || !gotExp.Equal(exp) {
		t.Fatalf("revoked %q until %s", gotID, gotExp)
	}
}
