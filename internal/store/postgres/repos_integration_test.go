package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/store"
)

// openTestSchema migrates a throwaway schema and returns a pool whose
// connections all resolve tables inside it.
func openTestSchema(t *testing.T) *bun.DB {
	t.Helper()

	databaseURL := strings.TrimSpace(os.Getenv("SLOTBOOK_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("SLOTBOOK_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admin, err := Open(ctx, databaseURL, PoolConfig{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(admin)
	})

	schema := "slotbook_test_" + randomHex(t, 8)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = admin.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(ctx)
	})

	err = admin.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewRaw("SET LOCAL search_path TO " + schema).Exec(ctx); err != nil {
			return err
		}
		return applyMigrations(ctx, tx)
	})
	if err != nil {
		t.Fatalf("migrate error: %v", err)
	}

	scopedURL, err := withSearchPath(databaseURL, schema)
	if err != nil {
		t.Fatalf("search_path url: %v", err)
	}
	db, err := Open(ctx, scopedURL, PoolConfig{MaxOpenConns: 16})
	if err != nil {
		t.Fatalf("Open scoped error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})
	return db
}

func seedProviderService(t *testing.T, db *bun.DB, duration int) (domain.User, domain.Service) {
	t.Helper()
	ctx := context.Background()

	users := NewUserRepo(db)
	provider, err := users.CreateUser(ctx, domain.User{
		Name:         "Provider",
		Email:        "Provider-" + randomHex(t, 4) + "@example.com",
		PasswordHash: "x",
		Role:         domain.RoleProvider,
	})
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}

	svc, err := NewCatalogRepo(db).CreateService(ctx, domain.Service{
		ProviderID:      provider.ID,
		Name:            "Consultation",
		Type:            domain.ServiceTypeMedical,
		DurationMinutes: duration,
	})
	if err != nil {
		t.Fatalf("CreateService error: %v", err)
	}
	return provider, svc
}

func seedUser(t *testing.T, db *bun.DB) domain.User {
	t.Helper()
	u, err := NewUserRepo(db).CreateUser(context.Background(), domain.User{
		Name:         "Customer",
		Email:        "customer-" + randomHex(t, 4) + "@example.com",
		PasswordHash: "x",
		Role:         domain.RoleUser,
	})
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	return u
}

func TestPostgresIntegration_UsersAndCatalog(t *testing.T) {
	db := openTestSchema(t)
	ctx := context.Background()

	provider, svc := seedProviderService(t, db, 30)

	users := NewUserRepo(db)
	got, err := users.GetUserByEmail(ctx, strings.ToUpper(provider.Email))
	if err != nil {
		t.Fatalf("GetUserByEmail error: %v", err)
	}
	if got.ID != provider.ID {
		t.Fatalf("user id = %s, want %s", got.ID, provider.ID)
	}
	_, err = users.CreateUser(ctx, domain.User{Name: "dup", Email: provider.Email, PasswordHash: "x", Role: domain.RoleUser})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("duplicate email err = %v, want %v", err, store.ErrConflict)
	}
	if _, err := users.GetUserByID(ctx, uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing user err = %v, want %v", err, store.ErrNotFound)
	}

	catalog := NewCatalogRepo(db)
	first, err := catalog.CreateAvailability(ctx, domain.AvailabilityWindow{ServiceID: svc.ID, DayOfWeek: 1, StartTime: "14:00", EndTime: "16:00"})
	if err != nil {
		t.Fatalf("CreateAvailability error: %v", err)
	}
	second, err := catalog.CreateAvailability(ctx, domain.AvailabilityWindow{ServiceID: svc.ID, DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00"})
	if err != nil {
		t.Fatalf("CreateAvailability error: %v", err)
	}
	_, err = catalog.CreateAvailability(ctx, domain.AvailabilityWindow{ServiceID: svc.ID, DayOfWeek: 1, StartTime: "09:30", EndTime: "10:30"})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("overlap err = %v, want %v", err, store.ErrConflict)
	}

	windows, err := catalog.ListAvailability(ctx, svc.ID, 1)
	if err != nil {
		t.Fatalf("ListAvailability error: %v", err)
	}
	if len(windows) != 2 || windows[0].ID != first.ID || windows[1].ID != second.ID {
		t.Fatalf("windows not in storage order: %+v", windows)
	}

	listed, err := catalog.ListServices(ctx, store.ServiceFilter{Type: domain.ServiceTypeMedical})
	if err != nil {
		t.Fatalf("ListServices error: %v", err)
	}
	if len(listed) != 1 || listed[0].Provider == nil || listed[0].Provider.Name != "Provider" {
		t.Fatalf("listed services = %+v", listed)
	}
	if listed[0].Provider.PasswordHash != "" {
		t.Fatalf("provider password hash leaked")
	}
	other, err := catalog.ListServices(ctx, store.ServiceFilter{Type: domain.ServiceTypeFitness})
	if err != nil {
		t.Fatalf("ListServices error: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("len(other) = %d, want 0", len(other))
	}
}

func TestPostgresIntegration_BookingLifecycle(t *testing.T) {
	db := openTestSchema(t)
	ctx := context.Background()

	provider, svc := seedProviderService(t, db, 30)
	customer := seedUser(t, db)
	repo := NewBookingRepo(db)

	date := "2026-01-05"
	token := domain.EncodeSlotToken(svc.ID, date, "09:00")
	booking := domain.Booking{
		ID:        uuid.NewSHA1(uuid.NameSpaceOID, []byte("replay-key")),
		UserID:    customer.ID,
		ServiceID: svc.ID,
		Date:      date,
		SlotToken: token,
		StartTime: "09:00",
		EndTime:   "09:30",
	}

	b1, created, err := repo.CreateBooking(ctx, booking, 30)
	if err != nil {
		t.Fatalf("CreateBooking error: %v", err)
	}
	if !created {
		t.Fatalf("first insert reported as replay")
	}
	if b1.Status != domain.BookingStatusBooked {
		t.Fatalf("status = %s, want %s", b1.Status, domain.BookingStatusBooked)
	}

	replayed, created, err := repo.CreateBooking(ctx, booking, 30)
	if err != nil {
		t.Fatalf("replay error: %v", err)
	}
	if created {
		t.Fatalf("replay reported as a new booking")
	}
	if replayed.ID != b1.ID {
		t.Fatalf("replay id = %s, want %s", replayed.ID, b1.ID)
	}

	reused := booking
	reused.SlotToken = domain.EncodeSlotToken(svc.ID, date, "09:30")
	if _, _, err := repo.CreateBooking(ctx, reused, 30); !errors.Is(err, store.ErrIdempotencyConflict) {
		t.Fatalf("reused key err = %v, want %v", err, store.ErrIdempotencyConflict)
	}

	fresh := booking
	fresh.ID = uuid.Nil
	if _, _, err := repo.CreateBooking(ctx, fresh, 30); !errors.Is(err, store.ErrSlotTaken) {
		t.Fatalf("taken err = %v, want %v", err, store.ErrSlotTaken)
	}
	if _, _, err := repo.CreateBooking(ctx, fresh, 60); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("stale duration err = %v, want %v", err, store.ErrConflict)
	}

	schedule, err := repo.ListProviderBookings(ctx, provider.ID, date)
	if err != nil {
		t.Fatalf("ListProviderBookings error: %v", err)
	}
	if len(schedule) != 1 || schedule[0].User == nil || schedule[0].User.Name != "Customer" {
		t.Fatalf("schedule = %+v", schedule)
	}

	cancelled, err := repo.CancelBooking(ctx, customer.ID, b1.ID)
	if err != nil {
		t.Fatalf("CancelBooking error: %v", err)
	}
	if cancelled.Status != domain.BookingStatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("cancelled = %+v", cancelled)
	}
	if _, err := repo.CancelBooking(ctx, customer.ID, b1.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("second cancel err = %v, want %v", err, store.ErrConflict)
	}
	if _, err := repo.CancelBooking(ctx, provider.ID, b1.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("foreign cancel err = %v, want %v", err, store.ErrNotFound)
	}

	rebooked, _, err := repo.CreateBooking(ctx, fresh, 30)
	if err != nil {
		t.Fatalf("rebook after cancel error: %v", err)
	}
	if rebooked.ID == b1.ID {
		t.Fatalf("rebooked row reused cancelled id")
	}

	mine, err := repo.ListBookingsByUser(ctx, customer.ID)
	if err != nil {
		t.Fatalf("ListBookingsByUser error: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("len(mine) = %d, want 2", len(mine))
	}
	for _, b := range mine {
		if b.Service == nil || b.Service.ID != svc.ID {
			t.Fatalf("booking %s missing service relation", b.ID)
		}
	}

	catalog := NewCatalogRepo(db)
	edit := svc
	edit.DurationMinutes = 60
	if _, err := catalog.UpdateService(ctx, edit); !errors.Is(err, store.ErrDurationLocked) {
		t.Fatalf("duration edit err = %v, want %v", err, store.ErrDurationLocked)
	}
	rename := svc
	rename.Name = "Long consultation"
	updated, err := catalog.UpdateService(ctx, rename)
	if err != nil {
		t.Fatalf("rename error: %v", err)
	}
	if updated.Name != rename.Name {
		t.Fatalf("name = %q, want %q", updated.Name, rename.Name)
	}
}

func TestPostgresIntegration_ConcurrentBookingHasSingleWinner(t *testing.T) {
	db := openTestSchema(t)
	_, svc := seedProviderService(t, db, 30)

	const attempts = 12
	customers := make([]domain.User, attempts)
	for i := range customers {
		customers[i] = seedUser(t, db)
	}

	date := "2026-01-05"
	token := domain.EncodeSlotToken(svc.ID, date, "10:00")
	repo := NewBookingRepo(db)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
		taken   int
		other   []error
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(u domain.User) {
			defer wg.Done()
			<-start
			_, _, err := repo.CreateBooking(context.Background(), domain.Booking{
				UserID:    u.ID,
				ServiceID: svc.ID,
				Date:      date,
				SlotToken: token,
				StartTime: "10:00",
				EndTime:   "10:30",
			}, 30)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, store.ErrSlotTaken):
				taken++
			default:
				other = append(other, err)
			}
		}(customers[i])
	}
	close(start)
	wg.Wait()

	if len(other) > 0 {
		t.Fatalf("unexpected errors: %v", other)
	}
	if winners != 1 || taken != attempts-1 {
		t.Fatalf("winners = %d, taken = %d, want 1 and %d", winners, taken, attempts-1)
	}
}

func withSearchPath(databaseURL, schema string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func randomHex(t *testing.T, bytesLen int) string {
	t.Helper()
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}

type rawExecutor interface {
	NewRaw(query string, args ...any) *bun.RawQuery
}

func applyMigrations(ctx context.Context, exec rawExecutor) error {
	dir, err := migrationsDir()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	type mig struct {
		name string
		path string
	}
	migs := make([]mig, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		migs = append(migs, mig{name: e.Name(), path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(migs, func(i, j int) bool { return migs[i].name < migs[j].name })

	for _, m := range migs {
		b, err := os.ReadFile(m.path)
		if err != nil {
			return err
		}
		upSQL, err := extractGooseUp(string(b))
		if err != nil {
			return fmt.Errorf("%s: %w", m.name, err)
		}
		for _, stmt := range splitSQLStatements(upSQL) {
			if _, err := exec.NewRaw(stmt).Exec(ctx); err != nil {
				return fmt.Errorf("%s: %w", m.name, err)
			}
		}
	}
	return nil
}

func migrationsDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("runtime.Caller failed")
	}
	base := filepath.Dir(file)
	return filepath.Clean(filepath.Join(base, "..", "..", "..", "migrations")), nil
}

func extractGooseUp(sql string) (string, error) {
	upMarker := "-- +goose Up"
	downMarker := "-- +goose Down"

	upIdx := strings.Index(sql, upMarker)
	if upIdx < 0 {
		return "", fmt.Errorf("missing goose up marker")
	}
	afterUp := strings.TrimLeft(sql[upIdx+len(upMarker):], "\r\n")

	downIdx := strings.Index(afterUp, downMarker)
	if downIdx < 0 {
		return strings.TrimSpace(afterUp), nil
	}
	return strings.TrimSpace(afterUp[:downIdx]), nil
}

func splitSQLStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
