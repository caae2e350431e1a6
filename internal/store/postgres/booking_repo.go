package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/store"
)

type BookingRepo struct {
	db *bun.DB
}

func NewBookingRepo(db *bun.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

// CreateBooking relies on the partial unique index over active slot tokens:
// the insert either lands or does nothing, and exactly one concurrent caller
// sees a row affected.
func (r *BookingRepo) CreateBooking(ctx context.Context, b domain.Booking, durationMinutes int) (domain.Booking, bool, error) {
	m := domain.Booking{
		ID:        b.ID,
		UserID:    b.UserID,
		ServiceID: b.ServiceID,
		Date:      b.Date,
		SlotToken: b.SlotToken,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		Status:    domain.BookingStatusBooked,
	}

	var (
		out     domain.Booking
		created bool
	)
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockService(ctx, tx, m.ServiceID.String(), true); err != nil {
			return err
		}

		var current int
		err := tx.NewSelect().
			Model((*domain.Service)(nil)).
			Column("duration_minutes").
			Where("id = ?", m.ServiceID).
			Scan(ctx, &current)
		if err != nil {
			return notFound(err)
		}
		if current != durationMinutes {
			return store.ErrConflict
		}

		res, err := tx.NewInsert().
			Model(&m).
			On("CONFLICT DO NOTHING").
			Exec(ctx)
		if err != nil {
			if code, ok := pgErrorCode(err); ok && code == pgForeignKeyViolation {
				return store.ErrNotFound
			}
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 1 {
			out, created = m, true
			return nil
		}

		existing, err := getBooking(ctx, tx, m.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return store.ErrSlotTaken
		case err != nil:
			return err
		}
		if existing.UserID != m.UserID || existing.SlotToken != m.SlotToken {
			return store.ErrIdempotencyConflict
		}
		out = existing
		return nil
	})
	if err != nil {
		return domain.Booking{}, false, persistence(err)
	}
	return out, created, nil
}

func (r *BookingRepo) ListBookingsByUser(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := r.db.NewSelect().
		Model(&rows).
		Relation("Service").
		Where("?TableAlias.user_id = ?", userID).
		OrderExpr("?TableAlias.date ASC, ?TableAlias.start_time ASC, ?TableAlias.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, persistence(err)
	}
	return rows, nil
}

func (r *BookingRepo) CancelBooking(ctx context.Context, userID, bookingID uuid.UUID) (domain.Booking, error) {
	now := time.Now().UTC()
	m := domain.Booking{ID: bookingID}
	res, err := r.db.NewUpdate().
		Model(&m).
		Set("status = ?", domain.BookingStatusCancelled).
		Set("cancelled_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", bookingID).
		Where("user_id = ?", userID).
		Where("status = ?", domain.BookingStatusBooked).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return domain.Booking{}, persistence(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Booking{}, persistence(err)
	}
	if affected == 1 {
		return m, nil
	}

	existing, err := getBooking(ctx, r.db, bookingID)
	if err != nil {
		return domain.Booking{}, persistence(err)
	}
	if existing.UserID != userID {
		return domain.Booking{}, store.ErrNotFound
	}
	return domain.Booking{}, store.ErrConflict
}

func (r *BookingRepo) ListProviderBookings(ctx context.Context, providerID uuid.UUID, date string) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := r.db.NewSelect().
		Model(&rows).
		Relation("Service").
		Relation("User", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.ExcludeColumn("password_hash")
		}).
		Where("service.provider_id = ?", providerID).
		Where("?TableAlias.date = ?", date).
		Where("?TableAlias.status = ?", domain.BookingStatusBooked).
		OrderExpr("?TableAlias.service_id ASC, ?TableAlias.start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, persistence(err)
	}
	return rows, nil
}

func getBooking(ctx context.Context, db bun.IDB, id uuid.UUID) (domain.Booking, error) {
	var m domain.Booking
	err := db.NewSelect().
		Model(&m).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Booking{}, store.ErrNotFound
		}
		return domain.Booking{}, err
	}
	return m, nil
}
