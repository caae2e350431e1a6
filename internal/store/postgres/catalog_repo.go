package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"slotbook/backend/internal/domain"
	"slotbook/backend/internal/store"
)

type CatalogRepo struct {
	db *bun.DB
}

func NewCatalogRepo(db *bun.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

type catalogTx struct {
	tx bun.Tx
}

func (r *CatalogRepo) CreateService(ctx context.Context, svc domain.Service) (domain.Service, error) {
	m := domain.Service{
		ID:              svc.ID,
		ProviderID:      svc.ProviderID,
		Name:            svc.Name,
		Type:            svc.Type,
		DurationMinutes: svc.DurationMinutes,
	}

	_, err := r.db.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		if code, ok := pgErrorCode(err); ok && code == pgForeignKeyViolation {
			return domain.Service{}, store.ErrNotFound
		}
		return domain.Service{}, persistence(err)
	}
	return m, nil
}

func (r *CatalogRepo) GetService(ctx context.Context, id uuid.UUID) (domain.Service, error) {
	var m domain.Service
	err := r.db.NewSelect().
		Model(&m).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Service{}, notFound(err)
	}
	return m, nil
}

func (r *CatalogRepo) ListServices(ctx context.Context, filter store.ServiceFilter) ([]domain.Service, error) {
	var rows []domain.Service
	q := r.db.NewSelect().
		Model(&rows).
		Relation("Provider", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.ExcludeColumn("password_hash")
		})
	if filter.Type != "" {
		q = q.Where("?TableAlias.type = ?", filter.Type)
	}
	err := q.OrderExpr("?TableAlias.created_at ASC, ?TableAlias.id ASC").Scan(ctx)
	if err != nil {
		return nil, persistence(err)
	}
	return rows, nil
}

func (r *CatalogRepo) UpdateService(ctx context.Context, svc domain.Service) (domain.Service, error) {
	var out domain.Service
	err := r.InServiceTransaction(ctx, svc.ID, func(ctx context.Context, tx store.CatalogTx) error {
		current, err := tx.GetService(ctx, svc.ID)
		if err != nil {
			return err
		}
		if err := ensureDurationUnlocked(ctx, tx, current, svc); err != nil {
			return err
		}
		updated, err := tx.UpdateService(ctx, svc)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.Service{}, persistence(err)
	}
	return out, nil
}

func (r *CatalogRepo) CreateAvailability(ctx context.Context, window domain.AvailabilityWindow) (domain.AvailabilityWindow, error) {
	var out domain.AvailabilityWindow
	err := r.InServiceTransaction(ctx, window.ServiceID, func(ctx context.Context, tx store.CatalogTx) error {
		if err := ensureNoAvailabilityOverlap(ctx, tx, window); err != nil {
			return err
		}
		w, err := tx.CreateAvailability(ctx, window)
		if err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return domain.AvailabilityWindow{}, persistence(err)
	}
	return out, nil
}

func (r *CatalogRepo) ListAvailability(ctx context.Context, serviceID uuid.UUID, dayOfWeek int) ([]domain.AvailabilityWindow, error) {
	rows, err := listAvailability(ctx, r.db, serviceID, dayOfWeek)
	if err != nil {
		return nil, persistence(err)
	}
	return rows, nil
}

// InServiceTransaction runs fn while holding the service's exclusive advisory
// lock, serialising catalog writes against each other and against bookings.
func (r *CatalogRepo) InServiceTransaction(ctx context.Context, serviceID uuid.UUID, fn func(ctx context.Context, tx store.CatalogTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockService(ctx, tx, serviceID.String(), false); err != nil {
			return err
		}
		return fn(ctx, catalogTx{tx: tx})
	})
}

func (c catalogTx) GetService(ctx context.Context, id uuid.UUID) (domain.Service, error) {
	var m domain.Service
	err := c.tx.NewSelect().
		Model(&m).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Service{}, notFound(err)
	}
	return m, nil
}

func (c catalogTx) UpdateService(ctx context.Context, svc domain.Service) (domain.Service, error) {
	m := svc
	m.Provider = nil
	res, err := c.tx.NewUpdate().
		Model(&m).
		Column("name", "duration_minutes", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Service{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Service{}, err
	}
	if affected == 0 {
		return domain.Service{}, store.ErrNotFound
	}
	return m, nil
}

func (c catalogTx) CountBookings(ctx context.Context, serviceID uuid.UUID) (int, error) {
	return c.tx.NewSelect().
		Model((*domain.Booking)(nil)).
		Where("service_id = ?", serviceID).
		Count(ctx)
}

func (c catalogTx) ListAvailability(ctx context.Context, serviceID uuid.UUID, dayOfWeek int) ([]domain.AvailabilityWindow, error) {
	return listAvailability(ctx, c.tx, serviceID, dayOfWeek)
}

func (c catalogTx) CreateAvailability(ctx context.Context, window domain.AvailabilityWindow) (domain.AvailabilityWindow, error) {
	m := domain.AvailabilityWindow{
		ID:        window.ID,
		ServiceID: window.ServiceID,
		DayOfWeek: window.DayOfWeek,
		StartTime: window.StartTime,
		EndTime:   window.EndTime,
		CreatedAt: window.CreatedAt,
	}

	_, err := c.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		if code, ok := pgErrorCode(err); ok {
			switch code {
			case pgForeignKeyViolation:
				return domain.AvailabilityWindow{}, store.ErrNotFound
			case pgCheckViolation:
				return domain.AvailabilityWindow{}, store.ErrConflict
			}
		}
		return domain.AvailabilityWindow{}, err
	}
	return m, nil
}

// listAvailability returns windows in storage order; slot catalogs concatenate
// per-window sequences in exactly this order.
func listAvailability(ctx context.Context, db bun.IDB, serviceID uuid.UUID, dayOfWeek int) ([]domain.AvailabilityWindow, error) {
	var rows []domain.AvailabilityWindow
	err := db.NewSelect().
		Model(&rows).
		Where("service_id = ?", serviceID).
		Where("day_of_week = ?", dayOfWeek).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func ensureNoAvailabilityOverlap(ctx context.Context, tx store.CatalogTx, window domain.AvailabilityWindow) error {
	existing, err := tx.ListAvailability(ctx, window.ServiceID, window.DayOfWeek)
	if err != nil {
		return err
	}
	for _, e := range existing {
		overlaps, err := window.Overlaps(e)
		if err != nil {
			return err
		}
		if overlaps {
			return store.ErrConflict
		}
	}
	return nil
}

// ensureDurationUnlocked refuses a duration change once any booking references
// the service: historical slot tokens were derived against the old duration.
func ensureDurationUnlocked(ctx context.Context, tx store.CatalogTx, current, updated domain.Service) error {
	if current.DurationMinutes == updated.DurationMinutes {
		return nil
	}
	n, err := tx.CountBookings(ctx, current.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return store.ErrDurationLocked
	}
	return nil
}
