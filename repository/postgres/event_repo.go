package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/repository"
)

type eventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository returns the Postgres-backed status audit trail.
func NewEventRepository(pool *pgxpool.Pool) repository.EventRepository {
	return &eventRepository{pool: pool}
}

func (r *eventRepository) Append(ctx context.Context, event domain.StatusEvent) error {
	const query = `
	INSERT INTO status_events (kind, transaction_id, from_status, to_status, day, created_at)
	VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
	`
	_, err := r.pool.Exec(ctx, query,
		string(event.Kind),
		event.TransactionID,
		string(event.From),
		string(event.To),
		event.Day,
		nullTime(event.CreatedAt),
	)
	return err
}

func (r *eventRepository) List(ctx context.Context, kind domain.Kind, transactionID int64, limit int) ([]domain.StatusEvent, error) {
	const query = `
	SELECT kind, transaction_id, from_status, to_status, day, created_at
	FROM status_events
	WHERE ($1 = '' OR kind = $1)
	  AND ($2::bigint = 0 OR transaction_id = $2::bigint)
	ORDER BY id DESC
	LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, string(kind), transactionID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.StatusEvent
	for rows.Next() {
		var (
			e           domain.StatusEvent
			k, from, to string
		)
		if err := rows.Scan(&k, &e.TransactionID, &from, &to, &e.Day, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = domain.Kind(k)
		e.From = domain.Status(from)
		e.To = domain.Status(to)
		events = append(events, e)
	}
	return events, rows.Err()
}

// NewStore wires every Postgres repository onto one pool.
func NewStore(pool *pgxpool.Pool) repository.Store {
	return repository.Store{
		Simulation:       NewSimulationRepository(pool),
		Catalog:          NewCatalogRepository(pool),
		Inventory:        NewInventoryRepository(pool),
		Machines:         NewMachineRepository(pool),
		Orders:           NewOrderRepository(pool),
		PartsPurchases:   NewPartsPurchaseRepository(pool),
		MachinePurchases: NewMachinePurchaseRepository(pool),
		Events:           NewEventRepository(pool),
	}
}
