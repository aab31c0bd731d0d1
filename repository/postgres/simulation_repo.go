package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/repository"
)

type simulationRepository struct {
	pool *pgxpool.Pool
}

// NewSimulationRepository returns a Postgres-backed clock and settings store.
func NewSimulationRepository(pool *pgxpool.Pool) repository.SimulationRepository {
	return &simulationRepository{pool: pool}
}

func (r *simulationRepository) Clock(ctx context.Context) (domain.Clock, error) {
	const query = `SELECT epoch, current_day, running FROM simulation WHERE id = 1`
	var clock domain.Clock
	if err := r.pool.QueryRow(ctx, query).Scan(&clock.Epoch, &clock.CurrentDay, &clock.Running); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Clock{}, domain.ErrSimulationNotStarted
		}
		return domain.Clock{}, err
	}
	return clock, nil
}

func (r *simulationRepository) Reset(ctx context.Context, epoch time.Time) error {
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		statements := []string{
			`TRUNCATE status_events, order_items, orders, parts_purchases, machine_purchases, machines RESTART IDENTITY`,
			`UPDATE parts SET quantity = 0`,
			`UPDATE stock SET available = 0, reserved = 0`,
			`DELETE FROM settings WHERE key IN ('account_number', 'loan_number')`,
		}
		for _, stmt := range statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `
		INSERT INTO simulation (id, epoch, current_day, running)
		VALUES (1, $1, 0, TRUE)
		ON CONFLICT (id) DO UPDATE
		SET epoch = EXCLUDED.epoch, current_day = 0, running = TRUE
		`, epoch)
		return err
	})
}

func (r *simulationRepository) AdvanceDay(ctx context.Context, day int) (bool, error) {
	const query = `
	UPDATE simulation
	SET current_day = $1
	WHERE id = 1 AND running AND current_day < $1
	`
	tag, err := r.pool.Exec(ctx, query, day)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *simulationRepository) SetRunning(ctx context.Context, running bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE simulation SET running = $1 WHERE id = 1`, running)
	return err
}

func (r *simulationRepository) Setting(ctx context.Context, key string) (string, error) {
	var value string
	if err := r.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrSettingNotFound
		}
		return "", err
	}
	return value, nil
}

func (r *simulationRepository) SetSetting(ctx context.Context, key, value string) error {
	const query = `
	INSERT INTO settings (key, value) VALUES ($1, $2)
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`
	_, err := r.pool.Exec(ctx, query, key, value)
	return err
}
