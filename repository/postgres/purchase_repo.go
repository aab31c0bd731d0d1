package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/repository"
)

type partsPurchaseRepository struct {
	pool *pgxpool.Pool
}

// NewPartsPurchaseRepository returns the Postgres-backed parts purchase store.
func NewPartsPurchaseRepository(pool *pgxpool.Pool) repository.PartsPurchaseRepository {
	return &partsPurchaseRepository{pool: pool}
}

const partsPurchaseColumns = `id, part_id, quantity, cost::text, reference, account, status,
	delivery_reference, delivery_cost::text, delivery_account, created_day, created_at, updated_at`

func (r *partsPurchaseRepository) Create(ctx context.Context, p *domain.PartsPurchase) error {
	if p == nil {
		return domain.ErrInvalidPayload
	}
	const query = `
	INSERT INTO parts_purchases (part_id, quantity, cost, reference, account, status, created_day)
	VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)
	RETURNING id, created_at, updated_at
	`
	return r.pool.QueryRow(ctx, query,
		int(p.Part),
		p.Quantity,
		money(p.Cost),
		p.Reference,
		p.Account,
		string(p.Status),
		p.CreatedDay,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *partsPurchaseRepository) List(ctx context.Context, filter repository.PurchaseFilter) ([]domain.PartsPurchase, error) {
	query := `SELECT ` + partsPurchaseColumns + `
	FROM parts_purchases
	WHERE (cardinality($1::text[]) = 0 OR status = ANY($1::text[]))
	ORDER BY id
	LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, statusStrings(filter.Statuses), pageLimit(filter.Limit), pageOffset(filter.Offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []domain.PartsPurchase
	for rows.Next() {
		p, err := scanPartsPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, *p)
	}
	return purchases, rows.Err()
}

func (r *partsPurchaseRepository) Transition(ctx context.Context, p *domain.PartsPurchase, from domain.Status) error {
	if p == nil {
		return domain.ErrInvalidPayload
	}
	const query = `
	UPDATE parts_purchases
	SET status = $3,
		delivery_reference = $4,
		delivery_cost = $5::numeric,
		delivery_account = $6,
		updated_at = NOW()
	WHERE id = $1 AND status = $2
	RETURNING updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		p.ID,
		string(from),
		string(p.Status),
		p.Delivery.Reference,
		money(p.Delivery.Cost),
		p.Delivery.Account,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrStatusConflict
	}
	return err
}

func (r *partsPurchaseRepository) OpenQuantities(ctx context.Context) (map[domain.Part]int, error) {
	rows, err := r.pool.Query(ctx, `
	SELECT part_id, COALESCE(SUM(quantity), 0)
	FROM parts_purchases
	WHERE status = ANY($1::text[])
	GROUP BY part_id
	`, statusStrings(domain.PartsPurchasePipeline.OpenStatuses()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.Part]int)
	for rows.Next() {
		var part, qty int
		if err := rows.Scan(&part, &qty); err != nil {
			return nil, err
		}
		out[domain.Part(part)] = qty
	}
	return out, rows.Err()
}

func (r *partsPurchaseRepository) Receive(ctx context.Context, deliveryReference string) (*domain.PartsPurchase, error) {
	var received *domain.PartsPurchase
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+partsPurchaseColumns+` FROM parts_purchases WHERE delivery_reference = $1 FOR UPDATE`, deliveryReference)
		p, err := scanPartsPurchase(row)
		if err != nil {
			if errors.Is(err, domain.ErrPurchaseNotFound) {
				return domain.ErrDeliveryNotFound
			}
			return err
		}
		if p.Status != domain.StatusPendingDeliveryDropOff {
			return domain.ErrStatusConflict
		}
		if _, err := tx.Exec(ctx, `UPDATE parts SET quantity = quantity + $2 WHERE id = $1`, int(p.Part), p.Quantity); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, `UPDATE parts_purchases SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
			p.ID, string(domain.StatusReceived)).Scan(&p.UpdatedAt); err != nil {
			return err
		}
		p.Status = domain.StatusReceived
		received = p
		return nil
	})
	return received, err
}

func scanPartsPurchase(row rowScanner) (*domain.PartsPurchase, error) {
	var (
		p                  domain.PartsPurchase
		part               int
		status             string
		cost, deliveryCost string
	)
	if err := row.Scan(
		&p.ID,
		&part,
		&p.Quantity,
		&cost,
		&p.Reference,
		&p.Account,
		&status,
		&p.Delivery.Reference,
		&deliveryCost,
		&p.Delivery.Account,
		&p.CreatedDay,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPurchaseNotFound
		}
		return nil, err
	}
	p.Part = domain.Part(part)
	p.Status = domain.Status(status)
	p.Cost = parseMoney(cost)
	p.Delivery.Cost = parseMoney(deliveryCost)
	return &p, nil
}

type machinePurchaseRepository struct {
	pool *pgxpool.Pool
}

// NewMachinePurchaseRepository returns the Postgres-backed machine purchase store.
func NewMachinePurchaseRepository(pool *pgxpool.Pool) repository.MachinePurchaseRepository {
	return &machinePurchaseRepository{pool: pool}
}

const machinePurchaseColumns = `id, product_id, machine_count, rate_per_day, ratios, cost::text, reference, account, status,
	delivery_reference, delivery_cost::text, delivery_account, created_day, created_at, updated_at`

func (r *machinePurchaseRepository) Create(ctx context.Context, p *domain.MachinePurchase) error {
	if p == nil {
		return domain.ErrInvalidPayload
	}
	const query = `
	INSERT INTO machine_purchases (product_id, machine_count, rate_per_day, ratios, cost, reference, account, status, created_day)
	VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)
	RETURNING id, created_at, updated_at
	`
	return r.pool.QueryRow(ctx, query,
		p.ProductID,
		p.MachineCount,
		p.RatePerDay,
		marshalRecipe(p.Ratios),
		money(p.Cost),
		p.Reference,
		p.Account,
		string(p.Status),
		p.CreatedDay,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *machinePurchaseRepository) List(ctx context.Context, filter repository.PurchaseFilter) ([]domain.MachinePurchase, error) {
	query := `SELECT ` + machinePurchaseColumns + `
	FROM machine_purchases
	WHERE (cardinality($1::text[]) = 0 OR status = ANY($1::text[]))
	ORDER BY id
	LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, statusStrings(filter.Statuses), pageLimit(filter.Limit), pageOffset(filter.Offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []domain.MachinePurchase
	for rows.Next() {
		p, err := scanMachinePurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, *p)
	}
	return purchases, rows.Err()
}

func (r *machinePurchaseRepository) Transition(ctx context.Context, p *domain.MachinePurchase, from domain.Status) error {
	if p == nil {
		return domain.ErrInvalidPayload
	}
	const query = `
	UPDATE machine_purchases
	SET status = $3,
		delivery_reference = $4,
		delivery_cost = $5::numeric,
		delivery_account = $6,
		updated_at = NOW()
	WHERE id = $1 AND status = $2
	RETURNING updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		p.ID,
		string(from),
		string(p.Status),
		p.Delivery.Reference,
		money(p.Delivery.Cost),
		p.Delivery.Account,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrStatusConflict
	}
	return err
}

func (r *machinePurchaseRepository) Receive(ctx context.Context, deliveryReference string, day int) (*domain.MachinePurchase, error) {
	var received *domain.MachinePurchase
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+machinePurchaseColumns+` FROM machine_purchases WHERE delivery_reference = $1 FOR UPDATE`, deliveryReference)
		p, err := scanMachinePurchase(row)
		if err != nil {
			if errors.Is(err, domain.ErrPurchaseNotFound) {
				return domain.ErrDeliveryNotFound
			}
			return err
		}
		if p.Status != domain.StatusPendingDeliveryDropOff {
			return domain.ErrStatusConflict
		}

		batch := &pgx.Batch{}
		for i := 0; i < p.MachineCount; i++ {
			batch.Queue(`INSERT INTO machines (product_id, rate_per_day, acquired_day) VALUES ($1, $2, $3)`,
				p.ProductID, p.RatePerDay, day)
		}
		for part, qty := range p.Ratios {
			batch.Queue(`
			INSERT INTO product_parts (product_id, part_id, quantity) VALUES ($1, $2, $3)
			ON CONFLICT (product_id, part_id) DO UPDATE SET quantity = EXCLUDED.quantity
			`, p.ProductID, int(part), qty)
		}
		batch.Queue(`UPDATE machine_purchases SET status = $2, updated_at = NOW() WHERE id = $1`,
			p.ID, string(domain.StatusReceived))
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
		p.Status = domain.StatusReceived
		received = p
		return nil
	})
	return received, err
}

func scanMachinePurchase(row rowScanner) (*domain.MachinePurchase, error) {
	var (
		p                  domain.MachinePurchase
		ratios             []byte
		status             string
		cost, deliveryCost string
	)
	if err := row.Scan(
		&p.ID,
		&p.ProductID,
		&p.MachineCount,
		&p.RatePerDay,
		&ratios,
		&cost,
		&p.Reference,
		&p.Account,
		&status,
		&p.Delivery.Reference,
		&deliveryCost,
		&p.Delivery.Account,
		&p.CreatedDay,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPurchaseNotFound
		}
		return nil, err
	}
	p.Ratios = unmarshalRecipe(ratios)
	p.Status = domain.Status(status)
	p.Cost = parseMoney(cost)
	p.Delivery.Cost = parseMoney(deliveryCost)
	return &p, nil
}
