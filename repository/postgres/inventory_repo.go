package postgres

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/repository"
)

type catalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns the Postgres-backed product catalog.
func NewCatalogRepository(pool *pgxpool.Pool) repository.CatalogRepository {
	return &catalogRepository{pool: pool}
}

func (r *catalogRepository) Products(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, price::text FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []domain.Product
	index := make(map[int64]int)
	for rows.Next() {
		var (
			p     domain.Product
			price string
		)
		if err := rows.Scan(&p.ID, &p.Name, &price); err != nil {
			return nil, err
		}
		p.Price = parseMoney(price)
		index[p.ID] = len(products)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	recipes, err := r.recipes(ctx, 0)
	if err != nil {
		return nil, err
	}
	for productID, recipe := range recipes {
		if i, ok := index[productID]; ok {
			products[i].Recipe = recipe
		}
	}
	return products, nil
}

func (r *catalogRepository) Product(ctx context.Context, id int64) (*domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	err := r.pool.QueryRow(ctx, `SELECT id, name, price::text FROM products WHERE id = $1`, id).Scan(&p.ID, &p.Name, &price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	p.Price = parseMoney(price)

	recipes, err := r.recipes(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Recipe = recipes[id]
	return &p, nil
}

func (r *catalogRepository) recipes(ctx context.Context, productID int64) (map[int64]domain.Recipe, error) {
	rows, err := r.pool.Query(ctx, `
	SELECT product_id, part_id, quantity
	FROM product_parts
	WHERE ($1::bigint = 0 OR product_id = $1::bigint)
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]domain.Recipe)
	for rows.Next() {
		var (
			pid  int64
			part int
			qty  int
		)
		if err := rows.Scan(&pid, &part, &qty); err != nil {
			return nil, err
		}
		if out[pid] == nil {
			out[pid] = make(domain.Recipe)
		}
		out[pid][domain.Part(part)] = qty
	}
	return out, rows.Err()
}

type inventoryRepository struct {
	pool *pgxpool.Pool
}

// NewInventoryRepository returns the Postgres-backed inventory ledger.
func NewInventoryRepository(pool *pgxpool.Pool) repository.InventoryRepository {
	return &inventoryRepository{pool: pool}
}

func (r *inventoryRepository) Parts(ctx context.Context) (domain.PartsInventory, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, quantity FROM parts`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(domain.PartsInventory)
	for rows.Next() {
		var id, qty int
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, err
		}
		out[domain.Part(id)] = qty
	}
	return out, rows.Err()
}

func (r *inventoryRepository) Stock(ctx context.Context) (map[int64]domain.StockLevel, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, available, reserved FROM stock`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]domain.StockLevel)
	for rows.Next() {
		var (
			id    int64
			level domain.StockLevel
		)
		if err := rows.Scan(&id, &level.Available, &level.Reserved); err != nil {
			return nil, err
		}
		out[id] = level
	}
	return out, rows.Err()
}

func (r *inventoryRepository) CommitProduction(ctx context.Context, productID int64, units int, consumption map[domain.Part]int) error {
	if units <= 0 {
		return domain.ErrInvalidPayload
	}

	// Lock parts in id order so concurrent commits cannot deadlock.
	parts := make([]domain.Part, 0, len(consumption))
	for part := range consumption {
		parts = append(parts, part)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i] < parts[j] })

	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, part := range parts {
			var onHand int
			if err := tx.QueryRow(ctx, `SELECT quantity FROM parts WHERE id = $1 FOR UPDATE`, int(part)).Scan(&onHand); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return domain.ErrInsufficientParts
				}
				return err
			}
			if onHand < consumption[part] {
				return domain.ErrInsufficientParts
			}
		}
		for _, part := range parts {
			if _, err := tx.Exec(ctx, `UPDATE parts SET quantity = quantity - $2 WHERE id = $1`, int(part), consumption[part]); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `
		INSERT INTO stock (product_id, available, reserved) VALUES ($1, $2, 0)
		ON CONFLICT (product_id) DO UPDATE SET available = stock.available + EXCLUDED.available
		`, productID, units)
		return err
	})
}

type machineRepository struct {
	pool *pgxpool.Pool
}

// NewMachineRepository returns the Postgres-backed machine fleet.
func NewMachineRepository(pool *pgxpool.Pool) repository.MachineRepository {
	return &machineRepository{pool: pool}
}

func (r *machineRepository) Machines(ctx context.Context) ([]domain.Machine, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, rate_per_day, acquired_day, retired_day FROM machines ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var machines []domain.Machine
	for rows.Next() {
		var m domain.Machine
		if err := rows.Scan(&m.ID, &m.ProductID, &m.RatePerDay, &m.AcquiredDay, &m.RetiredDay); err != nil {
			return nil, err
		}
		machines = append(machines, m)
	}
	return machines, rows.Err()
}
