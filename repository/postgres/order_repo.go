package postgres

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/repository"
)

type orderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns a Postgres-backed implementation of OrderRepository.
func NewOrderRepository(pool *pgxpool.Pool) repository.OrderRepository {
	return &orderRepository{pool: pool}
}

const orderColumns = `id, status, total::text, amount_paid::text, delivery_reference, delivery_cost::text,
	delivery_account, created_day, created_at, updated_at`

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	if order == nil || len(order.Items) == 0 {
		return domain.ErrInvalidPayload
	}

	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		const insertOrder = `
		INSERT INTO orders (status, total, amount_paid, created_day)
		VALUES ($1, $2::numeric, $3::numeric, $4)
		RETURNING id, created_at, updated_at
		`
		if err := tx.QueryRow(ctx, insertOrder,
			string(order.Status),
			money(order.Total),
			money(order.AmountPaid),
			order.CreatedDay,
		).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, item := range order.Items {
			batch.Queue(`INSERT INTO order_items (order_id, product_id, quantity) VALUES ($1, $2, $3)`,
				order.ID, item.ProductID, item.Quantity)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func (r *orderRepository) Get(ctx context.Context, id int64) (*domain.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	items, err := r.items(ctx, r.pool, []int64{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	return order, nil
}

func (r *orderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + `
	FROM orders
	WHERE (cardinality($1::text[]) = 0 OR status = ANY($1::text[]))
	ORDER BY id
	LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, statusStrings(filter.Statuses), pageLimit(filter.Limit), pageOffset(filter.Offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		orders []domain.Order
		ids    []int64
	)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	items, err := r.items(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (r *orderRepository) Transition(ctx context.Context, order *domain.Order, from domain.Status) error {
	if order == nil {
		return domain.ErrInvalidPayload
	}
	const query = `
	UPDATE orders
	SET status = $3,
		delivery_reference = $4,
		delivery_cost = $5::numeric,
		delivery_account = $6,
		updated_at = NOW()
	WHERE id = $1 AND status = $2
	RETURNING updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		order.ID,
		string(from),
		string(order.Status),
		order.Delivery.Reference,
		money(order.Delivery.Cost),
		order.Delivery.Account,
	).Scan(&order.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrStatusConflict
	}
	return err
}

func (r *orderRepository) Reserve(ctx context.Context, order *domain.Order, from domain.Status) error {
	if order == nil {
		return domain.ErrInvalidPayload
	}
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status string
		if err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, order.ID).Scan(&status); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrOrderNotFound
			}
			return err
		}
		if domain.Status(status) != from {
			return domain.ErrStatusConflict
		}

		need := make(map[int64]int)
		for _, item := range order.Items {
			need[item.ProductID] += item.Quantity
		}
		productIDs := make([]int64, 0, len(need))
		for id := range need {
			productIDs = append(productIDs, id)
		}
		sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

		for _, id := range productIDs {
			var level domain.StockLevel
			err := tx.QueryRow(ctx, `SELECT available, reserved FROM stock WHERE product_id = $1 FOR UPDATE`, id).
				Scan(&level.Available, &level.Reserved)
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrInsufficientStock
			}
			if err != nil {
				return err
			}
			if level.Free() < need[id] {
				return domain.ErrInsufficientStock
			}
		}
		for _, id := range productIDs {
			if _, err := tx.Exec(ctx, `UPDATE stock SET reserved = reserved + $2 WHERE product_id = $1`, id, need[id]); err != nil {
				return err
			}
		}
		return tx.QueryRow(ctx, `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
			order.ID, string(order.Status)).Scan(&order.UpdatedAt)
	})
}

func (r *orderRepository) RecordPayment(ctx context.Context, id int64, amount decimal.Decimal) (*domain.Order, error) {
	const query = `
	UPDATE orders
	SET amount_paid = amount_paid + $2::numeric, updated_at = NOW()
	WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, money(amount))
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrOrderNotFound
	}
	return r.Get(ctx, id)
}

func (r *orderRepository) Ship(ctx context.Context, deliveryReference string) (*domain.Order, error) {
	var shipped *domain.Order
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE delivery_reference = $1 FOR UPDATE`, deliveryReference)
		order, err := scanOrder(row)
		if err != nil {
			if errors.Is(err, domain.ErrOrderNotFound) {
				return domain.ErrDeliveryNotFound
			}
			return err
		}
		if order.Status != domain.StatusPendingDeliveryCollection {
			return domain.ErrStatusConflict
		}
		items, err := r.items(ctx, tx, []int64{order.ID})
		if err != nil {
			return err
		}
		order.Items = items[order.ID]

		for _, item := range order.Items {
			if _, err := tx.Exec(ctx, `
			UPDATE stock
			SET reserved = GREATEST(reserved - $2, 0),
				available = GREATEST(available - $2, 0)
			WHERE product_id = $1
			`, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		if err := tx.QueryRow(ctx, `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
			order.ID, string(domain.StatusShipped)).Scan(&order.UpdatedAt); err != nil {
			return err
		}
		order.Status = domain.StatusShipped
		shipped = order
		return nil
	})
	return shipped, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *orderRepository) items(ctx context.Context, q querier, ids []int64) (map[int64][]domain.OrderItem, error) {
	rows, err := q.Query(ctx, `
	SELECT order_id, product_id, quantity
	FROM order_items
	WHERE order_id = ANY($1::bigint[])
	ORDER BY order_id, product_id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]domain.OrderItem, len(ids))
	for rows.Next() {
		var (
			orderID int64
			item    domain.OrderItem
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.Quantity); err != nil {
			return nil, err
		}
		out[orderID] = append(out[orderID], item)
	}
	return out, rows.Err()
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order                          domain.Order
		status                         string
		total, amountPaid, deliveryFee string
	)
	if err := row.Scan(
		&order.ID,
		&status,
		&total,
		&amountPaid,
		&order.Delivery.Reference,
		&deliveryFee,
		&order.Delivery.Account,
		&order.CreatedDay,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	order.Status = domain.Status(status)
	order.Total = parseMoney(total)
	order.AmountPaid = parseMoney(amountPaid)
	order.Delivery.Cost = parseMoney(deliveryFee)
	return &order, nil
}
