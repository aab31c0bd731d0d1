package postgres

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/miniconomy2025/sumsang-phones/domain"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// withTx runs fn inside a transaction, committing on success.
func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Money travels as text so NUMERIC precision survives the round trip.
func money(d decimal.Decimal) string {
	return d.String()
}

func parseMoney(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func marshalRecipe(r domain.Recipe) []byte {
	if len(r) == 0 {
		return nil
	}
	byName := make(map[string]int, len(r))
	for part, qty := range r {
		byName[strconv.Itoa(int(part))] = qty
	}
	b, err := json.Marshal(byName)
	if err != nil {
		return nil
	}
	return b
}

func unmarshalRecipe(data []byte) domain.Recipe {
	if len(data) == 0 {
		return nil
	}
	var byName map[string]int
	if err := json.Unmarshal(data, &byName); err != nil {
		return nil
	}
	out := make(domain.Recipe, len(byName))
	for key, qty := range byName {
		if id, err := strconv.Atoi(key); err == nil {
			out[domain.Part(id)] = qty
		}
	}
	return out
}

func statusStrings(statuses []domain.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 500
	}
	return limit
}

func pageOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

// pageLimit maps a non-positive limit to LIMIT NULL, which returns every row.
func pageLimit(limit int) interface{} {
	if limit <= 0 {
		return nil
	}
	return limit
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
