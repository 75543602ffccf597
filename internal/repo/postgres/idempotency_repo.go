package postgres

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type IdempotencyRepository interface {
	CheckOrCreateIdempotency(ctx context.Context, key string, checkoutID string) (existingCheckoutID string, err error)
	CleanupExpired(ctx context.Context) (int64, error)
}

type idempotencyRepository struct {
	pool *pgxpool.Pool
}

func NewIdempotencyRepository(pool *pgxpool.Pool) IdempotencyRepository {
	return &idempotencyRepository{pool: pool}
}

// CheckOrCreateIdempotency returns the checkout session previously
// recorded under key, or records checkoutID for it when the key is new.
// An empty return means no prior checkout exists for the key.
func (r *idempotencyRepository) CheckOrCreateIdempotency(ctx context.Context, key string, checkoutID string) (string, error) {
	// Hash the idempotency key for privacy and consistent length
	hasher := sha256.New()
	hasher.Write([]byte(key))
	keyHash := fmt.Sprintf("%x", hasher.Sum(nil))

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var existingID string
	checkQuery := `SELECT checkout_id FROM checkout_idempotency WHERE key_hash = $1`
	err := r.pool.QueryRow(ctx, checkQuery, keyHash).Scan(&existingID)

	if err == nil {
		return existingID, nil
	}

	if err != pgx.ErrNoRows {
		return "", err
	}

	if checkoutID != "" {
		insertQuery := `
			INSERT INTO checkout_idempotency (key_hash, checkout_id, expires_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (key_hash) DO NOTHING`

		expiresAt := time.Now().Add(24 * time.Hour)
		_, err = r.pool.Exec(ctx, insertQuery, keyHash, checkoutID, expiresAt)
		if err != nil {
			return "", err
		}
	}

	return "", nil
}

func (r *idempotencyRepository) CleanupExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := `DELETE FROM checkout_idempotency WHERE expires_at < now()`
	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}
