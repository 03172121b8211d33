package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/auth"
)

const getStaffKeyByHashSQL = `SELECT id, key_hash, name, scopes
	FROM staff_keys WHERE key_hash = $1 AND active = TRUE`

const upsertStaffKeySQL = `INSERT INTO staff_keys (id, key_hash, name, scopes, active)
	VALUES ($1, $2, $3, $4, TRUE)
	ON CONFLICT (id) DO UPDATE SET
		key_hash = EXCLUDED.key_hash,
		name = EXCLUDED.name,
		scopes = EXCLUDED.scopes,
		active = TRUE`

var _ auth.Repository = (*StaffKeyRepository)(nil)

// StaffKeyRepository provides staff key lookups backed by PostgreSQL.
type StaffKeyRepository struct {
	pool *pgxpool.Pool
}

// NewStaffKeyRepository returns a StaffKeyRepository that uses the given pool.
func NewStaffKeyRepository(pool *pgxpool.Pool) *StaffKeyRepository {
	return &StaffKeyRepository{pool: pool}
}

// FindByHash looks up an active staff key by its HMAC-SHA256 hash.
func (r *StaffKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.StaffKeyInfo, error) {
	var info auth.StaffKeyInfo
	err := r.pool.QueryRow(ctx, getStaffKeyByHashSQL, hash).Scan(
		&info.ID, &info.KeyHash, &info.Name, &info.Scopes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("staff key not found: %w", err)
		}
		return nil, fmt.Errorf("finding staff key by hash: %w", err)
	}
	return &info, nil
}

// Upsert writes a staff key row, reactivating and replacing any existing key
// with the same id. Used by the seed tool.
func (r *StaffKeyRepository) Upsert(ctx context.Context, info *auth.StaffKeyInfo) error {
	_, err := r.pool.Exec(ctx, upsertStaffKeySQL, info.ID, info.KeyHash, info.Name, info.Scopes)
	if err != nil {
		return fmt.Errorf("upserting staff key %q: %w", info.ID, err)
	}
	return nil
}
