package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Probe reports the reachability of the backing stores.
type Probe struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewProbe creates a Probe over the shared pool and Redis client.
func NewProbe(pool *pgxpool.Pool, rdb *redis.Client) *Probe {
	return &Probe{pool: pool, rdb: rdb}
}

// Check pings every store and returns a per-store error map; a nil entry
// means the store answered.
func (p *Probe) Check(ctx context.Context) map[string]error {
	return map[string]error{
		"postgres": p.pool.Ping(ctx),
		"redis":    p.rdb.Ping(ctx).Err(),
	}
}
