package infra

import (
	"context"
	"encoding/json"
	"time"

	"moneycase/internal/dto"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// NewRedis creates and validates a go-redis client connection.
func NewRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opts)

	// Validate connectivity at startup
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}

// SnapshotCache stores Z-report snapshots as JSON under zreport:<session id>.
// A closed session never changes, so entries are written once and served verbatim.
type SnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSnapshotCache(rdb *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{rdb: rdb, ttl: ttl}
}

func snapshotKey(id uuid.UUID) string { return "zreport:" + id.String() }

// Get reports a miss on any error; the caller rebuilds from the store.
func (c *SnapshotCache) Get(ctx context.Context, sessionID uuid.UUID) (*dto.ZReportSnapshot, bool) {
	raw, err := c.rdb.Get(ctx, snapshotKey(sessionID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("z-report cache read failed")
		}
		return nil, false
	}
	var snap dto.ZReportSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("z-report cache entry corrupt")
		return nil, false
	}
	return &snap, true
}

// Put stores the snapshot unless an entry already exists (SET NX).
func (c *SnapshotCache) Put(ctx context.Context, snap *dto.ZReportSnapshot) error {
	id, err := uuid.Parse(snap.SessionID)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.rdb.SetNX(ctx, snapshotKey(id), raw, c.ttl).Err()
}
