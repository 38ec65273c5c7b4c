package resume

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-placement/internal/model"
)

// RedisStore keeps records in Redis with a TTL, for kiosk deployments where
// the runner process is replaced between attempts.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// NewRedisStore creates a RedisStore. A zero ttl keeps records until cleared.
func NewRedisStore(rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *RedisStore {
	return &RedisStore{
		rdb: rdb,
		ttl: ttl,
		log: log.With().Str("component", "resume_redis_store").Logger(),
	}
}

func (s *RedisStore) Save(ctx context.Context, examID model.ID, rec model.ResumeRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := s.rdb.Set(ctx, recordKey(examID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set resume record: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, examID model.ID) (model.ResumeRecord, bool) {
	data, err := s.rdb.Get(ctx, recordKey(examID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Resume record unreadable")
		}
		return model.ResumeRecord{}, false
	}

	rec, ok := decodeRecord(examID, data)
	if !ok {
		s.log.Warn().Str("exam_id", examID.String()).Msg("Resume record corrupt")
	}
	return rec, ok
}

func (s *RedisStore) Clear(ctx context.Context, examID model.ID) error {
	if err := s.rdb.Del(ctx, recordKey(examID)).Err(); err != nil {
		return fmt.Errorf("delete resume record: %w", err)
	}
	return nil
}
