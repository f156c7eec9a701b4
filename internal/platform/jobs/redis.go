package jobs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisStore keeps each job in a hash so several server replicas can report
// the same progress. Counters move with HINCRBY inside a script that also
// refreshes the TTL, so a long job stays visible while it makes progress.
type RedisStore struct {
	c      *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(c *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{c: c, prefix: "pulse:job:", ttl: ttl}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

func (s *RedisStore) Start(ctx context.Context, kind string, total int) (*Progress, error) {
	p := &Progress{
		ID:        uuid.NewString(),
		Kind:      kind,
		State:     StateRunning,
		Total:     total,
		StartedAt: time.Now().UTC(),
	}

	key := s.key(p.ID)
	_, err := s.c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			"kind":       p.Kind,
			"state":      string(p.State),
			"total":      p.Total,
			"completed":  0,
			"succeeded":  0,
			"failed":     0,
			"started_at": p.StartedAt.Format(time.RFC3339Nano),
		})
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("start job: %w", err)
	}
	return p, nil
}

// advanceScript bumps the counters and refreshes the TTL only while the job
// exists, so an expired job is never recreated as a partial hash.
var advanceScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HINCRBY', KEYS[1], 'completed', 1)
redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

// finishScript sets the field/value pairs after ARGV[1] with the same guard.
var finishScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
redis.call('PEXPIRE', KEYS[1], ARGV[1])
return 1
`)

func (s *RedisStore) Advance(ctx context.Context, id string, ok bool) error {
	field := "failed"
	if ok {
		field = "succeeded"
	}
	n, err := advanceScript.Run(ctx, s.c, []string{s.key(id)}, field, s.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("advance job %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Finish(ctx context.Context, id string, jobErr error) error {
	args := []interface{}{
		s.ttl.Milliseconds(),
		"state", string(StateCompleted),
		"finished_at", time.Now().UTC().Format(time.RFC3339Nano),
	}
	if jobErr != nil {
		args[2] = string(StateFailed)
		args = append(args, "error", jobErr.Error())
	}
	n, err := finishScript.Run(ctx, s.c, []string{s.key(id)}, args...).Int()
	if err != nil {
		return fmt.Errorf("finish job %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Progress, error) {
	vals, err := s.c.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	if len(vals) == 0 {
		return nil, ErrNotFound
	}

	p := &Progress{
		ID:        id,
		Kind:      vals["kind"],
		State:     State(vals["state"]),
		Total:     atoi(vals["total"]),
		Completed: atoi(vals["completed"]),
		Succeeded: atoi(vals["succeeded"]),
		Failed:    atoi(vals["failed"]),
		Error:     vals["error"],
	}
	if t, err := time.Parse(time.RFC3339Nano, vals["started_at"]); err == nil {
		p.StartedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, vals["finished_at"]); err == nil {
		p.FinishedAt = &t
	}
	return p, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
