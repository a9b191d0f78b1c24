package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/atlas-cloud/ragdex/internal/db"
)

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.b().Get().Key(key).Build()
	data, err := s.do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// Set stores a value at the given key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	cmd := s.b().Set().Key(key).Value(string(value)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// SetWithTTL stores a value with an expiration.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := s.b().Set().Key(key).Value(string(value)).Ex(ttl).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// casScript swaps the value when the stored revision matches ARGV[1].
// The value lives in a hash {rev, data}; revision 0 means the key is absent.
// Returns the new revision, or -1 on mismatch.
const casScript = `
local rev = tonumber(redis.call('HGET', KEYS[1], 'rev') or '0')
if rev ~= tonumber(ARGV[1]) then
  return -1
end
rev = rev + 1
redis.call('HSET', KEYS[1], 'rev', rev, 'data', ARGV[2])
return rev
`

// CompareAndSet replaces the value only when the stored revision matches expectedRev.
func (s *Store) CompareAndSet(
	ctx context.Context, key string, value []byte, expectedRev int64,
) (int64, error) {
	cmd := s.b().Eval().Script(casScript).Numkeys(1).Key(key).
		Arg(strconv.FormatInt(expectedRev, 10), string(value)).Build()
	rev, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpEval, Err: err}
	}
	if rev < 0 {
		return 0, db.ErrRevisionMismatch
	}
	return rev, nil
}

// GetWithRev returns the value and its revision. Absent keys return rev 0.
func (s *Store) GetWithRev(ctx context.Context, key string) ([]byte, int64, error) {
	cmd := s.b().Hgetall().Key(key).Build()
	m, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, 0, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	if len(m) == 0 {
		return nil, 0, db.ErrKeyNotFound
	}
	rev, err := strconv.ParseInt(m["rev"], 10, 64)
	if err != nil {
		return nil, 0, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return []byte(m["data"]), rev, nil
}
