// Package cache provides a Redis-backed read-through cache in front of
// a tagio.Backend, so repeated reads of hot tags within a short TTL
// skip the wire round trip entirely.
package cache

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/plcgo/goenip/logx"
	"github.com/plcgo/goenip/tagio"
)

// Store wraps a redis client with the get/set shape the cache needs.
type Store struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStore builds a Store against an already-configured redis client.
func NewStore(rdb *redis.Client, keyPrefix string, ttl time.Duration) *Store {
	return &Store{rdb: rdb, prefix: keyPrefix, ttl: ttl}
}

func (s *Store) key(address string) string {
	return fmt.Sprintf("%s:%s", s.prefix, address)
}

// get returns the cached value for address, or ok=false on a miss.
func (s *Store) get(ctx context.Context, address string) (tagio.Value, bool, error) {
	raw, err := s.rdb.Get(ctx, s.key(address)).Bytes()
	if err == redis.Nil {
		return tagio.Value{}, false, nil
	}
	if err != nil {
		return tagio.Value{}, false, err
	}
	value, err := decodeValue(raw)
	if err != nil {
		return tagio.Value{}, false, err
	}
	return value, true, nil
}

func (s *Store) set(ctx context.Context, address string, value tagio.Value) error {
	return s.rdb.Set(ctx, s.key(address), encodeValue(value), s.ttl).Err()
}

// invalidate removes a cached entry, used after a write so a stale
// value can't be served before the next read's TTL would have
// expired it naturally.
func (s *Store) invalidate(ctx context.Context, address string) error {
	return s.rdb.Del(ctx, s.key(address)).Err()
}

// encodeValue packs a tagio.Value as a 2-byte type code followed by
// the raw data bytes, the wire-adjacent shape the underlying protocol
// already uses for encoded elements.
func encodeValue(v tagio.Value) []byte {
	buf := make([]byte, 2+len(v.Data))
	binary.LittleEndian.PutUint16(buf[0:2], v.TypeCode)
	copy(buf[2:], v.Data)
	return buf
}

func decodeValue(raw []byte) (tagio.Value, error) {
	if len(raw) < 2 {
		return tagio.Value{}, fmt.Errorf("cache: corrupt entry, %d bytes", len(raw))
	}
	return tagio.Value{
		TypeCode: binary.LittleEndian.Uint16(raw[0:2]),
		Data:     append([]byte(nil), raw[2:]...),
	}, nil
}

// Backend wraps a tagio.Backend with a read-through cache. Reads check
// the cache first and populate it on a miss; writes go straight
// through to the underlying backend and then invalidate the cache
// entry so the next read re-fetches the fresh value.
type Backend struct {
	next  tagio.Backend
	store *Store
	log   logx.Logger
}

var _ tagio.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithLogger injects a logger.
func WithLogger(l logx.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.log = l
		}
	}
}

// New wraps next with a read-through cache backed by store.
func New(next tagio.Backend, store *Store, opts ...Option) *Backend {
	b := &Backend{next: next, store: store, log: logx.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ReadTag implements tagio.Backend.
func (b *Backend) ReadTag(ctx context.Context, address string, count int) (tagio.Value, error) {
	if value, ok, err := b.store.get(ctx, address); err == nil && ok {
		return value, nil
	} else if err != nil {
		b.log.Warnf("cache: get %s failed: %v", address, err)
	}

	value, err := b.next.ReadTag(ctx, address, count)
	if err != nil {
		return tagio.Value{}, err
	}
	if err := b.store.set(ctx, address, value); err != nil {
		b.log.Warnf("cache: set %s failed: %v", address, err)
	}
	return value, nil
}

// WriteTag implements tagio.Backend. The cache entry for address is
// invalidated after a successful write.
func (b *Backend) WriteTag(ctx context.Context, address string, value tagio.Value) error {
	if err := b.next.WriteTag(ctx, address, value); err != nil {
		return err
	}
	if err := b.store.invalidate(ctx, address); err != nil {
		b.log.Warnf("cache: invalidate %s failed: %v", address, err)
	}
	return nil
}

// Close implements tagio.Backend.
func (b *Backend) Close() error {
	return b.next.Close()
}
