// Package ratelimit implements the two-tier request limiting described in
// §5 (Concurrency & Resource Model) and sized by C.4: a stricter tier around
// write/upload endpoints and a looser general tier elsewhere, both counted
// per caller in fixed one-minute windows. Counters live in `badger/v4` so
// limits survive a process restart rather than resetting silently, using
// the same prefixed-key namespace convention the donor's badger metadata
// store uses for its own key design.
package ratelimit

import (
	"encoding/binary"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/vaultd/vaultd/internal/logger"
)

// Tier selects which §5 rate class a request falls under.
type Tier string

const (
	TierWrite   Tier = "write"   // write/upload endpoints (§4.6)
	TierGeneral Tier = "general" // everything else
)

const window = time.Minute

// Config holds Limiter configuration.
type Config struct {
	// Dir is the badger data directory. Empty runs fully in-memory (used by
	// tests and by a single-process deployment that accepts resetting
	// counters across restarts).
	Dir string

	// WriteTier is the max requests per caller per minute against the write
	// tier. Default: 20.
	WriteTier int

	// GeneralTier is the max requests per caller per minute against the
	// general tier. Default: 120.
	GeneralTier int
}

func (c *Config) applyDefaults() {
	if c.WriteTier <= 0 {
		c.WriteTier = 20
	}
	if c.GeneralTier <= 0 {
		c.GeneralTier = 120
	}
}

// Limiter enforces the §5 two-tier limits.
type Limiter struct {
	db     *badger.DB
	config Config
}

// New opens (or creates) the badger counter store and returns a Limiter.
func New(config Config) (*Limiter, error) {
	config.applyDefaults()

	opts := badger.DefaultOptions(config.Dir).WithLogger(badgerLogAdapter{})
	if config.Dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: open badger store: %w", err)
	}
	return &Limiter{db: db, config: config}, nil
}

// Close releases the underlying badger store.
func (l *Limiter) Close() error {
	return l.db.Close()
}

func (l *Limiter) limitFor(tier Tier) int {
	if tier == TierWrite {
		return l.config.WriteTier
	}
	return l.config.GeneralTier
}

// Allow increments caller's counter for tier's current one-minute window and
// reports whether the request is still within the limit. The counter key
// carries a badger TTL equal to the window, so stale windows expire on
// their own without a separate sweep.
func (l *Limiter) Allow(tier Tier, caller string) (bool, error) {
	windowStart := time.Now().UTC().Truncate(window)
	key := counterKey(tier, caller, windowStart)

	var count uint64
	err := l.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		switch {
		case err == nil:
			if verr := item.Value(func(val []byte) error {
				count = binary.BigEndian.Uint64(val)
				return nil
			}); verr != nil {
				return verr
			}
		case err == badger.ErrKeyNotFound:
			count = 0
		default:
			return err
		}

		count++
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, count)
		return txn.SetEntry(badger.NewEntry(key, buf).WithTTL(window))
	})
	if err != nil {
		return false, fmt.Errorf("ratelimit: update counter: %w", err)
	}

	return count <= uint64(l.limitFor(tier)), nil
}

// counterKey namespaces counters as "rl:{tier}:{windowStart unix}:{caller}",
// one key per (tier, caller, window) triple.
func counterKey(tier Tier, caller string, windowStart time.Time) []byte {
	return []byte(fmt.Sprintf("rl:%s:%d:%s", tier, windowStart.Unix(), caller))
}

// badgerLogAdapter routes badger's internal logging through the server's
// own structured logger instead of badger's default stderr writer.
type badgerLogAdapter struct{}

func (badgerLogAdapter) Errorf(format string, args ...any)   { logger.Errorf(format, args...) }
func (badgerLogAdapter) Warningf(format string, args ...any) { logger.Warnf(format, args...) }
func (badgerLogAdapter) Infof(format string, args ...any)    { logger.Infof(format, args...) }
func (badgerLogAdapter) Debugf(format string, args ...any)   { logger.Debugf(format, args...) }
