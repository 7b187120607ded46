package podstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"github.com/northfleet/podcrawl/internal/domain"
)

// Config configures a RedisStore's connection. Grounded on
// infrastructure/redis.Config, trimmed to what a pod needs: one address,
// no cluster mode (each pod owns exactly one Redis endpoint, spec.md §3).
type Config struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// connectionTimeout bounds the startup ping.
const connectionTimeout = 5 * time.Second

// RedisStore is the production Store, one instance per pod, backed by one
// Redis endpoint. Key schema:
//
//	domain:<domain>    hash   -- domain.Record fields
//	ready              zset   -- member=domain, score=eligibleAt+tiebreak
//	visited:<fp>       string -- JSON domain.VisitedRecord
//	counter:<name>     string -- INCRBY'd integer (coordinator pod only)
//	stop:flag          string -- "1" once set (coordinator pod only)
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore dials Redis and verifies reachability before returning.
func NewRedisStore(cfg Config) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("podstore: redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("podstore: redis ping failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func domainKey(d string) string  { return "domain:" + d }
func visitedKey(fp uint64) string { return "visited:" + strconv.FormatUint(fp, 10) }
func counterKey(name string) string { return "counter:" + name }

const readyKey = "ready"
const stopKey = "stop:flag"

func (s *RedisStore) GetDomainRecord(ctx context.Context, d string) (domain.Record, bool, error) {
	vals, err := s.client.HGetAll(ctx, domainKey(d)).Result()
	if err != nil {
		return domain.Record{}, false, fmt.Errorf("podstore: get domain record %q: %w", d, translateErr(err))
	}
	if len(vals) == 0 {
		return domain.Record{}, false, nil
	}

	rec, err := decodeRecord(d, vals)
	if err != nil {
		return domain.Record{}, false, fmt.Errorf("podstore: decode domain record %q: %w", d, err)
	}
	return rec, true, nil
}

// MutateDomainRecord is read-modify-write. Callers never mutate the same
// domain from two goroutines at once within a pod process — a domain's
// owning pod serializes access through its Frontier/Politeness API — so
// no Redis-side transaction is needed here (spec.md §3).
func (s *RedisStore) MutateDomainRecord(ctx context.Context, d string, fn func(*domain.Record)) (domain.Record, error) {
	rec, ok, err := s.GetDomainRecord(ctx, d)
	if err != nil {
		return domain.Record{}, err
	}
	if !ok {
		rec = domain.Record{Domain: d}
	}

	fn(&rec)
	rec.Domain = d
	rec.UpdatedAt = time.Now().UTC()

	if err := s.client.HSet(ctx, domainKey(d), encodeRecord(rec)).Err(); err != nil {
		return domain.Record{}, fmt.Errorf("podstore: mutate domain record %q: %w", d, translateErr(err))
	}
	return rec, nil
}

// EnqueueReady scores a domain by its eligible-at time, with a stable
// per-domain fractional offset in [0,1) breaking ties between domains
// eligible at the same second (spec.md §4.2). The score set is the later
// of eligibleAt and any score already pending for d: a domain already
// cooling down (e.g. from a robots Crawl-delay) must never be moved
// earlier by a subsequent enqueue (spec.md §8's t2-t1 >=
// max(crawl_delay, MIN_DELAY) invariant). Safe without a transaction
// because, per MutateDomainRecord above, a domain's owning pod never
// calls this concurrently for the same domain from two goroutines.
func (s *RedisStore) EnqueueReady(ctx context.Context, d string, eligibleAt time.Time) error {
	score := float64(eligibleAt.Unix()) + tiebreak(d)

	existing, err := s.client.ZScore(ctx, readyKey, d).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("podstore: read existing ready score %q: %w", d, translateErr(err))
	}
	if err == nil && existing > score {
		score = existing
	}

	if err := s.client.ZAdd(ctx, readyKey, redis.Z{Score: score, Member: d}).Err(); err != nil {
		return fmt.Errorf("podstore: enqueue ready %q: %w", d, translateErr(err))
	}
	return nil
}

func tiebreak(d string) float64 {
	const mask = uint64(1)<<53 - 1 // fits exactly in a float64 mantissa
	return float64(xxhash.Sum64String(d)&mask) / float64(mask+1)
}

// PopReady claims the domain with the smallest score <= now, atomically
// via a Lua script so concurrent callers never claim the same domain.
var popReadyScript = redis.NewScript(`
local res = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, 1)
if #res == 0 then
	return false
end
redis.call("ZREM", KEYS[1], res[1])
return res[1]
`)

func (s *RedisStore) PopReady(ctx context.Context, now time.Time) (string, bool, error) {
	res, err := popReadyScript.Run(ctx, s.client, []string{readyKey}, now.Unix()+1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("podstore: pop ready: %w", translateErr(err))
	}

	d, ok := res.(string)
	if !ok || d == "" {
		return "", false, nil
	}
	return d, true, nil
}

func (s *RedisStore) RemoveReady(ctx context.Context, d string) error {
	if err := s.client.ZRem(ctx, readyKey, d).Err(); err != nil {
		return fmt.Errorf("podstore: remove ready %q: %w", d, translateErr(err))
	}
	return nil
}

func (s *RedisStore) ReadyCount(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, readyKey).Result()
	if err != nil {
		return 0, fmt.Errorf("podstore: ready count: %w", translateErr(err))
	}
	return n, nil
}

func (s *RedisStore) UpsertVisited(ctx context.Context, rec domain.VisitedRecord) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("podstore: marshal visited record: %w", err)
	}
	if err := s.client.Set(ctx, visitedKey(rec.URLFingerprint), buf, 0).Err(); err != nil {
		return fmt.Errorf("podstore: upsert visited %d: %w", rec.URLFingerprint, translateErr(err))
	}
	return nil
}

func (s *RedisStore) GetVisited(ctx context.Context, fp uint64) (domain.VisitedRecord, bool, error) {
	buf, err := s.client.Get(ctx, visitedKey(fp)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.VisitedRecord{}, false, nil
		}
		return domain.VisitedRecord{}, false, fmt.Errorf("podstore: get visited %d: %w", fp, translateErr(err))
	}

	var rec domain.VisitedRecord
	if err := json.Unmarshal(buf, &rec); err != nil {
		return domain.VisitedRecord{}, false, fmt.Errorf("podstore: decode visited %d: %w", fp, err)
	}
	return rec, true, nil
}

func (s *RedisStore) IncrCounter(ctx context.Context, name string, delta int64) (int64, error) {
	n, err := s.client.IncrBy(ctx, counterKey(name), delta).Result()
	if err != nil {
		return 0, fmt.Errorf("podstore: incr counter %q: %w", name, translateErr(err))
	}
	return n, nil
}

func (s *RedisStore) GetCounter(ctx context.Context, name string) (int64, error) {
	n, err := s.client.Get(ctx, counterKey(name)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("podstore: get counter %q: %w", name, translateErr(err))
	}
	return n, nil
}

func (s *RedisStore) SetStopFlag(ctx context.Context) error {
	if err := s.client.Set(ctx, stopKey, "1", 0).Err(); err != nil {
		return fmt.Errorf("podstore: set stop flag: %w", translateErr(err))
	}
	return nil
}

func (s *RedisStore) GetStopFlag(ctx context.Context) (bool, error) {
	v, err := s.client.Get(ctx, stopKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("podstore: get stop flag: %w", translateErr(err))
	}
	return v == "1", nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("podstore: ping: %w", translateErr(err))
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// translateErr maps connection-level failures to ErrShardUnavailable so
// callers can distinguish "this pod is down" from "this key is absent".
func translateErr(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrShardUnavailable, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrShardUnavailable, err)
	}
	return err
}

func encodeRecord(rec domain.Record) map[string]any {
	return map[string]any{
		"domain":                   rec.Domain,
		"last_scheduled_fetch_unix": rec.LastScheduledFetchUnix,
		"robots_cached_content":    rec.RobotsCachedContent,
		"robots_fetched_unix":      rec.RobotsFetchedUnix,
		"robots_expires_unix":      rec.RobotsExpiresUnix,
		"robots_crawl_delay_sec":   rec.RobotsCrawlDelaySec,
		"is_manually_excluded":     rec.IsManuallyExcluded,
		"is_seeded":                rec.IsSeeded,
		"frontier_offset":          rec.FrontierOffset,
		"updated_at":               rec.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func decodeRecord(d string, vals map[string]string) (domain.Record, error) {
	rec := domain.Record{Domain: d}

	var err error
	if rec.LastScheduledFetchUnix, err = parseInt64(vals["last_scheduled_fetch_unix"]); err != nil {
		return domain.Record{}, err
	}
	rec.RobotsCachedContent = []byte(vals["robots_cached_content"])
	if rec.RobotsFetchedUnix, err = parseInt64(vals["robots_fetched_unix"]); err != nil {
		return domain.Record{}, err
	}
	if rec.RobotsExpiresUnix, err = parseInt64(vals["robots_expires_unix"]); err != nil {
		return domain.Record{}, err
	}
	if rec.RobotsCrawlDelaySec, err = parseInt64(vals["robots_crawl_delay_sec"]); err != nil {
		return domain.Record{}, err
	}
	rec.IsManuallyExcluded = vals["is_manually_excluded"] == "1"
	rec.IsSeeded = vals["is_seeded"] == "1"
	if rec.FrontierOffset, err = parseInt64(vals["frontier_offset"]); err != nil {
		return domain.Record{}, err
	}
	if ts := vals["updated_at"]; ts != "" {
		rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return domain.Record{}, err
		}
	}
	return rec, nil
}

func parseInt64(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
