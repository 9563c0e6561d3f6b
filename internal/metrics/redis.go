// Package metrics keeps cheap operational counters in redis, alongside
// the durable event store. Counters are best effort: a redis outage must
// never fail an ingest.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Mocksi/bilan-sub001/internal/model"
)

type RedisRecorder struct {
	rdb      *redis.Client
	dayTTL   time.Duration
	distTTL  time.Duration
	monthTTL time.Duration
}

type RecorderOption func(*RedisRecorder)

func WithTTLs(dayTTL, distTTL, monthTTL time.Duration) RecorderOption {
	return func(r *RedisRecorder) {
		if dayTTL > 0 {
			r.dayTTL = dayTTL
		}
		if distTTL > 0 {
			r.distTTL = distTTL
		}
		if monthTTL > 0 {
			r.monthTTL = monthTTL
		}
	}
}

func NewRedisRecorder(rdb *redis.Client, opts ...RecorderOption) *RedisRecorder {
	r := &RedisRecorder{
		rdb:      rdb,
		dayTTL:   180 * 24 * time.Hour,
		distTTL:  90 * 24 * time.Hour,
		monthTTL: 18 * 31 * 24 * time.Hour,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// ObserveEvent bumps the per-day counters for one accepted event: total
// and per-type increments, a type distribution hash, HLL active users,
// and positive/negative splits for votes. All writes go through one
// pipeline; errors are swallowed.
func (r *RedisRecorder) ObserveEvent(ctx context.Context, e model.Event) {
	if r == nil || r.rdb == nil {
		return
	}
	ts := time.UnixMilli(e.Timestamp).UTC()
	date := ts.Format("2006-01-02")
	month := ts.Format("2006-01")
	userID := strings.TrimSpace(e.UserID)

	pipe := r.rdb.Pipeline()
	expire := map[string]time.Duration{}

	dayKey := fmt.Sprintf("metrics:events:%s", date)
	pipe.Incr(ctx, dayKey)
	expire[dayKey] = r.dayTTL
	pipe.Incr(ctx, "metrics:events:total")

	typeKey := fmt.Sprintf("dist:types:%s", date)
	pipe.HIncrBy(ctx, typeKey, e.EventType, 1)
	expire[typeKey] = r.distTTL

	if e.EventType == model.TypeVoteCast {
		outcome := "negative"
		if votePositive(e) {
			outcome = "positive"
		}
		voteKey := fmt.Sprintf("metrics:votes:%s:%s", outcome, date)
		pipe.Incr(ctx, voteKey)
		expire[voteKey] = r.dayTTL
	}

	if userID != "" {
		dauKey := fmt.Sprintf("active:dau:%s", date)
		pipe.PFAdd(ctx, dauKey, userID)
		expire[dauKey] = r.dayTTL

		mauKey := fmt.Sprintf("active:mau:%s", month)
		pipe.PFAdd(ctx, mauKey, userID)
		expire[mauKey] = r.monthTTL

		pipe.PFAdd(ctx, "metrics:users:total", userID)
	}
	_, _ = pipe.Exec(ctx)
	r.expireKeys(ctx, expire)
}

// ObserveBatch records every event of an accepted batch.
func (r *RedisRecorder) ObserveBatch(ctx context.Context, events []model.Event) {
	for _, e := range events {
		r.ObserveEvent(ctx, e)
	}
}

func votePositive(e model.Event) bool {
	var props map[string]any
	if len(e.Properties) > 0 {
		if err := json.Unmarshal(e.Properties, &props); err != nil {
			return false
		}
	}
	switch v := props["value"].(type) {
	case float64:
		return v > 0
	case json.Number:
		n, err := v.Float64()
		return err == nil && n > 0
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return err == nil && n > 0
	default:
		return false
	}
}

func (r *RedisRecorder) expireKeys(ctx context.Context, keys map[string]time.Duration) {
	if r == nil || r.rdb == nil || len(keys) == 0 {
		return
	}
	pipe := r.rdb.Pipeline()
	for k, ttl := range keys {
		if strings.TrimSpace(k) == "" || ttl <= 0 {
			continue
		}
		pipe.Expire(ctx, k, ttl)
	}
	_, _ = pipe.Exec(ctx)
}

type DailySummary struct {
	Events        int64 `json:"events"`
	PositiveVotes int64 `json:"positive_votes"`
	NegativeVotes int64 `json:"negative_votes"`
	ActiveUsers   int64 `json:"active_users"`
}

// Today reads the counters for the current UTC day. ok is false when no
// recorder is wired, so callers can omit the section entirely.
func (r *RedisRecorder) Today(ctx context.Context, now time.Time) (DailySummary, bool, error) {
	if r == nil || r.rdb == nil {
		return DailySummary{}, false, nil
	}
	date := now.UTC().Format("2006-01-02")

	pipe := r.rdb.Pipeline()
	eventsCmd := pipe.Get(ctx, fmt.Sprintf("metrics:events:%s", date))
	posCmd := pipe.Get(ctx, fmt.Sprintf("metrics:votes:positive:%s", date))
	negCmd := pipe.Get(ctx, fmt.Sprintf("metrics:votes:negative:%s", date))
	usersCmd := pipe.PFCount(ctx, fmt.Sprintf("active:dau:%s", date))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return DailySummary{}, true, err
	}

	var s DailySummary
	s.Events, _ = eventsCmd.Int64()
	s.PositiveVotes, _ = posCmd.Int64()
	s.NegativeVotes, _ = negCmd.Int64()
	s.ActiveUsers, _ = usersCmd.Result()
	return s, true, nil
}

type BucketCount struct {
	Bucket string `json:"bucket"`
	Active int64  `json:"active"`
}

type DistItem struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// ActiveSeries walks the daily (or monthly) HLLs across a window and
// returns the distinct-user count per bucket.
func (r *RedisRecorder) ActiveSeries(ctx context.Context, start, end time.Time, bucket string) ([]BucketCount, error) {
	if r == nil || r.rdb == nil {
		return nil, nil
	}
	start = start.UTC()
	end = end.UTC()
	if end.Before(start) {
		start, end = end, start
	}

	switch bucket {
	case "month":
		return r.activeByMonth(ctx, start, end)
	default:
		return r.activeByDay(ctx, start, end)
	}
}

func (r *RedisRecorder) activeByDay(ctx context.Context, start, end time.Time) ([]BucketCount, error) {
	var out []BucketCount
	cur := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	for !cur.After(last) {
		b := cur.Format("2006-01-02")
		n, err := r.rdb.PFCount(ctx, fmt.Sprintf("active:dau:%s", b)).Result()
		if err != nil && err != redis.Nil {
			return nil, err
		}
		out = append(out, BucketCount{Bucket: b, Active: n})
		cur = cur.AddDate(0, 0, 1)
	}
	return out, nil
}

func (r *RedisRecorder) activeByMonth(ctx context.Context, start, end time.Time) ([]BucketCount, error) {
	var out []BucketCount
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)

	for !cur.After(last) {
		b := cur.Format("2006-01")
		n, err := r.rdb.PFCount(ctx, fmt.Sprintf("active:mau:%s", b)).Result()
		if err != nil && err != redis.Nil {
			return nil, err
		}
		out = append(out, BucketCount{Bucket: b, Active: n})
		cur = cur.AddDate(0, 1, 0)
	}
	return out, nil
}

// TypeDistribution sums the per-day event type hashes across a window,
// ordered by count descending.
func (r *RedisRecorder) TypeDistribution(ctx context.Context, start, end time.Time, limit int) ([]DistItem, error) {
	if r == nil || r.rdb == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	start = start.UTC()
	end = end.UTC()
	if end.Before(start) {
		start, end = end, start
	}

	acc := map[string]int64{}
	cur := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	for !cur.After(last) {
		m, err := r.rdb.HGetAll(ctx, fmt.Sprintf("dist:types:%s", cur.Format("2006-01-02"))).Result()
		if err != nil && err != redis.Nil {
			return nil, err
		}
		for k, v := range m {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				continue
			}
			acc[k] += n
		}
		cur = cur.AddDate(0, 0, 1)
	}

	items := make([]DistItem, 0, len(acc))
	for k, v := range acc {
		items = append(items, DistItem{Key: k, Count: v})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count == items[j].Count {
			return items[i].Key < items[j].Key
		}
		return items[i].Count > items[j].Count
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
