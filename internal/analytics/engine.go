// Package analytics computes dashboard snapshots from filtered event
// windows. Every sub-metric degrades to an explicit null when its signal
// is absent in range: a zero always means "observed and counted to
// zero", never "nothing to observe".
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/Mocksi/bilan-sub001/internal/cache"
	"github.com/Mocksi/bilan-sub001/internal/model"
	"github.com/Mocksi/bilan-sub001/internal/obs"
	"github.com/Mocksi/bilan-sub001/internal/store"
	"gorm.io/gorm"
)

const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"

	BucketDay  = "day"
	BucketWeek = "week"
)

// Range bounds a query window as half-open [Start, End) epoch millis.
type Range struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

func (r Range) Validate() error {
	if r.End < r.Start {
		return store.ErrInvalidRange
	}
	return nil
}

type ConversationStats struct {
	TotalConversations     int      `json:"totalConversations"`
	CompletedConversations int      `json:"completedConversations"`
	CompletionRate         *float64 `json:"completionRate"`
	SuccessRate            *float64 `json:"successRate"`
	AverageMessages        *float64 `json:"averageMessages"`
}

type JourneyItem struct {
	Name           string  `json:"name"`
	Occurrences    int     `json:"occurrences"`
	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completionRate"`
}

type JourneyStats struct {
	TotalOccurrences int           `json:"totalOccurrences"`
	Items            []JourneyItem `json:"items"`
}

type Comment struct {
	EventID   string `json:"event_id"`
	UserID    string `json:"user_id"`
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
}

type FeedbackStats struct {
	TotalVotes     int       `json:"totalVotes"`
	PositiveVotes  int       `json:"positiveVotes"`
	PositiveRate   *float64  `json:"positiveRate"`
	RecentComments []Comment `json:"recentComments"`
}

type TimeBucket struct {
	Date          string  `json:"date"`
	TotalVotes    int     `json:"totalVotes"`
	PositiveVotes int     `json:"positiveVotes"`
	PositiveRate  float64 `json:"positiveRate"`
}

// Dashboard is the full snapshot returned by the query boundary. Narrower
// scopes (votes-only, journeys-only, turns-only) populate a subset and
// leave the rest nil.
type Dashboard struct {
	Range         Range              `json:"range"`
	Bucket        string             `json:"bucket"`
	Conversations *ConversationStats `json:"conversations,omitempty"`
	Journeys      *JourneyStats      `json:"journeys,omitempty"`
	Feedback      *FeedbackStats     `json:"feedback,omitempty"`
	TrustScore    *float64           `json:"trustScore,omitempty"`
	Trend         string             `json:"trend,omitempty"`
	TimeSeries    []TimeBucket       `json:"timeSeries,omitempty"`
}

type Engine struct {
	db    *gorm.DB
	cache *cache.Cache[*Dashboard]
	stats *obs.Stats
	now   func() time.Time

	cacheTTL       time.Duration
	halfLife       time.Duration
	floorWeight    float64
	maxScan        int
	topJourneys    int
	recentComments int
	trendThreshold float64
	trendMinVotes  int
}

type Option func(*Engine)

func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithStats(stats *obs.Stats) Option {
	return func(e *Engine) { e.stats = stats }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.cacheTTL = ttl
		}
	}
}

func WithHalfLife(halfLife time.Duration) Option {
	return func(e *Engine) {
		if halfLife > 0 {
			e.halfLife = halfLife
		}
	}
}

// WithMaxScan caps the rows one aggregation may scan. Oversized windows
// are truncated rather than allowed to run away.
func WithMaxScan(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxScan = n
		}
	}
}

func NewEngine(db *gorm.DB, opts ...Option) *Engine {
	e := &Engine{
		db:             db,
		now:            time.Now,
		cacheTTL:       5 * time.Minute,
		halfLife:       7 * 24 * time.Hour,
		floorWeight:    0.1,
		maxScan:        100_000,
		topJourneys:    10,
		recentComments: 5,
		trendThreshold: 0.1,
		trendMinVotes:  10,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.cache = cache.New[*Dashboard](e.cacheTTL, cache.WithNow[*Dashboard](e.now))
	return e
}

// InvalidateCache drops every memoized snapshot. The store's after-commit
// hook is the only production caller.
func (e *Engine) InvalidateCache() {
	e.cache.InvalidateAll()
}

type scopeSpec struct {
	name          string
	types         []string
	conversations bool
	journeys      bool
	feedback      bool
}

var (
	scopeDashboard = scopeSpec{
		name:          "dashboard",
		conversations: true,
		journeys:      true,
		feedback:      true,
	}
	scopeVotes = scopeSpec{
		name:     "votes",
		types:    []string{model.TypeVoteCast},
		feedback: true,
	}
	scopeJourneys = scopeSpec{
		name:     "journeys",
		types:    []string{model.TypeJourneyStep},
		journeys: true,
	}
	scopeTurns = scopeSpec{
		name: "turns",
		types: []string{
			model.TypeConversationStarted,
			model.TypeConversationEnded,
			model.TypeTurnCreated,
			model.TypeTurnCompleted,
			model.TypeTurnFailed,
		},
		conversations: true,
	}
)

// Dashboard computes (or serves from cache) the full snapshot for a window.
func (e *Engine) Dashboard(ctx context.Context, r Range, bucket string) (*Dashboard, error) {
	return e.snapshot(ctx, scopeDashboard, r, bucket)
}

// Votes is the feedback-only sub-query: same engine, narrower type filter.
func (e *Engine) Votes(ctx context.Context, r Range, bucket string) (*Dashboard, error) {
	return e.snapshot(ctx, scopeVotes, r, bucket)
}

func (e *Engine) Journeys(ctx context.Context, r Range) (*Dashboard, error) {
	return e.snapshot(ctx, scopeJourneys, r, BucketDay)
}

func (e *Engine) Turns(ctx context.Context, r Range) (*Dashboard, error) {
	return e.snapshot(ctx, scopeTurns, r, BucketDay)
}

func (e *Engine) snapshot(ctx context.Context, scope scopeSpec, r Range, bucket string) (*Dashboard, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if bucket != BucketWeek {
		bucket = BucketDay
	}

	key := fmt.Sprintf("%s:%d:%d:%s", scope.name, r.Start, r.End, bucket)
	if d, ok := e.cache.Get(key); ok {
		e.stats.ObserveCache(true)
		return d, nil
	}
	e.stats.ObserveCache(false)

	events, err := e.load(ctx, scope, r)
	if err != nil {
		// A storage failure must not masquerade as a quiet period.
		return nil, err
	}

	d := &Dashboard{Range: r, Bucket: bucket}
	if scope.conversations {
		d.Conversations = conversationStats(events)
	}
	if scope.journeys {
		d.Journeys = journeyStats(events, e.topJourneys)
	}
	if scope.feedback {
		votes := filterType(events, model.TypeVoteCast)
		d.Feedback = feedbackStats(votes, e.recentComments)
		d.TrustScore = e.trustScore(votes)
		d.Trend = trendDirection(votes, e.trendThreshold, e.trendMinVotes)
		d.TimeSeries = timeSeries(votes, bucket)
	}

	e.cache.Set(key, d)
	return d, nil
}

func (e *Engine) load(ctx context.Context, scope scopeSpec, r Range) ([]model.Event, error) {
	f := store.Filter{
		Start: &r.Start,
		End:   &r.End,
		Types: scope.types,
		Limit: e.maxScan,
	}
	start := time.Now()
	events, err := store.QueryEvents(ctx, e.db, f)
	e.stats.ObserveStoreQuery(len(events), time.Since(start), err)
	return events, err
}

func filterType(events []model.Event, eventType string) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
