package obs

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

type Stats struct {
	start time.Time

	httpRequests     atomic.Int64
	httpErrors       atomic.Int64
	httpLatencyUS    atomic.Int64
	httpLatencyCount atomic.Int64

	nsqPublishTotal  atomic.Int64
	nsqPublishErrors atomic.Int64
	nsqPublishBytes  atomic.Int64

	consumerMessages     atomic.Int64
	consumerErrors       atomic.Int64
	consumerLatencyUS    atomic.Int64
	consumerLatencyCount atomic.Int64

	dbFlushTotal        atomic.Int64
	dbFlushErrors       atomic.Int64
	dbFlushLatencyUS    atomic.Int64
	dbFlushLatencyCount atomic.Int64
	dbFlushRows         atomic.Int64

	storeQueries      atomic.Int64
	storeQueryErrors  atomic.Int64
	storeRowsScanned  atomic.Int64
	storeLatencyUS    atomic.Int64
	storeLatencyCount atomic.Int64

	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
}

func New() *Stats {
	return &Stats{start: time.Now()}
}

func (s *Stats) ObserveHTTP(status int, dur time.Duration) {
	if s == nil {
		return
	}
	s.httpRequests.Add(1)
	if status >= 500 {
		s.httpErrors.Add(1)
	}
	s.httpLatencyUS.Add(dur.Microseconds())
	s.httpLatencyCount.Add(1)
}

func (s *Stats) ObserveNSQPublish(bytes int, err error) {
	if s == nil {
		return
	}
	s.nsqPublishTotal.Add(1)
	s.nsqPublishBytes.Add(int64(bytes))
	if err != nil {
		s.nsqPublishErrors.Add(1)
	}
}

func (s *Stats) ObserveConsumerMessage(dur time.Duration, err error) {
	if s == nil {
		return
	}
	s.consumerMessages.Add(1)
	if err != nil {
		s.consumerErrors.Add(1)
	}
	s.consumerLatencyUS.Add(dur.Microseconds())
	s.consumerLatencyCount.Add(1)
}

func (s *Stats) ObserveDBFlush(rows int, dur time.Duration, err error) {
	if s == nil {
		return
	}
	s.dbFlushTotal.Add(1)
	s.dbFlushRows.Add(int64(rows))
	if err != nil {
		s.dbFlushErrors.Add(1)
	}
	s.dbFlushLatencyUS.Add(dur.Microseconds())
	s.dbFlushLatencyCount.Add(1)
}

// ObserveStoreQuery counts one storage scan. Cache tests rely on this
// counter to prove that a cached snapshot did not touch storage.
func (s *Stats) ObserveStoreQuery(rows int, dur time.Duration, err error) {
	if s == nil {
		return
	}
	s.storeQueries.Add(1)
	s.storeRowsScanned.Add(int64(rows))
	if err != nil {
		s.storeQueryErrors.Add(1)
	}
	s.storeLatencyUS.Add(dur.Microseconds())
	s.storeLatencyCount.Add(1)
}

func (s *Stats) ObserveCache(hit bool) {
	if s == nil {
		return
	}
	if hit {
		s.cacheHits.Add(1)
	} else {
		s.cacheMisses.Add(1)
	}
}

// StoreQueries returns the number of storage scans observed so far.
func (s *Stats) StoreQueries() int64 {
	if s == nil {
		return 0
	}
	return s.storeQueries.Load()
}

type Snapshot struct {
	UptimeSeconds int64 `json:"uptime_seconds"`

	HTTP struct {
		Requests int64   `json:"requests"`
		Errors   int64   `json:"errors"`
		AvgMS    float64 `json:"avg_ms"`
	} `json:"http"`

	NSQ struct {
		PublishTotal  int64 `json:"publish_total"`
		PublishErrors int64 `json:"publish_errors"`
		PublishBytes  int64 `json:"publish_bytes"`
	} `json:"nsq"`

	Consumer struct {
		Messages int64   `json:"messages"`
		Errors   int64   `json:"errors"`
		AvgMS    float64 `json:"avg_ms"`
	} `json:"consumer"`

	DBFlush struct {
		Flushes int64   `json:"flushes"`
		Errors  int64   `json:"errors"`
		Rows    int64   `json:"rows"`
		AvgMS   float64 `json:"avg_ms"`
	} `json:"db_flush"`

	Store struct {
		Queries     int64   `json:"queries"`
		Errors      int64   `json:"errors"`
		RowsScanned int64   `json:"rows_scanned"`
		AvgMS       float64 `json:"avg_ms"`
	} `json:"store"`

	Cache struct {
		Hits   int64 `json:"hits"`
		Misses int64 `json:"misses"`
	} `json:"cache"`
}

func (s *Stats) SnapshotNow() Snapshot {
	var snap Snapshot
	if s == nil {
		return snap
	}
	snap.UptimeSeconds = int64(time.Since(s.start).Seconds())

	snap.HTTP.Requests = s.httpRequests.Load()
	snap.HTTP.Errors = s.httpErrors.Load()
	if n := s.httpLatencyCount.Load(); n > 0 {
		snap.HTTP.AvgMS = float64(s.httpLatencyUS.Load()) / float64(n) / 1000.0
	}

	snap.NSQ.PublishTotal = s.nsqPublishTotal.Load()
	snap.NSQ.PublishErrors = s.nsqPublishErrors.Load()
	snap.NSQ.PublishBytes = s.nsqPublishBytes.Load()

	snap.Consumer.Messages = s.consumerMessages.Load()
	snap.Consumer.Errors = s.consumerErrors.Load()
	if n := s.consumerLatencyCount.Load(); n > 0 {
		snap.Consumer.AvgMS = float64(s.consumerLatencyUS.Load()) / float64(n) / 1000.0
	}

	snap.DBFlush.Flushes = s.dbFlushTotal.Load()
	snap.DBFlush.Errors = s.dbFlushErrors.Load()
	snap.DBFlush.Rows = s.dbFlushRows.Load()
	if n := s.dbFlushLatencyCount.Load(); n > 0 {
		snap.DBFlush.AvgMS = float64(s.dbFlushLatencyUS.Load()) / float64(n) / 1000.0
	}

	snap.Store.Queries = s.storeQueries.Load()
	snap.Store.Errors = s.storeQueryErrors.Load()
	snap.Store.RowsScanned = s.storeRowsScanned.Load()
	if n := s.storeLatencyCount.Load(); n > 0 {
		snap.Store.AvgMS = float64(s.storeLatencyUS.Load()) / float64(n) / 1000.0
	}

	snap.Cache.Hits = s.cacheHits.Load()
	snap.Cache.Misses = s.cacheMisses.Load()
	return snap
}

func (s *Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.SnapshotNow())
}
