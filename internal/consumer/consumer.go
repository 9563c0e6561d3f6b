package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/Mocksi/bilan-sub001/internal/config"
	"github.com/Mocksi/bilan-sub001/internal/ingest"
	"github.com/Mocksi/bilan-sub001/internal/metrics"
	"github.com/Mocksi/bilan-sub001/internal/model"
	"github.com/Mocksi/bilan-sub001/internal/obs"
	"github.com/Mocksi/bilan-sub001/internal/store"
)

type NSQConsumer struct {
	consumer *nsq.Consumer
	onStop   []func()
}

// NewNSQEventConsumer drains the events topic into the writer. Rows are
// batched before hitting the store; a failed flush propagates back so
// nsqd requeues the affected messages.
func NewNSQEventConsumer(ctx context.Context, cfg config.Config, w *store.Writer, recorder *metrics.RedisRecorder, stats *obs.Stats) (*NSQConsumer, error) {
	channel := cfg.NSQEventChannel
	if channel == "" {
		channel = "event-consumer"
	}
	handler, cleanup := handleEventMessage(ctx, cfg, w, recorder, stats)
	c, err := newConsumer(ctx, cfg, "events", channel, cfg.NSQEventConcurrency, handler)
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, err
	}
	if cleanup != nil {
		c.onStop = append(c.onStop, cleanup)
	}
	return c, nil
}

func (c *NSQConsumer) Stop() {
	if c == nil || c.consumer == nil {
		return
	}
	c.consumer.Stop()
	<-c.consumer.StopChan
	for _, fn := range c.onStop {
		if fn != nil {
			fn()
		}
	}
}

func newConsumer(ctx context.Context, cfg config.Config, topic, channel string, concurrency int, handler nsq.HandlerFunc) (*NSQConsumer, error) {
	nsqCfg := nsq.NewConfig()
	if cfg.NSQMaxInFlight > 0 {
		nsqCfg.MaxInFlight = cfg.NSQMaxInFlight
	} else {
		nsqCfg.MaxInFlight = 200
	}
	nsqCfg.MsgTimeout = 30 * time.Second
	cons, err := nsq.NewConsumer(topic, channel, nsqCfg)
	if err != nil {
		return nil, err
	}
	cons.SetLogger(log.New(log.Writer(), "nsq ", log.LstdFlags), nsq.LogLevelInfo)
	if concurrency <= 0 {
		concurrency = 1
	}
	cons.AddConcurrentHandlers(handler, concurrency)

	if err := connectToNSQDWithRetry(ctx, cons, cfg.NSQDAddress, topic, channel); err != nil {
		cons.Stop()
		return nil, err
	}
	return &NSQConsumer{consumer: cons}, nil
}

func connectToNSQDWithRetry(ctx context.Context, cons *nsq.Consumer, addr, topic, channel string) error {
	const (
		totalWait = 2 * time.Minute
		maxDelay  = 5 * time.Second
	)
	deadline := time.Now().Add(totalWait)
	delay := 300 * time.Millisecond
	var lastErr error

	for {
		err := cons.ConnectToNSQD(addr)
		if err == nil {
			return nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			return fmt.Errorf("connect nsqd addr=%s topic=%s channel=%s: %w", addr, topic, channel, lastErr)
		}
		log.Printf("nsq connect failed (addr=%s topic=%s channel=%s): %v; retrying in %s", addr, topic, channel, lastErr, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func handleEventMessage(ctx context.Context, cfg config.Config, w *store.Writer, recorder *metrics.RedisRecorder, stats *obs.Stats) (nsq.HandlerFunc, func()) {
	batcher := NewBatcher[model.Event](cfg.DBEventBatchSize, cfg.DBEventFlushInterval, 5*time.Second, func(ctx context.Context, rows []model.Event) error {
		_, err := w.InsertEvents(ctx, rows)
		return err
	})

	return nsq.HandlerFunc(func(m *nsq.Message) error {
		msgStart := time.Now()
		var msg ingest.NSQMessage
		if err := json.Unmarshal(m.Body, &msg); err != nil {
			// Malformed envelopes are dropped; requeueing cannot fix them.
			stats.ObserveConsumerMessage(time.Since(msgStart), nil)
			return nil
		}
		if msg.Type != "event" {
			stats.ObserveConsumerMessage(time.Since(msgStart), nil)
			return nil
		}

		var p ingest.EventPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			stats.ObserveConsumerMessage(time.Since(msgStart), nil)
			return nil
		}
		now := msg.Received
		if now.IsZero() {
			now = time.Now().UTC()
		}
		row := p.ToModel(now)

		// The consumer's lifetime context releases blocked Adds on
		// shutdown; nsqd redelivers anything still in flight.
		if err := batcher.Add(ctx, row); err != nil {
			stats.ObserveConsumerMessage(time.Since(msgStart), err)
			return err
		}

		if recorder != nil {
			metricsCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			recorder.ObserveEvent(metricsCtx, row)
			cancel()
		}
		stats.ObserveConsumerMessage(time.Since(msgStart), nil)
		return nil
	}), batcher.Close
}
