package queue

import (
	"testing"
	"time"

	"github.com/nsqio/go-nsq"
)

func TestNewNSQPublisher_EmptyAddr(t *testing.T) {
	t.Parallel()

	if _, err := NewNSQPublisher("   "); err == nil {
		t.Fatalf("expected error for empty address")
	}
}

func TestNewNSQPublisher_TuneOverridesDefaults(t *testing.T) {
	t.Parallel()

	var captured *nsq.Config
	p, err := NewNSQPublisher("127.0.0.1:1", func(cfg *nsq.Config) {
		cfg.DialTimeout = 250 * time.Millisecond
		captured = cfg
	})
	if err != nil {
		t.Fatalf("NewNSQPublisher: %v", err)
	}
	defer p.Stop()

	if captured == nil || captured.DialTimeout != 250*time.Millisecond {
		t.Fatalf("expected tune hook to override the dial timeout, got %+v", captured)
	}
	if captured.ReadTimeout <= 30*time.Second {
		t.Fatalf("read timeout must exceed the heartbeat interval, got %s", captured.ReadTimeout)
	}
}

func TestNSQPublisher_PublishAndStop_NoNSQD(t *testing.T) {
	t.Parallel()

	// NewProducer does not connect eagerly; Publish errors when no nsqd
	// is listening.
	p, err := NewNSQPublisher("127.0.0.1:1", func(cfg *nsq.Config) {
		cfg.DialTimeout = 200 * time.Millisecond
	})
	if err != nil {
		t.Fatalf("NewNSQPublisher: %v", err)
	}
	if err := p.Publish("events", []byte("hello")); err == nil {
		t.Fatalf("expected publish to fail with no nsqd")
	}
	p.Stop()

	var nilPub *NSQPublisher
	nilPub.Stop()
}
