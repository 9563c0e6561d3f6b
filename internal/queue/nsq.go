package queue

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nsqio/go-nsq"
)

type NSQPublisher struct {
	prod *nsq.Producer
}

// NewNSQPublisher builds a producer for the given nsqd. The connection
// is lazy; the first Publish dials. tune hooks run after the defaults,
// so callers can override any producer setting.
func NewNSQPublisher(nsqdAddress string, tune ...func(*nsq.Config)) (*NSQPublisher, error) {
	addr := strings.TrimSpace(nsqdAddress)
	if addr == "" {
		return nil, errors.New("nsqd address is empty")
	}
	cfg := nsq.NewConfig()
	cfg.DialTimeout = 3 * time.Second
	// ReadTimeout must stay above the 30s heartbeat interval or the
	// producer disconnects itself between publishes.
	cfg.ReadTimeout = 40 * time.Second
	cfg.WriteTimeout = 3 * time.Second
	for _, fn := range tune {
		if fn != nil {
			fn(cfg)
		}
	}

	prod, err := nsq.NewProducer(addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("nsq producer %s: %w", addr, err)
	}
	prod.SetLogger(log.New(log.Writer(), "nsq ", log.LstdFlags), nsq.LogLevelWarning)
	return &NSQPublisher{prod: prod}, nil
}

func (p *NSQPublisher) Publish(topic string, body []byte) error {
	return p.prod.Publish(topic, body)
}

func (p *NSQPublisher) MultiPublish(topic string, bodies [][]byte) error {
	return p.prod.MultiPublish(topic, bodies)
}

// Stop is nil safe so shutdown paths need no guard.
func (p *NSQPublisher) Stop() {
	if p == nil || p.prod == nil {
		return
	}
	p.prod.Stop()
}
