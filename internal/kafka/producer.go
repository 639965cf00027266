package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/campaignops/resource-factory/internal/apperrors"
	"github.com/campaignops/resource-factory/internal/config"
)

// connState models the producer connection lifecycle explicitly. Concurrent
// callers during Connecting share one pending connect attempt.
type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateReady
	stateFailed
)

// Producer publishes JSON events to per-event topics over a single lazily
// initialized connection. Terminal producer failure invokes the configured
// fatal callback so the process shuts down rather than silently dropping
// messages.
type Producer struct {
	cfg    config.KafkaConfig
	logger *zap.Logger

	mu      sync.Mutex
	state   connState
	pending chan struct{}
	writer  *kafka.Writer
	lastErr error

	onFatal func(error)
}

// NewProducer creates a producer. The connection is established on first
// publish. onFatal may be nil.
func NewProducer(cfg config.KafkaConfig, logger *zap.Logger, onFatal func(error)) *Producer {
	return &Producer{cfg: cfg, logger: logger, onFatal: onFatal}
}

// ensureReady drives the state machine to Ready, joining any in-flight
// connect attempt instead of starting a second one.
func (p *Producer) ensureReady(ctx context.Context) error {
	for {
		p.mu.Lock()
		switch p.state {
		case stateReady:
			p.mu.Unlock()
			return nil
		case stateFailed:
			err := p.lastErr
			p.mu.Unlock()
			return apperrors.Wrap(apperrors.KafkaError, err)
		case stateConnecting:
			pending := p.pending
			p.mu.Unlock()
			select {
			case <-pending:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		case stateDisconnected:
			p.state = stateConnecting
			p.pending = make(chan struct{})
			pending := p.pending
			p.mu.Unlock()

			err := p.connect(ctx)

			p.mu.Lock()
			if err != nil {
				p.state = stateDisconnected
				p.lastErr = err
			} else {
				p.state = stateReady
			}
			close(pending)
			p.mu.Unlock()

			if err != nil {
				return apperrors.Wrap(apperrors.KafkaError, err)
			}
			return nil
		}
	}
}

func (p *Producer) connect(ctx context.Context) error {
	// Verify a broker is actually reachable before declaring Ready; the
	// writer itself dials lazily.
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(dialCtx, "tcp", p.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("failed to reach kafka broker %s: %w", p.cfg.Brokers[0], err)
	}
	conn.Close()

	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(p.cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: p.cfg.ProducerTimeout,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}

	p.logger.Info("kafka producer connected", zap.Strings("brokers", p.cfg.Brokers))
	return nil
}

// Publish serializes payload as a JSON string and sends one message to
// topic. On send failure the connection is re-established and the send is
// retried a bounded number of times; exhausting retries is terminal for the
// producer.
func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize message for topic %s: %w", topic, err)
	}

	message := kafka.Message{
		Topic: topic,
		Value: value,
		Time:  time.Now(),
	}
	if key != "" {
		message.Key = []byte(key)
	}

	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.cfg.RetryBackoff):
			}
		}

		if err := p.ensureReady(ctx); err != nil {
			lastErr = err
			continue
		}

		p.mu.Lock()
		writer := p.writer
		p.mu.Unlock()

		if err := writer.WriteMessages(ctx, message); err != nil {
			lastErr = err
			p.logger.Warn("kafka publish failed",
				zap.String("topic", topic),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			p.mu.Lock()
			p.state = stateDisconnected
			p.mu.Unlock()
			continue
		}

		p.logger.Debug("message published", zap.String("topic", topic), zap.String("key", key))
		return nil
	}

	p.fail(lastErr)
	return apperrors.Wrap(apperrors.KafkaError, lastErr)
}

// fail marks the producer terminally failed and triggers process shutdown.
// Silent message loss would corrupt downstream campaign state.
func (p *Producer) fail(err error) {
	p.mu.Lock()
	alreadyFailed := p.state == stateFailed
	p.state = stateFailed
	p.lastErr = err
	p.mu.Unlock()

	if alreadyFailed {
		return
	}
	p.logger.Error("kafka producer failed terminally", zap.Error(err))
	if p.onFatal != nil {
		p.onFatal(err)
	}
}

// Close shuts the writer down.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer == nil {
		return nil
	}
	err := p.writer.Close()
	p.writer = nil
	p.state = stateDisconnected
	return err
}
