package core

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// EventBus wraps NATS JetStream for publishing scan verdicts and quarantine
// incidents to external monitoring consumers. All publishing happens off the
// upload hot path; a nil *EventBus is safe to publish to and does nothing.
type EventBus struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	ns     *server.Server
	logger zerolog.Logger
	mu     sync.RWMutex
	subs   []*nats.Subscription
}

// NewEventBus creates a new EventBus. If cfg.Embedded is true, it starts an
// embedded NATS server so a single binary needs no external broker.
func NewEventBus(cfg *BusConfig, logger zerolog.Logger) (*EventBus, error) {
	bus := &EventBus{
		logger: logger.With().Str("component", "event_bus").Logger(),
		subs:   make([]*nats.Subscription, 0),
	}

	if cfg.Embedded {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating NATS data dir: %w", err)
		}

		opts := &server.Options{
			Host:      "127.0.0.1",
			Port:      cfg.Port,
			JetStream: true,
			StoreDir:  cfg.DataDir,
			NoLog:     true,
			NoSigs:    true,
		}

		ns, err := server.NewServer(opts)
		if err != nil {
			return nil, fmt.Errorf("creating embedded NATS server: %w", err)
		}

		ns.Start()

		if !ns.ReadyForConnections(10 * time.Second) {
			return nil, fmt.Errorf("embedded NATS server failed to start within timeout")
		}

		bus.ns = ns
		bus.logger.Info().Int("port", cfg.Port).Msg("embedded NATS server started")
	}

	url := cfg.URL
	if cfg.Embedded {
		url = fmt.Sprintf("nats://127.0.0.1:%d", cfg.Port)
	}

	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				bus.logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			bus.logger.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	bus.nc = nc

	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}
	bus.js = js

	// AddStream returns the existing stream if config matches; if it exists
	// with a different config (e.g., after an upgrade), update it instead.
	streamCfg := &nats.StreamConfig{
		Name:      "FILEGATE_EVENTS",
		Subjects:  []string{"filegate.scan.>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour * 30, // 30 days retention
		MaxBytes:  512 * 1024 * 1024,   // 512MB max
		Storage:   nats.FileStorage,
		Discard:   nats.DiscardOld,
	}
	if _, err = js.AddStream(streamCfg); err != nil {
		if _, updateErr := js.UpdateStream(streamCfg); updateErr != nil {
			return nil, fmt.Errorf("creating/updating events stream: %w (original: %v)", updateErr, err)
		}
	}

	bus.logger.Info().Str("url", url).Msg("connected to NATS JetStream")
	return bus, nil
}

// PublishEvent publishes a ScanEvent under filegate.scan.<type>.
// Publishing to a nil bus is a no-op so callers need no enabled-check.
func (b *EventBus) PublishEvent(event *ScanEvent) error {
	if b == nil {
		return nil
	}

	data, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	subject := fmt.Sprintf("filegate.scan.%s", event.Type)
	if _, err = b.js.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing event to %s: %w", subject, err)
	}

	b.logger.Debug().
		Str("event_id", event.ID).
		Str("subject", subject).
		Str("risk", event.Risk.String()).
		Msg("event published")

	return nil
}

// SubscribeToScanEvents subscribes to all scan events with a durable consumer.
func (b *EventBus) SubscribeToScanEvents(handler func(event *ScanEvent)) error {
	sub, err := b.js.Subscribe("filegate.scan.>", func(msg *nats.Msg) {
		event, err := UnmarshalScanEvent(msg.Data)
		if err != nil {
			b.logger.Error().Err(err).Msg("failed to unmarshal scan event")
			_ = msg.Nak()
			return
		}
		handler(event)
		_ = msg.Ack()
	}, nats.DeliverNew(), nats.AckExplicit(), nats.Durable("filegate-monitor"))
	if err != nil {
		return fmt.Errorf("subscribing to scan events: %w", err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return nil
}

// IsConnected reports whether the NATS connection is alive.
func (b *EventBus) IsConnected() bool {
	if b == nil || b.nc == nil {
		return false
	}
	return b.nc.IsConnected()
}

// Close shuts down the event bus and any embedded server.
func (b *EventBus) Close() error {
	if b == nil {
		return nil
	}

	b.mu.Lock()
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.subs = nil
	b.mu.Unlock()

	if b.nc != nil {
		b.nc.Close()
	}
	if b.ns != nil {
		b.ns.Shutdown()
		b.ns.WaitForShutdown()
	}
	return nil
}
