package notice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for the NATS push channel
type NATSConfig struct {
	URL           string
	SubjectPrefix string // notices are published on <prefix>.<gameID>.notices
	StreamName    string // when set, read through an ordered JetStream consumer
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns default NATS channel configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "ctf.games",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NoticeSubject returns the subject a game's notices are published on.
func NoticeSubject(prefix string, gameID int) string {
	return fmt.Sprintf("%s.%d.notices", prefix, gameID)
}

// NATSChannel receives notice frames relayed onto NATS. Frames use the same envelope
// as the websocket hub.
type NATSChannel struct {
	config  NATSConfig
	subject string

	mu      sync.Mutex
	nc      *nats.Conn
	sub     *nats.Subscription
	consume jetstream.ConsumeContext
}

func NewNATSChannel(config NATSConfig, gameID int) *NATSChannel {
	return &NATSChannel{
		config:  config,
		subject: NoticeSubject(config.SubjectPrefix, gameID),
	}
}

func (c *NATSChannel) Subject() string {
	return c.subject
}

// Open connects to NATS and subscribes to the game's notice subject.
func (c *NATSChannel) Open(ctx context.Context, handler FrameHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nc != nil {
		return errors.New("nats channel already open")
	}

	opts := []nats.Option{
		nats.Name("ctfsession"),
		nats.MaxReconnects(c.config.MaxReconnects),
		nats.ReconnectWait(c.config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Error().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(c.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	if c.config.StreamName != "" {
		if err := c.openJetStream(ctx, nc, handler); err != nil {
			nc.Close()
			return err
		}
	} else {
		sub, err := nc.Subscribe(c.subject, func(msg *nats.Msg) {
			handler(msg.Data)
		})
		if err != nil {
			nc.Close()
			return fmt.Errorf("subscribe to %s: %w", c.subject, err)
		}
		c.sub = sub
	}

	c.nc = nc
	log.Info().
		Str("subject", c.subject).
		Str("stream", c.config.StreamName).
		Msg("NATS notice channel subscribed")
	return nil
}

// openJetStream reads new messages only; the pulled history covers the past.
func (c *NATSChannel) openJetStream(ctx context.Context, nc *nats.Conn, handler FrameHandler) error {
	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}

	consumer, err := js.OrderedConsumer(ctx, c.config.StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{c.subject},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create ordered consumer: %w", err)
	}

	consume, err := consumer.Consume(func(msg jetstream.Msg) {
		handler(msg.Data())
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	c.consume = consume
	return nil
}

// Close stops the subscription and closes the connection.
func (c *NATSChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.consume != nil {
		c.consume.Stop()
		c.consume = nil
	}
	if c.sub != nil {
		if err := c.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			log.Debug().Err(err).Str("subject", c.subject).Msg("failed to unsubscribe")
		}
		c.sub = nil
	}
	if c.nc != nil {
		c.nc.Close()
		c.nc = nil
	}
	return nil
}
