// Package nats provides a queue.Sender and a durable pull consumer on NATS
// JetStream, an alternate broker for running the splitter outside AWS.
//
// The queue identifier passed to Send is the JetStream subject. Every message
// carries a unique Nats-Msg-Id header so the stream's duplicate window drops
// accidental republishes.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/input-output-hk/catalyst-forge-libs/splitter/errors"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/queue"
)

// Config describes the NATS connection, the stream split events are stored in
// and the durable consumer that reads them back.
type Config struct {
	URL             string
	Stream          string
	Subjects        []string
	Consumer        string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // how long to keep messages
	DuplicateWindow time.Duration
	AckWait         time.Duration
	MaxDeliver      int
	MaxAckPending   int
}

// DefaultConfig returns a configuration for a local NATS server.
func DefaultConfig() Config {
	return Config{
		URL:             nats.DefaultURL,
		Stream:          "SPLITTER",
		Subjects:        []string{"splitter.>"},
		Consumer:        "splitter",
		MaxReconnects:   -1, // infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          24 * time.Hour,
		DuplicateWindow: 2 * time.Minute,
		AckWait:         30 * time.Second,
		MaxDeliver:      5,
		MaxAckPending:   100,
	}
}

// publisher is the part of jetstream.JetStream used by Send.
type publisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Client publishes split events to JetStream. It is safe for concurrent use.
type Client struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	pub    publisher
	cfg    Config
	logger *slog.Logger
	newID  func() string
}

var _ queue.Sender = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithIDGenerator replaces the message ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// Connect dials the server, creates the JetStream context and makes sure the
// stream exists with the configured subjects.
func Connect(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	c := &Client{cfg: cfg, newID: uuid.NewString}
	for _, opt := range opts {
		opt(c)
	}

	natsOpts := []nats.Option{
		nats.Name("splitter"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if c.logger != nil && err != nil {
				c.logger.Error("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			if c.logger != nil {
				c.logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
			}
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			if c.logger != nil {
				c.logger.Error("NATS error", "error", err)
			}
		}),
	}

	nc, err := nats.Connect(cfg.URL, natsOpts...)
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeNetwork, "failed to connect to NATS",
			map[string]any{"url": cfg.URL})
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	c.nc, c.js, c.pub = nc, js, js

	if err := c.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return c, nil
}

func (c *Client) streamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        c.cfg.Stream,
		Description: "Singleton events produced by the splitter",
		Subjects:    c.cfg.Subjects,
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      c.cfg.MaxAge,
		Storage:     jetstream.FileStorage,
		Duplicates:  c.cfg.DuplicateWindow,
	}
}

func (c *Client) ensureStream(ctx context.Context) error {
	_, err := c.js.CreateOrUpdateStream(ctx, c.streamConfig())
	if err != nil {
		return fmt.Errorf("create or update stream %q: %w", c.cfg.Stream, err)
	}
	if c.logger != nil {
		c.logger.InfoContext(ctx, "JetStream stream ready", "stream", c.cfg.Stream)
	}
	return nil
}

// Send publishes body on subject.
func (c *Client) Send(ctx context.Context, subject string, body []byte) error {
	if subject == "" {
		return fmt.Errorf("subject cannot be empty")
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    body,
		Header:  nats.Header{},
	}
	msg.Header.Set(nats.MsgIdHdr, c.newID())

	var opts []jetstream.PublishOpt
	if c.cfg.Stream != "" {
		opts = append(opts, jetstream.WithExpectStream(c.cfg.Stream))
	}

	ack, err := c.pub.PublishMsg(ctx, msg, opts...)
	if err != nil {
		if c.logger != nil {
			c.logger.ErrorContext(ctx, "failed to publish message",
				"queue", subject,
				"error", err)
		}
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	if c.logger != nil {
		c.logger.DebugContext(ctx, "message published",
			"queue", subject,
			"stream", ack.Stream,
			"sequence", ack.Sequence,
			"duplicate", ack.Duplicate)
	}
	return nil
}

// Consumer returns the durable pull consumer reading subject, creating it when
// it does not exist yet.
func (c *Client) Consumer(ctx context.Context, subject string) (jetstream.Consumer, error) {
	if c.js == nil {
		return nil, fmt.Errorf("client is not connected")
	}

	cons, err := c.js.CreateOrUpdateConsumer(ctx, c.cfg.Stream, jetstream.ConsumerConfig{
		Durable:       c.cfg.Consumer,
		Description:   "Splitter redelivery consumer",
		FilterSubject: subject,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       c.cfg.AckWait,
		MaxDeliver:    c.cfg.MaxDeliver,
		MaxAckPending: c.cfg.MaxAckPending,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer %q: %w", c.cfg.Consumer, err)
	}
	return cons, nil
}

// Close drains nothing and closes the connection.
func (c *Client) Close() error {
	if c.nc != nil {
		c.nc.Close()
	}
	return nil
}
