// Command splitter fans multi-item events out onto a queue and hands
// single-item events to a consumer. It runs as a Lambda function or as a
// long-running poller against SQS or NATS JetStream.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/joho/godotenv"

	"github.com/input-output-hk/catalyst-forge-libs/splitter"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/config"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/consumer"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/internal/poller"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/queue"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/queue/nats"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/queue/sqs"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "could not load .env file: %v\n", err)
	}

	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "splitter: %v\n", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("splitter exited", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	c := newConsumer(cfg, logger)

	switch cfg.Mode {
	case config.ModeNATSPoll:
		return runNATS(ctx, cfg, c, logger)
	case config.ModeSQSPoll:
		client, err := newSQSClient(ctx, cfg, logger)
		if err != nil {
			return err
		}
		d := newDispatcher(client, c, cfg, logger)
		return poller.NewSQS(client, d, cfg.PollSource(), pollerOptions(cfg, logger)...).Run(ctx)
	default:
		client, err := newSQSClient(ctx, cfg, logger)
		if err != nil {
			return err
		}
		d := newDispatcher(client, c, cfg, logger)
		lambda.StartWithOptions(func(ctx context.Context, raw json.RawMessage) (splitter.Result, error) {
			return d.Handle(ctx, raw)
		}, lambda.WithContext(ctx))
		return nil
	}
}

func runNATS(ctx context.Context, cfg *config.Config, c consumer.Consumer, logger *slog.Logger) error {
	natsCfg := nats.DefaultConfig()
	natsCfg.URL = cfg.NATS.URL
	natsCfg.Stream = cfg.NATS.Stream
	natsCfg.Subjects = cfg.NATS.Subjects
	natsCfg.Consumer = cfg.NATS.Consumer

	client, err := nats.Connect(ctx, natsCfg, nats.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close NATS connection", "error", err)
		}
	}()

	cons, err := client.Consumer(ctx, cfg.PollSource())
	if err != nil {
		return err
	}

	d := newDispatcher(client, c, cfg, logger)
	return poller.NewNATS(poller.JetStreamFetch(cons), d, pollerOptions(cfg, logger)...).Run(ctx)
}

func newDispatcher(sender queue.Sender, c consumer.Consumer, cfg *config.Config, logger *slog.Logger) *splitter.Dispatcher {
	return splitter.New(sender, c, splitter.WithConfig(cfg), splitter.WithLogger(logger))
}

func newSQSClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sqs.Client, error) {
	opts := []sqs.Option{sqs.WithLogger(logger)}
	if cfg.AWS.Endpoint != "" {
		return sqs.NewClientWithLocalStack(ctx, cfg.AWS.Endpoint, opts...)
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.AWS.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWS.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return sqs.NewClientWithConfig(ctx, &awsCfg, opts...)
}

func newConsumer(cfg *config.Config, logger *slog.Logger) consumer.Consumer {
	switch cfg.Consumer.Kind {
	case config.ConsumerNoop:
		return consumer.Noop
	case config.ConsumerCommand:
		opts := []consumer.CommandOption{
			consumer.WithRetry(cfg.Consumer.Retries, cfg.Consumer.RetryDelay),
			consumer.WithStderrWriter(os.Stderr),
			consumer.WithCommandLogger(logger),
		}
		if cfg.Consumer.Timeout > 0 {
			opts = append(opts, consumer.WithTimeout(cfg.Consumer.Timeout))
		}
		cmd := consumer.NewCommand(cfg.Consumer.Command[0], cfg.Consumer.Command[1:], opts...)
		return consumer.Limit(cmd, int64(cfg.Poller.Concurrency))
	default:
		return consumer.NewSimulated(
			consumer.WithDelay(cfg.Consumer.Delay),
			consumer.WithNoun(cfg.ItemNoun),
			consumer.WithSimulatedLogger(logger),
		)
	}
}

func pollerOptions(cfg *config.Config, logger *slog.Logger) []poller.Option {
	return []poller.Option{
		poller.WithBatchSize(cfg.Poller.BatchSize),
		poller.WithWaitTime(cfg.Poller.WaitTime),
		poller.WithConcurrency(cfg.Poller.Concurrency),
		poller.WithBackoff(cfg.Poller.Backoff, cfg.Poller.MaxBackoff),
		poller.WithOrigin(cfg.Origin),
		poller.WithLogger(logger),
	}
}
