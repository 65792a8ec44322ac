// Package config resolves the splitter's configuration once at start-up.
//
// Values come from three layers, later layers overriding earlier ones:
// built-in defaults, an optional YAML file named by SPLITTER_CONFIG_FILE, and
// environment variables (QUEUE_NAME, NATS_URL and the SPLITTER_* family).
// The resolved Config is passed explicitly to the components that need it;
// nothing reads the environment after Load returns.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/splitter/errors"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/event"
)

// Run modes.
const (
	ModeLambda   = "lambda"
	ModeSQSPoll  = "sqs-poll"
	ModeNATSPoll = "nats-poll"
)

// Consumer kinds.
const (
	ConsumerSimulated = "simulated"
	ConsumerCommand   = "command"
	ConsumerNoop      = "noop"
)

// Config is the complete splitter configuration.
type Config struct {
	// Mode selects the transport loop: lambda, sqs-poll or nats-poll.
	Mode string `yaml:"mode"`

	// QueueName is where split events are sent: an SQS queue name or URL, or
	// a JetStream subject in nats-poll mode. Empty disables sending.
	QueueName string `yaml:"queue_name"`

	// EventKind is the discriminator value of events that get split.
	EventKind string `yaml:"event_kind"`

	// NamePath and ItemPath are dot separated locations inside the event.
	NamePath string `yaml:"name_path"`
	ItemPath string `yaml:"item_path"`

	// ItemNoun names one item in result messages ("tag").
	ItemNoun string `yaml:"item_noun"`

	// Origin is the eventSource marker of redelivered records.
	Origin string `yaml:"origin"`

	// SingleQuoteBodies enables the single-to-double quote rewrite of
	// redelivered bodies.
	SingleQuoteBodies bool `yaml:"single_quote_bodies"`

	LogLevel string `yaml:"log_level"`

	Consumer ConsumerConfig `yaml:"consumer"`
	Poller   PollerConfig   `yaml:"poller"`
	NATS     NATSConfig     `yaml:"nats"`
	AWS      AWSConfig      `yaml:"aws"`
}

// ConsumerConfig selects and tunes the singleton consumer.
type ConsumerConfig struct {
	Kind       string        `yaml:"kind"`
	Delay      time.Duration `yaml:"delay"`
	Command    []string      `yaml:"command"`
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	Timeout    time.Duration `yaml:"timeout"`
}

// PollerConfig tunes the long-running pollers.
type PollerConfig struct {
	// Source is the queue or subject polled for work. Defaults to QueueName.
	Source      string        `yaml:"source"`
	BatchSize   int           `yaml:"batch_size"`
	WaitTime    time.Duration `yaml:"wait_time"`
	Concurrency int           `yaml:"concurrency"`
	Backoff     time.Duration `yaml:"backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
}

// NATSConfig describes the JetStream broker.
type NATSConfig struct {
	URL      string   `yaml:"url"`
	Stream   string   `yaml:"stream"`
	Subjects []string `yaml:"subjects"`
	Consumer string   `yaml:"consumer"`
}

// AWSConfig overrides the SDK defaults. Endpoint points the SQS client at
// LocalStack.
type AWSConfig struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Mode:      ModeLambda,
		EventKind: "CreateTags",
		NamePath:  event.DefaultNamePath.String(),
		ItemPath:  event.DefaultItemPath.String(),
		ItemNoun:  "tag",
		Origin:    "aws:sqs",
		LogLevel:  "info",
		Consumer: ConsumerConfig{
			Kind:       ConsumerSimulated,
			Delay:      5 * time.Second,
			RetryDelay: time.Second,
		},
		Poller: PollerConfig{
			BatchSize:   10,
			WaitTime:    20 * time.Second,
			Concurrency: 4,
			Backoff:     time.Second,
			MaxBackoff:  time.Minute,
		},
		NATS: NATSConfig{
			URL:      "nats://127.0.0.1:4222",
			Stream:   "SPLITTER",
			Subjects: []string{"splitter.>"},
			Consumer: "splitter",
		},
	}
}

// PollSource returns the queue the pollers read from.
func (c *Config) PollSource() string {
	if c.Poller.Source != "" {
		return c.Poller.Source
	}
	return c.QueueName
}

// Level parses LogLevel. Unknown values yield slog.LevelInfo.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Validate reports every problem found, joined into one INVALID_CONFIGURATION
// error. An empty QueueName is not an error; see Warnings.
func (c *Config) Validate() error {
	var problems []string

	switch c.Mode {
	case ModeLambda, ModeSQSPoll, ModeNATSPoll:
	default:
		problems = append(problems, fmt.Sprintf("unknown mode %q", c.Mode))
	}

	if c.EventKind == "" {
		problems = append(problems, "event kind is empty")
	}
	if len(event.ParsePath(c.NamePath)) == 0 {
		problems = append(problems, "name path is empty")
	}
	if len(event.ParsePath(c.ItemPath)) == 0 {
		problems = append(problems, "item path is empty")
	}
	if c.ItemNoun == "" {
		problems = append(problems, "item noun is empty")
	}
	if c.Origin == "" {
		problems = append(problems, "origin marker is empty")
	}

	switch c.Consumer.Kind {
	case ConsumerSimulated, ConsumerNoop:
	case ConsumerCommand:
		if len(c.Consumer.Command) == 0 {
			problems = append(problems, "consumer command is empty")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown consumer kind %q", c.Consumer.Kind))
	}
	if c.Consumer.Retries < 0 {
		problems = append(problems, "consumer retries must not be negative")
	}

	if c.Mode == ModeSQSPoll || c.Mode == ModeNATSPoll {
		if c.PollSource() == "" {
			problems = append(problems, "poll source is empty")
		}
		if c.Poller.BatchSize < 1 || c.Poller.BatchSize > 10 {
			problems = append(problems, fmt.Sprintf("poller batch size %d outside 1..10", c.Poller.BatchSize))
		}
		if c.Poller.Concurrency < 1 {
			problems = append(problems, "poller concurrency must be positive")
		}
		if c.Poller.WaitTime < 0 || c.Poller.WaitTime > 20*time.Second {
			problems = append(problems, "poller wait time outside 0s..20s")
		}
	}

	if c.Mode == ModeNATSPoll {
		if c.NATS.URL == "" {
			problems = append(problems, "NATS URL is empty")
		}
		if c.NATS.Stream == "" {
			problems = append(problems, "NATS stream is empty")
		}
		for _, subject := range []string{c.QueueName, c.PollSource()} {
			if subject != "" && !streamCovers(c.NATS.Subjects, subject) {
				problems = append(problems, fmt.Sprintf("subject %q is not captured by NATS stream subjects %v",
					subject, c.NATS.Subjects))
			}
		}
	}

	if len(problems) > 0 {
		return errors.New(errors.CodeInvalidConfig,
			fmt.Sprintf("configuration validation failed: %s", strings.Join(problems, "; ")))
	}
	return nil
}

// Warnings lists settings that are valid but degrade behavior.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.QueueName == "" {
		warnings = append(warnings, "queue name is empty; split events will not be sent")
	}
	if c.SingleQuoteBodies {
		warnings = append(warnings, "single quote body rewrite is enabled; apostrophes in payloads will break decoding")
	}
	return warnings
}

// streamCovers reports whether any of the stream subject patterns matches
// subject. Patterns use NATS wildcards: "*" matches one token, a trailing ">"
// matches one or more.
func streamCovers(patterns []string, subject string) bool {
	for _, p := range patterns {
		if subjectMatches(p, subject) {
			return true
		}
	}
	return false
}

func subjectMatches(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, tok := range pt {
		if tok == ">" {
			return i == len(pt)-1 && len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if tok != "*" && tok != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}
