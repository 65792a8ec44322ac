package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/input-output-hk/catalyst-forge-libs/splitter/errors"
)

// FileEnv names the environment variable holding the YAML config path.
const FileEnv = "SPLITTER_CONFIG_FILE"

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Load resolves the configuration from the process environment.
func Load() (*Config, error) {
	return LoadWith(os.LookupEnv)
}

// LoadWith resolves the configuration using lookup for environment access.
// The result is not validated.
func LoadWith(lookup LookupFunc) (*Config, error) {
	cfg := Default()

	if path, ok := lookup(FileEnv); ok && path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile overlays the YAML document at path onto cfg. Keys absent from the
// file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapWithContext(err, errors.CodeInvalidConfig,
			"failed to read config file", map[string]any{"path": path})
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.WrapWithContext(err, errors.CodeInvalidConfig,
			"failed to parse config file", map[string]any{"path": path})
	}
	return nil
}

// env applies environment overrides and collects parse errors.
type env struct {
	lookup LookupFunc
	errs   []string
}

func (e *env) setString(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = strings.TrimSpace(v)
	}
}

func (e *env) setInt(key string, dst *int) {
	v, ok := e.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %q is not an integer", key, v))
		return
	}
	*dst = n
}

func (e *env) setBool(key string, dst *bool) {
	v, ok := e.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %q is not a boolean", key, v))
		return
	}
	*dst = b
}

func (e *env) setDuration(key string, dst *time.Duration) {
	v, ok := e.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %q is not a duration", key, v))
		return
	}
	*dst = d
}

func (e *env) setFields(key string, dst *[]string) {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.Fields(v)
	}
}

func (e *env) setList(key string, dst *[]string) {
	v, ok := e.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}

func applyEnv(cfg *Config, lookup LookupFunc) error {
	e := &env{lookup: lookup}

	e.setString("QUEUE_NAME", &cfg.QueueName)
	e.setString("SPLITTER_MODE", &cfg.Mode)
	e.setString("SPLITTER_EVENT_KIND", &cfg.EventKind)
	e.setString("SPLITTER_NAME_PATH", &cfg.NamePath)
	e.setString("SPLITTER_ITEM_PATH", &cfg.ItemPath)
	e.setString("SPLITTER_ITEM_NOUN", &cfg.ItemNoun)
	e.setString("SPLITTER_ORIGIN", &cfg.Origin)
	e.setBool("SPLITTER_SINGLE_QUOTE_BODIES", &cfg.SingleQuoteBodies)
	e.setString("SPLITTER_LOG_LEVEL", &cfg.LogLevel)

	e.setString("SPLITTER_CONSUMER", &cfg.Consumer.Kind)
	e.setDuration("SPLITTER_CONSUMER_DELAY", &cfg.Consumer.Delay)
	e.setFields("SPLITTER_CONSUMER_COMMAND", &cfg.Consumer.Command)
	e.setInt("SPLITTER_CONSUMER_RETRIES", &cfg.Consumer.Retries)
	e.setDuration("SPLITTER_CONSUMER_RETRY_DELAY", &cfg.Consumer.RetryDelay)
	e.setDuration("SPLITTER_CONSUMER_TIMEOUT", &cfg.Consumer.Timeout)

	e.setString("SPLITTER_POLL_SOURCE", &cfg.Poller.Source)
	e.setInt("SPLITTER_POLL_BATCH_SIZE", &cfg.Poller.BatchSize)
	e.setDuration("SPLITTER_POLL_WAIT", &cfg.Poller.WaitTime)
	e.setInt("SPLITTER_POLL_CONCURRENCY", &cfg.Poller.Concurrency)
	e.setDuration("SPLITTER_POLL_BACKOFF", &cfg.Poller.Backoff)
	e.setDuration("SPLITTER_POLL_MAX_BACKOFF", &cfg.Poller.MaxBackoff)

	e.setString("NATS_URL", &cfg.NATS.URL)
	e.setString("SPLITTER_NATS_STREAM", &cfg.NATS.Stream)
	e.setList("SPLITTER_NATS_SUBJECTS", &cfg.NATS.Subjects)
	e.setString("SPLITTER_NATS_CONSUMER", &cfg.NATS.Consumer)

	e.setString("AWS_REGION", &cfg.AWS.Region)
	e.setString("SPLITTER_AWS_ENDPOINT", &cfg.AWS.Endpoint)

	if len(e.errs) > 0 {
		return errors.New(errors.CodeInvalidConfig,
			fmt.Sprintf("invalid environment: %s", strings.Join(e.errs, "; ")))
	}
	return nil
}
