package splitter

import (
	"log/slog"

	"github.com/input-output-hk/catalyst-forge-libs/splitter/config"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/envelope"
	"github.com/input-output-hk/catalyst-forge-libs/splitter/event"
)

// DefaultEventKind is the discriminator of events the Dispatcher splits.
const DefaultEventKind = "CreateTags"

// DefaultItemNoun names one item in result messages.
const DefaultItemNoun = "tag"

// dispatcherOptions holds configuration options for the Dispatcher.
type dispatcherOptions struct {
	queue     string
	kind      string
	namePath  event.Path
	itemPath  event.Path
	noun      string
	unwrapper *envelope.Unwrapper
	logger    *slog.Logger
}

// Option is a functional option for configuring the Dispatcher.
type Option func(*dispatcherOptions)

// WithQueue sets the queue split events are sent to. An empty queue makes
// splits skip sending; the condition is logged at WARN on every split.
func WithQueue(queue string) Option {
	return func(o *dispatcherOptions) {
		o.queue = queue
	}
}

// WithEventKind sets the discriminator value of events that get split.
func WithEventKind(kind string) Option {
	return func(o *dispatcherOptions) {
		if kind != "" {
			o.kind = kind
		}
	}
}

// WithNamePath sets where the discriminator is read from.
func WithNamePath(path event.Path) Option {
	return func(o *dispatcherOptions) {
		if len(path) > 0 {
			o.namePath = path
		}
	}
}

// WithItemPath sets where the item collection is read from.
func WithItemPath(path event.Path) Option {
	return func(o *dispatcherOptions) {
		if len(path) > 0 {
			o.itemPath = path
		}
	}
}

// WithItemNoun sets the singular name of an item used in result messages.
func WithItemNoun(noun string) Option {
	return func(o *dispatcherOptions) {
		if noun != "" {
			o.noun = noun
		}
	}
}

// WithUnwrapper sets the Unwrapper used by Handle.
func WithUnwrapper(u *envelope.Unwrapper) Option {
	return func(o *dispatcherOptions) {
		if u != nil {
			o.unwrapper = u
		}
	}
}

// WithLogger configures the logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *dispatcherOptions) {
		if logger == nil {
			logger = slog.New(slog.DiscardHandler)
		}
		o.logger = logger
	}
}

// WithConfig applies the dispatch related settings of cfg.
func WithConfig(cfg *config.Config) Option {
	return func(o *dispatcherOptions) {
		if cfg == nil {
			return
		}
		o.queue = cfg.QueueName
		WithEventKind(cfg.EventKind)(o)
		WithNamePath(event.ParsePath(cfg.NamePath))(o)
		WithItemPath(event.ParsePath(cfg.ItemPath))(o)
		WithItemNoun(cfg.ItemNoun)(o)

		unwrapOpts := []envelope.Option{envelope.WithOrigin(cfg.Origin)}
		if cfg.SingleQuoteBodies {
			unwrapOpts = append(unwrapOpts, envelope.WithSingleQuoteBodies())
		}
		o.unwrapper = envelope.New(unwrapOpts...)
	}
}

// defaultOptions returns the default configuration options.
func defaultOptions() *dispatcherOptions {
	return &dispatcherOptions{
		kind:      DefaultEventKind,
		namePath:  event.DefaultNamePath,
		itemPath:  event.DefaultItemPath,
		noun:      DefaultItemNoun,
		unwrapper: envelope.New(),
		logger:    slog.New(slog.DiscardHandler),
	}
}
