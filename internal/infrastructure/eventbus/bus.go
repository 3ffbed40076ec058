package eventbus

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"

	"github.com/riskibarqy/fantasy-roster/internal/domain/rosterevent"
	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
	"github.com/riskibarqy/fantasy-roster/internal/platform/metrics"
)

const (
	metadataLeagueID = "league_id"
	metadataTeamID   = "team_id"
)

type Config struct {
	Buffer        int64
	MaxRetries    int
	RetryInterval time.Duration
	CloseTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Buffer <= 0 {
		c.Buffer = 256
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 100 * time.Millisecond
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = 5 * time.Second
	}
	return c
}

// RosterChangedHandler consumes one decoded roster event. Returning an error
// triggers redelivery, so handlers must be idempotent.
type RosterChangedHandler func(ctx context.Context, event rosterevent.RosterChanged) error

// Bus carries roster events in process. Publishing happens after the roster
// transaction commits; handlers run on the router goroutines.
type Bus struct {
	pubsub *gochannel.GoChannel
	router *message.Router
	logger *logging.Logger
}

func New(cfg Config, logger *logging.Logger) (*Bus, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = logging.Default()
	}
	wmLogger := NewLoggerAdapter(logger)

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.Buffer,
		PreserveContext:     true,
	}, wmLogger)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, wmLogger)
	if err != nil {
		return nil, errors.Wrap(err, "create event router")
	}
	router.AddMiddleware(
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: cfg.RetryInterval,
			Multiplier:      2,
			Logger:          wmLogger,
		}.Middleware,
	)

	return &Bus{pubsub: pubsub, router: router, logger: logger}, nil
}

func (b *Bus) PublishRosterChanged(ctx context.Context, event rosterevent.RosterChanged) error {
	payload, err := sonic.Marshal(event)
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(rosterevent.TopicRosterChanged, metrics.OutcomeError).Inc()
		return errors.Wrapf(err, "encode roster event %s", event.EventID)
	}

	uuid := event.EventID
	if uuid == "" {
		uuid = watermill.NewUUID()
	}
	msg := message.NewMessage(uuid, payload)
	msg.Metadata.Set(metadataLeagueID, event.LeagueID)
	msg.Metadata.Set(metadataTeamID, event.TeamID)
	msg.SetContext(context.WithoutCancel(ctx))

	err = b.pubsub.Publish(rosterevent.TopicRosterChanged, msg)
	metrics.EventsPublishedTotal.WithLabelValues(rosterevent.TopicRosterChanged, metrics.Outcome(err)).Inc()
	if err != nil {
		return errors.Wrapf(err, "publish roster event %s", uuid)
	}
	return nil
}

// SubscribeRosterChanged registers a named consumer. Call it before Run.
func (b *Bus) SubscribeRosterChanged(name string, handle RosterChangedHandler) {
	b.router.AddConsumerHandler(name, rosterevent.TopicRosterChanged, b.pubsub, func(msg *message.Message) error {
		var event rosterevent.RosterChanged
		if err := sonic.Unmarshal(msg.Payload, &event); err != nil {
			// A payload that cannot be decoded will never succeed on retry.
			b.logger.ErrorContext(msg.Context(), "drop undecodable roster event", "message_uuid", msg.UUID, "error", err)
			return nil
		}
		return handle(msg.Context(), event)
	})
}

// Run blocks until ctx is cancelled or Close is called.
func (b *Bus) Run(ctx context.Context) error {
	if err := b.router.Run(ctx); err != nil {
		return errors.Wrap(err, "run event router")
	}
	return nil
}

// Running is closed once every subscriber is consuming.
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

func (b *Bus) Close() error {
	routerErr := b.router.Close()
	pubsubErr := b.pubsub.Close()
	if routerErr != nil {
		return errors.Wrap(routerErr, "close event router")
	}
	if pubsubErr != nil {
		return errors.Wrap(pubsubErr, "close event pubsub")
	}
	return nil
}
