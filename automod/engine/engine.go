package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/puzpuzpuz/xsync/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/chatmod/chatmod/automod/cachestore"
	"github.com/chatmod/chatmod/automod/dedupe"
	"github.com/chatmod/chatmod/automod/escalate"
	"github.com/chatmod/chatmod/automod/event"
	"github.com/chatmod/chatmod/automod/flagstore"
	"github.com/chatmod/chatmod/automod/helpers"
	"github.com/chatmod/chatmod/automod/rules"
	"github.com/chatmod/chatmod/automod/setstore"
)

// runtime for admission checks: runs every chat message and command through the spam gates and rules, and keeps per-sender sessions.
//
// Create with NewEngine; the exported fields may be replaced before the first call to Evaluate.
type Engine struct {
	Logger     *slog.Logger
	Rules      *rules.Engine
	Escalator  escalate.Escalator
	Dispatcher event.Dispatcher
	Dedupe     *dedupe.Buffer
	Cache      cachestore.CacheStore
	Flags      flagstore.FlagStore
	Sets       setstore.SetStore
	// defaults to time.Now
	Clock func() time.Time

	config   atomic.Pointer[compiledConfig]
	sessions *xsync.MapOf[uuid.UUID, *Session]
	// senders seen without a Join (eg, the console); never counted as online
	implicitMu sync.Mutex
	implicit   *expirable.LRU[uuid.UUID, *Session]
}

// Creates an engine with in-memory stores, no rules, and escalations which cancel the message.
func NewEngine(logger *slog.Logger, cfg Config) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		Logger:     logger,
		Rules:      &rules.Engine{Logger: logger},
		Escalator:  escalate.Cancel{},
		Dispatcher: event.NoopDispatcher{},
		Cache:      cachestore.NewMemCacheStore(10_000, time.Hour),
		Flags:      flagstore.NewMemFlagStore(),
		Sets:       setstore.NewMemSetStore(),
		sessions:   xsync.NewMapOf[uuid.UUID, *Session](),
		implicit:   expirable.NewLRU[uuid.UUID, *Session](implicitSessionLimit, nil, implicitSessionTTL),
	}
	e.Dedupe = dedupe.NewBuffer(e.now)
	if err := e.SetConfig(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// Replaces the configuration. Checks in progress finish with the config they started with.
func (e *Engine) SetConfig(cfg Config) error {
	cc, err := cfg.compile()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	e.config.Store(cc)
	return nil
}

func (e *Engine) Config() Config {
	return e.currentConfig().Config
}

func (e *Engine) currentConfig() *compiledConfig {
	if cc := e.config.Load(); cc != nil {
		return cc
	}
	cc, _ := DefaultConfig().compile()
	return cc
}

func (e *Engine) now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock()
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Checks one chat message or command from a sender, before it is delivered.
//
// Gates run in a fixed order and the first cancellation ends the check: nothing after that point runs or is recorded in the sender's history. A cancelled message is reported in the result, not as an error; errors are reserved for broken configuration (eg, a rule script which does not return a boolean), store failures, and unknown kinds.
//
// Checks for the same sender are serialized; checks for different senders run concurrently.
func (e *Engine) Evaluate(ctx context.Context, sender event.Sender, kind event.Kind, text string, channel *event.Channel) (result *event.CheckResult, err error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("chatmod").Start(ctx, "Evaluate")
	defer span.End()
	span.SetAttributes(
		attribute.String("kind", kind.String()),
		attribute.String("channel", channel.Key()),
	)

	start := time.Now()
	defer func() {
		evaluateDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
	}()

	logger := e.logger().With("sender", sender.Name(), "kind", kind.String())

	// similar to an HTTP server, we want to recover any panics from rule or gate execution
	defer func() {
		if r := recover(); r != nil {
			logger.Error("admission check exception", "err", r)
			evaluateErrorCount.WithLabelValues(kind.String()).Inc()
			result = nil
			err = fmt.Errorf("admission check panic: %v", r)
		}
	}()

	sess := e.sessionFor(sender)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	c := &check{
		eng:      e,
		cfg:      e.currentConfig(),
		logger:   logger,
		sess:     sess,
		sender:   sender,
		kind:     kind,
		original: text,
		text:     text,
		channel:  channel,
		now:      e.now(),
	}
	res, err := c.run(ctx)
	if err != nil {
		evaluateErrorCount.WithLabelValues(kind.String()).Inc()
		logger.Error("admission check failed", "err", err)
		return nil, err
	}

	outcome := "accepted"
	switch {
	case res.Cancelled && res.CancelledSilently:
		outcome = "cancelled-silently"
	case res.Cancelled:
		outcome = "cancelled"
	case res.TextWasRewritten:
		outcome = "rewritten"
	}
	evaluateCount.WithLabelValues(kind.String(), outcome).Inc()
	if res.Cancelled {
		cancelCount.WithLabelValues(kind.String(), res.CancelledBy).Inc()
	}
	dedupeBufferSize.Set(float64(e.Dedupe.Len()))
	logger.Info("message checked", "outcome", outcome, "cancelledBy", res.CancelledBy, "rewritten", res.TextWasRewritten, "textHash", helpers.HashOfString(text))
	return res, nil
}
