package escalate

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/RussellLuo/slidingwindow"

	"github.com/chatmod/chatmod/automod/countstore"
	"github.com/chatmod/chatmod/automod/event"
	"github.com/chatmod/chatmod/automod/rules"
)

// Counter name under which warning points are stored; the counter value is "<set>/<sender uuid>".
const PointsCounter = "warn-points"

// How a single trigger is scored.
type Trigger struct {
	// Warning point set to add to
	Set    string `yaml:"set"`
	Amount int    `yaml:"amount"`
	// Cancel the message as well as scoring it. Otherwise the warning is sent and the message goes through.
	Cancel bool `yaml:"cancel"`
}

// Commands run once when a sender's points in a set reach Points.
type Threshold struct {
	Points   int      `yaml:"points"`
	Commands []string `yaml:"commands"`
}

type PointsConfig struct {
	Triggers   map[string]Trigger     `yaml:"triggers"`
	Thresholds map[string][]Threshold `yaml:"thresholds"`
	// countstore period points are summed over: total, day or hour
	Period string `yaml:"period"`
	// at most this many threshold command batches per minute, across all senders; 0 means no limit
	CommandsPerMinute int64 `yaml:"commands_per_minute"`
}

// Warning points: each violation adds points to a named set for the sender, and crossing a threshold runs its commands (console), eg a mute or kick.
//
// Triggers without configuration fall back to cancelling with the warning.
type Points struct {
	Logger     *slog.Logger
	Counters   countstore.CountStore
	Dispatcher event.Dispatcher
	Config     PointsConfig

	limiter *slidingwindow.Limiter
	stop    slidingwindow.StopFunc
}

var _ Escalator = (*Points)(nil)

func windowFunc() (slidingwindow.Window, slidingwindow.StopFunc) {
	return slidingwindow.NewLocalWindow()
}

func NewPoints(logger *slog.Logger, counters countstore.CountStore, dispatcher event.Dispatcher, config PointsConfig) *Points {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Period == "" {
		config.Period = countstore.PeriodTotal
	}
	p := &Points{
		Logger:     logger,
		Counters:   counters,
		Dispatcher: dispatcher,
		Config:     config,
	}
	if config.CommandsPerMinute > 0 {
		p.limiter, p.stop = slidingwindow.NewLimiter(time.Minute, config.CommandsPerMinute, windowFunc)
	}
	return p
}

// Releases the rate limiter.
func (p *Points) Close() {
	if p.stop != nil {
		p.stop()
	}
}

func (p *Points) Execute(ctx context.Context, sender event.Sender, trigger, warning string, vars map[string]any) (*event.Abort, error) {
	t, ok := p.Config.Triggers[trigger]
	if !ok || t.Set == "" {
		escalationCount.WithLabelValues(trigger, "cancel").Inc()
		return event.Cancel(trigger, warning), nil
	}

	val := t.Set + "/" + sender.ID().String()
	before, err := p.Counters.GetCount(ctx, PointsCounter, val, p.Config.Period)
	if err != nil {
		return nil, fmt.Errorf("reading warning points: %w", err)
	}
	if t.Amount != 0 {
		if err := p.Counters.IncrementBy(ctx, PointsCounter, val, t.Amount); err != nil {
			return nil, fmt.Errorf("adding warning points: %w", err)
		}
	}
	after := before + t.Amount

	p.Logger.Debug("warning points added", "sender", sender.Name(), "trigger", trigger, "set", t.Set, "points", after)

	for _, th := range p.Config.Thresholds[t.Set] {
		if before < th.Points && th.Points <= after {
			p.runThreshold(ctx, sender, t.Set, th, after, vars)
		}
	}

	if t.Cancel {
		escalationCount.WithLabelValues(trigger, "cancel").Inc()
		return event.Cancel(trigger, warning), nil
	}
	escalationCount.WithLabelValues(trigger, "warn").Inc()
	if warning != "" {
		sender.SendMessage(warning)
	}
	return nil, nil
}

func (p *Points) runThreshold(ctx context.Context, sender event.Sender, set string, th Threshold, points int, vars map[string]any) {
	thresholdCount.WithLabelValues(set).Inc()
	if p.limiter != nil && !p.limiter.Allow() {
		thresholdLimitedCount.Inc()
		p.Logger.Warn("threshold commands rate-limited", "sender", sender.Name(), "set", set, "points", th.Points)
		return
	}
	if p.Dispatcher == nil {
		p.Logger.Warn("no dispatcher configured, dropping threshold commands", "set", set)
		return
	}

	all := rules.SenderVars(sender)
	maps.Copy(all, vars)
	all["set"] = set
	all["points"] = points

	for _, cmd := range th.Commands {
		line := strings.TrimPrefix(rules.Replace(cmd, all), "/")
		if err := p.Dispatcher.Dispatch(ctx, sender, line, true); err != nil {
			p.Logger.Error("threshold command failed", "sender", sender.Name(), "command", line, "err", err)
		}
	}
}
