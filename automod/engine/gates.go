package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/chatmod/chatmod/automod/cachestore"
	"github.com/chatmod/chatmod/automod/escalate"
	"github.com/chatmod/chatmod/automod/event"
	"github.com/chatmod/chatmod/automod/helpers"
	"github.com/chatmod/chatmod/automod/history"
	"github.com/chatmod/chatmod/automod/keyword"
	"github.com/chatmod/chatmod/automod/rules"
	"github.com/chatmod/chatmod/automod/setstore"
)

// state of one admission check
type check struct {
	eng    *Engine
	cfg    *compiledConfig
	logger *slog.Logger
	sess   *Session
	sender event.Sender
	kind   event.Kind

	original string
	// current text, as rewritten by the gates so far
	text    string
	channel *event.Channel
	now     time.Time

	// history as it was before this message
	last     history.Record
	hasLast  bool
	previous []history.Record

	loggingSuppressed bool
	spyingSuppressed  bool
	cancelSilently    bool
	// caps warnings held back until the end of the check
	pending []string
}

type gate struct {
	name string
	fn   func(c *check, ctx context.Context) (*event.Abort, error)
}

// gates that may cancel, in order; commit and grammar follow
var gates = []gate{
	{"parrot", (*check).gateParrot},
	{"movement", (*check).gateMovement},
	{"cooldown", (*check).gateCooldown},
	{"delay", (*check).gateDelay},
	{"period", (*check).gatePeriod},
	{"caps", (*check).gateCaps},
	{"rules", (*check).gateRules},
	{"similarity", (*check).gateSimilarity},
}

func (c *check) run(ctx context.Context) (*event.CheckResult, error) {
	scope := c.scope()
	c.last, c.hasLast = c.sess.History.Last(c.kind, scope)
	if past := c.cfg.kind(c.kind).SimilarityPast; past > 0 {
		c.previous = c.sess.History.LastN(c.kind, past, scope)
	}

	res := &event.CheckResult{}
	for _, g := range gates {
		before := c.text
		abort, err := g.fn(c, ctx)
		if err != nil {
			return nil, fmt.Errorf("%s gate: %w", g.name, err)
		}
		if c.text != before {
			rewriteCount.WithLabelValues(c.kind.String(), g.name).Inc()
		}
		if abort != nil {
			if abort.Source == "" {
				abort.Source = g.name
			}
			c.logger.Debug("message cancelled", "gate", g.name, "reason", abort.Reason, "silent", abort.Silent)
			res.ApplyAbort(abort)
			c.fill(res)
			return res, nil
		}
	}

	c.commit(ctx)
	c.grammar()

	for _, msg := range c.pending {
		c.sender.SendMessage(msg)
	}

	c.fill(res)
	if c.cancelSilently {
		res.Cancelled = true
		res.CancelledSilently = true
		res.CancelledBy = "rules"
	}
	return res, nil
}

func (c *check) fill(res *event.CheckResult) {
	res.FinalText = c.text
	res.TextWasRewritten = c.text != c.original
	res.LoggingSuppressed = c.loggingSuppressed
	res.SpyingSuppressed = c.spyingSuppressed
}

// history scope: chat is kept per channel, commands are not
func (c *check) scope() string {
	if c.kind == event.KindChat {
		return c.channel.Key()
	}
	return ""
}

func (c *check) isChat() bool {
	return c.kind == event.KindChat
}

// command label without the slash; empty for chat
func (c *check) label() string {
	if c.isChat() {
		return ""
	}
	label, _ := keyword.SplitCommand(c.text)
	return label
}

func (c *check) perm(chat, command string) bool {
	if c.isChat() {
		return c.sender.HasPermission(chat)
	}
	return c.sender.HasPermission(command)
}

func (c *check) message(tmpl string, vars map[string]any) string {
	all := rules.SenderVars(c.sender)
	for k, v := range vars {
		all[k] = v
	}
	return rules.Replace(tmpl, all)
}

func (c *check) escalate(ctx context.Context, sender event.Sender, trigger, warning string, vars map[string]any) (*event.Abort, error) {
	if c.eng.Escalator == nil {
		return event.Cancel(trigger, warning), nil
	}
	c.logger.Debug("escalating", "trigger", trigger)
	return c.eng.Escalator.Execute(ctx, sender, trigger, warning, vars)
}

// 1. parrot and join flood (players, chat only)
func (c *check) gateParrot(ctx context.Context) (*event.Abort, error) {
	if !c.isChat() || !c.sender.IsPlayer() {
		return nil, nil
	}
	pc := c.cfg.Parrot
	if pc.Enabled && !c.sender.HasPermission(PermBypassParrot) && !c.cfg.parrotWhitelist.InListRegex(c.text) {
		if m, found := c.eng.Dedupe.Claim(c.sender.ID(), c.text, pc.Similarity, pc.Delay); found {
			c.logger.Info("parrot detected", "original_sender", m.Entry.SenderID, "similarity", m.Similarity)
			return event.Cancel("parrot", c.message(c.cfg.Messages.Parrot, map[string]any{
				"similarity": int(math.Round(m.Similarity * 100)),
				"message":    c.text,
				"delay":      pc.Delay.String(),
			})), nil
		}
	}
	if c.cfg.JoinFlood.Enabled {
		c.joinFlood(ctx)
	}
	return nil, nil
}

// Groups recently joined senders by their latest chat line: the live text for the sender being checked, the cached last line for everyone else. Groups of at least MinPlayers get the flood commands, once per sender.
func (c *check) joinFlood(ctx context.Context) {
	jf := c.cfg.JoinFlood
	groups := make(map[string][]*Session)
	var order []string

	for _, s := range c.eng.Online() {
		id := s.Sender.ID().String()
		if s.LastLogin.IsZero() || c.now.Sub(s.LastLogin) >= jf.Threshold {
			continue
		}
		flagged, err := c.eng.Flags.Has(ctx, id, FlagJoinFlood)
		if err != nil {
			c.logger.Error("reading join flood flag", "err", err, "uuid", id)
			continue
		}
		if flagged {
			continue
		}
		var last string
		if s.Sender.ID() == c.sender.ID() {
			last = c.text
		} else if last, err = c.eng.Cache.Get(ctx, cachestore.NameLastChat, id); err != nil {
			c.logger.Error("reading cached chat line", "err", err, "uuid", id)
			continue
		}
		if last == "" {
			continue
		}
		if _, ok := groups[last]; !ok {
			order = append(order, last)
		}
		groups[last] = append(groups[last], s)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return len(groups[order[i]]) < len(groups[order[j]])
	})

	for _, text := range order {
		members := groups[text]
		if len(members) < jf.MinPlayers {
			continue
		}
		for _, s := range members {
			id := s.Sender.ID()
			if _, online := c.eng.Session(id); !online {
				continue
			}
			// concurrent checks may form the same group; only the one setting the flag dispatches
			set, err := c.eng.Flags.TryAdd(ctx, id.String(), FlagJoinFlood)
			if err != nil {
				c.logger.Error("setting join flood flag", "err", err, "uuid", id)
				continue
			}
			if !set {
				continue
			}
			vars := map[string]any{
				"player":        s.Sender.Name(),
				"player_amount": len(members),
				"threshold":     jf.Threshold.String(),
				"message":       text,
			}
			for _, cmd := range jf.Commands {
				line := strings.TrimPrefix(rules.Replace(cmd, vars), "/")
				if err := c.eng.Dispatcher.Dispatch(ctx, s.Sender, line, true); err != nil {
					c.logger.Error("join flood command failed", "err", err, "command", line)
				}
			}
			joinFloodCount.Inc()
			c.logger.Warn("join flood detected", "flagged", s.Sender.Name(), "players", len(members))
		}
	}
}

// 2. must move away from the join location first (players)
func (c *check) gateMovement(ctx context.Context) (*event.Abort, error) {
	if !c.sender.IsPlayer() || c.sess.JoinLocation == nil || c.sess.MovedFromJoin {
		return nil, nil
	}
	if loc, ok := c.sender.Location(); ok && loc != *c.sess.JoinLocation {
		c.sess.MovedFromJoin = true
		return nil, nil
	}
	if c.sender.HasPermission(PermBypassMove) {
		return nil, nil
	}
	if c.isChat() {
		if c.cfg.Movement.BlockChat {
			return event.Cancel("movement", c.message(c.cfg.Messages.MoveChat, nil)), nil
		}
		return nil, nil
	}
	if keyword.TokenInSet(c.label(), c.cfg.Movement.BlockCommands) {
		return event.Cancel("movement", c.message(c.cfg.Messages.MoveCommand, nil)), nil
	}
	return nil, nil
}

// 3. quiet period right after joining (players)
func (c *check) gateCooldown(ctx context.Context) (*event.Abort, error) {
	if !c.sender.IsPlayer() || c.sess.JoinLocation == nil {
		return nil, nil
	}
	cooldown := c.cfg.kind(c.kind).CooldownAfterJoin
	elapsed := c.now.Sub(c.sess.LastLogin)
	if cooldown <= 0 || elapsed >= cooldown {
		return nil, nil
	}
	seconds := int(math.Floor((cooldown - elapsed).Seconds()))
	tmpl := c.cfg.Messages.CooldownChat
	if !c.isChat() {
		tmpl = c.cfg.Messages.CooldownCommand
	}
	return event.Cancel("cooldown", c.message(tmpl, map[string]any{"seconds": seconds})), nil
}

// 4. minimum time since the previous message
func (c *check) gateDelay(ctx context.Context) (*event.Abort, error) {
	if c.sender.IsConsole() || c.perm(PermBypassDelayChat, PermBypassDelayCommand) || !c.hasLast {
		return nil, nil
	}
	if c.cfg.delayWhitelist[c.kind].InListRegex(c.text) {
		return nil, nil
	}
	delay := c.cfg.kind(c.kind).Delay
	if c.isChat() && c.channel != nil && c.channel.MessageDelay > 0 {
		delay = c.channel.MessageDelay
	}
	elapsed := c.now.Sub(c.last.Time)
	if delay <= elapsed {
		return nil, nil
	}
	remaining := int(math.Ceil((delay - elapsed).Seconds()))
	trigger, tmpl := escalate.TriggerChatDelay, c.cfg.Messages.DelayChat
	if !c.isChat() {
		trigger, tmpl = escalate.TriggerCommandDelay, c.cfg.Messages.DelayCommand
	}
	return c.escalate(ctx, c.sender, trigger, c.message(tmpl, map[string]any{"seconds": remaining}), map[string]any{
		"remaining_time": remaining,
		"delay":          delay.String(),
	})
}

// 5. at most LimitMax messages per LimitPeriod
func (c *check) gatePeriod(ctx context.Context) (*event.Abort, error) {
	kc := c.cfg.kind(c.kind)
	if kc.LimitMax <= 0 || c.sender.HasPermission(PermBypassPeriod) {
		return nil, nil
	}
	count := len(c.sess.History.Since(c.kind, c.now.Add(-kc.LimitPeriod), c.scope()))
	if count < kc.LimitMax {
		return nil, nil
	}
	trigger, noun := escalate.TriggerChatLimit, "messages"
	if !c.isChat() {
		trigger, noun = escalate.TriggerCommandLimit, "commands"
	}
	warning := c.message(c.cfg.Messages.Period, map[string]any{
		"type_amount":   kc.LimitMax,
		"type":          noun,
		"period_amount": int(kc.LimitPeriod.Seconds()),
	})
	return c.escalate(ctx, c.sender, trigger, warning, map[string]any{"messages_in_period": kc.LimitMax})
}

func (c *check) capsWhitelisted(ctx context.Context, word string) bool {
	if c.inCapsWhitelist(ctx, word) {
		return true
	}
	// also try without punctuation, so "LOL!" counts as "LOL"
	if key := wordKey(word); key != "" && key != strings.ToLower(word) {
		return c.inCapsWhitelist(ctx, key)
	}
	return false
}

func (c *check) inCapsWhitelist(ctx context.Context, word string) bool {
	if c.cfg.capsWhitelist.InList(word) {
		return true
	}
	ok, err := c.eng.Sets.InSet(ctx, setstore.SetCapsWhitelist, word)
	if err != nil {
		c.logger.Error("reading caps whitelist", "err", err)
		return false
	}
	return ok
}

// a word folded for matching against names and word lists: colors, punctuation, accents and case removed
func wordKey(word string) string {
	return strings.Join(keyword.TokenizeText(helpers.StripColors(word)), "")
}

// folded names and nicknames of everyone online
func (c *check) onlineNames() map[string]bool {
	names := make(map[string]bool)
	for _, s := range c.eng.Online() {
		names[wordKey(s.Sender.Name())] = true
		if nick := s.Sender.Nick(); nick != "" {
			names[wordKey(nick)] = true
		}
	}
	delete(names, "")
	return names
}

// 6. shouting: rewrite to sentence case, warn after the check completes
func (c *check) gateCaps(ctx context.Context) (*event.Abort, error) {
	cc := c.cfg.Caps
	enabled := cc.Enabled
	if !c.isChat() {
		enabled = keyword.TokenInSet(c.label(), cc.Commands)
	}
	if !enabled || c.sender.HasPermission(PermBypassCaps) || helpers.Length(c.text) < cc.MinLength {
		return nil, nil
	}

	names := c.onlineNames()
	words := strings.Split(helpers.StripColors(c.text), " ")
	for i, w := range words {
		if names[wordKey(w)] {
			words[i] = strings.ToLower(w)
		}
	}
	measured := strings.Join(words, " ")
	pct := int(helpers.CapsPercentage(measured) * 100)
	inRow := helpers.CapsInRow(measured, func(w string) bool { return c.capsWhitelisted(ctx, w) })
	shouting := (cc.MinPercentage > 0 && pct >= cc.MinPercentage) || (cc.MinInRow > 0 && inRow >= cc.MinInRow)
	if !shouting {
		return nil, nil
	}

	fixed := helpers.FixCaps(c.text, func(w string) bool {
		return names[wordKey(w)] || c.capsWhitelisted(ctx, w)
	})
	if fixed == c.text {
		return nil, nil
	}
	c.text = fixed

	// anything the escalation says, or cancels with, is delivered once the check is over; the rewrite stands either way
	q := &queuedSender{Sender: c.sender}
	abort, err := c.escalate(ctx, q, escalate.TriggerCaps, c.message(c.cfg.Messages.Caps, nil), map[string]any{
		"caps_percentage_double": float64(pct) / 100,
	})
	if err != nil {
		return nil, err
	}
	c.pending = append(c.pending, q.queued...)
	if abort != nil && abort.Reason != "" {
		c.pending = append(c.pending, abort.Reason)
	}
	return nil, nil
}

// 7. rule pass
func (c *check) gateRules(ctx context.Context) (*event.Abort, error) {
	if c.eng.Rules == nil {
		return nil, nil
	}
	res, err := c.eng.Rules.Evaluate(ctx, c.sender, c.kind, c.text, c.channel)
	if err != nil {
		return nil, err
	}
	if res.LoggingSuppressed {
		c.loggingSuppressed = true
	}
	if res.SpyingSuppressed {
		c.spyingSuppressed = true
	}
	if res.CancelledSilently {
		c.cancelSilently = true
	}
	if res.Abort != nil {
		return res.Abort, nil
	}
	if res.Rewritten {
		c.text = res.Text
	}
	return nil, nil
}

func (c *check) similarityWhitelisted(ctx context.Context, prior string) bool {
	if c.isChat() {
		return c.cfg.chatSimWhitelist.InListRegex(prior)
	}
	label, _ := keyword.SplitCommand(prior)
	if keyword.TokenInSet(label, c.cfg.Commands.SimilarityWhitelist) {
		return true
	}
	ok, err := c.eng.Sets.InSet(ctx, setstore.SetSimilarityCommands, label)
	if err != nil {
		c.logger.Error("reading similarity whitelist", "err", err)
		return false
	}
	return ok
}

// 8. repeating your own recent messages
func (c *check) gateSimilarity(ctx context.Context) (*event.Abort, error) {
	kc := c.cfg.kind(c.kind)
	if kc.Similarity <= 0 || c.perm(PermBypassSimilarityChat, PermBypassSimilarityCommand) {
		return nil, nil
	}
	trigger, tmpl := escalate.TriggerChatSimilarity, c.cfg.Messages.SimilarityChat
	if !c.isChat() {
		trigger, tmpl = escalate.TriggerCommandSimilarity, c.cfg.Messages.SimilarityCommand
	}

	breaches := 0
	for _, prior := range c.previous {
		if kc.SimilarityForgive > 0 && c.now.Sub(prior.Time) > kc.SimilarityForgive {
			continue
		}
		if !c.isChat() && kc.SimilarityMinArgs > 0 {
			if _, args := keyword.SplitCommand(prior.Text); len(args) < kc.SimilarityMinArgs {
				continue
			}
		}
		if c.similarityWhitelisted(ctx, prior.Text) {
			continue
		}
		sim := helpers.Similarity(prior.Text, c.text)
		if sim < kc.Similarity {
			continue
		}
		breaches++
		if breaches < kc.SimilarityStartAt {
			continue
		}
		warning := c.message(tmpl, map[string]any{"similarity": int(math.Round(sim * 100))})
		abort, err := c.escalate(ctx, c.sender, trigger, warning, map[string]any{"similarity_percentage_double": kc.Similarity})
		if err != nil || abort != nil {
			return abort, err
		}
	}
	return nil, nil
}

// 9. record the message (before grammar fixes)
func (c *check) commit(ctx context.Context) {
	c.sess.History.Record(c.kind, c.text, c.scope())
	if c.isChat() {
		if err := c.eng.Cache.Set(ctx, cachestore.NameLastChat, c.sender.ID().String(), c.text); err != nil {
			c.logger.Error("caching last chat line", "err", err)
		}
	}
}

// 10. capital first letter and trailing period (chat)
func (c *check) grammar() {
	if !c.isChat() || c.sender.HasPermission(PermBypassGrammar) {
		return
	}
	gc := c.cfg.Grammar
	before := c.text
	if gc.CapitalizeLength > 0 && helpers.Length(c.text) >= gc.CapitalizeLength {
		c.text = helpers.CapitalizeFirst(c.text)
	}
	if gc.InsertDotLength > 0 && helpers.Length(c.text) >= gc.InsertDotLength {
		c.text = helpers.InsertDot(c.text)
	}
	if c.text != before {
		rewriteCount.WithLabelValues(c.kind.String(), "grammar").Inc()
	}
}

// holds back messages sent to the sender, for delivery at the end of the check
type queuedSender struct {
	event.Sender
	queued []string
}

func (q *queuedSender) SendMessage(msg string) {
	q.queued = append(q.queued, msg)
}
