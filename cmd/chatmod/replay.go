package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"

	"github.com/chatmod/chatmod/automod/event"
)

// One line of a replay file.
//
//	{"type": "join", "sender": "Steve", "time": "2024-01-01T12:00:00Z", "location": {"World": "world"}}
//	{"type": "chat", "sender": "Steve", "time": "2024-01-01T12:00:03Z", "text": "hello", "channel": "global"}
//	{"type": "command", "sender": "Steve", "text": "/spawn"}
//	{"type": "move", "sender": "Steve", "location": {"World": "world", "X": 4}}
//	{"type": "quit", "sender": "Steve"}
//
// Time is optional; when missing, the previous event's time is reused. Most common layouts are accepted (RFC 3339, "2024-01-01 12:00:03", unix seconds); a time without a zone is read as UTC.
type replayEvent struct {
	Type        string          `json:"type"`
	Sender      string          `json:"sender"`
	Time        string          `json:"time,omitempty"`
	Text        string          `json:"text,omitempty"`
	Channel     string          `json:"channel,omitempty"`
	Console     bool            `json:"console,omitempty"`
	Permissions []string        `json:"permissions,omitempty"`
	Location    *event.Location `json:"location,omitempty"`
}

type replayResult struct {
	Line   int                `json:"line"`
	Sender string             `json:"sender"`
	Kind   string             `json:"kind"`
	Text   string             `json:"text"`
	Result *event.CheckResult `json:"result"`
}

// sender ids are derived from the name, so repeated replays of the same file line up in shared (redis) state
var replayNamespace = uuid.MustParse("6f0e0c2a-4a41-4c1a-9d83-1f9c0c6e8b5a")

type replayer struct {
	srv     *Server
	senders map[string]*event.MockSender
	now     time.Time
}

func (r *replayer) sender(ev *replayEvent) *event.MockSender {
	if ev.Console {
		return event.NewMockConsole()
	}
	s, ok := r.senders[ev.Sender]
	if !ok {
		s = event.NewMockSender(ev.Sender)
		s.UUID = uuid.NewSHA1(replayNamespace, []byte(strings.ToLower(ev.Sender)))
		r.senders[ev.Sender] = s
	}
	for _, p := range ev.Permissions {
		s.Grant(p)
	}
	if ev.Location != nil {
		s.MoveTo(*ev.Location)
	}
	return s
}

// Replays a JSON-lines event file through the engine, writing one JSON result line per checked message to out.
//
// The engine clock follows the event timestamps, so delays and periods behave as they did when the file was recorded.
func (s *Server) Replay(ctx context.Context, in io.Reader, out io.Writer, onlyCancelled bool) error {
	r := &replayer{
		srv:     s,
		senders: make(map[string]*event.MockSender),
		now:     time.Now(),
	}
	s.engine.Clock = func() time.Time { return r.now }
	enc := json.NewEncoder(out)

	scanner := bufio.NewScanner(in)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var ev replayEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			replayFailed.Inc()
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
		if ev.Time != "" {
			t, err := dateparse.ParseIn(ev.Time, time.UTC)
			if err != nil {
				replayFailed.Inc()
				return fmt.Errorf("line %d: parsing time %q: %w", lineNum, ev.Time, err)
			}
			if t.Before(r.now) && lineNum > 1 {
				s.logger.Warn("replay event out of order", "line", lineNum)
			}
			r.now = t
		}
		replayEvents.WithLabelValues(ev.Type).Inc()

		res, err := r.handle(ctx, &ev)
		if err != nil {
			replayFailed.Inc()
			s.logger.Error("replay event failed", "line", lineNum, "type", ev.Type, "err", err)
			continue
		}
		if res == nil || (onlyCancelled && !res.Cancelled) {
			continue
		}
		if err := enc.Encode(replayResult{
			Line:   lineNum,
			Sender: ev.Sender,
			Kind:   ev.Type,
			Text:   ev.Text,
			Result: res,
		}); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (r *replayer) handle(ctx context.Context, ev *replayEvent) (*event.CheckResult, error) {
	eng := r.srv.engine
	switch ev.Type {
	case "join":
		eng.Join(r.sender(ev))
		return nil, nil
	case "quit":
		s := r.sender(ev)
		delete(r.senders, ev.Sender)
		return nil, eng.Quit(ctx, s.ID())
	case "move":
		r.sender(ev)
		return nil, nil
	case "chat", "command":
		kind := event.KindChat
		if ev.Type == "command" {
			kind = event.KindCommand
		}
		var channel *event.Channel
		if ev.Channel != "" {
			channel = &event.Channel{Name: ev.Channel}
		}
		return eng.Evaluate(ctx, r.sender(ev), kind, ev.Text, channel)
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
}
