package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/chatmod/chatmod/automod/event"
)

// Manually advanced clock for tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Default config with grammar fixes off, so accepted texts come through unchanged.
func FixtureConfig() Config {
	cfg := DefaultConfig()
	cfg.Grammar = GrammarConfig{}
	return cfg
}

// Engine with in-memory stores, a mock dispatcher, and a fake clock shared by every component.
func EngineTestFixture(cfg Config) (*Engine, *FakeClock, *event.MockDispatcher) {
	clock := NewFakeClock()
	disp := &event.MockDispatcher{}
	eng, err := NewEngine(slog.Default(), cfg)
	if err != nil {
		panic(err)
	}
	eng.Clock = clock.Now
	eng.Dispatcher = disp
	eng.Rules.Dispatcher = disp
	return eng, clock, disp
}
