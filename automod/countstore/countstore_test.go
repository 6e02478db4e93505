package countstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemCountStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	c, err := cs.GetCount(ctx, "warn-points", "spam", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)
	assert.NoError(cs.Increment(ctx, "warn-points", "spam"))
	assert.NoError(cs.IncrementBy(ctx, "warn-points", "spam", 4))

	for _, period := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		c, err = cs.GetCount(ctx, "warn-points", "spam", period)
		assert.NoError(err)
		assert.Equal(5, c)
	}

	assert.NoError(cs.Reset(ctx, "warn-points", "spam"))
	c, err = cs.GetCount(ctx, "warn-points", "spam", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)
}

func TestMemCountStorePeriods(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	now := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	cs := NewMemCountStore()
	cs.Clock = func() time.Time { return now }

	assert.NoError(cs.IncrementBy(ctx, "warn-points", "caps", 2))
	now = now.Add(time.Hour)
	assert.NoError(cs.Increment(ctx, "warn-points", "caps"))

	c, err := cs.GetCount(ctx, "warn-points", "caps", PeriodHour)
	assert.NoError(err)
	assert.Equal(1, c)
	c, err = cs.GetCount(ctx, "warn-points", "caps", PeriodDay)
	assert.NoError(err)
	assert.Equal(3, c)
	c, err = cs.GetCount(ctx, "warn-points", "caps", PeriodTotal)
	assert.NoError(err)
	assert.Equal(3, c)
}

func TestMemCountStoreConcurrent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	// Increment two different values from four different goroutines, and read from two more.
	// A short sleep ensures the scheduler is yielded to, so that order is decently random,
	// and reads are interleaved with writes.
	var wg sync.WaitGroup
	fnInc := func(name, val string, times int) {
		for i := 0; i < times; i++ {
			assert.NoError(cs.Increment(ctx, name, val))
			time.Sleep(time.Nanosecond)
		}
		wg.Done()
	}
	fnRead := func(name, val string, times int) {
		for i := 0; i < times; i++ {
			_, err := cs.GetCount(ctx, name, val, PeriodTotal)
			assert.NoError(err)
			time.Sleep(time.Nanosecond)
		}
	}
	wg.Add(4)
	go fnInc("test1", "val1", 10)
	go fnInc("test1", "val1", 10)
	go fnRead("test1", "val1", 10)
	go fnInc("test2", "val2", 6)
	go fnInc("test2", "val2", 6)
	go fnRead("test2", "val2", 6)
	wg.Wait()

	c, err := cs.GetCount(ctx, "test1", "val1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(20, c)
	c, err = cs.GetCount(ctx, "test2", "val2", PeriodTotal)
	assert.NoError(err)
	assert.Equal(12, c)
}

func TestRedisCountStoreBasics(t *testing.T) {
	t.Skip("live test, need redis running locally")
	assert := assert.New(t)
	ctx := context.Background()

	cs, err := NewRedisCountStore("redis://localhost:6379/0")
	if err != nil {
		t.Fatal(err)
	}

	assert.NoError(cs.Reset(ctx, "test-points", "val1"))
	assert.NoError(cs.IncrementBy(ctx, "test-points", "val1", 3))
	c, err := cs.GetCount(ctx, "test-points", "val1", PeriodHour)
	assert.NoError(err)
	assert.Equal(3, c)
	assert.NoError(cs.Reset(ctx, "test-points", "val1"))
}
