package flagstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlagStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	fs := NewMemFlagStore()

	l, err := fs.Get(ctx, "test1")
	assert.NoError(err)
	assert.Empty(l)

	assert.NoError(fs.Add(ctx, "test1", []string{"red", "green"}))
	assert.NoError(fs.Add(ctx, "test1", []string{"red", "blue"}))
	l, err = fs.Get(ctx, "test1")
	assert.NoError(err)
	assert.Equal(3, len(l))

	ok, err := fs.Has(ctx, "test1", "blue")
	assert.NoError(err)
	assert.True(ok)
	ok, err = fs.Has(ctx, "test2", "blue")
	assert.NoError(err)
	assert.False(ok)

	assert.NoError(fs.Remove(ctx, "test1", []string{"red", "blue", "orange"}))
	l, err = fs.Get(ctx, "test1")
	assert.NoError(err)
	assert.Equal([]string{"green"}, l)

	assert.NoError(fs.Remove(ctx, "test1", []string{"green"}))
	l, err = fs.Get(ctx, "test1")
	assert.NoError(err)
	assert.Empty(l)
}

func TestFlagStoreTryAdd(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	fs := NewMemFlagStore()
	var wg sync.WaitGroup
	var won atomic.Int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := fs.TryAdd(ctx, "steve", "join-flood")
			assert.NoError(err)
			if ok {
				won.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(int32(1), won.Load())

	l, err := fs.Get(ctx, "steve")
	assert.NoError(err)
	assert.Equal([]string{"join-flood"}, l)

	assert.NoError(fs.Remove(ctx, "steve", []string{"join-flood"}))
	ok, err := fs.TryAdd(ctx, "steve", "join-flood")
	assert.NoError(err)
	assert.True(ok)
}
