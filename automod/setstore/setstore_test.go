package setstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemSetStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ss := NewMemSetStore()
	ok, err := ss.InSet(ctx, SetCapsWhitelist, "LOL")
	assert.NoError(err)
	assert.False(ok)

	ss.Put(SetCapsWhitelist, []string{"lol", "GG", " OMG "})
	for _, w := range []string{"LOL", "gg", "Omg"} {
		ok, err = ss.InSet(ctx, SetCapsWhitelist, w)
		assert.NoError(err)
		assert.True(ok, w)
	}
	ok, err = ss.InSet(ctx, SetCapsWhitelist, "wtf")
	assert.NoError(err)
	assert.False(ok)
}

func TestMemSetStoreLoadJSON(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	p := filepath.Join(t.TempDir(), "sets.json")
	assert.NoError(os.WriteFile(p, []byte(`{"similarity-commands": ["spawn", "Home"]}`), 0o644))

	ss := NewMemSetStore()
	assert.NoError(ss.LoadFromFileJSON(p))
	ok, err := ss.InSet(ctx, SetSimilarityCommands, "home")
	assert.NoError(err)
	assert.True(ok)

	assert.Error(ss.LoadFromFileJSON(filepath.Join(t.TempDir(), "missing.json")))
}

func TestRedisSetStore(t *testing.T) {
	t.Skip("live test, need redis running locally")
	assert := assert.New(t)
	ctx := context.Background()

	ss, err := NewRedisSetStore("redis://localhost:6379/0")
	if err != nil {
		t.Fatal(err)
	}
	assert.NoError(ss.Put(ctx, "test-set", []string{"Alpha", "beta"}))
	ok, err := ss.InSet(ctx, "test-set", "ALPHA")
	assert.NoError(err)
	assert.True(ok)
	assert.NoError(ss.Put(ctx, "test-set", nil))
}
