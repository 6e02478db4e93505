package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindValidate(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(KindChat.Validate())
	assert.NoError(KindCommand.Validate())

	err := Kind(7).Validate()
	assert.Error(err)
	assert.True(errors.Is(err, ErrUnsupportedKind))
	assert.Equal("kind(7)", Kind(7).String())
}

func TestApplyAbort(t *testing.T) {
	assert := assert.New(t)

	var loud CheckResult
	loud.ApplyAbort(Cancel("delay", "slow down"))
	assert.True(loud.Cancelled)
	assert.False(loud.CancelledSilently)
	assert.Equal("slow down", loud.Reason)
	assert.Equal("delay", loud.CancelledBy)

	var silent CheckResult
	silent.ApplyAbort(CancelSilently("rule"))
	assert.True(silent.Cancelled)
	assert.True(silent.CancelledSilently)
	assert.Empty(silent.Reason)
}

func TestChannelKey(t *testing.T) {
	assert := assert.New(t)

	var c *Channel
	assert.Equal("", c.Key())
	assert.Equal("global", (&Channel{Name: "global"}).Key())
}
