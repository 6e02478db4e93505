package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const replayFixture = `
# two players, one of them too fast
{"type": "join", "sender": "Steve", "time": "2024-01-01T12:00:00Z"}
{"type": "join", "sender": "Alex", "time": "2024-01-01T12:00:00Z"}
{"type": "chat", "sender": "Steve", "time": "2024-01-01T12:00:01Z", "text": "hello everyone"}
{"type": "chat", "sender": "Steve", "time": "2024-01-01T12:00:01.5Z", "text": "anyone here"}
{"type": "command", "sender": "Alex", "time": "2024-01-01T12:00:02Z", "text": "/spawn"}
{"type": "quit", "sender": "Steve", "time": "2024-01-01T12:00:03Z"}
`

func TestReplay(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	srv, err := NewServer(Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	var out bytes.Buffer
	assert.NoError(srv.Replay(ctx, strings.NewReader(replayFixture), &out, false))

	var results []replayResult
	dec := json.NewDecoder(&out)
	for dec.More() {
		var r replayResult
		assert.NoError(dec.Decode(&r))
		results = append(results, r)
	}
	if !assert.Equal(3, len(results)) {
		return
	}
	assert.False(results[0].Result.Cancelled)
	assert.Equal("Hello everyone.", results[0].Result.FinalText)
	assert.True(results[1].Result.Cancelled)
	assert.Equal("chat-delay", results[1].Result.CancelledBy)
	assert.Equal(6, results[1].Line)
	assert.False(results[2].Result.Cancelled)
	assert.Equal("command", results[2].Kind)

	// Steve quit
	online := srv.engine.Online()
	if assert.Equal(1, len(online)) {
		assert.Equal("Alex", online[0].Sender.Name())
	}
}

func TestReplayBadLine(t *testing.T) {
	assert := assert.New(t)

	srv, err := NewServer(Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	err = srv.Replay(context.Background(), strings.NewReader("{not json"), &bytes.Buffer{}, false)
	assert.ErrorContains(err, "line 1")
}

func TestReplayTimeLayouts(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	srv, err := NewServer(Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	fixture := `
{"type": "join", "sender": "Steve", "time": "2024-01-01 12:00:00"}
{"type": "chat", "sender": "Steve", "time": "2024-01-01 12:00:01", "text": "good morning"}
{"type": "chat", "sender": "Steve", "time": "2024-01-01 12:00:05", "text": "how is everyone doing"}
`
	var out bytes.Buffer
	assert.NoError(srv.Replay(ctx, strings.NewReader(fixture), &out, true))
	assert.Equal("", out.String())

	err = srv.Replay(ctx, strings.NewReader(`{"type": "join", "sender": "Alex", "time": "sometime tuesday"}`), &out, false)
	assert.ErrorContains(err, "parsing time")
}
