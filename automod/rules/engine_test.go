package rules

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chatmod/chatmod/automod/event"
)

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Notify(ctx context.Context, sender event.Sender, rule *Rule, message string) error {
	n.messages = append(n.messages, message)
	return nil
}

func engineFixture(t *testing.T, kind event.Kind, src string) (*Engine, *event.MockDispatcher) {
	rules, err := ParseString(src, "test.rs")
	if err != nil {
		t.Fatal(err)
	}
	pred, err := NewTemplatePredicate(16)
	if err != nil {
		t.Fatal(err)
	}
	disp := &event.MockDispatcher{}
	eng := &Engine{
		Logger:     slog.Default(),
		Dispatcher: disp,
		Predicate:  pred,
	}
	if err := eng.Load(kind, rules); err != nil {
		t.Fatal(err)
	}
	return eng, disp
}

func TestEvaluateRewriteChain(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, _ := engineFixture(t, event.KindChat, `
match \bdamn\b
name swear
then rewrite darn it

match \bdarn\b
then warn {player}, mind your language ({rule_name})
then replace heck
`)
	steve := event.NewMockSender("Steve")

	res, err := eng.Evaluate(ctx, steve, event.KindChat, "damn", nil)
	assert.NoError(err)
	assert.Nil(res.Abort)
	assert.Equal("heck it", res.Text)
	assert.True(res.Rewritten)
	assert.Equal([]string{"swear", `\bdarn\b`}, res.Applied)
	// second rule is unnamed, so {rule_name} stays literal
	assert.Equal([]string{"Steve, mind your language ({rule_name})"}, steve.Received())

	res, err = eng.Evaluate(ctx, steve, event.KindChat, "hello", nil)
	assert.NoError(err)
	assert.Equal("hello", res.Text)
	assert.False(res.Rewritten)
	assert.Empty(res.Applied)

	// rules are per kind
	res, err = eng.Evaluate(ctx, steve, event.KindCommand, "damn", nil)
	assert.NoError(err)
	assert.Empty(res.Applied)
}

func TestEvaluateAbortAndDeny(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, _ := engineFixture(t, event.KindChat, `
match first
then rewrite first!
then abort

match first
then deny never reached

match deny me
then deny &cNope

match hide me
then deny silently
dont log
`)
	steve := event.NewMockSender("Steve")

	res, err := eng.Evaluate(ctx, steve, event.KindChat, "first", nil)
	assert.NoError(err)
	assert.Nil(res.Abort)
	assert.Equal("first!", res.Text)

	res, err = eng.Evaluate(ctx, steve, event.KindChat, "please deny me", nil)
	assert.NoError(err)
	if assert.NotNil(res.Abort) {
		assert.False(res.Abort.Silent)
		assert.Equal("&cNope", res.Abort.Reason)
	}

	res, err = eng.Evaluate(ctx, steve, event.KindChat, "hide me", nil)
	assert.NoError(err)
	assert.Nil(res.Abort)
	assert.True(res.CancelledSilently)
	assert.True(res.LoggingSuppressed)
	assert.False(res.SpyingSuppressed)
}

func TestEvaluateGuards(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, disp := engineFixture(t, event.KindCommand, `
match ^/op (\w+)
require sender perm server.admin &cNo permission to op $1.

match ^/gamemode
require perm server.gm
then console log {player} changed gamemode

match ^/fly
ignore sender server pvp
then command say flying

match ^/home
require sender script player_name == "Alex"
then warn welcome home
`)
	steve := event.NewMockSender("Steve")

	// deny message on a failed permission guard cancels the message
	res, err := eng.Evaluate(ctx, steve, event.KindCommand, "/op Notch", nil)
	assert.NoError(err)
	if assert.NotNil(res.Abort) {
		assert.Equal("&cNo permission to op Notch.", res.Abort.Reason)
	}

	// without a deny message the rule is just skipped
	res, err = eng.Evaluate(ctx, steve, event.KindCommand, "/gamemode creative", nil)
	assert.NoError(err)
	assert.Nil(res.Abort)
	assert.Empty(res.Applied)

	steve.Grant("server.gm")
	res, err = eng.Evaluate(ctx, steve, event.KindCommand, "/gamemode creative", nil)
	assert.NoError(err)
	assert.Equal([]string{"^/gamemode"}, res.Applied)

	steve.Server = "PVP"
	res, err = eng.Evaluate(ctx, steve, event.KindCommand, "/fly", nil)
	assert.NoError(err)
	assert.Empty(res.Applied)
	steve.Server = "lobby"
	_, err = eng.Evaluate(ctx, steve, event.KindCommand, "/fly", nil)
	assert.NoError(err)

	assert.Equal([]event.DispatchedCommand{
		{Sender: "Steve", Line: "log Steve changed gamemode", AsConsole: true},
		{Sender: "Steve", Line: "say flying", AsConsole: false},
	}, disp.Commands)

	_, err = eng.Evaluate(ctx, steve, event.KindCommand, "/home", nil)
	assert.NoError(err)
	assert.Empty(steve.Received())
	alex := event.NewMockSender("Alex")
	_, err = eng.Evaluate(ctx, alex, event.KindCommand, "/home", nil)
	assert.NoError(err)
	assert.Equal([]string{"welcome home"}, alex.Received())
}

func TestGuardOrder(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, _ := engineFixture(t, event.KindCommand, `
match ^/warp
ignore sender server pvp
ignore sender perm warp.free
require sender perm warp.use &cYou can't warp.
then warn warping
`)
	r := eng.Rules(event.KindCommand)[0]
	assert.Equal(GuardRequirePermission, r.Guards[0].Kind)
	assert.Equal(GuardIgnoreServer, r.Guards[2].Kind)

	// the deny message applies even though an ignore guard is listed first
	steve := event.NewMockSender("Steve")
	steve.Server = "pvp"
	res, err := eng.Evaluate(ctx, steve, event.KindCommand, "/warp spawn", nil)
	assert.NoError(err)
	if assert.NotNil(res.Abort) {
		assert.Equal("&cYou can't warp.", res.Abort.Reason)
	}

	steve.Grant("warp.use")
	res, err = eng.Evaluate(ctx, steve, event.KindCommand, "/warp spawn", nil)
	assert.NoError(err)
	assert.Nil(res.Abort)
	assert.Empty(res.Applied)
}

func TestEvaluateScriptErrors(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	// a script which does not return a boolean is a configuration error, not a skip
	eng, _ := engineFixture(t, event.KindChat, "match hi\nrequire sender script message\nthen deny")
	_, err := eng.Evaluate(ctx, event.NewMockSender("Steve"), event.KindChat, "hi", nil)
	var ce *ConfigError
	if assert.True(errors.As(err, &ce)) {
		assert.Equal("test.rs", ce.File)
		assert.Equal(1, ce.Line)
	}

	// malformed scripts are rejected at load, keeping the old list
	bad, err := ParseString("match x\nignore sender script 1 +", "bad.rs")
	assert.NoError(err)
	err = eng.Load(event.KindChat, bad)
	assert.True(errors.As(err, &ce))
	assert.Equal(1, len(eng.Rules(event.KindChat)))

	// without a predicate, script guards can't load
	plain := &Engine{}
	assert.Error(plain.Load(event.KindChat, bad))
}

func TestScriptPlaceholdersAreReferences(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, _ := engineFixture(t, event.KindChat, `
match ^buy (.+)
require sender script "{1}" != "diamond" and $1 != 'emerald'
then warn bought {1}
`)
	fixtures := []struct {
		text     string
		received []string
	}{
		{text: `buy a"b`, received: []string{`bought a"b`}},
		{text: `buy {player}`, received: []string{"bought {player}"}},
		{text: `buy " or "x" == "x`, received: []string{`bought " or "x" == "x`}},
		{text: "buy diamond", received: nil},
		{text: "buy emerald", received: nil},
	}
	for _, fix := range fixtures {
		steve := event.NewMockSender("Steve")
		_, err := eng.Evaluate(ctx, steve, event.KindChat, fix.text, nil)
		assert.NoError(err, fix.text)
		assert.Equal(fix.received, steve.Received(), fix.text)
	}
	// one compiled expression for the rule, whatever the messages were
	assert.Equal(1, eng.Predicate.(*TemplatePredicate).cache.Len())

	// a placeholder spliced into a longer string can't be expressed as a reference
	bad, err := ParseString("match x\nrequire sender script \"hello {player}\" == message", "bad.rs")
	assert.NoError(err)
	var ce *ConfigError
	assert.True(errors.As(eng.Load(event.KindChat, bad), &ce))
}

func TestScriptExpr(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		script string
		expr   string
	}{
		{script: `player_name == "Alex"`, expr: `player_name == "Alex"`},
		{script: `"{1}" != "diamond"`, expr: `groups.1 != "diamond"`},
		{script: `{player} == '$2'`, expr: `player == groups.2`},
		{script: `message == "costs $5"`, expr: `message == "costs $5"`},
	}
	for _, fix := range fixtures {
		expr, err := scriptExpr(fix.script)
		assert.NoError(err, fix.script)
		assert.Equal(fix.expr, expr)
	}

	for _, bad := range []string{`"hi {player}" == message`, `$01 == "x"`, `{1a} == "x"`} {
		_, err := scriptExpr(bad)
		assert.Error(err, bad)
	}

	// unterminated strings pass through for the template parser to reject
	expr, err := scriptExpr(`"{1}`)
	assert.NoError(err)
	assert.Equal(`"{1}`, expr)
}

func TestEvaluateNotifyAndChannel(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, _ := engineFixture(t, event.KindChat, "match discord\nthen notify {player} mentioned discord in {channel}")
	notifier := &recordingNotifier{}
	eng.Notifier = notifier

	_, err := eng.Evaluate(ctx, event.NewMockSender("Steve"), event.KindChat, "join our discord", &event.Channel{Name: "global"})
	assert.NoError(err)
	assert.Equal([]string{"Steve mentioned discord in global"}, notifier.messages)

	eng, _ = engineFixture(t, event.KindChat, "match \\.gg\\b\nthen notify {player} posted: {links}")
	eng.Notifier = notifier
	_, err = eng.Evaluate(ctx, event.NewMockSender("Alex"), event.KindChat, "come to discord.gg/abc and play.example.com", nil)
	assert.NoError(err)
	assert.Equal("Alex posted: discord.gg/abc play.example.com", notifier.messages[1])
}

func TestLoadIsAtomic(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng, _ := engineFixture(t, event.KindChat, "match a\nthen rewrite old1\nmatch old1\nthen rewrite old2")
	next, err := ParseString("match a\nthen rewrite new1\nmatch new1\nthen rewrite new2", "next.rs")
	assert.NoError(err)
	prev := eng.Rules(event.KindChat)

	var wg sync.WaitGroup
	results := make(chan string, 200)
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			res, err := eng.Evaluate(ctx, event.NewMockSender("Steve"), event.KindChat, "a", nil)
			if err == nil {
				results <- res.Text
			}
		}()
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = eng.Load(event.KindChat, next)
			} else {
				_ = eng.Load(event.KindChat, prev)
			}
		}(i)
	}
	wg.Wait()
	close(results)

	for text := range results {
		// never a mix of the two lists
		assert.Contains([]string{"old2", "new2"}, text)
	}
}
