package rules

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplace(t *testing.T) {
	assert := assert.New(t)

	vars := map[string]any{
		"player": "Steve",
		"0":      "buy gold",
		"1":      "gold",
	}

	fixtures := []struct {
		tmpl string
		out  string
	}{
		{tmpl: "{player} said {0}", out: "Steve said buy gold"},
		{tmpl: "no {such_key} here", out: "no {such_key} here"},
		{tmpl: "$1 only", out: "gold only"},
		// no tenth group: left alone, and "$1" must not match inside it
		{tmpl: "it costs $10", out: "it costs $10"},
		{tmpl: "$0/$1", out: "buy gold/gold"},
		{tmpl: "$01", out: "$01"},
	}
	for _, fix := range fixtures {
		assert.Equal(fix.out, Replace(fix.tmpl, vars), fix.tmpl)
	}

	vars["10"] = "ten"
	assert.Equal("it costs ten", Replace("it costs $10", vars))

	// substituted values are inserted as-is
	vars = map[string]any{
		"1":       "idiot",
		"player":  "Steve",
		"message": "you {1}, I paid $1 for this {player}",
	}
	assert.Equal("you {1}, I paid $1 for this {player}", Replace("{message}", vars))
	assert.Equal("idiot: you {1}, I paid $1 for this {player}", Replace("$1: {message}", vars))
}

func TestMatchGroups(t *testing.T) {
	assert := assert.New(t)

	re := regexp.MustCompile(`(?i)buy (\w+)( now)?`)
	assert.Equal([]string{"BUY gold", "gold", ""}, matchGroups(re, "please BUY gold"))
	assert.Nil(matchGroups(re, "sell gold"))
}
