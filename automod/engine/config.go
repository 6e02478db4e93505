package engine

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chatmod/chatmod/automod/event"
	"github.com/chatmod/chatmod/automod/keyword"
)

// Permissions which exempt a sender from individual gates.
const (
	PermBypassParrot            = "chatmod.bypass.parrot"
	PermBypassMove              = "chatmod.bypass.move"
	PermBypassDelayChat         = "chatmod.bypass.delay.chat"
	PermBypassDelayCommand      = "chatmod.bypass.delay.command"
	PermBypassPeriod            = "chatmod.bypass.period"
	PermBypassCaps              = "chatmod.bypass.caps"
	PermBypassSimilarityChat    = "chatmod.bypass.similarity.chat"
	PermBypassSimilarityCommand = "chatmod.bypass.similarity.command"
	PermBypassGrammar           = "chatmod.bypass.grammar"
)

// Spam thresholds for one message kind.
type KindConfig struct {
	// minimum time between two messages
	Delay time.Duration `yaml:"delay"`
	// messages matching any of these patterns skip the delay check
	DelayWhitelist []string `yaml:"delay_whitelist"`

	// at most LimitMax messages per LimitPeriod; LimitMax <= 0 disables the check
	LimitPeriod time.Duration `yaml:"limit_period"`
	LimitMax    int           `yaml:"limit_max"`

	// 0 to 1; 0 disables the similarity check
	Similarity float64 `yaml:"similarity"`
	// how many previous messages are compared
	SimilarityPast int `yaml:"similarity_past"`
	// previous messages older than this are not compared; 0 means no age limit
	SimilarityForgive time.Duration `yaml:"similarity_forgive"`
	// number of similar previous messages before escalating
	SimilarityStartAt int `yaml:"similarity_start_at"`
	// commands only: previous commands with fewer arguments are not compared
	SimilarityMinArgs int `yaml:"similarity_min_args"`
	// chat: patterns matched against the previous message; commands: labels of previous commands
	SimilarityWhitelist []string `yaml:"similarity_whitelist"`

	// messages are cancelled until this long after join; 0 disables
	CooldownAfterJoin time.Duration `yaml:"cooldown_after_join"`
}

type ParrotConfig struct {
	Enabled bool `yaml:"enabled"`
	// how long a line is remembered
	Delay      time.Duration `yaml:"delay"`
	Similarity float64       `yaml:"similarity"`
	Whitelist  []string      `yaml:"whitelist"`
}

type JoinFloodConfig struct {
	Enabled bool `yaml:"enabled"`
	// only senders who joined less than this long ago are counted
	Threshold  time.Duration `yaml:"threshold"`
	MinPlayers int           `yaml:"min_players"`
	// run by the console once per flagged sender; supports {player}, {player_amount}, {threshold}, {message}
	Commands []string `yaml:"commands"`
}

type MovementConfig struct {
	BlockChat bool `yaml:"block_chat"`
	// command labels blocked until the sender moves
	BlockCommands []string `yaml:"block_commands"`
}

type CapsConfig struct {
	Enabled bool `yaml:"enabled"`
	// command labels checked for caps
	Commands      []string `yaml:"commands"`
	MinLength     int      `yaml:"min_length"`
	MinPercentage int      `yaml:"min_percentage"`
	MinInRow      int      `yaml:"min_in_row"`
	// words allowed to stay upper-case, in addition to the caps-whitelist set
	Whitelist []string `yaml:"whitelist"`
}

type GrammarConfig struct {
	// messages at least this long get a capital first letter; 0 disables
	CapitalizeLength int `yaml:"capitalize_length"`
	// messages at least this long get a trailing period; 0 disables
	InsertDotLength int `yaml:"insert_dot_length"`
}

// User-facing texts. Supports the {placeholders} listed per message.
type MessagesConfig struct {
	// {similarity}, {message}, {delay}
	Parrot      string `yaml:"parrot"`
	MoveChat    string `yaml:"move_chat"`
	MoveCommand string `yaml:"move_command"`
	// {seconds}
	CooldownChat    string `yaml:"cooldown_chat"`
	CooldownCommand string `yaml:"cooldown_command"`
	// {seconds}
	DelayChat    string `yaml:"delay_chat"`
	DelayCommand string `yaml:"delay_command"`
	// {type_amount}, {type}, {period_amount}
	Period string `yaml:"period"`
	Caps   string `yaml:"caps"`
	// {similarity}
	SimilarityChat    string `yaml:"similarity_chat"`
	SimilarityCommand string `yaml:"similarity_command"`
}

type Config struct {
	HistoryCapacity int             `yaml:"history_capacity"`
	Parrot          ParrotConfig    `yaml:"parrot"`
	JoinFlood       JoinFloodConfig `yaml:"join_flood"`
	Movement        MovementConfig  `yaml:"movement"`
	Chat            KindConfig      `yaml:"chat"`
	Commands        KindConfig      `yaml:"commands"`
	Caps            CapsConfig      `yaml:"caps"`
	Grammar         GrammarConfig   `yaml:"grammar"`
	Messages        MessagesConfig  `yaml:"messages"`
}

func DefaultConfig() Config {
	return Config{
		HistoryCapacity: 100,
		Parrot: ParrotConfig{
			Enabled:    true,
			Delay:      10 * time.Second,
			Similarity: 0.9,
		},
		JoinFlood: JoinFloodConfig{
			Threshold:  10 * time.Second,
			MinPlayers: 3,
		},
		Chat: KindConfig{
			Delay:             2 * time.Second,
			LimitPeriod:       60 * time.Second,
			LimitMax:          20,
			Similarity:        0.8,
			SimilarityPast:    3,
			SimilarityForgive: 60 * time.Second,
			SimilarityStartAt: 1,
		},
		Commands: KindConfig{
			Delay:             time.Second,
			LimitPeriod:       60 * time.Second,
			LimitMax:          30,
			Similarity:        0.8,
			SimilarityPast:    2,
			SimilarityForgive: 30 * time.Second,
			SimilarityStartAt: 1,
			SimilarityMinArgs: 1,
		},
		Caps: CapsConfig{
			Enabled:       true,
			MinLength:     5,
			MinPercentage: 50,
			MinInRow:      5,
		},
		Grammar: GrammarConfig{
			CapitalizeLength: 5,
			InsertDotLength:  5,
		},
		Messages: MessagesConfig{
			Parrot:            "Please don't repeat what others said ({similarity}% similar).",
			MoveChat:          "Please move before chatting.",
			MoveCommand:       "Please move before running commands.",
			CooldownChat:      "Please wait {seconds} more seconds before chatting.",
			CooldownCommand:   "Please wait {seconds} more seconds before running commands.",
			DelayChat:         "Please wait {seconds} seconds before your next message.",
			DelayCommand:      "Please wait {seconds} seconds before your next command.",
			Period:            "You may only send {type_amount} {type} per {period_amount} seconds.",
			Caps:              "Please don't use so many capital letters.",
			SimilarityChat:    "Please don't repeat the same message ({similarity}% similar).",
			SimilarityCommand: "Please don't repeat the same command ({similarity}% similar).",
		},
	}
}

// Reads a YAML config file over the defaults; keys missing from the file keep their default value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Config with its pattern lists compiled. Immutable once built; swapped as a whole on reload.
type compiledConfig struct {
	Config

	parrotWhitelist  *keyword.Whitelist
	capsWhitelist    *keyword.Whitelist
	delayWhitelist   map[event.Kind]*keyword.Whitelist
	chatSimWhitelist *keyword.Whitelist
}

// Checks value ranges and that every whitelist pattern compiles.
func (cfg Config) Validate() error {
	_, err := cfg.compile()
	return err
}

func (cfg Config) compile() (*compiledConfig, error) {
	if cfg.Parrot.Similarity < 0 || cfg.Parrot.Similarity > 1 {
		return nil, fmt.Errorf("parrot similarity must be between 0 and 1, got %v", cfg.Parrot.Similarity)
	}
	for _, kc := range []KindConfig{cfg.Chat, cfg.Commands} {
		if kc.Similarity < 0 || kc.Similarity > 1 {
			return nil, fmt.Errorf("similarity must be between 0 and 1, got %v", kc.Similarity)
		}
	}
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = 100
	}

	cfg.Movement.BlockCommands = normalizeLabels(cfg.Movement.BlockCommands)
	cfg.Caps.Commands = normalizeLabels(cfg.Caps.Commands)
	cfg.Commands.SimilarityWhitelist = normalizeLabels(cfg.Commands.SimilarityWhitelist)

	cc := &compiledConfig{Config: cfg, delayWhitelist: make(map[event.Kind]*keyword.Whitelist)}
	var err error
	if cc.parrotWhitelist, err = keyword.NewWhitelist(cfg.Parrot.Whitelist); err != nil {
		return nil, fmt.Errorf("parrot whitelist: %w", err)
	}
	if cc.capsWhitelist, err = keyword.NewWhitelist(cfg.Caps.Whitelist); err != nil {
		return nil, fmt.Errorf("caps whitelist: %w", err)
	}
	if cc.delayWhitelist[event.KindChat], err = keyword.NewWhitelist(cfg.Chat.DelayWhitelist); err != nil {
		return nil, fmt.Errorf("chat delay whitelist: %w", err)
	}
	if cc.delayWhitelist[event.KindCommand], err = keyword.NewWhitelist(cfg.Commands.DelayWhitelist); err != nil {
		return nil, fmt.Errorf("command delay whitelist: %w", err)
	}
	if cc.chatSimWhitelist, err = keyword.NewWhitelist(cfg.Chat.SimilarityWhitelist); err != nil {
		return nil, fmt.Errorf("chat similarity whitelist: %w", err)
	}
	return cc, nil
}

func (cc *compiledConfig) kind(k event.Kind) *KindConfig {
	if k == event.KindCommand {
		return &cc.Commands
	}
	return &cc.Chat
}

// command labels are compared without the leading slash
func normalizeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		out = append(out, strings.ToLower(strings.TrimPrefix(strings.TrimSpace(l), "/")))
	}
	return out
}
