package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/chatmod/chatmod/automod/event"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "chatmod",
		Usage:   "chat and command admission checks (spam, caps, rules)",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "path to YAML engine config (thresholds, messages, escalation)",
			EnvVars: []string{"CHATMOD_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "chat-rules",
			Usage:   "path to rule file applied to chat messages",
			EnvVars: []string{"CHATMOD_CHAT_RULES"},
		},
		&cli.StringFlag{
			Name:    "command-rules",
			Usage:   "path to rule file applied to commands",
			EnvVars: []string{"CHATMOD_COMMAND_RULES"},
		},
		&cli.StringFlag{
			Name:    "sets-json-path",
			Usage:   "file path of JSON file containing static word sets",
			EnvVars: []string{"CHATMOD_SETS_JSON_PATH"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL",
			// redis://<user>:<pass>@localhost:6379/<db>
			// redis://localhost:6379/0
			EnvVars: []string{"CHATMOD_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"CHATMOD_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "full URL of slack webhook which receives rule notifications",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.BoolFlag{
			Name:    "verbose-rules",
			Usage:   "log every matching rule at info level",
			EnvVars: []string{"CHATMOD_VERBOSE_RULES"},
		},
	}

	app.Commands = []*cli.Command{
		lintCmd,
		checkCmd,
		replayCmd,
	}

	return app.Run(args)
}

func configLogger(cctx *cli.Context, writer *os.File) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cctx.String("log-level")) {
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "info":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// configServer is a helper which sets up a Server from CLI flags
func configServer(cctx *cli.Context, logger *slog.Logger) (*Server, error) {
	return NewServer(Config{
		ConfigPath:       cctx.String("config"),
		ChatRulesPath:    cctx.String("chat-rules"),
		CommandRulesPath: cctx.String("command-rules"),
		SetsFileJSON:     cctx.String("sets-json-path"),
		RedisURL:         cctx.String("redis-url"),
		SlackWebhookURL:  cctx.String("slack-webhook-url"),
		VerboseRules:     cctx.Bool("verbose-rules"),
		Logger:           logger,
	})
}

var lintCmd = &cli.Command{
	Name:  "lint",
	Usage: "parse and validate the config and rule files, without running anything",
	Action: func(cctx *cli.Context) error {
		logger := configLogger(cctx, os.Stderr)
		srv, err := configServer(cctx, logger)
		if err != nil {
			return err
		}
		defer srv.Close()
		fmt.Printf("config ok; %d chat rules, %d command rules\n",
			len(srv.engine.Rules.Rules(event.KindChat)),
			len(srv.engine.Rules.Rules(event.KindCommand)),
		)
		return nil
	},
}

var checkCmd = &cli.Command{
	Name:      "check",
	Usage:     "run a single message through the admission checks and print the result",
	ArgsUsage: `<text>`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "sender",
			Usage: "name of the sending player",
			Value: "Steve",
		},
		&cli.StringFlag{
			Name:  "channel",
			Usage: "chat channel name",
		},
		&cli.StringSliceFlag{
			Name:  "permission",
			Usage: "permissions granted to the sender (repeatable)",
		},
		&cli.BoolFlag{
			Name:  "console",
			Usage: "send as the console instead of a player",
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := configLogger(cctx, os.Stderr)
		text := strings.Join(cctx.Args().Slice(), " ")
		if text == "" {
			return fmt.Errorf("need message text as an argument")
		}

		srv, err := configServer(cctx, logger)
		if err != nil {
			return err
		}
		defer srv.Close()

		sender := event.NewMockSender(cctx.String("sender"))
		if cctx.Bool("console") {
			sender = event.NewMockConsole()
		}
		for _, p := range cctx.StringSlice("permission") {
			sender.Grant(p)
		}

		kind := event.KindChat
		if strings.HasPrefix(text, "/") {
			kind = event.KindCommand
		}
		var channel *event.Channel
		if cctx.String("channel") != "" {
			channel = &event.Channel{Name: cctx.String("channel")}
		}

		res, err := srv.engine.Evaluate(ctx, sender, kind, text, channel)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(checkOutput{Result: res, Received: sender.Received()}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

type checkOutput struct {
	Result   *event.CheckResult `json:"result"`
	Received []string           `json:"received,omitempty"`
}

var replayCmd = &cli.Command{
	Name:      "replay",
	Usage:     "feed a JSON-lines file of recorded joins, quits and messages through the engine",
	ArgsUsage: `<path>`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			EnvVars: []string{"CHATMOD_METRICS_LISTEN"},
		},
		&cli.BoolFlag{
			Name:  "only-cancelled",
			Usage: "only print results for cancelled messages",
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := configLogger(cctx, os.Stderr)
		configOTEL("chatmod")
		defer shutdownTracing()

		path := cctx.Args().First()
		if path == "" {
			return fmt.Errorf("need replay file path as an argument")
		}

		srv, err := configServer(cctx, logger)
		if err != nil {
			return err
		}
		defer srv.Close()

		if listen := cctx.String("metrics-listen"); listen != "" {
			go func() {
				if err := srv.RunMetrics(listen); err != nil {
					slog.Error("failed to start metrics endpoint", "error", err)
					panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
				}
			}()
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		return srv.Replay(ctx, f, os.Stdout, cctx.Bool("only-cancelled"))
	},
}
