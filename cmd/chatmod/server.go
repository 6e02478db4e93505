package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/chatmod/chatmod/automod"
	"github.com/chatmod/chatmod/automod/cachestore"
	"github.com/chatmod/chatmod/automod/countstore"
	"github.com/chatmod/chatmod/automod/engine"
	"github.com/chatmod/chatmod/automod/escalate"
	"github.com/chatmod/chatmod/automod/event"
	"github.com/chatmod/chatmod/automod/flagstore"
	"github.com/chatmod/chatmod/automod/rules"
	"github.com/chatmod/chatmod/automod/setstore"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

type Server struct {
	logger *slog.Logger
	engine *engine.Engine
	points *escalate.Points
	rdb    *redis.Client
}

type Config struct {
	ConfigPath       string
	ChatRulesPath    string
	CommandRulesPath string
	SetsFileJSON     string
	RedisURL         string
	SlackWebhookURL  string
	VerboseRules     bool
	Logger           *slog.Logger
}

// parts of the config file which are not engine thresholds
type extraConfig struct {
	Escalation escalate.PointsConfig `yaml:"escalation"`
}

func loadExtraConfig(path string) (extraConfig, error) {
	var extra extraConfig
	if path == "" {
		return extra, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return extra, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &extra); err != nil {
		return extra, fmt.Errorf("parsing escalation config %s: %w", path, err)
	}
	return extra, nil
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	cfg := engine.DefaultConfig()
	if config.ConfigPath != "" {
		var err error
		cfg, err = engine.LoadConfig(config.ConfigPath)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded engine config", "path", config.ConfigPath)
	}
	extra, err := loadExtraConfig(config.ConfigPath)
	if err != nil {
		return nil, err
	}

	memSets := setstore.NewMemSetStore()
	if config.SetsFileJSON != "" {
		if err := memSets.LoadFromFileJSON(config.SetsFileJSON); err != nil {
			return nil, fmt.Errorf("initializing in-process setstore: %v", err)
		} else {
			logger.Info("loaded set config from JSON", "path", config.SetsFileJSON)
		}
	}

	var counters countstore.CountStore
	var cache cachestore.CacheStore
	var flags flagstore.FlagStore
	var sets setstore.SetStore
	var rdb *redis.Client
	if config.RedisURL != "" {
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb = redis.NewClient(opt)
		// check redis connection
		_, err = rdb.Ping(context.TODO()).Result()
		if err != nil {
			return nil, fmt.Errorf("redis ping failed: %v", err)
		}

		counters = countstore.NewRedisCountStoreClient(rdb)

		cache = cachestore.NewRedisCacheStoreClient(rdb, cachestore.RedisCacheOptions{TTL: 30 * time.Minute})

		flg, err := flagstore.NewRedisFlagStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis flagstore: %v", err)
		}
		flags = flg

		rss, err := setstore.NewRedisSetStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis setstore: %v", err)
		}
		// sets from the JSON file are pushed to redis, replacing what is there
		for _, name := range sortedKeys(memSets.Sets) {
			if err := rss.Put(context.TODO(), name, sortedKeys(memSets.Sets[name])); err != nil {
				return nil, fmt.Errorf("seeding redis set %s: %v", name, err)
			}
		}
		sets = rss
	} else {
		counters = countstore.NewMemCountStore()
		cache = cachestore.NewMemCacheStore(5_000, 30*time.Minute)
		flags = flagstore.NewMemFlagStore()
		sets = memSets
	}

	dispatcher := &logDispatcher{logger: logger}

	var notifier rules.Notifier = &logNotifier{logger: logger}
	if config.SlackWebhookURL != "" {
		logger.Info("forwarding rule notifications to slack")
		notifier = automod.NewSlackNotifier(config.SlackWebhookURL)
	}

	pred, err := rules.NewTemplatePredicate(256)
	if err != nil {
		return nil, err
	}
	ruleEngine := &rules.Engine{
		Logger:     logger,
		Dispatcher: dispatcher,
		Notifier:   notifier,
		Predicate:  pred,
		Verbose:    config.VerboseRules,
	}
	for kind, path := range map[event.Kind]string{
		event.KindChat:    config.ChatRulesPath,
		event.KindCommand: config.CommandRulesPath,
	} {
		if path == "" {
			continue
		}
		parsed, err := rules.ParseFile(path)
		if err != nil {
			return nil, err
		}
		if err := ruleEngine.Load(kind, parsed); err != nil {
			return nil, err
		}
		logger.Info("loaded rules", "kind", kind.String(), "path", path, "count", len(ruleEngine.Rules(kind)))
	}

	eng, err := engine.NewEngine(logger, cfg)
	if err != nil {
		return nil, err
	}
	eng.Rules = ruleEngine
	eng.Dispatcher = dispatcher
	eng.Cache = cache
	eng.Flags = flags
	eng.Sets = sets

	s := &Server{
		logger: logger,
		engine: eng,
		rdb:    rdb,
	}
	if len(extra.Escalation.Triggers) > 0 {
		s.points = escalate.NewPoints(logger, counters, dispatcher, extra.Escalation)
		eng.Escalator = s.points
		logger.Info("configured warning points", "triggers", len(extra.Escalation.Triggers))
	}
	return s, nil
}

func (s *Server) Close() {
	if s.points != nil {
		s.points.Close()
	}
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			s.logger.Error("closing redis client", "err", err)
		}
	}
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Logs commands instead of running them; there is no game server to run them on.
type logDispatcher struct {
	logger *slog.Logger
}

func (d *logDispatcher) Dispatch(ctx context.Context, sender event.Sender, line string, asConsole bool) error {
	commandsDispatched.WithLabelValues(fmt.Sprint(asConsole)).Inc()
	d.logger.Info("dispatching command", "sender", sender.Name(), "command", line, "console", asConsole)
	return nil
}

type logNotifier struct {
	logger *slog.Logger
}

func (n *logNotifier) Notify(ctx context.Context, sender event.Sender, rule *rules.Rule, message string) error {
	n.logger.Info("spy notification", "sender", sender.Name(), "rule", rule.ID(), "message", message)
	return nil
}
