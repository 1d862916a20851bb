package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sandevgo/companion/internal/config"
	"github.com/sandevgo/companion/internal/core"
	"github.com/sandevgo/companion/internal/observability"
	"github.com/sandevgo/companion/internal/providers/llm"
	"github.com/sandevgo/companion/internal/service/autosend"
	"github.com/sandevgo/companion/internal/service/chat"
	"github.com/sandevgo/companion/internal/service/command"
	"github.com/sandevgo/companion/internal/service/gateway"
	"github.com/sandevgo/companion/internal/service/memory"
	"github.com/sandevgo/companion/internal/service/prompt"
	"github.com/sandevgo/companion/internal/service/queue"
	"github.com/sandevgo/companion/internal/service/reminder"
	"github.com/sandevgo/companion/internal/storage/file"
	"github.com/sandevgo/companion/internal/storage/postgres"
	"github.com/sandevgo/companion/internal/storage/sqlite"
	"github.com/sandevgo/companion/internal/transport/cli"
	"github.com/sandevgo/companion/internal/transport/httpapi"
	"github.com/sandevgo/companion/internal/transport/telegram"
	"github.com/sandevgo/companion/pkg/log"
	"github.com/sandevgo/companion/pkg/retry"
	"github.com/sandevgo/companion/pkg/srv"
)

const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// storage bundles the selected backend. chatLog is nil for backends
// without a message archive.
type storage struct {
	kv      core.KVStore
	chatLog core.ChatLogRepository
	close   func() error
}

func NewServices(ctx context.Context, stop func()) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	llmCfg := config.NewLLMConfig(ctx)
	behaviorCfg := config.NewBehaviorConfig(ctx)

	// 2. Metrics
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	// 3. Storage
	store, err := initStorage(ctx, appCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	services = append(services, srv.NewCleanup(store.close))

	// 4. Prompt files, reloaded when edited
	library := prompt.NewLibrary(appCfg)
	services = append(services, library)

	// 5. LLM gateway
	strategy, err := llm.NewStrategy(ctx, llmCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize LLM strategy")
	}
	gw := gateway.New(strategy, gateway.Options{
		MaxGroups: appCfg.GetMaxGroups(),
		Retrier:   newRetrier(llmCfg),
		Base:      library,
		Metrics:   metrics,
	})

	// 6. Memory
	mem := memory.NewStore(
		store.kv,
		memory.NewConsolidator(gw, library, metrics),
		memory.Options{MaxGroups: appCfg.GetMaxGroups(), Metrics: metrics},
	)

	// 7. Chat pipeline behind the debounce queue
	outbox := chat.NewOutbox(chat.LogReplier{})
	pipeline := chat.NewService(gw, mem, library, outbox, chat.Options{
		Persona: appCfg.Persona,
		ChatLog: store.chatLog,
	})

	// Reminders see every batch after the pipeline and play back through it.
	var handler queue.Handler = pipeline
	var reminders *reminder.Scheduler
	if behaviorCfg.Reminders {
		reminders = reminder.NewScheduler(ctx, reminder.NewRecognizer(gw, library, nil), pipeline, reminder.Options{})
		services = append(services, reminders)
		handler = queue.Chain(pipeline, reminders)
	}

	aggregator := queue.NewAggregator(ctx, handler, queue.Options{
		Timeout: appCfg.QueueTimeout,
		Workers: appCfg.QueueWorkers,
		Metrics: metrics,
	})
	services = append(services, aggregator)

	cmdOpts := command.Options{Diary: memory.NewDiary(mem, gw, library)}
	if reminders != nil {
		cmdOpts.Reminders = reminders
	}
	router := command.New(command.NewCommands(mem, gw, cmdOpts), metrics)
	dispatcher := chat.NewDispatcher(appCfg.Persona, aggregator, router, outbox)

	// 8. Autosend
	if behaviorCfg.AutoSend {
		sched, err := newAutoSend(behaviorCfg, dispatcher)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize autosend")
		}
		dispatcher.Observe(sched)
		services = append(services, sched)
	}

	// 9. Transports
	transports, err := initTransports(ctx, appCfg, dispatcher, outbox, mem, metrics, stop)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize transports")
	}
	services = append(services, transports...)

	logger.Info().
		Str("persona", appCfg.Persona).
		Str("storage", appCfg.StorageBackend).
		Dur("queue_timeout", appCfg.QueueTimeout).
		Int("transports", len(transports)).
		Bool("autosend", behaviorCfg.AutoSend).
		Bool("reminders", behaviorCfg.Reminders).
		Msg("services configured")

	return services
}

func newAutoSend(cfg *config.BehaviorConfig, dispatcher core.Dispatcher) (*autosend.Scheduler, error) {
	targets, err := autosend.ParseTargets(cfg.AutoSendTargets)
	if err != nil {
		return nil, err
	}
	quiet, err := autosend.ParseQuietHours(cfg.QuietStart, cfg.QuietEnd)
	if err != nil {
		return nil, err
	}
	return autosend.New(dispatcher, autosend.Options{
		Targets:  targets,
		MinDelay: cfg.AutoSendMinDelay,
		MaxDelay: cfg.AutoSendMaxDelay,
		Content:  cfg.AutoSendContent,
		Quiet:    quiet,
	})
}

func newRetrier(cfg *config.LLMConfig) *retry.Retrier {
	return retry.NewRetrier(&retry.Config{
		Attempts:      cfg.Attempts,
		BackoffFactor: 1,
		InitialDelay:  cfg.RetryDelay,
		MaxDelay:      cfg.RetryDelay,
	})
}

func initStorage(ctx context.Context, cfg *config.AppConfig) (*storage, error) {
	switch cfg.StorageBackend {
	case BackendFile, "":
		kv, err := file.NewStore(cfg.GetRuntimePath())
		if err != nil {
			return nil, err
		}
		return &storage{kv: kv, close: kv.Close}, nil

	case BackendSQLite:
		db, err := sqlite.NewDB(ctx, cfg.GetDatabasePath())
		if err != nil {
			return nil, err
		}
		return &storage{
			kv:      sqlite.NewKVRepo(db),
			chatLog: sqlite.NewChatLogRepo(db),
			close:   db.Close,
		}, nil

	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the %s backend", BackendPostgres)
		}
		kv, err := postgres.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &storage{kv: kv, close: kv.Close}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
	}
}

func initTransports(
	ctx context.Context,
	cfg *config.AppConfig,
	dispatcher core.Dispatcher,
	outbox *chat.Outbox,
	mem core.MemoryService,
	metrics *observability.Metrics,
	stop func(),
) ([]srv.Service, error) {
	var services []srv.Service

	if cfg.IsTelegramSelected() {
		tgCfg := config.NewTelegramConfig(ctx)
		bot, err := telegram.NewBot(ctx, tgCfg, dispatcher)
		if err != nil {
			return nil, err
		}
		outbox.Register(telegram.TransportName, bot)
		services = append(services, bot)
	}

	if cfg.EnableCLI {
		console, err := cli.NewReadLine(dispatcher, cfg, stop)
		if err != nil {
			return nil, err
		}
		outbox.Register(cli.TransportName, console)
		services = append(services, console)
	}

	if cfg.EnableHTTP {
		api := httpapi.New(config.NewHTTPConfig(ctx), cfg.Persona, dispatcher, mem, metrics)
		services = append(services, api)
	}

	if len(services) == 0 {
		return nil, fmt.Errorf("no transport enabled")
	}
	return services, nil
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
