// Package main contains the entrypoint for the companion bot application.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/mveloso/companion-bot/internal/api"
	"github.com/mveloso/companion-bot/internal/bot"
	"github.com/mveloso/companion-bot/internal/bot/handlers"
	"github.com/mveloso/companion-bot/internal/bot/tasks"
	"github.com/mveloso/companion-bot/internal/companion"
	"github.com/mveloso/companion-bot/internal/config"
	"github.com/mveloso/companion-bot/internal/database"
	"github.com/mveloso/companion-bot/internal/gemini"
	"github.com/mveloso/companion-bot/internal/indexer"
	"github.com/mveloso/companion-bot/internal/logger"
	"github.com/mveloso/companion-bot/internal/persona"
	"github.com/mveloso/companion-bot/internal/retriever"
	"github.com/mveloso/companion-bot/internal/telegram"
	"github.com/mveloso/companion-bot/internal/tools"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop() // Ensure context cancellation is signaled before exit
	os.Exit(exitCode)
}

// run initializes and starts all application components (config, logger, db,
// persona, retriever, companion executor, indexer, API server, Telegram bot,
// scheduler), handles graceful shutdown, and returns an exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	gemClient, err := gemini.NewClient(ctx, cfg.Gemini, log)
	if err != nil {
		log.Error("Failed to initialize Gemini client", "error", err)
		return 1
	}

	ret := retriever.New(store, gemClient, log, cfg.Retriever.TopK)

	p, err := persona.New(cfg.Companion)
	if err != nil {
		log.Error("Invalid companion configuration", "error", err)
		return 1
	}
	backstoryChars, err := p.LoadBackstory(cfg.Companion.BackstoryPath)
	if err != nil {
		log.Error("Failed to load backstory resource", "path", cfg.Companion.BackstoryPath, "error", err)
		return 1
	}
	log.Info("Loaded persona", "persona", p.String(), "preamble_seed_chars", backstoryChars)

	comp, err := companion.New(p, store, ret, gemClient, log, cfg.Database.MaxHistoryTurns, cfg.Gemini.Timeout)
	if err != nil {
		log.Error("Failed to create companion executor", "error", err)
		return 1
	}

	ix := indexer.New(ret, log, cfg.Retriever.ChunkSize, cfg.Retriever.ChunkOverlap)
	apiServer := api.NewServer(cfg.HTTP.Addr, ix, log)

	registry := buildToolRegistry(cfg.Tools, log)

	hDeps := handlers.HandlerDeps{
		Logger:    log,
		Config:    cfg,
		Store:     store,
		Companion: comp,
		Tools:     registry,
	}
	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Config: cfg,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewChatHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	// Retrieve bot info and store it in the config for runtime use
	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	cmdHandlers := handlers.RegisterAllCommands(hDeps)
	if err := telegram.RegisterHandlers(tg, log, cmdHandlers); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	app := bot.NewBot(log, cfg, db, store, comp, tg, apiServer, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		// Allow logs to flush before exiting on error
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}

// buildToolRegistry registers the generator tools that have an endpoint
// configured. An empty registry is valid: the bot runs without tools.
func buildToolRegistry(cfg config.ToolsConfig, log *slog.Logger) *tools.Registry {
	registry := tools.NewRegistry()
	client := &http.Client{Timeout: cfg.Timeout}

	var speech tools.Tool
	if cfg.SpeechEndpoint != "" {
		speech = tools.NewSpeechTool(cfg.SpeechEndpoint, client, log)
		if err := registry.Register(speech); err != nil {
			log.Warn("Failed to register speech tool", "error", err)
		}
	}
	if cfg.ImageEndpoint != "" {
		if err := registry.Register(tools.NewImageTool(cfg.ImageEndpoint, client, log)); err != nil {
			log.Warn("Failed to register image tool", "error", err)
		}
	}
	if cfg.VideoEndpoint != "" {
		if err := registry.Register(tools.NewVideoMessageTool(cfg.VideoEndpoint, speech, client, log)); err != nil {
			log.Warn("Failed to register video message tool", "error", err)
		}
	}

	names := make([]string, 0)
	for _, t := range registry.List() {
		names = append(names, t.Name())
	}
	log.Info("Initialized tool registry", "tools", names)
	return registry
}
