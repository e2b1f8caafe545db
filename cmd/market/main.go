package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"cardmarket/internal/bot"
	"cardmarket/internal/config"
	"cardmarket/internal/gateway"
	"cardmarket/internal/gateway/discord"
	"cardmarket/internal/handler"
	"cardmarket/internal/metrics"
	"cardmarket/internal/middleware"
	"cardmarket/internal/notify"
	"cardmarket/internal/repository"
	"cardmarket/internal/router"
	"cardmarket/internal/service"
	"cardmarket/internal/session"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting card market bot...")

	cfg := config.MustLoad()
	log.Printf("Environment: %s, store: %s", cfg.App.Environment, cfg.Store.Type)

	store, err := openStore(cfg.Store)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(reg)

	checks := []handler.Check{{Name: "store", Probe: func(ctx context.Context) error {
		_, err := store.Stats(ctx)
		return err
	}}}

	var publisher notify.Publisher = notify.NopPublisher{}
	if cfg.Redis.Enabled() {
		redisPub, err := notify.NewRedisPublisher(notify.RedisConfig{
			Addr:     cfg.Redis.Address(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		})
		if err != nil {
			log.Printf("Warning: change notifications disabled: %v", err)
		} else {
			publisher = redisPub
			checks = append(checks, handler.Check{Name: "redis", Probe: redisPub.Ping})
		}
	}
	defer publisher.Close()

	var (
		gw        gateway.Gateway
		discordGW *discord.Gateway
	)
	if cfg.Discord.Enabled() {
		discordGW, err = discord.New(cfg.Discord.Token)
		if err != nil {
			log.Fatalf("Failed to initialize Discord: %v", err)
		}
		gw = discordGW
	} else {
		log.Println("No DISCORD_TOKEN set, rendering posts to the console")
		gw = gateway.NewConsoleGateway()
	}

	// Services
	tracker := session.NewTracker()
	setups := bot.NewSetupStore()
	sync := service.NewSynchronizer(store, gw, publisher, rec)
	ledger := service.NewLedger(store, sync, publisher, rec)
	catalog := service.NewCatalog(store, sync, publisher)
	browser := service.NewBrowser(store, tracker, service.BrowseConfig{
		PageSize:        cfg.Browse.PageSize,
		CompactPageSize: cfg.Browse.CompactPageSize,
	}, rec)

	janitor := service.NewSessionJanitor(tracker, service.JanitorConfig{
		MaxIdle:  cfg.Browse.SessionIdle,
		Interval: cfg.Browse.JanitorInterval,
	}, rec)
	janitor.Sweep(setups)
	janitor.Start()
	defer janitor.Stop()

	limitCfg := middleware.RateLimitConfig{PerMinute: cfg.RateLimit.PerMinute, Burst: cfg.RateLimit.Burst}
	chatLimiter := middleware.NewRateLimiter(limitCfg)
	defer chatLimiter.Stop()
	apiLimiter := middleware.NewRateLimiter(limitCfg)
	defer apiLimiter.Stop()

	// Bot
	scheduler := bot.NewScheduler(cfg.Workers.Count, cfg.Workers.QueueSize, cfg.Workers.TaskTimeout)
	var directory bot.ChannelDirectory
	if discordGW != nil {
		directory = discord.NewChannels(discordGW)
		dispatcher := bot.NewDispatcher(ledger, browser, sync, catalog, chatLimiter, rec)
		commands := bot.NewCommands(cfg.Discord.CommandPrefix, catalog, ledger, sync, setups, directory, chatLimiter)
		discord.NewHandlers(discordGW, dispatcher, commands, scheduler, cfg.Discord.AdminIDs).Register()

		if err := discordGW.Open(); err != nil {
			log.Fatalf("Failed to connect to Discord: %v", err)
		}
	}

	// Admin HTTP API
	r := router.New(router.Config{
		Handler:        handler.New(cfg.App.Version, checks...),
		MarketHandler:  handler.NewMarketHandler(catalog, ledger, sync),
		AdminHandler:   handler.NewAdminHandler(store, cfg.Store.Type, tracker, setups),
		ChannelHandler: handler.NewChannelHandler(directory, cfg.Discord.GuildID),
		Metrics:        metrics.Handler(reg),
		AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{APIKeys: cfg.Admin.APIKeys, OpenPaths: router.OpenPaths}),
		RateLimit:      apiLimiter.Middleware,
	})
	if len(cfg.Admin.APIKeys) == 0 {
		log.Println("Warning: ADMIN_API_KEYS is empty, the admin API will reject every request")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Admin API listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop taking new events before draining the ones in flight.
	if discordGW != nil {
		if err := discordGW.Close(); err != nil {
			log.Printf("Discord close error: %v", err)
		}
	}
	scheduler.Close()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Stopped")
	fmt.Println("Goodbye!")
}

func openStore(cfg config.StoreConfig) (repository.Store, error) {
	switch cfg.Type {
	case "memory":
		log.Println("Using in-memory store, nothing will persist")
		return repository.NewMemoryStore(), nil
	case "mysql":
		return repository.NewMySQLStore(cfg.MySQLDSN())
	case "postgres":
		return repository.NewPostgresStore(cfg.PostgresDSN())
	default:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		return repository.NewSQLiteStore(cfg.SQLitePath)
	}
}
