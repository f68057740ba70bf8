package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"yolda/config"
	"yolda/internal/announcer"
	"yolda/internal/handler"
	"yolda/internal/order"
	"yolda/internal/repository"
	"yolda/internal/session"
	"yolda/traits/database"
	"yolda/traits/logger"

	"github.com/go-telegram/bot"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	zapLogger, err := logger.NewLogger()
	if err != nil {
		panic(err)
	}
	defer zapLogger.Sync()

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		zapLogger.Error("error init config", zap.Error(err))
		return
	}

	if err := cfg.ValidateConfig(); err != nil {
		zapLogger.Error("invalid configuration", zap.Error(err))
		return
	}

	zapLogger.Info("Starting Yolda application",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port),
		zap.String("db_name", cfg.DBName),
		zap.Int64("channel_id", cfg.ChannelID),
	)

	// Initialize database
	db, err := database.InitDatabase(cfg, zapLogger)
	if err != nil {
		zapLogger.Error("failed to initialize database", zap.Error(err))
		return
	}
	defer db.Close()

	if err := database.CreateTables(db, zapLogger); err != nil {
		zapLogger.Error("failed to create tables", zap.Error(err))
		return
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db, zapLogger)
	orderRepo := repository.NewOrderRepository(db, zapLogger)
	regionRepo := repository.NewRegionRepository(db, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Seed the region directory on first run
	if err := regionRepo.SeedFromFile(ctx, cfg.RegionsFallbackFile); err != nil {
		zapLogger.Warn("failed to seed region directory", zap.Error(err))
	}

	// Conversation session store
	sessions := session.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SessionTTL)
	defer sessions.Close()
	if err := sessions.Ping(ctx); err != nil {
		zapLogger.Error("failed to connect to redis", zap.Error(err))
		return
	}

	machine := order.NewMachine(orderRepo, zapLogger)

	handl := handler.NewHandler(cfg, zapLogger, db, userRepo, orderRepo, regionRepo, sessions, machine)

	opts := []bot.Option{
		bot.WithDefaultHandler(handl.DefaultHandler),
	}

	b, err := bot.New(cfg.Token, opts...)
	if err != nil {
		zapLogger.Error("error creating bot", zap.Error(err))
		return
	}

	ann := announcer.New(b, orderRepo, cfg.ChannelID, zapLogger)

	scheduler := order.NewScheduler(machine, orderRepo, handl, order.Timers{
		ProcessingTimeout: cfg.ProcessingTimeout,
		ReminderDelay:     cfg.ReminderTime,
		ExpiryDelay:       cfg.ExpiryTime,
	}, zapLogger)
	defer scheduler.Stop()

	handl.Attach(b, ann, scheduler)

	// Rebuild timer state from the database before taking traffic.
	if err := scheduler.Recover(ctx); err != nil {
		zapLogger.Error("recovery sweep reported errors", zap.Error(err))
	}

	// Set up graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-stop
		zapLogger.Info("Shutdown signal received")
		cancel()
	}()

	// Start web server
	go handl.StartWebServer(ctx)
	zapLogger.Info("Web server started", zap.String("address", cfg.GetServerAddress()))

	handl.NotifyOwnerStartup(ctx)

	// Start bot
	zapLogger.Info("Bot started successfully")
	b.Start(ctx)

	zapLogger.Info("Application stopped successfully")
}
