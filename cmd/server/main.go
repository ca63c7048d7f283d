package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"promoreg/bot"
	"promoreg/impl/auth"
	"promoreg/impl/core"
	"promoreg/internal/config"
	"promoreg/internal/database"
	"promoreg/internal/http-server/api"
	"promoreg/internal/metrics"
	"promoreg/internal/registry"
	"promoreg/lib/clock"
	"promoreg/lib/logger"
	"promoreg/lib/sl"
)

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg, err := logger.SetupLogger(conf.Env, *logPath)
	if err != nil {
		log.Fatal(err)
	}
	lg.Info("starting promoreg", slog.String("config", *configPath), slog.String("env", conf.Env))

	// the telegram logger wraps lg before any component binds it, so warn+ records
	// from the registry and the store reach the owner's chat
	var tgBot *bot.TgBot
	if conf.Telegram.Enabled {
		level := logger.ParseLevel(conf.Telegram.LogLevel)
		tgBot, err = bot.NewTgBot(conf.Telegram.ApiKey, nil, lg, bot.BotConfig{
			ChatId:    conf.Telegram.ChatId,
			QueueSize: conf.Telegram.Queue,
			MinLevel:  level,
		})
		if err != nil {
			lg.Error("creating telegram bot", sl.Err(err))
		} else {
			lg = slog.New(logger.NewTelegramHandler(lg.Handler(), tgBot, level))
		}
	}

	ctx := context.Background()
	clk := clock.System()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	mongo, err := database.NewMongoClient(ctx, conf, lg)
	if err != nil {
		lg.Error("mongodb client", sl.Err(err))
		os.Exit(1)
	}

	opts := []registry.Option{
		registry.WithClock(clk),
		registry.WithLogger(lg),
		registry.WithPolicy(registry.Policy{AllowExpiredDelete: conf.Policy.AllowExpiredDelete}),
		registry.WithListener(m.Observe),
	}
	if tgBot != nil {
		opts = append(opts, registry.WithListener(tgBot.Notify))
	}

	var reg *registry.Registry
	if mongo != nil {
		opts = append(opts, registry.WithStore(mongo))
		stored, err := mongo.LoadPromotions(ctx)
		if err != nil {
			lg.Error("loading promotions", sl.Err(err))
			os.Exit(1)
		}
		reg, err = registry.Restore(conf.Owner, stored, opts...)
		if err != nil {
			lg.Error("restoring registry", sl.Err(err))
			os.Exit(1)
		}
	} else {
		lg.Warn("mongodb disabled; registry state is kept in memory only")
		reg, err = registry.New(conf.Owner, opts...)
		if err != nil {
			lg.Error("creating registry", sl.Err(err))
			os.Exit(1)
		}
	}
	m.Seed(reg.Promotions())

	if tgBot != nil {
		tgBot.SetReader(reg)
		go func() {
			if err := tgBot.Start(); err != nil {
				lg.Error("telegram bot", sl.Err(err))
			}
		}()
	}

	handler := core.New(reg, clk, lg)
	if mongo != nil {
		handler.SetAuthService(auth.New(conf.Users, mongo))
		handler.SetJournal(mongo)
	} else {
		handler.SetAuthService(auth.New(conf.Users, nil))
	}
	handler.SetMetrics(m)

	server := api.New(conf, lg, handler, promReg)
	go func() {
		if err := server.Start(); err != nil {
			lg.Error("server", sl.Err(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	lg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		lg.Error("server shutdown", sl.Err(err))
	}
	if tgBot != nil {
		tgBot.Stop()
	}
	if mongo != nil {
		if err = mongo.Disconnect(shutdownCtx); err != nil {
			lg.Error("mongodb disconnect", sl.Err(err))
		}
	}
	lg.Info("stopped")
}
