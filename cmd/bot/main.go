package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/bezzego/request-bot/internal/bot"
	"github.com/bezzego/request-bot/internal/config"
	"github.com/bezzego/request-bot/internal/dialog"
	"github.com/bezzego/request-bot/internal/domain/catalog"
	"github.com/bezzego/request-bot/internal/domain/reports"
	"github.com/bezzego/request-bot/internal/domain/requests"
	"github.com/bezzego/request-bot/internal/domain/users"
	"github.com/bezzego/request-bot/internal/infra/db"
	httpx "github.com/bezzego/request-bot/internal/infra/http"
	"github.com/bezzego/request-bot/internal/infra/logger"
	"github.com/bezzego/request-bot/internal/reminder"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/subosito/gotenv"
)

func runMigrations(dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, "migrations")
}

func main() {
	_ = gotenv.Load()

	cfg, err := config.Load("config/example.yaml")
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	if err := runMigrations(cfg.Postgres.DSN); err != nil {
		log.Error("migrations failed", "err", err)
		return
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		return
	}
	defer pool.Close()
	log.Info("db connected")

	works, err := catalog.LoadFile(cfg.Requests.WorkCatalog)
	if err != nil {
		log.Error("work catalog load failed", "path", cfg.Requests.WorkCatalog, "err", err)
		return
	}
	materials, err := catalog.LoadFile(cfg.Requests.MaterialCatalog)
	if err != nil {
		log.Error("material catalog load failed", "path", cfg.Requests.MaterialCatalog, "err", err)
		return
	}
	log.Info("catalogs loaded", "works", works.Len(), "materials", materials.Len())

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		log.Error("telegram auth failed", "err", err)
		return
	}
	log.Info("telegram authorized", "username", api.Self.UserName)

	usersRepo := users.NewRepo(pool)
	statesRepo := dialog.NewRepo(pool)
	reqRepo := requests.NewRepo(pool)
	reportsRepo := reports.NewRepo(pool)
	service := requests.NewService(reqRepo, log, cfg.Requests.RemedyTermDays)

	tb := bot.New(api, log, cfg.Telegram.AdminChatID,
		usersRepo, statesRepo, reqRepo, service, reportsRepo,
		works, materials)

	dispatcher := reminder.New(reqRepo, usersRepo, tb, log,
		time.Duration(cfg.Reminders.PollIntervalSec)*time.Second, cfg.Reminders.BatchSize)
	go func() {
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("reminder dispatcher stopped", "err", err)
		}
	}()

	srv := httpx.New(cfg.HTTP.Addr, cfg.Metrics.Enabled)
	go func() {
		if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	go func() {
		if err := tb.Run(ctx, cfg.Telegram.PollTimeout); err != nil && ctx.Err() == nil {
			log.Error("bot stopped", "err", err)
		}
	}()
	log.Info("bot started")

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}
