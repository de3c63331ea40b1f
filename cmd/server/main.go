package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JBpeople/stay-ledger/config"
	"github.com/JBpeople/stay-ledger/internal/repository"
	"github.com/JBpeople/stay-ledger/internal/services"
	"github.com/JBpeople/stay-ledger/internal/telegram"
	"github.com/JBpeople/stay-ledger/internal/web"
	"github.com/JBpeople/stay-ledger/pkg/database"
)

func main() {
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = log.Sync()
	}()

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("open database failed", zap.Error(err))
	}
	defer db.Close()

	repo := repository.NewSQLiteRepository(db)
	if err := seedDefaults(repo); err != nil {
		log.Fatal("seed config defaults failed", zap.Error(err))
	}

	svc := services.NewLedgerService(repo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poller := telegram.NewPoller(repo, repo, telegram.NewClient(), log)
	poller.Start(ctx)

	handler := web.NewHandler(svc, repo, cfg, log)
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: handler.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("server listening", zap.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed", zap.Error(err))
	}

	poller.Stop()
	log.Info("server stopped")
}

// seedDefaults writes the poll interval once so the settings table is
// self-describing on a fresh database.
func seedDefaults(repo *repository.SQLiteRepository) error {
	v, err := repo.GetConfig(repository.ConfigTelegramPollInterval, "")
	if err != nil {
		return err
	}
	if v == "" {
		return repo.SetConfig(repository.ConfigTelegramPollInterval, strconv.Itoa(telegram.DefaultPollInterval))
	}
	return nil
}
