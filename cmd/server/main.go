package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fest-ledger/internal/catalog"
	"fest-ledger/internal/config"
	"fest-ledger/internal/ledger"
	"fest-ledger/internal/logging"
	"fest-ledger/internal/payments"
	"fest-ledger/internal/provision"
	"fest-ledger/internal/regid"
	"fest-ledger/internal/server"
	"fest-ledger/internal/sheets"
	"fest-ledger/internal/sheets/memsheet"
	"fest-ledger/internal/tgbot"
)

// store is what both drivers provide.
type store interface {
	ledger.Store
	provision.Store
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		fatal(log, "store", err)
	}

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		fatal(log, "catalog", err)
	}

	payProvider, err := payments.NewProvider(cfg)
	if err != nil {
		fatal(log, "payments", err)
	}

	opts := []ledger.Option{
		ledger.WithLogger(log),
		ledger.WithPaymentLinker(payProvider),
	}

	var botApp *tgbot.App
	if cfg.TelegramToken != "" {
		botApp, err = tgbot.New(cfg, log.With("component", "telegram"))
		if err != nil {
			fatal(log, "telegram", err)
		}
		opts = append(opts, ledger.WithNotifier(botApp))
	}

	prov := provision.New(st, log.With("component", "provision"))
	ledg := ledger.New(st, prov, regid.New(cfg.RegistrationIDPrefix), cat, opts...)

	// Provisioning is retried lazily on every request, so a failure here is
	// not fatal.
	if err := prov.Ensure(ctx); err != nil {
		log.Warn("initial provisioning failed", "error", err)
	}

	httpSrv := server.New(cfg, ledg, log.With("component", "http"))

	// Start HTTP server
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver, "payments", payProvider.Name())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "http server", err)
		}
	}()

	// Start Telegram
	if botApp != nil {
		go func() {
			if err := botApp.Run(ctx, ledg); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("bot stopped", "error", err)
			}
		}()
	}

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	cancel()
	ctxTimeout, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	if err := httpSrv.Shutdown(ctxTimeout); err != nil {
		log.Warn("http shutdown", "error", err)
	}

	log.Info("bye")
}

func openStore(ctx context.Context, cfg config.Config) (store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return memsheet.New(), nil
	default:
		creds := sheets.Credentials{
			ClientEmail: cfg.GoogleClientEmail,
			PrivateKey:  cfg.GooglePrivateKey,
			JSONPath:    cfg.GoogleServiceAccountJSON,
		}
		opts, err := creds.Options(cfg.SheetsEndpoint)
		if err != nil {
			return nil, err
		}
		client, err := sheets.New(ctx, cfg.SpreadsheetID, opts...)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func fatal(log *slog.Logger, what string, err error) {
	log.Error(what, "error", err)
	os.Exit(1)
}
