// Package main Hotspot Portal API
//
// @title           Hotspot Portal API
// @version         1.0
// @description     Бэкенд captive-портала: оплата M-Pesa, ваучеры, баллы и привязка гостевых платежей к аккаунту.
// @license.name    MIT
// @license.url     https://opensource.org/licenses/MIT
// @host            localhost:8080
// @BasePath        /api/v1
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	_ "github.com/magabrotheeeer/hotspot-portal/docs"
	"github.com/magabrotheeeer/hotspot-portal/internal/app/portal"
	"github.com/magabrotheeeer/hotspot-portal/internal/config"
	"github.com/magabrotheeeer/hotspot-portal/internal/lib/sl"
)

func main() {
	// .env не обязателен: в контейнере переменные приходят из окружения.
	envErr := godotenv.Load()

	cfg := config.MustLoad()
	logger := sl.New(cfg.Env, os.Stdout)
	if envErr != nil {
		logger.Debug(".env not loaded", sl.Err(envErr))
	}

	logger.Info("starting hotspot-portal", slog.String("env", cfg.Env))
	logger.Debug("config loaded", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := portal.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("hotspot-portal stopped gracefully")
}
