package app

import (
	"context"
	"net/http"
	"time"

	"ignews-service/internal/config"
)

type App struct {
	httpServer *http.Server
	infra      *Infra
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	infra, err := SetupInfra(ctx, cfg)
	if err != nil {
		return nil, err
	}

	router, err := setupHTTP(ctx, cfg, infra)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}

	server := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		httpServer: server,
		infra:      infra,
	}, nil
}

func (a *App) Run() error {
	return a.httpServer.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return a.infra.Close()
}
