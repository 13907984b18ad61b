package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fluxgen/fluxgen/internal/config"
	"github.com/fluxgen/fluxgen/internal/inject"
	"github.com/fluxgen/fluxgen/internal/log"
	"github.com/fluxgen/fluxgen/internal/web"
	"github.com/samber/do"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fluxgen-web:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := log.NewContext(context.Background(), log.New(os.Stderr))
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	injector := inject.Setup(ctx, cfg)
	defer func() { _ = injector.Shutdown() }()

	server := do.MustInvoke[*web.Server](injector)
	if err := server.Run(ctx, cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
