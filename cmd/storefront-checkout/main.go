// Package main boots the storefront checkout widget HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/storefront-checkout/internal/checkout"
	"github.com/fairyhunter13/storefront-checkout/internal/client"
	"github.com/fairyhunter13/storefront-checkout/internal/config"
	httpapi "github.com/fairyhunter13/storefront-checkout/internal/http"
	"github.com/fairyhunter13/storefront-checkout/internal/obs"
	"github.com/fairyhunter13/storefront-checkout/internal/session"
)

func main() {
	os.Exit(run())
}

// run serves until a signal or a listener failure and returns the process
// exit code. Deferred cleanup always runs.
func run() int {
	cfg := config.Load()
	obs.InitLogger(cfg.LogLevel)
	obs.Logger.Info("service_starting",
		"catalog_service_url", cfg.CatalogServiceURL,
		"order_service_url", cfg.OrderServiceURL)

	hc := client.NewHTTPClient(cfg.ClientTimeout)
	catalog := client.NewCatalog(cfg.CatalogServiceURL, hc)
	orders := client.NewOrders(cfg.OrderServiceURL, hc)
	metrics := &checkout.Metrics{}

	sessions := session.New(func() *checkout.Workflow {
		return checkout.New(catalog, orders, checkout.WithMetrics(metrics))
	})
	app := httpapi.NewApp(cfg, sessions, metrics)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(app),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checkCatalog(ctx, catalog)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		obs.Logger.Info("http_listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sessions.Run(gctx, cfg.SessionSweep, cfg.SessionIdle)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		obs.Logger.Info("shutdown_signal")
		app.StartShutdown()

		ctxSrv, cancelSrv := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancelSrv()
		if err := srv.Shutdown(ctxSrv); err != nil {
			obs.Logger.Error("http_shutdown_error", "error", err)
		}
		obs.Logger.Info("shutdown_drain_begin", "active_sessions", sessions.Len())
		if drained := sessions.CloseAll(ctxSrv); !drained {
			obs.Logger.Warn("shutdown_drain_timeout")
		} else {
			obs.Logger.Info("shutdown_drain_complete")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		obs.Logger.Error("http_server_error", "error", err)
		return 1
	}
	obs.Logger.Info("service_stopped")
	return 0
}

// checkCatalog logs whether the catalog answers. The widget starts either way;
// an unreachable catalog only means every preview falls back to the default
// message.
func checkCatalog(ctx context.Context, catalog *client.Catalog) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	products, err := catalog.ListProducts(ctx)
	if err != nil {
		obs.Logger.Warn("catalog_unreachable", "error", err)
		return
	}
	obs.Logger.Info("catalog_reachable", "product_count", len(products))
}
