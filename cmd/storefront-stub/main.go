// Package main boots stand-ins for the catalog and order services so the
// checkout widget can run locally.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/storefront-checkout/internal/config"
	"github.com/fairyhunter13/storefront-checkout/internal/events"
	"github.com/fairyhunter13/storefront-checkout/internal/obs"
	"github.com/fairyhunter13/storefront-checkout/internal/queue"
	"github.com/fairyhunter13/storefront-checkout/internal/store"
	"github.com/fairyhunter13/storefront-checkout/internal/stub"
)

func main() {
	os.Exit(run())
}

// run serves until a signal or a listener failure, drains pending order
// completions and returns the process exit code. Deferred cleanup always runs.
func run() int {
	cfg := config.Load()
	obs.InitLogger(cfg.LogLevel)
	obs.Logger.Info("stub_starting", "order_completion_delay_ms", cfg.OrderCompletionDelay.Milliseconds())

	var pub events.Publisher
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		pub = events.NewRedisPublisher(rdb, cfg.OrderCompletedStream)
		obs.Logger.Info("event_publisher", "kind", "redis", "addr", cfg.RedisAddr, "stream", cfg.OrderCompletedStream)
	} else {
		obs.Logger.Info("event_publisher", "kind", "log", "stream", cfg.OrderCompletedStream)
	}

	catalog := store.NewCatalog()
	orders := store.NewOrders()
	mgr := queue.NewManager(cfg, queue.New(128), orders, pub)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr.Start(ctx)
	defer mgr.Stop()

	app := stub.NewServer(cfg, catalog, orders, mgr)
	srv := &http.Server{
		Addr:              cfg.StubAddr,
		Handler:           app.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		obs.Logger.Info("http_listen", "addr", cfg.StubAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)

	code := 0
	select {
	case s := <-sigc:
		obs.Logger.Info("shutdown_signal", "signal", s.String())
	case err := <-serveErr:
		obs.Logger.Error("http_server_error", "error", err)
		code = 1
	}

	mgr.CloseIntake()
	st := mgr.Stats()
	obs.Logger.Info("shutdown_drain_begin", "due", st.Due, "waiting", st.Waiting, "worker_count", st.Workers)

	// Pending completions are due up to one delay from now.
	ctxDrain, cancelDrain := context.WithTimeout(context.Background(), cfg.ShutdownTimeout+cfg.OrderCompletionDelay)
	defer cancelDrain()
	if drained := mgr.DrainUntil(ctxDrain); !drained {
		obs.Logger.Warn("shutdown_drain_timeout")
	} else {
		obs.Logger.Info("shutdown_drain_complete")
	}

	ctxSrv, cancelSrv := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSrv()
	if err := srv.Shutdown(ctxSrv); err != nil {
		obs.Logger.Error("http_shutdown_error", "error", err)
	}
	obs.Logger.Info("stub_stopped", "exit_code", code)
	return code
}
