// Package config provides runtime configuration values for the checkout widget
// server and the stub catalog/order services.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration knobs for the widget server, its upstream
// clients, and the stub services.
type Config struct {
	HTTPAddr          string
	CatalogServiceURL string
	OrderServiceURL   string
	ClientTimeout     time.Duration
	ShutdownTimeout   time.Duration
	SessionIdle       time.Duration
	SessionSweep      time.Duration
	LogLevel          string

	StubAddr                string
	OrderCompletionDelay    time.Duration
	InitialWorkerCount      int
	WorkerMin               int
	WorkerMax               int
	ScaleInterval           time.Duration
	ScaleUpBacklogPerWorker int
	ScaleDownIdleTicks      int
	QueueHighWatermark      int
	RedisAddr               string
	OrderCompletedStream    string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvms(key string, defMs int) time.Duration {
	ms := atoienv(key, defMs)
	return time.Duration(ms) * time.Millisecond
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

// Load collects configuration from environment with defaults.
func Load() Config {
	minWorkers := atoienv("WORKER_MIN", 1)
	maxWorkers := atoienv("WORKER_MAX", 4)
	initialWorkers := atoienv("WORKER_COUNT", minWorkers)
	return Config{
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		CatalogServiceURL: strings.TrimRight(getenv("CATALOG_SERVICE_URL", "http://localhost:8000"), "/"),
		OrderServiceURL:   strings.TrimRight(getenv("ORDER_SERVICE_URL", "http://localhost:8001"), "/"),
		ClientTimeout:     durenvms("HTTP_CLIENT_TIMEOUT_MS", 0),
		ShutdownTimeout:   durenvs("SHUTDOWN_TIMEOUT", 15),
		SessionIdle:       durenvs("SESSION_IDLE_TIMEOUT", 1800),
		SessionSweep:      durenvms("SESSION_SWEEP_INTERVAL_MS", 60000),
		LogLevel:          strings.ToLower(getenv("LOG_LEVEL", "info")),

		StubAddr:                getenv("STUB_ADDR", ":8000"),
		OrderCompletionDelay:    durenvms("ORDER_COMPLETION_DELAY_MS", 5000),
		InitialWorkerCount:      initialWorkers,
		WorkerMin:               minWorkers,
		WorkerMax:               maxWorkers,
		ScaleInterval:           durenvms("SCALE_INTERVAL_MS", 500),
		ScaleUpBacklogPerWorker: atoienv("SCALE_UP_BACKLOG_PER_WORKER", 100),
		ScaleDownIdleTicks:      atoienv("SCALE_DOWN_IDLE_TICKS", 6),
		QueueHighWatermark:      atoienv("QUEUE_HIGH_WATERMARK", 5000),
		RedisAddr:               getenv("REDIS_ADDR", ""),
		OrderCompletedStream:    getenv("ORDER_COMPLETED_STREAM", "order_completed"),
	}
}
