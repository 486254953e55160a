package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ggoodman/mcp-http-go/examples/echo"
	"github.com/ggoodman/mcp-http-go/httphost"
	"github.com/ggoodman/mcp-http-go/internal/metrics"
	"github.com/ggoodman/mcp-http-go/sessions/redisrelay"
	"github.com/ggoodman/mcp-http-go/transport"
)

func newServeCommand(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the single-request and streaming HTTP transports",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), *cfg, newLogger(os.Stderr, *cfg))
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&cfg.Port, "port", cfg.Port, "listen port; env PORT")
	flags.StringVar(&cfg.Host, "host", cfg.Host, "listen host, empty for all interfaces; env MCP_HOST")
	flags.DurationVar(&cfg.KeepAlive, "keepalive", cfg.KeepAlive, "stream keep-alive interval, 0 disables; env MCP_SSE_KEEPALIVE")
	flags.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "grace period for open connections; env MCP_SHUTDOWN_TIMEOUT")
	flags.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for cross-replica delivery, empty disables; env REDIS_ADDR")
	flags.StringVar(&cfg.RedisPrefix, "redis-prefix", cfg.RedisPrefix, "Redis key and channel prefix; env MCP_REDIS_PREFIX")
	flags.BoolVar(&cfg.Metrics, "metrics", cfg.Metrics, "expose Prometheus metrics at /metrics; env MCP_METRICS")
	return cmd
}

func runServe(ctx context.Context, cfg Config, log *slog.Logger) error {
	maxBody, err := cfg.MaxBodyBytes()
	if err != nil {
		return err
	}

	opts := []httphost.Option{
		httphost.WithLogger(log),
		httphost.WithMaxBodyBytes(maxBody),
		httphost.WithKeepAlive(cfg.KeepAlive),
	}
	mux := http.NewServeMux()

	if cfg.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m := metrics.New()
		if err := m.Register(reg); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		opts = append(opts, httphost.WithMetrics(m))
		mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	if cfg.RedisAddr != "" {
		relay, err := redisrelay.New(ctx, redisrelay.Config{
			RedisAddr: cfg.RedisAddr,
			KeyPrefix: cfg.RedisPrefix,
			ClaimTTL:  cfg.RedisClaimTTL,
		})
		if err != nil {
			return fmt.Errorf("connect relay: %w", err)
		}
		defer relay.Close()
		opts = append(opts, httphost.WithRelay(relay))
		log.InfoContext(ctx, "relay.redis.ok", slog.String("addr", cfg.RedisAddr), slog.String("node", relay.NodeID()))
	}

	// The relay listener outlives the signal so in-flight sessions keep
	// receiving forwarded deliveries while the server drains.
	hostCtx, cancelHost := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelHost()
	host := httphost.New(hostCtx, func() transport.Consumer {
		return echo.New(echo.WithLogger(log))
	}, opts...)
	mux.Handle("/", host)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = host.Shutdown(sctx)
	})

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	log.InfoContext(ctx, "http.listen",
		slog.String("addr", ln.Addr().String()),
		slog.String("max_body", humanize.IBytes(uint64(maxBody))),
		slog.Duration("keepalive", cfg.KeepAlive),
		slog.Bool("metrics", cfg.Metrics),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("http.shutdown.start", slog.Duration("timeout", cfg.ShutdownTimeout))
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	err = srv.Shutdown(sctx)
	if herr := host.Shutdown(sctx); herr != nil && err == nil {
		err = herr
	}
	if err != nil {
		log.Warn("http.shutdown.fail", slog.String("err", err.Error()))
		return err
	}
	log.Info("http.shutdown.ok")
	return nil
}
