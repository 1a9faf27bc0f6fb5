package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gamma-omg/market-indicators/internal/agent"
	"github.com/gamma-omg/market-indicators/internal/config"
	"github.com/gamma-omg/market-indicators/internal/logger"
	"github.com/gamma-omg/market-indicators/internal/metrics"
	"github.com/gamma-omg/market-indicators/internal/pipeline"
	"github.com/gamma-omg/market-indicators/internal/platform"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatal(err)
	}

	cfg, err := config.ReadFromFile(os.Getenv("CONFIG"))
	if err != nil {
		log.Fatal(err)
	}

	lg, closer, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer closer.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(lg, cfg.MetricsAddr, reg)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				lg.Error("failed to stop metrics server", slog.Any("error", err))
			}
		}()
	}

	provider, err := platform.Create(lg, *cfg)
	if err != nil {
		lg.Error("failed to create market data provider", slog.Any("error", err))
		return
	}

	p := pipeline.New(lg, provider, pipeline.Config{
		PriceDecimals:  cfg.Decimals.Price,
		VolumeDecimals: cfg.Decimals.Volume,
		Metrics:        m,
	})

	r := agent.NewJsonReportBuilder(lg)
	a := agent.NewIndicatorsAgent(lg, *cfg, p, r)
	if err := a.Run(ctx); err != nil {
		lg.Error("indicator queries failed", slog.Any("error", err))
	}

	out := os.Stdout
	if cfg.Report != "" {
		f, err := os.Create(cfg.Report)
		if err != nil {
			lg.Error("failed to create report file", slog.Any("error", err))
			return
		}
		defer f.Close()
		out = f
	}

	if err := r.Write(out); err != nil {
		lg.Error("failed to write report", slog.Any("error", err))
	}
}
