package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gamma-omg/market-indicators/internal/chart"
	"github.com/gamma-omg/market-indicators/internal/config"
	"github.com/gamma-omg/market-indicators/internal/market"
	"github.com/gamma-omg/market-indicators/internal/pipeline"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	chartWidth       = 1200
	chartPanelHeight = 240
)

type queryRunner interface {
	Execute(ctx context.Context, req pipeline.Request) pipeline.Envelope
}

// IndicatorsAgent runs the configured queries against the pipeline and
// collects their results.
type IndicatorsAgent struct {
	log    *slog.Logger
	cfg    config.Config
	runner queryRunner
	report *JsonReportBuilder
}

func NewIndicatorsAgent(log *slog.Logger, cfg config.Config, runner queryRunner, report *JsonReportBuilder) *IndicatorsAgent {
	return &IndicatorsAgent{
		log:    log,
		cfg:    cfg,
		runner: runner,
		report: report,
	}
}

func newRequest(q config.Query) pipeline.Request {
	return pipeline.Request{
		MarketID:                 q.Market,
		Indicators:               q.Indicators,
		Resolution:               market.Resolution(q.Resolution),
		Mode:                     pipeline.Mode(q.Mode),
		Period:                   pipeline.Period(q.Period),
		From:                     q.From,
		To:                       q.To,
		AsOf:                     q.AsOf,
		WindowSize:               q.WindowSize,
		PriceSource:              market.PriceSource(q.PriceSource),
		VWAPAnchor:               pipeline.VWAPAnchor(q.VWAPAnchor),
		Strict:                   q.Strict,
		MicroSummary:             q.MicroSummary,
		IncludeIncompleteLastBar: q.IncludeIncompleteLastBar,
	}
}

// Run executes every query, at most cfg.Concurrency at a time. Failed
// queries end up in the report; only output errors are returned.
func (a *IndicatorsAgent) Run(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)

	for _, q := range a.cfg.Queries {
		g.Go(func() error {
			return a.runQuery(ctx, q)
		})
	}

	return g.Wait()
}

func (a *IndicatorsAgent) runQuery(ctx context.Context, q config.Query) error {
	runID := uuid.NewString()
	log := a.log.With(slog.String("query", q.Name), slog.String("run_id", runID))

	started := time.Now()
	env := a.runner.Execute(ctx, newRequest(q))
	a.report.Submit(q.Name, runID, env)

	if !env.OK {
		log.Warn("query failed", slog.String("error", env.Error))
		return nil
	}

	log.Info("query completed", slog.Duration("took", time.Since(started)))

	if env.Window == nil {
		if q.Dump != "" || q.Chart != "" {
			log.Warn("dump and chart are only produced in window mode")
		}
		return nil
	}

	if q.Dump != "" {
		if err := dumpWindow(q.Dump, env.Window); err != nil {
			return fmt.Errorf("query %s: %w", q.Name, err)
		}
	}

	if q.Chart != "" {
		c := chart.New(chartWidth, chartPanelHeight)
		if err := c.Window(env.Window); err != nil {
			return fmt.Errorf("query %s: %w", q.Name, err)
		}
		if c.Len() == 0 {
			log.Warn("nothing to chart")
			return nil
		}
		if err := c.Save(q.Chart); err != nil {
			return fmt.Errorf("query %s: %w", q.Name, err)
		}
	}

	return nil
}
