package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gamma-omg/market-indicators/internal/indicator"
	"github.com/gamma-omg/market-indicators/internal/market"
	"github.com/gamma-omg/market-indicators/internal/metrics"
	"github.com/gamma-omg/market-indicators/internal/regime"
)

type Config struct {
	PriceDecimals  int32
	VolumeDecimals int32
	Metrics        *metrics.Metrics
	// Now defaults to time.Now.
	Now func() time.Time
}

// Pipeline turns a Request into indicator output. It holds no per-request
// state and is safe for concurrent use.
type Pipeline struct {
	log      *slog.Logger
	provider Provider
	cfg      Config
}

func New(log *slog.Logger, provider Provider, cfg Config) *Pipeline {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Pipeline{
		log:      log,
		provider: provider,
		cfg:      cfg,
	}
}

type requested struct {
	id   string
	spec indicator.Spec
}

// run holds what both output modes share.
type run struct {
	req        Request
	from       time.Time
	to         time.Time
	warnings   []Warning
	series     market.Series
	indicators []requested
	results    map[string]*indicator.Result
	aux        map[string]*indicator.Result
}

func (r *run) warn(code string, details map[string]any) {
	r.warnings = append(r.warnings, Warning{Code: code, Details: details})
}

func (p *Pipeline) prepare(ctx context.Context, req Request) (*run, error) {
	req = req.withDefaults()
	if err := req.validate(); err != nil {
		return nil, err
	}

	r := &run{
		req:      req,
		warnings: []Warning{},
		results:  make(map[string]*indicator.Result, len(req.Indicators)),
		aux:      map[string]*indicator.Result{},
	}

	seen := make(map[string]bool, len(req.Indicators))
	specs := make([]indicator.Spec, 0, len(req.Indicators))
	for _, id := range req.Indicators {
		if seen[id] {
			continue
		}
		seen[id] = true

		s := indicator.Resolve(id)
		r.indicators = append(r.indicators, requested{id: id, spec: s})
		specs = append(specs, s)
	}

	// Regime inputs widen the fetch but not the sufficiency threshold.
	maxLookback := indicator.MaxLookback(specs)
	fetchLookback := maxLookback

	var auxSpecs []indicator.Spec
	if req.MicroSummary && req.Mode == ModeSnapshot {
		for _, id := range regime.Indicators {
			auxSpecs = append(auxSpecs, indicator.Resolve(id))
		}
		fetchLookback = max(fetchLookback, indicator.MaxLookback(auxSpecs))
	}

	if err := p.resolveWindow(r); err != nil {
		return nil, err
	}

	if req.VWAPAnchor == AnchorSession && r.requests(indicator.FamilyVWAP) {
		r.warn(WarnVWAPSessionAnchor, map[string]any{"applied": string(AnchorWindow)})
	}

	countBack := fetchLookback + snapshotPadding
	if req.Mode == ModeWindow {
		countBack = fetchLookback + req.WindowSize
	}

	bars, err := p.fetch(ctx, BarsQuery{
		MarketID:   req.MarketID,
		Resolution: req.Resolution,
		CountBack:  countBack,
		From:       r.from,
		To:         r.to,
	})
	if err != nil {
		return nil, err
	}

	bars = p.trimIncomplete(r, bars)
	if len(bars) == 0 {
		return nil, &InsufficientDataError{Required: max(maxLookback, 1), Available: 0}
	}

	if len(bars) < maxLookback {
		if req.Strict {
			return nil, &InsufficientDataError{Required: maxLookback, Available: len(bars)}
		}
		r.warn(WarnInsufficientBars, map[string]any{"required": maxLookback, "available": len(bars)})
	}

	r.series, err = market.Decode(bars, p.cfg.PriceDecimals, p.cfg.VolumeDecimals)
	if err != nil {
		return nil, &ProviderError{MarketID: req.MarketID, Err: err}
	}

	in := indicator.NewInput(r.series, req.PriceSource)
	for _, ind := range r.indicators {
		res := indicator.Compute(ind.spec, in)
		if res == nil {
			res = unavailable(ind.spec, r.series.Len())
		}
		if res.Error != "" {
			p.cfg.Metrics.IndicatorFailed(ind.spec.Family.String())
			if req.Strict && res.NeedBars > 0 {
				return nil, &InsufficientDataError{Required: res.NeedBars, Available: r.series.Len()}
			}
			if req.Strict {
				return nil, &IndicatorError{ID: ind.id, Reason: res.Error}
			}
		}
		r.results[ind.id] = res
	}

	for _, s := range auxSpecs {
		if res := indicator.Compute(s, in); res != nil {
			r.aux[s.ID] = res
		}
	}

	for _, w := range r.warnings {
		p.cfg.Metrics.Warning(w.Code)
	}

	return r, nil
}

// resolveWindow picks the time range. Explicit bounds win over the period
// preset and AsOf wins over To.
func (p *Pipeline) resolveWindow(r *run) error {
	r.to = p.cfg.Now()
	if !r.req.To.IsZero() {
		r.to = r.req.To
	}
	if !r.req.AsOf.IsZero() {
		r.to = r.req.AsOf
		r.warn(WarnAsOf, map[string]any{"asOf": r.req.AsOf.UnixMilli()})
	}

	r.from = r.to.Add(-periods[r.req.Period])
	if !r.req.From.IsZero() {
		r.from = r.req.From
	}

	if !r.from.Before(r.to) {
		return &RequestError{Reason: fmt.Sprintf("empty time range: from %s is not before to %s", r.from.Format(time.RFC3339), r.to.Format(time.RFC3339))}
	}
	return nil
}

func (p *Pipeline) fetch(ctx context.Context, q BarsQuery) ([]market.RawBar, error) {
	bars, err := p.provider.GetBars(ctx, q)
	p.cfg.Metrics.ObserveFetch(len(bars), err)
	if err != nil {
		return nil, &ProviderError{MarketID: q.MarketID, Err: err}
	}
	if len(bars) == 0 {
		return nil, &ProviderError{MarketID: q.MarketID, Err: errors.New("no bars returned")}
	}

	p.log.Debug("fetched bars", "market", q.MarketID, "resolution", q.Resolution, "count_back", q.CountBack, "bars", len(bars))
	return bars, nil
}

// trimIncomplete drops the last bar while it is still forming.
func (p *Pipeline) trimIncomplete(r *run, bars []market.RawBar) []market.RawBar {
	if r.req.IncludeIncompleteLastBar {
		return bars
	}

	last := bars[len(bars)-1]
	age := p.cfg.Now().UnixMilli() - last.Timestamp
	if age >= r.req.Resolution.DurationMs() {
		return bars
	}

	r.warn(WarnIncompleteLastBar, map[string]any{"timestamp": last.Timestamp})
	return bars[:len(bars)-1]
}

func (r *run) requests(f indicator.Family) bool {
	for _, ind := range r.indicators {
		if ind.spec.Family == f {
			return true
		}
	}
	return false
}

func unavailable(s indicator.Spec, bars int) *indicator.Result {
	reason := fmt.Sprintf("insufficient data: %d bars required, %d available", s.RequiredBars, bars)
	if s.Family == indicator.FamilyUnknown {
		reason = "unknown indicator: " + s.ID
	}

	need := s.RequiredBars
	if s.Family == indicator.FamilyUnknown {
		need = 0
	}

	return &indicator.Result{
		NeedBars: need,
		Meta: indicator.Meta{
			RequiredBars: s.RequiredBars,
			ProvidedBars: bars,
			WarmupBars:   s.WarmupBars,
			Params:       map[string]any{},
		},
		Error: reason,
	}
}

func (p *Pipeline) Snapshot(ctx context.Context, req Request) (*SnapshotResponse, error) {
	req.Mode = ModeSnapshot
	r, err := p.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	n := r.series.Len()
	price := r.series.Close[n-1]

	byID := make(map[string]*indicator.Result, len(r.results))
	for _, ind := range r.indicators {
		byID[ind.spec.ID] = r.results[ind.id]
	}

	resp := &SnapshotResponse{
		MarketID:           r.req.MarketID,
		Resolution:         r.req.Resolution,
		From:               r.from.UnixMilli(),
		To:                 r.to.UnixMilli(),
		Bars:               n,
		CurrentPrice:       price,
		CurrentPriceSource: CurrentPriceLastClose,
		Warnings:           r.warnings,
		Indicators:         r.results,
		Derived:            indicator.Derive(price, byID),
	}

	if !r.req.AsOf.IsZero() {
		asOf := r.req.AsOf.UnixMilli()
		resp.AsOf = &asOf
	}

	if r.req.MicroSummary {
		for id, res := range r.aux {
			if _, ok := byID[id]; !ok {
				byID[id] = res
			}
		}
		s := regime.Classify(regime.InputsFromResults(price, byID))
		resp.MicroSummary = &s
	}

	return resp, nil
}

func (p *Pipeline) Window(ctx context.Context, req Request) (*WindowResponse, error) {
	req.Mode = ModeWindow
	r, err := p.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	n := r.series.Len()
	size := min(r.req.WindowSize, n)
	start := n - size

	resp := &WindowResponse{
		MarketID:   r.req.MarketID,
		Resolution: r.req.Resolution,
		From:       r.from.UnixMilli(),
		To:         r.to.UnixMilli(),
		Bars:       n,
		Warnings:   r.warnings,
		Timestamps: r.series.Timestamp[start:],
		Indicators: make(map[string][]indicator.Value, len(r.results)),
	}

	for id, res := range r.results {
		values := make([]indicator.Value, size)
		for j := range values {
			values[j] = res.At(start + j)
		}
		resp.Indicators[id] = values
	}

	return resp, nil
}

// Execute runs req and folds every failure, including panics, into the
// returned Envelope.
func (p *Pipeline) Execute(ctx context.Context, req Request) (env Envelope) {
	started := time.Now()
	mode := req.Mode
	if mode == "" {
		mode = ModeSnapshot
	}

	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error("pipeline panicked", "market", req.MarketID, "panic", rec)
			env = Envelope{Error: fmt.Sprintf("internal error: %v", rec)}
		}
		p.cfg.Metrics.ObserveRequest(string(mode), env.OK, time.Since(started))
	}()

	var err error
	switch mode {
	case ModeWindow:
		env.Window, err = p.Window(ctx, req)
	case ModeSnapshot:
		env.Snapshot, err = p.Snapshot(ctx, req)
	default:
		err = &RequestError{Reason: fmt.Sprintf("unknown mode: %s", mode)}
	}

	if err != nil {
		p.log.Warn("pipeline request failed", "market", req.MarketID, "mode", mode, "error", err)
		return Envelope{Error: err.Error()}
	}

	env.OK = true
	return env
}
