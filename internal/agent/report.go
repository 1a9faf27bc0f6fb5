package agent

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gamma-omg/market-indicators/internal/pipeline"
)

type JsonReportBuilder struct {
	log    *slog.Logger
	report JsonReport
	mu     sync.Mutex
}

type JsonReport struct {
	Succeeded int                `json:"succeeded,omitempty"`
	Failed    int                `json:"failed,omitempty"`
	Queries   map[string]JsonRun `json:"queries,omitempty"`
}

type JsonRun struct {
	RunID  string            `json:"run_id"`
	Result pipeline.Envelope `json:"result"`
}

func NewJsonReportBuilder(log *slog.Logger) *JsonReportBuilder {
	return &JsonReportBuilder{
		log: log,
		report: JsonReport{
			Queries: map[string]JsonRun{},
		},
	}
}

func (r *JsonReportBuilder) Submit(name, runID string, env pipeline.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if env.OK {
		r.report.Succeeded++
	} else {
		r.report.Failed++
	}
	r.report.Queries[name] = JsonRun{RunID: runID, Result: env}

	r.log.Debug("query reported",
		slog.String("query", name),
		slog.Bool("ok", env.OK),
		slog.Int("succeeded", r.report.Succeeded),
		slog.Int("failed", r.report.Failed))
}

func (r *JsonReportBuilder) Write(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	if err := e.Encode(r.report); err != nil {
		return fmt.Errorf("failed to write indicators report: %w", err)
	}

	return nil
}
