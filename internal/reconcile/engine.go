package reconcile

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ledgerline/costsync/internal/artifact"
	"github.com/ledgerline/costsync/internal/placeholder"
	"github.com/ledgerline/costsync/pkg/oracle"
)

// Engine drives the analysis phase: read each artifact, extract payload and
// declared cost, normalize placeholders, ask the oracle, classify. Every
// per-artifact failure becomes a record; nothing aborts the batch.
type Engine struct {
	oracle      oracle.Client
	table       placeholder.Table
	limiter     *rate.Limiter
	concurrency int
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithRate sets the sustained oracle request rate in requests per second.
// This is the fixed inter-call delay that keeps the remote service's rate
// limits happy.
func WithRate(perSec float64) EngineOption {
	return func(e *Engine) {
		e.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
	}
}

// WithConcurrency bounds how many oracle calls may be in flight at once.
// Oracle reads are independent and stateless, so running them concurrently
// is safe; report order stays scan order either way.
func WithConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// NewEngine creates an engine using the given oracle client and placeholder
// table. Defaults: 2 req/s, sequential processing.
func NewEngine(client oracle.Client, table placeholder.Table, opts ...EngineOption) *Engine {
	e := &Engine{
		oracle:      client,
		table:       table,
		limiter:     rate.NewLimiter(2, 1),
		concurrency: 1,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run reconciles every path and returns one record per path, in the order
// the paths were given. The only error returned is context cancellation.
func (e *Engine) Run(ctx context.Context, paths []string) ([]Record, error) {
	records := make([]Record, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records[i] = e.processOne(gctx, path)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

func (e *Engine) processOne(ctx context.Context, path string) Record {
	text, err := artifact.ReadFile(path)
	if err != nil {
		zap.L().Warn("artifact unreadable", zap.String("file", path), zap.Error(err))
		return ProcessingErrorRecord(path, Cost{})
	}

	parsed := artifact.Parse(text)
	declared := Cost{Value: parsed.DeclaredCost, Known: parsed.CostFound}

	// Either matcher failing means there is nothing to reconcile; the oracle
	// is not consulted for half-extracted artifacts.
	if !parsed.PayloadFound {
		zap.L().Warn("payload literal not found", zap.String("file", path))
		return ExtractionFailedRecord(path, declared)
	}
	if !parsed.CostFound {
		zap.L().Warn("declared-cost literal not found", zap.String("file", path))
		return NewRecord(path, Cost{}, Cost{})
	}

	normalized := placeholder.Normalize(parsed.Payload, e.table)
	if !normalized.Resolved() {
		zap.L().Warn("unresolved placeholder tokens",
			zap.String("file", path),
			zap.Strings("tokens", normalized.Unresolved),
		)
		return ProcessingErrorRecord(path, declared)
	}

	var req oracle.CostRequest
	if err := json.Unmarshal([]byte(normalized.Query), &req); err != nil {
		zap.L().Warn("payload is not a valid request body", zap.String("file", path), zap.Error(err))
		return ProcessingErrorRecord(path, declared)
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return ProcessingErrorRecord(path, declared)
	}

	observedValue, err := e.oracle.QueryCost(ctx, req)
	if err != nil {
		zap.L().Warn("oracle call failed", zap.String("file", path), zap.Error(err))
		return NewRecord(path, declared, Cost{})
	}

	rec := NewRecord(path, declared, KnownCost(observedValue))
	zap.L().Debug("artifact reconciled",
		zap.String("file", path),
		zap.Int("declared", rec.Declared.Value),
		zap.Int("observed", rec.Observed.Value),
		zap.String("status", string(rec.Status)),
	)
	return rec
}
