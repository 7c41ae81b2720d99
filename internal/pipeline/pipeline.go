package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/google/uuid"

	"github.com/couchcryptid/alarm-display/internal/domain"
	"github.com/couchcryptid/alarm-display/internal/observability"
)

// Extractor yields the next raw payload, blocking until one arrives.
type Extractor interface {
	Extract(ctx context.Context) (domain.RawPayload, error)
}

// Transformer converts a raw payload into an alarm record.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawPayload) (domain.Alarm, error)
}

// Loader receives every incident update.
type Loader interface {
	Load(ctx context.Context, update domain.Update) error
}

// Sink is a named Loader. The name labels errors in logs and metrics.
type Sink struct {
	Name   string
	Loader Loader
}

// Pipeline receives payloads, folds them into the active incident and fans
// the resulting updates out to the sinks. Run owns the active incident;
// Current may be called from any goroutine.
type Pipeline struct {
	extractor   Extractor
	transformer Transformer
	sinks       []Sink
	opts        domain.Options
	units       domain.UnitTable
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool

	active *domain.Incident

	mu      sync.RWMutex
	current *domain.View
}

// New creates a Pipeline with the given stages and observability.
func New(e Extractor, t Transformer, sinks []Sink, opts domain.Options, units domain.UnitTable,
	logger *slog.Logger, metrics *observability.Metrics,
) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		sinks:       sinks,
		opts:        opts,
		units:       units,
		logger:      logger,
		metrics:     metrics,
	}
}

// CheckReadiness returns nil if the pipeline has processed at least one payload,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any payloads yet")
	}
	return nil
}

// Current returns the rendered active incident, or false while idle.
func (p *Pipeline) Current() (domain.View, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return domain.View{}, false
	}
	return *p.current, true
}

// Run processes payloads until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "sinks", len(p.sinks))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		raw, err := p.extractor.Extract(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error("extract failed", "error", err)
			if !retry.SleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = retry.NextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = 200 * time.Millisecond

		p.process(ctx, raw)
	}
}

// process handles one payload: parse, fold into the active incident, notify sinks.
func (p *Pipeline) process(ctx context.Context, raw domain.RawPayload) {
	start := time.Now()
	p.metrics.PayloadsReceived.WithLabelValues(string(raw.Kind)).Inc()

	alarm, err := p.transformer.Transform(ctx, raw)
	if err != nil {
		p.logger.Warn("transform failed, discarding payload",
			"error", err,
			"source", raw.Kind,
			"origin", raw.Origin,
		)
		p.metrics.ParseErrors.WithLabelValues(string(raw.Kind)).Inc()
		return
	}

	update := p.apply(alarm, raw)
	for _, s := range p.sinks {
		if err := s.Loader.Load(ctx, update); err != nil {
			p.logger.Error("sink failed", "sink", s.Name, "error", err, "incident", update.Incident.ID)
			p.metrics.SinkErrors.WithLabelValues(s.Name).Inc()
		}
	}

	p.metrics.ProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
}

// apply merges alarm into the active incident when it matches, or starts a
// new incident timeline otherwise.
func (p *Pipeline) apply(alarm domain.Alarm, raw domain.RawPayload) domain.Update {
	now := domain.Now()
	update := domain.Update{Alarm: alarm.Clone(), Payload: raw}

	if p.active != nil && p.active.Alarm.Matches(&alarm) {
		conflicts := p.active.Alarm.Merge(&alarm, p.logger)
		for _, c := range conflicts {
			p.metrics.MergeConflicts.WithLabelValues(c.Field).Inc()
		}
		p.active.Conflicts = append(p.active.Conflicts, conflicts...)
		p.active.Updated = now
		p.metrics.IncidentsMerged.Inc()
		p.logger.Info("payload merged into active incident",
			"incident", p.active.ID,
			"number", p.active.Alarm.Number,
			"source", raw.Kind,
			"conflicts", len(conflicts),
		)
	} else {
		p.active = &domain.Incident{
			ID:      uuid.NewString(),
			Started: now,
			Updated: now,
			Alarm:   alarm,
		}
		update.New = true
		p.metrics.IncidentsStarted.Inc()
		p.logger.Info("new incident",
			"incident", p.active.ID,
			"number", alarm.Number,
			"source", raw.Kind,
			"title", alarm.Title(),
			"test", alarm.IsTest(),
		)
	}

	update.Incident = p.active.Clone()
	update.View = domain.NewView(update.Incident, p.opts, p.units, p.logger)

	p.mu.Lock()
	view := update.View
	p.current = &view
	p.mu.Unlock()

	return update
}
