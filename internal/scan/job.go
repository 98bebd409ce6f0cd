package scan

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/scout/internal/model"
	"github.com/nexus-trading/scout/internal/moonshot"
	"github.com/nexus-trading/scout/internal/risk"
	"github.com/nexus-trading/scout/internal/snapshot"
)

// ---------------------------------------------------------------------------
// Scan Job — tokens x models on a bounded worker pool
// Each token is enriched once, then evaluated against every model.
// ---------------------------------------------------------------------------

// Config configures a scan job.
type Config struct {
	Workers       int     `yaml:"workers"`
	AlertMinScore float64 `yaml:"alert_min_score"` // passed verdicts below this raw score are not alerted

	// DedupeCapacity bounds the (token, model) pairs Watch remembers as
	// alerted; the oldest pair is forgotten first.
	DedupeCapacity int `yaml:"dedupe_capacity"`
}

// DefaultConfig returns the default job settings.
func DefaultConfig() Config {
	return Config{Workers: 4, DedupeCapacity: 10_000}
}

// Report summarises one run. Verdicts are ordered token-major, then by model.
type Report struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Tokens    int           `json:"tokens"`
	Skipped   int           `json:"skipped"` // tokens not evaluated due to cancellation
	Verdicts  []Verdict     `json:"verdicts"`
	Alerts    []Alert       `json:"alerts"`
}

// Job evaluates batches and feeds of snapshots.
type Job struct {
	config    Config
	enricher  *Enricher
	evaluator *model.Evaluator
	sink      AlertSink
	obs       Observer

	runs       atomic.Int64
	evaluated  atomic.Int64
	alerted    atomic.Int64
	sinkErrors atomic.Int64

	recorder VerdictRecorder
}

// VerdictRecorder persists verdicts for later analysis. Failures are logged
// and never affect alerting.
type VerdictRecorder interface {
	RecordVerdicts(ctx context.Context, verdicts []Verdict) error
}

// SetRecorder attaches a verdict recorder. Call before Run or Watch.
func (j *Job) SetRecorder(r VerdictRecorder) { j.recorder = r }

func (j *Job) record(ctx context.Context, verdicts []Verdict) {
	if j.recorder == nil || len(verdicts) == 0 {
		return
	}
	if err := j.recorder.RecordVerdicts(ctx, verdicts); err != nil {
		log.Warn().Err(err).Int("verdicts", len(verdicts)).Msg("scan: verdict recording failed")
	}
}

// NewJob wires a job. A nil enricher, evaluator or sink gets its default.
func NewJob(cfg Config, enricher *Enricher, evaluator *model.Evaluator, sink AlertSink, obs Observer) *Job {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.DedupeCapacity <= 0 {
		cfg.DedupeCapacity = DefaultConfig().DedupeCapacity
	}
	if enricher == nil {
		enricher = NewEnricher(nil, nil, nil, obs)
	}
	if evaluator == nil {
		evaluator = model.NewEvaluator(nil)
	}
	if sink == nil {
		sink = LogSink{}
	}
	return &Job{
		config:    cfg,
		enricher:  enricher,
		evaluator: evaluator,
		sink:      sink,
		obs:       observerOrNop(obs),
	}
}

type tokenResult struct {
	done     bool
	verdicts []Verdict
	risk     risk.Result
	moon     moonshot.Result
}

// Run evaluates every (snapshot, model) pair. Cancelling ctx stops new work;
// the partial report is returned together with ctx.Err().
func (j *Job) Run(ctx context.Context, snaps []snapshot.Snapshot, models []model.Model) (Report, error) {
	rep := Report{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Tokens:    len(snaps),
		Verdicts:  []Verdict{},
		Alerts:    []Alert{},
	}
	j.runs.Add(1)

	log.Info().
		Str("run_id", rep.RunID).
		Int("tokens", len(snaps)).
		Int("models", len(models)).
		Int("workers", j.config.Workers).
		Msg("scan: run started")

	results := make([]tokenResult, len(snaps))
	work := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < j.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				if ctx.Err() != nil {
					continue
				}
				results[i] = j.evaluateToken(ctx, rep.RunID, snaps[i], models)
			}
		}()
	}

dispatch:
	for i := range snaps {
		select {
		case <-ctx.Done():
			break dispatch
		case work <- i:
		}
	}
	close(work)
	wg.Wait()

	for _, r := range results {
		if !r.done {
			rep.Skipped++
			continue
		}
		rep.Verdicts = append(rep.Verdicts, r.verdicts...)
		if ctx.Err() != nil {
			continue
		}
		for _, v := range r.verdicts {
			if a, ok := j.alert(ctx, v, r.risk, r.moon); ok {
				rep.Alerts = append(rep.Alerts, a)
			}
		}
	}

	j.record(context.WithoutCancel(ctx), rep.Verdicts)

	rep.Duration = time.Since(rep.StartedAt)
	j.obs.ObserveScan(rep.Duration)

	log.Info().
		Str("run_id", rep.RunID).
		Int("verdicts", len(rep.Verdicts)).
		Int("alerts", len(rep.Alerts)).
		Int("skipped", rep.Skipped).
		Dur("duration", rep.Duration).
		Msg("scan: run complete")

	return rep, ctx.Err()
}

// Watch evaluates snapshots from in as they arrive until in is closed or ctx
// ends. Each (token, model) pair is alerted at most once while it remains
// among the last DedupeCapacity alerted pairs.
func (j *Job) Watch(ctx context.Context, in <-chan snapshot.Snapshot, models []model.Model) error {
	runID := uuid.New().String()
	alerted := newDedupe(j.config.DedupeCapacity)
	log.Info().Str("run_id", runID).Int("models", len(models)).Msg("scan: watch started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-in:
			if !ok {
				log.Info().Str("run_id", runID).Msg("scan: watch feed closed")
				return nil
			}
			r := j.evaluateToken(ctx, runID, s, models)
			j.record(ctx, r.verdicts)
			for _, v := range r.verdicts {
				key := v.Token + "|" + v.ModelID
				if alerted.Has(key) {
					continue
				}
				if _, ok := j.alert(ctx, v, r.risk, r.moon); ok {
					alerted.Add(key)
				}
			}
		}
	}
}

func (j *Job) evaluateToken(ctx context.Context, runID string, s snapshot.Snapshot, models []model.Model) tokenResult {
	enriched, rr, mr := j.enricher.Enrich(ctx, s)
	res := tokenResult{done: true, risk: rr, moon: mr, verdicts: make([]Verdict, 0, len(models))}

	token, symbol := tokenKey(enriched), enriched.String(snapshot.FieldSymbol, "")
	for i, r := range j.evaluator.EvaluateAll(enriched, models) {
		m := models[i]
		j.evaluated.Add(1)
		j.obs.ObserveEvaluation(m.ID, r.Passed, r.Invalidated)
		res.verdicts = append(res.verdicts, Verdict{
			RunID:       runID,
			Token:       token,
			Symbol:      symbol,
			ModelID:     m.ID,
			Result:      r,
			EvaluatedAt: time.Now().UTC(),
		})
	}
	return res
}

// alert emits an alert for a passed verdict at or above the alert floor.
func (j *Job) alert(ctx context.Context, v Verdict, rr risk.Result, mr moonshot.Result) (Alert, bool) {
	if !v.Result.Passed || v.Result.Score < j.config.AlertMinScore {
		return Alert{}, false
	}
	a := newAlert(v, rr, mr)
	if err := j.sink.Emit(ctx, a); err != nil {
		j.sinkErrors.Add(1)
		log.Warn().Err(err).Str("token", v.Token).Str("model", v.ModelID).Msg("scan: alert delivery failed")
		return Alert{}, false
	}
	j.alerted.Add(1)
	j.obs.AlertEmitted()
	return a, true
}

// Stats returns job counters.
func (j *Job) Stats() map[string]interface{} {
	return map[string]interface{}{
		"runs_total":        j.runs.Load(),
		"evaluations_total": j.evaluated.Load(),
		"alerts_total":      j.alerted.Load(),
		"sink_errors_total": j.sinkErrors.Load(),
	}
}
