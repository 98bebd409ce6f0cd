package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/scout/internal/model"
	"github.com/nexus-trading/scout/internal/snapshot"
	"github.com/nexus-trading/scout/internal/walletage"
)

const devWallet = "So11111111111111111111111111111111111111112"

type recordingSink struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
}

func (r *recordingSink) Emit(_ context.Context, a Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.alerts = append(r.alerts, a)
	return nil
}

func tokens(n int) []snapshot.Snapshot {
	out := make([]snapshot.Snapshot, n)
	for i := range out {
		out[i] = snapshot.Snapshot{
			"address":       fmt.Sprintf("token-%02d", i),
			"symbol":        fmt.Sprintf("T%d", i),
			"liquidity_usd": 20_000,
			"price_usd":     0.001,
		}
	}
	return out
}

// open passes any non-honeypot token; strict fails the bare test tokens on gates.
var (
	open = model.Model{
		ID:                 "open",
		MinTokenAgeMinutes: model.Float(0),
		MaxTokenAgeMinutes: model.Float(1e9),
		MinLiquidityUSD:    model.Float(0),
		MinScore:           model.Float(0),
		MaxRiskScore:       model.Float(100),
		MinMoonScore:       model.Float(0),
		BlockSerialRuggers: model.Bool(false),
	}
	strict = func() model.Model { m := model.DefaultModel(); m.ID = "strict"; return m }()
)

func TestEnricher_Enrich(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	ages := walletage.LookupFunc(func(_ context.Context, addr string) (time.Time, error) {
		assert.Equal(t, devWallet, addr)
		return now.AddDate(0, 0, -10), nil
	})
	e := NewEnricher(nil, nil, ages, nil)
	e.now = func() time.Time { return now }

	in := snapshot.Snapshot{"dev_wallet": devWallet}
	out, rr, mr := e.Enrich(context.Background(), in)

	assert.Equal(t, 10.0, out.Float(snapshot.FieldDevWalletAgeDays, 0))
	assert.Equal(t, float64(rr.Score), out.Float(snapshot.FieldRiskScore, 0))
	assert.Equal(t, string(rr.Level), out.String(snapshot.FieldRiskLevel, ""))
	assert.Equal(t, float64(mr.Score), out.Float(snapshot.FieldMoonScore, 0))
	assert.False(t, in.Has(snapshot.FieldRiskScore), "input must not be modified")
}

func TestEnricher_LookupFailureLeavesAgeAbsent(t *testing.T) {
	ages := walletage.LookupFunc(func(context.Context, string) (time.Time, error) {
		return time.Time{}, walletage.ErrNotFound
	})
	out, _, _ := NewEnricher(nil, nil, ages, nil).Enrich(context.Background(), snapshot.Snapshot{"dev_wallet": devWallet})
	assert.False(t, out.Has(snapshot.FieldDevWalletAgeDays))
	assert.True(t, out.Has(snapshot.FieldRiskScore))
}

func TestJob_Run(t *testing.T) {
	sink := &recordingSink{}
	job := NewJob(Config{Workers: 3}, nil, nil, sink, nil)

	rep, err := job.Run(context.Background(), tokens(7), []model.Model{open, strict})
	require.NoError(t, err)

	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, 7, rep.Tokens)
	assert.Zero(t, rep.Skipped)
	require.Len(t, rep.Verdicts, 14)
	for i, v := range rep.Verdicts {
		assert.Equal(t, fmt.Sprintf("token-%02d", i/2), v.Token, "token-major order")
		assert.Equal(t, []string{"open", "strict"}[i%2], v.ModelID)
		assert.Equal(t, rep.RunID, v.RunID)
	}

	require.Len(t, rep.Alerts, 7)
	for _, a := range rep.Alerts {
		assert.Equal(t, "open", a.ModelID)
		assert.NotEmpty(t, a.ID)
		assert.True(t, a.Exits.Valid)
	}
	assert.Len(t, sink.alerts, 7)
	assert.Equal(t, int64(14), job.Stats()["evaluations_total"])
}

func TestJob_AlertMinScore(t *testing.T) {
	sink := &recordingSink{}
	job := NewJob(Config{Workers: 1, AlertMinScore: 1}, nil, nil, sink, nil)

	rep, err := job.Run(context.Background(), tokens(2), []model.Model{open})
	require.NoError(t, err)
	assert.Len(t, rep.Verdicts, 2)
	assert.Empty(t, rep.Alerts)
}

func TestJob_SinkErrorsAbsorbed(t *testing.T) {
	sink := &recordingSink{err: errors.New("webhook down")}
	job := NewJob(Config{Workers: 2}, nil, nil, sink, nil)

	rep, err := job.Run(context.Background(), tokens(3), []model.Model{open})
	require.NoError(t, err)
	assert.Empty(t, rep.Alerts)
	assert.Equal(t, int64(3), job.Stats()["sink_errors_total"])
}

func TestJob_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &recordingSink{}
	rep, err := NewJob(Config{Workers: 2}, nil, nil, sink, nil).Run(ctx, tokens(5), []model.Model{open})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, rep.Skipped+len(rep.Verdicts))
	assert.Empty(t, rep.Alerts)
	assert.Empty(t, sink.alerts)
}

func TestJob_HoneypotNeverAlerts(t *testing.T) {
	snaps := tokens(1)
	snaps[0]["honeypot"] = true

	rep, err := NewJob(DefaultConfig(), nil, nil, &recordingSink{}, nil).Run(context.Background(), snaps, []model.Model{open})
	require.NoError(t, err)
	require.Len(t, rep.Verdicts, 1)
	assert.True(t, rep.Verdicts[0].Result.Invalidated)
	assert.Empty(t, rep.Alerts)
}

func TestJob_Watch(t *testing.T) {
	sink := &recordingSink{}
	job := NewJob(DefaultConfig(), nil, nil, sink, nil)

	in := make(chan snapshot.Snapshot, 3)
	snaps := tokens(2)
	in <- snaps[0]
	in <- snaps[0] // repeated update for the same token
	in <- snaps[1]
	close(in)

	require.NoError(t, job.Watch(context.Background(), in, []model.Model{open, strict}))
	require.Len(t, sink.alerts, 2)
	assert.Equal(t, "token-00", sink.alerts[0].Token)
	assert.Equal(t, "token-01", sink.alerts[1].Token)
}

func TestJob_WatchForgetsOldestAlert(t *testing.T) {
	sink := &recordingSink{}
	cfg := DefaultConfig()
	cfg.DedupeCapacity = 1
	job := NewJob(cfg, nil, nil, sink, nil)

	snaps := tokens(2)
	in := make(chan snapshot.Snapshot, 4)
	in <- snaps[0]
	in <- snaps[1] // evicts token-00
	in <- snaps[0]
	in <- snaps[0]
	close(in)

	require.NoError(t, job.Watch(context.Background(), in, []model.Model{open}))
	require.Len(t, sink.alerts, 3)
	assert.Equal(t, "token-00", sink.alerts[2].Token)
}

func TestDedupe(t *testing.T) {
	t.Run("evicts in insertion order", func(t *testing.T) {
		d := newDedupe(2)
		d.Add("a")
		d.Add("b")
		d.Add("a") // known key does not refresh
		d.Add("c")
		assert.False(t, d.Has("a"))
		assert.True(t, d.Has("b"))
		assert.True(t, d.Has("c"))
		assert.Equal(t, 2, d.Len())

		d.Add("e")
		assert.False(t, d.Has("b"))
		assert.Equal(t, 2, d.Len())
	})

	t.Run("non-positive capacity uses default", func(t *testing.T) {
		d := newDedupe(0)
		assert.Equal(t, DefaultConfig().DedupeCapacity, cap(d.order))
	})
}

func TestJob_WatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan snapshot.Snapshot)
	done := make(chan error, 1)
	go func() { done <- NewJob(DefaultConfig(), nil, nil, nil, nil).Watch(ctx, in, nil) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop on cancellation")
	}
}

type verdictLog struct {
	mu      sync.Mutex
	batches [][]Verdict
	err     error
}

func (l *verdictLog) RecordVerdicts(_ context.Context, vs []Verdict) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batches = append(l.batches, vs)
	return l.err
}

func TestJob_Recorder(t *testing.T) {
	t.Run("run records the whole report once", func(t *testing.T) {
		rec := &verdictLog{}
		job := NewJob(DefaultConfig(), nil, nil, &recordingSink{}, nil)
		job.SetRecorder(rec)

		rep, err := job.Run(context.Background(), tokens(3), []model.Model{open, strict})
		require.NoError(t, err)
		require.Len(t, rec.batches, 1)
		assert.Equal(t, rep.Verdicts, rec.batches[0])
	})

	t.Run("watch records per token", func(t *testing.T) {
		rec := &verdictLog{}
		job := NewJob(DefaultConfig(), nil, nil, &recordingSink{}, nil)
		job.SetRecorder(rec)

		in := make(chan snapshot.Snapshot, 2)
		for _, s := range tokens(2) {
			in <- s
		}
		close(in)
		require.NoError(t, job.Watch(context.Background(), in, []model.Model{open}))
		require.Len(t, rec.batches, 2)
		assert.Len(t, rec.batches[1], 1)
	})

	t.Run("recorder failure does not block alerts", func(t *testing.T) {
		sink := &recordingSink{}
		job := NewJob(DefaultConfig(), nil, nil, sink, nil)
		job.SetRecorder(&verdictLog{err: errors.New("clickhouse down")})

		rep, err := job.Run(context.Background(), tokens(2), []model.Model{open})
		require.NoError(t, err)
		assert.Len(t, rep.Alerts, 2)
		assert.Len(t, sink.alerts, 2)
	})
}

func TestMultiSink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{err: errors.New("webhook 500")}
	c := &recordingSink{}
	err := MultiSink{a, nil, b, c}.Emit(context.Background(), Alert{ID: "x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook 500")
	assert.Len(t, a.alerts, 1)
	assert.Len(t, c.alerts, 1)
}
