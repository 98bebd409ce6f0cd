package scan

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/scout/internal/exits"
	"github.com/nexus-trading/scout/internal/model"
	"github.com/nexus-trading/scout/internal/moonshot"
	"github.com/nexus-trading/scout/internal/risk"
	"github.com/nexus-trading/scout/internal/snapshot"
)

// Verdict is the evaluation of one (token, model) pair.
type Verdict struct {
	RunID       string       `json:"run_id"`
	Token       string       `json:"token"`
	Symbol      string       `json:"symbol,omitempty"`
	ModelID     string       `json:"model_id"`
	Result      model.Result `json:"result"`
	EvaluatedAt time.Time    `json:"evaluated_at"`
}

// Alert is emitted for a passed verdict.
type Alert struct {
	ID        string     `json:"id"`
	RunID     string     `json:"run_id"`
	Token     string     `json:"token"`
	Symbol    string     `json:"symbol,omitempty"`
	ModelID   string     `json:"model_id"`
	Score     float64    `json:"score"`
	ScorePct  float64    `json:"score_pct"`
	RiskScore int        `json:"risk_score"`
	RiskLevel risk.Level `json:"risk_level"`
	MoonScore int        `json:"moon_score"`
	MoonLabel string     `json:"moon_label"`
	Exits     exits.Plan `json:"smart_exits"`
	CreatedAt time.Time  `json:"created_at"`
}

// AlertSink delivers alerts (chat, webhook, queue).
type AlertSink interface {
	Emit(ctx context.Context, a Alert) error
}

// AlertSinkFunc adapts a function to AlertSink.
type AlertSinkFunc func(ctx context.Context, a Alert) error

func (f AlertSinkFunc) Emit(ctx context.Context, a Alert) error { return f(ctx, a) }

// MultiSink fans an alert out to every sink; all sinks are tried and their
// errors joined.
type MultiSink []AlertSink

func (m MultiSink) Emit(ctx context.Context, a Alert) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes alerts to the structured log.
type LogSink struct{}

func (LogSink) Emit(_ context.Context, a Alert) error {
	log.Info().
		Str("alert_id", a.ID).
		Str("token", a.Token).
		Str("symbol", a.Symbol).
		Str("model", a.ModelID).
		Float64("score_pct", a.ScorePct).
		Int("risk", a.RiskScore).
		Int("moon", a.MoonScore).
		Msg("scan: alert")
	return nil
}

// tokenKey identifies a snapshot by address, falling back to symbol.
func tokenKey(s snapshot.Snapshot) string {
	if addr := s.String(snapshot.FieldAddress, ""); addr != "" {
		return addr
	}
	return s.String(snapshot.FieldSymbol, "")
}

func newAlert(v Verdict, rr risk.Result, mr moonshot.Result) Alert {
	return Alert{
		ID:        uuid.New().String(),
		RunID:     v.RunID,
		Token:     v.Token,
		Symbol:    v.Symbol,
		ModelID:   v.ModelID,
		Score:     v.Result.Score,
		ScorePct:  v.Result.ScorePct(),
		RiskScore: rr.Score,
		RiskLevel: rr.Level,
		MoonScore: mr.Score,
		MoonLabel: string(mr.Label),
		Exits:     mr.Exits,
		CreatedAt: time.Now().UTC(),
	}
}
