package checks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/scout/internal/snapshot"
)

// Check is a named predicate over a snapshot and the model being evaluated.
// Checks may block (e.g. on an enrichment lookup) and must honour ctx.
type Check interface {
	ID() string
	Name() string
	Run(ctx context.Context, s snapshot.Snapshot, m Model) (bool, error)
}

// CheckFunc adapts a function to the Check interface.
type CheckFunc struct {
	CheckID   string
	CheckName string
	Fn        func(ctx context.Context, s snapshot.Snapshot, m Model) (bool, error)
}

func (c CheckFunc) ID() string   { return c.CheckID }
func (c CheckFunc) Name() string { return c.CheckName }

func (c CheckFunc) Run(ctx context.Context, s snapshot.Snapshot, m Model) (bool, error) {
	if c.Fn == nil {
		return false, fmt.Errorf("check %s: no predicate", c.CheckID)
	}
	return c.Fn(ctx, s, m)
}

// Registry is an immutable id → Check table.
type Registry struct {
	byID  map[string]Check
	order []Check
}

// NewRegistry builds a registry; the first check declared under an id wins.
func NewRegistry(checks ...Check) *Registry {
	r := &Registry{byID: make(map[string]Check, len(checks))}
	for _, c := range checks {
		if c == nil {
			continue
		}
		if _, dup := r.byID[c.ID()]; dup {
			log.Warn().Str("check", c.ID()).Msg("checks: duplicate check id ignored")
			continue
		}
		r.byID[c.ID()] = c
		r.order = append(r.order, c)
	}
	return r
}

// Get returns the check registered under id.
func (r *Registry) Get(id string) (Check, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// All returns every check in declaration order.
func (r *Registry) All() []Check {
	out := make([]Check, len(r.order))
	copy(out, r.order)
	return out
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry of built-in checks.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = NewRegistry(Builtin()...)
	})
	return defaultReg
}

// errCancelled marks checks skipped because the context ended.
var errCancelled = errors.New("checks: evaluation cancelled")

// run executes c, converting panics and errors into a failed check.
func run(ctx context.Context, c Check, s snapshot.Snapshot, m Model) (passed bool, err error) {
	if ctx.Err() != nil {
		return false, errCancelled
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("check", c.ID()).Interface("panic", r).Msg("checks: predicate panicked")
			passed, err = false, fmt.Errorf("check %s panicked: %v", c.ID(), r)
		}
	}()

	ok, err := c.Run(ctx, s, m)
	if err != nil {
		log.Debug().Err(err).Str("check", c.ID()).Msg("checks: predicate fault")
		return false, err
	}
	return ok, nil
}
