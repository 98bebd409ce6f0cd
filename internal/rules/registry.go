package rules

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/scout/internal/snapshot"
)

// Registry is an immutable id → Rule lookup table.
type Registry struct {
	byID  map[string]Rule
	order []Rule
	byCat map[Category][]Rule
}

// NewRegistry builds a registry from declarations. The first declaration of
// an id wins; later duplicates are dropped with a warning.
func NewRegistry(rules ...Rule) *Registry {
	r := &Registry{
		byID:  make(map[string]Rule, len(rules)),
		order: make([]Rule, 0, len(rules)),
		byCat: make(map[Category][]Rule),
	}
	for _, rule := range rules {
		if rule == nil {
			continue
		}
		if _, dup := r.byID[rule.ID()]; dup {
			log.Warn().Str("rule", rule.ID()).Msg("rules: duplicate declaration ignored")
			continue
		}
		r.byID[rule.ID()] = rule
		r.order = append(r.order, rule)
		r.byCat[rule.Category()] = append(r.byCat[rule.Category()], rule)
	}
	return r
}

// Get returns the rule registered under id.
func (r *Registry) Get(id string) (Rule, bool) {
	rule, ok := r.byID[id]
	return rule, ok
}

// ByCategory returns the rules of a category in declaration order.
func (r *Registry) ByCategory(c Category) []Rule {
	src := r.byCat[c]
	out := make([]Rule, len(src))
	copy(out, src)
	return out
}

// All returns every rule in declaration order.
func (r *Registry) All() []Rule {
	out := make([]Rule, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	return len(r.order)
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry built from Builtin on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(Builtin()...)
	})
	return defaultRegistry
}

// Get looks id up in the default registry.
func Get(id string) (Rule, bool) {
	return Default().Get(id)
}

// ByCategory lists the default registry's rules of a category.
func ByCategory(c Category) []Rule {
	return Default().ByCategory(c)
}

// Safe runs fn and converts a panic into an error. It is the one place where
// predicate faults are absorbed: a faulting predicate reports passed=false.
func Safe(id string, fn func() (bool, error)) (passed bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			passed = false
			err = fmt.Errorf("predicate %s panicked: %v", id, rec)
			log.Warn().Str("predicate", id).Interface("panic", rec).Msg("rules: predicate fault absorbed")
		}
	}()
	passed, err = fn()
	if err != nil {
		log.Debug().Str("predicate", id).Err(err).Msg("rules: predicate error treated as failure")
		return false, err
	}
	return passed, nil
}

// TryEvaluate evaluates rule against s, treating any fault as a failed rule.
func TryEvaluate(rule Rule, s snapshot.Snapshot) bool {
	passed, _ := Safe(rule.ID(), func() (bool, error) {
		return rule.Evaluate(s)
	})
	return passed
}
