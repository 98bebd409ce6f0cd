package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/nexus-trading/scout/internal/checks"
	"github.com/nexus-trading/scout/internal/model"
)

var (
	ErrNotFound     = errors.New("store: not found")
	ErrInvalidInput = errors.New("store: invalid input")
)

// ModelStore persists scoring models keyed by id.
type ModelStore interface {
	Get(ctx context.Context, id string) (model.Model, error)
	List(ctx context.Context) ([]model.Model, error)
	Put(ctx context.Context, m model.Model) error
}

// CheckModelStore serves check-style models.
type CheckModelStore interface {
	GetCheckModel(ctx context.Context, id string) (checks.Model, error)
	ListCheckModels(ctx context.Context) ([]checks.Model, error)
}

// Compile-time interface checks.
var (
	_ ModelStore      = (*MemoryStore)(nil)
	_ CheckModelStore = (*MemoryStore)(nil)
)

// MemoryStore is an in-process store. Safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	models      map[string]model.Model
	checkModels map[string]checks.Model
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		models:      make(map[string]model.Model),
		checkModels: make(map[string]checks.Model),
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[id]
	if !ok {
		return model.Model{}, fmt.Errorf("get model %s: %w", id, ErrNotFound)
	}
	return m.WithDefaults(), nil
}

// List returns every model ordered by id.
func (s *MemoryStore) List(_ context.Context) ([]model.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Model, 0, len(s.models))
	for _, m := range s.models {
		out = append(out, m.WithDefaults())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Put inserts or replaces m. Unset thresholds are stored as their defaults.
func (s *MemoryStore) Put(_ context.Context, m model.Model) error {
	if m.ID == "" {
		return fmt.Errorf("put model: empty id: %w", ErrInvalidInput)
	}
	s.mu.Lock()
	s.models[m.ID] = m.WithDefaults()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetCheckModel(_ context.Context, id string) (checks.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.checkModels[id]
	if !ok {
		return checks.Model{}, fmt.Errorf("get check model %s: %w", id, ErrNotFound)
	}
	return m.WithDefaults(), nil
}

func (s *MemoryStore) ListCheckModels(_ context.Context) ([]checks.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]checks.Model, 0, len(s.checkModels))
	for _, m := range s.checkModels {
		out = append(out, m.WithDefaults())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PutCheckModel inserts or replaces a check model.
func (s *MemoryStore) PutCheckModel(m checks.Model) error {
	if m.ID == "" {
		return fmt.Errorf("put check model: empty id: %w", ErrInvalidInput)
	}
	s.mu.Lock()
	s.checkModels[m.ID] = m.WithDefaults()
	s.mu.Unlock()
	return nil
}

// Catalog is the on-disk YAML model catalog.
type Catalog struct {
	Models      []model.Model  `yaml:"models"`
	CheckModels []checks.Model `yaml:"check_models"`
}

// LoadCatalog reads a YAML catalog into a new MemoryStore.
func LoadCatalog(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog. Models decode onto their defaults;
// ids must be present and unique per kind.
func ParseCatalog(data []byte) (*MemoryStore, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	s := NewMemoryStore()
	for i, m := range cat.Models {
		if m.ID == "" {
			return nil, fmt.Errorf("catalog model #%d: missing id: %w", i, ErrInvalidInput)
		}
		if _, dup := s.models[m.ID]; dup {
			return nil, fmt.Errorf("catalog model %s: duplicate id: %w", m.ID, ErrInvalidInput)
		}
		s.models[m.ID] = m
	}
	for i, m := range cat.CheckModels {
		if m.ID == "" {
			return nil, fmt.Errorf("catalog check model #%d: missing id: %w", i, ErrInvalidInput)
		}
		if _, dup := s.checkModels[m.ID]; dup {
			return nil, fmt.Errorf("catalog check model %s: duplicate id: %w", m.ID, ErrInvalidInput)
		}
		s.checkModels[m.ID] = m
	}
	return s, nil
}
