package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/nexus-trading/scout/internal/checks"
	"github.com/nexus-trading/scout/internal/model"
	"github.com/nexus-trading/scout/internal/moonshot"
	"github.com/nexus-trading/scout/internal/observability"
	"github.com/nexus-trading/scout/internal/risk"
	"github.com/nexus-trading/scout/internal/rules"
	"github.com/nexus-trading/scout/internal/scan"
	"github.com/nexus-trading/scout/internal/snapshot"
	"github.com/nexus-trading/scout/internal/store"
)

type evaluateRequest struct {
	Snapshot snapshot.Snapshot `json:"snapshot"`
	ModelID  string            `json:"model_id"`
	Model    *model.Model      `json:"model"`
	Enrich   bool              `json:"enrich"`
}

type evaluateResponse struct {
	Result model.Result     `json:"result"`
	Risk   *risk.Result     `json:"risk,omitempty"`
	Moon   *moonshot.Result `json:"moonshot,omitempty"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
		return
	}

	m, ok := s.resolveModel(w, r, req.Model, req.ModelID)
	if !ok {
		return
	}

	snap := req.Snapshot
	if snap == nil {
		snap = snapshot.Snapshot{}
	}
	resp := evaluateResponse{}
	if req.Enrich {
		enriched, rr, mr := s.deps.Enricher.Enrich(r.Context(), snap)
		snap, resp.Risk, resp.Moon = enriched, &rr, &mr
	}

	resp.Result = s.deps.Evaluator.Evaluate(snap, m)
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveEvaluation(m.ID, resp.Result.Passed, resp.Result.Invalidated)
	}
	writeJSON(w, http.StatusOK, resp)
}

// resolveModel picks the inline model, else the stored model_id, else the default model.
func (s *Server) resolveModel(w http.ResponseWriter, r *http.Request, inline *model.Model, id string) (model.Model, bool) {
	if inline != nil {
		return *inline, true
	}
	if id == "" {
		id = s.deps.DefaultModelID
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidInput, "model or model_id is required")
		return model.Model{}, false
	}
	m, err := s.deps.Models.Get(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return model.Model{}, false
	}
	return m, true
}

type checkRequest struct {
	Snapshot snapshot.Snapshot `json:"snapshot"`
	ModelID  string            `json:"model_id"`
	Model    *checks.Model     `json:"model"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
		return
	}

	var m checks.Model
	switch {
	case req.Model != nil:
		m = *req.Model
	case req.ModelID != "" && s.deps.CheckModels != nil:
		var err error
		if m, err = s.deps.CheckModels.GetCheckModel(r.Context(), req.ModelID); err != nil {
			s.storeError(w, err)
			return
		}
	default:
		writeError(w, http.StatusBadRequest, ErrCodeInvalidInput, "model or a known model_id is required")
		return
	}

	res := s.deps.Checks.Evaluate(r.Context(), req.Snapshot, m)
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveCheck(m.ID, string(res.Grade))
	}
	writeJSON(w, http.StatusOK, res)
}

type snapshotRequest struct {
	Snapshot snapshot.Snapshot `json:"snapshot"`
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
		return
	}
	res := s.deps.Risk.Score(req.Snapshot)
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveRisk(res.Score, string(res.Level))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMoonshot(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
		return
	}
	res := s.deps.Moon.Score(req.Snapshot, r.URL.Query().Get("profile"))
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveMoon(res.Score, string(res.Label))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.deps.Models.List(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	m, err := s.deps.Models.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handlePutModel(w http.ResponseWriter, r *http.Request) {
	var m model.Model
	if err := decode(w, r, &m); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
		return
	}
	id := mux.Vars(r)["id"]
	if m.ID != "" && m.ID != id {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidInput, fmt.Sprintf("body id %q does not match path id %q", m.ID, id))
		return
	}
	m.ID = id
	for _, ref := range m.Rules {
		if _, ok := s.deps.Rules.Get(ref.ID); !ok {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidInput, "unknown rule "+ref.ID)
			return
		}
	}
	if err := s.deps.Models.Put(r.Context(), m); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleListCheckModels(w http.ResponseWriter, r *http.Request) {
	if s.deps.CheckModels == nil {
		writeJSON(w, http.StatusOK, map[string]any{"check_models": []checks.Model{}})
		return
	}
	models, err := s.deps.CheckModels.ListCheckModels(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"check_models": models})
}

type ruleView struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Category  rules.Category `json:"category"`
	Weight    float64        `json:"weight"`
	Mandatory bool           `json:"mandatory"`
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	list := s.deps.Rules.All()
	if q := r.URL.Query().Get("category"); q != "" {
		c := rules.Category(strings.ToUpper(strings.ReplaceAll(q, "_", " ")))
		if !c.Valid() {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidInput, "unknown category "+q)
			return
		}
		list = s.deps.Rules.ByCategory(c)
	}

	out := make([]ruleView, 0, len(list))
	for _, rule := range list {
		out = append(out, ruleView{
			ID:        rule.ID(),
			Name:      rule.Name(),
			Category:  rule.Category(),
			Weight:    rule.Weight(),
			Mandatory: rule.Mandatory(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": out})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if s.deps.Alerts == nil {
		writeJSON(w, http.StatusOK, map[string]any{"alerts": []scan.Alert{}})
		return
	}
	q := r.URL.Query()
	if token := q.Get("token"); token != "" {
		writeJSON(w, http.StatusOK, map[string]any{"alerts": s.deps.Alerts.Query(token)})
		return
	}

	limit := 50
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidInput, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": s.deps.Alerts.Recent(limit)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		return
	}
	h := s.deps.Health.Check(r.Context())
	status := http.StatusOK
	if h.Status == observability.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "store unavailable")
	}
}
