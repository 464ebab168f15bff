package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/evacsim/internal/analytics"
	"github.com/banshee-data/evacsim/internal/db"
	"github.com/banshee-data/evacsim/internal/floorplan"
	"github.com/banshee-data/evacsim/internal/httputil"
	"github.com/banshee-data/evacsim/internal/monitoring"
	"github.com/banshee-data/evacsim/internal/people"
	"github.com/banshee-data/evacsim/internal/sim"
	"github.com/banshee-data/evacsim/internal/version"
)

// ANSI escape codes for access log colouring
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// ResultStore is the run history the server persists to. *db.DB satisfies it.
type ResultStore interface {
	InsertResult(res *sim.Result, label string) error
	ListResults(limit int) ([]db.ResultSummary, error)
	GetResult(id uuid.UUID) (*db.ResultRecord, error)
	DeleteResult(id uuid.UUID) error
}

// DefaultMaxConcurrentRuns bounds the simulations executing at once.
const DefaultMaxConcurrentRuns = 4

// maxGeneratedPeople caps the random roster a request may ask for.
const maxGeneratedPeople = 5000

// Server exposes the simulator and its history over HTTP.
type Server struct {
	store ResultStore
	cfg   sim.Config
	sem   chan struct{}
}

// NewServer returns a server running simulations with cfg. store may be nil,
// in which case runs are not persisted and the history routes report 503.
func NewServer(store ResultStore, cfg sim.Config) *Server {
	return &Server{
		store: store,
		cfg:   cfg,
		sem:   make(chan struct{}, DefaultMaxConcurrentRuns),
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/version", s.showVersion)
	mux.HandleFunc("GET /api/templates", s.listTemplates)
	mux.HandleFunc("POST /api/simulations", s.runSimulation)
	mux.HandleFunc("GET /api/results", s.listResults)
	mux.HandleFunc("GET /api/results/{id}", s.getResult)
	mux.HandleFunc("DELETE /api/results/{id}", s.deleteResult)
	mux.HandleFunc("GET /api/results/{id}/summary", s.resultSummary)
	mux.HandleFunc("GET /api/history/summary", s.historySummary)
	mux.HandleFunc("GET /api/compare", s.compareResults)
	return mux
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, version.Current())
}

// TemplateInfo describes a built-in floor template.
type TemplateInfo struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Floors      int    `json:"floors"`
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	var out []TemplateInfo
	for _, t := range floorplan.Templates() {
		out = append(out, TemplateInfo{Name: t.Name, Title: t.Title, Description: t.Description, Floors: len(t.Floors)})
	}
	httputil.WriteJSONOK(w, out)
}

// SimulationRequest starts a headless run. Either Template or Floors must be
// given. When People is empty, GeneratePeople random people are placed.
type SimulationRequest struct {
	Template       string            `json:"template,omitempty"`
	Floors         []floorplan.Floor `json:"floors,omitempty"`
	People         []people.Person   `json:"people,omitempty"`
	GeneratePeople int               `json:"generatePeople,omitempty"`
	Speed          *float64          `json:"speed,omitempty"`
	Seed           *uint64           `json:"seed,omitempty"`
	Label          string            `json:"label,omitempty"`
}

// SimulationResponse is returned by POST /api/simulations.
type SimulationResponse struct {
	ID             uuid.UUID            `json:"id"`
	Label          string               `json:"label,omitempty"`
	Stored         bool                 `json:"stored"`
	EvacuationTime float64              `json:"evacuationTime"`
	TimedOut       bool                 `json:"timedOut"`
	Summary        analytics.Summary    `json:"summary"`
	Population     analytics.Population `json:"population"`
	Bottlenecks    []sim.Bottleneck     `json:"bottlenecks"`
	ExitStats      []sim.ExitStat       `json:"exitStats"`
}

// errBadInput marks request errors that map to 400.
var errBadInput = errors.New("bad input")

func (s *Server) buildRun(req *SimulationRequest) ([]floorplan.Floor, []people.Person, sim.Config, error) {
	cfg := s.cfg
	if req.Speed != nil {
		cfg.SimSpeed = *req.Speed
	}
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}

	floors := req.Floors
	switch {
	case req.Template != "" && len(floors) > 0:
		return nil, nil, cfg, fmt.Errorf("%w: give either template or floors, not both", errBadInput)
	case req.Template != "":
		t, err := floorplan.LoadTemplate(req.Template)
		if err != nil {
			return nil, nil, cfg, fmt.Errorf("%w: %v", errBadInput, err)
		}
		floors = t.Floors
	}

	ps := req.People
	if len(ps) == 0 && req.GeneratePeople > 0 {
		if req.GeneratePeople > maxGeneratedPeople {
			return nil, nil, cfg, fmt.Errorf("%w: generatePeople must be at most %d", errBadInput, maxGeneratedPeople)
		}
		ps = people.Generate(req.GeneratePeople, cfg.Seed)
	}
	if err := people.ValidateAll(ps); err != nil {
		return nil, nil, cfg, fmt.Errorf("%w: %v", errBadInput, err)
	}
	return floors, ps, cfg, nil
}

func (s *Server) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) release() { <-s.sem }

func (s *Server) runSimulation(w http.ResponseWriter, r *http.Request) {
	var req SimulationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	floors, ps, cfg, err := s.buildRun(&req)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	if err := s.acquire(r.Context()); err != nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "simulation slots busy")
		return
	}
	defer s.release()

	ctrl := sim.NewController(cfg, nil)
	if err := ctrl.Start(floors, ps); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	res, err := sim.RunToCompletion(r.Context(), ctrl, 0)
	if err != nil {
		monitoring.RunLogf(ctrl.RunID().String(), "run aborted: %v", err)
		httputil.InternalServerError(w, "simulation aborted")
		return
	}
	monitoring.RunLogf(ctrl.RunID().String(), "finished in %.1fs sim time, %d/%d evacuated",
		res.EvacuationTime, res.EvacuatedCount, res.PeopleCount)

	stored := false
	if s.store != nil {
		if err := s.store.InsertResult(res, req.Label); err != nil {
			monitoring.Logf("failed to store result %s: %v", res.ID, err)
			httputil.InternalServerError(w, "failed to store result")
			return
		}
		stored = true
	}

	httputil.WriteJSON(w, http.StatusCreated, SimulationResponse{
		ID:             res.ID,
		Label:          req.Label,
		Stored:         stored,
		EvacuationTime: res.EvacuationTime,
		TimedOut:       res.TimedOut,
		Summary:        analytics.Summarize(res),
		Population:     analytics.DescribePopulation(ps),
		Bottlenecks:    res.Bottlenecks,
		ExitStats:      res.ExitStats,
	})
}

// requireStore writes 503 and returns false when history is disabled.
func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "result history is disabled")
		return false
	}
	return true
}

func parseID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid result id %q", raw))
		return uuid.Nil, false
	}
	return id, true
}

// loadResult fetches a record, writing the error response itself on failure.
func (s *Server) loadResult(w http.ResponseWriter, raw string) (*db.ResultRecord, bool) {
	id, ok := parseID(w, raw)
	if !ok {
		return nil, false
	}
	rec, err := s.store.GetResult(id)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "result not found")
		return nil, false
	}
	if err != nil {
		monitoring.Logf("failed to load result %s: %v", id, err)
		httputil.InternalServerError(w, "failed to load result")
		return nil, false
	}
	return rec, true
}

func (s *Server) listResults(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	rows, err := s.store.ListResults(limit)
	if err != nil {
		monitoring.Logf("failed to list results: %v", err)
		httputil.InternalServerError(w, "failed to list results")
		return
	}
	httputil.WriteJSONOK(w, rows)
}

func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	if rec, ok := s.loadResult(w, r.PathValue("id")); ok {
		httputil.WriteJSONOK(w, rec)
	}
}

func (s *Server) deleteResult(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id, ok := parseID(w, r.PathValue("id"))
	if !ok {
		return
	}
	err := s.store.DeleteResult(id)
	switch {
	case errors.Is(err, db.ErrNotFound):
		httputil.NotFound(w, "result not found")
	case err != nil:
		monitoring.Logf("failed to delete result %s: %v", id, err)
		httputil.InternalServerError(w, "failed to delete result")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// ResultSummaryResponse pairs a stored run's label with its analytics.
type ResultSummaryResponse struct {
	ID      uuid.UUID         `json:"id"`
	Label   string            `json:"label"`
	Summary analytics.Summary `json:"summary"`
}

func (s *Server) resultSummary(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	rec, ok := s.loadResult(w, r.PathValue("id"))
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, ResultSummaryResponse{
		ID:      rec.ID,
		Label:   rec.Label,
		Summary: analytics.Summarize(&rec.Result),
	})
}

func (s *Server) historySummary(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	rows, err := s.store.ListResults(1000)
	if err != nil {
		monitoring.Logf("failed to list results: %v", err)
		httputil.InternalServerError(w, "failed to list results")
		return
	}
	runs := make([]analytics.Run, len(rows))
	for i, row := range rows {
		runs[i] = analytics.Run{EvacuationTime: row.EvacuationTime, PeopleCount: row.PeopleCount, TimedOut: row.TimedOut}
	}
	httputil.WriteJSONOK(w, analytics.SummarizeHistory(runs))
}

// CompareResponse is returned by GET /api/compare.
type CompareResponse struct {
	Baseline  ResultSummaryResponse `json:"baseline"`
	Candidate ResultSummaryResponse `json:"candidate"`
	Delta     analytics.Delta       `json:"delta"`
}

func (s *Server) compareResults(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	q := r.URL.Query()
	if q.Get("baseline") == "" || q.Get("candidate") == "" {
		httputil.BadRequest(w, "baseline and candidate ids are required")
		return
	}
	base, ok := s.loadResult(w, q.Get("baseline"))
	if !ok {
		return
	}
	cand, ok := s.loadResult(w, q.Get("candidate"))
	if !ok {
		return
	}
	bs, cs := analytics.Summarize(&base.Result), analytics.Summarize(&cand.Result)
	httputil.WriteJSONOK(w, CompareResponse{
		Baseline:  ResultSummaryResponse{ID: base.ID, Label: base.Label, Summary: bs},
		Candidate: ResultSummaryResponse{ID: cand.ID, Label: cand.Label, Summary: cs},
		Delta:     analytics.Compare(bs, cs),
	})
}
