package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/evacsim/internal/analytics"
	"github.com/banshee-data/evacsim/internal/db"
	"github.com/banshee-data/evacsim/internal/floorplan"
	"github.com/banshee-data/evacsim/internal/people"
	"github.com/banshee-data/evacsim/internal/sim"
	"github.com/banshee-data/evacsim/internal/version"
)

func openFloor() []floorplan.Floor {
	return []floorplan.Floor{{
		ID:    1,
		Exits: []floorplan.Exit{{X: 500, Y: 50, Floor: 1, Type: floorplan.MarkerExit}},
	}}
}

func setupTestServer(t *testing.T) (*Server, *db.DB) {
	t.Helper()
	store := cloneAPITestDB(t)
	return NewServer(store, sim.DefaultConfig()), store
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func postRun(t *testing.T, h http.Handler, req SimulationRequest) SimulationResponse {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/simulations", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[SimulationResponse](t, w)
}

func TestListTemplates(t *testing.T) {
	server, _ := setupTestServer(t)
	w := do(t, server.ServeMux(), http.MethodGet, "/api/templates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	got := decode[[]TemplateInfo](t, w)
	require.Len(t, got, len(floorplan.TemplateNames()))
	byName := map[string]TemplateInfo{}
	for _, ti := range got {
		byName[ti.Name] = ti
	}
	assert.Equal(t, 2, byName["office"].Floors)
	assert.NotEmpty(t, byName["mall"].Title)
}

func TestVersion(t *testing.T) {
	server, _ := setupTestServer(t)
	w := do(t, server.ServeMux(), http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, version.Current(), decode[version.Info](t, w))
}

func TestRunSimulation_Persists(t *testing.T) {
	server, store := setupTestServer(t)
	mux := server.ServeMux()

	resp := postRun(t, mux, SimulationRequest{
		Floors: openFloor(),
		People: []people.Person{
			{ID: "a", Mobility: 100, Age: 30, Position: &people.Position{X: 500, Y: 150, Floor: 1}},
			{ID: "b", Mobility: 50, Age: 50, Position: &people.Position{X: 300, Y: 200, Floor: 1}},
		},
		Label: "two walkers",
	})
	assert.True(t, resp.Stored)
	assert.False(t, resp.TimedOut)
	assert.Equal(t, 2, resp.Summary.EvacuatedCount)
	assert.Equal(t, 2, resp.Population.Count)
	assert.Equal(t, 40.0, resp.Population.MeanAge)
	require.Len(t, resp.ExitStats, 1)
	assert.Equal(t, 2, resp.ExitStats[0].Count)

	rec, err := store.GetResult(resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "two walkers", rec.Label)
	assert.Equal(t, resp.EvacuationTime, rec.EvacuationTime)
}

func TestRunSimulation_TemplateAndGeneratedPeople(t *testing.T) {
	server, _ := setupTestServer(t)
	seed := uint64(5)
	speed := 5.0
	resp := postRun(t, server.ServeMux(), SimulationRequest{
		Template:       "shop",
		GeneratePeople: 10,
		Seed:           &seed,
		Speed:          &speed,
	})
	assert.Equal(t, 10, resp.Summary.PeopleCount)
	assert.Equal(t, 10, resp.Population.Count)
	assert.Zero(t, resp.Population.Placed)
}

func TestRunSimulation_BadRequests(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()

	tests := []struct {
		name    string
		body    interface{}
		wantErr string
	}{
		{"malformed", `{"template":`, "invalid JSON body"},
		{"unknown field", `{"tempalte":"office"}`, "unknown field"},
		{"unknown template", SimulationRequest{Template: "castle", GeneratePeople: 1}, "castle"},
		{"template and floors", SimulationRequest{Template: "office", Floors: openFloor(), GeneratePeople: 1}, "not both"},
		{"no people", SimulationRequest{Floors: openFloor()}, "no people"},
		{"no floors", SimulationRequest{GeneratePeople: 3}, "no floors"},
		{"too many people", SimulationRequest{Template: "office", GeneratePeople: maxGeneratedPeople + 1}, "at most"},
		{"bad person", SimulationRequest{Floors: openFloor(), People: []people.Person{{ID: "x", Mobility: 140}}}, "mobility"},
		{"duplicate floors", SimulationRequest{Floors: append(openFloor(), openFloor()...), GeneratePeople: 1}, "duplicate floor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, mux, http.MethodPost, "/api/simulations", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			got := decode[map[string]string](t, w)
			assert.Contains(t, got["error"], tt.wantErr)
		})
	}
}

func TestResultsLifecycle(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		resp := postRun(t, mux, SimulationRequest{
			Floors: openFloor(),
			People: []people.Person{{ID: "p", Mobility: float64(60 + 20*i), Position: &people.Position{X: 500, Y: 300}}},
			Label:  fmt.Sprintf("run-%d", i),
		})
		ids = append(ids, resp.ID)
	}

	w := do(t, mux, http.MethodGet, "/api/results", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]db.ResultSummary](t, w)
	require.Len(t, list, 3)

	w = do(t, mux, http.MethodGet, "/api/results?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]db.ResultSummary](t, w), 2)

	w = do(t, mux, http.MethodGet, "/api/results/"+ids[1].String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	rec := decode[db.ResultRecord](t, w)
	assert.Equal(t, "run-1", rec.Label)
	assert.Equal(t, ids[1], rec.ID)
	assert.NotEmpty(t, rec.Heatmap)

	w = do(t, mux, http.MethodGet, "/api/results/"+ids[0].String()+"/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sum := decode[ResultSummaryResponse](t, w)
	assert.Equal(t, "run-0", sum.Label)
	assert.Equal(t, 1, sum.Summary.EvacuatedCount)

	w = do(t, mux, http.MethodGet, "/api/compare?baseline="+ids[0].String()+"&candidate="+ids[2].String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	cmpResp := decode[CompareResponse](t, w)
	assert.Less(t, cmpResp.Delta.MeanTime, 0.0, "the more mobile person is faster")

	w = do(t, mux, http.MethodGet, "/api/history/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	hist := decode[analytics.HistorySummary](t, w)
	assert.Equal(t, 3, hist.Runs)
	assert.LessOrEqual(t, hist.FastestTime, hist.SlowestTime)

	w = do(t, mux, http.MethodDelete, "/api/results/"+ids[0].String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, mux, http.MethodDelete, "/api/results/"+ids[0].String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, mux, http.MethodGet, "/api/results/"+ids[0].String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResults_BadInput(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()

	tests := []struct {
		method, path string
		status       int
	}{
		{http.MethodGet, "/api/results?limit=0", http.StatusBadRequest},
		{http.MethodGet, "/api/results?limit=abc", http.StatusBadRequest},
		{http.MethodGet, "/api/results/not-a-uuid", http.StatusBadRequest},
		{http.MethodGet, "/api/results/" + uuid.NewString() + "/summary", http.StatusNotFound},
		{http.MethodGet, "/api/compare?baseline=" + uuid.NewString(), http.StatusBadRequest},
		{http.MethodPut, "/api/results/" + uuid.NewString(), http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/simulations", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := do(t, mux, tt.method, tt.path, nil)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestServerWithoutStore(t *testing.T) {
	mux := NewServer(nil, sim.DefaultConfig()).ServeMux()

	resp := postRun(t, mux, SimulationRequest{
		Floors: openFloor(),
		People: []people.Person{{ID: "a", Mobility: 100, Position: &people.Position{X: 500, Y: 100}}},
	})
	assert.False(t, resp.Stored)

	for _, path := range []string{"/api/results", "/api/results/" + uuid.NewString(), "/api/history/summary"} {
		w := do(t, mux, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var logged []string
	prev := captureLogs(&logged)
	defer prev()

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := do(t, h, http.MethodGet, "/api/templates?x=1", nil)
	assert.Equal(t, http.StatusTeapot, w.Code)
	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "418")
	assert.Contains(t, logged[0], "/api/templates?x=1")
}

func TestStatusCodeColor(t *testing.T) {
	assert.True(t, strings.HasPrefix(statusCodeColor(200), colorBoldGreen))
	assert.True(t, strings.HasPrefix(statusCodeColor(302), colorYellow))
	assert.True(t, strings.HasPrefix(statusCodeColor(503), colorBoldRed))
	assert.Equal(t, "101", statusCodeColor(101))
}
