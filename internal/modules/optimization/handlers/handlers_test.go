package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/previ-optimizer/internal/modules/charts"
	"github.com/aristath/previ-optimizer/internal/modules/dataset"
	"github.com/aristath/previ-optimizer/internal/modules/optimization"
	"github.com/aristath/previ-optimizer/internal/modules/runs"
	testingpkg "github.com/aristath/previ-optimizer/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	table dataset.Table
}

func (s staticSource) Load(string) (dataset.Table, error) {
	return s.table, nil
}

func setupRouter(t *testing.T, table dataset.Table) http.Handler {
	t.Helper()

	db, cleanup := testingpkg.NewTestDB(t, "runs")
	t.Cleanup(cleanup)

	logger := zerolog.Nop()
	repo := runs.NewRepository(db.Conn(), logger)
	service := optimization.NewOptimizerService(staticSource{table: table}, repo, "data.csv", optimization.DefaultSettings(), logger)
	handler := NewHandler(service, repo, charts.NewService(logger), logger)

	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func doRequest(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "response should carry a data object")
	return data
}

func TestHandleGetLatest_NoRuns(t *testing.T) {
	router := setupRouter(t, testingpkg.NewFundTable(testingpkg.NewFundFixtures()...))

	w := doRequest(router, http.MethodGet, "/optimizer/", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleRun_ThenRead(t *testing.T) {
	router := setupRouter(t, testingpkg.NewFundTable(testingpkg.NewFundFixtures()...))

	w := doRequest(router, http.MethodPost, "/optimizer/run", `{"max_position_size": 0.4}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	run := decodeData(t, w)
	id, _ := run["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, 0.4, run["max_position_size"])
	assert.NotNil(t, run["sharpe_ratio"])
	assert.NotEmpty(t, run["allocation"])

	w = doRequest(router, http.MethodGet, "/optimizer/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decodeData(t, w)["id"])

	w = doRequest(router, http.MethodGet, "/optimizer/runs/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decodeData(t, w)["id"])

	w = doRequest(router, http.MethodGet, "/optimizer/runs?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeData(t, w)["count"])

	w = doRequest(router, http.MethodGet, "/optimizer/runs/"+id+"/chart.png", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte{0x89, 'P', 'N', 'G'}))
}

func TestHandleRun_EmptyBodyUsesDefaults(t *testing.T) {
	router := setupRouter(t, testingpkg.NewFundTable(testingpkg.NewFundFixtures()...))

	w := doRequest(router, http.MethodPost, "/optimizer/run", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, optimization.DefaultSettings().MaxPositionSize, decodeData(t, w)["max_position_size"])
}

func TestHandleRun_Errors(t *testing.T) {
	router := setupRouter(t, testingpkg.NewFundTable(testingpkg.NewFundFixtures()...))

	testCases := []struct {
		name   string
		body   string
		status int
	}{
		{"infeasible cap", `{"max_position_size": 0.1}`, http.StatusUnprocessableEntity},
		{"cap out of range", `{"max_position_size": 2}`, http.StatusBadRequest},
		{"zero cap", `{"max_position_size": 0}`, http.StatusBadRequest},
		{"all zero settings", `{"risk_free_rate": 0, "max_position_size": 0, "min_weight": 0, "max_iterations": 0}`, http.StatusBadRequest},
		{"malformed body", `{"max_position_size":`, http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/optimizer/run", tc.body)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestHandleRun_SchemaError(t *testing.T) {
	router := setupRouter(t, dataset.Table{Header: []string{"ISIN"}, Rows: [][]string{{"A"}}})

	w := doRequest(router, http.MethodPost, "/optimizer/run", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandleGetRun_NotFound(t *testing.T) {
	router := setupRouter(t, testingpkg.NewFundTable(testingpkg.NewFundFixtures()...))

	w := doRequest(router, http.MethodGet, "/optimizer/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodGet, "/optimizer/runs/missing/chart.png", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGetCategories(t *testing.T) {
	router := setupRouter(t, testingpkg.NewFundTable(testingpkg.NewFundFixtures()...))

	w := doRequest(router, http.MethodGet, "/optimizer/categories", "")
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeData(t, w)
	categories, ok := data["categories"].([]interface{})
	require.True(t, ok)
	assert.Len(t, categories, 4)
}

func TestRegisterRoutes_RoutePrefix(t *testing.T) {
	router := setupRouter(t, testingpkg.NewFundTable(testingpkg.NewFundFixtures()...))

	w := doRequest(router, http.MethodGet, "/run", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "Route without /optimizer prefix should return 404")
}
