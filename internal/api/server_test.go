package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomdp/adapters/wire"
	"gomdp/app"
	"gomdp/internal/config"
	"gomdp/internal/testkit"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	kit := testkit.NewTestKit()
	codec := wire.NewCodec()
	catalog := app.NewCatalogService(kit.ModelRepository(), codec)
	experiments := app.NewExperimentService(kit.EnvironmentFactory(), kit.PolicyFactory(), kit.RNGAdapter())
	results := app.NewResultsService()
	runner := app.NewRunService(catalog, kit.RunRepository(), experiments, results)

	return NewServer(Deps{
		Models:  kit.ModelRepository(),
		Runs:    kit.RunRepository(),
		Catalog: catalog,
		Runner:  runner,
		Results: results,
		Sim: config.SimConfig{
			Seed:        42,
			Episodes:    2,
			Timesteps:   5,
			CodeVersion: "test",
		},
		DataDir: t.TempDir(),
	})
}

func encodedCanonicalModel(t *testing.T) []byte {
	t.Helper()
	model, err := testkit.CanonicalModel()
	require.NoError(t, err)
	payload, err := wire.EncodeModel(model)
	require.NoError(t, err)
	return payload
}

func doRequest(t *testing.T, s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if method == http.MethodPost && json.Valid(body) {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

// uploadModel stores the canonical model and returns its id.
func uploadModel(t *testing.T, s *Server) string {
	t.Helper()
	w := doRequest(t, s, http.MethodPost, "/api/models", encodedCanonicalModel(t))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var record struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	require.NotEmpty(t, record.ID)
	return record.ID
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := doRequest(t, s, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestModelLifecycle(t *testing.T) {
	s := newTestServer(t)
	id := uploadModel(t, s)

	t.Run("get returns catalog row", func(t *testing.T) {
		w := doRequest(t, s, http.MethodGet, "/api/models/"+id, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var record struct {
			Name      string  `json:"name"`
			Gamma     float64 `json:"gamma"`
			StateVars int     `json:"state_vars"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
		assert.Equal(t, "Simple Test MDP", record.Name)
		assert.InDelta(t, 0.9, record.Gamma, 1e-12)
		assert.Equal(t, 2, record.StateVars)
	})

	t.Run("list includes the model", func(t *testing.T) {
		w := doRequest(t, s, http.MethodGet, "/api/models", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var listing struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
		assert.Equal(t, 1, listing.Count)
	})

	t.Run("payload download round-trips", func(t *testing.T) {
		w := doRequest(t, s, http.MethodGet, "/api/models/"+id+"/payload", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), ".fmdp")
		assert.Equal(t, encodedCanonicalModel(t), w.Body.Bytes())
	})

	t.Run("duplicate upload conflicts", func(t *testing.T) {
		w := doRequest(t, s, http.MethodPost, "/api/models", encodedCanonicalModel(t))
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("delete then get is not found", func(t *testing.T) {
		w := doRequest(t, s, http.MethodDelete, "/api/models/"+id, nil)
		require.Equal(t, http.StatusNoContent, w.Code)

		w = doRequest(t, s, http.MethodGet, "/api/models/"+id, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUploadRejectsGarbage(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/api/models", []byte("not a model"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, s, http.MethodPost, "/api/models", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunEndpoints(t *testing.T) {
	s := newTestServer(t)
	id := uploadModel(t, s)

	body := []byte(`{"learner":"random","episodes":2,"timesteps":5,"seed":7}`)
	w := doRequest(t, s, http.MethodPost, "/api/models/"+id+"/runs", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Run struct {
			ID     string `json:"id"`
			Status string `json:"status"`
			Seed   int64  `json:"seed"`
		} `json:"run"`
		Steps int `json:"steps"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, 10, created.Steps)
	assert.Equal(t, "complete", created.Run.Status)
	assert.Equal(t, int64(7), created.Run.Seed)
	runID := created.Run.ID

	t.Run("run is listed for the model", func(t *testing.T) {
		w := doRequest(t, s, http.MethodGet, "/api/models/"+id+"/runs", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var listing struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
		assert.Equal(t, 1, listing.Count)
	})

	t.Run("outcomes are archived", func(t *testing.T) {
		w := doRequest(t, s, http.MethodGet, "/api/runs/"+runID+"/outcomes", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var listing struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
		assert.Equal(t, 10, listing.Count)
	})

	t.Run("summary covers every step", func(t *testing.T) {
		w := doRequest(t, s, http.MethodGet, "/api/runs/"+runID+"/summary", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var summary struct {
			Steps    int  `json:"steps"`
			Episodes int  `json:"episodes"`
			Complete bool `json:"complete"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
		assert.Equal(t, 10, summary.Steps)
		assert.Equal(t, 2, summary.Episodes)
		assert.True(t, summary.Complete)
	})

	t.Run("export serves a workbook", func(t *testing.T) {
		w := doRequest(t, s, http.MethodGet, "/api/runs/"+runID+"/export", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
		assert.NotZero(t, w.Body.Len())
	})

	t.Run("unknown learner is rejected", func(t *testing.T) {
		w := doRequest(t, s, http.MethodPost, "/api/models/"+id+"/runs",
			[]byte(`{"learner":"oracle"}`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "oracle")
	})

	t.Run("run against missing model is not found", func(t *testing.T) {
		missing := strings.Repeat("0", 8) + "-0000-0000-0000-000000000000"
		w := doRequest(t, s, http.MethodPost, "/api/models/"+missing+"/runs", body)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRunDefaultsFromConfig(t *testing.T) {
	s := newTestServer(t)
	id := uploadModel(t, s)

	w := doRequest(t, s, http.MethodPost, "/api/models/"+id+"/runs", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Run struct {
			Episodes  int   `json:"episodes"`
			Timesteps int   `json:"timesteps"`
			Seed      int64 `json:"seed"`
		} `json:"run"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, 2, created.Run.Episodes)
	assert.Equal(t, 5, created.Run.Timesteps)
	assert.Equal(t, int64(42), created.Run.Seed)
}
