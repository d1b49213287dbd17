package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmukeshreddy/rlm-engine/internal/config"
	"github.com/pmukeshreddy/rlm-engine/internal/errs"
	"github.com/pmukeshreddy/rlm-engine/internal/events"
	"github.com/pmukeshreddy/rlm-engine/internal/llmclient"
	"github.com/pmukeshreddy/rlm-engine/internal/models"
	"github.com/pmukeshreddy/rlm-engine/internal/orchestrator"
	"github.com/pmukeshreddy/rlm-engine/internal/pricing"
	"github.com/pmukeshreddy/rlm-engine/internal/session"
	"github.com/pmukeshreddy/rlm-engine/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeClient implements llmclient.Client, always returning a fixed FINAL
// program so the agent loop's root node completes immediately without
// ever recursing.
type fakeClient struct{}

func (fakeClient) Complete(ctx context.Context, model, system, prompt string) (string, llmclient.Usage, error) {
	return `FINAL("ok")`, llmclient.Usage{InputTokens: 10, OutputTokens: 5}, nil
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	bus := events.NewBus()
	sessions := session.NewManager()
	priceTable := pricing.NewTable(nil)
	limits := config.Defaults().Limits
	limits.ExecutionTimeout = 2 * time.Second

	orch := orchestrator.New(fakeClient{}, priceTable, bus, sessions, limits)
	execs := storage.NewInMemory()
	srv := NewServer(orch, sessions, execs, priceTable, limits)
	ts := httptest.NewServer(srv.Engine())
	t.Cleanup(ts.Close)
	return srv, ts
}

func newTestGinContext(w *httptest.ResponseRecorder) (*gin.Context, *gin.Engine) {
	return gin.CreateTestContext(w)
}

func TestHandleExecute_MissingQueryReturnsBadRequest(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/execute", "application/json", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleHealth_ReportsLimitsAndPricingCount(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Greater(t, body["pricing_models_loaded"], 0.0)
}

func TestHandleGetExecution_UnknownIDReturns404(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/executions/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleExecute_HappyPathCompletesAndReturnsFinalResult(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/execute", "application/json", bytes.NewBufferString(`{"query":"summarize this"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var exec executionJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&exec))
	assert.Equal(t, string(models.ExecutionCompleted), exec.Status)
	assert.NotEmpty(t, exec.ID)
}

func TestSessionLifecycle_CreateGetMergeDelete(t *testing.T) {
	_, ts := newTestServer(t)
	client := ts.Client()

	createResp, err := client.Post(ts.URL+"/api/sessions", "application/json", bytes.NewBufferString(`{"name":"demo","context":"hello"}`))
	require.NoError(t, err)
	defer createResp.Body.Close()
	require.Equal(t, http.StatusOK, createResp.StatusCode)

	var created sessionJSON
	require.NoError(t, json.NewDecoder(createResp.Body).Decode(&created))
	require.NotEmpty(t, created.ID)

	getResp, err := client.Get(ts.URL + "/api/sessions/" + created.ID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)

	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/api/sessions/"+created.ID+"/memory", bytes.NewBufferString(`{"k":"v"}`))
	require.NoError(t, err)
	mergeResp, err := client.Do(req)
	require.NoError(t, err)
	defer mergeResp.Body.Close()
	assert.Equal(t, http.StatusOK, mergeResp.StatusCode)

	memResp, err := client.Get(ts.URL + "/api/sessions/" + created.ID + "/memory")
	require.NoError(t, err)
	defer memResp.Body.Close()
	var memory map[string]any
	require.NoError(t, json.NewDecoder(memResp.Body).Decode(&memory))
	assert.Equal(t, "v", memory["k"])

	delReq, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/"+created.ID, nil)
	require.NoError(t, err)
	delResp, err := client.Do(delReq)
	require.NoError(t, err)
	defer delResp.Body.Close()
	assert.Equal(t, http.StatusOK, delResp.StatusCode)

	missingResp, err := client.Get(ts.URL + "/api/sessions/" + created.ID)
	require.NoError(t, err)
	defer missingResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, missingResp.StatusCode)
}

func TestWriteErr_MapsSandboxViolationToBadRequest(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := newTestGinContext(rec)
	writeErr(c, errs.New(errs.KindSandboxViolation, "forbidden name"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWriteErr_MapsProviderErrorToInternalServerError(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := newTestGinContext(rec)
	writeErr(c, errs.New(errs.KindProviderError, "upstream failed"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestExecutionToJSON_OmitsZeroCompletedAt(t *testing.T) {
	exec := &models.Execution{
		ID:        "e1",
		Status:    models.ExecutionRunning,
		StartedAt: time.Now(),
	}
	out := executionToJSON(exec)
	assert.Empty(t, out.CompletedAt)

	exec2 := *exec
	exec2.Status = models.ExecutionCompleted
	exec2.CompletedAt = time.Now()
	out2 := executionToJSON(&exec2)
	assert.NotEmpty(t, out2.CompletedAt)
}
