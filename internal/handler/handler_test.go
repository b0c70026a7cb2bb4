package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"docingest-go/internal/model"
	"docingest-go/pkg/tasks"
	"docingest-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIngest struct {
	mu       sync.Mutex
	started  []model.IngestRequest
	startErr error
	// statuses 依次返回，最后一个重复返回
	statuses []model.Job
	calls    int
}

func (f *fakeIngest) Start(_ context.Context, req model.IngestRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, req)
	return "job-1", nil
}

func (f *fakeIngest) GetStatus(_ context.Context, jobID string) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 || jobID != f.statuses[0].JobID {
		return nil, model.ErrJobNotFound
	}
	job := f.statuses[min(f.calls, len(f.statuses)-1)]
	f.calls++
	return job.Clone(), nil
}

func (f *fakeIngest) Run(context.Context, tasks.IngestTask) error { return nil }

type fakeSearch struct {
	err error
}

func (f fakeSearch) Search(_ context.Context, req model.SearchRequest) (*model.SearchResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.SearchResponse{
		Results:      []model.SearchResult{{Text: "hit", Score: 0.9}},
		TotalResults: 1,
		Query:        req.Query,
		Tenant:       strings.ToLower(req.Tenant),
	}, nil
}

type fakeDocs struct {
	deleted []string
}

func (f *fakeDocs) InitCollection(_ context.Context, tenant string) (string, error) {
	return "sp_" + tenant, nil
}

func (f *fakeDocs) ListDocuments(context.Context, string) ([]model.DocumentSummary, error) {
	return []model.DocumentSummary{{DocID: "d1", ChunkCount: 3}, {DocID: "d2", ChunkCount: 2}}, nil
}

func (f *fakeDocs) DeleteDocument(_ context.Context, _, docID string) error {
	if docID == "" {
		return model.ErrInvalidArgument
	}
	f.deleted = append(f.deleted, docID)
	return nil
}

type testAPI struct {
	router *gin.Engine
	ingest *fakeIngest
	docs   *fakeDocs
	jwt    *token.JWTManager
}

func newTestAPI(t *testing.T, jwt *token.JWTManager, search fakeSearch, checks map[string]HealthCheck) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	api := &testAPI{ingest: &fakeIngest{}, docs: &fakeDocs{}, jwt: jwt}
	api.router = NewRouter(Handlers{
		Ingest: NewIngestHandler(api.ingest, api.docs, 10*time.Millisecond),
		Search: NewSearchHandler(search, api.docs),
		Health: NewHealthHandler("1.2.3", checks),
	}, jwt)
	return api
}

func (a *testAPI) do(t *testing.T, method, path string, body any, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var env struct {
		Code int             `json:"code"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func TestStartIngestMapsRequest(t *testing.T) {
	api := newTestAPI(t, nil, fakeSearch{}, nil)

	body := map[string]any{
		"tenant":        "Acme-Corp",
		"connection_id": "conn-1",
		"drive":         map[string]any{"folder_ids": []string{"f1", "f2"}},
		"reingest":      true,
	}
	w := api.do(t, http.MethodPost, "/api/v1/ingest", body, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res IngestResponse
	decodeData(t, w, &res)
	assert.True(t, res.Success)
	assert.Equal(t, "job-1", res.JobID)

	require.Len(t, api.ingest.started, 1)
	assert.Equal(t, model.IngestRequest{
		Tenant: "acme_corp", ConnectionID: "conn-1", FolderIDs: []string{"f1", "f2"}, Mode: model.IngestModeFull,
	}, api.ingest.started[0])

	delete(body, "reingest")
	w = api.do(t, http.MethodPost, "/api/v1/ingest", body, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.IngestModeIncremental, api.ingest.started[1].Mode)
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{model.ErrInvalidArgument, http.StatusBadRequest},
		{model.ErrNotFound, http.StatusNotFound},
		{model.ErrAuthExpired, http.StatusUnauthorized},
		{model.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("包装: %w", model.ErrEmbeddingUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			api := newTestAPI(t, nil, fakeSearch{}, nil)
			api.ingest.startErr = tc.err
			w := api.do(t, http.MethodPost, "/api/v1/ingest", map[string]any{"tenant": "acme", "connection_id": "c"}, "")
			assert.Equal(t, tc.code, w.Code)
		})
	}
}

func TestInvalidTenantIsBadRequest(t *testing.T) {
	api := newTestAPI(t, nil, fakeSearch{}, nil)
	w := api.do(t, http.MethodPost, "/api/v1/search", model.SearchRequest{Tenant: "no/slash", Query: "q"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/search/documents", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetJob(t *testing.T) {
	api := newTestAPI(t, nil, fakeSearch{}, nil)
	api.ingest.statuses = []model.Job{{JobID: "job-1", Tenant: "acme", Status: model.JobStatusRunning, FilesTotal: 4}}

	w := api.do(t, http.MethodGet, "/api/v1/ingest/job/job-1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var job model.Job
	decodeData(t, w, &job)
	assert.Equal(t, model.JobStatusRunning, job.Status)
	assert.Equal(t, 4, job.FilesTotal)

	w = api.do(t, http.MethodGet, "/api/v1/ingest/job/other", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearchAndDocuments(t *testing.T) {
	api := newTestAPI(t, nil, fakeSearch{}, nil)

	w := api.do(t, http.MethodPost, "/api/v1/search", model.SearchRequest{Tenant: "acme", Query: "hello"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var res model.SearchResponse
	decodeData(t, w, &res)
	assert.Equal(t, "hello", res.Query)
	assert.Len(t, res.Results, 1)

	w = api.do(t, http.MethodGet, "/api/v1/search/documents?tenant=acme", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list DocumentListResponse
	decodeData(t, w, &list)
	assert.Equal(t, 2, list.TotalDocuments)
	assert.Equal(t, 5, list.TotalChunks)

	w = api.do(t, http.MethodDelete, "/api/v1/search/documents/d1?tenant=acme", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"d1"}, api.docs.deleted)

	w = api.do(t, http.MethodPost, "/api/v1/ingest/collection/init", CollectionInitRequest{Tenant: "New-Tenant"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var init CollectionInitResponse
	decodeData(t, w, &init)
	assert.Equal(t, "sp_new_tenant", init.CollectionName)
}

func TestTenantScopedTokens(t *testing.T) {
	jwt := token.NewJWTManager("secret", 1)
	api := newTestAPI(t, jwt, fakeSearch{}, nil)
	acme, err := jwt.GenerateToken("acme", token.RoleTenant)
	require.NoError(t, err)

	req := model.SearchRequest{Tenant: "acme", Query: "q"}
	assert.Equal(t, http.StatusUnauthorized, api.do(t, http.MethodPost, "/api/v1/search", req, "").Code)
	assert.Equal(t, http.StatusOK, api.do(t, http.MethodPost, "/api/v1/search", req, acme).Code)

	req.Tenant = "globex"
	assert.Equal(t, http.StatusForbidden, api.do(t, http.MethodPost, "/api/v1/search", req, acme).Code)

	api.ingest.statuses = []model.Job{{JobID: "job-9", Tenant: "globex", Status: model.JobStatusPending}}
	assert.Equal(t, http.StatusForbidden, api.do(t, http.MethodGet, "/api/v1/ingest/job/job-9", nil, acme).Code)

	// 健康检查不需要 token
	assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/health", nil, "").Code)
}

func TestDetailedHealth(t *testing.T) {
	api := newTestAPI(t, nil, fakeSearch{}, map[string]HealthCheck{
		"vector_store": func(context.Context) error { return nil },
		"tika":         func(context.Context) error { return fmt.Errorf("connection refused") },
	})
	w := api.do(t, http.MethodGet, "/health/detailed", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status     string                       `json:"status"`
		Components map[string]map[string]string `json:"components"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "healthy", body.Components["vector_store"]["status"])
	assert.Equal(t, "unhealthy", body.Components["tika"]["status"])

	w = api.do(t, http.MethodGet, "/version", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "1.2.3")
}

func TestWatchJobStreamsUntilTerminal(t *testing.T) {
	api := newTestAPI(t, nil, fakeSearch{}, nil)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	api.ingest.statuses = []model.Job{
		{JobID: "job-1", Tenant: "acme", Status: model.JobStatusRunning, FilesProcessed: 1, UpdatedAt: t0},
		{JobID: "job-1", Tenant: "acme", Status: model.JobStatusRunning, FilesProcessed: 1, UpdatedAt: t0},
		{JobID: "job-1", Tenant: "acme", Status: model.JobStatusRunning, FilesProcessed: 2, UpdatedAt: t0.Add(time.Second)},
		{JobID: "job-1", Tenant: "acme", Status: model.JobStatusCompleted, FilesProcessed: 3, UpdatedAt: t0.Add(2 * time.Second)},
	}
	srv := httptest.NewServer(api.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ingest/job/job-1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var processed []int
	for {
		var job model.Job
		if err := conn.ReadJSON(&job); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		processed = append(processed, job.FilesProcessed)
	}
	// 未变化的快照不重复推送
	assert.Equal(t, []int{1, 2, 3}, processed)
}
