package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/probeworks/deepscout/llm"
	"github.com/probeworks/deepscout/research"
	"github.com/probeworks/deepscout/search"
	"github.com/probeworks/deepscout/storage"
)

// stubProvider concludes immediately: workers finish in one round and the
// supervisor delegates a single sub-topic.
type stubProvider struct {
	err error
}

func (p *stubProvider) Name() string  { return "stub" }
func (p *stubProvider) Model() string { return "stub-model" }

func (p *stubProvider) Chat(context.Context, []llm.ChatMessage) (llm.LLMResponse, error) {
	if p.err != nil {
		return llm.LLMResponse{}, p.err
	}
	return llm.LLMResponse{Content: "stub findings"}, nil
}

func (p *stubProvider) ChatWithFormat(context.Context, []llm.ChatMessage, *llm.ResponseFormat) (llm.LLMResponse, error) {
	if p.err != nil {
		return llm.LLMResponse{}, p.err
	}
	return llm.LLMResponse{Content: `{"sub_topics": ["stub topic"]}`}, nil
}

func (p *stubProvider) ChatWithTools(context.Context, []llm.ChatMessage, []llm.ToolDefinition) (llm.LLMResponse, error) {
	if p.err != nil {
		return llm.LLMResponse{}, p.err
	}
	return llm.LLMResponse{ToolCalls: []llm.ToolCall{
		{ID: "c1", Name: "research_complete", Arguments: json.RawMessage(`{}`)},
	}}, nil
}

type stubSearcher struct{}

func (stubSearcher) Search(context.Context, search.Query) ([]search.Result, error) {
	return nil, nil
}

func newTestServer(t *testing.T, provider llm.Provider) *Server {
	t.Helper()
	store, err := storage.NewTaskStoreInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return New(":0", provider, stubSearcher{}, store, research.Options{WorkerCap: 1}, zap.NewNop())
}

func submit(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/research", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// waitForTerminal polls the task until it leaves pending/running.
func waitForTerminal(t *testing.T, handler http.Handler, id string) storage.Task {
	t.Helper()
	var task storage.Task
	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/research/"+id, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			return false
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
		return task.Status == storage.StatusCompleted || task.Status == storage.StatusFailed
	}, 5*time.Second, 10*time.Millisecond)
	return task
}

func TestSubmitAndPoll(t *testing.T) {
	srv := newTestServer(t, &stubProvider{})

	rec := submit(t, srv.Handler(), `{"query": "test question", "research_type": "multi"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ResearchID)
	assert.Equal(t, storage.StatusPending, resp.Status)

	task := waitForTerminal(t, srv.Handler(), resp.ResearchID)
	assert.Equal(t, storage.StatusCompleted, task.Status)

	var report research.Report
	require.NoError(t, json.Unmarshal(task.Result, &report))
	assert.Equal(t, "stub findings", report.DraftReport)
}

func TestSubmitSingleMode(t *testing.T) {
	srv := newTestServer(t, &stubProvider{})

	rec := submit(t, srv.Handler(), `{"query": "test question", "research_type": "single"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	task := waitForTerminal(t, srv.Handler(), resp.ResearchID)
	assert.Equal(t, storage.StatusCompleted, task.Status)

	var finding research.Finding
	require.NoError(t, json.Unmarshal(task.Result, &finding))
	assert.Equal(t, "test question", finding.Topic)
}

func TestSubmitRecordsFailure(t *testing.T) {
	srv := newTestServer(t, &stubProvider{err: errors.New("provider down")})

	rec := submit(t, srv.Handler(), `{"query": "doomed", "research_type": "single"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	task := waitForTerminal(t, srv.Handler(), resp.ResearchID)
	assert.Equal(t, storage.StatusFailed, task.Status)
	assert.Contains(t, task.Error, "provider down")
}

func TestSubmitValidation(t *testing.T) {
	srv := newTestServer(t, &stubProvider{})

	tests := []struct {
		name string
		body string
	}{
		{"empty query", `{"query": "  "}`},
		{"bad mode", `{"query": "q", "research_type": "telepathy"}`},
		{"bad json", `{not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := submit(t, srv.Handler(), tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetUnknownTask(t *testing.T) {
	srv := newTestServer(t, &stubProvider{})

	req := httptest.NewRequest(http.MethodGet, "/research/nope", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTasks(t *testing.T) {
	srv := newTestServer(t, &stubProvider{})

	rec := submit(t, srv.Handler(), `{"query": "one", "research_type": "single"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	waitForTerminal(t, srv.Handler(), resp.ResearchID)

	req := httptest.NewRequest(http.MethodGet, "/research", nil)
	listRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(listRec, req)
	require.Equal(t, http.StatusOK, listRec.Code)

	var listed struct {
		Tasks []storage.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &listed))
	assert.Len(t, listed.Tasks, 1)

	req = httptest.NewRequest(http.MethodGet, "/research?status=pending", nil)
	filteredRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(filteredRec, req)
	require.NoError(t, json.Unmarshal(filteredRec.Body.Bytes(), &listed))
	assert.Empty(t, listed.Tasks)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubProvider{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
