package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"nutriguide/config"
	"nutriguide/internal/domain"
	"nutriguide/internal/usecase"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) Ask(ctx context.Context, question string) (domain.Response, error) {
	args := m.Called(ctx, question)
	return args.Get(0).(domain.Response), args.Error(1)
}

func (m *mockService) Replace(ctx context.Context, groups []domain.FAQ, progress usecase.ProgressFunc) (domain.Revision, error) {
	args := m.Called(ctx, groups)
	return args.Get(0).(domain.Revision), args.Error(1)
}

func (m *mockService) Stats() usecase.Stats {
	return m.Called().Get(0).(usecase.Stats)
}

func (m *mockService) Ready() bool {
	return m.Called().Bool(0)
}

func newTestServer(svc Service) *Server {
	return New(config.DefaultConfig().Server, svc, nil)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthAndReady(t *testing.T) {
	svc := new(mockService)
	svc.On("Ready").Return(false).Once()
	svc.On("Ready").Return(true).Once()
	s := newTestServer(svc)

	w := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestAsk(t *testing.T) {
	svc := new(mockService)
	svc.On("Ask", mock.Anything, "What should I eat?").
		Return(domain.Response{Text: "Vegetables.", SourceUsed: true}, nil)
	s := newTestServer(svc)

	w := do(t, s, http.MethodPost, "/api/v1/ask", `{"question":"What should I eat?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"text":"Vegetables.","source_used":true}`, w.Body.String())
}

func TestAsk_BadRequests(t *testing.T) {
	s := newTestServer(new(mockService))

	for _, body := range []string{`not json`, `{"question":"   "}`, `{}`} {
		w := do(t, s, http.MethodPost, "/api/v1/ask", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestAsk_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: upstream 500", domain.ErrGeneration), http.StatusBadGateway, "generation_failed"},
		{fmt.Errorf("%w: no generator configured", domain.ErrConfig), http.StatusServiceUnavailable, "not_configured"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			svc := new(mockService)
			svc.On("Ask", mock.Anything, mock.Anything).Return(domain.Response{}, tt.err)
			s := newTestServer(svc)

			w := do(t, s, http.MethodPost, "/api/v1/ask", `{"question":"q"}`)
			assert.Equal(t, tt.status, w.Code)

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Error)
		})
	}
}

func TestReplace(t *testing.T) {
	rev := domain.Revision{ID: "rev-1", Documents: 2, Groups: 1, LoadedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	svc := new(mockService)
	svc.On("Replace", mock.Anything, []domain.FAQ{{Questions: []string{"a?", "b?"}, Answer: "c"}}).Return(rev, nil)
	s := newTestServer(svc)

	w := do(t, s, http.MethodPut, "/api/v1/knowledge", `[{"questions":["a?","b?"],"answer":"c"}]`)
	require.Equal(t, http.StatusOK, w.Code)

	var got domain.Revision
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, rev, got)
	svc.AssertExpectations(t)
}

func TestReplace_InvalidDataset(t *testing.T) {
	svc := new(mockService)
	s := newTestServer(svc)

	bodies := []string{
		`{"questions":["a"],"answer":"b"}`,
		`[]`,
		`[{"questions":[],"answer":"b"}]`,
		`[{"questions":["a"],"answer":"b","extra":1}]`,
	}
	for _, body := range bodies {
		w := do(t, s, http.MethodPut, "/api/v1/knowledge", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)

		var resp ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "invalid_dataset", resp.Error)
	}

	w := do(t, s, http.MethodPut, "/api/v1/knowledge", `[{"questions":["a", ""],"answer":"b"}]`)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Contains(t, resp.Details, "[0].questions[1]")

	svc.AssertNotCalled(t, "Replace", mock.Anything, mock.Anything)
}

func TestStats(t *testing.T) {
	svc := new(mockService)
	svc.On("Stats").Return(usecase.Stats{Documents: 4, Dimension: 384, TopK: 1, Threshold: 0.75})
	s := newTestServer(svc)

	w := do(t, s, http.MethodGet, "/api/v1/knowledge/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got usecase.Stats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, 4, got.Documents)
	assert.Equal(t, 0.75, got.Threshold)
}

func TestNotFound(t *testing.T) {
	s := newTestServer(new(mockService))
	w := do(t, s, http.MethodGet, "/api/v2/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServe_GracefulShutdown(t *testing.T) {
	svc := new(mockService)
	s := newTestServer(svc)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
