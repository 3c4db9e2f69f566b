package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/scrollprobe/internal/store"
)

func TestProgressHandlerListRuns(t *testing.T) {
	t.Parallel()

	repo := &mockProgressRepo{
		runs: []store.Run{
			{
				ID:        uuid.New(),
				Source:    "https://example.com",
				Elements:  3,
				Status:    store.RunSuccess,
				StartedAt: time.Now().Add(-time.Hour),
			},
		},
	}
	handler := NewProgressHandler(repo, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/runs?status=success&limit=10", nil)
	rec := httptest.NewRecorder()

	handler.ListRuns(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Runs []runDTO `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	require.Equal(t, "https://example.com", body.Runs[0].Source)
	require.NotNil(t, repo.lastStatus)
	require.Equal(t, store.RunSuccess, *repo.lastStatus)
	require.Equal(t, 10, repo.lastLimit)
}

func TestProgressHandlerListRunsStatusAliases(t *testing.T) {
	t.Parallel()

	repo := &mockProgressRepo{}
	handler := NewProgressHandler(repo, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/runs?status=FAILED&limit=5000", nil)
	rec := httptest.NewRecorder()
	handler.ListRuns(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, store.RunError, *repo.lastStatus)
	require.Equal(t, maxRunLimit, repo.lastLimit)
}

func TestProgressHandlerListRunsInvalidStatus(t *testing.T) {
	t.Parallel()

	handler := NewProgressHandler(&mockProgressRepo{}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/v1/runs?status=paused", nil)
	rec := httptest.NewRecorder()

	handler.ListRuns(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProgressHandlerListRunsRepoError(t *testing.T) {
	t.Parallel()

	handler := NewProgressHandler(&mockProgressRepo{err: errors.New("boom")}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
	rec := httptest.NewRecorder()

	handler.ListRuns(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestProgressHandlerUnavailable(t *testing.T) {
	t.Parallel()

	handler := NewProgressHandler(nil, nil)
	rec := httptest.NewRecorder()
	handler.ListRuns(rec, httptest.NewRequest(http.MethodGet, "/v1/runs", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestProgressHandlerGetRunNotFound(t *testing.T) {
	t.Parallel()

	repo := &mockProgressRepo{err: store.ErrNotFound}
	handler := NewProgressHandler(repo, zap.NewNop())

	runID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/runs/"+runID.String(), nil)
	req = withRunIDParam(req, runID.String())
	rec := httptest.NewRecorder()

	handler.GetRun(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProgressHandlerGetRunInvalidID(t *testing.T) {
	t.Parallel()

	handler := NewProgressHandler(&mockProgressRepo{}, zap.NewNop())
	req := withRunIDParam(httptest.NewRequest(http.MethodGet, "/v1/runs/nope", nil), "nope")
	rec := httptest.NewRecorder()

	handler.GetRun(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid run_id")
}

func TestProgressHandlerListRunElements(t *testing.T) {
	t.Parallel()

	runID := uuid.New()
	repo := &mockProgressRepo{
		elements: []store.ElementSummary{
			{RunID: runID, Element: "hero", Samples: 4, MinProgress: 0.1, MaxProgress: 0.7, LastProgress: 0.7},
		},
	}
	handler := NewProgressHandler(repo, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/v1/runs/"+runID.String()+"/elements?offset=2", nil)
	req = withRunIDParam(req, runID.String())
	rec := httptest.NewRecorder()

	handler.ListRunElements(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Elements []elementDTO `json:"elements"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Elements, 1)
	require.Equal(t, "hero", body.Elements[0].Element)
	require.InDelta(t, 0.7, body.Elements[0].LastProgress, 1e-9)
	require.Equal(t, 2, repo.lastOffset)
	require.Equal(t, defaultElementsLimit, repo.lastLimit)
}

func TestProgressHandlerListRunElementsInvalidLimit(t *testing.T) {
	t.Parallel()

	handler := NewProgressHandler(&mockProgressRepo{}, zap.NewNop())
	runID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/runs/"+runID.String()+"/elements?limit=-1", nil)
	req = withRunIDParam(req, runID.String())
	rec := httptest.NewRecorder()

	handler.ListRunElements(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

type mockProgressRepo struct {
	runs     []store.Run
	elements []store.ElementSummary
	err      error

	lastStatus *store.RunStatus
	lastLimit  int
	lastOffset int
}

func (m *mockProgressRepo) UpsertRunStart(context.Context, uuid.UUID, string, int, time.Time) error {
	return m.err
}

func (m *mockProgressRepo) CompleteRun(context.Context, uuid.UUID, time.Time, store.RunStatus, *string) error {
	return m.err
}

func (m *mockProgressRepo) InsertSamples(context.Context, []store.Sample) error {
	return m.err
}

func (m *mockProgressRepo) GetRun(context.Context, uuid.UUID) (store.Run, error) {
	if len(m.runs) > 0 {
		return m.runs[0], nil
	}
	return store.Run{}, m.err
}

func (m *mockProgressRepo) ListRuns(_ context.Context, status *store.RunStatus, limit, offset int) ([]store.Run, error) {
	m.lastStatus, m.lastLimit, m.lastOffset = status, limit, offset
	return m.runs, m.err
}

func (m *mockProgressRepo) ListRunElements(_ context.Context, _ uuid.UUID, limit, offset int) ([]store.ElementSummary, error) {
	m.lastLimit, m.lastOffset = limit, offset
	return m.elements, m.err
}

func withRunIDParam(r *http.Request, runID string) *http.Request {
	ctx := chi.NewRouteContext()
	ctx.URLParams.Add("run_id", runID)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, ctx))
}
