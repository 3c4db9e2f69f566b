package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/scrollprobe/internal/storage/memory"
)

// ExampleProgressHandler_ListRuns shows how to serve the /v1/runs endpoint.
func ExampleProgressHandler_ListRuns() {
	repo := memory.NewProgressStore()
	runID := uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
	if err := repo.UpsertRunStart(context.Background(), runID, "landing.yaml", 2, time.Unix(0, 0)); err != nil {
		panic(err)
	}
	handler := NewProgressHandler(repo, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/runs?limit=1", nil)
	rec := httptest.NewRecorder()
	handler.ListRuns(rec, req)

	var payload struct {
		Runs []map[string]any `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		panic(err)
	}
	fmt.Printf("returned runs: %d (%s)\n", len(payload.Runs), payload.Runs[0]["status"])
	// Output:
	// returned runs: 1 (running)
}
