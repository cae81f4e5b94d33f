package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/equihomepartners/core-engine/internal/resultstore"
	"github.com/equihomepartners/core-engine/internal/simulation/config"
	"github.com/equihomepartners/core-engine/internal/simulation/orchestrator"
	"github.com/equihomepartners/core-engine/pkg/logger"
	"github.com/equihomepartners/core-engine/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreateRunRequest is the POST /api/v1/runs request body.
type CreateRunRequest struct {
	Config *config.Configuration `json:"config"`
	Seed   int64                 `json:"seed"`
}

// CreateRunResponse is returned immediately; the run executes in the
// background and its result is fetched later via GET /runs/:run_id.
type CreateRunResponse struct {
	RunID string `json:"run_id"`
	State string `json:"state"`
}

// CreateRun accepts a simulation configuration, launches the run
// asynchronously, and returns its run_id immediately for polling or
// WebSocket subscription rather than blocking the request on completion.
func (s *Server) CreateRun(c *gin.Context) {
	var req CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Config == nil {
		req.Config = config.Default()
	}
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}

	runID := uuid.NewString()
	s.log.Info("accepted run request", logger.String("run_id", runID))

	go s.execute(runID, req.Config, req.Seed)

	c.JSON(http.StatusAccepted, CreateRunResponse{RunID: runID, State: string(orchestrator.StatePending)})
}

func (s *Server) execute(runID string, cfg *config.Configuration, seed int64) {
	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	summary := orchestrator.Run(cfg, orchestrator.Options{
		RunID:      runID,
		Seed:       seed,
		Provider:   mockTLSProvider(seed),
		Logger:     s.log,
		OnProgress: s.broadcast,
	})

	moduleSeconds := make(map[string]float64, len(summary.ModuleTimings))
	for _, t := range summary.ModuleTimings {
		moduleSeconds[t.Module] = t.ExecutionSeconds
	}
	violationTypes := make([]string, 0, len(summary.GuardrailViolations))
	for _, v := range summary.GuardrailViolations {
		violationTypes = append(violationTypes, string(v.Type))
	}
	metrics.ObserveRun(string(summary.State), moduleSeconds, violationTypes, summary.NumLoans)

	if err := s.store.StoreResult(context.Background(), runID, summary); err != nil {
		s.log.Error("failed to persist run result", logger.String("run_id", runID), logger.Error(err))
	}
}

// GetRun returns a previously stored run summary.
func (s *Server) GetRun(c *gin.Context) {
	summary, err := s.store.GetResult(c.Request.Context(), c.Param("run_id"))
	if err != nil {
		if err == resultstore.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ListRuns paginates stored run summaries via ?limit=&offset=.
func (s *Server) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	results, err := s.store.ListResults(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": results})
}

// DeleteRun removes a stored run summary.
func (s *Server) DeleteRun(c *gin.Context) {
	if err := s.store.DeleteResult(c.Request.Context(), c.Param("run_id")); err != nil {
		if err == resultstore.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// WatchProgress upgrades to a WebSocket and streams ProgressEvents for one
// run_id until the client disconnects or the run finishes emitting.
func (s *Server) WatchProgress(c *gin.Context) {
	runID := c.Param("run_id")
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	ch := s.subscribe(runID)
	defer s.unsubscribe(runID, ch)

	for event := range ch {
		if err := conn.WriteJSON(event); err != nil {
			return
		}
		if event.Progress >= 100 && event.Module == "risk_performance" {
			return
		}
	}
}
