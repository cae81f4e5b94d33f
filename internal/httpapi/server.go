// Package httpapi exposes the orchestrator over HTTP: a REST surface for
// submitting and retrieving runs, plus a WebSocket progress stream.
package httpapi

import (
	"net/http"
	"sync"

	"github.com/equihomepartners/core-engine/internal/resultstore"
	"github.com/equihomepartners/core-engine/internal/simulation/orchestrator"
	"github.com/equihomepartners/core-engine/internal/simulation/tls"
	"github.com/equihomepartners/core-engine/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Server wires the result store and a live progress hub onto a gin router.
type Server struct {
	store    resultstore.Store
	log      *logger.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	watchers map[string][]chan orchestrator.ProgressEvent
}

// NewServer builds a Server backed by store. log may be nil, in which case
// a default production logger is used.
func NewServer(store resultstore.Store, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Server{
		store: store,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		watchers: make(map[string][]chan orchestrator.ProgressEvent),
	}
}

// Router builds the gin.Engine exposing every route this server handles.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.POST("/runs", s.CreateRun)
		v1.GET("/runs", s.ListRuns)
		v1.GET("/runs/:run_id", s.GetRun)
		v1.DELETE("/runs/:run_id", s.DeleteRun)
		v1.GET("/runs/:run_id/progress", s.WatchProgress)
	}
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	return router
}

// broadcast fans a progress event out to every live watcher of its run,
// dropping it for any watcher whose channel is currently full rather than
// blocking the run on a slow consumer.
func (s *Server) broadcast(e orchestrator.ProgressEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.watchers[e.SimulationID] {
		select {
		case ch <- e:
		default:
		}
	}
}

func (s *Server) subscribe(runID string) chan orchestrator.ProgressEvent {
	ch := make(chan orchestrator.ProgressEvent, 32)
	s.mu.Lock()
	s.watchers[runID] = append(s.watchers[runID], ch)
	s.mu.Unlock()
	return ch
}

func (s *Server) unsubscribe(runID string, ch chan orchestrator.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.watchers[runID]
	for i, c := range subs {
		if c == ch {
			s.watchers[runID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	close(ch)
}

// mockTLSProvider is the only tls.Provider this server wires: production
// TLS connectivity is out of the core's scope.
func mockTLSProvider(seed int64) tls.Provider {
	return tls.NewMockProvider(seed)
}
