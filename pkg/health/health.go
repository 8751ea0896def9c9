// Package health exposes liveness and readiness endpoints over gin, the
// way a FastAPI sidecar would expose /healthz and /readyz.
package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ReadinessChecker reports whether the sidecar has loaded usable policy
// configuration at least once. pkg/kubeconfig.FileLoader satisfies this
// directly with its Ready method; it is kept as a narrow interface so pkg/health
// never needs to import pkg/kubeconfig directly.
type ReadinessChecker interface {
	Ready() bool
}

// Server wraps a gin engine serving /healthz and /readyz.
type Server struct {
	engine    *gin.Engine
	startedAt time.Time
	checker   ReadinessChecker
}

// NewServer builds a Server. checker may be nil, in which case /readyz
// always reports ready.
func NewServer(checker ReadinessChecker) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{engine: gin.New(), startedAt: time.Now(), checker: checker}
	s.engine.Use(gin.Recovery())
	s.engine.GET("/healthz", s.handleHealthz)
	s.engine.GET("/readyz", s.handleReadyz)
	return s
}

// Handler returns the underlying http.Handler for use with an http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleReadyz(c *gin.Context) {
	if s.checker != nil && !s.checker.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
