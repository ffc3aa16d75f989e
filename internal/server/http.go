package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/scriptd/internal/metrics"
	"github.com/loykin/scriptd/internal/supervisor"
)

// StatusHandler returns a read-only HTTP surface for observability:
//
//	GET /status   registry snapshot as JSON
//	GET /metrics  Prometheus exposition
//
// It is never part of the control path; mutations go through the socket only.
func StatusHandler(sup *supervisor.Supervisor) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, sup.List())
	})
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewHTTPServer starts the status server on addr in the background.
func NewHTTPServer(addr string, sup *supervisor.Supervisor) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           StatusHandler(sup),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
