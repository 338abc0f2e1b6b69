package monitor

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StateSource reports the feed connection state.
type StateSource interface {
	State() (State, time.Time)
}

type healthResponse struct {
	State         State   `json:"state"`
	Since         string  `json:"since"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// NewHealthRouter serves /healthz and /metrics. The process reports
// unhealthy once it has not been streaming for longer than staleAfter.
func NewHealthRouter(source StateSource, metrics *Metrics, staleAfter time.Duration, started time.Time) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		state, since := source.State()
		body := healthResponse{
			State:         state,
			Since:         since.UTC().Format(time.RFC3339),
			UptimeSeconds: time.Since(started).Seconds(),
		}

		status := http.StatusOK
		if state != StateStreaming && time.Since(since) > staleAfter {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, body)
	})

	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, metrics.Snapshot())
	})

	return r
}
