// Package admin exposes a local diagnostics surface for the uplink daemon:
// health, readiness, connection status, prometheus metrics, and the
// pause/retry/reconnect/reload control actions. Actions are queued onto the
// service loop; nothing here touches the client directly.
package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/edgekit/uplink/internal/observability"
	"github.com/edgekit/uplink/internal/uplink"
)

// Controller is the slice of the service the admin surface needs.
type Controller interface {
	Status() uplink.Status
	Do(a uplink.Action) error
}

type Server struct {
	node    string
	ctrl    Controller
	router  *gin.Engine
	started time.Time
}

func New(node string, ctrl Controller, corsOrigins []string) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(node))
	if len(corsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: corsOrigins,
			AllowMethods: []string{"GET", "POST"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		node:    node,
		ctrl:    ctrl,
		router:  r,
		started: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"node":   s.node,
			"uptime": time.Since(s.started).String(),
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		st := s.ctrl.Status()
		c.JSON(http.StatusOK, gin.H{
			"ready":     true,
			"connected": st.Connected,
			"paused":    st.Paused,
		})
	})

	s.router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.ctrl.Status())
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.POST("/actions/:action", func(c *gin.Context) {
		action := uplink.Action(c.Param("action"))
		if err := s.ctrl.Do(action); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, uplink.ErrUnknownAction) {
				status = http.StatusNotFound
			} else if errors.Is(err, uplink.ErrControlBusy) {
				status = http.StatusServiceUnavailable
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "action": string(action)})
	})
}

// Serve runs the admin server until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Str("addr", addr).Msg("uplink: admin server listening")
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
