// Package server hosts the wsocketd process: the protocol listener and its admin HTTP surface.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/danmuck/wsocket/internal/auth"
	"github.com/danmuck/wsocket/internal/observability"
	"github.com/danmuck/wsocket/internal/protocol/frame"
	"github.com/danmuck/wsocket/internal/protocol/session"
	"github.com/danmuck/wsocket/internal/transport"
)

const Version = "0.1.0"

// ConnSource is the view of the transport listener the admin routes need.
type ConnSource interface {
	Conns() []*transport.Conn
	Ready() bool
}

type Admin struct {
	Node     string
	Appeared time.Time

	conns  ConnSource
	guard  auth.Validator
	router *gin.Engine
}

type connView struct {
	ID      uint64        `json:"id"`
	Remote  string        `json:"remote"`
	State   string        `json:"state"`
	Codec   string        `json:"codec"`
	Created time.Time     `json:"created"`
	Stats   session.Stats `json:"stats"`
}

// NewAdmin builds the admin router. A nil guard leaves mutating routes open.
func NewAdmin(node string, conns ConnSource, guard auth.Validator, logger zerolog.Logger) *Admin {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware(node))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	a := &Admin{
		Node:     node,
		Appeared: time.Now(),
		conns:    conns,
		guard:    guard,
		router:   r,
	}
	a.registerRoutes()
	return a
}

func (a *Admin) Handler() http.Handler {
	return a.router
}

func (a *Admin) registerRoutes() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(a.Appeared).String(),
			"service": a.Node,
			"version": Version,
		})
	})

	a.router.GET("/ready", func(c *gin.Context) {
		status := http.StatusOK
		ready := a.conns.Ready()
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"service": a.Node,
			"version": Version,
		})
	})

	a.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router.GET("/connections", func(c *gin.Context) {
		conns := a.conns.Conns()
		out := make([]connView, 0, len(conns))
		for _, conn := range conns {
			out = append(out, viewOf(conn))
		}
		c.JSON(http.StatusOK, gin.H{"connections": out})
	})

	a.router.GET("/connections/:id", func(c *gin.Context) {
		conn, ok := a.lookup(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, viewOf(conn))
	})

	a.router.POST("/connections/:id/close", a.requireToken, func(c *gin.Context) {
		conn, ok := a.lookup(c)
		if !ok {
			return
		}
		code := frame.CloseGoingAway
		if raw := c.Query("code"); raw != "" {
			n, err := strconv.ParseUint(raw, 10, 16)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid close code"})
				return
			}
			code = frame.CloseCode(n)
		}
		reason := c.Query("reason")
		if reason == "" {
			reason = code.Message()
		}
		if err := conn.CloseWithReason(code, reason); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "closing", "id": conn.ID()})
	})
}

func (a *Admin) requireToken(c *gin.Context) {
	if a.guard == nil {
		return
	}
	if err := auth.CheckHeader(a.guard, c.GetHeader("Authorization")); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	}
}

func (a *Admin) lookup(c *gin.Context) (*transport.Conn, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connection id"})
		return nil, false
	}
	for _, conn := range a.conns.Conns() {
		if conn.ID() == id {
			return conn, true
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
	return nil, false
}

func viewOf(c *transport.Conn) connView {
	return connView{
		ID:      c.ID(),
		Remote:  c.RemoteAddr().String(),
		State:   c.State().String(),
		Codec:   c.Codec().String(),
		Created: c.CreatedAt(),
		Stats:   c.Stats(),
	}
}
