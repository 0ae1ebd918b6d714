package daemon

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/chartad/charta/internal/auth"
	"github.com/chartad/charta/internal/engine"
	"github.com/chartad/charta/internal/mapping"
	"github.com/chartad/charta/internal/observability"
)

const apiVersion = "0.1.0"

func (s *Service) newRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.RequestLogger(log.Logger))
	router.Use(observability.RequestMetricsMiddleware(s.cfg.Name))
	if len(s.cfg.CorsOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = s.cfg.CorsOrigins
		corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
		router.Use(cors.New(corsCfg))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.appeared).String(),
			"component": "charta-api",
			"version":   apiVersion,
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":     s.manager.Phase() == mapping.PhaseStarted,
			"uptime":    time.Since(s.appeared).String(),
			"component": "charta-api",
			"version":   apiVersion,
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/domains", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"domains": s.manager.Domains(),
		})
	})

	router.GET("/domains/:domain", func(c *gin.Context) {
		lc, ok := s.manager.LifeCycle(c.Param("domain"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"domain":    lc.Domain(),
			"workspace": lc.Workspace(),
			"entities":  lc.Entities(),
			"started":   lc.Started(),
		})
	})

	// Node routes run inside a request synchronization: every domain touched
	// by the request shares its fate, saved on success and discarded on
	// failure.
	scoped := router.Group("/domains/:domain", s.requestScope())
	scoped.GET("/nodes", s.handleListNodes)
	scoped.GET("/node", s.handleGetNode)

	protected := scoped.Group("", requireAuth(s.validator()))
	protected.PUT("/nodes", s.handlePutNode)
	protected.DELETE("/node", s.handleDeleteNode)

	return router
}

func (s *Service) validator() auth.Validator {
	if s.cfg.AuthToken == "" {
		return auth.AllowAll{}
	}
	return auth.StaticToken{Token: s.cfg.AuthToken}
}

// requestScope opens a synchronization for the request and ends it when the
// handler chain finishes. Changes save only when the response succeeded.
func (s *Service) requestScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := s.manager.BeginRequest(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		save := c.Writer.Status() < http.StatusBadRequest
		if err := s.manager.EndRequest(ctx, save); err != nil {
			log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("daemon.Service.requestScope end failed")
		}
	}
}

func requireAuth(v auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := auth.BearerToken(c.GetHeader("Authorization"))
		if err := v.Validate(token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Service) lifecycleFor(c *gin.Context) (*mapping.LifeCycle, bool) {
	lc, ok := s.manager.LifeCycle(c.Param("domain"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
		return nil, false
	}
	return lc, true
}

func (s *Service) handleListNodes(c *gin.Context) {
	lc, ok := s.lifecycleFor(c)
	if !ok {
		return
	}
	session, err := lc.Session(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	list, err := session.List(c.Query("prefix"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"workspace": session.Workspace(),
		"nodes":     list,
	})
}

func (s *Service) handleGetNode(c *gin.Context) {
	lc, ok := s.lifecycleFor(c)
	if !ok {
		return
	}
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path query parameter required"})
		return
	}
	session, err := lc.Session(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	node, err := session.Load(path)
	if errors.Is(err, engine.ErrNodeNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, node)
}

func (s *Service) handlePutNode(c *gin.Context) {
	lc, ok := s.lifecycleFor(c)
	if !ok {
		return
	}
	var node engine.Node
	if err := c.ShouldBindJSON(&node); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, err := lc.Session(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	stored, err := session.Store(node)
	if errors.Is(err, engine.ErrInvalidNode) || errors.Is(err, engine.ErrUnknownEntity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stored)
}

func (s *Service) handleDeleteNode(c *gin.Context) {
	lc, ok := s.lifecycleFor(c)
	if !ok {
		return
	}
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path query parameter required"})
		return
	}
	session, err := lc.Session(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := session.Remove(path); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": path})
}
