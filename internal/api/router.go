// Package api serves stored articles and the ingestion trigger over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akhbar-mr/akhbar-harvester/internal/domain"
	"github.com/akhbar-mr/akhbar-harvester/internal/logger"
)

const defaultPageSize = 50

// NewsReader reads stored articles.
type NewsReader interface {
	Query(ctx context.Context, lang domain.Language, limit int) ([]domain.Article, error)
}

// Trigger starts an ingestion run; ok is false when one is already in progress.
type Trigger interface {
	RunOnce(ctx context.Context) (summary domain.RunSummary, ok bool)
}

// Options configures the server.
type Options struct {
	// CronSecret, when set, must be presented as "Authorization: Bearer <secret>".
	CronSecret string
	PageSize   int
}

type Server struct {
	news    NewsReader
	trigger Trigger
	opts    Options
	log     logger.Logger
}

func NewServer(news NewsReader, trigger Trigger, opts Options, log logger.Logger) *Server {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	return &Server{news: news, trigger: trigger, opts: opts, log: logger.Ensure(log)}
}

// Router builds a gin engine with the server's routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	s.RegisterRoutes(r)
	return r
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	api := r.Group("/api")
	{
		api.GET("/news", s.listNews)
		api.GET("/cron", s.requireSecret(), s.runCron)
	}

	r.GET("/rss/:lang", s.rss)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listNews(c *gin.Context) {
	lang := domain.ParseLanguage(c.DefaultQuery("lang", string(domain.LanguageFR)))

	limit := s.opts.PageSize
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	items, err := s.news.Query(c.Request.Context(), lang, limit)
	if err != nil {
		s.log.Error("list news failed", zap.String("lang", string(lang)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		})
		return
	}
	if items == nil {
		items = []domain.Article{}
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    items,
	})
}

func (s *Server) requireSecret() gin.HandlerFunc {
	want := []byte(s.opts.CronSecret)
	return func(c *gin.Context) {
		if len(want) == 0 {
			c.Next()
			return
		}
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) runCron(c *gin.Context) {
	// The run outlives the request: a caller that disconnects must not discard the batch.
	summary, ok := s.trigger.RunOnce(context.WithoutCancel(c.Request.Context()))
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "ingestion already running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"scraped": summary.Scraped,
		"saved":   summary.Saved,
	})
}
