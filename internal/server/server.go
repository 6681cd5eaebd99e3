package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ButyrinIA/feed/internal/config"
	"github.com/ButyrinIA/feed/internal/logging"
	"github.com/ButyrinIA/feed/internal/search"
	"github.com/ButyrinIA/feed/internal/storage"
	"github.com/ButyrinIA/feed/internal/thread"
	"github.com/ButyrinIA/feed/internal/view"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	cfg      *config.Config
	registry *view.Registry
	agg      *search.Aggregator
	handler  http.Handler
	upgrader websocket.Upgrader
	logger   *zap.Logger
	level    zap.AtomicLevel
}

// New собирает сервер. level меняется во время работы через /loglevel.
func New(cfg *config.Config, store storage.Store, logger *zap.Logger, level zap.AtomicLevel) *Server {
	builder := thread.NewBuilder(store, cfg.Thread.AnnotationConcurrency, logger)
	agg := search.NewAggregator(store, search.Options{
		PageSize:    cfg.Search.PageSize,
		BatchSize:   cfg.Search.BatchSize,
		Concurrency: cfg.Search.AnnotationConcurrency,
	}, logger)

	s := &Server{
		cfg:      cfg,
		registry: view.NewRegistry(store, builder, agg, view.NewHub(), logger),
		agg:      agg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
		level:  level,
	}
	s.handler = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinLogger(s.logger, requestFields))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/", s.identify())
	api.GET("/search", s.search)
	api.GET("/loglevel", s.getLogLevel)
	api.PUT("/loglevel", s.setLogLevel)

	threads := api.Group("/threads")
	threads.POST("", s.openThread)
	threads.GET("/:view", s.getThread)
	threads.DELETE("/:view", s.closeThread)
	threads.POST("/:view/reload", s.reloadThread)
	threads.POST("/:view/reply", s.toggleReply)
	threads.POST("/:view/edit", s.toggleEdit)
	threads.POST("/:view/submit", s.submit)
	threads.POST("/:view/remove", s.remove)
	threads.POST("/:view/vote", s.vote)
	threads.GET("/:view/events", s.events)

	searches := api.Group("/searches")
	searches.POST("", s.openSearch)
	searches.GET("/:view", s.loadSearch)
	searches.DELETE("/:view", s.closeSearch)

	return r
}

// Run обслуживает запросы до отмены ctx.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Server.Port,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
