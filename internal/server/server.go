// Package server exposes the operator trigger surface: endpoints that kick
// off the engine's batch passes, plus health and prometheus metrics.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/loyaltylabs/loyalsync/internal/config"
	"github.com/loyaltylabs/loyalsync/internal/importer"
	metricsservice "github.com/loyaltylabs/loyalsync/internal/metrics/service"
	redemptionservice "github.com/loyaltylabs/loyalsync/internal/redemption/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Server struct {
	log  *zap.Logger
	cfg  config.ServerConfig
	http *http.Server

	metrics    *metricsservice.Service
	pipeline   *importer.Pipeline
	reconciler *redemptionservice.Reconciler
}

type ServerParam struct {
	fx.In

	Log        *zap.Logger
	Cfg        config.Config
	Metrics    *metricsservice.Service
	Pipeline   *importer.Pipeline
	Reconciler *redemptionservice.Reconciler
}

func NewServer(p ServerParam) *Server {
	s := &Server{
		log:        p.Log.Named("server"),
		cfg:        p.Cfg.Server,
		metrics:    p.Metrics,
		pipeline:   p.Pipeline,
		reconciler: p.Reconciler,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.Healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1/sync")
	api.POST("/metrics", s.TriggerMetrics)
	api.POST("/import", s.TriggerImport)
	api.POST("/redemptions", s.TriggerRedemptions)

	s.http = &http.Server{Addr: p.Cfg.Server.Addr, Handler: router}
	return s
}

func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.cfg.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

var Module = fx.Module("server",
	fx.Provide(NewServer),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := s.Start(); err != nil {
					s.log.Error("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return s.Shutdown(ctx)
		},
	})
}
