package server

import (
	"context"
	"net/http"
	"time"

	"github.com/Stugi/resto-worker/internal/config"
	"github.com/Stugi/resto-worker/internal/observability"
	"github.com/Stugi/resto-worker/internal/onboarding"
	"github.com/Stugi/resto-worker/internal/scheduler"
	voicedomain "github.com/Stugi/resto-worker/internal/voice/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, log *zap.Logger) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, log *zap.Logger) *gin.Engine {
	return NewEngine(obsCfg, log)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	onboardingSvc *onboarding.Service
	voiceSvc      voicedomain.Service
	tasks         *onboarding.TaskRunner
	scheduler     *scheduler.Scheduler
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	OnboardingSvc *onboarding.Service
	VoiceSvc      voicedomain.Service
	Tasks         *onboarding.TaskRunner
	Scheduler     *scheduler.Scheduler `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("server"),
		onboardingSvc: p.OnboardingSvc,
		voiceSvc:      p.VoiceSvc,
		tasks:         p.Tasks,
		scheduler:     p.Scheduler,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	api.POST("/bot/webhook", s.handleWebhook)
	api.GET("/cron/reports", s.cronAuth(), s.handleCronReports)
}
