package scheduler

import (
	"context"
	"os"
	"strings"
	"time"

	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(RunScheduler),
)

func ProvideConfig() Config {
	cfg := DefaultConfig()
	if v := strings.TrimSpace(os.Getenv("SCHEDULER_RUN_INTERVAL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RunInterval = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("SCHEDULER_REPORT_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ReportTimeout = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("SCHEDULER_ENABLED_JOBS")); v != "" {
		for _, job := range strings.Split(v, ",") {
			if job = strings.TrimSpace(job); job != "" {
				cfg.EnabledJobs = append(cfg.EnabledJobs, job)
			}
		}
	}
	return cfg
}

func RunScheduler(lc fx.Lifecycle, sched *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			runCtx, cancel := context.WithCancel(context.Background())

			go sched.RunForever(runCtx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
