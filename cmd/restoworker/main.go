package main

import (
	"github.com/Stugi/resto-worker/internal/account"
	"github.com/Stugi/resto-worker/internal/ai"
	"github.com/Stugi/resto-worker/internal/billing"
	"github.com/Stugi/resto-worker/internal/clock"
	"github.com/Stugi/resto-worker/internal/config"
	"github.com/Stugi/resto-worker/internal/groups"
	"github.com/Stugi/resto-worker/internal/lead"
	"github.com/Stugi/resto-worker/internal/migration"
	"github.com/Stugi/resto-worker/internal/observability"
	"github.com/Stugi/resto-worker/internal/onboarding"
	"github.com/Stugi/resto-worker/internal/organization"
	"github.com/Stugi/resto-worker/internal/ratelimit"
	"github.com/Stugi/resto-worker/internal/report"
	"github.com/Stugi/resto-worker/internal/restaurant"
	"github.com/Stugi/resto-worker/internal/scheduler"
	"github.com/Stugi/resto-worker/internal/server"
	"github.com/Stugi/resto-worker/internal/telegram"
	"github.com/Stugi/resto-worker/internal/voice"
	"github.com/Stugi/resto-worker/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

// The monolith: webhook server, in-process scheduler and migrations in one
// binary. Split deployments use apps/scheduler with SCHEDULER_ENABLED_JOBS
// narrowed down and the webhook served from here.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		organization.Module,
		lead.Module,
		account.Module,
		restaurant.Module,
		billing.Module,

		telegram.Module,
		ai.Module,
		ratelimit.Module,
		groups.Module,
		onboarding.Module,
		voice.Module,
		report.Module,

		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
