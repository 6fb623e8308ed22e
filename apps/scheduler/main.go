package main

import (
	"github.com/Stugi/resto-worker/internal/account"
	"github.com/Stugi/resto-worker/internal/ai"
	"github.com/Stugi/resto-worker/internal/billing"
	"github.com/Stugi/resto-worker/internal/clock"
	"github.com/Stugi/resto-worker/internal/config"
	"github.com/Stugi/resto-worker/internal/observability"
	"github.com/Stugi/resto-worker/internal/report"
	"github.com/Stugi/resto-worker/internal/restaurant"
	"github.com/Stugi/resto-worker/internal/scheduler"
	"github.com/Stugi/resto-worker/internal/telegram"
	"github.com/Stugi/resto-worker/internal/voice"
	"github.com/Stugi/resto-worker/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

// Standalone scheduler deployment. No HTTP server and no migrations; the
// webhook binary owns the schema.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		restaurant.Module,
		account.Module,
		billing.Module,

		telegram.Module,
		ai.Module,
		voice.Module,
		report.Module,

		scheduler.Module,
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
