package migration

import (
	"github.com/Stugi/resto-worker/internal/account"
	billingdomain "github.com/Stugi/resto-worker/internal/billing/domain"
	"github.com/Stugi/resto-worker/internal/config"
	"github.com/Stugi/resto-worker/internal/groups"
	"github.com/Stugi/resto-worker/internal/lead"
	"github.com/Stugi/resto-worker/internal/organization"
	"github.com/Stugi/resto-worker/internal/ratelimit"
	reportdomain "github.com/Stugi/resto-worker/internal/report/domain"
	"github.com/Stugi/resto-worker/internal/restaurant"
	"github.com/Stugi/resto-worker/internal/seed"
	voicedomain "github.com/Stugi/resto-worker/internal/voice/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// sqlite and mysql deployments rely on the ORM schema
			if err := AutoMigrate(conn); err != nil {
				return err
			}
		}
		return seed.EnsureDefaults(conn)
	}),
)

func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&organization.Organization{},
		&lead.Lead{},
		&account.Account{},
		&restaurant.Restaurant{},
		&billingdomain.Tariff{},
		&billingdomain.Billing{},
		&billingdomain.Payment{},
		&voicedomain.VoiceMessage{},
		&voicedomain.Transcript{},
		&reportdomain.ReportPrompt{},
		&reportdomain.Report{},
		&reportdomain.ReportTranscript{},
		&ratelimit.RateLimitLog{},
		&ratelimit.SuspiciousActivity{},
		&groups.GroupAction{},
	)
}
