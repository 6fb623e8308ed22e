package seed

import (
	"context"
	"errors"

	billingdomain "github.com/Stugi/resto-worker/internal/billing/domain"
	reportdomain "github.com/Stugi/resto-worker/internal/report/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const defaultPromptName = "weekly-feedback"

const defaultPromptTemplate = `Ты составляешь отчёт для ресторана "{restaurant_name}" за период с {period_start} по {period_end}.
Ниже пронумерованные отзывы гостей:
{transcripts}

Составь структурированный отчёт: общая картина, главные проблемы по важности, упомянутые блюда, что стоит исправить в первую очередь.`

// EnsureDefaults seeds the tariff ladder and the active report prompt on
// first start. Existing rows are never modified so operators can edit them.
func EnsureDefaults(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureTariffs(ctx, tx, node); err != nil {
			return err
		}
		return ensurePrompt(ctx, tx, node)
	})
}

func ensureTariffs(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&billingdomain.Tariff{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	tariffs := []billingdomain.Tariff{
		{
			ID:                node.Generate(),
			Name:              "Пробный",
			Description:       "Неделя бесплатно, один ресторан, до 20 распознаваний",
			Price:             0,
			PeriodDays:        7,
			MaxRestaurants:    1,
			MaxUsers:          1,
			MaxTranscriptions: 20,
			IsActive:          true,
			SortOrder:         0,
		},
		{
			ID:                node.Generate(),
			Name:              "Старт",
			Description:       "Один ресторан, до 100 распознаваний в месяц",
			Price:             290000,
			PeriodDays:        30,
			MaxRestaurants:    1,
			MaxUsers:          3,
			MaxTranscriptions: 100,
			IsActive:          true,
			SortOrder:         1,
		},
		{
			ID:                node.Generate(),
			Name:              "Сеть",
			Description:       "До пяти ресторанов, до 500 распознаваний в месяц",
			Price:             990000,
			PeriodDays:        30,
			MaxRestaurants:    5,
			MaxUsers:          15,
			MaxTranscriptions: 500,
			IsActive:          true,
			SortOrder:         2,
		},
	}
	return tx.WithContext(ctx).Create(&tariffs).Error
}

func ensurePrompt(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var count int64
	if err := tx.WithContext(ctx).Model(&reportdomain.ReportPrompt{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	prompt := reportdomain.ReportPrompt{
		ID:        node.Generate(),
		Name:      defaultPromptName,
		Template:  defaultPromptTemplate,
		IsActive:  true,
		IsDefault: true,
	}
	return tx.WithContext(ctx).Create(&prompt).Error
}
