package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Stugi/resto-worker/internal/account"
	"github.com/Stugi/resto-worker/internal/ai"
	billingdomain "github.com/Stugi/resto-worker/internal/billing/domain"
	"github.com/Stugi/resto-worker/internal/clock"
	"github.com/Stugi/resto-worker/internal/observability/metrics"
	"github.com/Stugi/resto-worker/internal/report/domain"
	"github.com/Stugi/resto-worker/internal/restaurant"
	"github.com/Stugi/resto-worker/internal/telegram"
	voicedomain "github.com/Stugi/resto-worker/internal/voice/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// scheduleTolerance is how far past the scheduled minute a pass may
	// run and still count as due.
	scheduleTolerance = 15 * time.Minute

	// dedupWindow suppresses a second scheduler report for the same
	// restaurant. Wider than the tolerance so overlapping passes cannot
	// both fire.
	dedupWindow = 60 * time.Minute

	// defaultLookback bounds the first report of a restaurant that has
	// no completed report to chain from.
	defaultLookback = 24 * time.Hour

	summaryFallbackLimit = 500
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	GenID       *snowflake.Node
	Repo        domain.Repository
	Voice       voicedomain.Repository
	Restaurants restaurant.Repository
	Accounts    account.Repository
	Billing     billingdomain.Service
	AI          ai.Client
	Bot         telegram.Transport
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	genID       *snowflake.Node
	repo        domain.Repository
	voice       voicedomain.Repository
	restaurants restaurant.Repository
	accounts    account.Repository
	billing     billingdomain.Service
	ai          ai.Client
	bot         telegram.Transport
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("report.service"),
		clock:       p.Clock,
		genID:       p.GenID,
		repo:        p.Repo,
		voice:       p.Voice,
		restaurants: p.Restaurants,
		accounts:    p.Accounts,
		billing:     p.Billing,
		ai:          p.AI,
		bot:         p.Bot,
	}
}

func (s *Service) RunScheduled(ctx context.Context) (*domain.RunResult, error) {
	now := s.clock.Now()
	res := &domain.RunResult{Skipped: make(map[domain.SkipReason]int)}

	rests, err := s.restaurants.ListScheduled(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("list scheduled restaurants: %w", err)
	}

	for _, rest := range rests {
		reason, err := s.runOne(ctx, rest, now)
		switch {
		case err != nil:
			res.Failed++
			metrics.Scheduler().IncReportGenerated("failed")
			s.log.Error("scheduled report failed",
				zap.String("restaurant_id", rest.ID.String()),
				zap.Error(err),
			)
		case reason != "":
			res.Skipped[reason]++
			metrics.Scheduler().IncReportSkipped(string(reason))
		default:
			res.Generated++
			metrics.Scheduler().IncReportGenerated("completed")
		}
	}

	s.log.Info("scheduled report pass done",
		zap.Int("generated", res.Generated),
		zap.Int("failed", res.Failed),
		zap.Any("skipped", res.Skipped),
	)
	return res, nil
}

// runOne returns a non-empty skip reason when the restaurant was due but a
// guard stopped generation, and an error only for genuine failures.
func (s *Service) runOne(ctx context.Context, rest *restaurant.Restaurant, now time.Time) (domain.SkipReason, error) {
	sched := rest.Schedule.Data()
	if !sched.Matches(now, scheduleTolerance) {
		return domain.SkipNotDue, nil
	}

	dup, err := s.repo.HasReportSince(ctx, s.db, rest.ID, now.Add(-dedupWindow))
	if err != nil {
		return "", fmt.Errorf("dedup check: %w", err)
	}
	if dup {
		return domain.SkipRecentReport, nil
	}

	if err := s.billing.Gate(ctx, rest.OrganizationID); err != nil {
		if billingdomain.NeedsPurchaseAction(err) {
			s.log.Info("billing blocked scheduled report",
				zap.String("restaurant_id", rest.ID.String()),
				zap.Error(err),
			)
			return domain.SkipBilling, nil
		}
		return "", fmt.Errorf("billing gate: %w", err)
	}

	from := now.Add(-defaultLookback)
	if last, err := s.repo.LastCompletedScheduled(ctx, s.db, rest.ID); err != nil {
		return "", fmt.Errorf("last report: %w", err)
	} else if last != nil {
		from = last.PeriodEnd
	}

	_, err = s.Generate(ctx, rest.ID, from, now, domain.TriggerScheduler)
	if err == domain.ErrNoTranscripts {
		if rest.ChatID != nil {
			s.notify(ctx, *rest.ChatID, fmt.Sprintf(
				"За период с %s отзывов не поступало, отчёт не сформирован.",
				from.Format("02.01 15:04")))
		}
		return domain.SkipNoTranscripts, nil
	}
	return "", err
}

func (s *Service) Generate(ctx context.Context, restaurantID snowflake.ID, from, to time.Time, trigger domain.Trigger) (*domain.Report, error) {
	rest, err := s.restaurants.FindByID(ctx, s.db, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("find restaurant: %w", err)
	}
	if rest == nil {
		return nil, fmt.Errorf("restaurant %s not found", restaurantID)
	}

	transcripts, err := s.voice.TranscriptsInWindow(ctx, s.db, restaurantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load transcripts: %w", err)
	}
	if len(transcripts) == 0 {
		return nil, domain.ErrNoTranscripts
	}

	if err := s.classify(ctx, transcripts); err != nil {
		s.log.Warn("classification incomplete", zap.Error(err))
	}

	prompt, err := s.repo.ActivePrompt(ctx, s.db, rest.ID)
	if err != nil {
		return nil, fmt.Errorf("load prompt: %w", err)
	}
	if prompt == nil {
		return nil, domain.ErrNoActivePrompt
	}

	rep := &domain.Report{
		ID:             s.genID.Generate(),
		RestaurantID:   rest.ID,
		OrganizationID: rest.OrganizationID,
		PromptID:       &prompt.ID,
		Title:          reportTitle(rest.Name, from, to),
		PeriodStart:    from,
		PeriodEnd:      to,
		Status:         domain.ReportPending,
		TriggeredBy:    trigger,
	}
	if err := s.repo.InsertReport(ctx, s.db, rep); err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}

	compiled := compilePrompt(prompt.Template, rest.Name, from, to, transcripts)
	res, err := s.ai.GenerateReport(ctx, compiled)
	if err != nil {
		rep.Status = domain.ReportFailed
		rep.Error = err.Error()
		if uerr := s.repo.UpdateReport(ctx, s.db, rep); uerr != nil {
			s.log.Error("mark report failed", zap.Error(uerr))
		}
		return nil, fmt.Errorf("generate: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rep.Status = domain.ReportCompleted
		rep.Content = res.Content
		rep.Model = res.Model
		rep.TokensUsed = res.TokensUsed
		rep.GenerationMs = res.Duration.Milliseconds()
		if err := s.repo.UpdateReport(ctx, tx, rep); err != nil {
			return err
		}
		links := make([]domain.ReportTranscript, 0, len(transcripts))
		for _, t := range transcripts {
			links = append(links, domain.ReportTranscript{
				ID:           s.genID.Generate(),
				ReportID:     rep.ID,
				TranscriptID: t.ID,
			})
		}
		return s.repo.LinkTranscripts(ctx, tx, links)
	})
	if err != nil {
		return nil, fmt.Errorf("persist report: %w", err)
	}

	s.dispatch(ctx, rest, rep)

	s.log.Info("report generated",
		zap.String("report_id", rep.ID.String()),
		zap.String("restaurant_id", rest.ID.String()),
		zap.Int("transcripts", len(transcripts)),
		zap.Int("tokens", res.TokensUsed),
	)
	return rep, nil
}

// classify fills in verdicts for transcripts that still lack one. Entries
// the model could not classify are left untouched and retried next pass.
func (s *Service) classify(ctx context.Context, transcripts []voicedomain.Transcript) error {
	ids := make([]snowflake.ID, 0, len(transcripts))
	for _, t := range transcripts {
		ids = append(ids, t.ID)
	}
	pending, err := s.voice.Unclassified(ctx, s.db, ids)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	texts := make(map[snowflake.ID]string, len(pending))
	for _, t := range pending {
		texts[t.ID] = t.Text
	}
	verdicts, err := s.ai.ClassifyBatch(ctx, texts)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	for i := range pending {
		t := &pending[i]
		v, ok := verdicts[t.ID]
		if !ok {
			continue
		}
		t.Sentiment = v.Sentiment
		t.Category = v.Category
		t.Subcategory = v.Subcategory
		t.Dishes = v.Dishes
		t.Severity = v.Severity
		t.ProblemTypes = v.ProblemTypes
		t.ClassifiedAt = &now
		if err := s.voice.UpdateTranscript(ctx, s.db, t); err != nil {
			return err
		}
		// keep the in-memory window copy current for prompt rendering
		for j := range transcripts {
			if transcripts[j].ID == t.ID {
				transcripts[j] = *t
			}
		}
	}
	return nil
}

// dispatch sends the report to the restaurant chat and a short digest to
// the owner. Delivery failures are logged, the report itself is already
// persisted.
func (s *Service) dispatch(ctx context.Context, rest *restaurant.Restaurant, rep *domain.Report) {
	if rest.ChatID != nil {
		s.notify(ctx, *rest.ChatID, rep.Title+"\n\n"+rep.Content)
	}

	owner, err := s.accounts.FindOwnerByOrganization(ctx, s.db, rest.OrganizationID)
	if err != nil || owner == nil {
		s.log.Warn("owner lookup for report digest",
			zap.String("org_id", rest.OrganizationID.String()),
			zap.Error(err),
		)
		return
	}

	digest, err := s.ai.Summarize(ctx, rep.Content)
	if err != nil || strings.TrimSpace(digest) == "" {
		r := []rune(rep.Content)
		if len(r) > summaryFallbackLimit {
			r = r[:summaryFallbackLimit]
		}
		digest = string(r)
	} else {
		rep.Summary = digest
		if err := s.repo.UpdateReport(ctx, s.db, rep); err != nil {
			s.log.Warn("save report summary", zap.Error(err))
		}
	}
	s.notify(ctx, owner.TelegramID, fmt.Sprintf("Готов отчёт по «%s»:\n\n%s", rest.Name, digest))
}

func (s *Service) notify(ctx context.Context, chatID int64, text string) {
	if err := s.bot.SendText(ctx, chatID, text); err != nil {
		s.log.Warn("send report message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// reportTitle is stored on the report and doubles as the chat header.
func reportTitle(restaurantName string, from, to time.Time) string {
	return fmt.Sprintf("Отчёт по «%s» за %s — %s",
		restaurantName,
		from.Format("02.01 15:04"),
		to.Format("02.01 15:04"))
}

func compilePrompt(template, restaurantName string, from, to time.Time, transcripts []voicedomain.Transcript) string {
	var b strings.Builder
	for i, t := range transcripts {
		fmt.Fprintf(&b, "%d. [%s]", i+1, t.CreatedAt.Format("02.01 15:04"))
		if t.Sentiment != "" {
			fmt.Fprintf(&b, " (%s", t.Sentiment)
			if t.Category != "" {
				fmt.Fprintf(&b, ", %s", t.Category)
			}
			if t.Severity > 0 {
				fmt.Fprintf(&b, ", важность %d", t.Severity)
			}
			b.WriteString(")")
		}
		b.WriteString(" ")
		b.WriteString(t.Text)
		b.WriteString("\n")
	}

	return strings.NewReplacer(
		"{restaurant_name}", restaurantName,
		"{period_start}", from.Format("02.01.2006 15:04"),
		"{period_end}", to.Format("02.01.2006 15:04"),
		"{transcripts}", b.String(),
	).Replace(template)
}
