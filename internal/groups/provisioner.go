package groups

import (
	"context"
	"errors"
	"fmt"

	"github.com/Stugi/resto-worker/internal/config"
	"github.com/Stugi/resto-worker/internal/ratelimit"
	"github.com/Stugi/resto-worker/internal/restaurant"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrRateLimited = errors.New("group_creation_rate_limited")
	ErrFloodWait   = errors.New("group_creation_flood_wait")
)

const actionCreateGroup = "create_group"

type ProvisionerParams struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Config      config.Config
	GenID       *snowflake.Node
	Client      *Client
	Repo        Repository
	Restaurants restaurant.Repository
	Limiter     *ratelimit.Limiter
	Guard       *ratelimit.IngestGuard `optional:"true"`
}

// Provisioner creates the restaurant chat group and binds it. Every call
// passes the per-actor limiter first; the userbot account is the scarce
// resource being protected.
type Provisioner struct {
	db          *gorm.DB
	log         *zap.Logger
	botUsername string
	genID       *snowflake.Node
	client      *Client
	repo        Repository
	restaurants restaurant.Repository
	limiter     *ratelimit.Limiter
	guard       *ratelimit.IngestGuard
}

func NewProvisioner(p ProvisionerParams) *Provisioner {
	return &Provisioner{
		db:          p.DB,
		log:         p.Log.Named("groups"),
		botUsername: p.Config.TelegramBotUsername,
		genID:       p.GenID,
		client:      p.Client,
		repo:        p.Repo,
		restaurants: p.Restaurants,
		limiter:     p.Limiter,
		guard:       p.Guard,
	}
}

// ProvisionChat creates a group for the restaurant and stores the binding.
// Denials and flood waits come back as sentinel errors so the caller can
// tell the user to use /bind instead.
func (p *Provisioner) ProvisionChat(ctx context.Context, restaurantID snowflake.ID, ownerTelegramID int64) (int64, error) {
	rest, err := p.restaurants.FindByID(ctx, p.db, restaurantID)
	if err != nil {
		return 0, fmt.Errorf("find restaurant: %w", err)
	}
	if rest == nil {
		return 0, fmt.Errorf("restaurant %s not found", restaurantID)
	}
	if rest.Bound() {
		return *rest.ChatID, nil
	}

	decision, err := p.limiter.CheckAndIncrement(ctx, ownerTelegramID, actionCreateGroup)
	if err != nil {
		return 0, fmt.Errorf("rate limit: %w", err)
	}
	if !decision.Allowed {
		p.audit(ctx, restaurantID, ActionCreateGroup, rest.Name, ActionFailed, decision.Reason)
		return 0, ErrRateLimited
	}
	if flagged, err := p.limiter.DetectSuspicious(ctx, ownerTelegramID, actionCreateGroup); err != nil {
		p.log.Warn("suspicion check", zap.Error(err))
	} else if flagged {
		p.audit(ctx, restaurantID, ActionCreateGroup, rest.Name, ActionFailed, "suspicious_activity")
		return 0, ErrRateLimited
	}
	if ok, err := p.guard.AllowGroupCreation(ctx); err != nil {
		p.log.Warn("flood guard", zap.Error(err))
	} else if !ok {
		p.audit(ctx, restaurantID, ActionCreateGroup, rest.Name, ActionFailed, "flood_guard")
		return 0, ErrRateLimited
	}

	resp, err := p.client.CreateGroup(ctx, CreateGroupRequest{
		Title:       rest.Name,
		BotUsername: p.botUsername,
		MemberIDs:   []int64{ownerTelegramID},
	})
	if err != nil {
		var fw *FloodWaitError
		if errors.As(err, &fw) {
			p.audit(ctx, restaurantID, ActionCreateGroup, rest.Name, ActionFailed, fw.Error())
			return 0, fmt.Errorf("%w: %d seconds", ErrFloodWait, fw.Seconds)
		}
		p.audit(ctx, restaurantID, ActionCreateGroup, rest.Name, ActionFailed, err.Error())
		return 0, err
	}
	p.audit(ctx, restaurantID, ActionCreateGroup, resp.ChatTitle, ActionOK, "")
	p.audit(ctx, restaurantID, ActionAddUser, p.botUsername, ActionOK, "")
	p.audit(ctx, restaurantID, ActionPromoteAdmin, p.botUsername, ActionOK, "")

	if err := p.restaurants.BindChat(ctx, p.db, restaurantID, resp.ChatID, resp.ChatTitle); err != nil {
		return 0, fmt.Errorf("bind chat: %w", err)
	}

	p.log.Info("chat provisioned",
		zap.String("restaurant_id", restaurantID.String()),
		zap.Int64("chat_id", resp.ChatID),
	)
	return resp.ChatID, nil
}

func (p *Provisioner) audit(ctx context.Context, restaurantID snowflake.ID, action ActionType, target string, status ActionStatus, errText string) {
	err := p.repo.InsertAction(ctx, p.db, &GroupAction{
		ID:           p.genID.Generate(),
		RestaurantID: restaurantID,
		Action:       action,
		Target:       target,
		Status:       status,
		Error:        errText,
	})
	if err != nil {
		p.log.Error("audit group action", zap.Error(err))
	}
}
