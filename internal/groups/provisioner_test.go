package groups

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Stugi/resto-worker/internal/clock"
	"github.com/Stugi/resto-worker/internal/config"
	"github.com/Stugi/resto-worker/internal/ratelimit"
	"github.com/Stugi/resto-worker/internal/restaurant"
	"github.com/Stugi/resto-worker/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type userbotStub struct {
	status   int
	response any
	requests []CreateGroupRequest
	auth     string
}

func (s *userbotStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateGroupRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.requests = append(s.requests, req)
		s.auth = r.Header.Get("Authorization")
		w.WriteHeader(s.status)
		_ = json.NewEncoder(w).Encode(s.response)
	}
}

func newProvisioner(t *testing.T, baseURL string) (*Provisioner, *gorm.DB, *clock.FakeClock, *snowflake.Node) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&restaurant.Restaurant{}, &GroupAction{},
		&ratelimit.RateLimitLog{}, &ratelimit.SuspiciousActivity{},
	))

	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

	cfg := config.Config{
		TelegramBotUsername: "resto_feedback_bot",
		UserbotEnabled:      baseURL != "",
		UserbotBaseURL:      baseURL,
		UserbotAuthToken:    "secret-token",
	}

	limiter := ratelimit.NewLimiter(ratelimit.LimiterParams{
		DB: conn, Log: log, Clock: fake, GenID: node,
		Repo:   ratelimit.NewRepository(),
		Limits: config.NewStaticLimitsHolder(config.DefaultLimitsConfig()),
	})

	p := NewProvisioner(ProvisionerParams{
		DB: conn, Log: log, Config: cfg, GenID: node,
		Client:      NewClient(ClientParams{Config: cfg, Log: log}),
		Repo:        NewRepository(),
		Restaurants: restaurant.NewRepository(),
		Limiter:     limiter,
	})
	return p, conn, fake, node
}

func seedRestaurant(t *testing.T, conn *gorm.DB, node *snowflake.Node) snowflake.ID {
	t.Helper()
	id := node.Generate()
	require.NoError(t, conn.Create(&restaurant.Restaurant{
		ID: id, OrganizationID: node.Generate(), Name: "Чебуречная",
	}).Error)
	return id
}

func TestProvisionChatSuccess(t *testing.T) {
	stub := &userbotStub{
		status:   http.StatusOK,
		response: CreateGroupResponse{ChatID: -1001234567890, ChatTitle: "Чебуречная отзывы"},
	}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	p, conn, _, node := newProvisioner(t, srv.URL)
	restID := seedRestaurant(t, conn, node)

	chatID, err := p.ProvisionChat(context.Background(), restID, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(-1001234567890), chatID)

	require.Len(t, stub.requests, 1)
	assert.Equal(t, "Чебуречная", stub.requests[0].Title)
	assert.Equal(t, "resto_feedback_bot", stub.requests[0].BotUsername)
	assert.Equal(t, []int64{500}, stub.requests[0].MemberIDs)
	assert.Equal(t, "Bearer secret-token", stub.auth)

	rest, err := restaurant.NewRepository().FindByID(context.Background(), conn, restID)
	require.NoError(t, err)
	assert.True(t, rest.Bound())
	assert.Equal(t, "Чебуречная отзывы", rest.ChatTitle)

	actions, err := NewRepository().ListActions(context.Background(), conn, restID)
	require.NoError(t, err)
	require.Len(t, actions, 3)
	var kinds []ActionType
	for _, a := range actions {
		kinds = append(kinds, a.Action)
		assert.Equal(t, ActionOK, a.Status)
	}
	assert.ElementsMatch(t, []ActionType{ActionCreateGroup, ActionAddUser, ActionPromoteAdmin}, kinds)
}

func TestProvisionChatIdempotentWhenBound(t *testing.T) {
	p, conn, _, node := newProvisioner(t, "")
	restID := seedRestaurant(t, conn, node)

	existing := int64(-1005555555555)
	require.NoError(t, restaurant.NewRepository().BindChat(context.Background(), conn, restID, existing, "уже есть"))

	// No userbot configured, yet the call succeeds: nothing to create.
	chatID, err := p.ProvisionChat(context.Background(), restID, 500)
	require.NoError(t, err)
	assert.Equal(t, existing, chatID)
}

func TestProvisionChatRateLimited(t *testing.T) {
	stub := &userbotStub{
		status:   http.StatusOK,
		response: CreateGroupResponse{ChatID: -1001234567890, ChatTitle: "x"},
	}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	p, conn, fake, node := newProvisioner(t, srv.URL)
	first := seedRestaurant(t, conn, node)
	second := seedRestaurant(t, conn, node)

	_, err := p.ProvisionChat(context.Background(), first, 500)
	require.NoError(t, err)

	// Cooldown still running for the same owner.
	fake.Advance(10 * time.Second)
	_, err = p.ProvisionChat(context.Background(), second, 500)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Len(t, stub.requests, 1)

	actions, err := NewRepository().ListActions(context.Background(), conn, second)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, ActionFailed, actions[0].Status)
	assert.Equal(t, ratelimit.DenyCooldown, actions[0].Error)
}

func TestProvisionChatBlocksSuspiciousActor(t *testing.T) {
	stub := &userbotStub{
		status:   http.StatusOK,
		response: CreateGroupResponse{ChatID: -1001234567890, ChatTitle: "x"},
	}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	p, conn, fake, node := newProvisioner(t, srv.URL)
	restID := seedRestaurant(t, conn, node)

	// Perfectly even spacing, slow enough to clear cooldown and the
	// per-minute window.
	for _, ago := range []time.Duration{135 * time.Second, 90 * time.Second, 45 * time.Second} {
		require.NoError(t, conn.Create(&ratelimit.RateLimitLog{
			ID: node.Generate(), ActorID: 500, Action: "create_group",
			CreatedAt: fake.Now().Add(-ago),
		}).Error)
	}

	_, err := p.ProvisionChat(context.Background(), restID, 500)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Empty(t, stub.requests)

	var flags []ratelimit.SuspiciousActivity
	require.NoError(t, conn.Find(&flags).Error)
	require.Len(t, flags, 1)
	assert.Equal(t, ratelimit.ReasonUniformIntervals, flags[0].Reason)

	actions, err := NewRepository().ListActions(context.Background(), conn, restID)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, ActionFailed, actions[0].Status)
	assert.Equal(t, "suspicious_activity", actions[0].Error)
}

func TestProvisionChatFloodWait(t *testing.T) {
	stub := &userbotStub{
		status:   http.StatusTooManyRequests,
		response: map[string]any{"error": "flood", "seconds": 120},
	}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	p, conn, _, node := newProvisioner(t, srv.URL)
	restID := seedRestaurant(t, conn, node)

	_, err := p.ProvisionChat(context.Background(), restID, 500)
	assert.ErrorIs(t, err, ErrFloodWait)
	assert.Contains(t, err.Error(), "120 seconds")

	rest, ferr := restaurant.NewRepository().FindByID(context.Background(), conn, restID)
	require.NoError(t, ferr)
	assert.False(t, rest.Bound())
}

func TestProvisionChatDisabled(t *testing.T) {
	p, conn, _, node := newProvisioner(t, "")
	restID := seedRestaurant(t, conn, node)

	_, err := p.ProvisionChat(context.Background(), restID, 500)
	assert.ErrorIs(t, err, ErrDisabled)
}
