package groups

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Stugi/resto-worker/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrDisabled = errors.New("userbot_disabled")

// FloodWaitError is the platform asking the userbot to back off. Callers
// retry after Seconds.
type FloodWaitError struct {
	Seconds int
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait %ds", e.Seconds)
}

// CreateGroupRequest asks the userbot to create a supergroup, invite the
// bot and promote it to admin.
type CreateGroupRequest struct {
	Title       string  `json:"title"`
	BotUsername string  `json:"bot_username"`
	MemberIDs   []int64 `json:"member_ids,omitempty"`
}

type CreateGroupResponse struct {
	ChatID    int64  `json:"chat_id"`
	ChatTitle string `json:"chat_title"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Seconds int    `json:"seconds,omitempty"`
}

type ClientParams struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

// Client talks to the userbot sidecar over HTTP. The sidecar holds the
// user session that can create chats, which a bot account cannot.
type Client struct {
	enabled bool
	baseURL string
	token   string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(p ClientParams) *Client {
	return &Client{
		enabled: p.Config.UserbotEnabled,
		baseURL: p.Config.UserbotBaseURL,
		token:   p.Config.UserbotAuthToken,
		http:    &http.Client{Timeout: 90 * time.Second},
		log:     p.Log.Named("groups.client"),
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.enabled
}

func (c *Client) CreateGroup(ctx context.Context, req CreateGroupRequest) (*CreateGroupResponse, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/groups", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("userbot request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("userbot response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var out CreateGroupResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("userbot response parse: %w", err)
		}
		return &out, nil
	case http.StatusTooManyRequests:
		var e errorResponse
		if err := json.Unmarshal(raw, &e); err != nil || e.Seconds <= 0 {
			return nil, &FloodWaitError{Seconds: 60}
		}
		return nil, &FloodWaitError{Seconds: e.Seconds}
	default:
		var e errorResponse
		if err := json.Unmarshal(raw, &e); err == nil && e.Error != "" {
			return nil, fmt.Errorf("userbot: %s", e.Error)
		}
		return nil, fmt.Errorf("userbot: status %d", resp.StatusCode)
	}
}
