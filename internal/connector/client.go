package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/xaenox/teams-assistant-bot/internal/teams"
)

const (
	// Bot Framework client-credentials endpoint and scope.
	tokenURL = "https://login.microsoftonline.com/botframework.com/oauth2/v2.0/token"
	scope    = "https://api.botframework.com/.default"

	requestTimeout = 15 * time.Second
)

// Client sends activities back through the channel connector that
// delivered the inbound webhook.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a connector client. With application credentials the
// client authenticates via OAuth2 client credentials; without them it
// sends anonymously, which the emulator and local web chat accept.
func New(appID, appPassword string, logger *zap.Logger) *Client {
	if appID == "" {
		return &Client{
			httpClient: &http.Client{Timeout: requestTimeout},
			logger:     logger,
		}
	}

	credentials := clientcredentials.Config{
		ClientID:     appID,
		ClientSecret: appPassword,
		TokenURL:     tokenURL,
		Scopes:       []string{scope},
	}
	httpClient := credentials.Client(context.Background())
	httpClient.Timeout = requestTimeout

	return &Client{
		httpClient: httpClient,
		logger:     logger,
	}
}

// SendActivity posts an activity to the conversation it addresses.
func (c *Client) SendActivity(ctx context.Context, activity teams.Activity) error {
	if activity.ServiceURL == "" {
		return errors.New("activity has no service url")
	}
	if activity.Conversation.ID == "" {
		return errors.New("activity has no conversation id")
	}

	endpoint := fmt.Sprintf("%s/v3/conversations/%s/activities",
		strings.TrimRight(activity.ServiceURL, "/"),
		url.PathEscape(activity.Conversation.ID))

	body, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("failed to encode activity: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send activity: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("connector returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	c.logger.Debug("activity sent",
		zap.String("type", activity.Type),
		zap.String("conversation_id", activity.Conversation.ID))
	return nil
}
