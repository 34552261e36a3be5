package bot

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/xaenox/teams-assistant-bot/internal/auth"
	"github.com/xaenox/teams-assistant-bot/internal/gate"
	"github.com/xaenox/teams-assistant-bot/internal/teams"
)

const serviceName = "teams-assistant-bot"

// Fixed user-facing texts sent by the handler itself.
const (
	welcomeText = "Hallo! Ich bin Ihr persönlicher Assistent. " +
		"Schreiben Sie mir einfach eine direkte Nachricht, und ich helfe Ihnen gerne weiter."
	accessDeniedText = "Zugriff verweigert. Ihre Organisation ist nicht freigeschaltet."
	turnErrorText    = "Entschuldigung, es ist ein Fehler aufgetreten."
)

// Responder produces a reply for one user message. It is expected to
// absorb its own failures and always return displayable text.
type Responder interface {
	GetResponse(ctx context.Context, userID, message string) string
}

// Sender delivers an activity back through the channel connector.
type Sender interface {
	SendActivity(ctx context.Context, activity teams.Activity) error
}

// Bot handles the webhook and health endpoints.
type Bot struct {
	relay     Responder
	gate      *gate.Gate
	connector Sender
	appID     string
	metrics   *Metrics
	logger    *zap.Logger
}

func New(relay Responder, gate *gate.Gate, connector Sender, appID string, logger *zap.Logger) *Bot {
	return &Bot{
		relay:     relay,
		gate:      gate,
		connector: connector,
		appID:     appID,
		metrics:   &Metrics{},
		logger:    logger,
	}
}

func (b *Bot) Register(e *echo.Echo) {
	e.GET("/health", b.Health)
	e.POST("/api/messages", b.Messages)
}

func (b *Bot) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "healthy",
		"service":  serviceName,
		"counters": b.metrics.Snapshot(),
	})
}

// Messages is the webhook entry point for channel activities.
func (b *Bot) Messages(c echo.Context) error {
	if b.appID != "" {
		if err := auth.VerifyAppID(c, b.appID); err != nil {
			return err
		}
	}

	var activity teams.Activity
	if err := c.Bind(&activity); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid activity")
	}
	if activity.Type == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid activity")
	}

	b.metrics.Received.Add(1)
	logger := b.logger.With(zap.String("correlation_id", uuid.New().String()))

	switch activity.Type {
	case teams.ActivityMessage:
		return b.handleMessage(c, logger, activity)
	case teams.ActivityConversationUpdate:
		return b.handleConversationUpdate(c, logger, activity)
	default:
		logger.Debug("ignoring activity", zap.String("type", activity.Type))
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (b *Bot) handleMessage(c echo.Context, logger *zap.Logger, activity teams.Activity) error {
	ctx := c.Request().Context()

	logger.Info("message received",
		zap.String("user_id", activity.From.ID),
		zap.String("user_name", activity.From.Name),
		zap.String("channel_id", activity.ChannelID))

	// Only respond in 1:1 conversations
	if !b.gate.Eligible(activity.Conversation.ConversationType, activity.ChannelID) {
		b.metrics.Dropped.Add(1)
		logger.Info("ignoring message in group conversation",
			zap.String("conversation_type", activity.Conversation.ConversationType))
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}

	if !b.gate.TenantAllowed(activity.TenantID(), activity.ChannelID) {
		b.metrics.Denied.Add(1)
		logger.Warn("tenant not on allow-list",
			zap.String("tenant_id", activity.TenantID()),
			zap.String("user_id", activity.From.ID))
		return b.send(c, logger, activity.Reply(accessDeniedText))
	}

	// Show typing indicator while the assistant works; a lost
	// indicator does not fail the turn.
	if err := b.connector.SendActivity(ctx, activity.TypingReply()); err != nil {
		logger.Warn("failed to send typing indicator", zap.Error(err))
	}

	response := b.relay.GetResponse(ctx, activity.From.ID, activity.Text)

	if err := b.connector.SendActivity(ctx, activity.Reply(response)); err != nil {
		b.metrics.Failures.Add(1)
		logger.Error("failed to send reply", zap.Error(err))
		b.trySendTurnError(ctx, logger, activity)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to send reply")
	}

	b.metrics.Relayed.Add(1)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (b *Bot) handleConversationUpdate(c echo.Context, logger *zap.Logger, activity teams.Activity) error {
	for _, member := range activity.MembersAdded {
		if member.ID == activity.Recipient.ID {
			continue
		}
		logger.Info("welcoming new member", zap.String("member_id", member.ID))
		if err := b.connector.SendActivity(c.Request().Context(), activity.Reply(welcomeText)); err != nil {
			b.metrics.Failures.Add(1)
			logger.Error("failed to send welcome message", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to send welcome message")
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (b *Bot) send(c echo.Context, logger *zap.Logger, activity teams.Activity) error {
	if err := b.connector.SendActivity(c.Request().Context(), activity); err != nil {
		b.metrics.Failures.Add(1)
		logger.Error("failed to send activity", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to send activity")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// trySendTurnError attempts a last apology to the user after a failed
// turn, mirroring the connector error handler behavior.
func (b *Bot) trySendTurnError(ctx context.Context, logger *zap.Logger, activity teams.Activity) {
	if err := b.connector.SendActivity(ctx, activity.Reply(turnErrorText)); err != nil {
		logger.Error("failed to send turn error message", zap.Error(err))
	}
}
