package gate

import (
	"go.uber.org/zap"

	"github.com/xaenox/teams-assistant-bot/internal/teams"
)

// Gate filters inbound messages before they reach the assistant relay.
// Eligibility and the tenant allow-list are independent checks; a
// message must pass both.
type Gate struct {
	allowedTenants map[string]struct{}
	logger         *zap.Logger
}

func New(tenantAllowList []string, logger *zap.Logger) *Gate {
	allowed := make(map[string]struct{}, len(tenantAllowList))
	for _, tenant := range tenantAllowList {
		if tenant != "" {
			allowed[tenant] = struct{}{}
		}
	}
	return &Gate{
		allowedTenants: allowed,
		logger:         logger,
	}
}

// Eligible reports whether a message may be relayed at all. Only 1:1
// personal conversations qualify; group and team channels do not.
// Direct web-chat traffic carries no conversation type and is admitted
// by channel id.
func (g *Gate) Eligible(conversationType, channelID string) bool {
	if conversationType == teams.ConversationPersonal || conversationType == "" {
		return true
	}
	return isDirectChannel(channelID)
}

// TenantAllowed reports whether the calling tenant may use the bot. An
// empty allow-list disables the check entirely, and the direct web-chat
// channel is always exempt so the bot stays testable.
func (g *Gate) TenantAllowed(tenantID, channelID string) bool {
	if len(g.allowedTenants) == 0 {
		return true
	}
	if isDirectChannel(channelID) {
		return true
	}
	if tenantID == "" {
		g.logger.Warn("message without tenant id while allow-list is active",
			zap.String("channel_id", channelID))
		return false
	}
	_, ok := g.allowedTenants[tenantID]
	return ok
}

func isDirectChannel(channelID string) bool {
	return channelID == teams.ChannelWebChat || channelID == teams.ChannelEmulator
}
