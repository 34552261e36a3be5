package teams

// Activity types handled by the bot. Everything else is acknowledged and ignored.
const (
	ActivityMessage            = "message"
	ActivityTyping             = "typing"
	ActivityConversationUpdate = "conversationUpdate"
)

// Channel identifiers as asserted by the connector.
const (
	ChannelMSTeams  = "msteams"
	ChannelWebChat  = "webchat"
	ChannelEmulator = "emulator"
)

// ConversationPersonal marks a 1:1 chat between a user and the bot.
const ConversationPersonal = "personal"

type ChannelAccount struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type ConversationAccount struct {
	ID               string `json:"id,omitempty"`
	Name             string `json:"name,omitempty"`
	ConversationType string `json:"conversationType,omitempty"`
	TenantID         string `json:"tenantId,omitempty"`
	IsGroup          bool   `json:"isGroup,omitempty"`
}

type TenantInfo struct {
	ID string `json:"id,omitempty"`
}

type ChannelData struct {
	Tenant *TenantInfo `json:"tenant,omitempty"`
}

// Activity is the channel envelope delivered to /api/messages and sent
// back through the connector.
type Activity struct {
	Type         string              `json:"type"`
	ID           string              `json:"id,omitempty"`
	ServiceURL   string              `json:"serviceUrl,omitempty"`
	ChannelID    string              `json:"channelId,omitempty"`
	From         ChannelAccount      `json:"from,omitempty"`
	Recipient    ChannelAccount      `json:"recipient,omitempty"`
	Conversation ConversationAccount `json:"conversation,omitempty"`
	Text         string              `json:"text,omitempty"`
	ReplyToID    string              `json:"replyToId,omitempty"`
	Locale       string              `json:"locale,omitempty"`
	MembersAdded []ChannelAccount    `json:"membersAdded,omitempty"`
	ChannelData  *ChannelData        `json:"channelData,omitempty"`
}

// TenantID returns the tenant asserted by the channel, preferring the
// conversation field over Teams channel data.
func (a *Activity) TenantID() string {
	if a.Conversation.TenantID != "" {
		return a.Conversation.TenantID
	}
	if a.ChannelData != nil && a.ChannelData.Tenant != nil {
		return a.ChannelData.Tenant.ID
	}
	return ""
}

// Reply builds a message activity addressed back to the sender of a.
func (a *Activity) Reply(text string) Activity {
	return Activity{
		Type:         ActivityMessage,
		ServiceURL:   a.ServiceURL,
		ChannelID:    a.ChannelID,
		From:         a.Recipient,
		Recipient:    a.From,
		Conversation: a.Conversation,
		ReplyToID:    a.ID,
		Locale:       a.Locale,
		Text:         text,
	}
}

// TypingReply builds a typing indicator addressed back to the sender of a.
func (a *Activity) TypingReply() Activity {
	reply := a.Reply("")
	reply.Type = ActivityTyping
	reply.ReplyToID = ""
	return reply
}
