package mappers

import (
	"time"

	"github.com/iota-uz/provisioning-sdk/modules/assistant/domain/entities/conversation"
)

type MessageView struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Text      string `json:"text"`
	CSSClass  string `json:"cssClass"`
	Timestamp string `json:"timestamp"`
}

type ConversationView struct {
	ID        string        `json:"id"`
	Loading   bool          `json:"loading"`
	CreatedAt string        `json:"createdAt"`
	UpdatedAt string        `json:"updatedAt"`
	Messages  []MessageView `json:"messages"`
}

func ConversationToView(c conversation.Conversation) ConversationView {
	msgs := c.Messages()
	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, MessageView{
			ID:        m.ID().String(),
			Role:      string(m.Role()),
			Text:      m.Text(),
			CSSClass:  m.Role().CSSClass(),
			Timestamp: m.Timestamp().Format(time.RFC3339),
		})
	}
	return ConversationView{
		ID:        c.ID().String(),
		Loading:   c.Pending(),
		CreatedAt: c.CreatedAt().Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt().Format(time.RFC3339),
		Messages:  views,
	}
}
