package domain

// Message is the wire envelope accepted by every ingress transport.
type Message struct {
	Text           string  `json:"text"`
	ChatID         *int64  `json:"chat_id,omitempty"`
	ChatTitle      *string `json:"chat_title,omitempty"`
	MessageID      *int64  `json:"message_id,omitempty"`
	SenderID       *int64  `json:"sender_id,omitempty"`
	SenderUsername *string `json:"sender_username,omitempty"`
}

// Source returns the provenance carried by the envelope. MessageText is
// left nil so the pipeline records the text it actually scanned.
func (m Message) Source() Source {
	return Source{
		ChatID:         m.ChatID,
		ChatTitle:      m.ChatTitle,
		MessageID:      m.MessageID,
		SenderID:       m.SenderID,
		SenderUsername: m.SenderUsername,
	}
}
