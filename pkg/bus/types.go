package bus

// InboundMessage is one normalized inbound event from a messaging channel.
type InboundMessage struct {
	Platform   string            `json:"platform"`
	SenderID   string            `json:"sender_id"`
	ReplyTo    string            `json:"reply_to"`
	Content    string            `json:"content"`
	SessionKey string            `json:"session_key"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage carries the resolved reply back to a channel adapter.
type OutboundMessage struct {
	Platform   string            `json:"platform"`
	ReplyTo    string            `json:"reply_to"`
	SessionKey string            `json:"session_key,omitempty"`
	Content    string            `json:"content"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
