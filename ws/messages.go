package ws

const (
	MessagePing    = "ping"
	MessagePong    = "pong"
	MessageError   = "error"
	MessageViewers = "viewers_changed"
)

type IncomingMessage struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

type OutgoingMessage struct {
	Type    string      `json:"type"`
	MatchID int64       `json:"matchId,omitempty"`
	Payload interface{} `json:"payload"`
}

type ViewersPayload struct {
	Count int `json:"count"`
}
