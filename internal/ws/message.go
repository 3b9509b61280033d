package ws

import "time"

// Message is the envelope for all WebSocket messages. Topic and Source carry
// the bus event identity; Data is the event payload as published.
type Message struct {
	Topic     string    `json:"topic"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}
