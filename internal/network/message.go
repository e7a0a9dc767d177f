package network

import (
	"github.com/goccy/go-json"

	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/events"
)

// Message is the envelope every dashboard terminal receives.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Dashboard message types.
const (
	MessageStats  = "stats"
	MessageLog    = "log"
	MessageThreat = "threat"
	MessageFace   = "face"
	MessageAlert  = "alert"
)

var messageTypes = map[events.EventType]string{
	events.EventTypeTunnelStats:        MessageStats,
	events.EventTypeDPILog:             MessageLog,
	events.EventTypeThreatLevelChanged: MessageThreat,
	events.EventTypeFaceDetected:       MessageFace,
	events.EventTypeAlertReceived:      MessageAlert,
}

// MessageTypeFor maps an event type to its dashboard message type.
// Events with no dashboard representation report false.
func MessageTypeFor(t events.EventType) (string, bool) {
	mt, ok := messageTypes[t]
	return mt, ok
}

// EncodeEvent wraps e in a Message and serializes it.
func EncodeEvent(e events.Event) ([]byte, bool, error) {
	mt, ok := MessageTypeFor(e.Type)
	if !ok {
		return nil, false, nil
	}
	b, err := json.Marshal(Message{Type: mt, Payload: e.Payload})
	if err != nil {
		return nil, true, err
	}
	return b, true, nil
}
