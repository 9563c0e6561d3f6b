package ingest

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Mocksi/bilan-sub001/internal/correlate"
	"github.com/Mocksi/bilan-sub001/internal/model"
)

// EventPayload is the wire shape accepted by the ingest endpoints. Only
// userId and eventType are mandatory; everything else is defaulted or
// normalized on the way to a row.
type EventPayload struct {
	EventID        string         `json:"eventId,omitempty"`
	UserID         string         `json:"userId"`
	EventType      string         `json:"eventType"`
	Timestamp      *int64         `json:"timestamp,omitempty"`
	JourneyID      string         `json:"journeyId,omitempty"`
	ConversationID string         `json:"conversationId,omitempty"`
	TurnSequence   any            `json:"turnSequence,omitempty"`
	PromptText     string         `json:"promptText,omitempty"`
	AIResponse     string         `json:"aiResponse,omitempty"`
	Properties     map[string]any `json:"properties,omitempty"`
}

// NSQMessage is the envelope published to the events topic for async
// ingestion.
type NSQMessage struct {
	Type     string          `json:"type"`
	Received time.Time       `json:"received"`
	Payload  json.RawMessage `json:"payload"`
	Meta     *MessageMeta    `json:"meta,omitempty"`
}

type MessageMeta struct {
	ClientIP  string `json:"client_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// ToModel converts a payload into a storable row. A missing event id is
// synthesized so retried submissions of the same payload stay distinct;
// clients that want idempotence supply their own ids.
func (p EventPayload) ToModel(now time.Time) model.Event {
	eventID := strings.TrimSpace(p.EventID)
	if eventID == "" {
		eventID = uuid.NewString()
	}
	ts := now.UnixMilli()
	if p.Timestamp != nil && *p.Timestamp > 0 {
		ts = *p.Timestamp
	}

	props := p.Properties
	if props == nil {
		props = map[string]any{}
	}
	b, err := json.Marshal(props)
	if err != nil {
		b = []byte("{}")
	}

	e := model.Event{
		EventID:    eventID,
		UserID:     strings.TrimSpace(p.UserID),
		EventType:  strings.TrimSpace(p.EventType),
		Timestamp:  ts,
		PromptText: p.PromptText,
		AIResponse: p.AIResponse,
		Properties: datatypes.JSON(b),
	}
	if v := strings.TrimSpace(p.JourneyID); v != "" {
		e.JourneyID = &v
	}
	if v := strings.TrimSpace(p.ConversationID); v != "" {
		e.ConversationID = &v
	}
	e.TurnSequence = correlate.NormalizeTurnSequence(p.TurnSequence)
	return e
}
