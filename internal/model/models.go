package model

import (
	"gorm.io/datatypes"
)

// Event types form a closed set; ingestion rejects anything else.
const (
	TypeVoteCast            = "vote_cast"
	TypeConversationStarted = "conversation_started"
	TypeConversationEnded   = "conversation_ended"
	TypeTurnCreated         = "turn_created"
	TypeTurnCompleted       = "turn_completed"
	TypeTurnFailed          = "turn_failed"
	TypeJourneyStep         = "journey_step"
	TypeUserAction          = "user_action"
)

var eventTypes = map[string]bool{
	TypeVoteCast:            true,
	TypeConversationStarted: true,
	TypeConversationEnded:   true,
	TypeTurnCreated:         true,
	TypeTurnCompleted:       true,
	TypeTurnFailed:          true,
	TypeJourneyStep:         true,
	TypeUserAction:          true,
}

func ValidEventType(t string) bool { return eventTypes[t] }

// Event is the only persisted entity. Timestamp is the event's logical
// occurrence time in epoch milliseconds, supplied by the client; it is not
// monotonic across rows. Properties keeps the open payload bag as a JSON
// blob so new event shapes need no schema change.
type Event struct {
	EventID        string         `gorm:"type:varchar(128);primaryKey;column:event_id"`
	UserID         string         `gorm:"type:varchar(255);not null;index;column:user_id"`
	EventType      string         `gorm:"type:varchar(40);not null;index:idx_events_type_ts,priority:1;column:event_type"`
	Timestamp      int64          `gorm:"not null;index;index:idx_events_type_ts,priority:2,sort:desc;column:timestamp"`
	JourneyID      *string        `gorm:"type:varchar(255);index;column:journey_id"`
	ConversationID *string        `gorm:"type:varchar(255);index;column:conversation_id"`
	TurnSequence   *int64         `gorm:"column:turn_sequence"`
	PromptText     string         `gorm:"type:text;column:prompt_text"`
	AIResponse     string         `gorm:"type:text;column:ai_response"`
	Properties     datatypes.JSON `gorm:"type:jsonb;not null;column:properties"`
}

func (Event) TableName() string { return "events" }
