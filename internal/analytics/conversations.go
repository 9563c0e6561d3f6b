package analytics

import (
	"github.com/Mocksi/bilan-sub001/internal/correlate"
	"github.com/Mocksi/bilan-sub001/internal/model"
)

// conversationStats aggregates conversation boundary events and turn
// outcomes. Completion is conversation-level (a start whose id also
// ended); success is turn-level (completed turns over completed+failed),
// deliberately not derived from voting.
func conversationStats(events []model.Event) *ConversationStats {
	started := map[string]bool{}
	ended := map[string]bool{}
	var messageCounts []float64
	turnsCompleted, turnsFailed := 0, 0

	for _, e := range events {
		switch e.EventType {
		case model.TypeConversationStarted:
			if id := conversationID(e); id != "" {
				started[id] = true
			}
		case model.TypeConversationEnded:
			id := conversationID(e)
			if id == "" {
				continue
			}
			ended[id] = true
			if n, ok := numericProp(correlate.Properties(e), "messageCount"); ok && n >= 0 {
				messageCounts = append(messageCounts, n)
			}
		case model.TypeTurnCompleted:
			turnsCompleted++
		case model.TypeTurnFailed:
			turnsFailed++
		}
	}

	s := &ConversationStats{TotalConversations: len(started)}
	for id := range started {
		if ended[id] {
			s.CompletedConversations++
		}
	}
	if s.TotalConversations > 0 {
		rate := float64(s.CompletedConversations) / float64(s.TotalConversations) * 100
		s.CompletionRate = &rate
	}
	if turnsCompleted+turnsFailed > 0 {
		rate := float64(turnsCompleted) / float64(turnsCompleted+turnsFailed) * 100
		s.SuccessRate = &rate
	}
	if len(messageCounts) > 0 {
		sum := 0.0
		for _, n := range messageCounts {
			sum += n
		}
		avg := sum / float64(len(messageCounts))
		s.AverageMessages = &avg
	}
	return s
}

// conversationID prefers the normalized column; older events only carried
// the id inside the property bag.
func conversationID(e model.Event) string {
	if e.ConversationID != nil && *e.ConversationID != "" {
		return *e.ConversationID
	}
	props := correlate.Properties(e)
	if v, ok := props["conversationId"].(string); ok {
		return v
	}
	return ""
}
