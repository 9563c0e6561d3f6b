package correlate

import (
	"context"
	"errors"
	"strings"

	"github.com/Mocksi/bilan-sub001/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TurnVoteCorrelation joins a turn-completion event with the vote that
// rates it. Either side may be absent; a turn with no vote is a common,
// valid case.
type TurnVoteCorrelation struct {
	TurnID string       `json:"turn_id"`
	Turn   *model.Event `json:"turn,omitempty"`
	Vote   *model.Event `json:"vote,omitempty"`
}

// ResolveTurnVoteCorrelation looks up both sides of a canonical turn
// identifier. ok=false only when neither side exists.
func ResolveTurnVoteCorrelation(ctx context.Context, db *gorm.DB, turnID string) (TurnVoteCorrelation, bool, error) {
	turnID = strings.TrimSpace(turnID)
	out := TurnVoteCorrelation{TurnID: turnID}
	if turnID == "" {
		return out, false, nil
	}

	turn, found, err := findTurn(ctx, db, turnID)
	if err != nil {
		return out, false, err
	}
	if found {
		out.Turn = &turn
	}

	vote, found, err := findVote(ctx, db, turnID)
	if err != nil {
		return out, false, err
	}
	if found {
		out.Vote = &vote
	}

	return out, out.Turn != nil || out.Vote != nil, nil
}

func findTurn(ctx context.Context, db *gorm.DB, turnID string) (model.Event, bool, error) {
	var e model.Event
	err := db.WithContext(ctx).
		Where("event_type = ?", model.TypeTurnCompleted).
		Where(datatypes.JSONQuery("properties").Equals(turnID, PropTurnID)).
		Order("timestamp ASC").
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Event{}, false, nil
	}
	if err != nil {
		return model.Event{}, false, err
	}
	return e, true, nil
}

func findVote(ctx context.Context, db *gorm.DB, turnID string) (model.Event, bool, error) {
	// Synthesized ids point back at the vote that produced them.
	if id, ok := strings.CutPrefix(turnID, UnknownTurnPrefix); ok {
		var e model.Event
		err := db.WithContext(ctx).
			Where("event_id = ? AND event_type = ?", id, model.TypeVoteCast).
			First(&e).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Event{}, false, nil
		}
		if err != nil {
			return model.Event{}, false, err
		}
		if TurnIDFromEvent(e) == turnID {
			return e, true, nil
		}
		return model.Event{}, false, nil
	}

	// Candidates can match on either generation's property; the canonical
	// resolution decides, so a vote carrying both names only matches on
	// its current turn id.
	var candidates []model.Event
	err := db.WithContext(ctx).
		Where("event_type = ?", model.TypeVoteCast).
		Where(db.Where(datatypes.JSONQuery("properties").Equals(turnID, PropTurnID)).
			Or(datatypes.JSONQuery("properties").Equals(turnID, PropPromptID))).
		Order("timestamp ASC").
		Limit(16).
		Find(&candidates).Error
	if err != nil {
		return model.Event{}, false, err
	}
	for _, c := range candidates {
		if TurnIDFromEvent(c) == turnID {
			return c, true, nil
		}
	}
	return model.Event{}, false, nil
}
