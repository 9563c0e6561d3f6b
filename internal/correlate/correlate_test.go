package correlate

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Mocksi/bilan-sub001/internal/model"
	"github.com/Mocksi/bilan-sub001/internal/testkit"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func mkEvent(t *testing.T, id, typ string, ts int64, props map[string]any) model.Event {
	t.Helper()
	if props == nil {
		props = map[string]any{}
	}
	b, err := json.Marshal(props)
	if err != nil {
		t.Fatalf("marshal props: %v", err)
	}
	return model.Event{
		EventID:    id,
		UserID:     "u1",
		EventType:  typ,
		Timestamp:  ts,
		Properties: datatypes.JSON(b),
	}
}

func seed(t *testing.T, db *gorm.DB, events ...model.Event) {
	t.Helper()
	for i := range events {
		if err := db.Create(&events[i]).Error; err != nil {
			t.Fatalf("seed %s: %v", events[i].EventID, err)
		}
	}
}

func TestResolveTurnID_Precedence(t *testing.T) {
	t.Parallel()

	both := map[string]any{PropTurnID: "t-current", PropPromptID: "p-legacy"}
	if got := ResolveTurnID(both, "e1"); got != "t-current" {
		t.Fatalf("expected current turn id to win, got %q", got)
	}
	legacy := map[string]any{PropPromptID: "p-legacy"}
	if got := ResolveTurnID(legacy, "e1"); got != "p-legacy" {
		t.Fatalf("expected legacy prompt id, got %q", got)
	}
	if got := ResolveTurnID(nil, "e1"); got != "unknown_turn_e1" {
		t.Fatalf("expected synthesized id, got %q", got)
	}
	blank := map[string]any{PropTurnID: "  ", PropPromptID: ""}
	if got := ResolveTurnID(blank, "e2"); got != "unknown_turn_e2" {
		t.Fatalf("expected blank identifiers to synthesize, got %q", got)
	}
}

func TestNormalizeTurnSequence(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   any
		want *int64
	}{
		{"", nil},
		{"abc", nil},
		{"0", nil},
		{"-5", nil},
		{"  123  ", i64(123)},
		{"1.5", nil},
		{float64(3), i64(3)},
		{float64(1.5), nil},
		{float64(0), nil},
		{float64(-2), nil},
		{int(7), i64(7)},
		{int64(42), i64(42)},
		{json.Number("9"), i64(9)},
		{json.Number("-9"), nil},
		{true, nil},
		{nil, nil},
	}
	for _, tc := range cases {
		got := NormalizeTurnSequence(tc.in)
		switch {
		case tc.want == nil && got != nil:
			t.Fatalf("NormalizeTurnSequence(%v) = %d, want nil", tc.in, *got)
		case tc.want != nil && (got == nil || *got != *tc.want):
			t.Fatalf("NormalizeTurnSequence(%v) = %v, want %d", tc.in, got, *tc.want)
		}
	}
}

func i64(n int64) *int64 { return &n }

func TestMigrateVoteTurnIDs(t *testing.T) {
	t.Parallel()

	db := testkit.OpenTestDB(t)
	ctx := context.Background()

	seed(t, db,
		mkEvent(t, "v-legacy", model.TypeVoteCast, 1000, map[string]any{PropPromptID: "p1", "value": 1}),
		mkEvent(t, "v-none", model.TypeVoteCast, 2000, map[string]any{"value": -1}),
		mkEvent(t, "v-current", model.TypeVoteCast, 3000, map[string]any{PropTurnID: "t1"}),
		mkEvent(t, "turn-1", model.TypeTurnCompleted, 500, map[string]any{PropTurnID: "t1"}),
	)

	n, err := MigrateVoteTurnIDs(ctx, db, 2)
	if err != nil {
		t.Fatalf("MigrateVoteTurnIDs: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 migrated rows, got %d", n)
	}

	var legacy model.Event
	if err := db.Where("event_id = ?", "v-legacy").First(&legacy).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	props := Properties(legacy)
	if props[PropTurnID] != "p1" {
		t.Fatalf("expected legacy vote to gain turnId=p1, got %v", props[PropTurnID])
	}
	if props[PropPromptID] != "p1" {
		t.Fatalf("expected promptId preserved, got %v", props[PropPromptID])
	}

	var none model.Event
	if err := db.Where("event_id = ?", "v-none").First(&none).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := Properties(none)[PropTurnID]; got != "unknown_turn_v-none" {
		t.Fatalf("expected synthesized turnId, got %v", got)
	}

	// Idempotent: nothing left to rewrite.
	n, err = MigrateVoteTurnIDs(ctx, db, 2)
	if err != nil || n != 0 {
		t.Fatalf("second run: n=%d err=%v", n, err)
	}
}

func TestResolveTurnVoteCorrelation(t *testing.T) {
	t.Parallel()

	db := testkit.OpenTestDB(t)
	ctx := context.Background()

	seed(t, db,
		mkEvent(t, "turn-1", model.TypeTurnCompleted, 100, map[string]any{PropTurnID: "t1"}),
		mkEvent(t, "vote-1", model.TypeVoteCast, 200, map[string]any{PropTurnID: "t1", "value": 1}),
		mkEvent(t, "turn-2", model.TypeTurnCompleted, 300, map[string]any{PropTurnID: "t2"}),
		mkEvent(t, "vote-legacy", model.TypeVoteCast, 400, map[string]any{PropPromptID: "p3", "value": -1}),
		mkEvent(t, "vote-orphan", model.TypeVoteCast, 500, nil),
	)

	// Both sides present.
	c, ok, err := ResolveTurnVoteCorrelation(ctx, db, "t1")
	if err != nil || !ok {
		t.Fatalf("t1: ok=%v err=%v", ok, err)
	}
	if c.Turn == nil || c.Turn.EventID != "turn-1" || c.Vote == nil || c.Vote.EventID != "vote-1" {
		t.Fatalf("t1: unexpected correlation %+v", c)
	}

	// Turn without vote is a valid partial record.
	c, ok, err = ResolveTurnVoteCorrelation(ctx, db, "t2")
	if err != nil || !ok {
		t.Fatalf("t2: ok=%v err=%v", ok, err)
	}
	if c.Turn == nil || c.Vote != nil {
		t.Fatalf("t2: expected turn-only record, got %+v", c)
	}

	// Legacy vote found through the prompt id.
	c, ok, err = ResolveTurnVoteCorrelation(ctx, db, "p3")
	if err != nil || !ok {
		t.Fatalf("p3: ok=%v err=%v", ok, err)
	}
	if c.Turn != nil || c.Vote == nil || c.Vote.EventID != "vote-legacy" {
		t.Fatalf("p3: expected vote-only record, got %+v", c)
	}

	// Synthesized id resolves back to its vote.
	c, ok, err = ResolveTurnVoteCorrelation(ctx, db, "unknown_turn_vote-orphan")
	if err != nil || !ok {
		t.Fatalf("synth: ok=%v err=%v", ok, err)
	}
	if c.Vote == nil || c.Vote.EventID != "vote-orphan" {
		t.Fatalf("synth: expected orphan vote, got %+v", c)
	}

	// Neither side exists.
	_, ok, err = ResolveTurnVoteCorrelation(ctx, db, "missing")
	if err != nil || ok {
		t.Fatalf("missing: expected ok=false err=nil, got ok=%v err=%v", ok, err)
	}
}
