package store

import (
	"context"
	"testing"

	"github.com/Mocksi/bilan-sub001/internal/model"
	"github.com/Mocksi/bilan-sub001/internal/obs"
	"github.com/Mocksi/bilan-sub001/internal/testkit"
	"gorm.io/datatypes"
)

func ev(id, typ string, ts int64) model.Event {
	return model.Event{
		EventID:    id,
		UserID:     "u1",
		EventType:  typ,
		Timestamp:  ts,
		Properties: datatypes.JSON([]byte(`{}`)),
	}
}

func TestInsertEventsBatch_Idempotence(t *testing.T) {
	t.Parallel()

	db := testkit.OpenTestDB(t)
	ctx := context.Background()

	// Duplicate inside one batch.
	out, err := InsertEventsBatch(ctx, db, []model.Event{
		ev("e1", model.TypeUserAction, 1000),
		ev("e1", model.TypeUserAction, 1000),
		ev("e2", model.TypeVoteCast, 2000),
	})
	if err != nil {
		t.Fatalf("InsertEventsBatch: %v", err)
	}
	if out.Processed != 2 || out.Skipped != 1 || len(out.Errors) != 0 {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	// Duplicate across calls.
	out, err = InsertEventsBatch(ctx, db, []model.Event{ev("e1", model.TypeUserAction, 1000)})
	if err != nil {
		t.Fatalf("InsertEventsBatch: %v", err)
	}
	if out.Processed != 0 || out.Skipped != 1 || len(out.Errors) != 0 {
		t.Fatalf("expected duplicate to be skipped, not errored: %+v", out)
	}

	var n int64
	if err := db.Model(&model.Event{}).Where("event_id = ?", "e1").Count(&n).Error; err != nil || n != 1 {
		t.Fatalf("expected exactly one stored row, n=%d err=%v", n, err)
	}
}

func TestInsertEventsBatch_PartialFailure(t *testing.T) {
	t.Parallel()

	db := testkit.OpenTestDB(t)
	ctx := context.Background()

	bad1 := ev("", model.TypeUserAction, 1000)
	bad2 := ev("e-type", "mystery_event", 1000)
	bad3 := ev("e-ts", model.TypeUserAction, 0)
	bad4 := ev("e-user", model.TypeUserAction, 1000)
	bad4.UserID = " "
	good := ev("e-ok", model.TypeJourneyStep, 1000)

	out, err := InsertEventsBatch(ctx, db, []model.Event{bad1, bad2, bad3, bad4, good})
	if err != nil {
		t.Fatalf("InsertEventsBatch: %v", err)
	}
	if out.Processed != 1 || out.Skipped != 0 || len(out.Errors) != 4 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.Errors[1].Index != 1 || out.Errors[1].EventID != "e-type" {
		t.Fatalf("unexpected record error: %+v", out.Errors[1])
	}

	// The valid sibling was persisted despite the failures.
	if _, ok, err := GetEvent(ctx, db, "e-ok"); err != nil || !ok {
		t.Fatalf("expected e-ok persisted, ok=%v err=%v", ok, err)
	}
}

func TestInsertEventsBatch_TurnSequenceNeverZero(t *testing.T) {
	t.Parallel()

	db := testkit.OpenTestDB(t)
	ctx := context.Background()

	zero := int64(0)
	neg := int64(-4)
	pos := int64(3)
	e1 := ev("s0", model.TypeTurnCompleted, 1000)
	e1.TurnSequence = &zero
	e2 := ev("s-neg", model.TypeTurnCompleted, 1000)
	e2.TurnSequence = &neg
	e3 := ev("s3", model.TypeTurnCompleted, 1000)
	e3.TurnSequence = &pos

	if _, err := InsertEventsBatch(ctx, db, []model.Event{e1, e2, e3}); err != nil {
		t.Fatalf("InsertEventsBatch: %v", err)
	}

	for _, id := range []string{"s0", "s-neg"} {
		got, ok, err := GetEvent(ctx, db, id)
		if err != nil || !ok {
			t.Fatalf("GetEvent(%s): ok=%v err=%v", id, ok, err)
		}
		if got.TurnSequence != nil {
			t.Fatalf("expected %s turn_sequence null, got %d", id, *got.TurnSequence)
		}
	}
	got, _, _ := GetEvent(ctx, db, "s3")
	if got.TurnSequence == nil || *got.TurnSequence != 3 {
		t.Fatalf("expected s3 turn_sequence=3, got %v", got.TurnSequence)
	}
}

func TestQueryEvents_Filters(t *testing.T) {
	t.Parallel()

	db := testkit.OpenTestDB(t)
	ctx := context.Background()

	j := "j1"
	c := "c1"
	rows := []model.Event{
		ev("q1", model.TypeVoteCast, 1000),
		ev("q2", model.TypeVoteCast, 2000),
		ev("q3", model.TypeUserAction, 3000),
		ev("q4", model.TypeJourneyStep, 4000),
	}
	rows[2].UserID = "u2"
	rows[3].JourneyID = &j
	rows[3].ConversationID = &c
	if _, err := InsertEventsBatch(ctx, db, rows); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Half-open range: end is exclusive.
	start, end := int64(1000), int64(3000)
	got, err := QueryEvents(ctx, db, Filter{Start: &start, End: &end})
	if err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}
	if len(got) != 2 || got[0].EventID != "q1" || got[1].EventID != "q2" {
		t.Fatalf("unexpected range result: %+v", got)
	}

	got, err = QueryEvents(ctx, db, Filter{Types: []string{model.TypeVoteCast, model.TypeJourneyStep}})
	if err != nil || len(got) != 3 {
		t.Fatalf("type filter: len=%d err=%v", len(got), err)
	}

	got, err = QueryEvents(ctx, db, Filter{UserID: "u2"})
	if err != nil || len(got) != 1 || got[0].EventID != "q3" {
		t.Fatalf("user filter: %+v err=%v", got, err)
	}

	got, err = QueryEvents(ctx, db, Filter{JourneyID: "j1"})
	if err != nil || len(got) != 1 || got[0].EventID != "q4" {
		t.Fatalf("journey filter: %+v err=%v", got, err)
	}

	got, err = QueryEvents(ctx, db, Filter{Limit: 2, Offset: 1})
	if err != nil || len(got) != 2 || got[0].EventID != "q2" {
		t.Fatalf("limit/offset: %+v err=%v", got, err)
	}

	// Invalid range rejected before touching storage.
	badStart, badEnd := int64(5000), int64(1000)
	if _, err := QueryEvents(ctx, db, Filter{Start: &badStart, End: &badEnd}); err != ErrInvalidRange {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestGetEvent_NotFound(t *testing.T) {
	t.Parallel()

	db := testkit.OpenTestDB(t)
	if _, ok, err := GetEvent(context.Background(), db, "nope"); err != nil || ok {
		t.Fatalf("expected (ok=false, err=nil), got ok=%v err=%v", ok, err)
	}
}

func TestWriter_AfterCommit(t *testing.T) {
	t.Parallel()

	db := testkit.OpenTestDB(t)
	ctx := context.Background()

	fired := 0
	w := &Writer{DB: db, Stats: obs.New(), AfterCommit: func() { fired++ }}

	if _, err := w.InsertEvent(ctx, ev("w1", model.TypeUserAction, 1000)); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	if fired != 1 {
		t.Fatalf("expected AfterCommit once, fired=%d", fired)
	}

	// All-duplicate batch commits nothing, so the hook stays quiet.
	if _, err := w.InsertEvent(ctx, ev("w1", model.TypeUserAction, 1000)); err != nil {
		t.Fatalf("InsertEvent dup: %v", err)
	}
	if fired != 1 {
		t.Fatalf("expected no invalidation for pure-skip write, fired=%d", fired)
	}
}
