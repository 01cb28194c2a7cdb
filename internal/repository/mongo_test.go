package repository

import (
	"testing"

	"counselmeet/internal/models"

	"go.mongodb.org/mongo-driver/bson"
)

func TestChangesToUpdateReleasesSlotOnTerminalStatus(t *testing.T) {
	update := changesToUpdate(MeetingChanges{Status: models.StatusCancelled, CancellationReason: strPtr("expired")})

	set := update["$set"].(bson.M)
	if set["status"] != models.StatusCancelled || set["cancellation_reason"] != "expired" {
		t.Fatalf("$set = %v", set)
	}
	unset, ok := update["$unset"].(bson.M)
	if !ok {
		t.Fatal("expected $unset")
	}
	if _, ok := unset["slot_hold"]; !ok {
		t.Fatalf("$unset = %v", unset)
	}
}

func TestChangesToUpdateSetsSlotHold(t *testing.T) {
	update := changesToUpdate(MeetingChanges{
		Status:   models.StatusTimeSelected,
		SlotHold: strPtr("c1|2026-03-10|10:00"),
	})
	set := update["$set"].(bson.M)
	if set["slot_hold"] != "c1|2026-03-10|10:00" {
		t.Fatalf("$set = %v", set)
	}
	if _, ok := update["$unset"]; ok {
		t.Fatalf("unexpected $unset: %v", update)
	}
}

func TestChangesToUpdateLeavesUntouchedFields(t *testing.T) {
	active := false
	update := changesToUpdate(MeetingChanges{GraceActive: &active})
	set := update["$set"].(bson.M)
	if len(set) != 1 || set["grace_active"] != false {
		t.Fatalf("$set = %v", set)
	}
}
