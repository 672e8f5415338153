package notify

import (
	"context"
	"testing"
)

func TestRecorder(t *testing.T) {
	var r Recorder
	if _, ok := r.Last(); ok {
		t.Fatal("expected no notice yet")
	}
	r.Success(context.Background(), "saved")
	r.Error(context.Background(), "failed")

	got := r.Notices()
	if len(got) != 2 || got[0].Level != LevelSuccess || got[1].Message != "failed" {
		t.Fatalf("unexpected notices: %+v", got)
	}
	if last, _ := r.Last(); last.Level != LevelError {
		t.Fatalf("unexpected last: %+v", last)
	}
}

func TestContextualFansOut(t *testing.T) {
	var base, perRequest Recorder
	n := Contextual{Base: &base}

	ctx := WithNotifier(context.Background(), &perRequest)
	n.Success(ctx, "one")
	n.Error(context.Background(), "two")

	if len(base.Notices()) != 2 {
		t.Fatalf("base should see every notice, got %+v", base.Notices())
	}
	got := perRequest.Notices()
	if len(got) != 1 || got[0].Message != "one" {
		t.Fatalf("request recorder should only see its own notice, got %+v", got)
	}
}
