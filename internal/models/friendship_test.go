package models

import (
	"testing"
	"time"
)

func TestFriendshipRequest_State(t *testing.T) {
	now := time.Now()

	pending := &FriendshipRequest{}
	if pending.State() != FriendshipRequestPending || !pending.IsPending() {
		t.Fatalf("expected pending, got %s", pending.State())
	}

	viewed := &FriendshipRequest{ViewedAt: &now}
	if !viewed.IsPending() {
		t.Fatal("viewing a request must not change its state")
	}
	if !viewed.IsViewed() {
		t.Fatal("expected IsViewed")
	}

	rejected := &FriendshipRequest{RejectedAt: &now}
	if rejected.State() != FriendshipRequestRejected || rejected.IsPending() {
		t.Fatalf("expected rejected, got %s", rejected.State())
	}
}
