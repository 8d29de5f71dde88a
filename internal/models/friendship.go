package models

import (
	"time"

	"github.com/google/uuid"
)

// FriendshipRequestState is derived from a request's timestamps; accepted and
// canceled requests no longer exist as rows.
type FriendshipRequestState string

const (
	FriendshipRequestPending  FriendshipRequestState = "pending"
	FriendshipRequestRejected FriendshipRequestState = "rejected"
)

type FriendshipRequest struct {
	ID         uuid.UUID  `json:"id"`
	FromUserID uuid.UUID  `json:"from_user_id"`
	ToUserID   uuid.UUID  `json:"to_user_id"`
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"created_at"`
	RejectedAt *time.Time `json:"rejected_at,omitempty"`
	ViewedAt   *time.Time `json:"viewed_at,omitempty"`
}

func (r *FriendshipRequest) State() FriendshipRequestState {
	if r.RejectedAt != nil {
		return FriendshipRequestRejected
	}
	return FriendshipRequestPending
}

func (r *FriendshipRequest) IsPending() bool {
	return r.State() == FriendshipRequestPending
}

func (r *FriendshipRequest) IsViewed() bool {
	return r.ViewedAt != nil
}

// Friend is one direction of a confirmed friendship. A row FromUserID->ToUserID
// always has a twin ToUserID->FromUserID.
type Friend struct {
	ID         uuid.UUID `json:"id"`
	FromUserID uuid.UUID `json:"from_user_id"`
	ToUserID   uuid.UUID `json:"to_user_id"`
	CreatedAt  time.Time `json:"created_at"`
}
