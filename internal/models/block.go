package models

import (
	"time"

	"github.com/google/uuid"
)

// Blocking records that UserID blocked BlockedUserID.
type Blocking struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	BlockedUserID uuid.UUID `json:"blocked_user_id"`
	CreatedAt     time.Time `json:"created_at"`
}
