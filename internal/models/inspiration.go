package models

import (
	"time"

	"github.com/google/uuid"
)

// Inspiration is a one-way follow: FromUserID is inspired by ToUserID.
// Symmetric is true while ToUserID also follows FromUserID.
type Inspiration struct {
	ID         uuid.UUID `json:"id"`
	FromUserID uuid.UUID `json:"from_user_id"`
	ToUserID   uuid.UUID `json:"to_user_id"`
	Symmetric  bool      `json:"symmetric"`
	CreatedAt  time.Time `json:"created_at"`
}
