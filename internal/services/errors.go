package services

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("relationship not found")
	ErrRequestNotFound  = fmt.Errorf("friendship request: %w", ErrNotFound)
	ErrDuplicateRequest = errors.New("friendship already requested")
	ErrBlocked          = errors.New("blocking relationship prevents this action")
	ErrSelfRelation     = errors.New("users cannot relate to themselves")
	ErrUserNotFound     = errors.New("user not found")
)
