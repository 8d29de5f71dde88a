package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/socialgraph/internal/models"
)

// FriendServiceInterface defines the contract for friendship requests and friendships.
type FriendServiceInterface interface {
	Friends(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	AreFriends(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error)
	Requests(ctx context.Context, userID uuid.UUID) ([]models.FriendshipRequest, error)
	SentRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendshipRequest, error)
	UnreadRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendshipRequest, error)
	ReadRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendshipRequest, error)
	RejectedRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendshipRequest, error)
	UnrejectedRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendshipRequest, error)
	UnreadRequestCount(ctx context.Context, userID uuid.UUID) (int, error)
	UnrejectedRequestCount(ctx context.Context, userID uuid.UUID) (int, error)
	GetRequest(ctx context.Context, requestID uuid.UUID) (*models.FriendshipRequest, error)
	AddFriend(ctx context.Context, fromUserID, toUserID uuid.UUID, message string) (*models.FriendshipRequest, error)
	Accept(ctx context.Context, requestID uuid.UUID) error
	Reject(ctx context.Context, requestID uuid.UUID) (*models.FriendshipRequest, error)
	Cancel(ctx context.Context, requestID uuid.UUID) error
	MarkViewed(ctx context.Context, requestID uuid.UUID) (*models.FriendshipRequest, error)
	RemoveFriend(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error)
}

// FriendChecker is a lightweight interface for hosts that only need friendship checks.
type FriendChecker interface {
	AreFriends(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error)
}

// BlockServiceInterface defines the contract for blocking operations.
type BlockServiceInterface interface {
	AddBlocking(ctx context.Context, userID, blockedUserID uuid.UUID) (*models.Blocking, error)
	RemoveBlocking(ctx context.Context, userID, blockedUserID uuid.UUID) (bool, error)
	IsBlocked(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error)
	IsBlockedEither(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error)
	GetBlocking(ctx context.Context, userID, blockedUserID uuid.UUID) (*models.Blocking, error)
	BlockedForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// InspirationServiceInterface defines the contract for follow operations.
type InspirationServiceInterface interface {
	AddInspiration(ctx context.Context, userID, inspiredByID uuid.UUID) (*models.Inspiration, error)
	RemoveInspiration(ctx context.Context, userID, inspiredByID uuid.UUID) (bool, error)
	GetInspiration(ctx context.Context, userID, inspiredByID uuid.UUID) (*models.Inspiration, error)
	InspiredByUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	UserInspiredBy(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	IsInspired(ctx context.Context, userID, inspiredByID uuid.UUID) (bool, error)
}

var (
	_ FriendServiceInterface      = (*FriendService)(nil)
	_ FriendChecker               = (*FriendService)(nil)
	_ BlockServiceInterface       = (*BlockService)(nil)
	_ InspirationServiceInterface = (*InspirationService)(nil)
)
