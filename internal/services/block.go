package services

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/socialgraph/internal/events"
	"github.com/HammerMeetNail/socialgraph/internal/models"
)

var ErrBlockExists = errors.New("user is already blocked")

type BlockService struct {
	db     DB
	cache  *RelationCache
	events *events.Emitter
}

func NewBlockService(db DB, cache *RelationCache, emitter *events.Emitter) *BlockService {
	return &BlockService{db: db, cache: cache, events: emitter}
}

// AddBlocking records that userID blocks blockedUserID. In the same
// transaction it ends any friendship between them, rejects open requests from
// the blocked user and deletes requests sent by the blocker.
func (s *BlockService) AddBlocking(ctx context.Context, userID, blockedUserID uuid.UUID) (*models.Blocking, error) {
	if userID == blockedUserID {
		return nil, ErrSelfRelation
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin block transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	block := &models.Blocking{}
	err = tx.QueryRow(ctx,
		`INSERT INTO blockings (user_id, blocked_user_id)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id, blocked_user_id) DO NOTHING
		 RETURNING id, user_id, blocked_user_id, created_at`,
		userID, blockedUserID,
	).Scan(&block.ID, &block.UserID, &block.BlockedUserID, &block.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBlockExists
	}
	if err != nil {
		return nil, mapWriteError("insert block", err, ErrBlockExists)
	}

	removedFriends, err := deleteFriendRows(ctx, tx, userID, blockedUserID)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx,
		`UPDATE friendship_requests SET rejected_at = NOW()
		 WHERE from_user_id = $1 AND to_user_id = $2 AND rejected_at IS NULL
		 RETURNING `+requestColumns,
		blockedUserID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("reject requests from blocked user: %w", err)
	}
	rejected, err := scanRequests(rows)
	if err != nil {
		return nil, err
	}

	rows, err = tx.Query(ctx,
		`DELETE FROM friendship_requests
		 WHERE from_user_id = $1 AND to_user_id = $2
		 RETURNING `+requestColumns,
		userID, blockedUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("cancel requests to blocked user: %w", err)
	}
	canceled, err := scanRequests(rows)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit block: %w", err)
	}
	committed = true

	s.cache.bust(ctx, userID, cacheBlocked)
	if len(removedFriends) > 0 {
		s.cache.bust(ctx, userID, cacheFriends)
		s.cache.bust(ctx, blockedUserID, cacheFriends)
	}
	if len(rejected) > 0 {
		s.cache.bust(ctx, userID, receivedRequestKinds...)
		s.cache.bust(ctx, blockedUserID, cacheSentRequests)
	}
	if len(canceled) > 0 {
		s.cache.bust(ctx, blockedUserID, receivedRequestKinds...)
		s.cache.bust(ctx, userID, cacheSentRequests)
	}

	for _, f := range removedFriends {
		_ = s.events.Emit(ctx, events.Event{
			Name:       events.FriendshipRemoved,
			FromUserID: f.FromUserID,
			ToUserID:   f.ToUserID,
		})
	}
	for i := range rejected {
		_ = s.events.Emit(ctx, requestEvent(events.FriendshipRequestRejected, &rejected[i]))
	}
	for i := range canceled {
		_ = s.events.Emit(ctx, requestEvent(events.FriendshipRequestCanceled, &canceled[i]))
	}
	_ = s.events.Emit(ctx, events.Event{
		Name:       events.BlockingCreated,
		FromUserID: userID,
		ToUserID:   blockedUserID,
	})

	return block, nil
}

// RemoveBlocking deletes the block only; relationships severed when the block
// was created are not restored. Reports false when no block existed.
func (s *BlockService) RemoveBlocking(ctx context.Context, userID, blockedUserID uuid.UUID) (bool, error) {
	result, err := s.db.Exec(ctx,
		"DELETE FROM blockings WHERE user_id = $1 AND blocked_user_id = $2",
		userID, blockedUserID,
	)
	if err != nil {
		return false, fmt.Errorf("delete block: %w", err)
	}
	if result.RowsAffected() == 0 {
		return false, nil
	}

	s.cache.bust(ctx, userID, cacheBlocked)

	_ = s.events.Emit(ctx, events.Event{
		Name:       events.BlockingRemoved,
		FromUserID: userID,
		ToUserID:   blockedUserID,
	})
	return true, nil
}

// IsBlocked reports whether userID has blocked otherUserID. It is directional.
func (s *BlockService) IsBlocked(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error) {
	var ids []uuid.UUID
	if s.cache.get(ctx, cacheBlocked, userID, &ids) {
		return slices.Contains(ids, otherUserID), nil
	}

	var blocked bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM blockings
			WHERE user_id = $1 AND blocked_user_id = $2
		)`,
		userID, otherUserID,
	).Scan(&blocked)
	if err != nil {
		return false, fmt.Errorf("check block status: %w", err)
	}
	return blocked, nil
}

// IsBlockedEither reports whether either user has blocked the other.
func (s *BlockService) IsBlockedEither(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error) {
	var blocked bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM blockings
			WHERE (user_id = $1 AND blocked_user_id = $2)
			   OR (user_id = $2 AND blocked_user_id = $1)
		)`,
		userID, otherUserID,
	).Scan(&blocked)
	if err != nil {
		return false, fmt.Errorf("check block status: %w", err)
	}
	return blocked, nil
}

func (s *BlockService) GetBlocking(ctx context.Context, userID, blockedUserID uuid.UUID) (*models.Blocking, error) {
	block := &models.Blocking{}
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, blocked_user_id, created_at
		 FROM blockings WHERE user_id = $1 AND blocked_user_id = $2`,
		userID, blockedUserID,
	).Scan(&block.ID, &block.UserID, &block.BlockedUserID, &block.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get block: %w", err)
	}
	return block, nil
}

// BlockedForUser lists the users userID has blocked.
func (s *BlockService) BlockedForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return cached(ctx, s.cache, cacheBlocked, userID, func() ([]uuid.UUID, error) {
		ids, err := queryUserIDs(ctx, s.db,
			`SELECT blocked_user_id FROM blockings
			 WHERE user_id = $1
			 ORDER BY created_at, blocked_user_id`,
			userID,
		)
		if err != nil {
			return nil, fmt.Errorf("list blocked users: %w", err)
		}
		return ids, nil
	})
}

func requestEvent(name events.Name, req *models.FriendshipRequest) events.Event {
	return events.Event{
		Name:       name,
		FromUserID: req.FromUserID,
		ToUserID:   req.ToUserID,
		Request:    req,
	}
}
