package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/socialgraph/internal/events"
	"github.com/HammerMeetNail/socialgraph/internal/models"
)

var (
	ErrAlreadyFriends    = errors.New("users are already friends")
	ErrRequestNotPending = errors.New("friendship request is not pending")
	ErrMessageTooLong    = errors.New("friendship request message is too long")
)

const DefaultMessageMaxLength = 1000

const requestColumns = `id, from_user_id, to_user_id, message, created_at, rejected_at, viewed_at`

type FriendService struct {
	db               DB
	cache            *RelationCache
	events           *events.Emitter
	messageMaxLength int
}

func NewFriendService(db DB, cache *RelationCache, emitter *events.Emitter) *FriendService {
	return &FriendService{
		db:               db,
		cache:            cache,
		events:           emitter,
		messageMaxLength: DefaultMessageMaxLength,
	}
}

func (s *FriendService) SetMessageMaxLength(n int) {
	if n > 0 {
		s.messageMaxLength = n
	}
}

// Friends returns the IDs of everyone userID is friends with.
func (s *FriendService) Friends(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return cached(ctx, s.cache, cacheFriends, userID, func() ([]uuid.UUID, error) {
		ids, err := queryUserIDs(ctx, s.db,
			`SELECT to_user_id FROM friends
			 WHERE from_user_id = $1
			 ORDER BY created_at, to_user_id`,
			userID,
		)
		if err != nil {
			return nil, fmt.Errorf("listing friends: %w", err)
		}
		return ids, nil
	})
}

func (s *FriendService) AreFriends(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error) {
	var ids []uuid.UUID
	if s.cache.get(ctx, cacheFriends, userID, &ids) && slices.Contains(ids, otherUserID) {
		return true, nil
	}
	if s.cache.get(ctx, cacheFriends, otherUserID, &ids) && slices.Contains(ids, userID) {
		return true, nil
	}

	var friends bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM friends
			WHERE from_user_id = $1 AND to_user_id = $2
		)`,
		userID, otherUserID,
	).Scan(&friends)
	if err != nil {
		return false, fmt.Errorf("checking friendship: %w", err)
	}
	return friends, nil
}

// Requests returns every request addressed to userID, newest first.
func (s *FriendService) Requests(ctx context.Context, userID uuid.UUID) ([]models.FriendshipRequest, error) {
	return s.listRequests(ctx, cacheRequests, "to_user_id = $1", userID)
}

func (s *FriendService) SentRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendshipRequest, error) {
	return s.listRequests(ctx, cacheSentRequests, "from_user_id = $1", userID)
}

func (s *FriendService) UnreadRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendshipRequest, error) {
	return s.listRequests(ctx, cacheUnreadRequests, "to_user_id = $1 AND viewed_at IS NULL", userID)
}

func (s *FriendService) ReadRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendshipRequest, error) {
	return s.listRequests(ctx, cacheReadRequests, "to_user_id = $1 AND viewed_at IS NOT NULL", userID)
}

func (s *FriendService) RejectedRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendshipRequest, error) {
	return s.listRequests(ctx, cacheRejectedRequests, "to_user_id = $1 AND rejected_at IS NOT NULL", userID)
}

func (s *FriendService) UnrejectedRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendshipRequest, error) {
	return s.listRequests(ctx, cacheUnrejectedRequests, "to_user_id = $1 AND rejected_at IS NULL", userID)
}

func (s *FriendService) UnreadRequestCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.countRequests(ctx, cacheUnreadRequestCount, "to_user_id = $1 AND viewed_at IS NULL", userID)
}

func (s *FriendService) UnrejectedRequestCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.countRequests(ctx, cacheUnrejectedRequestCount, "to_user_id = $1 AND rejected_at IS NULL", userID)
}

func (s *FriendService) GetRequest(ctx context.Context, requestID uuid.UUID) (*models.FriendshipRequest, error) {
	return getRequest(ctx, s.db, requestID, false)
}

// AddFriend creates a pending request from fromUserID to toUserID.
//
// A request already sent in the same direction (open or rejected) or an open
// request in the reverse direction yields ErrDuplicateRequest.
func (s *FriendService) AddFriend(ctx context.Context, fromUserID, toUserID uuid.UUID, message string) (*models.FriendshipRequest, error) {
	if fromUserID == toUserID {
		return nil, ErrSelfRelation
	}
	if utf8.RuneCountInString(message) > s.messageMaxLength {
		return nil, ErrMessageTooLong
	}

	var blocked, friends, requested bool
	err := s.db.QueryRow(ctx,
		`SELECT
			EXISTS(
				SELECT 1 FROM blockings
				WHERE (user_id = $1 AND blocked_user_id = $2)
				   OR (user_id = $2 AND blocked_user_id = $1)
			),
			EXISTS(
				SELECT 1 FROM friends
				WHERE from_user_id = $1 AND to_user_id = $2
			),
			EXISTS(
				SELECT 1 FROM friendship_requests
				WHERE (from_user_id = $1 AND to_user_id = $2)
				   OR (from_user_id = $2 AND to_user_id = $1 AND rejected_at IS NULL)
			)`,
		fromUserID, toUserID,
	).Scan(&blocked, &friends, &requested)
	if err != nil {
		return nil, fmt.Errorf("checking existing relationships: %w", err)
	}
	if blocked {
		return nil, ErrBlocked
	}
	if friends {
		return nil, ErrAlreadyFriends
	}
	if requested {
		return nil, ErrDuplicateRequest
	}

	req := &models.FriendshipRequest{}
	err = s.db.QueryRow(ctx,
		`INSERT INTO friendship_requests (from_user_id, to_user_id, message)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (from_user_id, to_user_id) DO NOTHING
		 RETURNING `+requestColumns,
		fromUserID, toUserID, message,
	).Scan(requestDest(req)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDuplicateRequest
	}
	if err != nil {
		return nil, mapWriteError("creating friendship request", err, ErrDuplicateRequest)
	}

	s.cache.bust(ctx, toUserID, receivedRequestKinds...)
	s.cache.bust(ctx, fromUserID, cacheSentRequests)

	_ = s.events.Emit(ctx, requestEvent(events.FriendshipRequestCreated, req))

	return req, nil
}

// Accept turns a pending request into two directed friend rows and deletes it,
// together with any request in the reverse direction, in one transaction.
func (s *FriendService) Accept(ctx context.Context, requestID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin accept transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	req, err := getRequest(ctx, tx, requestID, true)
	if err != nil {
		return err
	}
	if !req.IsPending() {
		return ErrRequestNotPending
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO friends (from_user_id, to_user_id)
		 VALUES ($1, $2), ($2, $1)
		 ON CONFLICT (from_user_id, to_user_id) DO NOTHING`,
		req.FromUserID, req.ToUserID,
	)
	if err != nil {
		return mapWriteError("creating friends", err, nil)
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM friendship_requests
		 WHERE (from_user_id = $1 AND to_user_id = $2)
		    OR (from_user_id = $2 AND to_user_id = $1)`,
		req.FromUserID, req.ToUserID,
	)
	if err != nil {
		return fmt.Errorf("deleting accepted request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit accept: %w", err)
	}
	committed = true

	for _, id := range []uuid.UUID{req.FromUserID, req.ToUserID} {
		s.cache.bust(ctx, id, append([]cacheKind{cacheFriends, cacheSentRequests}, receivedRequestKinds...)...)
	}

	_ = s.events.Emit(ctx, requestEvent(events.FriendshipRequestAccepted, req))
	return nil
}

func (s *FriendService) Reject(ctx context.Context, requestID uuid.UUID) (*models.FriendshipRequest, error) {
	req := &models.FriendshipRequest{}
	err := s.db.QueryRow(ctx,
		`UPDATE friendship_requests SET rejected_at = NOW()
		 WHERE id = $1 AND rejected_at IS NULL
		 RETURNING `+requestColumns,
		requestID,
	).Scan(requestDest(req)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.notPendingOrMissing(ctx, requestID)
	}
	if err != nil {
		return nil, fmt.Errorf("rejecting friendship request: %w", err)
	}

	s.cache.bust(ctx, req.ToUserID, receivedRequestKinds...)
	s.cache.bust(ctx, req.FromUserID, cacheSentRequests)

	_ = s.events.Emit(ctx, requestEvent(events.FriendshipRequestRejected, req))
	return req, nil
}

func (s *FriendService) Cancel(ctx context.Context, requestID uuid.UUID) error {
	req := &models.FriendshipRequest{}
	err := s.db.QueryRow(ctx,
		`DELETE FROM friendship_requests
		 WHERE id = $1 AND rejected_at IS NULL
		 RETURNING `+requestColumns,
		requestID,
	).Scan(requestDest(req)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.notPendingOrMissing(ctx, requestID)
	}
	if err != nil {
		return fmt.Errorf("canceling friendship request: %w", err)
	}

	s.cache.bust(ctx, req.ToUserID, receivedRequestKinds...)
	s.cache.bust(ctx, req.FromUserID, cacheSentRequests)

	_ = s.events.Emit(ctx, requestEvent(events.FriendshipRequestCanceled, req))
	return nil
}

// MarkViewed records the first time the recipient saw the request.
func (s *FriendService) MarkViewed(ctx context.Context, requestID uuid.UUID) (*models.FriendshipRequest, error) {
	req := &models.FriendshipRequest{}
	err := s.db.QueryRow(ctx,
		`UPDATE friendship_requests SET viewed_at = COALESCE(viewed_at, NOW())
		 WHERE id = $1
		 RETURNING `+requestColumns,
		requestID,
	).Scan(requestDest(req)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("marking friendship request viewed: %w", err)
	}

	s.cache.bust(ctx, req.ToUserID, receivedRequestKinds...)
	s.cache.bust(ctx, req.FromUserID, cacheSentRequests)

	_ = s.events.Emit(ctx, requestEvent(events.FriendshipRequestViewed, req))
	return req, nil
}

// RemoveFriend deletes both directions of a friendship. It reports false
// without error when the users were not friends.
func (s *FriendService) RemoveFriend(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error) {
	removed, err := deleteFriendRows(ctx, s.db, userID, otherUserID)
	if err != nil {
		return false, err
	}
	if len(removed) == 0 {
		return false, nil
	}

	s.cache.bust(ctx, userID, cacheFriends)
	s.cache.bust(ctx, otherUserID, cacheFriends)

	for _, f := range removed {
		_ = s.events.Emit(ctx, events.Event{
			Name:       events.FriendshipRemoved,
			FromUserID: f.FromUserID,
			ToUserID:   f.ToUserID,
		})
	}
	return true, nil
}

func (s *FriendService) notPendingOrMissing(ctx context.Context, requestID uuid.UUID) error {
	if _, err := getRequest(ctx, s.db, requestID, false); err != nil {
		return err
	}
	return ErrRequestNotPending
}

func (s *FriendService) listRequests(ctx context.Context, kind cacheKind, where string, userID uuid.UUID) ([]models.FriendshipRequest, error) {
	return cached(ctx, s.cache, kind, userID, func() ([]models.FriendshipRequest, error) {
		rows, err := s.db.Query(ctx,
			`SELECT `+requestColumns+` FROM friendship_requests
			 WHERE `+where+`
			 ORDER BY created_at DESC`,
			userID,
		)
		if err != nil {
			return nil, fmt.Errorf("listing friendship requests: %w", err)
		}
		return scanRequests(rows)
	})
}

func (s *FriendService) countRequests(ctx context.Context, kind cacheKind, where string, userID uuid.UUID) (int, error) {
	return cached(ctx, s.cache, kind, userID, func() (int, error) {
		var count int
		err := s.db.QueryRow(ctx,
			`SELECT COUNT(*) FROM friendship_requests WHERE `+where,
			userID,
		).Scan(&count)
		if err != nil {
			return 0, fmt.Errorf("counting friendship requests: %w", err)
		}
		return count, nil
	})
}

func requestDest(r *models.FriendshipRequest) []any {
	return []any{&r.ID, &r.FromUserID, &r.ToUserID, &r.Message, &r.CreatedAt, &r.RejectedAt, &r.ViewedAt}
}

func getRequest(ctx context.Context, db DBConn, requestID uuid.UUID, forUpdate bool) (*models.FriendshipRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM friendship_requests WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	req := &models.FriendshipRequest{}
	err := db.QueryRow(ctx, query, requestID).Scan(requestDest(req)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting friendship request: %w", err)
	}
	return req, nil
}

func scanRequests(rows Rows) ([]models.FriendshipRequest, error) {
	defer rows.Close()

	requests := []models.FriendshipRequest{}
	for rows.Next() {
		var r models.FriendshipRequest
		if err := rows.Scan(requestDest(&r)...); err != nil {
			return nil, fmt.Errorf("scanning friendship request: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating friendship requests: %w", err)
	}
	return requests, nil
}

// deleteFriendRows removes both directed rows between two users in a single
// statement and returns what was deleted.
func deleteFriendRows(ctx context.Context, db DBConn, userID, otherUserID uuid.UUID) ([]models.Friend, error) {
	rows, err := db.Query(ctx,
		`DELETE FROM friends
		 WHERE (from_user_id = $1 AND to_user_id = $2)
		    OR (from_user_id = $2 AND to_user_id = $1)
		 RETURNING id, from_user_id, to_user_id, created_at`,
		userID, otherUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("removing friendship: %w", err)
	}
	defer rows.Close()

	var removed []models.Friend
	for rows.Next() {
		var f models.Friend
		if err := rows.Scan(&f.ID, &f.FromUserID, &f.ToUserID, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning removed friend: %w", err)
		}
		removed = append(removed, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("removing friendship: %w", err)
	}
	return removed, nil
}

func queryUserIDs(ctx context.Context, db DBConn, sql string, args ...any) ([]uuid.UUID, error) {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// mapWriteError translates constraint violations into service errors. A unique
// violation maps to conflict when one is given.
func mapWriteError(op string, err, conflict error) error {
	switch pgErrorCode(err) {
	case pgUniqueViolation:
		if conflict != nil {
			return conflict
		}
	case pgForeignKeyViolation:
		return ErrUserNotFound
	case pgCheckViolation:
		return ErrSelfRelation
	}
	return fmt.Errorf("%s: %w", op, err)
}
