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

var ErrInspirationExists = errors.New("user is already inspired by this user")

// InspirationService manages one-way follows. userID "is inspired by"
// inspiredByID; inspiredByID gains a follower.
type InspirationService struct {
	db     DB
	cache  *RelationCache
	events *events.Emitter
}

func NewInspirationService(db DB, cache *RelationCache, emitter *events.Emitter) *InspirationService {
	return &InspirationService{db: db, cache: cache, events: emitter}
}

func (s *InspirationService) AddInspiration(ctx context.Context, userID, inspiredByID uuid.UUID) (*models.Inspiration, error) {
	if userID == inspiredByID {
		return nil, ErrSelfRelation
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin inspiration transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	rel := &models.Inspiration{}
	err = tx.QueryRow(ctx,
		`INSERT INTO inspirations (from_user_id, to_user_id, symmetric)
		 VALUES ($1, $2, EXISTS(
			SELECT 1 FROM inspirations WHERE from_user_id = $2 AND to_user_id = $1
		 ))
		 ON CONFLICT (from_user_id, to_user_id) DO NOTHING
		 RETURNING id, from_user_id, to_user_id, symmetric, created_at`,
		userID, inspiredByID,
	).Scan(&rel.ID, &rel.FromUserID, &rel.ToUserID, &rel.Symmetric, &rel.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInspirationExists
	}
	if err != nil {
		return nil, mapWriteError("insert inspiration", err, ErrInspirationExists)
	}

	if rel.Symmetric {
		_, err = tx.Exec(ctx,
			`UPDATE inspirations SET symmetric = true
			 WHERE from_user_id = $1 AND to_user_id = $2`,
			inspiredByID, userID,
		)
		if err != nil {
			return nil, fmt.Errorf("mark reverse inspiration symmetric: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit inspiration: %w", err)
	}
	committed = true

	s.bust(ctx, userID, inspiredByID)

	_ = s.events.Emit(ctx, events.Event{Name: events.InspirationsCreated, FromUserID: userID, ToUserID: inspiredByID})
	_ = s.events.Emit(ctx, events.Event{Name: events.InspirationalsCreated, FromUserID: userID, ToUserID: inspiredByID})

	return rel, nil
}

// RemoveInspiration reports false without error when userID did not follow inspiredByID.
func (s *InspirationService) RemoveInspiration(ctx context.Context, userID, inspiredByID uuid.UUID) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin inspiration transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	var symmetric bool
	err = tx.QueryRow(ctx,
		`DELETE FROM inspirations
		 WHERE from_user_id = $1 AND to_user_id = $2
		 RETURNING symmetric`,
		userID, inspiredByID,
	).Scan(&symmetric)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete inspiration: %w", err)
	}

	if symmetric {
		_, err = tx.Exec(ctx,
			`UPDATE inspirations SET symmetric = false
			 WHERE from_user_id = $1 AND to_user_id = $2`,
			inspiredByID, userID,
		)
		if err != nil {
			return false, fmt.Errorf("clear reverse inspiration symmetric: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit inspiration removal: %w", err)
	}
	committed = true

	s.bust(ctx, userID, inspiredByID)

	_ = s.events.Emit(ctx, events.Event{Name: events.InspirationsRemoved, FromUserID: userID, ToUserID: inspiredByID})
	_ = s.events.Emit(ctx, events.Event{Name: events.InspirationalsRemoved, FromUserID: userID, ToUserID: inspiredByID})

	return true, nil
}

func (s *InspirationService) GetInspiration(ctx context.Context, userID, inspiredByID uuid.UUID) (*models.Inspiration, error) {
	rel := &models.Inspiration{}
	err := s.db.QueryRow(ctx,
		`SELECT id, from_user_id, to_user_id, symmetric, created_at
		 FROM inspirations WHERE from_user_id = $1 AND to_user_id = $2`,
		userID, inspiredByID,
	).Scan(&rel.ID, &rel.FromUserID, &rel.ToUserID, &rel.Symmetric, &rel.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get inspiration: %w", err)
	}
	return rel, nil
}

// InspiredByUser returns the followers of userID.
func (s *InspirationService) InspiredByUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return cached(ctx, s.cache, cacheFollowers, userID, func() ([]uuid.UUID, error) {
		ids, err := queryUserIDs(ctx, s.db,
			`SELECT from_user_id FROM inspirations
			 WHERE to_user_id = $1
			 ORDER BY created_at, from_user_id`,
			userID,
		)
		if err != nil {
			return nil, fmt.Errorf("list followers: %w", err)
		}
		return ids, nil
	})
}

// UserInspiredBy returns the users userID follows.
func (s *InspirationService) UserInspiredBy(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return cached(ctx, s.cache, cacheFollowing, userID, func() ([]uuid.UUID, error) {
		ids, err := queryUserIDs(ctx, s.db,
			`SELECT to_user_id FROM inspirations
			 WHERE from_user_id = $1
			 ORDER BY created_at, to_user_id`,
			userID,
		)
		if err != nil {
			return nil, fmt.Errorf("list following: %w", err)
		}
		return ids, nil
	})
}

func (s *InspirationService) IsInspired(ctx context.Context, userID, inspiredByID uuid.UUID) (bool, error) {
	var ids []uuid.UUID
	if s.cache.get(ctx, cacheFollowing, userID, &ids) {
		return slices.Contains(ids, inspiredByID), nil
	}
	if s.cache.get(ctx, cacheFollowers, inspiredByID, &ids) {
		return slices.Contains(ids, userID), nil
	}

	var inspired bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM inspirations
			WHERE from_user_id = $1 AND to_user_id = $2
		)`,
		userID, inspiredByID,
	).Scan(&inspired)
	if err != nil {
		return false, fmt.Errorf("check inspiration: %w", err)
	}
	return inspired, nil
}

func (s *InspirationService) bust(ctx context.Context, userID, inspiredByID uuid.UUID) {
	s.cache.bust(ctx, userID, cacheFollowing)
	s.cache.bust(ctx, inspiredByID, cacheFollowers)
}
