package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/HammerMeetNail/socialgraph/internal/events"
)

func TestInspirationService_AddInspiration_Self(t *testing.T) {
	svc := &InspirationService{}
	userID := uuid.New()
	_, err := svc.AddInspiration(context.Background(), userID, userID)
	if !errors.Is(err, ErrSelfRelation) {
		t.Fatalf("expected ErrSelfRelation, got %v", err)
	}
}

func TestInspirationService_AddInspiration_Exists(t *testing.T) {
	tx := &fakeTx{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return rowWithError(pgx.ErrNoRows)
		},
	}
	svc := NewInspirationService(dbWithTx(tx), nil, nil)
	_, err := svc.AddInspiration(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrInspirationExists) {
		t.Fatalf("expected ErrInspirationExists, got %v", err)
	}
}

func TestInspirationService_AddInspiration_UniqueViolation(t *testing.T) {
	tx := &fakeTx{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return rowWithError(&pgconn.PgError{Code: pgUniqueViolation})
		},
	}
	svc := NewInspirationService(dbWithTx(tx), nil, nil)
	_, err := svc.AddInspiration(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrInspirationExists) {
		t.Fatalf("expected ErrInspirationExists, got %v", err)
	}
	if tx.committed {
		t.Fatal("expected no commit")
	}
}

func TestInspirationService_AddInspiration_OneWay(t *testing.T) {
	userID := uuid.New()
	inspiredByID := uuid.New()
	tx := &fakeTx{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return rowFromValues(uuid.New(), userID, inspiredByID, false, time.Now())
		},
	}
	redis := newFakeRedis()
	cache := newTestCache(redis)
	emitter, rec := newRecordingEmitter()

	svc := NewInspirationService(dbWithTx(tx), cache, emitter)
	rel, err := svc.AddInspiration(context.Background(), userID, inspiredByID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rel.Symmetric {
		t.Fatal("expected one-way inspiration")
	}
	if !tx.committed {
		t.Fatal("expected commit")
	}
	want := []events.Name{events.InspirationsCreated, events.InspirationalsCreated}
	if names := rec.names(); !reflect.DeepEqual(names, want) {
		t.Fatalf("unexpected events: %v", names)
	}
	if !redis.wasDeleted(cache.key(cacheFollowing, userID)) || !redis.wasDeleted(cache.key(cacheFollowers, inspiredByID)) {
		t.Fatal("expected follow views to be invalidated")
	}
}

func TestInspirationService_AddInspiration_Mutual(t *testing.T) {
	userID := uuid.New()
	inspiredByID := uuid.New()
	var updateArgs []any
	tx := &fakeTx{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return rowFromValues(uuid.New(), userID, inspiredByID, true, time.Now())
		},
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			if !strings.Contains(sql, "symmetric = true") {
				t.Fatalf("unexpected statement: %q", sql)
			}
			updateArgs = args
			return fakeCommandTag{rowsAffected: 1}, nil
		},
	}
	svc := NewInspirationService(dbWithTx(tx), nil, nil)
	rel, err := svc.AddInspiration(context.Background(), userID, inspiredByID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rel.Symmetric {
		t.Fatal("expected symmetric inspiration")
	}
	if !reflect.DeepEqual(updateArgs, []any{inspiredByID, userID}) {
		t.Fatalf("expected reverse row updated, got %v", updateArgs)
	}
}

func TestInspirationService_RemoveInspiration_NoOp(t *testing.T) {
	tx := &fakeTx{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return rowWithError(pgx.ErrNoRows)
		},
	}
	emitter, rec := newRecordingEmitter()

	svc := NewInspirationService(dbWithTx(tx), nil, emitter)
	removed, err := svc.RemoveInspiration(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed {
		t.Fatal("expected no-op")
	}
	if len(rec.events) != 0 {
		t.Fatalf("expected no events, got %v", rec.names())
	}
}

func TestInspirationService_RemoveInspiration_ClearsSymmetry(t *testing.T) {
	userID := uuid.New()
	inspiredByID := uuid.New()
	execs := 0
	tx := &fakeTx{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return rowFromValues(true)
		},
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			execs++
			if !strings.Contains(sql, "symmetric = false") {
				t.Fatalf("unexpected statement: %q", sql)
			}
			return fakeCommandTag{rowsAffected: 1}, nil
		},
	}
	emitter, rec := newRecordingEmitter()

	svc := NewInspirationService(dbWithTx(tx), nil, emitter)
	removed, err := svc.RemoveInspiration(context.Background(), userID, inspiredByID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !removed || execs != 1 || !tx.committed {
		t.Fatalf("expected removal with reverse update, removed=%v execs=%d", removed, execs)
	}
	want := []events.Name{events.InspirationsRemoved, events.InspirationalsRemoved}
	if names := rec.names(); !reflect.DeepEqual(names, want) {
		t.Fatalf("unexpected events: %v", names)
	}
}

func TestInspirationService_FollowLists(t *testing.T) {
	userID := uuid.New()
	otherID := uuid.New()
	var queries []string
	db := &fakeDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			queries = append(queries, sql)
			return &fakeRows{rows: [][]any{{otherID}}}, nil
		},
	}
	svc := NewInspirationService(db, nil, nil)

	followers, err := svc.InspiredByUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	following, err := svc.UserInspiredBy(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(followers) != 1 || len(following) != 1 {
		t.Fatalf("unexpected lists: %v %v", followers, following)
	}
	if !strings.Contains(queries[0], "SELECT from_user_id") || !strings.Contains(queries[1], "SELECT to_user_id") {
		t.Fatalf("unexpected queries: %v", queries)
	}
}

func TestInspirationService_IsInspired_FromFollowersCache(t *testing.T) {
	userID := uuid.New()
	inspiredByID := uuid.New()
	db := &fakeDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			return &fakeRows{rows: [][]any{{userID}}}, nil
		},
	}
	svc := NewInspirationService(db, newTestCache(newFakeRedis()), nil)
	if _, err := svc.InspiredByUser(context.Background(), inspiredByID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	db.QueryFunc = nil
	inspired, err := svc.IsInspired(context.Background(), userID, inspiredByID)
	if err != nil || !inspired {
		t.Fatalf("expected inspired, got %v %v", inspired, err)
	}
}

func TestInspirationService_GetInspiration_NotFound(t *testing.T) {
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return rowWithError(pgx.ErrNoRows)
		},
	}
	svc := NewInspirationService(db, nil, nil)
	if _, err := svc.GetInspiration(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
