package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/socialgraph/internal/config"
	"github.com/HammerMeetNail/socialgraph/internal/database"
	"github.com/HammerMeetNail/socialgraph/internal/events"
	"github.com/HammerMeetNail/socialgraph/internal/logging"
	"github.com/HammerMeetNail/socialgraph/internal/services"
)

const usage = `usage: socialgraph <command> [args]

commands:
  migrate up|down|version   manage the relationship schema
  check                     verify PostgreSQL and Redis connectivity
  show [-fresh] <user-id>   print a user's relationship summary; -fresh drops
                            the user's cached views first
`

var errUsage = errors.New("invalid usage")

type command struct {
	name   string
	action string
	userID uuid.UUID
	fresh  bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func parseCommand(args []string) (command, error) {
	fs := flag.NewFlagSet("socialgraph", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return command{}, fmt.Errorf("%w: %v", errUsage, err)
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return command{}, fmt.Errorf("%w: missing command", errUsage)
	}

	cmd := command{name: rest[0]}
	switch cmd.name {
	case "migrate":
		if len(rest) != 2 {
			return command{}, fmt.Errorf("%w: migrate needs one of up, down, version", errUsage)
		}
		switch rest[1] {
		case "up", "down", "version":
			cmd.action = rest[1]
		default:
			return command{}, fmt.Errorf("%w: unknown migrate action %q", errUsage, rest[1])
		}
	case "check":
		if len(rest) != 1 {
			return command{}, fmt.Errorf("%w: check takes no arguments", errUsage)
		}
	case "show":
		showFlags := flag.NewFlagSet("show", flag.ContinueOnError)
		showFlags.SetOutput(io.Discard)
		showFlags.BoolVar(&cmd.fresh, "fresh", false, "drop cached views before reading")
		if err := showFlags.Parse(rest[1:]); err != nil {
			return command{}, fmt.Errorf("%w: %v", errUsage, err)
		}
		if showFlags.NArg() != 1 {
			return command{}, fmt.Errorf("%w: show needs a user id", errUsage)
		}
		id, err := uuid.Parse(showFlags.Arg(0))
		if err != nil {
			return command{}, fmt.Errorf("%w: invalid user id %q", errUsage, showFlags.Arg(0))
		}
		cmd.userID = id
	default:
		return command{}, fmt.Errorf("%w: unknown command %q", errUsage, cmd.name)
	}
	return cmd, nil
}

func run(args []string, out io.Writer) error {
	cmd, err := parseCommand(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New()
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warn("Unknown log level, using info", map[string]interface{}{"level": cfg.Log.Level})
	}
	logger.SetLevel(level)
	logging.SetDefaultLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd.name {
	case "migrate":
		return runMigrate(cfg, logger, cmd.action, out)
	case "check":
		return runCheck(ctx, cfg, logger)
	default:
		return runShow(ctx, cfg, logger, cmd.userID, cmd.fresh, out)
	}
}

func runMigrate(cfg *config.Config, logger *logging.Logger, action string, out io.Writer) error {
	migrator, err := database.NewMigrator(cfg.Database.DSN(), cfg.Database.MigrationsPath)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer func() { _ = migrator.Close() }()

	switch action {
	case "up":
		logger.Info("Running database migrations...")
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("Migrations completed")
	case "down":
		logger.Info("Rolling back database migrations...")
		if err := migrator.Down(); err != nil {
			return fmt.Errorf("rolling back migrations: %w", err)
		}
		logger.Info("Rollback completed")
	case "version":
		version, dirty, err := migrator.Version()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "version=%d dirty=%t\n", version, dirty)
	}
	return nil
}

func runCheck(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()
	if err := db.Health(ctx); err != nil {
		return fmt.Errorf("postgres health: %w", err)
	}
	logger.Info("PostgreSQL healthy")

	if !cfg.Cache.Enabled {
		logger.Info("Relationship cache disabled, skipping Redis")
		return nil
	}

	logger.Info("Connecting to Redis", map[string]interface{}{"addr": cfg.Redis.Addr()})
	redisDB, err := database.NewRedisDB(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()
	if err := redisDB.Health(ctx); err != nil {
		return fmt.Errorf("redis health: %w", err)
	}
	logger.Info("Redis healthy")
	return nil
}

type relationServices struct {
	friends      *services.FriendService
	blocks       *services.BlockService
	inspirations *services.InspirationService
}

func runShow(ctx context.Context, cfg *config.Config, logger *logging.Logger, userID uuid.UUID, fresh bool, out io.Writer) error {
	db, err := database.NewPostgresDB(cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	var cache *services.RelationCache
	if cfg.Cache.Enabled {
		redisDB, err := database.NewRedisDB(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("Redis unavailable, continuing without cache", map[string]interface{}{"error": err.Error()})
		} else {
			defer func() { _ = redisDB.Close() }()
			cache = services.NewRelationCache(services.NewRedisAdapter(redisDB.Client), cfg.Cache.TTL, cfg.Cache.Prefix, logger)
		}
	}
	if fresh {
		cache.InvalidateUser(ctx, userID)
	}

	emitter := events.NewEmitter(logger)
	emitter.ConnectAll(events.LogListener(logger))

	svc := newRelationServices(services.NewPoolAdapter(db.Pool), cache, emitter, cfg.Friendship.MessageMaxLength)
	return printSummary(ctx, svc, userID, out)
}

func newRelationServices(db services.DB, cache *services.RelationCache, emitter *events.Emitter, messageMaxLength int) *relationServices {
	friends := services.NewFriendService(db, cache, emitter)
	friends.SetMessageMaxLength(messageMaxLength)
	return &relationServices{
		friends:      friends,
		blocks:       services.NewBlockService(db, cache, emitter),
		inspirations: services.NewInspirationService(db, cache, emitter),
	}
}

func printSummary(ctx context.Context, svc *relationServices, userID uuid.UUID, out io.Writer) error {
	friends, err := svc.friends.Friends(ctx, userID)
	if err != nil {
		return err
	}
	unread, err := svc.friends.UnreadRequestCount(ctx, userID)
	if err != nil {
		return err
	}
	unrejected, err := svc.friends.UnrejectedRequestCount(ctx, userID)
	if err != nil {
		return err
	}
	sent, err := svc.friends.SentRequests(ctx, userID)
	if err != nil {
		return err
	}
	followers, err := svc.inspirations.InspiredByUser(ctx, userID)
	if err != nil {
		return err
	}
	following, err := svc.inspirations.UserInspiredBy(ctx, userID)
	if err != nil {
		return err
	}
	blocked, err := svc.blocks.BlockedForUser(ctx, userID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "user:                %s\n", userID)
	fmt.Fprintf(out, "friends:             %d\n", len(friends))
	fmt.Fprintf(out, "unread requests:     %d\n", unread)
	fmt.Fprintf(out, "unrejected requests: %d\n", unrejected)
	fmt.Fprintf(out, "sent requests:       %d\n", len(sent))
	fmt.Fprintf(out, "followers:           %d\n", len(followers))
	fmt.Fprintf(out, "following:           %d\n", len(following))
	fmt.Fprintf(out, "blocked:             %d\n", len(blocked))
	return nil
}
