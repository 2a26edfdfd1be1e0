package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-members"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Info),
		glog.WithName("members"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)

	cfg := LoadConfig()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db, err := openDB(cfg.DatabaseDSN)
	if err != nil {
		lgr.GetLogger("persistence").Error("unable to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := members.Migrate(ctx, db); err != nil {
		lgr.GetLogger("persistence").Error("unable to run migrations", "error", err)
		os.Exit(1)
	}

	repo := members.NewRepositoryManager(db,
		members.WithSessionsLogger(lgr.GetLogger("store:sessions")),
	)
	repo.MustValidate()

	activityLgr := lgr.GetLogger("activity")
	authorizer := members.NewAuthorizer(repo.Users(), repo.Sessions(),
		members.WithActivitySink(members.ActivitySinkFunc(func(_ context.Context, event members.ActivityEvent) error {
			activityLgr.Info(string(event.EventType),
				"user_id", event.UserID,
				"email", event.Email,
				"to_role", string(event.ToRole),
			)
			return nil
		})),
	).WithLogger(lgr.GetLogger("auth"))

	go repo.Sessions().Sweep(ctx, 5*time.Minute)

	app := fiber.New(fiber.Config{
		Views:             django.New("./views", ".html"),
		PassLocalsToViews: true,
	})

	cookies := members.NewCookieCodec(cfg.SessionSecret)

	controller := members.NewController(authorizer, cookies).
		WithLogger(lgr.GetLogger("http"))

	members.RegisterRoutes(app, controller)

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			lgr.GetLogger("http").Error("listener stopped", "error", err)
			stop()
		}
	}()

	lgr.GetLogger("http").Info("server listening", "addr", cfg.ListenAddr)

	WaitExitSignal(ctx)

	if err := app.Shutdown(); err != nil {
		lgr.GetLogger("http").Error("shutdown error", "error", err)
	}
}

func openDB(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// WaitExitSignal blocks until SIGINT/SIGQUIT/SIGTERM or ctx cancellation.
func WaitExitSignal(ctx context.Context) {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)

	select {
	case <-ch:
	case <-ctx.Done():
	}
}
