package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/psyportal/portal-client/internal/core/domain"
	"github.com/psyportal/portal-client/internal/core/ports"
	"github.com/psyportal/portal-client/internal/core/service"
	"github.com/psyportal/portal-client/internal/infrastructure/apiclient"
	dbmongo "github.com/psyportal/portal-client/internal/infrastructure/db/mongo"
	dbredis "github.com/psyportal/portal-client/internal/infrastructure/db/redis"
	"github.com/psyportal/portal-client/internal/infrastructure/storage"
	"github.com/psyportal/portal-client/internal/pkg/config"
)

// app holds the wired client for the duration of one command.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	out    io.Writer
	file   *storage.File
	creds  *storage.AuthStorage
	client *apiclient.Client
	store  *service.SessionStore

	closers []func(context.Context) error
}

// signInHint is the terminal stand-in for redirecting to the sign-in page.
type signInHint struct{ w io.Writer }

func (h signInHint) ToSignIn(context.Context) {
	fmt.Fprintln(h.w, "Your session has ended. Sign in again with: portal login --email <address>")
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, out io.Writer) (*app, error) {
	a := &app{cfg: cfg, log: log, out: out}

	ns, err := storage.Namespace(cfg.APIURL)
	if err != nil {
		return nil, err
	}
	kv, err := a.openStorage(ctx, ns)
	if err != nil {
		return nil, err
	}
	a.creds = storage.NewAuthStorage(kv, log)

	a.client = apiclient.New(cfg.APIURL, a.creds,
		apiclient.WithTimeout(cfg.RequestTimeout),
		apiclient.WithLogger(log),
		apiclient.WithUnauthorizedInterceptor(ports.InterceptorFunc(func(ctx context.Context) {
			a.store.HandleUnauthorized(ctx)
		})),
	)
	a.store = service.NewSessionStore(a.client, a.creds,
		service.WithNavigator(signInHint{w: os.Stderr}),
		service.WithLogger(log),
	)
	return a, nil
}

func (a *app) openStorage(ctx context.Context, ns string) (ports.KeyValue, error) {
	switch a.cfg.Storage.Driver {
	case config.DriverMemory:
		return storage.NewMemory(), nil

	case config.DriverRedis:
		rdb, err := dbredis.Connect(ctx, dbredis.Config{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
		return dbredis.NewStore(rdb, ns, a.cfg.Redis.TTL), nil

	case config.DriverMongo:
		client, db, err := dbmongo.Connect(ctx, dbmongo.Config{URI: a.cfg.Mongo.URI, Database: a.cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Disconnect)
		return dbmongo.NewStore(db, ns), nil

	default:
		dir := a.cfg.Storage.Dir
		if dir == "" {
			base, err := os.UserConfigDir()
			if err != nil {
				return nil, fmt.Errorf("storage dir: %w", err)
			}
			dir = filepath.Join(base, "psyportal")
		}
		f, err := storage.NewFile(dir, ns,
			storage.WithSecret(a.cfg.Storage.Secret),
			storage.WithFileLogger(a.log),
		)
		if err != nil {
			return nil, err
		}
		a.file = f
		return f, nil
	}
}

func (a *app) Close(ctx context.Context) {
	for _, c := range a.closers {
		if err := c(ctx); err != nil {
			a.log.Warn().Err(err).Msg("close storage")
		}
	}
}

// requireSession fails unless a user is signed in with one of roles.
func (a *app) requireSession(roles ...domain.Role) error {
	err := a.store.RequireRole(roles...)
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return errors.New("not signed in; run: portal login --email <address>")
	case errors.Is(err, domain.ErrForbidden):
		return fmt.Errorf("this command is not available to %s accounts", a.store.Snapshot().User.Role)
	}
	return err
}

// failure turns a client error or a failed result into a command error.
func failure(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(domain.Message(err))
}

func resultError(res domain.Result) error {
	if res.Success {
		return nil
	}
	return errors.New(res.Error)
}
