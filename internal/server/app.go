// Package server wires configuration, storage, services and transports
// into a runnable application. It owns every long-lived resource: the
// database pool, the redis client and the log sinks.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/psm/internal/cryptox"
	"github.com/dmitrijs2005/psm/internal/logging"
	"github.com/dmitrijs2005/psm/internal/passgen"
	"github.com/dmitrijs2005/psm/internal/server/auth"
	"github.com/dmitrijs2005/psm/internal/server/config"
	"github.com/dmitrijs2005/psm/internal/server/httpapi"
	"github.com/dmitrijs2005/psm/internal/server/models"
	"github.com/dmitrijs2005/psm/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/psm/internal/server/services"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/psm/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

// openDB is a seam for tests.
var openDB = repomanager.OpenDB

type App struct {
	config   *config.Config
	logger   logging.Logger
	security *logging.ZapLogger
	db       *sql.DB
	repos    *repomanager.PostgresRepositoryManager
	redis    *redis.Client

	authService   *services.AuthService
	entryService  *services.EntryService
	groupService  *services.GroupService
	userService   *services.UserService
	exportService *services.ExportService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.NewJSONSlogLogger(os.Stdout, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	security, err := logging.NewSecurityLogger(c.SecurityLog)
	if err != nil {
		return nil, fmt.Errorf("security log init error: %w", err)
	}

	app := &App{
		config:   c,
		logger:   logger,
		security: security,
		repos:    repomanager.NewPostgresRepositoryManager(),
	}

	if err := app.init(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config

	encryptor, err := cryptox.NewAESPasswordEncryptor(c.EncryptorKey, c.EncryptorSalt)
	if err != nil {
		return fmt.Errorf("encryptor init error: %w", err)
	}

	encoder, err := cryptox.NewPasswordEncoder(c.Profile)
	if err != nil {
		return fmt.Errorf("encoder init error: %w", err)
	}

	app.db, err = openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}

	revocations, err := app.revocationStore(ctx)
	if err != nil {
		return err
	}

	app.authService = services.NewAuthService(app.db, app.repos, encoder, revocations, app.security, c)
	app.entryService = services.NewEntryService(app.db, app.repos, encryptor, passgen.New(), app.security)
	app.groupService = services.NewGroupService(app.db, app.repos, app.security)
	app.userService = services.NewUserService(app.db, app.repos, encoder, app.security)
	app.exportService = services.NewExportService(app.db, app.repos, c, app.logger)
	return nil
}

// revocationStore uses redis when an address is configured, process memory
// otherwise.
func (app *App) revocationStore(ctx context.Context) (auth.RevocationStore, error) {
	if app.config.RedisAddr == "" {
		app.logger.Warn(ctx, "redis is not configured, token revocation is kept in memory")
		return auth.NewMemoryRevocationStore(), nil
	}

	app.redis = redis.NewClient(&redis.Options{
		Addr:     app.config.RedisAddr,
		Password: app.config.RedisPassword,
		DB:       app.config.RedisDB,
	})
	if err := app.redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis init error: %w", err)
	}
	return auth.NewRedisRevocationStore(app.redis), nil
}

// Migrate applies the embedded schema migrations.
func (app *App) Migrate(ctx context.Context) error {
	if err := app.repos.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	app.logger.Info(ctx, "migrations applied")
	return nil
}

// CreateAdmin bootstraps an administrator account.
func (app *App) CreateAdmin(ctx context.Context, name, password string) (*models.User, error) {
	u, err := app.userService.CreateAdmin(ctx, name, password)
	if err != nil {
		return nil, err
	}
	app.security.Info(ctx, "administrator created", "username", u.Name, "user_id", u.ID)
	return u, nil
}

// Close releases every resource opened by NewApp.
func (app *App) Close() error {
	var errs []error
	if app.db != nil {
		errs = append(errs, app.db.Close())
	}
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	if app.security != nil {
		// syncing stderr fails on some platforms
		_ = app.security.Sync()
	}
	return errors.Join(errs...)
}

func (app *App) httpHandler() http.Handler {
	mux, _ := httpapi.New(httpapi.Services{
		Auth:    app.authService,
		Entries: app.entryService,
		Groups:  app.groupService,
		Users:   app.userService,
		Export:  app.exportService,
		DB:      app.db,
	}, app.logger)
	return mux
}

func (app *App) startHTTPServer(ctx context.Context) error {
	srv := &http.Server{
		Addr:              app.config.HTTPAddr,
		Handler:           app.httpHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			app.logger.Error(ctx, "http shutdown failed", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (app *App) startGRPCServer(ctx context.Context) error {
	s := gs.NewHealthServer(app.config.GRPCAddr, app.db, app.config.HealthInterval, app.logger)
	if err := s.Run(ctx); err != nil {
		return fmt.Errorf("grpc server: %w", err)
	}
	return nil
}

// serve runs both servers until ctx is cancelled or one of them fails.
// The first failure stops the other server and is returned.
func (app *App) serve(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	var (
		once     sync.Once
		firstErr error
		wg       sync.WaitGroup
	)
	run := func(start func(context.Context) error) {
		defer wg.Done()
		if err := start(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			once.Do(func() { firstErr = err })
			cancelFunc()
		}
	}

	wg.Add(2)
	go run(app.startHTTPServer)
	go run(app.startGRPCServer)
	wg.Wait()

	return firstErr
}

// Run applies migrations and serves HTTP and gRPC until ctx is cancelled,
// a termination signal arrives or either server fails.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...", "profile", app.config.Profile)

	if err := app.Migrate(ctx); err != nil {
		return err
	}

	err := app.serve(ctx)
	app.logger.Info(context.Background(), "App stopped")
	return err
}
