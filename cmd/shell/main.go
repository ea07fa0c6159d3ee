package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/google/uuid"
	"github.com/jrsteele09/xlsx-validator-shell/api"
	"github.com/jrsteele09/xlsx-validator-shell/identity"
	"github.com/jrsteele09/xlsx-validator-shell/internal/config"
	apperrors "github.com/jrsteele09/xlsx-validator-shell/internal/errors"
	"github.com/jrsteele09/xlsx-validator-shell/session"
	"github.com/jrsteele09/xlsx-validator-shell/shell"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	restartEvery = 2 * time.Second
	restartBurst = 3

	shutdownTimeout = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Reloads restart the run loop, no faster than restartEvery once the burst is spent.
	limiter := rate.NewLimiter(rate.Every(restartEvery), restartBurst)
	for {
		err := run(ctx)
		if err == nil {
			break
		}
		if !apperrors.Is(err, apperrors.ErrReloadRequested) {
			log.Fatal().Err(err).Msg("Error running shell")
		}
		log.Info().Msg("Reloading")
		if err := limiter.Wait(ctx); err != nil {
			break
		}
	}
	log.Info().Msg("Shell stopped")
}

func run(parent context.Context) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	setupLogging(c)

	settings, err := config.LoadSettings(c.GetSettingsFile(), os.LookupEnv)
	if err != nil {
		return err
	}
	if err := settings.Require(config.RequiredKeys...); err != nil {
		return err
	}

	logger := log.With().Str("run_id", uuid.NewString()).Logger()
	displayAppname(c.GetAppName())

	srv, err := shell.New(c)
	if err != nil {
		return err
	}
	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(httpServer) }()

	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	client := identity.NewOIDCClient(identity.WithPrompter(identity.MultiPrompter(
		identity.LogPrompter,
		identity.PrompterFunc(srv.SetLoginPrompt),
	)))

	var props *shell.ViewProps
	ctrl := session.NewController(client,
		session.MounterFunc(func() error { return srv.Mount(shell.NewRouteTable(props)) }),
		session.ReloaderFunc(func() { cancel(apperrors.ErrReloadRequested) }),
		session.WithRefreshInterval(c.GetRefreshInterval()),
		session.WithMinValidity(c.GetMinValidity()),
		session.WithMaxRefreshFailures(c.GetMaxRefreshFailures()),
		session.WithLogger(logger),
	)

	apiURL, _ := settings.Get(config.KeyAPIURL)
	apiClient, err := api.New(apiURL, ctrl.Accessor())
	if err != nil {
		return errors.Join(err, shutdown(httpServer))
	}
	props = &shell.ViewProps{
		AppName:    c.GetAppName(),
		APIBaseURL: apiClient.BaseURL(),
		Session:    ctrl.Accessor(),
		API:        apiClient,
	}

	opts := initOptions(c, settings)
	returnError = superviseRun(ctx, cancel, serveErr, func(ctx context.Context) (*session.RefreshTask, error) {
		return ctrl.Start(ctx, opts)
	}, logger)
	return errors.Join(returnError, shutdown(httpServer))
}

// superviseRun starts the session alongside the listener and returns when the
// run ends: the context is done or the listener fails. Login may block, so it
// runs on its own goroutine. The refresh task is stopped before returning.
func superviseRun(
	ctx context.Context,
	cancel context.CancelCauseFunc,
	serveErr <-chan error,
	start func(context.Context) (*session.RefreshTask, error),
	logger zerolog.Logger,
) error {
	started := make(chan *session.RefreshTask, 1)
	go func() {
		task, err := start(ctx)
		if err != nil && ctx.Err() == nil {
			// The placeholder stays up until the process is stopped.
			logger.Error().Err(err).Msg("Shell not mounted")
		}
		started <- task
	}()

	var (
		runErr  error
		task    *session.RefreshTask
		pending = started
	)
wait:
	for {
		select {
		case task = <-pending:
			pending = nil
		case <-ctx.Done():
			break wait
		case runErr = <-serveErr:
			break wait
		}
	}

	cancel(nil)
	if pending != nil {
		task = <-pending
	}
	task.Stop()

	if apperrors.Is(context.Cause(ctx), apperrors.ErrReloadRequested) {
		return apperrors.ErrReloadRequested
	}
	return runErr
}

func initOptions(c config.Config, settings *config.Settings) identity.InitOptions {
	authURL, _ := settings.Get(config.KeyAuthURL)
	realm, _ := settings.Get(config.KeyRealm)
	clientID, _ := settings.Get(config.KeyClientID)
	return identity.InitOptions{
		URL:          authURL,
		Realm:        realm,
		ClientID:     clientID,
		ClientSecret: settings.GetOr(config.KeyClientSecret, ""),
		Scopes:       identity.ParseScopes(settings.GetOr(config.KeyScopes, "")),
		OnLoad:       identity.OnLoad(c.GetOnLoad()),
	}
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
