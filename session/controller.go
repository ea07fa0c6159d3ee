// Package session drives the authentication lifecycle: initialise the identity
// client once, mount the shell on success, then keep the token fresh.
package session

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jrsteele09/xlsx-validator-shell/identity"
	"github.com/jrsteele09/xlsx-validator-shell/internal/config"
	apperrors "github.com/jrsteele09/xlsx-validator-shell/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Mounter mounts the application shell. It is called at most once.
type Mounter interface {
	Mount() error
}

type MounterFunc func() error

func (f MounterFunc) Mount() error { return f() }

// Reloader discards the current session and starts over.
type Reloader interface {
	Reload()
}

type ReloaderFunc func()

func (f ReloaderFunc) Reload() { f() }

// Controller owns the session lifecycle state machine.
type Controller struct {
	client   identity.Client
	mounter  Mounter
	reloader Reloader
	logger   zerolog.Logger

	interval    time.Duration
	minValidity int
	maxFailures int

	mu          sync.RWMutex
	state       State
	lastOutcome Outcome
	failures    int
	started     bool
}

type Option func(*Controller)

// WithRefreshInterval overrides the fixed refresh interval.
func WithRefreshInterval(d time.Duration) Option {
	return func(c *Controller) { c.interval = d }
}

// WithMinValidity overrides the remaining validity threshold, in seconds.
func WithMinValidity(seconds int) Option {
	return func(c *Controller) { c.minValidity = seconds }
}

// WithMaxRefreshFailures sets how many consecutive failed refreshes end the session. 0 never ends it.
func WithMaxRefreshFailures(n int) Option {
	return func(c *Controller) { c.maxFailures = n }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func NewController(client identity.Client, mounter Mounter, reloader Reloader, opts ...Option) *Controller {
	c := &Controller{
		client:      client,
		mounter:     mounter,
		reloader:    reloader,
		logger:      log.Logger,
		interval:    config.DefaultRefreshInterval,
		minValidity: config.DefaultMinValidity,
		state:       Initializing,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) LastOutcome() Outcome {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastOutcome
}

// ConsecutiveFailures is the number of refresh failures since the last success.
func (c *Controller) ConsecutiveFailures() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failures
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Start initialises the identity client exactly once.
//
// Unauthenticated sessions request a reload and return a nil task. A rejected
// initialisation leaves the controller Failed and returns the error; nothing
// is mounted and no refresh runs. On success the shell is mounted and the
// refresh task is returned whether or not the mount succeeded.
func (c *Controller) Start(ctx context.Context, opts identity.InitOptions) (*RefreshTask, error) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil, apperrors.ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	authenticated, err := c.client.Initialize(ctx, opts)
	if err != nil {
		c.setState(Failed)
		c.logger.Error().Err(err).Msg("Authentication failed")
		return nil, fmt.Errorf("[session Start] %w: %w", apperrors.ErrInitializeFailed, err)
	}

	if !authenticated {
		c.setState(Unauthenticated)
		c.logger.Info().Msg("Not authenticated, reloading")
		c.requestReload()
		return nil, nil
	}

	c.setState(Authenticated)
	c.logger.Info().Msg("Authenticated")

	if c.mounter != nil {
		if err := c.mounter.Mount(); err != nil {
			c.logger.Error().Err(err).Msg("Failed to mount application shell")
		}
	}

	return c.startRefresh(ctx), nil
}

func (c *Controller) requestReload() {
	c.setState(ReloadRequested)
	if c.reloader != nil {
		c.reloader.Reload()
	}
}

// tick performs one refresh and reports whether the loop should continue.
func (c *Controller) tick(ctx context.Context) bool {
	refreshed, err := c.client.Refresh(ctx, c.minValidity)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		c.mu.Lock()
		c.lastOutcome = RefreshFailed
		c.failures++
		failures := c.failures
		c.mu.Unlock()

		c.logger.Info().Err(err).Int("consecutive_failures", failures).Msg("Failed to refresh token")
		if c.maxFailures > 0 && failures >= c.maxFailures {
			c.setState(Unauthenticated)
			c.logger.Warn().Int("consecutive_failures", failures).Msg("Session lost, reloading")
			c.requestReload()
			return false
		}
		return true
	}

	c.mu.Lock()
	c.failures = 0
	if refreshed {
		c.lastOutcome = Refreshed
	} else {
		c.lastOutcome = Unchanged
	}
	c.mu.Unlock()

	if refreshed {
		c.logger.Info().Msg("Token refreshed")
		return true
	}

	tok := c.client.Token()
	remaining := tok.ValidFor(identity.NowTimeFunc())
	c.logger.Info().Msgf("Token not refreshed, valid for %d seconds", RoundSeconds(remaining))
	return true
}

// RoundSeconds rounds d to the nearest whole second.
func RoundSeconds(d time.Duration) int64 {
	return int64(math.Round(d.Seconds()))
}
