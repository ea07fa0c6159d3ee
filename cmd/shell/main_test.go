package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jrsteele09/xlsx-validator-shell/identity"
	"github.com/jrsteele09/xlsx-validator-shell/identity/identityfake"
	apperrors "github.com/jrsteele09/xlsx-validator-shell/internal/errors"
	"github.com/jrsteele09/xlsx-validator-shell/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type supervised struct {
	err  error
	done chan struct{}
}

func supervise(ctx context.Context, cancel context.CancelCauseFunc, serveErr <-chan error, start func(context.Context) (*session.RefreshTask, error)) *supervised {
	s := &supervised{done: make(chan struct{})}
	go func() {
		defer close(s.done)
		s.err = superviseRun(ctx, cancel, serveErr, start, zerolog.Nop())
	}()
	return s
}

func (s *supervised) wait(t *testing.T) error {
	t.Helper()
	select {
	case <-s.done:
		return s.err
	case <-time.After(2 * time.Second):
		t.Fatal("run did not end")
		return nil
	}
}

func blockingLogin(ctx context.Context) (*session.RefreshTask, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestListenerFailureEndsRunDuringLogin(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	serveErr := make(chan error, 1)
	listenErr := errors.New("listen tcp :8080: bind: address already in use")

	s := supervise(ctx, cancel, serveErr, blockingLogin)
	serveErr <- listenErr

	require.ErrorIs(t, s.wait(t), listenErr)
	require.Error(t, ctx.Err())
}

func TestReloadRequestedEndsRun(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	s := supervise(ctx, cancel, make(chan error), func(context.Context) (*session.RefreshTask, error) {
		cancel(apperrors.ErrReloadRequested)
		return nil, nil
	})

	require.ErrorIs(t, s.wait(t), apperrors.ErrReloadRequested)
}

func TestStopSignalEndsRunCleanly(t *testing.T) {
	parent, stop := context.WithCancel(context.Background())
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	s := supervise(ctx, cancel, make(chan error), blockingLogin)
	stop()

	require.NoError(t, s.wait(t))
}

func TestRunEndStopsRefreshTask(t *testing.T) {
	parent, stop := context.WithCancel(context.Background())
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	client := identityfake.NewFakeClient(true)
	ctrl := session.NewController(client, nil, nil,
		session.WithRefreshInterval(10*time.Millisecond),
		session.WithLogger(zerolog.Nop()),
	)
	opts := identity.InitOptions{URL: "https://id.example.com", Realm: "validator", ClientID: "frontend", OnLoad: identity.OnLoadLoginRequired}

	s := supervise(ctx, cancel, make(chan error), func(ctx context.Context) (*session.RefreshTask, error) {
		return ctrl.Start(ctx, opts)
	})
	require.Eventually(t, func() bool { return client.RefreshCalls() >= 2 }, time.Second, 10*time.Millisecond)
	stop()

	require.NoError(t, s.wait(t))
	require.Equal(t, session.Stopped, ctrl.State())
}
