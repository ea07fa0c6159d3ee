// Package identityfake provides an in-memory identity.Client for tests.
package identityfake

import (
	"context"
	"sync"

	"github.com/jrsteele09/xlsx-validator-shell/identity"
)

// RefreshResult is the scripted outcome of one Refresh call.
type RefreshResult struct {
	Refreshed bool
	Err       error
}

// FakeClient is a scripted identity.Client.
type FakeClient struct {
	mu sync.Mutex

	InitAuthenticated bool
	InitErr           error
	// RefreshResults are returned in order; the last one repeats.
	RefreshResults []RefreshResult
	Snapshot       identity.Token

	initCalls    int
	initOptions  identity.InitOptions
	refreshCalls int
	minValidity  []int

	// Refreshed receives the call number of each Refresh, if non-nil.
	Refreshed chan int
	// OnRefresh runs at the start of each Refresh, if non-nil.
	OnRefresh func(call int)
}

var _ identity.Client = (*FakeClient)(nil)

func NewFakeClient(authenticated bool) *FakeClient {
	return &FakeClient{InitAuthenticated: authenticated}
}

func (f *FakeClient) Initialize(_ context.Context, opts identity.InitOptions) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	f.initOptions = opts
	if f.InitErr != nil {
		return false, f.InitErr
	}
	return f.InitAuthenticated, nil
}

func (f *FakeClient) Refresh(_ context.Context, minValiditySeconds int) (bool, error) {
	f.mu.Lock()
	f.refreshCalls++
	n := f.refreshCalls
	f.minValidity = append(f.minValidity, minValiditySeconds)
	var res RefreshResult
	if len(f.RefreshResults) > 0 {
		idx := n - 1
		if idx >= len(f.RefreshResults) {
			idx = len(f.RefreshResults) - 1
		}
		res = f.RefreshResults[idx]
	}
	ch, hook := f.Refreshed, f.OnRefresh
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}

	if ch != nil {
		select {
		case ch <- n:
		default:
		}
	}
	return res.Refreshed, res.Err
}

func (f *FakeClient) Token() identity.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Snapshot
}

func (f *FakeClient) SetToken(t identity.Token) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Snapshot = t
}

func (f *FakeClient) InitCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initCalls
}

func (f *FakeClient) InitOptions() identity.InitOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initOptions
}

func (f *FakeClient) RefreshCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

func (f *FakeClient) MinValidities() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.minValidity...)
}
