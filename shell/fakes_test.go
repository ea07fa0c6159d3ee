package shell_test

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/xlsx-validator-shell/api"
	"github.com/jrsteele09/xlsx-validator-shell/identity"
	apperrors "github.com/jrsteele09/xlsx-validator-shell/internal/errors"
	"github.com/jrsteele09/xlsx-validator-shell/session"
	"golang.org/x/oauth2"
)

type fakeSession struct {
	authenticated bool
	snapshot      identity.Token
	validFor      time.Duration
}

var _ session.Accessor = (*fakeSession)(nil)

func (f *fakeSession) Authenticated() bool { return f.authenticated }

func (f *fakeSession) State() session.State {
	if f.authenticated {
		return session.Authenticated
	}
	return session.ReloadRequested
}

func (f *fakeSession) Snapshot() identity.Token { return f.snapshot }

func (f *fakeSession) ValidFor() time.Duration { return f.validFor }

func (f *fakeSession) Token() (*oauth2.Token, error) {
	if !f.authenticated {
		return nil, apperrors.ErrNoSession
	}
	return &oauth2.Token{AccessToken: f.snapshot.AccessToken, TokenType: "Bearer"}, nil
}

type consolidateCall struct {
	templateName string
	isMerged     bool
	files        map[string]string
}

// fakeAPI keeps file collections in memory.
type fakeAPI struct {
	mu           sync.Mutex
	files        map[api.Kind]map[string]string
	listErr      error
	consolidated []consolidateCall
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{files: map[api.Kind]map[string]string{
		api.KindTemplate:      {},
		api.KindConsolidation: {},
	}}
}

func (f *fakeAPI) put(kind api.Kind, name, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[kind][name] = content
}

func (f *fakeAPI) has(kind api.Kind, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[kind][name]
	return ok
}

func (f *fakeAPI) List(_ context.Context, kind api.Kind) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	names := make([]string, 0, len(f.files[kind]))
	for name := range f.files[kind] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeAPI) Download(_ context.Context, kind api.Kind, name string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[kind][name]
	if !ok {
		return nil, &api.Error{Status: 404, Message: "File not found"}
	}
	return io.NopCloser(bytes.NewBufferString(content)), nil
}

func (f *fakeAPI) Delete(_ context.Context, kind api.Kind, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[kind][name]; !ok {
		return "", &api.Error{Status: 404, Message: "File not found"}
	}
	delete(f.files[kind], name)
	return "Deleted " + name, nil
}

func (f *fakeAPI) UploadTemplates(_ context.Context, files []api.File) (string, error) {
	read, err := readFiles(files)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, content := range read {
		f.files[api.KindTemplate][name] = content
	}
	return "successfully", nil
}

func (f *fakeAPI) Consolidate(_ context.Context, templateName string, isMerged bool, files []api.File) (string, error) {
	read, err := readFiles(files)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.consolidated = append(f.consolidated, consolidateCall{templateName: templateName, isMerged: isMerged, files: read})
	f.files[api.KindConsolidation][api.ConsolidatedName(templateName)] = "merged"
	return "Consolidated " + templateName, nil
}

func (f *fakeAPI) consolidations() []consolidateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]consolidateCall(nil), f.consolidated...)
}

func readFiles(files []api.File) (map[string]string, error) {
	out := make(map[string]string, len(files))
	for _, file := range files {
		b, err := io.ReadAll(file.Content)
		if err != nil {
			return nil, err
		}
		out[file.Name] = string(b)
	}
	return out, nil
}
