package shell

import (
	"context"
	"io"
	"net/http"

	"github.com/jrsteele09/xlsx-validator-shell/api"
	"github.com/jrsteele09/xlsx-validator-shell/session"
)

// FileAPI is the part of the backend client the views use.
type FileAPI interface {
	List(ctx context.Context, kind api.Kind) ([]string, error)
	Download(ctx context.Context, kind api.Kind, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, kind api.Kind, name string) (string, error)
	UploadTemplates(ctx context.Context, files []api.File) (string, error)
	Consolidate(ctx context.Context, templateName string, isMerged bool, files []api.File) (string, error)
}

var _ FileAPI = (*api.Client)(nil)

// ViewProps is built once per run and shared by every route entry.
type ViewProps struct {
	AppName    string
	APIBaseURL string
	Session    session.Accessor
	API        FileAPI
}

// Route is a single handler registration produced by a View.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}

// View renders one section of the shell.
type View interface {
	Title() string
	Routes(base string, props *ViewProps) []Route
}

// RouteEntry binds a path to a view. Entries are immutable once built.
type RouteEntry struct {
	Path  string
	View  View
	Props *ViewProps
}

// NewRouteTable returns the shell's routes, all sharing props.
func NewRouteTable(props *ViewProps) []RouteEntry {
	return []RouteEntry{
		{Path: RouteHome, View: HomeView{}, Props: props},
		{Path: RouteTemplates, View: TemplatesView{}, Props: props},
		{Path: RouteConsolidations, View: ConsolidationsView{}, Props: props},
	}
}

// pattern maps a base path and sub route onto a ServeMux pattern.
func pattern(base, sub string) string {
	if base == RouteHome && sub == "" {
		return "/{$}"
	}
	if base == RouteHome {
		return sub
	}
	return base + sub
}
