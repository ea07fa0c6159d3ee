// Package shell is the application shell: a placeholder until the session is
// authenticated, then the mounted views.
package shell

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/xlsx-validator-shell/identity"
	"github.com/jrsteele09/xlsx-validator-shell/internal/config"
	apperrors "github.com/jrsteele09/xlsx-validator-shell/internal/errors"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env    string
	config config.Config
	mux    *http.ServeMux
	routes []string

	mountMu sync.Mutex
	mounted atomic.Bool

	promptMu sync.RWMutex
	prompt   *identity.DevicePrompt

	pending *template.Template
}

func New(cfg config.Config) (*Server, error) {
	pending, err := ParseTemplate("pending.html")
	if err != nil {
		return nil, fmt.Errorf("[shell New] failed to parse pending template: %w", err)
	}
	s := &Server{
		env:     cfg.GetEnv(),
		config:  cfg,
		mux:     http.NewServeMux(),
		pending: pending,
	}
	s.RegisterRouteFunc("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteStatic, ChainMiddleware(s.serveFileHandler(), s.HTMLMiddleWare()...))
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.mounted.Load() && r.URL.Path != RouteHealth && !strings.HasPrefix(r.URL.Path, "/static/") {
		s.PendingHandler()(w, r)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Mount registers every route entry. It succeeds once.
func (s *Server) Mount(entries []RouteEntry) error {
	s.mountMu.Lock()
	defer s.mountMu.Unlock()
	if s.mounted.Load() {
		return apperrors.ErrAlreadyMounted
	}

	for _, e := range entries {
		for _, rt := range e.View.Routes(e.Path, e.Props) {
			mw := s.HTMLMiddleWare(s.RequireSession(e.Props))
			s.RegisterRouteFunc(rt.Method+" "+rt.Pattern, ChainMiddleware(rt.Handler, mw...))
		}
	}
	s.mounted.Store(true)
	s.ClearLoginPrompt()
	s.logRoutes()
	return nil
}

func (s *Server) Mounted() bool {
	return s.mounted.Load()
}

// SetLoginPrompt shows a pending device login on the placeholder page.
func (s *Server) SetLoginPrompt(p identity.DevicePrompt) {
	s.promptMu.Lock()
	defer s.promptMu.Unlock()
	s.prompt = &p
}

func (s *Server) ClearLoginPrompt() {
	s.promptMu.Lock()
	defer s.promptMu.Unlock()
	s.prompt = nil
}

func (s *Server) loginPrompt() *identity.DevicePrompt {
	s.promptMu.RLock()
	defer s.promptMu.RUnlock()
	return s.prompt
}

// PendingHandler renders the placeholder served until the shell is mounted.
func (s *Server) PendingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := map[string]interface{}{
			"AppName": s.config.GetAppName(),
			"Prompt":  s.loginPrompt(),
		}
		w.Header().Set("Content-Type", contentTypeHTML)
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusServiceUnavailable)
		if err := s.pending.Execute(w, data); err != nil {
			log.Err(err).Msg("Failed to render pending template")
		}
	}
}

// HealthHandler reports whether the shell is mounted.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"app":     s.config.GetAppName(),
			"mounted": s.mounted.Load(),
		})
	}
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

func logError(method, path, error string) {
	log.Error().Msgf("[%-19s] %s %s", colourMethod(method), path, Red+error+ResetColor)
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}
