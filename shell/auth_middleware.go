package shell

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// RequireSession rejects requests while the session is not authenticated.
// A refresh failure streak or a pending reload puts the session in that state.
func (s *Server) RequireSession(props *ViewProps) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if props == nil || props.Session == nil || !props.Session.Authenticated() {
				state := "unknown"
				if props != nil && props.Session != nil {
					state = props.Session.State().String()
				}
				log.Ctx(r.Context()).Info().Str("state", state).Msg("Request without an authenticated session")
				w.Header().Set("Retry-After", "5")
				http.Error(w, "401 - Session not authenticated, reloading", http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}
}
