package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
)

// OriginChecker returns a predicate that accepts requests whose Origin is in
// origins. Requests without an Origin header are always accepted.
func OriginChecker(origins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowedOrigin(origins, origin)
	}
}

// allowedOrigin reports whether origin is listed in origins. A "*" entry
// allows every origin.
func allowedOrigin(origins []string, origin string) bool {
	for _, o := range origins {
		if o == "*" || strings.EqualFold(strings.TrimRight(o, "/"), origin) {
			return true
		}
	}
	return false
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// cors adds CORS headers for tablet browsers and answers preflight requests
func (s *Server) cors(next http.Handler) http.Handler {
	opts := []handlers.CORSOption{
		handlers.AllowedMethods([]string{"GET", "POST", "PATCH", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.OptionStatusCode(http.StatusNoContent),
	}

	if allowsAnyOrigin(s.origins) {
		opts = append(opts, handlers.AllowedOrigins([]string{"*"}))
	} else {
		origins := s.origins
		opts = append(opts, handlers.AllowedOriginValidator(func(origin string) bool {
			return allowedOrigin(origins, origin)
		}))
	}

	return handlers.CORS(opts...)(next)
}
