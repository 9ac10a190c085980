// Package middleware provides HTTP middleware for the Deepfake Defender API.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

const preflightMaxAge = 10 * 60 // seconds

var (
	corsMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", ")
	corsHeaders = strings.Join([]string{"Content-Type", "X-Game-Session-ID"}, ", ")
)

// originPolicy decides which browser origins may call the game API.
type originPolicy struct {
	any      bool
	explicit map[string]struct{}
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{explicit: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		if o == "*" {
			p.any = true
			continue
		}
		p.explicit[strings.TrimRight(o, "/")] = struct{}{}
	}
	return p
}

// match reports whether origin may call the API and whether it may send the
// identity cookie. Cookies are only allowed for explicitly listed origins.
func (p originPolicy) match(origin string) (allowed, credentials bool) {
	if _, ok := p.explicit[origin]; ok {
		return true, true
	}
	return p.any, false
}

// CORS returns middleware that answers cross-origin requests from the
// configured frontends. Preflight requests are answered without reaching the
// router.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newOriginPolicy(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			if origin := r.Header.Get("Origin"); origin != "" {
				if allowed, creds := policy.match(origin); allowed {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Access-Control-Allow-Methods", corsMethods)
					h.Set("Access-Control-Allow-Headers", corsHeaders)
					if creds {
						h.Set("Access-Control-Allow-Credentials", "true")
					}
				}
			}

			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Max-Age", strconv.Itoa(preflightMaxAge))
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
