package middleware

import (
	"net/http"
	"strings"

	"github.com/samber/lo"
)

// CORS adds Access-Control headers for allowed origins and answers preflight
// requests itself. It wraps the whole router because preflights never match
// a method-restricted route.
func CORS(allowedOrigins []string, next http.Handler) http.Handler {
	allowAll := lo.Contains(allowedOrigins, "*")
	allowed := lo.SliceToMap(allowedOrigins, func(o string) (string, struct{}) {
		return strings.ToLower(strings.TrimRight(o, "/")), struct{}{}
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			_, listed := allowed[strings.ToLower(origin)]
			switch {
			case listed:
				// Credentials are only allowed with an explicit origin.
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Max-Age", "600")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
