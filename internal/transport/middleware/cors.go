package middleware

import (
	"net/http"
	"strings"
)

var (
	corsAllowMethods = []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
	}
	corsAllowHeaders = []string{
		"Accept",
		"Authorization",
		"Content-Type",
		"X-Request-ID",
	}
)

// CORS answers preflight requests and stamps the response headers browsers
// need to call the API from another origin. Origins are reflected rather
// than wildcarded so credentialed requests keep working.
func CORS(next http.Handler) http.Handler {
	allowMethods := strings.Join(corsAllowMethods, ", ")
	allowHeaders := strings.Join(corsAllowHeaders, ", ")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Add("Vary", "Origin")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", allowMethods)
			w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
			w.Header().Set("Access-Control-Max-Age", "3600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
