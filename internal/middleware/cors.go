package middleware

import (
	"net/http"

	"github.com/gorilla/handlers"
)

// CORS allows browser calls from a single origin and answers preflight
// requests directly. An empty origin leaves responses untouched.
func CORS(origin string) func(http.Handler) http.Handler {
	if origin == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	return handlers.CORS(
		handlers.AllowedOrigins([]string{origin}),
		handlers.AllowedMethods([]string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		handlers.OptionStatusCode(http.StatusNoContent),
	)
}
