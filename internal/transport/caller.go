package transport

import (
	"net/http"

	"github.com/rpggio/packetd/internal/mcp"
)

// CallerMiddleware extracts X-User-Id and stores it in context.
func CallerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := mcp.ParseCallerID(r.Header.Get(mcp.CallerHeader)); ok {
			next.ServeHTTP(w, r.WithContext(mcp.WithCallerID(r.Context(), id)))
			return
		}
		next.ServeHTTP(w, r)
	})
}
