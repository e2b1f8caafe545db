package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"cardmarket/pkg/apierror"
)

// Recovery turns a handler panic into a 500 response.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				log.Printf("[Recovery] Panic on %s %s req=%s: %v\n%s",
					r.Method, r.URL.Path, GetRequestID(r.Context()), err, debug.Stack())
				writeError(w, apierror.InternalError(""))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
