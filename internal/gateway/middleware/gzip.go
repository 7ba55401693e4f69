package middleware

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// Gzip compresses responses for clients that accept it. 304 responses carry
// no body and pass through untouched.
func Gzip(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}
