// Package gzip распаковывает тела запросов с Content-Encoding: gzip.
// Мобильные клиенты сжимают крупные пакеты операций
package gzip

import (
	"compress/gzip"
	"net/http"
	"strings"

	"golang.org/x/exp/slog"
)

// Decompress chi middleware
func Decompress(log *slog.Logger) func(http.Handler) http.Handler {
	log = log.With("component", "gzip_middleware")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.EqualFold(strings.TrimSpace(r.Header.Get("Content-Encoding")), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			zr, err := gzip.NewReader(r.Body)
			if err != nil {
				log.Warn("bad gzip body", "path", r.URL.Path, "error", err)
				http.Error(w, "malformed gzip body", http.StatusBadRequest)
				return
			}
			defer zr.Close()

			r.Body = zr
			r.Header.Del("Content-Encoding")
			r.Header.Del("Content-Length")
			r.ContentLength = -1
			next.ServeHTTP(w, r)
		})
	}
}
