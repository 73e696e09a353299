package handlers

import (
	"net/http"
	"strings"

	"lureingest/internal/storage"
)

// Static serves relocated images from dir with the long-lived cache header
// the object store promises.
func Static(prefix, dir string) http.Handler {
	fs := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", storage.CacheControl)
		fs.ServeHTTP(w, r)
	})
}
