package coordinator

import "net/http"

// rootBody is the exact response body spec.md §6 requires for GET /, preserved
// verbatim from the upstream project this specification describes.
const rootBody = "This is a PgExporter for Prometheus written in Rust"

// RootHandler serves spec.md §6's root endpoint: a static 200 response at exactly "/",
// and a 404 for any other path, since http.ServeMux registers "/" as a catch-all
// subtree pattern rather than an exact match.
func RootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(rootBody))
}
