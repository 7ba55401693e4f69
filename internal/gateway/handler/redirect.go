package handler

import (
	"net/http"
	"strings"
)

const robotsTxt = "User-agent: *\nDisallow: /\n"

// RedirectHandler sends browsing and legacy download paths to the primary
// registry, which owns them.
type RedirectHandler struct {
	upstream string
}

func NewRedirectHandler(upstream string) *RedirectHandler {
	return &RedirectHandler{upstream: strings.TrimSuffix(strings.TrimSpace(upstream), "/")}
}

func (h *RedirectHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.upstream, http.StatusFound)
}

// HandlePassthrough keeps the request path and query.
func (h *RedirectHandler) HandlePassthrough(w http.ResponseWriter, r *http.Request) {
	target := h.upstream + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func HandleRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", textContentType)
	_, _ = w.Write([]byte(robotsTxt))
}
