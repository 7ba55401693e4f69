package handler

import (
	"context"
	"net/http"
	"strings"

	"depindex/internal/index"
)

// Index is the set of index operations the HTTP shell exposes.
type Index interface {
	Names(ctx context.Context, client index.Fingerprint) (index.Result, error)
	Versions(ctx context.Context, client index.Fingerprint) (index.Result, error)
	PackageDependencies(ctx context.Context, name string, client index.Fingerprint) (index.Result, error)
	Dependencies(ctx context.Context, names []string, format index.BulkFormat) ([]byte, error)
	RegisterVersion(ctx context.Context, spec index.VersionSpec) (index.VersionRef, error)
	DeregisterVersion(ctx context.Context, ref index.VersionRef) (index.VersionRef, error)
	Metrics() index.MetricsSnapshot
}

const textContentType = "text/plain; charset=utf-8"

var bulkContentTypes = map[index.BulkFormat]string{
	index.BulkMarshal: "application/octet-stream",
	index.BulkJSON:    "application/json",
	index.BulkCBOR:    "application/cbor",
}

type IndexHandler struct {
	index        Index
	maxBulkNames int
}

func NewIndexHandler(idx Index, maxBulkNames int) *IndexHandler {
	if maxBulkNames <= 0 {
		maxBulkNames = 200
	}
	return &IndexHandler{index: idx, maxBulkNames: maxBulkNames}
}

func (h *IndexHandler) HandleNames(w http.ResponseWriter, r *http.Request) {
	res, err := h.index.Names(r.Context(), clientFingerprint(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, r, res)
}

func (h *IndexHandler) HandleVersions(w http.ResponseWriter, r *http.Request) {
	res, err := h.index.Versions(r.Context(), clientFingerprint(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, r, res)
}

func (h *IndexHandler) HandlePackageDependencies(w http.ResponseWriter, r *http.Request) {
	res, err := h.index.PackageDependencies(r.Context(), r.PathValue("name"), clientFingerprint(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, r, res)
}

// HandleDependencies serves the bulk query; format is fixed per route.
func (h *IndexHandler) HandleDependencies(format index.BulkFormat) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names := requestedNames(r)
		if len(names) > h.maxBulkNames {
			http.Error(w, "too many gems requested", http.StatusUnprocessableEntity)
			return
		}
		body, err := h.index.Dependencies(r.Context(), names, format)
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", bulkContentTypes[format])
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write(body)
		}
	}
}

// requestedNames reads the comma-separated gems parameter, which may be
// repeated.
func requestedNames(r *http.Request) []string {
	var names []string
	for _, raw := range r.URL.Query()["gems"] {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

// clientFingerprint returns If-None-Match with one pair of surrounding
// quotes removed. Anything else, weak validators included, is compared
// verbatim and therefore never matches.
func clientFingerprint(r *http.Request) index.Fingerprint {
	raw := strings.TrimSpace(r.Header.Get("If-None-Match"))
	if len(raw) >= 2 && strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) {
		raw = raw[1 : len(raw)-1]
	}
	return index.Fingerprint(raw)
}

func writeResult(w http.ResponseWriter, r *http.Request, res index.Result) {
	w.Header().Set("ETag", `"`+string(res.Artifact.Fingerprint)+`"`)
	if res.NotModified {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", textContentType)
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(res.Artifact.Body)
	}
}
