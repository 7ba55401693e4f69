package handler

import (
	"fmt"
	"net/http"

	"depindex/internal/index"
	"depindex/internal/util/jsonutil"
)

const maxSpecBodyBytes = 1 << 20

// specRequest is the body of add_spec.json. Dependencies are
// [name, requirement] pairs.
type specRequest struct {
	Name         string     `json:"name"`
	Version      string     `json:"version"`
	Platform     string     `json:"platform"`
	Prerelease   bool       `json:"prerelease"`
	Dependencies [][]string `json:"dependencies"`
}

type specResponse struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Platform string `json:"platform"`
}

func (h *IndexHandler) HandleAddSpec(w http.ResponseWriter, r *http.Request) {
	var req specRequest
	if err := jsonutil.DecodeLimited(r.Body, maxSpecBodyBytes, &req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	spec := index.VersionSpec{
		Name:       req.Name,
		Number:     req.Version,
		Platform:   req.Platform,
		Prerelease: req.Prerelease,
	}
	for _, pair := range req.Dependencies {
		if len(pair) != 2 {
			http.Error(w, "dependencies must be [name, requirement] pairs", http.StatusBadRequest)
			return
		}
		spec.Dependencies = append(spec.Dependencies, index.Dependency{Name: pair[0], Requirement: pair[1]})
	}

	ref, err := h.index.RegisterVersion(r.Context(), spec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSpecResponse(ref))
}

func (h *IndexHandler) HandleRemoveSpec(w http.ResponseWriter, r *http.Request) {
	var req specRequest
	if err := jsonutil.DecodeLimited(r.Body, maxSpecBodyBytes, &req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	ref, err := h.index.DeregisterVersion(r.Context(), index.VersionRef{
		Name:     req.Name,
		Number:   req.Version,
		Platform: req.Platform,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSpecResponse(ref))
}

func toSpecResponse(ref index.VersionRef) specResponse {
	return specResponse{Name: ref.Name, Version: ref.Number, Platform: ref.Platform}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := jsonutil.MarshalNoEscape(v)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
