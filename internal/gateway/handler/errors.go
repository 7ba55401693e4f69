package handler

import (
	"errors"
	"log"
	"net/http"

	"depindex/internal/index"
)

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, index.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, index.ErrVersionExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, index.ErrInvalidSpec), errors.Is(err, index.ErrUnknownFormat):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
