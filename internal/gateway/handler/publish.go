package handler

import (
	"context"
	"log"
	"net/http"

	"depindex/internal/gateway/service/publish"
)

// Publisher copies the global artifacts to the mirror.
type Publisher interface {
	Publish(ctx context.Context) ([]publish.Report, error)
}

type PublishHandler struct {
	publisher Publisher
}

func NewPublishHandler(p Publisher) *PublishHandler {
	return &PublishHandler{publisher: p}
}

type publishEntry struct {
	Path        string `json:"path"`
	Fingerprint string `json:"fingerprint"`
	Skipped     bool   `json:"skipped"`
}

func (h *PublishHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	reports, err := h.publisher.Publish(r.Context())
	if err != nil {
		log.Printf("publish: %v", err)
		http.Error(w, "publish failed", http.StatusBadGateway)
		return
	}
	out := make([]publishEntry, 0, len(reports))
	for _, rep := range reports {
		out = append(out, publishEntry{Path: rep.Path, Fingerprint: string(rep.Fingerprint), Skipped: rep.Skipped})
	}
	writeJSON(w, http.StatusOK, out)
}
