package handler

import (
	"net/http"

	artifactcache "depindex/internal/cache/artifact"
)

// MirrorStats reports the mirror store cache counters.
type MirrorStats interface {
	Metrics() artifactcache.MetricsSnapshot
}

type HealthHandler struct {
	index  Index
	mirror MirrorStats
}

func NewHealthHandler(idx Index, mirror MirrorStats) *HealthHandler {
	return &HealthHandler{index: idx, mirror: mirror}
}

type healthResponse struct {
	Status string         `json:"status"`
	Index  indexCounters  `json:"index"`
	Mirror mirrorCounters `json:"mirror"`
}

type indexCounters struct {
	NotModified  uint64 `json:"not_modified"`
	Builds       uint64 `json:"builds"`
	InvariantErr uint64 `json:"invariant_errors"`
}

type mirrorCounters struct {
	BlobHits       uint64 `json:"blob_hits"`
	BlobMisses     uint64 `json:"blob_misses"`
	OriginReads    uint64 `json:"origin_reads"`
	OriginWrites   uint64 `json:"origin_writes"`
	OriginReadErr  uint64 `json:"origin_read_errors"`
	OriginWriteErr uint64 `json:"origin_write_errors"`
}

func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	m := h.index.Metrics()
	resp := healthResponse{
		Status: "ok",
		Index: indexCounters{
			NotModified:  m.NotModified,
			Builds:       m.Builds,
			InvariantErr: m.InvariantErr,
		},
	}
	if h.mirror != nil {
		mm := h.mirror.Metrics()
		resp.Mirror = mirrorCounters{
			BlobHits:       mm.BlobHits,
			BlobMisses:     mm.BlobMisses,
			OriginReads:    mm.OriginReads,
			OriginWrites:   mm.OriginWrites,
			OriginReadErr:  mm.OriginReadErr,
			OriginWriteErr: mm.OriginWriteErr,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
