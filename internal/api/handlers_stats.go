package api

import (
	"encoding/json"
	"net/http"
)

// handleExtractStats reports remote extraction call telemetry: attempt and
// retry counters plus latency percentiles over the recent window.
func (s *Server) handleExtractStats(w http.ResponseWriter, r *http.Request) {
	snap := s.client.Stats.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"endpoint":    s.client.Host(),
		"queue_depth": s.orchestrator.QueueDepth(),
		"calls":       snap,
	})
}
