package httpapi

import (
	"net/http"
	"strings"

	"github.com/ent0n29/talkback/internal/observability"
)

// handlePerfLatency serves the rolling stage window. ?reset=1 clears it
// after the snapshot is taken; ?stage=name keeps only that stage.
func (s *Server) handlePerfLatency(w http.ResponseWriter, r *http.Request) {
	snap := observability.TurnStageSnapshot{Stages: []observability.TurnStageStats{}}
	if s.metrics != nil {
		snap = s.metrics.SnapshotTurnStages()
	}
	if stage := strings.TrimSpace(r.URL.Query().Get("stage")); stage != "" {
		kept := make([]observability.TurnStageStats, 0, 1)
		for _, st := range snap.Stages {
			if st.Stage == stage {
				kept = append(kept, st)
			}
		}
		snap.Stages = kept
	}
	if r.URL.Query().Get("reset") == "1" {
		s.metrics.ResetTurnStages()
	}
	respondJSON(w, http.StatusOK, snap)
}
