package httpapi

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/ent0n29/talkback/internal/logx"
)

type hostStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemUsedPct    float64 `json:"mem_used_percent"`
	MemAvailableB uint64  `json:"mem_available_bytes"`
	UptimeSec     int64   `json:"uptime_sec"`
}

type healthResponse struct {
	Status    string            `json:"status"`
	APIStatus map[string]bool   `json:"api_status"`
	Providers map[string]string `json:"providers"`
	Host      hostStats         `json:"host"`
	Error     bool              `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		APIStatus: map[string]bool{
			"murf_api":       s.cfg.MurfAPIKey != "",
			"assemblyai_api": s.cfg.AssemblyAIAPIKey != "",
			"gemini_api":     s.cfg.GeminiAPIKey != "",
		},
		Providers: s.agent.Providers(),
		Host:      s.hostStats(r),
	})
}

// hostStats never fails the health check; missing numbers stay zero.
func (s *Server) hostStats(r *http.Request) hostStats {
	stats := hostStats{UptimeSec: int64(time.Since(s.startedAt).Seconds())}
	if pct, err := cpu.PercentWithContext(r.Context(), 0, false); err == nil && len(pct) > 0 {
		stats.CPUPercent = pct[0]
	} else if err != nil {
		logx.Debugf("health cpu stats: %v", err)
	}
	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err == nil {
		stats.MemUsedPct = vm.UsedPercent
		stats.MemAvailableB = vm.Available
	} else {
		logx.Debugf("health mem stats: %v", err)
	}
	return stats
}
