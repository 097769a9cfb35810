package observability

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

type TurnStageStats struct {
	Stage       string  `json:"stage"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
	// OverTarget is set when the window's p95 misses the stage target.
	OverTarget bool `json:"over_target,omitempty"`
}

type TurnIndicator struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// TurnStageSnapshot is served by /agent/perf/latency.
type TurnStageSnapshot struct {
	GeneratedAt time.Time        `json:"generated_at"`
	WindowSize  int              `json:"window_size"`
	Stages      []TurnStageStats `json:"stages"`
	Indicators  []TurnIndicator  `json:"indicators,omitempty"`
}

// stageTargetsMS are the p95 budgets of one batched turn.
var stageTargetsMS = map[string]float64{
	StageSTT:       2500,
	StageLLM:       3000,
	StageTTS:       2500,
	StageStore:     50,
	StageTurnTotal: 8000,
}

// latencyRing keeps the most recent samples of one stage.
type latencyRing struct {
	values []float64
	next   int
	full   bool
	last   float64
}

func (r *latencyRing) add(ms float64) {
	r.values[r.next] = ms
	r.last = ms
	r.next = (r.next + 1) % len(r.values)
	if r.next == 0 {
		r.full = true
	}
}

// sorted returns a sorted copy of the retained samples.
func (r *latencyRing) sorted() []float64 {
	n := r.next
	if r.full {
		n = len(r.values)
	}
	out := append([]float64(nil), r.values[:n]...)
	sort.Float64s(out)
	return out
}

// turnStageWindow is a rolling per-stage latency window plus counters for
// degraded turns (llm fallback, tts errors).
type turnStageWindow struct {
	mu         sync.RWMutex
	size       int
	rings      map[string]*latencyRing
	indicators map[string]int
}

func newTurnStageWindow(size int) *turnStageWindow {
	if size <= 0 {
		size = 256
	}
	return &turnStageWindow{
		size:       size,
		rings:      make(map[string]*latencyRing),
		indicators: make(map[string]int),
	}
}

func (w *turnStageWindow) Observe(stage string, ms float64) {
	if stage == "" || ms < 0 || math.IsNaN(ms) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.rings[stage]
	if !ok {
		r = &latencyRing{values: make([]float64, w.size)}
		w.rings[stage] = r
	}
	r.add(ms)
}

func (w *turnStageWindow) ObserveIndicator(name string) {
	name = strings.TrimSpace(name)
	if w == nil || name == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.indicators[name]++
}

func (w *turnStageWindow) Snapshot() TurnStageSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	snap := TurnStageSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.size,
		Stages:      make([]TurnStageStats, 0, len(w.rings)),
	}
	for _, stage := range sortedKeys(w.rings) {
		samples := w.rings[stage].sorted()
		if len(samples) == 0 {
			continue
		}
		snap.Stages = append(snap.Stages, stageStats(stage, samples, w.rings[stage].last))
	}
	for _, name := range sortedKeys(w.indicators) {
		if n := w.indicators[name]; n > 0 {
			snap.Indicators = append(snap.Indicators, TurnIndicator{Name: name, Count: n})
		}
	}
	return snap
}

func (w *turnStageWindow) Reset() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rings = make(map[string]*latencyRing)
	w.indicators = make(map[string]int)
}

// stageStats summarizes sorted samples with nearest-rank quantiles.
func stageStats(stage string, samples []float64, last float64) TurnStageStats {
	s := TurnStageStats{
		Stage:       stage,
		Samples:     len(samples),
		LastMS:      round2(last),
		AvgMS:       round2(stat.Mean(samples, nil)),
		P50MS:       round2(stat.Quantile(0.50, stat.Empirical, samples, nil)),
		P95MS:       round2(stat.Quantile(0.95, stat.Empirical, samples, nil)),
		P99MS:       round2(stat.Quantile(0.99, stat.Empirical, samples, nil)),
		TargetP95MS: stageTargetsMS[stage],
	}
	s.OverTarget = s.TargetP95MS > 0 && s.P95MS > s.TargetP95MS
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
