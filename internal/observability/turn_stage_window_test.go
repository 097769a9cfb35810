package observability

import (
	"fmt"
	"testing"
	"time"
)

func TestTurnStageWindowSnapshot(t *testing.T) {
	w := newTurnStageWindow(8)
	w.Observe(StageTTS, 500)
	w.Observe(StageTTS, 700)
	w.Observe(StageTTS, 900)
	w.ObserveIndicator("llm_fallback")
	w.ObserveIndicator("llm_fallback")

	snap := w.Snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Stages) != 1 {
		t.Fatalf("len(Stages) = %d, want 1", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Stage != StageTTS {
		t.Fatalf("Stage = %q, want %q", s.Stage, StageTTS)
	}
	if s.Samples != 3 {
		t.Fatalf("Samples = %d, want 3", s.Samples)
	}
	if s.LastMS != 900 {
		t.Fatalf("LastMS = %.2f, want 900", s.LastMS)
	}
	if s.P50MS != 700 {
		t.Fatalf("P50MS = %.2f, want 700", s.P50MS)
	}
	if s.P95MS != 900 {
		t.Fatalf("P95MS = %.2f, want 900", s.P95MS)
	}
	if s.OverTarget {
		t.Fatalf("OverTarget set for a stage within budget")
	}
	if s.TargetP95MS != 2500 {
		t.Fatalf("TargetP95MS = %.2f, want 2500", s.TargetP95MS)
	}
	if len(snap.Indicators) != 1 {
		t.Fatalf("len(Indicators) = %d, want 1", len(snap.Indicators))
	}
	if snap.Indicators[0].Name != "llm_fallback" || snap.Indicators[0].Count != 2 {
		t.Fatalf("Indicators[0] = %+v, want llm_fallback x2", snap.Indicators[0])
	}
}

func TestTurnStageWindowWraps(t *testing.T) {
	w := newTurnStageWindow(2)
	w.Observe(StageLLM, 100)
	w.Observe(StageLLM, 200)
	w.Observe(StageLLM, 300)

	s := w.Snapshot().Stages[0]
	if s.Samples != 2 || s.AvgMS != 250 || s.LastMS != 300 {
		t.Fatalf("stats = %+v, want 2 samples avg 250 last 300", s)
	}
}

func TestTurnStageWindowFlagsSlowStage(t *testing.T) {
	w := newTurnStageWindow(4)
	w.Observe(StageStore, 20)
	w.Observe(StageStore, 400)
	w.Observe("custom", 5)
	w.Observe(StageStore, -1)

	snap := w.Snapshot()
	if len(snap.Stages) != 2 || snap.Stages[0].Stage != "custom" {
		t.Fatalf("stages = %+v", snap.Stages)
	}
	if snap.Stages[0].TargetP95MS != 0 || snap.Stages[0].OverTarget {
		t.Fatalf("custom stage has a target: %+v", snap.Stages[0])
	}
	store := snap.Stages[1]
	if store.Samples != 2 || !store.OverTarget {
		t.Fatalf("store stats = %+v, want 2 samples over target", store)
	}
}

func TestMetricsObserveStage(t *testing.T) {
	m := NewMetrics(fmt.Sprintf("test_observability_%d", time.Now().UnixNano()))
	m.ObserveStage(StageSTT, 1500*time.Millisecond)
	m.ObserveIndicator("empty_audio")

	snap := m.SnapshotTurnStages()
	if len(snap.Stages) != 1 || snap.Stages[0].LastMS != 1500 {
		t.Fatalf("snapshot = %+v", snap)
	}

	m.ResetTurnStages()
	if snap := m.SnapshotTurnStages(); len(snap.Stages) != 0 || len(snap.Indicators) != 0 {
		t.Fatalf("snapshot after reset = %+v", snap)
	}

	var nilMetrics *Metrics
	nilMetrics.ObserveStage(StageSTT, time.Second)
}
