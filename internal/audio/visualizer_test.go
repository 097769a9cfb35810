package audio

import (
	"math"
	"strings"
	"testing"
	"time"
)

func sineFrame(freq float64, sampleRate, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(32000 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

func TestVisualizerPeaksAtToneBar(t *testing.T) {
	v := NewVisualizer(VisualizerOptions{Bars: 32, Height: 4})
	// 1 kHz at 16 kHz lands in FFT bin 16, which folds into bar 3.
	v.push(sineFrame(1000, 16000, analysisWindow))
	v.update()

	levels := v.Levels()
	peak := 0
	for i, l := range levels {
		if l > levels[peak] {
			peak = i
		}
	}
	if peak != 3 {
		t.Fatalf("peak bar = %d, want 3 (levels=%v)", peak, levels)
	}
	if levels[3] < 0.5 {
		t.Fatalf("peak level = %.2f, want >= 0.5", levels[3])
	}
	if levels[20] > 0.1 {
		t.Fatalf("far bar level = %.2f, want near silence", levels[20])
	}
}

func TestVisualizerRenderShape(t *testing.T) {
	v := NewVisualizer(VisualizerOptions{Bars: 16, Height: 5})
	v.push(sineFrame(1000, 16000, analysisWindow))
	v.update()

	out := v.Render()
	rows := strings.Split(out, "\n")
	if len(rows) != 5 {
		t.Fatalf("rows = %d, want 5", len(rows))
	}
	if !strings.Contains(rows[len(rows)-1], "█") {
		t.Fatalf("bottom row has no bars: %q", rows[len(rows)-1])
	}
}

func TestVisualizerSilenceRendersBlank(t *testing.T) {
	v := NewVisualizer(VisualizerOptions{Bars: 8, Height: 3})
	v.push(make([]int16, analysisWindow))
	v.update()
	if strings.Contains(v.Render(), "█") {
		t.Fatalf("silence should render no bars")
	}
}

func TestVisualizerAttachDetach(t *testing.T) {
	frames := make(chan []int16, 4)
	got := make(chan string, 16)
	v := NewVisualizer(VisualizerOptions{
		Bars:     8,
		Height:   2,
		Interval: 5 * time.Millisecond,
		OnFrame: func(frame string) {
			select {
			case got <- frame:
			default:
			}
		},
	})

	v.Attach(frames)
	if !v.Attached() {
		t.Fatalf("Attached() = false after Attach")
	}
	frames <- sineFrame(440, 16000, analysisWindow)
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatalf("no frame rendered")
	}

	v.Detach()
	v.Detach()
	if v.Attached() {
		t.Fatalf("Attached() = true after Detach")
	}
	for _, l := range v.Levels() {
		if l != 0 {
			t.Fatalf("levels not cleared after Detach: %v", v.Levels())
		}
	}
	// The stream is not owned by the visualizer.
	frames <- []int16{1}
}
