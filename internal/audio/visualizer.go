package audio

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	analysisWindow = 256
	minDecibels    = -90.0
	maxDecibels    = -10.0
	levelDecay     = 0.8
)

// gradientStops color bars from low to high frequency.
var gradientStops = [][3]float64{
	{0x3b, 0x82, 0xf6},
	{0x22, 0xc5, 0x5e},
	{0xea, 0xb3, 0x08},
	{0xef, 0x44, 0x44},
}

type VisualizerOptions struct {
	Bars     int
	Height   int
	Interval time.Duration
	// OnFrame receives each rendered frame. Called from the refresh goroutine.
	OnFrame func(frame string)
}

// Visualizer turns a live sample stream into an amplitude spectrum bar chart.
// It only observes the stream; the recording owns it.
type Visualizer struct {
	opts   VisualizerOptions
	fft    *fourier.FFT
	window []float64
	styles []lipgloss.Style

	mu      sync.Mutex
	ring    []float64
	next    int
	filled  bool
	levels  []float64
	scratch []float64

	stop chan struct{}
	done chan struct{}
}

func NewVisualizer(opts VisualizerOptions) *Visualizer {
	if opts.Bars <= 0 {
		opts.Bars = 32
	}
	if opts.Bars > analysisWindow/2 {
		opts.Bars = analysisWindow / 2
	}
	if opts.Height <= 0 {
		opts.Height = 8
	}
	if opts.Interval <= 0 {
		opts.Interval = 50 * time.Millisecond
	}
	v := &Visualizer{
		opts:    opts,
		fft:     fourier.NewFFT(analysisWindow),
		window:  hannWindow(analysisWindow),
		ring:    make([]float64, analysisWindow),
		levels:  make([]float64, opts.Bars),
		scratch: make([]float64, analysisWindow),
		styles:  make([]lipgloss.Style, opts.Bars),
	}
	for i := range v.styles {
		v.styles[i] = lipgloss.NewStyle().Foreground(gradientColor(i, opts.Bars))
	}
	return v
}

// Attach starts consuming frames and refreshing. A previous attachment is
// detached first.
func (v *Visualizer) Attach(frames <-chan []int16) {
	v.Detach()

	v.mu.Lock()
	stop := make(chan struct{})
	done := make(chan struct{})
	v.stop = stop
	v.done = done
	v.mu.Unlock()

	go v.run(frames, stop, done)
}

// Detach stops the refresh loop and clears the chart. Idempotent.
func (v *Visualizer) Detach() {
	v.mu.Lock()
	stop, done := v.stop, v.done
	v.stop, v.done = nil, nil
	v.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done

	v.mu.Lock()
	for i := range v.ring {
		v.ring[i] = 0
	}
	for i := range v.levels {
		v.levels[i] = 0
	}
	v.next, v.filled = 0, false
	v.mu.Unlock()
}

func (v *Visualizer) Attached() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stop != nil
}

func (v *Visualizer) run(frames <-chan []int16, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(v.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case samples, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			v.push(samples)
		case <-ticker.C:
			v.update()
			if v.opts.OnFrame != nil {
				v.opts.OnFrame(v.Render())
			}
		}
	}
}

func (v *Visualizer) push(samples []int16) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, s := range samples {
		v.ring[v.next] = float64(s) / 32768.0
		v.next++
		if v.next == len(v.ring) {
			v.next = 0
			v.filled = true
		}
	}
}

// update recomputes bar levels from the latest analysis window.
func (v *Visualizer) update() {
	v.mu.Lock()
	defer v.mu.Unlock()

	n := len(v.ring)
	for i := 0; i < n; i++ {
		v.scratch[i] = v.ring[(v.next+i)%n] * v.window[i]
	}
	coeffs := v.fft.Coefficients(nil, v.scratch)

	bins := n / 2
	sums := make([]float64, len(v.levels))
	counts := make([]int, len(v.levels))
	for bin := 1; bin <= bins && bin < len(coeffs); bin++ {
		bar := (bin - 1) * len(v.levels) / bins
		sums[bar] += cmplx.Abs(coeffs[bin]) / float64(bins)
		counts[bar]++
	}
	for i := range v.levels {
		mag := 0.0
		if counts[i] > 0 {
			mag = sums[i] / float64(counts[i])
		}
		level := decibelLevel(mag)
		if decayed := v.levels[i] * levelDecay; decayed > level {
			level = decayed
		}
		v.levels[i] = level
	}
}

func (v *Visualizer) Levels() []float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]float64(nil), v.levels...)
}

// Render draws the current levels as Height rows of colored bars.
func (v *Visualizer) Render() string {
	levels := v.Levels()
	rows := make([]string, v.opts.Height)
	for r := 0; r < v.opts.Height; r++ {
		threshold := float64(v.opts.Height-r) / float64(v.opts.Height)
		var b strings.Builder
		for i, level := range levels {
			if level >= threshold-1e-9 {
				b.WriteString(v.styles[i].Render("█"))
			} else {
				b.WriteString(" ")
			}
		}
		rows[r] = b.String()
	}
	return strings.Join(rows, "\n")
}

func decibelLevel(mag float64) float64 {
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	level := (db - minDecibels) / (maxDecibels - minDecibels)
	return math.Max(0, math.Min(1, level))
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

func gradientColor(i, n int) lipgloss.Color {
	if n <= 1 {
		return lipgloss.Color(hexColor(gradientStops[0]))
	}
	pos := float64(i) / float64(n-1) * float64(len(gradientStops)-1)
	lo := int(math.Floor(pos))
	if lo >= len(gradientStops)-1 {
		return lipgloss.Color(hexColor(gradientStops[len(gradientStops)-1]))
	}
	frac := pos - float64(lo)
	var c [3]float64
	for k := 0; k < 3; k++ {
		c[k] = gradientStops[lo][k]*(1-frac) + gradientStops[lo+1][k]*frac
	}
	return lipgloss.Color(hexColor(c))
}

func hexColor(c [3]float64) string {
	return fmt.Sprintf("#%02x%02x%02x", int(math.Round(c[0])), int(math.Round(c[1])), int(math.Round(c[2])))
}
