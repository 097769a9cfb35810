package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ent0n29/talkback/internal/audio"
	"github.com/ent0n29/talkback/internal/observability"
	"github.com/ent0n29/talkback/internal/turnclient"
)

type options struct {
	baseURL        string
	turns          int
	clipMS         int
	sampleRate     int
	clipPaths      []string
	interTurnDelay time.Duration
	turnTimeout    time.Duration
	resetStages    bool
	verbose        bool
}

type turnSample struct {
	latency  time.Duration
	replyLen int
	err      error
}

type summary struct {
	Turns    int
	Failures int
	P50      time.Duration
	P95      time.Duration
	Max      time.Duration
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "perfvoice: %v\n", err)
		os.Exit(2)
	}
	if err := run(context.Background(), cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "perfvoice: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var cfg options
	var clipsRaw string
	var interTurnMS int
	var turnTimeoutMS int

	fs := flag.NewFlagSet("perfvoice", flag.ContinueOnError)
	fs.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "talkback server base URL")
	fs.IntVar(&cfg.turns, "turns", 10, "number of turns to replay")
	fs.IntVar(&cfg.clipMS, "clip-ms", 1200, "length of the generated tone clip in milliseconds")
	fs.IntVar(&cfg.sampleRate, "sample-rate", audio.DefaultSampleRate, "sample rate of generated clips")
	fs.StringVar(&clipsRaw, "clips", "", "WAV files separated by ',' (replaces the generated clip)")
	fs.IntVar(&interTurnMS, "inter-turn-ms", 180, "delay between turns in milliseconds")
	fs.IntVar(&turnTimeoutMS, "turn-timeout-ms", 60000, "timeout per turn in milliseconds")
	fs.BoolVar(&cfg.resetStages, "reset", true, "reset the server stage window before replaying")
	fs.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.turns <= 0 {
		return options{}, fmt.Errorf("turns must be > 0")
	}
	if cfg.clipMS < 50 || cfg.clipMS > 60000 {
		return options{}, fmt.Errorf("clip-ms must be in [50,60000]")
	}
	if cfg.sampleRate <= 0 {
		return options{}, fmt.Errorf("sample-rate must be > 0")
	}
	if interTurnMS < 0 {
		interTurnMS = 0
	}
	if turnTimeoutMS < 1000 {
		turnTimeoutMS = 1000
	}
	cfg.interTurnDelay = time.Duration(interTurnMS) * time.Millisecond
	cfg.turnTimeout = time.Duration(turnTimeoutMS) * time.Millisecond

	for _, part := range strings.Split(clipsRaw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			cfg.clipPaths = append(cfg.clipPaths, p)
		}
	}
	return cfg, nil
}

func run(ctx context.Context, cfg options, out io.Writer) error {
	client, err := turnclient.New(turnclient.Options{
		BaseURL:        cfg.baseURL,
		SubmitTimeout:  cfg.turnTimeout,
		RequestTimeout: 10 * time.Second,
	})
	if err != nil {
		return err
	}
	httpClient := &http.Client{Timeout: 10 * time.Second}

	clips, err := loadClips(cfg)
	if err != nil {
		return fmt.Errorf("prepare clips: %w", err)
	}

	sessionID, err := client.CreateSession(ctx)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer func() {
		_ = client.ClearHistory(context.Background(), sessionID)
	}()

	if cfg.resetStages {
		if _, err := fetchStages(ctx, httpClient, cfg.baseURL, true); err != nil {
			return fmt.Errorf("reset stage window: %w", err)
		}
	}
	if cfg.verbose {
		fmt.Fprintf(out, "perfvoice: session=%s turns=%d clips=%d\n", sessionID, cfg.turns, len(clips))
	}

	samples := make([]turnSample, 0, cfg.turns)
	for i := 0; i < cfg.turns; i++ {
		clip := clips[i%len(clips)]
		start := time.Now()
		res, err := client.SubmitTurn(ctx, sessionID, clip)
		s := turnSample{latency: time.Since(start), replyLen: len(res.Reply), err: err}
		samples = append(samples, s)
		if cfg.verbose {
			if err != nil {
				fmt.Fprintf(out, "perfvoice: turn %d/%d failed after %s: %v\n", i+1, cfg.turns, s.latency.Round(time.Millisecond), err)
			} else {
				fmt.Fprintf(out, "perfvoice: turn %d/%d %s reply=%d chars\n", i+1, cfg.turns, s.latency.Round(time.Millisecond), s.replyLen)
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if cfg.interTurnDelay > 0 && i < cfg.turns-1 {
			time.Sleep(cfg.interTurnDelay)
		}
	}

	sum := summarize(samples)
	fmt.Fprintf(out, "client: turns=%d failures=%d p50=%s p95=%s max=%s\n",
		sum.Turns, sum.Failures, sum.P50.Round(time.Millisecond), sum.P95.Round(time.Millisecond), sum.Max.Round(time.Millisecond))

	snap, err := fetchStages(ctx, httpClient, cfg.baseURL, false)
	if err != nil {
		fmt.Fprintf(out, "server: stage snapshot unavailable: %v\n", err)
	} else {
		printStages(out, snap)
	}
	if sum.Failures == sum.Turns {
		return fmt.Errorf("all %d turns failed", sum.Turns)
	}
	return nil
}

func loadClips(cfg options) ([]audio.Blob, error) {
	if len(cfg.clipPaths) == 0 {
		blob, err := toneClip(time.Duration(cfg.clipMS)*time.Millisecond, cfg.sampleRate)
		if err != nil {
			return nil, err
		}
		return []audio.Blob{blob}, nil
	}
	clips := make([]audio.Blob, 0, len(cfg.clipPaths))
	for _, path := range cfg.clipPaths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		pcm, sr, err := audio.DecodeWAVPCM16(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		blob, err := audio.NewWAVBlob(pcm, sr)
		if err != nil {
			return nil, err
		}
		clips = append(clips, blob)
	}
	return clips, nil
}

// toneClip is a 220Hz tone with a short fade at both ends.
func toneClip(d time.Duration, sampleRate int) (audio.Blob, error) {
	n := int(d.Seconds() * float64(sampleRate))
	fade := sampleRate / 50
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		amp := 0.3
		if i < fade {
			amp *= float64(i) / float64(fade)
		} else if n-i < fade {
			amp *= float64(n-i) / float64(fade)
		}
		v := int16(amp * math.MaxInt16 * math.Sin(2*math.Pi*220*float64(i)/float64(sampleRate)))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return audio.NewWAVBlob(pcm, sampleRate)
}

func summarize(samples []turnSample) summary {
	sum := summary{Turns: len(samples)}
	var ok []time.Duration
	for _, s := range samples {
		if s.err != nil {
			sum.Failures++
			continue
		}
		ok = append(ok, s.latency)
	}
	if len(ok) == 0 {
		return sum
	}
	sort.Slice(ok, func(i, j int) bool { return ok[i] < ok[j] })
	sum.P50 = percentile(ok, 0.50)
	sum.P95 = percentile(ok, 0.95)
	sum.Max = ok[len(ok)-1]
	return sum
}

// percentile uses nearest rank over sorted values.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

func fetchStages(ctx context.Context, client *http.Client, baseURL string, reset bool) (observability.TurnStageSnapshot, error) {
	url := baseURL + "/agent/perf/latency"
	if reset {
		url += "?reset=1"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return observability.TurnStageSnapshot{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return observability.TurnStageSnapshot{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return observability.TurnStageSnapshot{}, fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var snap observability.TurnStageSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return observability.TurnStageSnapshot{}, err
	}
	return snap, nil
}

func printStages(out io.Writer, snap observability.TurnStageSnapshot) {
	if len(snap.Stages) == 0 {
		fmt.Fprintln(out, "server: no stage samples")
		return
	}
	for _, st := range snap.Stages {
		fmt.Fprintf(out, "server: %-10s n=%d p50=%.0fms p95=%.0fms p99=%.0fms\n", st.Stage, st.Samples, st.P50MS, st.P95MS, st.P99MS)
	}
	for _, ind := range snap.Indicators {
		fmt.Fprintf(out, "server: indicator %s=%d\n", ind.Name, ind.Count)
	}
}
