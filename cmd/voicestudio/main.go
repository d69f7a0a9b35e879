// VoiceStudio: a terminal voice studio. Type a script, synthesize it,
// clone a voice from a short recording, watch the spectrum and export WAV.
//
// Usage:
//
//	voicestudio [-config voicestudio.yaml] [-verbose] [-quiet]
//	voicestudio -say "text" [-export] [-export-dir out]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/hammamikhairi/voicestudio/internal/capture"
	"github.com/hammamikhairi/voicestudio/internal/codec"
	"github.com/hammamikhairi/voicestudio/internal/config"
	"github.com/hammamikhairi/voicestudio/internal/display"
	"github.com/hammamikhairi/voicestudio/internal/domain"
	"github.com/hammamikhairi/voicestudio/internal/graph"
	"github.com/hammamikhairi/voicestudio/internal/logger"
	"github.com/hammamikhairi/voicestudio/internal/observe"
	"github.com/hammamikhairi/voicestudio/internal/provider/azure"
	"github.com/hammamikhairi/voicestudio/internal/provider/chat"
	"github.com/hammamikhairi/voicestudio/internal/provider/gemini"
	"github.com/hammamikhairi/voicestudio/internal/studio"
	"github.com/hammamikhairi/voicestudio/internal/viz"
)

// Environment variables read after .env is loaded.
const (
	envGeminiKey    = "GEMINI_API_KEY"
	envChatEndpoint = "CHAT_ENDPOINT"
	envChatKey      = "CHAT_API_KEY"
)

const defaultConfigFile = "voicestudio.yaml"

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "YAML config file (default: "+defaultConfigFile+" when present)")
	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", "", "file to write logs to (use \"stderr\" to log to console)")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9464")
	synthBackend := flag.String("synthesis", "", "synthesis backend: gemini or azure")
	refineBackend := flag.String("refine", "", "refinement backend: gemini or chat")
	lang := flag.String("lang", "", "starting language, e.g. fr-FR")
	voice := flag.String("voice", "", "starting preset voice")
	rate := flag.Float64("rate", 0, "playback rate (0.5-2.0)")
	gain := flag.Float64("gain", -1, "output gain (0-1)")
	noCache := flag.Bool("no-cache", false, "disable the in-memory synthesis cache")
	say := flag.String("say", "", "synthesize and play this text without the UI, then exit")
	export := flag.Bool("export", false, "with -say: export the result as WAV")
	exportDir := flag.String("export-dir", "", "directory for exported WAV files")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	// Flags override the file.
	switch {
	case *quiet:
		cfg.Log.Level = logger.LevelOff.String()
	case *verbose:
		cfg.Log.Level = logger.LevelVerbose.String()
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	if *synthBackend != "" {
		cfg.Providers.Synthesis.Backend = *synthBackend
	}
	if *refineBackend != "" {
		cfg.Providers.Refine.Backend = *refineBackend
	}
	if *lang != "" {
		cfg.Playback.Language = *lang
	}
	if *voice != "" {
		cfg.Playback.Voice = *voice
	}
	if *rate > 0 {
		cfg.Playback.Rate = *rate
	}
	if *gain >= 0 {
		cfg.Playback.Gain = *gain
	}
	if *noCache {
		cfg.Providers.Synthesis.CacheEntries = 0
	}
	if *exportDir != "" {
		cfg.Export.Dir = *exportDir
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	level, _ := logger.ParseLevel(cfg.Log.Level)

	// Direct logs to a file by default so the UI stays clean.
	var logOut io.Writer = os.Stderr
	if cfg.Log.File != "" && cfg.Log.File != "stderr" {
		dir := filepath.Dir(cfg.Log.File)
		if dir != "" && dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", cfg.Log.File, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}

	// Redirect Go's default log package (used by audio backends) to the
	// same output so it doesn't spam the terminal.
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(level, logOut)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics ──────────────────────────────────────────────────────
	metrics := observe.Discard()
	var exporter *observe.Exporter
	if cfg.Metrics.Addr != "" {
		exporter, err = observe.NewExporter(
			observe.WithServiceVersion(version),
			observe.WithRuntimeCollectors(),
			observe.WithGlobalProvider(),
		)
		if err != nil {
			log.Error("metrics disabled: %v", err)
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = exporter.Shutdown(sctx)
			}()
			metrics = exporter.Metrics
		}
	}

	// ── Providers ────────────────────────────────────────────────────
	prov, err := buildProviders(ctx, cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	// ── Audio ────────────────────────────────────────────────────────
	graphLog := log.Named("graph")
	mgr := graph.NewManager(
		graph.NewOtoSinkFactory(graphLog, graph.WithBufferSize(cfg.Audio.BufferSize)),
		graphLog,
		graph.WithSampleRate(cfg.Audio.SampleRate),
		graph.WithChannels(cfg.Audio.Channels),
		graph.WithFFTSize(cfg.Audio.FFTSize),
		graph.WithAnalyserSmoothing(cfg.Audio.Smoothing),
		graph.WithAnalyserRange(cfg.Audio.MinDecibels, cfg.Audio.MaxDecibels),
		graph.WithGainSmoothing(cfg.Audio.GainSmoothing.Seconds()),
		graph.WithInitialGain(cfg.Playback.Gain),
	)
	defer mgr.Close()

	captureLog := log.Named("capture")
	recorder := capture.New(
		capture.NewMalgoDevice(captureLog),
		mgr,
		capture.OggOpusEncoders(cfg.Capture.Bitrate),
		captureLog,
		capture.WithSampleRate(cfg.Capture.SampleRate),
		capture.WithMaxTicks(cfg.Capture.MaxSeconds),
		capture.WithTickInterval(cfg.Capture.Tick),
	)

	st := studio.New(
		mgr,
		recorder,
		codec.NewDecoder(cfg.Audio.SampleRate, codec.WithDecoderLogger(log.Named("codec"))),
		prov.synth,
		prov.refiner,
		log.Named("studio"),
		studio.WithSettings(cfg.Settings()),
		studio.WithCache(studio.NewSynthesisCache(cfg.Providers.Synthesis.CacheEntries, log.Named("cache"))),
		studio.WithMetrics(metrics),
		studio.WithProduct(cfg.Export.Product),
		studio.WithProviderNames(prov.synthName, prov.refineName),
		studio.WithTimeouts(cfg.Providers.Synthesis.Timeout, cfg.Providers.Refine.Timeout),
	)

	if *say != "" {
		if err := runHeadless(ctx, st, mgr, cfg, log, *say, *export); err != nil {
			fmt.Fprintln(os.Stderr, "error:", domain.MessageFor(err, err.Error()))
			return 1
		}
		return 0
	}

	// ── UI ───────────────────────────────────────────────────────────
	spectrum := viz.NewCanvas(0, 0)
	wave := viz.NewCanvas(0, 0)
	driver := viz.NewDriver(viz.NewTickerFrames(cfg.Audio.FPS), log.Named("viz"),
		viz.WithSpectrumSurface(spectrum),
		viz.WithWaveSurface(wave),
	)
	ui := display.NewUI(st, log.Named("ui"),
		display.WithCanvases(spectrum, wave),
		display.WithExportDir(cfg.Export.Dir),
		display.WithFPS(cfg.Audio.FPS),
		display.WithInputMonitor(func() func() {
			tap := recorder.InputTap()
			if tap == nil {
				return func() {}
			}
			return driver.StartInput(tap, recorder.IsRecording)
		}),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		driver.RunOutput(gctx, func() viz.Tap {
			if tap := mgr.OutputTap(); tap != nil {
				return tap
			}
			return nil
		}, mgr.IsPlaying)
		return nil
	})

	if exporter != nil {
		g.Go(func() error { return serveMetrics(gctx, cfg.Metrics.Addr, exporter.Handler(), log) })
	}

	g.Go(func() error {
		// Bubble Tea owns the terminal; everything stops when it returns.
		defer cancel()
		return ui.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("voicestudio: %v", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	recorder.Stop()
	return 0
}

type providers struct {
	synth      domain.Synthesizer
	refiner    domain.Refiner // nil when no backend is configured
	synthName  string
	refineName string
}

// buildProviders wires the configured synthesis and refinement backends.
// Credentials come from the environment.
func buildProviders(ctx context.Context, cfg *config.Config, log *logger.Logger) (providers, error) {
	p := providers{
		synthName:  cfg.Providers.Synthesis.Backend,
		refineName: cfg.Providers.Refine.Backend,
	}

	var gem *gemini.Client
	geminiKey := os.Getenv(envGeminiKey)
	if geminiKey != "" {
		var err error
		gem, err = gemini.New(ctx, geminiKey, log.Named("gemini"),
			gemini.WithSpeechModel(cfg.Providers.Synthesis.Model),
			gemini.WithTextModel(cfg.Providers.Refine.Model),
		)
		if err != nil {
			return p, err
		}
	}

	switch cfg.Providers.Synthesis.Backend {
	case config.BackendAzure:
		key, region := os.Getenv(azure.EnvSpeechKey), os.Getenv(azure.EnvSpeechRegion)
		if key == "" || region == "" {
			return p, fmt.Errorf("set %s and %s to use the azure backend", azure.EnvSpeechKey, azure.EnvSpeechRegion)
		}
		p.synth = azure.NewClient(key, region, log.Named("azure"),
			azure.WithHTTPTimeout(cfg.Providers.Synthesis.Timeout),
		)
	default:
		if gem == nil {
			return p, fmt.Errorf("set %s (in the environment or .env) to enable synthesis", envGeminiKey)
		}
		p.synth = gem
	}

	switch cfg.Providers.Refine.Backend {
	case config.BackendChat:
		endpoint, key := os.Getenv(envChatEndpoint), os.Getenv(envChatKey)
		if endpoint != "" && key != "" {
			client := chat.NewClient(endpoint, key, log.Named("chat"),
				chat.WithModel(cfg.Providers.Refine.Model),
				chat.WithHTTPTimeout(cfg.Providers.Refine.Timeout),
			)
			p.refiner = chat.NewRefiner(client)
			return p, nil
		}
		log.Warn("refine: %s and %s not set, falling back to gemini", envChatEndpoint, envChatKey)
	}
	if gem != nil {
		p.refiner = gem
		p.refineName = config.BackendGemini
	} else {
		log.Warn("refine: no backend configured, refinement disabled")
	}
	return p, nil
}

// loadConfig reads path, or the default file when it exists, or returns
// the defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return config.Load(defaultConfigFile)
	}
	return config.Default(), nil
}

// serveMetrics exposes the Prometheus registry until ctx is done.
func serveMetrics(ctx context.Context, addr string, metrics http.Handler, log *logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	log.Info("metrics: serving on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// runHeadless speaks text, waits for playback to finish and optionally
// exports the take.
func runHeadless(ctx context.Context, st *studio.Studio, mgr *graph.Manager, cfg *config.Config, log *logger.Logger, text string, export bool) error {
	fmt.Print(display.RenderBanner(0))
	fmt.Println()

	set := st.Settings()
	fmt.Printf("  %s · %s · x%.2f\n", set.Language.Label(), set.Voice.Label(), set.Rate)
	if err := st.Speak(ctx, text); err != nil {
		return err
	}
	gen := st.Generated()
	fmt.Printf("  playing %s\n", gen.Duration().Round(100*time.Millisecond))

	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for mgr.IsPlaying() {
		select {
		case <-ctx.Done():
			st.StopPlayback()
			return ctx.Err()
		case <-tick.C:
		}
	}
	// Let the device drain what it has buffered.
	time.Sleep(cfg.Audio.BufferSize)
	if err := mgr.Suspend(); err != nil {
		log.Debug("suspend output: %v", err)
	}

	if !export {
		return nil
	}
	a, err := st.ExportSettings()
	if err != nil {
		return err
	}
	path, err := a.Save(cfg.Export.Dir)
	if err != nil {
		return err
	}
	fmt.Printf("  exported %s (%s)\n", path, a.Duration.Round(100*time.Millisecond))
	return nil
}
