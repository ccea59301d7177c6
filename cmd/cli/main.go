//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/himanishpuri/LiveProof/internal/alignment"
	"github.com/himanishpuri/LiveProof/internal/audio"
	"github.com/himanishpuri/LiveProof/internal/challenge"
	"github.com/himanishpuri/LiveProof/internal/config"
	"github.com/himanishpuri/LiveProof/internal/spectral"
	"github.com/himanishpuri/LiveProof/internal/video"
	"github.com/himanishpuri/LiveProof/pkg/liveproof"
	"github.com/himanishpuri/LiveProof/pkg/logger"
	"github.com/himanishpuri/LiveProof/pkg/models"
)

// Global flags
var (
	configPath string
	dbPath     string
	tempDir    string
	sampleRate int
	roiFlag    string
	logLevel   string
)

func init() {
	// Global flags that can be used with any command
	flag.StringVar(&configPath, "config", getEnvOrDefault("LIVEPROOF_CONFIG", "liveproof.toml"), "Path to TOML config file (optional)")
	flag.StringVar(&dbPath, "db", "", "SQLite history path (env: LIVEPROOF_HISTORY_DB)")
	flag.StringVar(&tempDir, "temp", "", "Directory for temporary decode files (env: LIVEPROOF_TEMP_DIR)")
	flag.IntVar(&sampleRate, "rate", 0, "Audio analysis sample rate")
	flag.StringVar(&roiFlag, "roi", "", "Strobe region as x,y,w,h")
	flag.StringVar(&logLevel, "log-level", "", "DEBUG, INFO, WARN or ERROR")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadConfig layers explicit global flags over the file and environment.
func loadConfig() *config.Config {
	log := logger.GetLogger()

	cfg, _, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("❌ Failed to load config: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db":
			cfg.Storage.HistoryDB = dbPath
		case "temp":
			cfg.Verify.TempDir = tempDir
		case "rate":
			cfg.Verify.SampleRate = sampleRate
		case "roi":
			cfg.Verify.ROI = roiFlag
		case "log-level":
			cfg.Logging.Level = logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Printf("❌ Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if lvl, err := logger.ParseLevel(cfg.Logging.Level); err == nil {
		log.SetLevel(lvl)
	}
	return cfg
}

// createService creates a verifier from the layered configuration. The CLI
// never talks to a chain or content store; those belong to the server.
func createService(cfg *config.Config) (liveproof.Service, error) {
	roi, err := config.ParseROI(cfg.Verify.ROI)
	if err != nil {
		return nil, err
	}
	opts := []liveproof.Option{
		liveproof.WithTempDir(cfg.Verify.TempDir),
		liveproof.WithSampleRate(cfg.Verify.SampleRate),
		liveproof.WithTolerance(cfg.Verify.Tolerance),
		liveproof.WithFrequencyTolerance(cfg.Verify.ToleranceHz),
		liveproof.WithMaxFrames(cfg.Verify.MaxFrames),
		liveproof.WithROI(roi),
		liveproof.WithFFmpeg(cfg.Verify.FFmpeg, cfg.Verify.FFprobe),
		liveproof.WithLogger(logger.GetLogger().WithPrefix("[verify]")),
	}
	if cfg.Storage.HistoryDB != "" {
		h, err := liveproof.NewSQLiteHistory(cfg.Storage.HistoryDB, cfg.Storage.HistoryCapacity)
		if err != nil {
			return nil, err
		}
		opts = append(opts, liveproof.WithHistory(h))
	}
	return liveproof.NewService(opts...)
}

func main() {
	flag.Parse()
	log := logger.GetLogger()

	printBanner()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]
	log.Debugf("Executing command: %s", command)

	switch command {
	case "derive":
		handleDerive(args[1:])
	case "verify":
		handleVerify(args[1:])
	case "inspect":
		handleInspect(args[1:])
	case "spectrogram":
		handleSpectrogram(args[1:])
	case "history":
		handleHistory(args[1:])
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
 _     _           ____                   __
| |   (_)_   _____|  _ \ _ __ ___   ___  / _|
| |   | \ \ / / _ \ |_) | '__/ _ \ / _ \| |_
| |___| |\ V /  __/  __/| | | (_) | (_) |  _|
|_____|_| \_/ \___|_|   |_|  \___/ \___/|_|

        Proof-of-Liveness Verifier CLI
`
	fmt.Println(banner)
}

// splitArgs separates the leading positional argument from trailing flags.
func splitArgs(args []string) (string, []string) {
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			return arg, append(append([]string{}, args[:i]...), args[i+1:]...)
		}
	}
	return "", args
}

func handleDerive(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: liveproof derive <challenge_hash>")
		os.Exit(1)
	}

	c, err := challenge.Derive(args[0])
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	fmt.Println("🎯 Derived challenge:")
	for i, f := range c.Frequencies {
		fmt.Printf("   Chirp %d: %4d Hz at %5d ms\n", i+1, f, c.Timings[i])
	}
	for i := len(c.Frequencies); i < len(c.Timings); i++ {
		fmt.Printf("   Extra strobe: %5d ms (not matched)\n", c.Timings[i])
	}
	fmt.Printf("   Interval: %d ms\n", c.Interval)
	if gap := challenge.MinSpacing(c); gap > 0 && gap < 2*int(alignment.DefaultTolerance*1000) {
		fmt.Printf("   ⚠️  Closest strobes are %d ms apart; adjacent slots may compete\n", gap)
	}
}

func handleVerify(args []string) {
	log := logger.GetLogger()

	mediaPath, flagArgs := splitArgs(args)
	verifyCmd := flag.NewFlagSet("verify", flag.ExitOnError)
	hash := verifyCmd.String("challenge", "", "Challenge hash (required)")
	verifyCmd.Parse(flagArgs)

	if mediaPath == "" || *hash == "" {
		fmt.Println("Usage: liveproof verify <media_file> --challenge <hash>")
		os.Exit(1)
	}

	cfg := loadConfig()
	fmt.Println("\n🔧 Initializing verifier...")
	svc, err := createService(cfg)
	if err != nil {
		fmt.Printf("❌ Failed to create service: %v\n", err)
		log.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	fmt.Println("🔍 Decoding recording and running detectors...")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	report, err := svc.Verify(ctx, liveproof.VerifyRequest{MediaPath: mediaPath, ChallengeHash: *hash})
	if err != nil {
		fmt.Printf("\n❌ Verification failed: %v\n", err)
		log.Errorf("Verify failed: %v", err)
		os.Exit(1)
	}

	printReport(report)
	if !report.Result.Verified {
		os.Exit(2)
	}
}

func printReport(r *models.Report) {
	if r.Result.Verified {
		fmt.Printf("\n✅ VERIFIED (%d/%d slots)\n", r.Result.Successes, r.Result.Required)
	} else {
		fmt.Printf("\n❌ NOT VERIFIED (%d/%d slots)\n", r.Result.Successes, r.Result.Required)
	}
	fmt.Printf("   Report: %s\n", r.ID)
	fmt.Printf("   Audio peaks:  %s\n", formatTimes(r.AudioEvents))
	fmt.Printf("   Strobe peaks: %s\n", formatTimes(r.VideoEvents))
	fmt.Printf("   Effective FPS: %.2f\n\n", r.EffectiveFPS)

	for i, s := range r.Result.Slots {
		mark := "✓"
		if !s.Consistent {
			mark = "✗"
		}
		fmt.Printf("   %s slot %d @ %.3fs  audio=%s video=%s", mark, i, s.ExpectedTime, formatPtr(s.Audio), formatPtr(s.Video))
		if reason := alignment.Describe(s); reason != "" {
			fmt.Printf("  (%s)", reason)
		}
		fmt.Println()
	}
	for _, a := range r.Annotations {
		fmt.Printf("   ℹ️  %s\n", a)
	}
}

func formatTimes(ts []float64) string {
	if len(ts) == 0 {
		return "none"
	}
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = fmt.Sprintf("%.3f", t)
	}
	return strings.Join(parts, ", ")
}

func formatPtr(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *p)
}

// handleInspect prints container metadata and raw detector output without
// keeping a verdict.
func handleInspect(args []string) {
	log := logger.GetLogger()

	mediaPath, flagArgs := splitArgs(args)
	inspectCmd := flag.NewFlagSet("inspect", flag.ExitOnError)
	hash := inspectCmd.String("challenge", "", "Challenge hash whose frequencies to search for (required)")
	inspectCmd.Parse(flagArgs)

	if mediaPath == "" || *hash == "" {
		fmt.Println("Usage: liveproof inspect <media_file> --challenge <hash>")
		os.Exit(1)
	}

	cfg := loadConfig()
	roi, err := config.ParseROI(cfg.Verify.ROI)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	meta, err := video.Probe(ctx, cfg.Verify.FFprobe, mediaPath)
	if err != nil {
		fmt.Printf("❌ Probe failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("📼 Container:")
	fmt.Printf("   Format:   %s\n", meta.Format)
	fmt.Printf("   Size:     %dx%d\n", meta.Width, meta.Height)
	fmt.Printf("   FPS:      %.3f (nominal)\n", meta.FrameRate)
	fmt.Printf("   Duration: %.3fs\n", meta.DurationSec)
	fmt.Printf("   Audio:    %v\n", meta.HasAudio)

	workDir, err := os.MkdirTemp(cfg.Verify.TempDir, "inspect_")
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(workDir)

	decoded, err := audio.Load(ctx, mediaPath, workDir, audio.ExtractConfig{SampleRate: cfg.Verify.SampleRate, FFmpegPath: cfg.Verify.FFmpeg})
	if err != nil {
		fmt.Printf("❌ Audio decode failed: %v\n", err)
		os.Exit(1)
	}
	clip, err := video.Decode(ctx, mediaPath, video.DecodeConfig{
		FFmpegPath:  cfg.Verify.FFmpeg,
		FFprobePath: cfg.Verify.FFprobe,
		MaxFrames:   cfg.Verify.MaxFrames,
		ROI:         &roi,
	})
	if err != nil {
		fmt.Printf("❌ Video decode failed: %v\n", err)
		os.Exit(1)
	}
	log.Debugf("Decoded %d samples and %d frames of region %+v", len(decoded.Samples), len(clip.Frames), clip.Region)

	result, ev, err := liveproof.Verify(*hash,
		liveproof.DecodedAudio{Samples: decoded.Samples, SampleRate: decoded.SampleRate},
		liveproof.DecodedVideo{Frames: clip.Frames, FPS: clip.Meta.FrameRate, Probe: video.DurationProbe(ctx, cfg.Verify.FFprobe, mediaPath)},
		liveproof.Params{ROI: clip.FrameROI(), Tolerance: cfg.Verify.Tolerance, ToleranceHz: cfg.Verify.ToleranceHz},
	)
	if err != nil {
		fmt.Printf("❌ Detection failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n🔬 Detections:")
	fmt.Printf("   Targets:       %v Hz\n", ev.Challenge.Frequencies)
	fmt.Printf("   Audio peaks:   %s\n", formatTimes(models.Timestamps(ev.AudioEvents)))
	fmt.Printf("   Strobe peaks:  %s\n", formatTimes(models.Timestamps(ev.VideoEvents)))
	fmt.Printf("   Effective FPS: %.2f\n", ev.EffectiveFPS)
	if ev.ProbeErr != nil {
		fmt.Printf("   ⚠️  Duration probe failed, assumed %.0f fps: %v\n", ev.EffectiveFPS, ev.ProbeErr)
	}
	fmt.Printf("   Would verify:  %v (%d/%d)\n", result.Verified, result.Successes, result.Required)
}

func handleSpectrogram(args []string) {
	mediaPath, flagArgs := splitArgs(args)
	specCmd := flag.NewFlagSet("spectrogram", flag.ExitOnError)
	out := specCmd.String("out", "spectrogram.png", "Output PNG path")
	width := specCmd.Int("width", 0, "Image width in pixels")
	height := specCmd.Int("height", 0, "Image height in pixels")
	specCmd.Parse(flagArgs)

	if mediaPath == "" {
		fmt.Println("Usage: liveproof spectrogram <media_file> [--out file.png] [--width N --height N]")
		os.Exit(1)
	}

	cfg := loadConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	workDir, err := os.MkdirTemp(cfg.Verify.TempDir, "spectrogram_")
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(workDir)

	decoded, err := audio.Load(ctx, mediaPath, workDir, audio.ExtractConfig{SampleRate: cfg.Verify.SampleRate, FFmpegPath: cfg.Verify.FFmpeg})
	if err != nil {
		fmt.Printf("❌ Audio decode failed: %v\n", err)
		os.Exit(1)
	}

	if err := spectral.RenderPNG(decoded.Samples, decoded.SampleRate, *out, spectral.RenderConfig{Width: *width, Height: *height}); err != nil {
		fmt.Printf("❌ Render failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("🖼️  Spectrogram of %.2fs written to %s\n", decoded.Duration(), *out)
}

func handleHistory(args []string) {
	log := logger.GetLogger()

	historyCmd := flag.NewFlagSet("history", flag.ExitOnError)
	limit := historyCmd.Int("limit", 20, "Maximum entries to show")
	historyCmd.Parse(args)

	cfg := loadConfig()
	if cfg.Storage.HistoryDB == "" {
		fmt.Println("❌ History is in-memory only; pass --db or set LIVEPROOF_HISTORY_DB")
		os.Exit(1)
	}

	h, err := liveproof.NewSQLiteHistory(cfg.Storage.HistoryDB, cfg.Storage.HistoryCapacity)
	if err != nil {
		fmt.Printf("❌ Failed to open history: %v\n", err)
		log.Errorf("History open failed: %v", err)
		os.Exit(1)
	}
	if c, ok := h.(interface{ Close() error }); ok {
		defer c.Close()
	}

	entries, err := h.Recent(context.Background(), *limit)
	if err != nil {
		fmt.Printf("❌ Failed to read history: %v\n", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Println("\n📭 No verifications recorded")
		return
	}

	fmt.Printf("\n📚 %d most recent verification(s):\n\n", len(entries))
	for i, e := range entries {
		status := "❌"
		if e.Verified {
			status = "✅"
		}
		fmt.Printf("%d. %s %s  %d/%d  %s\n", i+1, status, e.CreatedAt.Format(time.RFC3339), e.Successes, e.Required, e.ChallengeHash)
		if e.ProofCID != "" {
			fmt.Printf("   Proof: %s\n", e.ProofCID)
		}
	}
}

func printUsage() {
	fmt.Println("LiveProof - Proof-of-Liveness Verifier CLI")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  --config <path>    TOML config file (env: LIVEPROOF_CONFIG, default: liveproof.toml)")
	fmt.Println("  --db <path>        SQLite history (env: LIVEPROOF_HISTORY_DB)")
	fmt.Println("  --temp <dir>       Temporary directory for decoding (env: LIVEPROOF_TEMP_DIR)")
	fmt.Println("  --rate <hz>        Audio analysis sample rate (default: 44100)")
	fmt.Println("  --roi <x,y,w,h>    Strobe region (default: 100,100,200,200)")
	fmt.Println("  --log-level <lvl>  DEBUG, INFO, WARN or ERROR")
	fmt.Println("\nUsage:")
	fmt.Println("  liveproof [global-options] derive <challenge_hash>")
	fmt.Println("  liveproof [global-options] verify <media_file> --challenge <hash>")
	fmt.Println("  liveproof [global-options] inspect <media_file> --challenge <hash>")
	fmt.Println("  liveproof [global-options] spectrogram <media_file> [--out file.png]")
	fmt.Println("  liveproof [global-options] history [--limit N]")
	fmt.Println("\nExamples:")
	fmt.Println("  liveproof derive 0x3f9a1c7be4d2085f6a1b93c0d47e2f58a9c3b1e07d6f4a2859e0c3b7a14d6f82")
	fmt.Println("  liveproof --db history.sqlite3 verify clip.webm --challenge 0x3f9a...6f82")
}
