//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/himanishpuri/LiveProof/internal/cas"
	"github.com/himanishpuri/LiveProof/internal/chain"
	"github.com/himanishpuri/LiveProof/internal/config"
	"github.com/himanishpuri/LiveProof/pkg/liveproof"
	"github.com/himanishpuri/LiveProof/pkg/logger"
)

var (
	configPath     string
	addr           string
	tempDir        string
	sampleRate     int
	tolerance      float64
	roi            string
	allowedOrigins string
	dbPath         string
	casDir         string
	gatewayURL     string
	uploaderURL    string
	rpcURL         string
	contract       string
	factory        string
	logLevel       string
)

func init() {
	flag.StringVar(&configPath, "config", getEnvOrDefault("LIVEPROOF_CONFIG", "liveproof.toml"), "Path to TOML config file (optional)")
	flag.StringVar(&addr, "addr", "", "Listen address")
	flag.StringVar(&tempDir, "temp", "", "Temporary directory")
	flag.IntVar(&sampleRate, "rate", 0, "Audio analysis sample rate")
	flag.Float64Var(&tolerance, "tolerance", 0, "Alignment tolerance in seconds")
	flag.StringVar(&roi, "roi", "", "Strobe region as x,y,w,h")
	flag.StringVar(&allowedOrigins, "origins", "", "Comma-separated list of allowed CORS origins (use * for all)")
	flag.StringVar(&dbPath, "db", "", "SQLite history path (empty keeps history in memory)")
	flag.StringVar(&casDir, "cas-dir", "", "Local proof store directory")
	flag.StringVar(&gatewayURL, "gateway", "", "Public URL prefix of the proof store")
	flag.StringVar(&uploaderURL, "uploader", "", "Pinning uploader base URL (overrides -cas-dir)")
	flag.StringVar(&rpcURL, "rpc", "", "Ethereum JSON-RPC endpoint")
	flag.StringVar(&contract, "contract", "", "Default PoP contract address")
	flag.StringVar(&factory, "factory", "", "PoP factory; requests may name any PoP it minted")
	flag.StringVar(&logLevel, "log-level", "", "DEBUG, INFO, WARN or ERROR")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// applyFlags overrides file and environment values with flags set explicitly.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Server.Addr = addr
		case "temp":
			cfg.Verify.TempDir = tempDir
		case "rate":
			cfg.Verify.SampleRate = sampleRate
		case "tolerance":
			cfg.Verify.Tolerance = tolerance
		case "roi":
			cfg.Verify.ROI = roi
		case "origins":
			cfg.Server.AllowedOrigins = strings.Split(allowedOrigins, ",")
		case "db":
			cfg.Storage.HistoryDB = dbPath
		case "cas-dir":
			cfg.Storage.CASDir = casDir
		case "gateway":
			cfg.Storage.GatewayURL = gatewayURL
		case "uploader":
			cfg.Storage.UploaderURL = uploaderURL
		case "rpc":
			cfg.Chain.RPCURL = rpcURL
		case "contract":
			cfg.Chain.Contract = contract
		case "factory":
			cfg.Chain.Factory = factory
		case "log-level":
			cfg.Logging.Level = logLevel
		}
	})
	for i := range cfg.Server.AllowedOrigins {
		cfg.Server.AllowedOrigins[i] = strings.TrimSpace(cfg.Server.AllowedOrigins[i])
	}
}

func main() {
	flag.Parse()
	log := logger.GetLogger()

	cfg, fromFile, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if lvl, err := logger.ParseLevel(cfg.Logging.Level); err == nil {
		log.SetLevel(lvl)
	}
	if fromFile {
		log.Infof("Loaded config from %s", configPath)
	}

	opts, proofDir, err := buildOptions(cfg)
	if err != nil {
		log.Fatalf("Failed to set up backends: %v", err)
	}

	service, err := liveproof.NewService(opts...)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	server := NewServer(service, &ServerConfig{
		Addr:           cfg.Server.Addr,
		TempDir:        cfg.Verify.TempDir,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ProofDir:       proofDir,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		log.Errorf("Server failed: %v", err)
		service.Close()
		os.Exit(1)
	}
}

// buildOptions constructs the service collaborators once. proofDir is the
// local store directory to expose over HTTP, if any.
func buildOptions(cfg *config.Config) ([]liveproof.Option, string, error) {
	roi, err := config.ParseROI(cfg.Verify.ROI)
	if err != nil {
		return nil, "", err
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
			return nil, "", fmt.Errorf("history: %w", err)
		}
		opts = append(opts, liveproof.WithHistory(h))
	} else {
		opts = append(opts, liveproof.WithHistory(liveproof.NewMemoryHistory(cfg.Storage.HistoryCapacity)))
	}

	var proofDir string
	switch {
	case cfg.Storage.UploaderURL != "":
		opts = append(opts, liveproof.WithContentStore(cas.NewUploader(cfg.Storage.UploaderURL, nil)))
	case cfg.Storage.CASDir != "":
		gateway := cfg.Storage.GatewayURL
		if gateway == "" {
			gateway = "/proofs"
		}
		store, err := cas.NewLocal(cfg.Storage.CASDir, gateway)
		if err != nil {
			return nil, "", fmt.Errorf("content store: %w", err)
		}
		opts = append(opts, liveproof.WithContentStore(store))
		proofDir = cfg.Storage.CASDir
	}

	if cfg.Chain.RPCURL != "" {
		client := chain.NewClient(cfg.Chain.RPCURL, nil)
		opts = append(opts,
			liveproof.WithChain(client, cfg.Chain.Contract),
			liveproof.WithAllowedContracts(cfg.Chain.AllowedContracts...),
		)
		if cfg.Chain.Factory != "" {
			opts = append(opts, liveproof.WithPopFactory(client, cfg.Chain.Factory))
		}
	}

	return opts, proofDir, nil
}
