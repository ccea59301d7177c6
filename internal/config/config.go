package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/himanishpuri/LiveProof/pkg/models"
)

// Config is the server configuration. Precedence, lowest first: defaults,
// TOML file, LIVEPROOF_* environment, command-line flags.
type Config struct {
	Server  Server  `toml:"server"`
	Verify  Verify  `toml:"verify"`
	Chain   Chain   `toml:"chain"`
	Storage Storage `toml:"storage"`
	Logging Logging `toml:"logging"`
}

type Server struct {
	Addr           string   `toml:"addr"`
	MaxUploadMB    int64    `toml:"max_upload_mb"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type Verify struct {
	SampleRate  int     `toml:"sample_rate"`
	Tolerance   float64 `toml:"tolerance"`
	ToleranceHz float64 `toml:"tolerance_hz"`
	MaxFrames   int     `toml:"max_frames"`
	TempDir    string  `toml:"temp_dir"`
	FFmpeg     string  `toml:"ffmpeg"`
	FFprobe    string  `toml:"ffprobe"`
	ROI        string  `toml:"roi"` // "x,y,w,h"
}

type Chain struct {
	RPCURL   string `toml:"rpc_url"`
	Contract string `toml:"contract"`
	// Other contracts a request may name: minted by Factory, or listed.
	Factory          string   `toml:"factory"`
	AllowedContracts []string `toml:"allowed_contracts"`
}

type Storage struct {
	HistoryDB       string `toml:"history_db"` // empty keeps history in memory
	HistoryCapacity int    `toml:"history_capacity"`
	CASDir          string `toml:"cas_dir"`
	GatewayURL      string `toml:"gateway_url"`
	UploaderURL     string `toml:"uploader_url"` // takes precedence over cas_dir
}

type Logging struct {
	Level string `toml:"level"`
}

func Default() Config {
	return Config{
		Server: Server{
			Addr:           ":8080",
			MaxUploadMB:    100,
			AllowedOrigins: []string{"*"},
		},
		Verify: Verify{
			SampleRate:  44100,
			Tolerance:   0.7,
			ToleranceHz: 50,
			MaxFrames:   1800,
			TempDir:     os.TempDir(),
			FFmpeg:      "ffmpeg",
			FFprobe:     "ffprobe",
			ROI:         "100,100,200,200",
		},
		Storage: Storage{
			HistoryCapacity: 100,
			CASDir:          "proofs",
		},
		Logging: Logging{Level: "info"},
	}
}

// Load parses path over the defaults, then applies the environment. A
// missing file is not an error; exists reports whether one was read.
func Load(path string) (cfg *Config, exists bool, err error) {
	c := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, false, fmt.Errorf("open config: %w", err)
		default:
			exists = true
			if err := toml.Unmarshal(data, &c); err != nil {
				return nil, false, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, false, err
	}
	if err := c.Validate(); err != nil {
		return nil, false, err
	}
	return &c, exists, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("LIVEPROOF_ADDR", &c.Server.Addr)
	str("LIVEPROOF_TEMP_DIR", &c.Verify.TempDir)
	str("LIVEPROOF_FFMPEG", &c.Verify.FFmpeg)
	str("LIVEPROOF_FFPROBE", &c.Verify.FFprobe)
	str("LIVEPROOF_ROI", &c.Verify.ROI)
	str("LIVEPROOF_RPC_URL", &c.Chain.RPCURL)
	str("LIVEPROOF_CONTRACT", &c.Chain.Contract)
	str("LIVEPROOF_POP_FACTORY", &c.Chain.Factory)
	str("LIVEPROOF_DB_PATH", &c.Storage.HistoryDB)
	str("LIVEPROOF_CAS_DIR", &c.Storage.CASDir)
	str("LIVEPROOF_GATEWAY_URL", &c.Storage.GatewayURL)
	str("LIVEPROOF_UPLOADER_URL", &c.Storage.UploaderURL)
	str("LIVEPROOF_LOG_LEVEL", &c.Logging.Level)

	float := func(key string, dst *float64) error {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = f
		}
		return nil
	}
	if err := float("LIVEPROOF_TOLERANCE", &c.Verify.Tolerance); err != nil {
		return err
	}
	if err := float("LIVEPROOF_TOLERANCE_HZ", &c.Verify.ToleranceHz); err != nil {
		return err
	}
	if v, ok := lookup("LIVEPROOF_MAX_FRAMES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LIVEPROOF_MAX_FRAMES: %w", err)
		}
		c.Verify.MaxFrames = n
	}
	if v, ok := lookup("LIVEPROOF_ALLOWED_ORIGINS"); ok && v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup("LIVEPROOF_ALLOWED_CONTRACTS"); ok && v != "" {
		c.Chain.AllowedContracts = splitList(v)
	}
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr must be set")
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("server.max_upload_mb must be positive")
	}
	if c.Verify.SampleRate < 8000 {
		return fmt.Errorf("verify.sample_rate %d is below 8000", c.Verify.SampleRate)
	}
	if c.Verify.Tolerance <= 0 {
		return errors.New("verify.tolerance must be positive")
	}
	if _, err := ParseROI(c.Verify.ROI); err != nil {
		return fmt.Errorf("verify.roi: %w", err)
	}
	if c.Verify.ToleranceHz <= 0 {
		return errors.New("verify.tolerance_hz must be positive")
	}
	if c.Verify.MaxFrames <= 0 {
		return errors.New("verify.max_frames must be positive")
	}
	if (c.Chain.RPCURL == "") != (c.Chain.Contract == "") {
		return errors.New("chain.rpc_url and chain.contract must be set together")
	}
	if c.Chain.Factory != "" && !isAddress(c.Chain.Factory) {
		return fmt.Errorf("chain.factory: invalid address %q", c.Chain.Factory)
	}
	for _, a := range c.Chain.AllowedContracts {
		if !isAddress(a) {
			return fmt.Errorf("chain.allowed_contracts: invalid address %q", a)
		}
	}
	if c.Chain.RPCURL == "" && (c.Chain.Factory != "" || len(c.Chain.AllowedContracts) > 0) {
		return errors.New("chain.factory and chain.allowed_contracts need chain.rpc_url")
	}
	if c.Storage.HistoryCapacity <= 0 {
		return errors.New("storage.history_capacity must be positive")
	}
	return nil
}

// ParseROI reads "x,y,w,h" with non-negative offsets and positive size.
func ParseROI(s string) (models.ROI, error) {
	parts := splitList(s)
	if len(parts) != 4 {
		return models.ROI{}, fmt.Errorf("expected x,y,w,h, got %q", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return models.ROI{}, fmt.Errorf("invalid number %q", p)
		}
		v[i] = n
	}
	if v[0] < 0 || v[1] < 0 || v[2] <= 0 || v[3] <= 0 {
		return models.ROI{}, fmt.Errorf("invalid region %q", s)
	}
	return models.ROI{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}

func isAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(strings.ToLower(s), "0x") {
		return false
	}
	for _, c := range strings.ToLower(s[2:]) {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
