package liveproof

import (
	"os"

	"github.com/himanishpuri/LiveProof/internal/alignment"
	"github.com/himanishpuri/LiveProof/internal/audio"
	"github.com/himanishpuri/LiveProof/internal/spectral"
	"github.com/himanishpuri/LiveProof/internal/video"
	"github.com/himanishpuri/LiveProof/pkg/models"
)

// DefaultROI is the flash region the capture page draws into.
var DefaultROI = models.ROI{X: 100, Y: 100, Width: 200, Height: 200}

type Config struct {
	TempDir     string
	SampleRate  int
	ROI         models.ROI
	Tolerance   float64 // seconds, alignment window
	ToleranceHz float64 // chirp peak tolerance
	FFmpegPath  string
	FFprobePath string
	MaxFrames   int
	Contract    string // default PoP contract when a request names none

	// A request naming another contract must be allow-listed or minted by Factory.
	AllowedContracts []string
	Factory          string
	Registry         PopRegistry

	Logger  Logger
	Chain   ChainReader
	Store   ContentStore
	History History
}

type Option func(*Config)

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

func WithROI(roi models.ROI) Option {
	return func(c *Config) {
		c.ROI = roi
	}
}

// WithTolerance sets the alignment window in seconds.
func WithTolerance(seconds float64) Option {
	return func(c *Config) {
		c.Tolerance = seconds
	}
}

// WithFrequencyTolerance sets how far a spectral peak may sit from its target.
func WithFrequencyTolerance(hz float64) Option {
	return func(c *Config) {
		c.ToleranceHz = hz
	}
}

func WithFFmpeg(ffmpegPath, ffprobePath string) Option {
	return func(c *Config) {
		c.FFmpegPath = ffmpegPath
		c.FFprobePath = ffprobePath
	}
}

func WithMaxFrames(n int) Option {
	return func(c *Config) {
		c.MaxFrames = n
	}
}

// WithChain enables the on-chain challenge check. contract is used when a
// request carries no pop address.
func WithChain(reader ChainReader, contract string) Option {
	return func(c *Config) {
		c.Chain = reader
		c.Contract = contract
	}
}

// WithAllowedContracts accepts these PoP contracts besides the default one.
func WithAllowedContracts(addrs ...string) Option {
	return func(c *Config) {
		c.AllowedContracts = append(c.AllowedContracts, addrs...)
	}
}

// WithPopFactory accepts any PoP contract the factory at address minted.
func WithPopFactory(registry PopRegistry, address string) Option {
	return func(c *Config) {
		c.Registry = registry
		c.Factory = address
	}
}

func WithContentStore(store ContentStore) Option {
	return func(c *Config) {
		c.Store = store
	}
}

func WithHistory(h History) Option {
	return func(c *Config) {
		c.History = h
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func defaultConfig() *Config {
	return &Config{
		TempDir:     os.TempDir(),
		SampleRate:  audio.DefaultSampleRate,
		ROI:         DefaultROI,
		Tolerance:   alignment.DefaultTolerance,
		ToleranceHz: spectral.DefaultToleranceHz,
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		MaxFrames:   video.DefaultMaxFrames,
	}
}
