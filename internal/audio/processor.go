package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/himanishpuri/LiveProof/pkg/models"
	"github.com/himanishpuri/LiveProof/pkg/utils"
)

// DefaultSampleRate is the rate the verifier analyzes audio at.
const DefaultSampleRate = 44100

type ExtractConfig struct {
	SampleRate int    // e.g. 22050, 44100
	FFmpegPath string // defaults to "ffmpeg"
}

// ExtractMonoWAV demuxes the audio stream of a media file into a mono
// 16-bit PCM WAV inside outputDir and returns its path. The caller removes
// the file. A missing or undecodable audio stream wraps models.ErrAudioDecode.
func ExtractMonoWAV(
	ctx context.Context,
	inputPath string,
	outputDir string,
	cfg ExtractConfig,
) (string, error) {

	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	if err := utils.MakeDir(outputDir); err != nil {
		return "", err
	}

	outputPath := filepath.Join(outputDir, "audio_"+utils.NewID()+".wav")
	tmpPath := outputPath + ".tmp.wav"
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(
		ctx,
		cfg.FFmpegPath,
		"-y",
		"-v", "error",
		"-i", inputPath,
		"-vn",
		"-ac", "1", // mono
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-c:a", "pcm_s16le",
		tmpPath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: ffmpeg: %v (%s)", models.ErrAudioDecode, err, out)
	}

	if err := utils.MoveFile(tmpPath, outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

// Load extracts and decodes the audio track of a media file in one step.
func Load(ctx context.Context, inputPath, workDir string, cfg ExtractConfig) (Decoded, error) {
	wavPath, err := ExtractMonoWAV(ctx, inputPath, workDir, cfg)
	if err != nil {
		return Decoded{}, err
	}
	defer utils.DeleteFile(wavPath)

	return ReadWAVFile(wavPath)
}
