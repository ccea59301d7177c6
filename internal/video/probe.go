package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/LiveProof/pkg/models"
)

// Metadata is what the verifier needs to know about a clip before decoding it.
type Metadata struct {
	Filename    string
	Format      string
	Width       int
	Height      int
	FrameRate   float64 // nominal, as declared by the container
	DurationSec float64 // container duration, 0 when unknown
	HasAudio    bool
}

type ffprobeOutput struct {
	Format struct {
		Filename string `json:"filename"`
		Duration string `json:"duration"`
		Format   string `json:"format_name"`
	} `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration"`
}

func (p *ffprobeOutput) firstStream(kind string) *ffprobeStream {
	for i := range p.Streams {
		if strings.EqualFold(p.Streams[i].CodecType, kind) {
			return &p.Streams[i]
		}
	}
	return nil
}

// Probe inspects a media file with ffprobe. A file without a video stream
// wraps models.ErrVideoDecode.
func Probe(ctx context.Context, ffprobePath, path string) (*Metadata, error) {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(
		ctx,
		ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: ffprobe: %v", models.ErrVideoDecode, err)
	}

	meta, err := parseProbeOutput(out)
	if err != nil {
		return nil, err
	}
	meta.Filename = filepath.Base(path)
	return meta, nil
}

func parseProbeOutput(out []byte) (*Metadata, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("%w: ffprobe parse: %v", models.ErrVideoDecode, err)
	}

	vs := probe.firstStream("video")
	if vs == nil {
		return nil, fmt.Errorf("%w: no video stream found", models.ErrVideoDecode)
	}

	fps := parseRate(vs.AvgFrameRate)
	if fps <= 0 {
		fps = parseRate(vs.RFrameRate)
	}

	duration, _ := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64)
	if duration <= 0 {
		duration, _ = strconv.ParseFloat(strings.TrimSpace(vs.Duration), 64)
	}

	return &Metadata{
		Format:      probe.Format.Format,
		Width:       vs.Width,
		Height:      vs.Height,
		FrameRate:   fps,
		DurationSec: duration,
		HasAudio:    probe.firstStream("audio") != nil,
	}, nil
}

// parseRate reads ffprobe rationals such as "30000/1001". It returns 0 for
// anything it cannot interpret.
func parseRate(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// DurationProbe adapts Probe to the luminance detector's duration callback.
// The probe runs lazily, only if the detector needs it. The detector wraps
// failures as models.ErrDurationProbe.
func DurationProbe(ctx context.Context, ffprobePath, path string) func() (float64, error) {
	return func() (float64, error) {
		meta, err := Probe(ctx, ffprobePath, path)
		if err != nil {
			return 0, err
		}
		if meta.DurationSec <= 0 {
			return 0, errors.New("container reports no duration")
		}
		return meta.DurationSec, nil
	}
}
