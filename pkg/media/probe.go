package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ffprobe JSON output, reduced to the fields the sampler reads.
type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeStream struct {
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Duration  string `json:"duration"`
	Tags      struct {
		Rotate string `json:"rotate"`
	} `json:"tags"`
	SideDataList []struct {
		Rotation float64 `json:"rotation"`
	} `json:"side_data_list"`
}

// probeInfo is what the rest of the sampler needs to know about the input.
type probeInfo struct {
	DurationSec float64
	Width       int
	Height      int
	HasAudio    bool
}

func (s *Sampler) probe(ctx context.Context, input string) (*probeInfo, error) {
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		input,
	}

	var out bytes.Buffer
	if err := runTool(ctx, "ffprobe", s.cfg.FFprobePath, args, &out); err != nil {
		return nil, err
	}
	return parseProbe(out.Bytes())
}

// parseProbe extracts duration, dimensions, and audio presence from raw
// ffprobe JSON. Duration prefers the container value and falls back to the
// longest stream; zero or missing on both is an error because every later
// stage budgets on it.
func parseProbe(data []byte) (*probeInfo, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &probeInfo{}
	var video *ffprobeStream
	for i := range probe.Streams {
		switch probe.Streams[i].CodecType {
		case "video":
			if video == nil {
				video = &probe.Streams[i]
			}
		case "audio":
			info.HasAudio = true
		}
	}
	if video == nil {
		return nil, ErrNoVideoStream
	}

	info.DurationSec = parseSeconds(probe.Format.Duration)
	if info.DurationSec <= 0 {
		for _, st := range probe.Streams {
			if d := parseSeconds(st.Duration); d > info.DurationSec {
				info.DurationSec = d
			}
		}
	}
	if info.DurationSec <= 0 {
		return nil, ErrUnknownDuration
	}

	info.Width, info.Height = video.Width, video.Height
	if rotationSwapsAxes(video) {
		info.Width, info.Height = info.Height, info.Width
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("invalid video dimensions %dx%d", video.Width, video.Height)
	}
	return info, nil
}

func parseSeconds(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// rotationSwapsAxes reports whether the decoder's autorotation turns the
// stored dimensions sideways (90/270 degree rotation metadata). The raw
// frame pipe carries post-rotation pixels, so parsing must use the swapped
// dimensions.
func rotationSwapsAxes(st *ffprobeStream) bool {
	if deg, err := strconv.Atoi(st.Tags.Rotate); err == nil && quarterTurn(deg) {
		return true
	}
	for _, sd := range st.SideDataList {
		if quarterTurn(int(math.Round(sd.Rotation))) {
			return true
		}
	}
	return false
}

func quarterTurn(deg int) bool {
	deg = ((deg % 360) + 360) % 360
	return deg == 90 || deg == 270
}
