package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProbeBasic(t *testing.T) {
	data := []byte(`{
		"format": {"duration": "12.480000"},
		"streams": [
			{"codec_type": "video", "width": 1920, "height": 1080},
			{"codec_type": "audio", "duration": "12.48"}
		]
	}`)

	info, err := parseProbe(data)
	require.NoError(t, err)
	assert.InDelta(t, 12.48, info.DurationSec, 1e-9)
	assert.Equal(t, 1920, info.Width)
	assert.Equal(t, 1080, info.Height)
	assert.True(t, info.HasAudio)
}

func TestParseProbeDurationFallsBackToStreams(t *testing.T) {
	data := []byte(`{
		"format": {},
		"streams": [
			{"codec_type": "video", "width": 640, "height": 360, "duration": "3.5"},
			{"codec_type": "audio", "duration": "4.25"}
		]
	}`)

	info, err := parseProbe(data)
	require.NoError(t, err)
	assert.InDelta(t, 4.25, info.DurationSec, 1e-9)
	assert.True(t, info.HasAudio)
}

func TestParseProbeZeroDuration(t *testing.T) {
	data := []byte(`{
		"format": {"duration": "0.000000"},
		"streams": [{"codec_type": "video", "width": 640, "height": 360}]
	}`)

	_, err := parseProbe(data)
	assert.ErrorIs(t, err, ErrUnknownDuration)
}

func TestParseProbeNoVideoStream(t *testing.T) {
	data := []byte(`{
		"format": {"duration": "9.1"},
		"streams": [{"codec_type": "audio", "duration": "9.1"}]
	}`)

	_, err := parseProbe(data)
	assert.ErrorIs(t, err, ErrNoVideoStream)
}

func TestParseProbeRotationSwapsDimensions(t *testing.T) {
	tests := []struct {
		name string
		data string
		w, h int
	}{
		{
			name: "rotate tag 90",
			data: `{"format":{"duration":"5"},"streams":[{"codec_type":"video","width":1920,"height":1080,"tags":{"rotate":"90"}}]}`,
			w:    1080, h: 1920,
		},
		{
			name: "display matrix -90",
			data: `{"format":{"duration":"5"},"streams":[{"codec_type":"video","width":1280,"height":720,"side_data_list":[{"rotation":-90}]}]}`,
			w:    720, h: 1280,
		},
		{
			name: "rotate tag 180 keeps dimensions",
			data: `{"format":{"duration":"5"},"streams":[{"codec_type":"video","width":1280,"height":720,"tags":{"rotate":"180"}}]}`,
			w:    1280, h: 720,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := parseProbe([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.w, info.Width)
			assert.Equal(t, tt.h, info.Height)
		})
	}
}

func TestParseProbeGarbage(t *testing.T) {
	_, err := parseProbe([]byte("not json"))
	assert.Error(t, err)
}
