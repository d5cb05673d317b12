package voice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/internal/providers/wyoming"
)

type fakeConverter struct {
	out   []byte
	err   error
	calls int
}

func (f *fakeConverter) ToWAV(ctx context.Context, audio []byte, format string) ([]byte, error) {
	f.calls++
	return f.out, f.err
}

func TestNormalize_WAVPassesThrough(t *testing.T) {
	conv := &fakeConverter{}
	in := EncodeWAV([]byte{1, 2, 3, 4}, wyoming.AudioFormat{Rate: 44100, Width: 2, Channels: 2})

	pcm, f, err := Normalize(context.Background(), in, "wav", conv)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, pcm)
	assert.Equal(t, 44100, f.Rate)
	assert.Zero(t, conv.calls)
}

func TestNormalize_G711(t *testing.T) {
	ulaw := []byte{0xFF, 0x7F, 0x00}

	pcm, f, err := Normalize(context.Background(), ulaw, "ulaw", nil)
	require.NoError(t, err)
	assert.Equal(t, TargetFormat, f)
	assert.Len(t, pcm, len(ulaw)*4, "8 kHz samples are doubled to 16 kHz")

	pcm, _, err = Normalize(context.Background(), ulaw, "alaw", nil)
	require.NoError(t, err)
	assert.Len(t, pcm, len(ulaw)*4)
}

func TestNormalize_FallsBackToConverter(t *testing.T) {
	conv := &fakeConverter{out: EncodeWAV([]byte{5, 6}, TargetFormat)}

	pcm, f, err := Normalize(context.Background(), []byte("OggS-opus-bytes"), "ogg", conv)
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6}, pcm)
	assert.Equal(t, TargetFormat, f)
	assert.Equal(t, 1, conv.calls)
}

func TestNormalize_Unsupported(t *testing.T) {
	tests := []struct {
		name string
		conv Converter
	}{
		{name: "no converter", conv: nil},
		{name: "converter fails", conv: &fakeConverter{err: errors.New("ffmpeg: not found")}},
		{name: "converter output unparsable", conv: &fakeConverter{out: []byte("garbage")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Normalize(context.Background(), []byte("webm"), "webm", tt.conv)
			assert.ErrorIs(t, err, core.ErrAudioFormatUnsupported)
			assert.ErrorIs(t, err, core.ErrAudioUnavailable)
		})
	}
}

func TestNormalize_Empty(t *testing.T) {
	_, _, err := Normalize(context.Background(), nil, "wav", nil)
	assert.ErrorIs(t, err, core.ErrAudioUnavailable)
}

func TestUpsample2x(t *testing.T) {
	// samples 0 and 100 -> 0, 50, 100, 100
	in := []byte{0, 0, 100, 0}
	assert.Equal(t, []byte{0, 0, 50, 0, 100, 0, 100, 0}, upsample2x(in))
	assert.Nil(t, upsample2x([]byte{1}))
}
