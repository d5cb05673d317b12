package voice

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/zaf/g711"

	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/internal/providers/wyoming"
	"github.com/sandevgo/rpgai/pkg/log"
)

// TargetFormat is what transcription streams always carry after conversion.
var TargetFormat = wyoming.AudioFormat{Rate: 16000, Width: 2, Channels: 1}

const g711Rate = 8000

// Converter re-encodes arbitrary containers into 16 kHz mono s16 WAV.
type Converter interface {
	ToWAV(ctx context.Context, audio []byte, format string) ([]byte, error)
}

// FFmpeg shells out to the ffmpeg binary through temp files, since many
// containers need a seekable input.
type FFmpeg struct {
	Path string
}

func (f FFmpeg) ToWAV(ctx context.Context, audio []byte, format string) ([]byte, error) {
	bin := f.Path
	if bin == "" {
		bin = "ffmpeg"
	}

	dir, err := os.MkdirTemp("", "rpgai-audio-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	ext := strings.TrimPrefix(strings.ToLower(format), ".")
	if ext == "" {
		ext = "bin"
	}
	in := filepath.Join(dir, "input."+ext)
	out := filepath.Join(dir, "output.wav")
	if err := os.WriteFile(in, audio, 0o600); err != nil {
		return nil, fmt.Errorf("write temp input: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin,
		"-hide_banner", "-loglevel", "error",
		"-i", in,
		"-ar", "16000", "-ac", "1", "-sample_fmt", "s16", "-f", "wav",
		"-y", out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return os.ReadFile(out)
}

// Normalize turns client audio into PCM samples plus their format. WAV is
// used as-is, G.711 is decoded and upsampled, everything else goes through
// the converter.
func Normalize(ctx context.Context, audio []byte, format string, conv Converter) ([]byte, wyoming.AudioFormat, error) {
	if len(audio) == 0 {
		return nil, wyoming.AudioFormat{}, fmt.Errorf("%w: empty input", core.ErrAudioUnavailable)
	}

	pcm, f, err := DecodeWAV(audio)
	if err == nil {
		return pcm, f, nil
	}
	parseErr := err

	switch strings.ToLower(format) {
	case "ulaw", "mulaw", "pcmu", "audio/basic":
		return upsample2x(g711.DecodeUlaw(audio)), TargetFormat, nil
	case "alaw", "pcma":
		return upsample2x(g711.DecodeAlaw(audio)), TargetFormat, nil
	}

	if conv == nil {
		return nil, wyoming.AudioFormat{}, core.UnsupportedAudio(format, parseErr)
	}

	log.FromCtx(ctx).Debug().Str("format", format).Err(parseErr).Msg("re-encoding audio")
	wav, err := conv.ToWAV(ctx, audio, format)
	if err != nil {
		return nil, wyoming.AudioFormat{}, core.UnsupportedAudio(format, err)
	}
	pcm, f, err = DecodeWAV(wav)
	if err != nil {
		return nil, wyoming.AudioFormat{}, core.UnsupportedAudio(format, errors.Join(parseErr, err))
	}
	return pcm, f, nil
}

// upsample2x doubles the rate of 16 bit mono PCM by linear interpolation,
// taking 8 kHz G.711 output to the 16 kHz target.
func upsample2x(pcm []byte) []byte {
	n := len(pcm) / 2
	if n == 0 {
		return nil
	}
	out := make([]byte, 0, n*4)
	sample := func(i int) int16 { return int16(binary.LittleEndian.Uint16(pcm[2*i:])) }

	for i := 0; i < n; i++ {
		cur := sample(i)
		next := cur
		if i+1 < n {
			next = sample(i + 1)
		}
		mid := int16((int32(cur) + int32(next)) / 2)
		out = binary.LittleEndian.AppendUint16(out, uint16(cur))
		out = binary.LittleEndian.AppendUint16(out, uint16(mid))
	}
	return out
}
