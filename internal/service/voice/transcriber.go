package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/internal/providers/wyoming"
	"github.com/sandevgo/rpgai/pkg/log"
)

// ChunkSize is the audio-chunk payload size sent to the transcription service.
const ChunkSize = 1024

type TranscriberConfig struct {
	Addr          string
	Language      string
	Timeout       time.Duration
	HealthTimeout time.Duration
}

// Transcriber sends audio to a faster-whisper server.
type Transcriber struct {
	cfg  TranscriberConfig
	conv Converter
}

func NewTranscriber(cfg TranscriberConfig, conv Converter) *Transcriber {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = defaultHealthTimeout
	}
	return &Transcriber{cfg: cfg, conv: conv}
}

// Transcribe returns the recognized text. Any failure wraps
// core.ErrAudioUnavailable so callers can treat it as "no text".
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	logger := log.FromCtx(ctx)

	pcm, f, err := Normalize(ctx, audio, format, t.conv)
	if err != nil {
		logger.Warn().Err(err).Str("format", format).Msg("audio input rejected")
		return "", err
	}

	start := time.Now()
	text, err := t.stream(ctx, pcm, f)
	if err != nil {
		logger.Warn().Err(err).Msg("speech transcription failed")
		return "", fmt.Errorf("%w: %w", core.ErrAudioUnavailable, err)
	}

	logger.Info().
		Int("chars", len(text)).
		Dur("took", time.Since(start)).
		Msg("speech transcribed")
	return text, nil
}

func (t *Transcriber) stream(ctx context.Context, pcm []byte, f wyoming.AudioFormat) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	conn, err := wyoming.Dial(ctx, t.cfg.Addr)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	f = f.WithDefaults()
	if err := conn.Write(wyoming.Transcribe{Language: t.cfg.Language}); err != nil {
		return "", err
	}
	if err := conn.Write(wyoming.AudioStart{AudioFormat: f}); err != nil {
		return "", err
	}
	for off := 0; off < len(pcm); off += ChunkSize {
		end := min(off+ChunkSize, len(pcm))
		if err := conn.Write(wyoming.AudioChunk{AudioFormat: f, Audio: pcm[off:end]}); err != nil {
			return "", err
		}
	}
	if err := conn.Write(wyoming.AudioStop{}); err != nil {
		return "", err
	}

	for {
		ev, err := conn.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", errors.New("stream closed without transcript")
			}
			return "", err
		}

		switch e := ev.(type) {
		case wyoming.Transcript:
			return strings.TrimSpace(e.Text), nil
		case wyoming.Error:
			return "", fmt.Errorf("whisper: %w", e)
		}
	}
}

func (t *Transcriber) Health(ctx context.Context) bool {
	_, err := wyoming.Probe(ctx, t.cfg.Addr, t.cfg.HealthTimeout)
	if err != nil {
		log.FromCtx(ctx).Debug().Err(err).Msg("transcriber unhealthy")
		return false
	}
	return true
}
