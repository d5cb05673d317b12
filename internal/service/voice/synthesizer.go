package voice

import (
	"bytes"
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

const (
	defaultTimeout       = 30 * time.Second
	defaultHealthTimeout = 5 * time.Second
)

type SynthesizerConfig struct {
	Addr          string
	DefaultVoice  string
	Timeout       time.Duration
	HealthTimeout time.Duration
}

// Synthesizer turns text into cached WAV files through a Piper server.
type Synthesizer struct {
	cfg   SynthesizerConfig
	cache *Cache
}

func NewSynthesizer(cfg SynthesizerConfig, cache *Cache) *Synthesizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = defaultHealthTimeout
	}
	return &Synthesizer{cfg: cfg, cache: cache}
}

func (s *Synthesizer) voiceFor(voice string) string {
	if voice != "" {
		return voice
	}
	return s.cfg.DefaultVoice
}

func (s *Synthesizer) CachePath(text, voice string) string {
	return s.cache.Path(Key(text, s.voiceFor(voice)))
}

func (s *Synthesizer) ClearCache() (int, error) {
	return s.cache.Clear()
}

// Synthesize returns the artifact for (text, voice). A cache hit never
// touches the network. Failures wrap core.ErrAudioUnavailable.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voice string, useCache bool) (*core.AudioArtifact, error) {
	logger := log.FromCtx(ctx)

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", core.ErrAudioUnavailable)
	}

	voice = s.voiceFor(voice)
	key := Key(text, voice)
	if useCache {
		if art, ok := s.cache.Lookup(key); ok {
			logger.Debug().Str("key", key).Msg("audio cache hit")
			return art, nil
		}
	}

	start := time.Now()
	pcm, format, err := s.stream(ctx, text, voice)
	if err != nil {
		logger.Warn().Err(err).Str("voice", voice).Msg("speech synthesis failed")
		return nil, fmt.Errorf("%w: %w", core.ErrAudioUnavailable, err)
	}

	art, err := s.cache.Store(key, pcm, format)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to cache synthesized audio")
		return nil, fmt.Errorf("%w: %w", core.ErrAudioUnavailable, err)
	}

	logger.Info().
		Str("voice", voice).
		Int("bytes", len(pcm)).
		Dur("took", time.Since(start)).
		Msg("speech synthesized")
	return art, nil
}

// stream runs one synthesize session: audio-start? audio-chunk* audio-stop.
func (s *Synthesizer) stream(ctx context.Context, text, voice string) ([]byte, wyoming.AudioFormat, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	conn, err := wyoming.Dial(ctx, s.cfg.Addr)
	if err != nil {
		return nil, wyoming.AudioFormat{}, err
	}
	defer conn.Close()

	req := wyoming.Synthesize{Text: text}
	if voice != "" {
		req.Voice = &wyoming.SynthesizeVoice{Name: voice}
	}
	if err := conn.Write(req); err != nil {
		return nil, wyoming.AudioFormat{}, err
	}

	var (
		audio   bytes.Buffer
		format  wyoming.AudioFormat
		started bool
		chunks  int
	)
	for {
		ev, err := conn.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, format, errors.New("stream closed before audio-stop")
			}
			return nil, format, err
		}

		switch e := ev.(type) {
		case wyoming.AudioStart:
			format, started = e.AudioFormat, true
		case wyoming.AudioChunk:
			if !started {
				format, started = e.AudioFormat, true
			}
			audio.Write(e.Audio)
			chunks++
		case wyoming.AudioStop:
			if chunks == 0 || audio.Len() == 0 {
				return nil, format, errors.New("no audio received")
			}
			return audio.Bytes(), format.WithDefaults(), nil
		case wyoming.Error:
			return nil, format, fmt.Errorf("piper: %w", e)
		default:
			// info and other chatter are ignored
		}
	}
}

func (s *Synthesizer) Health(ctx context.Context) bool {
	_, err := wyoming.Probe(ctx, s.cfg.Addr, s.cfg.HealthTimeout)
	if err != nil {
		log.FromCtx(ctx).Debug().Err(err).Msg("synthesizer unhealthy")
		return false
	}
	return true
}
