package voice

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/rpgai/internal/core"
	"github.com/sandevgo/rpgai/internal/providers/wyoming"
	"github.com/sandevgo/rpgai/internal/providers/wyoming/wyomingtest"
)

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}

type whisperRecorder struct {
	mu     sync.Mutex
	events []wyoming.Event
	reply  wyoming.Event
}

func (w *whisperRecorder) handle(conn *wyomingtest.Session) {
	for {
		ev, err := conn.Read()
		if err != nil {
			return
		}
		w.mu.Lock()
		w.events = append(w.events, ev)
		w.mu.Unlock()

		if ev.Type() == wyoming.TypeAudioStop {
			if w.reply != nil {
				_ = conn.Write(w.reply)
			}
			return
		}
	}
}

func newTestTranscriber(addr string, conv Converter) *Transcriber {
	return NewTranscriber(TranscriberConfig{Addr: addr, Language: "en", Timeout: 2 * time.Second, HealthTimeout: time.Second}, conv)
}

func TestTranscribe_StreamsChunks(t *testing.T) {
	rec := &whisperRecorder{reply: wyoming.Transcript{Text: " Hello innkeeper. "}}
	srv := wyomingtest.NewServer(rec.handle)
	defer srv.Close()

	pcm := make([]byte, 2500)
	in := EncodeWAV(pcm, wyoming.AudioFormat{Rate: 16000, Width: 2, Channels: 1})

	text, err := newTestTranscriber(srv.Addr, nil).Transcribe(context.Background(), in, "wav")
	require.NoError(t, err)
	assert.Equal(t, "Hello innkeeper.", text)

	require.Len(t, rec.events, 6)
	assert.Equal(t, wyoming.Transcribe{Language: "en"}, rec.events[0])
	assert.Equal(t, wyoming.TypeAudioStart, rec.events[1].Type())

	var sizes []int
	for _, ev := range rec.events[2:5] {
		chunk, ok := ev.(wyoming.AudioChunk)
		require.True(t, ok)
		sizes = append(sizes, len(chunk.Audio))
	}
	assert.Equal(t, []int{1024, 1024, 452}, sizes)
	assert.Equal(t, wyoming.TypeAudioStop, rec.events[5].Type())
}

func TestTranscribe_ConvertsUnknownContainers(t *testing.T) {
	rec := &whisperRecorder{reply: wyoming.Transcript{Text: "ok"}}
	srv := wyomingtest.NewServer(rec.handle)
	defer srv.Close()

	conv := &fakeConverter{out: EncodeWAV(make([]byte, 10), TargetFormat)}
	text, err := newTestTranscriber(srv.Addr, conv).Transcribe(context.Background(), []byte("OggS..."), "ogg")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 1, conv.calls)

	start, ok := rec.events[1].(wyoming.AudioStart)
	require.True(t, ok)
	assert.Equal(t, TargetFormat, start.AudioFormat)
}

func TestTranscribe_Failures(t *testing.T) {
	wav := EncodeWAV(make([]byte, 10), TargetFormat)

	tests := []struct {
		name  string
		reply wyoming.Event
	}{
		{name: "error event", reply: wyoming.Error{Text: "model crashed"}},
		{name: "closed without result", reply: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &whisperRecorder{reply: tt.reply}
			srv := wyomingtest.NewServer(rec.handle)
			defer srv.Close()

			text, err := newTestTranscriber(srv.Addr, nil).Transcribe(context.Background(), wav, "wav")
			assert.Empty(t, text)
			assert.ErrorIs(t, err, core.ErrAudioUnavailable)
		})
	}
}

func TestTranscribe_UnsupportedFormatNeverDials(t *testing.T) {
	srv := wyomingtest.NewServer(func(conn *wyomingtest.Session) {})
	defer srv.Close()

	_, err := newTestTranscriber(srv.Addr, nil).Transcribe(context.Background(), []byte("webm"), "webm")
	assert.ErrorIs(t, err, core.ErrAudioFormatUnsupported)
	assert.Zero(t, srv.Connections())
}

func TestTranscriber_Health(t *testing.T) {
	srv := wyomingtest.NewServer(wyomingtest.InfoHandler)
	defer srv.Close()

	assert.True(t, newTestTranscriber(srv.Addr, nil).Health(context.Background()))
	assert.False(t, newTestTranscriber("tcp://127.0.0.1:1", nil).Health(context.Background()))
}
