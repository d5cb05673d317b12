package wyoming

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
)

const (
	ProtocolVersion = "1.5.2"

	maxHeaderSize  = 1 << 20
	maxDataSize    = 1 << 20
	maxPayloadSize = 64 << 20
)

var ErrFrameTooLarge = errors.New("wyoming: frame too large")

type header struct {
	Type          string          `json:"type"`
	Data          json.RawMessage `json:"data,omitempty"`
	DataLength    int             `json:"data_length,omitempty"`
	PayloadLength int             `json:"payload_length,omitempty"`
	Version       string          `json:"version,omitempty"`
}

// WriteEvent encodes ev as header line, data bytes and payload bytes.
func WriteEvent(w io.Writer, ev Event) error {
	data, payload, err := encodeBody(ev)
	if err != nil {
		return err
	}

	h := header{
		Type:          ev.Type(),
		DataLength:    len(data),
		PayloadLength: len(payload),
		Version:       ProtocolVersion,
	}
	line, err := sonic.Marshal(h)
	if err != nil {
		return fmt.Errorf("wyoming: marshal header: %w", err)
	}

	buf := make([]byte, 0, len(line)+1+len(data)+len(payload))
	buf = append(buf, line...)
	buf = append(buf, '\n')
	buf = append(buf, data...)
	buf = append(buf, payload...)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("wyoming: write %s: %w", ev.Type(), err)
	}
	return nil
}

func encodeBody(ev Event) (data, payload []byte, err error) {
	var body any
	switch e := ev.(type) {
	case Describe:
		return nil, nil, nil
	case Info:
		body = e.Raw
	case AudioChunk:
		body, payload = e, e.Audio
	case Unknown:
		body, payload = e.Data, e.Payload
	default:
		body = e
	}

	if body == nil {
		return nil, payload, nil
	}
	data, err = sonic.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("wyoming: marshal %s data: %w", ev.Type(), err)
	}
	if bytes.Equal(data, []byte("{}")) || bytes.Equal(data, []byte("null")) {
		data = nil
	}
	return data, payload, nil
}

// ReadEvent decodes the next event. io.EOF means the peer closed cleanly.
func ReadEvent(r *bufio.Reader) (Event, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}

	var h header
	if err := sonic.Unmarshal(line, &h); err != nil {
		return nil, fmt.Errorf("wyoming: decode header: %w", err)
	}
	if h.Type == "" {
		return nil, errors.New("wyoming: header without type")
	}
	if h.DataLength < 0 || h.DataLength > maxDataSize || h.PayloadLength < 0 || h.PayloadLength > maxPayloadSize {
		return nil, ErrFrameTooLarge
	}

	data := []byte(h.Data)
	if h.DataLength > 0 {
		extra := make([]byte, h.DataLength)
		if _, err := io.ReadFull(r, extra); err != nil {
			return nil, fmt.Errorf("wyoming: read data: %w", err)
		}
		data, err = mergeData(data, extra)
		if err != nil {
			return nil, err
		}
	}

	var payload []byte
	if h.PayloadLength > 0 {
		payload = make([]byte, h.PayloadLength)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("wyoming: read payload: %w", err)
		}
	}

	return decodeEvent(h.Type, data, payload)
}

func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && len(line) > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) > maxHeaderSize {
			return nil, ErrFrameTooLarge
		}
		if !isPrefix {
			if len(bytes.TrimSpace(line)) == 0 {
				line = line[:0]
				continue
			}
			return line, nil
		}
	}
}

// mergeData overlays separately sent data on top of the inline object.
func mergeData(inline, extra []byte) ([]byte, error) {
	if len(inline) == 0 || bytes.Equal(inline, []byte("null")) {
		return extra, nil
	}
	merged := map[string]any{}
	if err := sonic.Unmarshal(inline, &merged); err != nil {
		return nil, fmt.Errorf("wyoming: decode inline data: %w", err)
	}
	if err := sonic.Unmarshal(extra, &merged); err != nil {
		return nil, fmt.Errorf("wyoming: decode data: %w", err)
	}
	return sonic.Marshal(merged)
}

func decodeEvent(typ string, data, payload []byte) (Event, error) {
	if len(data) == 0 {
		data = []byte("{}")
	}

	switch typ {
	case TypeDescribe:
		return Describe{}, nil
	case TypeInfo:
		var raw map[string]any
		if err := sonic.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("wyoming: decode info: %w", err)
		}
		return Info{Raw: raw}, nil
	case TypeSynthesize:
		return decodeInto[Synthesize](typ, data)
	case TypeTranscribe:
		return decodeInto[Transcribe](typ, data)
	case TypeAudioStart:
		return decodeInto[AudioStart](typ, data)
	case TypeAudioChunk:
		ev, err := decodeInto[AudioChunk](typ, data)
		if err != nil {
			return nil, err
		}
		ev.Audio = payload
		return ev, nil
	case TypeAudioStop:
		return decodeInto[AudioStop](typ, data)
	case TypeTranscript:
		return decodeInto[Transcript](typ, data)
	case TypeError:
		return decodeInto[Error](typ, data)
	default:
		var raw map[string]any
		_ = sonic.Unmarshal(data, &raw)
		return Unknown{Name: typ, Data: raw, Payload: payload}, nil
	}
}

func decodeInto[T Event](typ string, data []byte) (T, error) {
	var v T
	if err := sonic.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("wyoming: decode %s: %w", typ, err)
	}
	return v, nil
}
