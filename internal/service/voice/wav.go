package voice

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sandevgo/rpgai/internal/providers/wyoming"
)

var ErrNotWAV = errors.New("not a PCM WAV container")

const (
	wavHeaderSize     = 44
	formatPCM         = 1
	formatExtensible  = 0xFFFE
	riffChunkHeadSize = 8
)

// EncodeWAV wraps raw little-endian PCM in a canonical 44 byte header.
func EncodeWAV(pcm []byte, f wyoming.AudioFormat) []byte {
	f = f.WithDefaults()
	blockAlign := f.Channels * f.Width
	byteRate := f.Rate * blockAlign

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(formatPCM))
	_ = binary.Write(buf, binary.LittleEndian, uint16(f.Channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(f.Rate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(f.Width*8))

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// DecodeWAV walks the RIFF chunks and returns the PCM samples of the data
// chunk at their native format.
func DecodeWAV(b []byte) ([]byte, wyoming.AudioFormat, error) {
	var f wyoming.AudioFormat
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, f, ErrNotWAV
	}

	haveFmt := false
	pos := 12
	for pos+riffChunkHeadSize <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + riffChunkHeadSize
		if size < 0 || body+size > len(b) {
			if id == "data" && haveFmt {
				// Streamed WAVs often carry a bogus data size.
				size = len(b) - body
			} else {
				return nil, f, fmt.Errorf("%w: truncated %q chunk", ErrNotWAV, id)
			}
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, f, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			tag := binary.LittleEndian.Uint16(b[body : body+2])
			if tag != formatPCM && tag != formatExtensible {
				return nil, f, fmt.Errorf("%w: compressed format tag %#x", ErrNotWAV, tag)
			}
			f.Channels = int(binary.LittleEndian.Uint16(b[body+2 : body+4]))
			f.Rate = int(binary.LittleEndian.Uint32(b[body+4 : body+8]))
			f.Width = int(binary.LittleEndian.Uint16(b[body+14:body+16])) / 8
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, f, fmt.Errorf("%w: data before fmt", ErrNotWAV)
			}
			if f.Channels <= 0 || f.Rate <= 0 || f.Width <= 0 {
				return nil, f, fmt.Errorf("%w: invalid fmt values", ErrNotWAV)
			}
			return b[body : body+size], f, nil
		}

		// Chunks are word aligned.
		pos = body + size + size%2
	}
	return nil, f, fmt.Errorf("%w: no data chunk", ErrNotWAV)
}

// ReadWAVFormat reads only the header of a cached artifact.
func ReadWAVFormat(path string) (wyoming.AudioFormat, error) {
	file, err := os.Open(path)
	if err != nil {
		return wyoming.AudioFormat{}, err
	}
	defer file.Close()

	head := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(file, head); err != nil {
		return wyoming.AudioFormat{}, fmt.Errorf("read wav header: %w", err)
	}
	_, f, err := DecodeWAV(head)
	if err != nil {
		return wyoming.AudioFormat{}, err
	}
	return f, nil
}
