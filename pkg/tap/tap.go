// Package tap captures a session's processed output into a WAV file.
package tap

import (
	"fmt"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"pipelined.dev/signal"
)

const bitDepth = 16

// Writer appends processed blocks to a 16-bit PCM WAV file.
type Writer struct {
	f        *os.File
	enc      *wav.Encoder
	channels int
}

// Create opens a per-session capture file under dir.
func Create(dir, sessionID string, channels, sampleRate int) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, fmt.Sprintf("session-%s.wav", sessionID))
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Writer{
		f:        f,
		enc:      wav.NewEncoder(f, sampleRate, bitDepth, channels, 1),
		channels: channels,
	}, nil
}

// Write appends one block, interleaving channels and quantizing to 16-bit.
func (w *Writer) Write(buf signal.Floating) error {
	channels := w.channels
	if buf.Channels() < channels {
		channels = buf.Channels()
	}
	data := make([]int, buf.Length()*w.channels)
	for s := 0; s < buf.Length(); s++ {
		for c := 0; c < channels; c++ {
			v := buf.Sample(buf.BufferIndex(c, s))
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			data[s*w.channels+c] = int(v * 32767)
		}
	}
	return w.enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: w.channels, SampleRate: w.enc.SampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	})
}

// Close finalizes the WAV header and closes the file.
func (w *Writer) Close() error {
	if err := w.enc.Close(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
