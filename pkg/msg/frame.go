// Package msg frames audio, MIDI and transport blocks for the session
// wire: one request frame per block from the client, one response frame
// back. All multi-byte fields are little-endian; sample data travels
// channel-major in the block's precision.
package msg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"gitlab.com/gomidi/midi/v2"
	"pipelined.dev/signal"

	"github.com/mynet1982/audiogridder/pkg/audio"
	"github.com/mynet1982/audiogridder/pkg/metric"
)

const (
	maxChannels = 256
	maxSamples  = 1 << 16
	maxMidi     = 1 << 12
)

var ErrFrameTooLarge = errors.New("frame exceeds protocol limits")

// Frame is one audio block sent by the client.
type Frame struct {
	Double bool
	Buffer signal.Floating
	Midi   audio.MidiBuffer
	Pos    audio.Transport
}

// Response is one processed block sent back to the client.
type Response struct {
	Double   bool
	Buffer   signal.Floating
	Midi     *audio.MidiBuffer
	Latency  int
	Channels int
}

type frameHeader struct {
	Precision  uint8
	Channels   uint16
	Samples    uint32
	Playing    uint8
	SamplePos  int64
	BPM        float64
	TimeSigNum uint16
	TimeSigDen uint16
	MidiCount  uint32
}

type responseHeader struct {
	Precision uint8
	Channels  uint16
	Samples   uint32
	Latency   int32
	MidiCount uint32
}

func (f *Frame) Precision() audio.Precision {
	if f.Double {
		return audio.Double
	}
	return audio.Single
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// ReadFrame blocks until one full request frame is read. Bytes consumed
// are added to the in meter.
func ReadFrame(r io.Reader, in *metric.Meter) (*Frame, error) {
	cr := &countingReader{r: r}
	defer func() {
		if in != nil {
			in.Add(cr.n)
		}
	}()

	var hdr frameHeader
	if err := binary.Read(cr, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	if hdr.Channels > maxChannels || hdr.Samples > maxSamples || hdr.MidiCount > maxMidi {
		return nil, ErrFrameTooLarge
	}

	f := &Frame{
		Double: hdr.Precision != 0,
		Pos: audio.Transport{
			Playing:    hdr.Playing != 0,
			SamplePos:  hdr.SamplePos,
			BPM:        hdr.BPM,
			TimeSigNum: int(hdr.TimeSigNum),
			TimeSigDen: int(hdr.TimeSigDen),
		},
	}

	if err := readMidi(cr, int(hdr.MidiCount), &f.Midi); err != nil {
		return nil, err
	}

	f.Buffer = audio.NewBuffer(f.Precision(), int(hdr.Channels), int(hdr.Samples))
	if err := readSamples(cr, f.Buffer, f.Double); err != nil {
		return nil, err
	}
	return f, nil
}

// WriteFrame writes one request frame; the client side of ReadFrame.
func WriteFrame(w io.Writer, f *Frame, out *metric.Meter) error {
	var buf bytes.Buffer
	hdr := frameHeader{
		Channels:   uint16(f.Buffer.Channels()),
		Samples:    uint32(f.Buffer.Length()),
		SamplePos:  f.Pos.SamplePos,
		BPM:        f.Pos.BPM,
		TimeSigNum: uint16(f.Pos.TimeSigNum),
		TimeSigDen: uint16(f.Pos.TimeSigDen),
		MidiCount:  uint32(f.Midi.Len()),
	}
	if f.Double {
		hdr.Precision = 1
	}
	if f.Pos.Playing {
		hdr.Playing = 1
	}
	if hdr.Channels > maxChannels || hdr.Samples > maxSamples || hdr.MidiCount > maxMidi {
		return ErrFrameTooLarge
	}
	if err := binary.Write(&buf, binary.LittleEndian, hdr); err != nil {
		return err
	}
	if err := writeMidi(&buf, &f.Midi); err != nil {
		return err
	}
	if err := writeSamples(&buf, f.Buffer, f.Double); err != nil {
		return err
	}
	return flush(w, &buf, out)
}

// WriteResponse writes one processed block back to the client. Bytes
// written are added to the out meter.
func WriteResponse(w io.Writer, resp *Response, out *metric.Meter) error {
	var buf bytes.Buffer
	hdr := responseHeader{
		Channels:  uint16(resp.Channels),
		Samples:   uint32(resp.Buffer.Length()),
		Latency:   int32(resp.Latency),
		MidiCount: uint32(resp.Midi.Len()),
	}
	if resp.Double {
		hdr.Precision = 1
	}
	if hdr.Channels > maxChannels || hdr.Samples > maxSamples || hdr.MidiCount > maxMidi {
		return ErrFrameTooLarge
	}
	if err := binary.Write(&buf, binary.LittleEndian, hdr); err != nil {
		return err
	}
	if err := writeMidi(&buf, resp.Midi); err != nil {
		return err
	}
	if err := writeSamplesChannels(&buf, resp.Buffer, resp.Double, resp.Channels); err != nil {
		return err
	}
	return flush(w, &buf, out)
}

// ReadResponse reads one processed block; the client side of
// WriteResponse.
func ReadResponse(r io.Reader, in *metric.Meter) (*Response, error) {
	cr := &countingReader{r: r}
	defer func() {
		if in != nil {
			in.Add(cr.n)
		}
	}()

	var hdr responseHeader
	if err := binary.Read(cr, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	if hdr.Channels > maxChannels || hdr.Samples > maxSamples || hdr.MidiCount > maxMidi {
		return nil, ErrFrameTooLarge
	}
	resp := &Response{
		Double:   hdr.Precision != 0,
		Latency:  int(hdr.Latency),
		Channels: int(hdr.Channels),
		Midi:     &audio.MidiBuffer{},
	}
	if err := readMidi(cr, int(hdr.MidiCount), resp.Midi); err != nil {
		return nil, err
	}
	prec := audio.Single
	if resp.Double {
		prec = audio.Double
	}
	resp.Buffer = audio.NewBuffer(prec, int(hdr.Channels), int(hdr.Samples))
	if err := readSamples(cr, resp.Buffer, resp.Double); err != nil {
		return nil, err
	}
	return resp, nil
}

func flush(w io.Writer, buf *bytes.Buffer, out *metric.Meter) error {
	n, err := w.Write(buf.Bytes())
	if out != nil {
		out.Add(int64(n))
	}
	return err
}

func readMidi(r io.Reader, count int, dst *audio.MidiBuffer) error {
	dst.Clear()
	for i := 0; i < count; i++ {
		var frame int32
		var length uint16
		if err := binary.Read(r, binary.LittleEndian, &frame); err != nil {
			return err
		}
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return err
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return err
		}
		dst.Add(frame, midi.Message(data))
	}
	return nil
}

func writeMidi(w io.Writer, src *audio.MidiBuffer) error {
	for _, ev := range src.Events() {
		if len(ev.Data) > 0xffff {
			return fmt.Errorf("midi event of %d bytes exceeds frame limit", len(ev.Data))
		}
		if err := binary.Write(w, binary.LittleEndian, ev.Frame); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint16(len(ev.Data))); err != nil {
			return err
		}
		if _, err := w.Write(ev.Data); err != nil {
			return err
		}
	}
	return nil
}

func readSamples(r io.Reader, buf signal.Floating, double bool) error {
	for c := 0; c < buf.Channels(); c++ {
		if double {
			data := make([]float64, buf.Length())
			if err := binary.Read(r, binary.LittleEndian, data); err != nil {
				return err
			}
			for s, v := range data {
				buf.SetSample(buf.BufferIndex(c, s), v)
			}
		} else {
			data := make([]float32, buf.Length())
			if err := binary.Read(r, binary.LittleEndian, data); err != nil {
				return err
			}
			for s, v := range data {
				buf.SetSample(buf.BufferIndex(c, s), float64(v))
			}
		}
	}
	return nil
}

func writeSamples(w io.Writer, buf signal.Floating, double bool) error {
	return writeSamplesChannels(w, buf, double, buf.Channels())
}

func writeSamplesChannels(w io.Writer, buf signal.Floating, double bool, channels int) error {
	if channels > buf.Channels() {
		channels = buf.Channels()
	}
	for c := 0; c < channels; c++ {
		if double {
			data := make([]float64, buf.Length())
			for s := range data {
				data[s] = buf.Sample(buf.BufferIndex(c, s))
			}
			if err := binary.Write(w, binary.LittleEndian, data); err != nil {
				return err
			}
		} else {
			data := make([]float32, buf.Length())
			for s := range data {
				data[s] = float32(buf.Sample(buf.BufferIndex(c, s)))
			}
			if err := binary.Write(w, binary.LittleEndian, data); err != nil {
				return err
			}
		}
	}
	return nil
}
