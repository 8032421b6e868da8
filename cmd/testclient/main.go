package main

import (
	"flag"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/mynet1982/audiogridder/pkg/audio"
	"github.com/mynet1982/audiogridder/pkg/msg"
)

// testclient streams a sine tone through a running server and reports the
// round-trip behavior per block.
func main() {
	var addr string
	flag.StringVar(&addr, "addr", "127.0.0.1:55056", "server address")
	var blocks int
	flag.IntVar(&blocks, "blocks", 100, "number of blocks to stream")
	var blockSize int
	flag.IntVar(&blockSize, "block-size", 512, "samples per block")
	var sampleRate float64
	flag.Float64Var(&sampleRate, "rate", 48000, "sample rate")

	flag.Parse()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	// session header: in out sc active rate block double
	if _, err := fmt.Fprintf(conn, "2 2 0 %d %v %d 0\n", uint64(0xf), sampleRate, blockSize); err != nil {
		panic(err)
	}

	phase := 0.0
	step := 2 * math.Pi * 440 / sampleRate
	pos := int64(0)

	for i := 0; i < blocks; i++ {
		buf := audio.NewBuffer(audio.Single, 2, blockSize)
		for s := 0; s < blockSize; s++ {
			v := math.Sin(phase)
			phase += step
			buf.SetSample(buf.BufferIndex(0, s), v)
			buf.SetSample(buf.BufferIndex(1, s), v)
		}
		frame := &msg.Frame{
			Buffer: buf,
			Pos: audio.Transport{
				Playing:    true,
				SamplePos:  pos,
				BPM:        120,
				TimeSigNum: 4,
				TimeSigDen: 4,
			},
		}
		start := time.Now()
		if err := msg.WriteFrame(conn, frame, nil); err != nil {
			panic(err)
		}
		resp, err := msg.ReadResponse(conn, nil)
		if err != nil {
			panic(err)
		}
		fmt.Printf("block %d: rtt=%s latency=%d channels=%d\n",
			i, time.Since(start), resp.Latency, resp.Channels)
		pos += int64(blockSize)
	}
}
